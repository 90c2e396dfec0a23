package agent

import (
	"github.com/stellar/go/keypair"
	"github.com/stellar/starlight/donation/host"
	"github.com/stellar/starlight/donation/state"
)

// Event is an event that occurs while the agent serves calls.
type Event interface{}

// ErrorEvent occurs when an error has occurred, and contains the error
// occurred.
type ErrorEvent struct {
	Err error
}

// ConnectedEvent occurs when a client connects to the agent.
type ConnectedEvent struct {
	RemoteAddr string
}

// DonationReceivedEvent occurs when a gift has been accepted.
type DonationReceivedEvent struct {
	Sender *keypair.FromAddress
	Amount state.Amount
}

// ClosedEvent occurs when the owner has closed the donation and the balance
// has been swept to the owner.
type ClosedEvent struct {
	Owner *keypair.FromAddress
}

// RejectedEvent occurs when the contract rejects a call.
type RejectedEvent struct {
	Entrypoint   host.Entrypoint
	Sender       *keypair.FromAddress
	RejectReason int32
	Err          error
}
