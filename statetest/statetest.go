// Package statetest contains an in-memory host for testing the donation state
// machine without a host runtime.
package statetest

import (
	"github.com/stellar/go/keypair"
	"github.com/stellar/starlight/donation/state"
)

var _ state.Host = &Host{}

// Transfer is a transfer requested by the state machine.
type Transfer struct {
	To     *keypair.FromAddress
	Amount state.Amount
}

// Host is an in-memory state.Host. It records the transfers requested, and
// transfers always succeed unless TransferErr is set.
type Host struct {
	state     state.DonationState
	balance   state.Amount
	transfers []Transfer

	// TransferErr, if set, is returned by every transfer request instead of
	// recording the transfer.
	TransferErr error
}

// NewHost returns a host holding the given state.
func NewHost(s state.DonationState) *Host {
	return &Host{state: s}
}

func (h *Host) State() state.DonationState {
	return h.state
}

func (h *Host) SetState(s state.DonationState) {
	h.state = s
}

func (h *Host) SelfBalance() state.Amount {
	return h.balance
}

// SetSelfBalance sets the balance of the contract account.
func (h *Host) SetSelfBalance(a state.Amount) {
	h.balance = a
}

func (h *Host) InvokeTransfer(to *keypair.FromAddress, amount state.Amount) error {
	if h.TransferErr != nil {
		return h.TransferErr
	}
	h.transfers = append(h.transfers, Transfer{To: to, Amount: amount})
	h.balance -= amount
	return nil
}

// Transfers returns the transfers requested in the order they were requested.
func (h *Host) Transfers() []Transfer {
	return append([]Transfer(nil), h.transfers...)
}
