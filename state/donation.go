package state

import (
	"fmt"

	"github.com/stellar/go/keypair"
)

// StateReader reads the persisted state and the balance of the contract
// account from the host.
type StateReader interface {
	State() DonationState
	SelfBalance() Amount
}

// Host is the host's handle to the persisted state and the custody of the
// contract account's balance during a mutating call.
type Host interface {
	StateReader

	SetState(s DonationState)

	// InvokeTransfer requests the host move amount from the contract
	// account's balance to the account to.
	InvokeTransfer(to *keypair.FromAddress, amount Amount) error
}

// Context is the context of a call. The owner is fixed when the contract is
// deployed and the sender is the account that submitted the call.
type Context struct {
	Owner  *keypair.FromAddress
	Sender *keypair.FromAddress
}

func (c Context) senderIsOwner() bool {
	return c.Owner != nil && c.Sender != nil && c.Sender.Equal(c.Owner)
}

// Init returns the state of a newly deployed donation. It always succeeds.
func Init() DonationState {
	return DonationStateActive
}

// Give accepts a gift of any amount to an active donation. The gifted amount
// is credited to the contract account by the host as part of the call, so Give
// only decides whether the call is accepted. If the donation is closed Give
// returns ErrRejected and the host is expected to return the gift to the
// sender by rolling back the call.
func Give(h StateReader, amount Amount) error {
	if h.State() != DonationStateActive {
		return ErrRejected
	}
	return nil
}

// Close closes an active donation and transfers the whole balance of the
// contract account to the owner. Only the owner can close a donation, and a
// donation can be closed only once.
//
// The state is set to closed before the transfer is requested so that the
// donation cannot accept gifts after it has begun closing, even if the
// transfer fails.
func Close(ctx Context, h Host) error {
	if !ctx.senderIsOwner() {
		return ErrNotOwner
	}
	if h.State() != DonationStateActive {
		return ErrAlreadyClosed
	}
	h.SetState(DonationStateClosed)

	balance := h.SelfBalance()

	err := h.InvokeTransfer(ctx.Owner, balance)
	if err != nil {
		return fmt.Errorf("%w: transferring %s to %s: %v", ErrTransfer, balance, ctx.Owner.Address(), err)
	}
	return nil
}

// View returns the state and the balance of the donation.
func View(h StateReader) (DonationState, Amount) {
	return h.State(), h.SelfBalance()
}
