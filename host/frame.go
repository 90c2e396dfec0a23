package host

import (
	"fmt"

	"github.com/stellar/go/keypair"
	"github.com/stellar/starlight/donation/state"
)

var _ state.Host = &frame{}

// frame is the view of the contract that a single call executes against.
// Changes made to a frame take effect only if the call succeeds.
type frame struct {
	contract  *keypair.FromAddress
	state     state.DonationState
	balance   state.Amount
	movements []Movement
}

func (f *frame) State() state.DonationState {
	return f.state
}

func (f *frame) SetState(s state.DonationState) {
	f.state = s
}

func (f *frame) SelfBalance() state.Amount {
	return f.balance
}

func (f *frame) InvokeTransfer(to *keypair.FromAddress, amount state.Amount) error {
	if to == nil {
		return fmt.Errorf("transferring to no account: %w", ErrUnknownAccount)
	}
	if amount < 0 {
		return ErrInvalidAmount
	}
	if amount > f.balance {
		return fmt.Errorf("transferring %s with balance %s: %w", amount, f.balance, ErrInsufficientFunds)
	}
	f.balance -= amount
	f.movements = append(f.movements, Movement{From: f.contract, To: to, Amount: amount})
	return nil
}

// deposit credits the frame with an amount attached to the call by sender.
func (f *frame) deposit(sender *keypair.FromAddress, amount state.Amount, authorization string) {
	f.balance += amount
	if amount > 0 {
		f.movements = append(f.movements, Movement{From: sender, To: f.contract, Amount: amount, Authorization: authorization})
	}
}

// settleable returns the movements of the frame that move a non-zero amount.
func (f *frame) settleable() []Movement {
	var movements []Movement
	for _, m := range f.movements {
		if m.Amount == 0 {
			continue
		}
		movements = append(movements, m)
	}
	return movements
}
