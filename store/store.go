// Package store contains stores for the persisted state of deployed donation
// contracts, keyed by the address of the contract account.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/stellar/starlight/donation/state"
)

var (
	ErrNotFound = errors.New("contract state not found")

	// ErrRegression occurs when saving a record would reopen a closed
	// donation.
	ErrRegression = errors.New("closed donation cannot be reopened")
)

// Record is the persisted state of a contract.
type Record struct {
	State state.DonationState

	// SweepPending is set while the balance of a closed donation is owed to
	// the owner and has not been settled.
	SweepPending bool
}

func (r Record) validate() error {
	if !r.State.Valid() {
		return fmt.Errorf("unknown state %q", string(r.State))
	}
	if r.SweepPending && r.State != state.DonationStateClosed {
		return fmt.Errorf("sweep pending on %s donation", r.State)
	}
	return nil
}

// Store loads and saves the persisted records of contracts.
type Store interface {
	Load(ctx context.Context, contract string) (Record, error)
	Save(ctx context.Context, contract string, r Record) error
}

func checkTransition(from, to Record) error {
	if from.State == state.DonationStateClosed && to.State != state.DonationStateClosed {
		return ErrRegression
	}
	return nil
}
