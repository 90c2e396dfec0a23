package state

import (
	"fmt"

	"github.com/stellar/go/amount"
)

// DonationState is the lifecycle state of a donation.
type DonationState string

const (
	DonationStateActive = DonationState("active")
	DonationStateClosed = DonationState("closed")
)

// Valid returns true if the state is one of the known states.
func (s DonationState) Valid() bool {
	switch s {
	case DonationStateActive, DonationStateClosed:
		return true
	}
	return false
}

func (s DonationState) String() string {
	return string(s)
}

func (s DonationState) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("marshaling donation state: unknown state %q", string(s))
	}
	return []byte(s), nil
}

func (s *DonationState) UnmarshalText(text []byte) error {
	v := DonationState(text)
	if !v.Valid() {
		return fmt.Errorf("unmarshaling donation state: unknown state %q", string(text))
	}
	*s = v
	return nil
}

// Amount is an amount of the native asset in stroops.
type Amount int64

// String returns the amount formatted as a decimal amount of the native
// asset, e.g. 10 stroops is 0.0000010.
func (a Amount) String() string {
	return amount.StringFromInt64(int64(a))
}
