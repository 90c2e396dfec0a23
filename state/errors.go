package state

import (
	"errors"
	"math"
)

var (
	// ErrRejected is the generic rejection of a call, returned by Give when
	// the donation is not active.
	ErrRejected = errors.New("rejected")

	ErrNotOwner      = errors.New("sender is not the owner")
	ErrAlreadyClosed = errors.New("donation already closed")

	// ErrTransfer occurs when the host fails to transfer the balance to the
	// owner during a close. The owner is the sender of the close and the
	// amount is the contract's own balance, so it only occurs when the host
	// misbehaves.
	ErrTransfer = errors.New("transfer failed")
)

// Reasons reported to a caller when a call is rejected.
const (
	RejectReasonNone          int32 = 0
	RejectReasonNotOwner      int32 = -1
	RejectReasonAlreadyClosed int32 = -2
	RejectReasonTransferError int32 = -3
	RejectReasonUnspecified   int32 = math.MinInt32 + 1
)

// RejectReason returns the reason code that identifies err to a caller. A nil
// error has the reason RejectReasonNone. Errors that are not one of the errors
// of this package are reported as RejectReasonUnspecified.
func RejectReason(err error) int32 {
	switch {
	case err == nil:
		return RejectReasonNone
	case errors.Is(err, ErrNotOwner):
		return RejectReasonNotOwner
	case errors.Is(err, ErrAlreadyClosed):
		return RejectReasonAlreadyClosed
	case errors.Is(err, ErrTransfer):
		return RejectReasonTransferError
	}
	return RejectReasonUnspecified
}

// ErrorFromRejectReason returns the error of this package that a reject
// reason identifies, or nil for RejectReasonNone.
func ErrorFromRejectReason(reason int32) error {
	switch reason {
	case RejectReasonNone:
		return nil
	case RejectReasonNotOwner:
		return ErrNotOwner
	case RejectReasonAlreadyClosed:
		return ErrAlreadyClosed
	case RejectReasonTransferError:
		return ErrTransfer
	}
	return ErrRejected
}
