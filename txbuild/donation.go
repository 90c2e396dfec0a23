package txbuild

import (
	"errors"
	"fmt"

	"github.com/stellar/go/amount"
	"github.com/stellar/go/keypair"
	"github.com/stellar/go/txnbuild"
)

// ErrNotDonation occurs when a transaction is not a single native payment
// from the transaction's source account.
var ErrNotDonation = errors.New("transaction is not a donation payment")

type DonationParams struct {
	Donor          *keypair.FromAddress
	Contract       *keypair.FromAddress
	SequenceNumber int64
	Amount         int64
}

// Donation builds a transaction sourced from the donor that pays the amount
// to the contract. Signed by the donor it authorizes the donor's gift.
func Donation(p DonationParams) (*txnbuild.Transaction, error) {
	if p.Amount <= 0 {
		return nil, fmt.Errorf("invalid donation amount %d: must be positive", p.Amount)
	}
	return Settlement(SettlementParams{
		SourceAccount:  p.Donor,
		SequenceNumber: p.SequenceNumber,
		Payments:       []Payment{{From: p.Donor, To: p.Contract, Amount: p.Amount}},
	})
}

// ParseDonation parses a transaction built by Donation and returns it with
// the payment it makes.
func ParseDonation(txXDR string) (*txnbuild.Transaction, Payment, error) {
	genericTx, err := txnbuild.TransactionFromXDR(txXDR)
	if err != nil {
		return nil, Payment{}, fmt.Errorf("parsing transaction xdr: %w", err)
	}
	tx, ok := genericTx.Transaction()
	if !ok {
		return nil, Payment{}, fmt.Errorf("fee bump transaction: %w", ErrNotDonation)
	}
	ops := tx.Operations()
	if len(ops) != 1 {
		return nil, Payment{}, fmt.Errorf("%d operations: %w", len(ops), ErrNotDonation)
	}
	op, ok := ops[0].(*txnbuild.Payment)
	if !ok {
		return nil, Payment{}, fmt.Errorf("operation is not a payment: %w", ErrNotDonation)
	}
	source := tx.SourceAccount().AccountID
	if op.SourceAccount != "" && op.SourceAccount != source {
		return nil, Payment{}, fmt.Errorf("payment from %s in tx of %s: %w", op.SourceAccount, source, ErrNotDonation)
	}
	if op.Asset == nil || !op.Asset.IsNative() {
		return nil, Payment{}, fmt.Errorf("payment is not of the native asset: %w", ErrNotDonation)
	}
	from, err := keypair.ParseAddress(source)
	if err != nil {
		return nil, Payment{}, fmt.Errorf("parsing source: %w", err)
	}
	to, err := keypair.ParseAddress(op.Destination)
	if err != nil {
		return nil, Payment{}, fmt.Errorf("parsing destination: %w", err)
	}
	amt, err := amount.ParseInt64(op.Amount)
	if err != nil {
		return nil, Payment{}, fmt.Errorf("parsing amount: %w", err)
	}
	return tx, Payment{From: from, To: to, Amount: amt}, nil
}
