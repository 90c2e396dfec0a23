// Package txbuild contains builders for the Stellar transactions that settle
// the value movements of donation contract calls.
package txbuild

import (
	"fmt"

	"github.com/stellar/go/amount"
	"github.com/stellar/go/keypair"
	"github.com/stellar/go/txnbuild"
)

// Payment is a payment of the native asset from one account to another.
type Payment struct {
	From   *keypair.FromAddress
	To     *keypair.FromAddress
	Amount int64
}

type SettlementParams struct {
	// SourceAccount is the account that pays the fee and whose sequence
	// number is consumed.
	SourceAccount  *keypair.FromAddress
	SequenceNumber int64
	Payments       []Payment
}

// Settlement builds a transaction containing a payment operation for each
// payment with a non-zero amount.
func Settlement(p SettlementParams) (*txnbuild.Transaction, error) {
	ops := []txnbuild.Operation{}
	for _, pay := range p.Payments {
		if pay.Amount < 0 {
			return nil, fmt.Errorf("invalid payment amount %d: cannot be negative", pay.Amount)
		}
		if pay.Amount == 0 {
			continue
		}
		ops = append(ops, &txnbuild.Payment{
			SourceAccount: pay.From.Address(),
			Destination:   pay.To.Address(),
			Asset:         txnbuild.NativeAsset{},
			Amount:        amount.StringFromInt64(pay.Amount),
		})
	}
	if len(ops) == 0 {
		return nil, fmt.Errorf("no payments to settle")
	}

	tx, err := txnbuild.NewTransaction(
		txnbuild.TransactionParams{
			SourceAccount: &txnbuild.SimpleAccount{
				AccountID: p.SourceAccount.Address(),
				Sequence:  p.SequenceNumber,
			},
			BaseFee: txnbuild.MinBaseFee,
			Preconditions: txnbuild.Preconditions{
				TimeBounds: txnbuild.NewTimeout(300),
			},
			Operations: ops,
		},
	)
	if err != nil {
		return nil, err
	}
	return tx, nil
}
