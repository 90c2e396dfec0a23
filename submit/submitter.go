// Package submit contains a submitter of signed settlement transactions.
package submit

import (
	"fmt"

	"github.com/stellar/go/clients/horizonclient"
	"github.com/stellar/go/keypair"
	"github.com/stellar/go/txnbuild"
)

// SubmitTxer submits transaction XDR to the network. Errors are returned as
// they are received from Horizon so that their details can be inspected.
type SubmitTxer interface {
	SubmitTx(xdr string) error
}

// Error is the failure of a settlement transaction to be accepted by the
// network.
type Error struct {
	// TxHash is the hex hash of the transaction.
	TxHash string

	// ResultString is the base64 XDR transaction result that Horizon
	// reported, or empty if the failure carried no result.
	ResultString string

	Err error
}

func (e *Error) Error() string {
	if e.ResultString == "" {
		return fmt.Sprintf("submitting tx %s: %v", e.TxHash, e.Err)
	}
	return fmt.Sprintf("submitting tx %s: %v (%s)", e.TxHash, e.Err, e.ResultString)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Submitter signs and submits settlement transactions.
type Submitter struct {
	SubmitTxer        SubmitTxer
	NetworkPassphrase string
}

// SignAndSubmitTx signs the transaction with the signers then submits it.
func (s *Submitter) SignAndSubmitTx(tx *txnbuild.Transaction, signers ...*keypair.Full) error {
	tx, err := tx.Sign(s.NetworkPassphrase, signers...)
	if err != nil {
		return fmt.Errorf("signing tx: %w", err)
	}
	return s.SubmitTx(tx)
}

// SubmitTx submits the signed transaction. A transaction the network does not
// accept fails with an *Error.
func (s *Submitter) SubmitTx(tx *txnbuild.Transaction) error {
	hash, err := tx.HashHex(s.NetworkPassphrase)
	if err != nil {
		return fmt.Errorf("hashing tx: %w", err)
	}
	txeBase64, err := tx.Base64()
	if err != nil {
		return fmt.Errorf("encoding tx as base64: %w", err)
	}
	err = s.SubmitTxer.SubmitTx(txeBase64)
	if err != nil {
		submitErr := &Error{TxHash: hash, Err: err}
		if hErr := horizonclient.GetError(err); hErr != nil {
			if resultString, rErr := hErr.ResultString(); rErr == nil {
				submitErr.ResultString = resultString
			}
		}
		return submitErr
	}
	return nil
}
