// Package horizon contains a ledger that custodies donation balances in
// Stellar accounts, using a Horizon server to read balances and to submit
// settlements.
package horizon

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/stellar/go/amount"
	"github.com/stellar/go/clients/horizonclient"
	"github.com/stellar/go/keypair"
	"github.com/stellar/go/txnbuild"
	"github.com/stellar/starlight/donation/host"
	"github.com/stellar/starlight/donation/state"
	"github.com/stellar/starlight/donation/submit"
	"github.com/stellar/starlight/donation/txbuild"
)

var (
	// ErrNoSigner occurs when a movement is from an account the ledger has no
	// signer for.
	ErrNoSigner = errors.New("no signer for account")

	// ErrAuthorizationMismatch occurs when the payment authorizing a movement
	// does not make exactly that movement.
	ErrAuthorizationMismatch = errors.New("authorization does not match movement")
)

// DefaultBaseReserve is the base reserve, in stroops, of the public Stellar
// networks.
const DefaultBaseReserve = 5000000

var _ host.Ledger = &Ledger{}

// Ledger implements the host's ledger with Stellar accounts. The balance of an
// account is the part of its native balance it can spend. Movements are
// settled in a single transaction that the ledger signs with the signers
// added for the accounts funds are moved from, unless the movement carries an
// authorization, in which case the authorizing payment is submitted as is.
type Ledger struct {
	HorizonClient horizonclient.ClientInterface
	Submitter     *submit.Submitter

	// BaseReserve is the network's base reserve in stroops. Zero uses
	// DefaultBaseReserve.
	BaseReserve int64

	mu      sync.Mutex
	signers map[string]*keypair.Full
}

// AddSigner adds a signer that can authorize movements from the signer's
// account.
func (l *Ledger) AddSigner(signer *keypair.Full) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.signers == nil {
		l.signers = map[string]*keypair.Full{}
	}
	l.signers[signer.Address()] = signer
}

func (l *Ledger) signer(account *keypair.FromAddress) (*keypair.Full, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.signers[account.Address()]
	return s, ok
}

func (l *Ledger) baseReserve() int64 {
	if l.BaseReserve == 0 {
		return DefaultBaseReserve
	}
	return l.BaseReserve
}

// Balance queries Horizon for the native balance of the account and returns
// the amount the account can pay out in a single settlement: the balance less
// the account's minimum reserve, its selling liabilities, and the fee of a
// one operation transaction.
func (l *Ledger) Balance(ctx context.Context, account *keypair.FromAddress) (state.Amount, error) {
	detail, err := l.HorizonClient.AccountDetail(horizonclient.AccountRequest{AccountID: account.Address()})
	if err != nil {
		return 0, fmt.Errorf("getting account details of %s: %w", account.Address(), err)
	}
	for _, b := range detail.Balances {
		if b.Asset.Type != "native" {
			continue
		}
		balance, err := amount.ParseInt64(b.Balance)
		if err != nil {
			return 0, fmt.Errorf("parsing native balance of %s: %w", account.Address(), err)
		}
		var selling int64
		if b.SellingLiabilities != "" {
			selling, err = amount.ParseInt64(b.SellingLiabilities)
			if err != nil {
				return 0, fmt.Errorf("parsing native selling liabilities of %s: %w", account.Address(), err)
			}
		}
		entries := 2 + int64(detail.SubentryCount) + int64(detail.NumSponsoring) - int64(detail.NumSponsored)
		spendable := balance - entries*l.baseReserve() - selling - txnbuild.MinBaseFee
		if spendable < 0 {
			spendable = 0
		}
		return state.Amount(spendable), nil
	}
	return 0, nil
}

// Settle submits a transaction containing a payment for every movement. The
// transaction is sourced from the account of the first movement, so either
// all payments are applied by the network or none are. A movement carrying an
// authorization is settled alone by submitting its authorizing payment.
func (l *Ledger) Settle(ctx context.Context, movements []host.Movement) error {
	if len(movements) == 0 {
		return nil
	}
	for _, m := range movements {
		if m.Authorization == "" {
			continue
		}
		if len(movements) != 1 {
			return fmt.Errorf("settling %v: authorized movement must be settled alone", m)
		}
		return l.settleAuthorized(m)
	}

	payments := make([]txbuild.Payment, 0, len(movements))
	signers := []*keypair.Full{}
	seen := map[string]bool{}
	for _, m := range movements {
		signer, ok := l.signer(m.From)
		if !ok {
			return fmt.Errorf("settling %v: %w", m, ErrNoSigner)
		}
		if !seen[signer.Address()] {
			seen[signer.Address()] = true
			signers = append(signers, signer)
		}
		payments = append(payments, txbuild.Payment{From: m.From, To: m.To, Amount: int64(m.Amount)})
	}

	source := movements[0].From
	seqNum, err := l.sequenceNumber(source)
	if err != nil {
		return err
	}
	tx, err := txbuild.Settlement(txbuild.SettlementParams{
		SourceAccount:  source,
		SequenceNumber: seqNum + 1,
		Payments:       payments,
	})
	if err != nil {
		return fmt.Errorf("building settlement tx: %w", err)
	}
	err = l.Submitter.SignAndSubmitTx(tx, signers...)
	if err != nil {
		return fmt.Errorf("submitting settlement tx: %w", err)
	}
	return nil
}

// settleAuthorized submits the payment authorizing the movement, after
// checking that it pays exactly the movement.
func (l *Ledger) settleAuthorized(m host.Movement) error {
	tx, p, err := txbuild.ParseDonation(m.Authorization)
	if err != nil {
		return fmt.Errorf("settling %v: %w: %v", m, ErrAuthorizationMismatch, err)
	}
	if !p.From.Equal(m.From) || !p.To.Equal(m.To) || p.Amount != int64(m.Amount) {
		return fmt.Errorf("settling %v: authorization pays %s from %s to %s: %w",
			m, amount.StringFromInt64(p.Amount), p.From.Address(), p.To.Address(), ErrAuthorizationMismatch)
	}
	err = l.Submitter.SubmitTx(tx)
	if err != nil {
		return fmt.Errorf("submitting authorized payment: %w", err)
	}
	return nil
}

func (l *Ledger) sequenceNumber(account *keypair.FromAddress) (int64, error) {
	detail, err := l.HorizonClient.AccountDetail(horizonclient.AccountRequest{AccountID: account.Address()})
	if err != nil {
		return 0, fmt.Errorf("getting account %s: %w", account.Address(), err)
	}
	seqNum, err := detail.GetSequenceNumber()
	if err != nil {
		return 0, fmt.Errorf("getting sequence number of account %s: %w", account.Address(), err)
	}
	return seqNum, nil
}

// DonationPayment builds a payment of the amount from the donor to the
// contract and signs it with the donor, for attaching to a give as its
// authorization. The payment uses the donor's next sequence number.
func DonationPayment(client horizonclient.ClientInterface, networkPassphrase string, donor *keypair.Full, contract *keypair.FromAddress, amt state.Amount) (string, error) {
	detail, err := client.AccountDetail(horizonclient.AccountRequest{AccountID: donor.Address()})
	if err != nil {
		return "", fmt.Errorf("getting account %s: %w", donor.Address(), err)
	}
	seqNum, err := detail.GetSequenceNumber()
	if err != nil {
		return "", fmt.Errorf("getting sequence number of account %s: %w", donor.Address(), err)
	}
	tx, err := txbuild.Donation(txbuild.DonationParams{
		Donor:          donor.FromAddress(),
		Contract:       contract,
		SequenceNumber: seqNum + 1,
		Amount:         int64(amt),
	})
	if err != nil {
		return "", fmt.Errorf("building donation payment: %w", err)
	}
	tx, err = tx.Sign(networkPassphrase, donor)
	if err != nil {
		return "", fmt.Errorf("signing donation payment: %w", err)
	}
	txXDR, err := tx.Base64()
	if err != nil {
		return "", fmt.Errorf("encoding donation payment: %w", err)
	}
	return txXDR, nil
}
