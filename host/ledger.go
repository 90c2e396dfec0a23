package host

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/stellar/go/keypair"
	"github.com/stellar/starlight/donation/state"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrUnknownAccount    = errors.New("unknown account")
)

// Movement is a movement of an amount from one account to another that a call
// requires be settled for the call to take effect.
type Movement struct {
	From   *keypair.FromAddress
	To     *keypair.FromAddress
	Amount state.Amount

	// Authorization is the authorization the caller attached to the
	// movement, if any. See Call.
	Authorization string
}

func (m Movement) String() string {
	return fmt.Sprintf("%s from %s to %s", m.Amount, m.From.Address(), m.To.Address())
}

// Ledger custodies the balances of accounts.
type Ledger interface {
	// Balance returns the balance of the account.
	Balance(ctx context.Context, account *keypair.FromAddress) (state.Amount, error)

	// Settle applies all of the movements, or none of them if any cannot be
	// applied.
	Settle(ctx context.Context, movements []Movement) error
}

var _ Ledger = &MemoryLedger{}

// MemoryLedger is a Ledger that holds balances in memory. Accounts exist once
// they have been funded.
type MemoryLedger struct {
	mu       sync.Mutex
	balances map[string]state.Amount
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{balances: map[string]state.Amount{}}
}

// Fund creates the account if it does not exist and credits it with amount.
func (l *MemoryLedger) Fund(account *keypair.FromAddress, amount state.Amount) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[account.Address()] += amount
}

func (l *MemoryLedger) Balance(ctx context.Context, account *keypair.FromAddress) (state.Amount, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	balance, ok := l.balances[account.Address()]
	if !ok {
		return 0, fmt.Errorf("getting balance of %s: %w", account.Address(), ErrUnknownAccount)
	}
	return balance, nil
}

func (l *MemoryLedger) Settle(ctx context.Context, movements []Movement) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	// Apply the movements to a copy of the affected balances so that nothing
	// is applied if any movement fails.
	pending := map[string]state.Amount{}
	get := func(account *keypair.FromAddress) (state.Amount, bool) {
		if b, ok := pending[account.Address()]; ok {
			return b, true
		}
		b, ok := l.balances[account.Address()]
		return b, ok
	}
	for _, m := range movements {
		if m.Amount < 0 {
			return fmt.Errorf("settling %v: %w", m, ErrInvalidAmount)
		}
		fromBalance, ok := get(m.From)
		if !ok {
			return fmt.Errorf("settling %v: sender: %w", m, ErrUnknownAccount)
		}
		if fromBalance < m.Amount {
			return fmt.Errorf("settling %v: %w", m, ErrInsufficientFunds)
		}
		pending[m.From.Address()] = fromBalance - m.Amount
		toBalance, ok := get(m.To)
		if !ok {
			return fmt.Errorf("settling %v: recipient: %w", m, ErrUnknownAccount)
		}
		pending[m.To.Address()] = toBalance + m.Amount
	}
	for account, balance := range pending {
		l.balances[account] = balance
	}
	return nil
}
