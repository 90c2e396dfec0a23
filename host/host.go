// Package host contains a reference host for donation contracts. The host
// deploys contract instances, serializes the calls made to each instance, and
// commits the state of a call before moving any value. A call that the
// contract rejects, or whose commit fails, changes no persisted state and
// moves no value.
//
// The only call that both changes state and moves value is a close. Its sweep
// is recorded as pending in the same commit that closes the donation, and a
// sweep that fails to settle stays pending until SettlePending settles it.
package host

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/stellar/go/keypair"
	"github.com/stellar/starlight/donation/state"
	"github.com/stellar/starlight/donation/store"
)

var (
	ErrAlreadyDeployed   = errors.New("contract already deployed")
	ErrUnknownEntrypoint = errors.New("unknown entrypoint")
	ErrNotPayable        = errors.New("entrypoint is not payable")
	ErrInvalidAmount     = errors.New("amount cannot be negative")
	ErrNoSender          = errors.New("call has no sender")
)

// Entrypoint is the name of an operation of the contract that can be called.
type Entrypoint string

const (
	EntrypointGive  = Entrypoint("give")
	EntrypointClose = Entrypoint("close")
	EntrypointView  = Entrypoint("view")
)

// Payable returns true if value can be attached to calls of the entrypoint.
func (e Entrypoint) Payable() bool {
	return e == EntrypointGive
}

// Call is a call of an entrypoint of a contract instance.
type Call struct {
	Entrypoint Entrypoint
	Sender     *keypair.FromAddress
	Amount     state.Amount

	// Authorization authorizes the movement of Amount from Sender in a form
	// understood by the ledger, such as a payment signed by the sender. It is
	// passed to the ledger with the movement and is optional for ledgers
	// that custody the sender's funds.
	Authorization string
}

// Result is the result of a call. State, Balance and SweepPending are
// populated for calls of the view entrypoint.
type Result struct {
	RejectReason int32
	State        state.DonationState
	Balance      state.Amount
	SweepPending bool
}

type Config struct {
	// Contract is the account that custodies the donation's balance.
	Contract *keypair.FromAddress
	// Owner is the account that can close the donation.
	Owner *keypair.FromAddress

	Store  store.Store
	Ledger Ledger

	LogWriter io.Writer
}

// Instance is a deployed donation contract.
type Instance struct {
	contract *keypair.FromAddress
	owner    *keypair.FromAddress

	store  store.Store
	ledger Ledger

	logWriter io.Writer

	// mu serializes calls so that one call executes to completion before the
	// next begins.
	mu sync.Mutex
}

func newInstance(c Config) (*Instance, error) {
	if c.Contract == nil {
		return nil, fmt.Errorf("contract account required")
	}
	if c.Owner == nil {
		return nil, fmt.Errorf("owner account required")
	}
	if c.Store == nil {
		return nil, fmt.Errorf("store required")
	}
	if c.Ledger == nil {
		return nil, fmt.Errorf("ledger required")
	}
	logWriter := c.LogWriter
	if logWriter == nil {
		logWriter = io.Discard
	}
	return &Instance{
		contract:  c.Contract,
		owner:     c.Owner,
		store:     c.Store,
		ledger:    c.Ledger,
		logWriter: logWriter,
	}, nil
}

// Deploy deploys a new donation contract by initializing and persisting its
// state.
func Deploy(ctx context.Context, c Config) (*Instance, error) {
	i, err := newInstance(c)
	if err != nil {
		return nil, err
	}
	_, err = i.store.Load(ctx, i.contract.Address())
	if err == nil {
		return nil, fmt.Errorf("deploying %s: %w", i.contract.Address(), ErrAlreadyDeployed)
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("deploying %s: %w", i.contract.Address(), err)
	}
	s := state.Init()
	err = i.store.Save(ctx, i.contract.Address(), store.Record{State: s})
	if err != nil {
		return nil, fmt.Errorf("deploying %s: %w", i.contract.Address(), err)
	}
	fmt.Fprintf(i.logWriter, "deployed donation %s owned by %s: %s\n", i.contract.Address(), i.owner.Address(), s)
	return i, nil
}

// Open returns an instance for a contract previously deployed with the same
// config.
func Open(ctx context.Context, c Config) (*Instance, error) {
	i, err := newInstance(c)
	if err != nil {
		return nil, err
	}
	_, err = i.store.Load(ctx, i.contract.Address())
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", i.contract.Address(), err)
	}
	return i, nil
}

// Contract returns the account that custodies the donation's balance.
func (i *Instance) Contract() *keypair.FromAddress {
	return i.contract
}

// Owner returns the account that can close the donation.
func (i *Instance) Owner() *keypair.FromAddress {
	return i.owner
}

// Invoke executes the call. If the contract rejects the call the returned
// error wraps one of the errors of the state package and the result contains
// the reject reason.
func (i *Instance) Invoke(ctx context.Context, call Call) (Result, error) {
	if call.Amount < 0 {
		return Result{RejectReason: state.RejectReasonUnspecified}, ErrInvalidAmount
	}
	if call.Amount != 0 && !call.Entrypoint.Payable() {
		return Result{RejectReason: state.RejectReasonUnspecified}, fmt.Errorf("calling %s: %w", call.Entrypoint, ErrNotPayable)
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	var r Result
	var err error
	switch call.Entrypoint {
	case EntrypointGive:
		err = i.give(ctx, call)
	case EntrypointClose:
		err = i.close(ctx, call)
	case EntrypointView:
		r, err = i.view(ctx)
	default:
		err = fmt.Errorf("calling %q: %w", call.Entrypoint, ErrUnknownEntrypoint)
	}
	if err != nil {
		r = Result{RejectReason: state.RejectReason(err)}
		fmt.Fprintf(i.logWriter, "call %s by %s rejected: %v\n", call.Entrypoint, senderAddress(call.Sender), err)
		return r, err
	}
	return r, nil
}

func (i *Instance) newFrame(ctx context.Context, s state.DonationState) (*frame, error) {
	balance, err := i.ledger.Balance(ctx, i.contract)
	if err != nil {
		return nil, fmt.Errorf("getting balance of contract: %w", err)
	}
	return &frame{contract: i.contract, state: s, balance: balance}, nil
}

// execute runs fn against a frame of the persisted state. If fn succeeds and
// changed the state, the new state is committed before the frame's movements
// are settled, with the movements recorded as a pending sweep that is cleared
// once they settle. If the state is unchanged the movements are settled
// without a commit.
func (i *Instance) execute(ctx context.Context, fn func(f *frame) error) error {
	contract := i.contract.Address()
	r, err := i.store.Load(ctx, contract)
	if err != nil {
		return err
	}
	f, err := i.newFrame(ctx, r.State)
	if err != nil {
		return err
	}
	err = fn(f)
	if err != nil {
		return err
	}
	movements := f.settleable()

	if f.state == r.State {
		if len(movements) == 0 {
			return nil
		}
		err = i.ledger.Settle(ctx, movements)
		if err != nil {
			return settleError{err}
		}
		return nil
	}

	err = i.store.Save(ctx, contract, store.Record{State: f.state, SweepPending: len(movements) > 0})
	if err != nil {
		return fmt.Errorf("committing %s: %w", f.state, err)
	}
	if len(movements) == 0 {
		return nil
	}
	err = i.ledger.Settle(ctx, movements)
	if err != nil {
		fmt.Fprintf(i.logWriter, "sweep of %s left pending: %v\n", contract, err)
		return settleError{err}
	}
	i.clearSweep(ctx, f.state)
	return nil
}

// clearSweep records that the sweep of the donation has settled. A failure is
// logged and leaves the sweep pending, which is safe to settle again because
// a pending sweep moves the balance the contract holds at the time.
func (i *Instance) clearSweep(ctx context.Context, s state.DonationState) {
	err := i.store.Save(ctx, i.contract.Address(), store.Record{State: s})
	if err != nil {
		fmt.Fprintf(i.logWriter, "clearing settled sweep of %s: %v\n", i.contract.Address(), err)
	}
}

// settleError occurs when the ledger fails to settle the movements of a call.
type settleError struct {
	err error
}

func (e settleError) Error() string {
	return "settling: " + e.err.Error()
}

func (e settleError) Unwrap() error {
	return e.err
}

func (i *Instance) give(ctx context.Context, call Call) error {
	if call.Sender == nil && call.Amount != 0 {
		return ErrNoSender
	}
	err := i.execute(ctx, func(f *frame) error {
		f.deposit(call.Sender, call.Amount, call.Authorization)
		return state.Give(f, call.Amount)
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(i.logWriter, "received %s from %s\n", call.Amount, senderAddress(call.Sender))
	return nil
}

func (i *Instance) close(ctx context.Context, call Call) error {
	var balance state.Amount
	err := i.execute(ctx, func(f *frame) error {
		balance = f.SelfBalance()
		return state.Close(state.Context{Owner: i.owner, Sender: call.Sender}, f)
	})
	// A transfer that the ledger cannot settle is a failed transfer.
	var se settleError
	if errors.As(err, &se) {
		return fmt.Errorf("%w: %v", state.ErrTransfer, se)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(i.logWriter, "closed and swept %s to %s\n", balance, i.owner.Address())
	return nil
}

func (i *Instance) view(ctx context.Context) (Result, error) {
	r, err := i.store.Load(ctx, i.contract.Address())
	if err != nil {
		return Result{}, err
	}
	f, err := i.newFrame(ctx, r.State)
	if err != nil {
		return Result{}, err
	}
	s, balance := state.View(f)
	return Result{State: s, Balance: balance, SweepPending: r.SweepPending}, nil
}

// SettlePending settles the sweep of a closed donation that failed to settle
// when the donation closed, moving the whole balance the contract holds to
// the owner. It returns the amount swept, which is zero if no sweep is
// pending.
func (i *Instance) SettlePending(ctx context.Context) (state.Amount, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	contract := i.contract.Address()
	r, err := i.store.Load(ctx, contract)
	if err != nil {
		return 0, err
	}
	if !r.SweepPending {
		return 0, nil
	}
	balance, err := i.ledger.Balance(ctx, i.contract)
	if err != nil {
		return 0, fmt.Errorf("getting balance of contract: %w", err)
	}
	if balance > 0 {
		err = i.ledger.Settle(ctx, []Movement{{From: i.contract, To: i.owner, Amount: balance}})
		if err != nil {
			return 0, fmt.Errorf("%w: %v", state.ErrTransfer, settleError{err})
		}
	}
	err = i.store.Save(ctx, contract, store.Record{State: r.State})
	if err != nil {
		return balance, fmt.Errorf("clearing settled sweep of %s: %w", contract, err)
	}
	fmt.Fprintf(i.logWriter, "settled pending sweep of %s to %s\n", balance, i.owner.Address())
	return balance, nil
}

// Give calls the give entrypoint with amount attached.
func (i *Instance) Give(ctx context.Context, sender *keypair.FromAddress, amount state.Amount) error {
	_, err := i.Invoke(ctx, Call{Entrypoint: EntrypointGive, Sender: sender, Amount: amount})
	return err
}

// Close calls the close entrypoint.
func (i *Instance) Close(ctx context.Context, sender *keypair.FromAddress) error {
	_, err := i.Invoke(ctx, Call{Entrypoint: EntrypointClose, Sender: sender})
	return err
}

// View calls the view entrypoint.
func (i *Instance) View(ctx context.Context) (state.DonationState, state.Amount, error) {
	r, err := i.Invoke(ctx, Call{Entrypoint: EntrypointView})
	if err != nil {
		return "", 0, err
	}
	return r.State, r.Balance, nil
}

func senderAddress(sender *keypair.FromAddress) string {
	if sender == nil {
		return "<none>"
	}
	return sender.Address()
}
