// Package agent contains an agent that serves calls of a deployed donation
// contract over network connections, and a client for making those calls.
//
// Requests that can change the contract are signed by their sender, and the
// agent verifies the signature before executing the call so that the sender
// of a close is known to be its signer.
package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/stellar/go/keypair"
	"github.com/stellar/starlight/donation/host"
	"github.com/stellar/starlight/donation/msg"
	"github.com/stellar/starlight/donation/state"
)

var (
	ErrReplayed      = errors.New("request id already used")
	ErrWrongContract = errors.New("request is for a different contract")
)

type Config struct {
	Instance *host.Instance

	LogWriter io.Writer

	Events chan<- Event
}

// Agent serves calls of a donation contract instance.
type Agent struct {
	instance *host.Instance

	logWriter io.Writer

	events chan<- Event

	// mu is a lock for the mutable fields of this type.
	mu       sync.Mutex
	seenIDs  map[string]bool
	closers  map[io.Closer]struct{}
	shutdown bool
}

func NewAgent(c Config) *Agent {
	logWriter := c.LogWriter
	if logWriter == nil {
		logWriter = io.Discard
	}
	return &Agent{
		instance:  c.Instance,
		logWriter: logWriter,
		events:    c.Events,
		seenIDs:   map[string]bool{},
		closers:   map[io.Closer]struct{}{},
	}
}

func (a *Agent) emit(e Event) {
	if a.events != nil {
		a.events <- e
	}
}

// ServeConn receives requests from the connection and sends a response to
// each, until the connection is closed.
func (a *Agent) ServeConn(conn io.ReadWriter) error {
	dec := msg.NewDecoder(conn)
	enc := msg.NewEncoder(conn)
	for {
		m := msg.Message{}
		err := dec.Decode(&m)
		if err == io.EOF {
			fmt.Fprintln(a.logWriter, "error receiving: EOF, stopping receiving")
			return nil
		}
		if err != nil {
			return fmt.Errorf("receiving: %w", err)
		}
		resp := a.handle(m)
		err = enc.Encode(resp)
		if err != nil {
			return fmt.Errorf("sending %v: %w", resp.Type, err)
		}
	}
}

var entrypoints = map[msg.Type]host.Entrypoint{
	msg.TypeGiveRequest:  host.EntrypointGive,
	msg.TypeCloseRequest: host.EntrypointClose,
	msg.TypeViewRequest:  host.EntrypointView,
}

func (a *Agent) handle(m msg.Message) msg.Message {
	fmt.Fprintf(a.logWriter, "handling %v %s\n", m.Type, m.ID)
	resp := msg.Message{Type: m.Type.ResponseType(), ID: m.ID}

	entrypoint, ok := entrypoints[m.Type]
	if !ok {
		err := fmt.Errorf("handling message %v: unrecognized message type", m.Type)
		a.emit(ErrorEvent{Err: err})
		resp.Response = &msg.Response{RejectReason: state.RejectReasonUnspecified, Error: err.Error()}
		return resp
	}

	r, sender, err := a.call(entrypoint, m)
	if err != nil {
		fmt.Fprintf(a.logWriter, "rejected %v %s: %v\n", m.Type, m.ID, err)
		reason := state.RejectReason(err)
		a.emit(RejectedEvent{Entrypoint: entrypoint, Sender: sender, RejectReason: reason, Err: err})
		resp.Response = &msg.Response{RejectReason: reason, Error: err.Error()}
		return resp
	}

	switch entrypoint {
	case host.EntrypointGive:
		a.emit(DonationReceivedEvent{Sender: sender, Amount: state.Amount(m.Request.Amount)})
	case host.EntrypointClose:
		a.emit(ClosedEvent{Owner: sender})
	}
	resp.Response = &msg.Response{State: string(r.State), Balance: int64(r.Balance)}
	return resp
}

func (a *Agent) call(entrypoint host.Entrypoint, m msg.Message) (host.Result, *keypair.FromAddress, error) {
	if m.Request == nil {
		return host.Result{}, nil, fmt.Errorf("handling message %v: no request", m.Type)
	}
	if m.Request.Contract != a.instance.Contract().Address() {
		return host.Result{}, nil, ErrWrongContract
	}

	var sender *keypair.FromAddress
	if entrypoint != host.EntrypointView {
		var err error
		sender, err = msg.Verify(m.Type, m.ID, m.Request)
		if err != nil {
			return host.Result{}, nil, err
		}
		err = a.useID(m.ID)
		if err != nil {
			return host.Result{}, sender, err
		}
	}

	r, err := a.instance.Invoke(context.Background(), host.Call{
		Entrypoint:    entrypoint,
		Sender:        sender,
		Amount:        state.Amount(m.Request.Amount),
		Authorization: m.Request.Payment,
	})
	return r, sender, err
}

// useID records the request ID as used, returning ErrReplayed if it has been
// used before.
func (a *Agent) useID(id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if id == "" {
		return fmt.Errorf("request id required")
	}
	if a.seenIDs[id] {
		return fmt.Errorf("%s: %w", id, ErrReplayed)
	}
	a.seenIDs[id] = true
	return nil
}

func (a *Agent) track(c io.Closer) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.shutdown {
		return false
	}
	a.closers[c] = struct{}{}
	return true
}

func (a *Agent) untrack(c io.Closer) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.closers, c)
}

// Close stops any listeners and closes any connections being served.
func (a *Agent) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.shutdown = true
	var firstErr error
	for c := range a.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(a.closers, c)
	}
	return firstErr
}
