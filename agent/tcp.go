package agent

import (
	"errors"
	"fmt"
	"net"
)

// ServeTCP listens on the address and serves every connection accepted until
// the agent is closed.
func (a *Agent) ServeTCP(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	return a.Serve(ln)
}

// Serve serves every connection accepted by the listener until the agent is
// closed.
func (a *Agent) Serve(ln net.Listener) error {
	if !a.track(ln) {
		ln.Close()
		return fmt.Errorf("agent closed")
	}
	defer a.untrack(ln)
	fmt.Fprintf(a.logWriter, "listening on %v\n", ln.Addr())
	for {
		conn, err := ln.Accept()
		if errors.Is(err, net.ErrClosed) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("accepting incoming connection: %w", err)
		}
		if !a.track(conn) {
			conn.Close()
			return nil
		}
		fmt.Fprintf(a.logWriter, "accepted connection from %v\n", conn.RemoteAddr())
		a.emit(ConnectedEvent{RemoteAddr: conn.RemoteAddr().String()})
		go func() {
			defer a.untrack(conn)
			defer conn.Close()
			err := a.ServeConn(conn)
			if err != nil && !errors.Is(err, net.ErrClosed) {
				fmt.Fprintf(a.logWriter, "error serving %v: %v\n", conn.RemoteAddr(), err)
				a.emit(ErrorEvent{Err: err})
			}
		}()
	}
}
