package agent

import (
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/stellar/go/keypair"
	"github.com/stellar/starlight/donation/msg"
	"github.com/stellar/starlight/donation/state"
)

// RejectError is returned by a Client when the agent rejects a call.
type RejectError struct {
	RejectReason int32
	Message      string
}

func (e *RejectError) Error() string {
	return fmt.Sprintf("rejected (%d): %s", e.RejectReason, e.Message)
}

// Unwrap returns the error of the state package that the reject reason
// identifies, so that errors.Is can match rejections.
func (e *RejectError) Unwrap() error {
	return state.ErrorFromRejectReason(e.RejectReason)
}

// Client makes calls of a donation contract served by an agent. Requests are
// signed by the client's signer, making the signer the sender of every call.
type Client struct {
	contract *keypair.FromAddress
	signer   *keypair.Full

	mu   sync.Mutex
	conn io.ReadWriter
	enc  *msg.Encoder
	dec  *msg.Decoder
}

func NewClient(conn io.ReadWriter, contract *keypair.FromAddress, signer *keypair.Full) *Client {
	return &Client{
		contract: contract,
		signer:   signer,
		conn:     conn,
		enc:      msg.NewEncoder(conn),
		dec:      msg.NewDecoder(conn),
	}
}

// ConnectTCP connects to an agent listening on the address.
func ConnectTCP(addr string, contract *keypair.FromAddress, signer *keypair.Full) (*Client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", addr, err)
	}
	return NewClient(conn, contract, signer), nil
}

// Close closes the connection to the agent.
func (c *Client) Close() error {
	if closer, ok := c.conn.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func (c *Client) request(t msg.Type, amount int64, payment string, sign bool) (*msg.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := msg.Message{
		Type: t,
		ID:   msg.NewID(),
		Request: &msg.Request{
			Contract: c.contract.Address(),
			Amount:   amount,
			Payment:  payment,
		},
	}
	if sign {
		if c.signer == nil {
			return nil, fmt.Errorf("signer required for %v", t)
		}
		err := msg.Sign(m.Type, m.ID, m.Request, c.signer)
		if err != nil {
			return nil, err
		}
	}
	err := c.enc.Encode(m)
	if err != nil {
		return nil, fmt.Errorf("sending %v: %w", t, err)
	}

	resp := msg.Message{}
	err = c.dec.Decode(&resp)
	if err != nil {
		return nil, fmt.Errorf("receiving response to %v: %w", t, err)
	}
	if resp.ID != m.ID || resp.Type != t.ResponseType() || resp.Response == nil {
		return nil, fmt.Errorf("unexpected response %v %s to %v %s", resp.Type, resp.ID, t, m.ID)
	}
	if resp.Response.RejectReason != state.RejectReasonNone {
		return nil, &RejectError{RejectReason: resp.Response.RejectReason, Message: resp.Response.Error}
	}
	return resp.Response, nil
}

// Give gives the amount to the donation. The agent's ledger must be able to
// sign for the client's account.
func (c *Client) Give(amount state.Amount) error {
	return c.GiveWithPayment(amount, "")
}

// GiveWithPayment gives the amount to the donation, authorized by a payment
// transaction the client's signer has signed, such as one built by
// horizon.DonationPayment.
func (c *Client) GiveWithPayment(amount state.Amount, payment string) error {
	_, err := c.request(msg.TypeGiveRequest, int64(amount), payment, true)
	return err
}

// CloseDonation closes the donation, sweeping its balance to the owner. Only
// succeeds if the client's signer is the owner.
func (c *Client) CloseDonation() error {
	_, err := c.request(msg.TypeCloseRequest, 0, "", true)
	return err
}

// View returns the state and balance of the donation.
func (c *Client) View() (state.DonationState, state.Amount, error) {
	resp, err := c.request(msg.TypeViewRequest, 0, "", false)
	if err != nil {
		return "", 0, err
	}
	var s state.DonationState
	err = s.UnmarshalText([]byte(resp.State))
	if err != nil {
		return "", 0, err
	}
	return s, state.Amount(resp.Balance), nil
}
