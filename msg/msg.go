// Package msg contains the messages exchanged between a client and an agent
// serving a donation contract.
package msg

import (
	"crypto/sha256"
	"encoding/gob"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/stellar/go/keypair"
)

type Type int

const (
	TypeGiveRequest   Type = 10
	TypeGiveResponse  Type = 11
	TypeCloseRequest  Type = 20
	TypeCloseResponse Type = 21
	TypeViewRequest   Type = 30
	TypeViewResponse  Type = 31
)

// ResponseType returns the type of the response to a request of type t.
func (t Type) ResponseType() Type {
	return t + 1
}

func (t Type) String() string {
	switch t {
	case TypeGiveRequest:
		return "give_request"
	case TypeGiveResponse:
		return "give_response"
	case TypeCloseRequest:
		return "close_request"
	case TypeCloseResponse:
		return "close_response"
	case TypeViewRequest:
		return "view_request"
	case TypeViewResponse:
		return "view_response"
	}
	return fmt.Sprintf("unknown(%d)", int(t))
}

type Message struct {
	Type Type

	// ID identifies a request and is repeated in its response.
	ID string

	Request  *Request
	Response *Response
}

// Request is a call of the contract by Sender. Signature is the sender's
// signature of the request's Payload.
type Request struct {
	Contract string
	Sender   string
	Amount   int64
	// Payment is a transaction XDR, signed by the sender, that pays Amount to
	// the contract. Senders whose accounts the agent cannot sign for attach it
	// to give requests.
	Payment   string
	Signature []byte
}

// Response is the result of a request. RejectReason is zero if the request was
// accepted.
type Response struct {
	RejectReason int32
	Error        string
	State        string
	Balance      int64
}

// NewID returns a new random request ID.
func NewID() string {
	return uuid.NewString()
}

// Payload returns the bytes that the sender of a request signs. The payload
// commits to the request type, the ID, and every request field other than the
// signature.
func Payload(t Type, id string, r *Request) []byte {
	h := sha256.Sum256([]byte(fmt.Sprintf("donation/%d/%s/%s/%s/%d/%s", t, id, r.Contract, r.Sender, r.Amount, r.Payment)))
	return h[:]
}

// Sign signs the request with the signer and sets the sender.
func Sign(t Type, id string, r *Request, signer *keypair.Full) error {
	r.Sender = signer.Address()
	sig, err := signer.Sign(Payload(t, id, r))
	if err != nil {
		return fmt.Errorf("signing request: %w", err)
	}
	r.Signature = sig
	return nil
}

// Verify verifies that the request is signed by its sender.
func Verify(t Type, id string, r *Request) (*keypair.FromAddress, error) {
	sender, err := keypair.ParseAddress(r.Sender)
	if err != nil {
		return nil, fmt.Errorf("parsing sender: %w", err)
	}
	err = sender.Verify(Payload(t, id, r), r.Signature)
	if err != nil {
		return nil, fmt.Errorf("verifying signature of %s: %w", r.Sender, err)
	}
	return sender, nil
}

type Encoder = gob.Encoder

func NewEncoder(w io.Writer) *Encoder {
	return gob.NewEncoder(w)
}

type Decoder = gob.Decoder

func NewDecoder(r io.Reader) *Decoder {
	return gob.NewDecoder(r)
}
