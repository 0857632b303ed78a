// Package offchain carries optional payment notifications alongside on-chain
// settlement. Nothing here is authoritative: callers must keep working when
// the transport is missing or failing.
package offchain

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// AppName identifies this application on the session network.
const AppName = "OnTime-BillSplit"

// MessageType is the kind of envelope published for a session.
type MessageType string

const (
	TypeSessionOpen  MessageType = "SESSION_OPEN"
	TypePayment      MessageType = "PAYMENT"
	TypeSessionClose MessageType = "SESSION_CLOSE"
)

var (
	ErrUnavailable    = errors.New("off-chain transport unavailable")
	ErrUnknownSession = errors.New("unknown off-chain session")
	ErrNotConfirmed   = errors.New("message was not confirmed by the broker")
)

// Metadata describes a session when it is opened.
type Metadata struct {
	Identity     string   `json:"identity"`
	ExpenseID    string   `json:"expense_id,omitempty"`
	Participants []string `json:"participants,omitempty"`
}

// Payment is the payload of a PAYMENT message.
type Payment struct {
	ExpenseID   string `json:"expense_id"`
	Payer       string `json:"payer"`
	Participant string `json:"participant"`
	AmountWei   string `json:"amount_wei"`
	RewardLabel string `json:"reward_label"`
	Reward      int64  `json:"reward"`
	TxHash      string `json:"tx_hash,omitempty"`
}

// Message is one payload sent within a session.
type Message struct {
	Type MessageType     `json:"type"`
	Data json.RawMessage `json:"data"`
}

// NewPaymentMessage wraps p as a PAYMENT message.
func NewPaymentMessage(p Payment) (Message, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return Message{}, err
	}
	return Message{Type: TypePayment, Data: data}, nil
}

// Ack confirms that a message left this process.
type Ack struct {
	SessionID string
	Sequence  uint64
	SentAt    time.Time
}

// Transport is the fixed capability every session adapter implements.
type Transport interface {
	Open(ctx context.Context, meta Metadata) (string, error)
	Send(ctx context.Context, sessionID string, msg Message) (Ack, error)
	Close(ctx context.Context, sessionID string) error
}

// Initializer prepares a transport for one identity. It returns
// ErrUnavailable when sessions cannot be used.
type Initializer func(ctx context.Context, identity string) (Transport, error)

// Static returns an Initializer that hands out t for every identity.
func Static(t Transport) Initializer {
	return func(ctx context.Context, identity string) (Transport, error) {
		if identity == "" {
			return nil, errors.New("identity is required")
		}
		if t == nil {
			return nil, ErrUnavailable
		}
		return t, nil
	}
}

var _ Transport = Disabled{}

// Disabled is the transport used when no broker is configured.
type Disabled struct{}

func (Disabled) Open(context.Context, Metadata) (string, error) { return "", ErrUnavailable }

func (Disabled) Send(context.Context, string, Message) (Ack, error) { return Ack{}, ErrUnavailable }

func (Disabled) Close(context.Context, string) error { return ErrUnavailable }
