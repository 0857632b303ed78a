package offchain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Channel is the subset of *amqp.Channel the adapter uses.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	Confirm(noWait bool) error
	NotifyPublish(confirm chan amqp.Confirmation) chan amqp.Confirmation
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// envelope is the JSON body of every published message.
type envelope struct {
	App       string          `json:"app"`
	SessionID string          `json:"session_id"`
	Identity  string          `json:"identity"`
	Type      MessageType     `json:"type"`
	Sequence  uint64          `json:"sequence"`
	SentAt    time.Time       `json:"sent_at"`
	Data      json.RawMessage `json:"data,omitempty"`
}

type amqpSession struct {
	identity string
	seq      uint64
}

var _ Transport = (*AMQP)(nil)

// AMQP publishes session messages to a topic exchange with publisher confirms.
// Routing keys have the form session.<id>.<type>.
type AMQP struct {
	conn     *amqp.Connection
	channel  Channel
	exchange string
	confirms chan amqp.Confirmation
	logger   *slog.Logger
	now      func() time.Time

	// mu serializes publishes so confirms pair with their messages.
	mu        sync.Mutex
	published uint64
	sessions  map[string]*amqpSession
}

// DialAMQP connects to the broker at rawURL and prepares the exchange.
func DialAMQP(rawURL, exchange string, logger *slog.Logger) (*AMQP, error) {
	cleanURL, err := sanitizeAMQPURL(rawURL)
	if err != nil {
		return nil, err
	}

	conn, err := amqp.DialConfig(cleanURL, amqp.Config{Dial: amqp.DefaultDial(10 * time.Second)})
	if err != nil {
		return nil, fmt.Errorf("failed to dial broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	t, err := NewAMQP(ch, exchange, logger)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}
	t.conn = conn
	return t, nil
}

// NewAMQP wraps an open channel. The exchange is declared as a durable topic
// exchange and the channel is put in confirm mode.
func NewAMQP(ch Channel, exchange string, logger *slog.Logger) (*AMQP, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}
	if err := ch.Confirm(false); err != nil {
		return nil, fmt.Errorf("failed to enable publisher confirms: %w", err)
	}
	return &AMQP{
		channel:  ch,
		exchange: exchange,
		confirms: ch.NotifyPublish(make(chan amqp.Confirmation, 1)),
		logger:   logger.With("component", "offchain_amqp"),
		now:      time.Now,
		sessions: make(map[string]*amqpSession),
	}, nil
}

// Open implements Transport.
func (a *AMQP) Open(ctx context.Context, meta Metadata) (string, error) {
	if meta.Identity == "" {
		return "", errors.New("identity is required")
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return "", err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	id := uuid.NewString()
	s := &amqpSession{identity: meta.Identity}
	if _, err := a.publish(ctx, id, s, TypeSessionOpen, data); err != nil {
		return "", err
	}
	a.sessions[id] = s
	a.logger.Debug("session opened", "session_id", id, "identity", meta.Identity)
	return id, nil
}

// Send implements Transport.
func (a *AMQP) Send(ctx context.Context, sessionID string, msg Message) (Ack, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, ok := a.sessions[sessionID]
	if !ok {
		return Ack{}, fmt.Errorf("%w: %s", ErrUnknownSession, sessionID)
	}
	return a.publish(ctx, sessionID, s, msg.Type, msg.Data)
}

// Close implements Transport.
func (a *AMQP) Close(ctx context.Context, sessionID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, ok := a.sessions[sessionID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSession, sessionID)
	}
	delete(a.sessions, sessionID)
	_, err := a.publish(ctx, sessionID, s, TypeSessionClose, nil)
	return err
}

// Shutdown closes the channel and the connection, if this adapter dialed it.
func (a *AMQP) Shutdown() {
	if a.channel != nil {
		a.channel.Close()
	}
	if a.conn != nil {
		a.conn.Close()
	}
}

// publish sends one envelope and waits for the broker confirm. Callers hold mu.
func (a *AMQP) publish(ctx context.Context, sessionID string, s *amqpSession, typ MessageType, data json.RawMessage) (Ack, error) {
	s.seq++
	env := envelope{
		App:       AppName,
		SessionID: sessionID,
		Identity:  s.identity,
		Type:      typ,
		Sequence:  s.seq,
		SentAt:    a.now().UTC(),
		Data:      data,
	}
	body, err := json.Marshal(env)
	if err != nil {
		return Ack{}, fmt.Errorf("failed to marshal envelope: %w", err)
	}

	key := routingKey(sessionID, typ)
	err = a.channel.PublishWithContext(ctx, a.exchange, key, false, false, amqp.Publishing{
		ContentType: "application/json",
		MessageId:   fmt.Sprintf("%s-%d", sessionID, s.seq),
		AppId:       AppName,
		Type:        string(typ),
		Timestamp:   env.SentAt,
		Body:        body,
	})
	if err != nil {
		return Ack{}, fmt.Errorf("failed to publish %s: %w", key, err)
	}
	a.published++

	if err := a.waitConfirm(ctx, a.published); err != nil {
		return Ack{}, err
	}
	return Ack{SessionID: sessionID, Sequence: s.seq, SentAt: env.SentAt}, nil
}

// waitConfirm reads confirms until tag arrives. Confirms left behind by a
// cancelled publish are skipped.
func (a *AMQP) waitConfirm(ctx context.Context, tag uint64) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case confirm, ok := <-a.confirms:
			if !ok {
				return fmt.Errorf("%w: channel closed", ErrUnavailable)
			}
			if confirm.DeliveryTag < tag {
				continue
			}
			if !confirm.Ack {
				return fmt.Errorf("%w: delivery tag %d", ErrNotConfirmed, confirm.DeliveryTag)
			}
			return nil
		}
	}
}

func routingKey(sessionID string, typ MessageType) string {
	return "session." + sessionID + "." + strings.ToLower(string(typ))
}

func sanitizeAMQPURL(raw string) (string, error) {
	clean := strings.Trim(strings.TrimSpace(raw), "\"'")
	u, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("AMQP scheme must be either 'amqp://' or 'amqps://'")
	}
	return clean, nil
}
