package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ontime/billsplit/internal/models"
	"github.com/ontime/billsplit/internal/offchain"
)

// Store persists session records. Implemented by storage.Store.
type Store interface {
	CreateSession(ctx context.Context, s *models.OffchainSession) error
	UpdateSessionState(ctx context.Context, id, state string, closedAt int64) error
}

// Notifier announces payments through the off-chain transport. Every
// transport or store failure is logged and swallowed: settlement goes on
// without a notification.
type Notifier struct {
	connect offchain.Initializer
	store Store
	now   func() time.Time
}

// NewNotifier creates a notifier. connect may be nil to disable sessions and
// store may be nil to skip persistence.
func NewNotifier(connect offchain.Initializer, store Store) *Notifier {
	return &Notifier{connect: connect, store: store, now: time.Now}
}

// Flow is one payment's pass through the session lifecycle.
type Flow struct {
	n         *Notifier
	machine   *Machine
	transport offchain.Transport
	identity  string
}

// Begin connects and opens a session for identity. The returned flow is
// always usable; if anything failed it simply has no session.
func (n *Notifier) Begin(ctx context.Context, identity string, meta offchain.Metadata) *Flow {
	f := &Flow{n: n, machine: NewMachine(), identity: identity}
	if n == nil || n.connect == nil {
		return f
	}

	_ = f.machine.Transition(Connecting)
	t, err := n.connect(ctx, identity)
	if err != nil || t == nil {
		if !errors.Is(err, offchain.ErrUnavailable) {
			slog.Warn("off-chain transport initialization failed", "identity", identity, "error", err)
		}
		_ = f.machine.Transition(Disconnected)
		return f
	}
	_ = f.machine.Transition(Connected)
	f.transport = t

	meta.Identity = identity
	id, err := t.Open(ctx, meta)
	if err != nil || id == "" {
		if !errors.Is(err, offchain.ErrUnavailable) {
			slog.Warn("failed to open off-chain session", "identity", identity, "error", err)
		}
		_ = f.machine.Transition(Closed)
		return f
	}
	if err := f.machine.Open(id); err != nil {
		slog.Error("session state machine rejected open", "session_id", id, "error", err)
		return f
	}

	if n.store != nil {
		rec := &models.OffchainSession{
			ID:        id,
			Identity:  identity,
			ExpenseID: meta.ExpenseID,
			State:     string(SessionOpen),
			OpenedAt:  n.now().Unix(),
		}
		if err := n.store.CreateSession(ctx, rec); err != nil {
			slog.Warn("failed to record off-chain session", "session_id", id, "error", err)
		}
	}
	slog.Debug("off-chain session opened", "session_id", id, "identity", identity)
	return f
}

// State returns the flow's current lifecycle state.
func (f *Flow) State() State {
	return f.machine.State()
}

// SessionID returns the open session id, or "".
func (f *Flow) SessionID() string {
	return f.machine.SessionID()
}

// NotifyPayment moves the session to Settling and sends the payment message.
// It reports whether the transport acknowledged the message.
func (f *Flow) NotifyPayment(ctx context.Context, p offchain.Payment) bool {
	if f.transport == nil || f.machine.State() != SessionOpen {
		return false
	}
	if err := f.machine.Transition(Settling); err != nil {
		slog.Error("session state machine rejected settle", "session_id", f.SessionID(), "error", err)
		return false
	}

	msg, err := offchain.NewPaymentMessage(p)
	if err != nil {
		slog.Warn("failed to encode payment message", "error", err)
		return false
	}
	ack, err := f.transport.Send(ctx, f.SessionID(), msg)
	if err != nil {
		slog.Warn("failed to send off-chain payment", "session_id", f.SessionID(), "expense_id", p.ExpenseID, "error", err)
		return false
	}
	slog.Info("off-chain payment sent", "session_id", ack.SessionID, "sequence", ack.Sequence, "expense_id", p.ExpenseID)
	f.n.updateState(ctx, f.SessionID(), Settling, 0)
	return true
}

// Finish closes the session if one is open. It is safe to call on any flow.
func (f *Flow) Finish(ctx context.Context) {
	state := f.machine.State()
	if f.transport == nil || (state != SessionOpen && state != Settling) {
		return
	}
	id := f.SessionID()
	if err := f.transport.Close(ctx, id); err != nil {
		slog.Warn("failed to close off-chain session", "session_id", id, "error", err)
	}
	if err := f.machine.Transition(Closed); err != nil {
		slog.Error("session state machine rejected close", "session_id", id, "error", err)
		return
	}
	f.n.updateState(ctx, id, Closed, f.n.now().Unix())
}

func (n *Notifier) updateState(ctx context.Context, id string, state State, closedAt int64) {
	if n.store == nil {
		return
	}
	if err := n.store.UpdateSessionState(ctx, id, string(state), closedAt); err != nil {
		slog.Warn("failed to update off-chain session", "session_id", id, "state", state, "error", err)
	}
}
