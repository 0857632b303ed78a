package session

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ontime/billsplit/internal/models"
	"github.com/ontime/billsplit/internal/offchain"
)

type memStore struct {
	mu       sync.Mutex
	sessions map[string]*models.OffchainSession
}

func newMemStore() *memStore {
	return &memStore{sessions: make(map[string]*models.OffchainSession)}
}

func (s *memStore) CreateSession(ctx context.Context, rec *models.OffchainSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rec
	s.sessions[rec.ID] = &cp
	return nil
}

func (s *memStore) UpdateSessionState(ctx context.Context, id, state string, closedAt int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.sessions[id]
	if !ok {
		return errors.New("not found")
	}
	rec.State = state
	rec.ClosedAt = closedAt
	return nil
}

type fakeTransport struct {
	openErr error
	sendErr error
	sent    []offchain.Message
	closed  []string
}

func (f *fakeTransport) Open(ctx context.Context, meta offchain.Metadata) (string, error) {
	if f.openErr != nil {
		return "", f.openErr
	}
	return "sess-" + meta.ExpenseID, nil
}

func (f *fakeTransport) Send(ctx context.Context, id string, msg offchain.Message) (offchain.Ack, error) {
	if f.sendErr != nil {
		return offchain.Ack{}, f.sendErr
	}
	f.sent = append(f.sent, msg)
	return offchain.Ack{SessionID: id, Sequence: uint64(len(f.sent))}, nil
}

func (f *fakeTransport) Close(ctx context.Context, id string) error {
	f.closed = append(f.closed, id)
	return nil
}

func TestNotifier_Flow(t *testing.T) {
	store := newMemStore()
	tr := &fakeTransport{}
	n := NewNotifier(offchain.Static(tr), store)
	ctx := context.Background()

	flow := n.Begin(ctx, "0xabc", offchain.Metadata{ExpenseID: "7"})
	if flow.State() != SessionOpen || flow.SessionID() != "sess-7" {
		t.Fatalf("after Begin: state=%s id=%q", flow.State(), flow.SessionID())
	}
	if rec := store.sessions["sess-7"]; rec == nil || rec.Identity != "0xabc" || rec.State != string(SessionOpen) {
		t.Fatalf("session record = %+v", rec)
	}

	if !flow.NotifyPayment(ctx, offchain.Payment{ExpenseID: "7", RewardLabel: "Fast", Reward: 1}) {
		t.Fatal("NotifyPayment returned false")
	}
	if flow.State() != Settling {
		t.Errorf("state after notify = %s, want settling", flow.State())
	}
	if len(tr.sent) != 1 || tr.sent[0].Type != offchain.TypePayment {
		t.Errorf("sent = %+v", tr.sent)
	}

	flow.Finish(ctx)
	if flow.State() != Closed {
		t.Errorf("state after finish = %s, want closed", flow.State())
	}
	if len(tr.closed) != 1 {
		t.Errorf("transport close calls = %d", len(tr.closed))
	}
	if rec := store.sessions["sess-7"]; rec.State != string(Closed) || rec.ClosedAt == 0 {
		t.Errorf("closed record = %+v", rec)
	}
}

func TestNotifier_Degrades(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name      string
		notifier  *Notifier
		wantState State
	}{
		{name: "nil notifier", notifier: nil, wantState: Disconnected},
		{name: "no initializer", notifier: NewNotifier(nil, nil), wantState: Disconnected},
		{name: "disabled transport", notifier: NewNotifier(offchain.Static(offchain.Disabled{}), nil), wantState: Closed},
		{name: "initializer fails", notifier: NewNotifier(func(context.Context, string) (offchain.Transport, error) {
			return nil, errors.New("no broker")
		}, nil), wantState: Disconnected},
		{name: "open fails", notifier: NewNotifier(offchain.Static(&fakeTransport{openErr: errors.New("boom")}), nil), wantState: Closed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flow := tt.notifier.Begin(ctx, "0xabc", offchain.Metadata{ExpenseID: "1"})
			if flow.State() != tt.wantState {
				t.Errorf("state = %s, want %s", flow.State(), tt.wantState)
			}
			if flow.NotifyPayment(ctx, offchain.Payment{ExpenseID: "1"}) {
				t.Error("NotifyPayment should report false without a session")
			}
			flow.Finish(ctx)
		})
	}
}

func TestNotifier_SendFailureStillCloses(t *testing.T) {
	tr := &fakeTransport{sendErr: offchain.ErrNotConfirmed}
	n := NewNotifier(offchain.Static(tr), newMemStore())
	ctx := context.Background()

	flow := n.Begin(ctx, "0xabc", offchain.Metadata{ExpenseID: "3"})
	if flow.NotifyPayment(ctx, offchain.Payment{ExpenseID: "3"}) {
		t.Error("NotifyPayment should fail when send fails")
	}
	flow.Finish(ctx)
	if flow.State() != Closed || len(tr.closed) != 1 {
		t.Errorf("state=%s closes=%d", flow.State(), len(tr.closed))
	}
}
