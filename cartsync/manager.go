package cartsync

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Manager hands out one Synchronizer per signed-in user. Sessions are
// created lazily on first use and torn down on sign-out.
type Manager struct {
	store  CartStore
	ledger OrderLedger
	log    zerolog.Logger

	mu       sync.Mutex
	sessions map[primitive.ObjectID]*Synchronizer
}

func NewManager(store CartStore, ledger OrderLedger, log zerolog.Logger) *Manager {
	return &Manager{
		store:    store,
		ledger:   ledger,
		log:      log,
		sessions: make(map[primitive.ObjectID]*Synchronizer),
	}
}

// Session returns the user's cart synchronizer, loading the remote cart
// and subscribing to its changes on first use. The lock only guards the
// session map; one user's slow cart load must not stall everyone else,
// so creation runs unlocked and concurrent creators for the same user
// are reconciled afterwards.
func (m *Manager) Session(ctx context.Context, userID primitive.ObjectID) (*Synchronizer, error) {
	if userID.IsZero() {
		return nil, ErrAuthRequired
	}

	m.mu.Lock()
	if s, ok := m.sessions[userID]; ok {
		m.mu.Unlock()
		return s, nil
	}
	m.mu.Unlock()

	s, err := newSynchronizer(ctx, userID, m.store, m.ledger, m.log)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.sessions[userID]; ok {
		s.Close()
		return existing, nil
	}
	m.sessions[userID] = s
	return s, nil
}

// End closes the user's session on sign-out. The cart document stays in
// the store; only the in-memory state and the subscription go away.
func (m *Manager) End(userID primitive.ObjectID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[userID]; ok {
		s.Close()
		delete(m.sessions, userID)
	}
}

func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, s := range m.sessions {
		s.Close()
		delete(m.sessions, id)
	}
}
