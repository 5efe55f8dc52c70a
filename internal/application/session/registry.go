package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/powers-protocol/powers/pkg/ports"
	"go.uber.org/zap"
)

// Registry keeps one Store per console session. Sessions idle for longer
// than the idle timeout are dropped on the next Create.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*entry
	idle     time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

type entry struct {
	store   *Store
	touched time.Time
}

// NewRegistry creates an empty registry. A non-positive idle keeps sessions
// until they are removed.
func NewRegistry(idle time.Duration, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		sessions: make(map[string]*entry),
		idle:     idle,
		now:      time.Now,
		logger:   logger,
	}
}

// Create starts a session bound to powers on chainID.
func (r *Registry) Create(chainID uint64, powers string) (string, State) {
	id := uuid.New().String()
	store := NewStore(r.logger.With(zap.String("session_id", id)))
	state := store.Open(chainID, powers)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.pruneLocked()
	r.sessions[id] = &entry{store: store, touched: r.now()}
	return id, state
}

// Get returns the store of a session, or ports.ErrNotFound.
func (r *Registry) Get(id string) (*Store, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, ports.ErrNotFound)
	}
	e.touched = r.now()
	return e.store, nil
}

// Remove clears a session and forgets it.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	e, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("session %s: %w", id, ports.ErrNotFound)
	}
	e.store.Clear()
	return nil
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *Registry) pruneLocked() {
	if r.idle <= 0 {
		return
	}
	cutoff := r.now().Add(-r.idle)
	for id, e := range r.sessions {
		if e.touched.Before(cutoff) {
			delete(r.sessions, id)
			r.logger.Debug("session expired", zap.String("session_id", id))
		}
	}
}
