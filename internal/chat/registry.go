package chat

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/velikanov/folio/internal/lang"
)

const (
	defaultSessionTTL  = 30 * time.Minute
	defaultSweepPeriod = time.Minute
)

// Registry holds live sessions keyed by ID and evicts idle ones.
type Registry struct {
	deps Deps
	ttl  time.Duration

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry creates an empty registry. ttl <= 0 selects the default.
func NewRegistry(deps Deps, ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	if deps.Clock == nil {
		deps.Clock = realClock{}
	}
	return &Registry{
		deps:     deps,
		ttl:      ttl,
		sessions: make(map[string]*Session),
	}
}

// Create starts a new session in the given language.
func (r *Registry) Create(language lang.Language) *Session {
	s := NewSession(uuid.NewString(), r.deps, language)
	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()
	return s
}

// Get returns the session with the given ID, or false.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Delete removes a session. Deleting an unknown ID is a no-op.
func (r *Registry) Delete(id string) {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep evicts sessions idle longer than the TTL and returns the count.
func (r *Registry) Sweep() int {
	cutoff := r.deps.Clock.Now().Add(-r.ttl)
	r.mu.Lock()
	defer r.mu.Unlock()
	evicted := 0
	for id, s := range r.sessions {
		if s.LastActive().Before(cutoff) && !s.Responding() {
			delete(r.sessions, id)
			evicted++
		}
	}
	return evicted
}

// Run sweeps periodically until the context is cancelled.
func (r *Registry) Run(ctx context.Context) {
	ticker := time.NewTicker(defaultSweepPeriod)
	defer ticker.Stop()

	slog.Info("session registry started", "ttl", r.ttl)
	for {
		select {
		case <-ctx.Done():
			slog.Info("session registry stopped")
			return
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				slog.Debug("evicted idle sessions", "count", n)
			}
		}
	}
}
