package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/mmynk/tripsplit/internal/metrics"
	"github.com/mmynk/tripsplit/internal/models"
)

// Registry owns the open sessions, one per trip.
type Registry struct {
	deps   Dependencies
	opts   Options
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry creates an empty registry whose sessions share deps and opts.
func NewRegistry(deps Dependencies, opts Options, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		deps:     deps,
		opts:     opts,
		logger:   logger,
		sessions: make(map[string]*Session),
	}
}

// Open returns the trip's session, creating it on first use.
func (r *Registry) Open(trip *models.Trip) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[trip.ID]; ok {
		return s
	}
	s := New(trip.ID, trip.HomeCurrency, r.deps, r.opts, r.logger)
	r.sessions[trip.ID] = s
	metrics.ActiveSessions.Set(float64(len(r.sessions)))
	r.logger.Debug("Session opened", "trip_id", trip.ID)
	return s
}

// Get returns the trip's session if it is open.
func (r *Registry) Get(tripID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[tripID]
	return s, ok
}

// Close discards the trip's session. It reports whether one was open.
func (r *Registry) Close(tripID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[tripID]; !ok {
		return false
	}
	delete(r.sessions, tripID)
	metrics.ActiveSessions.Set(float64(len(r.sessions)))
	r.logger.Debug("Session closed", "trip_id", tripID)
	return true
}

// EvictIdle closes sessions unused for longer than maxIdle and returns how
// many were closed.
func (r *Registry) EvictIdle(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)

	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := 0
	for id, s := range r.sessions {
		if s.idleSince().Before(cutoff) {
			delete(r.sessions, id)
			evicted++
		}
	}
	metrics.ActiveSessions.Set(float64(len(r.sessions)))
	if evicted > 0 {
		r.logger.Info("Evicted idle sessions", "count", evicted, "remaining", len(r.sessions))
	}
	return evicted
}

// Len returns the number of open sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
