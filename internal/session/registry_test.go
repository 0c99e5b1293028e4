package session

import (
	"testing"
	"time"

	"github.com/mmynk/tripsplit/internal/models"
)

func TestRegistry_OpenReturnsSameSession(t *testing.T) {
	store := newStore(t)
	r := NewRegistry(deps(store, rates(t)), Options{}, nil)
	trip := &models.Trip{ID: tripID, HomeCurrency: "usd"}

	a := r.Open(trip)
	b := r.Open(trip)
	if a != b {
		t.Error("Open created a second session for the same trip")
	}
	if r.Len() != 1 {
		t.Errorf("Len = %d, want 1", r.Len())
	}

	if !r.Close(tripID) {
		t.Error("Close reported no session")
	}
	if r.Close(tripID) {
		t.Error("second Close reported a session")
	}
	if _, ok := r.Get(tripID); ok {
		t.Error("Get found a closed session")
	}
}

func TestRegistry_EvictIdle(t *testing.T) {
	store := newStore(t)
	r := NewRegistry(deps(store, rates(t)), Options{}, nil)

	idle := r.Open(&models.Trip{ID: "idle", HomeCurrency: "usd"})
	r.Open(&models.Trip{ID: "busy", HomeCurrency: "usd"})

	idle.mu.Lock()
	idle.lastUsed = time.Now().Add(-time.Hour)
	idle.mu.Unlock()

	if n := r.EvictIdle(30 * time.Minute); n != 1 {
		t.Errorf("EvictIdle = %d, want 1", n)
	}
	if _, ok := r.Get("idle"); ok {
		t.Error("idle session survived eviction")
	}
	if _, ok := r.Get("busy"); !ok {
		t.Error("busy session was evicted")
	}
}
