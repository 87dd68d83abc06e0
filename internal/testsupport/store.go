package testsupport

import (
	"context"
	"testing"
	"time"

	"simloop/internal/config"
	"simloop/internal/sessions"
)

// MustOpenStore opens a sessions.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *sessions.Store {
	t.Helper()

	store, err := sessions.Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("sessions.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// BeginSession records a recording session for tests.
func BeginSession(t testing.TB, store *sessions.Store, id, simulation string, started time.Time) sessions.Record {
	t.Helper()

	rec := sessions.Record{
		ID:         id,
		Simulation: simulation,
		Format:     "gif",
		Width:      32,
		Height:     18,
		FPS:        30,
		StartedAt:  started,
	}
	if err := store.Begin(context.Background(), rec); err != nil {
		t.Fatalf("store.Begin: %v", err)
	}
	return rec
}
