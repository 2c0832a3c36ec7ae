package testsupport

import (
	"context"
	"testing"

	"hopper/internal/config"
	"hopper/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewJob inserts a queued job for tests using the provided store.
func NewJob(t testing.TB, store *queue.Store, url string, mode queue.Mode) *queue.Job {
	t.Helper()

	job, err := store.NewJob(context.Background(), queue.NewJobParams{
		ID:   queue.NewJobID(),
		URL:  url,
		Mode: mode,
	})
	if err != nil {
		t.Fatalf("store.NewJob: %v", err)
	}
	return job
}
