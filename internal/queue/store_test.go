package queue_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"hopper/internal/queue"
	"hopper/internal/testsupport"
)

func TestStoreNewJobRoundTrip(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	job, err := store.NewJob(ctx, queue.NewJobParams{
		ID:           "abcd1234",
		URL:          "https://youtube.com/watch?v=dQw4w9WgXcQ",
		Mode:         queue.ModeFull,
		Title:        "Test Video",
		Channel:      "Test Channel",
		Duration:     212,
		ThumbnailURL: "https://example.com/thumb.jpg",
	})
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}
	if job.ID != "abcd1234" {
		t.Fatalf("unexpected id %q", job.ID)
	}
	if job.Status != queue.StatusQueued {
		t.Fatalf("expected queued status, got %q", job.Status)
	}
	if job.CreatedAt.IsZero() {
		t.Fatal("expected created_at to be set")
	}

	fetched, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if fetched == nil {
		t.Fatal("expected job to exist")
	}
	if fetched.Title != "Test Video" || fetched.Channel != "Test Channel" {
		t.Fatalf("metadata mismatch: %+v", fetched)
	}
	if fetched.Duration != 212 {
		t.Fatalf("expected duration 212, got %d", fetched.Duration)
	}
	if fetched.ThumbnailURL != "https://example.com/thumb.jpg" {
		t.Fatalf("unexpected thumbnail %q", fetched.ThumbnailURL)
	}
}

func TestStoreNewJobValidation(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))

	if _, err := store.NewJob(context.Background(), queue.NewJobParams{ID: "x", URL: "https://a", Mode: "mp3"}); err == nil {
		t.Fatal("expected error for invalid mode")
	}
	if _, err := store.NewJob(context.Background(), queue.NewJobParams{ID: "x", Mode: queue.ModeFull}); err == nil {
		t.Fatal("expected error for missing url")
	}
}

func TestStoreGetMissingJob(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))

	job, err := store.GetByID(context.Background(), "missing")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if job != nil {
		t.Fatalf("expected nil job, got %+v", job)
	}
}

func TestStoreUpdatePartialFields(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	job := testsupport.NewJob(t, store, "https://youtube.com/watch?v=abc", queue.ModeFull)

	err := store.Update(ctx, job.ID, queue.Update{
		ProgressPercent: queue.Ptr(42.5),
		Speed:           queue.Ptr("1.2MiB/s"),
		ETA:             queue.Ptr("00:30"),
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	updated, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if updated.ProgressPercent != 42.5 {
		t.Fatalf("expected progress 42.5, got %v", updated.ProgressPercent)
	}
	if updated.Speed != "1.2MiB/s" || updated.ETA != "00:30" {
		t.Fatalf("unexpected speed/eta: %q %q", updated.Speed, updated.ETA)
	}
	if updated.URL != job.URL {
		t.Fatalf("untouched field changed: %q", updated.URL)
	}
	if updated.Status != queue.StatusQueued {
		t.Fatalf("untouched status changed: %q", updated.Status)
	}
}

func TestStoreUpdateClearsPID(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	job := testsupport.NewJob(t, store, "https://youtube.com/watch?v=abc", queue.ModeWav)

	if err := store.Update(ctx, job.ID, queue.Update{PID: queue.Ptr(4321)}); err != nil {
		t.Fatalf("Update pid: %v", err)
	}
	updated, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if updated.PID != 4321 {
		t.Fatalf("expected pid 4321, got %d", updated.PID)
	}

	if err := store.Update(ctx, job.ID, queue.Update{PID: queue.Ptr(0)}); err != nil {
		t.Fatalf("Update clear pid: %v", err)
	}
	updated, err = store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if updated.PID != 0 {
		t.Fatalf("expected pid cleared, got %d", updated.PID)
	}
}

func TestStoreNextQueuedFIFO(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	ids := []string{"job-one", "job-two", "job-three"}
	for _, id := range ids {
		_, err := store.NewJob(ctx, queue.NewJobParams{
			ID:   id,
			URL:  "https://youtube.com/watch?v=" + id,
			Mode: queue.ModeFull,
		})
		if err != nil {
			t.Fatalf("NewJob %s: %v", id, err)
		}
		// Nanosecond timestamps keep creation order observable even for
		// back-to-back inserts.
		time.Sleep(time.Millisecond)
	}

	queued, err := store.NextQueued(ctx, 2)
	if err != nil {
		t.Fatalf("NextQueued: %v", err)
	}
	if len(queued) != 2 {
		t.Fatalf("expected 2 queued jobs, got %d", len(queued))
	}
	if queued[0].ID != "job-one" || queued[1].ID != "job-two" {
		t.Fatalf("unexpected FIFO order: %s, %s", queued[0].ID, queued[1].ID)
	}
}

func TestStoreClaimQueuedOnce(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	job := testsupport.NewJob(t, store, "https://youtube.com/watch?v=claim", queue.ModeFull)

	claimed, err := store.ClaimQueued(ctx, job.ID)
	if err != nil {
		t.Fatalf("ClaimQueued: %v", err)
	}
	if !claimed {
		t.Fatal("expected first claim to succeed")
	}

	again, err := store.ClaimQueued(ctx, job.ID)
	if err != nil {
		t.Fatalf("ClaimQueued second: %v", err)
	}
	if again {
		t.Fatal("expected second claim to fail")
	}

	updated, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if updated.Status != queue.StatusDownloading {
		t.Fatalf("expected downloading status, got %q", updated.Status)
	}
	if updated.StartedAt == nil {
		t.Fatal("expected started_at to be set")
	}
}

func TestStoreMarkCancelledIdempotent(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	job := testsupport.NewJob(t, store, "https://youtube.com/watch?v=cancel", queue.ModeText)

	changed, err := store.MarkCancelled(ctx, job.ID)
	if err != nil {
		t.Fatalf("MarkCancelled: %v", err)
	}
	if !changed {
		t.Fatal("expected cancellation to apply")
	}

	changed, err = store.MarkCancelled(ctx, job.ID)
	if err != nil {
		t.Fatalf("MarkCancelled second: %v", err)
	}
	if changed {
		t.Fatal("expected second cancellation to be a no-op")
	}

	updated, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if updated.Status != queue.StatusCancelled {
		t.Fatalf("expected cancelled status, got %q", updated.Status)
	}
	if updated.CompletedAt == nil {
		t.Fatal("expected completed_at to be set")
	}
}

func TestStoreMarkCancelledLeavesCompleted(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	job := testsupport.NewJob(t, store, "https://youtube.com/watch?v=done", queue.ModeFull)

	if err := store.Update(ctx, job.ID, queue.Update{Status: queue.Ptr(queue.StatusCompleted)}); err != nil {
		t.Fatalf("Update status: %v", err)
	}

	changed, err := store.MarkCancelled(ctx, job.ID)
	if err != nil {
		t.Fatalf("MarkCancelled: %v", err)
	}
	if changed {
		t.Fatal("expected cancellation of completed job to be a no-op")
	}

	updated, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if updated.Status != queue.StatusCompleted {
		t.Fatalf("status changed to %q", updated.Status)
	}
}

func TestStoreResetStuckActive(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	downloading := testsupport.NewJob(t, store, "https://youtube.com/watch?v=one", queue.ModeFull)
	processing := testsupport.NewJob(t, store, "https://youtube.com/watch?v=two", queue.ModeFull)
	completed := testsupport.NewJob(t, store, "https://youtube.com/watch?v=three", queue.ModeFull)

	if _, err := store.ClaimQueued(ctx, downloading.ID); err != nil {
		t.Fatalf("ClaimQueued: %v", err)
	}
	if err := store.Update(ctx, downloading.ID, queue.Update{PID: queue.Ptr(1234), Speed: queue.Ptr("2MiB/s")}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := store.Update(ctx, processing.ID, queue.Update{Status: queue.Ptr(queue.StatusProcessing)}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := store.Update(ctx, completed.ID, queue.Update{Status: queue.Ptr(queue.StatusCompleted)}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	reset, err := store.ResetStuckActive(ctx)
	if err != nil {
		t.Fatalf("ResetStuckActive: %v", err)
	}
	if reset != 2 {
		t.Fatalf("expected 2 reset jobs, got %d", reset)
	}

	for _, id := range []string{downloading.ID, processing.ID} {
		job, err := store.GetByID(ctx, id)
		if err != nil {
			t.Fatalf("GetByID %s: %v", id, err)
		}
		if job.Status != queue.StatusQueued {
			t.Fatalf("job %s not requeued: %q", id, job.Status)
		}
		if job.PID != 0 || job.Speed != "" {
			t.Fatalf("job %s runtime fields not cleared: pid=%d speed=%q", id, job.PID, job.Speed)
		}
	}

	kept, err := store.GetByID(ctx, completed.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if kept.Status != queue.StatusCompleted {
		t.Fatalf("completed job touched: %q", kept.Status)
	}
}

func TestStoreActiveAndHistoryViews(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	active := testsupport.NewJob(t, store, "https://youtube.com/watch?v=active", queue.ModeFull)
	done := testsupport.NewJob(t, store, "https://youtube.com/watch?v=done", queue.ModeFull)
	failed := testsupport.NewJob(t, store, "https://youtube.com/watch?v=failed", queue.ModeFull)

	now := time.Now().UTC()
	if err := store.Update(ctx, done.ID, queue.Update{
		Status:      queue.Ptr(queue.StatusCompleted),
		CompletedAt: queue.Ptr(now),
	}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := store.Update(ctx, failed.ID, queue.Update{
		Status:       queue.Ptr(queue.StatusError),
		ErrorMessage: queue.Ptr("yt-dlp exited with code 1"),
		CompletedAt:  queue.Ptr(now.Add(-time.Minute)),
	}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	activeJobs, err := store.ActiveJobs(ctx)
	if err != nil {
		t.Fatalf("ActiveJobs: %v", err)
	}
	if len(activeJobs) != 1 || activeJobs[0].ID != active.ID {
		t.Fatalf("unexpected active set: %+v", activeJobs)
	}

	history, err := store.History(ctx, 10, 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(history))
	}
	if history[0].ID != done.ID {
		t.Fatalf("expected newest-first history, got %s first", history[0].ID)
	}
	if history[1].ErrorMessage != "yt-dlp exited with code 1" {
		t.Fatalf("error message lost: %q", history[1].ErrorMessage)
	}

	count, err := store.HistoryCount(ctx)
	if err != nil {
		t.Fatalf("HistoryCount: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected history count 2, got %d", count)
	}

	page, err := store.History(ctx, 1, 1)
	if err != nil {
		t.Fatalf("History page: %v", err)
	}
	if len(page) != 1 || page[0].ID != failed.ID {
		t.Fatalf("unexpected history page: %+v", page)
	}
}

func TestStoreCountDownloading(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	first := testsupport.NewJob(t, store, "https://youtube.com/watch?v=one", queue.ModeFull)
	testsupport.NewJob(t, store, "https://youtube.com/watch?v=two", queue.ModeFull)

	count, err := store.CountDownloading(ctx)
	if err != nil {
		t.Fatalf("CountDownloading: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 downloading, got %d", count)
	}

	if _, err := store.ClaimQueued(ctx, first.ID); err != nil {
		t.Fatalf("ClaimQueued: %v", err)
	}
	count, err = store.CountDownloading(ctx)
	if err != nil {
		t.Fatalf("CountDownloading: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 downloading, got %d", count)
	}
}

func TestStoreRemove(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	job := testsupport.NewJob(t, store, "https://youtube.com/watch?v=rm", queue.ModeFull)

	removed, err := store.Remove(ctx, job.ID)
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if !removed {
		t.Fatal("expected removal")
	}

	removed, err = store.Remove(ctx, job.ID)
	if err != nil {
		t.Fatalf("Remove second: %v", err)
	}
	if removed {
		t.Fatal("expected second removal to report false")
	}
}

func TestStoreClearTerminal(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	keep := testsupport.NewJob(t, store, "https://youtube.com/watch?v=keep", queue.ModeFull)
	gone := testsupport.NewJob(t, store, "https://youtube.com/watch?v=gone", queue.ModeFull)
	if err := store.Update(ctx, gone.ID, queue.Update{Status: queue.Ptr(queue.StatusCompleted)}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	cleared, err := store.ClearTerminal(ctx)
	if err != nil {
		t.Fatalf("ClearTerminal: %v", err)
	}
	if cleared != 1 {
		t.Fatalf("expected 1 cleared, got %d", cleared)
	}

	remaining, err := store.GetByID(ctx, keep.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if remaining == nil {
		t.Fatal("queued job should survive ClearTerminal")
	}
}

func TestStoreClearFailed(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	done := testsupport.NewJob(t, store, "https://youtube.com/watch?v=done", queue.ModeFull)
	failed := testsupport.NewJob(t, store, "https://youtube.com/watch?v=fail", queue.ModeFull)
	if err := store.Update(ctx, done.ID, queue.Update{Status: queue.Ptr(queue.StatusCompleted)}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := store.Update(ctx, failed.ID, queue.Update{Status: queue.Ptr(queue.StatusError)}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	cleared, err := store.ClearFailed(ctx)
	if err != nil {
		t.Fatalf("ClearFailed: %v", err)
	}
	if cleared != 1 {
		t.Fatalf("expected 1 cleared, got %d", cleared)
	}
	if remaining, _ := store.GetByID(ctx, done.ID); remaining == nil {
		t.Fatal("completed job should survive ClearFailed")
	}
	if gone, _ := store.GetByID(ctx, failed.ID); gone != nil {
		t.Fatal("errored job should be removed")
	}
}

func TestStoreStatsAndHealth(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	testsupport.NewJob(t, store, "https://youtube.com/watch?v=one", queue.ModeFull)
	errored := testsupport.NewJob(t, store, "https://youtube.com/watch?v=two", queue.ModeFull)
	if err := store.Update(ctx, errored.ID, queue.Update{Status: queue.Ptr(queue.StatusError)}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats[queue.StatusQueued] != 1 || stats[queue.StatusError] != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	health, err := store.Health(ctx)
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if health.Total != 2 || health.Queued != 1 || health.Errored != 1 {
		t.Fatalf("unexpected health: %+v", health)
	}
}

func TestStoreDegradedMode(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	// A directory at the database path makes the sqlite open fail, which
	// must leave the store degraded rather than erroring out.
	if err := os.MkdirAll(filepath.Join(cfg.Paths.LogDir, "queue.db"), 0o755); err != nil {
		t.Fatalf("mkdir queue.db: %v", err)
	}

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	if store.Available() {
		t.Fatal("expected store to be degraded")
	}
	if store.LastError() == nil {
		t.Fatal("expected a recorded connection error")
	}

	ctx := context.Background()
	jobs, err := store.ActiveJobs(ctx)
	if err != nil {
		t.Fatalf("ActiveJobs degraded: %v", err)
	}
	if len(jobs) != 0 {
		t.Fatalf("expected empty result, got %d", len(jobs))
	}

	job, err := store.GetByID(ctx, "anything")
	if err != nil {
		t.Fatalf("GetByID degraded: %v", err)
	}
	if job != nil {
		t.Fatalf("expected nil job, got %+v", job)
	}

	if _, err := store.NewJob(ctx, queue.NewJobParams{
		ID:   "deadbeef",
		URL:  "https://youtube.com/watch?v=x",
		Mode: queue.ModeFull,
	}); !errors.Is(err, queue.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestNewJobIDShape(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 32; i++ {
		id := queue.NewJobID()
		if len(id) != 8 {
			t.Fatalf("expected 8-char id, got %q", id)
		}
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}
