package downloader

import (
	"context"
	"sync"
	"testing"
	"time"

	"hopper/internal/logging"
	"hopper/internal/queue"
	"hopper/internal/services/ffmpeg"
	"hopper/internal/services/ytdlp"
	"hopper/internal/testsupport"
)

// blockingExecutor simulates long-running extractor processes: each Run
// reports a start, then parks until released.
type blockingExecutor struct {
	mu      sync.Mutex
	order   []string
	release chan struct{}
	started chan string
	nextPID int
}

func newBlockingExecutor() *blockingExecutor {
	return &blockingExecutor{
		release: make(chan struct{}),
		started: make(chan string, 16),
		nextPID: 1000,
	}
}

func (b *blockingExecutor) Run(ctx context.Context, binary string, args []string, opts ytdlp.RunOptions) error {
	url := args[len(args)-1]
	b.mu.Lock()
	b.order = append(b.order, url)
	b.nextPID++
	pid := b.nextPID
	b.mu.Unlock()

	if opts.OnStart != nil {
		opts.OnStart(pid)
	}
	b.started <- url

	select {
	case <-b.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *blockingExecutor) startedOrder() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.order...)
}

type schedulerFixture struct {
	store     *queue.Store
	scheduler *Scheduler
	executor  *blockingExecutor
}

func newSchedulerFixture(t *testing.T, maxConcurrent int) *schedulerFixture {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithMaxConcurrent(maxConcurrent))
	store := testsupport.MustOpenStore(t, cfg)

	executor := newBlockingExecutor()
	extractor, err := ytdlp.New("yt-dlp", "en", "", ytdlp.WithExecutor(executor))
	if err != nil {
		t.Fatalf("ytdlp.New: %v", err)
	}
	transcoder, err := ffmpeg.New("ffmpeg", "", ffmpeg.WithExecutor(&transcoderScript{}))
	if err != nil {
		t.Fatalf("ffmpeg.New: %v", err)
	}

	scheduler := NewScheduler(cfg, store, extractor, transcoder, logging.NewNop())
	scheduler.runner.terminate = func(int) error { return nil }
	return &schedulerFixture{store: store, scheduler: scheduler, executor: executor}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func (f *schedulerFixture) countStatus(t *testing.T, status queue.Status) int {
	t.Helper()
	stats, err := f.store.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	return stats[status]
}

func TestSchedulerRespectsConcurrencyCap(t *testing.T) {
	fixture := newSchedulerFixture(t, 2)
	ctx := context.Background()

	for _, url := range []string{"https://a/1", "https://a/2", "https://a/3"} {
		testsupport.NewJob(t, fixture.store, url, queue.ModeFull)
	}

	if err := fixture.scheduler.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer fixture.scheduler.Stop()

	<-fixture.executor.started
	<-fixture.executor.started

	waitFor(t, time.Second, func() bool {
		return fixture.countStatus(t, queue.StatusDownloading) == 2
	})
	if got := fixture.countStatus(t, queue.StatusQueued); got != 1 {
		t.Fatalf("third job must stay queued, got %d queued", got)
	}

	// Free the slots; the third job is admitted and all three finish.
	close(fixture.executor.release)
	waitFor(t, 2*time.Second, func() bool {
		return fixture.countStatus(t, queue.StatusCompleted) == 3
	})
}

func TestSchedulerAdmitsInFIFOOrder(t *testing.T) {
	fixture := newSchedulerFixture(t, 1)
	ctx := context.Background()

	urls := []string{"https://a/first", "https://a/second", "https://a/third"}
	for _, url := range urls {
		testsupport.NewJob(t, fixture.store, url, queue.ModeFull)
		time.Sleep(time.Millisecond)
	}

	if err := fixture.scheduler.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer fixture.scheduler.Stop()

	close(fixture.executor.release)
	waitFor(t, 2*time.Second, func() bool {
		return fixture.countStatus(t, queue.StatusCompleted) == 3
	})

	order := fixture.executor.startedOrder()
	for i, url := range urls {
		if order[i] != url {
			t.Fatalf("expected FIFO start order %v, got %v", urls, order)
		}
	}
}

func TestSchedulerNeverDoubleStarts(t *testing.T) {
	fixture := newSchedulerFixture(t, 2)
	ctx := context.Background()

	testsupport.NewJob(t, fixture.store, "https://a/only", queue.ModeFull)

	if err := fixture.scheduler.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer fixture.scheduler.Stop()

	// Hammer the trigger while the single job runs.
	for i := 0; i < 10; i++ {
		fixture.scheduler.Trigger()
	}
	<-fixture.executor.started

	close(fixture.executor.release)
	waitFor(t, 2*time.Second, func() bool {
		return fixture.countStatus(t, queue.StatusCompleted) == 1
	})

	if starts := len(fixture.executor.startedOrder()); starts != 1 {
		t.Fatalf("job started %d times", starts)
	}
}

func TestCancelQueuedJobSpawnsNothing(t *testing.T) {
	fixture := newSchedulerFixture(t, 2)
	ctx := context.Background()

	job := testsupport.NewJob(t, fixture.store, "https://a/queued", queue.ModeFull)

	changed, err := fixture.scheduler.Cancel(ctx, job.ID)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if !changed {
		t.Fatal("expected cancellation to apply")
	}

	final, err := fixture.store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if final.Status != queue.StatusCancelled {
		t.Fatalf("expected cancelled, got %q", final.Status)
	}
	if fixture.scheduler.Registry().Len() != 0 {
		t.Fatal("no process should ever have been registered")
	}
	if len(fixture.executor.startedOrder()) != 0 {
		t.Fatal("no process should have been spawned")
	}
}

func TestCancelDownloadingJobTerminatesProcess(t *testing.T) {
	fixture := newSchedulerFixture(t, 1)
	ctx := context.Background()

	job := testsupport.NewJob(t, fixture.store, "https://a/live", queue.ModeFull)

	terminations := 0
	var termMu sync.Mutex
	fixture.scheduler.runner.terminate = func(int) error {
		termMu.Lock()
		terminations++
		termMu.Unlock()
		return nil
	}

	if err := fixture.scheduler.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer fixture.scheduler.Stop()

	<-fixture.executor.started
	waitFor(t, time.Second, func() bool {
		return fixture.scheduler.Registry().Contains(job.ID)
	})

	changed, err := fixture.scheduler.Cancel(ctx, job.ID)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if !changed {
		t.Fatal("expected cancellation to apply")
	}
	if fixture.scheduler.Registry().Len() != 0 {
		t.Fatal("handle must be removed exactly once")
	}
	termMu.Lock()
	if terminations != 1 {
		t.Fatalf("expected 1 termination signal, got %d", terminations)
	}
	termMu.Unlock()

	// Unblock the fake process; the job must remain cancelled.
	close(fixture.executor.release)
	waitFor(t, 2*time.Second, func() bool {
		final, err := fixture.store.GetByID(ctx, job.ID)
		return err == nil && final != nil && final.Status == queue.StatusCancelled
	})

	changed, err = fixture.scheduler.Cancel(ctx, job.ID)
	if err != nil {
		t.Fatalf("Cancel second: %v", err)
	}
	if changed {
		t.Fatal("second cancellation must be a no-op")
	}
}

func TestCancelMissingJob(t *testing.T) {
	fixture := newSchedulerFixture(t, 1)

	changed, err := fixture.scheduler.Cancel(context.Background(), "missing")
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if changed {
		t.Fatal("missing job must not report a change")
	}
}
