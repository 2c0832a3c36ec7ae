// Package downloader coordinates job admission, extractor process lifecycle,
// and post-processing for the download queue.
package downloader

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"hopper/internal/config"
	"hopper/internal/logging"
	"hopper/internal/queue"
	"hopper/internal/services/ffmpeg"
	"hopper/internal/services/ytdlp"
)

// Scheduler admits queued jobs under the concurrency cap and owns the
// cancellation controller. Admission runs on an explicit trigger after every
// submission, terminal transition, and cancellation, with a poll interval as
// a safety net.
type Scheduler struct {
	cfg      *config.Config
	store    *queue.Store
	runner   *Runner
	registry *Registry
	logger   *slog.Logger

	trigger chan struct{}

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewScheduler constructs a scheduler and its runner.
func NewScheduler(cfg *config.Config, store *queue.Store, extractor *ytdlp.Client, transcoder *ffmpeg.Client, logger *slog.Logger) *Scheduler {
	registry := NewRegistry()
	return &Scheduler{
		cfg:      cfg,
		store:    store,
		registry: registry,
		runner:   NewRunner(cfg, store, extractor, transcoder, registry, logger),
		logger:   logging.NewComponentLogger(logger, "scheduler"),
		trigger:  make(chan struct{}, 1),
	}
}

// Registry exposes the live-process map, mainly for tests.
func (s *Scheduler) Registry() *Registry {
	return s.registry
}

// Start begins background admission.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("scheduler already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.wg.Add(1)
	s.mu.Unlock()

	go s.run(runCtx)
	s.Trigger()
	return nil
}

// Stop terminates background processing and waits for in-flight jobs.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	s.running = false
	s.cancel = nil
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
}

// Trigger requests an admission pass. Coalesces when one is already pending.
func (s *Scheduler) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

func (s *Scheduler) run(ctx context.Context) {
	defer s.wg.Done()

	poll := time.Duration(s.cfg.Workflow.QueuePollInterval) * time.Second
	if poll <= 0 {
		poll = 5 * time.Second
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	retry := time.Duration(s.cfg.Workflow.ErrorRetryInterval) * time.Second
	if retry <= 0 {
		retry = 10 * time.Second
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.trigger:
		case <-ticker.C:
		}
		if !s.dispatch(ctx) {
			// Store trouble. Back off so a down database is not hammered
			// by trigger-driven passes.
			select {
			case <-ctx.Done():
				return
			case <-time.After(retry):
			}
		}
	}
}

// dispatch performs one admission pass: fill available slots with queued
// jobs in FIFO order. Claiming flips status before any blocking work, so a
// concurrent pass never starts the same job twice. It reports false when
// the store could not be consulted.
func (s *Scheduler) dispatch(ctx context.Context) bool {
	downloading, err := s.store.CountDownloading(ctx)
	if err != nil {
		s.logger.Error("count active downloads", logging.Error(err))
		return false
	}
	available := s.cfg.Downloads.MaxConcurrent - downloading
	if available <= 0 {
		return true
	}

	candidates, err := s.store.NextQueued(ctx, available)
	if err != nil {
		s.logger.Error("fetch queued jobs", logging.Error(err))
		return false
	}

	for _, job := range candidates {
		claimed, err := s.store.ClaimQueued(ctx, job.ID)
		if err != nil {
			s.logger.Error("claim job",
				logging.String(logging.FieldJobID, job.ID),
				logging.Error(err),
			)
			continue
		}
		if !claimed {
			continue
		}

		s.wg.Add(1)
		go func(job *queue.Job) {
			defer s.wg.Done()
			s.runner.Run(ctx, job)
			s.Trigger()
		}(job)
	}
	return true
}

// Cancel is the cancellation controller entry point. A queued job is
// satisfied purely by the status transition; a live job additionally gets a
// graceful termination signal through the registry. The boolean reports
// whether the request changed anything.
func (s *Scheduler) Cancel(ctx context.Context, jobID string) (bool, error) {
	job, err := s.store.GetByID(ctx, jobID)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}

	changed, err := s.store.MarkCancelled(ctx, jobID)
	if err != nil {
		return false, err
	}

	if terminated, termErr := s.registry.Terminate(jobID); terminated && termErr != nil {
		s.logger.Warn("terminate process",
			logging.String(logging.FieldJobID, jobID),
			logging.Error(termErr),
		)
	}

	if changed {
		s.logger.Info("job cancelled", logging.String(logging.FieldJobID, jobID))
		s.Trigger()
	}
	return changed, nil
}
