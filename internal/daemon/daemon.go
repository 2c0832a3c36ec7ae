package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/gofrs/flock"

	"hopper/internal/api"
	"hopper/internal/config"
	"hopper/internal/downloader"
	"hopper/internal/logging"
	"hopper/internal/queue"
	"hopper/internal/services/ffmpeg"
	"hopper/internal/services/ytdlp"
)

// Daemon coordinates the scheduler and HTTP API and enforces
// single-instance execution.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *queue.Store
	scheduler *downloader.Scheduler
	extractor *ytdlp.Client

	apiSrv *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *queue.Store, logger *slog.Logger, extractor *ytdlp.Client, transcoder *ffmpeg.Client) (*Daemon, error) {
	if cfg == nil || store == nil || logger == nil || extractor == nil || transcoder == nil {
		return nil, errors.New("daemon requires config, store, logger, and tool clients")
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "hopperd.lock")
	d := &Daemon{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		scheduler: downloader.NewScheduler(cfg, store, extractor, transcoder, logger),
		extractor: extractor,
		lockPath:  lockPath,
		lock:      flock.New(lockPath),
	}

	srv, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.apiSrv = srv
	return d, nil
}

// Start acquires the daemon lock, requeues jobs stranded by a previous
// shutdown, and launches the scheduler and API server.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another hopper daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)

	if requeued, err := d.store.ResetStuckActive(d.ctx); err != nil {
		d.logger.Warn("startup job recovery failed", logging.Error(err))
	} else if requeued > 0 {
		d.logger.Info("requeued jobs left active by previous run", logging.Int64("count", requeued))
	}

	if err := d.scheduler.Start(d.ctx); err != nil {
		d.releaseStart()
		return fmt.Errorf("start scheduler: %w", err)
	}
	if err := d.apiSrv.start(d.ctx); err != nil {
		d.scheduler.Stop()
		d.releaseStart()
		return err
	}

	d.running.Store(true)
	d.logger.Info("hopper daemon started", logging.String("lock", d.lockPath))
	return nil
}

func (d *Daemon) releaseStart() {
	_ = d.lock.Unlock()
	if d.cancel != nil {
		d.cancel()
	}
	d.ctx = nil
	d.cancel = nil
}

// Stop halts the API server and scheduler and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.apiSrv.stop()
	d.scheduler.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("hopper daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Running reports whether the daemon has been started.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// APIAddr returns the bound API address, or empty before Start.
func (d *Daemon) APIAddr() string {
	return d.apiSrv.addr()
}

// ErrJobActive is returned by Delete when the target has not reached a
// terminal state yet.
var ErrJobActive = errors.New("job is still active")

// Cancel stops an active job, terminating its process when one is attached.
func (d *Daemon) Cancel(ctx context.Context, jobID string) (bool, error) {
	return d.scheduler.Cancel(ctx, jobID)
}

// Delete removes a terminal job record, optionally deleting its output
// directory. Directories outside the storage root are never touched.
func (d *Daemon) Delete(ctx context.Context, jobID string, removeFiles bool) (bool, error) {
	job, err := d.store.GetByID(ctx, jobID)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}
	if !job.Status.Terminal() {
		return false, fmt.Errorf("job %s is %s: %w", jobID, job.Status, ErrJobActive)
	}

	removed, err := d.store.Remove(ctx, jobID)
	if err != nil || !removed {
		return removed, err
	}

	if removeFiles && job.OutputDir != "" {
		if withinStorageRoot(d.cfg.Paths.StorageRoot, job.OutputDir) {
			if err := os.RemoveAll(job.OutputDir); err != nil {
				d.logger.Warn("failed to remove job output",
					logging.String(logging.FieldJobID, jobID),
					logging.Error(err))
			}
		} else {
			d.logger.Warn("refusing to remove output outside storage root",
				logging.String(logging.FieldJobID, jobID),
				logging.String("dir", job.OutputDir))
		}
	}
	return true, nil
}

// Status reports daemon runtime information.
func (d *Daemon) Status(ctx context.Context) api.DaemonStatus {
	status := api.DaemonStatus{
		Running:       d.running.Load(),
		PID:           os.Getpid(),
		QueueDBPath:   d.store.Path(),
		LockFilePath:  d.lockPath,
		MaxConcurrent: d.cfg.Downloads.MaxConcurrent,
		Store:         api.StoreHealth{Available: d.store.Available()},
	}
	if err := d.store.LastError(); err != nil {
		status.Store.LastError = err.Error()
	}
	if counts, err := d.store.Stats(ctx); err == nil {
		status.Counts = api.MergeStats(counts)
	}
	return status
}

func withinStorageRoot(root, dir string) bool {
	if root == "" || dir == "" {
		return false
	}
	rel, err := filepath.Rel(root, dir)
	if err != nil {
		return false
	}
	return rel != "." && filepath.IsLocal(rel)
}
