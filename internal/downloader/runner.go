package downloader

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"hopper/internal/config"
	"hopper/internal/logging"
	"hopper/internal/naming"
	"hopper/internal/queue"
	"hopper/internal/services/ffmpeg"
	"hopper/internal/services/ytdlp"
)

// Runner executes one claimed job: it spawns the extractor, streams and
// reacts to its output, and drives the job to a terminal state.
type Runner struct {
	cfg        *config.Config
	store      *queue.Store
	extractor  *ytdlp.Client
	transcoder *ffmpeg.Client
	registry   *Registry
	logger     *slog.Logger

	// terminate signals a process group; overridable in tests.
	terminate func(pid int) error
}

// NewRunner constructs a runner.
func NewRunner(cfg *config.Config, store *queue.Store, extractor *ytdlp.Client, transcoder *ffmpeg.Client, registry *Registry, logger *slog.Logger) *Runner {
	return &Runner{
		cfg:        cfg,
		store:      store,
		extractor:  extractor,
		transcoder: transcoder,
		registry:   registry,
		logger:     logging.NewComponentLogger(logger, "runner"),
		terminate:  ytdlp.TerminateProcessGroup,
	}
}

// Run drives an already-claimed job (status downloading) to a terminal
// state. It blocks until the extractor exits and post-processing finishes.
func (r *Runner) Run(ctx context.Context, job *queue.Job) {
	logger := r.logger.With(logging.String(logging.FieldJobID, job.ID))

	sourceID := naming.SourceID(job.URL, job.ID)
	outputDir := filepath.Join(r.cfg.Paths.StorageRoot, naming.FolderName(job.Title, sourceID))
	stem := naming.Stem(job.Title)

	if err := r.store.Update(ctx, job.ID, queue.Update{OutputDir: queue.Ptr(outputDir)}); err != nil {
		logger.Warn("record output dir", logging.Error(err))
	}

	logger.Info("starting download",
		logging.String("url", job.URL),
		logging.String("mode", string(job.Mode)),
		logging.String("output_dir", outputDir),
	)

	downloadErr := r.extractor.Download(ctx, ytdlp.DownloadRequest{
		URL:       job.URL,
		Mode:      string(job.Mode),
		OutputDir: outputDir,
		Stem:      stem,
	}, func(event ytdlp.Event) {
		r.handleEvent(ctx, job.ID, outputDir, event)
	}, func(pid int) {
		r.registry.Add(job.ID, func() error {
			return r.terminate(pid)
		})
		if err := r.store.Update(ctx, job.ID, queue.Update{PID: queue.Ptr(pid)}); err != nil {
			logger.Warn("record pid", logging.Error(err))
		}
	})

	r.registry.Remove(job.ID)
	if err := r.store.Update(ctx, job.ID, queue.Update{PID: queue.Ptr(0)}); err != nil {
		logger.Warn("clear pid", logging.Error(err))
	}

	current, err := r.store.GetByID(ctx, job.ID)
	if err != nil {
		logger.Error("reload job after extractor exit", logging.Error(err))
		return
	}
	if current == nil || current.Status == queue.StatusCancelled {
		logger.Info("download cancelled")
		return
	}

	if downloadErr != nil {
		// Daemon shutdown, not a job failure; startup recovery requeues it.
		if ctx.Err() != nil {
			logger.Info("download interrupted by shutdown")
			return
		}
		message := downloadErr.Error()
		if code, ok := ytdlp.ExitCode(downloadErr); ok {
			message = fmt.Sprintf("yt-dlp exited with code %d", code)
		}
		logger.Error("download failed", logging.Error(downloadErr))
		now := time.Now().UTC()
		if err := r.store.Update(ctx, job.ID, queue.Update{
			Status:       queue.Ptr(queue.StatusError),
			ErrorMessage: queue.Ptr(message),
			CompletedAt:  queue.Ptr(now),
		}); err != nil {
			logger.Error("record download failure", logging.Error(err))
		}
		return
	}

	r.postProcess(ctx, current, logger)
}

// handleEvent applies one classified extractor output line: cancellation
// check first, then destination or merge reconciliation, then progress.
func (r *Runner) handleEvent(ctx context.Context, jobID, outputDir string, event ytdlp.Event) {
	current, err := r.store.GetByID(ctx, jobID)
	if err == nil && (current == nil || current.Status == queue.StatusCancelled) {
		if _, termErr := r.registry.Terminate(jobID); termErr != nil {
			r.logger.Warn("terminate cancelled job",
				logging.String(logging.FieldJobID, jobID),
				logging.Error(termErr),
			)
		}
		return
	}

	switch event.Kind {
	case ytdlp.KindDestination, ytdlp.KindMerge:
		dir := filepath.Dir(event.Path)
		if dir != r.cfg.Paths.StorageRoot && dir != outputDir && withinRoot(r.cfg.Paths.StorageRoot, dir) {
			if err := r.store.Update(ctx, jobID, queue.Update{OutputDir: queue.Ptr(dir)}); err != nil {
				r.logger.Warn("reconcile output dir", logging.Error(err))
			}
		}
	case ytdlp.KindProgress:
		upd := queue.Update{ProgressPercent: queue.Ptr(event.Percent)}
		if event.Speed != "" {
			upd.Speed = queue.Ptr(event.Speed)
		}
		if event.ETA != "" {
			upd.ETA = queue.Ptr(event.ETA)
		}
		if err := r.store.Update(ctx, jobID, upd); err != nil {
			r.logger.Warn("record progress", logging.Error(err))
		}
	}
}

// withinRoot reports whether dir sits under root. output_dir must never be
// reassigned to a path outside the storage root.
func withinRoot(root, dir string) bool {
	rel, err := filepath.Rel(root, dir)
	if err != nil {
		return false
	}
	return rel == "." || filepath.IsLocal(rel)
}
