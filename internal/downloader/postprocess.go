package downloader

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"hopper/internal/fileutil"
	"hopper/internal/logging"
	"hopper/internal/queue"
	"hopper/internal/subtitles"
)

// sidecarName is the metadata file written into every output directory.
const sidecarName = "info.json"

type sidecar struct {
	ID          string `json:"id"`
	URL         string `json:"url"`
	Title       string `json:"title"`
	Channel     string `json:"channel"`
	Duration    int64  `json:"duration"`
	Mode        string `json:"mode"`
	CompletedAt string `json:"completed_at"`
}

// postProcess finishes a successfully downloaded job: sidecar metadata, the
// mode-specific transcode/dedup step, final size accounting, and the
// completed transition. Mode-step failures are recorded on the job but do
// not block completion.
func (r *Runner) postProcess(ctx context.Context, job *queue.Job, logger *slog.Logger) {
	if err := r.store.Update(ctx, job.ID, queue.Update{
		Status:          queue.Ptr(queue.StatusProcessing),
		ProgressPercent: queue.Ptr(100.0),
	}); err != nil {
		logger.Error("enter processing state", logging.Error(err))
	}

	outputDir := job.OutputDir

	if outputDir != "" {
		r.writeSidecar(job, outputDir, time.Now().UTC(), logger)
	}

	var stepErr error
	if outputDir != "" {
		switch job.Mode {
		case queue.ModeFull:
			stepErr = r.processFull(ctx, job, outputDir)
		case queue.ModeText:
			stepErr = r.processText(job, outputDir)
		case queue.ModeWav:
			stepErr = r.processWav(ctx, outputDir)
		}
	}

	// Cancellation in the gap between extractor exit and here aborts without
	// marking the job completed.
	current, err := r.store.GetByID(ctx, job.ID)
	if err == nil && (current == nil || current.Status == queue.StatusCancelled) {
		logger.Info("job cancelled during post-processing")
		return
	}

	if outputDir != "" && !r.cfg.Downloads.KeepStagedFragments {
		removeStagedFragments(outputDir, logger)
	}

	// Mode steps can run for a long time, so the completion timestamp is
	// taken here rather than before them. The sidecar gets refreshed to
	// match.
	completedAt := time.Now().UTC()
	if outputDir != "" {
		r.writeSidecar(job, outputDir, completedAt, logger)
	}

	final := queue.Update{
		Status:      queue.Ptr(queue.StatusCompleted),
		CompletedAt: queue.Ptr(completedAt),
	}
	if stepErr != nil {
		logger.Error("post-processing step failed", logging.Error(stepErr))
		final.ErrorMessage = queue.Ptr("post-processing: " + stepErr.Error())
	}
	if outputDir != "" {
		if size, sizeErr := fileutil.DirSize(outputDir); sizeErr == nil {
			final.FileSize = queue.Ptr(size)
		} else {
			logger.Warn("sum output size", logging.Error(sizeErr))
		}
	}
	if err := r.store.Update(ctx, job.ID, final); err != nil {
		logger.Error("mark job completed", logging.Error(err))
		return
	}
	logger.Info("job completed", logging.String("output_dir", outputDir))
}

// writeSidecar records job metadata in the output directory. It runs once
// before the mode-specific work so metadata survives an interrupted step,
// and again afterwards to stamp the real completion time.
func (r *Runner) writeSidecar(job *queue.Job, outputDir string, completedAt time.Time, logger *slog.Logger) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		logger.Warn("create output dir for sidecar", logging.Error(err))
		return
	}
	payload, err := json.MarshalIndent(sidecar{
		ID:          job.ID,
		URL:         job.URL,
		Title:       job.Title,
		Channel:     job.Channel,
		Duration:    job.Duration,
		Mode:        string(job.Mode),
		CompletedAt: completedAt.Format(time.RFC3339),
	}, "", "  ")
	if err != nil {
		logger.Warn("encode sidecar", logging.Error(err))
		return
	}
	if err := os.WriteFile(filepath.Join(outputDir, sidecarName), payload, 0o644); err != nil {
		logger.Warn("write sidecar", logging.Error(err))
	}
}

// removeStagedFragments deletes leftover extractor staging files
// (interrupted fragments, resume bookkeeping) from the output directory.
func removeStagedFragments(outputDir string, logger *slog.Logger) {
	staged, err := fileutil.FindByExtension(outputDir, ".part", ".ytdl")
	if err != nil {
		logger.Warn("scan staged fragments", logging.Error(err))
		return
	}
	for _, path := range staged {
		if err := os.Remove(path); err != nil {
			logger.Warn("remove staged fragment",
				logging.String("path", path),
				logging.Error(err))
		}
	}
}

// processFull builds the proxy rendition and cleans the downloaded subtitle.
func (r *Runner) processFull(ctx context.Context, job *queue.Job, outputDir string) error {
	if media := primaryMedia(outputDir); media != "" {
		if _, err := r.transcoder.BuildProxy(ctx, media); err != nil {
			return err
		}
	}
	if srt := preferredSubtitle(outputDir); srt != "" {
		if err := writeCleanedTranscript(srt, job.URL); err != nil {
			return err
		}
	}
	return nil
}

// processText cleans every subtitle file in the output directory.
func (r *Runner) processText(job *queue.Job, outputDir string) error {
	srtFiles, err := fileutil.FindByExtension(outputDir, ".srt")
	if err != nil {
		return err
	}
	for _, srt := range srtFiles {
		if err := writeCleanedTranscript(srt, job.URL); err != nil {
			return err
		}
	}
	return nil
}

// processWav normalizes the extracted audio in place.
func (r *Runner) processWav(ctx context.Context, outputDir string) error {
	wavFiles, err := fileutil.FindByExtension(outputDir, ".wav")
	if err != nil {
		return err
	}
	for _, wav := range wavFiles {
		if strings.HasSuffix(wav, ".tmp.wav") {
			continue
		}
		if err := r.transcoder.NormalizePCM(ctx, wav); err != nil {
			return err
		}
	}
	return nil
}

func writeCleanedTranscript(srtPath, sourceURL string) error {
	cleaned, err := subtitles.CleanFile(srtPath, sourceURL)
	if err != nil {
		return err
	}
	txtPath := strings.TrimSuffix(srtPath, filepath.Ext(srtPath)) + ".txt"
	return os.WriteFile(txtPath, []byte(cleaned), 0o644)
}

// primaryMedia picks the main downloaded video file, skipping any proxy
// rendition from a previous run.
func primaryMedia(outputDir string) string {
	candidates, err := fileutil.FindByExtension(outputDir, ".mp4", ".mkv", ".webm")
	if err != nil {
		return ""
	}
	for _, candidate := range candidates {
		base := strings.TrimSuffix(filepath.Base(candidate), filepath.Ext(candidate))
		if strings.HasSuffix(base, "_proxy") {
			continue
		}
		return candidate
	}
	return ""
}

// preferredSubtitle prefers the English auto-generated track, else any .srt.
func preferredSubtitle(outputDir string) string {
	candidates, err := fileutil.FindByExtension(outputDir, ".srt")
	if err != nil || len(candidates) == 0 {
		return ""
	}
	for _, candidate := range candidates {
		if strings.HasSuffix(candidate, ".en.srt") {
			return candidate
		}
	}
	return candidates[0]
}
