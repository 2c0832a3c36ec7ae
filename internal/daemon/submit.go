package daemon

import (
	"context"
	"fmt"
	"strings"
	"time"

	"hopper/internal/api"
	"hopper/internal/logging"
	"hopper/internal/queue"
	"hopper/internal/services/ytdlp"
)

const (
	defaultProbeTimeout = 30 * time.Second
	checkPreviewLimit   = 10
)

func (d *Daemon) probeTimeout() time.Duration {
	if d.cfg.Downloads.ProbeTimeout > 0 {
		return time.Duration(d.cfg.Downloads.ProbeTimeout) * time.Second
	}
	return defaultProbeTimeout
}

// Check probes a URL without enqueueing anything. Probe failures degrade to
// an unknown single source so the caller can still submit.
func (d *Daemon) Check(ctx context.Context, req api.SubmitRequest) (api.CheckResponse, error) {
	rawURL := strings.TrimSpace(req.URL)
	if rawURL == "" {
		return api.CheckResponse{}, fmt.Errorf("url is required")
	}

	entries, err := d.extractor.Probe(ctx, rawURL, req.NoPlaylist, d.probeTimeout())
	if err != nil {
		d.logger.Warn("probe failed during check",
			logging.String("url", rawURL),
			logging.Error(err))
		entries = nil
	}

	if len(entries) > 1 {
		resp := api.CheckResponse{Type: api.SourcePlaylist, Count: len(entries)}
		for i, entry := range entries {
			resp.TotalDuration += int64(entry.Duration)
			if i < checkPreviewLimit {
				resp.Items = append(resp.Items, api.SourcePreview{
					Title:        entry.DisplayTitle(),
					Channel:      entry.DisplayChannel(),
					Duration:     int64(entry.Duration),
					ThumbnailURL: entry.Thumbnail,
				})
			}
		}
		return resp, nil
	}

	var meta ytdlp.Metadata
	if len(entries) == 1 {
		meta = entries[0]
	}
	return api.CheckResponse{
		Type:         api.SourceSingle,
		Title:        meta.DisplayTitle(),
		Channel:      meta.DisplayChannel(),
		Duration:     int64(meta.Duration),
		ThumbnailURL: meta.Thumbnail,
	}, nil
}

// Submit probes a URL and enqueues one job per resolved source. A failed
// probe still queues the raw URL; metadata stays unknown until yt-dlp
// resolves it at download time.
func (d *Daemon) Submit(ctx context.Context, req api.SubmitRequest) (api.SubmitResponse, error) {
	rawURL := strings.TrimSpace(req.URL)
	if rawURL == "" {
		return api.SubmitResponse{}, fmt.Errorf("url is required")
	}
	mode := queue.Mode(strings.TrimSpace(req.Mode))
	if !mode.Valid() {
		return api.SubmitResponse{}, fmt.Errorf("invalid mode %q", req.Mode)
	}

	entries, err := d.extractor.Probe(ctx, rawURL, req.NoPlaylist, d.probeTimeout())
	if err != nil {
		d.logger.Warn("probe failed during submit; queueing url as-is",
			logging.String("url", rawURL),
			logging.Error(err))
		entries = nil
	}

	var params []queue.NewJobParams
	switch {
	case len(entries) > 1 && !req.NoPlaylist:
		limit := d.cfg.Downloads.PlaylistBatchLimit
		if limit > 0 && len(entries) > limit {
			d.logger.Warn("playlist truncated to batch limit",
				logging.Int("entries", len(entries)),
				logging.Int("limit", limit))
			entries = entries[:limit]
		}
		for _, entry := range entries {
			jobURL := entry.ResolvedURL()
			if jobURL == "" {
				continue
			}
			params = append(params, queue.NewJobParams{
				ID:           queue.NewJobID(),
				URL:          jobURL,
				Mode:         mode,
				Title:        entry.DisplayTitle(),
				Channel:      entry.DisplayChannel(),
				Duration:     int64(entry.Duration),
				ThumbnailURL: entry.Thumbnail,
			})
		}
	case len(entries) >= 1:
		entry := entries[0]
		params = append(params, queue.NewJobParams{
			ID:           queue.NewJobID(),
			URL:          rawURL,
			Mode:         mode,
			Title:        entry.DisplayTitle(),
			Channel:      entry.DisplayChannel(),
			Duration:     int64(entry.Duration),
			ThumbnailURL: entry.Thumbnail,
		})
	default:
		var meta ytdlp.Metadata
		params = append(params, queue.NewJobParams{
			ID:    queue.NewJobID(),
			URL:   rawURL,
			Mode:  mode,
			Title: meta.DisplayTitle(),
		})
	}

	resp := api.SubmitResponse{}
	for _, p := range params {
		job, err := d.store.NewJob(ctx, p)
		if err != nil {
			if resp.Queued > 0 {
				d.scheduler.Trigger()
			}
			return resp, err
		}
		resp.Queued++
		resp.IDs = append(resp.IDs, job.ID)
		d.logger.Info("job queued",
			logging.String(logging.FieldJobID, job.ID),
			logging.String("url", job.URL),
			logging.String("mode", string(job.Mode)))
	}

	d.scheduler.Trigger()
	return resp, nil
}
