package ytdlp

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"hopper/internal/services"
)

// Metadata is the subset of the extractor's --dump-json output the queue
// cares about. Playlist entries in flat mode carry url instead of
// webpage_url.
type Metadata struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	FullTitle   string  `json:"fulltitle"`
	Channel     string  `json:"channel"`
	Uploader    string  `json:"uploader"`
	Creator     string  `json:"creator"`
	Duration    float64 `json:"duration"`
	Thumbnail   string  `json:"thumbnail"`
	WebpageURL  string  `json:"webpage_url"`
	URL         string  `json:"url"`
	OriginalURL string  `json:"original_url"`
}

// DisplayTitle returns the best available title, defaulting when the probe
// came back empty.
func (m Metadata) DisplayTitle() string {
	if m.Title != "" {
		return m.Title
	}
	if m.FullTitle != "" {
		return m.FullTitle
	}
	return "Unknown Title"
}

// DisplayChannel returns the best available channel name.
func (m Metadata) DisplayChannel() string {
	for _, candidate := range []string{m.Channel, m.Uploader, m.Creator} {
		if candidate != "" {
			return candidate
		}
	}
	return ""
}

// ResolvedURL returns the per-entry URL for playlist expansion.
func (m Metadata) ResolvedURL() string {
	for _, candidate := range []string{m.WebpageURL, m.URL, m.OriginalURL} {
		if candidate != "" {
			return candidate
		}
	}
	return ""
}

// Probe resolves metadata for a URL without downloading. Playlists yield one
// entry per line; noPlaylist forces single-video treatment. The timeout
// bounds the whole probe since flat playlist extraction can still crawl.
func (c *Client) Probe(ctx context.Context, rawURL string, noPlaylist bool, timeout time.Duration) ([]Metadata, error) {
	if strings.TrimSpace(rawURL) == "" {
		return nil, services.Wrap(services.ErrValidation, "ytdlp", "probe", "url required", nil)
	}

	probeCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		probeCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	playlistFlag := "--yes-playlist"
	if noPlaylist {
		playlistFlag = "--no-playlist"
	}
	args := []string{"--dump-json", "--no-download", "--no-warnings", "--flat-playlist", playlistFlag, rawURL}

	var entries []Metadata
	err := c.exec.Run(probeCtx, c.binary, args, RunOptions{
		PathPrepend: c.pathPrepend,
		OnLine: func(line string) {
			var meta Metadata
			if jsonErr := json.Unmarshal([]byte(line), &meta); jsonErr != nil {
				return
			}
			entries = append(entries, meta)
		},
	})
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "ytdlp", "probe", "metadata probe", err)
	}
	return entries, nil
}
