// Package ytdlp wraps the yt-dlp extractor: metadata probes, download
// invocations, and classification of the tool's line-oriented output.
package ytdlp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"hopper/internal/services"
)

// Option configures the client.
type Option func(*Client)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(c *Client) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// Client wraps yt-dlp CLI interactions.
type Client struct {
	binary           string
	subtitleLanguage string
	pathPrepend      string
	exec             Executor
}

// New constructs a yt-dlp client.
func New(binary, subtitleLanguage, pathPrepend string, opts ...Option) (*Client, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("yt-dlp binary required")
	}
	if strings.TrimSpace(subtitleLanguage) == "" {
		subtitleLanguage = "en"
	}
	client := &Client{
		binary:           binary,
		subtitleLanguage: subtitleLanguage,
		pathPrepend:      pathPrepend,
		exec:             commandExecutor{},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// ValidMode reports whether mode names a supported download mode.
func ValidMode(mode string) bool {
	switch mode {
	case ModeFull, ModeText, ModeWav:
		return true
	}
	return false
}

// Download runs the extractor for one job. Each classified output line is
// delivered to onEvent; onStart receives the child pid before any events.
// The returned error carries the subprocess exit code when the tool failed,
// extractable via ExitCode.
func (c *Client) Download(ctx context.Context, req DownloadRequest, onEvent func(Event), onStart func(pid int)) error {
	if strings.TrimSpace(req.URL) == "" {
		return services.Wrap(services.ErrValidation, "ytdlp", "download", "url required", nil)
	}
	if !ValidMode(req.Mode) {
		return services.Wrap(services.ErrValidation, "ytdlp", "download", fmt.Sprintf("unsupported mode %q", req.Mode), nil)
	}
	if strings.TrimSpace(req.OutputDir) == "" {
		return services.Wrap(services.ErrValidation, "ytdlp", "download", "output directory required", nil)
	}
	if strings.TrimSpace(req.Stem) == "" {
		req.Stem = "untitled"
	}
	if err := os.MkdirAll(req.OutputDir, 0o755); err != nil {
		return services.Wrap(services.ErrExternalTool, "ytdlp", "download", "create output directory", err)
	}

	args := buildArgs(req, c.subtitleLanguage)
	err := c.exec.Run(ctx, c.binary, args, RunOptions{
		PathPrepend: c.pathPrepend,
		OnStart:     onStart,
		OnLine: func(line string) {
			if onEvent == nil {
				return
			}
			if event := Classify(line); event.Kind != KindNone {
				onEvent(event)
			}
		},
	})
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "ytdlp", "download", "extractor run", err)
	}
	return nil
}
