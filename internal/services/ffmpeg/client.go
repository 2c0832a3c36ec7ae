// Package ffmpeg wraps the transcoder for post-processing: proxy renditions
// of downloaded video and PCM normalization of extracted audio.
package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"hopper/internal/services"
)

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string) error
}

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

// Client wraps ffmpeg CLI interactions.
type Client struct {
	binary      string
	pathPrepend string
	exec        Executor
}

// New constructs an ffmpeg client.
func New(binary, pathPrepend string, opts ...Option) (*Client, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("ffmpeg binary required")
	}
	client := &Client{
		binary:      binary,
		pathPrepend: pathPrepend,
		exec:        commandExecutor{pathPrepend: pathPrepend},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// ProxyPath derives the proxy rendition path for a primary media file. The
// proxy sits alongside the original with a _proxy suffix, always mp4.
func ProxyPath(inputPath string) string {
	ext := filepath.Ext(inputPath)
	stem := strings.TrimSuffix(inputPath, ext)
	return stem + "_proxy.mp4"
}

// BuildProxy transcodes inputPath into a preview rendition: H.264 at a fixed
// quality target, capped to 1080p height preserving aspect, AAC audio, and
// fast-start playback. The original file is never touched. Returns the proxy
// path.
func (c *Client) BuildProxy(ctx context.Context, inputPath string) (string, error) {
	if strings.TrimSpace(inputPath) == "" {
		return "", services.Wrap(services.ErrValidation, "ffmpeg", "proxy", "input path required", nil)
	}
	outputPath := ProxyPath(inputPath)

	args := []string{
		"-y", "-i", inputPath,
		"-c:v", "libx264", "-preset", "fast", "-crf", "23",
		"-vf", "scale=-2:1080",
		"-c:a", "aac", "-b:a", "128k",
		"-movflags", "+faststart",
		outputPath,
	}
	if err := c.exec.Run(ctx, c.binary, args); err != nil {
		return "", services.Wrap(services.ErrExternalTool, "ffmpeg", "proxy", "transcode", err)
	}
	return outputPath, nil
}

// NormalizePCM rewrites a wav file as 48kHz stereo 16-bit PCM in place,
// transcoding to a temp file and swapping it in only on success.
func (c *Client) NormalizePCM(ctx context.Context, wavPath string) error {
	if strings.TrimSpace(wavPath) == "" {
		return services.Wrap(services.ErrValidation, "ffmpeg", "normalize", "input path required", nil)
	}
	tmpPath := wavPath + ".tmp.wav"

	args := []string{
		"-y", "-i", wavPath,
		"-ar", "48000", "-ac", "2", "-sample_fmt", "s16", "-c:a", "pcm_s16le",
		tmpPath,
	}
	if err := c.exec.Run(ctx, c.binary, args); err != nil {
		_ = os.Remove(tmpPath)
		return services.Wrap(services.ErrExternalTool, "ffmpeg", "normalize", "transcode", err)
	}

	if err := os.Remove(wavPath); err != nil {
		_ = os.Remove(tmpPath)
		return services.Wrap(services.ErrExternalTool, "ffmpeg", "normalize", "replace original", err)
	}
	if err := os.Rename(tmpPath, wavPath); err != nil {
		return services.Wrap(services.ErrExternalTool, "ffmpeg", "normalize", "rename normalized output", err)
	}
	return nil
}

type commandExecutor struct {
	pathPrepend string
}

func (e commandExecutor) Run(ctx context.Context, binary string, args []string) error {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	if e.pathPrepend != "" {
		cmd.Env = prependPath(os.Environ(), e.pathPrepend)
	}
	output, err := cmd.CombinedOutput()
	if err != nil {
		tail := lastOutputLines(output, 5)
		if tail != "" {
			return fmt.Errorf("%w: %s", err, tail)
		}
		return err
	}
	return nil
}

func prependPath(env []string, prefix string) []string {
	for i, entry := range env {
		if strings.HasPrefix(entry, "PATH=") {
			env[i] = "PATH=" + prefix + string(os.PathListSeparator) + strings.TrimPrefix(entry, "PATH=")
			return env
		}
	}
	return append(env, "PATH="+prefix)
}

func lastOutputLines(output []byte, n int) string {
	trimmed := strings.TrimSpace(string(output))
	if trimmed == "" {
		return ""
	}
	lines := strings.Split(trimmed, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "; ")
}
