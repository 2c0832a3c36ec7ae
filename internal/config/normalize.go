package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeTools()
	c.normalizeDownloads()
	c.normalizeWorkflow()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StorageRoot) == "" {
		c.Paths.StorageRoot = defaultStorageRoot
	}
	if c.Paths.StorageRoot, err = expandPath(c.Paths.StorageRoot); err != nil {
		return fmt.Errorf("paths.storage_root: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeTools() {
	c.Tools.YtDlpBinary = strings.TrimSpace(c.Tools.YtDlpBinary)
	if c.Tools.YtDlpBinary == "" {
		c.Tools.YtDlpBinary = defaultYtDlpBinary
	}
	c.Tools.FFmpegBinary = strings.TrimSpace(c.Tools.FFmpegBinary)
	if c.Tools.FFmpegBinary == "" {
		c.Tools.FFmpegBinary = defaultFFmpegBinary
	}
	c.Tools.PathPrepend = strings.TrimSpace(c.Tools.PathPrepend)
}

func (c *Config) normalizeDownloads() {
	if c.Downloads.MaxConcurrent <= 0 {
		c.Downloads.MaxConcurrent = defaultMaxConcurrent
	}
	c.Downloads.SubtitleLanguage = strings.ToLower(strings.TrimSpace(c.Downloads.SubtitleLanguage))
	if c.Downloads.SubtitleLanguage == "" {
		c.Downloads.SubtitleLanguage = defaultSubtitleLanguage
	}
	if c.Downloads.ProbeTimeout <= 0 {
		c.Downloads.ProbeTimeout = defaultProbeTimeout
	}
	if c.Downloads.PlaylistBatchLimit <= 0 {
		c.Downloads.PlaylistBatchLimit = defaultPlaylistBatchLimit
	}
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.QueuePollInterval <= 0 {
		c.Workflow.QueuePollInterval = defaultQueuePollInterval
	}
	if c.Workflow.ErrorRetryInterval <= 0 {
		c.Workflow.ErrorRetryInterval = defaultErrorRetryInterval
	}
	if c.Workflow.StoreReconnectInterval <= 0 {
		c.Workflow.StoreReconnectInterval = defaultStoreReconnectInterval
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
