package config

const (
	defaultStorageRoot            = "~/.local/share/hopper/dump"
	defaultLogDir                 = "~/.local/share/hopper/logs"
	defaultAPIBind                = "127.0.0.1:7489"
	defaultYtDlpBinary            = "yt-dlp"
	defaultFFmpegBinary           = "ffmpeg"
	defaultMaxConcurrent          = 2
	defaultSubtitleLanguage       = "en"
	defaultProbeTimeout           = 60
	defaultPlaylistBatchLimit     = 200
	defaultQueuePollInterval      = 5
	defaultErrorRetryInterval     = 10
	defaultStoreReconnectInterval = 30
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StorageRoot: defaultStorageRoot,
			LogDir:      defaultLogDir,
			APIBind:     defaultAPIBind,
		},
		Tools: Tools{
			YtDlpBinary:  defaultYtDlpBinary,
			FFmpegBinary: defaultFFmpegBinary,
		},
		Downloads: Downloads{
			MaxConcurrent:      defaultMaxConcurrent,
			SubtitleLanguage:   defaultSubtitleLanguage,
			ProbeTimeout:       defaultProbeTimeout,
			PlaylistBatchLimit: defaultPlaylistBatchLimit,
		},
		Workflow: Workflow{
			QueuePollInterval:      defaultQueuePollInterval,
			ErrorRetryInterval:     defaultErrorRetryInterval,
			StoreReconnectInterval: defaultStoreReconnectInterval,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
