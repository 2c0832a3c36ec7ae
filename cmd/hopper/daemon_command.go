package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"hopper/internal/daemon"
	"hopper/internal/logging"
	"hopper/internal/queue"
	"hopper/internal/services/ffmpeg"
	"hopper/internal/services/ytdlp"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run the hopper daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			store, err := queue.Open(cfg)
			if err != nil {
				return fmt.Errorf("open queue store: %w", err)
			}
			defer store.Close()

			extractor, err := ytdlp.New(cfg.Tools.YtDlpBinary, cfg.Downloads.SubtitleLanguage, cfg.Tools.PathPrepend)
			if err != nil {
				return err
			}
			transcoder, err := ffmpeg.New(cfg.Tools.FFmpegBinary, cfg.Tools.PathPrepend)
			if err != nil {
				return err
			}

			d, err := daemon.New(cfg, store, logger, extractor, transcoder)
			if err != nil {
				return fmt.Errorf("create daemon: %w", err)
			}
			if err := d.Start(signalCtx); err != nil {
				return err
			}

			<-signalCtx.Done()
			d.Stop()
			return nil
		},
	}
}
