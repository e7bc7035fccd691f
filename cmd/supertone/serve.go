package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/go-supertone/internal/server"
	"github.com/example/go-supertone/internal/tts"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the Supertone HTTP server",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			session, err := tts.NewSession(cfg)
			if err != nil {
				return err
			}
			defer session.Close()

			voices, err := tts.NewVoiceManager(cfg.Paths.VoiceManifest)
			if err != nil {
				return fmt.Errorf("open voice manifest: %w", err)
			}

			if cfg.Paths.Voice != "" {
				style, err := voices.LoadVoice(cfg.Paths.Voice)
				if err != nil {
					return fmt.Errorf("load default voice %q: %w", cfg.Paths.Voice, err)
				}
				if err := session.SetStyle(style); err != nil {
					return err
				}
			}

			slog.Info("starting server", "addr", cfg.Server.ListenAddr, "sample_rate", session.SampleRate())

			srv := server.New(cfg, session, voices).
				WithShutdownTimeout(30 * time.Second)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return srv.Start(ctx)
		},
	}

	return cmd
}
