package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/orb/internal/trace"
)

// traceFlushTimeout bounds the final span flush on shutdown.
const traceFlushTimeout = 2 * time.Second

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the orb until interrupted",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if dry, _ := cmd.Flags().GetBool("dry-run"); dry {
			os.Setenv("ORB_DRY_RUN", "true")
		}
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		setupLogging(cfg.LogLevel)
		if cfg.TraceSpans {
			flush := trace.Setup(slog.Default())
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), traceFlushTimeout)
				defer cancel()
				if err := flush(ctx); err != nil {
					slog.Warn("span flush failed", "error", err)
				}
			}()
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runOrb(ctx, cfg, cmd.InOrStdin())
	},
}

func init() {
	runCmd.Flags().Bool("dry-run", false, "Use console triggers and log LED output")
}
