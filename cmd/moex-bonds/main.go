package main

import (
	"errors"
	"log/slog"
	"os"
	"strings"

	"moex-bonds/internal/app"
	"moex-bonds/internal/slogx"
)

func init() {
	slog.SetDefault(slogx.NewDefault("info"))
}

func main() {
	a, err := InitializeApp()
	if err != nil {
		slog.Error("failed to initialize app", "error", err)
		os.Exit(1)
	}
	defer a.DP.Close()

	cfg := a.Config
	slog.SetDefault(slogx.NewDefault(cfg.LogLevel))

	mode := cfg.Mode
	if len(os.Args) > 1 {
		mode = strings.ToLower(os.Args[1])
	}
	slog.Info("starting", "mode", mode, "provider", a.DP.GetName(), "base_url", cfg.MOEXBaseURL, "api_delay", cfg.APIDelay)
	if a.Runner.Archiver != nil {
		slog.Info("report archival enabled", "bucket", cfg.S3.Bucket, "prefix", cfg.S3.Prefix)
	}

	if err := app.RunFlow(a.Runner, mode); err != nil {
		if errors.Is(err, app.ErrInterrupted) {
			slog.Warn("stopped before completion", "mode", mode)
		} else {
			slog.Error("run failed", "mode", mode, "error", err)
		}
		a.DP.Close()
		os.Exit(1)
	}
}
