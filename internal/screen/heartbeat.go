package screen

import (
	"context"
	"log/slog"
	"time"
)

func runHeartbeat(ctx context.Context, interval time.Duration, st *runState, logger *slog.Logger) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			scanned, passed, accepted, errs := st.snapshot()
			logger.Info("heartbeat", "scanned", scanned, "passed_base", passed, "accepted", accepted, "errors", errs)
		}
	}
}
