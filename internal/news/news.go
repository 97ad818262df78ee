// Package news resolves bond issuers and collects their recent news.
package news

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"moex-bonds/internal/slogx"
)

// Service runs the news mode.
type Service struct {
	Issuers *Resolver
	Feed    *Fetcher
	OutDir  string
	Workers int
	// LogOut receives the fan-in worker log; stderr when nil.
	LogOut io.Writer
}

// NewsDir is news_<YYYY-MM-DD> under OutDir.
func (s *Service) NewsDir(now time.Time) string {
	return filepath.Join(s.OutDir, "news_"+now.Format("2006-01-02"))
}

func runLogWriter(out io.Writer, lines <-chan string) {
	for l := range lines {
		fmt.Fprintln(out, l)
	}
}

// Run resolves the issuers of secIDs, fetches their news on Workers goroutines and
// writes one file per issuer. It returns the number of files written.
func (s *Service) Run(ctx context.Context, secIDs []string, now time.Time) (int, error) {
	companies, err := s.Issuers.ResolveAll(ctx, secIDs)
	if err != nil {
		return 0, err
	}
	if len(companies) == 0 {
		return 0, fmt.Errorf("news: no issuers resolved from %d securities", len(secIDs))
	}
	dir := s.NewsDir(now)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, err
	}

	out := s.LogOut
	if out == nil {
		out = os.Stderr
	}
	lines := make(chan string, 256)
	logger := slogx.NewChanLogger(lines, slog.LevelInfo)
	var logWg sync.WaitGroup
	logWg.Add(1)
	go func() {
		defer logWg.Done()
		runLogWriter(out, lines)
	}()
	defer func() {
		close(lines)
		logWg.Wait()
	}()

	workers := s.Workers
	if workers < 1 {
		workers = 1
	}
	var written atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, company := range companies {
		company := company
		g.Go(func() error {
			items, err := s.Feed.Fetch(gctx, company)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				logger.Error("news fetch failed", "issuer", company, "error", err)
				return nil
			}
			path, err := WriteFile(dir, company, items)
			if err != nil {
				return fmt.Errorf("news: write %s: %w", company, err)
			}
			written.Add(1)
			logger.Info("news saved", "issuer", company, "items", len(items), "path", path)
			return nil
		})
	}
	err = g.Wait()
	return int(written.Load()), err
}
