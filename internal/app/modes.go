package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"moex-bonds/internal/allocate"
	s3blob "moex-bonds/internal/blob/s3"
	"moex-bonds/internal/bondlist"
	"moex-bonds/internal/cashflow"
	"moex-bonds/internal/model"
	"moex-bonds/internal/news"
	"moex-bonds/internal/provider"
	"moex-bonds/internal/saver"
	"moex-bonds/internal/screen"
	"moex-bonds/internal/slogx"
)

// AllocationFile is written by the allocate mode under OutputDir.
const AllocationFile = "bonds_calculation purchase volume.xlsx"

const issuerCacheTTL = time.Hour

// ErrInterrupted is returned by RunFlow when a signal stopped the mode.
var ErrInterrupted = errors.New("interrupted by signal")

// Runner executes one mode with its dependencies.
type Runner struct {
	Config   *Config
	Criteria model.SearchCriteria
	MOEX     *provider.MOEXProvider
	Saver    saver.ReportSaver
	Archiver *s3blob.Archiver // nil disables upload
	Recorder *slogx.Recorder

	now func() time.Time
}

func (r *Runner) clock() time.Time {
	if r.now != nil {
		return r.now()
	}
	return time.Now()
}

// RunFlow runs mode until it finishes or SIGINT/SIGTERM arrives.
// On a signal the mode's context is cancelled and RunFlow waits for it to return.
func RunFlow(r *Runner, mode string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- r.Run(ctx, mode) }()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signals)

	select {
	case err := <-done:
		return err
	case sig := <-signals:
		slog.Info("received signal, graceful shutdown", "sig", sig, "mode", mode)
		cancel()
		return errors.Join(ErrInterrupted, <-done)
	}
}

// Run dispatches to the mode handler.
func (r *Runner) Run(ctx context.Context, mode string) error {
	switch mode {
	case ModeSearch, "":
		return r.Search(ctx)
	case ModeCashFlow:
		return r.CashFlow(ctx)
	case ModeNews:
		return r.News(ctx)
	case ModeAllocate:
		return r.Allocate(ctx)
	default:
		return fmt.Errorf("unknown mode %q (use: %s, %s, %s, %s)", mode, ModeSearch, ModeCashFlow, ModeNews, ModeAllocate)
	}
}

// Search screens every board group and saves the report.
// No report is written when nothing matched.
func (r *Runner) Search(ctx context.Context) error {
	cfg := r.Config
	if r.Recorder == nil {
		r.Recorder = &slogx.Recorder{}
	}
	r.Recorder.Reset()
	logger := slogx.NewRecordingLogger(r.Recorder, cfg.LogLevel)
	r.MOEX.SetLogger(logger)
	defer r.MOEX.SetLogger(nil)

	logger.Info("search started", "provider", r.MOEX.GetName(), "criteria", r.Criteria.Summary())
	s := screen.New(r.MOEX, r.Criteria,
		screen.WithBoardGroups(cfg.BoardGroups),
		screen.WithRetry(cfg.RetryAttempts, cfg.RetryBackoff),
		screen.WithLogger(logger),
	)
	res, runErr := s.Run(ctx)
	if errors.Is(runErr, screen.ErrNoMatches) {
		logger.Warn("no bonds matched the criteria, report not written", "errors", res.Errors)
		return nil
	}
	if runErr != nil && len(res.Bonds) == 0 {
		return runErr
	}

	report := model.Report{
		RunID:       res.RunID,
		GeneratedAt: res.Finished,
		Criteria:    r.Criteria,
		Bonds:       res.Bonds,
		Errors:      res.Errors,
		Log:         r.Recorder.Lines(),
	}
	if report.GeneratedAt.IsZero() {
		report.GeneratedAt = r.clock()
	}
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("output dir: %w", err)
	}
	path := filepath.Join(cfg.OutputDir, saver.ReportFileName(report, r.Saver))
	if err := r.Saver.Save(report, path); err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	slog.Info("report saved", "path", path, "bonds", len(report.Bonds), "errors", report.Errors)

	if r.Archiver != nil {
		uri, err := r.Archiver.Upload(ctx, path)
		if err != nil {
			slog.Error("report upload failed", "path", path, "err", err)
		} else {
			slog.Info("report uploaded", "uri", uri)
		}
	}
	return runErr
}

// CashFlow projects coupon and redemption flows for the holdings in BondsFile.
func (r *Runner) CashFlow(ctx context.Context) error {
	cfg := r.Config
	holdings, err := bondlist.LoadHoldings(cfg.BondsFile, cfg.SourceSheet)
	if err != nil {
		return err
	}
	if len(holdings) == 0 {
		return fmt.Errorf("no holdings in %s", cfg.BondsFile)
	}
	now := r.clock()
	flows, err := cashflow.Collect(ctx, r.MOEX, holdings, now, slog.Default())
	if err != nil {
		return err
	}
	if err := cashflow.WriteSheet(cfg.BondsFile, cfg.CashFlowSheet, flows, now); err != nil {
		return err
	}
	slog.Info("cash flow written", "file", cfg.BondsFile, "sheet", cfg.CashFlowSheet, "flows", len(flows))
	return nil
}

// News collects issuer headlines for the bonds in BondsFile.
func (r *Runner) News(ctx context.Context) error {
	cfg := r.Config
	ids, err := bondlist.LoadSecIDs(cfg.BondsFile, cfg.SourceSheet)
	if err != nil {
		return err
	}
	svc := &news.Service{
		Issuers: news.NewResolver(r.MOEX, issuerCacheTTL, slog.Default()),
		Feed:    news.NewFetcher(cfg.NewsFeedURL, cfg.NewsRate),
		OutDir:  cfg.OutputDir,
		Workers: cfg.NewsWorkers,
	}
	now := r.clock()
	n, err := svc.Run(ctx, ids, now)
	if err != nil {
		return err
	}
	slog.Info("news collected", "dir", svc.NewsDir(now), "files", n)
	return nil
}

// Allocate splits AvailableMoney evenly over the bonds in BondsFile.
func (r *Runner) Allocate(ctx context.Context) error {
	cfg := r.Config
	ids, err := bondlist.LoadSecIDs(cfg.BondsFile, cfg.SourceSheet)
	if err != nil {
		return err
	}
	quotes, err := allocate.Quotes(ctx, r.MOEX, ids, slog.Default())
	if err != nil {
		return err
	}
	plan, err := allocate.Even(cfg.AvailableMoney, quotes)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("output dir: %w", err)
	}
	path := filepath.Join(cfg.OutputDir, AllocationFile)
	if err := allocate.WriteWorkbook(path, plan); err != nil {
		return err
	}
	slog.Info("allocation written", "path", path,
		"bonds", len(plan.Items), "spent", plan.Spent.String(), "remainder", plan.Remainder.String())
	return nil
}
