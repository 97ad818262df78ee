package app

import (
	"context"
	"fmt"
	"strings"

	s3blob "moex-bonds/internal/blob/s3"
	"moex-bonds/internal/provider"
	"moex-bonds/internal/saver"
)

// CreateMOEXProvider creates the ISS-backed provider from config.
func CreateMOEXProvider(cfg *Config) *provider.MOEXProvider {
	return provider.NewMOEXProvider(cfg.MOEXBaseURL, cfg.APIDelay)
}

// CreateReportSaver resolves SAVE_FORMAT.
func CreateReportSaver(cfg *Config) (saver.ReportSaver, error) {
	s := saver.NewReportSaver(cfg.SaveFormat)
	if s == nil {
		return nil, fmt.Errorf("unsupported SAVE_FORMAT %q (use: xlsx, csv, json, parquet)", cfg.SaveFormat)
	}
	return s, nil
}

// CreateArchiver returns nil when no bucket is configured.
func CreateArchiver(ctx context.Context, cfg *Config) (*s3blob.Archiver, error) {
	if strings.TrimSpace(cfg.S3.Bucket) == "" {
		return nil, nil
	}
	return s3blob.New(ctx, cfg.S3)
}
