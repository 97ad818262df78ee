package app

import (
	"context"

	s3blob "moex-bonds/internal/blob/s3"
	"moex-bonds/internal/model"
	"moex-bonds/internal/provider"
	"moex-bonds/internal/saver"
	"moex-bonds/internal/slogx"
)

// ProvideConfig loads config from environment (for Wire).
func ProvideConfig() (*Config, error) {
	return LoadConfig()
}

// ProvideCriteria builds the validated search criteria (for Wire).
func ProvideCriteria(cfg *Config) (model.SearchCriteria, error) {
	return LoadCriteria(cfg)
}

// ProvideReportSaver creates ReportSaver from config (for Wire).
// Returns error if SaveFormat is not supported.
func ProvideReportSaver(cfg *Config) (saver.ReportSaver, error) {
	return CreateReportSaver(cfg)
}

// ProvideMOEXProvider creates the ISS provider (for Wire).
// Caller must call Close() when shutting down.
func ProvideMOEXProvider(cfg *Config) *provider.MOEXProvider {
	return CreateMOEXProvider(cfg)
}

// ProvideArchiver creates the optional S3 archiver (for Wire).
func ProvideArchiver(cfg *Config) (*s3blob.Archiver, error) {
	return CreateArchiver(context.Background(), cfg)
}

// ProvideRecorder creates the run-log recorder (for Wire).
func ProvideRecorder() *slogx.Recorder {
	return &slogx.Recorder{}
}
