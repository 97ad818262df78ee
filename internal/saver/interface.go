package saver

import (
	"path/filepath"
	"strings"

	"moex-bonds/internal/model"
)

// ReportSaver persists a screening report (results table plus run log) to path.
// High-level code (app) picks the implementation; the screener never sees it.
type ReportSaver interface {
	Save(report model.Report, path string) error
	Extension() string
}

// NewReportSaver creates implementation by format (xlsx, csv, parquet, json).
// Returns nil if format not supported.
func NewReportSaver(format string) ReportSaver {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "xlsx", "excel":
		return XLSXSaver{}
	case "csv":
		return CSVSaver{}
	case "parquet":
		return ParquetSaver{}
	case "json":
		return JSONSaver{}
	default:
		return nil
	}
}

// ReportFileName is bond_search_<date>.<ext>.
func ReportFileName(report model.Report, s ReportSaver) string {
	return "bond_search_" + report.GeneratedAt.Format("2006-01-02") + "." + s.Extension()
}

// MonthFullNames head the month columns of the results table.
var MonthFullNames = [12]string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

// ResultHeaders returns the results-table header row.
func ResultHeaders() []string {
	h := []string{"Name", "SecID", "Qualified investors", "Price, %", "Volume 15d", "Yield, %", "Duration, months"}
	return append(h, MonthFullNames[:]...)
}

// logSidecarPath is where savers without a log table put the run log.
func logSidecarPath(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ".log.txt"
}
