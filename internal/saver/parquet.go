package saver

import (
	"github.com/parquet-go/parquet-go"

	"moex-bonds/internal/model"
)

// bondRow is the flat parquet schema of one result.
type bondRow struct {
	RunID     string   `parquet:"run_id"`
	Name      string   `parquet:"name"`
	SecID     string   `parquet:"secid"`
	Qualified string   `parquet:"qualified"`
	Price     float64  `parquet:"price"`
	Volume    int64    `parquet:"volume"`
	Yield     float64  `parquet:"yield"`
	Duration  float64  `parquet:"duration"`
	Months    []string `parquet:"payment_months,list"`
}

// ParquetSaver writes the results as Parquet and the run log next to it.
type ParquetSaver struct{}

func (ParquetSaver) Extension() string { return "parquet" }

func (ParquetSaver) Save(report model.Report, path string) error {
	rows := make([]bondRow, 0, len(report.Bonds))
	for _, b := range report.Bonds {
		r := bondRow{
			RunID:     report.RunID,
			Name:      b.Name,
			SecID:     b.SecID,
			Qualified: b.Qualified.String(),
			Price:     b.Price,
			Volume:    b.Volume,
			Yield:     b.Yield,
			Duration:  b.Duration,
		}
		for i, m := range b.Months {
			if m != "" {
				r.Months = append(r.Months, model.MonthShortNames[i])
			}
		}
		rows = append(rows, r)
	}
	if err := parquet.WriteFile(path, rows); err != nil {
		return err
	}
	return writeLogSidecar(path, report.Log)
}
