package saver

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"moex-bonds/internal/model"
)

// CSVSaver writes the results table as CSV and the run log next to it.
type CSVSaver struct{}

func (CSVSaver) Extension() string { return "csv" }

func (CSVSaver) Save(report model.Report, path string) error {
	err := writeFile(path, func(out io.Writer) error {
		w := csv.NewWriter(out)
		if err := w.Write(ResultHeaders()); err != nil {
			return err
		}
		for _, b := range report.Bonds {
			rec := []string{
				b.Name,
				b.SecID,
				b.Qualified.String(),
				floatStr(b.Price),
				strconv.FormatInt(b.Volume, 10),
				floatStr(b.Yield),
				floatStr(b.Duration),
			}
			rec = append(rec, b.Months[:]...)
			if err := w.Write(rec); err != nil {
				return err
			}
		}
		w.Flush()
		return w.Error()
	})
	if err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return writeLogSidecar(path, report.Log)
}

func floatStr(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
