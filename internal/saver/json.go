package saver

import (
	"encoding/json"
	"io"

	"moex-bonds/internal/model"
)

// JSONSaver writes the whole report, log included, as indented JSON.
type JSONSaver struct{}

func (JSONSaver) Extension() string { return "json" }

func (JSONSaver) Save(report model.Report, path string) error {
	return writeFile(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	})
}
