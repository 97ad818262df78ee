package bondlist

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"moex-bonds/internal/model"
)

// LoadSecIDs reads a list of security ids from a file.
// Supported formats:
//   - .txt  : one id per line, '#' lines are treated as comments
//   - .json : JSON array of strings
//   - .xlsx : first column of sheet; a header cell that is not an id is skipped
func LoadSecIDs(path, sheet string) ([]string, error) {
	var ids []string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read file: %w", err)
		}
		if err := json.Unmarshal(content, &ids); err != nil {
			return nil, fmt.Errorf("parse JSON: %w", err)
		}
	case ".txt":
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read file: %w", err)
		}
		ids = parseIDsFromText(string(content))
	case ".xlsx":
		rows, err := readRows(path, sheet)
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			if len(r) > 0 && looksLikeSecID(r[0]) {
				ids = append(ids, r[0])
			}
		}
	default:
		return nil, fmt.Errorf("unsupported bond list extension %q (use .txt, .json or .xlsx)", filepath.Ext(path))
	}

	// Remove empty and duplicates
	seen := make(map[string]bool)
	var unique []string
	for _, id := range ids {
		id = strings.TrimSpace(strings.ToUpper(id))
		if id != "" && !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}

	slog.Info("loaded bond list", "count", len(unique), "path", path)
	return unique, nil
}

// LoadHoldings reads (security id, quantity) rows from sheet of an xlsx workbook.
// Rows whose quantity is not a number, such as a header, are skipped.
func LoadHoldings(path, sheet string) ([]model.Holding, error) {
	rows, err := readRows(path, sheet)
	if err != nil {
		return nil, err
	}
	var out []model.Holding
	for i, r := range rows {
		if len(r) < 2 || strings.TrimSpace(r[0]) == "" {
			continue
		}
		qty, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(r[1]), ",", "."), 64)
		if err != nil {
			if i > 0 {
				slog.Warn("skipping holding row", "row", i+1, "quantity", r[1])
			}
			continue
		}
		out = append(out, model.Holding{SecID: strings.TrimSpace(r[0]), Quantity: qty})
	}
	slog.Info("loaded holdings", "count", len(out), "path", path, "sheet", sheet)
	return out, nil
}

func readRows(path, sheet string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", path, err)
	}
	defer f.Close()
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	return rows, nil
}

// parseIDsFromText parses one id per non-empty, non-comment line.
func parseIDsFromText(s string) []string {
	lines := strings.Split(s, "\n")
	var ids []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "#") {
			ids = append(ids, line)
		}
	}
	return ids
}

// looksLikeSecID accepts upper-case latin letters and digits only, which rules out header text.
func looksLikeSecID(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	for _, r := range s {
		if !(r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}
