package saver

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"moex-bonds/internal/model"
)

const (
	ResultsSheet = "Results"
	LogSheet     = "Log"
)

// XLSXSaver writes a workbook with the results table, the criteria block under
// it and a Log sheet with one event per row.
type XLSXSaver struct{}

func (XLSXSaver) Extension() string { return "xlsx" }

func (XLSXSaver) Save(report model.Report, path string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", ResultsSheet); err != nil {
		return err
	}
	if err := writeResults(f, report); err != nil {
		return fmt.Errorf("results sheet: %w", err)
	}
	if len(report.Log) > 0 {
		if err := writeLog(f, report.Log); err != nil {
			return fmt.Errorf("log sheet: %w", err)
		}
	}
	return f.SaveAs(path)
}

func writeResults(f *excelize.File, report model.Report) error {
	headers := ResultHeaders()
	header := make([]any, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	if err := f.SetSheetRow(ResultsSheet, "A1", &header); err != nil {
		return err
	}
	for i, b := range report.Bonds {
		row := b.Row()
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(ResultsSheet, cell, &row); err != nil {
			return err
		}
	}
	last := len(report.Bonds) + 1

	center, err := f.NewStyle(&excelize.Style{Alignment: &excelize.Alignment{Horizontal: "center"}})
	if err != nil {
		return err
	}
	lastCol, err := excelize.ColumnNumberToName(len(headers))
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(ResultsSheet, "A1", fmt.Sprintf("%s%d", lastCol, last), center); err != nil {
		return err
	}
	thousands, err := f.NewStyle(&excelize.Style{NumFmt: 3, Alignment: &excelize.Alignment{Horizontal: "center"}})
	if err != nil {
		return err
	}
	if last > 1 {
		if err := f.SetCellStyle(ResultsSheet, "E2", fmt.Sprintf("E%d", last), thousands); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(ResultsSheet, "A", "A", 45); err != nil {
		return err
	}
	if err := f.SetColWidth(ResultsSheet, "B", lastCol, 16); err != nil {
		return err
	}
	if err := f.SetPanes(ResultsSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return err
	}

	// criteria block two rows under the table
	title := last + 2
	if err := f.SetCellValue(ResultsSheet, fmt.Sprintf("A%d", title),
		fmt.Sprintf("Generated %s (run %s) with criteria:", report.GeneratedAt.Format("2006-01-02 15:04:05"), report.RunID)); err != nil {
		return err
	}
	body := title + 1
	if err := f.MergeCell(ResultsSheet, fmt.Sprintf("A%d", body), fmt.Sprintf("D%d", body)); err != nil {
		return err
	}
	if err := f.SetRowHeight(ResultsSheet, body, 100); err != nil {
		return err
	}
	if err := f.SetCellValue(ResultsSheet, fmt.Sprintf("A%d", body), report.Criteria.Summary()); err != nil {
		return err
	}
	wrap, err := f.NewStyle(&excelize.Style{Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"}})
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(ResultsSheet, fmt.Sprintf("A%d", body), fmt.Sprintf("D%d", body), wrap); err != nil {
		return err
	}
	return f.SetCellValue(ResultsSheet, fmt.Sprintf("A%d", body+2), fmt.Sprintf("Errors during the run: %d", report.Errors))
}

func writeLog(f *excelize.File, lines []string) error {
	if _, err := f.NewSheet(LogSheet); err != nil {
		return err
	}
	if err := f.SetColWidth(LogSheet, "A", "A", 150); err != nil {
		return err
	}
	if err := f.SetCellValue(LogSheet, "A1", "Event"); err != nil {
		return err
	}
	for i, line := range lines {
		if err := f.SetCellValue(LogSheet, fmt.Sprintf("A%d", i+2), line); err != nil {
			return err
		}
	}
	return nil
}
