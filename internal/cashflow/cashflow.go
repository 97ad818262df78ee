// Package cashflow projects future coupon and face-value payments of a holdings list.
package cashflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"moex-bonds/internal/model"
	"moex-bonds/internal/provider/moex"
)

// Source fetches full payment schedules.
type Source interface {
	FetchBondization(ctx context.Context, secID string) (moex.Bondization, error)
}

// Project turns the schedule of one holding into cash flows dated after today.
// Unknown payment sizes count as zero.
func Project(b moex.Bondization, qty float64, now time.Time) []model.CashFlow {
	var out []model.CashFlow
	for _, c := range b.Coupons {
		if model.AfterToday(c.Date, now) {
			out = append(out, flow(c.Name, c.ISIN, c.Date, c.ValueRub, qty, model.FlowCoupon))
		}
	}
	for _, a := range b.Amortizations {
		if model.AfterToday(a.Date, now) {
			out = append(out, flow(a.Name, a.ISIN, a.Date, a.ValueRub, qty, model.FlowFaceValue))
		}
	}
	return out
}

func flow(name, isin string, date time.Time, value *float64, qty float64, kind model.CashFlowKind) model.CashFlow {
	var v float64
	if value != nil {
		v = *value
	}
	return model.CashFlow{Name: model.CleanName(name), ISIN: isin, Date: date, Amount: v * qty, Kind: kind}
}

// Collect projects every holding. A holding whose schedule cannot be fetched is
// logged and left out; only a cancelled context stops the loop.
func Collect(ctx context.Context, src Source, holdings []model.Holding, now time.Time, logger *slog.Logger) ([]model.CashFlow, error) {
	var flows []model.CashFlow
	for _, h := range holdings {
		b, err := src.FetchBondization(ctx, h.SecID)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return flows, err
			}
			logger.Error("bondization failed, holding skipped", "secid", h.SecID, "error", err)
			continue
		}
		f := Project(b, h.Quantity, now)
		logger.Info("holding projected", "secid", h.SecID, "quantity", h.Quantity, "payments", len(f))
		flows = append(flows, f...)
	}
	return flows, nil
}

// Headers of the cash-flow sheet.
var Headers = []any{"Name", "ID", "Payment date", "Cash flow, RUB (coupon | face value)"}

// clearRows removes every row of sheet, bottom up, keeping the sheet where it is.
func clearRows(f *excelize.File, sheet string) error {
	rows, err := f.GetRows(sheet)
	if err != nil {
		return err
	}
	for r := len(rows); r >= 1; r-- {
		if err := f.RemoveRow(sheet, r); err != nil {
			return err
		}
	}
	return nil
}

// WriteSheet replaces the contents of sheet in the workbook at path with flows and a
// trailer row, then saves in place. An existing sheet keeps its position.
func WriteSheet(path, sheet string, flows []model.CashFlow, now time.Time) error {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return fmt.Errorf("open workbook %s: %w", path, err)
	}
	defer f.Close()

	if idx, _ := f.GetSheetIndex(sheet); idx >= 0 {
		if err := clearRows(f, sheet); err != nil {
			return fmt.Errorf("clear sheet %q: %w", sheet, err)
		}
	} else if _, err := f.NewSheet(sheet); err != nil {
		return err
	}
	header := Headers
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	for i, fl := range flows {
		row := []any{fl.Label(), fl.ISIN, fl.Date, fl.Amount}
		if err := f.SetSheetRow(sheet, fmt.Sprintf("A%d", i+2), &row); err != nil {
			return err
		}
	}

	if len(flows) > 0 {
		dateFmt := "dd.mm.yyyy"
		dateStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: &dateFmt})
		if err != nil {
			return err
		}
		moneyFmt := `#,##0.00 "₽"`
		moneyStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: &moneyFmt})
		if err != nil {
			return err
		}
		last := len(flows) + 1
		if err := f.SetCellStyle(sheet, "C2", fmt.Sprintf("C%d", last), dateStyle); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, "D2", fmt.Sprintf("D%d", last), moneyStyle); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(sheet, "A", "A", 50); err != nil {
		return err
	}
	if err := f.SetColWidth(sheet, "B", "D", 20); err != nil {
		return err
	}
	trailer := fmt.Sprintf("Updated %s", now.Format("02.01.2006 15:04:05"))
	if err := f.SetCellValue(sheet, fmt.Sprintf("B%d", len(flows)+2), trailer); err != nil {
		return err
	}
	return f.Save()
}
