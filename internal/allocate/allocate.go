// Package allocate splits a sum of money evenly across a list of bonds.
package allocate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"moex-bonds/internal/model"
)

// ErrNoQuotes means none of the bonds had a recent price.
var ErrNoQuotes = errors.New("allocate: no bonds with a recent price")

// QuoteSource returns the latest price and accrued interest of a bond.
type QuoteSource interface {
	FetchQuote(ctx context.Context, secID string) (model.Quote, error)
}

// Plan is the outcome of an allocation.
type Plan struct {
	Money     decimal.Decimal
	PerBond   decimal.Decimal
	Items     []model.Allocation
	Spent     decimal.Decimal
	Remainder decimal.Decimal
}

// Quotes fetches a quote per bond; bonds without one are logged and dropped.
func Quotes(ctx context.Context, src QuoteSource, secIDs []string, logger *slog.Logger) ([]model.Quote, error) {
	var out []model.Quote
	for _, id := range secIDs {
		q, err := src.FetchQuote(ctx, id)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return out, err
			}
			logger.Warn("no quote, bond skipped", "secid", id, "error", err)
			continue
		}
		logger.Info("quote", "secid", id, "date", q.Date.Format("2006-01-02"), "price", q.Price.StringFixed(2), "accrued", q.Accrued.StringFixed(2))
		out = append(out, q)
	}
	return out, nil
}

// Even gives every bond the same share of money and buys as many whole bonds as fit.
func Even(money decimal.Decimal, quotes []model.Quote) (Plan, error) {
	if len(quotes) == 0 {
		return Plan{}, ErrNoQuotes
	}
	if !money.IsPositive() {
		return Plan{}, fmt.Errorf("allocate: money must be positive, got %s", money)
	}
	p := Plan{Money: money, PerBond: money.Div(decimal.NewFromInt(int64(len(quotes))))}
	for _, q := range quotes {
		a := model.Allocation{Quote: q, Spent: decimal.Zero}
		if unit := q.UnitCost(); unit.IsPositive() {
			a.Quantity = p.PerBond.Div(unit).Floor().IntPart()
			a.Spent = unit.Mul(decimal.NewFromInt(a.Quantity))
		}
		p.Spent = p.Spent.Add(a.Spent)
		p.Items = append(p.Items, a)
	}
	p.Remainder = money.Sub(p.Spent)
	return p, nil
}

// Sheet is the allocation sheet name.
const Sheet = "Allocation"

// WriteWorkbook saves the plan as a new workbook at path.
func WriteWorkbook(path string, p Plan) error {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", Sheet); err != nil {
		return err
	}
	header := []any{"SecID", "Price date", "Price, RUB", "Accrued, RUB", "Unit cost, RUB", "Quantity", "Spent, RUB"}
	if err := f.SetSheetRow(Sheet, "A1", &header); err != nil {
		return err
	}
	for i, a := range p.Items {
		row := []any{
			a.SecID,
			a.Date.Format("2006-01-02"),
			a.Price.Round(2).InexactFloat64(),
			a.Accrued.Round(2).InexactFloat64(),
			a.UnitCost().Round(2).InexactFloat64(),
			a.Quantity,
			a.Spent.Round(2).InexactFloat64(),
		}
		if err := f.SetSheetRow(Sheet, fmt.Sprintf("A%d", i+2), &row); err != nil {
			return err
		}
	}
	totals := len(p.Items) + 3
	summary := [][]any{
		{"Available", p.Money.Round(2).InexactFloat64()},
		{"Spent", p.Spent.Round(2).InexactFloat64()},
		{"Remainder", p.Remainder.Round(2).InexactFloat64()},
	}
	for i, r := range summary {
		row := r
		if err := f.SetSheetRow(Sheet, fmt.Sprintf("F%d", totals+i), &row); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(Sheet, "A", "G", 18); err != nil {
		return err
	}
	return f.SaveAs(path)
}
