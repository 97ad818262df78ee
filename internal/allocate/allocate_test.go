package allocate

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"moex-bonds/internal/model"
	"moex-bonds/internal/provider/moex"
)

func quote(id, price, accrued string) model.Quote {
	return model.Quote{
		SecID:   id,
		Date:    time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC),
		Price:   decimal.RequireFromString(price),
		Accrued: decimal.RequireFromString(accrued),
	}
}

func TestEven(t *testing.T) {
	p, err := Even(decimal.NewFromInt(700000), []model.Quote{
		quote("A", "985", "12.34"),
		quote("B", "1010.5", "0"),
	})
	require.NoError(t, err)

	assert.Equal(t, "350000", p.PerBond.String())
	require.Len(t, p.Items, 2)
	assert.Equal(t, int64(350), p.Items[0].Quantity)
	assert.Equal(t, "349069", p.Items[0].Spent.String())
	assert.Equal(t, int64(346), p.Items[1].Quantity)
	assert.Equal(t, "349633", p.Items[1].Spent.String())
	assert.Equal(t, "698702", p.Spent.String())
	assert.Equal(t, "1298", p.Remainder.String())
}

func TestEvenRejectsBadInput(t *testing.T) {
	_, err := Even(decimal.NewFromInt(1000), nil)
	assert.ErrorIs(t, err, ErrNoQuotes)

	_, err = Even(decimal.Zero, []model.Quote{quote("A", "1000", "0")})
	assert.Error(t, err)
}

func TestEvenTooExpensive(t *testing.T) {
	p, err := Even(decimal.NewFromInt(500), []model.Quote{quote("A", "1000", "5")})
	require.NoError(t, err)
	assert.Equal(t, int64(0), p.Items[0].Quantity)
	assert.True(t, p.Remainder.Equal(decimal.NewFromInt(500)))
}

type fakeQuotes map[string]model.Quote

func (f fakeQuotes) FetchQuote(_ context.Context, secID string) (model.Quote, error) {
	q, ok := f[secID]
	if !ok {
		return model.Quote{}, &moex.DataAbsentError{What: "close for " + secID}
	}
	return q, nil
}

func TestQuotesSkipsMissing(t *testing.T) {
	src := fakeQuotes{"A": quote("A", "985", "1")}
	qs, err := Quotes(context.Background(), src, []string{"A", "B"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	require.Len(t, qs, 1)
	assert.Equal(t, "A", qs[0].SecID)
}

type cancelledQuotes struct{}

func (cancelledQuotes) FetchQuote(ctx context.Context, _ string) (model.Quote, error) {
	return model.Quote{}, context.Canceled
}

func TestQuotesStopsOnCancel(t *testing.T) {
	_, err := Quotes(context.Background(), cancelledQuotes{}, []string{"A"}, slog.Default())
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestWriteWorkbook(t *testing.T) {
	p, err := Even(decimal.NewFromInt(10000), []model.Quote{quote("A", "985", "15")})
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "alloc.xlsx")
	require.NoError(t, WriteWorkbook(path, p))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(Sheet)
	require.NoError(t, err)
	assert.Equal(t, "SecID", rows[0][0])
	assert.Equal(t, []string{"A", "2026-10-16", "985", "15", "1000", "10", "10000"}, rows[1])
	rem, err := f.GetCellValue(Sheet, "G6")
	require.NoError(t, err)
	assert.Equal(t, "0", rem)
}
