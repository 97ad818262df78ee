package cashflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"moex-bonds/internal/model"
	"moex-bonds/internal/provider/moex"
)

var now = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

func ptr(v float64) *float64 { return &v }

func schedule() moex.Bondization {
	return moex.Bondization{
		Coupons: []moex.Coupon{
			{ISIN: "RU000A1", Name: `"Bond" One`, Date: time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), ValueRub: ptr(40)},
			{ISIN: "RU000A1", Name: `"Bond" One`, Date: time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC), ValueRub: ptr(40.5)},
			{ISIN: "RU000A1", Name: `"Bond" One`, Date: time.Date(2027, 7, 1, 0, 0, 0, 0, time.UTC)},
		},
		Amortizations: []moex.Amortization{
			{ISIN: "RU000A1", Name: `"Bond" One`, Date: time.Date(2027, 7, 1, 0, 0, 0, 0, time.UTC), ValueRub: ptr(1000)},
		},
	}
}

func TestProject(t *testing.T) {
	flows := Project(schedule(), 10, now)
	require.Len(t, flows, 3)

	assert.Equal(t, "Bond One (coupon)", flows[0].Label())
	assert.Equal(t, 405.0, flows[0].Amount)
	assert.Equal(t, 0.0, flows[1].Amount, "unknown coupon counts as zero")
	assert.Equal(t, model.FlowFaceValue, flows[2].Kind)
	assert.Equal(t, 10000.0, flows[2].Amount)
}

func TestProjectSkipsPaymentsDatedToday(t *testing.T) {
	msk := time.FixedZone("MSK", 3*60*60)
	early := time.Date(2027, 1, 1, 1, 0, 0, 0, msk)

	flows := Project(schedule(), 1, early)
	require.Len(t, flows, 2)
	assert.Equal(t, time.July, flows[0].Date.Month())
}

type fakeSource map[string]moex.Bondization

func (f fakeSource) FetchBondization(_ context.Context, secID string) (moex.Bondization, error) {
	b, ok := f[secID]
	if !ok {
		return moex.Bondization{}, &moex.TransportError{URL: secID, Status: 500, Err: errors.New("down")}
	}
	return b, nil
}

func TestCollectSkipsFailures(t *testing.T) {
	src := fakeSource{"RU000A1": schedule()}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	flows, err := Collect(context.Background(), src, []model.Holding{{SecID: "BROKEN", Quantity: 1}, {SecID: "RU000A1", Quantity: 2}}, now, logger)
	require.NoError(t, err)
	assert.Len(t, flows, 3)
}

func TestWriteSheet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bonds.xlsx")
	f := excelize.NewFile()
	_, err := f.NewSheet("Cash flow")
	require.NoError(t, err)
	require.NoError(t, f.SetCellValue("Cash flow", "A1", "stale"))
	require.NoError(t, f.SetCellValue("Cash flow", "A9", "stale"))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	flows := Project(schedule(), 1, now)
	require.NoError(t, WriteSheet(path, "Cash flow", flows, now))

	f, err = excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Cash flow")
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, "Name", rows[0][0])
	assert.Equal(t, "Bond One (coupon)", rows[1][0])
	assert.Equal(t, "RU000A1", rows[1][1])
	assert.NotEmpty(t, rows[1][2])
	assert.Equal(t, "Bond One (face value)", rows[3][0])
	assert.Contains(t, rows[4][1], "Updated 19.10.2026")
}

func TestWriteSheetKeepsSheetPosition(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bonds.xlsx")
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetName("Sheet1", "Source"))
	for _, name := range []string{"Cash flow", "Notes"} {
		_, err := f.NewSheet(name)
		require.NoError(t, err)
	}
	for r := 1; r <= 12; r++ {
		require.NoError(t, f.SetCellValue("Cash flow", fmt.Sprintf("A%d", r), "stale"))
	}
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	require.NoError(t, WriteSheet(path, "Cash flow", Project(schedule(), 1, now), now))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"Source", "Cash flow", "Notes"}, f.GetSheetList())
	rows, err := f.GetRows("Cash flow")
	require.NoError(t, err)
	assert.Len(t, rows, 5)
	for _, r := range rows {
		assert.NotContains(t, r, "stale")
	}
}
