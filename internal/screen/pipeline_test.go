package screen

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moex-bonds/internal/model"
	"moex-bonds/internal/provider/moex"
)

var testNow = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

type fakeMarket struct {
	groups   map[int]moex.GroupListing
	groupErr map[int]error
	history  map[string][]moex.TradeDay
	coupons  map[string][]moex.Coupon
	qual     map[string]moex.Qualification
	failures map[string][]error
	calls    map[string]int
}

func newFakeMarket() *fakeMarket {
	return &fakeMarket{
		groups:   map[int]moex.GroupListing{},
		groupErr: map[int]error{},
		history:  map[string][]moex.TradeDay{},
		coupons:  map[string][]moex.Coupon{},
		qual:     map[string]moex.Qualification{},
		failures: map[string][]error{},
		calls:    map[string]int{},
	}
}

// failNext queues errors returned by op for secID before it succeeds.
func (f *fakeMarket) failNext(op, secID string, errs ...error) {
	f.failures[op+":"+secID] = append(f.failures[op+":"+secID], errs...)
}

func (f *fakeMarket) pop(op, secID string) error {
	key := op + ":" + secID
	f.calls[key]++
	q := f.failures[key]
	if len(q) == 0 {
		return nil
	}
	f.failures[key] = q[1:]
	return q[0]
}

func (f *fakeMarket) ListGroupSecurities(_ context.Context, groupID int) (moex.GroupListing, error) {
	f.calls[fmt.Sprintf("group:%d", groupID)]++
	if err := f.groupErr[groupID]; err != nil {
		return moex.GroupListing{}, err
	}
	return f.groups[groupID], nil
}

func (f *fakeMarket) ResolvePrimaryBoard(_ context.Context, secID string) (string, error) {
	if err := f.pop("board", secID); err != nil {
		return "", err
	}
	return "TQCB", nil
}

func (f *fakeMarket) FetchVolumeHistory(_ context.Context, secID, board string, since time.Time, dayLimit int) ([]moex.TradeDay, error) {
	if err := f.pop("history", secID); err != nil {
		return nil, err
	}
	if board != "TQCB" || !since.Equal(testNow.Add(-Lookback)) || dayLimit != moex.HistoryDayLimit {
		return nil, fmt.Errorf("bad history request %s %s %d", board, since, dayLimit)
	}
	return f.history[secID], nil
}

func (f *fakeMarket) FetchCouponSchedule(_ context.Context, secID string) ([]moex.Coupon, error) {
	if err := f.pop("coupons", secID); err != nil {
		return nil, err
	}
	return f.coupons[secID], nil
}

func (f *fakeMarket) FetchQualification(_ context.Context, secID string) (moex.Qualification, error) {
	if err := f.pop("qual", secID); err != nil {
		return moex.Qualification{}, err
	}
	return f.qual[secID], nil
}

type candidate struct {
	id       string
	yield    float64
	price    float64
	duration float64 // days
	volume   int64   // per day, six days
}

func ptr(v float64) *float64 { return &v }

// addGroup lists candidates under group with liquid history and known future coupons.
func (f *fakeMarket) addGroup(group int, cands ...candidate) {
	l := moex.GroupListing{Market: map[string]moex.MarketData{}}
	for _, c := range cands {
		l.Securities = append(l.Securities, moex.Security{SecID: c.id, Name: `Bond "` + c.id + `"`, PrevPrice: ptr(c.price)})
		l.Market[c.id] = moex.MarketData{Yield: ptr(c.yield), DurationDays: ptr(c.duration)}
		f.history[c.id] = days(MinTradingDays, c.volume)
		f.coupons[c.id] = []moex.Coupon{
			{ISIN: c.id, Date: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), ValueRub: nil},
			{ISIN: c.id, Date: time.Date(2027, 1, 15, 0, 0, 0, 0, time.UTC), ValueRub: ptr(40)},
			{ISIN: c.id, Date: time.Date(2027, 4, 15, 0, 0, 0, 0, time.UTC), ValueRub: ptr(40)},
		}
	}
	f.groups[group] = l
}

func days(n int, vol int64) []moex.TradeDay {
	out := make([]moex.TradeDay, n)
	for i := range out {
		out[i] = moex.TradeDay{Date: testNow.AddDate(0, 0, -n+i), Volume: vol, NumTrades: 10}
	}
	return out
}

type sleepRecorder struct{ slept []time.Duration }

func (r *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	r.slept = append(r.slept, d)
	return nil
}

func newTestScreener(md MarketData, groups []int, opts ...Option) (*Screener, *sleepRecorder) {
	rec := &sleepRecorder{}
	base := []Option{
		WithBoardGroups(groups),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithHeartbeat(0),
		WithClock(func() time.Time { return testNow }, rec.sleep),
	}
	return New(md, model.DefaultCriteria(), append(base, opts...)...), rec
}

func secIDs(bonds []model.Bond) []string {
	out := make([]string, len(bonds))
	for i, b := range bonds {
		out[i] = b.SecID
	}
	return out
}

var transportErr = &moex.TransportError{URL: "http://iss", Status: 503, Err: errors.New("unavailable")}

func TestRunSortsByVolumeStable(t *testing.T) {
	md := newFakeMarket()
	md.addGroup(58,
		candidate{id: "A", yield: 20, price: 100, duration: 300, volume: 15000},
		candidate{id: "B", yield: 20, price: 100, duration: 300, volume: 12000},
	)
	md.addGroup(193,
		candidate{id: "C", yield: 20, price: 100, duration: 300, volume: 15000},
		candidate{id: "D", yield: 20, price: 100, duration: 300, volume: 20000},
	)

	for i := 0; i < 3; i++ {
		s, _ := newTestScreener(md, []int{58, 193})
		res, err := s.Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []string{"D", "A", "C", "B"}, secIDs(res.Bonds))
		assert.Equal(t, 0, res.Errors)
	}
}

func TestRunBuildsBondRecord(t *testing.T) {
	md := newFakeMarket()
	md.addGroup(58, candidate{id: "A", yield: 39.9, price: 119.9, duration: 539.7, volume: 15000})
	md.qual["A"] = moex.Qualification{Required: true, Group: "Structured"}

	s, _ := newTestScreener(md, []int{58})
	res, err := s.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Bonds, 1)

	b := res.Bonds[0]
	assert.Equal(t, "Bond A", b.Name)
	assert.Equal(t, 17.99, b.Duration)
	assert.Equal(t, int64(90000), b.Volume)
	assert.Equal(t, model.QualRequired, b.Qualified)
	assert.Equal(t, model.MonthMarker, b.Months[time.January-1])
	assert.Equal(t, model.MonthMarker, b.Months[time.April-1])
	assert.Equal(t, "", b.Months[time.March-1], "past coupons do not mark months")
	assert.NotEmpty(t, res.RunID)
}

func TestRunRejectsOnBaseFilter(t *testing.T) {
	md := newFakeMarket()
	md.addGroup(58,
		candidate{id: "DUR18", yield: 20, price: 100, duration: 540, volume: 15000},
		candidate{id: "CHEAP", yield: 20, price: 60, duration: 300, volume: 15000},
	)

	s, _ := newTestScreener(md, []int{58})
	_, err := s.Run(context.Background())
	assert.ErrorIs(t, err, ErrNoMatches)
	assert.Zero(t, md.calls["board:DUR18"], "rejected candidates make no further calls")
}

func TestGroupTransportFailureSkipsGroup(t *testing.T) {
	md := newFakeMarket()
	md.addGroup(58, candidate{id: "A", yield: 20, price: 100, duration: 300, volume: 15000})
	md.addGroup(193, candidate{id: "C", yield: 20, price: 100, duration: 300, volume: 15000})
	md.groupErr[58] = transportErr

	s, rec := newTestScreener(md, []int{58, 193})
	res, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"C"}, secIDs(res.Bonds))
	assert.Equal(t, 1, res.Errors)
	assert.Equal(t, 1, md.calls["group:58"], "group listing is not retried")
	assert.Empty(t, rec.slept)
	require.Len(t, res.Abandoned, 1)
	assert.Equal(t, 58, res.Abandoned[0].Group)
}

func TestAllGroupsFailingIsNoMatches(t *testing.T) {
	md := newFakeMarket()
	groups := []int{58, 193, 105}
	for _, g := range groups {
		md.groupErr[g] = transportErr
	}

	s, _ := newTestScreener(md, groups)
	res, err := s.Run(context.Background())
	require.ErrorIs(t, err, ErrNoMatches)
	assert.Nil(t, res.Bonds)
	assert.Equal(t, 3, res.Errors)
}

func TestRetryThenSucceed(t *testing.T) {
	md := newFakeMarket()
	md.addGroup(58, candidate{id: "A", yield: 20, price: 100, duration: 300, volume: 15000})
	md.failNext("history", "A", transportErr, errors.New("boom"))

	s, rec := newTestScreener(md, []int{58})
	res, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, secIDs(res.Bonds))
	assert.Equal(t, 2, res.Errors)
	assert.Equal(t, []time.Duration{DefaultBackoff, DefaultBackoff}, rec.slept)
	assert.Equal(t, 3, md.calls["history:A"])
	assert.Equal(t, 1, md.calls["coupons:A"], "retry repeats the failed stage only")
}

func TestRetryBudgetIsPerSecurity(t *testing.T) {
	md := newFakeMarket()
	md.addGroup(58,
		candidate{id: "A", yield: 20, price: 100, duration: 300, volume: 15000},
		candidate{id: "B", yield: 20, price: 100, duration: 300, volume: 12000},
	)
	md.failNext("history", "A", transportErr, transportErr)
	md.failNext("coupons", "A", transportErr, transportErr, transportErr)

	s, rec := newTestScreener(md, []int{58})
	res, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, secIDs(res.Bonds))
	assert.Equal(t, 5, res.Errors)
	assert.Len(t, rec.slept, 4, "no pause after the final attempt")
	require.Len(t, res.Abandoned, 1)
	assert.Equal(t, "coupons", res.Abandoned[0].Stage)
	assert.Contains(t, res.Abandoned[0].Reason, ErrRetriesExhausted.Error())
}

func TestDataAbsentAbandonsWithoutRetry(t *testing.T) {
	md := newFakeMarket()
	md.addGroup(58, candidate{id: "A", yield: 20, price: 100, duration: 300, volume: 15000})
	md.failNext("board", "A", &moex.DataAbsentError{What: "primary board for A"})

	s, rec := newTestScreener(md, []int{58})
	res, err := s.Run(context.Background())
	require.ErrorIs(t, err, ErrNoMatches)
	assert.Equal(t, 0, res.Errors)
	assert.Empty(t, rec.slept)
	assert.Equal(t, 1, md.calls["board:A"])
	require.Len(t, res.Abandoned, 1)
	assert.Equal(t, "liquidity", res.Abandoned[0].Stage)
}

func TestLiquidityStageRejects(t *testing.T) {
	md := newFakeMarket()
	md.addGroup(58,
		candidate{id: "THIN", yield: 20, price: 100, duration: 300, volume: 50000},
		candidate{id: "FEW", yield: 20, price: 100, duration: 300, volume: 50000},
		candidate{id: "SMALL", yield: 20, price: 100, duration: 300, volume: 10000},
	)
	md.history["THIN"][2].Volume = 1999
	md.history["FEW"] = days(5, 1000000)

	s, _ := newTestScreener(md, []int{58})
	_, err := s.Run(context.Background())
	assert.ErrorIs(t, err, ErrNoMatches)
	assert.Zero(t, md.calls["coupons:THIN"])
	assert.Zero(t, md.calls["coupons:FEW"])
	assert.Zero(t, md.calls["coupons:SMALL"], "60000 is not above the 60000 threshold")
}

func TestCouponPolicy(t *testing.T) {
	setup := func() *fakeMarket {
		md := newFakeMarket()
		md.addGroup(58, candidate{id: "FLOAT", yield: 20, price: 100, duration: 300, volume: 15000})
		md.coupons["FLOAT"] = append(md.coupons["FLOAT"], moex.Coupon{ISIN: "FLOAT", Date: time.Date(2027, 7, 15, 0, 0, 0, 0, time.UTC)})
		return md
	}

	s, _ := newTestScreener(setup(), []int{58})
	_, err := s.Run(context.Background())
	assert.ErrorIs(t, err, ErrNoMatches)

	lenient := model.DefaultCriteria()
	lenient.Policy = model.PolicyLenient
	s, _ = newTestScreener(setup(), []int{58})
	s.criteria = lenient
	res, err := s.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Bonds, 1)
	assert.Equal(t, model.MonthMarker, res.Bonds[0].Months[time.July-1])
}

func TestQualificationFailureKeepsBond(t *testing.T) {
	md := newFakeMarket()
	md.addGroup(58, candidate{id: "A", yield: 20, price: 100, duration: 300, volume: 15000})
	md.failNext("qual", "A", &moex.DataAbsentError{What: "description"})

	s, _ := newTestScreener(md, []int{58})
	res, err := s.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Bonds, 1)
	assert.Equal(t, model.QualLookupError, res.Bonds[0].Qualified)
}

func TestCancelledRunReturnsPartialResult(t *testing.T) {
	md := newFakeMarket()
	md.addGroup(58, candidate{id: "A", yield: 20, price: 100, duration: 300, volume: 15000})
	md.addGroup(193, candidate{id: "C", yield: 20, price: 100, duration: 300, volume: 15000})

	ctx, cancel := context.WithCancel(context.Background())
	s, _ := newTestScreener(&cancelOnQualification{fakeMarket: md, cancel: cancel}, []int{58, 193})
	res, err := s.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"A"}, secIDs(res.Bonds))
}

// cancelOnQualification cancels the run after the first qualification lookup.
type cancelOnQualification struct {
	*fakeMarket
	cancel context.CancelFunc
}

func (c *cancelOnQualification) FetchQualification(ctx context.Context, secID string) (moex.Qualification, error) {
	q, err := c.fakeMarket.FetchQualification(ctx, secID)
	c.cancel()
	return q, err
}

func TestJoinAbandonedReasons(t *testing.T) {
	var list []Abandoned
	for i := 0; i < 8; i++ {
		list = append(list, Abandoned{SecID: fmt.Sprintf("S%d", i), Stage: "coupons", Reason: "x"})
	}
	list[0] = Abandoned{Group: 58, Stage: "listing", Reason: "503"}

	got := joinAbandonedReasons(list)
	assert.Contains(t, got, "group 58 [listing]: 503")
	assert.Contains(t, got, "(+3 more)")
	assert.NotContains(t, got, "S6")
	assert.Empty(t, joinAbandonedReasons(nil))
}
