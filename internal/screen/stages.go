package screen

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"moex-bonds/internal/model"
	"moex-bonds/internal/provider/moex"
)

// MinTradingDays is the fewest history rows a liquid bond may have in the window.
const MinTradingDays = 6

// screenOne walks one security through the stages. The error is non-nil only
// when the context ends; a rejected or abandoned security returns ok=false.
func (s *Screener) screenOne(ctx context.Context, st *runState, group, pos int, sec moex.Security, market map[string]moex.MarketData) (model.Bond, bool, error) {
	log := s.logger.With("secid", sec.SecID, "group", group, "row", pos)

	md, found := market[sec.SecID]
	if !found {
		st.addScanned(false)
		log.Debug("no market data, skipped")
		return model.Bond{}, false, nil
	}
	bond, passed := s.baseFilter(sec, md)
	st.addScanned(passed)
	if !passed {
		log.Debug("rejected by base filter")
		return model.Bond{}, false, nil
	}
	log.Info("passed base filter", "name", bond.Name, "price", bond.Price, "yield", bond.Yield, "duration", bond.Duration)

	rs := newRetryState(s.attempts, s.backoff)
	abandon := func(stage string, err error) (model.Bond, bool, error) {
		if ctx.Err() != nil {
			return model.Bond{}, false, ctx.Err()
		}
		st.abandon(Abandoned{SecID: sec.SecID, Group: group, Stage: stage, Reason: err.Error()})
		log.Warn("security abandoned", "stage", stage, "error", err)
		return model.Bond{}, false, nil
	}

	var vol model.VolumeAssessment
	err := s.run(ctx, st, rs, sec.SecID, "liquidity", func() error {
		var err error
		vol, err = s.assessVolume(ctx, sec.SecID)
		return err
	})
	if err != nil {
		return abandon("liquidity", err)
	}
	if vol.LowLiquid || vol.Total <= s.criteria.BondVolumeMore {
		log.Info("rejected: low liquidity", "days", vol.Days, "total", vol.Total, "low_liquid", vol.LowLiquid,
			"daily_mean", math.Round(vol.Mean), "daily_stddev", math.Round(vol.StdDev))
		return model.Bond{}, false, nil
	}
	bond.Volume = vol.Total
	log.Info("liquid", "days", vol.Days, "total", vol.Total, "daily_mean", math.Round(vol.Mean), "daily_stddev", math.Round(vol.StdDev))

	var sched model.PaymentSchedule
	err = s.run(ctx, st, rs, sec.SecID, "coupons", func() error {
		coupons, err := s.md.FetchCouponSchedule(ctx, sec.SecID)
		if err != nil {
			return err
		}
		sched = paymentSchedule(coupons, s.now())
		return nil
	})
	if err != nil {
		return abandon("coupons", err)
	}
	if s.criteria.Policy == model.PolicyStrict && sched.NullCount > 0 {
		log.Info("rejected: future coupons of unknown size", "unknown", sched.NullCount)
		return model.Bond{}, false, nil
	}
	bond.Months = sched.Months

	bond.Qualified = s.qualification(ctx, st, rs, log, sec.SecID)
	log.Info("accepted", "volume", bond.Volume, "unknown_coupons", sched.NullCount, "qualified", bond.Qualified.String())
	return bond, true, nil
}

// baseFilter applies the yield, price and duration bounds to listing data.
func (s *Screener) baseFilter(sec moex.Security, md moex.MarketData) (model.Bond, bool) {
	if md.Yield == nil || sec.PrevPrice == nil {
		return model.Bond{}, false
	}
	var days float64
	if md.DurationDays != nil {
		days = *md.DurationDays
	}
	b := model.Bond{
		Name:     model.CleanName(sec.Name),
		SecID:    sec.SecID,
		Price:    *sec.PrevPrice,
		Yield:    *md.Yield,
		Duration: model.DurationMonths(days),
	}
	return b, s.criteria.PassesBase(b.Yield, b.Price, b.Duration)
}

func (s *Screener) assessVolume(ctx context.Context, secID string) (model.VolumeAssessment, error) {
	board, err := s.md.ResolvePrimaryBoard(ctx, secID)
	if err != nil {
		return model.VolumeAssessment{}, err
	}
	since := s.now().Add(-Lookback)
	days, err := s.md.FetchVolumeHistory(ctx, secID, board, since, moex.HistoryDayLimit)
	if err != nil {
		return model.VolumeAssessment{}, err
	}
	a := assessLiquidity(days, s.criteria.VolumeMore)
	s.logger.Debug("volume history", "secid", secID, "board", board, "days", a.Days, "total", a.Total)
	return a, nil
}

// assessLiquidity flags the window as low-liquid when any day trades below
// volumeMore or there are fewer than MinTradingDays rows.
func assessLiquidity(days []moex.TradeDay, volumeMore int64) model.VolumeAssessment {
	a := model.VolumeAssessment{Days: len(days), LowLiquid: len(days) < MinTradingDays}
	vols := make([]float64, len(days))
	for i, d := range days {
		if d.Volume < volumeMore {
			a.LowLiquid = true
		}
		a.Total += d.Volume
		vols[i] = float64(d.Volume)
	}
	if len(vols) > 1 {
		a.Mean, a.StdDev = stat.MeanStdDev(vols, nil)
	} else if len(vols) == 1 {
		a.Mean = vols[0]
	}
	return a
}

// paymentSchedule counts future coupons of unknown size and marks their months.
func paymentSchedule(coupons []moex.Coupon, now time.Time) model.PaymentSchedule {
	var ps model.PaymentSchedule
	var dates []time.Time
	for _, c := range coupons {
		if !model.AfterToday(c.Date, now) {
			continue
		}
		if c.ValueRub == nil {
			ps.NullCount++
		}
		dates = append(dates, c.Date)
	}
	ps.Months = model.MarkMonths(dates)
	return ps
}

// qualification resolves the investor flag. It never rejects a bond: when the
// lookup cannot be completed the flag is QualLookupError.
func (s *Screener) qualification(ctx context.Context, st *runState, rs *retryState, log *slog.Logger, secID string) model.QualFlag {
	var q moex.Qualification
	err := s.run(ctx, st, rs, secID, "qualification", func() error {
		var err error
		q, err = s.md.FetchQualification(ctx, secID)
		return err
	})
	switch {
	case err != nil:
		if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			log.Warn("qualification lookup failed", "error", err)
		}
		return model.QualLookupError
	case q.Required:
		log.Info("qualified investors only", "category", q.Group)
		return model.QualRequired
	default:
		return model.QualNotRequired
	}
}
