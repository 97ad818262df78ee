package screen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"moex-bonds/internal/model"
	"moex-bonds/internal/provider/moex"
)

// DefaultBoardGroups is the fixed group order; it decides ties in the final sort.
var DefaultBoardGroups = []int{58, 193, 105, 77, 207, 167, 245}

// Lookback is the volume-history window.
const Lookback = 15 * 24 * time.Hour

// ErrNoMatches means the run finished and no bond satisfied the criteria.
var ErrNoMatches = errors.New("screen: no bonds match the criteria")

// MarketData is the subset of the ISS client the screener needs.
type MarketData interface {
	ListGroupSecurities(ctx context.Context, groupID int) (moex.GroupListing, error)
	ResolvePrimaryBoard(ctx context.Context, secID string) (string, error)
	FetchVolumeHistory(ctx context.Context, secID, board string, since time.Time, dayLimit int) ([]moex.TradeDay, error)
	FetchCouponSchedule(ctx context.Context, secID string) ([]moex.Coupon, error)
	FetchQualification(ctx context.Context, secID string) (moex.Qualification, error)
}

// Result is the outcome of one screening run.
type Result struct {
	RunID     string
	Started   time.Time
	Finished  time.Time
	Bonds     []model.Bond
	Errors    int
	Abandoned []Abandoned
}

// Screener runs the multi-stage bond filter over all board groups.
type Screener struct {
	md        MarketData
	criteria  model.SearchCriteria
	groups    []int
	attempts  int
	backoff   time.Duration
	heartbeat time.Duration
	logger    *slog.Logger
	now       func() time.Time
	sleep     func(ctx context.Context, d time.Duration) error
}

// Option configures a Screener.
type Option func(*Screener)

// WithBoardGroups overrides the board groups and their order.
func WithBoardGroups(groups []int) Option {
	return func(s *Screener) { s.groups = append([]int(nil), groups...) }
}

// WithRetry sets the per-security attempt budget and the pause after a failure.
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(s *Screener) {
		s.attempts = attempts
		s.backoff = backoff
	}
}

// WithLogger sets the run logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Screener) { s.logger = l }
}

// WithHeartbeat sets how often progress is logged; zero turns it off.
func WithHeartbeat(d time.Duration) Option {
	return func(s *Screener) { s.heartbeat = d }
}

// WithClock replaces time.Now and the backoff sleep.
func WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(s *Screener) {
		if now != nil {
			s.now = now
		}
		if sleep != nil {
			s.sleep = sleep
		}
	}
}

// New creates a Screener for criteria.
func New(md MarketData, criteria model.SearchCriteria, opts ...Option) *Screener {
	s := &Screener{
		md:        md,
		criteria:  criteria,
		groups:    DefaultBoardGroups,
		attempts:  DefaultAttempts,
		backoff:   DefaultBackoff,
		heartbeat: 30 * time.Second,
		logger:    slog.Default(),
		now:       time.Now,
		sleep:     sleepCtx,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Run screens every board group and returns accepted bonds sorted by volume, largest first.
// It returns ErrNoMatches (with a populated Result) when nothing was accepted. A cancelled
// context stops the run early; bonds accepted so far are still returned with ctx.Err().
func (s *Screener) Run(ctx context.Context) (Result, error) {
	res := Result{RunID: uuid.NewString(), Started: s.now()}
	st := &runState{}

	s.logger.Info("screening started", "run_id", res.RunID, "groups", fmt.Sprint(s.groups))
	s.logger.Info("criteria", "summary", s.criteria.Summary())

	hbCtx, stopHeartbeat := context.WithCancel(ctx)
	go runHeartbeat(hbCtx, s.heartbeat, st, s.logger)

	var bonds []model.Bond
	var runErr error
groups:
	for _, group := range s.groups {
		listing, err := s.md.ListGroupSecurities(ctx, group)
		if err != nil {
			if ctx.Err() != nil {
				runErr = ctx.Err()
				break
			}
			st.addError()
			st.abandon(Abandoned{Group: group, Stage: "listing", Reason: err.Error()})
			s.logger.Error("board group skipped", "group", group, "error", err)
			continue
		}
		if len(listing.Market) == 0 {
			s.logger.Info("board group has no market data, skipped", "group", group)
			continue
		}
		s.logger.Info("board group listed", "group", group, "securities", len(listing.Securities))

		for pos, sec := range listing.Securities {
			if err := ctx.Err(); err != nil {
				runErr = err
				break groups
			}
			bond, ok, err := s.screenOne(ctx, st, group, pos, sec, listing.Market)
			if err != nil {
				runErr = err
				break groups
			}
			if ok {
				bonds = append(bonds, bond)
				st.addAccepted()
			}
		}
	}
	stopHeartbeat()

	sortByVolume(bonds)
	res.Bonds = bonds
	res.Finished = s.now()
	_, _, _, res.Errors = st.snapshot()
	res.Abandoned = st.abandoned

	if len(res.Abandoned) > 0 {
		s.logger.Warn("abandoned", "count", len(res.Abandoned), "details", joinAbandonedReasons(res.Abandoned))
	}
	s.logger.Info("screening finished", "accepted", len(bonds), "errors", res.Errors, "elapsed", res.Finished.Sub(res.Started).Round(time.Second))

	if runErr != nil {
		return res, runErr
	}
	if len(bonds) == 0 {
		return res, ErrNoMatches
	}
	return res, nil
}

// sortByVolume orders bonds by volume descending; equal volumes keep discovery order.
func sortByVolume(bonds []model.Bond) {
	sort.SliceStable(bonds, func(i, j int) bool {
		return bonds[i].Volume > bonds[j].Volume
	})
}
