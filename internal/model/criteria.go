package model

import (
	"errors"
	"fmt"
	"strings"
)

// CouponPolicy decides what to do with future coupons of unknown size.
type CouponPolicy string

const (
	// PolicyStrict rejects bonds with any future coupon of unknown size.
	PolicyStrict CouponPolicy = "strict"
	// PolicyLenient ignores unknown coupon sizes.
	PolicyLenient CouponPolicy = "lenient"
)

// ParseCouponPolicy accepts strict/lenient and the yes/no spellings used in older configs.
func ParseCouponPolicy(s string) (CouponPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "strict", "yes", "да":
		return PolicyStrict, nil
	case "lenient", "no", "нет":
		return PolicyLenient, nil
	default:
		return "", fmt.Errorf("unknown coupon policy %q (use strict or lenient)", s)
	}
}

// SearchCriteria holds the screening thresholds. Yield and price bounds are
// inclusive, duration bounds are exclusive.
type SearchCriteria struct {
	YieldMore      float64      `toml:"yield_more" json:"yield_more"`
	YieldLess      float64      `toml:"yield_less" json:"yield_less"`
	PriceMore      float64      `toml:"price_more" json:"price_more"`
	PriceLess      float64      `toml:"price_less" json:"price_less"`
	DurationMore   float64      `toml:"duration_more" json:"duration_more"`
	DurationLess   float64      `toml:"duration_less" json:"duration_less"`
	VolumeMore     int64        `toml:"volume_more" json:"volume_more"`
	BondVolumeMore int64        `toml:"bond_volume_more" json:"bond_volume_more"`
	Policy         CouponPolicy `toml:"offer_policy" json:"offer_policy"`
}

// DefaultCriteria returns the stock thresholds.
func DefaultCriteria() SearchCriteria {
	return SearchCriteria{
		YieldMore:      15,
		YieldLess:      40,
		PriceMore:      70,
		PriceLess:      120,
		DurationMore:   3,
		DurationLess:   18,
		VolumeMore:     2000,
		BondVolumeMore: 60000,
		Policy:         PolicyStrict,
	}
}

// Validate reports inverted bounds and unknown policies.
func (c SearchCriteria) Validate() error {
	var errs []error
	if c.YieldMore > c.YieldLess {
		errs = append(errs, fmt.Errorf("yield_more %.2f > yield_less %.2f", c.YieldMore, c.YieldLess))
	}
	if c.PriceMore > c.PriceLess {
		errs = append(errs, fmt.Errorf("price_more %.2f > price_less %.2f", c.PriceMore, c.PriceLess))
	}
	if c.DurationMore >= c.DurationLess {
		errs = append(errs, fmt.Errorf("duration_more %.2f >= duration_less %.2f", c.DurationMore, c.DurationLess))
	}
	if c.VolumeMore < 0 || c.BondVolumeMore < 0 {
		errs = append(errs, errors.New("volume thresholds must not be negative"))
	}
	if c.Policy != PolicyStrict && c.Policy != PolicyLenient {
		errs = append(errs, fmt.Errorf("unknown coupon policy %q", c.Policy))
	}
	return errors.Join(errs...)
}

// PassesBase applies the price, yield and duration bounds.
func (c SearchCriteria) PassesBase(yield, price, duration float64) bool {
	return yield >= c.YieldMore && yield <= c.YieldLess &&
		price >= c.PriceMore && price <= c.PriceLess &&
		duration > c.DurationMore && duration < c.DurationLess
}

// Summary is the human-readable criteria block printed under the results table.
func (c SearchCriteria) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Yield from %.2f%% to %.2f%% inclusive\n", c.YieldMore, c.YieldLess)
	fmt.Fprintf(&b, "Price from %.2f%% to %.2f%% of face value inclusive\n", c.PriceMore, c.PriceLess)
	fmt.Fprintf(&b, "Duration from %.2f to %.2f months exclusive\n", c.DurationMore, c.DurationLess)
	fmt.Fprintf(&b, "Daily volume of at least %d units on every trading day, at least 6 trading days\n", c.VolumeMore)
	fmt.Fprintf(&b, "Total volume over 15 days above %d units\n", c.BondVolumeMore)
	if c.Policy == PolicyStrict {
		b.WriteString("Future coupons must all be known")
	} else {
		b.WriteString("Future coupons of unknown size are allowed")
	}
	return b.String()
}
