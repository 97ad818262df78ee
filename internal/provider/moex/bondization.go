package moex

import (
	"context"
	"net/url"
	"regexp"
	"time"

	"github.com/shopspring/decimal"

	"moex-bonds/internal/model"
)

// QuoteBoard is the board used for price and accrued-interest lookups.
const QuoteBoard = "TQCB"

// quoteLookbackDays is how far back FetchQuote searches for a close.
const quoteLookbackDays = 10

// Bondization is the full payment schedule of a bond.
type Bondization struct {
	Coupons       []Coupon
	Amortizations []Amortization
}

// FetchBondization returns coupons and face-value repayments of secID.
func (c *Client) FetchBondization(ctx context.Context, secID string) (Bondization, error) {
	q := url.Values{}
	q.Set("iss.only", "coupons,amortizations")
	q.Set("start", "0")
	q.Set("limit", "100")
	r, err := c.get(ctx, bondizationPath(secID), q)
	if err != nil {
		return Bondization{}, err
	}
	var out Bondization
	if b, ok := r["coupons"]; ok && b != nil {
		if out.Coupons, err = decodeCoupons(b); err != nil {
			return out, err
		}
	}
	if b, ok := r["amortizations"]; ok && b != nil {
		if out.Amortizations, err = decodeAmortizations(b); err != nil {
			return out, err
		}
	}
	return out, nil
}

var quotedName = regexp.MustCompile(`"([^"]+)"`)

// IssuerName extracts the quoted company name from an emitent title,
// e.g. `ПАО "Сбербанк России"` gives `Сбербанк России`.
func IssuerName(title string) string {
	if m := quotedName.FindStringSubmatch(title); m != nil {
		return m[1]
	}
	return title
}

// SearchIssuer looks a security up by free text and returns the emitent title of the first hit.
func (c *Client) SearchIssuer(ctx context.Context, query string) (string, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("iss.only", "securities")
	r, err := c.get(ctx, "/securities.json", q)
	if err != nil {
		return "", err
	}
	b, err := r.table("securities")
	if err != nil {
		return "", err
	}
	rows, err := b.rows()
	if err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return "", absent("securities matching %q", query)
	}
	title, err := rows[0].text("emitent_title")
	if err != nil {
		return "", err
	}
	if title == "" {
		return "", absent("emitent title for %q", query)
	}
	return title, nil
}

// FetchQuote returns the latest close (in rubles) and accrued interest of secID
// on QuoteBoard, looking back up to ten days for a trading session.
func (c *Client) FetchQuote(ctx context.Context, secID string) (model.Quote, error) {
	today := c.now().UTC().Truncate(24 * time.Hour)
	for back := 0; back < quoteLookbackDays; back++ {
		day := today.AddDate(0, 0, -back)
		price, date, ok, err := c.closeOn(ctx, secID, day)
		if err != nil {
			return model.Quote{}, err
		}
		if !ok {
			c.log().Debug("no close", "secid", secID, "from", day.Format(dateLayout))
			continue
		}
		accrued, err := c.accruedInterest(ctx, secID)
		if err != nil {
			return model.Quote{}, err
		}
		return model.Quote{SecID: secID, Date: date, Price: price, Accrued: accrued}, nil
	}
	return model.Quote{}, absent("close for %s in the last %d days", secID, quoteLookbackDays)
}

func (c *Client) closeOn(ctx context.Context, secID string, from time.Time) (decimal.Decimal, time.Time, bool, error) {
	q := url.Values{}
	q.Set("iss.only", "history")
	q.Set("history.columns", "TRADEDATE,CLOSE,FACEVALUE")
	q.Set("from", from.Format(dateLayout))
	r, err := c.get(ctx, "/history/engines/stock/markets/bonds/boards/"+QuoteBoard+"/securities/"+url.PathEscape(secID)+".json", q)
	if err != nil {
		return decimal.Zero, time.Time{}, false, err
	}
	h, err := r.table("history")
	if err != nil {
		return decimal.Zero, time.Time{}, false, err
	}
	rows, err := h.rows()
	if err != nil {
		return decimal.Zero, time.Time{}, false, err
	}
	for _, rw := range rows {
		closePx, err := rw.number("CLOSE")
		if err != nil {
			return decimal.Zero, time.Time{}, false, err
		}
		face, err := rw.number("FACEVALUE")
		if err != nil {
			return decimal.Zero, time.Time{}, false, err
		}
		if closePx == nil || face == nil {
			continue
		}
		date, err := rw.date("TRADEDATE")
		if err != nil {
			return decimal.Zero, time.Time{}, false, err
		}
		price := decimal.NewFromFloat(*closePx).Mul(decimal.NewFromFloat(*face)).Div(decimal.NewFromInt(100))
		return price, date, true, nil
	}
	return decimal.Zero, time.Time{}, false, nil
}

func (c *Client) accruedInterest(ctx context.Context, secID string) (decimal.Decimal, error) {
	q := url.Values{}
	q.Set("iss.only", "securities")
	q.Set("securities.columns", "SECID,ACCRUEDINT")
	r, err := c.get(ctx, "/engines/stock/markets/bonds/boards/"+QuoteBoard+"/securities/"+url.PathEscape(secID)+".json", q)
	if err != nil {
		return decimal.Zero, err
	}
	b, err := r.table("securities")
	if err != nil {
		return decimal.Zero, err
	}
	rows, err := b.rows()
	if err != nil {
		return decimal.Zero, err
	}
	if len(rows) == 0 {
		return decimal.Zero, absent("accrued interest for %s", secID)
	}
	v, err := rows[0].number("ACCRUEDINT")
	if err != nil {
		return decimal.Zero, err
	}
	if v == nil {
		return decimal.Zero, nil
	}
	return decimal.NewFromFloat(*v), nil
}
