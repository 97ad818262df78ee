package moex

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// HistoryDayLimit is how many trading days a volume-history request returns.
const HistoryDayLimit = 20

// Client wraps the ISS endpoints used by the screener. Every request waits
// on the shared RateLimiter first and none of them retries.
type Client struct {
	http    *http.Client
	baseURL string
	limiter *RateLimiter
	now     func() time.Time
	Logger  *slog.Logger
}

func (c *Client) log() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

// BaseURL returns the ISS root the client talks to.
func (c *Client) BaseURL() string { return c.baseURL }

// get performs one rate-limited GET and decodes the ISS document.
func (c *Client) get(ctx context.Context, path string, q url.Values) (response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	defer c.limiter.Done()
	if q == nil {
		q = url.Values{}
	}
	q.Set("iss.meta", "off")
	u := c.baseURL + path + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("moex: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	c.log().Debug("iss request", "url", u)

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &TransportError{URL: u, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{URL: u, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &TransportError{URL: u, Status: resp.StatusCode, Err: errors.New(http.StatusText(resp.StatusCode))}
	}
	return decodeResponse(body)
}

// ListGroupSecurities returns the securities of a board group with their market data.
// A group without a marketdata block yields an empty listing and no error.
func (c *Client) ListGroupSecurities(ctx context.Context, groupID int) (GroupListing, error) {
	q := url.Values{}
	q.Set("iss.only", "securities,marketdata")
	q.Set("securities.columns", "SECID,SECNAME,PREVLEGALCLOSEPRICE")
	q.Set("marketdata.columns", "SECID,YIELD,DURATION")
	r, err := c.get(ctx, fmt.Sprintf("/engines/stock/markets/bonds/boardgroups/%d/securities.json", groupID), q)
	if err != nil {
		return GroupListing{}, err
	}
	return decodeGroupListing(r)
}

// FetchVolumeHistory returns up to dayLimit trading days on board starting at since.
func (c *Client) FetchVolumeHistory(ctx context.Context, secID, board string, since time.Time, dayLimit int) ([]TradeDay, error) {
	if board == "" {
		return nil, absent("board for %s", secID)
	}
	if dayLimit <= 0 {
		dayLimit = HistoryDayLimit
	}
	q := url.Values{}
	q.Set("iss.only", "history")
	q.Set("history.columns", "SECID,TRADEDATE,VOLUME,NUMTRADES")
	q.Set("limit", strconv.Itoa(dayLimit))
	q.Set("from", since.Format(dateLayout))
	r, err := c.get(ctx, fmt.Sprintf("/history/engines/stock/markets/bonds/boards/%s/securities/%s.json", url.PathEscape(board), url.PathEscape(secID)), q)
	if err != nil {
		return nil, err
	}
	return decodeHistory(r)
}

// ResolvePrimaryBoard returns the board flagged primary for secID.
func (c *Client) ResolvePrimaryBoard(ctx context.Context, secID string) (string, error) {
	q := url.Values{}
	q.Set("iss.only", "boards")
	q.Set("boards.columns", "secid,boardid,is_primary")
	r, err := c.get(ctx, "/securities/"+url.PathEscape(secID)+".json", q)
	if err != nil {
		return "", err
	}
	return decodePrimaryBoard(r, secID)
}

// FetchCouponSchedule returns the coupon schedule of secID.
func (c *Client) FetchCouponSchedule(ctx context.Context, secID string) ([]Coupon, error) {
	q := url.Values{}
	q.Set("iss.only", "coupons")
	q.Set("start", "0")
	q.Set("limit", "100")
	r, err := c.get(ctx, bondizationPath(secID), q)
	if err != nil {
		return nil, err
	}
	b, err := r.table("coupons")
	if err != nil {
		return nil, err
	}
	return decodeCoupons(b)
}

// FetchQualification reads the qualified-investor description of secID.
func (c *Client) FetchQualification(ctx context.Context, secID string) (Qualification, error) {
	q := url.Values{}
	q.Set("iss.only", "description")
	q.Set("description.columns", "name,title,value")
	r, err := c.get(ctx, "/securities/"+url.PathEscape(secID)+".json", q)
	if err != nil {
		return Qualification{}, err
	}
	return decodeQualification(r)
}

func bondizationPath(secID string) string {
	return "/statistics/engines/stock/markets/bonds/bondization/" + url.PathEscape(secID) + ".json"
}
