package moex

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// block is one ISS table: {"columns": [...], "data": [[...], ...]}.
type block struct {
	Columns []string            `json:"columns"`
	Data    [][]json.RawMessage `json:"data"`
}

// response is a decoded ISS document keyed by block name.
type response map[string]*block

func decodeResponse(body []byte) (response, error) {
	var r response
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, &DataAbsentError{What: "decode body", Err: err}
	}
	return r, nil
}

// table returns the named block, or a DataAbsentError when it is missing.
func (r response) table(name string) (*block, error) {
	b, ok := r[name]
	if !ok || b == nil {
		return nil, absent("block %q", name)
	}
	return b, nil
}

// rows maps each data row onto its column names.
func (b *block) rows() ([]row, error) {
	idx := make(map[string]int, len(b.Columns))
	for i, c := range b.Columns {
		idx[strings.ToUpper(c)] = i
	}
	out := make([]row, 0, len(b.Data))
	for n, cells := range b.Data {
		if len(cells) != len(b.Columns) {
			return nil, absent("row %d has %d cells, want %d", n, len(cells), len(b.Columns))
		}
		out = append(out, row{idx: idx, cells: cells})
	}
	return out, nil
}

// row gives named-field access to one ISS data row.
type row struct {
	idx   map[string]int
	cells []json.RawMessage
}

func (r row) raw(col string) (json.RawMessage, error) {
	i, ok := r.idx[strings.ToUpper(col)]
	if !ok {
		return nil, absent("column %q", col)
	}
	return r.cells[i], nil
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

// text reads a string column; null becomes "".
func (r row) text(col string) (string, error) {
	raw, err := r.raw(col)
	if err != nil || isNull(raw) {
		return "", err
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	// numbers in text columns, e.g. description values
	return strings.Trim(string(raw), `"`), nil
}

// number reads a nullable numeric column.
func (r row) number(col string) (*float64, error) {
	raw, err := r.raw(col)
	if err != nil || isNull(raw) {
		return nil, err
	}
	var f FlexibleFloat
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, &DataAbsentError{What: "column " + col, Err: err}
	}
	v := float64(f)
	return &v, nil
}

// integer reads an integer column; null becomes 0.
func (r row) integer(col string) (int64, error) {
	raw, err := r.raw(col)
	if err != nil || isNull(raw) {
		return 0, err
	}
	var v FlexibleInt64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, &DataAbsentError{What: "column " + col, Err: err}
	}
	return v.Int64(), nil
}

// date reads a YYYY-MM-DD column.
func (r row) date(col string) (time.Time, error) {
	s, err := r.text(col)
	if err != nil {
		return time.Time{}, err
	}
	if s == "" {
		return time.Time{}, absent("column %q is empty", col)
	}
	t, err := time.ParseInLocation(dateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, &DataAbsentError{What: "column " + col, Err: err}
	}
	return t, nil
}

// FlexibleInt64 parses int, float or numeric string to int64.
type FlexibleInt64 int64

// UnmarshalJSON parses int or float; null leaves the value at zero.
func (f *FlexibleInt64) UnmarshalJSON(data []byte) error {
	var v FlexibleFloat
	if err := v.UnmarshalJSON(data); err != nil {
		return err
	}
	*f = FlexibleInt64(int64(v))
	return nil
}

// Int64 returns int64 value
func (f FlexibleInt64) Int64() int64 {
	return int64(f)
}

// FlexibleFloat parses a JSON number or a numeric string (ISS sends both).
type FlexibleFloat float64

func (f *FlexibleFloat) UnmarshalJSON(data []byte) error {
	if isNull(data) {
		return nil
	}
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		val, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(str), ",", "."), 64)
		if err != nil {
			return err
		}
		*f = FlexibleFloat(val)
		return nil
	}
	var val float64
	if err := json.Unmarshal(data, &val); err != nil {
		return fmt.Errorf("cannot parse as number: %s", string(data))
	}
	*f = FlexibleFloat(val)
	return nil
}

// Security is one row of a board-group listing.
type Security struct {
	SecID     string
	Name      string
	PrevPrice *float64
}

// MarketData holds the market-data row of a security.
type MarketData struct {
	Yield        *float64
	DurationDays *float64
}

// GroupListing is what listGroupSecurities returns.
type GroupListing struct {
	Securities []Security
	Market     map[string]MarketData
}

// TradeDay is one row of the trading history.
type TradeDay struct {
	Date      time.Time
	Volume    int64
	NumTrades int64
}

// Coupon is a scheduled coupon; ValueRub is nil while the rate is not fixed yet.
type Coupon struct {
	ISIN     string
	Name     string
	Date     time.Time
	ValueRub *float64
}

// Amortization is a scheduled face-value repayment.
type Amortization struct {
	ISIN     string
	Name     string
	Date     time.Time
	ValueRub *float64
}

// Qualification is the decoded qualified-investor description of a security.
type Qualification struct {
	Required bool
	Group    string
}

func decodeGroupListing(r response) (GroupListing, error) {
	out := GroupListing{Market: map[string]MarketData{}}
	md, ok := r["marketdata"]
	if !ok || md == nil || len(md.Data) == 0 {
		return out, nil
	}
	mdRows, err := md.rows()
	if err != nil {
		return out, err
	}
	for _, rw := range mdRows {
		id, err := rw.text("SECID")
		if err != nil {
			return out, err
		}
		y, err := rw.number("YIELD")
		if err != nil {
			return out, err
		}
		d, err := rw.number("DURATION")
		if err != nil {
			return out, err
		}
		out.Market[id] = MarketData{Yield: y, DurationDays: d}
	}

	sec, err := r.table("securities")
	if err != nil {
		return out, err
	}
	secRows, err := sec.rows()
	if err != nil {
		return out, err
	}
	for _, rw := range secRows {
		var s Security
		if s.SecID, err = rw.text("SECID"); err != nil {
			return out, err
		}
		if s.Name, err = rw.text("SECNAME"); err != nil {
			return out, err
		}
		if s.PrevPrice, err = rw.number("PREVLEGALCLOSEPRICE"); err != nil {
			return out, err
		}
		out.Securities = append(out.Securities, s)
	}
	return out, nil
}

func decodeHistory(r response) ([]TradeDay, error) {
	h, err := r.table("history")
	if err != nil {
		return nil, err
	}
	rows, err := h.rows()
	if err != nil {
		return nil, err
	}
	days := make([]TradeDay, 0, len(rows))
	for _, rw := range rows {
		var d TradeDay
		if d.Date, err = rw.date("TRADEDATE"); err != nil {
			return nil, err
		}
		if d.Volume, err = rw.integer("VOLUME"); err != nil {
			return nil, err
		}
		if d.NumTrades, err = rw.integer("NUMTRADES"); err != nil {
			return nil, err
		}
		days = append(days, d)
	}
	return days, nil
}

func decodePrimaryBoard(r response, secID string) (string, error) {
	b, err := r.table("boards")
	if err != nil {
		return "", err
	}
	rows, err := b.rows()
	if err != nil {
		return "", err
	}
	for _, rw := range rows {
		primary, err := rw.integer("is_primary")
		if err != nil {
			return "", err
		}
		if primary == 1 {
			return rw.text("boardid")
		}
	}
	return "", absent("primary board for %s", secID)
}

func decodeCoupons(b *block) ([]Coupon, error) {
	rows, err := b.rows()
	if err != nil {
		return nil, err
	}
	out := make([]Coupon, 0, len(rows))
	for _, rw := range rows {
		var c Coupon
		if c.ISIN, err = rw.text("isin"); err != nil {
			return nil, err
		}
		if c.Date, err = rw.date("coupondate"); err != nil {
			return nil, err
		}
		if c.ValueRub, err = rw.number("value_rub"); err != nil {
			return nil, err
		}
		if _, ok := rw.idx["NAME"]; ok {
			name, _ := rw.text("name")
			c.Name = name
		}
		out = append(out, c)
	}
	return out, nil
}

func decodeAmortizations(b *block) ([]Amortization, error) {
	rows, err := b.rows()
	if err != nil {
		return nil, err
	}
	out := make([]Amortization, 0, len(rows))
	for _, rw := range rows {
		var a Amortization
		if a.ISIN, err = rw.text("isin"); err != nil {
			return nil, err
		}
		if a.Name, err = rw.text("name"); err != nil {
			return nil, err
		}
		if a.Date, err = rw.date("amortdate"); err != nil {
			return nil, err
		}
		if a.ValueRub, err = rw.number("value_rub"); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func decodeQualification(r response) (Qualification, error) {
	var q Qualification
	d, err := r.table("description")
	if err != nil {
		return q, err
	}
	rows, err := d.rows()
	if err != nil {
		return q, err
	}
	// No ISQUALIFIEDINVESTORS row means no restriction.
	for _, rw := range rows {
		name, err := rw.text("name")
		if err != nil {
			return q, err
		}
		switch name {
		case "ISQUALIFIEDINVESTORS":
			v, _ := rw.text("value")
			q.Required = strings.TrimSpace(v) == "1"
		case "QUALINVESTORGROUP":
			q.Group, _ = rw.text("value")
		}
	}
	return q, nil
}
