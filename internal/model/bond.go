package model

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// QualFlag is the qualified-investor marker of a security.
type QualFlag int

const (
	QualUnknown QualFlag = iota
	QualNotRequired
	QualRequired
	QualLookupError
)

func (q QualFlag) String() string {
	switch q {
	case QualRequired:
		return "yes"
	case QualNotRequired:
		return "no"
	case QualLookupError:
		return "error"
	default:
		return ""
	}
}

// MonthMarker is written into MonthMarks for months with a future coupon.
const MonthMarker = "✓"

// MonthShortNames are the keys of MonthMarks, January first.
var MonthShortNames = [12]string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

// MonthMarks has one slot per calendar month; a slot is MonthMarker or empty.
type MonthMarks [12]string

// AfterToday reports whether the calendar date of d falls after the calendar day of now
// in now's location. Exchange dates carry no zone, so only their year, month and day count.
func AfterToday(d, now time.Time) bool {
	y, m, day := d.Date()
	ny, nm, nd := now.Date()
	if y != ny {
		return y > ny
	}
	if m != nm {
		return m > nm
	}
	return day > nd
}

// MarkMonths builds MonthMarks from coupon dates.
func MarkMonths(dates []time.Time) MonthMarks {
	var m MonthMarks
	for _, d := range dates {
		m[d.Month()-1] = MonthMarker
	}
	return m
}

// Map returns the marks keyed by short month name.
func (m MonthMarks) Map() map[string]string {
	out := make(map[string]string, len(m))
	for i, name := range MonthShortNames {
		out[name] = m[i]
	}
	return out
}

// Bond is one accepted screening result. Price is percent of face value,
// Volume is the total traded over the lookback window, Duration is in months.
type Bond struct {
	Name      string     `json:"name"`
	SecID     string     `json:"secid"`
	Qualified QualFlag   `json:"qualified"`
	Price     float64    `json:"price"`
	Volume    int64      `json:"volume"`
	Yield     float64    `json:"yield"`
	Duration  float64    `json:"duration"`
	Months    MonthMarks `json:"months"`
}

// Row returns the bond as report cells: fields then the 12 month marks.
func (b Bond) Row() []any {
	row := []any{b.Name, b.SecID, b.Qualified.String(), b.Price, b.Volume, b.Yield, b.Duration}
	for _, m := range b.Months {
		row = append(row, m)
	}
	return row
}

// CleanName strips quote characters from exchange security names.
func CleanName(s string) string {
	return strings.NewReplacer(`"`, "", `'`, "", `\`, "").Replace(s)
}

// DurationMonths converts remaining days to months rounded to 2 decimals.
// Zero or negative input gives 0.
func DurationMonths(days float64) float64 {
	if days <= 0 {
		return 0
	}
	return math.Round(days/30*100) / 100
}

// VolumeAssessment is the liquidity verdict for one candidate.
// Mean and StdDev describe the daily volumes of the window.
type VolumeAssessment struct {
	LowLiquid bool
	Total     int64
	Days      int
	Mean      float64
	StdDev    float64
}

// PaymentSchedule summarises future coupons of one candidate.
type PaymentSchedule struct {
	NullCount int
	Months    MonthMarks
}

// Report is what a ReportSaver persists after a screening run.
type Report struct {
	RunID       string         `json:"run_id"`
	GeneratedAt time.Time      `json:"generated_at"`
	Criteria    SearchCriteria `json:"criteria"`
	Bonds       []Bond         `json:"bonds"`
	Errors      int            `json:"errors"`
	Log         []string       `json:"log"`
}

// MarshalText lets QualFlag serialize as its label.
func (q QualFlag) MarshalText() ([]byte, error) {
	return []byte(q.String()), nil
}

func (q *QualFlag) UnmarshalText(b []byte) error {
	switch string(b) {
	case "yes":
		*q = QualRequired
	case "no":
		*q = QualNotRequired
	case "error":
		*q = QualLookupError
	case "":
		*q = QualUnknown
	default:
		return fmt.Errorf("unknown qualification flag %q", string(b))
	}
	return nil
}
