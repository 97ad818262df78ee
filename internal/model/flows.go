package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// CashFlowKind tells coupon payments from face-value repayments.
type CashFlowKind string

const (
	FlowCoupon    CashFlowKind = "coupon"
	FlowFaceValue CashFlowKind = "face value"
)

// Holding is one row of the cash-flow source sheet.
type Holding struct {
	SecID    string
	Quantity float64
}

// CashFlow is one projected payment for a holding.
type CashFlow struct {
	Name   string
	ISIN   string
	Date   time.Time
	Amount float64
	Kind   CashFlowKind
}

// Label is the name cell written to the cash-flow sheet.
func (f CashFlow) Label() string {
	return f.Name + " (" + string(f.Kind) + ")"
}

// Quote is the latest close and accrued interest of a bond, in rubles.
type Quote struct {
	SecID   string
	Date    time.Time
	Price   decimal.Decimal
	Accrued decimal.Decimal
}

// UnitCost is what one bond costs to buy.
func (q Quote) UnitCost() decimal.Decimal {
	return q.Price.Add(q.Accrued)
}

// Allocation is the purchase plan for one bond.
type Allocation struct {
	Quote
	Quantity int64
	Spent    decimal.Decimal
}

// NewsItem is one article found for an issuer.
type NewsItem struct {
	Source    string
	Title     string
	Published time.Time
	URL       string
}
