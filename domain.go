package moneymore

import (
	"fmt"
)

// Adjust selects the price adjustment mode of a bar collection.
type Adjust string

const (
	AdjustNone     Adjust = ""    // as traded
	AdjustForward  Adjust = "qfq" // forward adjusted
	AdjustBackward Adjust = "hfq" // backward adjusted
)

// PriceBar is one trading day of a single security in one
// adjustment mode. Adjusted and unadjusted bars are parallel,
// independently fetched collections keyed by trade date.
type PriceBar struct {
	TradeDate Day
	Open      float64
	Close     float64
	Low       float64
	High      float64
	Change    float64
	PctChg    float64
	Vol       float64
	Amount    float64
}

func (p *PriceBar) String() string {
	return fmt.Sprintf("%v: %v", p.TradeDate, p.Close)
}

// PriceBarsByDate indexes bars by their trade date.
func PriceBarsByDate(bars []*PriceBar) map[Day]*PriceBar {
	m := make(map[Day]*PriceBar, len(bars))
	for _, b := range bars {
		m[b.TradeDate] = b
	}
	return m
}

// EarningsReport is one income statement disclosure. EndDate is the
// fiscal period end; its month-day suffix identifies the report type
// (0331 Q1, 0630 H1, 0930 Q3, 1231 annual).
type EarningsReport struct {
	AnnDate      Day
	DisplayDate  Day // optional, zero means AnnDate
	EndDate      Day
	BasicEPS     float64
	TotalRevenue float64
}

// DisclosureDay is the day the report's figures became publicly
// known: the display date, falling back to the announcement date.
func (r *EarningsReport) DisclosureDay() Day {
	if !r.DisplayDate.IsZero() {
		return r.DisplayDate
	}
	return r.AnnDate
}

// Annual reports are exactly those whose period ends December 31.
func (r *EarningsReport) Annual() bool {
	return r.EndDate.MonthDay() == 1231
}

// DivProcImplemented is the distribution status of a dividend that
// has actually been paid out, as delivered by the tushare feed.
const DivProcImplemented = "实施"

// DividendRecord is one cash distribution of a fiscal year. A year
// may carry several distributions.
type DividendRecord struct {
	EndDate    Day     // fiscal year of the distribution
	CashDivTax float64 // per-share cash amount, tax inclusive
	DivProc    string  // processing status
}

func (d *DividendRecord) Implemented() bool {
	return d.DivProc == DivProcImplemented
}

// FinancialIndicator carries the adjusted net-profit year-over-year
// growth of one fiscal period. The rate is missing for some periods.
type FinancialIndicator struct {
	EndDate        Day
	DtNetprofitYoy *float64 // percentage, nil when not reported
}

// DisclosureDate records when a fiscal period was actually
// disclosed. Display only, never part of as-of resolution.
type DisclosureDate struct {
	EndDate    Day
	ActualDate Day
}

// StockInfo is one listing from the stock basic feed.
type StockInfo struct {
	TsCode   string
	Name     string
	Industry string
	ListDate Day
}

// Snapshot is the full set of feeds of one security over one date
// range. A new fetch produces an entirely new snapshot; derived
// series are always recomputed from scratch, never patched.
type Snapshot struct {
	TsCode     string
	Bars       []*PriceBar // adjusted, ascending by trade date
	BarsNoAdj  []*PriceBar // unadjusted
	Earnings   []*EarningsReport
	Dividends  []*DividendRecord
	Indicators []*FinancialIndicator
	Disclosure []*DisclosureDate
}
