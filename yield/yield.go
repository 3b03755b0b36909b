package yield

import (
	"math"

	"szakszon.com/moneymore"
	"szakszon.com/moneymore/dividend"
	"szakszon.com/moneymore/report"
)

// DividendYear resolves the fiscal year whose distributions are
// visible on day. On the annual report's disclosure day itself the
// prior year is still visible; the new year becomes effective the
// next trading day.
func DividendYear(
	day moneymore.Day,
	reports []*moneymore.EarningsReport,
) (int, bool) {
	r := report.ResolveAsOf(day, reports, true)
	if r == nil {
		return 0, false
	}
	year := r.EndDate.Year()
	if report.IsDisclosureDay(day, r) {
		year--
	}
	return year, true
}

// Series computes one dividend-yield percentage per bar, aligned to
// bars. NaN marks a gap: no usable price, no resolvable annual
// report, or a zero dividend total. Each point depends only on its
// own date; a single bad date never aborts the rest of the series.
//
// The yield uses the unadjusted close of the bar's trade date,
// falling back to the bar's own close when no unadjusted bar exists
// (degraded accuracy, not a failure).
func Series(
	bars []*moneymore.PriceBar,
	noAdj []*moneymore.PriceBar,
	reports []*moneymore.EarningsReport,
	dividends []*moneymore.DividendRecord,
) []float64 {
	out := make([]float64, len(bars))
	byDate := moneymore.PriceBarsByDate(noAdj)

	for i, bar := range bars {
		out[i] = point(bar, byDate, reports, dividends)
	}
	return out
}

func point(
	bar *moneymore.PriceBar,
	noAdjByDate map[moneymore.Day]*moneymore.PriceBar,
	reports []*moneymore.EarningsReport,
	dividends []*moneymore.DividendRecord,
) float64 {
	price := ClosePrice(bar, noAdjByDate)
	if math.IsNaN(price) || price <= 0 {
		return math.NaN()
	}

	year, ok := DividendYear(bar.TradeDate, reports)
	if !ok {
		return math.NaN()
	}

	total := dividend.TotalForYear(year, dividends)
	if total <= 0 {
		return math.NaN()
	}

	return total / price * 100
}

// ClosePrice returns the unadjusted close for the bar's trade date,
// or the bar's own close when no unadjusted bar exists for it.
func ClosePrice(
	bar *moneymore.PriceBar,
	noAdjByDate map[moneymore.Day]*moneymore.PriceBar,
) float64 {
	if na, ok := noAdjByDate[bar.TradeDate]; ok {
		return na.Close
	}
	return bar.Close
}
