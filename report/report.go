package report

import (
	"time"

	"szakszon.com/moneymore"
)

// ResolveAsOf returns the report with the latest disclosure day on
// or before day, or nil if none has been disclosed yet. With
// annualOnly set, only annual reports qualify.
func ResolveAsOf(
	day moneymore.Day,
	reports []*moneymore.EarningsReport,
	annualOnly bool,
) *moneymore.EarningsReport {
	var latest *moneymore.EarningsReport
	for _, r := range reports {
		if annualOnly && !r.Annual() {
			continue
		}
		d := r.DisclosureDay()
		if d.IsZero() || d.After(day) {
			continue
		}
		if latest == nil || d.After(latest.DisclosureDay()) {
			latest = r
		}
	}
	return latest
}

// IsDisclosureDay reports whether day is exactly the day the
// report's figures became public. On that day downstream
// calculations must still use the prior period's figures.
func IsDisclosureDay(
	day moneymore.Day,
	r *moneymore.EarningsReport,
) bool {
	return r != nil && day.Equal(r.DisclosureDay())
}

// TargetPeriod returns the fiscal period whose figures are visible
// on day given the resolved report r. On the disclosure day itself
// the visible period shifts back one quarter:
//
//	Q1     -> prior year's annual
//	H1     -> same year's Q1
//	Q3     -> same year's H1
//	annual -> same year's Q3
func TargetPeriod(
	r *moneymore.EarningsReport,
	day moneymore.Day,
) moneymore.Day {
	if !IsDisclosureDay(day, r) {
		return r.EndDate
	}

	year := r.EndDate.Year()
	switch r.EndDate.MonthDay() {
	case 331:
		return moneymore.NewDay(year-1, time.December, 31)
	case 630:
		return moneymore.NewDay(year, time.March, 31)
	case 930:
		return moneymore.NewDay(year, time.June, 30)
	case 1231:
		return moneymore.NewDay(year, time.September, 30)
	}
	return r.EndDate
}

// GrowthRate is the adjusted net-profit year-over-year growth of
// one fiscal period.
type GrowthRate struct {
	Rate    float64 // percentage
	EndDate moneymore.Day
}

// GrowthRateAsOf resolves the growth rate visible on day. Any
// report type qualifies for the as-of resolution. Nil when no
// report has been disclosed, the target period has no indicator
// row, or the rate is not reported.
func GrowthRateAsOf(
	day moneymore.Day,
	reports []*moneymore.EarningsReport,
	indicators []*moneymore.FinancialIndicator,
) *GrowthRate {
	r := ResolveAsOf(day, reports, false)
	if r == nil {
		return nil
	}

	target := TargetPeriod(r, day)
	for _, f := range indicators {
		if !f.EndDate.Equal(target) {
			continue
		}
		if f.DtNetprofitYoy == nil {
			return nil
		}
		return &GrowthRate{
			Rate:    *f.DtNetprofitYoy,
			EndDate: target,
		}
	}
	return nil
}

// TypeLabel names the report type of a fiscal period end.
func TypeLabel(end moneymore.Day) string {
	switch end.MonthDay() {
	case 331:
		return "Q1"
	case 630:
		return "H1"
	case 930:
		return "Q3"
	case 1231:
		return "Annual"
	}
	return ""
}

// ActualDisclosure finds the disclosure-date record of a fiscal
// period, used for display labeling only.
func ActualDisclosure(
	end moneymore.Day,
	dates []*moneymore.DisclosureDate,
) *moneymore.DisclosureDate {
	for _, d := range dates {
		if d.EndDate.Equal(end) {
			return d
		}
	}
	return nil
}
