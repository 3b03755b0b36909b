package signal

import (
	"sort"

	"szakszon.com/moneymore"
	"szakszon.com/moneymore/dividend"
	"szakszon.com/moneymore/report"
	"szakszon.com/moneymore/yield"
)

// Four-in-three-out thresholds.
const (
	BuyYieldMin   = 4.0
	SellYieldMax  = 3.0
	GrowthRateMin = -10.0
	StreakMin     = 4
)

const (
	ReasonGrowthBelowMin  = "growth rate below -10%"
	ReasonYieldReachedMax = "dividend yield reached 3%"
)

// Signal is one buy or sell event of the scan.
type Signal struct {
	Date             moneymore.Day
	Price            float64
	DividendYield    float64
	GrowthRate       *report.GrowthRate
	ConsecutiveYears int    // buy only
	Reason           string // sell only
}

// Scan runs the four-in-three-out state machine forward over days
// in ascending order. Starting flat, it buys on the first day of a
// run where the dividend yield crosses up to 4% while at least four
// consecutive dividend years and a growth rate of -10% or better
// hold, and sells on a growth rate below -10% or on the first day
// the yield crosses down to 3%. An open position at the end of the
// range is left open.
func Scan(
	days []moneymore.Day,
	noAdj []*moneymore.PriceBar,
	reports []*moneymore.EarningsReport,
	dividends []*moneymore.DividendRecord,
	indicators []*moneymore.FinancialIndicator,
) (buys, sells []*Signal) {
	byDate := moneymore.PriceBarsByDate(noAdj)
	holding := false

	for i, day := range days {
		bar := byDate[day]
		if bar == nil || bar.Close <= 0 {
			continue
		}
		price := bar.Close

		year, ok := yield.DividendYear(day, reports)
		if !ok {
			continue
		}

		total := dividend.TotalForYear(year, dividends)
		curYield := float64(0)
		if total > 0 {
			curYield = total / price * 100
		}

		growth := report.GrowthRateAsOf(day, reports, indicators)

		if !holding {
			if curYield < BuyYieldMin {
				continue
			}
			streak := dividend.ConsecutiveYears(year, dividends)
			if streak < StreakMin {
				continue
			}
			if growth == nil || growth.Rate < GrowthRateMin {
				continue
			}
			if prev, ok := prevYield(i, days, byDate, total); ok && prev >= BuyYieldMin {
				// the run already qualified yesterday
				continue
			}

			buys = append(buys, &Signal{
				Date:             day,
				Price:            price,
				DividendYield:    curYield,
				GrowthRate:       growth,
				ConsecutiveYears: streak,
			})
			holding = true
			continue
		}

		if growth != nil && growth.Rate < GrowthRateMin {
			sells = append(sells, &Signal{
				Date:          day,
				Price:         price,
				DividendYield: curYield,
				GrowthRate:    growth,
				Reason:        ReasonGrowthBelowMin,
			})
			holding = false
			continue
		}

		if curYield <= SellYieldMax {
			if prev, ok := prevYield(i, days, byDate, total); ok && prev <= SellYieldMax {
				continue
			}
			sells = append(sells, &Signal{
				Date:          day,
				Price:         price,
				DividendYield: curYield,
				GrowthRate:    growth,
				Reason:        ReasonYieldReachedMax,
			})
			holding = false
		}
	}

	return buys, sells
}

// prevYield recomputes the previous trading day's yield from the
// same fiscal year's dividend total, so crossings are compared on a
// consistent basis. Not ok when there is no previous day or no
// usable price for it.
func prevYield(
	i int,
	days []moneymore.Day,
	byDate map[moneymore.Day]*moneymore.PriceBar,
	total float64,
) (float64, bool) {
	if i == 0 {
		return 0, false
	}
	bar := byDate[days[i-1]]
	if bar == nil || bar.Close <= 0 {
		return 0, false
	}
	if total <= 0 {
		return 0, true
	}
	return total / bar.Close * 100, true
}

// Merged returns all signals of a scan sorted by date. Buys and
// sells strictly alternate, starting with a buy.
func Merged(buys, sells []*Signal) []*Signal {
	all := make([]*Signal, 0, len(buys)+len(sells))
	all = append(all, buys...)
	all = append(all, sells...)
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Date.Before(all[j].Date)
	})
	return all
}

// Buy reports whether s is a buy event.
func (s *Signal) Buy() bool {
	return s.Reason == ""
}
