package dividend

import (
	"github.com/phuslu/log"

	"szakszon.com/moneymore"
)

// TotalForYear sums the per-share cash amounts of the fiscal year's
// implemented distributions. Zero when none match.
func TotalForYear(
	year int,
	records []*moneymore.DividendRecord,
) float64 {
	total := float64(0)
	for _, d := range records {
		if d.EndDate.IsZero() || d.EndDate.Year() != year {
			continue
		}
		if !d.Implemented() {
			continue
		}
		total += d.CashDivTax
	}
	return total
}

// maxStreakYears bounds the backward walk so malformed data cannot
// loop forever. Hitting it indicates a data quality problem
// upstream.
const maxStreakYears = 50

// ConsecutiveYears counts how many years, walking backward from
// startYear, paid an implemented dividend without a gap.
func ConsecutiveYears(
	startYear int,
	records []*moneymore.DividendRecord,
) int {
	n := 0
	for year := startYear; TotalForYear(year, records) > 0; year-- {
		n++
		if n >= maxStreakYears {
			log.Warn().
				Int("year", year).
				Int("streak", n).
				Msg("dividend streak cap reached")
			break
		}
	}
	return n
}
