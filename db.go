package moneymore

import (
	"context"
)

// DB caches the fetched feed snapshots per security. Replace calls
// swap the whole stored collection, there is no incremental update
// path.
type DB interface {
	InitSchema(ctx context.Context, tsCodes []string) error

	PriceBars(ctx context.Context, tsCode string, f *PriceBarFilter) ([]*PriceBar, error)
	ReplacePriceBars(ctx context.Context, tsCode string, adjust Adjust, bars []*PriceBar) error

	Dividends(ctx context.Context, tsCode string) ([]*DividendRecord, error)
	ReplaceDividends(ctx context.Context, tsCode string, records []*DividendRecord) error

	EarningsReports(ctx context.Context, tsCode string) ([]*EarningsReport, error)
	ReplaceEarningsReports(ctx context.Context, tsCode string, reports []*EarningsReport) error

	Indicators(ctx context.Context, tsCode string) ([]*FinancialIndicator, error)
	ReplaceIndicators(ctx context.Context, tsCode string, indicators []*FinancialIndicator) error

	DisclosureDates(ctx context.Context, tsCode string) ([]*DisclosureDate, error)
	ReplaceDisclosureDates(ctx context.Context, tsCode string, dates []*DisclosureDate) error
}

type PriceBarFilter struct {
	Adjust Adjust
	From   Day
	To     Day
}
