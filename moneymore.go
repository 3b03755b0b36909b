package moneymore

import (
	"context"
)

type Command interface {
	Execute(ctx context.Context) error
}

type PriceService interface {
	Fetch(
		ctx context.Context,
		in *PriceFetchInput,
	) (*PriceFetchOutput, error)
}

type PriceFetchInput struct {
	TsCode    string
	StartDate Day
	EndDate   Day
	Adjust    Adjust
}

type PriceFetchOutput struct {
	Bars []*PriceBar
}

type DividendService interface {
	Fetch(
		ctx context.Context,
		in *DividendFetchInput,
	) (*DividendFetchOutput, error)
}

type DividendFetchInput struct {
	TsCode string
}

type DividendFetchOutput struct {
	Records []*DividendRecord
}

type EarningsService interface {
	Fetch(
		ctx context.Context,
		in *EarningsFetchInput,
	) (*EarningsFetchOutput, error)
}

type EarningsFetchInput struct {
	TsCode string
}

type EarningsFetchOutput struct {
	Reports []*EarningsReport
}

type IndicatorService interface {
	Fetch(
		ctx context.Context,
		in *IndicatorFetchInput,
	) (*IndicatorFetchOutput, error)
}

type IndicatorFetchInput struct {
	TsCode string
}

type IndicatorFetchOutput struct {
	Indicators []*FinancialIndicator
}

type DisclosureService interface {
	Fetch(
		ctx context.Context,
		in *DisclosureFetchInput,
	) (*DisclosureFetchOutput, error)
}

type DisclosureFetchInput struct {
	TsCode string
}

type DisclosureFetchOutput struct {
	Dates []*DisclosureDate
}

type StockService interface {
	Fetch(
		ctx context.Context,
		in *StockFetchInput,
	) (*StockFetchOutput, error)
}

type StockFetchInput struct {
}

type StockFetchOutput struct {
	Stocks []*StockInfo
}
