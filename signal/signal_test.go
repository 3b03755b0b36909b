package signal

import (
	"testing"
	"time"

	"szakszon.com/moneymore"
)

func day(y int, m time.Month, d int) moneymore.Day {
	return moneymore.NewDay(y, m, d)
}

func annual(year int, disclosed moneymore.Day) *moneymore.EarningsReport {
	return &moneymore.EarningsReport{
		AnnDate:     disclosed,
		DisplayDate: disclosed,
		EndDate:     day(year, time.December, 31),
	}
}

func quarterly(end, disclosed moneymore.Day) *moneymore.EarningsReport {
	return &moneymore.EarningsReport{
		AnnDate:     disclosed,
		DisplayDate: disclosed,
		EndDate:     end,
	}
}

func implemented(year int, amount float64) *moneymore.DividendRecord {
	return &moneymore.DividendRecord{
		EndDate:    day(year, time.December, 31),
		CashDivTax: amount,
		DivProc:    moneymore.DivProcImplemented,
	}
}

func yoy(end moneymore.Day, rate float64) *moneymore.FinancialIndicator {
	return &moneymore.FinancialIndicator{
		EndDate:        end,
		DtNetprofitYoy: &rate,
	}
}

func bar(d moneymore.Day, close float64) *moneymore.PriceBar {
	return &moneymore.PriceBar{TradeDate: d, Close: close}
}

// fixture: one annual report for 2020 disclosed 2021-04-20, a 1.00
// per-share dividend for 2017..2020 and a healthy growth rate.
func fixture() (
	[]*moneymore.EarningsReport,
	[]*moneymore.DividendRecord,
	[]*moneymore.FinancialIndicator,
) {
	reports := []*moneymore.EarningsReport{
		annual(2020, day(2021, time.April, 20)),
	}
	dividends := []*moneymore.DividendRecord{
		implemented(2017, 1.0),
		implemented(2018, 1.0),
		implemented(2019, 1.0),
		implemented(2020, 1.0),
	}
	indicators := []*moneymore.FinancialIndicator{
		yoy(day(2020, time.December, 31), 5.0),
	}
	return reports, dividends, indicators
}

func scanBars(
	noAdj []*moneymore.PriceBar,
	reports []*moneymore.EarningsReport,
	dividends []*moneymore.DividendRecord,
	indicators []*moneymore.FinancialIndicator,
) (buys, sells []*Signal) {
	days := make([]moneymore.Day, len(noAdj))
	for i, b := range noAdj {
		days[i] = b.TradeDate
	}
	return Scan(days, noAdj, reports, dividends, indicators)
}

func TestScanBuyAndSell(t *testing.T) {
	reports, dividends, indicators := fixture()

	noAdj := []*moneymore.PriceBar{
		bar(day(2021, time.April, 21), 30.0), // yield 3.33
		bar(day(2021, time.April, 22), 25.0), // yield 4.00, buy
		bar(day(2021, time.April, 23), 24.0), // holding
		bar(day(2021, time.April, 26), 34.0), // yield 2.94, sell
		bar(day(2021, time.April, 27), 35.0), // flat
	}

	buys, sells := scanBars(noAdj, reports, dividends, indicators)

	if len(buys) != 1 {
		t.Fatalf("buys = %d, want 1", len(buys))
	}
	b := buys[0]
	if !b.Date.Equal(day(2021, time.April, 22)) {
		t.Errorf("buy date = %v", b.Date)
	}
	if b.Price != 25.0 || b.DividendYield != 4.0 {
		t.Errorf("buy = %v at %v%%", b.Price, b.DividendYield)
	}
	if b.ConsecutiveYears != 4 {
		t.Errorf("buy streak = %d, want 4", b.ConsecutiveYears)
	}
	if !b.Buy() {
		t.Errorf("buy signal reports Buy() = false")
	}

	if len(sells) != 1 {
		t.Fatalf("sells = %d, want 1", len(sells))
	}
	s := sells[0]
	if !s.Date.Equal(day(2021, time.April, 26)) {
		t.Errorf("sell date = %v", s.Date)
	}
	if s.Reason != ReasonYieldReachedMax {
		t.Errorf("sell reason = %q", s.Reason)
	}
	if s.Buy() {
		t.Errorf("sell signal reports Buy() = true")
	}
}

func TestScanSingleBuyPerRun(t *testing.T) {
	reports, dividends, indicators := fixture()

	noAdj := []*moneymore.PriceBar{
		bar(day(2021, time.April, 21), 26.0), // yield 3.85
		bar(day(2021, time.April, 22), 25.0), // yield 4.00, buy
		bar(day(2021, time.April, 23), 24.0), // yield 4.17
		bar(day(2021, time.April, 26), 26.5), // yield 3.77, flat
	}

	buys, sells := scanBars(noAdj, reports, dividends, indicators)
	if len(buys) != 1 {
		t.Fatalf("buys = %d, want exactly 1", len(buys))
	}
	if !buys[0].Date.Equal(day(2021, time.April, 22)) {
		t.Errorf("buy date = %v, want first crossing",
			buys[0].Date)
	}
	if len(sells) != 0 {
		t.Fatalf("sells = %d, want 0 above the sell threshold",
			len(sells))
	}
}

func TestScanBuyOnFirstDay(t *testing.T) {
	reports, dividends, indicators := fixture()

	noAdj := []*moneymore.PriceBar{
		bar(day(2021, time.April, 21), 25.0),
	}
	buys, _ := scanBars(noAdj, reports, dividends, indicators)
	if len(buys) != 1 {
		t.Fatalf("buys = %d, want 1", len(buys))
	}
}

func TestScanBuyRequiresStreak(t *testing.T) {
	reports, _, indicators := fixture()
	dividends := []*moneymore.DividendRecord{
		implemented(2018, 1.0),
		implemented(2019, 1.0),
		implemented(2020, 1.0),
	}

	noAdj := []*moneymore.PriceBar{
		bar(day(2021, time.April, 21), 25.0),
	}
	buys, _ := scanBars(noAdj, reports, dividends, indicators)
	if len(buys) != 0 {
		t.Fatalf("buys = %d, want 0 with a 3 year streak",
			len(buys))
	}
}

func TestScanBuyRequiresGrowthRate(t *testing.T) {
	reports, dividends, _ := fixture()

	noAdj := []*moneymore.PriceBar{
		bar(day(2021, time.April, 21), 25.0),
	}

	// no indicator row at all
	buys, _ := scanBars(noAdj, reports, dividends, nil)
	if len(buys) != 0 {
		t.Fatalf("buys = %d, want 0 without growth rate",
			len(buys))
	}

	// growth rate below the buy threshold
	indicators := []*moneymore.FinancialIndicator{
		yoy(day(2020, time.December, 31), -10.5),
	}
	buys, _ = scanBars(noAdj, reports, dividends, indicators)
	if len(buys) != 0 {
		t.Fatalf("buys = %d, want 0 with growth below -10%%",
			len(buys))
	}
}

func TestScanGrowthSellPriority(t *testing.T) {
	reports, dividends, indicators := fixture()
	reports = append(reports, quarterly(
		day(2021, time.March, 31),
		day(2021, time.April, 28),
	))
	indicators = append(indicators,
		yoy(day(2021, time.March, 31), -15.0))

	noAdj := []*moneymore.PriceBar{
		bar(day(2021, time.April, 21), 25.0), // buy
		// 2021-04-28 is the Q1 disclosure day, the prior
		// period's growth rate still applies
		bar(day(2021, time.April, 28), 24.0),
		// yield 2.5 and growth -15, growth reason wins
		bar(day(2021, time.April, 29), 40.0),
		// still below, no second sell
		bar(day(2021, time.April, 30), 40.0),
	}

	buys, sells := scanBars(noAdj, reports, dividends, indicators)
	if len(buys) != 1 {
		t.Fatalf("buys = %d, want 1", len(buys))
	}
	if len(sells) != 1 {
		t.Fatalf("sells = %d, want 1", len(sells))
	}
	s := sells[0]
	if !s.Date.Equal(day(2021, time.April, 29)) {
		t.Errorf("sell date = %v", s.Date)
	}
	if s.Reason != ReasonGrowthBelowMin {
		t.Errorf("sell reason = %q, want growth reason",
			s.Reason)
	}
}

func TestScanSellOnlyOnCrossing(t *testing.T) {
	reports, dividends, indicators := fixture()

	noAdj := []*moneymore.PriceBar{
		bar(day(2021, time.April, 21), 25.0), // buy
		bar(day(2021, time.April, 22), 40.0), // yield 2.5, sell
		bar(day(2021, time.April, 23), 41.0), // still below, flat
		bar(day(2021, time.April, 26), 42.0),
	}

	_, sells := scanBars(noAdj, reports, dividends, indicators)
	if len(sells) != 1 {
		t.Fatalf("sells = %d, want 1", len(sells))
	}
	if !sells[0].Date.Equal(day(2021, time.April, 22)) {
		t.Errorf("sell date = %v", sells[0].Date)
	}
}

func TestScanOpenPositionStaysOpen(t *testing.T) {
	reports, dividends, indicators := fixture()

	noAdj := []*moneymore.PriceBar{
		bar(day(2021, time.April, 21), 25.0), // buy
		bar(day(2021, time.April, 22), 24.0),
	}

	buys, sells := scanBars(noAdj, reports, dividends, indicators)
	if len(buys) != 1 || len(sells) != 0 {
		t.Fatalf("buys = %d, sells = %d, want 1 open buy",
			len(buys), len(sells))
	}
}

// The previous day's yield is recomputed from the current dividend
// year's total. When the dividend year rotates and the price is
// unchanged, yesterday compares equal and the crossing is suppressed.
func TestScanYearRotationSuppressesBuy(t *testing.T) {
	reports := []*moneymore.EarningsReport{
		annual(2020, day(2021, time.April, 20)),
		annual(2021, day(2022, time.April, 25)),
	}
	dividends := []*moneymore.DividendRecord{
		implemented(2018, 1.0),
		implemented(2019, 1.0),
		implemented(2020, 1.0),
		implemented(2021, 2.0),
	}
	indicators := []*moneymore.FinancialIndicator{
		yoy(day(2020, time.December, 31), 5.0),
		yoy(day(2021, time.December, 31), 5.0),
	}

	noAdj := []*moneymore.PriceBar{
		// disclosure day, 2020's total still applies: yield 2%
		bar(day(2022, time.April, 25), 50.0),
		// 2021's total applies: yield 4%, but yesterday's
		// close on the same total was already 4%
		bar(day(2022, time.April, 26), 50.0),
	}

	buys, _ := scanBars(noAdj, reports, dividends, indicators)
	if len(buys) != 0 {
		t.Fatalf("buys = %d, want 0 on year rotation",
			len(buys))
	}
}

func TestScanMissingPrevBarAllowsBuy(t *testing.T) {
	reports, dividends, indicators := fixture()

	d1 := day(2021, time.April, 21)
	d2 := day(2021, time.April, 22)
	days := []moneymore.Day{d1, d2}
	// no unadjusted bar for d1, the scan skips it and d2 has no
	// usable previous close to compare against
	noAdj := []*moneymore.PriceBar{
		bar(d2, 25.0),
	}

	buys, _ := Scan(days, noAdj, reports, dividends, indicators)
	if len(buys) != 1 {
		t.Fatalf("buys = %d, want 1", len(buys))
	}
	if !buys[0].Date.Equal(d2) {
		t.Errorf("buy date = %v, want %v", buys[0].Date, d2)
	}
}

func TestMerged(t *testing.T) {
	reports, dividends, indicators := fixture()

	noAdj := []*moneymore.PriceBar{
		bar(day(2021, time.April, 21), 25.0), // buy
		bar(day(2021, time.April, 22), 40.0), // sell
		bar(day(2021, time.April, 23), 24.0), // buy
		bar(day(2021, time.April, 26), 41.0), // sell
	}

	buys, sells := scanBars(noAdj, reports, dividends, indicators)
	all := Merged(buys, sells)

	if len(all) != 4 {
		t.Fatalf("merged = %d, want 4", len(all))
	}
	for i, s := range all {
		if i > 0 && s.Date.Before(all[i-1].Date) {
			t.Fatalf("merged not sorted at %d", i)
		}
		wantBuy := i%2 == 0
		if s.Buy() != wantBuy {
			t.Fatalf(
				"signal %d: Buy() = %v, want %v",
				i, s.Buy(), wantBuy)
		}
	}
}
