package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"szakszon.com/moneymore"
	"szakszon.com/moneymore/chart"
	"szakszon.com/moneymore/dividend"
	"szakszon.com/moneymore/logger"
	"szakszon.com/moneymore/report"
	"szakszon.com/moneymore/signal"
	"szakszon.com/moneymore/webchart"
	"szakszon.com/moneymore/yield"
)

type Command struct {
	name string
	opts options
	args []string
}

func NewCommand(
	name string,
	args []string,
	os ...Option,
) *Command {
	opts := defaultOptions
	for _, o := range os {
		opts = o(opts)
	}

	return &Command{
		name: name,
		opts: opts,
		args: args,
	}
}

func (c *Command) Execute(ctx context.Context) error {
	switch c.name {
	case "pull":
		return c.pull(ctx)
	case "chart":
		return c.chart(ctx)
	case "signals":
		return c.signals(ctx)
	case "inspect":
		return c.inspect(ctx)
	case "stocks":
		return c.stocks(ctx)
	default:
		return fmt.Errorf("invalid command: %v", c.name)
	}
}

func (c *Command) pull(ctx context.Context) error {
	tsCodes, err := c.resolveTsCodes(ctx, c.args)
	if err != nil {
		return err
	}
	if len(tsCodes) == 0 {
		return fmt.Errorf("Stock not found")
	}

	err = c.opts.db.InitSchema(ctx, tsCodes)
	if err != nil {
		return fmt.Errorf("init schema: %v", err)
	}

	runID := uuid.NewString()
	c.log("pull %s: %d stocks", runID, len(tsCodes))

	var workerWg sync.WaitGroup
	jobCh := make(chan string)
	var pendingWg sync.WaitGroup
	var resultWg sync.WaitGroup
	resultCh := make(chan pullResult)

	for i := 0; i < c.opts.workers; i++ {
		workerWg.Add(1)
		go func() {
			defer func() {
				workerWg.Done()
			}()
			for tsCode := range jobCh {
				err := c.pullStock(ctx, tsCode)
				resultCh <- pullResult{TsCode: tsCode, Err: err}
			}
		}()
	}

	var errs []error
	resultWg.Add(1)
	go func() {
		defer resultWg.Done()
		for res := range resultCh {
			if res.Err != nil {
				errs = append(errs, fmt.Errorf(
					"%s: %s", res.TsCode, res.Err))
				c.log("%s: %s", res.TsCode, res.Err)
			} else {
				c.log("%s: %s", res.TsCode, "OK")
			}
			pendingWg.Done()
		}
	}()

LOOP:
	for _, tsCode := range tsCodes {
		tsCode := tsCode

		select {
		case <-ctx.Done():
			break LOOP
		default:
			// noop
		}

		pendingWg.Add(1)
		jobCh <- tsCode
	}

	pendingWg.Wait()
	close(resultCh)
	resultWg.Wait()

	close(jobCh)
	workerWg.Wait()

	if len(errs) > 0 {
		return fmt.Errorf(
			"pull %s: %d of %d stocks failed, first: %s",
			runID, len(errs), len(tsCodes), errs[0])
	}
	c.log("pull %s: done", runID)
	return nil
}

type pullResult struct {
	TsCode string
	Err    error
}

func (c *Command) pullStock(
	ctx context.Context,
	tsCode string,
) error {
	pout, err := c.opts.priceService.Fetch(
		ctx,
		&moneymore.PriceFetchInput{
			TsCode:    tsCode,
			StartDate: c.opts.startDate,
			EndDate:   c.opts.endDate,
			Adjust:    moneymore.AdjustForward,
		},
	)
	if err != nil {
		return fmt.Errorf("fetch prices: %s", err)
	}
	err = c.opts.db.ReplacePriceBars(
		ctx, tsCode, moneymore.AdjustForward, pout.Bars)
	if err != nil {
		return fmt.Errorf("save prices: %s", err)
	}

	nout, err := c.opts.priceService.Fetch(
		ctx,
		&moneymore.PriceFetchInput{
			TsCode:    tsCode,
			StartDate: c.opts.startDate,
			EndDate:   c.opts.endDate,
			Adjust:    moneymore.AdjustNone,
		},
	)
	if err != nil {
		return fmt.Errorf("fetch unadjusted prices: %s", err)
	}
	err = c.opts.db.ReplacePriceBars(
		ctx, tsCode, moneymore.AdjustNone, nout.Bars)
	if err != nil {
		return fmt.Errorf("save unadjusted prices: %s", err)
	}

	dout, err := c.opts.dividendService.Fetch(
		ctx,
		&moneymore.DividendFetchInput{TsCode: tsCode},
	)
	if err != nil {
		return fmt.Errorf("fetch dividends: %s", err)
	}
	err = c.opts.db.ReplaceDividends(ctx, tsCode, dout.Records)
	if err != nil {
		return fmt.Errorf("save dividends: %s", err)
	}

	eout, err := c.opts.earningsService.Fetch(
		ctx,
		&moneymore.EarningsFetchInput{TsCode: tsCode},
	)
	if err != nil {
		return fmt.Errorf("fetch earnings: %s", err)
	}
	err = c.opts.db.ReplaceEarningsReports(
		ctx, tsCode, eout.Reports)
	if err != nil {
		return fmt.Errorf("save earnings: %s", err)
	}

	iout, err := c.opts.indicatorService.Fetch(
		ctx,
		&moneymore.IndicatorFetchInput{TsCode: tsCode},
	)
	if err != nil {
		return fmt.Errorf("fetch indicators: %s", err)
	}
	err = c.opts.db.ReplaceIndicators(
		ctx, tsCode, iout.Indicators)
	if err != nil {
		return fmt.Errorf("save indicators: %s", err)
	}

	dcout, err := c.opts.disclosureService.Fetch(
		ctx,
		&moneymore.DisclosureFetchInput{TsCode: tsCode},
	)
	if err != nil {
		return fmt.Errorf("fetch disclosure dates: %s", err)
	}
	err = c.opts.db.ReplaceDisclosureDates(
		ctx, tsCode, dcout.Dates)
	if err != nil {
		return fmt.Errorf("save disclosure dates: %s", err)
	}

	return nil
}

func (c *Command) chart(ctx context.Context) error {
	if len(c.args) == 0 {
		return fmt.Errorf("Stock not found")
	}
	names, err := c.stockNames(ctx)
	if err != nil {
		return err
	}

	for _, tsCode := range c.args {
		snap, err := c.loadSnapshot(ctx, tsCode)
		if err != nil {
			return fmt.Errorf("%s: %s", tsCode, err)
		}

		title := tsCode
		if name := names[tsCode]; name != "" {
			title = tsCode + " " + name
		}

		switch c.opts.format {
		case "", "png":
			cg := chart.NewChartGenerator(
				chart.OutputDir(c.opts.outputDir),
				chart.Log(c.opts.logger),
			)
			err = cg.Generate(ctx, snap, title)
			if err != nil {
				return fmt.Errorf("%s: %s", tsCode, err)
			}
		case "html", "html-png":
			r := webchart.NewRenderer(
				webchart.OutputDir(c.opts.outputDir),
				webchart.Log(c.opts.logger),
			)
			htmlPath, err := r.RenderHTML(snap, title)
			if err != nil {
				return fmt.Errorf("%s: %s", tsCode, err)
			}
			if c.opts.format == "html-png" {
				_, err = r.Screenshot(ctx, htmlPath)
				if err != nil {
					return fmt.Errorf(
						"%s: %s", tsCode, err)
				}
			}
		default:
			return fmt.Errorf(
				"invalid chart format: %v", c.opts.format)
		}
	}
	return nil
}

func (c *Command) signals(ctx context.Context) error {
	if len(c.args) == 0 {
		return fmt.Errorf("Stock not found")
	}

	out := &bytes.Buffer{}
	w := tabwriter.NewWriter(
		out, 0, 0, 2, ' ', tabwriter.AlignRight)
	p := message.NewPrinter(language.English)

	b := &bytes.Buffer{}
	b.WriteString(fmt.Sprintf("%-12v", "Stock"))
	b.WriteByte('\t')
	b.WriteString("Date")
	b.WriteByte('\t')
	b.WriteString("Event")
	b.WriteByte('\t')
	b.WriteString("Price")
	b.WriteByte('\t')
	b.WriteString("Yield")
	b.WriteByte('\t')
	b.WriteString("Growth")
	b.WriteByte('\t')
	b.WriteString("Streak")
	b.WriteByte('\t')
	b.WriteString(fmt.Sprintf("%-30v", "Reason"))
	b.WriteByte('\t')
	fmt.Fprintln(w, b.String())

	for _, tsCode := range c.args {
		snap, err := c.loadSnapshot(ctx, tsCode)
		if err != nil {
			return fmt.Errorf("%s: %s", tsCode, err)
		}

		days := make([]moneymore.Day, len(snap.Bars))
		for i, bar := range snap.Bars {
			days[i] = bar.TradeDate
		}
		buys, sells := signal.Scan(
			days, snap.BarsNoAdj, snap.Earnings,
			snap.Dividends, snap.Indicators)

		for _, s := range signal.Merged(buys, sells) {
			b.Reset()
			b.WriteString(fmt.Sprintf("%-12v", tsCode))
			b.WriteByte('\t')
			b.WriteString(s.Date.Format(moneymore.DateFormat))
			b.WriteByte('\t')
			if s.Buy() {
				b.WriteString("BUY")
			} else {
				b.WriteString("SELL")
			}
			b.WriteByte('\t')
			b.WriteString(p.Sprintf("%.2f", s.Price))
			b.WriteByte('\t')
			b.WriteString(p.Sprintf("%.2f%%", s.DividendYield))
			b.WriteByte('\t')
			b.WriteString(growthLabel(s.GrowthRate))
			b.WriteByte('\t')
			if s.Buy() {
				b.WriteString(p.Sprintf(
					"%dy", s.ConsecutiveYears))
			} else {
				b.WriteString("")
			}
			b.WriteByte('\t')
			b.WriteString(fmt.Sprintf("%-30v", s.Reason))
			b.WriteByte('\t')
			fmt.Fprintln(w, b.String())
		}
	}

	w.Flush()
	c.writef("%s", out.String())
	return nil
}

func (c *Command) inspect(ctx context.Context) error {
	if len(c.args) == 0 {
		return fmt.Errorf("Stock not found")
	}
	tsCode := c.args[0]

	day := c.opts.date
	if day.IsZero() {
		day = moneymore.DayOf(time.Now().UTC())
	}

	snap, err := c.loadSnapshot(ctx, tsCode)
	if err != nil {
		return fmt.Errorf("%s: %s", tsCode, err)
	}

	out := &bytes.Buffer{}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	p := message.NewPrinter(language.English)

	row := func(label, value string) {
		b := &bytes.Buffer{}
		b.WriteString(label)
		b.WriteByte('\t')
		b.WriteString(value)
		b.WriteByte('\t')
		fmt.Fprintln(w, b.String())
	}

	row("Stock:", tsCode)
	row("Date:", day.Format(moneymore.DateFormat))

	byDate := moneymore.PriceBarsByDate(snap.BarsNoAdj)
	if bar := byDate[day]; bar != nil {
		row("Close:", p.Sprintf("%.2f", bar.Close))
	} else {
		row("Close:", "no trading")
	}

	year, ok := yield.DividendYear(day, snap.Earnings)
	if !ok {
		row("Dividend year:", "no annual report disclosed")
	} else {
		total := dividend.TotalForYear(year, snap.Dividends)
		streak := dividend.ConsecutiveYears(year, snap.Dividends)
		row("Dividend year:", p.Sprintf("%d", year))
		row("Dividend total:", p.Sprintf("%.4f", total))
		row("Consecutive years:", p.Sprintf("%d", streak))

		if bar := byDate[day]; bar != nil && bar.Close > 0 {
			if total > 0 {
				row("Dividend yield:", p.Sprintf(
					"%.2f%%", total/bar.Close*100))
			} else {
				row("Dividend yield:", "no dividend")
			}
		}
	}

	growth := report.GrowthRateAsOf(
		day, snap.Earnings, snap.Indicators)
	if growth == nil {
		row("Growth rate:", "not reported")
	} else {
		label := fmt.Sprintf(
			"%.2f%% (%s %d %s)",
			growth.Rate,
			report.TypeLabel(growth.EndDate),
			growth.EndDate.Year(),
			growth.EndDate.Format(moneymore.DateFormat),
		)
		if d := report.ActualDisclosure(
			growth.EndDate, snap.Disclosure,
		); d != nil && !d.ActualDate.IsZero() {
			label += ", disclosed " +
				d.ActualDate.Format(moneymore.DateFormat)
		}
		row("Growth rate:", label)
	}

	w.Flush()
	c.writef("%s", out.String())
	return nil
}

func (c *Command) stocks(ctx context.Context) error {
	sout, err := c.opts.stockService.Fetch(
		ctx,
		&moneymore.StockFetchInput{},
	)
	if err != nil {
		return err
	}

	out := &bytes.Buffer{}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, s := range sout.Stocks {
		b := &bytes.Buffer{}
		b.WriteString(s.TsCode)
		b.WriteByte('\t')
		b.WriteString(s.Name)
		b.WriteByte('\t')
		b.WriteString(s.Industry)
		b.WriteByte('\t')
		b.WriteString(s.ListDate.Format(moneymore.DateFormat))
		b.WriteByte('\t')
		fmt.Fprintln(w, b.String())
	}
	w.Flush()
	c.writef("%s", out.String())
	return nil
}

func (c *Command) resolveTsCodes(
	ctx context.Context,
	tsCodes []string,
) ([]string, error) {
	if len(tsCodes) > 0 {
		return tsCodes, nil
	}

	sout, err := c.opts.stockService.Fetch(
		ctx,
		&moneymore.StockFetchInput{},
	)
	if err != nil {
		return nil, err
	}

	all := make([]string, 0, len(sout.Stocks))
	for _, s := range sout.Stocks {
		all = append(all, s.TsCode)
	}
	return all, nil
}

func (c *Command) stockNames(
	ctx context.Context,
) (map[string]string, error) {
	sout, err := c.opts.stockService.Fetch(
		ctx,
		&moneymore.StockFetchInput{},
	)
	if err != nil {
		return nil, err
	}

	names := make(map[string]string, len(sout.Stocks))
	for _, s := range sout.Stocks {
		names[s.TsCode] = s.Name
	}
	return names, nil
}

func (c *Command) loadSnapshot(
	ctx context.Context,
	tsCode string,
) (*moneymore.Snapshot, error) {
	bars, err := c.opts.db.PriceBars(
		ctx,
		tsCode,
		&moneymore.PriceBarFilter{
			Adjust: moneymore.AdjustForward,
			From:   c.opts.startDate,
			To:     c.opts.endDate,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("load prices: %s", err)
	}

	barsNoAdj, err := c.opts.db.PriceBars(
		ctx,
		tsCode,
		&moneymore.PriceBarFilter{
			Adjust: moneymore.AdjustNone,
			From:   c.opts.startDate,
			To:     c.opts.endDate,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("load unadjusted prices: %s", err)
	}

	dividends, err := c.opts.db.Dividends(ctx, tsCode)
	if err != nil {
		return nil, fmt.Errorf("load dividends: %s", err)
	}

	earnings, err := c.opts.db.EarningsReports(ctx, tsCode)
	if err != nil {
		return nil, fmt.Errorf("load earnings: %s", err)
	}

	indicators, err := c.opts.db.Indicators(ctx, tsCode)
	if err != nil {
		return nil, fmt.Errorf("load indicators: %s", err)
	}

	disclosure, err := c.opts.db.DisclosureDates(ctx, tsCode)
	if err != nil {
		return nil, fmt.Errorf("load disclosure dates: %s", err)
	}

	return &moneymore.Snapshot{
		TsCode:     tsCode,
		Bars:       bars,
		BarsNoAdj:  barsNoAdj,
		Earnings:   earnings,
		Dividends:  dividends,
		Indicators: indicators,
		Disclosure: disclosure,
	}, nil
}

func growthLabel(g *report.GrowthRate) string {
	if g == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f%%", g.Rate)
}

func (c *Command) writef(format string, v ...interface{}) {
	if c.opts.writer != nil {
		fmt.Fprintf(c.opts.writer, format, v...)
	}
}

func (c *Command) log(format string, v ...interface{}) {
	if c.opts.logger != nil {
		c.opts.logger.Logf(format, v...)
	}
}

var defaultOptions = options{
	writer:  nil,
	workers: 1,
}

type options struct {
	db        moneymore.DB
	writer    io.Writer
	outputDir string
	startDate moneymore.Day
	endDate   moneymore.Day
	date      moneymore.Day
	format    string
	workers   int
	logger    logger.Logger

	priceService      moneymore.PriceService
	dividendService   moneymore.DividendService
	earningsService   moneymore.EarningsService
	indicatorService  moneymore.IndicatorService
	disclosureService moneymore.DisclosureService
	stockService      moneymore.StockService
}

type Option func(o options) options

func DB(v moneymore.DB) Option {
	return func(o options) options {
		o.db = v
		return o
	}
}

func Writer(v io.Writer) Option {
	return func(o options) options {
		o.writer = v
		return o
	}
}

func OutputDir(v string) Option {
	return func(o options) options {
		o.outputDir = v
		return o
	}
}

func StartDate(v moneymore.Day) Option {
	return func(o options) options {
		o.startDate = v
		return o
	}
}

func EndDate(v moneymore.Day) Option {
	return func(o options) options {
		o.endDate = v
		return o
	}
}

func Date(v moneymore.Day) Option {
	return func(o options) options {
		o.date = v
		return o
	}
}

func Format(v string) Option {
	return func(o options) options {
		o.format = v
		return o
	}
}

func Workers(v int) Option {
	return func(o options) options {
		o.workers = v
		return o
	}
}

func Log(v logger.Logger) Option {
	return func(o options) options {
		o.logger = v
		return o
	}
}

func PriceService(v moneymore.PriceService) Option {
	return func(o options) options {
		o.priceService = v
		return o
	}
}

func DividendService(v moneymore.DividendService) Option {
	return func(o options) options {
		o.dividendService = v
		return o
	}
}

func EarningsService(v moneymore.EarningsService) Option {
	return func(o options) options {
		o.earningsService = v
		return o
	}
}

func IndicatorService(v moneymore.IndicatorService) Option {
	return func(o options) options {
		o.indicatorService = v
		return o
	}
}

func DisclosureService(v moneymore.DisclosureService) Option {
	return func(o options) options {
		o.disclosureService = v
		return o
	}
}

func StockService(v moneymore.StockService) Option {
	return func(o options) options {
		o.stockService = v
		return o
	}
}
