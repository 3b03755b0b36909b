package chart

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"regexp"
	"text/template"

	"szakszon.com/moneymore"
	"szakszon.com/moneymore/logger"
	"szakszon.com/moneymore/signal"
	"szakszon.com/moneymore/yield"
)

type options struct {
	outputDir string
	logger    logger.Logger
}

type Option func(o options) options

func OutputDir(dir string) Option {
	return func(o options) options {
		o.outputDir = dir
		return o
	}
}

func Log(l logger.Logger) Option {
	return func(o options) options {
		o.logger = l
		return o
	}
}

var defaultOptions = options{
	outputDir: "",
	logger:    nil,
}

func NewChartGenerator(os ...Option) ChartGenerator {
	opts := defaultOptions
	for _, o := range os {
		opts = o(opts)
	}
	return ChartGenerator{
		opts: opts,
	}
}

// ChartGenerator renders a candlestick chart with the dividend
// yield series and buy/sell markers through gnuplot.
type ChartGenerator struct {
	opts options
}

func (f *ChartGenerator) Generate(
	ctx context.Context,
	snap *moneymore.Snapshot,
	title string,
) error {
	yields := yield.Series(
		snap.Bars, snap.BarsNoAdj, snap.Earnings, snap.Dividends)

	days := make([]moneymore.Day, len(snap.Bars))
	for i, b := range snap.Bars {
		days[i] = b.TradeDate
	}
	buys, sells := signal.Scan(
		days, snap.BarsNoAdj, snap.Earnings,
		snap.Dividends, snap.Indicators)

	err := os.MkdirAll(f.opts.outputDir, 0777)
	if err != nil {
		return fmt.Errorf("create dir: %s", err)
	}

	dataPath := filepath.Join(
		f.opts.outputDir, snap.TsCode+".csv")
	d, err := os.Create(dataPath)
	if err != nil {
		return fmt.Errorf(
			"create data file: %s: %s", dataPath, err)
	}
	defer d.Close()

	err = writeRows(d, snap.Bars, yields, buys, sells)
	if err != nil {
		return fmt.Errorf(
			"write data file: %s: %s", dataPath, err)
	}

	plotParams := plotParams{
		Datafile:      path.Join(f.opts.outputDir, snap.TsCode+".csv"),
		Imgfile:       path.Join(f.opts.outputDir, snap.TsCode+".png"),
		TitlePrices:   title + " prices",
		TitleDivYield: title + " dividend yield",
	}
	plotCommandsTmpl, err := template.New("plot").
		Parse(plotCommandsTmpl)
	if err != nil {
		return err
	}

	plotCommands := bytes.NewBufferString("")
	err = plotCommandsTmpl.Execute(plotCommands, plotParams)
	if err != nil {
		return err
	}

	plotCommandsStr := nlRE.ReplaceAllString(
		plotCommands.String(), " ")
	err = exec.CommandContext(
		ctx, "gnuplot", "-e", plotCommandsStr).Run()
	if err != nil {
		return err
	}

	f.log("%s: %s", snap.TsCode, "OK")
	return nil
}

func (f *ChartGenerator) log(format string, v ...interface{}) {
	if f.opts.logger != nil {
		f.opts.logger.Logf(format, v...)
	}
}

func writeRows(
	out io.Writer,
	bars []*moneymore.PriceBar,
	yields []float64,
	buys, sells []*signal.Signal,
) error {
	buyByDate := make(map[moneymore.Day]*signal.Signal, len(buys))
	for _, s := range buys {
		buyByDate[s.Date] = s
	}
	sellByDate := make(map[moneymore.Day]*signal.Signal, len(sells))
	for _, s := range sells {
		sellByDate[s.Date] = s
	}

	w := &writer{W: bufio.NewWriter(out)}

	w.WriteString("Date,Open,Close,Low,High,Yield,Buy,Sell")
	for i, b := range bars {
		w.WriteString("\n")

		row := fmt.Sprintf("%s,%.2f,%.2f,%.2f,%.2f,%s,%s,%s",
			b.TradeDate.Format(moneymore.DateFormat),
			b.Open,
			b.Close,
			b.Low,
			b.High,
			field(yields[i]),
			signalField(buyByDate[b.TradeDate]),
			signalField(sellByDate[b.TradeDate]),
		)
		w.WriteString(row)
	}

	err := w.Flush()
	if err != nil {
		return err
	}
	return err
}

// field renders a series value, "?" marking a gap for gnuplot.
func field(v float64) string {
	if math.IsNaN(v) {
		return "?"
	}
	return fmt.Sprintf("%.4f", v)
}

func signalField(s *signal.Signal) string {
	if s == nil {
		return "?"
	}
	return fmt.Sprintf("%.2f", s.Price)
}

type writer struct {
	W   *bufio.Writer
	Err error
}

func (w *writer) Flush() error {
	if w.Err != nil {
		return w.Err
	}
	return w.W.Flush()
}

func (w *writer) WriteString(s string) error {
	if w.Err != nil {
		return w.Err
	}

	_, err := w.W.Write([]byte(s))
	if err != nil {
		w.Err = err
		return err
	}
	return err
}

var nlRE = regexp.MustCompile(`\r?\n`)

type plotParams struct {
	Datafile      string
	Imgfile       string
	TitlePrices   string
	TitleDivYield string
}

const plotCommandsTmpl = `
datafile='{{.Datafile}}';
imgfile='{{.Imgfile}}';
titleprices='{{.TitlePrices}}';
titledivyield='{{.TitleDivYield}}';

set terminal png size 1920,1080;
set output imgfile;

set lmargin  9;
set rmargin  2;

set grid;
set autoscale;
set key outside;
set key bottom right;
set key autotitle columnhead;

set datafile separator ',';
set datafile missing '?';
set xdata time;
set timefmt '%Y-%m-%d';
set format x '%Y %b %d';

set multiplot;
set size 1, 0.66;

set origin 0.0,0.33;
set title titleprices;
set boxwidth 0.6 relative;
plot datafile using 1:2:4:5:3 with candlesticks, \
     datafile using 1:7 with points pt 9 ps 3 lc rgb 'forest-green', \
     datafile using 1:8 with points pt 11 ps 3 lc rgb 'red';

set size 1, 0.33;
set origin 0.0,0.0;
set title titledivyield;
plot datafile using 1:6 with filledcurves above y = 0;

unset multiplot;
`
