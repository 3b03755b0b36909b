package webchart

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"

	"szakszon.com/moneymore"
	"szakszon.com/moneymore/logger"
	"szakszon.com/moneymore/signal"
	"szakszon.com/moneymore/yield"
)

type options struct {
	outputDir string
	timeout   time.Duration
	logger    logger.Logger
}

type Option func(o options) options

func OutputDir(dir string) Option {
	return func(o options) options {
		o.outputDir = dir
		return o
	}
}

func Timeout(d time.Duration) Option {
	return func(o options) options {
		o.timeout = d
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
	timeout:   60 * time.Second,
	logger:    nil,
}

// Renderer writes the candlestick chart as a self-contained ECharts
// HTML page and can export it to PNG through a headless browser.
type Renderer struct {
	opts options
}

func NewRenderer(os ...Option) Renderer {
	opts := defaultOptions
	for _, o := range os {
		opts = o(opts)
	}
	return Renderer{
		opts: opts,
	}
}

// RenderHTML writes <ts-code>.html into the output dir and returns
// its path.
func (f *Renderer) RenderHTML(
	snap *moneymore.Snapshot,
	title string,
) (string, error) {
	yields := yield.Series(
		snap.Bars, snap.BarsNoAdj, snap.Earnings, snap.Dividends)

	days := make([]moneymore.Day, len(snap.Bars))
	for i, b := range snap.Bars {
		days[i] = b.TradeDate
	}
	buys, sells := signal.Scan(
		days, snap.BarsNoAdj, snap.Earnings,
		snap.Dividends, snap.Indicators)

	params, err := newPageParams(
		title, snap.Bars, yields, buys, sells)
	if err != nil {
		return "", err
	}

	err = os.MkdirAll(f.opts.outputDir, 0777)
	if err != nil {
		return "", fmt.Errorf("create dir: %s", err)
	}

	htmlPath := filepath.Join(
		f.opts.outputDir, snap.TsCode+".html")
	out, err := os.Create(htmlPath)
	if err != nil {
		return "", fmt.Errorf(
			"create html file: %s: %s", htmlPath, err)
	}
	defer out.Close()

	tmpl, err := template.New("page").Parse(pageTmpl)
	if err != nil {
		return "", err
	}
	err = tmpl.Execute(out, params)
	if err != nil {
		return "", fmt.Errorf(
			"render html: %s: %s", htmlPath, err)
	}

	f.log("%s: %s", snap.TsCode, htmlPath)
	return htmlPath, nil
}

// Screenshot loads the rendered page headlessly and writes a PNG
// next to it.
func (f *Renderer) Screenshot(
	ctx context.Context,
	htmlPath string,
) (string, error) {
	abs, err := filepath.Abs(htmlPath)
	if err != nil {
		return "", err
	}
	pngPath := strippedExt(abs) + ".png"

	opts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
	)
	actx, cancel := chromedp.NewExecAllocator(ctx, opts...)
	defer cancel()

	cctx, cancel := chromedp.NewContext(actx)
	defer cancel()

	cctx, cancel = context.WithTimeout(cctx, f.opts.timeout)
	defer cancel()

	var buf []byte
	err = chromedp.Run(cctx,
		emulation.SetDeviceMetricsOverride(1920, 1080, 1, false),
		chromedp.Navigate("file://"+abs),
		chromedp.WaitVisible("#chart canvas", chromedp.ByQuery),
		chromedp.FullScreenshot(&buf, 90),
	)
	if err != nil {
		return "", fmt.Errorf("screenshot: %s: %s", abs, err)
	}

	err = os.WriteFile(pngPath, buf, 0666)
	if err != nil {
		return "", fmt.Errorf(
			"write png: %s: %s", pngPath, err)
	}

	f.log("screenshot: %s", pngPath)
	return pngPath, nil
}

func (f *Renderer) log(format string, v ...interface{}) {
	if f.opts.logger != nil {
		f.opts.logger.Logf(format, v...)
	}
}

func strippedExt(p string) string {
	return p[:len(p)-len(filepath.Ext(p))]
}

type pageParams struct {
	Title     string
	DatesJSON template.JS
	KlineJSON template.JS
	YieldJSON template.JS
	BuysJSON  template.JS
	SellsJSON template.JS
}

type markPoint struct {
	Date  string  `json:"date"`
	Price float64 `json:"price"`
	Label string  `json:"label"`
}

func newPageParams(
	title string,
	bars []*moneymore.PriceBar,
	yields []float64,
	buys, sells []*signal.Signal,
) (*pageParams, error) {
	dates := make([]string, len(bars))
	kline := make([][4]float64, len(bars))
	// NaN has no JSON encoding, gaps become nulls
	yieldVals := make([]interface{}, len(bars))

	for i, b := range bars {
		dates[i] = b.TradeDate.Format(moneymore.DateFormat)
		kline[i] = [4]float64{b.Open, b.Close, b.Low, b.High}
		if !math.IsNaN(yields[i]) {
			yieldVals[i] = yields[i]
		}
	}

	buyPoints := make([]*markPoint, 0, len(buys))
	for _, s := range buys {
		buyPoints = append(buyPoints, &markPoint{
			Date:  s.Date.Format(moneymore.DateFormat),
			Price: s.Price,
			Label: "B",
		})
	}
	sellPoints := make([]*markPoint, 0, len(sells))
	for _, s := range sells {
		sellPoints = append(sellPoints, &markPoint{
			Date:  s.Date.Format(moneymore.DateFormat),
			Price: s.Price,
			Label: "S",
		})
	}

	datesJSON, err := json.Marshal(dates)
	if err != nil {
		return nil, err
	}
	klineJSON, err := json.Marshal(kline)
	if err != nil {
		return nil, err
	}
	yieldJSON, err := json.Marshal(yieldVals)
	if err != nil {
		return nil, err
	}
	buysJSON, err := json.Marshal(buyPoints)
	if err != nil {
		return nil, err
	}
	sellsJSON, err := json.Marshal(sellPoints)
	if err != nil {
		return nil, err
	}

	return &pageParams{
		Title:     title,
		DatesJSON: template.JS(datesJSON),
		KlineJSON: template.JS(klineJSON),
		YieldJSON: template.JS(yieldJSON),
		BuysJSON:  template.JS(buysJSON),
		SellsJSON: template.JS(sellsJSON),
	}, nil
}

const pageTmpl = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<script src="https://cdn.jsdelivr.net/npm/echarts@5/dist/echarts.min.js"></script>
<style>
body { margin: 0; background: #fff; }
#chart { width: 1900px; height: 1040px; }
</style>
</head>
<body>
<div id="chart"></div>
<script>
var dates = {{.DatesJSON}};
var kline = {{.KlineJSON}};
var yields = {{.YieldJSON}};
var buys = {{.BuysJSON}};
var sells = {{.SellsJSON}};

function points(list, color) {
	return list.map(function (p) {
		return {
			coord: [p.date, p.price],
			value: p.label,
			itemStyle: { color: color }
		};
	});
}

var chart = echarts.init(document.getElementById('chart'));
chart.setOption({
	title: { text: {{.Title}}, left: 'center' },
	axisPointer: { link: [{ xAxisIndex: 'all' }] },
	grid: [
		{ left: 60, right: 30, top: 50, height: 620 },
		{ left: 60, right: 30, top: 730, height: 260 }
	],
	xAxis: [
		{ type: 'category', data: dates, gridIndex: 0 },
		{ type: 'category', data: dates, gridIndex: 1 }
	],
	yAxis: [
		{ scale: true, gridIndex: 0 },
		{ scale: true, gridIndex: 1, axisLabel: { formatter: '{value}%' } }
	],
	series: [
		{
			name: 'price',
			type: 'candlestick',
			data: kline,
			xAxisIndex: 0,
			yAxisIndex: 0,
			markPoint: {
				symbol: 'pin',
				symbolSize: 40,
				data: points(buys, '#4caf50').concat(points(sells, '#f44336'))
			}
		},
		{
			name: 'dividend yield',
			type: 'line',
			data: yields,
			xAxisIndex: 1,
			yAxisIndex: 1,
			showSymbol: false,
			connectNulls: false
		}
	]
});
</script>
</body>
</html>
`
