package tushare

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"szakszon.com/moneymore"
	"szakszon.com/moneymore/httprate"
	"szakszon.com/moneymore/logger"
)

type options struct {
	baseURL     string
	timeout     time.Duration
	rateLimiter *rate.Limiter
	logger      logger.Logger
}

type Option func(o options) options

func BaseURL(u string) Option {
	return func(o options) options {
		o.baseURL = u
		return o
	}
}

func Timeout(d time.Duration) Option {
	return func(o options) options {
		o.timeout = d
		return o
	}
}

func RateLimiter(rl *rate.Limiter) Option {
	return func(o options) options {
		o.rateLimiter = rl
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
	baseURL:     "http://localhost:5000/api/v1",
	timeout:     30 * time.Second,
	rateLimiter: rate.NewLimiter(rate.Every(200*time.Millisecond), 1),
	logger:      nil,
}

// Client talks to the tushare proxy API. Every feed returns a JSON
// envelope {success, message, data, count}; an unsuccessful
// envelope with no data is an empty result, not an error.
type Client struct {
	opts       options
	httpClient *httprate.RLClient
}

func NewClient(os ...Option) *Client {
	opts := defaultOptions
	for _, o := range os {
		opts = o(opts)
	}

	return &Client{
		opts: opts,
		httpClient: httprate.NewRLClient(
			opts.timeout,
			opts.rateLimiter,
		),
	}
}

func (c *Client) log(format string, v ...interface{}) {
	if c.opts.logger != nil {
		c.opts.logger.Logf(format, v...)
	}
}

func (c *Client) stockDataURL(
	tsCode string,
	from, to moneymore.Day,
	adjust moneymore.Adjust,
) string {
	q := url.Values{}
	q.Set("ts_code", tsCode)
	if !from.IsZero() {
		q.Set("start_date", from.String())
	}
	if !to.IsZero() {
		q.Set("end_date", to.String())
	}
	if adjust != moneymore.AdjustNone {
		q.Set("adj", string(adjust))
	}
	return c.opts.baseURL + "/stock_data?" + q.Encode()
}

func (c *Client) dividendURL(tsCode string) string {
	return c.opts.baseURL +
		"/dividend?ts_code=" + url.QueryEscape(tsCode)
}

func (c *Client) incomeURL(tsCode string) string {
	return c.opts.baseURL +
		"/income?ts_code=" + url.QueryEscape(tsCode)
}

func (c *Client) finaIndicatorURL(tsCode string) string {
	return c.opts.baseURL +
		"/fina_indicator?ts_code=" + url.QueryEscape(tsCode)
}

func (c *Client) disclosureDateURL(tsCode string) string {
	return c.opts.baseURL +
		"/disclosure_date?ts_code=" + url.QueryEscape(tsCode)
}

func (c *Client) stockBasicURL() string {
	return c.opts.baseURL + "/stock_basic"
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Count   int             `json:"count"`
	Data    json.RawMessage `json:"data"`
}

func (c *Client) getJSON(
	ctx context.Context,
	u string,
	dst interface{},
) error {
	req, err := http.NewRequestWithContext(
		ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf(
			"http error: %v: %v", u, resp.StatusCode)
	}

	var env envelope
	err = json.NewDecoder(resp.Body).Decode(&env)
	if err != nil {
		return fmt.Errorf("decode envelope: %s", err)
	}

	if !env.Success {
		// the API answers success=false with an empty data
		// array when a feed has no rows for the security
		c.log("empty feed: %v: %v", u, env.Message)
		return nil
	}

	if len(env.Data) == 0 {
		return nil
	}

	err = json.Unmarshal(env.Data, dst)
	if err != nil {
		return fmt.Errorf("decode data: %s", err)
	}
	return nil
}

// decimal coerces the feed's numeric fields, which arrive as JSON
// numbers or numeric strings. Null and malformed values count as
// zero.
type decimal float64

func (d *decimal) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*d = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		*d = 0
		return nil
	}
	*d = decimal(v)
	return nil
}

// nullDecimal keeps null and malformed values distinct from zero.
type nullDecimal struct {
	Value *float64
}

func (d *nullDecimal) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		d.Value = nil
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		d.Value = nil
		return nil
	}
	d.Value = &v
	return nil
}

func (c *Client) NewPriceService() moneymore.PriceService {
	return &priceService{client: c}
}

type priceService struct {
	client *Client
}

type priceRow struct {
	TradeDate moneymore.Day `json:"trade_date"`
	Open      decimal       `json:"open"`
	Close     decimal       `json:"close"`
	Low       decimal       `json:"low"`
	High      decimal       `json:"high"`
	Change    decimal       `json:"change"`
	PctChg    decimal       `json:"pct_chg"`
	Vol       decimal       `json:"vol"`
	Amount    decimal       `json:"amount"`
}

func (s *priceService) Fetch(
	ctx context.Context,
	in *moneymore.PriceFetchInput,
) (*moneymore.PriceFetchOutput, error) {
	u := s.client.stockDataURL(
		in.TsCode, in.StartDate, in.EndDate, in.Adjust)

	rows := make([]*priceRow, 0)
	err := s.client.getJSON(ctx, u, &rows)
	if err != nil {
		return nil, fmt.Errorf("fetch prices: %s", err)
	}

	bars := make([]*moneymore.PriceBar, 0, len(rows))
	for _, r := range rows {
		if r.TradeDate.IsZero() {
			continue
		}
		bars = append(bars, &moneymore.PriceBar{
			TradeDate: r.TradeDate,
			Open:      float64(r.Open),
			Close:     float64(r.Close),
			Low:       float64(r.Low),
			High:      float64(r.High),
			Change:    float64(r.Change),
			PctChg:    float64(r.PctChg),
			Vol:       float64(r.Vol),
			Amount:    float64(r.Amount),
		})
	}
	sortBarsAsc(bars)

	return &moneymore.PriceFetchOutput{Bars: bars}, nil
}

func sortBarsAsc(bars []*moneymore.PriceBar) {
	sort.SliceStable(bars, func(i, j int) bool {
		return bars[i].TradeDate.Before(bars[j].TradeDate)
	})
}

func (c *Client) NewDividendService() moneymore.DividendService {
	return &dividendService{client: c}
}

type dividendService struct {
	client *Client
}

type dividendRow struct {
	EndDate    moneymore.Day `json:"end_date"`
	CashDivTax decimal       `json:"cash_div_tax"`
	DivProc    string        `json:"div_proc"`
}

func (s *dividendService) Fetch(
	ctx context.Context,
	in *moneymore.DividendFetchInput,
) (*moneymore.DividendFetchOutput, error) {
	rows := make([]*dividendRow, 0)
	err := s.client.getJSON(
		ctx, s.client.dividendURL(in.TsCode), &rows)
	if err != nil {
		return nil, fmt.Errorf("fetch dividends: %s", err)
	}

	records := make([]*moneymore.DividendRecord, 0, len(rows))
	for _, r := range rows {
		if r.EndDate.IsZero() {
			continue
		}
		records = append(records, &moneymore.DividendRecord{
			EndDate:    r.EndDate,
			CashDivTax: float64(r.CashDivTax),
			DivProc:    r.DivProc,
		})
	}

	return &moneymore.DividendFetchOutput{Records: records}, nil
}

func (c *Client) NewEarningsService() moneymore.EarningsService {
	return &earningsService{client: c}
}

type earningsService struct {
	client *Client
}

type earningsRow struct {
	AnnDate      moneymore.Day `json:"ann_date"`
	DisplayDate  moneymore.Day `json:"display_date"`
	EndDate      moneymore.Day `json:"end_date"`
	BasicEPS     decimal       `json:"basic_eps"`
	TotalRevenue decimal       `json:"total_revenue"`
}

func (s *earningsService) Fetch(
	ctx context.Context,
	in *moneymore.EarningsFetchInput,
) (*moneymore.EarningsFetchOutput, error) {
	rows := make([]*earningsRow, 0)
	err := s.client.getJSON(
		ctx, s.client.incomeURL(in.TsCode), &rows)
	if err != nil {
		return nil, fmt.Errorf("fetch earnings: %s", err)
	}

	reports := make([]*moneymore.EarningsReport, 0, len(rows))
	for _, r := range rows {
		if r.EndDate.IsZero() || r.AnnDate.IsZero() {
			continue
		}
		reports = append(reports, &moneymore.EarningsReport{
			AnnDate:      r.AnnDate,
			DisplayDate:  r.DisplayDate,
			EndDate:      r.EndDate,
			BasicEPS:     float64(r.BasicEPS),
			TotalRevenue: float64(r.TotalRevenue),
		})
	}

	return &moneymore.EarningsFetchOutput{Reports: reports}, nil
}

func (c *Client) NewIndicatorService() moneymore.IndicatorService {
	return &indicatorService{client: c}
}

type indicatorService struct {
	client *Client
}

type indicatorRow struct {
	EndDate        moneymore.Day `json:"end_date"`
	DtNetprofitYoy nullDecimal   `json:"dt_netprofit_yoy"`
}

func (s *indicatorService) Fetch(
	ctx context.Context,
	in *moneymore.IndicatorFetchInput,
) (*moneymore.IndicatorFetchOutput, error) {
	rows := make([]*indicatorRow, 0)
	err := s.client.getJSON(
		ctx, s.client.finaIndicatorURL(in.TsCode), &rows)
	if err != nil {
		return nil, fmt.Errorf("fetch indicators: %s", err)
	}

	indicators := make(
		[]*moneymore.FinancialIndicator, 0, len(rows))
	for _, r := range rows {
		if r.EndDate.IsZero() {
			continue
		}
		indicators = append(indicators,
			&moneymore.FinancialIndicator{
				EndDate:        r.EndDate,
				DtNetprofitYoy: r.DtNetprofitYoy.Value,
			})
	}

	return &moneymore.IndicatorFetchOutput{
		Indicators: indicators,
	}, nil
}

func (c *Client) NewDisclosureService() moneymore.DisclosureService {
	return &disclosureService{client: c}
}

type disclosureService struct {
	client *Client
}

type disclosureRow struct {
	EndDate    moneymore.Day `json:"end_date"`
	ActualDate moneymore.Day `json:"actual_date"`
}

func (s *disclosureService) Fetch(
	ctx context.Context,
	in *moneymore.DisclosureFetchInput,
) (*moneymore.DisclosureFetchOutput, error) {
	rows := make([]*disclosureRow, 0)
	err := s.client.getJSON(
		ctx, s.client.disclosureDateURL(in.TsCode), &rows)
	if err != nil {
		return nil, fmt.Errorf("fetch disclosure dates: %s", err)
	}

	dates := make([]*moneymore.DisclosureDate, 0, len(rows))
	for _, r := range rows {
		if r.EndDate.IsZero() {
			continue
		}
		dates = append(dates, &moneymore.DisclosureDate{
			EndDate:    r.EndDate,
			ActualDate: r.ActualDate,
		})
	}

	return &moneymore.DisclosureFetchOutput{Dates: dates}, nil
}

func (c *Client) NewStockService() moneymore.StockService {
	return &stockService{client: c}
}

type stockService struct {
	client *Client
}

type stockRow struct {
	TsCode   string        `json:"ts_code"`
	Name     string        `json:"name"`
	Industry string        `json:"industry"`
	ListDate moneymore.Day `json:"list_date"`
}

func (s *stockService) Fetch(
	ctx context.Context,
	in *moneymore.StockFetchInput,
) (*moneymore.StockFetchOutput, error) {
	rows := make([]*stockRow, 0)
	err := s.client.getJSON(
		ctx, s.client.stockBasicURL(), &rows)
	if err != nil {
		return nil, fmt.Errorf("fetch stock basics: %s", err)
	}

	stocks := make([]*moneymore.StockInfo, 0, len(rows))
	for _, r := range rows {
		if r.TsCode == "" {
			continue
		}
		stocks = append(stocks, &moneymore.StockInfo{
			TsCode:   r.TsCode,
			Name:     r.Name,
			Industry: r.Industry,
			ListDate: r.ListDate,
		})
	}

	return &moneymore.StockFetchOutput{Stocks: stocks}, nil
}
