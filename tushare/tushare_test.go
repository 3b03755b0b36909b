package tushare

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"szakszon.com/moneymore"
)

func newTestClient(handler http.HandlerFunc) (*Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	c := NewClient(
		BaseURL(srv.URL + "/api/v1"),
		Timeout(5 * time.Second),
	)
	return c, srv
}

func TestPriceServiceFetch(t *testing.T) {
	var gotPath string
	var gotQuery string
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		// numbers as numbers and as strings, descending order
		w.Write([]byte(`{
			"success": true,
			"message": "",
			"count": 2,
			"data": [
				{"trade_date": 20220506, "open": "10.5",
				 "close": 10.8, "low": 10.4, "high": 10.9,
				 "vol": "120000"},
				{"trade_date": "20220505", "open": 10.1,
				 "close": "10.4", "low": 10.0, "high": 10.5}
			]
		}`))
	})
	defer srv.Close()

	out, err := c.NewPriceService().Fetch(
		context.Background(),
		&moneymore.PriceFetchInput{
			TsCode:    "000001.SZ",
			StartDate: moneymore.NewDay(2022, time.May, 1),
			EndDate:   moneymore.NewDay(2022, time.May, 31),
			Adjust:    moneymore.AdjustForward,
		},
	)
	require.NoError(t, err)

	assert.Equal(t, "/api/v1/stock_data", gotPath)
	assert.Contains(t, gotQuery, "ts_code=000001.SZ")
	assert.Contains(t, gotQuery, "adj=qfq")
	assert.Contains(t, gotQuery, "start_date=20220501")

	require.Len(t, out.Bars, 2)
	// ascending by trade date regardless of feed order
	assert.Equal(t,
		moneymore.NewDay(2022, time.May, 5),
		out.Bars[0].TradeDate)
	assert.Equal(t, 10.4, out.Bars[0].Close)
	assert.Equal(t, 10.5, out.Bars[1].Open)
	assert.Equal(t, 120000.0, out.Bars[1].Vol)
}

func TestFetchEmptyFeed(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"success": false,
			"message": "no data",
			"count": 0,
			"data": []
		}`))
	})
	defer srv.Close()

	out, err := c.NewDividendService().Fetch(
		context.Background(),
		&moneymore.DividendFetchInput{TsCode: "000001.SZ"},
	)
	require.NoError(t, err)
	assert.Empty(t, out.Records)
}

func TestFetchHTTPError(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	defer srv.Close()

	_, err := c.NewDividendService().Fetch(
		context.Background(),
		&moneymore.DividendFetchInput{TsCode: "000001.SZ"},
	)
	require.Error(t, err)
}

func TestEarningsServiceFetch(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/income", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"success": true,
			"count": 2,
			"data": [
				{"ann_date": 20220425,
				 "display_date": 20220426,
				 "end_date": 20211231,
				 "basic_eps": "1.25",
				 "total_revenue": 5.0e9},
				{"ann_date": null, "end_date": 20210930}
			]
		}`))
	})
	defer srv.Close()

	out, err := c.NewEarningsService().Fetch(
		context.Background(),
		&moneymore.EarningsFetchInput{TsCode: "000001.SZ"},
	)
	require.NoError(t, err)

	// the row without an announcement date is dropped
	require.Len(t, out.Reports, 1)
	r := out.Reports[0]
	assert.Equal(t,
		moneymore.NewDay(2021, time.December, 31), r.EndDate)
	assert.Equal(t,
		moneymore.NewDay(2022, time.April, 26),
		r.DisclosureDay())
	assert.Equal(t, 1.25, r.BasicEPS)
	assert.True(t, r.Annual())
}

func TestIndicatorServiceFetch(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/fina_indicator", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"success": true,
			"count": 3,
			"data": [
				{"end_date": 20211231,
				 "dt_netprofit_yoy": "12.5"},
				{"end_date": 20210930,
				 "dt_netprofit_yoy": null},
				{"end_date": 20210630,
				 "dt_netprofit_yoy": "garbage"}
			]
		}`))
	})
	defer srv.Close()

	out, err := c.NewIndicatorService().Fetch(
		context.Background(),
		&moneymore.IndicatorFetchInput{TsCode: "000001.SZ"},
	)
	require.NoError(t, err)
	require.Len(t, out.Indicators, 3)

	require.NotNil(t, out.Indicators[0].DtNetprofitYoy)
	assert.Equal(t, 12.5, *out.Indicators[0].DtNetprofitYoy)
	// null and malformed rates stay distinct from zero
	assert.Nil(t, out.Indicators[1].DtNetprofitYoy)
	assert.Nil(t, out.Indicators[2].DtNetprofitYoy)
}

func TestDividendServiceFetch(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"success": true,
			"count": 2,
			"data": [
				{"end_date": 20211231,
				 "cash_div_tax": "0.35",
				 "div_proc": "实施"},
				{"end_date": 20211231,
				 "cash_div_tax": 0.5,
				 "div_proc": "预案"}
			]
		}`))
	})
	defer srv.Close()

	out, err := c.NewDividendService().Fetch(
		context.Background(),
		&moneymore.DividendFetchInput{TsCode: "000001.SZ"},
	)
	require.NoError(t, err)
	require.Len(t, out.Records, 2)
	assert.Equal(t, 0.35, out.Records[0].CashDivTax)
	assert.True(t, out.Records[0].Implemented())
	assert.False(t, out.Records[1].Implemented())
}

func TestStockServiceFetch(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/stock_basic", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"success": true,
			"count": 1,
			"data": [
				{"ts_code": "000001.SZ",
				 "name": "PAB",
				 "industry": "Banking",
				 "list_date": "19910403"}
			]
		}`))
	})
	defer srv.Close()

	out, err := c.NewStockService().Fetch(
		context.Background(),
		&moneymore.StockFetchInput{},
	)
	require.NoError(t, err)
	require.Len(t, out.Stocks, 1)
	assert.Equal(t, "000001.SZ", out.Stocks[0].TsCode)
	assert.Equal(t,
		moneymore.NewDay(1991, time.April, 3),
		out.Stocks[0].ListDate)
}

func TestDecimalUnmarshal(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{`1.25`, 1.25},
		{`"1.25"`, 1.25},
		{`""`, 0},
		{`null`, 0},
		{`"garbage"`, 0},
	}
	for _, tc := range tests {
		var d decimal
		err := json.Unmarshal([]byte(tc.in), &d)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, float64(d), tc.in)
	}
}
