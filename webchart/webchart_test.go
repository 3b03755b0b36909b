package webchart

import (
	"math"
	"strings"
	"testing"
	"time"

	"szakszon.com/moneymore"
	"szakszon.com/moneymore/signal"
)

func TestNewPageParams(t *testing.T) {
	d1 := moneymore.NewDay(2022, time.May, 5)
	d2 := moneymore.NewDay(2022, time.May, 6)

	bars := []*moneymore.PriceBar{
		{TradeDate: d1, Open: 10.0, Close: 10.5, Low: 9.8, High: 10.6},
		{TradeDate: d2, Open: 10.5, Close: 10.2, Low: 10.1, High: 10.7},
	}
	yields := []float64{4.0, math.NaN()}
	buys := []*signal.Signal{{Date: d1, Price: 10.5}}

	params, err := newPageParams("t", bars, yields, buys, nil)
	if err != nil {
		t.Fatal(err)
	}

	if got := string(params.DatesJSON); got != `["2022-05-05","2022-05-06"]` {
		t.Errorf("dates = %s", got)
	}
	// the gap must encode as a JSON null for the chart to break
	// the line
	if got := string(params.YieldJSON); got != `[4,null]` {
		t.Errorf("yields = %s", got)
	}
	if !strings.Contains(string(params.BuysJSON), `"date":"2022-05-05"`) {
		t.Errorf("buys = %s", params.BuysJSON)
	}
	if got := string(params.SellsJSON); got != `[]` {
		t.Errorf("sells = %s", got)
	}
}

func TestStrippedExt(t *testing.T) {
	if got := strippedExt("/tmp/x/000001.SZ.html"); got != "/tmp/x/000001.SZ" {
		t.Errorf("strippedExt = %q", got)
	}
}
