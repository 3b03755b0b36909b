package chart

import (
	"bytes"
	"math"
	"strings"
	"testing"
	"time"

	"szakszon.com/moneymore"
	"szakszon.com/moneymore/signal"
)

func TestWriteRows(t *testing.T) {
	d1 := moneymore.NewDay(2022, time.May, 5)
	d2 := moneymore.NewDay(2022, time.May, 6)

	bars := []*moneymore.PriceBar{
		{TradeDate: d1, Open: 10.0, Close: 10.5, Low: 9.8, High: 10.6},
		{TradeDate: d2, Open: 10.5, Close: 10.2, Low: 10.1, High: 10.7},
	}
	yields := []float64{4.1234, math.NaN()}
	buys := []*signal.Signal{
		{Date: d1, Price: 10.5},
	}

	out := &bytes.Buffer{}
	err := writeRows(out, bars, yields, buys, nil)
	if err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(out.String(), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines = %d, want 3", len(lines))
	}
	if lines[0] != "Date,Open,Close,Low,High,Yield,Buy,Sell" {
		t.Errorf("header = %q", lines[0])
	}
	if lines[1] != "2022-05-05,10.00,10.50,9.80,10.60,4.1234,10.50,?" {
		t.Errorf("row 1 = %q", lines[1])
	}
	if lines[2] != "2022-05-06,10.50,10.20,10.10,10.70,?,?,?" {
		t.Errorf("row 2 = %q", lines[2])
	}
}

func TestField(t *testing.T) {
	if got := field(math.NaN()); got != "?" {
		t.Errorf("field(NaN) = %q, want ?", got)
	}
	if got := field(4.5); got != "4.5000" {
		t.Errorf("field(4.5) = %q", got)
	}
}
