package moneymore

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const DayFormat = "20060102"
const DateFormat = "2006-01-02"

// Day is a calendar day without a time-of-day component. The API
// delivers days as YYYYMMDD integers or numeric strings: positions
// 0-3 are the year, 4-5 the month and 6-7 the day.
type Day struct {
	Time time.Time
}

func NewDay(year int, month time.Month, day int) Day {
	return Day{
		Time: time.Date(
			year, month, day,
			0, 0, 0, 0, time.UTC,
		),
	}
}

func DayOf(t time.Time) Day {
	return NewDay(t.Year(), t.Month(), t.Day())
}

func ParseDay(s string) (Day, error) {
	s = strings.TrimSpace(s)
	if len(s) != 8 {
		return Day{}, fmt.Errorf("invalid day: %q", s)
	}

	year, err := strconv.Atoi(s[0:4])
	if err != nil {
		return Day{}, fmt.Errorf("invalid day: %q", s)
	}
	month, err := strconv.Atoi(s[4:6])
	if err != nil {
		return Day{}, fmt.Errorf("invalid day: %q", s)
	}
	day, err := strconv.Atoi(s[6:8])
	if err != nil {
		return Day{}, fmt.Errorf("invalid day: %q", s)
	}

	if month < 1 || 12 < month || day < 1 || 31 < day {
		return Day{}, fmt.Errorf("invalid day: %q", s)
	}

	return NewDay(year, time.Month(month), day), nil
}

func (d Day) IsZero() bool {
	return d.Time.IsZero()
}

func (d Day) Equal(o Day) bool {
	return d.Time.Equal(o.Time)
}

func (d Day) Before(o Day) bool {
	return d.Time.Before(o.Time)
}

func (d Day) After(o Day) bool {
	return d.Time.After(o.Time)
}

func (d Day) Year() int {
	return d.Time.Year()
}

// MonthDay returns the month-day suffix of the day as an integer,
// e.g. 1231 for December 31 or 331 for March 31. The suffix
// identifies the report type of a fiscal period end.
func (d Day) MonthDay() int {
	return int(d.Time.Month())*100 + d.Time.Day()
}

func (d Day) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Time.Format(DayFormat)
}

func (d Day) Format(layout string) string {
	return d.Time.Format(layout)
}

// UnmarshalJSON accepts YYYYMMDD as a JSON number or string.
// Null, empty and zero values decode to the zero Day.
func (d *Day) UnmarshalJSON(data []byte) error {
	s := string(bytes.Trim(data, `"`))
	if s == "" || s == "null" || s == "0" {
		*d = Day{}
		return nil
	}

	// some feeds deliver floats like 20211231.0
	if i := strings.IndexByte(s, '.'); i >= 0 {
		s = s[:i]
	}

	day, err := ParseDay(s)
	if err != nil {
		return err
	}
	*d = day
	return nil
}

func (d Day) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.String() + `"`), nil
}
