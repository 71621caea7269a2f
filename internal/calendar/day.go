package calendar

import (
	"fmt"
	"net/http"
	"time"

	"github.com/staydrive/inventory-engine/internal/pkg/apperror"
)

// Layout is the only accepted wire format for a calendar day.
const Layout = "2006-01-02"

var ErrInvalidDay = apperror.New(http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")

// Day is a calendar day with no time-of-day and no time zone.
// It counts days since 1970-01-01, so it is comparable, usable as a map key,
// and arithmetic never crosses a DST boundary.
type Day int32

// Date builds a Day from its civil components. Out-of-range values are
// normalized the way time.Date normalizes them.
func Date(year int, month time.Month, day int) Day {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return Day(t.Unix() / 86400)
}

// FromTime returns the civil day of t as observed in t's own location.
func FromTime(t time.Time) Day {
	y, m, d := t.Date()
	return Date(y, m, d)
}

// Today returns the current day in loc. The engine decides "today" server-side
// so that clients in other zones cannot shift the calendar by a day.
func Today(loc *time.Location) Day {
	if loc == nil {
		loc = time.UTC
	}
	return FromTime(time.Now().In(loc))
}

// Parse parses a YYYY-MM-DD string.
func Parse(s string) (Day, error) {
	t, err := time.Parse(Layout, s)
	if err != nil {
		return 0, ErrInvalidDay
	}
	return FromTime(t), nil
}

// MustParse is Parse for constants in tests and fixtures.
func MustParse(s string) Day {
	d, err := Parse(s)
	if err != nil {
		panic(fmt.Sprintf("calendar: bad day %q", s))
	}
	return d
}

// Time returns midnight UTC of the day. Only storage adapters should need it.
func (d Day) Time() time.Time {
	return time.Unix(int64(d)*86400, 0).UTC()
}

func (d Day) String() string {
	return d.Time().Format(Layout)
}

func (d Day) AddDays(n int) Day {
	return d + Day(n)
}

func (d Day) Before(o Day) bool {
	return d < o
}

func (d Day) After(o Day) bool {
	return d > o
}

func (d Day) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Day) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// UnmarshalParam lets gin bind a Day from query, form and uri parameters.
func (d *Day) UnmarshalParam(param string) error {
	return d.UnmarshalText([]byte(param))
}
