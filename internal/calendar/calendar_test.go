package calendar

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAndFormat(t *testing.T) {
	d, err := Parse("2024-07-10")
	require.NoError(t, err)
	assert.Equal(t, "2024-07-10", d.String())
	assert.Equal(t, time.Date(2024, 7, 10, 0, 0, 0, 0, time.UTC), d.Time())

	_, err = Parse("2024-07-10T10:00:00Z")
	assert.ErrorIs(t, err, ErrInvalidDay)

	_, err = Parse("2024-02-30")
	assert.ErrorIs(t, err, ErrInvalidDay)
}

func TestFromTimeIgnoresClockAndZone(t *testing.T) {
	taipei := time.FixedZone("UTC+8", 8*3600)
	lateNight := time.Date(2024, 7, 10, 23, 59, 0, 0, taipei)

	assert.Equal(t, MustParse("2024-07-10"), FromTime(lateNight))
	// Same instant, seen from UTC, is still the 10th afternoon.
	assert.Equal(t, MustParse("2024-07-10"), FromTime(lateNight.UTC()))

	early := time.Date(2024, 7, 10, 1, 0, 0, 0, taipei)
	assert.Equal(t, MustParse("2024-07-09"), FromTime(early.UTC()))
}

func TestDayArithmeticAcrossMonthAndLeapYear(t *testing.T) {
	assert.Equal(t, MustParse("2024-03-01"), MustParse("2024-02-28").AddDays(2))
	assert.Equal(t, MustParse("2025-01-01"), MustParse("2024-12-31").AddDays(1))
	assert.True(t, MustParse("2024-07-01").Before(MustParse("2024-07-02")))
	assert.True(t, MustParse("2024-07-02").After(MustParse("2024-07-01")))
}

func TestDayJSON(t *testing.T) {
	type payload struct {
		Date Day `json:"date"`
	}
	b, err := json.Marshal(payload{Date: MustParse("2024-07-15")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"date":"2024-07-15"}`, string(b))

	var p payload
	require.NoError(t, json.Unmarshal([]byte(`{"date":"2024-01-31"}`), &p))
	assert.Equal(t, MustParse("2024-01-31"), p.Date)

	assert.Error(t, json.Unmarshal([]byte(`{"date":"31/01/2024"}`), &p))
}

func TestRangeHalfOpen(t *testing.T) {
	r := NewRange(MustParse("2024-07-10"), MustParse("2024-07-12"))
	require.NoError(t, r.Validate())
	assert.Equal(t, 2, r.Len())
	assert.Equal(t, []Day{MustParse("2024-07-10"), MustParse("2024-07-11")}, r.Days())
	assert.True(t, r.Contains(MustParse("2024-07-11")))
	assert.False(t, r.Contains(MustParse("2024-07-12")))
	assert.Equal(t, "[2024-07-10,2024-07-12)", r.String())
}

func TestRangeValidate(t *testing.T) {
	d := MustParse("2024-07-10")
	assert.ErrorIs(t, NewRange(d, d).Validate(), ErrInvalidRange)
	assert.ErrorIs(t, NewRange(d, d.AddDays(-1)).Validate(), ErrInvalidRange)
	assert.ErrorIs(t, NewRange(d, d.AddDays(MaxRangeDays+1)).Validate(), ErrRangeTooLarge)
	assert.NoError(t, NewRange(d, d.AddDays(MaxRangeDays)).Validate())
	assert.Empty(t, NewRange(d, d).Days())
}

func TestNormalize(t *testing.T) {
	in := []Day{MustParse("2024-07-20"), MustParse("2024-07-03"), MustParse("2024-07-20")}
	out, err := Normalize(in)
	require.NoError(t, err)
	assert.Equal(t, []Day{MustParse("2024-07-03"), MustParse("2024-07-20")}, out)
	// Input is left untouched.
	assert.Equal(t, MustParse("2024-07-20"), in[0])

	assert.Equal(t, NewRange(MustParse("2024-07-03"), MustParse("2024-07-21")), Span(out))

	_, err = Normalize(nil)
	assert.ErrorIs(t, err, ErrNoDates)
}

func TestToday(t *testing.T) {
	utc := Today(time.UTC)
	assert.Equal(t, FromTime(time.Now().UTC()), utc)
	assert.Equal(t, utc, Today(nil))
}
