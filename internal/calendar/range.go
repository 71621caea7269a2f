package calendar

import (
	"net/http"
	"sort"

	"github.com/staydrive/inventory-engine/internal/pkg/apperror"
)

// MaxRangeDays bounds every range accepted by the engine.
const MaxRangeDays = 366

var (
	ErrInvalidRange  = apperror.New(http.StatusBadRequest, "start date must be before end date")
	ErrRangeTooLarge = apperror.New(http.StatusBadRequest, "date range exceeds 366 days")
	ErrNoDates       = apperror.New(http.StatusBadRequest, "at least one date is required")
)

// Range is the half-open interval [Start, End).
type Range struct {
	Start Day `json:"start"`
	End   Day `json:"end"`
}

func NewRange(start, end Day) Range {
	return Range{Start: start, End: end}
}

// Validate rejects empty, inverted and oversized ranges.
func (r Range) Validate() error {
	if !r.Start.Before(r.End) {
		return ErrInvalidRange
	}
	if r.Len() > MaxRangeDays {
		return ErrRangeTooLarge
	}
	return nil
}

// Len is the number of days in the range; zero for invalid ranges.
func (r Range) Len() int {
	if !r.Start.Before(r.End) {
		return 0
	}
	return int(r.End - r.Start)
}

func (r Range) Contains(d Day) bool {
	return !d.Before(r.Start) && d.Before(r.End)
}

// Days lists every day of the range in ascending order.
func (r Range) Days() []Day {
	n := r.Len()
	days := make([]Day, 0, n)
	for i := 0; i < n; i++ {
		days = append(days, r.Start.AddDays(i))
	}
	return days
}

func (r Range) String() string {
	return "[" + r.Start.String() + "," + r.End.String() + ")"
}

// Normalize sorts days ascending and drops duplicates.
// It returns ErrNoDates for an empty input.
func Normalize(days []Day) ([]Day, error) {
	if len(days) == 0 {
		return nil, ErrNoDates
	}
	out := make([]Day, len(days))
	copy(out, days)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })

	uniq := out[:1]
	for _, d := range out[1:] {
		if d != uniq[len(uniq)-1] {
			uniq = append(uniq, d)
		}
	}
	if len(uniq) > MaxRangeDays {
		return nil, ErrRangeTooLarge
	}
	return uniq, nil
}

// Span returns the smallest range covering all the given sorted days.
func Span(sorted []Day) Range {
	if len(sorted) == 0 {
		return Range{}
	}
	return Range{Start: sorted[0], End: sorted[len(sorted)-1].AddDays(1)}
}
