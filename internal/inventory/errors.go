package inventory

import (
	"strings"

	"github.com/staydrive/inventory-engine/internal/calendar"
	"github.com/staydrive/inventory-engine/internal/capacity"
	"github.com/staydrive/inventory-engine/internal/pkg/apperror"
)

// ConflictError lists the days whose bookings exceed the requested total.
// It matches capacity.ErrCapacityConflict under errors.Is.
type ConflictError struct {
	Dates []calendar.Day
}

func (e *ConflictError) Error() string {
	days := make([]string, len(e.Dates))
	for i, d := range e.Dates {
		days[i] = d.String()
	}
	return capacity.ErrCapacityConflict.Message + ": " + strings.Join(days, ", ")
}

func (e *ConflictError) Unwrap() error {
	return apperror.WithDetails(capacity.ErrCapacityConflict, map[string]any{"dates": e.Dates})
}
