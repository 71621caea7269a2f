package ledger

import (
	"net/http"
	"strings"
	"time"

	"github.com/staydrive/inventory-engine/internal/calendar"
	"github.com/staydrive/inventory-engine/internal/capacity"
	"github.com/staydrive/inventory-engine/internal/pkg/apperror"
)

var (
	ErrInsufficientCapacity = apperror.New(http.StatusConflict, "insufficient capacity for the requested dates")
	ErrReservationNotFound  = apperror.New(http.StatusNotFound, "reservation not found")
	ErrInvalidUnits         = apperror.New(http.StatusBadRequest, "units must be at least 1")
	ErrDriverRequiresCar    = apperror.New(http.StatusBadRequest, "a driver can only be requested with a car")
)

// InsufficientCapacityError names the days that blocked a reservation.
// Cause is ErrInsufficientCapacity, or a driver error when capacity was
// fine but no driver could cover the range.
type InsufficientCapacityError struct {
	Dates []calendar.Day
	Cause *apperror.AppError
}

func (e *InsufficientCapacityError) Error() string {
	days := make([]string, len(e.Dates))
	for i, d := range e.Dates {
		days[i] = d.String()
	}
	return e.cause().Message + ": " + strings.Join(days, ", ")
}

func (e *InsufficientCapacityError) Unwrap() error {
	return apperror.WithDetails(e.cause(), map[string]any{"dates": e.Dates})
}

func (e *InsufficientCapacityError) cause() *apperror.AppError {
	if e.Cause == nil {
		return ErrInsufficientCapacity
	}
	return e.Cause
}

type Status string

const (
	StatusHeld     Status = "held"
	StatusReleased Status = "released"
)

// DriverRequirement asks for a driver alongside a car. A nil DriverID
// accepts any available driver.
type DriverRequirement struct {
	DriverID *string
}

type Request struct {
	Key    capacity.Key
	Range  calendar.Range
	Units  int
	Driver *DriverRequirement
}

// Reservation is the durable receipt of a successful reserve. Release is
// keyed by its ID.
type Reservation struct {
	ID         string
	Key        capacity.Key
	Range      calendar.Range
	Units      int
	DriverID   *string
	Status     Status
	CreatedAt  time.Time
	ReleasedAt *time.Time
}
