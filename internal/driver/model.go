package driver

import (
	"net/http"
	"time"

	"github.com/staydrive/inventory-engine/internal/calendar"
	"github.com/staydrive/inventory-engine/internal/pkg/apperror"
)

var (
	ErrUnknownDriver      = apperror.New(http.StatusNotFound, "unknown or inactive driver")
	ErrInvalidStatus      = apperror.New(http.StatusBadRequest, "status must be available or off")
	ErrDriverDayBooked    = apperror.New(http.StatusConflict, "driver is booked on one or more of the requested days")
	ErrNoDriverAvailable  = apperror.New(http.StatusConflict, "no driver is available for every requested day")
	ErrDriverNotAvailable = apperror.New(http.StatusConflict, "driver is not available for every requested day")
)

// Status is the tri-state schedule of a driver on one day.
type Status string

const (
	StatusAvailable Status = "available"
	StatusBooked    Status = "booked"
	StatusOff       Status = "off"

	// StatusUnscheduled is reported for days with no stored status. It is
	// never stored and counts as unavailable.
	StatusUnscheduled Status = "unscheduled"
)

// Settable reports whether staff may write s directly. Booked days are
// owned by the reservation flow.
func (s Status) Settable() bool {
	return s == StatusAvailable || s == StatusOff
}

type DayStatus struct {
	DriverID      string
	Day           calendar.Day
	Status        Status
	ReservationID *string
	UpdatedAt     time.Time
}
