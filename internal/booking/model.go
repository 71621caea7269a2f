package booking

import (
	"net/http"
	"time"

	"github.com/staydrive/inventory-engine/internal/calendar"
	"github.com/staydrive/inventory-engine/internal/capacity"
	"github.com/staydrive/inventory-engine/internal/pkg/apperror"
)

var (
	ErrNotFound         = apperror.New(http.StatusNotFound, "booking not found")
	ErrInvalidStatus    = apperror.New(http.StatusBadRequest, "invalid booking status")
	ErrPermissionDenied = apperror.New(http.StatusForbidden, "permission denied")
	ErrStartDatePast    = apperror.New(http.StatusBadRequest, "cannot create booking in the past")
)

type Status string

const (
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

// Booking is a customer order. Its units are held by the ledger reservation
// ReservationID until the booking is cancelled.
type Booking struct {
	ID            string
	UserID        string
	Kind          capacity.Kind
	ResourceID    string
	ResourceName  string
	Range         calendar.Range
	Units         int
	WithDriver    bool
	DriverID      *string
	ReservationID string
	Status        Status
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (b *Booking) Key() capacity.Key {
	return capacity.Key{Kind: b.Kind, ResourceID: b.ResourceID}
}

type Filter struct {
	UserID     string
	Kind       capacity.Kind
	ResourceID string
	Status     Status
	Page       int
	PageSize   int
}
