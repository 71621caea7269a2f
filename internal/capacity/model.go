package capacity

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/staydrive/inventory-engine/internal/calendar"
	"github.com/staydrive/inventory-engine/internal/pkg/apperror"
)

var (
	ErrRecordNotFound   = apperror.New(http.StatusNotFound, "capacity record not found")
	ErrCapacityConflict = apperror.New(http.StatusConflict, "total units cannot be lower than booked units")
	ErrCapacityExceeded = apperror.New(http.StatusConflict, "booked units must stay between 0 and total units")
	ErrInvalidKind      = apperror.New(http.StatusBadRequest, "resource kind must be homestay or car")
	ErrNegativeUnits    = apperror.New(http.StatusBadRequest, "total units cannot be negative")
	ErrNegativePrice    = apperror.New(http.StatusBadRequest, "price override cannot be negative")
)

// Kind is a resource kind tracked by numeric daily capacity.
// Drivers are tracked by status instead and live in the driver package.
type Kind string

const (
	KindHomestay Kind = "homestay"
	KindCar      Kind = "car"
)

func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.Valid() {
		return "", ErrInvalidKind
	}
	return k, nil
}

func (k Kind) Valid() bool {
	return k == KindHomestay || k == KindCar
}

// Key identifies one bookable resource.
type Key struct {
	Kind       Kind
	ResourceID string
}

func (k Key) String() string {
	return string(k.Kind) + "/" + k.ResourceID
}

// Record tracks total and booked units of one resource on one day.
// 0 <= BookedUnits <= TotalUnits holds for every stored record.
type Record struct {
	Key
	Day           calendar.Day
	TotalUnits    int
	BookedUnits   int
	PriceOverride *decimal.Decimal
	UpdatedAt     time.Time
}

// Available is the number of units that can still be reserved.
func (r *Record) Available() int {
	return r.TotalUnits - r.BookedUnits
}

// AvailableOn treats an absent record as zero capacity.
func AvailableOn(r *Record) int {
	if r == nil {
		return 0
	}
	return r.Available()
}

// ByDay indexes records by their day.
func ByDay(records []*Record) map[calendar.Day]*Record {
	m := make(map[calendar.Day]*Record, len(records))
	for _, r := range records {
		m[r.Day] = r
	}
	return m
}

// ValidateTotal checks a requested total and price before any write.
func ValidateTotal(total int, price *decimal.Decimal) error {
	if total < 0 {
		return ErrNegativeUnits
	}
	return ValidatePrice(price)
}

func ValidatePrice(price *decimal.Decimal) error {
	if price != nil && price.IsNegative() {
		return ErrNegativePrice
	}
	return nil
}
