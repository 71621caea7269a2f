package catalog

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/staydrive/inventory-engine/internal/pkg/apperror"
)

var (
	ErrNotFound            = apperror.New(http.StatusNotFound, "resource not found")
	ErrUnknownResource     = apperror.New(http.StatusNotFound, "unknown or inactive resource")
	ErrEmptyName           = apperror.New(http.StatusBadRequest, "name cannot be empty")
	ErrInvalidKind         = apperror.New(http.StatusBadRequest, "kind must be homestay, car or driver")
	ErrInvalidDefaultUnits = apperror.New(http.StatusBadRequest, "default units cannot be negative")
	ErrInvalidDefaultPrice = apperror.New(http.StatusBadRequest, "default price cannot be negative")
)

// Kind is the catalog kind of a resource.
type Kind string

const (
	KindHomestay Kind = "homestay"
	KindCar      Kind = "car"
	KindDriver   Kind = "driver"
)

func (k Kind) Valid() bool {
	switch k {
	case KindHomestay, KindCar, KindDriver:
		return true
	}
	return false
}

// Resource is a bookable homestay, car or driver. The engine only reads
// its validity and default hints; the catalog owns everything else.
type Resource struct {
	ID           string
	Kind         Kind
	Name         string
	DefaultUnits int
	DefaultPrice *decimal.Decimal
	IsActive     bool
	CreatedAt    time.Time
}

// Filter defines parameters for listing resources.
type Filter struct {
	Kind       Kind
	ActiveOnly bool
	Page       int
	PageSize   int
}
