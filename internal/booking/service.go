package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/staydrive/inventory-engine/internal/calendar"
	"github.com/staydrive/inventory-engine/internal/capacity"
	"github.com/staydrive/inventory-engine/internal/catalog"
	"github.com/staydrive/inventory-engine/internal/ledger"
	"github.com/staydrive/inventory-engine/internal/pkg/log"
)

type CreateRequest struct {
	UserID     string
	Kind       capacity.Kind
	ResourceID string
	Range      calendar.Range
	Units      int
	WithDriver bool
	DriverID   *string
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Booking, error)
	GetByID(ctx context.Context, id string, callerID string, isStaff bool) (*Booking, error)
	List(ctx context.Context, filter Filter, callerID string, isStaff bool) ([]*Booking, int, error)
	Cancel(ctx context.Context, id string, callerID string, isStaff bool) (*Booking, error)
}

// ResourceLookup resolves active catalog resources.
type ResourceLookup interface {
	Lookup(ctx context.Context, kind catalog.Kind, id string) (*catalog.Resource, error)
}

// Reserver holds and frees units in the ledger.
type Reserver interface {
	Reserve(ctx context.Context, req ledger.Request) (*ledger.Reservation, error)
	Release(ctx context.Context, reservationID string) (*ledger.Reservation, error)
}

type service struct {
	repo      Repository
	resources ResourceLookup
	ledger    Reserver
	loc       *time.Location
}

func NewService(repo Repository, resources ResourceLookup, reserver Reserver, loc *time.Location) Service {
	if loc == nil {
		loc = time.UTC
	}
	return &service{
		repo:      repo,
		resources: resources,
		ledger:    reserver,
		loc:       loc,
	}
}

func (s *service) Create(ctx context.Context, req CreateRequest) (*Booking, error) {
	// 1. Validate input before any read
	if !req.Kind.Valid() {
		return nil, capacity.ErrInvalidKind
	}
	if req.Units < 1 {
		return nil, ledger.ErrInvalidUnits
	}
	if err := req.Range.Validate(); err != nil {
		return nil, err
	}
	if req.Range.Start.Before(calendar.Today(s.loc)) {
		return nil, ErrStartDatePast
	}
	if (req.WithDriver || req.DriverID != nil) && req.Kind != capacity.KindCar {
		return nil, ledger.ErrDriverRequiresCar
	}

	// 2. Validate the resource exists and is bookable
	res, err := s.resources.Lookup(ctx, catalog.Kind(req.Kind), req.ResourceID)
	if err != nil {
		return nil, err
	}

	// 3. Hold the units
	lreq := ledger.Request{
		Key:   capacity.Key{Kind: req.Kind, ResourceID: res.ID},
		Range: req.Range,
		Units: req.Units,
	}
	if req.WithDriver || req.DriverID != nil {
		lreq.Driver = &ledger.DriverRequirement{DriverID: req.DriverID}
	}
	reservation, err := s.ledger.Reserve(ctx, lreq)
	if err != nil {
		return nil, err
	}

	// 4. Persist the order; give the units back if that fails
	b := &Booking{
		UserID:        req.UserID,
		Kind:          req.Kind,
		ResourceID:    res.ID,
		ResourceName:  res.Name,
		Range:         req.Range,
		Units:         req.Units,
		WithDriver:    lreq.Driver != nil,
		DriverID:      reservation.DriverID,
		ReservationID: reservation.ID,
		Status:        StatusConfirmed,
	}
	if err := s.repo.Create(ctx, b); err != nil {
		s.compensate(ctx, reservation.ID, err)
		return nil, err
	}

	log.Info(ctx, "booking created",
		log.String("booking", b.ID), log.String("reservation", b.ReservationID), log.Stringer("resource", b.Key()))
	return b, nil
}

func (s *service) compensate(ctx context.Context, reservationID string, cause error) {
	ctx = context.WithoutCancel(ctx)
	if _, err := s.ledger.Release(ctx, reservationID); err != nil {
		log.Error(ctx, "failed to release reservation after booking persistence failure",
			log.String("reservation", reservationID), log.Err("cause", cause), log.Err("error", err))
		return
	}
	log.Warn(ctx, "reservation released after booking persistence failure",
		log.String("reservation", reservationID), log.Err("cause", cause))
}

// get loads a booking the caller may see. Owners see their own bookings,
// staff see all of them.
func (s *service) get(ctx context.Context, id, callerID string, isStaff bool) (*Booking, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !isStaff && b.UserID != callerID {
		return nil, ErrPermissionDenied
	}
	return b, nil
}

func (s *service) GetByID(ctx context.Context, id string, callerID string, isStaff bool) (*Booking, error) {
	return s.get(ctx, id, callerID, isStaff)
}

func (s *service) List(ctx context.Context, filter Filter, callerID string, isStaff bool) ([]*Booking, int, error) {
	if !isStaff {
		filter.UserID = callerID
	}
	if filter.Status != "" && filter.Status != StatusConfirmed && filter.Status != StatusCancelled {
		return nil, 0, ErrInvalidStatus
	}
	return s.repo.List(ctx, filter)
}

// Cancel releases the booking's units and marks it cancelled. Cancelling
// a cancelled booking returns it unchanged.
func (s *service) Cancel(ctx context.Context, id string, callerID string, isStaff bool) (*Booking, error) {
	b, err := s.get(ctx, id, callerID, isStaff)
	if err != nil {
		return nil, err
	}
	if b.Status == StatusCancelled {
		return b, nil
	}

	if _, err := s.ledger.Release(ctx, b.ReservationID); err != nil {
		return nil, err
	}

	if err := s.repo.UpdateStatus(ctx, b.ID, StatusConfirmed, StatusCancelled); err != nil {
		// A concurrent cancel got there first.
		if errors.Is(err, ErrNotFound) {
			return s.repo.GetByID(ctx, b.ID)
		}
		return nil, err
	}

	log.Info(ctx, "booking cancelled", log.String("booking", b.ID), log.String("reservation", b.ReservationID))
	return s.repo.GetByID(ctx, b.ID)
}
