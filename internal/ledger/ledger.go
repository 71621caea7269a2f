package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/staydrive/inventory-engine/internal/availability"
	"github.com/staydrive/inventory-engine/internal/calendar"
	"github.com/staydrive/inventory-engine/internal/capacity"
	"github.com/staydrive/inventory-engine/internal/db"
	"github.com/staydrive/inventory-engine/internal/driver"
	"github.com/staydrive/inventory-engine/internal/pkg/apperror"
	"github.com/staydrive/inventory-engine/internal/pkg/log"
)

const tracerName = "github.com/staydrive/inventory-engine/internal/ledger"

// DriverAssigner books and frees drivers inside the ledger's transaction.
type DriverAssigner interface {
	Assign(ctx context.Context, rng calendar.Range, preferred *string, reservationID string) (string, error)
	ReleaseBooked(ctx context.Context, reservationID string) (int64, error)
}

// Ledger reserves and releases units. It always reads locked rows, never
// the availability cache.
type Ledger struct {
	tm           db.TxManager
	capacity     capacity.Repository
	reservations Repository
	drivers      DriverAssigner
	cache        availability.Invalidator
	tracer       trace.Tracer
}

func NewLedger(tm db.TxManager, capacityRepo capacity.Repository, reservations Repository, drivers DriverAssigner, cache availability.Invalidator) *Ledger {
	return &Ledger{
		tm:           tm,
		capacity:     capacityRepo,
		reservations: reservations,
		drivers:      drivers,
		cache:        cache,
		tracer:       otel.Tracer(tracerName),
	}
}

func (l *Ledger) validate(req *Request) error {
	if !req.Key.Kind.Valid() {
		return capacity.ErrInvalidKind
	}
	id, err := uuid.Parse(req.Key.ResourceID)
	if err != nil {
		return availability.ErrInvalidResourceID
	}
	req.Key.ResourceID = id.String()
	if req.Units < 1 {
		return ErrInvalidUnits
	}
	if req.Driver != nil && req.Key.Kind != capacity.KindCar {
		return ErrDriverRequiresCar
	}
	return req.Range.Validate()
}

// Reserve books units on every day of the range, or on none of them.
//
// Inside one transaction it locks the capacity rows in day order, checks
// every day, and only then increments booked units. A driver, when asked
// for, is booked in the same transaction.
func (l *Ledger) Reserve(ctx context.Context, req Request) (*Reservation, error) {
	ctx, span := l.tracer.Start(ctx, "ledger.Reserve")
	defer span.End()

	if err := l.validate(&req); err != nil {
		return nil, endSpan(span, err)
	}
	span.SetAttributes(
		attribute.String("resource.kind", string(req.Key.Kind)),
		attribute.String("resource.id", req.Key.ResourceID),
		attribute.String("reservation.range", req.Range.String()),
		attribute.Int("reservation.units", req.Units),
		attribute.Bool("reservation.with_driver", req.Driver != nil),
	)

	var res *Reservation
	err := l.tm.WithinTx(ctx, func(ctx context.Context) error {
		days := req.Range.Days()

		locked, err := l.capacity.LockDays(ctx, req.Key, days)
		if err != nil {
			return err
		}
		byDay := capacity.ByDay(locked)

		var short []calendar.Day
		for _, day := range days {
			if capacity.AvailableOn(byDay[day]) < req.Units {
				short = append(short, day)
			}
		}
		if len(short) > 0 {
			return &InsufficientCapacityError{Dates: short}
		}

		for _, day := range days {
			if _, err := l.capacity.AdjustBooked(ctx, req.Key, day, req.Units); err != nil {
				return err
			}
		}

		res = &Reservation{
			ID:     uuid.NewString(),
			Key:    req.Key,
			Range:  req.Range,
			Units:  req.Units,
			Status: StatusHeld,
		}

		if req.Driver != nil {
			driverID, err := l.drivers.Assign(ctx, req.Range, req.Driver.DriverID, res.ID)
			if err != nil {
				var appErr *apperror.AppError
				if errors.Is(err, driver.ErrNoDriverAvailable) || errors.Is(err, driver.ErrDriverNotAvailable) {
					errors.As(err, &appErr)
					return &InsufficientCapacityError{Dates: days, Cause: appErr}
				}
				return err
			}
			res.DriverID = &driverID
		}

		return l.reservations.Create(ctx, res)
	})
	if err != nil {
		return nil, endSpan(span, err)
	}

	l.cache.Invalidate(ctx, req.Key)
	span.SetAttributes(attribute.String("reservation.id", res.ID))
	log.Info(ctx, "units reserved",
		log.String("reservation", res.ID), log.Stringer("resource", res.Key),
		log.Stringer("range", res.Range), log.Int("units", res.Units))
	return res, nil
}

// Release gives the units of a reservation back. Releasing an already
// released reservation is a no-op. Booked units never drop below zero:
// a shortfall is clamped and logged as an anomaly.
func (l *Ledger) Release(ctx context.Context, reservationID string) (*Reservation, error) {
	ctx, span := l.tracer.Start(ctx, "ledger.Release",
		trace.WithAttributes(attribute.String("reservation.id", reservationID)))
	defer span.End()

	if _, err := uuid.Parse(reservationID); err != nil {
		return nil, endSpan(span, ErrReservationNotFound)
	}

	var (
		res     *Reservation
		changed bool
	)
	err := l.tm.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		changed = false
		res, err = l.reservations.GetForUpdate(ctx, reservationID)
		if err != nil {
			return err
		}
		if res.Status == StatusReleased {
			return nil
		}

		if err := l.giveBack(ctx, res); err != nil {
			return err
		}

		if res.DriverID != nil {
			n, err := l.drivers.ReleaseBooked(ctx, res.ID)
			if err != nil {
				return err
			}
			if n != int64(res.Range.Len()) {
				log.Warn(ctx, "driver release anomaly: booked days do not match reservation",
					log.String("reservation", res.ID), log.String("driver", *res.DriverID),
					log.Int("expected", res.Range.Len()), log.Int("released", int(n)))
			}
		}

		now := time.Now().UTC()
		if err := l.reservations.MarkReleased(ctx, res.ID, now); err != nil {
			return err
		}
		res.Status = StatusReleased
		res.ReleasedAt = &now
		changed = true
		return nil
	})
	if err != nil {
		return nil, endSpan(span, err)
	}

	span.SetAttributes(attribute.Bool("reservation.already_released", !changed))
	if changed {
		l.cache.Invalidate(ctx, res.Key)
		log.Info(ctx, "units released",
			log.String("reservation", res.ID), log.Stringer("resource", res.Key),
			log.Stringer("range", res.Range), log.Int("units", res.Units))
	}
	return res, nil
}

// giveBack decrements booked units for every day of the reservation.
func (l *Ledger) giveBack(ctx context.Context, res *Reservation) error {
	days := res.Range.Days()
	locked, err := l.capacity.LockDays(ctx, res.Key, days)
	if err != nil {
		return err
	}
	byDay := capacity.ByDay(locked)

	for _, day := range days {
		rec := byDay[day]
		if rec == nil {
			log.Warn(ctx, "release anomaly: capacity record missing",
				log.String("reservation", res.ID), log.Stringer("resource", res.Key), log.Stringer("day", day))
			continue
		}
		delta := min(res.Units, rec.BookedUnits)
		if delta < res.Units {
			log.Warn(ctx, "release anomaly: booked units below reservation, clamping at zero",
				log.String("reservation", res.ID), log.Stringer("resource", res.Key), log.Stringer("day", day),
				log.Int("booked", rec.BookedUnits), log.Int("units", res.Units))
		}
		if delta == 0 {
			continue
		}
		if _, err := l.capacity.AdjustBooked(ctx, res.Key, day, -delta); err != nil {
			return err
		}
	}
	return nil
}

// Get returns a reservation receipt.
func (l *Ledger) Get(ctx context.Context, reservationID string) (*Reservation, error) {
	if _, err := uuid.Parse(reservationID); err != nil {
		return nil, ErrReservationNotFound
	}
	return l.reservations.Get(ctx, reservationID)
}

func endSpan(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
