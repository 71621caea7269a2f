package driver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/staydrive/inventory-engine/internal/calendar"
	"github.com/staydrive/inventory-engine/internal/db"
)

// Repository persists one status per (driver, day).
type Repository interface {
	ListRange(ctx context.Context, driverID string, r calendar.Range) ([]*DayStatus, error)
	// ListAvailableOn returns the ids of drivers available on day, ascending.
	ListAvailableOn(ctx context.Context, day calendar.Day) ([]string, error)

	// LockAvailable locks the available statuses on days, optionally for one
	// driver only, ordered by driver then day.
	LockAvailable(ctx context.Context, days []calendar.Day, driverID *string) ([]*DayStatus, error)

	// SetStatus upserts an available or off status. It fails with
	// ErrDriverDayBooked when the day is booked.
	SetStatus(ctx context.Context, driverID string, day calendar.Day, status Status) (*DayStatus, error)

	// MarkBooked flips every listed day from available to booked for the
	// reservation. It fails with ErrDriverNotAvailable unless every day flipped.
	MarkBooked(ctx context.Context, driverID string, days []calendar.Day, reservationID string) error
	// ReleaseBooked returns the reservation's booked days to available.
	ReleaseBooked(ctx context.Context, reservationID string) (int64, error)

	// DeleteUnbookedBefore removes statuses dated before cutoff that are not booked.
	DeleteUnbookedBefore(ctx context.Context, cutoff calendar.Day) (int64, error)
}

type pgxRepository struct {
	pool *pgxpool.Pool
}

func NewPgxRepository(pool *pgxpool.Pool) Repository {
	return &pgxRepository{pool: pool}
}

var statusColumns = []string{"driver_id::text", "day", "status", "reservation_id::text", "updated_at"}

const returningStatus = ` RETURNING driver_id::text, day, status, reservation_id::text, updated_at`

func scanStatus(row pgx.Row) (*DayStatus, error) {
	var (
		s      DayStatus
		day    time.Time
		status string
	)
	if err := row.Scan(&s.DriverID, &day, &status, &s.ReservationID, &s.UpdatedAt); err != nil {
		return nil, err
	}
	s.Day = calendar.FromTime(day)
	s.Status = Status(status)
	return &s, nil
}

func collectStatuses(rows pgx.Rows) ([]*DayStatus, error) {
	defer rows.Close()

	var out []*DayStatus
	for rows.Next() {
		s, err := scanStatus(rows)
		if err != nil {
			return nil, fmt.Errorf("scan driver status failed: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate driver statuses failed: %w", err)
	}
	return out, nil
}

func dayArgs(days []calendar.Day) []time.Time {
	out := make([]time.Time, len(days))
	for i, d := range days {
		out[i] = d.Time()
	}
	return out
}

func (r *pgxRepository) ListRange(ctx context.Context, driverID string, rng calendar.Range) ([]*DayStatus, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Select(statusColumns...).
		From("public.driver_day_statuses").
		Where(squirrel.Eq{"driver_id": driverID}).
		Where(squirrel.GtOrEq{"day": rng.Start.Time()}).
		Where(squirrel.Lt{"day": rng.End.Time()}).
		OrderBy("day ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list driver statuses query failed: %w", err)
	}

	rows, err := db.Conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list driver statuses failed: %w", err)
	}
	return collectStatuses(rows)
}

func (r *pgxRepository) ListAvailableOn(ctx context.Context, day calendar.Day) ([]string, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Select("driver_id::text").
		From("public.driver_day_statuses").
		Where(squirrel.Eq{"day": day.Time(), "status": string(StatusAvailable)}).
		OrderBy("driver_id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list available drivers query failed: %w", err)
	}

	rows, err := db.Conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list available drivers failed: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collect available drivers failed: %w", err)
	}
	return ids, nil
}

func (r *pgxRepository) LockAvailable(ctx context.Context, days []calendar.Day, driverID *string) ([]*DayStatus, error) {
	if len(days) == 0 {
		return nil, nil
	}

	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	builder := psql.Select(statusColumns...).
		From("public.driver_day_statuses").
		Where(squirrel.Eq{"status": string(StatusAvailable)}).
		Where(squirrel.Expr("day = ANY(?)", dayArgs(days)))
	if driverID != nil {
		builder = builder.Where(squirrel.Eq{"driver_id": *driverID})
	}
	// One global lock order (driver, day) keeps concurrent assignments deadlock free.
	query, args, err := builder.OrderBy("driver_id ASC", "day ASC").Suffix("FOR UPDATE").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build lock driver statuses query failed: %w", err)
	}

	rows, err := db.Conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("lock driver statuses failed: %w", err)
	}
	return collectStatuses(rows)
}

func (r *pgxRepository) SetStatus(ctx context.Context, driverID string, day calendar.Day, status Status) (*DayStatus, error) {
	const query = `
		INSERT INTO public.driver_day_statuses AS s (driver_id, day, status)
		VALUES ($1, $2, $3)
		ON CONFLICT (driver_id, day) DO UPDATE
		SET status     = EXCLUDED.status,
		    updated_at = now()
		WHERE s.status <> 'booked'
	` + returningStatus

	s, err := scanStatus(db.Conn(ctx, r.pool).QueryRow(ctx, query, driverID, day.Time(), string(status)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDriverDayBooked
		}
		return nil, fmt.Errorf("set driver status failed: %w", err)
	}
	return s, nil
}

func (r *pgxRepository) MarkBooked(ctx context.Context, driverID string, days []calendar.Day, reservationID string) error {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Update("public.driver_day_statuses").
		Set("status", string(StatusBooked)).
		Set("reservation_id", reservationID).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"driver_id": driverID, "status": string(StatusAvailable)}).
		Where(squirrel.Expr("day = ANY(?)", dayArgs(days))).
		ToSql()
	if err != nil {
		return fmt.Errorf("build mark driver booked query failed: %w", err)
	}

	ct, err := db.Conn(ctx, r.pool).Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("mark driver booked failed: %w", err)
	}
	if ct.RowsAffected() != int64(len(days)) {
		return ErrDriverNotAvailable
	}
	return nil
}

func (r *pgxRepository) ReleaseBooked(ctx context.Context, reservationID string) (int64, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Update("public.driver_day_statuses").
		Set("status", string(StatusAvailable)).
		Set("reservation_id", nil).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"reservation_id": reservationID}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build release driver query failed: %w", err)
	}

	ct, err := db.Conn(ctx, r.pool).Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("release driver failed: %w", err)
	}
	return ct.RowsAffected(), nil
}

func (r *pgxRepository) DeleteUnbookedBefore(ctx context.Context, cutoff calendar.Day) (int64, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Delete("public.driver_day_statuses").
		Where(squirrel.NotEq{"status": string(StatusBooked)}).
		Where(squirrel.Lt{"day": cutoff.Time()}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build purge driver statuses query failed: %w", err)
	}

	ct, err := db.Conn(ctx, r.pool).Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("purge driver statuses failed: %w", err)
	}
	return ct.RowsAffected(), nil
}
