package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/staydrive/inventory-engine/internal/calendar"
	"github.com/staydrive/inventory-engine/internal/capacity"
	"github.com/staydrive/inventory-engine/internal/db"
)

type Repository interface {
	Create(ctx context.Context, booking *Booking) error
	GetByID(ctx context.Context, id string) (*Booking, error)
	List(ctx context.Context, filter Filter) ([]*Booking, int, error)

	// UpdateStatus moves a booking from one status to another. It returns
	// ErrNotFound when no booking with that id is in status from.
	UpdateStatus(ctx context.Context, id string, from, to Status) error
}

type pgxRepository struct {
	pool *pgxpool.Pool
}

func NewPgxRepository(pool *pgxpool.Pool) Repository {
	return &pgxRepository{pool: pool}
}

var bookingColumns = []string{
	"b.id::text", "b.user_id", "b.resource_kind", "b.resource_id::text", "r.name",
	"b.start_day", "b.end_day", "b.units", "b.with_driver", "b.driver_id::text",
	"b.reservation_id::text", "b.status", "b.created_at", "b.updated_at",
}

func scanBooking(row pgx.Row, extra ...any) (*Booking, error) {
	var (
		b          Booking
		kind       string
		start, end time.Time
		status     string
	)
	dest := append([]any{
		&b.ID, &b.UserID, &kind, &b.ResourceID, &b.ResourceName,
		&start, &end, &b.Units, &b.WithDriver, &b.DriverID,
		&b.ReservationID, &status, &b.CreatedAt, &b.UpdatedAt,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	b.Kind = capacity.Kind(kind)
	b.Range = calendar.NewRange(calendar.FromTime(start), calendar.FromTime(end))
	b.Status = Status(status)
	return &b, nil
}

func (r *pgxRepository) Create(ctx context.Context, b *Booking) error {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Insert("public.bookings").
		Columns("user_id", "resource_kind", "resource_id", "start_day", "end_day",
			"units", "with_driver", "driver_id", "reservation_id", "status").
		Values(b.UserID, string(b.Kind), b.ResourceID, b.Range.Start.Time(), b.Range.End.Time(),
			b.Units, b.WithDriver, b.DriverID, b.ReservationID, string(b.Status)).
		Suffix("RETURNING id::text, created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build create booking query failed: %w", err)
	}

	if err := db.Conn(ctx, r.pool).QueryRow(ctx, query, args...).Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return fmt.Errorf("create booking failed: %w", err)
	}
	return nil
}

func (r *pgxRepository) GetByID(ctx context.Context, id string) (*Booking, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Select(bookingColumns...).
		From("public.bookings b").
		Join("public.resources r ON b.resource_id = r.id").
		Where(squirrel.Eq{"b.id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get booking query failed: %w", err)
	}

	b, err := scanBooking(db.Conn(ctx, r.pool).QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get booking failed: %w", err)
	}
	return b, nil
}

func (r *pgxRepository) List(ctx context.Context, filter Filter) ([]*Booking, int, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	builder := psql.Select(append(bookingColumns, "count(*) OVER() AS total_count")...).
		From("public.bookings b").
		Join("public.resources r ON b.resource_id = r.id")

	if filter.UserID != "" {
		builder = builder.Where(squirrel.Eq{"b.user_id": filter.UserID})
	}
	if filter.Kind != "" {
		builder = builder.Where(squirrel.Eq{"b.resource_kind": string(filter.Kind)})
	}
	if filter.ResourceID != "" {
		builder = builder.Where(squirrel.Eq{"b.resource_id": filter.ResourceID})
	}
	if filter.Status != "" {
		builder = builder.Where(squirrel.Eq{"b.status": string(filter.Status)})
	}

	// Pagination
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = 20
	}
	offset := (filter.Page - 1) * filter.PageSize

	query, args, err := builder.
		OrderBy("b.created_at DESC", "b.id ASC").
		Limit(uint64(filter.PageSize)).
		Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build list bookings query failed: %w", err)
	}

	rows, err := db.Conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list bookings failed: %w", err)
	}
	defer rows.Close()

	var bookings []*Booking
	var total int
	for rows.Next() {
		b, err := scanBooking(rows, &total)
		if err != nil {
			return nil, 0, fmt.Errorf("scan booking failed: %w", err)
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list bookings failed: %w", err)
	}
	return bookings, total, nil
}

func (r *pgxRepository) UpdateStatus(ctx context.Context, id string, from, to Status) error {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Update("public.bookings").
		Set("status", string(to)).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": id, "status": string(from)}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update booking status query failed: %w", err)
	}

	ct, err := db.Conn(ctx, r.pool).Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update booking status failed: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
