package ledger

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

// Repository stores reservation receipts. Receipts are never deleted.
type Repository interface {
	Create(ctx context.Context, res *Reservation) error
	Get(ctx context.Context, id string) (*Reservation, error)
	// GetForUpdate reads and locks the receipt until the transaction ends.
	GetForUpdate(ctx context.Context, id string) (*Reservation, error)
	MarkReleased(ctx context.Context, id string, at time.Time) error
}

type pgxRepository struct {
	pool *pgxpool.Pool
}

func NewPgxRepository(pool *pgxpool.Pool) Repository {
	return &pgxRepository{pool: pool}
}

var reservationColumns = []string{
	"id::text", "resource_kind", "resource_id::text", "start_day", "end_day",
	"units", "driver_id::text", "status", "created_at", "released_at",
}

func scanReservation(row pgx.Row) (*Reservation, error) {
	var (
		res          Reservation
		kind, status string
		start, end   time.Time
	)
	if err := row.Scan(
		&res.ID, &kind, &res.Key.ResourceID, &start, &end,
		&res.Units, &res.DriverID, &status, &res.CreatedAt, &res.ReleasedAt,
	); err != nil {
		return nil, err
	}
	res.Key.Kind = capacity.Kind(kind)
	res.Range = calendar.NewRange(calendar.FromTime(start), calendar.FromTime(end))
	res.Status = Status(status)
	return &res, nil
}

func (r *pgxRepository) Create(ctx context.Context, res *Reservation) error {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Insert("public.reservations").
		Columns("id", "resource_kind", "resource_id", "start_day", "end_day", "units", "driver_id", "status").
		Values(res.ID, string(res.Key.Kind), res.Key.ResourceID, res.Range.Start.Time(), res.Range.End.Time(),
			res.Units, res.DriverID, string(res.Status)).
		Suffix("RETURNING created_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build create reservation query failed: %w", err)
	}

	if err := db.Conn(ctx, r.pool).QueryRow(ctx, query, args...).Scan(&res.CreatedAt); err != nil {
		return fmt.Errorf("create reservation failed: %w", err)
	}
	return nil
}

func (r *pgxRepository) Get(ctx context.Context, id string) (*Reservation, error) {
	return r.get(ctx, id, "")
}

func (r *pgxRepository) GetForUpdate(ctx context.Context, id string) (*Reservation, error) {
	return r.get(ctx, id, "FOR UPDATE")
}

func (r *pgxRepository) get(ctx context.Context, id, suffix string) (*Reservation, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	builder := psql.Select(reservationColumns...).
		From("public.reservations").
		Where(squirrel.Eq{"id": id})
	if suffix != "" {
		builder = builder.Suffix(suffix)
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get reservation query failed: %w", err)
	}

	res, err := scanReservation(db.Conn(ctx, r.pool).QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrReservationNotFound
		}
		return nil, fmt.Errorf("get reservation failed: %w", err)
	}
	return res, nil
}

func (r *pgxRepository) MarkReleased(ctx context.Context, id string, at time.Time) error {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Update("public.reservations").
		Set("status", string(StatusReleased)).
		Set("released_at", at).
		Where(squirrel.Eq{"id": id, "status": string(StatusHeld)}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build release reservation query failed: %w", err)
	}

	ct, err := db.Conn(ctx, r.pool).Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("release reservation failed: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrReservationNotFound
	}
	return nil
}
