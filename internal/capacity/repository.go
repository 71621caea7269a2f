package capacity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/staydrive/inventory-engine/internal/calendar"
	"github.com/staydrive/inventory-engine/internal/db"
)

// Repository persists one capacity record per (kind, resource, day).
// Methods called with a ctx from db.TxManager.WithinTx join that transaction.
type Repository interface {
	Get(ctx context.Context, key Key, day calendar.Day) (*Record, error)
	ListRange(ctx context.Context, key Key, r calendar.Range) ([]*Record, error)
	ListForResources(ctx context.Context, kind Kind, resourceIDs []string, r calendar.Range) ([]*Record, error)

	// LockDays reads the current records for days and holds row locks on them
	// until the surrounding transaction ends. Absent days are simply missing
	// from the result. Results are ordered by day.
	LockDays(ctx context.Context, key Key, days []calendar.Day) ([]*Record, error)

	// UpsertTotal sets the total (and price, when non-nil) and keeps booked
	// units. It fails with ErrCapacityConflict when total < booked.
	UpsertTotal(ctx context.Context, key Key, day calendar.Day, total int, price *decimal.Decimal) (*Record, error)

	// AdjustBooked adds delta to booked units in one atomic statement.
	// It fails with ErrCapacityExceeded when the record is absent or the
	// result would leave [0, total].
	AdjustBooked(ctx context.Context, key Key, day calendar.Day, delta int) (*Record, error)

	// DeleteUnbookedBefore removes records dated before cutoff that carry no bookings.
	DeleteUnbookedBefore(ctx context.Context, key Key, cutoff calendar.Day) (int64, error)
}

type pgxRepository struct {
	pool *pgxpool.Pool
}

func NewPgxRepository(pool *pgxpool.Pool) Repository {
	return &pgxRepository{pool: pool}
}

var recordColumns = []string{
	"resource_kind", "resource_id", "day", "total_units", "booked_units",
	"price_override::text", "updated_at",
}

const returningRecord = `RETURNING resource_kind, resource_id, day, total_units, booked_units, price_override::text, updated_at`

func scanRecord(row pgx.Row) (*Record, error) {
	var (
		rec   Record
		kind  string
		day   time.Time
		price *string
	)
	if err := row.Scan(
		&kind, &rec.ResourceID, &day, &rec.TotalUnits, &rec.BookedUnits, &price, &rec.UpdatedAt,
	); err != nil {
		return nil, err
	}
	rec.Kind = Kind(kind)
	rec.Day = calendar.FromTime(day)
	if price != nil {
		d, err := decimal.NewFromString(*price)
		if err != nil {
			return nil, fmt.Errorf("parse price override %q: %w", *price, err)
		}
		rec.PriceOverride = &d
	}
	return &rec, nil
}

func collectRecords(rows pgx.Rows) ([]*Record, error) {
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan capacity record failed: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate capacity records failed: %w", err)
	}
	return records, nil
}

func priceArg(price *decimal.Decimal) *string {
	if price == nil {
		return nil
	}
	s := price.String()
	return &s
}

func dayArgs(days []calendar.Day) []time.Time {
	out := make([]time.Time, len(days))
	for i, d := range days {
		out[i] = d.Time()
	}
	return out
}

func (r *pgxRepository) Get(ctx context.Context, key Key, day calendar.Day) (*Record, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Select(recordColumns...).
		From("public.capacity_records").
		Where(squirrel.Eq{"resource_kind": string(key.Kind), "resource_id": key.ResourceID, "day": day.Time()}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get capacity record query failed: %w", err)
	}

	rec, err := scanRecord(db.Conn(ctx, r.pool).QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("get capacity record failed: %w", err)
	}
	return rec, nil
}

func (r *pgxRepository) ListRange(ctx context.Context, key Key, rng calendar.Range) ([]*Record, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Select(recordColumns...).
		From("public.capacity_records").
		Where(squirrel.Eq{"resource_kind": string(key.Kind), "resource_id": key.ResourceID}).
		Where(squirrel.GtOrEq{"day": rng.Start.Time()}).
		Where(squirrel.Lt{"day": rng.End.Time()}).
		OrderBy("day ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list capacity records query failed: %w", err)
	}

	rows, err := db.Conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list capacity records failed: %w", err)
	}
	return collectRecords(rows)
}

func (r *pgxRepository) ListForResources(ctx context.Context, kind Kind, resourceIDs []string, rng calendar.Range) ([]*Record, error) {
	if len(resourceIDs) == 0 {
		return nil, nil
	}

	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Select(recordColumns...).
		From("public.capacity_records").
		Where(squirrel.Eq{"resource_kind": string(kind)}).
		// Ids travel as text[] so pgx never has to guess a uuid encoding.
		Where(squirrel.Expr("resource_id = ANY(?::text[]::uuid[])", resourceIDs)).
		Where(squirrel.GtOrEq{"day": rng.Start.Time()}).
		Where(squirrel.Lt{"day": rng.End.Time()}).
		OrderBy("day ASC", "resource_id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list capacity records query failed: %w", err)
	}

	rows, err := db.Conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list capacity records failed: %w", err)
	}
	return collectRecords(rows)
}

func (r *pgxRepository) LockDays(ctx context.Context, key Key, days []calendar.Day) ([]*Record, error) {
	if len(days) == 0 {
		return nil, nil
	}

	// Rows are locked in ascending day order so overlapping reservations
	// always queue in the same order and cannot deadlock each other.
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Select(recordColumns...).
		From("public.capacity_records").
		Where(squirrel.Eq{"resource_kind": string(key.Kind), "resource_id": key.ResourceID}).
		Where(squirrel.Expr("day = ANY(?)", dayArgs(days))).
		OrderBy("day ASC").
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build lock capacity records query failed: %w", err)
	}

	rows, err := db.Conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("lock capacity records failed: %w", err)
	}
	return collectRecords(rows)
}

func (r *pgxRepository) UpsertTotal(ctx context.Context, key Key, day calendar.Day, total int, price *decimal.Decimal) (*Record, error) {
	const query = `
		INSERT INTO public.capacity_records AS c
			(resource_kind, resource_id, day, total_units, booked_units, price_override)
		VALUES ($1, $2, $3, $4, 0, $5::numeric)
		ON CONFLICT (resource_kind, resource_id, day) DO UPDATE
		SET total_units    = EXCLUDED.total_units,
		    price_override = COALESCE(EXCLUDED.price_override, c.price_override),
		    updated_at     = now()
		WHERE c.booked_units <= EXCLUDED.total_units
	` + returningRecord

	row := db.Conn(ctx, r.pool).QueryRow(ctx, query,
		string(key.Kind), key.ResourceID, day.Time(), total, priceArg(price))
	rec, err := scanRecord(row)
	if err != nil {
		// The conflict branch filtered the row out: bookings exceed the new total.
		if errors.Is(err, pgx.ErrNoRows) || db.IsCheckViolation(err) {
			return nil, ErrCapacityConflict
		}
		return nil, fmt.Errorf("upsert capacity total failed: %w", err)
	}
	return rec, nil
}

func (r *pgxRepository) AdjustBooked(ctx context.Context, key Key, day calendar.Day, delta int) (*Record, error) {
	const query = `
		UPDATE public.capacity_records
		SET booked_units = booked_units + $4,
		    updated_at   = now()
		WHERE resource_kind = $1 AND resource_id = $2 AND day = $3
		  AND booked_units + $4 BETWEEN 0 AND total_units
	` + returningRecord

	row := db.Conn(ctx, r.pool).QueryRow(ctx, query, string(key.Kind), key.ResourceID, day.Time(), delta)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || db.IsCheckViolation(err) {
			return nil, ErrCapacityExceeded
		}
		return nil, fmt.Errorf("adjust booked units failed: %w", err)
	}
	return rec, nil
}

func (r *pgxRepository) DeleteUnbookedBefore(ctx context.Context, key Key, cutoff calendar.Day) (int64, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Delete("public.capacity_records").
		Where(squirrel.Eq{"resource_kind": string(key.Kind), "resource_id": key.ResourceID, "booked_units": 0}).
		Where(squirrel.Lt{"day": cutoff.Time()}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build purge capacity records query failed: %w", err)
	}

	ct, err := db.Conn(ctx, r.pool).Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("purge capacity records failed: %w", err)
	}
	return ct.RowsAffected(), nil
}
