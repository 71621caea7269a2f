package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/staydrive/inventory-engine/internal/db"
)

type Repository interface {
	Create(ctx context.Context, res *Resource) error
	GetByID(ctx context.Context, id string) (*Resource, error)
	List(ctx context.Context, filter Filter) ([]*Resource, int, error)
	Update(ctx context.Context, res *Resource) error
	ListActiveIDs(ctx context.Context, kind Kind) ([]string, error)
}

// pgxRepository joins the caller's transaction through db.Conn, so lookups
// made while a reservation holds its locks reuse that connection.
type pgxRepository struct {
	pool *pgxpool.Pool
}

func NewPgxRepository(pool *pgxpool.Pool) Repository {
	return &pgxRepository{pool: pool}
}

var resourceColumns = []string{
	"id", "kind", "name", "default_units", "default_price::text", "is_active", "created_at",
}

func scanResource(row pgx.Row, extra ...any) (*Resource, error) {
	var (
		res   Resource
		kind  string
		price *string
	)
	dest := append([]any{
		&res.ID, &kind, &res.Name, &res.DefaultUnits, &price, &res.IsActive, &res.CreatedAt,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	res.Kind = Kind(kind)
	if price != nil {
		d, err := decimal.NewFromString(*price)
		if err != nil {
			return nil, fmt.Errorf("parse default price %q: %w", *price, err)
		}
		res.DefaultPrice = &d
	}
	return &res, nil
}

func priceArg(price *decimal.Decimal) *string {
	if price == nil {
		return nil
	}
	s := price.String()
	return &s
}

func (r *pgxRepository) Create(ctx context.Context, res *Resource) error {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Insert("public.resources").
		Columns("kind", "name", "default_units", "default_price", "is_active").
		Values(string(res.Kind), res.Name, res.DefaultUnits, squirrel.Expr("?::numeric", priceArg(res.DefaultPrice)), res.IsActive).
		Suffix("RETURNING id, created_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build create resource query failed: %w", err)
	}

	if err := db.Conn(ctx, r.pool).QueryRow(ctx, query, args...).Scan(&res.ID, &res.CreatedAt); err != nil {
		return fmt.Errorf("create resource failed: %w", err)
	}
	return nil
}

func (r *pgxRepository) GetByID(ctx context.Context, id string) (*Resource, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Select(resourceColumns...).
		From("public.resources").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get resource query failed: %w", err)
	}

	res, err := scanResource(db.Conn(ctx, r.pool).QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get resource failed: %w", err)
	}
	return res, nil
}

func (r *pgxRepository) List(ctx context.Context, filter Filter) ([]*Resource, int, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	builder := psql.Select(append(resourceColumns, "count(*) OVER() AS total_count")...).
		From("public.resources")

	if filter.Kind != "" {
		builder = builder.Where(squirrel.Eq{"kind": string(filter.Kind)})
	}
	if filter.ActiveOnly {
		builder = builder.Where(squirrel.Eq{"is_active": true})
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
		OrderBy("created_at DESC", "id ASC").
		Limit(uint64(filter.PageSize)).
		Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build list resources query failed: %w", err)
	}

	rows, err := db.Conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list resources failed: %w", err)
	}
	defer rows.Close()

	var result []*Resource
	var total int

	for rows.Next() {
		res, err := scanResource(rows, &total)
		if err != nil {
			return nil, 0, fmt.Errorf("scan resource failed: %w", err)
		}
		result = append(result, res)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate resources failed: %w", err)
	}

	return result, total, nil
}

func (r *pgxRepository) Update(ctx context.Context, res *Resource) error {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Update("public.resources").
		Set("name", res.Name).
		Set("default_units", res.DefaultUnits).
		Set("default_price", squirrel.Expr("?::numeric", priceArg(res.DefaultPrice))).
		Set("is_active", res.IsActive).
		Where(squirrel.Eq{"id": res.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update resource query failed: %w", err)
	}

	ct, err := db.Conn(ctx, r.pool).Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update resource failed: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *pgxRepository) ListActiveIDs(ctx context.Context, kind Kind) ([]string, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Select("id::text").
		From("public.resources").
		Where(squirrel.Eq{"kind": string(kind), "is_active": true}).
		OrderBy("id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list active ids query failed: %w", err)
	}

	rows, err := db.Conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list active ids failed: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collect active ids failed: %w", err)
	}
	return ids, nil
}
