// Package dbtest provides a migrated PostgreSQL pool for integration tests.
//
// TEST_DB_DSN points the tests at an existing database. Otherwise, when
// TEST_POSTGRES_CONTAINER is set, a throwaway postgres:16 container is
// started through the docker or podman socket named by DOCKER_HOST. With
// neither variable the calling test is skipped.
package dbtest

import (
	"context"
	"errors"
	"net"
	"os"
	"testing"
	"time"

	"github.com/bitcomplete/sqltestutil"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/staydrive/inventory-engine/internal/db"
)

const dbmsVersion = "16"

// Tables lists every table in truncation order.
var Tables = []string{
	"public.bookings",
	"public.reservations",
	"public.driver_day_statuses",
	"public.capacity_records",
	"public.resources",
}

// New returns a migrated pool and a cleanup func. It skips t when no
// database is configured.
func New(ctx context.Context, t testing.TB, timeout time.Duration) (*pgxpool.Pool, func()) {
	t.Helper()

	dsn := os.Getenv("TEST_DB_DSN")
	var cleanups []func()
	if dsn == "" {
		if os.Getenv("TEST_POSTGRES_CONTAINER") == "" {
			t.Skip("set TEST_DB_DSN or TEST_POSTGRES_CONTAINER to run PostgreSQL tests")
		}
		startCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		pg, err := sqltestutil.StartPostgresContainer(startCtx, dbmsVersion)
		require.NoError(t, err, "failed to start test database")
		cleanups = append(cleanups, func() {
			if err := pg.Shutdown(ctx); err != nil {
				t.Logf("failed to shut down test database: %v", err)
			}
		})
		dsn = pg.ConnectionString()
	}

	pool := connect(ctx, t, dsn, timeout)
	cleanups = append(cleanups, pool.Close)
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	if err := db.Migrate(ctx, pool); err != nil {
		cleanup()
		require.NoError(t, err, "failed to migrate test database")
	}
	return pool, cleanup
}

// connect retries while a fresh container is still starting up.
func connect(ctx context.Context, t testing.TB, dsn string, timeout time.Duration) *pgxpool.Pool {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for {
		pool, err := db.NewPool(ctx, dsn, 0)
		if err == nil {
			return pool
		}
		var pgErr *pgconn.PgError
		var netErr net.Error
		retry := errors.As(err, &pgErr) && pgErr.Code == pgerrcode.CannotConnectNow ||
			errors.As(err, &netErr)
		if !retry || ctx.Err() != nil {
			require.NoError(t, err, "cannot connect to test database")
		}
		time.Sleep(200 * time.Millisecond)
	}
}

// Truncate empties every table.
func Truncate(ctx context.Context, t testing.TB, pool *pgxpool.Pool) {
	t.Helper()
	for _, table := range Tables {
		_, err := pool.Exec(ctx, "TRUNCATE TABLE "+table+" CASCADE")
		require.NoError(t, err, "failed to truncate %s", table)
	}
}
