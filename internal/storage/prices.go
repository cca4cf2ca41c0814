package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"elspot2mqtt/internal/pricing"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	createPricesSQL = `CREATE TABLE IF NOT EXISTS prices (
        timestamp BIGINT PRIMARY KEY,
        value     DOUBLE PRECISION NOT NULL
    );`

	upsertPriceSQL = `INSERT INTO prices (timestamp, value)
    VALUES ($1, $2)
    ON CONFLICT (timestamp) DO UPDATE
    SET value = EXCLUDED.value;`

	selectRangeSQL = `SELECT timestamp, value
    FROM prices
    WHERE timestamp >= $1
      AND timestamp < $2
    ORDER BY timestamp;`

	deleteBeforeSQL = `DELETE FROM prices WHERE timestamp < $1;`

	countPricesSQL = `SELECT COUNT(*) FROM prices;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// PriceRepository defines operations for price point persistence.
type PriceRepository interface {
	Range(ctx context.Context, from, to int64) (pricing.Series, error)
	Upsert(ctx context.Context, series pricing.Series) error
	DeleteBefore(ctx context.Context, cutoff int64) error
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store persists hourly price points keyed by UTC timestamp.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureSchema creates the prices table if absent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, createPricesSQL); execErr != nil {
		return fmt.Errorf("create prices table: %w", execErr)
	}
	return nil
}

// Range returns all points with from <= timestamp < to in timestamp order.
func (s *Store) Range(ctx context.Context, from, to int64) (pricing.Series, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, selectRangeSQL, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("select price range: %w", queryErr)
	}
	defer rows.Close()

	series := make(pricing.Series, 0)
	for rows.Next() {
		var p pricing.Point
		if scanErr := rows.Scan(&p.Timestamp, &p.Value); scanErr != nil {
			return nil, scanErr
		}
		series = append(series, p)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return series, nil
}

// Upsert stores a series, replacing values on timestamp conflict.
func (s *Store) Upsert(ctx context.Context, series pricing.Series) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if len(series) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, p := range series {
		batch.Queue(upsertPriceSQL, p.Timestamp, p.Value)
	}

	results := pool.SendBatch(ctx, batch)
	defer results.Close()

	for range series {
		if _, execErr := results.Exec(); execErr != nil {
			return fmt.Errorf("upsert price point: %w", execErr)
		}
	}
	return nil
}

// DeleteBefore removes all points older than cutoff.
func (s *Store) DeleteBefore(ctx context.Context, cutoff int64) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, deleteBeforeSQL, cutoff); execErr != nil {
		return fmt.Errorf("delete prices before %d: %w", cutoff, execErr)
	}
	return nil
}

// Count counts stored price points.
func (s *Store) Count(ctx context.Context) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countPricesSQL).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count prices: %w", scanErr)
	}
	return count, nil
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if _, err := conn.Exec(ctxUnlock, advisoryUnlockSQL, key); err != nil {
			// unlock best effort; log omitted in storage package
		}
		conn.Release()
	}
	return unlock, true, nil
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

var _ PriceRepository = (*Store)(nil)
var _ AdvisoryLocker = (*Store)(nil)
