package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lingyun-ai/lingyun-go/pkg/api"
)

// bucketSchema holds one row per limiter identity. The version column
// drives the compare-and-swap: an update only lands if nobody else got
// there first.
const bucketSchema = `
CREATE TABLE IF NOT EXISTS rate_limit_buckets (
	id          TEXT PRIMARY KEY,
	tokens      DOUBLE PRECISION NOT NULL,
	ts          DOUBLE PRECISION NOT NULL,
	capacity    DOUBLE PRECISION NOT NULL,
	refill_rate DOUBLE PRECISION NOT NULL,
	version     BIGINT NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresBucket is a distributed token bucket on PostgreSQL for
// deployments whose shared store has no server-side scripting. Each
// acquire is an optimistic compare-and-swap loop: read state and
// version, compute the new state, write conditioned on the version
// being unchanged, retry on conflict.
type PostgresBucket struct {
	pool       *pgxpool.Pool
	id         string
	capacity   float64
	refillRate float64
	ttl        time.Duration
}

// PostgresBucketConfig configures a PostgresBucket.
type PostgresBucketConfig struct {
	// Key identifies the shared bucket row.
	Key string

	// Capacity is the maximum number of accumulated permits.
	Capacity float64

	// RefillRatePerSecond is how fast permits accrue.
	RefillRatePerSecond float64

	// TTL marks abandoned rows for pruning. Default: 10 minutes.
	TTL time.Duration
}

// NewPostgresBucket creates a distributed bucket on the given pool and
// ensures the backing table exists.
func NewPostgresBucket(ctx context.Context, pool *pgxpool.Pool, cfg PostgresBucketConfig) (*PostgresBucket, error) {
	if _, err := pool.Exec(ctx, bucketSchema); err != nil {
		return nil, err
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &PostgresBucket{
		pool:       pool,
		id:         cfg.Key,
		capacity:   cfg.Capacity,
		refillRate: cfg.RefillRatePerSecond,
		ttl:        ttl,
	}, nil
}

// Acquire debits cost from the shared bucket and sleeps out any
// deficit. Conflicting writers retry until their CAS lands.
func (b *PostgresBucket) Acquire(ctx context.Context, cost float64) error {
	if cost > b.capacity {
		return api.NewFatalError(api.CodeInvalidArgument,
			"rate limiter: cost exceeds distributed bucket capacity")
	}
	if cost <= 0 {
		cost = 1
	}

	var wait float64
	for {
		var err error
		wait, err = b.tryAcquire(ctx, cost)
		if err == nil {
			break
		}
		if !errors.Is(err, errCASConflict) {
			return api.NewTransientError(api.CodeServiceUnavailable,
				"rate limiter store: "+err.Error())
		}
		if ctx.Err() != nil {
			return api.NewTimeoutError("rate limiter wait: " + ctx.Err().Error())
		}
	}

	if wait <= 0 {
		return nil
	}
	timer := time.NewTimer(time.Duration(wait * float64(time.Second)))
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return api.NewTimeoutError("rate limiter wait: " + ctx.Err().Error())
	}
}

// errCASConflict signals that another writer updated the row between
// our read and write.
var errCASConflict = errors.New("bucket version conflict")

// tryAcquire performs one read-compute-write round. It returns the
// wait in seconds on success, or errCASConflict when the conditioned
// write hit a concurrent update.
func (b *PostgresBucket) tryAcquire(ctx context.Context, cost float64) (float64, error) {
	var (
		tokens  float64
		ts      float64
		version int64
		now     float64
	)
	err := b.pool.QueryRow(ctx,
		`SELECT tokens, ts, version, extract(epoch FROM now()) FROM rate_limit_buckets WHERE id = $1`,
		b.id,
	).Scan(&tokens, &ts, &version, &now)

	switch {
	case errors.Is(err, pgx.ErrNoRows):
		// First acquire anywhere: seed a full bucket minus our cost.
		// A concurrent seeder loses on the primary key and retries.
		var seeded float64
		insErr := b.pool.QueryRow(ctx,
			`INSERT INTO rate_limit_buckets (id, tokens, ts, capacity, refill_rate, version, updated_at)
			 VALUES ($1, $2 - $3, extract(epoch FROM now()), $2, $4, 1, now())
			 ON CONFLICT (id) DO NOTHING
			 RETURNING tokens`,
			b.id, b.capacity, cost, b.refillRate,
		).Scan(&seeded)
		if errors.Is(insErr, pgx.ErrNoRows) {
			return 0, errCASConflict
		}
		if insErr != nil {
			return 0, insErr
		}
		if seeded < 0 {
			return -seeded / b.refillRate, nil
		}
		return 0, nil

	case err != nil:
		return 0, err
	}

	elapsed := now - ts
	if elapsed < 0 {
		elapsed = 0
	}
	tokens += elapsed * b.refillRate
	if tokens > b.capacity {
		tokens = b.capacity
	}
	tokens -= cost
	var wait float64
	if tokens < 0 {
		wait = -tokens / b.refillRate
	}

	tag, err := b.pool.Exec(ctx,
		`UPDATE rate_limit_buckets
		 SET tokens = $1, ts = $2, capacity = $3, refill_rate = $4, version = version + 1, updated_at = now()
		 WHERE id = $5 AND version = $6`,
		tokens, now, b.capacity, b.refillRate, b.id, version,
	)
	if err != nil {
		return 0, err
	}
	if tag.RowsAffected() == 0 {
		return 0, errCASConflict
	}
	return wait, nil
}

// Prune deletes bucket rows idle for longer than the TTL. Intended to
// run periodically from whichever process cares to.
func (b *PostgresBucket) Prune(ctx context.Context) error {
	_, err := b.pool.Exec(ctx,
		`DELETE FROM rate_limit_buckets WHERE updated_at < now() - make_interval(secs => $1)`,
		b.ttl.Seconds(),
	)
	return err
}
