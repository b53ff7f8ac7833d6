// Package leaselock serializes work across processes with expiring rows in
// the ingest_leases table. A held lease is renewed in the background until
// it is released; losing it cancels the lease context.
package leaselock

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

var (
	ErrBusy = errors.New("lease busy")
	ErrLost = errors.New("lease lost")
)

const (
	defaultTTL          = 5 * time.Minute
	defaultPollInterval = 250 * time.Millisecond
)

// DB is the subset of a pgx pool the locker needs.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Locker struct {
	db   DB
	opts Options
}

type Options struct {
	TTL   time.Duration
	Renew time.Duration

	// Wait polls until the lease is free instead of returning ErrBusy.
	Wait         bool
	PollInterval time.Duration
	PollJitter   time.Duration
}

func (o Options) withDefaults() Options {
	if o.TTL <= 0 {
		o.TTL = defaultTTL
	}
	if o.Renew <= 0 || o.Renew >= o.TTL {
		o.Renew = max(o.TTL/2, time.Second)
	}
	if o.PollInterval <= 0 {
		o.PollInterval = defaultPollInterval
	}
	if o.PollJitter < 0 {
		o.PollJitter = 0
	}
	return o
}

type Lease struct {
	Key    string
	Holder string
	// Context is cancelled once the lease is released or lost.
	Context context.Context

	db     DB
	cancel context.CancelCauseFunc
	once   sync.Once
	done   chan struct{}
}

func New(db DB, opts Options) *Locker {
	return &Locker{db: db, opts: opts.withDefaults()}
}

// Do runs fn while holding key.
func (l *Locker) Do(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	lease, err := l.Acquire(ctx, key)
	if err != nil {
		return err
	}
	defer lease.Release(context.Background())

	if err := fn(lease.Context); err != nil {
		return err
	}
	if cause := context.Cause(lease.Context); errors.Is(cause, ErrLost) {
		return ErrLost
	}
	return nil
}

func (l *Locker) Acquire(ctx context.Context, key string) (*Lease, error) {
	if key == "" {
		return nil, errors.New("lease key is empty")
	}

	holder, err := gonanoid.New()
	if err != nil {
		return nil, err
	}
	ttl := l.opts.TTL.Milliseconds()

	for {
		ok, err := l.tryAcquire(ctx, key, holder, ttl)
		if err != nil {
			return nil, err
		}
		if ok {
			break
		}
		if !l.opts.Wait {
			return nil, ErrBusy
		}
		if err := sleep(ctx, l.opts.PollInterval, l.opts.PollJitter); err != nil {
			return nil, err
		}
	}

	leaseCtx, cancel := context.WithCancelCause(ctx)
	lease := &Lease{
		Key:     key,
		Holder:  holder,
		Context: leaseCtx,
		db:      l.db,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go lease.keepAlive(l.opts.Renew, ttl)
	return lease, nil
}

func (l *Locker) tryAcquire(ctx context.Context, key, holder string, ttl int64) (bool, error) {
	var got string
	err := l.db.QueryRow(ctx, acquireSQL, key, holder, ttl).Scan(&got)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return got != "", nil
}

func (l *Lease) Release(ctx context.Context) error {
	l.once.Do(func() {
		close(l.done)
		l.cancel(context.Canceled)
	})
	_, err := l.db.Exec(ctx, releaseSQL, l.Key, l.Holder)
	return err
}

func (l *Lease) keepAlive(every time.Duration, ttl int64) {
	t := time.NewTicker(every)
	defer t.Stop()

	for {
		select {
		case <-l.done:
			return
		case <-l.Context.Done():
			return
		case <-t.C:
			if err := l.renew(ttl); err != nil {
				l.cancel(err)
				return
			}
		}
	}
}

func (l *Lease) renew(ttl int64) error {
	var lastErr error
	for range 3 {
		ctx, cancel := context.WithTimeout(l.Context, 15*time.Second)
		var got string
		err := l.db.QueryRow(ctx, renewSQL, l.Key, l.Holder, ttl).Scan(&got)
		cancel()
		switch {
		case err == nil:
			return nil
		case errors.Is(err, pgx.ErrNoRows):
			return ErrLost
		}
		lastErr = err
		if err := sleep(l.Context, 200*time.Millisecond, 0); err != nil {
			return err
		}
	}
	return lastErr
}

func sleep(ctx context.Context, base, jitter time.Duration) error {
	d := base
	if jitter > 0 {
		d += time.Duration(rand.Int64N(int64(jitter) + 1))
	}
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

const acquireSQL = `
INSERT INTO ingest_leases (lease_key, holder, expires_at)
VALUES ($1, $2, now() + ($3::bigint * interval '1 millisecond'))
ON CONFLICT (lease_key) DO UPDATE
SET holder     = EXCLUDED.holder,
    expires_at = EXCLUDED.expires_at
WHERE ingest_leases.expires_at < now()
   OR ingest_leases.holder = EXCLUDED.holder
RETURNING lease_key;
`

const renewSQL = `
UPDATE ingest_leases
SET expires_at = now() + ($3::bigint * interval '1 millisecond')
WHERE lease_key = $1 AND holder = $2
RETURNING lease_key;
`

const releaseSQL = `
DELETE FROM ingest_leases
WHERE lease_key = $1 AND holder = $2;
`
