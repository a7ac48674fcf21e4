package lock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// DefaultChannel is the LISTEN/NOTIFY channel for status broadcasts.
const DefaultChannel = "hr_support_lock_status"

// PostgresStore is a LeaseStore backed by a single table. Expiry is computed
// with the server clock so owners never compare their own clocks.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema creates the lease table when it is missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	const q = `
		CREATE TABLE IF NOT EXISTS hr_support_locks (
			name       text PRIMARY KEY,
			owner      text NOT NULL,
			expires_at timestamptz NOT NULL
		)`
	if _, err := s.pool.Exec(ctx, q); err != nil {
		return fmt.Errorf("create lock table: %w", err)
	}
	return nil
}

func (s *PostgresStore) Acquire(ctx context.Context, name, owner string, ttl time.Duration) (bool, error) {
	const q = `
		INSERT INTO hr_support_locks (name, owner, expires_at)
		VALUES ($1, $2, now() + ($3::bigint * interval '1 millisecond'))
		ON CONFLICT (name) DO UPDATE
			SET owner = EXCLUDED.owner, expires_at = EXCLUDED.expires_at
			WHERE hr_support_locks.owner = EXCLUDED.owner
			   OR hr_support_locks.expires_at <= now()`
	tag, err := s.pool.Exec(ctx, q, name, owner, ttl.Milliseconds())
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) Renew(ctx context.Context, name, owner string, ttl time.Duration) error {
	const q = `
		UPDATE hr_support_locks
		SET expires_at = now() + ($3::bigint * interval '1 millisecond')
		WHERE name = $1 AND owner = $2`
	tag, err := s.pool.Exec(ctx, q, name, owner, ttl.Milliseconds())
	if err != nil {
		return fmt.Errorf("renew lease %q: %w", name, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotOwner
	}
	return nil
}

func (s *PostgresStore) Release(ctx context.Context, name, owner string) error {
	const q = `DELETE FROM hr_support_locks WHERE name = $1 AND owner = $2`
	tag, err := s.pool.Exec(ctx, q, name, owner)
	if err != nil {
		return fmt.Errorf("release lease %q: %w", name, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotOwner
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, name string) (Lease, bool, error) {
	const q = `
		SELECT owner, expires_at FROM hr_support_locks
		WHERE name = $1 AND expires_at > now()`
	var lease Lease
	err := s.pool.QueryRow(ctx, q, name).Scan(&lease.Owner, &lease.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Lease{}, false, nil
	}
	if err != nil {
		return Lease{}, false, fmt.Errorf("read lease %q: %w", name, err)
	}
	return lease, true, nil
}

// AdvisoryMedium holds a session level advisory lock on a pinned connection.
// The claim disappears with the session, so a crashed owner never blocks the
// others; Renew only checks that the session is still alive.
type AdvisoryMedium struct {
	pool        *pgxpool.Pool
	broadcaster Broadcaster
	key         int64
	owner       string

	mu   sync.Mutex
	conn *pgxpool.Conn
}

func NewAdvisoryMedium(pool *pgxpool.Pool, broadcaster Broadcaster, cfg Config, owner string) *AdvisoryMedium {
	cfg = cfg.WithDefaults()
	if owner == "" {
		owner = NewOwnerID()
	}
	return &AdvisoryMedium{pool: pool, broadcaster: broadcaster, key: advisoryKey(cfg.Name), owner: owner}
}

func advisoryKey(name string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	return int64(h.Sum64())
}

func (m *AdvisoryMedium) Owner() string { return m.owner }

func (m *AdvisoryMedium) TryAcquire(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn != nil {
		return true, nil
	}

	conn, err := m.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire connection: %w", err)
	}

	var ok bool
	if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, m.key).Scan(&ok); err != nil {
		conn.Release()
		return false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !ok {
		conn.Release()
		return false, nil
	}

	m.conn = conn
	return true, nil
}

func (m *AdvisoryMedium) Renew(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn == nil {
		return ErrNotOwner
	}
	if err := m.conn.Ping(ctx); err != nil {
		// The session and the lock with it are gone.
		m.conn.Release()
		m.conn = nil
		return fmt.Errorf("%w: %w", ErrNotOwner, err)
	}
	return nil
}

func (m *AdvisoryMedium) Release(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn == nil {
		return ErrNotOwner
	}
	conn := m.conn
	m.conn = nil
	defer conn.Release()

	var ok bool
	if err := conn.QueryRow(ctx, `SELECT pg_advisory_unlock($1)`, m.key).Scan(&ok); err != nil {
		return fmt.Errorf("advisory unlock: %w", err)
	}
	if !ok {
		return ErrNotOwner
	}
	return nil
}

func (m *AdvisoryMedium) PublishStatus(ctx context.Context, busy bool) error {
	if m.broadcaster == nil {
		return nil
	}
	return m.broadcaster.Publish(ctx, newStatus(m.owner, busy))
}

func (m *AdvisoryMedium) SubscribeStatus(ctx context.Context) (<-chan Status, error) {
	if m.broadcaster == nil {
		return nil, errors.New("advisory medium has no broadcaster")
	}
	return m.broadcaster.Subscribe(ctx)
}

// PostgresBroadcaster carries status messages over LISTEN/NOTIFY.
type PostgresBroadcaster struct {
	pool    *pgxpool.Pool
	channel string
	logger  *zap.Logger
}

func NewPostgresBroadcaster(pool *pgxpool.Pool, channel string, log *zap.Logger) *PostgresBroadcaster {
	if channel == "" {
		channel = DefaultChannel
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &PostgresBroadcaster{pool: pool, channel: channel, logger: log}
}

func (b *PostgresBroadcaster) Publish(ctx context.Context, status Status) error {
	payload, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("encode status: %w", err)
	}
	if _, err := b.pool.Exec(ctx, `SELECT pg_notify($1, $2)`, b.channel, string(payload)); err != nil {
		return fmt.Errorf("notify %s: %w", b.channel, err)
	}
	return nil
}

// Subscribe pins a connection for LISTEN until ctx is done.
func (b *PostgresBroadcaster) Subscribe(ctx context.Context) (<-chan Status, error) {
	conn, err := b.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}

	listen := "LISTEN " + pgx.Identifier{b.channel}.Sanitize()
	if _, err := conn.Exec(ctx, listen); err != nil {
		conn.Release()
		return nil, fmt.Errorf("listen %s: %w", b.channel, err)
	}

	ch := make(chan Status, subscriberBuffer)
	go func() {
		defer close(ch)
		// A connection still in LISTEN state must not go back to the pool.
		defer func() {
			_ = conn.Conn().Close(context.Background())
			conn.Release()
		}()

		for {
			n, err := conn.Conn().WaitForNotification(ctx)
			if err != nil {
				if ctx.Err() == nil {
					b.logger.Warn("status subscription ended", zap.Error(err))
				}
				return
			}
			status, ok := b.decode(n)
			if !ok {
				continue
			}
			select {
			case ch <- status:
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch, nil
}

func (b *PostgresBroadcaster) decode(n *pgconn.Notification) (Status, bool) {
	var status Status
	if err := json.Unmarshal([]byte(n.Payload), &status); err != nil {
		b.logger.Warn("ignoring malformed status notification", zap.Error(err))
		return Status{}, false
	}
	return status, true
}
