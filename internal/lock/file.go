package lock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
)

// fileRetry is how often a busy flock is retried while waiting for ctx.
const fileRetry = 10 * time.Millisecond

// FileStore is a LeaseStore shared by processes on one host. Every operation
// holds an exclusive flock on <dir>/<name>.lock while it reads and rewrites
// the lease record in <dir>/<name>.lease. The flock only guards the short
// read-modify-write; the lease itself expires by TTL like any other store.
type FileStore struct {
	dir string
	now func() time.Time
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}
	return &FileStore{dir: dir, now: time.Now}, nil
}

// WithClock replaces the time source.
func (s *FileStore) WithClock(now func() time.Time) *FileStore {
	s.now = now
	return s
}

type fileLease struct {
	Owner     string    `json:"owner"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (s *FileStore) Acquire(ctx context.Context, name, owner string, ttl time.Duration) (acquired bool, err error) {
	err = s.locked(ctx, name, func(path string) error {
		now := s.now()
		current, ok, err := readLease(path)
		if err != nil {
			return err
		}
		if ok && current.Owner != owner && current.Live(now) {
			return nil
		}
		acquired = true
		return writeLease(path, Lease{Owner: owner, ExpiresAt: now.Add(ttl)})
	})
	return acquired, err
}

func (s *FileStore) Renew(ctx context.Context, name, owner string, ttl time.Duration) error {
	return s.locked(ctx, name, func(path string) error {
		current, ok, err := readLease(path)
		if err != nil {
			return err
		}
		if !ok || current.Owner != owner {
			return ErrNotOwner
		}
		return writeLease(path, Lease{Owner: owner, ExpiresAt: s.now().Add(ttl)})
	})
}

func (s *FileStore) Release(ctx context.Context, name, owner string) error {
	return s.locked(ctx, name, func(path string) error {
		current, ok, err := readLease(path)
		if err != nil {
			return err
		}
		if !ok || current.Owner != owner {
			return ErrNotOwner
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove lease: %w", err)
		}
		return nil
	})
}

func (s *FileStore) Get(ctx context.Context, name string) (lease Lease, live bool, err error) {
	err = s.locked(ctx, name, func(path string) error {
		current, ok, err := readLease(path)
		if err != nil || !ok || !current.Live(s.now()) {
			return err
		}
		lease, live = current, true
		return nil
	})
	return lease, live, err
}

// locked runs fn with the flock for name held, passing the lease file path.
func (s *FileStore) locked(ctx context.Context, name string, fn func(path string) error) error {
	base := filepath.Join(s.dir, fileName(name))

	fl := flock.New(base + ".lock")
	ok, err := fl.TryLockContext(ctx, fileRetry)
	if err != nil {
		return fmt.Errorf("flock %s: %w", fl.Path(), err)
	}
	if !ok {
		return fmt.Errorf("flock %s: %w", fl.Path(), ctx.Err())
	}
	defer fl.Unlock()

	return fn(base + ".lease")
}

func readLease(path string) (Lease, bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) || (err == nil && len(data) == 0) {
		return Lease{}, false, nil
	}
	if err != nil {
		return Lease{}, false, fmt.Errorf("read lease: %w", err)
	}

	var rec fileLease
	if err := json.Unmarshal(data, &rec); err != nil {
		// A torn record is treated as no lease; the next writer replaces it.
		return Lease{}, false, nil
	}
	return Lease{Owner: rec.Owner, ExpiresAt: rec.ExpiresAt}, true, nil
}

func writeLease(path string, l Lease) error {
	data, err := json.Marshal(fileLease{Owner: l.Owner, ExpiresAt: l.ExpiresAt})
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write lease: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("write lease: %w", err)
	}
	return nil
}

// fileName maps a lock name onto a safe file name.
func fileName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		}
		return '_'
	}, name)
}
