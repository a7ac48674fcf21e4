package lock

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// LeaseStore persists leases. Acquire must be an atomic compare and swap: it
// succeeds when no lease exists, when the lease has expired, or when owner
// already holds it, and always leaves {owner, now+ttl} behind on success.
type LeaseStore interface {
	Acquire(ctx context.Context, name, owner string, ttl time.Duration) (bool, error)
	// Renew extends the lease of owner; ErrNotOwner when owner does not hold it.
	Renew(ctx context.Context, name, owner string, ttl time.Duration) error
	// Release removes the lease only if owner holds it.
	Release(ctx context.Context, name, owner string) error
	Get(ctx context.Context, name string) (Lease, bool, error)
}

// LeaseMedium implements Medium on top of a LeaseStore and a Broadcaster.
type LeaseMedium struct {
	store       LeaseStore
	broadcaster Broadcaster
	name        string
	owner       string
	ttl         time.Duration
}

func NewLeaseMedium(store LeaseStore, broadcaster Broadcaster, cfg Config, owner string) *LeaseMedium {
	cfg = cfg.WithDefaults()
	if owner == "" {
		owner = NewOwnerID()
	}
	return &LeaseMedium{store: store, broadcaster: broadcaster, name: cfg.Name, owner: owner, ttl: cfg.TTL}
}

func (m *LeaseMedium) Owner() string { return m.owner }

func (m *LeaseMedium) TryAcquire(ctx context.Context) (bool, error) {
	ok, err := m.store.Acquire(ctx, m.name, m.owner, m.ttl)
	if err != nil {
		return false, fmt.Errorf("acquire lease %q: %w", m.name, err)
	}
	return ok, nil
}

func (m *LeaseMedium) Renew(ctx context.Context) error {
	return m.store.Renew(ctx, m.name, m.owner, m.ttl)
}

func (m *LeaseMedium) Release(ctx context.Context) error {
	return m.store.Release(ctx, m.name, m.owner)
}

func (m *LeaseMedium) PublishStatus(ctx context.Context, busy bool) error {
	if m.broadcaster == nil {
		return nil
	}
	return m.broadcaster.Publish(ctx, newStatus(m.owner, busy))
}

func (m *LeaseMedium) SubscribeStatus(ctx context.Context) (<-chan Status, error) {
	if m.broadcaster == nil {
		ch := make(chan Status)
		go func() {
			<-ctx.Done()
			close(ch)
		}()
		return ch, nil
	}
	return m.broadcaster.Subscribe(ctx)
}

// MemoryStore is a process local LeaseStore.
type MemoryStore struct {
	mu     sync.Mutex
	leases map[string]Lease
	now    func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{leases: make(map[string]Lease), now: time.Now}
}

// WithClock replaces the time source.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
	return s
}

func (s *MemoryStore) Acquire(_ context.Context, name, owner string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if current, ok := s.leases[name]; ok && current.Owner != owner && current.Live(now) {
		return false, nil
	}

	s.leases[name] = Lease{Owner: owner, ExpiresAt: now.Add(ttl)}
	return true, nil
}

func (s *MemoryStore) Renew(_ context.Context, name, owner string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.leases[name]
	if !ok || current.Owner != owner {
		return ErrNotOwner
	}

	s.leases[name] = Lease{Owner: owner, ExpiresAt: s.now().Add(ttl)}
	return nil
}

func (s *MemoryStore) Release(_ context.Context, name, owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.leases[name]
	if !ok || current.Owner != owner {
		return ErrNotOwner
	}

	delete(s.leases, name)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, name string) (Lease, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.leases[name]
	if !ok || !current.Live(s.now()) {
		return Lease{}, false, nil
	}
	return current, true, nil
}
