package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestMemoryStoreSingleHolderUnderContention(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	const contenders = 32
	var (
		wg      sync.WaitGroup
		winners atomic.Int32
		errs    = make(chan error, contenders)
	)
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := store.Acquire(ctx, DefaultName, NewOwnerID(), DefaultTTL)
			if err != nil {
				errs <- err
				return
			}
			if ok {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	require.EqualValues(t, 1, winners.Load())
}

func TestMemoryStoreReclaimsExpiredLease(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	store := NewMemoryStore().WithClock(clock.Now)
	ctx := context.Background()

	ok, err := store.Acquire(ctx, DefaultName, "crashed", DefaultTTL)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = store.Acquire(ctx, DefaultName, "next", DefaultTTL)
	require.NoError(t, err)
	require.False(t, ok, "live lease must not be taken over")

	clock.Advance(11 * time.Second)

	_, live, err := store.Get(ctx, DefaultName)
	require.NoError(t, err)
	require.False(t, live)

	ok, err = store.Acquire(ctx, DefaultName, "next", DefaultTTL)
	require.NoError(t, err)
	require.True(t, ok)

	lease, live, err := store.Get(ctx, DefaultName)
	require.NoError(t, err)
	require.True(t, live)
	require.Equal(t, "next", lease.Owner)
	require.Equal(t, clock.Now().Add(DefaultTTL), lease.ExpiresAt)

	require.ErrorIs(t, store.Renew(ctx, DefaultName, "crashed", DefaultTTL), ErrNotOwner)
}

func TestMemoryStoreRejectsForeignOwner(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	ok, err := store.Acquire(ctx, DefaultName, "a", DefaultTTL)
	require.NoError(t, err)
	require.True(t, ok)

	require.ErrorIs(t, store.Release(ctx, DefaultName, "b"), ErrNotOwner)
	require.ErrorIs(t, store.Renew(ctx, DefaultName, "b", DefaultTTL), ErrNotOwner)

	ok, err = store.Acquire(ctx, DefaultName, "a", DefaultTTL)
	require.NoError(t, err)
	require.True(t, ok, "owner may re-acquire its own lease")

	require.NoError(t, store.Release(ctx, DefaultName, "a"))
	require.ErrorIs(t, store.Release(ctx, DefaultName, "a"), ErrNotOwner)

	ok, err = store.Acquire(ctx, DefaultName, "b", DefaultTTL)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestHubDeliversToEverySubscriber(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first, err := hub.Subscribe(ctx)
	require.NoError(t, err)
	second, err := hub.Subscribe(ctx)
	require.NoError(t, err)

	require.NoError(t, hub.Publish(ctx, newStatus("x", true)))

	for _, ch := range []<-chan Status{first, second} {
		select {
		case status := <-ch:
			require.Equal(t, "status", status.Type)
			require.True(t, status.Payload.Busy)
			require.Equal(t, "x", status.Payload.Owner)
		case <-time.After(time.Second):
			t.Fatal("status was not delivered")
		}
	}

	cancel()
	require.Eventually(t, func() bool {
		_, open := <-first
		return !open
	}, time.Second, 10*time.Millisecond)
}
