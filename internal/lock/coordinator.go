package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/TechFutureAIFPT/hr-support/internal/logger"
	"github.com/TechFutureAIFPT/hr-support/internal/metrics"
)

// releaseTimeout bounds the best effort release once the work is done.
const releaseTimeout = 5 * time.Second

type Deps struct {
	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// Coordinator runs work exclusively across every process sharing its medium.
type Coordinator struct {
	medium    Medium
	heartbeat time.Duration
	logger    *zap.Logger
	metrics   *metrics.Metrics

	mu   sync.Mutex
	held bool

	remoteBusy atomic.Bool
}

func NewCoordinator(medium Medium, cfg Config, deps Deps) *Coordinator {
	cfg = cfg.WithDefaults()
	return &Coordinator{
		medium:    medium,
		heartbeat: cfg.Heartbeat,
		logger:    logger.WithFields(logger.Named(deps.Logger, "lock"), zap.String(logger.FieldOwner, medium.Owner())),
		metrics:   deps.Metrics,
	}
}

func (c *Coordinator) Owner() string {
	return c.medium.Owner()
}

// RunExclusive runs fn while holding the claim. When another owner holds it,
// or another caller of this coordinator is already running, fn is not called
// and acquired is false with a nil error. While fn runs the
// claim is renewed every heartbeat; if renewal reports the claim lost, the
// context passed to fn is cancelled and ErrLeaseLost is returned. The claim is
// released and idle status published when fn returns.
func (c *Coordinator) RunExclusive(ctx context.Context, fn func(ctx context.Context) error) (acquired bool, err error) {
	// Leases are re-entrant for their owner, so callers sharing this
	// coordinator are excluded here before the medium is asked.
	if !c.claim() {
		c.metrics.LockAttempt(false)
		c.logger.Info("lock is busy in this execution context")
		return false, nil
	}

	ok, err := c.medium.TryAcquire(ctx)
	if err != nil {
		c.setHeld(false)
		return false, err
	}
	c.metrics.LockAttempt(ok)
	if !ok {
		c.setHeld(false)
		c.logger.Info("lock is busy in another execution context")
		return false, nil
	}

	c.logger.Debug("lock acquired")
	if err := c.medium.PublishStatus(ctx, true); err != nil {
		c.logger.Warn("publishing busy status", zap.Error(err))
	}

	workCtx, cancelWork := context.WithCancelCause(ctx)
	defer cancelWork(nil)

	stopHeartbeat := make(chan struct{})
	heartbeatDone := make(chan struct{})
	var lost atomic.Bool

	go func() {
		defer close(heartbeatDone)
		c.keepAlive(workCtx, stopHeartbeat, func(err error) {
			lost.Store(true)
			cancelWork(fmt.Errorf("%w: %w", ErrLeaseLost, err))
		})
	}()

	defer func() {
		close(stopHeartbeat)
		<-heartbeatDone
		c.release(ctx)
	}()

	err = fn(workCtx)
	if lost.Load() {
		return true, errors.Join(context.Cause(workCtx), err)
	}
	return true, err
}

// keepAlive renews the claim every heartbeat until stop is closed or ctx is
// done. A renewal reporting ErrNotOwner calls onLost and stops; other errors
// are retried on the next tick while the lease may still be valid.
func (c *Coordinator) keepAlive(ctx context.Context, stop <-chan struct{}, onLost func(error)) {
	ticker := time.NewTicker(c.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := c.medium.Renew(ctx)
			if err == nil {
				continue
			}
			if errors.Is(err, ErrNotOwner) {
				c.logger.Error("lock lost", zap.Error(err))
				onLost(err)
				return
			}
			c.logger.Warn("renewing lock", zap.Error(err))
		}
	}
}

func (c *Coordinator) release(parent context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), releaseTimeout)
	defer cancel()

	// held stays set until the medium is released so a waiting caller
	// cannot re-enter the lease that is about to go away.
	defer c.setHeld(false)
	c.metrics.LockReleased()

	if err := c.medium.Release(ctx); err != nil && !errors.Is(err, ErrNotOwner) {
		c.logger.Warn("releasing lock", zap.Error(err))
	}
	if err := c.medium.PublishStatus(ctx, false); err != nil {
		c.logger.Warn("publishing idle status", zap.Error(err))
	}
	c.logger.Debug("lock released")
}

// Watch consumes status broadcasts from other owners until ctx is done and
// keeps the advisory view returned by Busy current.
func (c *Coordinator) Watch(ctx context.Context) error {
	statuses, err := c.medium.SubscribeStatus(ctx)
	if err != nil {
		return fmt.Errorf("subscribing to lock status: %w", err)
	}

	for status := range statuses {
		if status.Type != statusType || status.Payload.Owner == c.Owner() {
			continue
		}
		c.remoteBusy.Store(status.Payload.Busy)
		c.logger.Debug("lock status changed", zap.Bool("busy", status.Payload.Busy), zap.String("from", status.Payload.Owner))
	}

	return ctx.Err()
}

// Busy reports whether this coordinator holds the claim or another owner was
// last seen holding it. The remote part is advisory only.
func (c *Coordinator) Busy() bool {
	return c.Held() || c.remoteBusy.Load()
}

func (c *Coordinator) Held() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.held
}

// claim marks the coordinator held and reports whether it was free.
func (c *Coordinator) claim() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.held {
		return false
	}
	c.held = true
	return true
}

func (c *Coordinator) setHeld(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.held = v
}

// Close releases the claim if it is still held, publishes idle status and
// closes the medium when it supports it. It is best effort: the TTL recovers
// claims that Close could not release.
func (c *Coordinator) Close(ctx context.Context) error {
	var errs []error
	if c.Held() {
		c.setHeld(false)
		if err := c.medium.Release(ctx); err != nil && !errors.Is(err, ErrNotOwner) {
			errs = append(errs, err)
		}
		if err := c.medium.PublishStatus(ctx, false); err != nil {
			errs = append(errs, err)
		}
	}

	if closer, ok := c.medium.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
