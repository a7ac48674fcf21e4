// Package orchestrator admits model requests through a bounded FIFO queue and
// executes them against an ordered list of credentials, moving a shared cursor
// to the next credential whenever the current one fails.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/TechFutureAIFPT/hr-support/internal/llm"
	"github.com/TechFutureAIFPT/hr-support/internal/logger"
	"github.com/TechFutureAIFPT/hr-support/internal/metrics"
)

// DefaultConcurrency is the number of requests executing at once.
const DefaultConcurrency = 2

var (
	ErrNoCredentials        = errors.New("no API keys configured")
	ErrCredentialsExhausted = errors.New("all API keys failed")
)

// ClientFactory builds a client bound to one credential.
type ClientFactory func(ctx context.Context, credential string) (llm.Client, error)

type Config struct {
	Concurrency int `mapstructure:"concurrency"`
}

type Deps struct {
	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// Orchestrator is safe for concurrent use. The cursor is sticky: a success
// leaves it where it is, so later requests start from the last credential
// that worked.
type Orchestrator struct {
	credentials []string
	factory     ClientFactory
	queue       *semaphore.Weighted
	concurrency int

	mu      sync.Mutex
	cursor  int
	clients map[int]llm.Client

	logger  *zap.Logger
	metrics *metrics.Metrics
}

func New(credentials []string, factory ClientFactory, cfg Config, deps Deps) *Orchestrator {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	return &Orchestrator{
		credentials: append([]string(nil), credentials...),
		factory:     factory,
		queue:       semaphore.NewWeighted(int64(concurrency)),
		concurrency: concurrency,
		clients:     make(map[int]llm.Client),
		logger:      logger.Named(deps.Logger, "orchestrator"),
		metrics:     deps.Metrics,
	}
}

// Submit waits for an admission slot and runs req, trying each credential at
// most once. It returns the first successful answer, ErrNoCredentials when no
// credential is configured, or ErrCredentialsExhausted wrapping the last
// failure when every credential failed.
func (o *Orchestrator) Submit(ctx context.Context, req llm.Request) (string, error) {
	if len(o.credentials) == 0 {
		return "", ErrNoCredentials
	}

	o.metrics.Queued(1)
	err := o.queue.Acquire(ctx, 1)
	o.metrics.Queued(-1)
	if err != nil {
		return "", fmt.Errorf("waiting for request slot: %w", err)
	}
	defer o.queue.Release(1)

	o.metrics.Inflight(1)
	defer o.metrics.Inflight(-1)

	var lastErr error
	for attempt := 1; attempt <= len(o.credentials); attempt++ {
		index, client, err := o.current(ctx)

		started := time.Now()
		var out string
		if err == nil {
			out, err = client.Generate(ctx, req)
		}
		elapsed := time.Since(started)
		o.metrics.ObserveAttempt(strconv.Itoa(index), err, elapsed)

		fields := []zap.Field{
			zap.Int("attempt", attempt),
			zap.Int("credential", index+1),
			zap.Int("credentials", len(o.credentials)),
			zap.Duration("duration", elapsed),
		}

		if err == nil {
			o.logger.Debug("model request succeeded", fields...)
			return out, nil
		}

		lastErr = err
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}

		o.logger.Warn("model request failed, rotating credential", append(fields, zap.Error(err))...)
		o.advance(index)
	}

	o.logger.Error("all credentials failed", zap.Int("credentials", len(o.credentials)), zap.Error(lastErr))
	return "", fmt.Errorf("%w: %w", ErrCredentialsExhausted, lastErr)
}

// current returns the cursor and its client, creating the client on first use.
func (o *Orchestrator) current(ctx context.Context) (int, llm.Client, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	index := o.cursor
	if client, ok := o.clients[index]; ok {
		return index, client, nil
	}

	if o.factory == nil {
		return index, nil, errors.New("client factory is not configured")
	}

	client, err := o.factory(ctx, o.credentials[index])
	if err != nil {
		return index, nil, fmt.Errorf("create client for credential %d: %w", index+1, err)
	}
	o.clients[index] = client
	return index, client, nil
}

// advance moves the cursor past failed, unless another request already did.
func (o *Orchestrator) advance(failed int) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.cursor != failed {
		return
	}
	o.cursor = (o.cursor + 1) % len(o.credentials)
	o.metrics.Rotated()
}

// Cursor returns the index of the credential the next attempt will use.
func (o *Orchestrator) Cursor() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cursor
}

func (o *Orchestrator) Credentials() int {
	return len(o.credentials)
}

func (o *Orchestrator) Concurrency() int {
	return o.concurrency
}
