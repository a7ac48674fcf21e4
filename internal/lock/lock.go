// Package lock makes sure only one execution context runs an analysis at a
// time. A Medium provides the exclusive claim and the status broadcast; the
// Coordinator drives acquisition, heartbeat renewal and release around a
// unit of work.
package lock

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultName      = "hr-support-analysis"
	DefaultTTL       = 10 * time.Second
	DefaultHeartbeat = 2 * time.Second

	statusType = "status"
)

var (
	// ErrNotOwner is returned when renewing or releasing a lease held by
	// someone else, or no longer held at all.
	ErrNotOwner = errors.New("lock is not held by this owner")
	// ErrLeaseLost is returned by RunExclusive when the claim was lost while
	// the work was running.
	ErrLeaseLost = errors.New("lock lease lost while running")
)

type Config struct {
	Name      string        `mapstructure:"name"`
	TTL       time.Duration `mapstructure:"ttl"`
	Heartbeat time.Duration `mapstructure:"heartbeat"`
	// Medium is one of file, memory, lease or advisory.
	Medium string `mapstructure:"medium"`
	// Dir holds the lease files of the file medium.
	Dir string `mapstructure:"dir"`
}

func (c Config) WithDefaults() Config {
	if c.Name == "" {
		c.Name = DefaultName
	}
	if c.TTL <= 0 {
		c.TTL = DefaultTTL
	}
	if c.Heartbeat <= 0 {
		c.Heartbeat = DefaultHeartbeat
	}
	if c.Dir == "" {
		c.Dir = DefaultDir()
	}
	return c
}

// Medium is an exclusive claim bound to one owner, plus a status channel
// shared by every owner.
type Medium interface {
	// TryAcquire never waits for a holder; it reports false while another
	// owner holds the claim.
	TryAcquire(ctx context.Context) (bool, error)
	Renew(ctx context.Context) error
	Release(ctx context.Context) error
	PublishStatus(ctx context.Context, busy bool) error
	SubscribeStatus(ctx context.Context) (<-chan Status, error)
	Owner() string
}

// Status is the broadcast message: {"type":"status","payload":{"busy":true}}.
type Status struct {
	Type    string        `json:"type"`
	Payload StatusPayload `json:"payload"`
}

type StatusPayload struct {
	Busy bool `json:"busy"`
	// Owner identifies the sender so subscribers can skip their own messages.
	Owner string `json:"owner,omitempty"`
}

func newStatus(owner string, busy bool) Status {
	return Status{Type: statusType, Payload: StatusPayload{Busy: busy, Owner: owner}}
}

// Lease is a time bounded claim.
type Lease struct {
	Owner     string
	ExpiresAt time.Time
}

func (l Lease) Live(now time.Time) bool {
	return l.ExpiresAt.After(now)
}

// DefaultDir is where the file medium keeps its leases.
func DefaultDir() string {
	return filepath.Join(os.TempDir(), "hr-support")
}

// NewOwnerID returns a random execution context id.
func NewOwnerID() string {
	return uuid.NewString()
}
