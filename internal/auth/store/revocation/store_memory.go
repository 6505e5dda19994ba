// Package revocation keeps the ids of logged-out access tokens until they
// expire.
package revocation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"chariblock/pkg/platform/sentinel"
)

// Clock returns the current time.
type Clock func() time.Time

// InMemoryTRL is a single-instance revocation list.
type InMemoryTRL struct {
	mu      sync.Mutex
	revoked map[string]time.Time
	clock   Clock
}

type InMemoryOption func(*InMemoryTRL)

// WithClock sets the clock function for testability.
func WithClock(clock Clock) InMemoryOption {
	return func(t *InMemoryTRL) {
		if clock != nil {
			t.clock = clock
		}
	}
}

func NewInMemoryTRL(opts ...InMemoryOption) *InMemoryTRL {
	t := &InMemoryTRL{revoked: make(map[string]time.Time), clock: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *InMemoryTRL) RevokeToken(_ context.Context, jti string, ttl time.Duration) error {
	if jti == "" {
		return nil
	}
	if err := validateTTL(ttl); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.clock()
	t.revoked[jti] = now.Add(ttl)
	t.sweep(now)
	return nil
}

func (t *InMemoryTRL) IsTokenRevoked(_ context.Context, jti string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	expires, ok := t.revoked[jti]
	if !ok {
		return false, nil
	}
	if !t.clock().Before(expires) {
		delete(t.revoked, jti)
		return false, nil
	}
	return true, nil
}

// sweep drops expired entries. Caller holds mu.
func (t *InMemoryTRL) sweep(now time.Time) {
	for jti, expires := range t.revoked {
		if !now.Before(expires) {
			delete(t.revoked, jti)
		}
	}
}

func validateTTL(ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("ttl must be positive: %w", sentinel.ErrInvalidState)
	}
	return nil
}
