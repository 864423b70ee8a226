// Package ratelimit throttles booking attempts per requester identity.
package ratelimit

import (
	"strings"
	"sync"
	"time"
)

const DefaultCooldown = 60 * time.Second

// Cooldown admits at most one attempt per identity per cooldown period.
// A rejected attempt does not move the identity's last attempt time.
type Cooldown struct {
	cooldown time.Duration
	now      func() time.Time

	mu         sync.Mutex
	lastSeen   map[string]time.Time
	lastPruned time.Time
}

type Option func(*Cooldown)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cooldown) {
		if now != nil {
			c.now = now
		}
	}
}

func NewCooldown(cooldown time.Duration, opts ...Option) *Cooldown {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	c := &Cooldown{
		cooldown: cooldown,
		now:      time.Now,
		lastSeen: map[string]time.Time{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cooldown) Period() time.Duration { return c.cooldown }

// NormalizeIdentity trims and lower-cases an e-mail style identity.
func NormalizeIdentity(identity string) string {
	return strings.ToLower(strings.TrimSpace(identity))
}

// CheckAndRecord reports whether identity may attempt now, recording the
// attempt when it may. The check and the write happen under one lock.
func (c *Cooldown) CheckAndRecord(identity string) bool {
	key := NormalizeIdentity(identity)
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if now.Sub(c.lastPruned) >= c.cooldown {
		c.pruneLocked(now)
		c.lastPruned = now
	}

	if last, ok := c.lastSeen[key]; ok && now.Sub(last) < c.cooldown {
		return false
	}
	c.lastSeen[key] = now
	return true
}

// Prune drops identities whose last attempt is older than twice the cooldown.
func (c *Cooldown) Prune(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pruneLocked(now)
}

func (c *Cooldown) pruneLocked(now time.Time) {
	cutoff := 2 * c.cooldown
	for k, last := range c.lastSeen {
		if now.Sub(last) > cutoff {
			delete(c.lastSeen, k)
		}
	}
}

// Len returns the number of tracked identities.
func (c *Cooldown) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.lastSeen)
}
