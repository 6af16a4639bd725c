// Package deathlink throttles death propagation between the local game and
// the multiworld room. One timestamp gates both directions so an inbound
// kill suppresses the outbound echo it would otherwise cause.
package deathlink

import (
	"sync"
	"time"
)

// DefaultCooldown is the minimum spacing between propagated deaths.
const DefaultCooldown = 10 * time.Second

type Tracker struct {
	mu       sync.Mutex
	cooldown time.Duration
	last     time.Time
	wasDead  bool
}

func NewTracker(cooldown time.Duration) *Tracker {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Tracker{cooldown: cooldown}
}

// ObserveLocal feeds the local player's alive/dead state each pass. It
// returns true exactly once per death, and only when the cooldown since the
// last propagated death in either direction has elapsed.
func (t *Tracker) ObserveLocal(dead bool, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !dead {
		t.wasDead = false
		return false
	}
	if t.wasDead {
		return false
	}
	t.wasDead = true
	if !t.ready(now) {
		return false
	}
	t.last = now
	return true
}

// RecordRemote handles a death announced by another player. It returns true
// when the local player should be killed and stamps the shared cooldown so
// the resulting local death is not re-broadcast.
func (t *Tracker) RecordRemote(now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.ready(now) {
		return false
	}
	t.last = now
	return true
}

func (t *Tracker) ready(now time.Time) bool {
	return t.last.IsZero() || now.Sub(t.last) >= t.cooldown
}
