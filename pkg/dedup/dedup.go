// Package dedup suppresses repeated keys inside a TTL window.
package dedup

import (
	"strconv"
	"strings"
	"sync"
	"time"
)

type Deduper struct {
	mu   sync.Mutex
	ttl  time.Duration
	max  int
	now  func() time.Time
	seen map[string]time.Time
}

func New(ttl time.Duration, max int) *Deduper {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if max <= 0 {
		max = 10000
	}
	return &Deduper{ttl: ttl, max: max, now: time.Now, seen: make(map[string]time.Time)}
}

// WithClock replaces the time source; used by tests.
func (d *Deduper) WithClock(now func() time.Time) *Deduper {
	d.now = now
	return d
}

// Key joins integer ids into a dedup key, e.g. Key("unknown-yard", 3, 12).
func Key(prefix string, ids ...int) string {
	var b strings.Builder
	b.WriteString(prefix)
	for _, id := range ids {
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(id))
	}
	return b.String()
}

// ShouldProcess returns true the first time id is seen within the TTL.
// An empty id is always processed.
func (d *Deduper) ShouldProcess(id string) bool {
	if d == nil || id == "" {
		return true
	}
	now := d.now()
	d.mu.Lock()
	defer d.mu.Unlock()
	if exp, ok := d.seen[id]; ok && now.Before(exp) {
		return false
	}
	d.seen[id] = now.Add(d.ttl)
	if len(d.seen) > d.max {
		d.evict(now)
	}
	return true
}

// Len is the number of keys currently remembered.
func (d *Deduper) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}

// evict drops expired keys first; if the map is still over capacity the
// entries closest to expiry go.
func (d *Deduper) evict(now time.Time) {
	for k, exp := range d.seen {
		if !now.Before(exp) {
			delete(d.seen, k)
		}
	}
	for len(d.seen) > d.max {
		var oldestKey string
		var oldest time.Time
		for k, exp := range d.seen {
			if oldestKey == "" || exp.Before(oldest) {
				oldestKey, oldest = k, exp
			}
		}
		delete(d.seen, oldestKey)
	}
}
