// Package supervise keeps the harvest processes alive: a heartbeat
// registry for in-process workers and a supervisor loop that respawns
// dead scraper processes and reclaims orphaned browsers.
package supervise

import (
	"sync"
	"time"
)

// Registry records the last heartbeat per worker name. Workers beat it
// at run boundaries; the supervisor reads it to spot wedged sessions.
type Registry struct {
	mu    sync.Mutex
	beats map[string]time.Time
	now   func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{beats: make(map[string]time.Time), now: time.Now}
}

// Beat marks the worker as alive right now.
func (r *Registry) Beat(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.beats[name] = r.now()
}

// LastBeat returns the worker's most recent heartbeat, if any.
func (r *Registry) LastBeat(name string) (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.beats[name]
	return t, ok
}

// Stale returns the names whose last beat is older than maxAge. Workers
// that never beat are not reported; they have not started yet.
func (r *Registry) Stale(maxAge time.Duration) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := r.now().Add(-maxAge)
	var stale []string
	for name, t := range r.beats {
		if t.Before(cutoff) {
			stale = append(stale, name)
		}
	}
	return stale
}
