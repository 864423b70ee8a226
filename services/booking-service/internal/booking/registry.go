package booking

import (
	"sort"
	"sync"
	"time"
)

// inflight is the handle for one attempt holding a slot. done is closed on
// release; every waiter for the key blocks on the same channel.
type inflight struct {
	done      chan struct{}
	startedAt time.Time
}

type registry struct {
	mu      sync.Mutex
	entries map[SlotKey]*inflight
}

func newRegistry() *registry {
	return &registry{entries: map[SlotKey]*inflight{}}
}

// acquire registers key if no attempt holds it and returns its release func.
// Otherwise it returns the holder's done channel to wait on. The absence
// check and the registration share one critical section.
func (r *registry) acquire(key SlotKey, now time.Time) (release func(), wait <-chan struct{}) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if h, ok := r.entries[key]; ok {
		return nil, h.done
	}
	h := &inflight{done: make(chan struct{}), startedAt: now}
	r.entries[key] = h

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			if r.entries[key] == h {
				delete(r.entries, key)
			}
			r.mu.Unlock()
			close(h.done)
		})
	}, nil
}

type InFlightEntry struct {
	Key       SlotKey   `json:"slot_key"`
	StartedAt time.Time `json:"started_at"`
}

func (r *registry) snapshot() []InFlightEntry {
	r.mu.Lock()
	out := make([]InFlightEntry, 0, len(r.entries))
	for k, h := range r.entries {
		out = append(out, InFlightEntry{Key: k, StartedAt: h.startedAt})
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
