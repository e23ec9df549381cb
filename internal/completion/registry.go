package completion

import (
	"sync"

	"github.com/planfit/planfit/internal/events"
	"github.com/planfit/planfit/internal/kvstore"
	"github.com/planfit/planfit/internal/telemetry/metrics"
)

// Registry hands out one Tracker per user and keeps it for the lifetime of
// the process, so all requests of a user share the same in-memory state and
// mutex.
type Registry struct {
	store   kvstore.Store
	remote  RemoteSync
	bus     *events.Bus
	metrics *metrics.Manager

	mu       sync.Mutex
	trackers map[string]*Tracker
}

func NewRegistry(
	store kvstore.Store,
	remote RemoteSync,
	bus *events.Bus,
	m *metrics.Manager,
) *Registry {
	return &Registry{
		store:    store,
		remote:   remote,
		bus:      bus,
		metrics:  m,
		trackers: make(map[string]*Tracker),
	}
}

func (r *Registry) ForUser(userID string) *Tracker {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.trackers[userID]; ok {
		return t
	}
	t := NewTracker(userID, r.store, r.remote, r.bus, r.metrics)
	r.trackers[userID] = t
	return t
}
