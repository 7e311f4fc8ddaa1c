package connections

import (
	"errors"
	"sync"

	"github.com/streamspace-dev/notify-push/internal/message"
	"github.com/streamspace-dev/notify-push/internal/user"
)

var errLimitExceeded = errors.New("connection limit exceeded")

// ErrLimitExceeded is returned by Subscribe when the user already has
// Registry's configured limit of live subscribers.
var ErrLimitExceeded = errLimitExceeded

// DropRecorder is notified whenever a publish is dropped because a
// subscriber's buffer is full. Implemented by internal/metrics.Collector;
// accepted as an interface so this package doesn't need to import metrics
// directly.
type DropRecorder interface {
	RecordDropped(kind string)
}

// Registry is the concurrent UserId -> FanOut index (ActiveConnections).
// An entry exists iff at least one session for that user has been
// admitted and not yet torn the entry down; entries are never required to
// be reaped once empty (see specification §4.2, §9).
type Registry struct {
	mu         sync.Mutex
	entries    map[user.ID]*FanOut
	limit      int
	bufferSize int
	drops      DropRecorder
}

// NewRegistry creates a Registry enforcing limit live subscribers per user
// and bufferSize-deep per-subscriber buffers. drops may be nil, in which
// case dropped publishes simply aren't recorded anywhere.
func NewRegistry(limit, bufferSize int, drops DropRecorder) *Registry {
	return &Registry{
		entries:    make(map[user.ID]*FanOut),
		limit:      limit,
		bufferSize: bufferSize,
		drops:      drops,
	}
}

// Subscribe returns a fresh Subscriber for id, creating the user's FanOut
// entry if this is its first live subscriber. Returns ErrLimitExceeded if
// the user already has the configured limit of subscribers.
//
// The lookup-or-create step is serialized by the registry's own mutex, so
// two concurrent first-subscribers for the same never-seen user can't
// create two separate entries; the admission count check on an existing
// entry is serialized independently by that entry's own FanOut, so it
// isn't held across the registry-wide lookup.
func (r *Registry) Subscribe(id user.ID) (*Subscriber, error) {
	r.mu.Lock()
	fo, ok := r.entries[id]
	if !ok {
		fo = newFanOut(r.bufferSize, r.drops)
		r.entries[id] = fo
	}
	r.mu.Unlock()

	return fo.subscribe(r.limit)
}

// Publish sends msg to every live subscriber of id. If no entry exists for
// id, Publish silently does nothing.
func (r *Registry) Publish(id user.ID, msg message.Type) {
	r.mu.Lock()
	fo, ok := r.entries[id]
	r.mu.Unlock()

	if !ok {
		return
	}
	fo.publish(msg)
}

// SubscriberCount reports the current number of live subscribers for id,
// for tests and diagnostics. Returns 0 if no entry exists.
func (r *Registry) SubscriberCount(id user.ID) int {
	r.mu.Lock()
	fo, ok := r.entries[id]
	r.mu.Unlock()
	if !ok {
		return 0
	}
	return fo.count()
}

// Reap drops entries whose subscriber count has dropped to zero. This is
// never required for correctness (stale entries are cheap) but keeps the
// map from growing unbounded across long-lived deployments.
func (r *Registry) Reap() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, fo := range r.entries {
		if fo.count() == 0 {
			delete(r.entries, id)
		}
	}
}
