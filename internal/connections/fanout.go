// Package connections implements the in-memory user->subscriber fan-out
// index (ActiveConnections in the specification). The shape generalizes
// the teacher's Hub (internal/websocket/hub.go): a set of per-connection
// outbound channels guarded by a mutex, with best-effort non-blocking
// sends so one slow reader can't stall a publish. Here the set is keyed
// per user rather than global, and capped at USER_CONNECTION_LIMIT.
package connections

import (
	"sync"

	"github.com/streamspace-dev/notify-push/internal/message"
)

// FanOut is a bounded multi-producer/multi-consumer broadcast for one
// user's live sessions. New subscribers only see messages published after
// they join. A publish to a subscriber whose buffer is full is dropped —
// the specification treats this as harmless, since a later notification
// of the same kind supersedes it.
type FanOut struct {
	mu         sync.Mutex
	bufferSize int
	subs       map[*Subscriber]struct{}
	drops      DropRecorder
}

// Subscriber is one session's read end of a user's FanOut.
type Subscriber struct {
	ch     chan message.Type
	fanOut *FanOut
}

// C returns the channel to receive published messages on.
func (s *Subscriber) C() <-chan message.Type {
	return s.ch
}

// Close detaches the subscriber from its FanOut. The specification
// explicitly permits the FanOut entry to remain registered afterward with
// zero subscribers.
func (s *Subscriber) Close() {
	s.fanOut.removeSubscriber(s)
}

func newFanOut(bufferSize int, drops DropRecorder) *FanOut {
	return &FanOut{
		bufferSize: bufferSize,
		subs:       make(map[*Subscriber]struct{}),
		drops:      drops,
	}
}

// subscribe admits a new subscriber if the current count is below limit,
// atomically with the count check so two concurrent subscribers
// can't both slip past the cap.
func (f *FanOut) subscribe(limit int) (*Subscriber, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.subs) >= limit {
		return nil, errLimitExceeded
	}

	sub := &Subscriber{
		ch:     make(chan message.Type, f.bufferSize),
		fanOut: f,
	}
	f.subs[sub] = struct{}{}
	return sub, nil
}

// publish sends msg to every live subscriber, dropping it for any whose
// buffer is currently full.
func (f *FanOut) publish(msg message.Type) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for sub := range f.subs {
		select {
		case sub.ch <- msg:
		default:
			// buffer full: drop, per spec this is not an error (FanOutDrop).
			if f.drops != nil {
				f.drops.RecordDropped(string(msg.Kind))
			}
		}
	}
}

// count returns the number of live subscribers.
func (f *FanOut) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func (f *FanOut) removeSubscriber(sub *Subscriber) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.subs[sub]; ok {
		delete(f.subs, sub)
		close(sub.ch)
	}
}
