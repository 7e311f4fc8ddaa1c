package message

import "time"

type debounceEntry struct {
	lastSent time.Time
	held     *Type
}

// Debouncer enforces at most one send per kind (per Tag for Custom) within
// a configurable interval. It is owned by exactly one session and is not
// safe for concurrent use — same single-threaded-per-session contract as
// the teacher's per-Client state in internal/websocket.
type Debouncer struct {
	interval time.Duration
	entries  map[string]*debounceEntry
	now      func() time.Time
}

// NewDebouncer creates a Debouncer that enforces interval between sends of
// the same kind.
func NewDebouncer(interval time.Duration) *Debouncer {
	return &Debouncer{
		interval: interval,
		entries:  make(map[string]*debounceEntry),
		now:      time.Now,
	}
}

// ShouldSend reports whether msg may be sent now. If a message of the same
// kind was already sent within the interval, ShouldSend stashes msg as the
// held message for that kind (overwriting any previously held message of
// the same kind) and returns false. Otherwise it records the send time and
// returns true.
func (d *Debouncer) ShouldSend(msg Type) bool {
	key := msg.debounceKey()
	now := d.now()

	entry, ok := d.entries[key]
	if !ok {
		entry = &debounceEntry{}
		d.entries[key] = entry
	}

	if !entry.lastSent.IsZero() && now.Sub(entry.lastSent) < d.interval {
		held := msg
		entry.held = &held
		return false
	}

	entry.lastSent = now
	entry.held = nil
	return true
}

// HasHeldMessage reports whether any kind currently has a message stashed
// awaiting a flush.
func (d *Debouncer) HasHeldMessage() bool {
	for _, entry := range d.entries {
		if entry.held != nil {
			return true
		}
	}
	return false
}

// DrainHeld returns and clears every currently held message. Flush order
// across kinds is unspecified. Each returned message must still be passed
// back through ShouldSend by the caller — some may remain debounced if the
// interval hasn't elapsed for that kind.
func (d *Debouncer) DrainHeld() []Type {
	var held []Type
	for _, entry := range d.entries {
		if entry.held != nil {
			held = append(held, *entry.held)
			entry.held = nil
		}
	}
	return held
}

// Purge drops bookkeeping for kinds that have been quiet for at least
// interval and have nothing held, keeping the map small over a long-lived
// session.
func (d *Debouncer) Purge() {
	now := d.now()
	for key, entry := range d.entries {
		if entry.held == nil && now.Sub(entry.lastSent) >= d.interval {
			delete(d.entries, key)
		}
	}
}
