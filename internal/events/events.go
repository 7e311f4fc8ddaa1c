// Package events defines the typed bus event taxonomy consumed by the
// dispatcher (C5) and the wire decoding for the JSON records published on
// the shared channel. Grounded on the teacher's internal/events package,
// which defines its own event structs and json.Unmarshal-based decoding
// for NATS payloads (see subscriber.go's handleSessionStatus), generalized
// to a single discriminated envelope matching notify_push's event enum.
package events

import (
	"encoding/json"
	"fmt"

	"github.com/streamspace-dev/notify-push/internal/user"
)

// Kind discriminates the event envelope's Payload.
type Kind string

const (
	KindStorageUpdate Kind = "storage_update"
	KindGroupUpdate   Kind = "group_update"
	KindShareCreate   Kind = "share_create"
	KindActivity      Kind = "activity"
	KindNotification  Kind = "notification"
	KindCustom        Kind = "custom"
	KindPreAuth       Kind = "pre_auth"
	KindTestCookie    Kind = "test_cookie"
	KindConfig        Kind = "config"
)

// StorageUpdate carries a storage_id + path pair that must be resolved to
// user IDs via the storage-mapping collaborator before delivery.
type StorageUpdate struct {
	StorageID string `json:"storage_id"`
	Path      string `json:"path"`
}

// GroupUpdate, ShareCreate, Activity, and Notification all target a single
// already-known user directly.
type GroupUpdate struct {
	User user.ID `json:"user"`
}

type ShareCreate struct {
	User user.ID `json:"user"`
}

type Activity struct {
	User user.ID `json:"user"`
}

type Notification struct {
	User user.ID `json:"user"`
}

// Custom carries an arbitrary short message/body pair for one user.
type Custom struct {
	User    user.ID `json:"user"`
	Message string  `json:"message"`
	Body    string  `json:"body"`
}

// PreAuth populates the pre-auth cache with a token for a user.
type PreAuth struct {
	User  user.ID `json:"user"`
	Token string  `json:"token"`
}

// TestCookie is a test-only event that stores Value into a process-wide
// counter, letting an operator confirm the bus round-trip is alive.
type TestCookie struct {
	Value uint32 `json:"value"`
}

// Config adjusts the logging subsystem at runtime: either pushing a
// temporary level spec or popping back to the prior one.
type Config struct {
	LogSpec    string `json:"log_spec,omitempty"`
	RestoreLog bool   `json:"restore_log,omitempty"`
}

// Envelope is the wire shape of every bus record: a kind tag plus a
// raw payload decoded according to that tag.
type Envelope struct {
	Kind    Kind            `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// Decode parses a raw bus message into its concrete typed payload. The
// returned value is one of the structs above, or an error if the kind is
// unrecognized or the payload doesn't match its shape.
func Decode(raw []byte) (Kind, interface{}, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", nil, fmt.Errorf("malformed event envelope: %w", err)
	}

	var payload interface{}
	switch env.Kind {
	case KindStorageUpdate:
		payload = &StorageUpdate{}
	case KindGroupUpdate:
		payload = &GroupUpdate{}
	case KindShareCreate:
		payload = &ShareCreate{}
	case KindActivity:
		payload = &Activity{}
	case KindNotification:
		payload = &Notification{}
	case KindCustom:
		payload = &Custom{}
	case KindPreAuth:
		payload = &PreAuth{}
	case KindTestCookie:
		payload = &TestCookie{}
	case KindConfig:
		payload = &Config{}
	default:
		return "", nil, fmt.Errorf("unrecognized event kind %q", env.Kind)
	}

	if err := json.Unmarshal(env.Payload, payload); err != nil {
		return "", nil, fmt.Errorf("malformed %s payload: %w", env.Kind, err)
	}
	return env.Kind, payload, nil
}
