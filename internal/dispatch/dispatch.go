// Package dispatch implements the event dispatcher (C5): it consumes
// decoded bus events and routes each to ActiveConnections, the pre-auth
// cache, the test-cookie counter, or the logging handle. Grounded on the
// teacher's internal/events.Subscriber handlers (handleSessionStatus,
// handleAppStatus, ...), which each decode one event kind and perform one
// side effect — generalized here into a single Dispatcher.Handle that
// switches on events.Kind and fires each event on its own goroutine so a
// slow mapping lookup can't stall the bus reader, per the specification.
package dispatch

import (
	"context"
	"sync/atomic"

	"github.com/streamspace-dev/notify-push/internal/connections"
	"github.com/streamspace-dev/notify-push/internal/events"
	"github.com/streamspace-dev/notify-push/internal/logger"
	"github.com/streamspace-dev/notify-push/internal/message"
	"github.com/streamspace-dev/notify-push/internal/preauth"
	"github.com/streamspace-dev/notify-push/internal/user"
)

// Mapper resolves a storage_id + path pair to the set of users who should
// be notified of a change there. Implemented by internal/storagemapping.
type Mapper interface {
	UsersForPath(ctx context.Context, storageID, path string) ([]user.ID, error)
}

// Dispatcher wires a decoded event stream to its side effects.
type Dispatcher struct {
	registry   *connections.Registry
	preauth    *preauth.Cache
	mapper     Mapper
	logHandle  *logger.Handle
	testCookie atomic.Uint32
}

// New creates a Dispatcher. mapper may be nil if StorageUpdate events are
// never expected; any such event will then be logged and dropped.
func New(registry *connections.Registry, cache *preauth.Cache, mapper Mapper, logHandle *logger.Handle) *Dispatcher {
	return &Dispatcher{
		registry:  registry,
		preauth:   cache,
		mapper:    mapper,
		logHandle: logHandle,
	}
}

// Handle decodes raw and routes it to the matching handler on its own
// goroutine, returning immediately. A decode error is logged and the
// message dropped; it never reaches the caller as an error return so one
// malformed record can't stop the bus reader loop.
func (d *Dispatcher) Handle(ctx context.Context, raw []byte) {
	kind, payload, err := events.Decode(raw)
	if err != nil {
		logger.Receive().Warn().Err(err).Msg("dropping malformed bus event")
		return
	}

	go d.dispatch(ctx, kind, payload)
}

func (d *Dispatcher) dispatch(ctx context.Context, kind events.Kind, payload interface{}) {
	switch kind {
	case events.KindStorageUpdate:
		d.handleStorageUpdate(ctx, payload.(*events.StorageUpdate))
	case events.KindGroupUpdate:
		ev := payload.(*events.GroupUpdate)
		d.registry.Publish(ev.User, message.File())
	case events.KindShareCreate:
		ev := payload.(*events.ShareCreate)
		d.registry.Publish(ev.User, message.File())
	case events.KindActivity:
		ev := payload.(*events.Activity)
		d.registry.Publish(ev.User, message.Activity())
	case events.KindNotification:
		ev := payload.(*events.Notification)
		d.registry.Publish(ev.User, message.Notification())
	case events.KindCustom:
		ev := payload.(*events.Custom)
		d.registry.Publish(ev.User, message.Custom(ev.Message, ev.Body))
	case events.KindPreAuth:
		ev := payload.(*events.PreAuth)
		d.preauth.Insert(ev.Token, ev.User)
	case events.KindTestCookie:
		ev := payload.(*events.TestCookie)
		d.testCookie.Store(ev.Value)
	case events.KindConfig:
		d.handleConfig(payload.(*events.Config))
	default:
		logger.Receive().Warn().Str("kind", string(kind)).Msg("unhandled event kind")
	}
}

func (d *Dispatcher) handleStorageUpdate(ctx context.Context, ev *events.StorageUpdate) {
	if d.mapper == nil {
		logger.Receive().Warn().Str("storage_id", ev.StorageID).Msg("no mapper configured, dropping storage update")
		return
	}
	users, err := d.mapper.UsersForPath(ctx, ev.StorageID, ev.Path)
	if err != nil {
		logger.Receive().Error().Err(err).Str("storage_id", ev.StorageID).Str("path", ev.Path).Msg("mapping lookup failed")
		return
	}
	for _, u := range users {
		d.registry.Publish(u, message.File())
	}
}

func (d *Dispatcher) handleConfig(ev *events.Config) {
	if ev.RestoreLog {
		d.logHandle.PopTempLevel()
		return
	}
	if ev.LogSpec != "" {
		if err := d.logHandle.PushTempLevel(ev.LogSpec); err != nil {
			logger.Receive().Warn().Err(err).Str("spec", ev.LogSpec).Msg("invalid log spec in config event")
		}
	}
}

// TestCookie returns the current value of the test-cookie counter.
func (d *Dispatcher) TestCookie() uint32 {
	return d.testCookie.Load()
}
