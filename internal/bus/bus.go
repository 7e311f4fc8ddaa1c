// Package bus implements the bus subscriber loop (C6): a persistent NATS
// subscription that hands each raw message to a Dispatcher. Grounded
// directly on the teacher's internal/events.Subscriber — nats.Connect with
// reconnect/error handlers, one subscription per subject — but collapsed
// to the specification's single shared channel and its own 1-second
// reconnect-and-retry loop rather than NATS's built-in reconnect alone,
// since the specification calls for an explicit retry after any error
// including a malformed frame at the transport level.
package bus

import (
	"context"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/streamspace-dev/notify-push/internal/logger"
)

// Handler is called with each raw message payload received on the
// subscribed subject.
type Handler func(ctx context.Context, raw []byte)

// ReconnectRecorder is notified every time the subscriber has to
// reconnect, whether via its own outer retry loop or the NATS client's
// internal reconnect handler. Implemented by internal/metrics.Collector;
// accepted as an interface so this package doesn't need to import metrics
// directly.
type ReconnectRecorder interface {
	RecordBusReconnect()
}

// Subscriber holds a connection to the shared event channel.
type Subscriber struct {
	url        string
	subject    string
	reconnects ReconnectRecorder
}

// NewSubscriber creates a Subscriber for subject on the NATS server at
// url. reconnects may be nil, in which case reconnects simply aren't
// recorded anywhere.
func NewSubscriber(url, subject string, reconnects ReconnectRecorder) *Subscriber {
	return &Subscriber{url: url, subject: subject, reconnects: reconnects}
}

// Run connects and subscribes, invoking handle for every message until ctx
// is canceled. On any connect or subscribe error it waits 1 second and
// retries, per the specification's bus-subscriber reconnect policy.
func (s *Subscriber) Run(ctx context.Context, handle Handler) {
	log := logger.Receive()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := s.runOnce(ctx, handle); err != nil {
			log.Warn().Err(err).Msg("bus subscriber disconnected, retrying in 1s")
			if s.reconnects != nil {
				s.reconnects.RecordBusReconnect()
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(1 * time.Second):
			}
		}
	}
}

func (s *Subscriber) runOnce(ctx context.Context, handle Handler) error {
	log := logger.Receive()

	conn, err := nats.Connect(s.url,
		nats.Name("notify-push"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(1*time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("bus connection dropped")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("bus connection restored")
			if s.reconnects != nil {
				s.reconnects.RecordBusReconnect()
			}
		}),
	)
	if err != nil {
		return err
	}
	defer conn.Close()

	msgCh := make(chan *nats.Msg, 64)
	sub, err := conn.ChanSubscribe(s.subject, msgCh)
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	log.Info().Str("subject", s.subject).Msg("subscribed to event bus")

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgCh:
			if !ok {
				return nil
			}
			handle(ctx, msg.Data)
		}
	}
}
