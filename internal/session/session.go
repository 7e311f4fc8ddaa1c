// Package session implements the WebSocket session handler (C3): the
// handshake state machine, and the sender/receiver flows that run for the
// life of an admitted connection. Grounded on the teacher's
// internal/websocket.Client readPump/writePump split (one goroutine per
// direction, gorilla/websocket read/write deadlines, ping ticker) and on
// connection.rs's socket_auth/handle_user_socket for the exact handshake
// and ping-nonce sequencing this package reproduces.
package session

import (
	"context"
	"encoding/binary"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/streamspace-dev/notify-push/internal/apperrors"
	"github.com/streamspace-dev/notify-push/internal/connections"
	"github.com/streamspace-dev/notify-push/internal/logger"
	"github.com/streamspace-dev/notify-push/internal/message"
	"github.com/streamspace-dev/notify-push/internal/metrics"
	"github.com/streamspace-dev/notify-push/internal/preauth"
	"github.com/streamspace-dev/notify-push/internal/user"
	"github.com/streamspace-dev/notify-push/internal/verifier"
)

// Deps bundles a Session's collaborators, shared across every connection
// served by one process.
type Deps struct {
	Registry  *connections.Registry
	PreAuth   *preauth.Cache
	Verifier  *verifier.Verifier
	Metrics   *metrics.Collector
	Debounce  time.Duration
	Handshake time.Duration
	PingEvery time.Duration
	Reset     *ResetBroadcaster
}

// ResetBroadcaster is a process-wide signal telling every live session to
// close its socket, used for hot configuration changes. Grounded on the
// specification's reset channel: a broadcast with no payload, implemented
// with a close-once channel rather than a value-carrying channel since
// every listener needs the exact same "now" signal, not a queued message.
type ResetBroadcaster struct {
	ch chan struct{}
}

// NewResetBroadcaster creates an armed broadcaster.
func NewResetBroadcaster() *ResetBroadcaster {
	return &ResetBroadcaster{ch: make(chan struct{})}
}

// C returns the channel that closes when Fire is called.
func (r *ResetBroadcaster) C() <-chan struct{} {
	return r.ch
}

// Fire closes the broadcast channel exactly once, waking every current and
// future listener.
func (r *ResetBroadcaster) Fire() {
	select {
	case <-r.ch:
	default:
		close(r.ch)
	}
}

var benignDisconnectPhrases = []string{
	"connection reset without closing handshake",
	"connection reset by peer",
}

// Conn is the subset of *websocket.Conn a Session needs, narrowed for
// testability.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(string) error)
	Close() error
}

// Session drives one admitted WebSocket connection from handshake through
// teardown.
type Session struct {
	conn         Conn
	deps         Deps
	forwardedFor []string

	id         user.ID
	expectPong atomic.Uint64
}

// New creates a Session for a freshly upgraded connection. forwardedFor is
// the client's IP chain (X-Forwarded-For entries followed by the peer
// address), used only if the verifier is consulted.
func New(conn Conn, deps Deps, forwardedFor []string) *Session {
	return &Session{conn: conn, deps: deps, forwardedFor: forwardedFor}
}

// Run executes the handshake and, on success, the steady-state sender and
// receiver flows until the session ends. It always leaves the socket
// closed on return.
func (s *Session) Run(ctx context.Context) {
	defer s.conn.Close()

	sub, err := s.handshake(ctx)
	if err != nil {
		logger.Session().Debug().Err(err).Msg("handshake failed")
		return
	}
	defer sub.Close()

	// Handshake left a read deadline in place; steady-state liveness is
	// governed entirely by the ping/pong nonce exchange below.
	s.conn.SetReadDeadline(time.Time{})

	s.deps.Metrics.RecordConnect(s.id.String())
	defer s.deps.Metrics.RecordDisconnect(s.id.String())

	logger.Session().Info().Str("user", s.id.String()).Msg("session authenticated")

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.receiveLoop()
	}()

	s.sendLoop(ctx, sub, done)
}

// handshake runs the full authentication state machine and, on success,
// admits the session via ActiveConnections. The returned Subscriber is the
// caller's to close.
func (s *Session) handshake(ctx context.Context) (*connections.Subscriber, error) {
	hctx, cancel := context.WithTimeout(ctx, s.deps.Handshake)
	defer cancel()

	// Bound the underlying socket read too, so a goroutine blocked in
	// runHandshake's ReadMessage unblocks on its own once hctx expires
	// instead of leaking past this function's return.
	s.conn.SetReadDeadline(time.Now().Add(s.deps.Handshake))

	resultCh := make(chan handshakeResult, 1)
	go func() {
		resultCh <- s.runHandshake(hctx)
	}()

	select {
	case res := <-resultCh:
		if res.err != nil {
			s.sendText("err: " + res.err.Error())
			return nil, res.err
		}
		s.id = res.id

		sub, err := s.deps.Registry.Subscribe(res.id)
		if err != nil {
			s.sendText(err.Error())
			return nil, err
		}
		s.sendText("authenticated")
		return sub, nil

	case <-hctx.Done():
		s.sendText(apperrors.ErrAuthTimeout.Message)
		return nil, apperrors.ErrAuthTimeout
	}
}

type handshakeResult struct {
	id  user.ID
	err error
}

func (s *Session) runHandshake(ctx context.Context) handshakeResult {
	username, err := s.readText()
	if err != nil {
		return handshakeResult{err: err}
	}
	password, err := s.readText()
	if err != nil {
		return handshakeResult{err: err}
	}

	if id, ok := s.deps.PreAuth.Consume(password); ok {
		logger.Session().Debug().Str("user", id.String()).Msg("authenticated via pre-auth token")
		return handshakeResult{id: id}
	}

	if username == "" {
		return handshakeResult{err: apperrors.ErrInvalidCredentials}
	}

	id, err := s.deps.Verifier.Verify(ctx, username, password, s.forwardedFor)
	if err != nil {
		return handshakeResult{err: err}
	}
	return handshakeResult{id: id}
}

func (s *Session) readText() (string, error) {
	_, data, err := s.conn.ReadMessage()
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (s *Session) sendText(text string) {
	_ = s.conn.WriteMessage(websocket.TextMessage, []byte(text))
}

// sendLoop is the sender flow: it owns the socket's write side for the
// life of the session.
func (s *Session) sendLoop(ctx context.Context, sub *connections.Subscriber, receiverDone <-chan struct{}) {
	debouncer := message.NewDebouncer(s.deps.Debounce)

	for {
		select {
		case <-s.deps.Reset.C():
			s.conn.WriteControl(websocket.CloseMessage, nil, time.Now().Add(time.Second))
			return

		case <-receiverDone:
			return

		case <-ctx.Done():
			return

		case msg, ok := <-sub.C():
			if !ok {
				return
			}
			if debouncer.ShouldSend(msg) {
				if err := s.write(msg); err != nil {
					return
				}
			}

		case <-time.After(s.deps.PingEvery):
			if debouncer.HasHeldMessage() {
				for _, held := range debouncer.DrainHeld() {
					if debouncer.ShouldSend(held) {
						if err := s.write(held); err != nil {
							return
						}
					}
				}
				continue
			}
			if err := s.ping(); err != nil {
				return
			}
		}
	}
}

func (s *Session) write(msg message.Type) error {
	s.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := s.conn.WriteMessage(websocket.TextMessage, []byte(msg.WireText())); err != nil {
		return err
	}
	s.deps.Metrics.RecordSent(string(msg.Kind))
	return nil
}

// ping sends a fresh non-zero nonce, closing the session if the previous
// ping went unanswered.
func (s *Session) ping() error {
	nonce := s.nextNonce()
	if !s.expectPong.CompareAndSwap(0, nonce) {
		return errors.New("ping unanswered: closing stale session")
	}

	payload := make([]byte, 8)
	binary.LittleEndian.PutUint64(payload, nonce)

	s.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return s.conn.WriteControl(websocket.PingMessage, payload, time.Now().Add(10*time.Second))
}

var nonceCounter atomic.Uint64

func (s *Session) nextNonce() uint64 {
	for {
		n := nonceCounter.Add(1)
		if n != 0 {
			return n
		}
	}
}

// receiveLoop is the receiver flow: it owns the socket's read side.
func (s *Session) receiveLoop() {
	s.conn.SetPongHandler(func(payload string) error {
		expected := s.expectPong.Swap(0)
		if expected == 0 {
			return nil
		}
		if len(payload) != 8 {
			return errors.New("malformed pong payload")
		}
		got := binary.LittleEndian.Uint64([]byte(payload))
		if got != expected {
			return errors.New("pong nonce mismatch")
		}
		return nil
	})

	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			logReceiveError(err)
			return
		}
	}
}

func logReceiveError(err error) {
	if err == nil {
		return
	}
	if isBenignDisconnect(err) || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		logger.Session().Debug().Err(err).Msg("receiver terminated")
		return
	}
	logger.Session().Warn().Err(err).Msg("receiver terminated with unexpected error")
}

func isBenignDisconnect(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, phrase := range benignDisconnectPhrases {
		if strings.Contains(msg, phrase) {
			return true
		}
	}
	return false
}
