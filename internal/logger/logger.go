// Package logger provides the structured logger used across notify-push.
package logger

import (
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Log is the global logger instance, configured by Initialize.
var Log zerolog.Logger

// Initialize sets up the global logger.
func Initialize(level string, pretty bool) {
	logLevel, err := zerolog.ParseLevel(level)
	if err != nil {
		logLevel = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(logLevel)

	if pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		})
	} else {
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	}

	Log = log.With().
		Str("service", "notify-push").
		Logger()

	Log.Info().
		Str("level", logLevel.String()).
		Bool("pretty", pretty).
		Msg("logger initialized")
}

// GetLogger returns the global logger instance.
func GetLogger() *zerolog.Logger {
	return &Log
}

// Send creates a logger for outbound send-side events (debounce, pings).
func Send() *zerolog.Logger {
	l := Log.With().Str("component", "send").Logger()
	return &l
}

// Receive creates a logger for bus ingest events.
func Receive() *zerolog.Logger {
	l := Log.With().Str("component", "receive").Logger()
	return &l
}

// Session creates a logger for WebSocket session lifecycle events.
func Session() *zerolog.Logger {
	l := Log.With().Str("component", "session").Logger()
	return &l
}

// HTTP creates a logger for HTTP request events.
func HTTP() *zerolog.Logger {
	l := Log.With().Str("component", "http").Logger()
	return &l
}

// Handle is a mutex-protected holder that lets bus Config events push and
// pop a temporary log level override, mirroring flexi_logger's
// push_temp_spec/pop_temp_spec behavior from the original notify_push
// source.
type Handle struct {
	mu    sync.Mutex
	stack []zerolog.Level
}

// NewHandle creates a Handle bound to the current global level.
func NewHandle() *Handle {
	return &Handle{}
}

// PushTempLevel parses spec as a zerolog level and installs it globally,
// remembering the previous level so PopTempLevel can restore it.
func (h *Handle) PushTempLevel(spec string) error {
	level, err := zerolog.ParseLevel(spec)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stack = append(h.stack, zerolog.GlobalLevel())
	zerolog.SetGlobalLevel(level)
	return nil
}

// PopTempLevel restores the level that was active before the most recent
// PushTempLevel call. It is a no-op if the stack is empty.
func (h *Handle) PopTempLevel() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.stack) == 0 {
		return
	}
	prev := h.stack[len(h.stack)-1]
	h.stack = h.stack[:len(h.stack)-1]
	zerolog.SetGlobalLevel(prev)
}
