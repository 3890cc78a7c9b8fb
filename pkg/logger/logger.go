// Package logger provides the leveled logging interface consumed across the
// server and the sync agent, backed by zerolog.
package logger

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Logger accepts a message and alternating key/value pairs.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
	Info(msg string, args ...any)
	Debug(msg string, args ...any)
}

// ZerologHandler adapts a zerolog.Logger to the Logger interface.
type ZerologHandler struct {
	logger zerolog.Logger
}

// New builds a Logger writing JSON lines to w.
func New(w io.Writer) *ZerologHandler {
	return &ZerologHandler{
		logger: zerolog.New(w).With().Timestamp().Logger(),
	}
}

// Default returns a stdout logger. Components fall back to this when the
// caller does not provide one.
func Default() *ZerologHandler {
	return New(os.Stdout)
}

// FromZerolog wraps an existing zerolog.Logger.
func FromZerolog(l zerolog.Logger) *ZerologHandler {
	return &ZerologHandler{logger: l}
}

func (h *ZerologHandler) Error(msg string, args ...any) {
	withFields(h.logger.Error(), args).Msg(msg)
}

func (h *ZerologHandler) Warn(msg string, args ...any) {
	withFields(h.logger.Warn(), args).Msg(msg)
}

func (h *ZerologHandler) Info(msg string, args ...any) {
	withFields(h.logger.Info(), args).Msg(msg)
}

func (h *ZerologHandler) Debug(msg string, args ...any) {
	withFields(h.logger.Debug(), args).Msg(msg)
}

// withFields attaches alternating key/value args to the event. A trailing key
// without a value is recorded as-is under "arg".
func withFields(ev *zerolog.Event, args []any) *zerolog.Event {
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			ev = ev.Interface("arg", args[i])
			continue
		}
		ev = ev.Interface(key, args[i+1])
	}
	if len(args)%2 == 1 {
		ev = ev.Interface("arg", args[len(args)-1])
	}
	return ev
}
