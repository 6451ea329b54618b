package obs

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	mu   sync.RWMutex
	base = newLogger(Options{})
)

// Options selects the log sink and verbosity.
type Options struct {
	Debug   bool
	Console bool      // human readable output instead of JSON lines
	Out     io.Writer // defaults to stdout
}

// Fields are attached to a single log event.
type Fields map[string]any

func newLogger(o Options) zerolog.Logger {
	out := o.Out
	if out == nil {
		out = os.Stdout
	}
	if o.Console {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}
	level := zerolog.InfoLevel
	if o.Debug {
		level = zerolog.DebugLevel
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

func init() {
	zerolog.TimestampFieldName = "ts"
	zerolog.MessageFieldName = "msg"
	zerolog.TimeFieldFormat = time.RFC3339Nano
}

// Setup replaces the process logger.
func Setup(o Options) {
	l := newLogger(o)
	mu.Lock()
	base = l
	mu.Unlock()
}

// EnableDebug globally enables debug logs.
func EnableDebug(v bool) {
	level := zerolog.InfoLevel
	if v {
		level = zerolog.DebugLevel
	}
	mu.Lock()
	base = base.Level(level)
	mu.Unlock()
}

// Logger returns the current logger for callers that want the zerolog API directly.
func Logger() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

func logWith(e *zerolog.Event, msg string, f Fields) {
	if f != nil {
		// zerolog only expands plain maps, not named map types.
		e = e.Fields(map[string]any(f))
	}
	e.Msg(msg)
}

func Info(msg string, f Fields) {
	l := Logger()
	logWith(l.Info(), msg, f)
}

func Warn(msg string, f Fields) {
	l := Logger()
	logWith(l.Warn(), msg, f)
}

func Error(msg string, f Fields) {
	l := Logger()
	logWith(l.Error(), msg, f)
}

func Debug(msg string, f Fields) {
	l := Logger()
	logWith(l.Debug(), msg, f)
}
