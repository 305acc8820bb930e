// Package logger builds the process-wide zerolog.Logger, following the
// teacher's logger package: an async-wrapped writer so log I/O never becomes
// a pipeline suspension point, console output in debug mode and JSON
// otherwise.
package logger

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/pkgerrors"

	"coreconvo/config"
)

// asyncWriter performs writes in a background goroutine so a slow or blocked
// sink (a full pipe, a stalled file handle) never stalls the caller.
type asyncWriter struct {
	ch     chan []byte
	writer io.Writer
}

func newAsyncWriter(w io.Writer, bufSize int) *asyncWriter {
	aw := &asyncWriter{
		ch:     make(chan []byte, bufSize),
		writer: w,
	}
	go aw.drain()
	return aw
}

func (aw *asyncWriter) drain() {
	for p := range aw.ch {
		aw.writer.Write(p) //nolint:errcheck
	}
}

func (aw *asyncWriter) Write(p []byte) (int, error) {
	buf := make([]byte, len(p))
	copy(buf, p)
	select {
	case aw.ch <- buf:
	default:
		// drop the log entry if the buffer is full rather than blocking
	}
	return len(p), nil
}

var (
	once sync.Once
	log  zerolog.Logger
)

// Get returns the process-wide logger, building it from config.Load() on
// first use.
func Get() zerolog.Logger {
	once.Do(func() {
		log = build(config.Load())
	})
	return log
}

// Init explicitly (re)builds the process-wide logger from a given config;
// intended for tests and cmd/coreserver's main, called before any other
// package calls Get().
func Init(cfg *config.Config) zerolog.Logger {
	log = build(cfg)
	return log
}

func build(cfg *config.Config) zerolog.Logger {
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.SetGlobalLevel(zerolog.Level(cfg.LogLevel))

	var out io.Writer = os.Stdout
	if cfg.LogFormat == config.LogFormatConsole {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	if cfg.LogFile != "" {
		if f, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644); err == nil {
			out = zerolog.MultiLevelWriter(out, f)
		}
	}

	return zerolog.New(newAsyncWriter(out, 1024)).With().Timestamp().Logger()
}
