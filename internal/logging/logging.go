package logging

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	mu   sync.RWMutex
	root zerolog.Logger = zerolog.New(consoleWriter(os.Stderr)).With().Timestamp().Logger()
)

func consoleWriter(w io.Writer) io.Writer {
	return zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
}

// Setup configures the process-wide logger. Level accepts zerolog level
// names ("debug", "info", "warn", "error"); unknown values fall back to
// info. When w is nil, stderr is used with the console writer.
func Setup(level string, w io.Writer) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	var out io.Writer
	if w == nil {
		out = consoleWriter(os.Stderr)
	} else {
		out = w
	}

	mu.Lock()
	root = zerolog.New(out).Level(lvl).With().Timestamp().Logger()
	mu.Unlock()
}

// SetupFile directs logs to the given file path, appending. Returns the
// opened file so the caller can close it on shutdown.
func SetupFile(level, path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	Setup(level, f)
	return f, nil
}

// WithComponent returns a logger tagged with a component name, e.g.
// logging.WithComponent("cosmic-adapter").Info().Msg("connected").
func WithComponent(name string) zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return root.With().Str("component", name).Logger()
}
