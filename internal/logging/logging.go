// Package logging configures the process-wide zerolog logger for the etl
// binary and adapts it to the Printf-style interface the pipeline uses.
package logging

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config holds logging configuration.
type Config struct {
	// Level is trace, debug, info, warn or error. Default: info.
	Level string

	// Format is json or console. Default: json.
	Format string

	// Output defaults to os.Stderr.
	Output io.Writer
}

var (
	mu  sync.RWMutex
	log = zerolog.New(os.Stderr).With().Timestamp().Logger()
)

// Init (re)configures the global logger.
func Init(cfg Config) {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}

	zerolog.TimeFieldFormat = time.RFC3339

	out := cfg.Output
	if strings.EqualFold(cfg.Format, "console") {
		out = zerolog.ConsoleWriter{Out: cfg.Output, TimeFormat: "15:04:05"}
	}

	l := zerolog.New(out).Level(ParseLevel(cfg.Level)).With().Timestamp().Logger()

	mu.Lock()
	defer mu.Unlock()
	log = l
}

// ParseLevel converts a level name to zerolog.Level; unknown names are info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// Logger returns the global logger.
func Logger() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

// SetLogger replaces the global logger, mainly for tests.
func SetLogger(l zerolog.Logger) {
	mu.Lock()
	defer mu.Unlock()
	log = l
}

// Info starts a new message with info level.
func Info() *zerolog.Event {
	mu.RLock()
	defer mu.RUnlock()
	return log.Info()
}

// Warn starts a new message with warning level.
func Warn() *zerolog.Event {
	mu.RLock()
	defer mu.RUnlock()
	return log.Warn()
}

// Error starts a new message with error level.
func Error() *zerolog.Event {
	mu.RLock()
	defer mu.RUnlock()
	return log.Error()
}

// Printer adapts a zerolog.Logger to the Printf/Warnf logger interfaces used
// by internal/pipeline. Printf logs at info, Warnf at warn.
type Printer struct {
	L         zerolog.Logger
	Component string
}

// NewPrinter returns a Printer on the current global logger.
func NewPrinter(component string) *Printer {
	return &Printer{L: Logger(), Component: component}
}

func (p *Printer) Printf(format string, v ...any) {
	p.event(p.L.Info()).Msgf(format, v...)
}

func (p *Printer) Warnf(format string, v ...any) {
	p.event(p.L.Warn()).Msgf(format, v...)
}

func (p *Printer) event(e *zerolog.Event) *zerolog.Event {
	if p.Component != "" {
		e = e.Str("component", p.Component)
	}
	return e
}
