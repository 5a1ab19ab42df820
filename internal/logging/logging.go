// Package logging builds the process logger and a rate-limited wrapper for
// diagnostics that can repeat at packet rate.
package logging

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"
)

// Options configures the process logger
type Options struct {
	Level      string // debug, info, warn, error
	Format     string // text, json, logfmt
	Prefix     string
	TimeFormat string
	Output     io.Writer
}

// New creates a logger from options
func New(opts Options) (*log.Logger, error) {
	level := log.InfoLevel
	if opts.Level != "" {
		var err error
		level, err = log.ParseLevel(opts.Level)
		if err != nil {
			return nil, fmt.Errorf("failed to parse log level %q: %w", opts.Level, err)
		}
	}

	var formatter log.Formatter
	switch opts.Format {
	case "", "text":
		formatter = log.TextFormatter
	case "json":
		formatter = log.JSONFormatter
	case "logfmt":
		formatter = log.LogfmtFormatter
	default:
		return nil, fmt.Errorf("unknown log format %q", opts.Format)
	}

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	timeFormat := opts.TimeFormat
	if timeFormat == "" {
		timeFormat = time.TimeOnly
	}

	return log.NewWithOptions(out, log.Options{
		Level:           level,
		Formatter:       formatter,
		Prefix:          opts.Prefix,
		ReportTimestamp: true,
		TimeFormat:      timeFormat,
	}), nil
}

// Limited drops log lines beyond a token-bucket rate and reports how many
// were dropped on the next line that gets through. It never blocks.
type Limited struct {
	log     *log.Logger
	limiter *rate.Limiter

	mu         sync.Mutex
	suppressed int
}

// NewLimited allows burst lines at once and one more every interval
func NewLimited(logger *log.Logger, interval time.Duration, burst int) *Limited {
	return &Limited{
		log:     logger,
		limiter: rate.NewLimiter(rate.Every(interval), burst),
	}
}

// Warn logs at warn level if the limiter allows
func (l *Limited) Warn(msg string, keyvals ...interface{}) {
	if kv, ok := l.admit(keyvals); ok {
		l.log.Warn(msg, kv...)
	}
}

// Error logs at error level if the limiter allows
func (l *Limited) Error(msg string, keyvals ...interface{}) {
	if kv, ok := l.admit(keyvals); ok {
		l.log.Error(msg, kv...)
	}
}

// Suppressed returns the number of lines dropped since the last emitted one
func (l *Limited) Suppressed() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.suppressed
}

func (l *Limited) admit(keyvals []interface{}) ([]interface{}, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.limiter.Allow() {
		l.suppressed++
		return nil, false
	}
	if l.suppressed > 0 {
		keyvals = append(keyvals, "suppressed", l.suppressed)
		l.suppressed = 0
	}
	return keyvals, true
}
