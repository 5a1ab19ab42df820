// Package gpio reads the bind button from a GPIO character device line.
package gpio

import (
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/warthog618/go-gpiocdev"

	"github.com/cyberbrick-rc/brickrx/internal/logging"
)

// ButtonConfig selects the line the button is wired to
type ButtonConfig struct {
	Chip      string // e.g. "gpiochip0"
	Line      int
	ActiveLow bool // button pulls the line to ground
}

type line interface {
	Value() (int, error)
	Close() error
}

// Button is a momentary input polled once per control cycle
type Button struct {
	line line
	name string
	diag *logging.Limited
}

// OpenButton requests the line as an input with the pull-up enabled
func OpenButton(config ButtonConfig, logger *log.Logger) (*Button, error) {
	opts := []gpiocdev.LineReqOption{
		gpiocdev.AsInput,
		gpiocdev.WithPullUp,
		gpiocdev.WithConsumer("brickrx-bind"),
	}
	if config.ActiveLow {
		opts = append(opts, gpiocdev.AsActiveLow)
	}

	l, err := gpiocdev.RequestLine(config.Chip, config.Line, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to request %s line %d: %w", config.Chip, config.Line, err)
	}

	logger.Debug("Bind button ready", "chip", config.Chip, "line", config.Line, "active_low", config.ActiveLow)
	return newButton(l, fmt.Sprintf("%s:%d", config.Chip, config.Line), logger), nil
}

func newButton(l line, name string, logger *log.Logger) *Button {
	return &Button{
		line: l,
		name: name,
		diag: logging.NewLimited(logger, 10*time.Second, 1),
	}
}

// Held reports whether the button is pressed. A read failure counts as released.
func (b *Button) Held() bool {
	v, err := b.line.Value()
	if err != nil {
		b.diag.Warn("Failed to read bind button", "line", b.name, "err", err)
		return false
	}
	return v == 1
}

// Close releases the line
func (b *Button) Close() error {
	return b.line.Close()
}
