// Package output delivers actuator commands to their destinations.
package output

import (
	"errors"

	"github.com/charmbracelet/log"

	"github.com/cyberbrick-rc/brickrx/internal/actuator"
)

// LogDriver logs each command that differs from the previous one
type LogDriver struct {
	log     *log.Logger
	last    actuator.Command
	applied int
	changes int
}

// NewLogDriver logs to logger at debug level
func NewLogDriver(logger *log.Logger) *LogDriver {
	return &LogDriver{log: logger}
}

// Apply records cmd
func (d *LogDriver) Apply(cmd actuator.Command) error {
	d.applied++
	if d.applied > 1 && cmd.Equal(d.last) {
		return nil
	}
	d.changes++
	d.last = cmd.Clone()
	d.log.Debug("Actuators",
		"servos", cmd.Servos,
		"motors", cmd.Motors,
		"status", cmd.Status,
		"pixels", cmd.Pixels)
	return nil
}

// Changes returns how many applied commands differed from their predecessor
func (d *LogDriver) Changes() int {
	return d.changes
}

// Close is a no-op
func (d *LogDriver) Close() error {
	return nil
}

// Discard drops every command
type Discard struct{}

func (Discard) Apply(actuator.Command) error { return nil }
func (Discard) Close() error                 { return nil }

// Multi fans one command out to several drivers
type Multi []actuator.Driver

// Apply applies cmd to every driver, even after a failure
func (m Multi) Apply(cmd actuator.Command) error {
	var errs []error
	for _, d := range m {
		if err := d.Apply(cmd); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every driver
func (m Multi) Close() error {
	var errs []error
	for _, d := range m {
		if err := d.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
