// Package actuator defines the per-cycle output set handed to actuator drivers.
package actuator

import (
	"fmt"
	"slices"
)

// Color is an RGB pixel value
type Color struct {
	R, G, B uint8
}

// RGB builds a Color
func RGB(r, g, b uint8) Color {
	return Color{R: r, G: g, B: b}
}

// Off is an unlit pixel
var Off = Color{}

func (c Color) String() string {
	return fmt.Sprintf("(%d,%d,%d)", c.R, c.G, c.B)
}

// Duty is the drive level of one bidirectional motor.
// At most one of A and B is nonzero.
type Duty struct {
	A, B uint16
}

// DutyA returns a duty driving output A
func DutyA(level uint16) Duty {
	return Duty{A: level}
}

// DutyB returns a duty driving output B
func DutyB(level uint16) Duty {
	return Duty{B: level}
}

// Swap exchanges the two outputs, used for motors wired with reversed polarity
func (d Duty) Swap() Duty {
	return Duty{A: d.B, B: d.A}
}

// IsZero reports whether the motor is stopped
func (d Duty) IsZero() bool {
	return d.A == 0 && d.B == 0
}

// Magnitude returns the active output's level
func (d Duty) Magnitude() uint16 {
	return max(d.A, d.B)
}

func (d Duty) String() string {
	return fmt.Sprintf("A=%d B=%d", d.A, d.B)
}

// Command is the complete set of actuator outputs for one control cycle
type Command struct {
	Servos []uint16 // pulse widths in 16-bit ticks of a 20ms period
	Motors []Duty
	Status Color   // status pixel on the core board
	Pixels []Color // functional pixels in profile order
}

// NewCommand allocates a command sized for the given topology
func NewCommand(servos, motors, pixels int) Command {
	return Command{
		Servos: make([]uint16, servos),
		Motors: make([]Duty, motors),
		Pixels: make([]Color, pixels),
	}
}

// Clone returns a deep copy
func (c Command) Clone() Command {
	return Command{
		Servos: slices.Clone(c.Servos),
		Motors: slices.Clone(c.Motors),
		Status: c.Status,
		Pixels: slices.Clone(c.Pixels),
	}
}

// Equal reports whether two commands drive identical outputs
func (c Command) Equal(o Command) bool {
	return c.Status == o.Status &&
		slices.Equal(c.Servos, o.Servos) &&
		slices.Equal(c.Motors, o.Motors) &&
		slices.Equal(c.Pixels, o.Pixels)
}

// Stopped reports whether every motor is at zero duty
func (c Command) Stopped() bool {
	for _, m := range c.Motors {
		if !m.IsZero() {
			return false
		}
	}
	return true
}

func (c Command) String() string {
	return fmt.Sprintf("servos=%v motors=%v status=%v pixels=%v", c.Servos, c.Motors, c.Status, c.Pixels)
}

// Driver applies a command to physical or simulated outputs.
// Apply is called once per control cycle and must not block for long.
type Driver interface {
	Apply(cmd Command) error
	Close() error
}
