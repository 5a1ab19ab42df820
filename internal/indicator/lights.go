package indicator

import (
	"fmt"

	"github.com/cyberbrick-rc/brickrx/internal/actuator"
	"github.com/cyberbrick-rc/brickrx/internal/protocol"
)

// Lights is the pixel topology and behavior of one vehicle
type Lights struct {
	Pixels int           `yaml:"pixels"`
	Groups []SwitchGroup `yaml:"groups,omitempty"`
	Packed []PackedPixel `yaml:"packed,omitempty"`
	Turn   *TurnSignals  `yaml:"turn_signals,omitempty"`
}

// Input is everything one evaluation depends on
type Input struct {
	State     protocol.LinkState
	Malformed bool
	Lit       bool
	Frame     protocol.ChannelFrame
	Motion    Motion
}

// Evaluate updates pixels in place and returns the status pixel color.
// Precedence: failsafe, then malformed frame, then normal operation.
// A malformed frame leaves pixels untouched, holding the previous cycle.
func (l Lights) Evaluate(in Input, pixels []actuator.Color, status actuator.Color) actuator.Color {
	switch {
	case in.State == protocol.LinkStateFailsafe:
		for i := range pixels {
			pixels[i] = blink(FailsafeWarning, in.Lit)
		}
		return blink(StatusFailsafe, in.Lit)

	case in.Malformed:
		return blink(StatusMalformed, in.Lit)

	case in.State == protocol.LinkStateActive:
		for _, g := range l.Groups {
			g.Render(pixels, in.Frame, in.Lit)
		}
		for _, p := range l.Packed {
			p.Render(pixels, in.Frame)
		}
		if l.Turn != nil {
			l.Turn.Render(pixels, in.Motion, in.Lit)
		}
		return blink(StatusAlive, in.Lit)

	default:
		return status
	}
}

// Validate checks every light definition against the pixel count
func (l Lights) Validate() error {
	if l.Pixels < 0 {
		return fmt.Errorf("pixel count %d is negative", l.Pixels)
	}
	for _, g := range l.Groups {
		if err := g.Validate(l.Pixels); err != nil {
			return err
		}
	}
	for _, p := range l.Packed {
		if p.Pixel < 0 || p.Pixel >= l.Pixels {
			return fmt.Errorf("packed pixel %d out of range", p.Pixel)
		}
		if p.Channel < 0 || p.Channel >= protocol.CHANNEL_COUNT {
			return fmt.Errorf("packed pixel %d: channel %d out of range", p.Pixel, p.Channel)
		}
	}
	if l.Turn != nil {
		if err := l.Turn.Validate(l.Pixels); err != nil {
			return err
		}
	}
	return nil
}
