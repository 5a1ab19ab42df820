package indicator

import (
	"fmt"

	"github.com/cyberbrick-rc/brickrx/internal/actuator"
	"github.com/cyberbrick-rc/brickrx/internal/mapper"
	"github.com/cyberbrick-rc/brickrx/internal/protocol"
)

// Pattern is the light state selected by one switch zone
type Pattern struct {
	Color string `yaml:"color"` // off, white, amber, red, green, blue
	Blink bool   `yaml:"blink"`
}

// Render scales the named color by brightness and applies the blink phase
func (p Pattern) Render(brightness uint8, lit bool) actuator.Color {
	b := brightness
	var c actuator.Color
	switch p.Color {
	case "white":
		c = actuator.RGB(b, b, b)
	case "amber", "yellow":
		c = actuator.RGB(b, b, 0)
	case "red":
		c = actuator.RGB(b, 0, 0)
	case "green":
		c = actuator.RGB(0, b, 0)
	case "blue":
		c = actuator.RGB(0, 0, b)
	default:
		return actuator.Off
	}
	if p.Blink {
		return blink(c, lit)
	}
	return c
}

func (p Pattern) validate() error {
	switch p.Color {
	case "", "off", "white", "amber", "yellow", "red", "green", "blue":
		return nil
	}
	return fmt.Errorf("unknown light color %q", p.Color)
}

// SwitchGroup drives a set of pixels from a switch channel.
// The channel's zone picks a pattern; an optional companion channel sets brightness.
type SwitchGroup struct {
	Name              string  `yaml:"name"`
	Pixels            []int   `yaml:"pixels"`
	Channel           int     `yaml:"channel"`
	BrightnessChannel *int    `yaml:"brightness_channel,omitempty"`
	MinBrightness     uint8   `yaml:"min_brightness"`
	MaxBrightness     uint8   `yaml:"max_brightness"`
	Lower             int     `yaml:"lower"`
	Upper             int     `yaml:"upper"`
	Above             Pattern `yaml:"above"`
	Center            Pattern `yaml:"center"`
	Below             Pattern `yaml:"below"`
}

// Thresholds returns the zone boundaries, defaulting to halfway between center and each end
func (g SwitchGroup) Thresholds() (lower, upper int) {
	lower, upper = g.Lower, g.Upper
	if lower == 0 {
		lower = mapper.ZoneLowerDefault
	}
	if upper == 0 {
		upper = mapper.ZoneUpperDefault
	}
	return lower, upper
}

// Brightness returns the group brightness for the current frame
func (g SwitchGroup) Brightness(frame protocol.ChannelFrame) uint8 {
	lo, hi := g.MinBrightness, g.MaxBrightness
	if lo == 0 && hi == 0 {
		lo, hi = protocol.LED_BRIGHTNESS_MIN, protocol.LED_BRIGHTNESS_MAX
	}
	if g.BrightnessChannel == nil {
		return max(lo, hi)
	}
	return mapper.Brightness(frame.Value(*g.BrightnessChannel), lo, hi)
}

// Pattern returns the pattern selected by the switch channel
func (g SwitchGroup) Pattern(frame protocol.ChannelFrame) Pattern {
	lower, upper := g.Thresholds()
	switch mapper.Classify(frame.Value(g.Channel), lower, upper) {
	case mapper.ZoneAbove:
		return g.Above
	case mapper.ZoneBelow:
		return g.Below
	default:
		return g.Center
	}
}

// Render writes the group's color into pixels
func (g SwitchGroup) Render(pixels []actuator.Color, frame protocol.ChannelFrame, lit bool) {
	c := g.Pattern(frame).Render(g.Brightness(frame), lit)
	for _, i := range g.Pixels {
		if i >= 0 && i < len(pixels) {
			pixels[i] = c
		}
	}
}

// Validate checks channel indices, thresholds and patterns
func (g SwitchGroup) Validate(pixelCount int) error {
	if g.Channel < 0 || g.Channel >= protocol.CHANNEL_COUNT {
		return fmt.Errorf("light group %q: channel %d out of range", g.Name, g.Channel)
	}
	if g.BrightnessChannel != nil && (*g.BrightnessChannel < 0 || *g.BrightnessChannel >= protocol.CHANNEL_COUNT) {
		return fmt.Errorf("light group %q: brightness channel %d out of range", g.Name, *g.BrightnessChannel)
	}
	if lower, upper := g.Thresholds(); lower > upper {
		return fmt.Errorf("light group %q: lower threshold %d above upper %d", g.Name, lower, upper)
	}
	for _, i := range g.Pixels {
		if i < 0 || i >= pixelCount {
			return fmt.Errorf("light group %q: pixel %d out of range", g.Name, i)
		}
	}
	for _, p := range []Pattern{g.Above, g.Center, g.Below} {
		if err := p.validate(); err != nil {
			return fmt.Errorf("light group %q: %w", g.Name, err)
		}
	}
	return nil
}

// PackedPixel drives one pixel directly from one channel in RGB343 form
type PackedPixel struct {
	Pixel   int `yaml:"pixel"`
	Channel int `yaml:"channel"`
}

// Render writes the decoded color
func (p PackedPixel) Render(pixels []actuator.Color, frame protocol.ChannelFrame) {
	if p.Pixel >= 0 && p.Pixel < len(pixels) {
		pixels[p.Pixel] = mapper.PackedColor(frame.Value(p.Channel), protocol.CRSF_CHANNEL_VALUE_MIN)
	}
}
