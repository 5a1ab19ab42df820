// Package mapper converts raw channel values into actuator units.
// Every function here is pure.
package mapper

import (
	"math"

	"github.com/cyberbrick-rc/brickrx/internal/actuator"
	"github.com/cyberbrick-rc/brickrx/internal/protocol"
)

// Range is a three-point output range with an exact midpoint
type Range struct {
	Min int `yaml:"min"`
	Mid int `yaml:"mid"`
	Max int `yaml:"max"`
}

// ServoRange returns a servo range centered on 1.5ms
func ServoRange(minTicks, maxTicks int) Range {
	return Range{Min: minTicks, Mid: protocol.SERVO_MIDPOINT_TICKS, Max: maxTicks}
}

// ChannelRange is the raw channel domain
var ChannelRange = Range{
	Min: protocol.CRSF_CHANNEL_VALUE_MIN,
	Mid: protocol.CRSF_CHANNEL_VALUE_MID,
	Max: protocol.CRSF_CHANNEL_VALUE_MAX,
}

// MapRange interpolates value from the raw range onto the output range.
// The two half-ranges are scaled independently so rawMid always lands on outMid.
// The input is clamped to [rawMin, rawMax]; outMin is clamped to at most outMid
// and outMax to at least outMid. Results truncate toward outMid.
func MapRange(value, rawMin, rawMid, rawMax, outMin, outMid, outMax int) int {
	outMin = min(outMin, outMid)
	outMax = max(outMax, outMid)
	value = max(rawMin, min(value, rawMax))

	switch {
	case value > rawMid && rawMax > rawMid:
		return outMid + (value-rawMid)*(outMax-outMid)/(rawMax-rawMid)
	case value < rawMid && rawMid > rawMin:
		return outMid - (rawMid-value)*(outMid-outMin)/(rawMid-rawMin)
	default:
		return outMid
	}
}

// Map applies MapRange from the channel domain onto r
func (r Range) Map(value int) int {
	return MapRange(value, ChannelRange.Min, ChannelRange.Mid, ChannelRange.Max, r.Min, r.Mid, r.Max)
}

// Mirror reflects v around the range midpoint
func (r Range) Mirror(v int) int {
	return 2*r.Mid - v
}

// InDeadzone reports whether value lies strictly within deadzone of mid.
// The edges themselves already drive.
func InDeadzone(value, mid, deadzone int) bool {
	d := value - mid
	return d > -deadzone && d < deadzone
}

// DriveGain returns the gain that maps full deflection (max - mid) onto maxDuty
func DriveGain(mid, max int, maxDuty uint16) float64 {
	if max <= mid {
		return 0
	}
	return float64(maxDuty) / float64(max-mid)
}

// DefaultDriveGain is DriveGain over the channel domain at full 16-bit scale
func DefaultDriveGain() float64 {
	return DriveGain(protocol.CRSF_CHANNEL_VALUE_MID, protocol.CRSF_CHANNEL_VALUE_MAX, protocol.FULLSCALE_16BIT)
}

// MotorDrive converts a channel value into a bidirectional duty pair.
// Inside the deadzone both outputs are zero. Below mid drives output A,
// above mid drives output B, with magnitude min(round(gain*|value-mid|), maxDuty).
func MotorDrive(value, mid, deadzone int, gain float64, maxDuty uint16) actuator.Duty {
	if InDeadzone(value, mid, deadzone) {
		return actuator.Duty{}
	}

	d := value - mid
	level := math.Round(gain * math.Abs(float64(d)))
	level = max(0, min(level, float64(maxDuty)))

	if d < 0 {
		return actuator.DutyA(uint16(level))
	}
	return actuator.DutyB(uint16(level))
}

// PackedColor decodes a single channel into a full RGB pixel.
// The channel is normalized onto 10 bits and split 3/4/3 into red, green and blue.
func PackedColor(value, offset int) actuator.Color {
	// 1023/1638 reduces to 5/8
	adjusted := (value - offset) * 5 / 8
	adjusted = max(0, min(adjusted, 1023))

	r := min((adjusted&0x380)>>2, 255)
	g := min((adjusted&0x078)<<1, 255)
	b := min((adjusted&0x007)<<5, 255)
	return actuator.RGB(uint8(r), uint8(g), uint8(b))
}

// Brightness scales a channel linearly onto [lo, hi]
func Brightness(value int, lo, hi uint8) uint8 {
	if hi < lo {
		lo, hi = hi, lo
	}
	v := int(protocol.ClampChannel(value)) - protocol.CRSF_CHANNEL_VALUE_MIN
	span := protocol.CRSF_CHANNEL_VALUE_MAX - protocol.CRSF_CHANNEL_VALUE_MIN
	return uint8(int(lo) + v*int(hi-lo)/span)
}
