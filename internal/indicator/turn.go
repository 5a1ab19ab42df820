package indicator

import (
	"fmt"

	"github.com/cyberbrick-rc/brickrx/internal/actuator"
	"github.com/cyberbrick-rc/brickrx/internal/mapper"
)

// Motion summarizes the drive inputs that steering-linked lights depend on
type Motion struct {
	SteerTicks  int // mapped steering pulse before any servo reversal
	SteerMid    int
	Throttle    int // raw throttle channel
	ThrottleMid int
	Deadzone    int
}

// Side is the active turn signal
type Side int

const (
	SideNone Side = iota
	SideLeft
	SideRight
)

func (s Side) String() string {
	switch s {
	case SideLeft:
		return "left"
	case SideRight:
		return "right"
	default:
		return "none"
	}
}

// Gear is the drive direction implied by the throttle
type Gear int

const (
	GearNeutral Gear = iota
	GearReverse
	GearForward
)

// TurnSignals drives four corner pixels as head, tail, brake, reverse and turn lights
type TurnSignals struct {
	FrontLeft  int `yaml:"front_left"`
	FrontRight int `yaml:"front_right"`
	RearLeft   int `yaml:"rear_left"`
	RearRight  int `yaml:"rear_right"`
	Threshold  int `yaml:"threshold"` // servo ticks past midpoint before signalling
}

// Side returns which turn signal the steering selects
func (ts TurnSignals) Side(m Motion) Side {
	switch {
	case m.SteerTicks > m.SteerMid+ts.Threshold:
		return SideRight
	case m.SteerTicks < m.SteerMid-ts.Threshold:
		return SideLeft
	default:
		return SideNone
	}
}

// Gear returns the throttle state, neutral inside the motor deadzone
func (ts TurnSignals) Gear(m Motion) Gear {
	switch {
	case mapper.InDeadzone(m.Throttle, m.ThrottleMid, m.Deadzone):
		return GearNeutral
	case m.Throttle < m.ThrottleMid:
		return GearReverse
	default:
		return GearForward
	}
}

// Static returns the front and rear colors for a gear with no turn signal
func Static(g Gear) (front, rear actuator.Color) {
	switch g {
	case GearReverse:
		return Parking, Reverse
	case GearForward:
		return Headlight, Tail
	default:
		return Parking, Brake
	}
}

// Render writes all four corners. The signalling side blinks on both of its
// pixels; during the dark phase its front is off and its rear keeps the gear color.
func (ts TurnSignals) Render(pixels []actuator.Color, m Motion, lit bool) {
	front, rear := Static(ts.Gear(m))
	set := func(i int, c actuator.Color) {
		if i >= 0 && i < len(pixels) {
			pixels[i] = c
		}
	}

	set(ts.FrontLeft, front)
	set(ts.FrontRight, front)
	set(ts.RearLeft, rear)
	set(ts.RearRight, rear)

	var f, r int
	switch ts.Side(m) {
	case SideRight:
		f, r = ts.FrontRight, ts.RearRight
	case SideLeft:
		f, r = ts.FrontLeft, ts.RearLeft
	default:
		return
	}
	if lit {
		set(f, Blinker)
		set(r, Blinker)
	} else {
		set(f, actuator.Off)
	}
}

// Validate checks that every corner is a distinct pixel
func (ts TurnSignals) Validate(pixelCount int) error {
	seen := map[int]bool{}
	for _, i := range []int{ts.FrontLeft, ts.FrontRight, ts.RearLeft, ts.RearRight} {
		if i < 0 || i >= pixelCount {
			return fmt.Errorf("turn signal pixel %d out of range", i)
		}
		if seen[i] {
			return fmt.Errorf("turn signal pixel %d used twice", i)
		}
		seen[i] = true
	}
	if ts.Threshold < 0 {
		return fmt.Errorf("turn signal threshold %d is negative", ts.Threshold)
	}
	return nil
}
