// Package mixer combines steering and throttle channels into per-actuator targets.
package mixer

import (
	"github.com/cyberbrick-rc/brickrx/internal/actuator"
	"github.com/cyberbrick-rc/brickrx/internal/mapper"
	"github.com/cyberbrick-rc/brickrx/internal/protocol"
)

// Drive holds the motor transfer parameters shared by every motor of a profile
type Drive struct {
	Mid      int
	Deadzone int
	Gain     float64
	MaxDuty  uint16
}

// DefaultDrive is the stock 16-bit drive with a +/-50 deadzone
func DefaultDrive() Drive {
	return Drive{
		Mid:      protocol.CRSF_CHANNEL_VALUE_MID,
		Deadzone: protocol.CHANNEL_DEADZONE,
		Gain:     mapper.DefaultDriveGain(),
		MaxDuty:  protocol.FULLSCALE_16BIT,
	}
}

// Duty converts a channel-domain target into a duty pair
func (d Drive) Duty(value int) actuator.Duty {
	return mapper.MotorDrive(value, d.Mid, d.Deadzone, d.Gain, d.MaxDuty)
}

// TrackTargets computes left and right track targets in the channel domain.
// Throttle above mid drives both tracks forward; steering above mid turns right,
// speeding up the left track and slowing the right. Mirrored swaps the turn direction.
// Halving truncates toward mid so a pure turn gives both tracks equal magnitude.
func TrackTargets(steer, throttle, mid int, mirrored bool) (left, right int) {
	t := throttle - mid
	s := steer - mid
	if mirrored {
		s = -s
	}
	return mid + (t+s)/2, mid + (t-s)/2
}

// Tracked mixes steering and throttle into left and right track duties
func Tracked(steer, throttle int, d Drive, mirrored bool) (left, right actuator.Duty) {
	l, r := TrackTargets(steer, throttle, d.Mid, mirrored)
	return d.Duty(l), d.Duty(r)
}

// Steered maps steering onto a servo pulse and throttle onto a drive motor.
// Reverse mirrors the servo around its midpoint.
func Steered(steer, throttle int, servo mapper.Range, reverse bool, d Drive) (uint16, actuator.Duty) {
	return ServoTicks(steer, servo, reverse), d.Duty(throttle)
}

// ServoTicks maps a channel onto a servo range, optionally mirrored
func ServoTicks(value int, servo mapper.Range, reverse bool) uint16 {
	ticks := servo.Map(value)
	if reverse {
		ticks = servo.Mirror(ticks)
	}
	return uint16(max(0, min(ticks, protocol.FULLSCALE_16BIT)))
}
