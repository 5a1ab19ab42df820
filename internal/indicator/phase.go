// Package indicator derives status and functional pixel colors from the link
// state, the blink phase and the current channels.
package indicator

import (
	"time"

	"github.com/cyberbrick-rc/brickrx/internal/actuator"
)

// Phase reports whether blinking indicators are lit at the given elapsed time.
// Within each period the first half, inclusive of its midpoint, is lit.
func Phase(elapsed, period time.Duration) bool {
	p := period.Milliseconds()
	if p <= 0 {
		return true
	}
	ms := elapsed.Milliseconds() % p
	if ms < 0 {
		ms += p
	}
	return 2*ms <= p
}

// Fixed indicator colors
var (
	StatusAlive     = actuator.RGB(0, 10, 0)
	StatusMalformed = actuator.RGB(8, 8, 0)
	StatusFailsafe  = actuator.RGB(10, 0, 0)
	FailsafeWarning = actuator.RGB(255, 0, 0)
	Parking         = actuator.RGB(32, 32, 32)
	Brake           = actuator.RGB(255, 0, 0)
	Reverse         = actuator.RGB(255, 255, 255)
	Headlight       = actuator.RGB(255, 255, 255)
	Tail            = actuator.RGB(32, 0, 0)
	Blinker         = actuator.RGB(255, 255, 0)
)

func blink(c actuator.Color, lit bool) actuator.Color {
	if lit {
		return c
	}
	return actuator.Off
}
