package session

import (
	"time"

	"github.com/cyberbrick-rc/brickrx/internal/protocol"
)

// Outcome classifies what one control cycle did
type Outcome int

const (
	OutcomeFrame Outcome = iota
	OutcomeMalformed
	OutcomeTimeout
	OutcomeTransportError
	OutcomeBind
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFrame:
		return "frame"
	case OutcomeMalformed:
		return "malformed"
	case OutcomeTimeout:
		return "timeout"
	case OutcomeTransportError:
		return "transport_error"
	case OutcomeBind:
		return "bind"
	default:
		return "unknown"
	}
}

// Resets reports whether the outcome ends with a radio session reset
func (o Outcome) Resets() bool {
	return o == OutcomeTimeout || o == OutcomeTransportError || o == OutcomeBind
}

// Observer is notified synchronously from the control loop.
// Implementations must return quickly and never block.
type Observer interface {
	OnTransition(from, to protocol.LinkState, at time.Time)
	OnCycle(outcome Outcome, at time.Time)
}

// FrameHook receives every valid frame after its command has been applied
type FrameHook func(at time.Time, sender string, frame protocol.ChannelFrame)
