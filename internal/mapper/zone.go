package mapper

import "github.com/cyberbrick-rc/brickrx/internal/protocol"

// Zone is the position of a switch-like channel
type Zone int

const (
	ZoneCenter Zone = iota
	ZoneBelow
	ZoneAbove
)

func (z Zone) String() string {
	switch z {
	case ZoneBelow:
		return "below"
	case ZoneAbove:
		return "above"
	default:
		return "center"
	}
}

// Default switch thresholds: halfway between center and each end
const (
	ZoneLowerDefault = protocol.CRSF_CHANNEL_VALUE_MID - (protocol.CRSF_CHANNEL_VALUE_MID-protocol.CRSF_CHANNEL_VALUE_MIN)/2
	ZoneUpperDefault = protocol.CRSF_CHANNEL_VALUE_MID + (protocol.CRSF_CHANNEL_VALUE_MAX-protocol.CRSF_CHANNEL_VALUE_MID)/2
)

// Classify places value below lower, above upper, or in the center band
func Classify(value, lower, upper int) Zone {
	switch {
	case value > upper:
		return ZoneAbove
	case value < lower:
		return ZoneBelow
	default:
		return ZoneCenter
	}
}
