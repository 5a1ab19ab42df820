package protocol

// LinkState is the operating state of the radio link
type LinkState int

const (
	LinkStateFailsafe LinkState = iota // no valid packet within the receive deadline
	LinkStateActive                    // last receive attempt produced a packet
	LinkStateBinding                   // identity broadcast while the bind trigger is held
)

// String returns the lowercase state name used in logs and telemetry
func (s LinkState) String() string {
	switch s {
	case LinkStateFailsafe:
		return "failsafe"
	case LinkStateActive:
		return "active"
	case LinkStateBinding:
		return "binding"
	default:
		return "unknown"
	}
}
