package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedFrame is matched by every payload that cannot carry a full channel set
var ErrMalformedFrame = errors.New("malformed channel frame")

// MalformedFrameError reports the length of a rejected payload
type MalformedFrameError struct {
	Length int
}

func (e *MalformedFrameError) Error() string {
	return fmt.Sprintf("%v: %d bytes, need %d", ErrMalformedFrame, e.Length, CHANNEL_FRAME_BYTES)
}

// Unwrap allows errors.Is(err, ErrMalformedFrame)
func (e *MalformedFrameError) Unwrap() error {
	return ErrMalformedFrame
}

// ChannelFrame holds the 16 raw channel values of one packet
type ChannelFrame [CHANNEL_COUNT]uint16

// Decode parses a radio payload into a channel frame.
// Payloads shorter than 32 bytes are rejected; bytes past 32 are ignored.
// Values are returned as received, without clamping.
func Decode(payload []byte) (ChannelFrame, error) {
	var frame ChannelFrame
	if len(payload) < CHANNEL_FRAME_BYTES {
		return frame, &MalformedFrameError{Length: len(payload)}
	}

	for i := range frame {
		frame[i] = binary.LittleEndian.Uint16(payload[i*2:])
	}
	return frame, nil
}

// Encode serializes the frame into the 32-byte wire layout
func Encode(frame ChannelFrame) []byte {
	payload := make([]byte, CHANNEL_FRAME_BYTES)
	for i, v := range frame {
		binary.LittleEndian.PutUint16(payload[i*2:], v)
	}
	return payload
}

// CenteredFrame returns a frame with every channel at its midpoint
func CenteredFrame() ChannelFrame {
	var frame ChannelFrame
	for i := range frame {
		frame[i] = CRSF_CHANNEL_VALUE_MID
	}
	return frame
}

// Clamp returns a copy with every value limited to the valid channel range
func (f ChannelFrame) Clamp() ChannelFrame {
	for i, v := range f {
		f[i] = ClampChannel(int(v))
	}
	return f
}

// Value returns channel i as an int, or the midpoint for an out-of-range index
func (f ChannelFrame) Value(i int) int {
	if i < 0 || i >= CHANNEL_COUNT {
		return CRSF_CHANNEL_VALUE_MID
	}
	return int(f[i])
}

// Table renders the channels in four groups of four for monitor output
func (f ChannelFrame) Table() string {
	var sb strings.Builder
	for i, v := range f {
		if i > 0 && i%4 == 0 {
			sb.WriteString("| ")
		}
		fmt.Fprintf(&sb, "%-5d", v)
	}
	return strings.TrimRight(sb.String(), " ")
}

// ClampChannel limits a raw value to [CRSF_CHANNEL_VALUE_MIN, CRSF_CHANNEL_VALUE_MAX]
func ClampChannel(v int) uint16 {
	if v < CRSF_CHANNEL_VALUE_MIN {
		return CRSF_CHANNEL_VALUE_MIN
	}
	if v > CRSF_CHANNEL_VALUE_MAX {
		return CRSF_CHANNEL_VALUE_MAX
	}
	return uint16(v)
}
