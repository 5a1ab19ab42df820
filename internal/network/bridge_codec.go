package network

import (
	"errors"
	"fmt"

	"github.com/cyberbrick-rc/brickrx/internal/protocol"
)

// Serial bridge framing: sync (2) | type (1) | length (1) | body | crc8 (1).
// The CRC covers type, length and body.
const (
	BRIDGE_SYNC1        = 0xAA
	BRIDGE_SYNC2        = 0x55
	BRIDGE_HEADER_BYTES = 4
	BRIDGE_MAX_BODY     = 255
	BRIDGE_CRC_POLY     = 0xD5

	BRIDGE_TYPE_RECEIVED  = 0x01 // bridge -> host: sender identity + radio payload
	BRIDGE_TYPE_BROADCAST = 0x02 // host -> bridge: payload to broadcast
	BRIDGE_TYPE_RESET     = 0x03 // host -> bridge: recreate the radio session
	BRIDGE_TYPE_ACTUATORS = 0x10 // host -> output co-processor: actuator command
)

var errBridgeBodyTooLong = errors.New("bridge frame body too long")

// CRC8 computes CRC-8/DVB-S2 as used by CRSF links
func CRC8(data []byte) byte {
	var crc byte
	for _, b := range data {
		crc ^= b
		for i := 0; i < 8; i++ {
			if crc&0x80 != 0 {
				crc = (crc << 1) ^ BRIDGE_CRC_POLY
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

// EncodeBridgeFrame wraps body in a bridge frame of the given type
func EncodeBridgeFrame(frameType byte, body []byte) ([]byte, error) {
	if len(body) > BRIDGE_MAX_BODY {
		return nil, fmt.Errorf("%w: %d bytes", errBridgeBodyTooLong, len(body))
	}
	frame := make([]byte, 0, BRIDGE_HEADER_BYTES+len(body)+1)
	frame = append(frame, BRIDGE_SYNC1, BRIDGE_SYNC2, frameType, byte(len(body)))
	frame = append(frame, body...)
	frame = append(frame, CRC8(frame[2:]))
	return frame, nil
}

// BridgeFrame is one decoded frame
type BridgeFrame struct {
	Type byte
	Body []byte
}

// NextBridgeFrame extracts the next valid frame from rb. Bytes that cannot
// start a frame and frames with a bad CRC are dropped; dropped counts them.
// It returns false when no complete frame is buffered yet.
func NextBridgeFrame(rb *RingBuffer) (frame BridgeFrame, dropped int, ok bool) {
	header := make([]byte, BRIDGE_HEADER_BYTES)
	for rb.DataSize() >= BRIDGE_HEADER_BYTES {
		rb.Peek(header)
		if header[0] != BRIDGE_SYNC1 || header[1] != BRIDGE_SYNC2 {
			dropped += rb.Discard(1)
			continue
		}

		length := int(header[3])
		total := BRIDGE_HEADER_BYTES + length + 1
		if rb.DataSize() < total {
			return BridgeFrame{}, dropped, false
		}

		raw := make([]byte, total)
		rb.Peek(raw)
		if CRC8(raw[2:total-1]) != raw[total-1] {
			// resynchronize one byte past the bad sync word
			dropped += rb.Discard(1)
			continue
		}

		rb.Discard(total)
		return BridgeFrame{Type: header[2], Body: raw[BRIDGE_HEADER_BYTES : total-1]}, dropped, true
	}
	return BridgeFrame{}, dropped, false
}

// ReceivedPacket decodes a BRIDGE_TYPE_RECEIVED body
func (f BridgeFrame) ReceivedPacket() (Packet, error) {
	if f.Type != BRIDGE_TYPE_RECEIVED {
		return Packet{}, fmt.Errorf("bridge frame type 0x%02x is not a received packet", f.Type)
	}
	if len(f.Body) < protocol.IDENTITY_LENGTH {
		return Packet{}, fmt.Errorf("received packet body of %d bytes has no sender", len(f.Body))
	}
	var sender protocol.Identity
	copy(sender[:], f.Body[:protocol.IDENTITY_LENGTH])
	payload := make([]byte, len(f.Body)-protocol.IDENTITY_LENGTH)
	copy(payload, f.Body[protocol.IDENTITY_LENGTH:])
	return Packet{Sender: sender.String(), Payload: payload}, nil
}
