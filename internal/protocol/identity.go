package protocol

import (
	"fmt"
	"net"
)

// Identity is the receiver's 6-byte radio hardware address
type Identity [IDENTITY_LENGTH]byte

// BroadcastIdentity addresses every peer on the radio channel
var BroadcastIdentity = Identity{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

// ParseIdentity parses a colon or dash separated hardware address
func ParseIdentity(s string) (Identity, error) {
	var id Identity
	hw, err := net.ParseMAC(s)
	if err != nil {
		return id, fmt.Errorf("failed to parse identity %q: %w", s, err)
	}
	if len(hw) != IDENTITY_LENGTH {
		return id, fmt.Errorf("identity %q has %d bytes, want %d", s, len(hw), IDENTITY_LENGTH)
	}
	copy(id[:], hw)
	return id, nil
}

// IdentityFromHardwareAddr converts an interface address
func IdentityFromHardwareAddr(hw net.HardwareAddr) (Identity, error) {
	var id Identity
	if len(hw) != IDENTITY_LENGTH {
		return id, fmt.Errorf("hardware address %v has %d bytes, want %d", hw, len(hw), IDENTITY_LENGTH)
	}
	copy(id[:], hw)
	return id, nil
}

// String formats the identity as aa:bb:cc:dd:ee:ff
func (id Identity) String() string {
	return net.HardwareAddr(id[:]).String()
}

// BindPayload is the beacon broadcast while binding: the raw identity bytes
func (id Identity) BindPayload() []byte {
	payload := make([]byte, IDENTITY_LENGTH)
	copy(payload, id[:])
	return payload
}

// IsZero reports whether the identity is unset
func (id Identity) IsZero() bool {
	return id == Identity{}
}
