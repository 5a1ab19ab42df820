// Package network provides the radio transports that carry channel packets
// from the handset bridge to the receiver.
package network

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cyberbrick-rc/brickrx/internal/protocol"
)

var (
	// ErrTimeout is returned by Receive when no packet arrives before the deadline
	ErrTimeout = errors.New("receive timeout")
	// ErrClosed is returned after Close
	ErrClosed = errors.New("transport closed")
)

// TransportError is a radio-layer failure other than a timeout
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Packet is one received radio payload
type Packet struct {
	Sender  string
	Payload []byte
}

// Transport is the radio session used by the receiver loop
type Transport interface {
	// Receive waits up to timeout for one packet
	Receive(ctx context.Context, timeout time.Duration) (Packet, error)
	// Broadcast sends payload to every listening peer
	Broadcast(payload []byte) error
	// Reset tears down and recreates the receive session
	Reset(ctx context.Context) error
	// Identity is the receiver's own radio address
	Identity() protocol.Identity
	Close() error
}
