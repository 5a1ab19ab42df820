package network

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/charmbracelet/log"

	"github.com/cyberbrick-rc/brickrx/internal/protocol"
)

// readSlice bounds each blocking read so cancellation is noticed promptly
const readSlice = 100 * time.Millisecond

// maxDatagram is the largest ESP-NOW payload plus headroom
const maxDatagram = 512

// UDPConfig configures a UDP bridge transport
type UDPConfig struct {
	Listen    string // local address, e.g. ":7474"
	Broadcast string // destination for bind beacons, e.g. "255.255.255.255:7475"
	Identity  protocol.Identity
}

// UDPTransport receives channel packets forwarded as UDP datagrams by an
// ESP-NOW bridge or a simulator. Each datagram carries one radio payload.
type UDPTransport struct {
	config    UDPConfig
	socket    *UDPSocket
	broadcast *net.UDPAddr
	buffer    []byte
	log       *log.Logger
}

// NewUDPTransport binds the listen address
func NewUDPTransport(config UDPConfig, logger *log.Logger) (*UDPTransport, error) {
	bcast, err := net.ResolveUDPAddr("udp4", config.Broadcast)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve broadcast address %s: %w", config.Broadcast, err)
	}

	t := &UDPTransport{
		config:    config,
		socket:    NewUDPSocket(config.Listen, logger),
		broadcast: bcast,
		buffer:    make([]byte, maxDatagram),
		log:       logger,
	}
	if err := t.socket.Open(); err != nil {
		return nil, err
	}
	return t, nil
}

// Receive waits up to timeout for one datagram
func (t *UDPTransport) Receive(ctx context.Context, timeout time.Duration) (Packet, error) {
	deadline := time.Now().Add(timeout)
	for {
		if err := ctx.Err(); err != nil {
			return Packet{}, err
		}

		slice := time.Now().Add(readSlice)
		if slice.After(deadline) {
			slice = deadline
		}

		n, addr, err := t.socket.Read(t.buffer, slice)
		switch {
		case errors.Is(err, ErrTimeout):
			if !time.Now().Before(deadline) {
				return Packet{}, ErrTimeout
			}
			continue
		case err != nil:
			return Packet{}, &TransportError{Op: "receive", Err: err}
		}

		payload := make([]byte, n)
		copy(payload, t.buffer[:n])
		return Packet{Sender: addr.String(), Payload: payload}, nil
	}
}

// Broadcast sends payload to the configured broadcast address
func (t *UDPTransport) Broadcast(payload []byte) error {
	if err := t.socket.Write(payload, t.broadcast); err != nil {
		return &TransportError{Op: "broadcast", Err: err}
	}
	return nil
}

// Reset closes and rebinds the socket, discarding anything queued
func (t *UDPTransport) Reset(ctx context.Context) error {
	if err := t.socket.Close(); err != nil {
		t.log.Warn("Failed to close UDP socket during reset", "err", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := t.socket.Open(); err != nil {
		return &TransportError{Op: "reset", Err: err}
	}
	return nil
}

// Identity returns the configured receiver identity
func (t *UDPTransport) Identity() protocol.Identity {
	return t.config.Identity
}

// LocalAddr returns the bound address
func (t *UDPTransport) LocalAddr() *net.UDPAddr {
	return t.socket.LocalAddr()
}

// Close releases the socket
func (t *UDPTransport) Close() error {
	return t.socket.Close()
}

// InterfaceIdentity returns the hardware address of the named interface, or
// of the first non-loopback interface with an Ethernet-style address when name is empty.
func InterfaceIdentity(name string) (protocol.Identity, error) {
	if name != "" {
		iface, err := net.InterfaceByName(name)
		if err != nil {
			return protocol.Identity{}, fmt.Errorf("failed to find interface %s: %w", name, err)
		}
		return protocol.IdentityFromHardwareAddr(iface.HardwareAddr)
	}

	ifaces, err := net.Interfaces()
	if err != nil {
		return protocol.Identity{}, fmt.Errorf("failed to list interfaces: %w", err)
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 || len(iface.HardwareAddr) != protocol.IDENTITY_LENGTH {
			continue
		}
		return protocol.IdentityFromHardwareAddr(iface.HardwareAddr)
	}
	return protocol.Identity{}, errors.New("no interface with a hardware address")
}
