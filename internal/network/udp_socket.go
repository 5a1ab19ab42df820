package network

import (
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/charmbracelet/log"
)

// UDPSocket is a bound UDP socket with deadline-based reads
type UDPSocket struct {
	conn    *net.UDPConn
	address string
	log     *log.Logger
}

// NewUDPSocket creates a socket that will bind to address ("host:port", host may be empty)
func NewUDPSocket(address string, logger *log.Logger) *UDPSocket {
	return &UDPSocket{
		address: address,
		log:     logger,
	}
}

// Open binds the socket
func (s *UDPSocket) Open() error {
	if s.conn != nil {
		return nil
	}

	addr, err := net.ResolveUDPAddr("udp4", s.address)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", s.address, err)
	}

	conn, err := net.ListenUDP("udp4", addr)
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", s.address, err)
	}
	s.conn = conn

	s.log.Debug("UDP socket bound", "address", conn.LocalAddr().String())
	return nil
}

// LocalAddr returns the bound address, or nil when closed
func (s *UDPSocket) LocalAddr() *net.UDPAddr {
	if s.conn == nil {
		return nil
	}
	return s.conn.LocalAddr().(*net.UDPAddr)
}

// Read waits until the deadline for one datagram.
// It returns ErrTimeout when nothing arrived in time.
func (s *UDPSocket) Read(buffer []byte, deadline time.Time) (int, *net.UDPAddr, error) {
	if s.conn == nil {
		return 0, nil, ErrClosed
	}

	if err := s.conn.SetReadDeadline(deadline); err != nil {
		return 0, nil, err
	}

	n, addr, err := s.conn.ReadFromUDP(buffer)
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return 0, nil, ErrTimeout
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return 0, nil, ErrTimeout
		}
		return 0, nil, err
	}

	return n, addr, nil
}

// Write sends data to addr
func (s *UDPSocket) Write(buffer []byte, addr *net.UDPAddr) error {
	if s.conn == nil {
		return ErrClosed
	}

	_, err := s.conn.WriteToUDP(buffer, addr)
	return err
}

// Close closes the socket
func (s *UDPSocket) Close() error {
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	s.log.Debug("UDP socket closed", "address", s.address)
	return err
}
