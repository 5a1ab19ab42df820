package network

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"go.bug.st/serial"

	"github.com/cyberbrick-rc/brickrx/internal/protocol"
)

// SerialPort is the subset of go.bug.st/serial.Port used by the bridge transport
type SerialPort interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
	ResetInputBuffer() error
}

// OpenSerialPort opens device at baud, 8N1
func OpenSerialPort(device string, baud int) (SerialPort, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(device, mode)
	if err != nil {
		return nil, &TransportError{Op: "open " + device, Err: err}
	}
	return port, nil
}

// SerialConfig configures a serial bridge transport
type SerialConfig struct {
	Device   string
	BaudRate int
	Identity protocol.Identity
}

// SerialTransport talks to an ESP-NOW bridge dongle over a UART
type SerialTransport struct {
	config SerialConfig
	open   func() (SerialPort, error)
	port   SerialPort
	ring   *RingBuffer
	buffer []byte
	timer  *Timer
	log    *log.Logger
}

// NewSerialTransport opens the bridge device
func NewSerialTransport(config SerialConfig, logger *log.Logger) (*SerialTransport, error) {
	return newSerialTransport(config, func() (SerialPort, error) {
		return OpenSerialPort(config.Device, config.BaudRate)
	}, logger)
}

func newSerialTransport(config SerialConfig, open func() (SerialPort, error), logger *log.Logger) (*SerialTransport, error) {
	port, err := open()
	if err != nil {
		return nil, err
	}
	return &SerialTransport{
		config: config,
		open:   open,
		port:   port,
		ring:   NewRingBuffer(4*(BRIDGE_HEADER_BYTES+BRIDGE_MAX_BODY+1), "serial-bridge"),
		buffer: make([]byte, 256),
		timer:  NewTimer(0),
		log:    logger,
	}, nil
}

// Receive waits up to timeout for one received-packet frame
func (t *SerialTransport) Receive(ctx context.Context, timeout time.Duration) (Packet, error) {
	if t.port == nil {
		return Packet{}, &TransportError{Op: "receive", Err: ErrClosed}
	}

	t.timer.SetTimeout(timeout)
	t.timer.Start()
	defer t.timer.Stop()

	for {
		if pkt, ok := t.nextPacket(); ok {
			return pkt, nil
		}
		if err := ctx.Err(); err != nil {
			return Packet{}, err
		}
		if t.timer.HasExpired() {
			return Packet{}, ErrTimeout
		}

		if err := t.port.SetReadTimeout(min(t.timer.Remaining(), readSlice)); err != nil {
			return Packet{}, &TransportError{Op: "receive", Err: err}
		}
		n, err := t.port.Read(t.buffer)
		if err != nil {
			return Packet{}, &TransportError{Op: "receive", Err: err}
		}
		if n > 0 && !t.ring.AddData(t.buffer[:n]) {
			t.log.Warn("Serial bridge buffer overflow", "dropped", t.ring.DataSize())
			t.ring.Clear()
			t.ring.AddData(t.buffer[:n])
		}
	}
}

func (t *SerialTransport) nextPacket() (Packet, bool) {
	for {
		frame, dropped, ok := NextBridgeFrame(t.ring)
		if dropped > 0 {
			t.log.Debug("Discarded unframed bridge bytes", "bytes", dropped)
		}
		if !ok {
			return Packet{}, false
		}
		if frame.Type != BRIDGE_TYPE_RECEIVED {
			t.log.Debug("Ignoring bridge frame", "type", frame.Type)
			continue
		}
		pkt, err := frame.ReceivedPacket()
		if err != nil {
			t.log.Debug("Ignoring bridge frame", "err", err)
			continue
		}
		return pkt, true
	}
}

func (t *SerialTransport) write(frameType byte, body []byte) error {
	if t.port == nil {
		return ErrClosed
	}
	frame, err := EncodeBridgeFrame(frameType, body)
	if err != nil {
		return err
	}
	_, err = t.port.Write(frame)
	return err
}

// Broadcast asks the bridge to broadcast payload
func (t *SerialTransport) Broadcast(payload []byte) error {
	if err := t.write(BRIDGE_TYPE_BROADCAST, payload); err != nil {
		return &TransportError{Op: "broadcast", Err: err}
	}
	return nil
}

// Reset asks the bridge to recreate its radio session, then reopens the port
func (t *SerialTransport) Reset(ctx context.Context) error {
	if err := t.write(BRIDGE_TYPE_RESET, nil); err != nil {
		t.log.Debug("Failed to send bridge reset", "err", err)
	}
	if t.port != nil {
		if err := t.port.Close(); err != nil {
			t.log.Debug("Failed to close serial port during reset", "err", err)
		}
		t.port = nil
	}
	t.ring.Clear()

	if err := ctx.Err(); err != nil {
		return err
	}
	port, err := t.open()
	if err != nil {
		return &TransportError{Op: "reset", Err: err}
	}
	if err := port.ResetInputBuffer(); err != nil {
		t.log.Debug("Failed to flush serial input", "err", err)
	}
	t.port = port
	return nil
}

// Identity returns the configured receiver identity
func (t *SerialTransport) Identity() protocol.Identity {
	return t.config.Identity
}

// Close closes the port
func (t *SerialTransport) Close() error {
	if t.port == nil {
		return nil
	}
	err := t.port.Close()
	t.port = nil
	return err
}
