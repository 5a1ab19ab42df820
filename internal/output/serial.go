package output

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"github.com/cyberbrick-rc/brickrx/internal/actuator"
	"github.com/cyberbrick-rc/brickrx/internal/network"
)

// EncodeCommand serializes cmd as the body of an actuator frame:
// counts (servos, motors, pixels), servo ticks and motor A/B duties as
// uint16 little-endian, then the status and pixel colors as RGB triplets.
func EncodeCommand(cmd actuator.Command) ([]byte, error) {
	size := 3 + 2*len(cmd.Servos) + 4*len(cmd.Motors) + 3 + 3*len(cmd.Pixels)
	if size > network.BRIDGE_MAX_BODY {
		return nil, fmt.Errorf("actuator command of %d bytes exceeds frame body", size)
	}

	body := make([]byte, 0, size)
	body = append(body, byte(len(cmd.Servos)), byte(len(cmd.Motors)), byte(len(cmd.Pixels)))
	for _, s := range cmd.Servos {
		body = binary.LittleEndian.AppendUint16(body, s)
	}
	for _, m := range cmd.Motors {
		body = binary.LittleEndian.AppendUint16(body, m.A)
		body = binary.LittleEndian.AppendUint16(body, m.B)
	}
	body = append(body, cmd.Status.R, cmd.Status.G, cmd.Status.B)
	for _, p := range cmd.Pixels {
		body = append(body, p.R, p.G, p.B)
	}
	return body, nil
}

// SerialDriver streams every command to a PWM and pixel co-processor
type SerialDriver struct {
	w   io.WriteCloser
	log *log.Logger
}

// OpenSerialDriver opens the co-processor UART
func OpenSerialDriver(device string, baud int, logger *log.Logger) (*SerialDriver, error) {
	port, err := network.OpenSerialPort(device, baud)
	if err != nil {
		return nil, err
	}
	logger.Debug("Actuator co-processor ready", "device", device, "baud", baud)
	return NewSerialDriver(port, logger), nil
}

// NewSerialDriver writes frames to w
func NewSerialDriver(w io.WriteCloser, logger *log.Logger) *SerialDriver {
	return &SerialDriver{w: w, log: logger}
}

// Apply writes one actuator frame. Every cycle is sent so the co-processor
// can run its own watchdog on the frame rate.
func (d *SerialDriver) Apply(cmd actuator.Command) error {
	body, err := EncodeCommand(cmd)
	if err != nil {
		return err
	}
	frame, err := network.EncodeBridgeFrame(network.BRIDGE_TYPE_ACTUATORS, body)
	if err != nil {
		return err
	}
	if _, err := d.w.Write(frame); err != nil {
		return fmt.Errorf("failed to write actuator frame: %w", err)
	}
	return nil
}

// Close closes the port
func (d *SerialDriver) Close() error {
	return d.w.Close()
}
