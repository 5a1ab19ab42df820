package network

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/creack/pty"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyberbrick-rc/brickrx/internal/protocol"
)

type fakePort struct {
	mu      sync.Mutex
	in      bytes.Buffer
	out     bytes.Buffer
	closed  bool
	flushed int
	timeout time.Duration
	readErr error
}

func (p *fakePort) Read(b []byte) (int, error) {
	p.mu.Lock()
	if p.readErr != nil {
		defer p.mu.Unlock()
		return 0, p.readErr
	}
	if p.in.Len() == 0 {
		wait := min(p.timeout, 5*time.Millisecond)
		p.mu.Unlock()
		time.Sleep(wait)
		return 0, nil
	}
	defer p.mu.Unlock()
	return p.in.Read(b)
}

func (p *fakePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.out.Write(b)
}

func (p *fakePort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakePort) SetReadTimeout(t time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.timeout = t
	return nil
}

func (p *fakePort) ResetInputBuffer() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.flushed++
	p.in.Reset()
	return nil
}

func (p *fakePort) feed(b []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.in.Write(b)
}

func newFakeSerial(t *testing.T) (*SerialTransport, *[]*fakePort) {
	t.Helper()
	var ports []*fakePort
	open := func() (SerialPort, error) {
		p := &fakePort{}
		ports = append(ports, p)
		return p, nil
	}
	tr, err := newSerialTransport(SerialConfig{Identity: protocol.Identity{1, 2, 3, 4, 5, 6}}, open, log.New(io.Discard))
	require.NoError(t, err)
	return tr, &ports
}

func TestSerialTransport_Receive(t *testing.T) {
	tr, ports := newFakeSerial(t)
	port := (*ports)[0]

	port.feed([]byte{0x00, 0xFF})
	reset, _ := EncodeBridgeFrame(BRIDGE_TYPE_RESET, nil)
	port.feed(reset) // not a received packet, skipped
	port.feed(receivedFrame(t, []byte{0xA, 0xB, 0xC, 0xD, 0xE, 0xF}, []byte{1, 2, 3}))

	pkt, err := tr.Receive(context.Background(), 100*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "0a:0b:0c:0d:0e:0f", pkt.Sender)
	assert.Equal(t, []byte{1, 2, 3}, pkt.Payload)
}

func TestSerialTransport_Timeout(t *testing.T) {
	tr, _ := newFakeSerial(t)

	start := time.Now()
	_, err := tr.Receive(context.Background(), 30*time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestSerialTransport_Cancelled(t *testing.T) {
	tr, _ := newFakeSerial(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := tr.Receive(ctx, time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSerialTransport_ReadError(t *testing.T) {
	tr, ports := newFakeSerial(t)
	(*ports)[0].readErr = errors.New("device unplugged")

	_, err := tr.Receive(context.Background(), time.Second)
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "receive", te.Op)
	assert.NotErrorIs(t, err, ErrTimeout)
}

func TestSerialTransport_BroadcastAndReset(t *testing.T) {
	tr, ports := newFakeSerial(t)
	first := (*ports)[0]

	require.NoError(t, tr.Broadcast([]byte{9, 9}))
	want, _ := EncodeBridgeFrame(BRIDGE_TYPE_BROADCAST, []byte{9, 9})
	assert.Equal(t, want, first.out.Bytes())

	first.feed([]byte{BRIDGE_SYNC1}) // stale partial frame
	_, err := tr.Receive(context.Background(), 10*time.Millisecond)
	require.ErrorIs(t, err, ErrTimeout)

	require.NoError(t, tr.Reset(context.Background()))
	reset, _ := EncodeBridgeFrame(BRIDGE_TYPE_RESET, nil)
	assert.Equal(t, append(want, reset...), first.out.Bytes())
	assert.True(t, first.closed)

	require.Len(t, *ports, 2)
	second := (*ports)[1]
	assert.Equal(t, 1, second.flushed)
	assert.True(t, tr.ring.IsEmpty())

	assert.Equal(t, protocol.Identity{1, 2, 3, 4, 5, 6}, tr.Identity())
	require.NoError(t, tr.Close())
	assert.True(t, second.closed)

	_, err = tr.Receive(context.Background(), time.Millisecond)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestSerialTransport_Pty(t *testing.T) {
	ptmx, tty, err := pty.Open()
	if err != nil {
		t.Skipf("pty unavailable: %v", err)
	}
	defer ptmx.Close()
	defer tty.Close()

	tr, err := NewSerialTransport(SerialConfig{Device: tty.Name(), BaudRate: 115200}, log.New(io.Discard))
	if err != nil {
		t.Skipf("cannot open %s as a serial port: %v", tty.Name(), err)
	}
	defer tr.Close()

	_, err = ptmx.Write(receivedFrame(t, []byte{1, 1, 1, 1, 1, 1}, []byte{0x42}))
	require.NoError(t, err)

	pkt, err := tr.Receive(context.Background(), 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x42}, pkt.Payload)
}
