package session

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyberbrick-rc/brickrx/internal/actuator"
	"github.com/cyberbrick-rc/brickrx/internal/indicator"
	"github.com/cyberbrick-rc/brickrx/internal/network"
	"github.com/cyberbrick-rc/brickrx/internal/profile"
	"github.com/cyberbrick-rc/brickrx/internal/protocol"
	"github.com/cyberbrick-rc/brickrx/internal/vehicle"
)

type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return nil
}

// step is one scripted Receive result
type step struct {
	after   time.Duration
	payload []byte
	err     error
}

type fakeTransport struct {
	clock      *fakeClock
	steps      []step
	broadcasts [][]byte
	resets     int
	id         protocol.Identity

	// until, when set, cancels the run once the clock reaches it
	until  time.Time
	cancel context.CancelFunc
}

func (t *fakeTransport) Receive(ctx context.Context, timeout time.Duration) (network.Packet, error) {
	if len(t.steps) > 0 {
		s := t.steps[0]
		t.steps = t.steps[1:]
		t.clock.now = t.clock.now.Add(s.after)
		if s.err != nil {
			return network.Packet{}, s.err
		}
		return network.Packet{Sender: "aa:bb:cc:dd:ee:ff", Payload: s.payload}, nil
	}

	if !t.until.IsZero() && t.clock.now.Add(timeout).After(t.until) {
		t.clock.now = t.until
		t.cancel()
		return network.Packet{}, ctx.Err()
	}
	t.clock.now = t.clock.now.Add(timeout)
	return network.Packet{}, network.ErrTimeout
}

func (t *fakeTransport) Broadcast(payload []byte) error {
	t.broadcasts = append(t.broadcasts, payload)
	return nil
}

func (t *fakeTransport) Reset(ctx context.Context) error {
	t.resets++
	return nil
}

func (t *fakeTransport) Identity() protocol.Identity { return t.id }
func (t *fakeTransport) Close() error                { return nil }

type fakeDriver struct {
	applied []actuator.Command
	err     error
}

func (d *fakeDriver) Apply(cmd actuator.Command) error {
	d.applied = append(d.applied, cmd.Clone())
	return d.err
}

func (d *fakeDriver) Close() error { return nil }

func (d *fakeDriver) last() actuator.Command {
	return d.applied[len(d.applied)-1]
}

// heldFor reports held for the first n polls
type heldFor struct{ n int }

func (b *heldFor) Held() bool {
	if b.n > 0 {
		b.n--
		return true
	}
	return false
}

type transition struct{ from, to protocol.LinkState }

type recorder struct {
	transitions []transition
	outcomes    []Outcome
}

func (r *recorder) OnTransition(from, to protocol.LinkState, at time.Time) {
	r.transitions = append(r.transitions, transition{from, to})
}

func (r *recorder) OnCycle(outcome Outcome, at time.Time) {
	r.outcomes = append(r.outcomes, outcome)
}

type harness struct {
	ctrl      *Controller
	clock     *fakeClock
	transport *fakeTransport
	driver    *fakeDriver
	rec       *recorder
	engine    *vehicle.Engine
}

func newHarness(t *testing.T, name string, tweak func(*Options)) *harness {
	t.Helper()
	p, err := profile.Builtin(name)
	require.NoError(t, err)
	return newProfileHarness(t, p, tweak)
}

func newProfileHarness(t *testing.T, p profile.VehicleProfile, tweak func(*Options)) *harness {
	t.Helper()
	engine, err := vehicle.New(p)
	require.NoError(t, err)

	h := &harness{
		clock:  &fakeClock{now: time.Unix(1700000000, 0)},
		driver: &fakeDriver{},
		rec:    &recorder{},
		engine: engine,
	}
	h.transport = &fakeTransport{clock: h.clock, id: protocol.Identity{0x24, 0x6f, 0x28, 1, 2, 3}}

	opts := Options{
		Engine:      engine,
		Transport:   h.transport,
		Driver:      h.driver,
		Clock:       h.clock,
		Logger:      log.New(io.Discard),
		Observers:   []Observer{h.rec},
		BlinkPeriod: 2 * time.Second, // keep blinking indicators lit for the first second
	}
	if tweak != nil {
		tweak(&opts)
	}
	h.ctrl, err = New(opts)
	require.NoError(t, err)
	return h
}

func frameWith(values map[int]uint16) []byte {
	f := protocol.CenteredFrame()
	for ch, v := range values {
		f[ch] = v
	}
	return protocol.Encode(f)
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}

func TestController_StartsInFailsafe(t *testing.T) {
	h := newHarness(t, "truck", nil)
	assert.Equal(t, protocol.LinkStateFailsafe, h.ctrl.State())
	assert.Equal(t, h.engine.Initial(), h.ctrl.Command())
	assert.Empty(t, h.driver.applied, "nothing emitted before Run")
}

func TestController_SilenceEngagesFailsafe(t *testing.T) {
	h := newHarness(t, "truck", nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	start := h.clock.now
	h.transport.steps = []step{{after: 20 * time.Millisecond, payload: frameWith(map[int]uint16{2: 1811})}}
	h.transport.until = start.Add(620 * time.Millisecond) // 600ms of silence after the frame
	h.transport.cancel = cancel

	require.NoError(t, h.ctrl.Run(ctx))

	require.Len(t, h.driver.applied, 3)
	assert.Equal(t, h.engine.Initial(), h.driver.applied[0])
	assert.Equal(t, []actuator.Duty{actuator.DutyB(65535)}, h.driver.applied[1].Motors)

	last := h.driver.last()
	assert.True(t, last.Stopped())
	assert.Equal(t, []uint16{protocol.SERVO_MIDPOINT_TICKS}, last.Servos)
	assert.Equal(t, indicator.StatusFailsafe, last.Status)
	for _, px := range last.Pixels {
		assert.Equal(t, indicator.FailsafeWarning, px)
	}

	assert.Equal(t, 1, h.transport.resets)
	assert.Equal(t, protocol.LinkStateFailsafe, h.ctrl.State())
	assert.Equal(t, []transition{
		{protocol.LinkStateFailsafe, protocol.LinkStateActive},
		{protocol.LinkStateActive, protocol.LinkStateFailsafe},
	}, h.rec.transitions)
	assert.Equal(t, []Outcome{OutcomeFrame, OutcomeTimeout}, h.rec.outcomes)
}

func TestController_FullRightTurn(t *testing.T) {
	h := newHarness(t, "bulldozer", nil)
	h.transport.steps = []step{{after: 20 * time.Millisecond, payload: frameWith(map[int]uint16{0: 1811})}}

	outcome, err := h.ctrl.Cycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeFrame, outcome)
	assert.Equal(t, protocol.LinkStateActive, h.ctrl.State())

	cmd := h.driver.last()
	// the track mix halves (S-mid) +/- (mid-T), so full stick gives half of 65535
	assert.Equal(t, []actuator.Duty{actuator.DutyA(32727), actuator.DutyA(32727)}, cmd.Motors)
	assert.Equal(t, indicator.StatusAlive, cmd.Status)
	assert.Zero(t, h.transport.resets)
}

func TestController_TrackedTurnSignals(t *testing.T) {
	p := profile.Bulldozer()
	p.Lights.Pixels = 10
	p.Lights.Turn = &indicator.TurnSignals{FrontLeft: 6, FrontRight: 7, RearLeft: 8, RearRight: 9, Threshold: protocol.SERVO_TURN_THRESHOLD}
	h := newProfileHarness(t, p, nil)

	// full right, neutral throttle, every accessory channel at mid
	right := frameWith(map[int]uint16{0: 1811})
	h.transport.steps = []step{
		{after: 20 * time.Millisecond, payload: right},
		{after: 1100 * time.Millisecond, payload: right}, // dark half of the 2s blink
	}

	off := actuator.Off
	tests := []struct {
		name string
		want []actuator.Color
	}{
		{"lit", []actuator.Color{off, off, off, off, off, off, indicator.Parking, indicator.Blinker, indicator.Brake, indicator.Blinker}},
		{"dark", []actuator.Color{off, off, off, off, off, off, indicator.Parking, off, indicator.Brake, indicator.Brake}},
	}
	for _, tt := range tests {
		outcome, err := h.ctrl.Cycle(context.Background())
		require.NoError(t, err)
		require.Equal(t, OutcomeFrame, outcome)

		cmd := h.driver.last()
		rightTrack, leftTrack := cmd.Motors[0], cmd.Motors[1].Swap() // left track is wired inverted
		assert.Equal(t, actuator.DutyA(32727), rightTrack, tt.name)
		assert.Equal(t, actuator.DutyB(32727), leftTrack, tt.name)
		assert.Equal(t, tt.want, cmd.Pixels, tt.name)
	}
}

func TestController_MalformedHoldsOutputs(t *testing.T) {
	h := newHarness(t, "truck", nil)
	h.transport.steps = []step{
		{after: 20 * time.Millisecond, payload: frameWith(map[int]uint16{0: 1811, 2: 1500})},
		{after: 20 * time.Millisecond, payload: []byte{1, 2, 3}},
	}

	_, err := h.ctrl.Cycle(context.Background())
	require.NoError(t, err)
	good := h.driver.last()

	outcome, err := h.ctrl.Cycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeMalformed, outcome)
	assert.Equal(t, protocol.LinkStateActive, h.ctrl.State())

	held := h.driver.last()
	assert.Equal(t, good.Servos, held.Servos)
	assert.Equal(t, good.Motors, held.Motors)
	assert.Equal(t, good.Pixels, held.Pixels)
	assert.Equal(t, indicator.StatusMalformed, held.Status)
	assert.Zero(t, h.transport.resets)
}

func TestController_MalformedWhileFailsafe(t *testing.T) {
	h := newHarness(t, "truck", nil)
	h.transport.steps = []step{{after: 20 * time.Millisecond, payload: []byte{0xE0}}}

	outcome, err := h.ctrl.Cycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeMalformed, outcome)
	assert.Equal(t, protocol.LinkStateFailsafe, h.ctrl.State())
	assert.Equal(t, indicator.StatusFailsafe, h.driver.last().Status)
	assert.True(t, h.driver.last().Stopped())
}

func TestController_TransportError(t *testing.T) {
	h := newHarness(t, "truck", nil)
	h.transport.steps = []step{
		{after: 10 * time.Millisecond, payload: frameWith(map[int]uint16{2: 1811})},
		{after: 10 * time.Millisecond, err: &network.TransportError{Op: "receive", Err: errors.New("radio wedged")}},
	}

	_, err := h.ctrl.Cycle(context.Background())
	require.NoError(t, err)

	outcome, err := h.ctrl.Cycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeTransportError, outcome)
	assert.Equal(t, []time.Duration{500 * time.Millisecond}, h.clock.sleeps)
	assert.Equal(t, 1, h.transport.resets)

	// the pause outlasted the receive deadline, so the link failed safe
	assert.Equal(t, protocol.LinkStateFailsafe, h.ctrl.State())
	assert.True(t, h.driver.last().Stopped())
}

func TestController_TransportErrorWithinDeadline(t *testing.T) {
	h := newHarness(t, "truck", func(o *Options) { o.ErrorPause = 100 * time.Millisecond })
	h.transport.steps = []step{
		{after: 10 * time.Millisecond, payload: frameWith(map[int]uint16{2: 1811})},
		{after: 10 * time.Millisecond, err: errors.New("busy")},
	}

	_, _ = h.ctrl.Cycle(context.Background())
	outcome, err := h.ctrl.Cycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeTransportError, outcome)
	assert.Equal(t, 1, h.transport.resets)
	assert.Equal(t, protocol.LinkStateActive, h.ctrl.State())
	assert.False(t, h.driver.last().Stopped())
}

func TestController_BindMode(t *testing.T) {
	bind := &heldFor{n: 3}
	h := newHarness(t, "forklift", func(o *Options) { o.Bind = bind })

	outcome, err := h.ctrl.Cycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeBind, outcome)

	// first poll enters bind mode, the next two keep broadcasting
	want := h.transport.id.BindPayload()
	assert.Equal(t, [][]byte{want, want}, h.transport.broadcasts)
	assert.Equal(t, []time.Duration{500 * time.Millisecond, 500 * time.Millisecond}, h.clock.sleeps)
	assert.Equal(t, 1, h.transport.resets)

	assert.Equal(t, protocol.LinkStateFailsafe, h.ctrl.State())
	assert.Equal(t, []transition{
		{protocol.LinkStateFailsafe, protocol.LinkStateBinding},
		{protocol.LinkStateBinding, protocol.LinkStateFailsafe},
	}, h.rec.transitions)
	assert.Equal(t, h.engine.Initial(), h.driver.applied[0])
	assert.True(t, h.driver.last().Stopped())
}

func TestController_FrameHook(t *testing.T) {
	var got []protocol.ChannelFrame
	h := newHarness(t, "debug", func(o *Options) {
		o.FrameHook = func(at time.Time, sender string, frame protocol.ChannelFrame) {
			got = append(got, frame)
		}
	})
	h.transport.steps = []step{
		{after: time.Millisecond, payload: frameWith(map[int]uint16{15: 1811})},
		{after: time.Millisecond, payload: []byte{0}},
	}

	_, _ = h.ctrl.Cycle(context.Background())
	_, _ = h.ctrl.Cycle(context.Background())
	require.Len(t, got, 1)
	assert.Equal(t, uint16(1811), got[0][15])
}

func TestController_DriverErrorDoesNotStopLoop(t *testing.T) {
	h := newHarness(t, "truck", nil)
	h.driver.err = errors.New("i2c nak")
	h.transport.steps = []step{{after: time.Millisecond, payload: frameWith(nil)}}

	outcome, err := h.ctrl.Cycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeFrame, outcome)
	assert.Len(t, h.driver.applied, 1)
}

func TestController_CancelledCycle(t *testing.T) {
	h := newHarness(t, "truck", nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.ctrl.Cycle(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, h.driver.applied)
	assert.Zero(t, h.transport.resets)
}

func TestOutcome(t *testing.T) {
	tests := []struct {
		outcome Outcome
		name    string
		resets  bool
	}{
		{OutcomeFrame, "frame", false},
		{OutcomeMalformed, "malformed", false},
		{OutcomeTimeout, "timeout", true},
		{OutcomeTransportError, "transport_error", true},
		{OutcomeBind, "bind", true},
		{Outcome(42), "unknown", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.name, tt.outcome.String())
			assert.Equal(t, tt.resets, tt.outcome.Resets())
		})
	}
}
