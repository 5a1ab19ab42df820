// Package session runs the receiver's link state machine: one bounded receive
// per cycle, failsafe on silence, radio session resets and bind mode.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"

	"github.com/cyberbrick-rc/brickrx/internal/actuator"
	"github.com/cyberbrick-rc/brickrx/internal/indicator"
	"github.com/cyberbrick-rc/brickrx/internal/logging"
	"github.com/cyberbrick-rc/brickrx/internal/network"
	"github.com/cyberbrick-rc/brickrx/internal/protocol"
	"github.com/cyberbrick-rc/brickrx/internal/vehicle"
)

// BindTrigger is the momentary control that requests bind mode
type BindTrigger interface {
	Held() bool
}

// Options wires a controller to its collaborators
type Options struct {
	Engine    *vehicle.Engine
	Transport network.Transport
	Driver    actuator.Driver
	Bind      BindTrigger // optional
	Clock     Clock       // defaults to SystemClock
	Logger    *log.Logger // defaults to log.Default()
	Observers []Observer
	FrameHook FrameHook

	ReceiveTimeout time.Duration
	ErrorPause     time.Duration
	BindInterval   time.Duration
	BlinkPeriod    time.Duration
}

// Controller owns the link state and every actuator output. It is not safe
// for concurrent use: Run, Cycle and State belong to one goroutine.
type Controller struct {
	engine    *vehicle.Engine
	transport network.Transport
	driver    actuator.Driver
	bind      BindTrigger
	clock     Clock
	log       *log.Logger
	diag      *logging.Limited
	observers []Observer
	hook      FrameHook

	receiveTimeout time.Duration
	errorPause     time.Duration
	bindInterval   time.Duration
	blinkPeriod    time.Duration

	state     protocol.LinkState
	command   actuator.Command
	started   time.Time
	lastFrame time.Time
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

// New builds a controller in the Failsafe state holding the engine's
// power-on command. Nothing is emitted until Run.
func New(opts Options) (*Controller, error) {
	switch {
	case opts.Engine == nil:
		return nil, errors.New("session: engine is required")
	case opts.Transport == nil:
		return nil, errors.New("session: transport is required")
	case opts.Driver == nil:
		return nil, errors.New("session: driver is required")
	}

	clock := opts.Clock
	if clock == nil {
		clock = SystemClock{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	now := clock.Now()
	return &Controller{
		engine:    opts.Engine,
		transport: opts.Transport,
		driver:    opts.Driver,
		bind:      opts.Bind,
		clock:     clock,
		log:       logger,
		diag:      logging.NewLimited(logger, time.Second, 5),
		observers: opts.Observers,
		hook:      opts.FrameHook,

		receiveTimeout: orDefault(opts.ReceiveTimeout, protocol.RECEIVE_TIMEOUT_MS*time.Millisecond),
		errorPause:     orDefault(opts.ErrorPause, protocol.ERROR_PAUSE_MS*time.Millisecond),
		bindInterval:   orDefault(opts.BindInterval, protocol.BIND_BROADCAST_MS*time.Millisecond),
		blinkPeriod:    orDefault(opts.BlinkPeriod, protocol.BLINK_PERIOD_MS*time.Millisecond),

		state:     protocol.LinkStateFailsafe,
		command:   opts.Engine.Initial(),
		started:   now,
		lastFrame: now,
	}, nil
}

// State returns the current link state
func (c *Controller) State() protocol.LinkState {
	return c.state
}

// Command returns a copy of the last command handed to the driver
func (c *Controller) Command() actuator.Command {
	return c.command.Clone()
}

// Run emits the power-on command and cycles until ctx is cancelled.
// Outputs are left as they are on return.
func (c *Controller) Run(ctx context.Context) error {
	c.log.Info("Receiver starting",
		"identity", c.transport.Identity(),
		"profile", c.engine.Profile().Name,
		"state", c.state)
	c.emit(c.command)

	for {
		if _, err := c.Cycle(ctx); err != nil {
			c.log.Info("Receiver stopping", "state", c.state)
			return nil
		}
	}
}

// Cycle runs one control cycle to completion. The only error it returns is
// the context's, after which the controller should not be cycled again.
func (c *Controller) Cycle(ctx context.Context) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return OutcomeTimeout, err
	}

	if c.bind != nil && c.bind.Held() {
		err := c.bindMode(ctx)
		c.notifyCycle(OutcomeBind)
		return OutcomeBind, err
	}

	pkt, err := c.transport.Receive(ctx, c.receiveTimeout)
	switch {
	case err == nil:
		outcome := c.packet(pkt)
		c.notifyCycle(outcome)
		return outcome, nil

	case ctx.Err() != nil:
		return OutcomeTimeout, ctx.Err()

	case errors.Is(err, network.ErrTimeout):
		c.timeout(ctx)
		c.notifyCycle(OutcomeTimeout)
		return OutcomeTimeout, ctx.Err()

	default:
		c.transportError(ctx, err)
		c.notifyCycle(OutcomeTransportError)
		return OutcomeTransportError, ctx.Err()
	}
}

func (c *Controller) lit(now time.Time) bool {
	return indicator.Phase(now.Sub(c.started), c.blinkPeriod)
}

func (c *Controller) packet(pkt network.Packet) Outcome {
	now := c.clock.Now()

	frame, err := protocol.Decode(pkt.Payload)
	if err != nil {
		c.diag.Warn("Malformed channel frame", "sender", pkt.Sender, "length", len(pkt.Payload))
		if c.state == protocol.LinkStateFailsafe {
			c.emit(c.engine.Failsafe(c.lit(now)))
		} else {
			c.emit(c.engine.Malformed(c.command, c.lit(now)))
		}
		return OutcomeMalformed
	}

	c.lastFrame = now
	c.transition(protocol.LinkStateActive, now)
	c.emit(c.engine.Compute(frame, c.command, c.lit(now)))
	if c.hook != nil {
		c.hook(now, pkt.Sender, frame)
	}
	return OutcomeFrame
}

func (c *Controller) timeout(ctx context.Context) {
	now := c.clock.Now()
	c.transition(protocol.LinkStateFailsafe, now)
	c.emit(c.engine.Failsafe(c.lit(now)))
	c.reset(ctx)
}

// transportError pauses and resets. The link only fails safe once the last
// valid frame is older than the receive timeout, as if nothing had arrived.
func (c *Controller) transportError(ctx context.Context, err error) {
	c.diag.Error("Radio receive failed", "err", err)

	if err := c.clock.Sleep(ctx, c.errorPause); err != nil {
		return
	}

	now := c.clock.Now()
	if now.Sub(c.lastFrame) >= c.receiveTimeout {
		c.transition(protocol.LinkStateFailsafe, now)
		c.emit(c.engine.Failsafe(c.lit(now)))
	}
	c.reset(ctx)
}

func (c *Controller) bindMode(ctx context.Context) error {
	id := c.transport.Identity()
	c.transition(protocol.LinkStateBinding, c.clock.Now())
	c.emit(c.engine.Initial())
	c.log.Info("Entering bind mode", "identity", id)

	beacon := id.BindPayload()
	for c.bind.Held() {
		if err := c.transport.Broadcast(beacon); err != nil {
			c.diag.Warn("Bind broadcast failed", "err", err)
		}
		if err := c.clock.Sleep(ctx, c.bindInterval); err != nil {
			return err
		}
	}

	c.log.Info("Leaving bind mode", "identity", id)
	c.reset(ctx)

	now := c.clock.Now()
	c.transition(protocol.LinkStateFailsafe, now)
	c.emit(c.engine.Failsafe(c.lit(now)))
	return ctx.Err()
}

func (c *Controller) reset(ctx context.Context) {
	if err := c.transport.Reset(ctx); err != nil && ctx.Err() == nil {
		c.diag.Error("Radio session reset failed", "err", err)
	}
}

func (c *Controller) transition(to protocol.LinkState, at time.Time) {
	from := c.state
	if from == to {
		return
	}
	c.state = to

	switch to {
	case protocol.LinkStateFailsafe:
		c.log.Warn("Link lost, failsafe engaged", "from", from, "since_last_frame", at.Sub(c.lastFrame).Round(time.Millisecond))
	default:
		c.log.Info("Link state changed", "from", from, "to", to)
	}

	for _, o := range c.observers {
		o.OnTransition(from, to, at)
	}
}

func (c *Controller) emit(cmd actuator.Command) {
	c.command = cmd
	if err := c.driver.Apply(cmd); err != nil {
		c.diag.Error("Failed to apply actuator command", "err", err)
	}
}

func (c *Controller) notifyCycle(outcome Outcome) {
	at := c.clock.Now()
	for _, o := range c.observers {
		o.OnCycle(outcome, at)
	}
}
