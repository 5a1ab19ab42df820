// Package vehicle turns channel frames into actuator commands for one profile.
package vehicle

import (
	"github.com/cyberbrick-rc/brickrx/internal/actuator"
	"github.com/cyberbrick-rc/brickrx/internal/indicator"
	"github.com/cyberbrick-rc/brickrx/internal/mapper"
	"github.com/cyberbrick-rc/brickrx/internal/mixer"
	"github.com/cyberbrick-rc/brickrx/internal/profile"
	"github.com/cyberbrick-rc/brickrx/internal/protocol"
)

// Engine computes one actuator command per control cycle
type Engine struct {
	profile profile.VehicleProfile
	drive   mixer.Drive
	steer   mapper.Range // range used to read steering for turn signals
}

// New validates the profile and builds an engine for it
func New(p profile.VehicleProfile) (*Engine, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	maxDuty := p.Drive.MaxDuty
	if maxDuty == 0 {
		maxDuty = protocol.FULLSCALE_16BIT
	}
	drive := mixer.Drive{
		Mid:      protocol.CRSF_CHANNEL_VALUE_MID,
		Deadzone: p.Drive.Deadzone,
		Gain:     mapper.DriveGain(protocol.CRSF_CHANNEL_VALUE_MID, protocol.CRSF_CHANNEL_VALUE_MAX, maxDuty),
		MaxDuty:  maxDuty,
	}

	steer := mapper.ServoRange(protocol.SERVOPULSE_1MS_TICKS, protocol.SERVOPULSE_2MS_TICKS)
	if p.Kind == profile.KindSteered {
		steer = p.Servos[p.Drive.SteeringServo].Range()
	}

	return &Engine{profile: p, drive: drive, steer: steer}, nil
}

// Profile returns the profile the engine was built from
func (e *Engine) Profile() profile.VehicleProfile {
	return e.profile
}

func (e *Engine) newCommand() actuator.Command {
	return actuator.NewCommand(len(e.profile.Servos), len(e.profile.Motors), e.profile.Lights.Pixels)
}

// Initial is the power-on command: servos idle, motors stopped, pixels off
// and the status pixel steadily lit.
func (e *Engine) Initial() actuator.Command {
	cmd := e.newCommand()
	for i, s := range e.profile.Servos {
		cmd.Servos[i] = s.IdleTicks()
	}
	cmd.Status = indicator.StatusAlive
	return cmd
}

// Failsafe stops every motor, parks every servo at its idle position and
// blinks the warning lights.
func (e *Engine) Failsafe(lit bool) actuator.Command {
	cmd := e.Initial()
	cmd.Status = e.profile.Lights.Evaluate(indicator.Input{
		State: protocol.LinkStateFailsafe,
		Lit:   lit,
	}, cmd.Pixels, cmd.Status)
	return cmd
}

// Malformed holds the previous outputs and blinks the status pixel
func (e *Engine) Malformed(prior actuator.Command, lit bool) actuator.Command {
	cmd := prior.Clone()
	cmd.Status = e.profile.Lights.Evaluate(indicator.Input{
		State:     protocol.LinkStateActive,
		Malformed: true,
		Lit:       lit,
	}, cmd.Pixels, cmd.Status)
	return cmd
}

// Compute maps a valid frame onto every actuator. prior supplies pixel
// values for lights the profile does not recompute every frame.
func (e *Engine) Compute(frame protocol.ChannelFrame, prior actuator.Command, lit bool) actuator.Command {
	frame = frame.Clamp()
	p := e.profile
	cmd := e.newCommand()
	if len(prior.Pixels) == len(cmd.Pixels) {
		copy(cmd.Pixels, prior.Pixels)
	}

	steer := frame.Value(p.Drive.Steering)
	throttle := frame.Value(p.Drive.Throttle)

	for i, s := range p.Servos {
		cmd.Servos[i] = mixer.ServoTicks(frame.Value(s.Channel), s.Range(), s.Reverse)
	}

	mixed := make([]bool, len(p.Motors))
	switch p.Kind {
	case profile.KindTracked:
		left, right := mixer.Tracked(steer, throttle, e.drive, p.Drive.Mirrored)
		cmd.Motors[p.Drive.LeftMotor] = left
		cmd.Motors[p.Drive.RightMotor] = right
		mixed[p.Drive.LeftMotor] = true
		mixed[p.Drive.RightMotor] = true
	case profile.KindSteered:
		s := p.Servos[p.Drive.SteeringServo]
		cmd.Servos[p.Drive.SteeringServo], cmd.Motors[p.Drive.DriveMotor] =
			mixer.Steered(steer, throttle, s.Range(), s.Reverse, e.drive)
		mixed[p.Drive.DriveMotor] = true
	}
	// every other motor follows its own channel
	for i, m := range p.Motors {
		if !mixed[i] {
			cmd.Motors[i] = e.drive.Duty(frame.Value(m.Channel))
		}
		if m.Invert {
			cmd.Motors[i] = cmd.Motors[i].Swap()
		}
	}

	cmd.Status = p.Lights.Evaluate(indicator.Input{
		State: protocol.LinkStateActive,
		Lit:   lit,
		Frame: frame,
		Motion: indicator.Motion{
			SteerTicks:  int(mixer.ServoTicks(steer, e.steer, false)),
			SteerMid:    e.steer.Mid,
			Throttle:    throttle,
			ThrottleMid: e.drive.Mid,
			Deadzone:    e.drive.Deadzone,
		},
	}, cmd.Pixels, prior.Status)
	return cmd
}
