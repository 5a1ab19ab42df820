// Package profile describes vehicle variants: which channels feed which
// actuators, the output ranges, and the pixel topology.
package profile

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cyberbrick-rc/brickrx/internal/indicator"
	"github.com/cyberbrick-rc/brickrx/internal/mapper"
	"github.com/cyberbrick-rc/brickrx/internal/protocol"
)

var (
	// ErrUnknownProfile is returned for a name with no built-in profile
	ErrUnknownProfile = errors.New("unknown vehicle profile")
	// ErrInvalid wraps every validation failure
	ErrInvalid = errors.New("invalid vehicle profile")
)

// Kind selects how steering and throttle reach the actuators
type Kind string

const (
	KindSteered Kind = "steered" // one steering servo and one drive motor
	KindTracked Kind = "tracked" // skid-steer, two track motors
	KindDirect  Kind = "direct"  // every actuator follows its own channel
	KindMonitor Kind = "monitor" // no actuators
)

// Servo is one PWM servo output
type Servo struct {
	Name    string `yaml:"name"`
	Channel int    `yaml:"channel"`
	Min     int    `yaml:"min"`
	Max     int    `yaml:"max"`
	Reverse bool   `yaml:"reverse"`
	Idle    int    `yaml:"idle"` // failsafe position, 0 means center
}

// Range returns the servo's output range around the 1.5ms midpoint
func (s Servo) Range() mapper.Range {
	return mapper.ServoRange(s.Min, s.Max)
}

// IdleTicks returns the failsafe position
func (s Servo) IdleTicks() uint16 {
	if s.Idle == 0 {
		return protocol.SERVO_MIDPOINT_TICKS
	}
	return uint16(s.Idle)
}

// Motor is one bidirectional brushed motor output
type Motor struct {
	Name    string `yaml:"name"`
	Channel int    `yaml:"channel"`
	Invert  bool   `yaml:"invert"` // swap outputs A and B
}

// Drive assigns the steering and throttle channels
type Drive struct {
	Steering      int    `yaml:"steering"`
	Throttle      int    `yaml:"throttle"`
	SteeringServo int    `yaml:"steering_servo"` // steered: servo index driven by steering
	DriveMotor    int    `yaml:"drive_motor"`    // steered: motor index driven by throttle
	LeftMotor     int    `yaml:"left_motor"`     // tracked
	RightMotor    int    `yaml:"right_motor"`    // tracked
	Mirrored      bool   `yaml:"mirrored"`       // tracked: invert the turn direction
	Deadzone      int    `yaml:"deadzone"`
	MaxDuty       uint16 `yaml:"max_duty"`
}

// VehicleProfile is the immutable description of one vehicle variant
type VehicleProfile struct {
	Name         string           `yaml:"name"`
	Description  string           `yaml:"description"`
	Kind         Kind             `yaml:"kind"`
	Drive        Drive            `yaml:"drive"`
	Servos       []Servo          `yaml:"servos"`
	Motors       []Motor          `yaml:"motors"`
	Lights       indicator.Lights `yaml:"lights"`
	DumpChannels bool             `yaml:"dump_channels"`
}

// Validate checks channel indices, ranges and actuator assignments
func (p VehicleProfile) Validate() error {
	if err := p.validate(); err != nil {
		return fmt.Errorf("%w %q: %v", ErrInvalid, p.Name, err)
	}
	return nil
}

func (p VehicleProfile) validate() error {
	if p.Name == "" {
		return errors.New("missing name")
	}
	if p.Drive.Deadzone < 0 {
		return fmt.Errorf("deadzone %d is negative", p.Drive.Deadzone)
	}

	switch p.Kind {
	case KindSteered:
		if err := checkChannel("steering", p.Drive.Steering); err != nil {
			return err
		}
		if err := checkChannel("throttle", p.Drive.Throttle); err != nil {
			return err
		}
		if err := checkIndex("steering servo", p.Drive.SteeringServo, len(p.Servos)); err != nil {
			return err
		}
		if err := checkIndex("drive motor", p.Drive.DriveMotor, len(p.Motors)); err != nil {
			return err
		}
	case KindTracked:
		if err := checkChannel("steering", p.Drive.Steering); err != nil {
			return err
		}
		if err := checkChannel("throttle", p.Drive.Throttle); err != nil {
			return err
		}
		if err := checkIndex("left motor", p.Drive.LeftMotor, len(p.Motors)); err != nil {
			return err
		}
		if err := checkIndex("right motor", p.Drive.RightMotor, len(p.Motors)); err != nil {
			return err
		}
		if p.Drive.LeftMotor == p.Drive.RightMotor {
			return fmt.Errorf("left and right track share motor %d", p.Drive.LeftMotor)
		}
	case KindDirect:
	case KindMonitor:
		if len(p.Servos) > 0 || len(p.Motors) > 0 {
			return errors.New("monitor profile cannot drive actuators")
		}
	default:
		return fmt.Errorf("unknown kind %q", p.Kind)
	}

	for i, s := range p.Servos {
		if err := checkChannel(fmt.Sprintf("servo %d", i), s.Channel); err != nil {
			return err
		}
		if s.Min <= 0 || s.Min > protocol.SERVO_MIDPOINT_TICKS || s.Max < protocol.SERVO_MIDPOINT_TICKS || s.Max > protocol.FULLSCALE_16BIT {
			return fmt.Errorf("servo %d range [%d,%d] must contain %d", i, s.Min, s.Max, protocol.SERVO_MIDPOINT_TICKS)
		}
		if s.Idle < 0 || s.Idle > protocol.FULLSCALE_16BIT {
			return fmt.Errorf("servo %d idle %d out of range", i, s.Idle)
		}
	}
	for i, m := range p.Motors {
		if err := checkChannel(fmt.Sprintf("motor %d", i), m.Channel); err != nil {
			return err
		}
	}
	if p.Lights.Turn != nil {
		if p.Kind == KindMonitor {
			return errors.New("turn signals need a driven profile")
		}
		if err := checkChannel("steering", p.Drive.Steering); err != nil {
			return err
		}
		if err := checkChannel("throttle", p.Drive.Throttle); err != nil {
			return err
		}
	}
	return p.Lights.Validate()
}

func checkChannel(what string, ch int) error {
	if ch < 0 || ch >= protocol.CHANNEL_COUNT {
		return fmt.Errorf("%s channel %d out of range", what, ch)
	}
	return nil
}

func checkIndex(what string, i, n int) error {
	if i < 0 || i >= n {
		return fmt.Errorf("%s index %d out of range (have %d)", what, i, n)
	}
	return nil
}

// Load parses a YAML profile. A top-level "base" key starts from a built-in
// profile and overrides only the keys present.
func Load(data []byte) (VehicleProfile, error) {
	var header struct {
		Base string `yaml:"base"`
	}
	if err := yaml.Unmarshal(data, &header); err != nil {
		return VehicleProfile{}, fmt.Errorf("failed to parse profile: %w", err)
	}

	p := VehicleProfile{Kind: KindDirect, Drive: DefaultDrive()}
	if header.Base != "" {
		base, err := Builtin(header.Base)
		if err != nil {
			return VehicleProfile{}, err
		}
		p = base
	}

	if err := yaml.Unmarshal(data, &p); err != nil {
		return VehicleProfile{}, fmt.Errorf("failed to parse profile: %w", err)
	}
	if err := p.Validate(); err != nil {
		return VehicleProfile{}, err
	}
	return p, nil
}

// LoadFile reads and validates a YAML profile file
func LoadFile(path string) (VehicleProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return VehicleProfile{}, fmt.Errorf("failed to read profile %s: %w", path, err)
	}
	return Load(data)
}
