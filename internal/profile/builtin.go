package profile

import (
	"fmt"
	"sort"

	"github.com/cyberbrick-rc/brickrx/internal/indicator"
	"github.com/cyberbrick-rc/brickrx/internal/protocol"
)

// DefaultDrive returns the stock deadzone and full-scale duty
func DefaultDrive() Drive {
	return Drive{
		Deadzone: protocol.CHANNEL_DEADZONE,
		MaxDuty:  protocol.FULLSCALE_16BIT,
	}
}

func channel(i int) *int { return &i }

// Truck is the official truck: steering servo, one drive motor and four
// corner pixels with head, tail, brake, reverse and turn lights.
func Truck() VehicleProfile {
	d := DefaultDrive()
	d.Steering = 0
	d.Throttle = 2
	return VehicleProfile{
		Name:        "truck",
		Description: "steering servo, drive motor, corner lights with turn signals",
		Kind:        KindSteered,
		Drive:       d,
		Servos: []Servo{
			{Name: "steering", Channel: 0, Min: protocol.SERVOPULSE_1MS_TICKS, Max: protocol.SERVOPULSE_2MS_TICKS, Reverse: true},
		},
		Motors: []Motor{
			{Name: "drive", Channel: 2},
		},
		Lights: indicator.Lights{
			Pixels: 4,
			Turn: &indicator.TurnSignals{
				FrontLeft:  0,
				FrontRight: 1,
				RearLeft:   2,
				RearRight:  3,
				Threshold:  protocol.SERVO_TURN_THRESHOLD,
			},
		},
	}
}

// Bulldozer has two tracks, a blade servo, four cabin pixels on a three-way
// switch and two front pixels on a two-way switch.
func Bulldozer() VehicleProfile {
	d := DefaultDrive()
	d.Steering = 0
	d.Throttle = 2
	d.RightMotor = 0
	d.LeftMotor = 1
	return VehicleProfile{
		Name:        "bulldozer",
		Description: "skid-steer tracks, blade servo, cabin and front lights",
		Kind:        KindTracked,
		Drive:       d,
		Servos: []Servo{
			{Name: "blade", Channel: 5, Min: protocol.SERVOPULSE_0_5MS_TICKS, Max: protocol.SERVOPULSE_2_5MS_TICKS},
		},
		Motors: []Motor{
			{Name: "right track", Channel: 2},
			{Name: "left track", Channel: 2, Invert: true},
		},
		Lights: indicator.Lights{
			Pixels: 6,
			Groups: []indicator.SwitchGroup{
				{
					Name:              "cabin",
					Pixels:            []int{0, 1, 2, 3},
					Channel:           6,
					BrightnessChannel: channel(7),
					Above:             indicator.Pattern{Color: "amber", Blink: true},
					Below:             indicator.Pattern{Color: "white"},
				},
				{
					Name:              "front",
					Pixels:            []int{4, 5},
					Channel:           8,
					BrightnessChannel: channel(7),
					Above:             indicator.Pattern{Color: "white"},
				},
			},
		},
	}
}

// Forklift has two tracks, a fork servo and two lights on a three-way switch
func Forklift() VehicleProfile {
	d := DefaultDrive()
	d.Steering = 0
	d.Throttle = 2
	d.RightMotor = 0
	d.LeftMotor = 1
	return VehicleProfile{
		Name:        "forklift",
		Description: "skid-steer tracks, fork servo, front lights",
		Kind:        KindTracked,
		Drive:       d,
		Servos: []Servo{
			{Name: "fork", Channel: 5, Min: protocol.SERVOPULSE_0_5MS_TICKS, Max: protocol.SERVOPULSE_2_5MS_TICKS},
		},
		Motors: []Motor{
			{Name: "right track", Channel: 2, Invert: true},
			{Name: "left track", Channel: 2},
		},
		Lights: indicator.Lights{
			Pixels: 2,
			Groups: []indicator.SwitchGroup{
				{
					Name:              "front",
					Pixels:            []int{0, 1},
					Channel:           6,
					BrightnessChannel: channel(7),
					Above:             indicator.Pattern{Color: "amber", Blink: true},
					Below:             indicator.Pattern{Color: "white"},
				},
			},
		},
	}
}

// Generic passes channels straight through: two motors, two servos and
// eight pixels each colored by one channel.
func Generic() VehicleProfile {
	packed := make([]indicator.PackedPixel, 8)
	for i := range packed {
		packed[i] = indicator.PackedPixel{Pixel: i, Channel: 6 + i}
	}
	return VehicleProfile{
		Name:        "generic",
		Description: "direct channel pass-through with packed-color pixels",
		Kind:        KindDirect,
		Drive:       DefaultDrive(),
		Servos: []Servo{
			{Name: "servo1", Channel: 2, Min: protocol.SERVOPULSE_0_5MS_TICKS, Max: protocol.SERVOPULSE_2_5MS_TICKS},
			{Name: "servo2", Channel: 3, Min: protocol.SERVOPULSE_0_5MS_TICKS, Max: protocol.SERVOPULSE_2_5MS_TICKS},
		},
		Motors: []Motor{
			{Name: "motor1", Channel: 0},
			{Name: "motor2", Channel: 1},
		},
		Lights: indicator.Lights{Pixels: 8, Packed: packed},
	}
}

// Debug drives nothing and prints every frame
func Debug() VehicleProfile {
	return VehicleProfile{
		Name:         "debug",
		Description:  "no actuators, channel table on every frame",
		Kind:         KindMonitor,
		Drive:        DefaultDrive(),
		DumpChannels: true,
	}
}

var builtins = map[string]func() VehicleProfile{
	"truck":     Truck,
	"bulldozer": Bulldozer,
	"forklift":  Forklift,
	"generic":   Generic,
	"debug":     Debug,
}

// Builtin returns a fresh copy of the named built-in profile
func Builtin(name string) (VehicleProfile, error) {
	fn, ok := builtins[name]
	if !ok {
		return VehicleProfile{}, fmt.Errorf("%w: %q", ErrUnknownProfile, name)
	}
	return fn(), nil
}

// Names lists the built-in profiles in alphabetical order
func Names() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
