package profile

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyberbrick-rc/brickrx/internal/indicator"
)

func TestBuiltinsValidate(t *testing.T) {
	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			p, err := Builtin(name)
			require.NoError(t, err)
			assert.Equal(t, name, p.Name)
			assert.NoError(t, p.Validate())
		})
	}
}

func TestNames(t *testing.T) {
	assert.Equal(t, []string{"bulldozer", "debug", "forklift", "generic", "truck"}, Names())
}

func TestBuiltin_Unknown(t *testing.T) {
	_, err := Builtin("hovercraft")
	assert.True(t, errors.Is(err, ErrUnknownProfile))
}

func TestBuiltin_ReturnsIndependentCopies(t *testing.T) {
	a, _ := Builtin("truck")
	a.Servos[0].Reverse = false
	b, _ := Builtin("truck")
	assert.True(t, b.Servos[0].Reverse)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *VehicleProfile)
	}{
		{"steering channel out of range", func(p *VehicleProfile) { p.Drive.Steering = 16 }},
		{"drive motor missing", func(p *VehicleProfile) { p.Drive.DriveMotor = 3 }},
		{"servo range excludes midpoint", func(p *VehicleProfile) { p.Servos[0].Max = 4000 }},
		{"negative deadzone", func(p *VehicleProfile) { p.Drive.Deadzone = -1 }},
		{"unknown kind", func(p *VehicleProfile) { p.Kind = "hover" }},
		{"turn pixel out of range", func(p *VehicleProfile) { p.Lights.Pixels = 2 }},
		{"turn signals on direct without throttle", func(p *VehicleProfile) { p.Kind = KindDirect; p.Drive.Throttle = -1 }},
		{"missing name", func(p *VehicleProfile) { p.Name = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Truck()
			tt.mutate(&p)
			err := p.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalid))
		})
	}
}

func TestValidate_TrackedSharedMotor(t *testing.T) {
	p := Bulldozer()
	p.Drive.LeftMotor = p.Drive.RightMotor
	assert.Error(t, p.Validate())
}

func TestValidate_TurnSignals(t *testing.T) {
	p := Bulldozer()
	p.Lights.Pixels = 10
	p.Lights.Turn = &indicator.TurnSignals{FrontLeft: 6, FrontRight: 7, RearLeft: 8, RearRight: 9, Threshold: 100}
	assert.NoError(t, p.Validate())

	m := Debug()
	m.Lights.Pixels = 4
	m.Lights.Turn = &indicator.TurnSignals{FrontLeft: 0, FrontRight: 1, RearLeft: 2, RearRight: 3, Threshold: 100}
	assert.ErrorIs(t, m.Validate(), ErrInvalid)
}

func TestValidate_MonitorWithActuators(t *testing.T) {
	p := Debug()
	p.Motors = []Motor{{Channel: 0}}
	assert.Error(t, p.Validate())
}

func TestLoad_FromBase(t *testing.T) {
	p, err := Load([]byte(`
base: truck
name: longhauler
drive:
  throttle: 1
`))
	require.NoError(t, err)
	assert.Equal(t, "longhauler", p.Name)
	assert.Equal(t, KindSteered, p.Kind)
	assert.Equal(t, 1, p.Drive.Throttle)
	assert.Equal(t, 0, p.Drive.Steering, "keys absent from the file keep the base value")
	assert.Equal(t, 50, p.Drive.Deadzone)
	require.NotNil(t, p.Lights.Turn)
}

func TestLoad_Standalone(t *testing.T) {
	p, err := Load([]byte(`
name: crane
kind: direct
servos:
  - name: boom
    channel: 4
    min: 1639
    max: 8192
    idle: 3277
motors:
  - name: winch
    channel: 5
    invert: true
lights:
  pixels: 1
  groups:
    - name: beacon
      pixels: [0]
      channel: 9
      above: {color: amber, blink: true}
`))
	require.NoError(t, err)
	assert.Equal(t, "crane", p.Name)
	assert.Equal(t, uint16(3277), p.Servos[0].IdleTicks())
	assert.True(t, p.Motors[0].Invert)
	assert.Equal(t, 50, p.Drive.Deadzone)
	require.Len(t, p.Lights.Groups, 1)
	assert.True(t, p.Lights.Groups[0].Above.Blink)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load([]byte("base: zeppelin\n"))
	assert.True(t, errors.Is(err, ErrUnknownProfile))

	_, err = Load([]byte("name: [unterminated"))
	assert.Error(t, err)

	_, err = Load([]byte("name: bad\nkind: direct\nmotors:\n  - channel: 20\n"))
	assert.True(t, errors.Is(err, ErrInvalid))
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dozer.yaml")
	require.NoError(t, os.WriteFile(path, []byte("base: bulldozer\nname: dozer\n"), 0o644))

	p, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "dozer", p.Name)
	assert.Len(t, p.Lights.Groups, 2)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
