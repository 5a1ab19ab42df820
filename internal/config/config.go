package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"

	"github.com/cyberbrick-rc/brickrx/internal/protocol"
)

// ErrInvalid is wrapped by every validation failure
var ErrInvalid = errors.New("invalid configuration")

// Config represents the receiver configuration file
type Config struct {
	filename string

	Receiver ReceiverConfig `yaml:"receiver"`
	Radio    RadioConfig    `yaml:"radio"`
	Bind     BindConfig     `yaml:"bind"`
	Output   OutputConfig   `yaml:"output"`
	Log      LogConfig      `yaml:"log"`
	Journal  JournalConfig  `yaml:"journal"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Debug    DebugConfig    `yaml:"debug"`
}

// ReceiverConfig selects the vehicle and the link timing
type ReceiverConfig struct {
	Profile        string        `yaml:"profile"`
	ProfileFile    string        `yaml:"profile_file"`
	ReceiveTimeout time.Duration `yaml:"receive_timeout"`
	ErrorPause     time.Duration `yaml:"error_pause"`
	BindInterval   time.Duration `yaml:"bind_interval"`
	BlinkPeriod    time.Duration `yaml:"blink_period"`
	LockMemory     bool          `yaml:"lock_memory"`
}

// RadioConfig selects the transport carrying channel packets
type RadioConfig struct {
	Transport string            `yaml:"transport"` // udp or serial
	Identity  string            `yaml:"identity"`  // overrides the interface address
	UDP       UDPRadioConfig    `yaml:"udp"`
	Serial    SerialRadioConfig `yaml:"serial"`
}

type UDPRadioConfig struct {
	Listen    string `yaml:"listen"`
	Broadcast string `yaml:"broadcast"`
	Interface string `yaml:"interface"`
	Announce  bool   `yaml:"announce"`
	Name      string `yaml:"name"`
}

type SerialRadioConfig struct {
	Device string `yaml:"device"`
	Baud   int    `yaml:"baud"`
}

// BindConfig locates the bind button
type BindConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Chip      string `yaml:"chip"`
	Line      int    `yaml:"line"`
	ActiveLow bool   `yaml:"active_low"`
}

// OutputConfig selects where actuator commands go
type OutputConfig struct {
	Driver string `yaml:"driver"` // log, serial or none
	Device string `yaml:"device"`
	Baud   int    `yaml:"baud"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// JournalConfig controls the link event journal
type JournalConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
	Queue   int    `yaml:"queue"`
}

type MetricsConfig struct {
	Listen string `yaml:"listen"` // empty disables the endpoint
}

type MQTTConfig struct {
	Broker   string `yaml:"broker"` // empty disables publishing
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id"`
}

type DebugConfig struct {
	DumpChannels    bool   `yaml:"dump_channels"`
	TimestampFormat string `yaml:"timestamp_format"` // strftime pattern
}

// Default returns the built-in configuration
func Default() Config {
	return Config{
		Receiver: ReceiverConfig{
			Profile:        "truck",
			ReceiveTimeout: protocol.RECEIVE_TIMEOUT_MS * time.Millisecond,
			ErrorPause:     protocol.ERROR_PAUSE_MS * time.Millisecond,
			BindInterval:   protocol.BIND_BROADCAST_MS * time.Millisecond,
			BlinkPeriod:    protocol.BLINK_PERIOD_MS * time.Millisecond,
		},
		Radio: RadioConfig{
			Transport: "udp",
			UDP: UDPRadioConfig{
				Listen:    ":7474",
				Broadcast: "255.255.255.255:7475",
				Name:      "brickrx",
			},
			Serial: SerialRadioConfig{
				Device: "/dev/ttyUSB0",
				Baud:   115200,
			},
		},
		Bind: BindConfig{
			Chip:      "gpiochip0",
			Line:      9,
			ActiveLow: true,
		},
		Output: OutputConfig{
			Driver: "log",
			Baud:   115200,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Journal: JournalConfig{
			Enabled: true,
			Path:    "file::memory:?cache=shared",
			Queue:   64,
		},
		MQTT: MQTTConfig{
			Topic:    "brickrx/link",
			ClientID: "brickrx",
		},
		Debug: DebugConfig{
			TimestampFormat: "%H:%M:%S",
		},
	}
}

// NewConfig creates a configuration holding the defaults
func NewConfig(filename string) *Config {
	c := Default()
	c.filename = filename
	return &c
}

// Filename returns the file Load reads
func (c *Config) Filename() string { return c.filename }

// Load overlays the file onto the current values and validates the result
func (c *Config) Load() error {
	data, err := os.ReadFile(c.filename)
	if err != nil {
		return fmt.Errorf("failed to open config file %s: %w", c.filename, err)
	}
	if err := c.decode(data); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", c.filename, err)
	}
	return c.Validate()
}

// LoadFromString loads configuration from a string (useful for testing)
func (c *Config) LoadFromString(data string) error {
	if err := c.decode([]byte(data)); err != nil {
		return err
	}
	return c.Validate()
}

func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// Validate checks every section
func (c *Config) Validate() error {
	r := c.Receiver
	if r.Profile == "" && r.ProfileFile == "" {
		return invalid("receiver.profile or receiver.profile_file is required")
	}
	timings := []struct {
		name string
		d    time.Duration
	}{
		{"receive_timeout", r.ReceiveTimeout},
		{"error_pause", r.ErrorPause},
		{"bind_interval", r.BindInterval},
		{"blink_period", r.BlinkPeriod},
	}
	for _, tm := range timings {
		if tm.d <= 0 {
			return invalid("receiver.%s must be positive, got %v", tm.name, tm.d)
		}
	}

	switch c.Radio.Transport {
	case "udp":
		if c.Radio.UDP.Listen == "" {
			return invalid("radio.udp.listen is required")
		}
	case "serial":
		if c.Radio.Serial.Device == "" || c.Radio.Serial.Baud <= 0 {
			return invalid("radio.serial needs a device and a positive baud rate")
		}
	default:
		return invalid("unknown radio.transport %q", c.Radio.Transport)
	}
	if c.Radio.Identity != "" {
		if _, err := protocol.ParseIdentity(c.Radio.Identity); err != nil {
			return invalid("radio.identity: %v", err)
		}
	}

	if c.Bind.Enabled && (c.Bind.Chip == "" || c.Bind.Line < 0) {
		return invalid("bind needs a chip and a non-negative line")
	}

	switch c.Output.Driver {
	case "log", "none":
	case "serial":
		if c.Output.Device == "" || c.Output.Baud <= 0 {
			return invalid("output.serial needs a device and a positive baud rate")
		}
	default:
		return invalid("unknown output.driver %q", c.Output.Driver)
	}

	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return invalid("log.level: %v", err)
	}
	switch c.Log.Format {
	case "text", "json", "logfmt":
	default:
		return invalid("unknown log.format %q", c.Log.Format)
	}

	if c.Journal.Enabled && (c.Journal.Path == "" || c.Journal.Queue <= 0) {
		return invalid("journal needs a path and a positive queue size")
	}
	if c.MQTT.Broker != "" && c.MQTT.Topic == "" {
		return invalid("mqtt.topic is required with a broker")
	}
	return nil
}
