package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lestrrat-go/strftime"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"

	"github.com/cyberbrick-rc/brickrx/internal/actuator"
	"github.com/cyberbrick-rc/brickrx/internal/config"
	"github.com/cyberbrick-rc/brickrx/internal/gpio"
	"github.com/cyberbrick-rc/brickrx/internal/journal"
	"github.com/cyberbrick-rc/brickrx/internal/network"
	"github.com/cyberbrick-rc/brickrx/internal/output"
	"github.com/cyberbrick-rc/brickrx/internal/profile"
	"github.com/cyberbrick-rc/brickrx/internal/protocol"
	"github.com/cyberbrick-rc/brickrx/internal/session"
	"github.com/cyberbrick-rc/brickrx/internal/telemetry"
	"github.com/cyberbrick-rc/brickrx/internal/vehicle"
)

// Receiver owns every resource of one running receiver
type Receiver struct {
	config  *config.Config
	log     *log.Logger
	profile profile.VehicleProfile

	transport network.Transport
	driver    actuator.Driver
	button    *gpio.Button
	ctrl      *session.Controller

	metrics   *telemetry.Metrics
	publisher *telemetry.Publisher
	db        *journal.DB
	recorder  *journal.Recorder

	closers []io.Closer
}

func loadProfile(cfg *config.Config) (profile.VehicleProfile, error) {
	if cfg.Receiver.ProfileFile != "" {
		return profile.LoadFile(cfg.Receiver.ProfileFile)
	}
	return profile.Builtin(cfg.Receiver.Profile)
}

func resolveIdentity(cfg *config.Config, logger *log.Logger) protocol.Identity {
	if cfg.Radio.Identity != "" {
		id, err := protocol.ParseIdentity(cfg.Radio.Identity)
		if err == nil {
			return id
		}
	}
	id, err := network.InterfaceIdentity(cfg.Radio.UDP.Interface)
	if err != nil {
		logger.Warn("No receiver identity, bind beacons will carry zeros", "err", err)
	}
	return id
}

// newFrameDump prints the channel table of every frame, prefixed with a
// strftime timestamp when a pattern is configured
func newFrameDump(pattern string, w io.Writer) (session.FrameHook, error) {
	var stamp *strftime.Strftime
	if pattern != "" {
		var err error
		stamp, err = strftime.New(pattern)
		if err != nil {
			return nil, fmt.Errorf("failed to parse timestamp format %q: %w", pattern, err)
		}
	}

	return func(at time.Time, sender string, frame protocol.ChannelFrame) {
		if stamp != nil {
			fmt.Fprintf(w, "%s  %s\n", stamp.FormatString(at), frame.Table())
			return
		}
		fmt.Fprintln(w, frame.Table())
	}, nil
}

func (r *Receiver) openTransport(id protocol.Identity) error {
	cfg := r.config.Radio
	switch cfg.Transport {
	case "serial":
		t, err := network.NewSerialTransport(network.SerialConfig{
			Device:   cfg.Serial.Device,
			BaudRate: cfg.Serial.Baud,
			Identity: id,
		}, r.log.WithPrefix("serial"))
		if err != nil {
			return err
		}
		r.transport = t
	default:
		t, err := network.NewUDPTransport(network.UDPConfig{
			Listen:    cfg.UDP.Listen,
			Broadcast: cfg.UDP.Broadcast,
			Identity:  id,
		}, r.log.WithPrefix("udp"))
		if err != nil {
			return err
		}
		r.transport = t
	}
	r.closers = append(r.closers, r.transport)
	return nil
}

func (r *Receiver) openDriver() error {
	cfg := r.config.Output
	logDriver := output.NewLogDriver(r.log.WithPrefix("output"))

	switch cfg.Driver {
	case "serial":
		d, err := output.OpenSerialDriver(cfg.Device, cfg.Baud, r.log)
		if err != nil {
			return err
		}
		r.driver = output.Multi{d, logDriver}
	case "none":
		r.driver = output.Discard{}
	default:
		r.driver = logDriver
	}
	r.closers = append(r.closers, r.driver)
	return nil
}

// NewReceiver acquires the radio, outputs and optional collaborators
func NewReceiver(cfg *config.Config, logger *log.Logger) (*Receiver, error) {
	p, err := loadProfile(cfg)
	if err != nil {
		return nil, err
	}
	engine, err := vehicle.New(p)
	if err != nil {
		return nil, err
	}

	r := &Receiver{config: cfg, log: logger, profile: p}
	ok := false
	defer func() {
		if !ok {
			r.Close()
		}
	}()

	id := resolveIdentity(cfg, logger)
	if err := r.openTransport(id); err != nil {
		return nil, fmt.Errorf("failed to open %s transport: %w", cfg.Radio.Transport, err)
	}
	if err := r.openDriver(); err != nil {
		return nil, fmt.Errorf("failed to open %s output: %w", cfg.Output.Driver, err)
	}

	opts := session.Options{
		Engine:         engine,
		Transport:      r.transport,
		Driver:         r.driver,
		Logger:         logger.WithPrefix("link"),
		ReceiveTimeout: cfg.Receiver.ReceiveTimeout,
		ErrorPause:     cfg.Receiver.ErrorPause,
		BindInterval:   cfg.Receiver.BindInterval,
		BlinkPeriod:    cfg.Receiver.BlinkPeriod,
	}

	if cfg.Bind.Enabled {
		r.button, err = gpio.OpenButton(gpio.ButtonConfig{
			Chip:      cfg.Bind.Chip,
			Line:      cfg.Bind.Line,
			ActiveLow: cfg.Bind.ActiveLow,
		}, logger)
		if err != nil {
			return nil, err
		}
		r.closers = append(r.closers, r.button)
		opts.Bind = r.button
	}

	if cfg.Debug.DumpChannels || p.DumpChannels {
		opts.FrameHook, err = newFrameDump(cfg.Debug.TimestampFormat, os.Stdout)
		if err != nil {
			return nil, err
		}
	}

	if cfg.Metrics.Listen != "" {
		r.metrics = telemetry.NewMetrics(p.Name)
		opts.Observers = append(opts.Observers, r.metrics)
	}

	if cfg.Journal.Enabled {
		r.db, err = journal.NewDB(journal.Config{Path: cfg.Journal.Path}, logger.WithPrefix("journal"))
		if err != nil {
			return nil, err
		}
		r.closers = append(r.closers, r.db)
		r.recorder = journal.NewRecorder(journal.NewEventRepository(r.db.GetDB()), cfg.Journal.Queue, logger.WithPrefix("journal"))
		opts.Observers = append(opts.Observers, r.recorder)
	}

	if cfg.MQTT.Broker != "" {
		r.publisher = telemetry.NewPublisher(telemetry.PublisherConfig{
			Broker:   cfg.MQTT.Broker,
			Topic:    cfg.MQTT.Topic,
			ClientID: cfg.MQTT.ClientID,
			Identity: id.String(),
		}, logger.WithPrefix("mqtt"))
		opts.Observers = append(opts.Observers, r.publisher)
	}

	r.ctrl, err = session.New(opts)
	if err != nil {
		return nil, err
	}

	ok = true
	return r, nil
}

// Run drives the control loop and its helpers until ctx is cancelled or
// the loop stops
func (r *Receiver) Run(ctx context.Context) error {
	if r.config.Receiver.LockMemory {
		if err := unix.Mlockall(unix.MCL_CURRENT | unix.MCL_FUTURE); err != nil {
			r.log.Warn("Failed to lock memory, page faults may stall the control loop", "err", err)
		}
	}

	r.log.Info("brickrx starting",
		"version", VERSION,
		"profile", r.profile.Name,
		"transport", r.config.Radio.Transport,
		"output", r.config.Output.Driver)

	if r.publisher != nil {
		r.publisher.Connect()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer cancel()
		return r.ctrl.Run(gctx)
	})

	if r.metrics != nil {
		g.Go(func() error {
			return r.metrics.Serve(gctx, r.config.Metrics.Listen, r.log.WithPrefix("metrics"))
		})
	}

	if r.recorder != nil {
		g.Go(func() error {
			r.log.Debug("Journal recording", "run", r.recorder.RunID())
			return r.recorder.Run(gctx)
		})
	}

	if udp, isUDP := r.transport.(*network.UDPTransport); isUDP && r.config.Radio.UDP.Announce {
		g.Go(func() error {
			err := network.Announce(gctx, network.Announcement{
				Name:     r.config.Radio.UDP.Name,
				Port:     udp.LocalAddr().Port,
				Identity: r.transport.Identity().String(),
				Profile:  r.profile.Name,
			}, r.log.WithPrefix("dnssd"))
			if err != nil {
				// discovery is optional, the receiver keeps running
				r.log.Warn("Service announcement stopped", "err", err)
			}
			return nil
		})
	}

	return g.Wait()
}

// Close releases everything in reverse order of acquisition. Outputs are
// left at their last command.
func (r *Receiver) Close() {
	if r.publisher != nil {
		r.publisher.Close()
	}
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i].Close(); err != nil {
			r.log.Debug("Close failed", "err", err)
		}
	}
	r.closers = nil
}
