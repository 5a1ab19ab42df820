package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/cyberbrick-rc/brickrx/internal/config"
	"github.com/cyberbrick-rc/brickrx/internal/logging"
	"github.com/cyberbrick-rc/brickrx/internal/profile"
)

const VERSION = "1.0.0"

// options are the command line settings; zero values leave the file alone
type options struct {
	configFile   string
	profile      string
	transport    string
	logLevel     string
	dumpChannels bool
	listProfiles bool
	version      bool

	flags *pflag.FlagSet
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	o := &options{}
	fs := pflag.NewFlagSet("brickrx", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVarP(&o.configFile, "config", "c", "", "Configuration file (YAML).")
	fs.StringVarP(&o.profile, "profile", "p", "", "Vehicle profile name or profile YAML file.")
	fs.StringVarP(&o.transport, "transport", "t", "", "Radio transport: udp or serial.")
	fs.StringVarP(&o.logLevel, "log-level", "l", "", "Log level: debug, info, warn or error.")
	fs.BoolVarP(&o.dumpChannels, "dump-channels", "d", false, "Print the channel table for every frame.")
	fs.BoolVar(&o.listProfiles, "list-profiles", false, "List built-in profiles and exit.")
	fs.BoolVarP(&o.version, "version", "v", false, "Print the version and exit.")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: brickrx [options]\n\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	o.flags = fs
	return o, nil
}

// apply overlays explicitly set flags onto cfg
func (o *options) apply(cfg *config.Config) error {
	if o.flags.Changed("profile") {
		if _, err := os.Stat(o.profile); err == nil {
			cfg.Receiver.ProfileFile = o.profile
		} else {
			cfg.Receiver.Profile = o.profile
			cfg.Receiver.ProfileFile = ""
		}
	}
	if o.flags.Changed("transport") {
		cfg.Radio.Transport = o.transport
	}
	if o.flags.Changed("log-level") {
		cfg.Log.Level = o.logLevel
	}
	if o.flags.Changed("dump-channels") {
		cfg.Debug.DumpChannels = o.dumpChannels
	}
	return cfg.Validate()
}

func loadConfig(o *options) (*config.Config, error) {
	cfg := config.NewConfig(o.configFile)
	if o.configFile != "" {
		if err := cfg.Load(); err != nil {
			return nil, err
		}
	}
	if err := o.apply(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func listProfiles(w io.Writer) {
	for _, name := range profile.Names() {
		p, err := profile.Builtin(name)
		if err != nil {
			continue
		}
		fmt.Fprintf(w, "%-10s %-8s %s\n", p.Name, p.Kind, p.Description)
	}
}

func main() {
	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		os.Exit(2)
	}

	if opts.version {
		fmt.Printf("brickrx version %s\n", VERSION)
		return
	}
	if opts.listProfiles {
		listProfiles(os.Stdout)
		return
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "brickrx: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(logging.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Prefix: "brickrx",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "brickrx: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rx, err := NewReceiver(cfg, logger)
	if err != nil {
		logger.Error("Failed to start receiver", "err", err)
		os.Exit(1)
	}

	err = rx.Run(ctx)
	rx.Close()
	if err != nil {
		logger.Error("Receiver failed", "err", err)
		os.Exit(1)
	}
	logger.Info("brickrx stopped")
}
