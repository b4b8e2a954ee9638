// Package cmd wires up the CLI flags and dispatches to the core modes.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	flag "github.com/spf13/pflag"

	"switcherd/config"
	"switcherd/internal/core"
	"switcherd/util"
)

// version is overridable at link time:
//
//	go build -ldflags "-X switcherd/cmd.version=2.0.0"
var version = "1.0.0" //nolint:gochecknoglobals

// stdout receives --version and --dry-run output.
var stdout io.Writer = os.Stdout //nolint:gochecknoglobals

// cliOpts are flags that steer the CLI itself rather than the daemon.
type cliOpts struct {
	showVersion bool
	showHelp    bool
	quiet       bool
}

// Execute parses args and runs the daemon.
//
// Flags are parsed twice: once to find --config, then again on top of
// the file and environment so that flags win.
func Execute(ctx context.Context, args []string) error {
	probe := config.Default()
	var opts cliOpts
	fs := newFlagSet(probe, &opts)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if opts.showHelp {
		printUsage(fs)
		return nil
	}
	if opts.showVersion {
		fmt.Fprintf(stdout, "switcherd %s\n", version)
		return nil
	}

	// ── layered sources ──────────────────────────────────────────
	cfg := config.Default()
	if probe.ConfigPath != "" {
		if err := config.LoadFile(cfg, probe.ConfigPath); err != nil {
			return err
		}
	}
	config.LoadFromEnv(cfg)

	fs = newFlagSet(cfg, &opts)
	if err := fs.Parse(args); err != nil {
		return err
	}

	// ── positional arguments ─────────────────────────────────────
	switch rest := fs.Args(); len(rest) {
	case 0:
		if cfg.Device == "" {
			printUsage(fs)
			return nil
		}
	case 1:
		cfg.Device = rest[0]
	default:
		return fmt.Errorf("too many arguments: %s", strings.Join(rest[1:], " "))
	}

	// ── validate ─────────────────────────────────────────────────
	if err := cfg.Resolve(); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.DryRun {
		printPlan(cfg)
		return nil
	}

	// ── build components ─────────────────────────────────────────
	level := int(util.LogNormal) + cfg.Verbose
	if opts.quiet {
		level = int(util.LogQuiet)
	}
	logger := util.NewLogger(level)
	if cfg.LogFile != "" {
		f, err := logger.LogToFile(cfg.LogFile)
		if err != nil {
			return err
		}
		defer f.Close()
	}

	mode, err := core.Build(cfg, logger)
	if err != nil {
		return err
	}
	return mode.Run(ctx)
}

// ── helpers ──────────────────────────────────────────────────────────

// newFlagSet binds every flag to cfg, using cfg's current values as
// defaults.
func newFlagSet(cfg *config.Config, opts *cliOpts) *flag.FlagSet {
	fs := flag.NewFlagSet("switcherd", flag.ContinueOnError)
	fs.SortFlags = false

	// ── listener & device ────────────────────────────────────────
	fs.StringVarP(&cfg.Bind, "bind", "b", cfg.Bind, "Local end-point to bind to, [addr][:port]")
	fs.StringSliceVar(&cfg.Inputs, "inputs", cfg.Inputs, "Input labels for the simulator (comma separated)")
	fs.DurationVar(&cfg.KeepAlive, "keepalive", cfg.KeepAlive, "Device link keepalive interval")
	fs.DurationVar(&cfg.ConnTimeout, "connect-timeout", cfg.ConnTimeout, "Device and SSH dial timeout")

	// ── sessions ─────────────────────────────────────────────────
	fs.DurationVar(&cfg.IdleTimeout, "idle-timeout", cfg.IdleTimeout, "Close clients idle for this long")
	fs.DurationVar(&cfg.WriteTimeout, "write-timeout", cfg.WriteTimeout, "Per-write deadline for client replies")
	fs.IntVar(&cfg.MaxLine, "max-line", cfg.MaxLine, "Longest accepted command line in bytes")

	// ── lifecycle ────────────────────────────────────────────────
	fs.BoolVar(&cfg.Service, "service", cfg.Service, "Run supervised: restart after device loss")
	fs.StringVar(&cfg.ServiceName, "service-name", cfg.ServiceName, "Name registered with the service manager")
	fs.DurationVar(&cfg.RestartDelay, "restart-delay", cfg.RestartDelay, "Pause before a supervised restart")

	// ── discovery & metrics ──────────────────────────────────────
	fs.BoolVar(&cfg.MDNS, "mdns", cfg.MDNS, "Advertise the command port over mDNS")
	fs.StringVar(&cfg.MDNSName, "mdns-name", cfg.MDNSName, "mDNS instance name (default: hostname)")
	fs.StringVar(&cfg.MetricsBind, "metrics-bind", cfg.MetricsBind, "Serve /metrics, /stats and /health on addr:port")

	// ── SSH tunnel ───────────────────────────────────────────────
	fs.StringVarP(&cfg.TunnelSpec, "tunnel", "T", cfg.TunnelSpec, "Reach the device via SSH [user@]host[:port]")
	fs.StringVar(&cfg.SSHKeyPath, "ssh-key", cfg.SSHKeyPath, "SSH private key file")
	fs.BoolVar(&cfg.SSHPassword, "ssh-password", cfg.SSHPassword, "Prompt for SSH password")
	fs.BoolVar(&cfg.UseSSHAgent, "ssh-agent", cfg.UseSSHAgent, "Use SSH agent")
	fs.BoolVar(&cfg.StrictHostKey, "strict-hostkey", cfg.StrictHostKey, "Verify SSH host keys")
	fs.StringVar(&cfg.KnownHostsPath, "known-hosts", cfg.KnownHostsPath, "Custom known_hosts path")

	// ── output ───────────────────────────────────────────────────
	verbose := cfg.Verbose
	fs.CountVarP(&cfg.Verbose, "verbose", "v", "Increase verbosity (repeatable)")
	cfg.Verbose = verbose // CountVarP resets to zero
	fs.BoolVarP(&opts.quiet, "quiet", "q", false, "Only print errors")
	fs.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "Append log output to this file")

	// ── meta ─────────────────────────────────────────────────────
	fs.StringVar(&cfg.ConfigPath, "config", cfg.ConfigPath, "YAML config file")
	fs.BoolVar(&cfg.DryRun, "dry-run", false, "Validate the configuration and exit")
	fs.BoolVar(&opts.showVersion, "version", false, "Print version and exit")
	fs.BoolVarP(&opts.showHelp, "help", "h", false, "Show this help")

	fs.Usage = func() { printUsage(fs) }
	return fs
}

func printPlan(cfg *config.Config) {
	mode := "interactive"
	if cfg.Service {
		mode = "supervised"
	}
	device := cfg.Device
	if !cfg.IsSim() {
		device = cfg.DeviceAddr()
	}
	fmt.Fprintf(stdout, "mode:    %s\n", mode)
	fmt.Fprintf(stdout, "bind:    %s:%s\n", cfg.BindAddress, cfg.BindPort)
	fmt.Fprintf(stdout, "device:  %s\n", device)
	if cfg.TunnelEnabled {
		fmt.Fprintf(stdout, "tunnel:  %s@%s:%d\n", cfg.TunnelUser, cfg.TunnelHost, cfg.TunnelPort)
	}
	if cfg.MetricsBind != "" {
		fmt.Fprintf(stdout, "metrics: %s\n", cfg.MetricsBind)
	}
}

func printUsage(fs *flag.FlagSet) {
	fmt.Fprintf(os.Stderr, `switcherd – video switcher command bridge v%s

Bridges line-based TCP clients (tally panels, macro pads, scripts) to a
program/preview video switcher.

Usage:
  switcherd [options] <device-uri>

  device-uri is host[:port] of the switcher link, or "sim" for the
  built-in simulator.

Options:
`, version)
	fs.PrintDefaults()
	fmt.Fprintf(os.Stderr, `
Protocol (one command per line, LF or CRLF):
  ping | tr | auto | ct                      ACK
  pg=N | pg_N | pv=N | pv_N | prv=N          echoed back
  pg=N / pv=N                                pushed to every client on change

Examples:
  switcherd 192.168.1.240                    Bridge on 0.0.0.0:1230
  switcherd -b 127.0.0.1:4000 sim            Simulator on loopback
  switcherd --service --restart-delay 10s 10.0.0.5
  switcherd -T ops@gateway 10.20.0.5         Reach the switcher via SSH
`)
}
