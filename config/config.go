// Package config defines the runtime configuration for switcherd and
// provides helpers for parsing endpoint and tunnel specifications.
package config

import (
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"
	"time"

	swerr "switcherd/internal/errors"
	"switcherd/util"
)

// Config holds every tuneable for one daemon process.
type Config struct {
	// ── Command listener ─────────────────────────────────────────────
	Bind        string `yaml:"bind"` // [addr][:port]
	BindAddress string `yaml:"-"`
	BindPort    string `yaml:"-"`

	// ── Device ───────────────────────────────────────────────────────
	Device      string        `yaml:"device"` // "sim" or host[:port]
	DeviceHost  string        `yaml:"-"`
	DevicePort  int           `yaml:"-"`
	Inputs      []string      `yaml:"inputs"` // simulator input labels
	KeepAlive   time.Duration `yaml:"keepalive"`
	ConnTimeout time.Duration `yaml:"connect_timeout"`

	// ── Sessions ─────────────────────────────────────────────────────
	IdleTimeout  time.Duration     `yaml:"idle_timeout"`
	WriteTimeout time.Duration     `yaml:"write_timeout"`
	MaxLine      int               `yaml:"max_line"`
	Aliases      map[string]string `yaml:"aliases"` // extra word → verb

	// ── Lifecycle ────────────────────────────────────────────────────
	Service      bool          `yaml:"service"`
	ServiceName  string        `yaml:"service_name"`
	RestartDelay time.Duration `yaml:"restart_delay"`

	// ── Discovery & metrics ──────────────────────────────────────────
	MDNS        bool   `yaml:"mdns"`
	MDNSName    string `yaml:"mdns_name"`
	MetricsBind string `yaml:"metrics_bind"`

	// ── SSH tunnel to the device ─────────────────────────────────────
	TunnelSpec     string `yaml:"tunnel"` // [user@]host[:port]
	TunnelEnabled  bool   `yaml:"-"`
	TunnelUser     string `yaml:"-"`
	TunnelHost     string `yaml:"-"`
	TunnelPort     int    `yaml:"-"`
	SSHKeyPath     string `yaml:"ssh_key"`
	SSHPassword    bool   `yaml:"-"` // prompt interactively
	SSHPass        string `yaml:"ssh_password"`
	SSHPassphrase  string `yaml:"ssh_key_passphrase"`
	UseSSHAgent    bool   `yaml:"ssh_agent"`
	StrictHostKey  bool   `yaml:"strict_host_key"`
	KnownHostsPath string `yaml:"known_hosts"`

	// ── Output ───────────────────────────────────────────────────────
	Verbose int    `yaml:"verbose"`
	LogFile string `yaml:"log_file"`

	// ── Meta ─────────────────────────────────────────────────────────
	ConfigPath string `yaml:"-"`
	DryRun     bool   `yaml:"-"`
}

// IsSim reports whether the simulated switcher was requested.
func (c *Config) IsSim() bool { return c.Device == SimDevice }

// DeviceAddr returns host:port of the device link.
func (c *Config) DeviceAddr() string {
	return util.FormatAddr(c.DeviceHost, c.DevicePort)
}

// ── URI parsing ──────────────────────────────────────────────────────

// ParseURI splits "[addr][:port]" into its parts, substituting the
// defaults for whichever is missing.  A bracketed IPv6 literal is
// accepted as the address.  Ports are not validated here.
func ParseURI(uri, defaultAddress, defaultPort string) (address, port string) {
	address, port = uri, ""
	if strings.HasPrefix(uri, "[") {
		if end := strings.Index(uri, "]"); end > 0 {
			address, port = uri[1:end], strings.TrimPrefix(uri[end+1:], ":")
		}
	} else if i := strings.Index(uri, ":"); i >= 0 && strings.Count(uri, ":") == 1 {
		address, port = uri[:i], uri[i+1:]
	}
	if address == "" {
		address = defaultAddress
	}
	if port == "" {
		port = defaultPort
	}
	return address, port
}

// ── Tunnel-spec parser ───────────────────────────────────────────────

// tunnelRe matches [user@]host[:port].
var tunnelRe = regexp.MustCompile(`^(?:([^@]+)@)?([^:]+)(?::(\d+))?$`)

// ParseTunnelSpec extracts user, host, and port from a string such as
// "admin@bastion.example.com:2222".  Port defaults to 22.
func ParseTunnelSpec(spec string) (user, host string, port int, err error) {
	m := tunnelRe.FindStringSubmatch(spec)
	if m == nil {
		return "", "", 0, fmt.Errorf("invalid tunnel spec %q – expected [user@]host[:port]", spec)
	}
	user = m[1]
	host = m[2]
	port = DefaultSSHPort
	if m[3] != "" {
		port, err = strconv.Atoi(m[3])
		if err != nil || port < 1 || port > 65535 {
			return "", "", 0, fmt.Errorf("invalid tunnel port %q", m[3])
		}
	}
	if host == "" {
		return "", "", 0, fmt.Errorf("tunnel host is required")
	}
	return user, host, port, nil
}

// ── Resolution ───────────────────────────────────────────────────────

// Resolve fills the derived fields from the raw specs.  It must run
// after every source has been applied and before Validate.
func (c *Config) Resolve() error {
	c.BindAddress, c.BindPort = ParseURI(c.Bind, DefaultBindAddress, DefaultBindPort)

	c.DeviceHost, c.DevicePort = "", 0
	if c.Device != "" && !c.IsSim() {
		host, port := ParseURI(c.Device, "", strconv.Itoa(DefaultDevicePort))
		n, err := strconv.Atoi(port)
		if err != nil || n < 1 || n > 65535 {
			return &swerr.ConfigError{
				Field:   "device",
				Value:   c.Device,
				Message: fmt.Sprintf("invalid port %q", port),
				Hint:    "use host[:port], e.g. 192.168.1.240:1230",
			}
		}
		c.DeviceHost, c.DevicePort = host, n
	}

	c.TunnelEnabled = c.TunnelSpec != ""
	if c.TunnelEnabled {
		user, host, port, err := ParseTunnelSpec(c.TunnelSpec)
		if err != nil {
			return &swerr.ConfigError{Field: "tunnel", Value: c.TunnelSpec, Message: err.Error()}
		}
		c.TunnelUser, c.TunnelHost, c.TunnelPort = user, host, port
	}
	return nil
}

// ── Validation ───────────────────────────────────────────────────────

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.Device == "" {
		return &swerr.ConfigError{
			Field:   "device",
			Message: "a device URI is required",
			Hint:    "pass host[:port] of the switcher, or \"sim\" for the simulator",
		}
	}
	if !c.IsSim() && c.DeviceHost == "" {
		return &swerr.ConfigError{Field: "device", Value: c.Device, Message: "device host is empty"}
	}
	if len(c.Inputs) > 0 && !c.IsSim() {
		return &swerr.ConfigError{
			Field:   "inputs",
			Message: "input labels only apply to the simulator",
			Hint:    "the switcher reports its own inputs",
		}
	}

	if ip := net.ParseIP(c.BindAddress); ip == nil {
		return &swerr.ConfigError{
			Field:   "bind",
			Value:   c.Bind,
			Message: fmt.Sprintf("%q is not an IP address", c.BindAddress),
			Hint:    "use --bind [addr][:port], e.g. --bind 0.0.0.0:1230",
		}
	}
	if _, err := strconv.ParseUint(c.BindPort, 10, 16); err != nil {
		return &swerr.ConfigError{
			Field:   "bind",
			Value:   c.Bind,
			Message: "port out of range 0-65535",
			Hint:    "use --bind [addr][:port], e.g. --bind :1230",
		}
	}

	if c.MaxLine < 1 {
		return &swerr.ConfigError{Field: "max-line", Value: c.MaxLine, Message: "must be positive"}
	}
	if c.RestartDelay <= 0 {
		return &swerr.ConfigError{Field: "restart-delay", Value: c.RestartDelay, Message: "must be positive"}
	}
	if c.IdleTimeout < 0 {
		return &swerr.ConfigError{Field: "idle-timeout", Value: c.IdleTimeout, Message: "must not be negative", Hint: "use 0 to keep the default"}
	}

	if c.TunnelEnabled {
		if c.IsSim() {
			return &swerr.ConfigError{Field: "tunnel", Value: c.TunnelSpec, Message: "the simulator cannot be reached through a tunnel"}
		}
		if c.TunnelHost == "" {
			return &swerr.ConfigError{Field: "tunnel", Message: "tunnel host is required"}
		}
	}

	for word, verb := range c.Aliases {
		if word == "" || strings.ContainsAny(word, " \t=_") {
			return &swerr.ConfigError{Field: "aliases", Value: word, Message: "alias must be a single word without '=' or '_'"}
		}
		if verb == "" {
			return &swerr.ConfigError{Field: "aliases", Value: word, Message: "alias has no target verb"}
		}
	}
	return nil
}
