package config

import "time"

// ── Default values ───────────────────────────────────────────────────
//
// All tuneable defaults live here so they are easy to audit and reuse
// across CLI flags, config file parsing, and environment variable
// loading.

const (
	// DefaultBindAddress is the command listener address.
	DefaultBindAddress = "0.0.0.0"

	// DefaultBindPort is the command listener port.
	DefaultBindPort = "1230"

	// DefaultDevicePort is the switcher link port when the URI has none.
	DefaultDevicePort = 1230

	// DefaultSSHPort is the standard SSH port.
	DefaultSSHPort = 22

	// DefaultIdleTimeout closes sessions that send nothing for this long.
	DefaultIdleTimeout = 30 * time.Second

	// DefaultWriteTimeout bounds a single reply or push to a client.
	DefaultWriteTimeout = 2 * time.Second

	// DefaultRestartDelay is the pause before a supervised restart.
	DefaultRestartDelay = 5 * time.Second

	// DefaultMaxLine is the longest command line a client may send.
	DefaultMaxLine = 4096

	// DefaultKeepAlive is the device link and SSH keepalive interval.
	DefaultKeepAlive = 10 * time.Second

	// DefaultConnTimeout is the device/SSH dial timeout.
	DefaultConnTimeout = 10 * time.Second

	// DefaultServiceName is the service control manager name.
	DefaultServiceName = "switcherd"

	// SimDevice selects the built-in simulated switcher.
	SimDevice = "sim"
)

// Default returns a Config with every default applied.
func Default() *Config {
	return &Config{
		Bind:         DefaultBindAddress + ":" + DefaultBindPort,
		IdleTimeout:  DefaultIdleTimeout,
		WriteTimeout: DefaultWriteTimeout,
		RestartDelay: DefaultRestartDelay,
		MaxLine:      DefaultMaxLine,
		KeepAlive:    DefaultKeepAlive,
		ConnTimeout:  DefaultConnTimeout,
		ServiceName:  DefaultServiceName,
	}
}
