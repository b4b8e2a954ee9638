package config

// loader.go - configuration loading from a YAML file and the environment.
//
// Precedence order (highest wins):
//   1. CLI flags  (handled by cmd/root.go)
//   2. Environment variables
//   3. Config file (--config)
//   4. Defaults   (defaults.go)

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ── Config file ──────────────────────────────────────────────────────

// LoadFile overlays the YAML document at path onto cfg.  Keys missing
// from the file keep their current value.
func LoadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.ConfigPath = path
	return nil
}

// ── Environment variable mapping ─────────────────────────────────────
//
// Every supported env var uses the SWITCHERD_ prefix.  Boolean values
// accept "1", "true", "yes" (case-insensitive).  Durations accept Go
// syntax ("750ms", "5s") or a bare number of seconds.

// LoadFromEnv overlays environment variables onto cfg.  Only non-empty
// env vars override the existing value.  This should be called BEFORE
// CLI flag parsing so that flags take precedence.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("SWITCHERD_BIND"); v != "" {
		cfg.Bind = v
	}
	if v := os.Getenv("SWITCHERD_DEVICE"); v != "" {
		cfg.Device = v
	}
	if v := os.Getenv("SWITCHERD_INPUTS"); v != "" {
		cfg.Inputs = splitList(v)
	}
	if v := envDuration("SWITCHERD_IDLE_TIMEOUT"); v > 0 {
		cfg.IdleTimeout = v
	}
	if v := envDuration("SWITCHERD_WRITE_TIMEOUT"); v > 0 {
		cfg.WriteTimeout = v
	}
	if v := envDuration("SWITCHERD_RESTART_DELAY"); v > 0 {
		cfg.RestartDelay = v
	}
	if v := envDuration("SWITCHERD_KEEPALIVE"); v > 0 {
		cfg.KeepAlive = v
	}
	if v := envInt("SWITCHERD_MAX_LINE"); v > 0 {
		cfg.MaxLine = v
	}
	if envBool("SWITCHERD_SERVICE") {
		cfg.Service = true
	}
	if envBool("SWITCHERD_MDNS") {
		cfg.MDNS = true
	}
	if v := os.Getenv("SWITCHERD_METRICS_BIND"); v != "" {
		cfg.MetricsBind = v
	}

	// SSH tunnel
	if v := os.Getenv("SWITCHERD_TUNNEL"); v != "" {
		cfg.TunnelSpec = v
	}
	if v := os.Getenv("SWITCHERD_SSH_KEY"); v != "" {
		cfg.SSHKeyPath = v
	}
	if v := os.Getenv("SWITCHERD_SSH_PASSWORD"); v != "" {
		cfg.SSHPass = v
	}
	if v := os.Getenv("SWITCHERD_SSH_KEY_PASSPHRASE"); v != "" {
		cfg.SSHPassphrase = v
	}
	if envBool("SWITCHERD_SSH_AGENT") {
		cfg.UseSSHAgent = true
	}
	if envBool("SWITCHERD_STRICT_HOSTKEY") {
		cfg.StrictHostKey = true
	}
	if v := os.Getenv("SWITCHERD_KNOWN_HOSTS"); v != "" {
		cfg.KnownHostsPath = v
	}

	// Output
	if v := envInt("SWITCHERD_VERBOSE"); v > 0 {
		cfg.Verbose = v
	}
	if v := os.Getenv("SWITCHERD_LOG_FILE"); v != "" {
		cfg.LogFile = v
	}
}

// ── helpers ──────────────────────────────────────────────────────────

func envInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func envBool(key string) bool {
	v := strings.ToLower(os.Getenv(key))
	return v == "1" || v == "true" || v == "yes"
}

func envDuration(key string) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return 0
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
