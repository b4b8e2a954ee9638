package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestLoadFromEnv_Strings(t *testing.T) {
	t.Setenv("SWITCHERD_BIND", "127.0.0.1:4000")
	t.Setenv("SWITCHERD_DEVICE", "10.0.0.5")
	t.Setenv("SWITCHERD_TUNNEL", "ops@gw")
	t.Setenv("SWITCHERD_LOG_FILE", "/var/log/switcherd.log")

	cfg := Default()
	LoadFromEnv(cfg)

	if cfg.Bind != "127.0.0.1:4000" {
		t.Errorf("Bind = %q", cfg.Bind)
	}
	if cfg.Device != "10.0.0.5" {
		t.Errorf("Device = %q", cfg.Device)
	}
	if cfg.TunnelSpec != "ops@gw" {
		t.Errorf("TunnelSpec = %q", cfg.TunnelSpec)
	}
	if cfg.LogFile != "/var/log/switcherd.log" {
		t.Errorf("LogFile = %q", cfg.LogFile)
	}
}

func TestLoadFromEnv_SSHSecrets(t *testing.T) {
	t.Setenv("SWITCHERD_SSH_PASSWORD", "s3cret")
	t.Setenv("SWITCHERD_SSH_KEY_PASSPHRASE", "unlock")

	cfg := Default()
	LoadFromEnv(cfg)

	if cfg.SSHPass != "s3cret" {
		t.Errorf("SSHPass = %q", cfg.SSHPass)
	}
	if cfg.SSHPassphrase != "unlock" {
		t.Errorf("SSHPassphrase = %q", cfg.SSHPassphrase)
	}
	if cfg.SSHPassword {
		t.Error("a stored password must not enable prompting")
	}
}

func TestLoadFromEnv_Booleans(t *testing.T) {
	tests := []struct {
		key    string
		values []string
		get    func(*Config) bool
	}{
		{"SWITCHERD_SERVICE", []string{"1", "true", "yes", "TRUE", "Yes"}, func(c *Config) bool { return c.Service }},
		{"SWITCHERD_MDNS", []string{"1", "true"}, func(c *Config) bool { return c.MDNS }},
		{"SWITCHERD_SSH_AGENT", []string{"yes"}, func(c *Config) bool { return c.UseSSHAgent }},
		{"SWITCHERD_STRICT_HOSTKEY", []string{"1"}, func(c *Config) bool { return c.StrictHostKey }},
	}

	for _, tt := range tests {
		for _, v := range tt.values {
			t.Run(tt.key+"="+v, func(t *testing.T) {
				t.Setenv(tt.key, v)
				cfg := &Config{}
				LoadFromEnv(cfg)
				if !tt.get(cfg) {
					t.Errorf("%s=%s did not set the field", tt.key, v)
				}
			})
		}
	}
}

func TestLoadFromEnv_FalseBooleans(t *testing.T) {
	for _, v := range []string{"0", "false", "no", "nope"} {
		t.Setenv("SWITCHERD_SERVICE", v)
		cfg := &Config{}
		LoadFromEnv(cfg)
		if cfg.Service {
			t.Errorf("SWITCHERD_SERVICE=%s should not enable", v)
		}
	}
}

func TestLoadFromEnv_Durations(t *testing.T) {
	t.Setenv("SWITCHERD_IDLE_TIMEOUT", "45")
	t.Setenv("SWITCHERD_RESTART_DELAY", "750ms")
	t.Setenv("SWITCHERD_WRITE_TIMEOUT", "bogus")

	cfg := Default()
	LoadFromEnv(cfg)

	if cfg.IdleTimeout != 45*time.Second {
		t.Errorf("IdleTimeout = %v, want 45s", cfg.IdleTimeout)
	}
	if cfg.RestartDelay != 750*time.Millisecond {
		t.Errorf("RestartDelay = %v, want 750ms", cfg.RestartDelay)
	}
	if cfg.WriteTimeout != DefaultWriteTimeout {
		t.Errorf("invalid duration should be ignored, got %v", cfg.WriteTimeout)
	}
}

func TestLoadFromEnv_Inputs(t *testing.T) {
	t.Setenv("SWITCHERD_INPUTS", "Camera 1, Camera 2,,Slides")
	cfg := &Config{}
	LoadFromEnv(cfg)
	want := []string{"Camera 1", "Camera 2", "Slides"}
	if !reflect.DeepEqual(cfg.Inputs, want) {
		t.Errorf("Inputs = %q, want %q", cfg.Inputs, want)
	}
}

func TestLoadFromEnv_IgnoresInvalidInt(t *testing.T) {
	t.Setenv("SWITCHERD_MAX_LINE", "not-a-number")
	cfg := Default()
	LoadFromEnv(cfg)
	if cfg.MaxLine != DefaultMaxLine {
		t.Errorf("MaxLine = %d, want default %d", cfg.MaxLine, DefaultMaxLine)
	}
}

func TestLoadFromEnv_NoEnvPreservesDefaults(t *testing.T) {
	for _, key := range []string{"SWITCHERD_BIND", "SWITCHERD_DEVICE", "SWITCHERD_VERBOSE"} {
		os.Unsetenv(key)
	}
	cfg := Default()
	LoadFromEnv(cfg)
	if !reflect.DeepEqual(cfg, Default()) {
		t.Errorf("config changed without env: %+v", cfg)
	}
}

// ── Config file ──────────────────────────────────────────────────────

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "switcherd.yaml")
	doc := `
bind: ":4000"
device: 192.168.1.240:9990
idle_timeout: 1m
max_line: 512
mdns: true
ssh_password: s3cret
ssh_key_passphrase: unlock
aliases:
  take: ct
  auto: tr
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := Default()
	if err := LoadFile(cfg, path); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	if cfg.Bind != ":4000" || cfg.Device != "192.168.1.240:9990" {
		t.Errorf("bind=%q device=%q", cfg.Bind, cfg.Device)
	}
	if cfg.IdleTimeout != time.Minute {
		t.Errorf("IdleTimeout = %v", cfg.IdleTimeout)
	}
	if cfg.MaxLine != 512 || !cfg.MDNS {
		t.Errorf("MaxLine=%d MDNS=%v", cfg.MaxLine, cfg.MDNS)
	}
	if cfg.Aliases["take"] != "ct" {
		t.Errorf("Aliases = %v", cfg.Aliases)
	}
	if cfg.SSHPass != "s3cret" || cfg.SSHPassphrase != "unlock" {
		t.Errorf("ssh secrets = %q / %q", cfg.SSHPass, cfg.SSHPassphrase)
	}
	if cfg.RestartDelay != DefaultRestartDelay {
		t.Errorf("unset key should keep default, RestartDelay = %v", cfg.RestartDelay)
	}
	if cfg.ConfigPath != path {
		t.Errorf("ConfigPath = %q", cfg.ConfigPath)
	}
}

func TestLoadFile_Errors(t *testing.T) {
	if err := LoadFile(Default(), filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("missing file should fail")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(path, []byte("max_line: [1, 2"), 0o600) //nolint:errcheck
	if err := LoadFile(Default(), path); err == nil {
		t.Error("malformed YAML should fail")
	}
}

func TestLoadFile_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "switcherd.yaml")
	os.WriteFile(path, []byte("device: from-file\n"), 0o600) //nolint:errcheck
	t.Setenv("SWITCHERD_DEVICE", "from-env")

	cfg := Default()
	if err := LoadFile(cfg, path); err != nil {
		t.Fatal(err)
	}
	LoadFromEnv(cfg)
	if cfg.Device != "from-env" {
		t.Errorf("Device = %q, want from-env", cfg.Device)
	}
}
