package core

import (
	"fmt"

	"switcherd/config"
	"switcherd/internal/command"
	"switcherd/internal/device"
	"switcherd/internal/device/linkdev"
	"switcherd/internal/device/sim"
	"switcherd/internal/mdns"
	"switcherd/internal/metrics"
	"switcherd/internal/transport"
	"switcherd/tunnel"
	"switcherd/util"
)

// Build constructs the appropriate Mode from the given configuration.
// cfg must already be resolved and validated.
func Build(cfg *config.Config, logger *util.Logger) (Mode, error) {
	stack, err := buildStack(cfg, logger)
	if err != nil {
		return nil, err
	}
	if cfg.Service {
		return &SupervisedMode{Stack: stack}, nil
	}
	return &InteractiveMode{Stack: stack}, nil
}

func buildStack(cfg *config.Config, logger *util.Logger) (*Stack, error) {
	vocab, err := buildVocabulary(cfg.Aliases)
	if err != nil {
		return nil, err
	}
	s := &Stack{
		Config:     cfg,
		Logger:     logger,
		Metrics:    metrics.New(),
		Vocabulary: vocab,
		NewDevice:  buildDevice(cfg, logger),
	}
	if cfg.MDNS {
		s.Announcer = mdns.NewAdvertiser(mdns.Config{Name: cfg.MDNSName})
	}
	return s, nil
}

// ── builders ─────────────────────────────────────────────────────────

// buildVocabulary applies the configured aliases.  A target may be a
// verb name ("cut") or an existing spelling ("ct").
func buildVocabulary(aliases map[string]string) (*command.Vocabulary, error) {
	vocab := command.DefaultVocabulary()
	for word, target := range aliases {
		verb, ok := vocab.Lookup(target)
		if !ok {
			v, err := command.ParseVerb(target)
			if err != nil {
				return nil, fmt.Errorf("alias %q: %w", word, err)
			}
			verb = v
		}
		if err := vocab.Alias(word, verb); err != nil {
			return nil, fmt.Errorf("alias %q: %w", word, err)
		}
	}
	return vocab, nil
}

// buildDevice returns a constructor for a fresh device per run.
func buildDevice(cfg *config.Config, logger *util.Logger) func() device.Device {
	if cfg.IsSim() {
		return func() device.Device {
			return sim.New(sim.Options{Inputs: cfg.Inputs})
		}
	}
	return func() device.Device {
		return linkdev.New(linkdev.Options{
			Address:   cfg.DeviceAddr(),
			Dialer:    buildDialer(cfg, logger),
			KeepAlive: cfg.KeepAlive,
			Logger:    logger,
		})
	}
}

// buildDialer creates the right transport.Dialer for the device link.
func buildDialer(cfg *config.Config, logger *util.Logger) transport.Dialer {
	if cfg.TunnelEnabled {
		return transport.NewSSHDialer(sshConfig(cfg), logger)
	}
	return &transport.TCPDialer{
		Timeout:   cfg.ConnTimeout,
		KeepAlive: cfg.KeepAlive,
	}
}

// sshConfig maps the tunnel settings.  Stored secrets let a service
// authenticate without a terminal to prompt on.
func sshConfig(cfg *config.Config) *tunnel.SSHConfig {
	return &tunnel.SSHConfig{
		User:          cfg.TunnelUser,
		Host:          cfg.TunnelHost,
		Port:          cfg.TunnelPort,
		KeyPath:       cfg.SSHKeyPath,
		KeyPassphrase: cfg.SSHPassphrase,
		Password:      cfg.SSHPass,
		PromptPass:    cfg.SSHPassword,
		UseAgent:      cfg.UseSSHAgent,
		StrictHostKey: cfg.StrictHostKey,
		KnownHosts:    cfg.KnownHostsPath,
		ConnTimeout:   cfg.ConnTimeout,
		KeepAlive:     cfg.KeepAlive,
	}
}
