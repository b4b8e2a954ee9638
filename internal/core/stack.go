package core

import (
	"context"
	"time"

	"github.com/google/uuid"

	"switcherd/config"
	"switcherd/internal/bridge"
	"switcherd/internal/command"
	"switcherd/internal/device"
	"switcherd/internal/metrics"
	"switcherd/internal/session"
	"switcherd/util"
)

// Stack holds the collaborators shared by every bridge run of one
// process.
type Stack struct {
	Config     *config.Config
	Logger     *util.Logger
	Metrics    *metrics.Collector
	Vocabulary *command.Vocabulary
	NewDevice  func() device.Device
	Announcer  bridge.Announcer
}

// newBridge builds one run: a fresh device and a freshly bound
// listener.  A bind failure closes the device and is returned as is.
func (s *Stack) newBridge() (*bridge.Bridge, error) {
	cfg := s.Config
	dev := s.NewDevice()
	b, err := bridge.New(dev, bridge.Options{
		Address: cfg.BindAddress,
		Port:    cfg.BindPort,
		Session: session.Options{
			IdleTimeout:  cfg.IdleTimeout,
			WriteTimeout: cfg.WriteTimeout,
			MaxLine:      cfg.MaxLine,
		},
		Vocabulary: s.Vocabulary,
		Announcer:  s.Announcer,
		Logger:     s.Logger,
		Metrics:    s.Metrics,
		RunID:      uuid.NewString(),
	})
	if err != nil {
		dev.Close() //nolint:errcheck
		return nil, err
	}
	s.Logger.Info("bound to %s", b.Addr())
	return b, nil
}

// serveMetrics starts the HTTP exporter when configured and returns a
// function that stops it.
func (s *Stack) serveMetrics() (stop func(), err error) {
	if s.Config.MetricsBind == "" {
		return func() {}, nil
	}
	srv := metrics.NewServer(s.Config.MetricsBind, s.Metrics)
	if err := srv.Start(); err != nil {
		return nil, err
	}
	s.Logger.Verbose("metrics on http://%s/metrics", srv.Addr())
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Stop(ctx) //nolint:errcheck
	}, nil
}
