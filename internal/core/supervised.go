package core

import (
	"context"
	"fmt"

	"switcherd/internal/service"
	"switcherd/internal/supervisor"
)

// SupervisedMode keeps restarting the bridge inside the service host.
// It is what runs under the Windows service manager or a process
// supervisor.
type SupervisedMode struct {
	*Stack

	// OnStart, if set, receives the supervisor before it runs.
	OnStart func(*supervisor.Supervisor)
}

// Run hosts the supervisor until ctx is cancelled or the service
// manager asks it to stop.
func (m *SupervisedMode) Run(ctx context.Context) error {
	stopMetrics, err := m.serveMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	defer stopMetrics()

	factory := func(_ context.Context, attempt int) (supervisor.Runner, error) {
		b, err := m.newBridge()
		if err != nil {
			return nil, err
		}
		m.Logger.Verbose("run %s: attempt %d", b.RunID(), attempt)
		return b, nil
	}
	sup := supervisor.New(factory, supervisor.Options{
		RestartDelay: m.Config.RestartDelay,
		Logger:       m.Logger,
		Metrics:      m.Metrics,
	})
	if m.OnStart != nil {
		m.OnStart(sup)
	}

	host := &service.Host{Name: m.Config.ServiceName, Logger: m.Logger}
	var runErr error
	start := func() int {
		if runErr = sup.Run(context.Background()); runErr != nil {
			return 1
		}
		return 0
	}
	if code := host.Run(ctx, start, sup.Stop); code != 0 && runErr == nil {
		return fmt.Errorf("service exited with code %d", code)
	}
	return runErr
}
