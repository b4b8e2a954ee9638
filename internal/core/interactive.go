package core

import (
	"context"
	"fmt"
)

// InteractiveMode runs a single bridge in the foreground.  Losing the
// device ends the process with an error.
type InteractiveMode struct {
	*Stack
}

// Run serves until ctx is cancelled or the run ends.
func (m *InteractiveMode) Run(ctx context.Context) error {
	stopMetrics, err := m.serveMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	defer stopMetrics()

	b, err := m.newBridge()
	if err != nil {
		return err
	}
	m.Logger.Verbose("run %s: waiting for device", b.RunID())
	return b.Run(ctx)
}
