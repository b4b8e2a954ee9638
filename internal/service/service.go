// Package service hosts the daemon either in the foreground or under
// the Windows service control manager.
package service

import (
	"context"
	"sync"

	"switcherd/util"
)

// Host runs one long-lived job.  start blocks until the job is over and
// returns the process exit code; stop asks it to finish and may be
// called from another goroutine.
type Host struct {
	Name   string
	Logger *util.Logger
}

// Run hosts start until it returns.  Under the service manager, a stop
// control request triggers stop; in the foreground, cancelling ctx does.
// stop is called at most once.
func (h *Host) Run(ctx context.Context, start func() int, stop func()) int {
	if h.Logger == nil {
		h.Logger = util.NewLogger(1)
	}
	stop = once(stop)
	if managed, code := h.runManaged(start, stop); managed {
		return code
	}
	return h.runConsole(ctx, start, stop)
}

func (h *Host) runConsole(ctx context.Context, start func() int, stop func()) int {
	done := make(chan int, 1)
	go func() { done <- start() }()

	select {
	case code := <-done:
		return code
	case <-ctx.Done():
		h.Logger.Verbose("%s: stop requested", h.Name)
		stop()
		return <-done
	}
}

func once(fn func()) func() {
	var o sync.Once
	return func() {
		if fn != nil {
			o.Do(fn)
		}
	}
}
