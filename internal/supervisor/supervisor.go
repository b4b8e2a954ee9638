// Package supervisor keeps a bridge alive across device disconnects.
//
// Each run is built fresh by a Factory.  When a run ends because the
// device went away, the supervisor waits a fixed delay and builds the
// next one.  Listener bind failures stop the supervisor for good.
package supervisor

import (
	"context"
	"errors"
	"sync"
	"time"

	swerr "switcherd/internal/errors"
	"switcherd/internal/metrics"
	"switcherd/internal/retry"
	"switcherd/util"
)

// DefaultRestartDelay is the pause between runs.
const DefaultRestartDelay = 5 * time.Second

// Runner is one bridge run.  Run returns nil when ctx is cancelled.
type Runner interface {
	Run(ctx context.Context) error
}

// Factory builds the next run.  attempt is 1-based.
type Factory func(ctx context.Context, attempt int) (Runner, error)

// State is the supervisor's lifecycle position.
type State int

const (
	Idle State = iota
	Running
	Offline // between runs, waiting out the restart delay
	StopRequested
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Offline:
		return "offline"
	case StopRequested:
		return "stop-requested"
	case Stopped:
		return "stopped"
	}
	return "unknown"
}

// Options tunes the supervisor.
type Options struct {
	RestartDelay time.Duration
	Logger       *util.Logger
	Metrics      *metrics.Collector
}

var errRunEnded = errors.New("run ended")

// Supervisor restarts runs until stopped.
type Supervisor struct {
	factory Factory
	opts    Options
	log     *util.Logger

	mu      sync.Mutex
	state   State
	stopped bool
	cancel  context.CancelFunc // set while Run is active
}

// New returns an idle supervisor.
func New(factory Factory, opts Options) *Supervisor {
	if opts.RestartDelay <= 0 {
		opts.RestartDelay = DefaultRestartDelay
	}
	if opts.Logger == nil {
		opts.Logger = util.NewLogger(1)
	}
	return &Supervisor{
		factory: factory,
		opts:    opts,
		log:     opts.Logger,
	}
}

// State returns the current lifecycle state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Supervisor) setState(st State) {
	s.mu.Lock()
	if s.state != StopRequested || st == Stopped {
		s.state = st
	}
	s.mu.Unlock()
}

// Stop asks Run to return.  A pending restart is abandoned and the
// active run is cancelled.  Stop may be called from any goroutine, any
// number of times, including before Run.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	if s.state != Stopped {
		s.state = StopRequested
	}
	if s.cancel != nil {
		s.cancel()
	}
}

// Run drives runs until Stop is called or ctx is cancelled, in which
// case it returns nil.  A bind failure is returned as is.  Run must be
// called at most once.
func (s *Supervisor) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Stop cancels under the same lock, so no attempt starts after Stop
	// has returned.
	s.mu.Lock()
	s.cancel = cancel
	if s.stopped {
		cancel()
	}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.cancel = nil
		s.mu.Unlock()
	}()

	policy := retry.Fixed(s.opts.RestartDelay)
	policy.OnRetry = func(attempt int, err error, wait time.Duration) {
		s.setState(Offline)
		s.log.Warn("bridge stopped: %v", err)
		s.log.Info("restarting in %s", wait)
	}

	err := policy.Do(ctx, func(attempt int) error {
		if ctx.Err() != nil {
			return retry.Permanent(ctx.Err())
		}
		if attempt > 1 {
			s.opts.Metrics.BridgeRestarted()
		}

		r, err := s.factory(ctx, attempt)
		if err != nil {
			if swerr.IsBind(err) {
				return retry.Permanent(err)
			}
			return err
		}

		s.setState(Running)
		err = r.Run(ctx)
		switch {
		case ctx.Err() != nil:
			return retry.Permanent(ctx.Err())
		case swerr.IsBind(err):
			return retry.Permanent(err)
		case err == nil:
			return errRunEnded
		}
		return err
	})
	s.setState(Stopped)

	if ctx.Err() != nil {
		s.log.Verbose("supervisor stopped")
		return nil
	}
	return err
}
