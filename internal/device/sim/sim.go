// Package sim is an in-process switcher.  It backs the "sim" device
// URI and the bridge tests.
package sim

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"switcherd/internal/device"
	swerr "switcherd/internal/errors"
)

// Options configures a simulated switcher.
type Options struct {
	Name       string
	Inputs     []string      // labels, numbered from 1
	ReadyDelay time.Duration // pause between Start and Ready
}

// Switcher is a simulated two-bus (program/preview) switcher.
type Switcher struct {
	device.Notifier

	name   string
	inputs []device.Input
	delay  time.Duration

	mu      sync.Mutex
	program device.InputID
	preview device.InputID
	online  bool
	closed  bool
	cancel  context.CancelFunc
}

var _ device.Device = (*Switcher)(nil)

// New returns a switcher with program on the first input and preview
// on the second.
func New(opts Options) *Switcher {
	if opts.Name == "" {
		opts.Name = "Simulated Switcher"
	}
	if len(opts.Inputs) == 0 {
		opts.Inputs = []string{"Camera 1", "Camera 2", "Camera 3", "Camera 4"}
	}

	s := &Switcher{name: opts.Name, delay: opts.ReadyDelay}
	for i, label := range opts.Inputs {
		s.inputs = append(s.inputs, device.Input{ID: device.InputID(i + 1), Name: label})
	}
	s.program = s.inputs[0].ID
	s.preview = s.inputs[0].ID
	if len(s.inputs) > 1 {
		s.preview = s.inputs[1].ID
	}
	return s
}

// Start brings the switcher online after the configured delay.
// Cancelling ctx takes it offline.
func (s *Switcher) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return swerr.ErrNotConnected
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.Run()
	go func() {
		if s.delay > 0 {
			select {
			case <-time.After(s.delay):
			case <-ctx.Done():
				return
			}
		}
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return
		}
		s.online = true
		s.mu.Unlock()
		s.Post(func(o device.Observer) { o.Ready() })

		<-ctx.Done()
		s.Fail(ctx.Err())
	}()
	return nil
}

// Fail takes the switcher offline as if the link dropped.
func (s *Switcher) Fail(err error) {
	s.mu.Lock()
	if !s.online {
		s.mu.Unlock()
		return
	}
	s.online = false
	s.mu.Unlock()

	if err == nil {
		err = io.ErrUnexpectedEOF
	}
	s.Post(func(o device.Observer) { o.Offline(err) })
}

// Close stops the switcher.  No notifications follow.
func (s *Switcher) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.online = false
	cancel := s.cancel
	s.mu.Unlock()

	s.Stop()
	if cancel != nil {
		cancel()
	}
	return nil
}

// ── commands ─────────────────────────────────────────────────────────

// Transition swaps program and preview.
func (s *Switcher) Transition() error { return s.swap() }

// Cut swaps program and preview immediately.  Without a real mix
// engine it is indistinguishable from Transition.
func (s *Switcher) Cut() error { return s.swap() }

func (s *Switcher) swap() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.online {
		return swerr.ErrNotConnected
	}
	if s.program == s.preview {
		return nil
	}
	s.program, s.preview = s.preview, s.program
	pg, pv := s.program, s.preview
	s.Post(func(o device.Observer) { o.ProgramChanged(pg) })
	s.Post(func(o device.Observer) { o.PreviewChanged(pv) })
	return nil
}

// SelectProgram puts id on air.
func (s *Switcher) SelectProgram(id device.InputID) error {
	return s.selectBus(id, &s.program, func(o device.Observer) { o.ProgramChanged(id) })
}

// SelectPreview cues id on the preview bus.
func (s *Switcher) SelectPreview(id device.InputID) error {
	return s.selectBus(id, &s.preview, func(o device.Observer) { o.PreviewChanged(id) })
}

func (s *Switcher) selectBus(id device.InputID, bus *device.InputID, notify func(device.Observer)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.online {
		return swerr.ErrNotConnected
	}
	if !s.hasInput(id) {
		return fmt.Errorf("input %d: %w", id, swerr.ErrInvalidInput)
	}
	if *bus == id {
		return nil
	}
	*bus = id
	s.Post(notify)
	return nil
}

func (s *Switcher) hasInput(id device.InputID) bool {
	for _, in := range s.inputs {
		if in.ID == id {
			return true
		}
	}
	return false
}

// ── state ────────────────────────────────────────────────────────────

// Program returns the input on air.
func (s *Switcher) Program() device.InputID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.program
}

// Preview returns the cued input.
func (s *Switcher) Preview() device.InputID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.preview
}

// ── static information ───────────────────────────────────────────────

func (s *Switcher) ProductName() string { return s.name }

func (s *Switcher) ProtocolVersion() device.Version { return device.Version{Major: 2, Minor: 30} }

func (s *Switcher) InputCount() int { return len(s.inputs) }

func (s *Switcher) Input(n int) device.Input {
	if n < 0 || n >= len(s.inputs) {
		return device.Input{}
	}
	return s.inputs[n]
}
