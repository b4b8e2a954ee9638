// Package bridge connects client sessions to one switcher.
//
// A Bridge owns every piece of per-run state: the device handle, the
// listener, the session table and the broadcast registry.  All of it
// is touched only from the goroutine running [Bridge.Run].  Other
// goroutines (device notifier, accept loop, session readers) talk to
// that loop through channels.
package bridge

import (
	"context"
	"fmt"
	"net"

	"github.com/google/uuid"

	"switcherd/internal/command"
	"switcherd/internal/device"
	swerr "switcherd/internal/errors"
	"switcherd/internal/listener"
	"switcherd/internal/metrics"
	"switcherd/internal/registry"
	"switcherd/internal/session"
	"switcherd/util"
)

// Announcer advertises the command port while the device is ready.
type Announcer interface {
	Start(port int, product string) error
	Stop()
}

// Options configures one bridge run.
type Options struct {
	Address    string // literal IP to bind
	Port       string // decimal port
	Session    session.Options
	Vocabulary *command.Vocabulary
	Announcer  Announcer
	Logger     *util.Logger
	Metrics    *metrics.Collector
	RunID      string
}

// Stats is a snapshot of loop state, read through the loop itself.
type Stats struct {
	RunID      string
	Serving    bool
	Addr       net.Addr
	Sessions   int
	Registered int
}

// Bridge is one run: one device connection, one listener.
type Bridge struct {
	opts Options
	dev  device.Device
	log  *util.Logger

	ln      *listener.Listener
	table   *session.Table
	reg     *registry.Registry
	serving bool

	devEvents  chan deviceEvent
	conns      chan net.Conn
	sessEvents chan session.Event
	lnDone     chan error
	stats      chan chan Stats
	done       chan struct{}
}

// New binds the listener and prepares a run against dev.  A bind
// failure is returned as *errors.BindError and nothing is started.
// The bridge takes ownership of dev.
func New(dev device.Device, opts Options) (*Bridge, error) {
	if opts.Logger == nil {
		opts.Logger = util.NewLogger(1)
	}
	if opts.Vocabulary == nil {
		opts.Vocabulary = command.DefaultVocabulary()
	}
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	if opts.Session.Metrics == nil {
		opts.Session.Metrics = opts.Metrics
	}

	ln, err := listener.Bind(opts.Address, opts.Port)
	if err != nil {
		return nil, err
	}

	b := &Bridge{
		opts:       opts,
		dev:        dev,
		log:        opts.Logger,
		ln:         ln,
		table:      session.NewTable(),
		devEvents:  make(chan deviceEvent, 16),
		conns:      make(chan net.Conn),
		sessEvents: make(chan session.Event, 64),
		lnDone:     make(chan error, 1),
		stats:      make(chan chan Stats),
		done:       make(chan struct{}),
	}
	b.reg = registry.New(registry.TableResolver(b.table))
	b.reg.OnEvict = b.evicted
	b.ln.OnError = func(err error) { b.log.Warn("accept: %v", err) }
	return b, nil
}

// Addr returns the bound listener address.
func (b *Bridge) Addr() net.Addr { return b.ln.Addr() }

// RunID identifies this run in logs.
func (b *Bridge) RunID() string { return b.opts.RunID }

// Run starts the device and serves until the device goes offline
// (returns an error wrapping errors.ErrDeviceLost), the listener fails,
// or ctx is cancelled (returns nil).  Everything is torn down before
// Run returns.  Run may be called once.
func (b *Bridge) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer b.shutdown()

	b.dev.Subscribe(observer{b})
	b.log.Verbose("run %s: connecting to device", b.opts.RunID)
	if err := b.dev.Start(ctx); err != nil {
		return fmt.Errorf("start device: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			b.log.Verbose("run %s: stopping", b.opts.RunID)
			return nil

		case ev := <-b.devEvents:
			if err := b.handleDevice(ctx, ev); err != nil {
				return err
			}

		case conn := <-b.conns:
			b.accept(ctx, conn)

		case ev := <-b.sessEvents:
			b.handleSession(ev)

		case err := <-b.lnDone:
			if err != nil {
				b.log.Error("listener stopped: %v", err)
				return fmt.Errorf("listener: %w", err)
			}

		case reply := <-b.stats:
			reply <- b.snapshot()
		}
	}
}

// Stats asks the loop for a snapshot.  It fails once the run is over.
func (b *Bridge) Stats(ctx context.Context) (Stats, error) {
	reply := make(chan Stats, 1)
	select {
	case b.stats <- reply:
	case <-b.done:
		return Stats{}, swerr.ErrNotConnected
	case <-ctx.Done():
		return Stats{}, ctx.Err()
	}
	select {
	case s := <-reply:
		return s, nil
	case <-ctx.Done():
		return Stats{}, ctx.Err()
	}
}

func (b *Bridge) snapshot() Stats {
	return Stats{
		RunID:      b.opts.RunID,
		Serving:    b.serving,
		Addr:       b.ln.Addr(),
		Sessions:   b.table.Len(),
		Registered: b.reg.Len(),
	}
}

// ── device events ────────────────────────────────────────────────────

func (b *Bridge) handleDevice(ctx context.Context, ev deviceEvent) error {
	switch ev.kind {
	case evReady:
		b.ready(ctx)
	case evOffline:
		err := lostError(ev.err)
		b.log.Error("%v", err)
		b.opts.Metrics.RecordError("device offline")
		return err
	case evProgram:
		b.broadcast(fmt.Sprintf("pg=%d", ev.input))
	case evPreview:
		b.broadcast(fmt.Sprintf("pv=%d", ev.input))
	}
	return nil
}

func (b *Bridge) ready(ctx context.Context) {
	b.opts.Metrics.DeviceReady(true)
	b.log.Info("connected to device")
	for _, line := range device.Describe(b.dev) {
		b.log.Info("%s", line)
	}
	if b.serving {
		return
	}
	b.serving = true

	go func() { b.lnDone <- b.ln.Serve(ctx, b.conns) }()
	b.log.Info("listening on %s", b.ln.Addr())

	if b.opts.Announcer != nil {
		if err := b.opts.Announcer.Start(b.ln.Port(), b.dev.ProductName()); err != nil {
			b.log.Warn("mdns: %v", err)
		}
	}
}

func (b *Bridge) broadcast(line string) {
	n := b.reg.Broadcast(line)
	b.opts.Metrics.Broadcast()
	b.log.Debug("broadcast %q to %d session(s)", line, n)
}

func (b *Bridge) evicted(h session.Handle, err error) {
	b.opts.Metrics.SessionEvicted()
	b.table.Remove(h)
	b.log.Verbose("session %s dropped: %v", h, err)
}

// ── sessions ─────────────────────────────────────────────────────────

func (b *Bridge) accept(ctx context.Context, conn net.Conn) {
	s := session.New(conn, b.opts.Session)
	h := b.table.Insert(s)
	b.reg.Register(h)

	s.OnCommand(b.dispatch)
	s.OnMessage(func(h session.Handle, msg string) {
		b.log.Info("session %s (%s): %s", h, s.RemoteAddr(), msg)
	})
	s.Start(ctx, b.sessEvents)

	b.log.Verbose("session %s: connection from %s", h, s.RemoteAddr())
}

func (b *Bridge) handleSession(ev session.Event) {
	s, ok := b.table.Get(ev.Handle)
	if !ok {
		return // already dropped
	}
	err := ev.Err
	if err == nil {
		err = s.Deliver(ev.Data)
	}
	if err != nil {
		s.Terminate(err)
		b.table.Remove(ev.Handle)
		b.reg.Prune()
	}
}

// dispatch runs one client line against the device and returns the
// direct reply, if any.
func (b *Bridge) dispatch(h session.Handle, line string) string {
	cmd, err := b.opts.Vocabulary.Parse(line)
	if err != nil {
		b.opts.Metrics.ParseFailed()
		b.log.Warn("session %s: %v", h, err)
		return ""
	}

	switch cmd.Verb {
	case command.Unknown:
		if cmd.Raw != "" {
			b.log.Debug("session %s: ignoring %q", h, cmd.Raw)
		}
		return ""
	case command.Ping:
	case command.Transition:
		err = b.dev.Transition()
	case command.Cut:
		err = b.dev.Cut()
	case command.Program:
		err = b.dev.SelectProgram(device.InputID(cmd.Input))
	case command.Preview:
		err = b.dev.SelectPreview(device.InputID(cmd.Input))
	}

	b.opts.Metrics.CommandDispatched()
	if err != nil {
		b.opts.Metrics.RecordError(err.Error())
		b.log.Warn("session %s: %s: %v", h, cmd.Verb, err)
	} else {
		b.log.Debug("session %s: %s", h, cmd.Raw)
	}
	return cmd.Reply()
}

// ── teardown ─────────────────────────────────────────────────────────

func (b *Bridge) shutdown() {
	close(b.done)
	if b.opts.Announcer != nil {
		b.opts.Announcer.Stop()
	}
	b.ln.Close() //nolint:errcheck
	b.table.CloseAll()
	b.reg.Prune()
	b.dev.Close() //nolint:errcheck
	b.opts.Metrics.DeviceReady(false)
	b.log.Verbose("run %s: closed", b.opts.RunID)
}

// lostError wraps the device's offline cause in ErrDeviceLost once.
func lostError(cause error) error {
	switch {
	case cause == nil:
		return swerr.ErrDeviceLost
	case swerr.Is(cause, swerr.ErrDeviceLost):
		return cause
	}
	return fmt.Errorf("%w: %v", swerr.ErrDeviceLost, cause)
}
