// Package session owns one accepted client connection: its line
// framer, its idle deadline, and the callbacks that turn lines into
// replies.
//
// A Session is driven by two goroutines.  A private reader goroutine
// performs the blocking reads and posts what it got to the owner's
// event channel; everything else (Deliver, Send, Close) runs on the
// owner's event loop.  Close may also be called from any goroutine.
package session

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	swerr "switcherd/internal/errors"
	"switcherd/internal/framer"
	"switcherd/internal/metrics"
	"switcherd/util"
)

// DefaultIdleTimeout closes sessions that send nothing for this long.
const DefaultIdleTimeout = 30 * time.Second

// DefaultWriteTimeout bounds a single reply or push.  A client that
// cannot take a few bytes within this window is treated as dead.
const DefaultWriteTimeout = 2 * time.Second

// Handle identifies a session inside its owning [Table].  The zero
// Handle never refers to a live session.
type Handle struct {
	Index uint32
	Gen   uint32
}

func (h Handle) String() string { return fmt.Sprintf("%d.%d", h.Index, h.Gen) }

// IsZero reports whether h was never assigned.
func (h Handle) IsZero() bool { return h.Gen == 0 }

// Event is what the reader goroutine posts to the owner.  Exactly one
// of Data and Err is set.
type Event struct {
	Handle Handle
	Data   []byte
	Err    error
}

// CommandFunc handles one complete line and returns an optional reply.
type CommandFunc func(h Handle, line string) string

// MessageFunc receives session-local diagnostics such as an idle close.
type MessageFunc func(h Handle, msg string)

// Options tunes a session.  The zero value picks the defaults.
type Options struct {
	IdleTimeout  time.Duration // <0 disables
	WriteTimeout time.Duration // <0 disables
	MaxLine      int           // <0 disables
	Metrics      *metrics.Collector
}

func (o Options) withDefaults() Options {
	if o.IdleTimeout == 0 {
		o.IdleTimeout = DefaultIdleTimeout
	}
	if o.WriteTimeout == 0 {
		o.WriteTimeout = DefaultWriteTimeout
	}
	if o.MaxLine == 0 {
		o.MaxLine = framer.DefaultMaxLine
	}
	return o
}

// Session is one client connection.
type Session struct {
	handle Handle
	conn   net.Conn
	remote string
	framer *framer.Framer
	opts   Options

	onCommand CommandFunc
	onMessage MessageFunc

	closeOnce sync.Once
	closed    atomic.Bool
	done      chan struct{}
}

// New takes ownership of conn.  The session does nothing until it is
// inserted into a [Table] and started.
func New(conn net.Conn, opts Options) *Session {
	opts = opts.withDefaults()
	opts.Metrics.SessionOpened()

	remote := "unknown"
	if a := conn.RemoteAddr(); a != nil {
		remote = a.String()
	}
	return &Session{
		conn:   conn,
		remote: remote,
		framer: framer.New(opts.MaxLine),
		opts:   opts,
		done:   make(chan struct{}),
	}
}

// Handle returns the handle assigned by the owning table.
func (s *Session) Handle() Handle { return s.handle }

// RemoteAddr returns the peer address as a string.
func (s *Session) RemoteAddr() string { return s.remote }

// OnCommand registers the line handler.
func (s *Session) OnCommand(fn CommandFunc) { s.onCommand = fn }

// OnMessage registers the diagnostic sink.
func (s *Session) OnMessage(fn MessageFunc) { s.onMessage = fn }

// Closed reports whether Close has been called.
func (s *Session) Closed() bool { return s.closed.Load() }

// Start launches the reader goroutine.  Reads and errors are posted to
// events until the session is closed or ctx is done.
func (s *Session) Start(ctx context.Context, events chan<- Event) {
	go s.readLoop(ctx, events)
}

func (s *Session) readLoop(ctx context.Context, events chan<- Event) {
	bufp := util.GetBuf()
	defer util.PutBuf(bufp)
	buf := *bufp

	post := func(ev Event) bool {
		select {
		case events <- ev:
			return true
		case <-s.done:
		case <-ctx.Done():
		}
		return false
	}

	for {
		// Re-arming the deadline on every read is the idle timer reset.
		if s.opts.IdleTimeout > 0 {
			s.conn.SetReadDeadline(time.Now().Add(s.opts.IdleTimeout)) //nolint:errcheck
		}

		n, err := s.conn.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			if !post(Event{Handle: s.handle, Data: data}) {
				return
			}
		}
		if err != nil {
			post(Event{Handle: s.handle, Err: err})
			return
		}
	}
}

// Deliver frames data and dispatches every complete line in order,
// writing non-empty replies straight back.  It must be called from the
// owner's loop.  A non-nil error means the session is finished.
func (s *Session) Deliver(data []byte) error {
	if s.Closed() {
		return swerr.ErrSessionClosed
	}
	s.opts.Metrics.BytesReceived(int64(len(data)))

	lines, ferr := s.framer.Push(data)
	for _, line := range lines {
		if s.onCommand == nil {
			continue
		}
		reply := s.onCommand(s.handle, line)
		if s.Closed() {
			return swerr.ErrSessionClosed
		}
		if reply == "" {
			continue
		}
		if err := s.Send(reply); err != nil {
			return err
		}
	}
	return ferr
}

// Send writes line followed by LF.  On any failure the session must be
// considered dead; the caller closes it.
func (s *Session) Send(line string) error {
	if s.Closed() {
		return &swerr.SendError{Session: s.handle.String(), Err: swerr.ErrSessionClosed}
	}
	if s.opts.WriteTimeout > 0 {
		s.conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout)) //nolint:errcheck
	}
	n, err := io.WriteString(s.conn, line+"\n")
	s.opts.Metrics.BytesSent(int64(n))
	if err != nil {
		return &swerr.SendError{Session: s.handle.String(), Err: err}
	}
	return nil
}

// Terminate reports why the session is ending through the message
// callback, then closes it.
func (s *Session) Terminate(cause error) {
	if s.Closed() {
		return
	}
	switch {
	case util.IsTimeout(cause):
		s.opts.Metrics.SessionTimedOut()
		s.message("closing connection - timeout")
	case swerr.Is(cause, swerr.ErrLineTooLong):
		s.message("closing connection - line too long")
	case util.IsHarmless(cause):
		s.message("connection closed by peer")
	default:
		s.message(fmt.Sprintf("closing connection - %v", cause))
	}
	s.Close() //nolint:errcheck
}

func (s *Session) message(msg string) {
	if s.onMessage != nil {
		s.onMessage(s.handle, msg)
	}
}

// Close releases the connection, which also unblocks the reader.  It
// is idempotent and safe from any goroutine.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		close(s.done)
		err = s.conn.Close()
		s.opts.Metrics.SessionClosed()
	})
	return err
}
