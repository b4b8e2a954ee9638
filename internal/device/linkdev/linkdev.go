// Package linkdev drives a switcher that speaks the line protocol
// itself, typically another switcherd closer to the hardware.  The
// connection goes through a transport.Dialer, so it can be plain TCP
// or forwarded over an SSH tunnel.
//
// Upstream wire usage: commands are sent as "tr", "ct", "pg_<n>" and
// "pv_<n>"; state pushes arrive as "pg=<n>" and "pv=<n>".  Replies
// (ACK and echoes) are ignored.
package linkdev

import (
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"switcherd/internal/device"
	swerr "switcherd/internal/errors"
	"switcherd/internal/framer"
	"switcherd/internal/retry"
	"switcherd/internal/transport"
	"switcherd/util"
)

// Defaults.
const (
	DefaultKeepAlive    = 10 * time.Second
	DefaultWriteTimeout = 2 * time.Second
)

// Options configures a Link.
type Options struct {
	Address   string // host:port of the upstream server
	Dialer    transport.Dialer
	KeepAlive time.Duration  // <0 disables
	Inputs    []string       // labels for diagnostics, numbered from 1
	Redial    *retry.Backoff // dial attempts before Offline; nil uses retry.DialBackoff
	Logger    *util.Logger
}

// Link is a device.Device backed by an upstream line-protocol server.
type Link struct {
	device.Notifier

	opts Options

	mu     sync.Mutex
	conn   net.Conn
	online bool
	lost   bool // Offline already reported
	closed bool
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var _ device.Device = (*Link)(nil)

// New returns an unconnected link.
func New(opts Options) *Link {
	if opts.KeepAlive == 0 {
		opts.KeepAlive = DefaultKeepAlive
	}
	if opts.Dialer == nil {
		opts.Dialer = &transport.TCPDialer{Timeout: 10 * time.Second}
	}
	if opts.Redial == nil {
		opts.Redial = retry.DialBackoff()
	}
	if opts.Logger == nil {
		opts.Logger = util.NewLogger(0)
	}
	return &Link{opts: opts}
}

// Start dials in the background.  Ready follows a successful dial;
// Offline follows a failed dial or a dropped connection.
func (l *Link) Start(ctx context.Context) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return swerr.ErrNotConnected
	}
	ctx, l.cancel = context.WithCancel(ctx)
	l.mu.Unlock()

	l.Run()
	l.wg.Add(1)
	go l.run(ctx)
	return nil
}

func (l *Link) run(ctx context.Context) {
	defer l.wg.Done()

	conn, err := l.dial(ctx)
	if err != nil {
		l.offline(swerr.Wrap("dial", l.opts.Address, err))
		return
	}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		conn.Close()
		return
	}
	l.conn = conn
	l.online = true
	l.mu.Unlock()

	l.Post(func(o device.Observer) { o.Ready() })

	stop := context.AfterFunc(ctx, l.dropConn)
	defer stop()

	if l.opts.KeepAlive > 0 {
		l.wg.Add(1)
		go l.keepAlive(ctx)
	}

	err = l.readPushes(conn)
	if ctx.Err() != nil {
		err = ctx.Err()
	}
	l.offline(swerr.Wrap("read", l.opts.Address, err))
}

func (l *Link) dial(ctx context.Context) (net.Conn, error) {
	var conn net.Conn
	policy := *l.opts.Redial
	policy.OnRetry = func(attempt int, err error, wait time.Duration) {
		l.opts.Logger.Verbose("device: dial %s failed (%v), retrying in %s", l.opts.Address, err, wait)
	}
	err := policy.Do(ctx, func(attempt int) error {
		if ctx.Err() != nil {
			return retry.Permanent(ctx.Err())
		}
		l.opts.Logger.Verbose("device: dialing %s (attempt %d)", l.opts.Address, attempt)
		c, err := l.opts.Dialer.Dial(ctx, "tcp", l.opts.Address)
		if err != nil {
			return err
		}
		conn = c
		return nil
	})
	return conn, err
}

func (l *Link) readPushes(conn net.Conn) error {
	f := framer.New(framer.DefaultMaxLine)
	bufp := util.GetBuf()
	defer util.PutBuf(bufp)

	for {
		n, err := conn.Read(*bufp)
		if n > 0 {
			lines, ferr := f.Push((*bufp)[:n])
			for _, line := range lines {
				l.handlePush(line)
			}
			if ferr != nil {
				return ferr
			}
		}
		if err != nil {
			if err == io.EOF {
				return io.ErrUnexpectedEOF
			}
			return err
		}
	}
}

func (l *Link) handlePush(line string) {
	line = strings.TrimSpace(line)
	bus, arg, ok := strings.Cut(line, "=")
	if !ok {
		return
	}
	n, err := strconv.ParseUint(arg, 10, 16)
	if err != nil {
		l.opts.Logger.Debug("device: ignoring malformed push %q", line)
		return
	}
	id := device.InputID(n)
	switch bus {
	case "pg":
		l.Post(func(o device.Observer) { o.ProgramChanged(id) })
	case "pv":
		l.Post(func(o device.Observer) { o.PreviewChanged(id) })
	}
}

func (l *Link) keepAlive(ctx context.Context) {
	defer l.wg.Done()
	ticker := time.NewTicker(l.opts.KeepAlive)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := l.send("ping"); err != nil {
				l.opts.Logger.Debug("device: keepalive: %v", err)
				l.dropConn()
				return
			}
		}
	}
}

// offline reports the loss once, unless the link was closed on purpose.
func (l *Link) offline(err error) {
	l.mu.Lock()
	if l.closed || l.lost {
		l.mu.Unlock()
		return
	}
	l.online = false
	l.lost = true
	l.mu.Unlock()

	l.dropConn()
	l.Post(func(o device.Observer) { o.Offline(err) })
}

func (l *Link) dropConn() {
	l.mu.Lock()
	conn := l.conn
	l.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}

// Close disconnects without reporting Offline.
func (l *Link) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.online = false
	cancel := l.cancel
	l.mu.Unlock()

	l.Stop()
	if cancel != nil {
		cancel()
	}
	l.dropConn()
	l.wg.Wait()
	return l.opts.Dialer.Close()
}

// ── commands ─────────────────────────────────────────────────────────

func (l *Link) send(line string) error {
	l.mu.Lock()
	conn, online := l.conn, l.online
	l.mu.Unlock()
	if !online || conn == nil {
		return swerr.ErrNotConnected
	}
	conn.SetWriteDeadline(time.Now().Add(DefaultWriteTimeout)) //nolint:errcheck
	if _, err := io.WriteString(conn, line+"\n"); err != nil {
		return swerr.Wrap("write", l.opts.Address, err)
	}
	return nil
}

func (l *Link) Transition() error { return l.send("tr") }

func (l *Link) Cut() error { return l.send("ct") }

func (l *Link) SelectProgram(id device.InputID) error {
	return l.send(fmt.Sprintf("pg_%d", id))
}

func (l *Link) SelectPreview(id device.InputID) error {
	return l.send(fmt.Sprintf("pv_%d", id))
}

// ── static information ───────────────────────────────────────────────

func (l *Link) ProductName() string { return "Line-protocol switcher at " + l.opts.Address }

func (l *Link) ProtocolVersion() device.Version { return device.Version{Major: 1, Minor: 0} }

func (l *Link) InputCount() int { return len(l.opts.Inputs) }

func (l *Link) Input(n int) device.Input {
	if n < 0 || n >= len(l.opts.Inputs) {
		return device.Input{}
	}
	return device.Input{ID: device.InputID(n + 1), Name: l.opts.Inputs[n]}
}
