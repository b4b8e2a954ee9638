// Package listener binds the command port and feeds accepted
// connections to the event loop.
package listener

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"

	"golang.org/x/time/rate"

	swerr "switcherd/internal/errors"
)

// Accept errors that are not fatal are retried at most this often so a
// persistent condition (e.g. EMFILE) does not spin the CPU.
const (
	acceptRetryRate  = rate.Limit(20)
	acceptRetryBurst = 5
)

// Listener accepts client connections on one TCP address.
type Listener struct {
	ln      net.Listener
	limiter *rate.Limiter

	// OnError receives accept errors that did not stop the loop.
	OnError func(err error)
}

// Bind validates address and port and reserves the port.  The address
// must be a literal IP; the port must parse completely as a decimal
// number in 0-65535.  Every failure is a *errors.BindError.
func Bind(address, port string) (*Listener, error) {
	ip := net.ParseIP(address)
	if ip == nil {
		return nil, &swerr.BindError{Address: address, Port: port,
			Err: fmt.Errorf("invalid IP address %q", address)}
	}
	p, err := strconv.ParseUint(port, 10, 16)
	if err != nil {
		return nil, &swerr.BindError{Address: address, Port: port,
			Err: fmt.Errorf("invalid port %q", port)}
	}

	addr := net.JoinHostPort(ip.String(), strconv.FormatUint(p, 10))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, &swerr.BindError{Address: address, Port: port, Err: err}
	}
	return &Listener{
		ln:      ln,
		limiter: rate.NewLimiter(acceptRetryRate, acceptRetryBurst),
	}, nil
}

// Addr returns the bound address.
func (l *Listener) Addr() net.Addr { return l.ln.Addr() }

// Port returns the bound TCP port, useful when binding port 0.
func (l *Listener) Port() int {
	if a, ok := l.ln.Addr().(*net.TCPAddr); ok {
		return a.Port
	}
	return 0
}

// Serve accepts connections and hands each one to conns until ctx is
// done, the listener is closed, or the listening socket becomes
// unusable.  It returns nil on ctx cancellation or Close, and the
// accept error otherwise.
func (l *Listener) Serve(ctx context.Context, conns chan<- net.Conn) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			l.ln.Close()
		case <-stop:
		}
	}()

	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			if !isTemporary(err) {
				return swerr.Wrap("accept", l.ln.Addr().String(), err)
			}
			if l.OnError != nil {
				l.OnError(err)
			}
			if werr := l.limiter.Wait(ctx); werr != nil {
				return nil
			}
			continue
		}

		select {
		case conns <- conn:
		case <-ctx.Done():
			conn.Close()
			return nil
		}
	}
}

// Close stops accepting.  A concurrent Serve returns nil.
func (l *Listener) Close() error {
	err := l.ln.Close()
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

// isTemporary reports whether an accept error is worth another try.
// Timeouts and resource exhaustion are; anything else means the socket
// is gone.
func isTemporary(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return swerr.IsTemporary(err)
}
