package util

import (
	"errors"
	"io"
	"net"
	"os"
)

// DefaultBufSize is the read buffer size for one client session (4 KiB).
// Command lines are short; a single read normally drains everything the
// client has sent.
const DefaultBufSize = 4 * 1024

// IsHarmless returns true for errors that are expected during shutdown
// or when the peer hangs up.
func IsHarmless(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		return true
	}
	// net.OpError wrapping "use of closed network connection"
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return errors.Is(opErr.Err, net.ErrClosed)
	}
	return false
}

// IsTimeout reports whether err is an expired read or write deadline.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
