// Package framer turns a raw byte stream into newline-delimited lines.
//
// A Framer is owned by exactly one session and is not safe for
// concurrent use.
package framer

import (
	"bytes"

	swerr "switcherd/internal/errors"
)

// DefaultMaxLine is the longest partial line a session may buffer
// before it is treated as a protocol violation.
const DefaultMaxLine = 4096

// Framer accumulates bytes until a line feed arrives.
type Framer struct {
	buf     []byte
	maxLine int // 0 = unbounded
}

// New returns a Framer that rejects pending lines longer than maxLine
// bytes.  maxLine <= 0 disables the limit.
func New(maxLine int) *Framer {
	if maxLine < 0 {
		maxLine = 0
	}
	return &Framer{maxLine: maxLine}
}

// Push appends data and returns every complete line it now holds, in
// order, with the LF and one optional preceding CR removed.  Bytes after
// the last LF are kept for the next call.
//
// If the retained remainder grows past the limit, Push returns the lines
// extracted so far together with [swerr.ErrLineTooLong]; the framer
// should be discarded along with its session.
func (f *Framer) Push(data []byte) ([]string, error) {
	f.buf = append(f.buf, data...)

	var lines []string
	start := 0
	for {
		i := bytes.IndexByte(f.buf[start:], '\n')
		if i < 0 {
			break
		}
		end := start + i
		line := f.buf[start:end]
		if n := len(line); n > 0 && line[n-1] == '\r' {
			line = line[:n-1]
		}
		lines = append(lines, string(line))
		start = end + 1
	}

	// Drop the consumed prefix.  Copy down instead of reslicing so a
	// long-lived session doesn't pin an ever-growing backing array.
	rest := copy(f.buf, f.buf[start:])
	f.buf = f.buf[:rest]

	if f.maxLine > 0 && len(f.buf) > f.maxLine {
		return lines, swerr.ErrLineTooLong
	}
	return lines, nil
}

func (f *Framer) buffered() int { return len(f.buf) }
