package linkdev

import (
	"bufio"
	"context"
	"errors"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"switcherd/internal/device"
	"switcherd/internal/retry"
	"switcherd/internal/transport"
)

type recorder struct{ got chan string }

func newRecorder() *recorder { return &recorder{got: make(chan string, 64)} }

func (r *recorder) Ready()        { r.got <- "ready" }
func (r *recorder) Offline(error) { r.got <- "offline" }
func (r *recorder) ProgramChanged(id device.InputID) {
	r.got <- "pg=" + strconv.Itoa(int(id))
}
func (r *recorder) PreviewChanged(id device.InputID) {
	r.got <- "pv=" + strconv.Itoa(int(id))
}

func (r *recorder) next(t *testing.T) string {
	t.Helper()
	select {
	case ev := <-r.got:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no notification")
		return ""
	}
}

// upstream is a one-connection fake of the remote server.
type upstream struct {
	ln    net.Listener
	conns chan net.Conn
}

func newUpstream(t *testing.T) *upstream {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	u := &upstream{ln: ln, conns: make(chan net.Conn, 1)}
	go func() {
		c, err := ln.Accept()
		if err == nil {
			u.conns <- c
		}
	}()
	t.Cleanup(func() { ln.Close() })
	return u
}

func (u *upstream) accept(t *testing.T) net.Conn {
	t.Helper()
	select {
	case c := <-u.conns:
		t.Cleanup(func() { c.Close() })
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("link never dialed")
		return nil
	}
}

func startLink(t *testing.T, opts Options) (*Link, *recorder) {
	t.Helper()
	l := New(opts)
	rec := newRecorder()
	l.Subscribe(rec)
	require.NoError(t, l.Start(context.Background()))
	t.Cleanup(func() { l.Close() })
	return l, rec
}

func TestLink_ReadyAndPushes(t *testing.T) {
	u := newUpstream(t)
	_, rec := startLink(t, Options{Address: u.ln.Addr().String(), KeepAlive: -1})
	srv := u.accept(t)
	assert.Equal(t, "ready", rec.next(t))

	_, err := srv.Write([]byte("ACK\r\npg_4\npg=3\r\npv=2\npv=oops\n"))
	require.NoError(t, err)

	assert.Equal(t, "pg=3", rec.next(t))
	assert.Equal(t, "pv=2", rec.next(t))
}

func TestLink_SendsCommands(t *testing.T) {
	u := newUpstream(t)
	l, rec := startLink(t, Options{Address: u.ln.Addr().String(), KeepAlive: -1})
	srv := u.accept(t)
	require.Equal(t, "ready", rec.next(t))

	require.NoError(t, l.Transition())
	require.NoError(t, l.Cut())
	require.NoError(t, l.SelectProgram(3))
	require.NoError(t, l.SelectPreview(12))

	r := bufio.NewReader(srv)
	srv.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck
	for _, want := range []string{"tr\n", "ct\n", "pg_3\n", "pv_12\n"} {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		assert.Equal(t, want, line)
	}
}

func TestLink_KeepAlive(t *testing.T) {
	u := newUpstream(t)
	_, rec := startLink(t, Options{Address: u.ln.Addr().String(), KeepAlive: 20 * time.Millisecond})
	srv := u.accept(t)
	require.Equal(t, "ready", rec.next(t))

	r := bufio.NewReader(srv)
	srv.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck
	line, err := r.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "ping\n", line)
}

func TestLink_UpstreamHangupGoesOffline(t *testing.T) {
	u := newUpstream(t)
	l, rec := startLink(t, Options{Address: u.ln.Addr().String(), KeepAlive: -1})
	srv := u.accept(t)
	require.Equal(t, "ready", rec.next(t))

	srv.Close()
	assert.Equal(t, "offline", rec.next(t))
	assert.Error(t, l.Cut())
}

func TestLink_DialFailureGoesOffline(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	_, rec := startLink(t, Options{
		Address: addr,
		Dialer:  &transport.TCPDialer{Timeout: 500 * time.Millisecond},
		Redial:  fastRedial(1),
	})
	assert.Equal(t, "offline", rec.next(t))
}

// flakyDialer refuses the first `fails` dials, then dials for real.
type flakyDialer struct {
	transport.TCPDialer
	mu    sync.Mutex
	fails int
	calls int
}

func (d *flakyDialer) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	d.mu.Lock()
	d.calls++
	refuse := d.calls <= d.fails
	d.mu.Unlock()
	if refuse {
		return nil, errors.New("connection refused")
	}
	return d.TCPDialer.Dial(ctx, network, address)
}

func fastRedial(attempts int) *retry.Backoff {
	return &retry.Backoff{InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1, MaxAttempts: attempts}
}

func TestLink_RedialsBeforeReady(t *testing.T) {
	u := newUpstream(t)
	d := &flakyDialer{fails: 2}
	_, rec := startLink(t, Options{
		Address:   u.ln.Addr().String(),
		Dialer:    d,
		Redial:    fastRedial(3),
		KeepAlive: -1,
	})
	u.accept(t)
	assert.Equal(t, "ready", rec.next(t))

	d.mu.Lock()
	assert.Equal(t, 3, d.calls)
	d.mu.Unlock()
}

func TestLink_RedialBudgetExhausted(t *testing.T) {
	d := &flakyDialer{fails: 10}
	_, rec := startLink(t, Options{Address: "127.0.0.1:1", Dialer: d, Redial: fastRedial(2)})
	assert.Equal(t, "offline", rec.next(t))

	d.mu.Lock()
	assert.Equal(t, 2, d.calls)
	d.mu.Unlock()
}

func TestLink_CloseIsSilent(t *testing.T) {
	u := newUpstream(t)
	l, rec := startLink(t, Options{Address: u.ln.Addr().String(), KeepAlive: -1})
	u.accept(t)
	require.Equal(t, "ready", rec.next(t))

	require.NoError(t, l.Close())
	require.NoError(t, l.Close())
	select {
	case ev := <-rec.got:
		t.Fatalf("unexpected %q after Close", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestLink_StaticInfo(t *testing.T) {
	l := New(Options{Address: "10.0.0.5:1230", Inputs: []string{"Cam A", "Cam B"}})
	assert.Equal(t, "Line-protocol switcher at 10.0.0.5:1230", l.ProductName())
	assert.Equal(t, 2, l.InputCount())
	assert.Equal(t, device.Input{ID: 2, Name: "Cam B"}, l.Input(1))
	assert.Equal(t, device.Input{}, l.Input(5))
	assert.Equal(t, "1.0", l.ProtocolVersion().String())
}
