package mdns

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeServer struct{ shutdowns int }

func (f *fakeServer) Shutdown() { f.shutdowns++ }

func fake(a *Advertiser) (*fakeServer, *[]string, *int) {
	srv := &fakeServer{}
	var text []string
	var port int
	a.register = func(name, service, domain string, p int, txt []string) (shutdowner, error) {
		text, port = txt, p
		return srv, nil
	}
	return srv, &text, &port
}

func registered(a *Advertiser) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running != nil
}

func TestAdvertiser_StartStop(t *testing.T) {
	a := NewAdvertiser(Config{Name: "studio-a"})
	srv, text, port := fake(a)

	require.False(t, registered(a))
	require.NoError(t, a.Start(1230, "ATEM Mini"))
	assert.True(t, registered(a))
	assert.Equal(t, 1230, *port)
	assert.Equal(t, []string{"version=1", "name=studio-a", "product=ATEM Mini"}, *text)

	require.NoError(t, a.Start(9999, "ignored"), "second start is a no-op")
	assert.Equal(t, 1230, *port)

	a.Stop()
	a.Stop()
	assert.False(t, registered(a))
	assert.Equal(t, 1, srv.shutdowns)
}

func TestAdvertiser_RegisterError(t *testing.T) {
	a := NewAdvertiser(Config{})
	a.register = func(string, string, string, int, []string) (shutdowner, error) {
		return nil, errors.New("no multicast interface")
	}
	err := a.Start(1230, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mdns register")
	assert.False(t, registered(a))
}

func TestAdvertiser_StopBeforeStart(t *testing.T) {
	a := NewAdvertiser(Config{})
	a.Stop()
	assert.False(t, registered(a))
}

func TestInstanceName_DefaultsToHostname(t *testing.T) {
	a := NewAdvertiser(Config{})
	assert.NotEmpty(t, a.instanceName())
}

func TestTXTRecords_Truncated(t *testing.T) {
	recs := txtRecords(strings.Repeat("n", 400), strings.Repeat("p", 400))
	for _, r := range recs {
		assert.LessOrEqual(t, len(r), 255)
	}
	assert.Len(t, txtRecords("x", ""), 2, "no product record when unknown")
}

// Registers on the real network stack.
func TestAdvertiser_Zeroconf(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping network test in short mode")
	}
	a := NewAdvertiser(Config{Name: "switcherd-test"})
	if err := a.Start(1230, "Simulated Switcher"); err != nil {
		t.Skipf("mdns unavailable: %v", err)
	}
	assert.True(t, registered(a))
	a.Stop()
	assert.False(t, registered(a))
}
