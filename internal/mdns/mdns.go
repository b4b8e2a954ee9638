// Package mdns advertises the command port on the local network.
//
// The service type is _switcherd._tcp.  TXT records carry the protocol
// version, the instance name and the switcher's product name so panels
// can pick the right daemon before connecting.
package mdns

import (
	"fmt"
	"os"
	"sync"

	"github.com/grandcat/zeroconf"
)

// ServiceType is the DNS-SD service type.
const ServiceType = "_switcherd._tcp"

// ProtocolVersion is bumped when the line protocol changes incompatibly.
const ProtocolVersion = "1"

// Config holds advertisement settings.
type Config struct {
	// Name is the instance name.  Defaults to the hostname.
	Name string
}

// Advertiser registers and withdraws the service.
type Advertiser struct {
	config  Config
	running shutdowner
	mu      sync.Mutex

	register func(name, service, domain string, port int, text []string) (shutdowner, error)
}

type shutdowner interface{ Shutdown() }

// NewAdvertiser returns an idle advertiser.
func NewAdvertiser(cfg Config) *Advertiser {
	return &Advertiser{config: cfg, register: zeroconfRegister}
}

func zeroconfRegister(name, service, domain string, port int, text []string) (shutdowner, error) {
	return zeroconf.Register(name, service, domain, port, text, nil)
}

// Start advertises port.  Calling Start while running is a no-op.
func (a *Advertiser) Start(port int, product string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.running != nil {
		return nil
	}

	name := a.instanceName()
	srv, err := a.register(name, ServiceType, "local.", port, txtRecords(name, product))
	if err != nil {
		return fmt.Errorf("mdns register: %w", err)
	}
	a.running = srv
	return nil
}

// Stop withdraws the advertisement.  Safe to call at any time.
func (a *Advertiser) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.running != nil {
		a.running.Shutdown()
		a.running = nil
	}
}

func (a *Advertiser) instanceName() string {
	if a.config.Name != "" {
		return a.config.Name
	}
	if h, err := os.Hostname(); err == nil {
		return h
	}
	return "switcherd"
}

// TXT strings are limited to 255 bytes each.
func txtRecords(name, product string) []string {
	recs := []string{
		"version=" + ProtocolVersion,
		"name=" + truncate(name, 250),
	}
	if product != "" {
		recs = append(recs, "product="+truncate(product, 247))
	}
	return recs
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
