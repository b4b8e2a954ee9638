// Package device defines what the bridge needs from a video switcher.
//
// Drivers report lifecycle and state changes through an [Observer].
// Observer methods are called from the driver's own goroutine, one at a
// time and in the order the changes happened; they must not block for
// long and must not call back into the Device.
package device

import (
	"context"
	"fmt"
)

// InputID identifies a switcher source.
type InputID uint16

// Version is the device protocol version.
type Version struct {
	Major uint16
	Minor uint16
}

func (v Version) String() string { return fmt.Sprintf("%d.%d", v.Major, v.Minor) }

// Input describes one source on the switcher.
type Input struct {
	ID   InputID
	Name string
}

func (i Input) String() string { return fmt.Sprintf("%d-%s", i.ID, i.Name) }

// Observer receives device notifications.
type Observer interface {
	Ready()
	Offline(err error)
	ProgramChanged(id InputID)
	PreviewChanged(id InputID)
}

// Device is a connection to one switcher.
type Device interface {
	// Subscribe registers o.  It must be called before Start.
	Subscribe(o Observer)

	// Start begins connecting.  It does not wait for the device: Ready
	// or Offline is reported through the observer.
	Start(ctx context.Context) error

	// Close disconnects.  No notifications are delivered after Close
	// returns.
	Close() error

	Transition() error
	Cut() error
	SelectProgram(id InputID) error
	SelectPreview(id InputID) error

	// Static information, valid after Ready.
	ProductName() string
	ProtocolVersion() Version
	InputCount() int
	Input(n int) Input
}

// Describe formats the startup diagnostics for d.
func Describe(d Device) []string {
	lines := []string{
		"Product name: " + d.ProductName(),
		"Protocol version: " + d.ProtocolVersion().String(),
	}
	inputs := "Inputs:"
	for i := 0; i < d.InputCount(); i++ {
		inputs += " " + d.Input(i).String()
	}
	return append(lines, inputs)
}
