// Package core is the orchestration layer.  It composes the device,
// bridge, supervisor and service host into complete operational modes
// and provides a builder that selects the right mode from a Config.
//
// Architecture layers (bottom → top):
//
//	framer/session/listener  →  registry/bridge  →  supervisor  →  core  →  cmd (CLI)
package core

import "context"

// Mode represents a complete operational mode of switcherd
// (interactive or supervised).  Each mode owns its full lifecycle from
// device connection to teardown.
type Mode interface {
	Run(ctx context.Context) error
}
