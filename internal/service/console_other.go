//go:build !windows

package service

// runManaged reports that no service manager is present.
func (h *Host) runManaged(start func() int, stop func()) (bool, int) {
	return false, 0
}
