//go:build windows

package service

import (
	"golang.org/x/sys/windows/svc"

	"switcherd/util"
)

// runManaged runs under the service control manager when the process
// was started by it.  Otherwise it returns false and the caller falls
// back to the console host.
func (h *Host) runManaged(start func() int, stop func()) (bool, int) {
	isService, err := svc.IsWindowsService()
	if err != nil || !isService {
		return false, 0
	}

	hd := &handler{start: start, stop: stop, log: h.Logger}
	if err := svc.Run(h.Name, hd); err != nil {
		h.Logger.Error("%s: service dispatcher: %v", h.Name, err)
		return true, 1
	}
	return true, hd.code
}

type handler struct {
	start func() int
	stop  func()
	log   *util.Logger
	code  int
}

// Execute reports Running while start runs, StopPending after a stop
// or shutdown request, and returns start's exit code.
func (hd *handler) Execute(args []string, req <-chan svc.ChangeRequest, status chan<- svc.Status) (bool, uint32) {
	status <- svc.Status{State: svc.StartPending}

	done := make(chan int, 1)
	go func() { done <- hd.start() }()

	const accepts = svc.AcceptStop | svc.AcceptShutdown
	status <- svc.Status{State: svc.Running, Accepts: accepts}

	for {
		select {
		case code := <-done:
			hd.code = code
			return false, uint32(code)

		case c := <-req:
			switch c.Cmd {
			case svc.Interrogate:
				status <- c.CurrentStatus
			case svc.Stop, svc.Shutdown:
				hd.log.Info("service stop requested")
				status <- svc.Status{State: svc.StopPending}
				go hd.stop()
			}
		}
	}
}
