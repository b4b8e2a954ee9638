package bridge

import "switcherd/internal/device"

type eventKind int

const (
	evReady eventKind = iota
	evOffline
	evProgram
	evPreview
)

type deviceEvent struct {
	kind  eventKind
	input device.InputID
	err   error
}

// observer forwards device notifications into the loop.  It gives up
// once the run is over so the device's notifier can always drain.
type observer struct{ b *Bridge }

func (o observer) post(ev deviceEvent) {
	select {
	case o.b.devEvents <- ev:
	case <-o.b.done:
	}
}

func (o observer) Ready()                           { o.post(deviceEvent{kind: evReady}) }
func (o observer) Offline(err error)                { o.post(deviceEvent{kind: evOffline, err: err}) }
func (o observer) ProgramChanged(id device.InputID) { o.post(deviceEvent{kind: evProgram, input: id}) }
func (o observer) PreviewChanged(id device.InputID) { o.post(deviceEvent{kind: evPreview, input: id}) }
