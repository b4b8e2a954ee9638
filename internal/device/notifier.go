package device

import "sync"

// Notifier delivers observer calls on a dedicated goroutine, in the
// order they were queued, without ever blocking the caller.  Drivers
// embed it so command methods can report state changes while holding
// their own locks.
type Notifier struct {
	mu        sync.Mutex
	observers []Observer
	queue     []func(Observer)
	wake      chan struct{}
	done      chan struct{}
	wg        sync.WaitGroup
	running   bool
	stopped   bool
}

// Subscribe adds o.
func (n *Notifier) Subscribe(o Observer) {
	n.mu.Lock()
	n.observers = append(n.observers, o)
	n.mu.Unlock()
}

// Run starts the delivery goroutine.  Calling it again is a no-op.
func (n *Notifier) Run() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.running || n.stopped {
		return
	}
	n.running = true
	n.wake = make(chan struct{}, 1)
	n.done = make(chan struct{})
	if len(n.queue) > 0 {
		n.wake <- struct{}{}
	}
	n.wg.Add(1)
	go n.loop()
}

// Post queues fn to be called for every observer.
func (n *Notifier) Post(fn func(Observer)) {
	n.mu.Lock()
	if n.stopped {
		n.mu.Unlock()
		return
	}
	n.queue = append(n.queue, fn)
	wake := n.wake
	n.mu.Unlock()

	if wake != nil {
		select {
		case wake <- struct{}{}:
		default:
		}
	}
}

// Stop drops anything still queued and waits for an in-flight delivery
// to finish.  Nothing is delivered after Stop returns.  It must not be
// called from an observer.
func (n *Notifier) Stop() {
	n.mu.Lock()
	if n.stopped {
		n.mu.Unlock()
		return
	}
	n.stopped = true
	n.queue = nil
	done := n.done
	n.mu.Unlock()

	if done != nil {
		close(done)
	}
	n.wg.Wait()
}

func (n *Notifier) loop() {
	defer n.wg.Done()
	for {
		select {
		case <-n.done:
			return
		case <-n.wake:
		}

		for {
			n.mu.Lock()
			if n.stopped || len(n.queue) == 0 {
				n.mu.Unlock()
				break
			}
			fn := n.queue[0]
			n.queue[0] = nil
			n.queue = n.queue[1:]
			observers := append([]Observer(nil), n.observers...)
			n.mu.Unlock()

			for _, o := range observers {
				fn(o)
			}
		}
	}
}
