package events

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Dispatcher decouples the tracking loop from slow consumers: Publish only
// enqueues, and a single goroutine fans events out to the registered sinks
// in order.
type Dispatcher struct {
	queue chan Event
	sinks []Sink
	done  chan struct{}
	once  sync.Once

	mu      sync.Mutex
	closed  bool
	dropped int
}

// NewDispatcher starts a dispatcher with the given queue size.
func NewDispatcher(buffer int, sinks ...Sink) *Dispatcher {
	if buffer <= 0 {
		buffer = 256
	}
	d := &Dispatcher{
		queue: make(chan Event, buffer),
		sinks: sinks,
		done:  make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for ev := range d.queue {
		for _, s := range d.sinks {
			s.Publish(ev)
		}
	}
}

// Publish enqueues ev, dropping it if the queue is full or closed.
func (d *Dispatcher) Publish(ev Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	select {
	case d.queue <- ev:
	default:
		d.dropped++
		logrus.WithFields(logrus.Fields{
			"type":      ev.Type,
			"worker_id": ev.WorkerID,
		}).Warn("Event queue full, dropping event.")
	}
}

// Dropped returns how many events were discarded because the queue was full.
func (d *Dispatcher) Dropped() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dropped
}

// Close stops accepting events and waits for queued ones to be delivered.
func (d *Dispatcher) Close() {
	d.once.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.queue)
		d.mu.Unlock()
	})
	<-d.done
}
