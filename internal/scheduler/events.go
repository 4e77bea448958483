package scheduler

import (
	"sync"

	"github.com/gammazero/deque"

	"github.com/tanq16/segdl/internal/job"
)

type EventType int

const (
	EventProgress EventType = iota
	EventStatus
)

// Event is one progress sample or status change of a job.
type Event struct {
	Type     EventType
	JobID    string
	Progress job.Progress
	Change   job.StatusChange
}

// dispatcher buffers events in an unbounded queue so that job goroutines
// never wait on the consumer of the event channel.
type dispatcher struct {
	mu     sync.Mutex
	queue  deque.Deque[Event]
	wake   chan struct{}
	closed bool
	out    chan Event
}

func newDispatcher() *dispatcher {
	d := &dispatcher{
		wake: make(chan struct{}, 1),
		out:  make(chan Event),
	}
	go d.run()
	return d
}

func (d *dispatcher) push(ev Event) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.queue.PushBack(ev)
	d.mu.Unlock()
	d.signal()
}

// close stops accepting events. Queued events are still delivered before
// the output channel is closed.
func (d *dispatcher) close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.signal()
}

func (d *dispatcher) signal() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *dispatcher) run() {
	defer close(d.out)
	for {
		d.mu.Lock()
		if d.queue.Len() == 0 {
			closed := d.closed
			d.mu.Unlock()
			if closed {
				return
			}
			<-d.wake
			continue
		}
		ev := d.queue.PopFront()
		d.mu.Unlock()
		d.out <- ev
	}
}

// observer forwards one job's events into the dispatcher.
type observer struct {
	d *dispatcher
}

func (o observer) OnProgress(p job.Progress) {
	o.d.push(Event{Type: EventProgress, JobID: p.ID, Progress: p})
}

func (o observer) OnStatusChange(c job.StatusChange) {
	o.d.push(Event{Type: EventStatus, JobID: c.ID, Change: c})
}
