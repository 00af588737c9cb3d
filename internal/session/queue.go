package session

import (
	"sync"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/lvcoi/ytdl-here/internal/dispatch"
)

// DefaultQueueSize bounds buffered worker events.
const DefaultQueueSize = 256

// EventMsg delivers one worker event to the interface loop.
type EventMsg struct {
	Event dispatch.Event
}

// QueueClosedMsg is returned by Next once the queue is closed.
type QueueClosedMsg struct{}

// Queue hands worker events to a single consumer. Progress events are
// dropped when the buffer is full; every other event waits for room.
//
// The consumer can change once: Next feeds the interface loop until Release,
// after which Events is the only reader.
type Queue struct {
	ch        chan dispatch.Event
	done      chan struct{}
	closeOnce sync.Once
	dropped   atomic.Int64

	mu       sync.Mutex
	released bool
	handoff  chan struct{}
	readers  sync.WaitGroup
	pending  []dispatch.Event
}

func NewQueue(size int) *Queue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Queue{
		ch:      make(chan dispatch.Event, size),
		done:    make(chan struct{}),
		handoff: make(chan struct{}),
	}
}

// Post is safe for concurrent use and never blocks after Close.
func (q *Queue) Post(ev dispatch.Event) {
	if ev.Kind == dispatch.EventJobProgress {
		select {
		case q.ch <- ev:
		case <-q.done:
		default:
			q.dropped.Add(1)
		}
		return
	}
	select {
	case q.ch <- ev:
	case <-q.done:
	}
}

// Close releases blocked senders. Events still buffered stay readable
// through Events.
func (q *Queue) Close() {
	q.closeOnce.Do(func() { close(q.done) })
}

// Events exposes the receive side for consumers outside Bubble Tea.
func (q *Queue) Events() <-chan dispatch.Event {
	return q.ch
}

// Done is closed by Close.
func (q *Queue) Done() <-chan struct{} {
	return q.done
}

// Dropped counts progress events discarded because the buffer was full.
func (q *Queue) Dropped() int64 {
	return q.dropped.Load()
}

// Next waits for one event. The interface re-issues it after each EventMsg
// and calls Ack once the event is applied. After Release it reports closure.
func (q *Queue) Next() tea.Cmd {
	return func() tea.Msg {
		q.mu.Lock()
		if q.released {
			q.mu.Unlock()
			return QueueClosedMsg{}
		}
		q.readers.Add(1)
		q.mu.Unlock()
		defer q.readers.Done()

		select {
		case ev := <-q.ch:
			q.mu.Lock()
			q.pending = append(q.pending, ev)
			q.mu.Unlock()
			return EventMsg{Event: ev}
		case <-q.handoff:
			return QueueClosedMsg{}
		case <-q.done:
			return QueueClosedMsg{}
		}
	}
}

// Ack marks the oldest event handed out by Next as applied.
func (q *Queue) Ack() {
	q.mu.Lock()
	if len(q.pending) > 0 {
		q.pending = q.pending[1:]
	}
	q.mu.Unlock()
}

// Release stops Next, waits for in-flight Next calls to return, and hands
// back the events they took that were never acknowledged, oldest first.
// Those precede anything still readable through Events.
func (q *Queue) Release() []dispatch.Event {
	q.mu.Lock()
	if !q.released {
		q.released = true
		close(q.handoff)
	}
	q.mu.Unlock()
	q.readers.Wait()

	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.pending
	q.pending = nil
	return out
}
