package bus

import (
	"context"
	"sync"
)

// EventQueue is the FIFO hand-off between the stream ingestor and the event
// processor. Single producer, single consumer. The buffer is sized so that
// ingestion never waits on delivery in practice; cat doors are not a
// high-throughput event source.
type EventQueue struct {
	ch        chan Frame
	closeOnce sync.Once
}

func NewEventQueue(size int) *EventQueue {
	if size <= 0 {
		size = 256
	}
	return &EventQueue{ch: make(chan Frame, size)}
}

// Enqueue adds a frame, blocking while the buffer is full. Returns false
// when ctx is cancelled before the frame is accepted, so a shutting-down
// producer never races the queue close.
func (q *EventQueue) Enqueue(ctx context.Context, f Frame) bool {
	select {
	case q.ch <- f:
		return true
	case <-ctx.Done():
		return false
	}
}

// Frames exposes the receive side for the consumer loop. The channel is
// closed by Close, which lets the consumer drain remaining frames before
// exiting.
func (q *EventQueue) Frames() <-chan Frame {
	return q.ch
}

// Len reports the number of frames currently buffered.
func (q *EventQueue) Len() int {
	return len(q.ch)
}

// Close stops the queue. Safe to call more than once; the producer must not
// enqueue afterwards.
func (q *EventQueue) Close() {
	q.closeOnce.Do(func() { close(q.ch) })
}
