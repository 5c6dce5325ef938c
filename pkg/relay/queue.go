package relay

import (
	"context"
	"sync"
)

// chunk is either a data chunk or the close marker.
// The marker is out of band, so no payload can ever be mistaken for it.
type chunk struct {
	data   []byte
	closed bool
}

// queue is an unbounded FIFO of chunks with a single producer and a single consumer.
type queue struct {
	mux    sync.Mutex
	items  []chunk
	closed bool
	wake   chan struct{}
	done   chan struct{}
}

func newQueue() *queue {
	return &queue{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Put appends a data chunk. Chunks put after Close are dropped.
func (q *queue) Put(data []byte) {
	q.push(chunk{data: data})
}

// Close appends the close marker. Only the first call has any effect.
func (q *queue) Close() {
	q.push(chunk{closed: true})
}

func (q *queue) push(c chunk) {
	q.mux.Lock()
	if q.closed {
		q.mux.Unlock()
		return
	}
	q.items = append(q.items, c)
	if c.closed {
		q.closed = true
		close(q.done)
	}
	q.mux.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Done is closed as soon as the close marker has been queued, even if earlier chunks are still pending.
func (q *queue) Done() <-chan struct{} {
	return q.done
}

// Len returns the number of pending chunks, including the close marker.
func (q *queue) Len() int {
	q.mux.Lock()
	defer q.mux.Unlock()
	return len(q.items)
}

// Get removes and returns the oldest chunk, waiting for one if necessary.
// Nothing is removed if ctx is done first.
func (q *queue) Get(ctx context.Context) (chunk, error) {
	for {
		q.mux.Lock()
		if len(q.items) > 0 {
			c := q.items[0]
			q.items[0] = chunk{}
			q.items = q.items[1:]
			q.mux.Unlock()
			return c, nil
		}
		q.mux.Unlock()

		select {
		case <-q.wake:
		case <-ctx.Done():
			return chunk{}, ctx.Err()
		}
	}
}
