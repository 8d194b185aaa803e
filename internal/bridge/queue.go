package bridge

import "sync"

// queue is an unbounded FIFO of byte chunks with a single consumer.
type queue struct {
	mu     sync.Mutex
	items  [][]byte
	closed bool
	notify chan struct{}
}

func newQueue() *queue {
	return &queue{notify: make(chan struct{}, 1)}
}

func (q *queue) push(p []byte) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}

	q.items = append(q.items, p)
	q.mu.Unlock()

	q.signal()
}

// close marks the end of the stream. Queued items remain available.
func (q *queue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	q.signal()
}

func (q *queue) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// next blocks until an item is available, the queue is closed and drained,
// or stop is closed.
func (q *queue) next(stop <-chan struct{}) ([]byte, bool) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			item := q.items[0]
			q.items[0] = nil
			q.items = q.items[1:]
			q.mu.Unlock()

			return item, true
		}

		closed := q.closed
		q.mu.Unlock()

		if closed {
			return nil, false
		}

		select {
		case <-q.notify:
		case <-stop:
			return nil, false
		}
	}
}
