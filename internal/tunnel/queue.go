package tunnel

import (
	"sync"

	"github.com/eapache/queue"
)

// frameQueue is an unbounded FIFO of frames decoupling the client read side
// from backpressure on the upstream write side.
type frameQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  *queue.Queue
	closed bool
}

func newFrameQueue() *frameQueue {
	q := &frameQueue{items: queue.New()}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// push enqueues a frame. Pushing to a closed queue is a no-op.
func (q *frameQueue) push(f Frame) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.items.Add(f)
	q.cond.Signal()
}

// pop blocks until a frame is available or the queue is closed. The second
// return value is false once the queue is closed and drained.
func (q *frameQueue) pop() (Frame, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.items.Length() == 0 && !q.closed {
		q.cond.Wait()
	}
	if q.items.Length() == 0 {
		return Frame{}, false
	}
	return q.items.Remove().(Frame), true
}

// close wakes every blocked pop. Frames already queued are still drained.
func (q *frameQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.cond.Broadcast()
}
