package stream

import (
	"context"
	"sync"
)

type frame struct {
	data []byte
	err  error
}

// frameQueue hands frames from a transport's reader to Next. Pushes never
// block once the queue is closed.
type frameQueue struct {
	ch        chan frame
	done      chan struct{}
	closeOnce sync.Once
}

func newFrameQueue(size int) *frameQueue {
	return &frameQueue{ch: make(chan frame, size), done: make(chan struct{})}
}

// push delivers f unless the queue was closed. It reports whether f was
// delivered.
func (q *frameQueue) push(f frame) bool {
	select {
	case q.ch <- f:
		return true
	case <-q.done:
		return false
	}
}

func (q *frameQueue) next(ctx context.Context) ([]byte, error) {
	select {
	case <-q.done:
		return nil, ErrClosed
	default:
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-q.done:
		return nil, ErrClosed
	case f := <-q.ch:
		return f.data, f.err
	}
}

// close stops the queue and reports whether this call closed it.
func (q *frameQueue) close() bool {
	closed := false
	q.closeOnce.Do(func() {
		close(q.done)
		closed = true
	})
	return closed
}
