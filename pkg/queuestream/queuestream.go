// Package queuestream connects a writer and a reader through a queue of
// byte chunks. Writes never block: each chunk is copied and enqueued.
// Reads drain whatever is available and otherwise wait, bounded by an
// optional timeout or context. The pair is safe for one writer goroutine
// and one reader goroutine; the writer side is additionally safe for
// concurrent writers.
//
// The same reader and writer shapes are available over NATS subjects and
// WebSocket connections, so a pipeline written against the in-memory
// pair moves across process boundaries without code changes.
package queuestream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
)

var (
	// ErrClosed is returned by writes to a closed pipe and by reads on a
	// reader whose own Close has been called.
	ErrClosed = errors.New("queuestream: closed")

	// ErrReadTimeout is returned when no data arrives within the
	// configured read timeout. The read may be retried.
	ErrReadTimeout = errors.New("queuestream: read timeout")
)

// Config configures an in-memory pipe.
type Config struct {
	// ReadTimeout is how long a read waits for data before returning
	// ErrReadTimeout. Zero means no waiting: an empty queue fails a
	// plain Read immediately. ReadContext always waits, bounded by its
	// context and, when set, this timeout.
	ReadTimeout time.Duration
}

// queue is the shared state between a Reader and a Writer. It is
// unbounded; backpressure is the caller's concern, which is what keeps
// writes non-blocking.
type queue struct {
	mu     sync.Mutex
	chunks [][]byte
	closed bool

	// notify wakes a waiting reader. Capacity one: a single pending
	// wakeup is enough, the reader re-checks state in a loop.
	notify chan struct{}
}

func (q *queue) wake() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// NewPipe returns a connected reader and writer sharing one queue.
func NewPipe(cfg Config) (*Reader, *Writer) {
	q := &queue{notify: make(chan struct{}, 1)}
	return &Reader{q: q, timeout: cfg.ReadTimeout}, &Writer{q: q}
}

// Writer is the producing end of a pipe.
type Writer struct {
	q *queue
}

// Write copies p and enqueues it without blocking.
func (w *Writer) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	w.q.mu.Lock()
	if w.q.closed {
		w.q.mu.Unlock()
		return 0, ErrClosed
	}
	w.q.chunks = append(w.q.chunks, append([]byte(nil), p...))
	w.q.mu.Unlock()
	w.q.wake()
	return len(p), nil
}

// Close marks the pipe closed. The reader drains what was already
// written and then sees io.EOF. Close is idempotent.
func (w *Writer) Close() error {
	w.q.mu.Lock()
	w.q.closed = true
	w.q.mu.Unlock()
	w.q.wake()
	return nil
}

// Reader is the consuming end of a pipe. Data is returned in write
// order; a read may return fewer bytes than written when p is small, the
// remainder is kept for the next read.
type Reader struct {
	q       *queue
	timeout time.Duration
	closed  bool
}

var _ io.ReadCloser = (*Reader)(nil)
var _ io.ByteReader = (*Reader)(nil)

// Read fills p from the queue. When the queue is empty it waits for
// data, bounded by the configured timeout. It returns io.EOF only after
// the writer has closed and all written data has been delivered; an
// empty queue with a live writer is ErrReadTimeout, never EOF.
func (r *Reader) Read(p []byte) (int, error) {
	return r.read(context.Background(), p, r.timeout > 0)
}

// ReadContext is Read with the wait bounded by ctx in addition to the
// configured timeout. Cancellation surfaces as an error wrapping
// ctx.Err, so a caller can tell an interrupted read from end of stream.
func (r *Reader) ReadContext(ctx context.Context, p []byte) (int, error) {
	return r.read(ctx, p, true)
}

func (r *Reader) read(ctx context.Context, p []byte, wait bool) (int, error) {
	if r.closed {
		return 0, ErrClosed
	}
	if len(p) == 0 {
		return 0, nil
	}
	var deadline <-chan time.Time
	if r.timeout > 0 {
		t := time.NewTimer(r.timeout)
		defer t.Stop()
		deadline = t.C
	}
	for {
		if n := r.drain(p); n > 0 {
			return n, nil
		}
		r.q.mu.Lock()
		closed := r.q.closed && len(r.q.chunks) == 0
		r.q.mu.Unlock()
		if closed {
			return 0, io.EOF
		}
		if !wait {
			return 0, ErrReadTimeout
		}
		select {
		case <-r.q.notify:
		case <-deadline:
			return 0, ErrReadTimeout
		case <-ctx.Done():
			return 0, fmt.Errorf("queuestream: read interrupted: %w", ctx.Err())
		}
	}
}

// drain copies immediately available bytes into p without waiting.
func (r *Reader) drain(p []byte) int {
	n := 0
	r.q.mu.Lock()
	for n < len(p) && len(r.q.chunks) > 0 {
		c := copy(p[n:], r.q.chunks[0])
		n += c
		if c == len(r.q.chunks[0]) {
			r.q.chunks = r.q.chunks[1:]
		} else {
			r.q.chunks[0] = r.q.chunks[0][c:]
		}
	}
	r.q.mu.Unlock()
	return n
}

// ReadByte reads a single byte, waiting like Read does.
func (r *Reader) ReadByte() (byte, error) {
	var b [1]byte
	for {
		n, err := r.Read(b[:])
		if err != nil {
			return 0, err
		}
		if n == 1 {
			return b[0], nil
		}
	}
}

// Available reports how many bytes a read could return without waiting.
func (r *Reader) Available() int {
	n := 0
	r.q.mu.Lock()
	for _, c := range r.q.chunks {
		n += len(c)
	}
	r.q.mu.Unlock()
	return n
}

// Close releases the reader. Data still queued is discarded; the writer
// keeps accepting writes until its own Close.
func (r *Reader) Close() error {
	r.closed = true
	return nil
}
