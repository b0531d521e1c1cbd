// Package stream defines the capability surface shared by the reader
// decorators in this module and provides the counting decorators built on it.
//
// Decorators accept a plain io.Reader and discover optional capabilities
// (skipping, availability hints, mark/reset) by type assertion, the same way
// the standard library discovers io.WriterTo or io.ReaderFrom. A decorator
// never requires more than io.Reader to construct.
package stream

import (
	"errors"
	"io"
)

// Sentinel errors shared by the decorators in this package.
var (
	// ErrMarkUnsupported is returned by Reset when the underlying reader
	// does not implement Marker.
	ErrMarkUnsupported = errors.New("stream: mark/reset not supported")

	// ErrNoMark is returned by Reset when no mark has been placed, or the
	// mark was invalidated by reading past its limit.
	ErrNoMark = errors.New("stream: no valid mark")

	// ErrCountOverflow is returned by the narrow counter accessor when the
	// byte count no longer fits in 32 bits. The wide accessor never fails.
	ErrCountOverflow = errors.New("stream: byte count exceeds 32-bit range")
)

// Skipper is the optional capability of discarding bytes without
// delivering them. Skip may under-skip; it reports the amount actually
// discarded.
type Skipper interface {
	Skip(n int64) (int64, error)
}

// Availer is the optional capability of hinting how many bytes can be
// read without blocking. The hint may be zero even when a read would
// succeed.
type Availer interface {
	Available() int
}

// Marker is the optional mark/reset capability. Mark remembers the current
// position; Reset rewinds to it so the bytes in between are replayed.
// readLimit bounds how many bytes may be read before the mark becomes
// invalid.
type Marker interface {
	Mark(readLimit int)
	Reset() error
}

// Skip discards up to n bytes from r, preferring the reader's own Skip or
// Seek capability and falling back to reading into a scratch buffer.
// It returns the number of bytes actually discarded.
func Skip(r io.Reader, n int64) (int64, error) {
	if n <= 0 {
		return 0, nil
	}
	if s, ok := r.(Skipper); ok {
		return s.Skip(n)
	}
	if s, ok := r.(io.Seeker); ok {
		cur, err := s.Seek(0, io.SeekCurrent)
		if err == nil {
			end, err := s.Seek(0, io.SeekEnd)
			if err != nil {
				return 0, err
			}
			skip := n
			if remaining := end - cur; skip > remaining {
				skip = remaining
			}
			if _, err := s.Seek(cur+skip, io.SeekStart); err != nil {
				return 0, err
			}
			return skip, nil
		}
	}
	skipped, err := io.CopyN(io.Discard, r, n)
	if err == io.EOF {
		err = nil
	}
	return skipped, err
}

// Available reports the reader's availability hint, or zero when the reader
// has none.
func Available(r io.Reader) int {
	if a, ok := r.(Availer); ok {
		return a.Available()
	}
	return 0
}

// Close closes r if it is an io.Closer.
func Close(r io.Reader) error {
	if c, ok := r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
