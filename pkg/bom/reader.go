package bom

import (
	"errors"
	"io"
	"sort"

	"github.com/fluxorio/streamio/pkg/stream"
)

// Errors returned by Reader.
var (
	// ErrNoCandidates is returned when a Reader is constructed without any
	// candidate marks.
	ErrNoCandidates = errors.New("bom: at least one candidate mark is required")

	// ErrNotConfigured is returned by Has when queried for a mark that was
	// not in the configured candidate set. That query is a caller bug, not
	// a runtime condition.
	ErrNotConfigured = errors.New("bom: mark not in configured candidate set")
)

// Config configures a Reader.
type Config struct {
	// Candidates are the marks to detect. Defaults to UTF8 only.
	Candidates []ByteOrderMark

	// Include delivers matched mark bytes to the caller instead of
	// skipping them. Default: skip.
	Include bool
}

// Reader detects a byte order mark at the start of the wrapped stream.
// Detection is lazy: it runs on the first read or query. Mark/Reset work
// whether or not detection has happened and whether the mark was placed
// before or after the BOM region, provided the underlying reader supports
// marking.
type Reader struct {
	r          io.Reader
	candidates []ByteOrderMark // sorted longest first
	include    bool

	done     bool
	detected ByteOrderMark
	found    bool
	pending  []byte // sniffed bytes not yet delivered

	// snapshot taken by Mark so Reset can restore detection state
	markPending  []byte
	markDone     bool
	markDetected ByteOrderMark
	markFound    bool

	closed bool
}

// NewReader wraps r with BOM detection for UTF-8 only, skipping the mark.
func NewReader(r io.Reader) (*Reader, error) {
	return NewReaderConfig(r, Config{})
}

// NewReaderConfig wraps r according to cfg.
func NewReaderConfig(r io.Reader, cfg Config) (*Reader, error) {
	candidates := cfg.Candidates
	if candidates == nil {
		candidates = []ByteOrderMark{UTF8}
	}
	if len(candidates) == 0 {
		return nil, ErrNoCandidates
	}
	// Longer marks first so a prefix candidate (UTF-16LE) cannot shadow a
	// more specific one (UTF-32LE). The sort is stable: equal lengths keep
	// the caller's priority order.
	sorted := append([]ByteOrderMark(nil), candidates...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Length() > sorted[j].Length()
	})
	return &Reader{
		r:          r,
		candidates: sorted,
		include:    cfg.Include,
	}, nil
}

// detect reads the longest candidate length and matches the candidates in
// longest-first order.
func (b *Reader) detect() error {
	if b.done {
		return nil
	}
	b.done = true

	max := b.candidates[0].Length()
	buf := make([]byte, max)
	n, err := io.ReadFull(b.r, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return err
	}
	buf = buf[:n]

	for _, c := range b.candidates {
		if c.matches(buf) {
			b.detected = c
			b.found = true
			break
		}
	}
	if b.found && !b.include {
		b.pending = buf[b.detected.Length():]
	} else {
		b.pending = buf
	}
	return nil
}

// Has reports whether any configured mark was found.
func (b *Reader) Has() (bool, error) {
	if err := b.detect(); err != nil {
		return false, err
	}
	return b.found, nil
}

// HasMark reports whether the given mark was found. Querying a mark that
// is not in the configured candidate set returns ErrNotConfigured.
func (b *Reader) HasMark(m ByteOrderMark) (bool, error) {
	configured := false
	for _, c := range b.candidates {
		if c.Equal(m) {
			configured = true
			break
		}
	}
	if !configured {
		return false, ErrNotConfigured
	}
	if err := b.detect(); err != nil {
		return false, err
	}
	return b.found && b.detected.Equal(m), nil
}

// Detected returns the detected mark, if any.
func (b *Reader) Detected() (ByteOrderMark, bool, error) {
	if err := b.detect(); err != nil {
		return ByteOrderMark{}, false, err
	}
	return b.detected, b.found, nil
}

func (b *Reader) Read(p []byte) (int, error) {
	if err := b.detect(); err != nil {
		return 0, err
	}
	if len(b.pending) > 0 {
		n := copy(p, b.pending)
		b.pending = b.pending[n:]
		return n, nil
	}
	return b.r.Read(p)
}

// ReadByte reads a single byte.
func (b *Reader) ReadByte() (byte, error) {
	var one [1]byte
	for {
		n, err := b.Read(one[:])
		if n == 1 {
			return one[0], nil
		}
		if err != nil {
			return 0, err
		}
	}
}

// Mark places a mark at the current logical position when the underlying
// reader supports marking. Detection state is snapshotted so Reset
// restores the exact logical position, BOM-skipping included.
func (b *Reader) Mark(readLimit int) {
	m, ok := b.r.(stream.Marker)
	if !ok {
		return
	}
	b.markPending = append([]byte(nil), b.pending...)
	b.markDone = b.done
	b.markDetected = b.detected
	b.markFound = b.found
	m.Mark(readLimit)
}

// Reset rewinds to the mark placed by Mark.
func (b *Reader) Reset() error {
	m, ok := b.r.(stream.Marker)
	if !ok {
		return stream.ErrMarkUnsupported
	}
	if err := m.Reset(); err != nil {
		return err
	}
	b.pending = append([]byte(nil), b.markPending...)
	b.done = b.markDone
	b.detected = b.markDetected
	b.found = b.markFound
	return nil
}

// Close closes the underlying reader. Repeated calls are no-ops.
func (b *Reader) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	return stream.Close(b.r)
}

var (
	_ io.ReadCloser = (*Reader)(nil)
	_ stream.Marker = (*Reader)(nil)
)
