package stream

import (
	"io"
	"math"
)

// Unbounded disables the byte budget of a BoundedReader.
const Unbounded int64 = -1

// BoundedConfig configures a BoundedReader.
type BoundedConfig struct {
	// Max is the byte budget. Unbounded (-1) disables the limit.
	Max int64

	// StartCount pre-seeds the counter, e.g. when the reader takes over a
	// stream that has already been partially consumed.
	StartCount int64

	// OnLimit is invoked exactly once per limit-reached transition, before
	// the clipped read returns EOF. Optional.
	OnLimit func(max, count int64)

	// AfterRead is invoked after every delivering read or skip with the
	// number of bytes just accounted. Optional.
	AfterRead func(n int)
}

// BoundedReader wraps a reader and limits how many bytes can be read
// through it, with exact accounting.
//
// Contract summary:
//   - The counter equals the total bytes ever delivered (reads and skips).
//   - When a budget is set, reads past it return io.EOF without touching
//     the underlying reader.
//   - Reset does NOT roll the counter back: the count tracks lifetime
//     delivery, replayed bytes included. This asymmetry is intentional.
//   - Close is idempotent and always closes the underlying reader.
type BoundedReader struct {
	r        io.Reader
	max      int64
	count    int64
	limitHit bool
	closed   bool
	onLimit  func(max, count int64)
	afterRd  func(n int)
}

// NewBoundedReader wraps r with a byte budget of max. Pass Unbounded for
// counting without a limit.
func NewBoundedReader(r io.Reader, max int64) *BoundedReader {
	return NewBounded(r, BoundedConfig{Max: max})
}

// NewBounded wraps r according to cfg. A negative Max means unbounded;
// a negative StartCount is treated as zero.
func NewBounded(r io.Reader, cfg BoundedConfig) *BoundedReader {
	max := cfg.Max
	if max < 0 {
		max = Unbounded
	}
	start := cfg.StartCount
	if start < 0 {
		start = 0
	}
	return &BoundedReader{
		r:       r,
		max:     max,
		count:   start,
		onLimit: cfg.OnLimit,
		afterRd: cfg.AfterRead,
	}
}

// MaxCount returns the configured budget, or Unbounded.
func (b *BoundedReader) MaxCount() int64 { return b.max }

// Count returns the total number of bytes delivered so far.
func (b *BoundedReader) Count() int64 { return b.count }

// Count32 returns the count as a 32-bit value. Unlike Count it fails
// loudly with ErrCountOverflow when the reader has moved past 2^31-1
// bytes instead of silently truncating.
func (b *BoundedReader) Count32() (int32, error) {
	if b.count > math.MaxInt32 {
		return 0, ErrCountOverflow
	}
	return int32(b.count), nil
}

// ResetCount zeroes the counter and returns its previous value. It also
// re-arms the on-limit callback.
func (b *BoundedReader) ResetCount() int64 {
	prev := b.count
	b.count = 0
	b.limitHit = false
	return prev
}

// Remaining returns the bytes left in the budget, or math.MaxInt64 when
// unbounded.
func (b *BoundedReader) Remaining() int64 {
	if b.max < 0 {
		return math.MaxInt64
	}
	if rem := b.max - b.count; rem > 0 {
		return rem
	}
	return 0
}

func (b *BoundedReader) fireLimit() {
	if !b.limitHit {
		b.limitHit = true
		if b.onLimit != nil {
			b.onLimit(b.max, b.count)
		}
	}
}

func (b *BoundedReader) account(n int) {
	if n <= 0 {
		return
	}
	b.count += int64(n)
	if b.afterRd != nil {
		b.afterRd(n)
	}
}

// Read reads at most Remaining() bytes from the underlying reader. At the
// limit it returns io.EOF without a delegate call.
func (b *BoundedReader) Read(p []byte) (int, error) {
	allowed := b.Remaining()
	if allowed == 0 {
		b.fireLimit()
		return 0, io.EOF
	}
	if int64(len(p)) > allowed {
		p = p[:allowed]
	}
	n, err := b.r.Read(p)
	b.account(n)
	return n, err
}

// ReadByte reads a single byte, widened per the io.ByteReader contract.
func (b *BoundedReader) ReadByte() (byte, error) {
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

// Skip discards up to n bytes, clipped to the remaining budget. The counter
// advances by the amount the underlying reader actually discarded, which
// may be less than requested.
func (b *BoundedReader) Skip(n int64) (int64, error) {
	allowed := b.Remaining()
	if allowed == 0 {
		b.fireLimit()
		return 0, nil
	}
	if n > allowed {
		n = allowed
	}
	skipped, err := Skip(b.r, n)
	b.account(int(skipped))
	return skipped, err
}

// Available reports min(underlying availability, remaining budget).
func (b *BoundedReader) Available() int {
	a := Available(b.r)
	if rem := b.Remaining(); int64(a) > rem {
		return int(rem)
	}
	return a
}

// Mark delegates to the underlying reader when it supports marking and is
// a no-op otherwise.
func (b *BoundedReader) Mark(readLimit int) {
	if m, ok := b.r.(Marker); ok {
		m.Mark(readLimit)
	}
}

// Reset rewinds the underlying reader to the mark. The byte counter is
// deliberately not rolled back; see the type documentation.
func (b *BoundedReader) Reset() error {
	m, ok := b.r.(Marker)
	if !ok {
		return ErrMarkUnsupported
	}
	return m.Reset()
}

// Close closes the underlying reader. Repeated calls are no-ops.
func (b *BoundedReader) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	return Close(b.r)
}

var (
	_ io.ReadCloser = (*BoundedReader)(nil)
	_ io.ByteReader = (*BoundedReader)(nil)
	_ Skipper       = (*BoundedReader)(nil)
	_ Availer       = (*BoundedReader)(nil)
	_ Marker        = (*BoundedReader)(nil)
)
