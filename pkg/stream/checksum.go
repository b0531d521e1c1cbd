package stream

import (
	"errors"
	"fmt"
	"hash"
	"io"
)

// ErrChecksumMismatch is returned when the accumulated checksum does not
// match the expected value at the verification point.
var ErrChecksumMismatch = errors.New("stream: checksum mismatch")

// ChecksumConfig configures a ChecksumReader.
type ChecksumConfig struct {
	// Hash is the running accumulator, e.g. crc32.NewIEEE() or
	// adler32.New(). Required.
	Hash hash.Hash32

	// Expected is the checksum the accumulator must produce at the
	// verification point. Only checked when Verify is true.
	Expected uint32

	// Verify enables the expected-value check.
	Verify bool

	// Threshold is the delivered-byte count at which verification runs.
	// Zero or negative means verify when the underlying reader reports EOF.
	Threshold int64
}

// ChecksumReader counts delivered bytes like a BoundedReader and feeds
// every delivered byte, in delivery order, to a running checksum
// accumulator before any threshold or EOF check fires. Skipped bytes are
// read through the accumulator as well, so a skip is indistinguishable
// from an unread delivery as far as the checksum is concerned.
type ChecksumReader struct {
	r        io.Reader
	sum      hash.Hash32
	count    int64
	expected uint32
	verify   bool
	thresh   int64
	checked  bool
	closed   bool
}

// NewChecksum wraps r according to cfg. The accumulator is treated as an
// opaque black box; its algorithm is the caller's choice.
func NewChecksum(r io.Reader, cfg ChecksumConfig) (*ChecksumReader, error) {
	if cfg.Hash == nil {
		return nil, errors.New("stream: checksum accumulator is required")
	}
	return &ChecksumReader{
		r:        r,
		sum:      cfg.Hash,
		expected: cfg.Expected,
		verify:   cfg.Verify,
		thresh:   cfg.Threshold,
	}, nil
}

// Count returns the total bytes delivered so far.
func (c *ChecksumReader) Count() int64 { return c.count }

// Sum32 returns the current accumulator value.
func (c *ChecksumReader) Sum32() uint32 { return c.sum.Sum32() }

func (c *ChecksumReader) check(atEOF bool) error {
	if !c.verify || c.checked {
		return nil
	}
	if c.thresh > 0 {
		if c.count < c.thresh {
			return nil
		}
	} else if !atEOF {
		return nil
	}
	c.checked = true
	if got := c.sum.Sum32(); got != c.expected {
		return fmt.Errorf("%w: got %#x, want %#x after %d bytes",
			ErrChecksumMismatch, got, c.expected, c.count)
	}
	return nil
}

// Read delivers bytes from the underlying reader, updating the
// accumulator with exactly the delivered bytes before any verification.
func (c *ChecksumReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		c.count += int64(n)
		c.sum.Write(p[:n]) // hash.Write never returns an error
	}
	if verr := c.check(err == io.EOF); verr != nil {
		return n, verr
	}
	return n, err
}

// ReadByte reads a single byte through the accumulator.
func (c *ChecksumReader) ReadByte() (byte, error) {
	var one [1]byte
	for {
		n, err := c.Read(one[:])
		if n == 1 {
			return one[0], nil
		}
		if err != nil {
			return 0, err
		}
	}
}

// Skip discards up to n bytes. The bytes are read through the accumulator
// rather than seeked past, otherwise the checksum would not cover them.
func (c *ChecksumReader) Skip(n int64) (int64, error) {
	var (
		buf     [512]byte
		skipped int64
	)
	for skipped < n {
		chunk := n - skipped
		if chunk > int64(len(buf)) {
			chunk = int64(len(buf))
		}
		rn, err := c.Read(buf[:chunk])
		skipped += int64(rn)
		if err == io.EOF {
			return skipped, nil
		}
		if err != nil {
			return skipped, err
		}
	}
	return skipped, nil
}

// Close closes the underlying reader. Repeated calls are no-ops.
func (c *ChecksumReader) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return Close(c.r)
}

var (
	_ io.ReadCloser = (*ChecksumReader)(nil)
	_ Skipper       = (*ChecksumReader)(nil)
)
