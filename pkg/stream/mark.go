package stream

import "io"

// MarkReader grants the Marker capability to any reader by recording
// bytes delivered after a mark and replaying them on Reset.
//
// Only bytes read between Mark and Reset are buffered; outside a mark the
// reader is a plain pass-through. Reading more than the mark's readLimit
// invalidates the mark and releases the buffer.
type MarkReader struct {
	r      io.Reader
	buf    []byte // bytes buffered since the mark, in delivery order
	pos    int    // next index in buf to replay
	marked bool
	limit  int
	closed bool
}

// NewMarkReader wraps r.
func NewMarkReader(r io.Reader) *MarkReader {
	return &MarkReader{r: r}
}

// Mark remembers the current logical position. A later Reset rewinds to
// it. readLimit bounds how many bytes may be read before the mark is
// invalidated; a non-positive limit invalidates immediately on the next
// fresh read.
func (m *MarkReader) Mark(readLimit int) {
	// Bytes at buf[pos:] are pending replay from an earlier Reset; they sit
	// after the new mark and must stay replayable.
	if m.pos > 0 {
		m.buf = append([]byte(nil), m.buf[m.pos:]...)
		m.pos = 0
	} else if m.buf != nil {
		m.buf = m.buf[:0]
	}
	m.marked = true
	m.limit = readLimit
}

// Reset rewinds to the mark. The mark stays valid, so Reset may be called
// repeatedly.
func (m *MarkReader) Reset() error {
	if !m.marked {
		return ErrNoMark
	}
	m.pos = 0
	return nil
}

func (m *MarkReader) invalidate() {
	m.marked = false
	m.buf = nil
	m.pos = 0
}

func (m *MarkReader) Read(p []byte) (int, error) {
	if m.pos < len(m.buf) {
		n := copy(p, m.buf[m.pos:])
		m.pos += n
		return n, nil
	}
	n, err := m.r.Read(p)
	if n > 0 && m.marked {
		if len(m.buf)+n <= m.limit {
			m.buf = append(m.buf, p[:n]...)
			m.pos = len(m.buf)
		} else {
			m.invalidate()
		}
	}
	return n, err
}

// ReadByte reads a single byte.
func (m *MarkReader) ReadByte() (byte, error) {
	var one [1]byte
	for {
		n, err := m.Read(one[:])
		if n == 1 {
			return one[0], nil
		}
		if err != nil {
			return 0, err
		}
	}
}

// Close closes the underlying reader. Repeated calls are no-ops.
func (m *MarkReader) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true
	return Close(m.r)
}

var (
	_ io.ReadCloser = (*MarkReader)(nil)
	_ Marker        = (*MarkReader)(nil)
)
