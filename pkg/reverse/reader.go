// Package reverse reads a file backward, yielding complete lines in
// reverse order. It operates over fixed-size blocks read from the end of
// the file toward the start and is correct across block boundaries for
// multi-byte encodings: bytes that cannot yet be attributed to a complete
// line are carried over and prepended to the next block.
package reverse

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/encoding/unicode/utf32"
	"golang.org/x/text/transform"
)

// Errors returned by Open.
var (
	// ErrUnsupportedEncoding is returned for encodings the backward
	// scanner cannot handle safely, e.g. UTF-16 without an explicit byte
	// order.
	ErrUnsupportedEncoding = errors.New("reverse: unsupported encoding")

	// ErrInvalidBlockSize is returned for a negative block size.
	ErrInvalidBlockSize = errors.New("reverse: block size must be positive")
)

// DefaultBlockSize is the backward read granularity. The reader is
// correct for any block size down to a single byte; the default trades
// syscalls for memory.
const DefaultBlockSize = 4096

// Config configures a LineReader.
type Config struct {
	// BlockSize is the backward read granularity. Default 4096; must be
	// at least 1.
	BlockSize int

	// Encoding is the IANA name of the file's encoding. Default UTF-8.
	Encoding string
}

// LineReader reads the lines of a file in reverse order. It holds one
// open file handle for its lifetime and must be closed.
type LineReader struct {
	f         *os.File
	blockSize int

	enc   encoding.Encoding
	raw   bool // content is ASCII-transparent, decode is a byte copy
	width int  // code unit width; terminators sit at offsets divisible by it

	// encoded terminator byte sequences
	lf   []byte
	cr   []byte
	crlf []byte

	filePos   int64  // bytes [0, filePos) have not been loaded yet
	buf       []byte // loaded, unconsumed suffix of the file, in order
	stripCR   bool   // a trailing LF was stripped; its CR may still arrive
	exhausted bool
}

// Open opens path for backward line reading.
func Open(path string, cfg Config) (*LineReader, error) {
	blockSize := cfg.BlockSize
	if blockSize == 0 {
		blockSize = DefaultBlockSize
	}
	if blockSize < 0 {
		return nil, ErrInvalidBlockSize
	}
	enc, raw, width, err := resolveEncoding(cfg.Encoding)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	r := &LineReader{
		f:         f,
		blockSize: blockSize,
		enc:       enc,
		raw:       raw,
		width:     width,
		filePos:   st.Size(),
	}
	if r.lf, err = r.encode("\n"); err != nil {
		f.Close()
		return nil, err
	}
	if r.cr, err = r.encode("\r"); err != nil {
		f.Close()
		return nil, err
	}
	r.crlf = append(append([]byte(nil), r.cr...), r.lf...)

	if r.filePos == 0 {
		r.exhausted = true
		return r, nil
	}
	// Load the file tail and drop the final terminator, if any, so a file
	// ending in a newline does not yield a phantom empty first line. This
	// mirrors forward reading, where a trailing terminator closes the last
	// line instead of opening a new one. Small block sizes may need more
	// than one fill before a full terminator is visible.
	for len(r.buf) < len(r.crlf) && r.filePos > 0 {
		if err := r.fill(); err != nil {
			f.Close()
			return nil, err
		}
	}
	r.stripTrailingTerminator()
	return r, nil
}

func (r *LineReader) encode(s string) ([]byte, error) {
	if r.raw {
		return []byte(s), nil
	}
	out, err := r.enc.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *LineReader) stripTrailingTerminator() {
	if r.suffixIs(r.crlf) {
		r.buf = r.buf[:len(r.buf)-len(r.crlf)]
		return
	}
	if r.suffixIs(r.lf) {
		r.buf = r.buf[:len(r.buf)-len(r.lf)]
		// The matching CR, if the file ends in CRLF, may still be in an
		// unloaded block.
		if !r.dropSuffixCR() {
			r.stripCR = r.filePos > 0
		}
		return
	}
	if r.suffixIs(r.cr) {
		r.buf = r.buf[:len(r.buf)-len(r.cr)]
	}
}

func (r *LineReader) dropSuffixCR() bool {
	if r.suffixIs(r.cr) {
		r.buf = r.buf[:len(r.buf)-len(r.cr)]
		return true
	}
	return len(r.buf) >= len(r.cr)
}

func (r *LineReader) suffixIs(term []byte) bool {
	if len(r.buf) < len(term) {
		return false
	}
	i := len(r.buf) - len(term)
	if r.width > 1 && (r.filePos+int64(i))%int64(r.width) != 0 {
		return false
	}
	return bytes.Equal(r.buf[i:], term)
}

// fill prepends the previous block to the carried-over bytes.
func (r *LineReader) fill() error {
	if r.filePos == 0 {
		return io.EOF
	}
	n := int64(r.blockSize)
	if n > r.filePos {
		n = r.filePos
	}
	r.filePos -= n
	block := make([]byte, n, n+int64(len(r.buf)))
	if _, err := r.f.ReadAt(block, r.filePos); err != nil {
		return err
	}
	r.buf = append(block, r.buf...)
	if r.stripCR && len(r.buf) >= len(r.cr) {
		r.stripCR = false
		if r.suffixIs(r.cr) {
			r.buf = r.buf[:len(r.buf)-len(r.cr)]
		}
	}
	return nil
}

func (r *LineReader) matchAt(i int, term []byte) bool {
	if i < 0 || i+len(term) > len(r.buf) {
		return false
	}
	if r.width > 1 && (r.filePos+int64(i))%int64(r.width) != 0 {
		return false
	}
	return bytes.Equal(r.buf[i:i+len(term)], term)
}

// findTerminator locates the last line terminator in the buffer. It
// reports not-found when a possible CRLF spans into an unloaded block,
// so the caller loads more before splitting.
func (r *LineReader) findTerminator() (idx, tlen int, found bool) {
	for i := len(r.buf) - 1; i >= 0; i-- {
		if r.matchAt(i, r.lf) {
			j := i - len(r.cr)
			if r.matchAt(j, r.cr) {
				return j, len(r.crlf), true
			}
			if j < 0 && r.filePos > 0 {
				// The LF may be the tail of a CRLF split across blocks.
				return 0, 0, false
			}
			return i, len(r.lf), true
		}
		if r.matchAt(i, r.cr) {
			// A trailing CR in the buffer is always a bare terminator:
			// the byte that followed it in the file was either cut at an
			// earlier line boundary or checked by the LF branch above.
			return i, len(r.cr), true
		}
	}
	return 0, 0, false
}

// ReadLine returns the next line toward the start of the file, without
// its terminator. It returns io.EOF after the first line of the file has
// been delivered.
func (r *LineReader) ReadLine() (string, error) {
	for {
		if idx, tlen, found := r.findTerminator(); found {
			line := r.buf[idx+tlen:]
			r.buf = r.buf[:idx]
			return r.decode(line)
		}
		if r.filePos == 0 {
			if r.exhausted {
				return "", io.EOF
			}
			r.exhausted = true
			line := r.buf
			r.buf = nil
			return r.decode(line)
		}
		if err := r.fill(); err != nil {
			return "", err
		}
	}
}

// LastLines reads the last n lines of the file and returns them in
// forward (file) order. Fewer lines are returned when the file is
// shorter.
func (r *LineReader) LastLines(n int) ([]string, error) {
	var reversed []string
	for len(reversed) < n {
		line, err := r.ReadLine()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		reversed = append(reversed, line)
	}
	out := make([]string, len(reversed))
	for i, line := range reversed {
		out[len(out)-1-i] = line
	}
	return out, nil
}

func (r *LineReader) decode(b []byte) (string, error) {
	if r.raw {
		return string(b), nil
	}
	out, _, err := transform.Bytes(r.enc.NewDecoder(), b)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Close releases the file handle.
func (r *LineReader) Close() error {
	return r.f.Close()
}

// doubleByteSafe lists multi-byte encodings whose trail bytes can never
// be mistaken for CR or LF, which makes raw terminator scanning sound.
var doubleByteSafe = map[string]bool{
	"SHIFT_JIS":   true,
	"SHIFT-JIS":   true,
	"WINDOWS-31J": true,
	"GBK":         true,
	"GB2312":      true,
	"GB18030":     true,
	"BIG5":        true,
	"EUC-JP":      true,
	"EUC-KR":      true,
}

func resolveEncoding(name string) (enc encoding.Encoding, raw bool, width int, err error) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	switch upper {
	case "", "UTF-8", "US-ASCII", "ASCII":
		// UTF-8 continuation bytes are >= 0x80 and cannot collide with
		// terminator bytes, so raw scanning is sound.
		return unicode.UTF8, true, 1, nil
	case "UTF-16BE":
		return unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM), false, 2, nil
	case "UTF-16LE":
		return unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM), false, 2, nil
	case "UTF-32BE":
		return utf32.UTF32(utf32.BigEndian, utf32.IgnoreBOM), false, 4, nil
	case "UTF-32LE":
		return utf32.UTF32(utf32.LittleEndian, utf32.IgnoreBOM), false, 4, nil
	case "UTF-16", "UTF-32":
		// No byte order: code unit boundaries cannot be tracked backward.
		return nil, false, 0, fmt.Errorf("%w: %s requires an explicit byte order", ErrUnsupportedEncoding, upper)
	}

	e, lerr := ianaindex.IANA.Encoding(name)
	if lerr != nil || e == nil {
		return nil, false, 0, fmt.Errorf("%w: %q", ErrUnsupportedEncoding, name)
	}
	if _, ok := e.(*charmap.Charmap); ok {
		// Single-byte supersets of ASCII scan raw.
		return e, false, 1, nil
	}
	if doubleByteSafe[upper] {
		return e, false, 1, nil
	}
	return nil, false, 0, fmt.Errorf("%w: %q", ErrUnsupportedEncoding, name)
}
