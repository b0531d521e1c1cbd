// Package xmlenc determines the character encoding of an XML byte stream
// by a layered detection protocol: byte order mark, then transport
// content-type hint, then the prolog's encoding pseudo-attribute, with a
// configurable default as the final fallback.
//
// Detection is complete before the first caller read. Bytes consumed while
// sniffing are replayed, so the caller-visible stream starts at the first
// content byte (the byte order mark, if any, is never delivered) and the
// output is the content decoded to UTF-8.
package xmlenc

import (
	"bytes"
	"errors"
	"io"
	"regexp"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/encoding/unicode/utf32"
	"golang.org/x/text/transform"

	"github.com/fluxorio/streamio/pkg/bom"
	"github.com/fluxorio/streamio/pkg/stream"
)

// Stage identifies which detection stage produced the encoding decision.
type Stage int

const (
	// StageDefault means no signal was found and the configured default
	// applies.
	StageDefault Stage = iota
	// StageBOM means a byte order mark decided the encoding.
	StageBOM
	// StageTransport means the content-type charset parameter decided it.
	StageTransport
	// StageProlog means the XML prolog's encoding attribute decided it.
	StageProlog
)

func (s Stage) String() string {
	switch s {
	case StageBOM:
		return "BOM"
	case StageTransport:
		return "content-type"
	case StageProlog:
		return "prolog"
	default:
		return "default"
	}
}

// DefaultLookahead is the sniffing window. The prolog is not assumed to
// sit in the first few bytes; anything inside this window is found.
const DefaultLookahead = 8192

// Config configures a Reader.
type Config struct {
	// ContentType is the transport hint, e.g. "text/xml;charset=UTF-8".
	// Empty means no hint.
	ContentType string

	// Lenient prefers the strongest signal over a conflicting weaker one
	// instead of failing: BOM over transport over prolog.
	Lenient bool

	// DefaultEncoding is the fallback when nothing is detected.
	// Default: UTF-8, per the XML specification.
	DefaultEncoding string

	// Lookahead overrides the sniffing window size. Default 8192.
	Lookahead int
}

// prologPattern matches the encoding pseudo-attribute of an XML
// declaration, tolerating whitespace and newlines between tokens and
// single or double quotes around values.
var prologPattern = regexp.MustCompile(
	`(?s)<\?xml[ \t\r\n]+(?:version[ \t\r\n]*=[ \t\r\n]*(?:"[^"]*"|'[^']*')[ \t\r\n]*)?` +
		`encoding[ \t\r\n]*=[ \t\r\n]*(?:"([^"]*)"|'([^']*)')`)

// Reader is a byte stream with its encoding already decided. Read returns
// the content decoded to UTF-8; the original bytes minus only the byte
// order mark round-trip through the detected encoding.
type Reader struct {
	r        io.Reader
	encoding string
	stage    Stage
	bomLen   int
	closed   bool
	closer   io.Reader // the wrapped source, for Close
}

// NewReader sniffs the encoding of r and returns a decoded reader. It
// fails fast: conflicts and unsupported encodings surface here, before any
// content is handed to the caller.
func NewReader(r io.Reader, cfg Config) (*Reader, error) {
	lookahead := cfg.Lookahead
	if lookahead <= 0 {
		lookahead = DefaultLookahead
	}
	deflt := cfg.DefaultEncoding
	if deflt == "" {
		deflt = "UTF-8"
	}

	buf := make([]byte, lookahead)
	n, err := io.ReadFull(r, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, err
	}
	buf = buf[:n]

	bomEnc, bomLen := sniffBOM(buf)
	_, ctCharset := parseContentType(cfg.ContentType)
	declared := sniffProlog(buf[bomLen:], scanEncoding(bomEnc, buf[bomLen:]))

	name, stage, err := resolve(bomEnc, ctCharset, declared, cfg.Lenient, deflt)
	if err != nil {
		return nil, err
	}
	enc, lerr := lookupEncoding(name)
	if lerr != nil {
		return nil, &InvalidEncodingError{Encoding: name, Stage: stage}
	}

	content := io.Reader(io.MultiReader(bytes.NewReader(buf[bomLen:]), r))
	if !strings.EqualFold(name, "UTF-8") {
		content = enc.NewDecoder().Reader(content)
	}
	return &Reader{
		r:        content,
		encoding: name,
		stage:    stage,
		bomLen:   bomLen,
		closer:   r,
	}, nil
}

// Encoding returns the detected encoding name.
func (x *Reader) Encoding() string { return x.encoding }

// Stage returns the detection stage that decided the encoding.
func (x *Reader) Stage() Stage { return x.stage }

// BOMLength returns the number of byte-order-mark bytes consumed, zero
// when the stream had none.
func (x *Reader) BOMLength() int { return x.bomLen }

func (x *Reader) Read(p []byte) (int, error) { return x.r.Read(p) }

// Close closes the wrapped source. Repeated calls are no-ops.
func (x *Reader) Close() error {
	if x.closed {
		return nil
	}
	x.closed = true
	return stream.Close(x.closer)
}

// sniffBOM matches the standard mark table, most specific patterns first,
// so the UTF-16LE prefix cannot falsely match inside a UTF-32LE mark.
func sniffBOM(buf []byte) (string, int) {
	for _, m := range []bom.ByteOrderMark{bom.UTF32BE, bom.UTF32LE, bom.UTF8, bom.UTF16BE, bom.UTF16LE} {
		if b := m.Bytes(); bytes.HasPrefix(buf, b) {
			return m.Charset(), len(b)
		}
	}
	return "", 0
}

// scanEncoding picks the encoding used to decode the lookahead window for
// prolog scanning: the BOM encoding when present, otherwise a guess from
// the byte pattern of a leading "<?" in the 16- and 32-bit unicode forms.
// Empty means scan the raw bytes (ASCII-compatible).
func scanEncoding(bomEnc string, content []byte) string {
	if bomEnc != "" {
		return bomEnc
	}
	if len(content) < 4 {
		return ""
	}
	switch {
	case bytes.HasPrefix(content, []byte{0x00, 0x00, 0x00, 0x3C}):
		return "UTF-32BE"
	case bytes.HasPrefix(content, []byte{0x3C, 0x00, 0x00, 0x00}):
		return "UTF-32LE"
	case bytes.HasPrefix(content, []byte{0x00, 0x3C, 0x00, 0x3F}):
		return "UTF-16BE"
	case bytes.HasPrefix(content, []byte{0x3C, 0x00, 0x3F, 0x00}):
		return "UTF-16LE"
	}
	return ""
}

// sniffProlog extracts the encoding declared in an XML prolog from the
// lookahead window, decoding it first when the window is not
// ASCII-compatible. Returns the uppercased name, or empty.
func sniffProlog(content []byte, scanEnc string) string {
	text := content
	if scanEnc != "" && !strings.EqualFold(scanEnc, "UTF-8") {
		enc, err := lookupEncoding(scanEnc)
		if err != nil {
			return ""
		}
		// Trim a truncated trailing code unit before decoding.
		if w := unitWidth(scanEnc); w > 1 {
			text = content[:len(content)/w*w]
		}
		decoded, _, err := transform.Bytes(enc.NewDecoder(), text)
		if err != nil && len(decoded) == 0 {
			return ""
		}
		text = decoded
	}
	m := prologPattern.FindSubmatch(text)
	if m == nil {
		return ""
	}
	for _, g := range m[1:] {
		if len(g) > 0 {
			return strings.ToUpper(string(g))
		}
	}
	return ""
}

// resolve applies the stage priority and conflict rules.
func resolve(bomEnc, ctCharset, declared string, lenient bool, deflt string) (string, Stage, error) {
	if lenient {
		// Strongest signal wins, no conflict errors.
		switch {
		case bomEnc != "":
			return bomEnc, StageBOM, nil
		case ctCharset != "":
			return ctCharset, StageTransport, nil
		case declared != "":
			return declared, StageProlog, nil
		default:
			return deflt, StageDefault, nil
		}
	}

	if bomEnc != "" {
		if ctCharset != "" && !agree(bomEnc, ctCharset) {
			return "", 0, &IllegalEncodingError{BOM: bomEnc, Transport: ctCharset}
		}
		if declared != "" && !agree(bomEnc, declared) {
			return "", 0, &IllegalEncodingError{BOM: bomEnc, Declared: declared}
		}
		return bomEnc, StageBOM, nil
	}
	if ctCharset != "" {
		return ctCharset, StageTransport, nil
	}
	if declared != "" {
		return declared, StageProlog, nil
	}
	return deflt, StageDefault, nil
}

// agree reports whether two encoding names are compatible: equal ignoring
// case, or one is the generic family name (UTF-16, UTF-32) of the other.
func agree(a, b string) bool {
	if strings.EqualFold(a, b) {
		return true
	}
	au, bu := strings.ToUpper(a), strings.ToUpper(b)
	for _, family := range []string{"UTF-16", "UTF-32"} {
		if (au == family && strings.HasPrefix(bu, family)) ||
			(bu == family && strings.HasPrefix(au, family)) {
			return true
		}
	}
	return false
}

func unitWidth(name string) int {
	switch strings.ToUpper(name) {
	case "UTF-16", "UTF-16BE", "UTF-16LE":
		return 2
	case "UTF-32", "UTF-32BE", "UTF-32LE":
		return 4
	default:
		return 1
	}
}

// lookupEncoding resolves an encoding name to a decoder. The unicode
// forms are pinned explicitly (no BOM handling: the mark was already
// consumed); everything else goes through the IANA index.
func lookupEncoding(name string) (encoding.Encoding, error) {
	switch strings.ToUpper(name) {
	case "UTF-8":
		return unicode.UTF8, nil
	case "UTF-16BE":
		return unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM), nil
	case "UTF-16LE":
		return unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM), nil
	case "UTF-32BE":
		return utf32.UTF32(utf32.BigEndian, utf32.IgnoreBOM), nil
	case "UTF-32LE":
		return utf32.UTF32(utf32.LittleEndian, utf32.IgnoreBOM), nil
	}
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil {
		return nil, err
	}
	if enc == nil {
		return nil, errors.New("xmlenc: encoding not supported by the runtime")
	}
	return enc, nil
}

var _ io.ReadCloser = (*Reader)(nil)
