// Package bom recognizes byte order marks at the start of a byte stream.
//
// The detection rule when one candidate's bytes are a strict prefix of
// another (UTF-16LE vs UTF-32LE) is explicit: longer marks are always
// matched first, regardless of the order the caller lists candidates in.
package bom

import (
	"bytes"
	"fmt"
)

// ByteOrderMark pairs a fixed leading byte sequence with the charset it
// identifies. Values are immutable and compared by content.
type ByteOrderMark struct {
	charset string
	marker  []byte
}

// The standard marks, bit-exact.
var (
	UTF8    = mustMark("UTF-8", 0xEF, 0xBB, 0xBF)
	UTF16BE = mustMark("UTF-16BE", 0xFE, 0xFF)
	UTF16LE = mustMark("UTF-16LE", 0xFF, 0xFE)
	UTF32BE = mustMark("UTF-32BE", 0x00, 0x00, 0xFE, 0xFF)
	UTF32LE = mustMark("UTF-32LE", 0xFF, 0xFE, 0x00, 0x00)
)

// Standard lists the five standard marks.
func Standard() []ByteOrderMark {
	return []ByteOrderMark{UTF8, UTF16BE, UTF16LE, UTF32BE, UTF32LE}
}

// New creates a mark. The charset name and at least one byte are required.
func New(charset string, marker ...byte) (ByteOrderMark, error) {
	if charset == "" {
		return ByteOrderMark{}, fmt.Errorf("bom: charset name is required")
	}
	if len(marker) == 0 {
		return ByteOrderMark{}, fmt.Errorf("bom: marker bytes are required")
	}
	return ByteOrderMark{charset: charset, marker: append([]byte(nil), marker...)}, nil
}

func mustMark(charset string, marker ...byte) ByteOrderMark {
	m, err := New(charset, marker...)
	if err != nil {
		panic(err)
	}
	return m
}

// Charset returns the charset name the mark identifies.
func (b ByteOrderMark) Charset() string { return b.charset }

// Bytes returns a copy of the marker bytes.
func (b ByteOrderMark) Bytes() []byte { return append([]byte(nil), b.marker...) }

// Length returns the marker length in bytes.
func (b ByteOrderMark) Length() int { return len(b.marker) }

// Equal reports content equality.
func (b ByteOrderMark) Equal(o ByteOrderMark) bool {
	return b.charset == o.charset && bytes.Equal(b.marker, o.marker)
}

// matches reports whether data starts with the marker bytes.
func (b ByteOrderMark) matches(data []byte) bool {
	return len(data) >= len(b.marker) && bytes.Equal(data[:len(b.marker)], b.marker)
}

func (b ByteOrderMark) String() string {
	return fmt.Sprintf("%s % X", b.charset, b.marker)
}
