package stream

import (
	"errors"
	"io"
	"strings"
	"testing"
)

func TestMarkReader_ReplayAfterReset(t *testing.T) {
	m := NewMarkReader(strings.NewReader("abcdef"))
	m.Mark(16)

	buf := make([]byte, 4)
	if _, err := io.ReadFull(m, buf); err != nil {
		t.Fatalf("read: %v", err)
	}
	if err := m.Reset(); err != nil {
		t.Fatalf("reset: %v", err)
	}
	again := make([]byte, 4)
	if _, err := io.ReadFull(m, again); err != nil {
		t.Fatalf("replay: %v", err)
	}
	if string(again) != "abcd" {
		t.Fatalf("replay = %q, want %q", again, "abcd")
	}
	rest, err := io.ReadAll(m)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if string(rest) != "ef" {
		t.Fatalf("rest = %q, want %q", rest, "ef")
	}
}

func TestMarkReader_RepeatedReset(t *testing.T) {
	m := NewMarkReader(strings.NewReader("xyz"))
	m.Mark(8)
	for i := 0; i < 3; i++ {
		got, err := io.ReadAll(m)
		if err != nil {
			t.Fatalf("drain %d: %v", i, err)
		}
		if string(got) != "xyz" {
			t.Fatalf("drain %d = %q, want %q", i, got, "xyz")
		}
		if err := m.Reset(); err != nil {
			t.Fatalf("reset %d: %v", i, err)
		}
	}
}

func TestMarkReader_MarkMidReplayKeepsPending(t *testing.T) {
	m := NewMarkReader(strings.NewReader("abcdef"))
	m.Mark(16)
	buf := make([]byte, 4)
	if _, err := io.ReadFull(m, buf); err != nil {
		t.Fatalf("read: %v", err)
	}
	if err := m.Reset(); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if _, err := io.ReadFull(m, buf[:2]); err != nil {
		t.Fatalf("partial replay: %v", err)
	}

	// Re-mark in the middle of a replay: the not-yet-redelivered bytes
	// belong after the new mark.
	m.Mark(16)
	rest, err := io.ReadAll(m)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if string(rest) != "cdef" {
		t.Fatalf("rest = %q, want %q", rest, "cdef")
	}
	if err := m.Reset(); err != nil {
		t.Fatalf("reset to second mark: %v", err)
	}
	rest, err = io.ReadAll(m)
	if err != nil {
		t.Fatalf("drain after reset: %v", err)
	}
	if string(rest) != "cdef" {
		t.Fatalf("rest after reset = %q, want %q", rest, "cdef")
	}
}

func TestMarkReader_LimitInvalidatesMark(t *testing.T) {
	m := NewMarkReader(strings.NewReader("abcdefgh"))
	m.Mark(2)
	if _, err := io.ReadFull(m, make([]byte, 4)); err != nil {
		t.Fatalf("read: %v", err)
	}
	if err := m.Reset(); !errors.Is(err, ErrNoMark) {
		t.Fatalf("reset err=%v, want ErrNoMark", err)
	}
}

func TestMarkReader_ResetWithoutMark(t *testing.T) {
	m := NewMarkReader(strings.NewReader("abc"))
	if err := m.Reset(); !errors.Is(err, ErrNoMark) {
		t.Fatalf("reset err=%v, want ErrNoMark", err)
	}
}
