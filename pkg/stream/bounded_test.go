package stream

import (
	"bytes"
	"errors"
	"io"
	"math"
	"strings"
	"testing"
)

// failAfterEOF errors on any read after EOF, to prove the bounded reader
// stops delegating once the budget is spent.
type failAfterEOF struct {
	r    io.Reader
	dead bool
}

func (f *failAfterEOF) Read(p []byte) (int, error) {
	if f.dead {
		return 0, errors.New("read past limit reached the delegate")
	}
	n, err := f.r.Read(p)
	if err == io.EOF {
		f.dead = true
	}
	return n, err
}

func TestBoundedReader_CountEqualsDeliveredBytes(t *testing.T) {
	src := strings.NewReader("abcdefghij")
	b := NewBoundedReader(src, 7)

	buf := make([]byte, 3)
	n, err := b.Read(buf)
	if err != nil || n != 3 {
		t.Fatalf("read: n=%d err=%v", n, err)
	}
	skipped, err := b.Skip(2)
	if err != nil || skipped != 2 {
		t.Fatalf("skip: n=%d err=%v", skipped, err)
	}
	n, err = b.Read(make([]byte, 10))
	if err != nil || n != 2 {
		t.Fatalf("clipped read: n=%d err=%v", n, err)
	}
	if got := b.Count(); got != 7 {
		t.Fatalf("count = %d, want 7", got)
	}
	if _, err := b.Read(buf); err != io.EOF {
		t.Fatalf("read at limit: err=%v, want io.EOF", err)
	}
}

func TestBoundedReader_LimitDoesNotTouchDelegate(t *testing.T) {
	b := NewBoundedReader(&failAfterEOF{r: strings.NewReader("abcdef")}, 4)
	if _, err := io.ReadAll(io.LimitReader(b, 4)); err != nil {
		t.Fatalf("drain: %v", err)
	}
	// At the limit every read must come back EOF without a delegate call.
	for i := 0; i < 3; i++ {
		if _, err := b.Read(make([]byte, 1)); err != io.EOF {
			t.Fatalf("read %d at limit: err=%v, want io.EOF", i, err)
		}
	}
}

func TestBoundedReader_OnLimitFiresOncePerTransition(t *testing.T) {
	var fired int
	b := NewBounded(strings.NewReader("abcd"), BoundedConfig{
		Max:     2,
		OnLimit: func(max, count int64) { fired++ },
	})
	buf := make([]byte, 8)
	if n, _ := b.Read(buf); n != 2 {
		t.Fatalf("read: n=%d, want 2", n)
	}
	for i := 0; i < 4; i++ {
		if _, err := b.Read(buf); err != io.EOF {
			t.Fatalf("err=%v, want io.EOF", err)
		}
	}
	if fired != 1 {
		t.Fatalf("OnLimit fired %d times, want 1", fired)
	}

	// ResetCount re-arms the transition.
	if prev := b.ResetCount(); prev != 2 {
		t.Fatalf("ResetCount = %d, want 2", prev)
	}
	if n, _ := b.Read(buf); n != 2 {
		t.Fatalf("read after reset: n=%d, want 2", n)
	}
	if _, err := b.Read(buf); err != io.EOF {
		t.Fatalf("err=%v, want io.EOF", err)
	}
	if fired != 2 {
		t.Fatalf("OnLimit fired %d times after re-arm, want 2", fired)
	}
}

func TestBoundedReader_ZeroBudgetIsImmediateEOF(t *testing.T) {
	var fired int
	b := NewBounded(&failAfterEOF{dead: true}, BoundedConfig{
		Max:     0,
		OnLimit: func(max, count int64) { fired++ },
	})
	if _, err := b.Read(make([]byte, 1)); err != io.EOF {
		t.Fatalf("err=%v, want io.EOF", err)
	}
	if fired != 1 {
		t.Fatalf("OnLimit fired %d times, want 1", fired)
	}
}

func TestBoundedReader_AfterReadCallback(t *testing.T) {
	var total int
	b := NewBounded(strings.NewReader("abcdefgh"), BoundedConfig{
		Max:       Unbounded,
		AfterRead: func(n int) { total += n },
	})
	if _, err := io.ReadAll(b); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if total != 8 {
		t.Fatalf("AfterRead accumulated %d, want 8", total)
	}
}

func TestBoundedReader_StartCountAndCount32Overflow(t *testing.T) {
	b := NewBounded(strings.NewReader("xy"), BoundedConfig{
		Max:        Unbounded,
		StartCount: math.MaxInt32,
	})
	if v, err := b.Count32(); err != nil || v != math.MaxInt32 {
		t.Fatalf("Count32 = %d, %v", v, err)
	}
	if _, err := b.Read(make([]byte, 1)); err != nil {
		t.Fatalf("read: %v", err)
	}
	if _, err := b.Count32(); !errors.Is(err, ErrCountOverflow) {
		t.Fatalf("Count32 err=%v, want ErrCountOverflow", err)
	}
	if got := b.Count(); got != math.MaxInt32+1 {
		t.Fatalf("Count = %d, want %d", got, int64(math.MaxInt32)+1)
	}
}

func TestBoundedReader_CountSurvivesReset(t *testing.T) {
	m := NewMarkReader(strings.NewReader("abcdef"))
	b := NewBoundedReader(m, Unbounded)

	b.Mark(16)
	buf := make([]byte, 3)
	if _, err := io.ReadFull(b, buf); err != nil {
		t.Fatalf("read: %v", err)
	}
	if err := b.Reset(); err != nil {
		t.Fatalf("reset: %v", err)
	}
	// Count tracks lifetime delivery and must not roll back on reset.
	if got := b.Count(); got != 3 {
		t.Fatalf("count after reset = %d, want 3", got)
	}
	if _, err := io.ReadFull(b, buf); err != nil {
		t.Fatalf("replay read: %v", err)
	}
	if string(buf) != "abc" {
		t.Fatalf("replay = %q, want %q", buf, "abc")
	}
	if got := b.Count(); got != 6 {
		t.Fatalf("count after replay = %d, want 6", got)
	}
}

func TestBoundedReader_ResetWithoutMarker(t *testing.T) {
	b := NewBoundedReader(strings.NewReader("abc"), Unbounded)
	if err := b.Reset(); !errors.Is(err, ErrMarkUnsupported) {
		t.Fatalf("err=%v, want ErrMarkUnsupported", err)
	}
}

func TestBoundedReader_SkipClippedToRemaining(t *testing.T) {
	b := NewBoundedReader(strings.NewReader("abcdefghij"), 4)
	skipped, err := b.Skip(100)
	if err != nil {
		t.Fatalf("skip: %v", err)
	}
	if skipped != 4 {
		t.Fatalf("skipped %d, want 4", skipped)
	}
	if skipped, _ := b.Skip(1); skipped != 0 {
		t.Fatalf("skip at limit = %d, want 0", skipped)
	}
}

func TestBoundedReader_AvailableClipped(t *testing.T) {
	inner := NewBoundedReader(strings.NewReader("abcdefghij"), Unbounded)
	// Give the inner reader an availability hint by reading nothing yet;
	// BoundedReader reports min(underlying hint, remaining).
	outer := NewBoundedReader(availHint{inner, 10}, 3)
	if got := outer.Available(); got != 3 {
		t.Fatalf("Available = %d, want 3", got)
	}
}

type availHint struct {
	io.Reader
	n int
}

func (a availHint) Available() int { return a.n }

func TestBoundedReader_CloseIdempotent(t *testing.T) {
	cc := &closeCounter{Reader: bytes.NewReader([]byte("x"))}
	b := NewBoundedReader(cc, Unbounded)
	if err := b.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if cc.closes != 1 {
		t.Fatalf("underlying closed %d times, want 1", cc.closes)
	}
}

type closeCounter struct {
	io.Reader
	closes int
}

func (c *closeCounter) Close() error {
	c.closes++
	return nil
}
