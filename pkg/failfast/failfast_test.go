package failfast

import (
	"errors"
	"testing"
)

func mustPanic(t *testing.T, name string, fn func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Fatalf("%s: expected panic", name)
		}
	}()
	fn()
}

func TestErr(t *testing.T) {
	Err(nil)
	mustPanic(t, "Err", func() { Err(errors.New("boom")) })
}

func TestIf(t *testing.T) {
	If(true, "fine")
	mustPanic(t, "If", func() { If(false, "bad %d", 7) })
}

func TestNotNil(t *testing.T) {
	NotNil("value", "s")
	mustPanic(t, "untyped nil", func() { NotNil(nil, "p") })

	var typed *int
	mustPanic(t, "typed nil pointer", func() { NotNil(typed, "p") })

	var fn func()
	mustPanic(t, "nil func", func() { NotNil(fn, "fn") })

	nonNil := new(int)
	NotNil(nonNil, "p")
}
