package envutil

import (
	"testing"
	"time"
)

func TestIntFallsBackOnGarbage(t *testing.T) {
	t.Setenv("ENVUTIL_INT", "nope")
	if got := Int("ENVUTIL_INT", 7); got != 7 {
		t.Fatalf("Int=%d want 7", got)
	}
	t.Setenv("ENVUTIL_INT", " 12 ")
	if got := Int("ENVUTIL_INT", 7); got != 12 {
		t.Fatalf("Int=%d want 12", got)
	}
}

func TestBool(t *testing.T) {
	t.Setenv("ENVUTIL_BOOL", "off")
	if Bool("ENVUTIL_BOOL", true) {
		t.Fatalf("expected false")
	}
	t.Setenv("ENVUTIL_BOOL", "")
	if !Bool("ENVUTIL_BOOL", true) {
		t.Fatalf("expected default true")
	}
}

func TestDuration(t *testing.T) {
	t.Setenv("ENVUTIL_DUR", "750ms")
	if got := Duration("ENVUTIL_DUR", time.Second); got != 750*time.Millisecond {
		t.Fatalf("Duration=%s", got)
	}
	t.Setenv("ENVUTIL_DUR", "30")
	if got := Duration("ENVUTIL_DUR", time.Second); got != 30*time.Second {
		t.Fatalf("Duration=%s", got)
	}
	t.Setenv("ENVUTIL_DUR", "-x")
	if got := Duration("ENVUTIL_DUR", time.Second); got != time.Second {
		t.Fatalf("Duration=%s", got)
	}
}
