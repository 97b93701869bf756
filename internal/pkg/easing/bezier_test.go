package easing_test

import (
	"math"
	"testing"

	"github.com/samirrijal/mapcam/internal/pkg/easing"
)

func TestEase_Endpoints(t *testing.T) {
	if got := easing.Ease(0); got != 0 {
		t.Errorf("Ease(0) = %v, want 0", got)
	}
	if got := easing.Ease(1); got != 1 {
		t.Errorf("Ease(1) = %v, want 1", got)
	}
	if got := easing.Ease(-0.5); got != 0 {
		t.Errorf("Ease(-0.5) = %v, want 0", got)
	}
	if got := easing.Ease(2); got != 1 {
		t.Errorf("Ease(2) = %v, want 1", got)
	}
}

func TestEase_Monotonic(t *testing.T) {
	prev := 0.0
	for i := 1; i <= 100; i++ {
		v := easing.Ease(float64(i) / 100)
		if v < prev {
			t.Fatalf("Ease not monotonic at %d: %v < %v", i, v, prev)
		}
		prev = v
	}
}

func TestUnitBezier_LinearControlPoints(t *testing.T) {
	b := easing.NewUnitBezier(0, 0, 1, 1)
	for _, x := range []float64{0.1, 0.25, 0.5, 0.75, 0.9} {
		if got := b.Solve(x); math.Abs(got-x) > 1e-5 {
			t.Errorf("Solve(%v) = %v, want %v", x, got, x)
		}
	}
}

func TestEase_KnownValue(t *testing.T) {
	// cubic-bezier(0.25, 0.1, 0.25, 1) at 0.5 is about 0.8024.
	if got := easing.Ease(0.5); math.Abs(got-0.8024) > 1e-3 {
		t.Errorf("Ease(0.5) = %v, want ~0.8024", got)
	}
}

func TestByName(t *testing.T) {
	for _, name := range []string{"", "ease", "linear", "ease-in", "ease-out", "ease-in-out"} {
		fn, err := easing.ByName(name)
		if err != nil {
			t.Fatalf("ByName(%q): %v", name, err)
		}
		if fn(1) != 1 {
			t.Errorf("ByName(%q)(1) = %v, want 1", name, fn(1))
		}
	}
	if _, err := easing.ByName("bounce"); err == nil {
		t.Error("expected error for unknown easing")
	}
}
