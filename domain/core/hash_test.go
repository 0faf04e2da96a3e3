package core

import "testing"

func TestComputeSweepFingerprint(t *testing.T) {
	base := ComputeSweepFingerprint([]int{10, 100}, []float64{0.04, 0.4}, 0.95, "hdi", "Beta(1, 1)", 10000, 42)
	if len(base) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(base))
	}

	again := ComputeSweepFingerprint([]int{10, 100}, []float64{0.04, 0.4}, 0.95, "hdi", "Beta(1, 1)", 10000, 42)
	if base != again {
		t.Errorf("fingerprint not stable: %s vs %s", base, again)
	}

	variants := []Hash{
		ComputeSweepFingerprint([]int{10, 1000}, []float64{0.04, 0.4}, 0.95, "hdi", "Beta(1, 1)", 10000, 42),
		ComputeSweepFingerprint([]int{10, 100}, []float64{0.04, 0.6}, 0.95, "hdi", "Beta(1, 1)", 10000, 42),
		ComputeSweepFingerprint([]int{10, 100}, []float64{0.04, 0.4}, 0.9, "hdi", "Beta(1, 1)", 10000, 42),
		ComputeSweepFingerprint([]int{10, 100}, []float64{0.04, 0.4}, 0.95, "equal-tailed", "Beta(1, 1)", 10000, 42),
		ComputeSweepFingerprint([]int{10, 100}, []float64{0.04, 0.4}, 0.95, "hdi", "Beta(1, 1)", 5000, 42),
		ComputeSweepFingerprint([]int{10, 100}, []float64{0.04, 0.4}, 0.95, "hdi", "Beta(1, 1)", 10000, 7),
		ComputeSweepFingerprint([]int{10, 100}, []float64{0.04, 0.4}, 0.95, "hdi", "Beta(0.5, 0.5)", 10000, 42),
	}
	for i, v := range variants {
		if v.Equals(base) {
			t.Errorf("variant %d collided with base fingerprint", i)
		}
	}
}
