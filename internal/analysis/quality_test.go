package analysis_test

import (
	"testing"

	"github.com/pawnsight/coach/internal/analysis"
)

func TestQualityScoreFullCompletion(t *testing.T) {
	// Target met exactly with a healthy node count: every component maxes.
	if got := analysis.QualityScore(20, 1_000_000, 20); got != 100 {
		t.Errorf("QualityScore(20, 1e6, 20) = %d, want 100", got)
	}
}

func TestQualityScoreNoNodes(t *testing.T) {
	// Depth reached but zero nodes reported: 40 (depth) + 0 + 30 (completion).
	if got := analysis.QualityScore(18, 0, 18); got != 70 {
		t.Errorf("QualityScore(18, 0, 18) = %d, want 70", got)
	}
}

func TestQualityScoreCompletionTiers(t *testing.T) {
	tests := []struct {
		achieved int
		want     int
	}{
		{24, 100}, // at target: 40 + 30 + 30
		{22, 87},  // 2 short: 40*22/24 + 30 + 20 = 36.67+50
		{19, 72},  // 5 short: 40*19/24 + 30 + 10 = 31.67+40
		{18, 60},  // 6 short: 40*18/24 + 30 + 0
	}
	for _, tt := range tests {
		if got := analysis.QualityScore(tt.achieved, 10_000_000, 24); got != tt.want {
			t.Errorf("QualityScore(%d, 1e7, 24) = %d, want %d", tt.achieved, got, tt.want)
		}
	}
}

func TestQualityScoreBounds(t *testing.T) {
	for _, depth := range []int{0, 1, 10, 18, 30, 60} {
		for _, nodes := range []int64{0, 1, 9999, 10000, 1 << 40} {
			got := analysis.QualityScore(depth, nodes, 18)
			if got < 0 || got > 100 {
				t.Fatalf("QualityScore(%d, %d, 18) = %d, out of [0,100]", depth, nodes, got)
			}
		}
	}
}

func TestQualityScoreMonotonicInDepth(t *testing.T) {
	prev := -1
	for depth := 0; depth <= 30; depth++ {
		got := analysis.QualityScore(depth, 50000, 24)
		if got < prev {
			t.Fatalf("score decreased at depth %d: %d -> %d", depth, prev, got)
		}
		prev = got
	}
}

func TestQualityScoreMonotonicInNodes(t *testing.T) {
	prev := -1
	for nodes := int64(0); nodes <= 40000; nodes += 1000 {
		got := analysis.QualityScore(20, nodes, 20)
		if got < prev {
			t.Fatalf("score decreased at nodes %d: %d -> %d", nodes, prev, got)
		}
		prev = got
	}
}

func TestQualityScoreTargetFloor(t *testing.T) {
	// A target below 18 is evaluated against 18.
	if got, want := analysis.QualityScore(9, 0, 10), 20; got != want {
		t.Errorf("QualityScore(9, 0, 10) = %d, want %d (depth ratio 9/18)", got, want)
	}
}
