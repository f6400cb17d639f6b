package mistake_test

import (
	"reflect"
	"testing"

	"github.com/rs/zerolog"

	"github.com/pawnsight/coach/internal/analysis"
	"github.com/pawnsight/coach/internal/engine"
	"github.com/pawnsight/coach/internal/mistake"
)

const (
	fenAfterE4 = "rnbqkbnr/pppppppp/8/8/4P3/8/PPPPPPPP/RNBQKBNR b KQkq e3 0 1"
	fenAfterE5 = "rnbqkbnr/pppp1ppp/8/4p3/4P3/8/PPPPPPPP/RNBQKBNR w KQkq e6 0 2"
)

// enrichedPair builds two adjacent analyzed half-moves of one game with
// the given white-perspective centipawn scores.
func enrichedPair(prevCP, curCP int, playerColor string) []analysis.Enriched {
	return []analysis.Enriched{
		{
			Position: analysis.Position{
				GameID: "g1", Ply: 1, FEN: fenAfterE4, SideToMove: "b",
				MoveNumber: 1, PlayerColor: playerColor,
			},
			Result: &analysis.Result{Result: engine.Result{ScoreCP: prevCP, BestMove: "g8f6", Depth: 20}},
		},
		{
			Position: analysis.Position{
				GameID: "g1", Ply: 2, FEN: fenAfterE5, SideToMove: "w",
				MoveNumber: 2, PlayerColor: playerColor,
			},
			Result: &analysis.Result{Result: engine.Result{ScoreCP: curCP, BestMove: "g1f3", Depth: 20}},
		},
	}
}

func detect(t *testing.T, seq []analysis.Enriched, rating int) []mistake.Record {
	t.Helper()
	return mistake.Detect(seq, mistake.Options{Rating: rating, Logger: zerolog.Nop()})
}

func TestDetectBlackMistake(t *testing.T) {
	// Tracked Black player; White's score goes +20 -> +230 after Black's
	// move: a 210cp drop for the mover, a "mistake" at rating 1400.
	records := detect(t, enrichedPair(20, 230, "black"), 1400)
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}

	rec := records[0]
	if rec.Kind != mistake.KindMistake {
		t.Errorf("Kind = %q, want mistake", rec.Kind)
	}
	if rec.ScoreDrop != 210 {
		t.Errorf("ScoreDrop = %d, want 210", rec.ScoreDrop)
	}
	if rec.PlayerColor != "black" {
		t.Errorf("PlayerColor = %q, want black", rec.PlayerColor)
	}
	if rec.Phase != mistake.PhaseOpening {
		t.Errorf("Phase = %q, want opening", rec.Phase)
	}
	if rec.Category != mistake.CategoryTacticalAwareness && rec.Category != mistake.CategoryOpeningPrinciples {
		t.Errorf("Category = %q", rec.Category)
	}
	if rec.Move != "e5" {
		t.Errorf("Move = %q, want e5 (recovered from FEN pair)", rec.Move)
	}
	if rec.BestMove != "Nf6" {
		t.Errorf("BestMove = %q, want Nf6", rec.BestMove)
	}
	if rec.FENBefore != fenAfterE4 || rec.FENAfter != fenAfterE5 {
		t.Error("record FENs don't reference both positions")
	}
}

func TestDetectStrictThresholdBoundary(t *testing.T) {
	// At rating 2000 the blunder threshold is 200: a drop of exactly
	// 200 must classify as a mistake, 201 as a blunder.
	exact := detect(t, enrichedPair(20, 220, "black"), 2000)
	if len(exact) != 1 || exact[0].Kind != mistake.KindMistake {
		t.Fatalf("drop 200 = %+v, want one mistake", exact)
	}

	over := detect(t, enrichedPair(20, 221, "black"), 2000)
	if len(over) != 1 || over[0].Kind != mistake.KindBlunder {
		t.Fatalf("drop 201 = %+v, want one blunder", over)
	}
}

func TestDetectInaccuracyBoundary(t *testing.T) {
	// Rating 2000: inaccuracy threshold 50, strict.
	if records := detect(t, enrichedPair(20, 70, "black"), 2000); len(records) != 0 {
		t.Errorf("drop 50 = %+v, want none", records)
	}
	records := detect(t, enrichedPair(20, 71, "black"), 2000)
	if len(records) != 1 || records[0].Kind != mistake.KindInaccuracy {
		t.Errorf("drop 51 = %+v, want one inaccuracy", records)
	}
}

func TestDetectRatingBands(t *testing.T) {
	tests := []struct {
		rating int
		want   mistake.Thresholds
	}{
		{2400, mistake.Thresholds{Blunder: 200, Mistake: 100, Inaccuracy: 50}},
		{2000, mistake.Thresholds{Blunder: 200, Mistake: 100, Inaccuracy: 50}},
		{1999, mistake.Thresholds{Blunder: 250, Mistake: 125, Inaccuracy: 60}},
		{1600, mistake.Thresholds{Blunder: 250, Mistake: 125, Inaccuracy: 60}},
		{1599, mistake.Thresholds{Blunder: 300, Mistake: 150, Inaccuracy: 75}},
		{1200, mistake.Thresholds{Blunder: 300, Mistake: 150, Inaccuracy: 75}},
		{1199, mistake.Thresholds{Blunder: 400, Mistake: 200, Inaccuracy: 100}},
		{0, mistake.Thresholds{Blunder: 400, Mistake: 200, Inaccuracy: 100}},
	}
	for _, tt := range tests {
		if got := mistake.ThresholdsForRating(tt.rating); got != tt.want {
			t.Errorf("ThresholdsForRating(%d) = %+v, want %+v", tt.rating, got, tt.want)
		}
	}
}

func TestDetectAttributionSkipsOpponent(t *testing.T) {
	// The mover is Black but the tracked player is White: no record.
	if records := detect(t, enrichedPair(20, 500, "white"), 1400); len(records) != 0 {
		t.Errorf("records = %+v, want none for opponent's move", records)
	}
}

func TestDetectNoAttributionConsidersAll(t *testing.T) {
	if records := detect(t, enrichedPair(20, 500, ""), 1400); len(records) != 1 {
		t.Errorf("got %d records, want 1 when no player color is set", len(records))
	}
}

func TestDetectWhitePerspective(t *testing.T) {
	// White is the mover: score falling from +150 to -100 is a 250 drop.
	seq := []analysis.Enriched{
		{
			Position: analysis.Position{GameID: "g1", Ply: 0, FEN: "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1", SideToMove: "w", MoveNumber: 1},
			Result:   &analysis.Result{Result: engine.Result{ScoreCP: 150, BestMove: "e2e4"}},
		},
		{
			Position: analysis.Position{GameID: "g1", Ply: 1, FEN: "rnbqkbnr/pppppppp/8/8/8/7P/PPPPPPP1/RNBQKBNR b KQkq - 0 1", SideToMove: "b", MoveNumber: 1},
			Result:   &analysis.Result{Result: engine.Result{ScoreCP: -100, BestMove: "d7d5"}},
		},
	}
	records := detect(t, seq, 1400)
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if records[0].ScoreDrop != 250 || records[0].PlayerColor != "white" {
		t.Errorf("record = %+v, want 250cp drop by white", records[0])
	}
}

func TestDetectSkipsFailedSlots(t *testing.T) {
	seq := enrichedPair(20, 500, "black")
	seq[0].Failed = true
	seq[0].Result = nil
	if records := detect(t, seq, 1400); len(records) != 0 {
		t.Errorf("records = %+v, want none across a failed slot", records)
	}
}

func TestDetectSkipsNonAdjacentPlies(t *testing.T) {
	seq := enrichedPair(20, 500, "black")
	seq[1].Position.Ply = 5 // gap from prioritizer selection
	if records := detect(t, seq, 1400); len(records) != 0 {
		t.Errorf("records = %+v, want none across a ply gap", records)
	}
}

func TestDetectMateCountsAsBlunder(t *testing.T) {
	seq := enrichedPair(50, 0, "black")
	seq[1].Result = &analysis.Result{Result: engine.Result{Mate: true, MateIn: 2, BestMove: "g8f6"}}
	records := detect(t, seq, 1400)
	if len(records) != 1 || records[0].Kind != mistake.KindBlunder {
		t.Fatalf("records = %+v, want one blunder for allowing mate", records)
	}
}

func TestDetectMoveNumberFromPreviousFEN(t *testing.T) {
	seq := enrichedPair(20, 230, "black")
	seq[0].Position.MoveNumber = 99 // stale stored counter; FEN says 1
	records := detect(t, seq, 1400)
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if records[0].MoveNumber != 1 {
		t.Errorf("MoveNumber = %d, want 1 (from previous FEN)", records[0].MoveNumber)
	}
}

func TestDetectDeterministic(t *testing.T) {
	seq := enrichedPair(20, 230, "black")
	first := detect(t, seq, 1400)
	second := detect(t, seq, 1400)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("detection not idempotent:\n%+v\n%+v", first, second)
	}
}

func TestCategorizeByRatingAndPhase(t *testing.T) {
	// Middlegame FENs with full material, move numbers past the opening.
	middlegameFEN := func(side string, move int) string {
		if side == "b" {
			return "r1bqkb1r/pppp1ppp/2n2n2/4p3/2B1P3/5N2/PPPP1PPP/RNBQK2R b KQkq - 0 20"
		}
		return "r1bqkb1r/pppp1ppp/2n2n2/4p3/2B1P3/5N2/PPPP1PPP/RNBQK2R w KQkq - 0 20"
	}

	build := func(prevCP, curCP int) []analysis.Enriched {
		seq := enrichedPair(prevCP, curCP, "black")
		seq[0].Position.FEN = middlegameFEN("b", 20)
		seq[1].Position.FEN = middlegameFEN("w", 20)
		return seq
	}

	// Rating 1600, 250cp swing: tactical calculation.
	records := detect(t, build(20, 270), 1600)
	if len(records) != 1 || records[0].Category != mistake.CategoryTacticalCalculation {
		t.Errorf("records = %+v, want tactical_calculation", records)
	}

	// Rating 1600, 150cp swing: positional judgment.
	records = detect(t, build(20, 170), 1600)
	if len(records) != 1 || records[0].Category != mistake.CategoryPositionalJudgment {
		t.Errorf("records = %+v, want positional_judgment", records)
	}

	// Rating 1400 middlegame maps to the coarse vocabulary.
	records = detect(t, build(20, 270), 1400)
	if len(records) != 1 || records[0].Category != mistake.CategoryTacticalAwareness {
		t.Errorf("records = %+v, want tactical_awareness", records)
	}
}

func TestPhaseFor(t *testing.T) {
	full := "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"
	sparse := "4k3/8/8/8/8/8/4P3/4K2R w K - 0 1"

	tests := []struct {
		move int
		fen  string
		want mistake.Phase
	}{
		{10, full, mistake.PhaseOpening},
		{15, sparse, mistake.PhaseOpening},
		{20, full, mistake.PhaseMiddlegame},
		{20, sparse, mistake.PhaseEndgame},
		{41, full, mistake.PhaseEndgame},
	}
	for _, tt := range tests {
		if got := mistake.PhaseFor(tt.move, tt.fen); got != tt.want {
			t.Errorf("PhaseFor(%d, %q) = %q, want %q", tt.move, tt.fen, got, tt.want)
		}
	}
}
