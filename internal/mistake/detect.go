// Package mistake classifies evaluation drops between consecutive
// analyzed positions into rated mistake records.
package mistake

import (
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pawnsight/coach/internal/analysis"
)

// Kind is the severity of a mistake.
type Kind string

const (
	KindBlunder    Kind = "blunder"
	KindMistake    Kind = "mistake"
	KindInaccuracy Kind = "inaccuracy"
)

// Category is a secondary, rating-aware label used to group mistakes for
// coaching. Players at 1500+ get the finer vocabulary.
type Category string

const (
	CategoryOpeningPreparation  Category = "opening_preparation"
	CategoryTacticalCalculation Category = "tactical_calculation"
	CategoryPositionalJudgment  Category = "positional_judgment"
	CategoryEndgameTechnique    Category = "endgame_technique"

	CategoryOpeningPrinciples Category = "opening_principles"
	CategoryTacticalAwareness Category = "tactical_awareness"
	CategoryEndgameBasics     Category = "endgame_basics"
)

// Thresholds are centipawn drop limits for each severity, selected by the
// tracked player's average rating. A drop must strictly exceed a
// threshold to classify at that severity.
type Thresholds struct {
	Blunder    int
	Mistake    int
	Inaccuracy int
}

// ThresholdsForRating returns the drop thresholds for a rating band.
func ThresholdsForRating(rating int) Thresholds {
	switch {
	case rating >= 2000:
		return Thresholds{Blunder: 200, Mistake: 100, Inaccuracy: 50}
	case rating >= 1600:
		return Thresholds{Blunder: 250, Mistake: 125, Inaccuracy: 60}
	case rating >= 1200:
		return Thresholds{Blunder: 300, Mistake: 150, Inaccuracy: 75}
	default:
		return Thresholds{Blunder: 400, Mistake: 200, Inaccuracy: 100}
	}
}

// Record links two temporally adjacent analyses for the same player.
// Immutable once created.
type Record struct {
	GameID      string
	MoveNumber  int    // full-move counter of the previous position: the move just played
	PlayerColor string // color that made the move
	Move        string // the move played, SAN when convertible
	MoveLAN     string // the move played in long-algebraic form
	BestMove    string // engine's preferred alternative, SAN when convertible
	ScoreDrop   int    // centipawns from the mover's perspective; positive = worse
	Kind        Kind
	Category    Category
	Phase       Phase
	FENBefore   string
	FENAfter    string
}

// Options configures a detection pass.
type Options struct {
	Rating int // tracked player's average rating; 0 lands in the coarsest band
	Logger zerolog.Logger
}

// mateScoreCP stands in for a forced-mate evaluation when differencing
// against centipawn scores, so blundering into a mate still registers.
const mateScoreCP = 1500

// tacticalDropCP splits middlegame mistakes: a swing past this is a
// calculation failure rather than a judgment error.
const tacticalDropCP = 200

// Detect walks enriched positions ordered by original game sequence (one
// entry per half-move) and emits a Record wherever the mover's evaluation
// dropped past the rating-adaptive threshold. Half-moves are only
// attributed when the side that just moved matches the position's tracked
// player color, if one is set. Failed slots cannot be diffed and break
// adjacency on both sides.
func Detect(seq []analysis.Enriched, opts Options) []Record {
	thresholds := ThresholdsForRating(opts.Rating)
	var records []Record

	for i := 1; i < len(seq); i++ {
		prev, cur := seq[i-1], seq[i]
		if prev.Failed || cur.Failed || prev.Result == nil || cur.Result == nil {
			continue
		}
		if prev.Position.GameID != cur.Position.GameID || cur.Position.Ply != prev.Position.Ply+1 {
			continue
		}

		// The mover is the side NOT to move in the current position.
		mover := "white"
		if cur.Position.SideToMove == "w" {
			mover = "black"
		}
		if cur.Position.PlayerColor != "" && cur.Position.PlayerColor != mover {
			continue
		}

		drop := scoreDrop(prev.Result, cur.Result, mover)
		kind, ok := classify(drop, thresholds)
		if !ok {
			continue
		}

		moveNumber := fullMoveNumber(prev.Position.FEN, prev.Position.MoveNumber)
		phase := PhaseFor(moveNumber, cur.Position.FEN)

		rec := Record{
			GameID:      cur.Position.GameID,
			MoveNumber:  moveNumber,
			PlayerColor: mover,
			ScoreDrop:   drop,
			Kind:        kind,
			Category:    categorize(phase, opts.Rating, drop),
			Phase:       phase,
			FENBefore:   prev.Position.FEN,
			FENAfter:    cur.Position.FEN,
		}
		rec.MoveLAN, rec.Move = playedMove(prev.Position, cur.Position)
		rec.BestMove = displayMove(prev.Position.FEN, prev.Result.BestMove)
		records = append(records, rec)

		opts.Logger.Debug().
			Str("game", rec.GameID).
			Int("move", rec.MoveNumber).
			Str("played", rec.Move).
			Str("best", rec.BestMove).
			Int("drop_cp", rec.ScoreDrop).
			Str("kind", string(rec.Kind)).
			Msg("mistake detected")
	}
	return records
}

// scoreDrop converts both evaluations into the mover's perspective and
// differences them. Evaluations arrive normalized to White's perspective;
// mate scores are substituted with a fixed large centipawn value.
func scoreDrop(prev, cur *analysis.Result, mover string) int {
	sign := 1
	if mover == "black" {
		sign = -1
	}
	return sign*whiteCP(prev) - sign*whiteCP(cur)
}

func whiteCP(r *analysis.Result) int {
	if !r.Mate {
		return r.ScoreCP
	}
	if r.MateIn >= 0 {
		return mateScoreCP
	}
	return -mateScoreCP
}

// classify picks the single highest severity whose threshold the drop
// strictly exceeds.
func classify(drop int, t Thresholds) (Kind, bool) {
	switch {
	case drop > t.Blunder:
		return KindBlunder, true
	case drop > t.Mistake:
		return KindMistake, true
	case drop > t.Inaccuracy:
		return KindInaccuracy, true
	}
	return "", false
}

func categorize(phase Phase, rating, drop int) Category {
	experienced := rating >= 1500
	switch phase {
	case PhaseOpening:
		if experienced {
			return CategoryOpeningPreparation
		}
		return CategoryOpeningPrinciples
	case PhaseEndgame:
		if experienced {
			return CategoryEndgameTechnique
		}
		return CategoryEndgameBasics
	default:
		if !experienced {
			return CategoryTacticalAwareness
		}
		if abs(drop) > tacticalDropCP {
			return CategoryTacticalCalculation
		}
		return CategoryPositionalJudgment
	}
}

// playedMove recovers the move that produced cur from prev: rules-based
// recovery from the FEN pair first, then whatever the ingester recorded.
func playedMove(prev, cur analysis.Position) (lan, san string) {
	lan, san, err := MoveBetween(prev.FEN, cur.FEN)
	if err == nil {
		return lan, san
	}
	if cur.PlayedMove != "" {
		return cur.PlayedMove, cur.PlayedMove
	}
	return "", ""
}

// displayMove renders an engine long-algebraic move as SAN, falling back
// to the raw string when conversion fails.
func displayMove(fenBefore, lan string) string {
	if lan == "" {
		return ""
	}
	san, err := ToSAN(fenBefore, lan)
	if err != nil {
		return lan
	}
	return san
}

// fullMoveNumber reads the full-move counter from a FEN, falling back to
// the stored move number when the FEN is short. The previous position's
// counter names the move that was just played.
func fullMoveNumber(fen string, fallback int) int {
	fields := strings.Fields(fen)
	if len(fields) >= 6 {
		if n, err := strconv.Atoi(fields[5]); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
