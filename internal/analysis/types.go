// Package analysis turns candidate game positions into engine-evaluated,
// quality-scored records ready for mistake detection.
package analysis

import (
	"github.com/pawnsight/coach/internal/engine"
)

// Priority is an explicit importance tag on a candidate position.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// Category tags why a position is worth analyzing.
type Category string

const (
	CategoryMistake    Category = "mistake"          // known mistake site
	CategoryTransition Category = "phase_transition" // opening/middlegame/endgame boundary
	CategoryCheckpoint Category = "checkpoint"       // general evaluation checkpoint
	CategoryStrategic  Category = "strategic"        // generic strategic position
)

// Position is a point in a game to be analyzed. Immutable once created.
type Position struct {
	GameID      string
	FEN         string
	Ply         int    // half-move index in the game; 0 is the initial position
	MoveNumber  int    // full-move number from the FEN
	SideToMove  string // "w" or "b"
	PlayedMove  string // move that produced this position, "" for the initial position
	Priority    Priority
	Category    Category
	PlayerColor string // "white"/"black" when the tracked player's color is known
}

// Result is an engine analysis annotated with a confidence score.
type Result struct {
	engine.Result
	Quality int // 0-100
}

// Enriched pairs a Position with its analysis outcome. Exactly one of
// Result or Failed is meaningful: a failed slot carries no result.
type Enriched struct {
	Position Position
	Result   *Result
	Failed   bool
	Err      string // analysis error description when Failed
}
