package mistake

import "strings"

// Phase is the stage of the game a mistake occurred in.
type Phase string

const (
	PhaseOpening    Phase = "opening"
	PhaseMiddlegame Phase = "middlegame"
	PhaseEndgame    Phase = "endgame"
)

const (
	openingMoveLimit  = 15
	endgameMoveFloor  = 40 // beyond this, always endgame regardless of material
	endgamePieceLimit = 12 // non-pawn, non-king piece letters on the board
)

// PhaseFor tags the game phase from the move number and board material.
func PhaseFor(moveNumber int, fen string) Phase {
	if moveNumber <= openingMoveLimit {
		return PhaseOpening
	}
	if moveNumber > endgameMoveFloor {
		return PhaseEndgame
	}
	if pieceCount(fen) <= endgamePieceLimit {
		return PhaseEndgame
	}
	return PhaseMiddlegame
}

// pieceCount counts piece letters on the board excluding pawns and kings.
func pieceCount(fen string) int {
	board := fen
	if i := strings.IndexByte(fen, ' '); i >= 0 {
		board = fen[:i]
	}
	count := 0
	for _, r := range board {
		switch r {
		case 'p', 'P', 'k', 'K', '/':
		case 'n', 'N', 'b', 'B', 'r', 'R', 'q', 'Q':
			count++
		}
	}
	return count
}
