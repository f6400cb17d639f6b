package mistake

import (
	"fmt"
	"strings"

	"github.com/notnil/chess"
)

// ToSAN converts an engine long-algebraic move (e.g. "e2e4", "e7e8q")
// against its pre-move FEN into standard algebraic notation. Any failure
// (malformed FEN, illegal move) returns an error so the caller can fall
// back to the raw long-algebraic string instead of failing the record.
func ToSAN(fenBefore, lanMove string) (string, error) {
	pos, err := positionFromFEN(fenBefore)
	if err != nil {
		return "", err
	}
	move, err := chess.UCINotation{}.Decode(pos, lanMove)
	if err != nil {
		return "", fmt.Errorf("decode move %q: %w", lanMove, err)
	}
	legal := findLegal(pos, move)
	if legal == nil {
		return "", fmt.Errorf("illegal move %q in %q", lanMove, fenBefore)
	}
	return chess.AlgebraicNotation{}.Encode(pos, legal), nil
}

// MoveBetween finds the legal move that transforms fenBefore into
// fenAfter, returning it in long-algebraic and SAN form. Positions are
// matched on piece placement and side to move so differing en-passant or
// counter fields between FEN producers don't break the match.
func MoveBetween(fenBefore, fenAfter string) (lan, san string, err error) {
	pos, err := positionFromFEN(fenBefore)
	if err != nil {
		return "", "", err
	}
	for _, m := range pos.ValidMoves() {
		next := pos.Update(m)
		if samePlacement(next.String(), fenAfter) {
			return m.String(), chess.AlgebraicNotation{}.Encode(pos, m), nil
		}
	}
	return "", "", fmt.Errorf("no legal move from %q reaches %q", fenBefore, fenAfter)
}

func positionFromFEN(fen string) (*chess.Position, error) {
	fenOpt, err := chess.FEN(fen)
	if err != nil {
		return nil, fmt.Errorf("parse fen %q: %w", fen, err)
	}
	return chess.NewGame(fenOpt).Position(), nil
}

// findLegal matches a decoded move against the position's legal moves,
// which also resolves move tags (capture, check) the decoder leaves unset.
func findLegal(pos *chess.Position, move *chess.Move) *chess.Move {
	for _, m := range pos.ValidMoves() {
		if m.S1() == move.S1() && m.S2() == move.S2() && m.Promo() == move.Promo() {
			return m
		}
	}
	return nil
}

func samePlacement(fenA, fenB string) bool {
	a := strings.Fields(fenA)
	b := strings.Fields(fenB)
	return len(a) >= 2 && len(b) >= 2 && a[0] == b[0] && a[1] == b[1]
}
