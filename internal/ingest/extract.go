// Package ingest produces candidate analysis positions from PGN games.
package ingest

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/freeeve/pgn/v3"
	"github.com/rs/zerolog"

	"github.com/pawnsight/coach/internal/analysis"
	"github.com/pawnsight/coach/internal/eco"
	"github.com/pawnsight/coach/internal/mistake"
)

// Options configures PGN extraction.
type Options struct {
	Username string    // tracked player; attributes color per game when it matches a tag
	MaxGames int       // 0 = no limit
	Book     *eco.Book // optional opening book; tags each game's deepest matched line
	Logger   zerolog.Logger
}

// GameMeta carries per-game metadata needed downstream for attribution
// and rating-adaptive thresholds.
type GameMeta struct {
	ID          string
	White       string
	Black       string
	WhiteElo    int
	BlackElo    int
	Result      string
	PlayerColor string // tracked player's color in this game, "" if unknown
	ECO         string // opening code, "" when no book is loaded or nothing matched
	Opening     string // opening name for ECO
}

// ExtractFile parses a PGN file and emits one candidate Position per
// half-move of each game, including the initial position, in game order.
// Positions are tagged for the prioritizer: phase boundaries become
// phase_transition, everything else a plain checkpoint.
func ExtractFile(path string, opts Options) ([]analysis.Position, []GameMeta, error) {
	parser := pgn.Games(path)

	var positions []analysis.Position
	var metas []GameMeta
	games := 0
	stopped := false

	for game := range parser.Games {
		if opts.MaxGames > 0 && games >= opts.MaxGames {
			if !stopped {
				parser.Stop()
				stopped = true
			}
			continue
		}
		games++

		meta := metaFor(game, games, opts.Username)
		replayed, opening := replayGame(game, meta, opts.Book, opts.Logger)
		meta.ECO, meta.Opening = opening.Code, opening.Name
		metas = append(metas, meta)
		positions = append(positions, replayed...)
	}
	if err := parser.Err(); err != nil {
		return nil, nil, fmt.Errorf("parse %s: %w", path, err)
	}

	opts.Logger.Info().
		Str("path", path).
		Int("games", games).
		Int("positions", len(positions)).
		Msg("pgn extraction complete")
	return positions, metas, nil
}

// replayGame replays the movetext and captures the FEN after every
// half-move. A move that fails to apply truncates the game there. The
// returned opening is the deepest book line the game passed through.
func replayGame(game *pgn.Game, meta GameMeta, book *eco.Book, log zerolog.Logger) ([]analysis.Position, eco.Opening) {
	pos := pgn.NewStartingPosition()
	out := make([]analysis.Position, 0, len(game.Moves)+1)
	out = append(out, positionAt(meta, 0, pos.ToFEN(), analysis.CategoryCheckpoint))

	var opening eco.Opening
	prevPhase := mistake.PhaseFor(1, pos.ToFEN())
	for ply, mv := range game.Moves {
		if err := pgn.ApplyMove(pos, mv); err != nil {
			log.Warn().Err(err).Str("game", meta.ID).Int("ply", ply+1).Msg("move replay failed, truncating game")
			break
		}
		fen := pos.ToFEN()
		if book != nil {
			if o, ok := book.Match(pos); ok {
				opening = o
			}
		}

		category := analysis.CategoryCheckpoint
		phase := mistake.PhaseFor(fenMoveNumber(fen), fen)
		if phase != prevPhase {
			category = analysis.CategoryTransition
			prevPhase = phase
		}
		out = append(out, positionAt(meta, ply+1, fen, category))
	}
	return out, opening
}

func positionAt(meta GameMeta, ply int, fen string, category analysis.Category) analysis.Position {
	return analysis.Position{
		GameID:      meta.ID,
		FEN:         fen,
		Ply:         ply,
		MoveNumber:  fenMoveNumber(fen),
		SideToMove:  fenSideToMove(fen),
		Category:    category,
		PlayerColor: meta.PlayerColor,
	}
}

func metaFor(game *pgn.Game, index int, username string) GameMeta {
	meta := GameMeta{
		ID:       fmt.Sprintf("game-%d", index),
		White:    game.Tags["White"],
		Black:    game.Tags["Black"],
		WhiteElo: parseRating(game.Tags["WhiteElo"]),
		BlackElo: parseRating(game.Tags["BlackElo"]),
		Result:   game.Tags["Result"],
	}
	if username != "" {
		switch {
		case strings.EqualFold(meta.White, username):
			meta.PlayerColor = "white"
		case strings.EqualFold(meta.Black, username):
			meta.PlayerColor = "black"
		}
	}
	return meta
}

// AverageRating averages the tracked player's Elo across games where it
// is known, falling back to both players' ratings for untracked games.
// Returns 0 when no ratings are present.
func AverageRating(metas []GameMeta) int {
	var sum, n int
	for _, m := range metas {
		switch m.PlayerColor {
		case "white":
			if m.WhiteElo > 0 {
				sum += m.WhiteElo
				n++
			}
		case "black":
			if m.BlackElo > 0 {
				sum += m.BlackElo
				n++
			}
		default:
			if m.WhiteElo > 0 {
				sum += m.WhiteElo
				n++
			}
			if m.BlackElo > 0 {
				sum += m.BlackElo
				n++
			}
		}
	}
	if n == 0 {
		return 0
	}
	return sum / n
}

func parseRating(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

func fenSideToMove(fen string) string {
	fields := strings.Fields(fen)
	if len(fields) > 1 {
		return fields[1]
	}
	return "w"
}

func fenMoveNumber(fen string) int {
	fields := strings.Fields(fen)
	if len(fields) >= 6 {
		if n, err := strconv.Atoi(fields[5]); err == nil && n > 0 {
			return n
		}
	}
	return 1
}
