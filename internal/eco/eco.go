// Package eco classifies positions against an ECO (Encyclopedia of
// Chess Openings) book loaded from TSV files.
package eco

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/freeeve/pgn/v3"
)

// Opening is one named book line.
type Opening struct {
	Code string `json:"eco"`
	Name string `json:"name"`
}

// Book indexes openings by their final position, so transpositions
// resolve to the same line.
type Book struct {
	byPosition map[pgn.PackedPosition]Opening
}

// moveNumberRegex strips move numbers like "1." or "12..." from movetext.
var moveNumberRegex = regexp.MustCompile(`\d+\.+\s*`)

// Load reads every .tsv file in dir. Each data row is eco\tname\tpgn;
// rows whose movetext fails to replay are skipped.
func Load(dir string) (*Book, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.tsv"))
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no .tsv files in %s", dir)
	}

	book := &Book{byPosition: make(map[pgn.PackedPosition]Opening)}
	for _, file := range files {
		if err := book.loadFile(file); err != nil {
			return nil, fmt.Errorf("load %s: %w", file, err)
		}
	}
	return book, nil
}

func (b *Book) loadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	first := true
	for scanner.Scan() {
		line := scanner.Text()
		if first {
			first = false
			if strings.HasPrefix(line, "eco\t") {
				continue
			}
		}

		parts := strings.SplitN(line, "\t", 3)
		if len(parts) != 3 {
			continue
		}
		pos, err := replayMovetext(parts[2])
		if err != nil {
			continue
		}
		b.byPosition[pos.Pack()] = Opening{Code: parts[0], Name: parts[1]}
	}
	return scanner.Err()
}

// replayMovetext applies SAN movetext like "1. e4 e5 2. Nf3" from the
// starting position.
func replayMovetext(movetext string) (*pgn.GameState, error) {
	cleaned := moveNumberRegex.ReplaceAllString(movetext, "")
	pos := pgn.NewStartingPosition()

	for _, san := range strings.Fields(cleaned) {
		if san == "" || san[0] == '$' || san[0] == '{' {
			continue
		}
		san = strings.TrimSuffix(san, "+")
		san = strings.TrimSuffix(san, "#")

		mv, err := pgn.ParseSAN(pos, san)
		if err != nil {
			return nil, fmt.Errorf("parse %q: %w", san, err)
		}
		if err := pgn.ApplyMove(pos, mv); err != nil {
			return nil, fmt.Errorf("apply %q: %w", san, err)
		}
	}
	return pos, nil
}

// Match returns the book line ending at this position, if any.
func (b *Book) Match(pos *pgn.GameState) (Opening, bool) {
	o, ok := b.byPosition[pos.Pack()]
	return o, ok
}

// Size returns the number of book lines.
func (b *Book) Size() int {
	return len(b.byPosition)
}
