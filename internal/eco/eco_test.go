package eco_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/freeeve/pgn/v3"

	"github.com/pawnsight/coach/internal/eco"
)

const sampleBook = `eco	name	pgn
B00	King's Pawn Game	1. e4
C20	King's Pawn Game	1. e4 e5
C50	Italian Game	1. e4 e5 2. Nf3 Nc6 3. Bc4
`

func loadSampleBook(t *testing.T) *eco.Book {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.tsv"), []byte(sampleBook), 0644); err != nil {
		t.Fatalf("write book: %v", err)
	}
	book, err := eco.Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return book
}

func replay(t *testing.T, sans ...string) *pgn.GameState {
	t.Helper()
	pos := pgn.NewStartingPosition()
	for _, san := range sans {
		mv, err := pgn.ParseSAN(pos, san)
		if err != nil {
			t.Fatalf("ParseSAN %s: %v", san, err)
		}
		if err := pgn.ApplyMove(pos, mv); err != nil {
			t.Fatalf("ApplyMove %s: %v", san, err)
		}
	}
	return pos
}

func TestLoadAndMatch(t *testing.T) {
	book := loadSampleBook(t)
	if book.Size() != 3 {
		t.Fatalf("Size = %d, want 3", book.Size())
	}

	if _, ok := book.Match(replay(t)); ok {
		t.Error("starting position should not match the book")
	}

	o, ok := book.Match(replay(t, "e4"))
	if !ok || o.Code != "B00" {
		t.Errorf("after 1.e4: %+v, ok %v, want B00", o, ok)
	}

	o, ok = book.Match(replay(t, "e4", "e5", "Nf3", "Nc6", "Bc4"))
	if !ok || o.Code != "C50" || o.Name != "Italian Game" {
		t.Errorf("Italian Game: %+v, ok %v", o, ok)
	}
}

func TestLoadEmptyDir(t *testing.T) {
	if _, err := eco.Load(t.TempDir()); err == nil {
		t.Error("Load on a dir without .tsv files should error")
	}
}
