// Command analyze runs the full analysis pipeline over a PGN file:
// extract positions, prioritize, evaluate with a Stockfish pool, and
// report rated mistakes for the tracked player.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pawnsight/coach/internal/analysis"
	"github.com/pawnsight/coach/internal/eco"
	"github.com/pawnsight/coach/internal/evalcache"
	"github.com/pawnsight/coach/internal/ingest"
	"github.com/pawnsight/coach/internal/logx"
	"github.com/pawnsight/coach/internal/mistake"
)

func main() {
	defaultStockfish := "stockfish"
	if envPath := os.Getenv("STOCKFISH_PATH"); envPath != "" {
		defaultStockfish = envPath
	}

	var (
		pgnPath       = flag.String("pgn", "", "PGN file to analyze (required)")
		stockfishPath = flag.String("stockfish", defaultStockfish, "path to Stockfish executable")
		username      = flag.String("username", "", "tracked player username (attributes mistakes by color)")
		rating        = flag.Int("rating", 0, "tracked player rating (0 = derive from PGN Elo tags)")

		targetDepth  = flag.Int("depth", 20, "target analysis depth (minimum 18)")
		moveTimeMs   = flag.Int("movetime", 5000, "per-position time limit in ms")
		poolSize     = flag.Int("pool", 2, "engine pool size (1 or 2)")
		maxPositions = flag.Int("max-positions", 0, "cap on positions to analyze (0 = all)")
		maxGames     = flag.Int("max-games", 0, "cap on games to read from the PGN (0 = all)")

		cachePath = flag.String("cache", "", "eval cache snapshot path (empty = disabled)")
		ecoDir    = flag.String("eco", "", "directory of ECO opening .tsv files (empty = no opening names)")
		debug     = flag.Bool("debug", false, "debug logging")
	)
	flag.Parse()

	logger := logx.NewLogger(*debug)

	if *pgnPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var book *eco.Book
	if *ecoDir != "" {
		var err error
		book, err = eco.Load(*ecoDir)
		if err != nil {
			logger.Fatal().Err(err).Str("dir", *ecoDir).Msg("eco book load failed")
		}
		logger.Info().Int("lines", book.Size()).Msg("eco book loaded")
	}

	positions, metas, err := ingest.ExtractFile(*pgnPath, ingest.Options{
		Username: *username,
		MaxGames: *maxGames,
		Book:     book,
		Logger:   logger.With().Str("component", "ingest").Logger(),
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("pgn extraction failed")
	}
	if len(positions) == 0 {
		logger.Fatal().Str("pgn", *pgnPath).Msg("no positions found")
	}

	playerRating := *rating
	if playerRating == 0 {
		playerRating = ingest.AverageRating(metas)
		logger.Info().Int("rating", playerRating).Msg("derived rating from PGN Elo tags")
	}

	cache := evalcache.New()
	if *cachePath != "" {
		if err := cache.LoadFile(*cachePath); err != nil {
			if !os.IsNotExist(err) {
				logger.Warn().Err(err).Str("path", *cachePath).Msg("cache load failed, starting empty")
			}
		} else {
			logger.Info().Int("positions", cache.Len()).Msg("eval cache loaded")
		}
	}

	candidates := positions
	if *maxPositions > 0 {
		candidates = analysis.SelectTop(positions, *maxPositions)
	}

	pool, err := analysis.NewPool(analysis.PoolConfig{
		EnginePath:  *stockfishPath,
		Size:        *poolSize,
		TargetDepth: *targetDepth,
		MoveTime:    time.Duration(*moveTimeMs) * time.Millisecond,
		Logger:      logger.With().Str("component", "pool").Logger(),
		Cache:       cache,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("pool setup failed")
	}

	progress := func(p analysis.Progress) {
		logger.Info().Int("index", p.Index+1).Int("total", p.Total).Msg(p.Stage)
	}
	enriched, err := pool.AnalyzeAll(ctx, candidates, progress)
	if err != nil {
		logger.Fatal().Err(err).Msg("analysis failed")
	}

	if *cachePath != "" {
		if err := cache.SaveFile(*cachePath); err != nil {
			logger.Warn().Err(err).Str("path", *cachePath).Msg("cache save failed")
		}
	}

	analysis.SortGameOrder(enriched)
	records := mistake.Detect(enriched, mistake.Options{
		Rating: playerRating,
		Logger: logger.With().Str("component", "mistakes").Logger(),
	})

	printReport(records, metas, playerRating)
}

func printReport(records []mistake.Record, metas []ingest.GameMeta, rating int) {
	openings := map[string]ingest.GameMeta{}
	for _, m := range metas {
		openings[m.ID] = m
	}

	if len(records) == 0 {
		fmt.Println("No mistakes detected.")
		return
	}

	counts := map[mistake.Kind]int{}
	lastGame := ""
	for _, r := range records {
		if r.GameID != lastGame {
			lastGame = r.GameID
			meta := openings[r.GameID]
			if meta.Opening != "" {
				fmt.Printf("\n%s: %s vs %s (%s %s)\n", r.GameID, meta.White, meta.Black, meta.ECO, meta.Opening)
			} else {
				fmt.Printf("\n%s: %s vs %s\n", r.GameID, meta.White, meta.Black)
			}
			fmt.Printf("%-5s %-7s %-8s %-8s %-7s %-12s %s\n",
				"MOVE", "COLOR", "PLAYED", "BETTER", "DROP", "KIND", "CATEGORY")
		}
		counts[r.Kind]++
		fmt.Printf("%-5d %-7s %-8s %-8s %-7d %-12s %s\n",
			r.MoveNumber, r.PlayerColor, r.Move, r.BestMove, r.ScoreDrop, r.Kind, r.Category)
	}

	fmt.Printf("\n%d mistakes at rating %d: %d blunders, %d mistakes, %d inaccuracies\n",
		len(records), rating,
		counts[mistake.KindBlunder], counts[mistake.KindMistake], counts[mistake.KindInaccuracy])
}
