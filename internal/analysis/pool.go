package analysis

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/pawnsight/coach/internal/engine"
)

// maxEngineThreads caps total engine threads across the pool.
const maxEngineThreads = 4

// Analyzer runs engine analysis for one position at a time.
// *engine.Client satisfies it; tests substitute stubs via PoolConfig.NewClient.
type Analyzer interface {
	Analyze(ctx context.Context, fen string, targetDepth int, timeLimit time.Duration) (*engine.Result, error)
	Healthy() bool
	Close() error
}

// ResultCache lets the pool skip engine work for positions already seen.
type ResultCache interface {
	Get(fen string) (*Result, bool)
	Put(fen string, res *Result)
}

// Progress is a notification-only report emitted after every position.
type Progress struct {
	Index  int
	Total  int
	Stage  string
	Failed bool
}

// ProgressFunc receives progress updates. It may be called concurrently
// from multiple workers and carries no control semantics.
type ProgressFunc func(Progress)

// PoolConfig configures a worker pool of 1 or 2 engine clients.
type PoolConfig struct {
	EnginePath  string
	Size        int           // 1 or 2; clamped
	TargetDepth int           // clamped to engine.MinDepth downstream
	MoveTime    time.Duration // per-position time limit, default 10s
	TotalHashMB int           // hash budget divided across clients, default 256
	Logger      zerolog.Logger
	Cache       ResultCache // optional

	// NewClient is the engine client factory, invoked at batch start.
	// Defaults to engine.NewClient.
	NewClient func(engine.Config) (Analyzer, error)
}

// Pool fans an ordered list of positions out to its engine clients and
// collects results in original order.
type Pool struct {
	cfg PoolConfig
	log zerolog.Logger
}

// NewPool validates and defaults the config. Engine clients are created
// per batch, not here, so a pool value is cheap and reusable.
func NewPool(cfg PoolConfig) (*Pool, error) {
	if cfg.EnginePath == "" && cfg.NewClient == nil {
		return nil, fmt.Errorf("engine path required")
	}
	if cfg.Size < 1 {
		cfg.Size = 1
	}
	if cfg.Size > 2 {
		cfg.Size = 2
	}
	if cfg.TargetDepth == 0 {
		cfg.TargetDepth = engine.MinDepth
	}
	if cfg.MoveTime == 0 {
		cfg.MoveTime = 10 * time.Second
	}
	if cfg.TotalHashMB == 0 {
		cfg.TotalHashMB = 256
	}
	if cfg.NewClient == nil {
		cfg.NewClient = func(ec engine.Config) (Analyzer, error) {
			return engine.NewClient(ec)
		}
	}
	return &Pool{cfg: cfg, log: cfg.Logger}, nil
}

// clientConfig splits the thread and hash budget across pool clients so
// total engine threads never exceed host concurrency (clamped to 4).
func (p *Pool) clientConfig() engine.Config {
	total := runtime.NumCPU()
	if total > maxEngineThreads {
		total = maxEngineThreads
	}
	threads := total / p.cfg.Size
	if threads < 1 {
		threads = 1
	}
	return engine.Config{
		Path:    p.cfg.EnginePath,
		Threads: threads,
		HashMB:  p.cfg.TotalHashMB / p.cfg.Size,
		Logger:  p.log,
	}
}

// AnalyzeAll analyzes positions and returns a slice of the same length
// and order: every slot is either a populated record or a failure marker,
// never omitted. Only engine startup failure aborts the batch; individual
// position failures are isolated to their slot.
func (p *Pool) AnalyzeAll(ctx context.Context, positions []Position, progress ProgressFunc) ([]Enriched, error) {
	results := make([]Enriched, len(positions))
	if len(positions) == 0 {
		return results, nil
	}

	clientCfg := p.clientConfig()

	// The first client is mandatory: without a working engine no analysis
	// is possible. Extra clients degrade to a smaller pool on failure.
	clients := make([]Analyzer, 0, p.cfg.Size)
	first, err := p.cfg.NewClient(clientCfg)
	if err != nil {
		return nil, fmt.Errorf("start engine: %w", err)
	}
	clients = append(clients, first)
	for i := 1; i < p.cfg.Size; i++ {
		c, err := p.cfg.NewClient(clientCfg)
		if err != nil {
			p.log.Warn().Err(err).Msg("extra engine client failed to start, degrading pool")
			break
		}
		clients = append(clients, c)
	}
	defer func() {
		for _, c := range clients {
			_ = c.Close()
		}
	}()

	p.log.Info().
		Int("positions", len(positions)).
		Int("pool_size", len(clients)).
		Int("threads_per_client", clientCfg.Threads).
		Int("target_depth", p.cfg.TargetDepth).
		Dur("move_time", p.cfg.MoveTime).
		Msg("analysis batch started")

	// Shared dispatch cursor: fetch-and-increment hands each index to
	// exactly one worker, so result slots need no locking.
	var cursor int64 = -1

	g, gctx := errgroup.WithContext(ctx)
	for w, c := range clients {
		workerID, client := w, c
		g.Go(func() error {
			return p.runWorker(gctx, workerID, client, clientCfg, positions, results, &cursor, progress)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Indices left unclaimed by dead workers still get a failure marker.
	for i := range results {
		if results[i].Position.FEN == "" && !results[i].Failed {
			results[i] = Enriched{Position: positions[i], Failed: true, Err: "no engine worker available"}
		}
	}

	p.logSummary(results)
	return results, nil
}

func (p *Pool) runWorker(ctx context.Context, workerID int, client Analyzer, clientCfg engine.Config, positions []Position, results []Enriched, cursor *int64, progress ProgressFunc) error {
	log := p.log.With().Int("worker_id", workerID).Logger()

	for {
		i := int(atomic.AddInt64(cursor, 1))
		if i >= len(positions) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		pos := positions[i]

		if p.cfg.Cache != nil {
			if cached, ok := p.cfg.Cache.Get(pos.FEN); ok {
				results[i] = Enriched{Position: pos, Result: cached}
				notify(progress, Progress{Index: i, Total: len(positions), Stage: fmt.Sprintf("position %d/%d (cached)", i+1, len(positions))})
				continue
			}
		}

		res, err := client.Analyze(ctx, pos.FEN, p.cfg.TargetDepth, p.cfg.MoveTime)
		if err != nil {
			results[i] = Enriched{Position: pos, Failed: true, Err: err.Error()}
			log.Warn().Err(err).Int("index", i).Str("fen", pos.FEN).Msg("position analysis failed")
			notify(progress, Progress{Index: i, Total: len(positions), Stage: fmt.Sprintf("position %d/%d failed", i+1, len(positions)), Failed: true})

			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, engine.ErrAnalysisTimeout) && client.Healthy() {
				continue // client drained the terminator, reusable as-is
			}
			// Worker became unresponsive; replace it.
			_ = client.Close()
			replacement, rerr := p.cfg.NewClient(clientCfg)
			if rerr != nil {
				log.Error().Err(rerr).Msg("engine client replacement failed, worker exiting")
				return nil
			}
			client = replacement
			defer func() { _ = replacement.Close() }()
			continue
		}

		enriched := &Result{Result: *res}
		enriched.Quality = QualityScore(res.Depth, res.Nodes, p.cfg.TargetDepth)
		results[i] = Enriched{Position: pos, Result: enriched}
		if p.cfg.Cache != nil {
			p.cfg.Cache.Put(pos.FEN, enriched)
		}

		log.Debug().
			Int("index", i).
			Str("best", res.BestMove).
			Int("cp", res.ScoreCP).
			Int("depth", res.Depth).
			Int("quality", enriched.Quality).
			Msg("position analyzed")
		notify(progress, Progress{Index: i, Total: len(positions), Stage: fmt.Sprintf("position %d/%d analyzed", i+1, len(positions))})
	}
}

func notify(progress ProgressFunc, pr Progress) {
	if progress != nil {
		progress(pr)
	}
}

// logSummary reports aggregate quality and success rate so silent partial
// failure is visible to operators.
func (p *Pool) logSummary(results []Enriched) {
	var ok, qualitySum int
	for _, r := range results {
		if r.Result != nil {
			ok++
			qualitySum += r.Result.Quality
		}
	}
	meanQuality := 0.0
	if ok > 0 {
		meanQuality = float64(qualitySum) / float64(ok)
	}
	p.log.Info().
		Int("total", len(results)).
		Int("succeeded", ok).
		Int("failed", len(results)-ok).
		Float64("success_rate", float64(ok)/float64(len(results))).
		Float64("mean_quality", meanQuality).
		Msg("analysis batch complete")
}
