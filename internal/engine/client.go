package engine

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	// ErrEngineStartup is returned when the engine process does not
	// complete the UCI handshake within the startup window.
	ErrEngineStartup = errors.New("engine startup failed")

	// ErrAnalysisTimeout is returned when no bestmove terminator arrives
	// within the time budget. The client remains usable afterwards.
	ErrAnalysisTimeout = errors.New("analysis timed out")
)

const (
	// MinDepth is the floor for the effective target depth. Shallower
	// analysis is not trustworthy enough to drive mistake detection.
	MinDepth = 18

	startupTimeout  = 10 * time.Second
	timeoutGrace    = 2 * time.Second // slack past movetime before giving up
	stopDrainWindow = 5 * time.Second // how long to wait for bestmove after stop
	maxAlternatives = 5
)

// Config configures a single engine client.
type Config struct {
	Path    string // path to a UCI engine binary
	Threads int    // engine threads, default 1
	HashMB  int    // hash table size, default 128
	Logger  zerolog.Logger
}

// Alternative is a candidate best move observed at near-target depth.
// Best-effort context from single-PV search, not a verified MultiPV line.
type Alternative struct {
	Move    string
	ScoreCP int
	Mate    bool
	MateIn  int
	Depth   int
}

// Result is a finalized analysis for one position. Scores are normalized
// to White's perspective.
type Result struct {
	BestMove     string
	ScoreCP      int
	Mate         bool
	MateIn       int
	Depth        int // achieved search depth
	Nodes        int64
	NPS          int64
	TimeMs       int64
	PV           []string
	Alternatives []Alternative
	Elapsed      time.Duration
}

// Client owns one engine process and runs one analysis at a time.
// A second Analyze call on a busy client blocks until the first resolves.
type Client struct {
	cfg   Config
	log   zerolog.Logger
	cmd   *exec.Cmd
	stdin io.WriteCloser
	lines chan string

	mu     sync.Mutex
	closed bool
}

// NewClient starts the engine process, performs the UCI handshake, and
// applies thread and hash options. The caller owns the client and must
// Close it when done.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("%w: engine path required", ErrEngineStartup)
	}
	if cfg.Threads == 0 {
		cfg.Threads = 1
	}
	if cfg.HashMB == 0 {
		cfg.HashMB = 128
	}

	cmd := exec.Command(cfg.Path)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: stdin pipe: %v", ErrEngineStartup, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: stdout pipe: %v", ErrEngineStartup, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: start %s: %v", ErrEngineStartup, cfg.Path, err)
	}

	c := &Client{
		cfg:   cfg,
		log:   cfg.Logger,
		cmd:   cmd,
		stdin: stdin,
		lines: make(chan string, 256),
	}

	go func() {
		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			c.lines <- scanner.Text()
		}
		close(c.lines)
	}()

	if err := c.handshake(); err != nil {
		c.kill()
		return nil, err
	}
	return c, nil
}

func (c *Client) handshake() error {
	c.send("uci")
	if !c.waitFor("uciok", startupTimeout) {
		return fmt.Errorf("%w: no uciok within %s", ErrEngineStartup, startupTimeout)
	}
	c.send(fmt.Sprintf("setoption name Threads value %d", c.cfg.Threads))
	c.send(fmt.Sprintf("setoption name Hash value %d", c.cfg.HashMB))
	c.send("isready")
	if !c.waitFor("readyok", startupTimeout) {
		return fmt.Errorf("%w: no readyok within %s", ErrEngineStartup, startupTimeout)
	}
	c.log.Debug().Int("threads", c.cfg.Threads).Int("hash_mb", c.cfg.HashMB).Msg("engine ready")
	return nil
}

// Analyze evaluates one FEN to targetDepth bounded by timeLimit. The
// effective depth is clamped to MinDepth. A result is only returned once
// the bestmove terminator has been read; on timeout the engine is stopped,
// its terminator drained, and ErrAnalysisTimeout returned.
func (c *Client) Analyze(ctx context.Context, fen string, targetDepth int, timeLimit time.Duration) (*Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, fmt.Errorf("analyze: client closed")
	}

	if targetDepth < MinDepth {
		targetDepth = MinDepth
	}
	if timeLimit <= 0 {
		timeLimit = 10 * time.Second
	}

	start := time.Now()
	c.send("position fen " + fen)
	c.send(fmt.Sprintf("go depth %d movetime %d", targetDepth, timeLimit.Milliseconds()))

	deadline := time.NewTimer(timeLimit + timeoutGrace)
	defer deadline.Stop()

	fold := newFoldState(targetDepth)
	for {
		select {
		case <-ctx.Done():
			if err := c.stopAndDrain(); err != nil {
				return nil, err
			}
			return nil, ctx.Err()
		case <-deadline.C:
			if err := c.stopAndDrain(); err != nil {
				return nil, err
			}
			return nil, fmt.Errorf("%w: no bestmove within %s", ErrAnalysisTimeout, timeLimit+timeoutGrace)
		case line, ok := <-c.lines:
			if !ok {
				return nil, fmt.Errorf("engine exited mid-analysis")
			}
			for _, ev := range ParseLine(line) {
				if ev.Kind == EventBestMove {
					fold.apply(ev)
					return fold.finalize(fen, time.Since(start)), nil
				}
				fold.apply(ev)
			}
		}
	}
}

// stopAndDrain issues a stop and consumes lines until the bestmove
// terminator, so a stale response cannot leak into the next request.
// A drain failure means the worker itself is unresponsive; the owner
// should recreate it.
func (c *Client) stopAndDrain() error {
	c.send("stop")
	drain := time.NewTimer(stopDrainWindow)
	defer drain.Stop()
	for {
		select {
		case <-drain.C:
			c.closed = true
			return fmt.Errorf("engine unresponsive: no bestmove after stop")
		case line, ok := <-c.lines:
			if !ok {
				c.closed = true
				return fmt.Errorf("engine exited during stop")
			}
			if strings.HasPrefix(line, "bestmove") {
				return nil
			}
		}
	}
}

// Healthy reports whether the client can accept another request.
func (c *Client) Healthy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

// Close terminates the engine process.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		c.kill()
		return nil
	}
	c.closed = true
	c.send("quit")
	done := make(chan error, 1)
	go func() { done <- c.cmd.Wait() }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		c.kill()
	}
	return nil
}

func (c *Client) kill() {
	if c.cmd.Process != nil {
		_ = c.cmd.Process.Kill()
	}
	_ = c.stdin.Close()
}

func (c *Client) send(cmd string) {
	if _, err := io.WriteString(c.stdin, cmd+"\n"); err != nil {
		c.log.Warn().Err(err).Str("cmd", cmd).Msg("engine write failed")
	}
}

// waitFor consumes lines until one starts with the given prefix.
func (c *Client) waitFor(prefix string, timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case <-timer.C:
			return false
		case line, ok := <-c.lines:
			if !ok {
				return false
			}
			if strings.HasPrefix(line, prefix) {
				return true
			}
		}
	}
}

// foldState accumulates protocol events into an in-progress result.
// Scores stay in the engine's side-to-move perspective until finalize.
type foldState struct {
	targetDepth int
	res         Result
	altIndex    map[string]int // move -> index into res.Alternatives
	lastScore   Event          // most recent score event
	hasScore    bool
}

func newFoldState(targetDepth int) *foldState {
	return &foldState{
		targetDepth: targetDepth,
		altIndex:    make(map[string]int),
	}
}

func (f *foldState) apply(ev Event) {
	switch ev.Kind {
	case EventDepth:
		if ev.Depth > f.res.Depth {
			f.res.Depth = ev.Depth
		}
	case EventScore:
		f.lastScore = ev
		f.hasScore = true
		f.res.Mate = ev.Mate
		f.res.MateIn = ev.MateIn
		if !ev.Mate {
			f.res.ScoreCP = ev.CP
		} else {
			f.res.ScoreCP = 0
		}
	case EventStats:
		if ev.Nodes > 0 {
			f.res.Nodes = ev.Nodes
		}
		if ev.NPS > 0 {
			f.res.NPS = ev.NPS
		}
		if ev.TimeMs > 0 {
			f.res.TimeMs = ev.TimeMs
		}
	case EventPV:
		f.res.PV = ev.PV
		f.captureAlternative(ev)
	case EventBestMove:
		f.res.BestMove = ev.BestMove
	}
}

// captureAlternative records the first move of a PV seen at near-target
// depth, deduplicated by move and capped at maxAlternatives.
func (f *foldState) captureAlternative(ev Event) {
	if ev.Depth < f.targetDepth-2 || len(ev.PV) == 0 {
		return
	}
	move := ev.PV[0]
	alt := Alternative{Move: move, Depth: ev.Depth}
	if f.hasScore {
		alt.Mate = f.lastScore.Mate
		alt.MateIn = f.lastScore.MateIn
		if !f.lastScore.Mate {
			alt.ScoreCP = f.lastScore.CP
		}
	}
	if i, ok := f.altIndex[move]; ok {
		f.res.Alternatives[i] = alt
		return
	}
	if len(f.res.Alternatives) >= maxAlternatives {
		return
	}
	f.altIndex[move] = len(f.res.Alternatives)
	f.res.Alternatives = append(f.res.Alternatives, alt)
}

// finalize normalizes scores to White's perspective and orders
// alternatives by descending depth.
func (f *foldState) finalize(fen string, elapsed time.Duration) *Result {
	res := f.res
	res.Elapsed = elapsed
	if res.TimeMs == 0 {
		res.TimeMs = elapsed.Milliseconds()
	}

	// Engine scores are from the side to move; flip when black moves.
	if blackToMove(fen) {
		res.ScoreCP = -res.ScoreCP
		res.MateIn = -res.MateIn
		for i := range res.Alternatives {
			res.Alternatives[i].ScoreCP = -res.Alternatives[i].ScoreCP
			res.Alternatives[i].MateIn = -res.Alternatives[i].MateIn
		}
	}

	sort.SliceStable(res.Alternatives, func(i, j int) bool {
		return res.Alternatives[i].Depth > res.Alternatives[j].Depth
	})
	return &res
}

func blackToMove(fen string) bool {
	fields := strings.Fields(fen)
	return len(fields) > 1 && fields[1] == "b"
}
