package optimizer

import (
	"time"

	"beltforge/internal/anneal"
	"beltforge/internal/grid"
	"beltforge/internal/model"
	"beltforge/internal/rng"
	"beltforge/internal/scoring"
)

// State is one node of the deep-search continuous-loop state machine
// from spec §4.8.
type State string

const (
	StateRunningChunk    State = "RUNNING_CHUNK"
	StateBetweenChunks   State = "BETWEEN_CHUNKS"
	StateStopRequested   State = "STOP_REQUESTED"
	StateAutoPlateauStop State = "AUTO_PLATEAU_STOP"
	StateDone            State = "DONE"
)

// terminal reports whether s accepts no further Advance calls.
func (s State) terminal() bool {
	return s == StateStopRequested || s == StateAutoPlateauStop || s == StateDone
}

// ChunkResult is what Session.Advance returns: the state the session
// transitioned to, plus the best layout found across every chunk so far.
type ChunkResult struct {
	State       State
	Grid        *grid.GridState
	Connections []model.Connection
	Score       scoring.Score
	Routed      bool
	ChunkCount  int
	Archive     *anneal.Archive
}

// Session drives spec §4.8's deep-search continuous loop: a chain of
// fixed-budget optimizer invocations sharing one elite archive and one
// plateau counter, so a long-lived caller (a UI event loop, a server
// handler holding a session between requests) can advance the search one
// time-boxed chunk at a time instead of blocking for an entire deep run.
// Grounded on the teacher's internal/platform/supervisor.go chunked
// run/stop-request machinery, generalized from restart policy to a
// placement search.
type Session struct {
	cfg     Config
	archive *anneal.Archive
	src     rng.Source
	state   State

	best         *grid.GridState
	bestConns    []model.Connection
	bestScore    scoring.Score
	bestRoutable bool
	haveBest     bool

	plateauChunks int
	chunkCount    int
}

// NewSession creates a deep-mode session. cfg is normalized immediately
// so TimeBudgetMs, PlateauChunks, and the archive sizing are all resolved
// before the first Advance call.
func NewSession(cfg Config) *Session {
	cfg.Mode = "deep"
	cfg.Normalize()
	archive := anneal.NewArchive(cfg.ElitePoolSize, cfg.EliteMinDistance)
	for _, e := range cfg.IncomingArchive {
		archive.Consider(e)
	}
	return &Session{
		cfg:     cfg,
		archive: archive,
		src:     newSource(cfg.Seed),
		state:   StateBetweenChunks,
	}
}

// State reports the session's current state.
func (s *Session) State() State { return s.state }

// Stop requests a transition to STOP_REQUESTED, honored at the next
// batch boundary inside the chunk currently running (if any Advance call
// is in flight elsewhere, its own shouldStop predicate must poll this)
// or immediately if the session is between chunks.
func (s *Session) Stop() {
	if !s.state.terminal() {
		s.state = StateStopRequested
	}
}

// Advance runs one time-boxed chunk. The first call seeds from g/conns;
// every later call resumes from the session's own best-so-far layout, so
// callers only need to supply the starting grid once. It is a no-op
// returning the current snapshot once the session has reached a terminal
// state.
func (s *Session) Advance(g *grid.GridState, conns []model.Connection, onProgress ProgressFunc, shouldStop func() bool) ChunkResult {
	if s.state.terminal() {
		return s.snapshot()
	}
	s.state = StateRunningChunk
	s.chunkCount++

	startGrid, startConns := g, conns
	if s.haveBest {
		startGrid, startConns = s.best, s.bestConns
	}

	var deadline time.Time
	if s.cfg.TimeBudgetMs > 0 {
		deadline = time.Now().Add(time.Duration(s.cfg.TimeBudgetMs) * time.Millisecond)
	}

	combinedShouldStop := func() bool {
		return (shouldStop != nil && shouldStop()) || s.state == StateStopRequested
	}

	result := runPhases(startGrid, startConns, s.cfg, s.archive, s.src.Spawn(), onProgress, combinedShouldStop, deadline)

	improved := !s.haveBest || wins(result.Routed, result.Score, s.bestRoutable, s.bestScore)
	if improved {
		s.best = result.Grid
		s.bestConns = result.Connections
		s.bestScore = result.Score
		s.bestRoutable = result.Routed
		s.haveBest = true
		s.plateauChunks = 0
	} else {
		s.plateauChunks++
	}

	switch {
	case s.state == StateStopRequested || (shouldStop != nil && shouldStop()):
		s.state = StateStopRequested
	case s.plateauChunks >= s.cfg.PlateauChunks:
		s.state = StateAutoPlateauStop
	default:
		s.state = StateBetweenChunks
	}
	return s.snapshot()
}

// Finish transitions a non-terminal session to DONE, for callers that
// want to mark completion explicitly (e.g. the user accepted the result)
// rather than leaving it at BETWEEN_CHUNKS indefinitely.
func (s *Session) Finish() ChunkResult {
	if !s.state.terminal() {
		s.state = StateDone
	}
	return s.snapshot()
}

func (s *Session) snapshot() ChunkResult {
	return ChunkResult{
		State:       s.state,
		Grid:        s.best,
		Connections: s.bestConns,
		Score:       s.bestScore,
		Routed:      s.bestRoutable,
		ChunkCount:  s.chunkCount,
		Archive:     s.archive,
	}
}
