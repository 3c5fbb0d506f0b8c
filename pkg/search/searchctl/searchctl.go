// Package searchctl orchestrates the search worker: iterative deepening
// with aspiration windows and multi-PV root handling, driven by command
// and report message passing so the caller never blocks on the search
// itself.
package searchctl

import (
	"context"
	"sync"
	"time"

	"github.com/corvani/chessop/pkg/board"
	"github.com/corvani/chessop/pkg/eval"
	"github.com/corvani/chessop/pkg/searchnode"
	"github.com/corvani/chessop/pkg/tt"
	"github.com/seekerror/logw"
	"github.com/seekerror/stdlib/pkg/util/iox"
)

// Params describe one search request.
type Params struct {
	// ID identifies the search; reports echo it back.
	ID uint64
	// Node is the root position. The worker takes ownership: pass a clone
	// if the caller keeps using the original.
	Node *searchnode.Node
	// Depth limits the search, in half-moves.
	Depth int
	// LowerBound and UpperBound are the outermost search window.
	LowerBound, UpperBound eval.Value
	// SearchMoves restricts the root to the given first moves. Empty
	// means all legal moves.
	SearchMoves []board.Move
	// VariationCount is the number of distinct best lines to compute.
	// Values below 1 mean 1.
	VariationCount int
}

// RatedMove is a root move with the value its subtree searched to.
type RatedMove struct {
	Move  board.Move
	Value eval.Value
}

// Report is a progress or completion message for a search. Within one
// search ID, reports arrive in non-decreasing depth order and exactly one
// report has Done set.
type Report struct {
	ID    uint64
	Nodes uint64
	// Depth is the highest fully completed depth.
	Depth int
	// Value is the root value at Depth, or eval.Unknown if no depth
	// completed yet.
	Value eval.Value
	// Bound qualifies Value.
	Bound tt.Bound
	// Moves are the explored root moves, best first, at most
	// VariationCount of them.
	Moves []RatedMove
	Done  bool
}

type commandKind int

const (
	cmdSearch commandKind = iota
	cmdStop
	cmdExit
)

type command struct {
	kind   commandKind
	params Params
}

// Server owns the worker goroutine and its message queues. The
// transposition table it searches with is shared and may be probed
// concurrently, e.g. for PV extraction.
type Server struct {
	table    *tt.Table
	commands chan command
	reports  chan Report
	quit     iox.AsyncCloser

	mu     sync.Mutex
	peeked *Report
}

// NewServer starts a search worker over the given table.
func NewServer(ctx context.Context, table *tt.Table) *Server {
	s := &Server{
		table:    table,
		commands: make(chan command, 16),
		reports:  make(chan Report, 256),
		quit:     iox.NewAsyncCloser(),
	}
	go s.worker(ctx)
	return s
}

// StartSearch requests a new search. Any search still running is
// terminated first; its remaining reports, ending in Done, must still be
// drained.
func (s *Server) StartSearch(p Params) {
	if p.VariationCount < 1 {
		p.VariationCount = 1
	}
	if p.Depth > maxDepth {
		p.Depth = maxDepth
	}
	s.commands <- command{kind: cmdSearch, params: p}
}

// TerminateSearch requests cancellation of the current search. The caller
// must keep receiving reports until one arrives with Done set.
func (s *Server) TerminateSearch() {
	s.commands <- command{kind: cmdStop}
}

// Exit terminates any search and stops the worker. The server must not be
// used afterwards.
func (s *Server) Exit() {
	s.commands <- command{kind: cmdExit}
	<-s.quit.Closed()
}

// TryRecvReport delivers the next queued report, without blocking.
func (s *Server) TryRecvReport() (Report, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.peeked != nil {
		r := *s.peeked
		s.peeked = nil
		return r, true
	}
	select {
	case r := <-s.reports:
		return r, true
	default:
		return Report{}, false
	}
}

// WaitReport blocks until a report is queued or the timeout elapses, and
// reports whether one is available.
func (s *Server) WaitReport(timeout time.Duration) bool {
	s.mu.Lock()
	if s.peeked != nil {
		s.mu.Unlock()
		return true
	}
	s.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-s.reports:
		s.mu.Lock()
		s.peeked = &r
		s.mu.Unlock()
		return true
	case <-timer.C:
		return false
	}
}

// emitProgress queues a progress report, dropping the oldest queued
// report if the client is not draining fast enough.
func (s *Server) emitProgress(ctx context.Context, r Report) {
	select {
	case s.reports <- r:
	default:
		select {
		case <-s.reports:
			logw.Debugf(ctx, "Report queue full: dropped oldest")
		default:
		}
		s.reports <- r
	}
}

// emitDone queues the final report of a search. Blocks until queued: the
// Done report must never be lost.
func (s *Server) emitDone(r Report) {
	r.Done = true
	s.reports <- r
}
