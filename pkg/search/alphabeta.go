package search

import (
	"github.com/corvani/chessop/pkg/board"
	"github.com/corvani/chessop/pkg/eval"
	"github.com/corvani/chessop/pkg/searchnode"
	"github.com/corvani/chessop/pkg/tt"
)

// Search executes alpha-beta searches from a single root position. It is
// single-use per root: construct, Run, and Reset before reusing the move
// stack for another search. Not safe for concurrent use.
type Search struct {
	node   *searchnode.Node
	table  *tt.Table
	moves  *searchnode.MoveStack
	report Progress

	movesStartPly int
	frames        []frame

	reportedNodes   uint64
	unreportedNodes uint64
}

// phase tracks how far move generation has progressed at a node. Most
// nodes are cut off by the hash move alone, so the full move list is
// generated at the last possible moment.
type phase uint8

const (
	pristine phase = iota
	triedHashMove
	generatedMoves
)

type frame struct {
	phase phase
	hash  uint64
	entry tt.Entry
}

// New prepares a search of node. The move stack may be shared across
// consecutive searches; report may be nil.
func New(node *searchnode.Node, table *tt.Table, moves *searchnode.MoveStack, report Progress) *Search {
	return &Search{
		node:          node,
		table:         table,
		moves:         moves,
		report:        report,
		movesStartPly: moves.Ply(),
	}
}

// Run searches to the given depth within (alpha, beta) and returns the
// value of the position. lastMove is the move that led here, or
// board.NoMove at the root. On ErrTerminated the node and move stack are
// left mid-unwind: Reset the search and discard the node.
func (s *Search) Run(alpha, beta eval.Value, depth int, lastMove board.Move) (eval.Value, error) {
	entry := s.nodeBegin()

	// The table may already know the result.
	if entry.Depth >= depth {
		v, b := entry.Value, entry.Bound
		if (v >= beta && b == tt.BoundLower) || (v <= alpha && b == tt.BoundUpper) || b == tt.BoundExact {
			s.nodeEnd()
			return v, nil
		}
	}

	bound := tt.BoundUpper
	bestMove := board.NoMove

	if depth <= 0 {
		value, nodes := s.node.EvaluateQuiescence(alpha, beta, entry.Eval)
		if err := s.reportProgress(nodes); err != nil {
			return 0, err
		}

		if value >= beta {
			alpha = beta
			bound = tt.BoundLower
		} else if value > alpha {
			alpha = value
			bound = tt.BoundExact
		}
	} else {
		noMovesYet := true
		for {
			m, ok := s.doMove()
			if !ok {
				break
			}
			if err := s.reportProgress(1); err != nil {
				return 0, err
			}

			var value eval.Value
			if noMovesYet {
				// The first move is searched with the fully open window;
				// if it is any good it will raise alpha.
				noMovesYet = false
				v, err := s.Run(-beta, -alpha, depth-1, m)
				if err != nil {
					return 0, err
				}
				value = -v
			} else {
				// Later moves only need to prove they are not better than
				// the current best, which a null window does cheaply. A
				// fail-high forces the full re-search.
				v, err := s.Run(-alpha-1, -alpha, depth-1, m)
				if err != nil {
					return 0, err
				}
				value = -v
				if value > alpha {
					v, err = s.Run(-beta, -alpha, depth-1, m)
					if err != nil {
						return 0, err
					}
					value = -v
				}
			}
			s.node.UndoMove()

			if value >= beta {
				alpha = beta
				bound = tt.BoundLower
				bestMove = m
				break
			}
			if value > alpha {
				alpha = value
				bound = tt.BoundExact
				bestMove = m
			}
		}

		if noMovesYet {
			// No pseudo-legal move proved legal: checkmate or stalemate.
			alpha = s.node.EvaluateFinal()
			bound = tt.BoundExact
		}
	}

	s.store(alpha, bound, depth, bestMove)
	s.nodeEnd()
	return alpha, nil
}

// NodeCount returns the number of positions searched so far.
func (s *Search) NodeCount() uint64 {
	return s.reportedNodes + s.unreportedNodes
}

// Reset restores the move stack and clears per-search state, so the
// instance's stack can be reused after a terminated run.
func (s *Search) Reset() {
	for s.moves.Ply() > s.movesStartPly {
		s.moves.Restore()
	}
	s.frames = s.frames[:0]
	s.reportedNodes = 0
	s.unreportedNodes = 0
}

// nodeBegin opens a recursion frame and returns what the transposition
// table knows about the current position.
func (s *Search) nodeBegin() tt.Entry {
	hash := s.node.Hash()
	entry, ok := s.table.Probe(hash)
	if !ok {
		entry = tt.Entry{Bound: tt.BoundNone, Eval: s.node.EvaluateStatic()}
	}
	s.frames = append(s.frames, frame{phase: pristine, hash: hash, entry: entry})
	return entry
}

func (s *Search) nodeEnd() {
	if s.frame().phase != pristine {
		s.moves.Restore()
	}
	s.frames = s.frames[:len(s.frames)-1]
}

// doMove plays the next untried legal move of the current frame, best
// first: the hash move before generating anything, then the generated
// remainder by descending move score.
func (s *Search) doMove() (board.Move, bool) {
	f := s.frame()

	if f.phase == pristine {
		s.moves.Save()
		f.phase = triedHashMove
		if f.entry.Move != 0 {
			if m, ok := s.node.TryMoveDigest(f.entry.Move); ok {
				if s.node.DoMove(m) {
					return m, true
				}
			}
		}
	}

	if f.phase == triedHashMove {
		s.node.GenerateMoves(s.moves)
		if f.entry.Move != 0 {
			s.moves.Remove(f.entry.Move)
		}
		f.phase = generatedMoves
	}

	for {
		m, ok := s.moves.RemoveBest()
		if !ok {
			return board.NoMove, false
		}
		if s.node.DoMove(m) {
			return m, true
		}
	}
}

// store writes the node result to the table. An invalid best move falls
// back to the probed entry's move, preserving whatever the table knew.
func (s *Search) store(value eval.Value, bound tt.Bound, depth int, bestMove board.Move) {
	f := s.frame()
	move := bestMove.Digest()
	if move == 0 {
		move = f.entry.Move
	}
	s.table.Store(f.hash, tt.Entry{
		Move:  move,
		Value: value,
		Eval:  f.entry.Eval,
		Depth: depth,
		Bound: bound,
	})
}

func (s *Search) reportProgress(newNodes uint64) error {
	s.unreportedNodes += newNodes
	if s.unreportedNodes > nodeReportInterval {
		s.reportedNodes += s.unreportedNodes
		s.unreportedNodes = 0
		if s.report != nil && s.report(s.reportedNodes) {
			return ErrTerminated
		}
	}
	return nil
}

func (s *Search) frame() *frame {
	return &s.frames[len(s.frames)-1]
}
