package searchctl

import (
	"fmt"
	"strings"

	"github.com/corvani/chessop/pkg/board"
	"github.com/corvani/chessop/pkg/eval"
	"github.com/corvani/chessop/pkg/searchnode"
	"github.com/corvani/chessop/pkg/tt"
)

const (
	// pvEpsilon is how far the leaf value may drift from the root value
	// before the variation is considered stale. The search keeps running
	// while the PV is extracted, so some drift is unavoidable.
	pvEpsilon = 8

	// pvValueLimit caps reported values. Values beyond it encode the
	// distance to an inevitable checkmate, which is sometimes wrong and
	// should not reach the user as-is.
	pvValueLimit = 9999
)

// Variation is a sequence of moves from a root position, with the value
// the search assigned to the line.
type Variation struct {
	Moves []board.Move
	Value eval.Value
	Bound tt.Bound
}

func (v Variation) String() string {
	ms := make([]string, len(v.Moves))
	for i, m := range v.Moves {
		ms[i] = m.String()
	}
	return fmt.Sprintf("%v (%v %v)", strings.Join(ms, " "), v.Value, v.Bound)
}

// ExtractPV walks the transposition table from the root position, playing
// each entry's best move, for up to depth moves. Extraction stops at the
// first missing entry, inexact bound, illegal move, or when the leaf value
// drifts more than pvEpsilon from the root value; if root and leaf still
// ended up diverging, the returned bound is widened accordingly.
func ExtractPV(table *tt.Table, n *searchnode.Node, depth int) Variation {
	p := n.Clone()
	ourTurn := true
	var prev board.Move
	hasPrev := false
	var moves []board.Move

	leaf := eval.Value(-pvValueLimit)
	root := leaf
	bound := tt.BoundLower

	for {
		entry, ok := table.Probe(p.Hash())
		if !ok || entry.Bound == tt.BoundNone {
			break
		}

		// Half of the entries along the line carry the other side's
		// perspective.
		if ourTurn {
			leaf = entry.Value
			bound = entry.Bound
		} else {
			leaf = -entry.Value
			switch entry.Bound {
			case tt.BoundUpper:
				bound = tt.BoundLower
			case tt.BoundLower:
				bound = tt.BoundUpper
			default:
				bound = entry.Bound
			}
		}

		if leaf > pvValueLimit {
			leaf = pvValueLimit
			if bound == tt.BoundLower {
				bound = tt.BoundExact
			}
		}
		if leaf < -pvValueLimit {
			leaf = -pvValueLimit
			if bound == tt.BoundUpper {
				bound = tt.BoundExact
			}
		}

		if hasPrev {
			moves = append(moves, prev)
		} else {
			root = leaf
		}

		if len(moves) < depth && abs(leaf-root) <= pvEpsilon {
			if m, ok := p.TryMoveDigest(entry.Move); ok {
				if p.DoMove(m) {
					if bound == tt.BoundExact {
						prev, hasPrev = m, true
						ourTurn = !ourTurn
						continue
					}
					// An inexact bound ends the line, but the move itself
					// is still worth showing.
					moves = append(moves, m)
				}
			}
		}
		break
	}

	switch diff := leaf - root; {
	case diff > pvEpsilon && bound != tt.BoundUpper:
		bound = tt.BoundLower
	case diff < -pvEpsilon && bound != tt.BoundLower:
		bound = tt.BoundUpper
	}

	return Variation{Moves: moves, Value: root, Bound: bound}
}

func abs(v eval.Value) eval.Value {
	if v < 0 {
		return -v
	}
	return v
}
