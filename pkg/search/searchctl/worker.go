package searchctl

import (
	"context"

	"github.com/corvani/chessop/pkg/eval"
	"github.com/corvani/chessop/pkg/search"
	"github.com/corvani/chessop/pkg/searchnode"
	"github.com/corvani/chessop/pkg/tt"
	"github.com/seekerror/logw"
	"github.com/seekerror/stdlib/pkg/util/contextx"
)

const (
	maxDepth = search.MaxDepth

	// initialAspirationWindow is the half-width, in centipawns, of the
	// first window tried around the previous iteration's value.
	initialAspirationWindow = 16

	// aspirationDisableThreshold is the half-width past which re-search
	// windows stop being worth it and the window snaps fully open.
	aspirationDisableThreshold = 1500

	// fullWindowDelta stands in for an unbounded half-width.
	fullWindowDelta = 1000000

	// minAspirationDepth is the first depth that searches with a narrowed
	// window; shallower iterations are too cheap to risk a re-search.
	minAspirationDepth = 5
)

// worker serves search commands one at a time. A command arriving during
// a running search terminates it; the interrupted search still emits its
// Done report before the new command is taken up.
func (s *Server) worker(ctx context.Context) {
	defer s.quit.Close()

	stack := searchnode.NewMoveStack()
	var pending *command
	for {
		var cmd command
		if pending != nil {
			cmd, pending = *pending, nil
		} else {
			var ok bool
			cmd, ok = <-s.commands
			if !ok {
				return
			}
		}

		switch cmd.kind {
		case cmdSearch:
			s.table.NewSearch()
			d := &deepening{server: s, params: cmd.params, stack: stack, value: eval.Unknown}
			pending = d.run(ctx)
		case cmdStop:
			continue
		case cmdExit:
			return
		}
	}
}

// deepening is the state of one search command: iterative deepening on
// the outside, aspiration windows per depth, multi-PV at the root.
type deepening struct {
	server *Server
	params Params
	stack  *searchnode.MoveStack

	value      eval.Value // value of the last completed depth, or eval.Unknown
	valueBound tt.Bound
	moves      []RatedMove
	depth      int // highest fully completed depth

	totalNodes uint64 // nodes of completed root sweeps
	liveNodes  uint64 // nodes of the sweep in progress

	pending *command
}

// run iterates depths 1..params.Depth, each benefiting from the table
// entries of the one before. It returns the command that interrupted the
// search, if any.
func (d *deepening) run(ctx context.Context) *command {
	p := d.params
	logw.Debugf(ctx, "Search %v started: depth=%v, window=(%v,%v), multipv=%v", p.ID, p.Depth, p.LowerBound, p.UpperBound, p.VariationCount)

	for depth := 1; depth <= p.Depth; depth++ {
		v, b, err := d.searchDepth(ctx, depth)
		if err != nil {
			break
		}
		d.value, d.valueBound, d.depth = v, b, depth

		d.server.emitProgress(ctx, d.report())
	}

	logw.Debugf(ctx, "Search %v done: depth=%v, value=%v, nodes=%v", p.ID, d.depth, d.value, d.totalNodes)
	d.server.emitDone(d.report())
	return d.pending
}

func (d *deepening) report() Report {
	return Report{
		ID:    d.params.ID,
		Nodes: d.totalNodes + d.liveNodes,
		Depth: d.depth,
		Value: d.value,
		Bound: d.valueBound,
		Moves: append([]RatedMove(nil), d.moves...),
	}
}

// searchDepth runs one iteration at the given depth inside an aspiration
// window. The initial window is centered on the previous iteration's
// value; each fail widens the half-width by 3/8 until the window snaps
// fully open.
func (d *deepening) searchDepth(ctx context.Context, depth int) (eval.Value, tt.Bound, error) {
	lower, upper := int(d.params.LowerBound), int(d.params.UpperBound)

	delta := initialAspirationWindow
	var alpha, beta int
	if depth < minAspirationDepth || d.value == eval.Unknown {
		alpha, beta = lower, upper
	} else {
		alpha = max(lower, int(d.value)-delta)
		beta = min(int(d.value)+delta, upper)
	}

	for {
		if alpha >= beta {
			// The narrowed window and the outer bounds do not intersect.
			alpha, beta = lower, upper
		}

		v, bound, err := d.searchRoot(ctx, depth, eval.Value(alpha), eval.Value(beta))
		if err != nil {
			return 0, tt.BoundNone, err
		}

		if int(v) <= alpha && lower < alpha {
			alpha = max(lower, int(v)-delta)
		} else if int(v) >= beta && upper > beta {
			beta = min(int(v)+delta, upper)
		} else {
			return v, bound, nil
		}

		delta += 3 * delta / 8
		if delta > aspirationDisableThreshold {
			delta = fullWindowDelta
		}
	}
}

// searchRoot sweeps the root moves once at the given depth and window,
// maintaining the VariationCount best lines. Each move k+1 is probed
// against the k-th best value so far, so only genuinely competitive moves
// pay for a wide window.
func (d *deepening) searchRoot(ctx context.Context, depth int, alpha, beta eval.Value) (eval.Value, tt.Bound, error) {
	n := d.params.Node
	k := d.params.VariationCount
	rootHash := n.Hash()

	candidates := d.params.SearchMoves
	if len(candidates) == 0 {
		candidates = n.LegalMoves()
	}
	if len(candidates) == 0 {
		v := n.EvaluateFinal()
		d.moves = nil
		return v, tt.BoundExact, nil
	}
	if k > len(candidates) {
		k = len(candidates)
	}

	var rated []RatedMove
	considered := 0
	for _, m := range candidates {
		alphaK := alpha
		if len(rated) >= k && rated[k-1].Value > alphaK {
			alphaK = rated[k-1].Value
		}

		if !n.DoMove(m) {
			logw.Debugf(ctx, "Dropping illegal root move %v", m)
			continue
		}
		srch := search.New(n, d.server.table, d.stack, d.progressFn(ctx))
		v, err := srch.Run(-beta, -alphaK, depth-1, m)
		d.totalNodes += srch.NodeCount()
		d.liveNodes = 0
		if err != nil {
			srch.Reset()
			return 0, tt.BoundNone, err
		}
		n.UndoMove()

		rated = insertRated(rated, RatedMove{Move: m, Value: -v})
		considered++

		if len(rated) >= k && rated[k-1].Value >= beta {
			break
		}
	}

	if considered == 0 {
		v := n.EvaluateFinal()
		d.moves = nil
		return v, tt.BoundExact, nil
	}

	value := rated[0].Value
	var bound tt.Bound
	switch {
	case value >= beta:
		bound = tt.BoundLower
	case considered < len(candidates):
		// A fail-low without having considered every move pins down
		// nothing at all.
		bound = tt.BoundNone
	case value > alpha:
		bound = tt.BoundExact
	default:
		bound = tt.BoundUpper
	}

	if len(rated) > k {
		rated = rated[:k]
	}
	d.moves = rated

	d.server.table.Store(rootHash, tt.Entry{
		Move:  rated[0].Move.Digest(),
		Value: value,
		Eval:  n.EvaluateStatic(),
		Depth: depth,
		Bound: bound,
	})
	return value, bound, nil
}

// progressFn builds the search progress callback: it forwards node counts
// to the client and polls for a new command, terminating the running
// search when one arrives.
func (d *deepening) progressFn(ctx context.Context) search.Progress {
	return func(nodes uint64) bool {
		d.liveNodes = nodes
		d.server.emitProgress(ctx, d.report())

		if d.pending == nil {
			select {
			case cmd := <-d.server.commands:
				d.pending = &cmd
			default:
			}
		}
		return d.pending != nil || contextx.IsCancelled(ctx)
	}
}

func insertRated(rated []RatedMove, rm RatedMove) []RatedMove {
	i := len(rated)
	for i > 0 && rated[i-1].Value < rm.Value {
		i--
	}
	rated = append(rated, RatedMove{})
	copy(rated[i+1:], rated[i:])
	rated[i] = rm
	return rated
}
