package search_test

import (
	"context"
	"testing"

	"github.com/corvani/chessop/pkg/board"
	"github.com/corvani/chessop/pkg/eval"
	"github.com/corvani/chessop/pkg/search"
	"github.com/corvani/chessop/pkg/searchnode"
	"github.com/corvani/chessop/pkg/tt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newNode(t *testing.T, fen string) *searchnode.Node {
	t.Helper()
	n, err := searchnode.FromFEN(fen, eval.Material{})
	require.NoError(t, err)
	return n
}

func TestAlphaBeta(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		fen   string
		depth int
		check func(t *testing.T, v eval.Value)
	}{
		{board.StartingFEN, 3, func(t *testing.T, v eval.Value) {
			assert.Equal(t, eval.Value(0), v)
		}},
		{"r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1", 3, func(t *testing.T, v eval.Value) {
			// Tactically sharp but no forced mate at this depth.
			assert.Greater(t, v, eval.EvalMin)
			assert.Less(t, v, eval.EvalMax)
		}},
		// A ladder mate in one.
		{"k7/7R/6R1/8/8/8/8/7K w - - 0 1", 2, func(t *testing.T, v eval.Value) {
			assert.Greater(t, v, eval.EvalMax)
		}},
		// Mate in two: depth 5 must see it.
		{"2k5/8/1K6/8/8/8/8/3Q4 w - - 0 1", 5, func(t *testing.T, v eval.Value) {
			assert.Greater(t, v, eval.EvalMax)
		}},
		// Stalemate trap: black to move has nothing, search sees the draw.
		{"k7/8/1Q6/8/8/8/8/K7 b - - 0 1", 2, func(t *testing.T, v eval.Value) {
			assert.Equal(t, eval.Value(0), v)
		}},
	}

	for _, tc := range tests {
		table := tt.New(ctx, 1<<20)
		stack := searchnode.NewMoveStack()
		srch := search.New(newNode(t, tc.fen), table, stack, nil)

		v, err := srch.Run(eval.Min, eval.Max, tc.depth, board.NoMove)
		require.NoError(t, err, tc.fen)
		tc.check(t, v)
		assert.Equal(t, 0, stack.Ply(), "move stack unbalanced: %v", tc.fen)
	}
}

func TestAlphaBetaUsesTable(t *testing.T) {
	ctx := context.Background()
	table := tt.New(ctx, 1<<20)
	stack := searchnode.NewMoveStack()
	fen := "r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1"

	cold := search.New(newNode(t, fen), table, stack, nil)
	v1, err := cold.Run(eval.Min, eval.Max, 4, board.NoMove)
	require.NoError(t, err)

	warm := search.New(newNode(t, fen), table, stack, nil)
	v2, err := warm.Run(eval.Min, eval.Max, 4, board.NoMove)
	require.NoError(t, err)

	assert.Equal(t, v1, v2)
	assert.Less(t, warm.NodeCount(), cold.NodeCount(), "warm table should shrink the tree")
}

func TestAlphaBetaStoresResult(t *testing.T) {
	ctx := context.Background()
	table := tt.New(ctx, 1<<20)
	stack := searchnode.NewMoveStack()
	node := newNode(t, board.StartingFEN)

	srch := search.New(node, table, stack, nil)
	v, err := srch.Run(eval.Min, eval.Max, 3, board.NoMove)
	require.NoError(t, err)

	e, ok := table.Probe(node.Hash())
	require.True(t, ok)
	assert.Equal(t, v, e.Value)
	assert.Equal(t, 3, e.Depth)
	assert.Equal(t, tt.BoundExact, e.Bound)

	m, ok := node.TryMoveDigest(e.Move)
	require.True(t, ok, "stored best move must be legal")
	assert.NotEqual(t, board.NoMove, m)
}

func TestAlphaBetaTermination(t *testing.T) {
	ctx := context.Background()
	table := tt.New(ctx, 1<<20)
	stack := searchnode.NewMoveStack()
	node := newNode(t, "r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1")

	calls := 0
	srch := search.New(node, table, stack, func(nodes uint64) bool {
		calls++
		return true // terminate at the first report
	})

	_, err := srch.Run(eval.Min, eval.Max, 6, board.NoMove)
	assert.ErrorIs(t, err, search.ErrTerminated)
	assert.Equal(t, 1, calls)

	srch.Reset()
	assert.Equal(t, 0, stack.Ply(), "reset must rebalance the move stack")
	assert.Equal(t, uint64(0), srch.NodeCount())
}
