package searchnode_test

import (
	"testing"

	"github.com/corvani/chessop/pkg/eval"
	"github.com/corvani/chessop/pkg/searchnode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateQuiescence(t *testing.T) {
	t.Run("immediate capture", func(t *testing.T) {
		// Black wins the h2 pawn outright: the white king cannot
		// recapture next to the black king. A single searched node
		// settles it.
		n, err := searchnode.FromFEN("8/8/8/8/8/6qk/7P/7K b - - 0 1", eval.Material{})
		require.NoError(t, err)

		v, nodes := n.EvaluateQuiescence(-10000, 10000, eval.Unknown)
		assert.Equal(t, uint64(1), nodes)
		assert.GreaterOrEqual(t, v, eval.Value(975))
	})

	t.Run("quiet position stands pat", func(t *testing.T) {
		n, err := searchnode.FromFEN("4k3/pppp4/8/8/8/8/PPPP4/4K3 w - - 0 1", eval.Material{})
		require.NoError(t, err)

		v, nodes := n.EvaluateQuiescence(eval.Min, eval.Max, eval.Unknown)
		assert.Equal(t, eval.Value(0), v)
		assert.Equal(t, uint64(0), nodes)
	})

	t.Run("value stays within evaluation range", func(t *testing.T) {
		tests := []string{
			"4k3/pppp4/8/8/8/8/PPPP4/4K3 w - - 0 1",
			"8/8/8/8/8/6qk/7P/7K b - - 0 1",
			"r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1",
			"4k3/8/8/8/7b/8/6P1/4K3 w - - 0 1", // in check
		}
		for _, fen := range tests {
			n, err := searchnode.FromFEN(fen, eval.Material{})
			require.NoError(t, err)

			v, _ := n.EvaluateQuiescence(eval.Min, eval.Max, eval.Unknown)
			assert.GreaterOrEqual(t, v, eval.EvalMin, fen)
			assert.LessOrEqual(t, v, eval.EvalMax, fen)
		}
	})

	t.Run("respects static evaluation argument", func(t *testing.T) {
		n, err := searchnode.FromFEN("4k3/pppp4/8/8/8/8/PPPP4/4K3 w - - 0 1", eval.Material{})
		require.NoError(t, err)

		// A supplied stand-pat above beta is returned as-is.
		v, nodes := n.EvaluateQuiescence(-100, 100, 500)
		assert.Equal(t, eval.Value(500), v)
		assert.Equal(t, uint64(0), nodes)
	})

	t.Run("losing captures are pruned", func(t *testing.T) {
		// The only capture is QxP defended by a pawn: losing by SEE, so
		// quiescence stands pat without searching a node.
		n, err := searchnode.FromFEN("4k3/2p5/3p4/8/8/8/3Q4/4K3 w - - 0 1", eval.Material{})
		require.NoError(t, err)

		v, nodes := n.EvaluateQuiescence(eval.Min, eval.Max, eval.Unknown)
		assert.Equal(t, uint64(0), nodes)
		assert.Equal(t, n.EvaluateStatic(), v)
	})
}
