package searchnode_test

import (
	"testing"

	"github.com/corvani/chessop/pkg/board"
	"github.com/corvani/chessop/pkg/eval"
	"github.com/corvani/chessop/pkg/movegen"
	"github.com/corvani/chessop/pkg/searchnode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mustPlay replays moves the way a game record would: generated off the
// board itself, so playing through an already-drawn node still works.
func mustPlay(t *testing.T, n *searchnode.Node, notations ...string) {
	t.Helper()
play:
	for _, notation := range notations {
		for _, m := range movegen.New(n.Board()).GenerateAll() {
			if m.String() == notation {
				require.Truef(t, n.DoMove(m), "move %v rejected", notation)
				continue play
			}
		}
		t.Fatalf("move %v not legal", notation)
	}
}

func TestFromHistory(t *testing.T) {
	n, err := searchnode.FromHistory(board.StartingFEN, []string{"e2e4", "e7e5", "g1f3"}, eval.Material{})
	require.NoError(t, err)

	assert.Equal(t, "rnbqkbnr/pppp1ppp/8/4p3/4P3/5N2/PPPP1PPP/RNBQKB1R b KQkq - 1 2", n.Board().FEN())
	assert.Equal(t, 1, n.HalfmoveClock())
	assert.Equal(t, 0, n.Ply())

	_, err = searchnode.FromHistory(board.StartingFEN, []string{"e2e5"}, eval.Material{})
	assert.Error(t, err)

	_, err = searchnode.FromHistory("not a fen", nil, eval.Material{})
	assert.Error(t, err)
}

func TestRepetitionDraw(t *testing.T) {
	n, err := searchnode.FromHistory("k7/8/8/8/8/8/8/K6R w - - 0 1", nil, eval.Material{})
	require.NoError(t, err)

	cycle := []string{"h1h2", "a8b8", "h2h1", "b8a8"}

	// First full cycle returns to the root arrangement: already drawn,
	// because in-search repetitions count from the first recurrence.
	mustPlay(t, n, cycle...)
	assert.True(t, n.IsDraw())

	// The third occurrence (second full cycle) stays drawn.
	mustPlay(t, n, cycle...)
	assert.True(t, n.IsDraw())
	assert.Equal(t, eval.Value(0), n.EvaluateFinal())
	assert.Empty(t, n.LegalMoves())
	assert.Equal(t, uint64(1), n.Hash())
	v, nodes := n.EvaluateQuiescence(eval.Min, eval.Max, eval.Unknown)
	assert.Equal(t, eval.Value(0), v)
	assert.Equal(t, uint64(0), nodes)

	// A move stack generates nothing in a drawn position.
	ms := searchnode.NewMoveStack()
	n.GenerateMoves(ms)
	assert.Equal(t, 0, ms.Len())
	_, ok := n.TryMoveDigest(0x1234)
	assert.False(t, ok)

	// Undoing back before the first recurrence un-draws the position.
	for i := 0; i < 5; i++ {
		n.UndoMove()
	}
	assert.Equal(t, 3, n.Ply())
	assert.False(t, n.IsDraw())
	assert.NotEmpty(t, n.LegalMoves())
}

func TestRepetitionKeepsPreRootRepeats(t *testing.T) {
	// The cycle happened before the root and each arrangement occurred
	// twice, so its boards stay armed: one recurrence after the root is
	// an immediate draw.
	history := []string{"h1h2", "a8b8", "h2h1", "b8a8", "h1h2", "a8b8", "h2h1", "b8a8"}
	n, err := searchnode.FromHistory("k7/8/8/8/8/8/8/K6R w - - 0 1", history, eval.Material{})
	require.NoError(t, err)

	// The root itself is never drawn.
	assert.False(t, n.IsDraw())
	assert.NotEmpty(t, n.LegalMoves())

	// One step into the armed cycle recurs a pre-root repeated board.
	mustPlay(t, n, "h1h2")
	assert.True(t, n.IsDraw())
}

func TestRule50(t *testing.T) {
	n, err := searchnode.FromHistory("k7/8/8/8/8/8/8/K6R w - - 98 70", nil, eval.Material{})
	require.NoError(t, err)
	require.Equal(t, 98, n.HalfmoveClock())

	mustPlay(t, n, "h1h2")
	assert.Equal(t, 99, n.HalfmoveClock())
	assert.False(t, n.IsDraw())

	// The clock saturates at 99 and the position becomes a dead draw.
	mustPlay(t, n, "a8b8")
	assert.Equal(t, 99, n.HalfmoveClock())
	assert.True(t, n.IsDraw())
	assert.Equal(t, eval.Value(0), n.EvaluateFinal())
	assert.Equal(t, uint64(1), n.Hash())

	// A capture resets the clock and revives the game.
	n2, err := searchnode.FromHistory("k7/7r/8/8/8/8/8/K6R w - - 98 70", nil, eval.Material{})
	require.NoError(t, err)
	mustPlay(t, n2, "h1h7")
	assert.Equal(t, 0, n2.HalfmoveClock())
	assert.False(t, n2.IsDraw())
}

func TestHashBlendsHalfmoveClock(t *testing.T) {
	fresh, err := searchnode.FromHistory("k7/8/8/8/8/8/8/K6R w - - 0 1", nil, eval.Material{})
	require.NoError(t, err)
	aging, err := searchnode.FromHistory("k7/8/8/8/8/8/8/K6R w - - 80 60", nil, eval.Material{})
	require.NoError(t, err)

	// Same arrangement, but the aging position must not share a
	// transposition entry with the fresh one.
	assert.Equal(t, fresh.Board().Hash(), aging.Board().Hash())
	assert.NotEqual(t, fresh.Hash(), aging.Hash())
}

func TestDoMoveLegality(t *testing.T) {
	n, err := searchnode.FromHistory("4k3/8/8/8/7b/8/6P1/4K3 w - - 0 1", nil, eval.Material{})
	require.NoError(t, err)
	require.True(t, n.IsCheck())

	// A null move is rejected in check.
	assert.False(t, n.DoMove(n.NullMove()))

	// Null move round trip when legal.
	mustPlay(t, n, "g2g3")
	require.False(t, n.IsCheck())
	fen := n.Board().FEN()
	require.True(t, n.DoMove(n.NullMove()))
	assert.Equal(t, board.White, n.Board().SideToMove())
	n.UndoMove()
	assert.Equal(t, fen, n.Board().FEN())
}

func TestEvaluateFinalCheckmate(t *testing.T) {
	// Back-rank mate: black to move, mated.
	n, err := searchnode.FromHistory("6k1/5ppp/8/8/8/8/8/4R1K1 w - - 0 1", []string{"e1e8"}, eval.Material{})
	require.NoError(t, err)

	assert.True(t, n.IsCheck())
	assert.Empty(t, n.LegalMoves())
	assert.Less(t, n.EvaluateFinal(), eval.EvalMin)
}

func TestMoveStack(t *testing.T) {
	ms := searchnode.NewMoveStack()
	ms.Save()

	n, err := searchnode.FromFEN(kiwipeteFEN, eval.Material{})
	require.NoError(t, err)
	n.GenerateMoves(ms)
	total := ms.Len()
	require.Greater(t, total, 0)

	ms.Save()
	assert.Equal(t, 0, ms.Len())
	ms.Push(board.NoMove)
	assert.Equal(t, 1, ms.Len())
	ms.Restore()
	assert.Equal(t, total, ms.Len())

	// RemoveBest drains in non-increasing packed order.
	last := ^board.Move(0)
	for {
		m, ok := ms.RemoveBest()
		if !ok {
			break
		}
		assert.LessOrEqual(t, uint32(m), uint32(last))
		last = m
	}
	ms.Restore()
	assert.Equal(t, 0, ms.Ply())
}

const kiwipeteFEN = "r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1"
