package board_test

import (
	"testing"

	"github.com/corvani/chessop/pkg/board"
	"github.com/corvani/chessop/pkg/movegen"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFENRoundtrip(t *testing.T) {
	tests := []string{
		board.StartingFEN,
		"r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1",
		"8/2p5/3p4/KP5r/1R3p1k/8/4P1P1/8 w - - 0 1",
		"rnbqkbnr/pppp1ppp/8/4p3/4P3/8/PPPP1PPP/RNBQKBNR w KQkq e6 0 2",
		"2k5/8/1K6/8/8/8/8/3Q4 w - - 0 1",
		"8/8/8/8/8/6qk/7P/7K b - - 0 1",
	}

	for _, fen := range tests {
		b, err := board.ParseFEN(fen)
		require.NoError(t, err, fen)
		assert.Equal(t, fen, b.FEN())
	}
}

func TestParseFENIllegal(t *testing.T) {
	tests := []string{
		"",
		"rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR",                 // too few fields
		"rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBN1 w KQkq - 0 1",    // K right without the h1 rook
		"rnbq1bnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1",    // black king missing
		"8/4k3/8/8/8/8/8/8 w - - 0 1",                                 // white king missing
		"rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR x KQkq - 0 1",    // bad side to move
		"pnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1",    // pawn on rank 8
		"rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq e9 0 1",   // bad en passant square
		"rnbqkbnr/pppppppp/8/8/3P4/8/PPP1PPPP/RNBQKBNR b KQkq e3 0 1", // no pawn behind the ep square
		"rnbqkbnr/ppppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1",   // rank overflow
	}

	for _, fen := range tests {
		_, err := board.ParseFEN(fen)
		assert.Error(t, err, fen)
	}

	// The side not to move must not be in check.
	_, err := board.ParseFEN("4k3/8/8/8/8/8/8/4K2R b K - 0 1")
	assert.NoError(t, err)
	_, err = board.ParseFEN("4k3/4R3/8/8/8/8/8/4K3 b - - 0 1")
	assert.NoError(t, err) // black to move, black in check: fine
	_, err = board.ParseFEN("4k3/4R3/8/8/8/8/8/4K3 w - - 0 1")
	assert.Error(t, err) // white to move, black in check: impossible
}

func TestHashIncrementality(t *testing.T) {
	tests := []struct {
		fen   string
		moves []string
		want  string
	}{
		{board.StartingFEN, []string{"e2e4", "e7e5"}, "rnbqkbnr/pppp1ppp/8/4p3/4P3/8/PPPP1PPP/RNBQKBNR w KQkq e6 0 2"},
		{board.StartingFEN, []string{"g1f3", "g8f6"}, "rnbqkb1r/pppppppp/5n2/8/8/5N2/PPPPPPPP/RNBQKB1R w KQkq - 2 2"},
		{"r3k2r/8/8/8/8/8/8/R3K2R w KQkq - 0 1", []string{"e1g1", "e8c8"}, "2kr3r/8/8/8/8/8/8/R4RK1 w - - 2 2"},
		{"4k3/8/8/3pP3/8/8/8/4K3 w - d6 0 2", []string{"e5d6"}, "4k3/8/3P4/8/8/8/8/4K3 b - - 0 2"},
		{"4k3/P7/8/8/8/8/8/4K3 w - - 0 1", []string{"a7a8q"}, "Q3k3/8/8/8/8/8/8/4K3 b - - 0 1"},
	}

	for _, tt := range tests {
		b, err := board.ParseFEN(tt.fen)
		require.NoError(t, err)
		mg := movegen.New(b)

	replay:
		for _, notation := range tt.moves {
			for _, m := range mg.GenerateAll() {
				if m.String() == notation {
					b.Make(m)
					continue replay
				}
			}
			t.Fatalf("move %v not found in %v", notation, b.FEN())
		}

		fresh, err := board.ParseFEN(tt.want)
		require.NoError(t, err)
		assert.Equal(t, tt.want, b.FEN())
		assert.Equal(t, fresh.Hash(), b.Hash(), "incremental hash diverged: %v", tt.want)
	}
}

func TestMakeUnmakeSymmetry(t *testing.T) {
	tests := []string{
		board.StartingFEN,
		"r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1",
		"8/2p5/3p4/KP5r/1R3p1k/8/4P1P1/8 w - - 0 1",
		"r3k2r/8/8/8/8/8/8/R3K2R b KQkq - 0 1",
		"4k3/8/8/3pP3/8/8/8/4K3 w - d6 0 2",
		"n1n5/PPPk4/8/8/8/8/4Kppp/5N1N b - - 0 1",
	}

	for _, fen := range tests {
		b, err := board.ParseFEN(fen)
		require.NoError(t, err)
		mg := movegen.New(b)

		hash := b.Hash()
		checkers := b.Checkers()

		for _, m := range mg.GenerateAll() {
			b.Make(m)
			b.Unmake(m)

			assert.Equal(t, fen, b.FEN(), "state not restored after %v", m)
			assert.Equal(t, hash, b.Hash(), "hash not restored after %v", m)
			assert.Equal(t, checkers, b.Checkers(), "checkers not restored after %v", m)
		}
	}
}

func TestNullMove(t *testing.T) {
	b, err := board.ParseFEN("4k3/8/8/3pP3/8/8/8/4K3 w - d6 0 2")
	require.NoError(t, err)

	fen, hash := b.FEN(), b.Hash()

	epFile, hasEP := b.MakeNull()
	assert.Equal(t, board.Black, b.SideToMove())
	_, has := b.EnPassantFile()
	assert.False(t, has, "null move must clear en passant")
	assert.NotEqual(t, hash, b.Hash())

	b.UnmakeNull(epFile, hasEP)
	assert.Equal(t, fen, b.FEN())
	assert.Equal(t, hash, b.Hash())
}

func TestAttacksTo(t *testing.T) {
	b, err := board.ParseFEN("5r2/8/8/4q1p1/3P4/k3P1P1/P2b1R1B/K4R2 w - - 0 1")
	require.NoError(t, err)

	f4, err := board.ParseSquareStr("f4")
	require.NoError(t, err)

	attackers := b.AttacksTo(b.Occupied(), f4)
	var names []string
	for _, sq := range attackers.ToSquares() {
		names = append(names, sq.String())
	}
	// White pawns e3 and g3, white rook f2 (f1 is blocked behind it), the
	// black pawn g5, queen e5 and rook f8.
	assert.ElementsMatch(t, []string{"e3", "g3", "f2", "g5", "e5", "f8"}, names)
}
