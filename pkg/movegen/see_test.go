package movegen_test

import (
	"testing"

	"github.com/corvani/chessop/pkg/board"
	"github.com/corvani/chessop/pkg/movegen"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func findMove(t *testing.T, mg *movegen.MoveGenerator, notation string) board.Move {
	t.Helper()
	for _, m := range mg.GenerateAll() {
		if m.String() == notation {
			return m
		}
	}
	t.Fatalf("move %v not found in %v", notation, mg.FEN())
	return board.NoMove
}

func TestSEE(t *testing.T) {
	t.Run("quiet and capture mix", func(t *testing.T) {
		b, err := board.ParseFEN("5r2/8/8/4q1p1/3P4/k3P1P1/P2b1R1B/K4R2 w - - 0 1")
		require.NoError(t, err)
		mg := movegen.New(b)

		// The rook walks onto a square covered by a pawn.
		assert.LessOrEqual(t, mg.SEE(findMove(t, mg, "f2f4")), -400)
		// The pawn push hangs the pawn to the queen.
		assert.Equal(t, -100, mg.SEE(findMove(t, mg, "e3e4")))
		// The pawn push to an uncontested square is neutral.
		assert.Equal(t, 0, mg.SEE(findMove(t, mg, "g3g4")))
	})

	t.Run("simple exchanges", func(t *testing.T) {
		tests := []struct {
			fen  string
			move string
			want int
		}{
			// PxQ is a clean win even when the pawn is recaptured.
			{"4k3/8/8/3q4/4P3/8/8/4K3 w - - 0 1", "e4d5", 975},
			// RxP defended by a pawn loses the exchange.
			{"4k3/2p5/3p4/8/3R4/8/8/4K3 w - - 0 1", "d4d6", 100 - 500},
			// QxP defended by nothing.
			{"4k3/8/8/8/8/5p2/8/3Q1K2 w - - 0 1", "d1f3", 100},
			// NxP, pawn defended by a knight: knight for pawn after the
			// recapture, but the attacker can stop there.
			{"4k3/8/1n6/3p4/8/4N3/8/4K3 w - - 0 1", "e3d5", 100 - 325},
			// Capturing a defended queen with a rook: the early exit fires
			// as soon as the capturing side is ahead either way, so the
			// full queen value is reported rather than queen-for-rook.
			{"4k3/8/4r3/4q3/8/8/4R3/4K3 w - - 0 1", "e2e5", 975},
		}

		for _, tt := range tests {
			b, err := board.ParseFEN(tt.fen)
			require.NoError(t, err)
			mg := movegen.New(b)

			assert.Equalf(t, tt.want, mg.SEE(findMove(t, mg, tt.move)), "%v on %v", tt.move, tt.fen)
		}
	})

	t.Run("xray", func(t *testing.T) {
		// A rook battery on the e-file: without the x-ray re-scan the
		// front rook's capture would look like a pawn-for-rook loss.
		b, err := board.ParseFEN("4k3/4r3/8/4p3/8/4R3/4R3/4K3 w - - 0 1")
		require.NoError(t, err)
		mg := movegen.New(b)

		// RxP, RxR, RxR: white ends a pawn up.
		assert.Equal(t, 100, mg.SEE(findMove(t, mg, "e3e5")))
	})
}
