// Package eval contains position evaluation types and a reference material
// evaluator. The search core is written against the Evaluator interface, so
// a stronger positional evaluator can be swapped in without touching search.
package eval

import (
	"math"

	"github.com/corvani/chessop/pkg/board"
)

// Value is an evaluation in centipawns, from the point of view of the side
// to move. Positive values favor the side to move.
type Value int16

const (
	// Unknown has the special meaning of "no value computed".
	Unknown Value = math.MinInt16

	// Max designates a checkmate (a win for the side to move).
	Max Value = math.MaxInt16

	// Min designates a checkmate (a loss for the side to move).
	Min Value = -Max

	// EvalMax bounds static evaluations: values above it designate a win
	// by inevitable checkmate.
	EvalMax Value = 29999

	// EvalMin bounds static evaluations: values below it designate a loss
	// by inevitable checkmate.
	EvalMin Value = -EvalMax
)

// Clamp limits v to the static evaluation range [EvalMin, EvalMax]. Search
// bounds passed around as artificial infinities must not leak out of
// quiescence, or the main search would abstain from checkmating in favor of
// the huge material gain quiescence promised.
func Clamp(v Value) Value {
	switch {
	case v < EvalMin:
		return EvalMin
	case v > EvalMax:
		return EvalMax
	default:
		return v
	}
}

// IsMate reports whether v designates a forced checkmate for either side.
func IsMate(v Value) bool {
	return v > EvalMax || v < EvalMin
}

// Evaluator is a static position evaluator.
type Evaluator interface {
	// Evaluate returns the position value in centipawns for the side to
	// move. The halfmove clock is passed so an evaluator may taper its
	// output toward zero as the 50-move rule draws near.
	Evaluate(b *board.Board, halfmoveClock int) Value
}

// PieceValue is the nominal centipawn value per piece kind. The king's
// large finite value keeps it dominant in exchange arithmetic without
// overflowing 16-bit accumulators.
var PieceValue = [board.NumPieceTypes + 1]Value{
	board.King:        10000,
	board.Queen:       975,
	board.Rook:        500,
	board.Bishop:      325,
	board.Knight:      325,
	board.Pawn:        100,
	board.NoPieceType: 0,
}

// Material evaluates the nominal material balance for the side to move.
type Material struct{}

func (Material) Evaluate(b *board.Board, halfmoveClock int) Value {
	stm := b.SideToMove()
	opp := stm.Opponent()

	var v Value
	for pt := board.Queen; pt <= board.Pawn; pt++ {
		diff := (b.Pieces(pt) & b.Colors(stm)).PopCount() - (b.Pieces(pt) & b.Colors(opp)).PopCount()
		v += Value(diff) * PieceValue[pt]
	}
	return v
}
