package searchnode

import (
	"github.com/corvani/chessop/pkg/board"
	"github.com/corvani/chessop/pkg/eval"
)

// seeExchangeMaxPly bounds how deep into the quiescence an even exchange
// (SEE = 0) is still worth trying on a square with no pending recapture.
const seeExchangeMaxPly = 2

// EvaluateQuiescence resolves the tactical noise of the position within
// (lower, upper) and returns the value along with the number of positions
// searched. The value stays within [eval.EvalMin, eval.EvalMax] regardless
// of the bounds passed in. staticEvaluation is the position's known static
// evaluation, or eval.Unknown. Repeated and rule-50 positions always
// evaluate to zero.
func (n *Node) EvaluateQuiescence(lower, upper, staticEvaluation eval.Value) (eval.Value, uint64) {
	if n.state().repeatedOrRule50 {
		return 0, 0
	}
	var searched uint64
	v := n.qsearch(lower, upper, staticEvaluation, board.EmptyBitboard, 0, &searched)
	return v, searched
}

// qsearch considers only forcing moves: captures that do not lose material
// by SEE (even trades only in the first plies, recaptures always),
// promotions and check evasions. Its stand-pat assumption is that if no
// forcing move improves the position, some quiet move will at least preserve the static
// evaluation -- an assumption that does not hold in check, where the
// static evaluation is useless and all evasions are tried instead.
func (n *Node) qsearch(lower, upper, standPat eval.Value, recaptureSquares board.Bitboard, ply int, searched *uint64) eval.Value {
	inCheck := n.mg.InCheck()

	if inCheck {
		standPat = lower
	} else if standPat == eval.Unknown {
		standPat = n.ev.Evaluate(n.mg.Board, n.HalfmoveClock())
	}
	if standPat >= upper {
		return standPat
	}
	if standPat > lower {
		lower = standPat
	}

	// The least material a move must promise before it is worth trying:
	// anything below this cannot raise lower even with a margin to spare.
	obligatoryGain := int(lower) - int(standPat) - 2*int(eval.PieceValue[board.Pawn])

	n.qstack.Save()
	defer n.qstack.Restore()
	n.qstack.PushAll(n.mg.GenerateForcing(false))

	for {
		m, ok := n.qstack.RemoveBest()
		if !ok {
			break
		}
		destBB := board.BitMask(m.To())

		var materialGain int
		if m.Type() == board.PromotionMove {
			materialGain = int(eval.PieceValue[m.CapturedPiece()]) + int(eval.PieceValue[m.PromotionPiece()]) - int(eval.PieceValue[board.Pawn])
		} else {
			materialGain = int(eval.PieceValue[m.CapturedPiece()])
		}
		if materialGain < obligatoryGain {
			continue
		}

		// Check evasions, promotions, en passant and mandatory recaptures
		// are always tried. Everything else must pass a static exchange
		// test first. Trying at least one recapture at each previous
		// capture square corrects SEE errors from pinned and overloaded
		// defenders.
		if !inCheck && m.Type() == board.NormalMove && recaptureSquares&destBB == 0 {
			switch see := n.mg.SEE(m); {
			case see < 0:
				continue
			case see == 0 && ply >= seeExchangeMaxPly:
				continue
			}
		}

		if n.qtryMove(m) {
			*searched++
			v := -n.qsearch(-upper, -lower, eval.Unknown, recaptureSquares^destBB, ply+1, searched)
			n.mg.Board.Unmake(m)
			if v >= upper {
				lower = v
				break
			}
			if v > lower {
				lower = v
			}
			recaptureSquares &^= destBB
		}
	}

	return eval.Clamp(lower)
}

// qtryMove plays m on the raw board, skipping the history bookkeeping:
// quiescence is blind to repetitions and rule-50 by design.
func (n *Node) qtryMove(m board.Move) bool {
	mover := n.mg.SideToMove()
	n.mg.Board.Make(m)
	if n.mg.AttacksTo(n.mg.Occupied(), n.mg.KingSquare(mover))&n.mg.Colors(mover.Opponent()) != 0 {
		n.mg.Board.Unmake(m)
		return false
	}
	return true
}
