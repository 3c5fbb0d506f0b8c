package movegen

import "github.com/corvani/chessop/pkg/board"

// PieceValue gives the nominal centipawn value used by static exchange
// evaluation. King is given a large finite value so that it always
// dominates the exchange comparison without risking overflow in the swap
// accumulator.
var PieceValue = [board.NumPieceTypes + 1]int{
	board.King:        10000,
	board.Queen:       975,
	board.Rook:        500,
	board.Bishop:      325,
	board.Knight:      325,
	board.Pawn:        100,
	board.NoPieceType: 0,
}

// ascendingValue lists piece kinds from least to most valuable, the order
// in which each side commits its next attacker to the exchange.
var ascendingValue = []board.PieceType{board.Pawn, board.Knight, board.Bishop, board.Rook, board.Queen, board.King}

// SEE examines the consequences of the series of exchanges on m's
// destination square and returns the likely material change for the side
// playing m. Quiet moves participate too: landing on a defended square
// yields a negative value. The returned value may be imprecise for pinned
// or overloaded defenders, but its sign is reliable, which is what move
// ordering and pruning depend on.
func (mg *MoveGenerator) SEE(m board.Move) int {
	exchangeSq := m.To()

	occupied := mg.Occupied()
	straightSliders := mg.Pieces(board.Queen) | mg.Pieces(board.Rook)
	diagSliders := mg.Pieces(board.Queen) | mg.Pieces(board.Bishop)

	// Pieces that, once moved off their square, may uncover a slider
	// attacking the exchange square from behind them.
	mayXray := mg.Pieces(board.Pawn) | mg.Pieces(board.Bishop) | mg.Pieces(board.Rook) | mg.Pieces(board.Queen)

	us := mg.SideToMove()
	var gain [34]int
	var piece board.PieceType
	if m.Type() == board.PromotionMove {
		piece = m.PromotionPiece()
		gain[0] = PieceValue[m.CapturedPiece()] + PieceValue[piece] - PieceValue[board.Pawn]
	} else {
		piece = m.PlayedPiece()
		gain[0] = PieceValue[m.CapturedPiece()]
	}

	depth := 0
	origBB := board.BitMask(m.From())
	attackersAndDefenders := mg.AttacksTo(occupied, exchangeSq)

	for origBB != 0 {
		current := gain[depth]

		// Speculative next gain, used if the piece that just captured
		// turns out to be defended.
		speculative := PieceValue[piece] - current
		gain[depth+1] = speculative

		if max(-current, speculative) < 0 {
			// The side that made the last capture wins even if its piece
			// is recaptured, so either way the exchange stops here. The
			// value may be off, but the sign is settled.
			break
		}

		attackersAndDefenders &^= origBB

		// The vacated square may expose an x-ray attacker behind it.
		if origBB&mayXray != 0 {
			behind := occupied & board.SquaresBehindBlocker(exchangeSq, origBB.LS1B())
			discovered := behind & straightSliders & board.RookAttacks(exchangeSq, behind)
			if discovered == 0 {
				discovered = behind & diagSliders & board.BishopAttacks(exchangeSq, behind)
			}
			attackersAndDefenders |= discovered
		}

		us = us.Opponent()

		origBB = 0
		candidates := attackersAndDefenders & mg.Colors(us)
		if candidates != 0 {
			for _, pt := range ascendingValue {
				if bb := candidates & mg.Pieces(pt); bb != 0 {
					depth++
					piece = pt
					origBB = board.BitMask(bb.LS1B())
					break
				}
			}
		}
	}

	// The gain array is a unary tree: at each node the player either
	// continues the exchange or backs off. Negamax it down to the root.
	for depth > 0 {
		gain[depth-1] = -max(-gain[depth-1], gain[depth])
		depth--
	}
	return gain[0]
}
