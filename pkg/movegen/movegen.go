// Package movegen generates legal moves for a board.Board and evaluates the
// outcome of a capture sequence on a square via static exchange evaluation.
package movegen

import "github.com/corvani/chessop/pkg/board"

// scoreMax is the packed move score given to captures and queen promotions,
// so that they sort above quiet moves and underpromotions. Within captures,
// MVV-LVA order falls out of the inverted captured-piece field.
const scoreMax = 3

// MoveGenerator wraps a board.Board with legal move generation, static
// exchange evaluation, and move-digest lookup. It owns no state of its own
// beyond the embedded board -- every call reflects the board's current
// position.
type MoveGenerator struct {
	*board.Board
}

// New wraps b for move generation.
func New(b *board.Board) *MoveGenerator {
	return &MoveGenerator{Board: b}
}

func (mg *MoveGenerator) isAttacked(victim board.Color, sq board.Square) bool {
	return mg.AttacksTo(mg.Occupied(), sq)&mg.Colors(victim.Opponent()) != 0
}

// GenerateAll returns every legal move in the current position. An empty
// result identifies a terminal position (checkmate or stalemate).
func (mg *MoveGenerator) GenerateAll() []board.Move {
	pseudo := mg.generatePseudoLegal()
	mover := mg.SideToMove()

	legal := pseudo[:0]
	for _, m := range pseudo {
		mg.Board.Make(m)
		ok := !mg.isAttacked(mover, mg.KingSquare(mover))
		mg.Board.Unmake(m)
		if ok {
			legal = append(legal, m)
		}
	}
	return legal
}

// GenerateForcing returns the forcing subset of GenerateAll: all moves when
// in check, captures and promotions always, and -- if generateChecks is set
// -- quiet moves that give check. Intended for quiescence search.
func (mg *MoveGenerator) GenerateForcing(generateChecks bool) []board.Move {
	all := mg.GenerateAll()
	if mg.InCheck() {
		return all
	}

	out := all[:0]
	for _, m := range all {
		if m.IsCapture() || m.Type() == board.PromotionMove {
			out = append(out, m)
			continue
		}
		if !generateChecks {
			continue
		}
		mg.Board.Make(m)
		gives := mg.isAttacked(mg.SideToMove(), mg.KingSquare(mg.SideToMove()))
		mg.Board.Unmake(m)
		if gives {
			out = append(out, m)
		}
	}
	return out
}

// TryFromDigest reconstructs the full Move matching digest in the current
// position, if one still exists -- used to replay a transposition-table
// move without storing the full 32-bit encoding in the table.
func (mg *MoveGenerator) TryFromDigest(digest board.MoveDigest) (board.Move, bool) {
	if digest == 0 {
		return board.NoMove, false
	}
	for _, m := range mg.GenerateAll() {
		if m.Digest() == digest {
			return m, true
		}
	}
	return board.NoMove, false
}

// NullMove returns the null move for the current position: a normal-type
// move whose origin and destination are both the king square of the side
// to move.
func (mg *MoveGenerator) NullMove() board.Move {
	kingSq := mg.KingSquare(mg.SideToMove())
	epFile, hasEP := mg.EnPassantFile()
	return board.NewNormalMove(kingSq, kingSq, board.King, board.NoPieceType, mg.CastlingRights(), epFile, hasEP, 0)
}

// CanTryNullMove reports whether a null move is legal right now: the side
// to move must not be in check.
func (mg *MoveGenerator) CanTryNullMove() bool {
	return !mg.InCheck()
}

func (mg *MoveGenerator) generatePseudoLegal() []board.Move {
	var moves []board.Move
	mover := mg.SideToMove()
	occupied := mg.Occupied()
	own := mg.Colors(mover)
	opp := mg.Colors(mover.Opponent())
	rights := mg.CastlingRights()
	epFile, hasEP := mg.EnPassantFile()

	for _, pt := range board.KingQueenRookBishopKnight {
		for _, from := range (mg.Pieces(pt) & own).ToSquares() {
			targets := board.Attacks(pt, from, occupied) &^ own
			for _, to := range targets.ToSquares() {
				captured := board.NoPieceType
				score := uint8(0)
				if opp.IsSet(to) {
					captured, _, _ = mg.PieceOn(to)
					score = scoreMax
				}
				moves = append(moves, board.NewNormalMove(from, to, pt, captured, rights, epFile, hasEP, score))
			}
		}
	}

	moves = append(moves, mg.generatePawnMoves(mover, occupied, opp, rights, epFile, hasEP)...)
	moves = append(moves, mg.generateCastlingMoves(mover, occupied, rights)...)

	return moves
}

func (mg *MoveGenerator) generatePawnMoves(mover board.Color, occupied, opp board.Bitboard, rights board.CastlingRights, epFile board.File, hasEP bool) []board.Move {
	var moves []board.Move
	var epTarget board.Square
	if hasEP {
		epRank := board.Rank6
		if mover == board.Black {
			epRank = board.Rank3
		}
		epTarget = board.NewSquare(epFile, epRank)
	}

	for _, from := range (mg.Pieces(board.Pawn) & mg.Colors(mover)).ToSquares() {
		fromBoard := board.BitMask(from)

		if single := board.PawnPushes(occupied, mover, fromBoard); single != 0 {
			to := single.LS1B()
			moves = append(moves, mg.expandPawnMoves(mover, from, to, board.NoPieceType, rights, epFile, hasEP)...)

			if double := board.PawnDoublePushes(occupied, mover, single); double != 0 {
				moves = append(moves, board.NewNormalMove(from, double.LS1B(), board.Pawn, board.NoPieceType, rights, epFile, hasEP, 0))
			}
		}

		captures := board.PawnCaptureboard(mover, fromBoard)
		for _, to := range (captures & opp).ToSquares() {
			captured, _, _ := mg.PieceOn(to)
			moves = append(moves, mg.expandPawnMoves(mover, from, to, captured, rights, epFile, hasEP)...)
		}

		if hasEP && captures.IsSet(epTarget) {
			moves = append(moves, board.NewEnPassantMove(from, epTarget, rights, scoreMax))
		}
	}
	return moves
}

// expandPawnMoves emits either a single pawn move, or all four promotion
// moves if to lands on the back rank. Queen promotions score as captures;
// underpromotions score as quiet moves.
func (mg *MoveGenerator) expandPawnMoves(mover board.Color, from, to board.Square, captured board.PieceType, rights board.CastlingRights, epFile board.File, hasEP bool) []board.Move {
	if board.PawnPromotionRank(mover).IsSet(to) {
		return []board.Move{
			board.NewPromotionMove(from, to, mover, board.Queen, captured, rights, scoreMax),
			board.NewPromotionMove(from, to, mover, board.Rook, captured, rights, 0),
			board.NewPromotionMove(from, to, mover, board.Bishop, captured, rights, 0),
			board.NewPromotionMove(from, to, mover, board.Knight, captured, rights, 0),
		}
	}
	score := uint8(0)
	if captured != board.NoPieceType {
		score = scoreMax
	}
	return []board.Move{board.NewNormalMove(from, to, board.Pawn, captured, rights, epFile, hasEP, score)}
}

func (mg *MoveGenerator) generateCastlingMoves(mover board.Color, occupied board.Bitboard, rights board.CastlingRights) []board.Move {
	var moves []board.Move
	opp := mover.Opponent()

	for _, right := range []board.CastlingRights{board.KingsideRight(mover), board.QueensideRight(mover)} {
		if !rights.Has(right) {
			continue
		}
		kingFrom, kingTo, rookFrom, _ := board.CastlingSquares(right)

		between := board.SquaresBetweenIncl(kingFrom, rookFrom) &^ board.BitMask(rookFrom)
		if between&occupied != 0 {
			continue
		}

		transit := board.SquaresBetweenIncl(kingFrom, kingTo) | board.BitMask(kingFrom)
		blocked := false
		for _, sq := range transit.ToSquares() {
			if mg.AttacksTo(occupied, sq)&mg.Colors(opp) != 0 {
				blocked = true
				break
			}
		}
		if blocked {
			continue
		}

		moves = append(moves, board.NewCastlingMove(right, rights, 0))
	}
	return moves
}
