package board

import "fmt"

// Placement describes piece placement only, independent of side to move,
// castling, en passant and move counters -- the part of a position that
// comes straight off a FEN board field or a UCI "moves" replay.
type Placement struct {
	PieceAt [NumSquares]PieceType // NoPieceType where empty
	ColorAt [NumSquares]Color     // meaningful only where PieceAt != NoPieceType
}

// Board is a complete chess position: piece placement, side to move,
// castling rights, en-passant target file, the 50-move halfmove clock, the
// fullmove counter, and an incrementally maintained Zobrist hash. Checkers
// are computed lazily and cached until the next Make.
type Board struct {
	pieces [NumPieceTypes]Bitboard
	colors [NumColors]Bitboard
	occupied Bitboard

	sideToMove     Color
	castling       CastlingRights
	epFile         File
	hasEP          bool
	halfmoveClock  uint16
	fullmoveNumber uint16

	hash uint64

	checkers      Bitboard
	checkersValid bool

	undo []undoState
}

type undoState struct {
	halfmoveClock uint16
	hash          uint64
	checkers      Bitboard
	checkersValid bool
}

// IllegalBoard is returned by Create when the placement or metadata violates
// an invariant a reachable chess position must satisfy.
type IllegalBoard struct {
	Reason string
}

func (e *IllegalBoard) Error() string {
	return fmt.Sprintf("illegal board: %s", e.Reason)
}

// Create builds a Board from placement and metadata, rejecting positions
// that cannot arise from legal play.
func Create(p Placement, sideToMove Color, castling CastlingRights, epFile File, hasEP bool, halfmoveClock, fullmoveNumber uint16) (*Board, error) {
	b := &Board{sideToMove: sideToMove, castling: castling, epFile: epFile, hasEP: hasEP, halfmoveClock: halfmoveClock, fullmoveNumber: fullmoveNumber}

	var kings [NumColors]int
	for sq := ZeroSquare; sq < NumSquares; sq++ {
		pt := p.PieceAt[sq]
		if pt == NoPieceType {
			continue
		}
		if !pt.IsValid() {
			return nil, &IllegalBoard{Reason: fmt.Sprintf("invalid piece type at %v", sq)}
		}
		c := p.ColorAt[sq]
		b.pieces[pt] |= BitMask(sq)
		b.colors[c] |= BitMask(sq)
		if pt == King {
			kings[c]++
		}
		if pt == Pawn && (sq.Rank() == Rank1 || sq.Rank() == Rank8) {
			return nil, &IllegalBoard{Reason: fmt.Sprintf("pawn on back rank at %v", sq)}
		}
	}
	b.occupied = b.colors[White] | b.colors[Black]

	if kings[White] != 1 || kings[Black] != 1 {
		return nil, &IllegalBoard{Reason: "each side must have exactly one king"}
	}

	for right, c := range map[CastlingRights]Color{
		WhiteKingside: White, WhiteQueenside: White, BlackKingside: Black, BlackQueenside: Black,
	} {
		if !castling.Has(right) {
			continue
		}
		kingFrom, _, rookFrom, _ := CastlingSquares(right)
		if !(b.pieces[King] & b.colors[c]).IsSet(kingFrom) || !(b.pieces[Rook] & b.colors[c]).IsSet(rookFrom) {
			return nil, &IllegalBoard{Reason: "castling rights inconsistent with king/rook placement"}
		}
	}

	if hasEP {
		epRank := Rank6
		if sideToMove == Black {
			epRank = Rank3
		}
		epSquare := NewSquare(epFile, epRank)
		pawnRank := Rank5
		if sideToMove == Black {
			pawnRank = Rank4
		}
		pawnSquare := NewSquare(epFile, pawnRank)
		if b.occupied.IsSet(epSquare) || !b.pieces[Pawn].IsSet(pawnSquare) || !b.colors[sideToMove.Opponent()].IsSet(pawnSquare) {
			return nil, &IllegalBoard{Reason: "en passant file inconsistent with pawn placement"}
		}
	}

	b.hash = b.computeHashFromScratch()

	// The side not to move must not be in check: if it were, the side to
	// move would have had to capture the king on the previous move.
	opponentKing := (b.pieces[King] & b.colors[sideToMove.Opponent()]).LS1B()
	if b.AttacksTo(b.occupied, opponentKing)&b.colors[sideToMove] != 0 {
		return nil, &IllegalBoard{Reason: "side not to move is in check"}
	}

	return b, nil
}

func (b *Board) computeHashFromScratch() uint64 {
	var h uint64
	for pt := ZeroPieceType; pt < NumPieceTypes; pt++ {
		for _, sq := range b.pieces[pt].ToSquares() {
			c := White
			if b.colors[Black].IsSet(sq) {
				c = Black
			}
			h ^= ZobristPieceSquare(c, pt, sq)
		}
	}
	h ^= ZobristCastling(b.castling)
	h ^= ZobristEnPassant(b.epFile, b.hasEP)
	if b.sideToMove == Black {
		h ^= ZobristSideToMove()
	}
	return h
}

func (b *Board) SideToMove() Color            { return b.sideToMove }
func (b *Board) CastlingRights() CastlingRights { return b.castling }
func (b *Board) EnPassantFile() (File, bool)  { return b.epFile, b.hasEP }
func (b *Board) HalfmoveClock() uint16        { return b.halfmoveClock }
func (b *Board) FullmoveNumber() uint16       { return b.fullmoveNumber }
func (b *Board) Hash() uint64                 { return b.hash }
func (b *Board) Occupied() Bitboard           { return b.occupied }
func (b *Board) Colors(c Color) Bitboard      { return b.colors[c] }
func (b *Board) Pieces(p PieceType) Bitboard  { return b.pieces[p] }

// PieceOn returns the piece type and color standing on sq, or
// (NoPieceType, ZeroColor, false) if empty.
func (b *Board) PieceOn(sq Square) (PieceType, Color, bool) {
	if !b.occupied.IsSet(sq) {
		return NoPieceType, ZeroColor, false
	}
	c := White
	if b.colors[Black].IsSet(sq) {
		c = Black
	}
	for pt := ZeroPieceType; pt < NumPieceTypes; pt++ {
		if b.pieces[pt].IsSet(sq) {
			return pt, c, true
		}
	}
	return NoPieceType, ZeroColor, false
}

// KingSquare returns the square of the king of the given color.
func (b *Board) KingSquare(c Color) Square {
	return (b.pieces[King] & b.colors[c]).LS1B()
}

// AttacksTo returns the set of squares, of either color, whose occupant
// attacks sq, given occupied as the blocker set. Passing a reduced occupied
// set (with some pieces removed) is how SEE peels off attackers one at a
// time.
func (b *Board) AttacksTo(occupied Bitboard, sq Square) Bitboard {
	var attackers Bitboard
	attackers |= KnightAttacks(sq) & b.pieces[Knight]
	attackers |= KingAttacks(sq) & b.pieces[King]
	rookLike := b.pieces[Rook] | b.pieces[Queen]
	bishopLike := b.pieces[Bishop] | b.pieces[Queen]
	attackers |= RookAttacks(sq, occupied) & rookLike & occupied
	attackers |= BishopAttacks(sq, occupied) & bishopLike & occupied
	attackers |= PawnAttacksFrom(Black, sq) & b.pieces[Pawn] & b.colors[White]
	attackers |= PawnAttacksFrom(White, sq) & b.pieces[Pawn] & b.colors[Black]
	return attackers & occupied
}

// Checkers returns the set of opponent pieces currently attacking the side
// to move's king. Cached until the next Make.
func (b *Board) Checkers() Bitboard {
	if !b.checkersValid {
		b.checkers = b.AttacksTo(b.occupied, b.KingSquare(b.sideToMove)) & b.colors[b.sideToMove.Opponent()]
		b.checkersValid = true
	}
	return b.checkers
}

func (b *Board) InCheck() bool {
	return b.Checkers() != 0
}

func (b *Board) place(c Color, pt PieceType, sq Square) {
	b.pieces[pt] |= BitMask(sq)
	b.colors[c] |= BitMask(sq)
	b.occupied |= BitMask(sq)
	b.hash ^= ZobristPieceSquare(c, pt, sq)
}

func (b *Board) remove(c Color, pt PieceType, sq Square) {
	b.pieces[pt] = b.pieces[pt].Reset(sq)
	b.colors[c] = b.colors[c].Reset(sq)
	b.occupied = b.occupied.Reset(sq)
	b.hash ^= ZobristPieceSquare(c, pt, sq)
}

// Make applies m to the board in place. The caller is responsible for
// passing only moves produced by the move generator for this exact position;
// Make does not itself validate legality.
func (b *Board) Make(m Move) {
	b.undo = append(b.undo, undoState{
		halfmoveClock: b.halfmoveClock,
		hash:          b.hash,
		checkers:      b.checkers,
		checkersValid: b.checkersValid,
	})

	mover := b.sideToMove
	opp := mover.Opponent()
	from, to := m.From(), m.To()
	played := m.PlayedPiece()

	resetsClock := played == Pawn || m.IsCapture()

	switch m.Type() {
	case NormalMove:
		if captured := m.CapturedPiece(); captured != NoPieceType {
			b.remove(opp, captured, to)
		}
		b.remove(mover, played, from)
		b.place(mover, played, to)
	case PromotionMove:
		if captured := m.CapturedPiece(); captured != NoPieceType {
			b.remove(opp, captured, to)
		}
		b.remove(mover, Pawn, from)
		b.place(mover, m.PromotionPiece(), to)
	case EnPassantMove:
		capturedSq := NewSquare(to.File(), from.Rank())
		b.remove(opp, Pawn, capturedSq)
		b.remove(mover, Pawn, from)
		b.place(mover, Pawn, to)
	case CastlingMove:
		rookFrom, rookTo := m.RookMove()
		b.remove(mover, King, from)
		b.place(mover, King, to)
		b.remove(mover, Rook, rookFrom)
		b.place(mover, Rook, rookTo)
	}

	b.hash ^= ZobristCastling(b.castling)
	lost := castlingRightsLostFrom[from] | castlingRightsLostFrom[to]
	b.castling = m.CastlingRightsBefore().Without(lost)
	b.hash ^= ZobristCastling(b.castling)

	b.hash ^= ZobristEnPassant(b.epFile, b.hasEP)
	b.hasEP = false
	if played == Pawn {
		fr, tr := int(from.Rank()), int(to.Rank())
		if fr-tr == 2 || tr-fr == 2 {
			b.epFile, b.hasEP = from.File(), true
		}
	}
	b.hash ^= ZobristEnPassant(b.epFile, b.hasEP)

	if resetsClock {
		b.halfmoveClock = 0
	} else {
		b.halfmoveClock++
	}

	if mover == Black {
		b.fullmoveNumber++
	}

	b.hash ^= ZobristSideToMove()
	b.sideToMove = opp
	b.checkersValid = false
}

// Unmake reverses the effect of Make(m). m must be the most recently made
// move not yet unmade.
func (b *Board) Unmake(m Move) {
	n := len(b.undo) - 1
	u := b.undo[n]
	b.undo = b.undo[:n]

	opp := b.sideToMove
	mover := opp.Opponent()
	from, to := m.From(), m.To()
	played := m.PlayedPiece()

	switch m.Type() {
	case NormalMove:
		b.remove(mover, played, to)
		b.place(mover, played, from)
		if captured := m.CapturedPiece(); captured != NoPieceType {
			b.place(opp, captured, to)
		}
	case PromotionMove:
		b.remove(mover, m.PromotionPiece(), to)
		b.place(mover, Pawn, from)
		if captured := m.CapturedPiece(); captured != NoPieceType {
			b.place(opp, captured, to)
		}
	case EnPassantMove:
		capturedSq := NewSquare(to.File(), from.Rank())
		b.remove(mover, Pawn, to)
		b.place(mover, Pawn, from)
		b.place(opp, Pawn, capturedSq)
	case CastlingMove:
		rookFrom, rookTo := m.RookMove()
		b.remove(mover, Rook, rookTo)
		b.place(mover, Rook, rookFrom)
		b.remove(mover, King, to)
		b.place(mover, King, from)
	}

	if f, has := m.EnPassantFile(); has {
		b.epFile, b.hasEP = f, true
	} else {
		b.hasEP = false
	}
	b.castling = m.CastlingRightsBefore()

	b.halfmoveClock = u.halfmoveClock
	b.hash = u.hash
	b.checkers = u.checkers
	b.checkersValid = u.checkersValid

	if mover == Black {
		b.fullmoveNumber--
	}
	b.sideToMove = mover
}

// MakeNull plays a null move: flips side to move and clears en passant,
// without moving any piece. Used by search's null-move pruning. Returns the
// state needed to undo it.
func (b *Board) MakeNull() (epFile File, hasEP bool) {
	epFile, hasEP = b.epFile, b.hasEP
	b.hash ^= ZobristEnPassant(b.epFile, b.hasEP)
	b.hasEP = false
	b.hash ^= ZobristEnPassant(b.epFile, b.hasEP)
	b.hash ^= ZobristSideToMove()
	b.sideToMove = b.sideToMove.Opponent()
	b.checkersValid = false
	return
}

// UnmakeNull reverses MakeNull.
func (b *Board) UnmakeNull(epFile File, hasEP bool) {
	b.hash ^= ZobristEnPassant(b.epFile, b.hasEP)
	b.epFile, b.hasEP = epFile, hasEP
	b.hash ^= ZobristEnPassant(b.epFile, b.hasEP)
	b.hash ^= ZobristSideToMove()
	b.sideToMove = b.sideToMove.Opponent()
	b.checkersValid = false
}

// Clone returns a deep copy independent of the receiver.
func (b *Board) Clone() *Board {
	c := *b
	c.undo = append([]undoState(nil), b.undo...)
	return &c
}
