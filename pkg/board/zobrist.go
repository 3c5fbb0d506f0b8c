package board

import "math/rand"

// Zobrist hashing lets Board carry its hash incrementally: Make/Unmake xor
// in and out exactly the keys that changed, rather than rehashing the whole
// position. Keys are generated once, deterministically, at package init so
// that a hash computed in one process is meaningful to compare against a
// hash recomputed from scratch in the same process (transposition table
// entries are never persisted across runs, so cross-process stability does
// not matter).

var (
	zobristPieceSquare [NumColors][NumPieceTypes][NumSquares]uint64
	zobristCastling    [NumCastlingRights]uint64
	zobristEnPassant   [NumFiles + 1]uint64 // index NumFiles means "no ep file"
	zobristSideToMove  uint64
)

const zobristSeed = 0x5f3759df9e3779b9

func init() {
	r := rand.New(rand.NewSource(zobristSeed))
	for c := ZeroColor; c < NumColors; c++ {
		for p := ZeroPieceType; p < NumPieceTypes; p++ {
			for sq := ZeroSquare; sq < NumSquares; sq++ {
				zobristPieceSquare[c][p][sq] = r.Uint64()
			}
		}
	}
	for i := range zobristCastling {
		zobristCastling[i] = r.Uint64()
	}
	for i := range zobristEnPassant {
		zobristEnPassant[i] = r.Uint64()
	}
	zobristSideToMove = r.Uint64()

	initHalfmoveClockHash(func(int) uint64 { return r.Uint64() })
}

// ZobristPieceSquare returns the key for piece p of color c standing on sq.
func ZobristPieceSquare(c Color, p PieceType, sq Square) uint64 {
	return zobristPieceSquare[c][p][sq]
}

// ZobristCastling returns the key for a given castling-rights state.
func ZobristCastling(cr CastlingRights) uint64 {
	return zobristCastling[cr]
}

// ZobristEnPassant returns the key for the en-passant file in effect, or the
// "no file" key if hasFile is false.
func ZobristEnPassant(f File, hasFile bool) uint64 {
	if !hasFile {
		return zobristEnPassant[NumFiles]
	}
	return zobristEnPassant[f]
}

// ZobristSideToMove returns the key xored in exactly when it is Black to move.
func ZobristSideToMove() uint64 {
	return zobristSideToMove
}
