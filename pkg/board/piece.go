package board

// PieceType represents a chess piece kind, color-agnostic. 3 bits.
//
// The ordering is fixed and is relied upon elsewhere: (a) iterating from
// King downward enumerates pieces from most to least valuable, so static
// exchange evaluation picks its least-valuable attacker by scanning in
// reverse, from Pawn up to King; (b) the None sentinel allows a compact
// 3-bit encoding in the packed Move and lets "captured piece" be stored
// bitwise-inverted for free MVV-LVA ordering.
type PieceType uint8

const (
	King PieceType = iota
	Queen
	Rook
	Bishop
	Knight
	Pawn
	NoPieceType
)

const (
	ZeroPieceType PieceType = King
	NumPieceTypes PieceType = 6
)

// ParsePieceType parses a FEN piece letter (case-insensitive) into a PieceType.
func ParsePieceType(r rune) (PieceType, bool) {
	switch r {
	case 'k', 'K':
		return King, true
	case 'q', 'Q':
		return Queen, true
	case 'r', 'R':
		return Rook, true
	case 'b', 'B':
		return Bishop, true
	case 'n', 'N':
		return Knight, true
	case 'p', 'P':
		return Pawn, true
	default:
		return NoPieceType, false
	}
}

// ParsePromotionPiece parses a UCI promotion suffix (q, r, b, n).
func ParsePromotionPiece(r rune) (PieceType, bool) {
	switch r {
	case 'q', 'Q':
		return Queen, true
	case 'r', 'R':
		return Rook, true
	case 'b', 'B':
		return Bishop, true
	case 'n', 'N':
		return Knight, true
	default:
		return NoPieceType, false
	}
}

func (p PieceType) IsValid() bool {
	return p < NumPieceTypes
}

func (p PieceType) String() string {
	switch p {
	case King:
		return "k"
	case Queen:
		return "q"
	case Rook:
		return "r"
	case Bishop:
		return "b"
	case Knight:
		return "n"
	case Pawn:
		return "p"
	default:
		return " "
	}
}

func printPiece(c Color, p PieceType) string {
	s := p.String()
	if c == White {
		return upper(s)
	}
	return s
}

func upper(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - 'a' + 'A'
		}
	}
	return string(b)
}

// KingQueenRookBishopKnight lists the non-pawn piece kinds, in descending
// nominal value. Used when scanning attackers of a square.
var KingQueenRookBishopKnight = []PieceType{King, Queen, Rook, Bishop, Knight}
