package board

import (
	"fmt"
	"strconv"
	"strings"
)

// StartingFEN is the standard chess starting position.
const StartingFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// ParseFEN decodes a FEN string into a Board.
func ParseFEN(fen string) (*Board, error) {
	fields := strings.Fields(strings.TrimSpace(fen))
	if len(fields) < 4 {
		return nil, fmt.Errorf("fen: expected at least 4 fields, got %d", len(fields))
	}

	var p Placement
	for sq := ZeroSquare; sq < NumSquares; sq++ {
		p.PieceAt[sq] = NoPieceType
	}
	ranks := strings.Split(fields[0], "/")
	if len(ranks) != int(NumRanks) {
		return nil, fmt.Errorf("fen: expected 8 ranks, got %d", len(ranks))
	}
	for i, row := range ranks {
		r := Rank(int(NumRanks) - 1 - i)
		f := ZeroFile
		for _, ch := range row {
			if ch >= '1' && ch <= '8' {
				f += File(ch - '0')
				continue
			}
			if f >= NumFiles {
				return nil, fmt.Errorf("fen: rank %v overflows", r)
			}
			pt, ok := ParsePieceType(ch)
			if !ok {
				return nil, fmt.Errorf("fen: invalid piece letter %q", ch)
			}
			sq := NewSquare(f, r)
			p.PieceAt[sq] = pt
			if ch >= 'a' && ch <= 'z' {
				p.ColorAt[sq] = Black
			} else {
				p.ColorAt[sq] = White
			}
			f++
		}
	}

	var sideToMove Color
	switch fields[1] {
	case "w":
		sideToMove = White
	case "b":
		sideToMove = Black
	default:
		return nil, fmt.Errorf("fen: invalid side to move %q", fields[1])
	}

	var castling CastlingRights
	if fields[2] != "-" {
		for _, ch := range fields[2] {
			switch ch {
			case 'K':
				castling |= WhiteKingside
			case 'Q':
				castling |= WhiteQueenside
			case 'k':
				castling |= BlackKingside
			case 'q':
				castling |= BlackQueenside
			default:
				return nil, fmt.Errorf("fen: invalid castling letter %q", ch)
			}
		}
	}

	var epFile File
	var hasEP bool
	if fields[3] != "-" {
		sq, err := ParseSquareStr(fields[3])
		if err != nil {
			return nil, fmt.Errorf("fen: invalid en passant square: %w", err)
		}
		epFile, hasEP = sq.File(), true
	}

	var halfmove, fullmove uint64
	if len(fields) > 4 {
		var err error
		halfmove, err = strconv.ParseUint(fields[4], 10, 16)
		if err != nil {
			return nil, fmt.Errorf("fen: invalid halfmove clock: %w", err)
		}
	}
	fullmove = 1
	if len(fields) > 5 {
		var err error
		fullmove, err = strconv.ParseUint(fields[5], 10, 16)
		if err != nil {
			return nil, fmt.Errorf("fen: invalid fullmove number: %w", err)
		}
	}

	return Create(p, sideToMove, castling, epFile, hasEP, uint16(halfmove), uint16(fullmove))
}

// FEN encodes the board back into Forsyth-Edwards notation.
func (b *Board) FEN() string {
	var sb strings.Builder
	for i := 0; i < int(NumRanks); i++ {
		r := Rank(int(NumRanks) - 1 - i)
		empty := 0
		for f := ZeroFile; f < NumFiles; f++ {
			sq := NewSquare(f, r)
			pt, c, ok := b.PieceOn(sq)
			if !ok {
				empty++
				continue
			}
			if empty > 0 {
				sb.WriteString(strconv.Itoa(empty))
				empty = 0
			}
			sb.WriteString(printPiece(c, pt))
		}
		if empty > 0 {
			sb.WriteString(strconv.Itoa(empty))
		}
		if i < int(NumRanks)-1 {
			sb.WriteRune('/')
		}
	}

	sb.WriteRune(' ')
	sb.WriteString(b.sideToMove.String())

	sb.WriteRune(' ')
	if b.castling == NoCastlingRights {
		sb.WriteRune('-')
	} else {
		if b.castling.Has(WhiteKingside) {
			sb.WriteRune('K')
		}
		if b.castling.Has(WhiteQueenside) {
			sb.WriteRune('Q')
		}
		if b.castling.Has(BlackKingside) {
			sb.WriteRune('k')
		}
		if b.castling.Has(BlackQueenside) {
			sb.WriteRune('q')
		}
	}

	sb.WriteRune(' ')
	if !b.hasEP {
		sb.WriteRune('-')
	} else {
		epRank := Rank6
		if b.sideToMove == Black {
			epRank = Rank3
		}
		sb.WriteString(NewSquare(b.epFile, epRank).String())
	}

	fmt.Fprintf(&sb, " %d %d", b.halfmoveClock, b.fullmoveNumber)
	return sb.String()
}
