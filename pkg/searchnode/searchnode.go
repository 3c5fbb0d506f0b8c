// Package searchnode wraps a move generator with the game-history awareness
// the tree search needs: repetition and rule-50 detection, history-blended
// position hashing, exact evaluation of final positions, and quiescence
// search.
//
// Repeating positions are considered a draw after the first repetition, not
// after the second one as the chess rules prescribe. To compensate,
// FromHistory "forgets" all pre-root positions that occurred exactly once,
// and a freshly declared root is never itself deemed a draw.
package searchnode

import (
	"fmt"

	"github.com/corvani/chessop/pkg/board"
	"github.com/corvani/chessop/pkg/eval"
	"github.com/corvani/chessop/pkg/movegen"
)

// halfmoveClockThreshold is the clock value from which the clock is blended
// into the node hash, so positions closing in on the 50-move rule stop
// sharing transposition entries with fresh copies of the same arrangement.
const halfmoveClockThreshold = 70

type nodeState struct {
	halfmoveClock    uint8
	lastMove         board.Move
	repeatedOrRule50 bool

	// En-passant state displaced by a null move, needed to undo it.
	nullEPFile board.File
	nullHasEP  bool
}

// Node is a chess position prepared for tree search. It owns its board and
// is not safe for concurrent use; clone it to search in parallel.
type Node struct {
	mg *movegen.MoveGenerator
	ev eval.Evaluator

	// Hashes of all boards encountered since the last irreversible move
	// before the root, oldest first. Zero entries are placeholders for
	// unknown pre-root history implied by a nonzero halfmove clock.
	encountered []uint64

	// Collective hash of the pre-root boards that occurred at least twice
	// and remain reachable. Blended into Hash while the root is reachable.
	repeatedBoardsHash uint64

	states []nodeState
	qstack *MoveStack
}

// New wraps a board for searching. The board's halfmove clock is trusted;
// unknown pre-root history is represented by placeholder entries so that
// rule-50 accounting stays exact.
func New(b *board.Board, ev eval.Evaluator) *Node {
	clock := b.HalfmoveClock()
	if clock > 99 {
		clock = 99
	}
	return &Node{
		mg:          movegen.New(b),
		ev:          ev,
		encountered: make([]uint64, clock),
		states: []nodeState{{
			halfmoveClock: uint8(clock),
			lastMove:      board.NoMove,
		}},
		qstack: NewMoveStack(),
	}
}

// FromFEN builds a Node from a FEN position.
func FromFEN(fen string, ev eval.Evaluator) (*Node, error) {
	b, err := board.ParseFEN(fen)
	if err != nil {
		return nil, err
	}
	return New(b, ev), nil
}

// FromHistory builds a Node from a starting FEN plus the moves played from
// it, in long algebraic notation, and declares the resulting position the
// search root. This is the entry point for UCI "position ... moves ...".
func FromHistory(fen string, moves []string, ev eval.Evaluator) (*Node, error) {
	n, err := FromFEN(fen, ev)
	if err != nil {
		return nil, err
	}

played:
	for _, notation := range moves {
		for _, m := range n.mg.GenerateAll() {
			if m.String() == notation {
				if n.DoMove(m) {
					continue played
				}
				break
			}
		}
		return nil, fmt.Errorf("illegal move %q after %v", notation, fen)
	}

	n.declareAsRoot()
	return n, nil
}

// declareAsRoot forgets the playing history, preserving only the set of
// previously repeated, still reachable boards.
func (n *Node) declareAsRoot() {
	st := *n.state()

	// The root position is never deemed a draw by repetition or rule-50.
	st.repeatedOrRule50 = false

	// Forget all boards before the last irreversible move, then all boards
	// that occurred only once.
	lastIrrev := len(n.encountered) - int(st.halfmoveClock)
	n.encountered = append([]uint64(nil), n.encountered[lastIrrev:]...)
	repeated := forgetNonRepeated(n.encountered)

	n.repeatedBoardsHash = 0
	for _, h := range repeated {
		n.repeatedBoardsHash ^= h * 0x9e3779b97f4a7c15
	}

	n.states = append(n.states[:0], st)
}

// forgetNonRepeated zeroes the entries of boards that occur exactly once
// and returns the distinct values that occur at least twice.
func forgetNonRepeated(boards []uint64) []uint64 {
	counts := make(map[uint64]int, len(boards))
	for _, h := range boards {
		if h != 0 {
			counts[h]++
		}
	}
	var repeated []uint64
	for h, c := range counts {
		if c >= 2 {
			repeated = append(repeated, h)
		}
	}
	for i, h := range boards {
		if h != 0 && counts[h] < 2 {
			boards[i] = 0
		}
	}
	return repeated
}

// Clone returns an independent copy sharing nothing with the receiver.
func (n *Node) Clone() *Node {
	return &Node{
		mg:                 movegen.New(n.mg.Board.Clone()),
		ev:                 n.ev,
		encountered:        append([]uint64(nil), n.encountered...),
		repeatedBoardsHash: n.repeatedBoardsHash,
		states:             append([]nodeState(nil), n.states...),
		qstack:             NewMoveStack(),
	}
}

// Board returns the underlying board.
func (n *Node) Board() *board.Board {
	return n.mg.Board
}

// HalfmoveClock returns the number of half-moves since the last capture or
// pawn advance, capped at 99.
func (n *Node) HalfmoveClock() int {
	return int(n.state().halfmoveClock)
}

// Ply returns the number of moves played since the declared root.
func (n *Node) Ply() int {
	return len(n.states) - 1
}

// IsCheck reports whether the side to move is in check.
func (n *Node) IsCheck() bool {
	return n.mg.InCheck()
}

// IsDraw reports whether the position is drawn by repetition or rule-50.
func (n *Node) IsDraw() bool {
	return n.state().repeatedOrRule50
}

// Hash returns the history-aware position hash used as transposition key.
//
// All repeated and rule-50 positions hash to the constant 1: they are all
// worth exactly zero, so colliding them is deliberate and buys a separate
// transposition record for the first and second occurrence of the same
// board. Otherwise the board hash is blended with the pre-root repetition
// set (while still reachable) and, near the rule-50 limit, with the clock.
func (n *Node) Hash() uint64 {
	st := n.state()
	if st.repeatedOrRule50 {
		return 1
	}

	h := n.mg.Hash()
	if n.rootIsReachable() {
		h ^= n.repeatedBoardsHash
	}
	if st.halfmoveClock >= halfmoveClockThreshold {
		h ^= board.HalfmoveClockHash[st.halfmoveClock]
	}
	return h
}

// rootIsReachable reports whether the declared root can still be reached
// from the current position, i.e. no irreversible move intervened.
func (n *Node) rootIsReachable() bool {
	return len(n.encountered) <= int(n.state().halfmoveClock)
}

// EvaluateFinal evaluates a position known to be final: zero for a draw or
// stalemate, a mate value adjusted for distance from the root otherwise.
// The position is guaranteed final if GenerateMoves produced no legal move.
func (n *Node) EvaluateFinal() eval.Value {
	if n.state().repeatedOrRule50 || !n.mg.InCheck() {
		return 0
	}
	return eval.Min + eval.Value(n.Ply())
}

// EvaluateStatic returns the static evaluation of the position for the
// side to move. Drawn positions evaluate to zero.
func (n *Node) EvaluateStatic() eval.Value {
	if n.state().repeatedOrRule50 {
		return 0
	}
	return n.ev.Evaluate(n.mg.Board, n.HalfmoveClock())
}

// EvaluateMove returns the likely material change from playing m, by
// static exchange evaluation. Promotions simply rate a pawn's worth: SEE
// does not handle them well, and distinguishing winning from losing
// promotions only invites odd rook-promotion move ordering.
func (n *Node) EvaluateMove(m board.Move) eval.Value {
	if m.Type() == board.PromotionMove {
		return eval.PieceValue[board.Pawn]
	}
	return eval.Value(n.mg.SEE(m))
}

// GenerateMoves pushes all legal moves onto the current list of ms. No
// moves are generated in repeated and rule-50 positions, so an empty list
// identifies a final position.
func (n *Node) GenerateMoves(ms *MoveStack) {
	if n.state().repeatedOrRule50 {
		return
	}
	ms.PushAll(n.mg.GenerateAll())
}

// LegalMoves returns all legal moves. None are returned for repeated and
// rule-50 positions.
func (n *Node) LegalMoves() []board.Move {
	if n.state().repeatedOrRule50 {
		return nil
	}
	return append([]board.Move(nil), n.mg.GenerateAll()...)
}

// TryMoveDigest reconstructs the full move matching digest in the current
// position, if one exists. Nothing matches in drawn positions, consistent
// with GenerateMoves.
func (n *Node) TryMoveDigest(d board.MoveDigest) (board.Move, bool) {
	if n.state().repeatedOrRule50 {
		return board.NoMove, false
	}
	return n.mg.TryFromDigest(d)
}

// NullMove returns the null move for the current position.
func (n *Node) NullMove() board.Move {
	return n.mg.NullMove()
}

// DoMove plays m, tracking halfmove clock, repetitions and rule-50. It
// returns false without touching the board if the move is illegal, or if m
// is a null move while in check or in a drawn position.
func (n *Node) DoMove(m board.Move) bool {
	st := n.state()
	var next nodeState
	next.lastMove = m

	prevHash := n.mg.Hash()

	if m.IsNull() {
		if st.repeatedOrRule50 || n.mg.InCheck() {
			return false
		}
		next.nullEPFile, next.nullHasEP = n.mg.Board.MakeNull()
	} else {
		if !n.tryMove(m) {
			return false
		}
	}

	if m.ResetsHalfmoveClock() {
		next.halfmoveClock = 0
	} else if st.halfmoveClock < 99 {
		next.halfmoveClock = st.halfmoveClock + 1
	} else {
		next.halfmoveClock = 99
		if !n.isCheckmate() {
			next.repeatedOrRule50 = true
		}
	}

	n.encountered = append(n.encountered, prevHash)

	// A cycle can only close with the same side to move, so compare in
	// strides of two plies, back to the last irreversible move.
	if next.halfmoveClock >= 4 {
		hash := n.mg.Hash()
		lastIrrev := len(n.encountered) - int(next.halfmoveClock)
		for i := len(n.encountered) - 4; i >= lastIrrev; i -= 2 {
			if hash == n.encountered[i] {
				next.repeatedOrRule50 = true
				break
			}
		}
	}

	n.states = append(n.states, next)
	return true
}

// UndoMove takes back the last move played via DoMove.
func (n *Node) UndoMove() {
	st := n.state()
	if st.lastMove.IsNull() {
		n.mg.Board.UnmakeNull(st.nullEPFile, st.nullHasEP)
	} else {
		n.mg.Board.Unmake(st.lastMove)
	}
	n.encountered = n.encountered[:len(n.encountered)-1]
	n.states = n.states[:len(n.states)-1]
}

// tryMove plays m on the board if it does not leave the mover's king in
// check. Moves from the generator, and digest moves reconstructed through
// it, are always legal; the verification guards moves supplied from
// elsewhere, such as caller-provided root moves.
func (n *Node) tryMove(m board.Move) bool {
	mover := n.mg.SideToMove()
	n.mg.Board.Make(m)
	if n.mg.AttacksTo(n.mg.Occupied(), n.mg.KingSquare(mover))&n.mg.Colors(mover.Opponent()) != 0 {
		n.mg.Board.Unmake(m)
		return false
	}
	return true
}

func (n *Node) isCheckmate() bool {
	return n.mg.InCheck() && len(n.mg.GenerateAll()) == 0
}

func (n *Node) state() *nodeState {
	return &n.states[len(n.states)-1]
}
