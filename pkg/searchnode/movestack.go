package searchnode

import "github.com/corvani/chessop/pkg/board"

// MoveStack is a stack of move lists backed by a single growing buffer.
// Each recursive search frame calls Save before generating moves and
// Restore on exit, so recursion reuses one allocation instead of building
// a fresh list per node.
type MoveStack struct {
	moves []board.Move
	marks []int
}

// NewMoveStack returns an empty move stack with room for a typical search.
func NewMoveStack() *MoveStack {
	return &MoveStack{
		moves: make([]board.Move, 0, 1024),
		marks: make([]int, 0, 64),
	}
}

// Save opens a new, empty list on top of the stack.
func (s *MoveStack) Save() {
	s.marks = append(s.marks, len(s.moves))
}

// Restore discards the current list, making the previous one current
// again. Must pair with an earlier Save.
func (s *MoveStack) Restore() {
	n := len(s.marks) - 1
	s.moves = s.moves[:s.marks[n]]
	s.marks = s.marks[:n]
}

// Ply returns the number of saved lists below the current one.
func (s *MoveStack) Ply() int {
	return len(s.marks)
}

// Len returns the number of moves in the current list.
func (s *MoveStack) Len() int {
	return len(s.moves) - s.bottom()
}

// Push adds a move to the current list.
func (s *MoveStack) Push(m board.Move) {
	s.moves = append(s.moves, m)
}

// PushAll adds all given moves to the current list.
func (s *MoveStack) PushAll(ms []board.Move) {
	s.moves = append(s.moves, ms...)
}

// Clear empties the current list.
func (s *MoveStack) Clear() {
	s.moves = s.moves[:s.bottom()]
}

// RemoveBest removes and returns the highest-ordered move in the current
// list. The packed move encoding sorts captures above quiet moves and more
// valuable victims first, so a plain integer comparison suffices.
func (s *MoveStack) RemoveBest() (board.Move, bool) {
	bottom := s.bottom()
	top := len(s.moves)
	if top == bottom {
		return board.NoMove, false
	}

	best := bottom
	for i := bottom + 1; i < top; i++ {
		if s.moves[i] > s.moves[best] {
			best = i
		}
	}
	m := s.moves[best]
	s.moves[best] = s.moves[top-1]
	s.moves = s.moves[:top-1]
	return m, true
}

// Remove deletes the move with the given digest from the current list, if
// present. Used to drop an already-tried transposition-table move before
// iterating the generated remainder.
func (s *MoveStack) Remove(d board.MoveDigest) bool {
	bottom := s.bottom()
	top := len(s.moves)
	for i := bottom; i < top; i++ {
		if s.moves[i].Digest() == d {
			s.moves[i] = s.moves[top-1]
			s.moves = s.moves[:top-1]
			return true
		}
	}
	return false
}

func (s *MoveStack) bottom() int {
	if len(s.marks) == 0 {
		return 0
	}
	return s.marks[len(s.marks)-1]
}
