package game

import (
	"fmt"
)

// PlayerMark represents the mark of a player (X, O) or an empty cell.
type PlayerMark string

// Status is the derived state of a board.
type Status string

const (
	// Player marks
	None    PlayerMark = ""
	PlayerX PlayerMark = "X"
	PlayerO PlayerMark = "O"

	// Game statuses
	InProgress Status = "in_progress"
	Win        Status = "win"
	Draw       Status = "draw"

	// Supported board sizes
	MinSize = 3
	MaxSize = 5
)

// Outcome is recomputed from the board on every call and never stored.
type Outcome struct {
	Status Status     `json:"status"`
	Winner PlayerMark `json:"winner,omitempty"`
}

// Terminal reports whether no further moves are accepted.
func (o Outcome) Terminal() bool {
	return o.Status != InProgress
}

// Board is a square board of Size×Size cells stored row-major.
type Board struct {
	Size  int          `json:"size"`
	Cells []PlayerMark `json:"cells"`
}

// NewBoard returns an empty board with the given side length.
func NewBoard(size int) (*Board, error) {
	if err := ValidateSize(size); err != nil {
		return nil, err
	}
	return &Board{
		Size:  size,
		Cells: make([]PlayerMark, size*size),
	}, nil
}

// BoardFromCells rebuilds a board from a row-major snapshot.
func BoardFromCells(cells []PlayerMark) (*Board, error) {
	size := sideLength(len(cells))
	if size == 0 {
		return nil, fmt.Errorf("%w: %d cells is not a square board", ErrInvalidConfiguration, len(cells))
	}
	if err := ValidateSize(size); err != nil {
		return nil, err
	}
	b := &Board{Size: size, Cells: make([]PlayerMark, len(cells))}
	for i, c := range cells {
		if c != None && c != PlayerX && c != PlayerO {
			return nil, fmt.Errorf("%w: cell %d holds unknown mark %q", ErrInvalidConfiguration, i, c)
		}
		b.Cells[i] = c
	}
	return b, nil
}

// ApplyMove places mark at index on a copy of b. The input board is never modified.
func ApplyMove(b *Board, index int, mark PlayerMark) (*Board, error) {
	if mark != PlayerX && mark != PlayerO {
		return nil, fmt.Errorf("%w: unknown mark %q", ErrIllegalMove, mark)
	}
	if index < 0 || index >= len(b.Cells) {
		return nil, fmt.Errorf("%w: index %d out of range [0, %d)", ErrIllegalMove, index, len(b.Cells))
	}
	if OutcomeOf(b).Terminal() {
		return nil, fmt.Errorf("%w: game already finished", ErrIllegalMove)
	}
	if b.Cells[index] != None {
		return nil, fmt.Errorf("%w: cell %d already occupied", ErrIllegalMove, index)
	}

	next := b.Clone()
	next.Cells[index] = mark
	return next, nil
}

// Play applies a move for whichever side is to move.
func Play(b *Board, index int) (*Board, error) {
	return ApplyMove(b, index, NextTurn(b))
}

// WinnerOf returns the mark that fully occupies a line, or None.
// Lines are scanned rows, then columns, then the main diagonal, then the anti-diagonal.
func WinnerOf(b *Board) PlayerMark {
	n := b.Size
	for r := 0; r < n; r++ {
		if w := b.lineOwner(r*n, 1); w != None {
			return w
		}
	}
	for c := 0; c < n; c++ {
		if w := b.lineOwner(c, n); w != None {
			return w
		}
	}
	if w := b.lineOwner(0, n+1); w != None {
		return w
	}
	return b.lineOwner(n-1, n-1)
}

// OutcomeOf derives the game state from the board contents.
func OutcomeOf(b *Board) Outcome {
	if w := WinnerOf(b); w != None {
		return Outcome{Status: Win, Winner: w}
	}
	if b.IsFull() {
		return Outcome{Status: Draw}
	}
	return Outcome{Status: InProgress}
}

// NextTurn returns the side to move. X always opens, so X moves whenever the counts are level.
func NextTurn(b *Board) PlayerMark {
	x, o := b.Counts()
	if x <= o {
		return PlayerX
	}
	return PlayerO
}

// CompletesLine reports whether placing mark at index would complete a line through index.
// The cell at index is treated as holding mark regardless of its current content.
func CompletesLine(b *Board, index int, mark PlayerMark) bool {
	n := b.Size
	row, col := index/n, index%n

	owns := func(i int) bool { return i == index || b.Cells[i] == mark }

	line := func(start, step int) bool {
		for k := 0; k < n; k++ {
			if !owns(start + k*step) {
				return false
			}
		}
		return true
	}

	if line(row*n, 1) || line(col, n) {
		return true
	}
	if row == col && line(0, n+1) {
		return true
	}
	return row+col == n-1 && line(n-1, n-1)
}

func (b *Board) lineOwner(start, step int) PlayerMark {
	first := b.Cells[start]
	if first == None {
		return None
	}
	for k := 1; k < b.Size; k++ {
		if b.Cells[start+k*step] != first {
			return None
		}
	}
	return first
}
