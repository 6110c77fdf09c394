package game

import (
	"errors"
	"fmt"
)

var (
	// ErrIllegalMove is returned for out-of-range indices, occupied cells and moves on a finished board.
	ErrIllegalMove = errors.New("illegal move")
	// ErrInvalidConfiguration is returned for unsupported board sizes, marks or difficulty tiers.
	ErrInvalidConfiguration = errors.New("invalid configuration")
)

// ValidateSize checks that size is a supported side length.
func ValidateSize(size int) error {
	if size < MinSize || size > MaxSize {
		return fmt.Errorf("%w: board size %d not in [%d, %d]", ErrInvalidConfiguration, size, MinSize, MaxSize)
	}
	return nil
}

// Opponent returns the other side, or None for anything that is not a player mark.
func Opponent(mark PlayerMark) PlayerMark {
	switch mark {
	case PlayerX:
		return PlayerO
	case PlayerO:
		return PlayerX
	}
	return None
}

// Clone returns a deep copy of the board.
func (b *Board) Clone() *Board {
	cells := make([]PlayerMark, len(b.Cells))
	copy(cells, b.Cells)
	return &Board{Size: b.Size, Cells: cells}
}

// Index maps (row, col) to a cell index.
func (b *Board) Index(row, col int) int {
	return row*b.Size + col
}

// CellAt is Index for untrusted coordinates. Either coordinate outside
// [0, Size) is an illegal move rather than a different cell.
func (b *Board) CellAt(row, col int) (int, error) {
	if row < 0 || row >= b.Size || col < 0 || col >= b.Size {
		return -1, fmt.Errorf("%w: position (%d, %d) outside %dx%d board", ErrIllegalMove, row, col, b.Size, b.Size)
	}
	return b.Index(row, col), nil
}

// Position maps a cell index to (row, col).
func (b *Board) Position(index int) (row, col int) {
	return index / b.Size, index % b.Size
}

// Center is floor(Size²/2). On even boards this is the first cell of the lower middle row.
func (b *Board) Center() int {
	return len(b.Cells) / 2
}

// EmptyCells lists empty indices in ascending order.
func (b *Board) EmptyCells() []int {
	empty := make([]int, 0, len(b.Cells))
	for i, c := range b.Cells {
		if c == None {
			empty = append(empty, i)
		}
	}
	return empty
}

// IsFull checks if every cell is occupied.
func (b *Board) IsFull() bool {
	for _, c := range b.Cells {
		if c == None {
			return false
		}
	}
	return true
}

// Counts returns how many X and O marks are on the board.
func (b *Board) Counts() (x, o int) {
	for _, c := range b.Cells {
		switch c {
		case PlayerX:
			x++
		case PlayerO:
			o++
		}
	}
	return x, o
}

// Rows converts the board to a slice of rows for the wire format.
func (b *Board) Rows() [][]PlayerMark {
	rows := make([][]PlayerMark, b.Size)
	for r := range rows {
		rows[r] = make([]PlayerMark, b.Size)
		copy(rows[r], b.Cells[r*b.Size:(r+1)*b.Size])
	}
	return rows
}

// Equal reports whether two boards have the same size and contents.
func (b *Board) Equal(other *Board) bool {
	if other == nil || b.Size != other.Size || len(b.Cells) != len(other.Cells) {
		return false
	}
	for i := range b.Cells {
		if b.Cells[i] != other.Cells[i] {
			return false
		}
	}
	return true
}

// sideLength returns n when cells == n*n, and 0 otherwise.
func sideLength(cells int) int {
	for n := 1; n*n <= cells; n++ {
		if n*n == cells {
			return n
		}
	}
	return 0
}
