package game

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// parseBoard builds a board from a row-major string of 'X', 'O' and '_'.
func parseBoard(t *testing.T, s string) *Board {
	t.Helper()
	cells := make([]PlayerMark, len(s))
	for i, ch := range s {
		switch ch {
		case 'X':
			cells[i] = PlayerX
		case 'O':
			cells[i] = PlayerO
		case '_':
			cells[i] = None
		default:
			t.Fatalf("unexpected cell %q in %q", ch, s)
		}
	}
	b, err := BoardFromCells(cells)
	require.NoError(t, err)
	return b
}

func TestNewBoard(t *testing.T) {
	for _, size := range []int{3, 4, 5} {
		b, err := NewBoard(size)
		require.NoError(t, err)
		assert.Equal(t, size, b.Size)
		assert.Len(t, b.Cells, size*size)
		assert.Equal(t, Outcome{Status: InProgress}, OutcomeOf(b))
	}

	for _, size := range []int{-1, 0, 1, 2, 6, 9} {
		_, err := NewBoard(size)
		if !errors.Is(err, ErrInvalidConfiguration) {
			t.Errorf("NewBoard(%d) error = %v, want ErrInvalidConfiguration", size, err)
		}
	}
}

func TestBoardFromCells(t *testing.T) {
	_, err := BoardFromCells(make([]PlayerMark, 8))
	assert.ErrorIs(t, err, ErrInvalidConfiguration)

	_, err = BoardFromCells(make([]PlayerMark, 4))
	assert.ErrorIs(t, err, ErrInvalidConfiguration, "2x2 is square but unsupported")

	_, err = BoardFromCells([]PlayerMark{"Z", "", "", "", "", "", "", "", ""})
	assert.ErrorIs(t, err, ErrInvalidConfiguration)

	b, err := BoardFromCells(make([]PlayerMark, 16))
	require.NoError(t, err)
	assert.Equal(t, 4, b.Size)
}

func TestWinnerOf(t *testing.T) {
	tests := []struct {
		name  string
		board string
		want  PlayerMark
	}{
		{name: "No winner - empty board", board: "_________", want: None},
		{name: "No winner - partial board", board: "X___O____", want: None},
		{name: "X wins - first row", board: "XXX_O___O", want: PlayerX},
		{name: "O wins - second column", board: "XO_XO__O_", want: PlayerO},
		{name: "X wins - main diagonal", board: "X___X___X", want: PlayerX},
		{name: "O wins - anti-diagonal", board: "__O_O_O__", want: PlayerO},
		{name: "No winner - full board", board: "XOXOXOOXO", want: None},
		{name: "4x4 - X wins third row", board: "O_O_" + "_O__" + "XXXX" + "____", want: PlayerX},
		{name: "4x4 - O wins last column", board: "X__O" + "X__O" + "_X_O" + "___O", want: PlayerO},
		{name: "4x4 - three in a row is not enough", board: "XXX_" + "OOO_" + "____" + "____", want: None},
		{name: "5x5 - O wins anti-diagonal", board: "____O" + "___O_" + "__O__" + "_O___" + "O____", want: PlayerO},
		{name: "5x5 - X wins main diagonal", board: "X____" + "_X___" + "__X__" + "___X_" + "____X", want: PlayerX},
		{name: "Row found before column", board: "XXX" + "O__" + "O__", want: PlayerX},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := WinnerOf(parseBoard(t, tt.board)); got != tt.want {
				t.Errorf("WinnerOf() got = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOutcomeOf(t *testing.T) {
	tests := []struct {
		name  string
		board string
		want  Outcome
	}{
		{name: "In progress", board: "X___O____", want: Outcome{Status: InProgress}},
		{name: "Draw", board: "XOXOXOOXO", want: Outcome{Status: Draw}},
		{name: "Win on full board", board: "XXXOOXOXO", want: Outcome{Status: Win, Winner: PlayerX}},
		{name: "Win on partial board", board: "O__O__O__", want: Outcome{Status: Win, Winner: PlayerO}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := OutcomeOf(parseBoard(t, tt.board))
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want.Status != InProgress, got.Terminal())
		})
	}
}

func TestApplyMove(t *testing.T) {
	b, err := NewBoard(3)
	require.NoError(t, err)

	next, err := ApplyMove(b, 4, PlayerX)
	require.NoError(t, err)
	assert.Equal(t, PlayerX, next.Cells[4])
	assert.Equal(t, None, b.Cells[4], "input board must not be mutated")
}

func TestApplyMove_Illegal(t *testing.T) {
	tests := []struct {
		name  string
		board string
		index int
		mark  PlayerMark
	}{
		{name: "Negative index", board: "_________", index: -1, mark: PlayerX},
		{name: "Index past the end", board: "_________", index: 9, mark: PlayerX},
		{name: "Occupied cell", board: "X________", index: 0, mark: PlayerO},
		{name: "Game already won", board: "XXXOO____", index: 8, mark: PlayerO},
		{name: "Game already drawn", board: "XOXOXOOXO", index: 0, mark: PlayerX},
		{name: "Empty mark", board: "_________", index: 0, mark: None},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := parseBoard(t, tt.board)
			before := b.Clone()

			got, err := ApplyMove(b, tt.index, tt.mark)
			assert.Nil(t, got)
			assert.ErrorIs(t, err, ErrIllegalMove)
			assert.True(t, before.Equal(b), "board must not change on a rejected move")
		})
	}
}

func TestApplyMove_OrderIndependent(t *testing.T) {
	for _, size := range []int{3, 4, 5} {
		empty, err := NewBoard(size)
		require.NoError(t, err)
		last := size*size - 1

		a, err := ApplyMove(empty, 0, PlayerX)
		require.NoError(t, err)
		a, err = ApplyMove(a, last, PlayerO)
		require.NoError(t, err)

		b, err := ApplyMove(empty, last, PlayerO)
		require.NoError(t, err)
		b, err = ApplyMove(b, 0, PlayerX)
		require.NoError(t, err)

		assert.True(t, a.Equal(b), "size %d", size)
	}
}

func TestPlayAlternatesTurns(t *testing.T) {
	b, err := NewBoard(3)
	require.NoError(t, err)
	assert.Equal(t, PlayerX, NextTurn(b))

	b, err = Play(b, 0)
	require.NoError(t, err)
	assert.Equal(t, PlayerX, b.Cells[0])
	assert.Equal(t, PlayerO, NextTurn(b))

	b, err = Play(b, 1)
	require.NoError(t, err)
	assert.Equal(t, PlayerO, b.Cells[1])
	assert.Equal(t, PlayerX, NextTurn(b))
}

func TestCompletesLine(t *testing.T) {
	tests := []struct {
		name  string
		board string
		index int
		mark  PlayerMark
		want  bool
	}{
		{name: "Row", board: "OO_XX____", index: 2, mark: PlayerO, want: true},
		{name: "Row for other mark", board: "OO_XX____", index: 5, mark: PlayerX, want: true},
		{name: "Column", board: "X__X_____", index: 6, mark: PlayerX, want: true},
		{name: "Diagonal", board: "X___X____", index: 8, mark: PlayerX, want: true},
		{name: "Anti-diagonal", board: "__O_O____", index: 6, mark: PlayerO, want: true},
		{name: "Not a line", board: "X___O____", index: 8, mark: PlayerX, want: false},
		{name: "4x4 row needs four", board: "XXX_" + "________" + "____", index: 3, mark: PlayerX, want: true},
		{name: "4x4 off-diagonal cell", board: "X____X____X_____", index: 14, mark: PlayerX, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CompletesLine(parseBoard(t, tt.board), tt.index, tt.mark); got != tt.want {
				t.Errorf("CompletesLine() got = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBoardHelpers(t *testing.T) {
	b := parseBoard(t, "X_O"+"_X_"+"O__")

	assert.Equal(t, []int{1, 3, 5, 7, 8}, b.EmptyCells())
	assert.Equal(t, 4, b.Center())
	assert.False(t, b.IsFull())

	x, o := b.Counts()
	assert.Equal(t, 2, x)
	assert.Equal(t, 2, o)

	row, col := b.Position(7)
	assert.Equal(t, 2, row)
	assert.Equal(t, 1, col)
	assert.Equal(t, 7, b.Index(2, 1))

	assert.Equal(t, [][]PlayerMark{
		{PlayerX, None, PlayerO},
		{None, PlayerX, None},
		{PlayerO, None, None},
	}, b.Rows())

	four, err := NewBoard(4)
	require.NoError(t, err)
	assert.Equal(t, 8, four.Center())

	assert.Equal(t, PlayerO, Opponent(PlayerX))
	assert.Equal(t, PlayerX, Opponent(PlayerO))
	assert.Equal(t, None, Opponent(None))
}

func TestBoard_CellAt(t *testing.T) {
	b, err := NewBoard(3)
	require.NoError(t, err)

	idx, err := b.CellAt(1, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, idx)

	for _, pos := range [][2]int{{0, 3}, {3, 0}, {-1, 1}, {1, -1}, {0, 4}} {
		_, err := b.CellAt(pos[0], pos[1])
		assert.ErrorIs(t, err, ErrIllegalMove, "position %v", pos)
	}
}
