package bot

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"ctchen222/nxn-tic-tac-toe/internal/game"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	tracer = otel.Tracer("bot")
	meter  = otel.Meter("bot")
)

// Difficulty selects the move strategy.
type Difficulty string

const (
	Easy   Difficulty = "easy"
	Medium Difficulty = "medium"
	Hard   Difficulty = "hard"
)

// ParseDifficulty maps a tier name to a Difficulty.
func ParseDifficulty(s string) (Difficulty, error) {
	switch d := Difficulty(s); d {
	case Easy, Medium, Hard:
		return d, nil
	}
	return "", fmt.Errorf("%w: unknown difficulty %q", game.ErrInvalidConfiguration, s)
}

// MoveCalculator defines an interface for an agent that can calculate a game move.
type MoveCalculator interface {
	SelectMove(ctx context.Context, board *game.Board, difficulty Difficulty, aiSide, humanSide game.PlayerMark) (index int, ok bool, err error)
}

// Searcher selects moves for the automated side. It is safe for concurrent use.
type Searcher struct {
	depthLimits map[int]int
	parallelism int
	intn        func(n int) int

	movesSelected metric.Int64Counter
	searchNodes   metric.Int64Histogram
}

// Option configures a Searcher.
type Option func(*Searcher)

// WithDepthLimit caps the hard search at plies below the candidate move on boards of the given size.
// A limit of 0 searches to the end of the game.
func WithDepthLimit(size, plies int) Option {
	return func(s *Searcher) {
		s.depthLimits[size] = plies
	}
}

// WithParallelism sets how many top-level branches the hard search evaluates at once.
// 1 runs a single sequential search.
func WithParallelism(n int) Option {
	return func(s *Searcher) {
		if n > 0 {
			s.parallelism = n
		}
	}
}

// WithRandom replaces the random source used by the easy tier and the medium fallback.
func WithRandom(intn func(n int) int) Option {
	return func(s *Searcher) {
		if intn != nil {
			s.intn = intn
		}
	}
}

// DefaultDepthLimits keeps 3x3 and 4x4 exact and bounds the 5x5 tree.
var DefaultDepthLimits = map[int]int{3: 0, 4: 0, 5: 6}

// NewSearcher creates a Searcher with the default depth limits.
func NewSearcher(opts ...Option) *Searcher {
	s := &Searcher{
		depthLimits: make(map[int]int, len(DefaultDepthLimits)),
		parallelism: 1,
		intn:        rand.IntN,
	}
	for size, limit := range DefaultDepthLimits {
		s.depthLimits[size] = limit
	}
	for _, opt := range opts {
		opt(s)
	}

	var err error
	s.movesSelected, err = meter.Int64Counter("bot.moves.selected",
		metric.WithDescription("Moves chosen by the automated player"))
	if err != nil {
		slog.Warn("failed to create bot.moves.selected counter", "error", err)
	}
	s.searchNodes, err = meter.Int64Histogram("bot.search.nodes",
		metric.WithDescription("Positions visited by one hard search"))
	if err != nil {
		slog.Warn("failed to create bot.search.nodes histogram", "error", err)
	}
	return s
}

var defaultSearcher = NewSearcher()

// SelectMove picks a move with the package default Searcher.
func SelectMove(ctx context.Context, board *game.Board, difficulty Difficulty, aiSide, humanSide game.PlayerMark) (int, bool, error) {
	return defaultSearcher.SelectMove(ctx, board, difficulty, aiSide, humanSide)
}

// SelectMove returns the cell the automated side should play.
// ok is false only when the board has no empty cell.
func (s *Searcher) SelectMove(ctx context.Context, board *game.Board, difficulty Difficulty, aiSide, humanSide game.PlayerMark) (int, bool, error) {
	ctx, span := tracer.Start(ctx, "bot.SelectMove", trace.WithAttributes(
		attribute.String("bot.difficulty", string(difficulty)),
		attribute.String("bot.mark", string(aiSide)),
	))
	defer span.End()

	if err := validateRequest(board, difficulty, aiSide, humanSide); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Invalid move request")
		return -1, false, err
	}
	span.SetAttributes(attribute.Int("board.size", board.Size))

	empty := board.EmptyCells()
	if len(empty) == 0 {
		return -1, false, nil
	}
	if w := game.WinnerOf(board); w != game.None {
		err := fmt.Errorf("%w: game already won by %s", game.ErrIllegalMove, w)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Move requested on finished game")
		return -1, false, err
	}

	start := time.Now()
	var index int
	switch difficulty {
	case Easy:
		index = s.randomMove(empty)
	case Medium:
		index = s.mediumMove(board, empty, aiSide, humanSide)
	case Hard:
		var err error
		index, err = s.hardMove(ctx, board, aiSide)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "Search aborted")
			return -1, false, err
		}
	}

	span.SetAttributes(attribute.Int("move.index", index))
	if s.movesSelected != nil {
		s.movesSelected.Add(ctx, 1, metric.WithAttributes(
			attribute.String("bot.difficulty", string(difficulty)),
			attribute.Int("board.size", board.Size),
		))
	}
	slog.DebugContext(ctx, "Bot selected move", "bot.difficulty", difficulty, "bot.mark", aiSide, "move.index", index, "elapsed", time.Since(start))
	return index, true, nil
}

func validateRequest(board *game.Board, difficulty Difficulty, aiSide, humanSide game.PlayerMark) error {
	if board == nil {
		return fmt.Errorf("%w: nil board", game.ErrInvalidConfiguration)
	}
	if err := game.ValidateSize(board.Size); err != nil {
		return err
	}
	if len(board.Cells) != board.Size*board.Size {
		return fmt.Errorf("%w: board has %d cells, want %d", game.ErrInvalidConfiguration, len(board.Cells), board.Size*board.Size)
	}
	if _, err := ParseDifficulty(string(difficulty)); err != nil {
		return err
	}
	if game.Opponent(aiSide) == game.None || game.Opponent(aiSide) != humanSide {
		return fmt.Errorf("%w: sides %q and %q must be X and O", game.ErrInvalidConfiguration, aiSide, humanSide)
	}
	return nil
}

// randomMove makes a completely random move.
func (s *Searcher) randomMove(empty []int) int {
	return empty[s.intn(len(empty))]
}

// mediumMove will win if it can, block if it must, take the center, otherwise move randomly.
func (s *Searcher) mediumMove(board *game.Board, empty []int, aiSide, humanSide game.PlayerMark) int {
	// 1. Win
	for _, i := range empty {
		if game.CompletesLine(board, i, aiSide) {
			return i
		}
	}

	// 2. Block
	for _, i := range empty {
		if game.CompletesLine(board, i, humanSide) {
			return i
		}
	}

	// 3. Center
	if c := board.Center(); board.Cells[c] == game.None {
		return c
	}

	// 4. Random
	return s.randomMove(empty)
}
