package bot

import (
	"context"
	"log/slog"
	"time"

	"ctchen222/nxn-tic-tac-toe/internal/game"

	"github.com/google/uuid"
)

// Player is an automated side. It wraps a MoveCalculator with the optional
// "thinking" pause that callers show before the move appears.
type Player struct {
	ID         string
	Mark       game.PlayerMark
	Difficulty Difficulty
	ThinkDelay time.Duration

	calc MoveCalculator
}

// NewPlayer creates a bot for the given side.
func NewPlayer(calc MoveCalculator, mark game.PlayerMark, difficulty Difficulty, thinkDelay time.Duration) *Player {
	return &Player{
		ID:         "bot-" + uuid.New().String()[:8],
		Mark:       mark,
		Difficulty: difficulty,
		ThinkDelay: thinkDelay,
		calc:       calc,
	}
}

// Think waits out the thinking delay. It returns ctx.Err() if ctx is done first.
func (p *Player) Think(ctx context.Context) error {
	if p.ThinkDelay <= 0 {
		return nil
	}
	slog.DebugContext(ctx, "Bot is thinking...", "bot.id", p.ID, "bot.mark", p.Mark, "delay", p.ThinkDelay)
	timer := time.NewTimer(p.ThinkDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// NextMove thinks, then asks the calculator for a move.
func (p *Player) NextMove(ctx context.Context, board *game.Board) (int, bool, error) {
	if err := p.Think(ctx); err != nil {
		return -1, false, err
	}
	return p.calc.SelectMove(ctx, board, p.Difficulty, p.Mark, game.Opponent(p.Mark))
}
