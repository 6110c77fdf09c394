package repository

import (
	"context"
	"fmt"

	"ctchen222/nxn-tic-tac-toe/internal/api/models"
	"ctchen222/nxn-tic-tac-toe/internal/game"

	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("repository.score")

//go:generate mockgen -source=score_repository.go -destination=mocks/score_repository.go -package=mocks

// ScoreRepository keeps aggregate results per (mode, difficulty, size).
type ScoreRepository interface {
	Record(ctx context.Context, mode models.Mode, difficulty string, size int, outcome game.Outcome) error
	Totals(ctx context.Context) ([]models.ScoreTotal, error)
}

type sqliteScoreRepository struct {
	db *sqlx.DB
}

// NewScoreRepository creates a new SQLite-based ScoreRepository.
func NewScoreRepository(db *sqlx.DB) ScoreRepository {
	return &sqliteScoreRepository{db: db}
}

// Record adds one finished game to the matching aggregate row.
func (r *sqliteScoreRepository) Record(ctx context.Context, mode models.Mode, difficulty string, size int, outcome game.Outcome) error {
	ctx, span := tracer.Start(ctx, "ScoreRepository.Record", trace.WithAttributes(
		attribute.String("game.mode", string(mode)),
		attribute.Int("board.size", size),
		attribute.String("game.status", string(outcome.Status)),
	))
	defer span.End()

	if !outcome.Terminal() {
		return fmt.Errorf("%w: cannot record an unfinished game", game.ErrInvalidConfiguration)
	}
	var xWin, oWin, draw int
	switch {
	case outcome.Status == game.Draw:
		draw = 1
	case outcome.Winner == game.PlayerX:
		xWin = 1
	default:
		oWin = 1
	}

	query := `
	INSERT INTO score_totals (mode, difficulty, size, x_wins, o_wins, draws)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT (mode, difficulty, size) DO UPDATE SET
		x_wins = x_wins + excluded.x_wins,
		o_wins = o_wins + excluded.o_wins,
		draws  = draws + excluded.draws`
	if _, err := r.db.ExecContext(ctx, query, string(mode), difficulty, size, xWin, oWin, draw); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to record score")
		return fmt.Errorf("failed to record score: %w", err)
	}
	return nil
}

// Totals lists every aggregate row, ordered by mode, difficulty and size.
func (r *sqliteScoreRepository) Totals(ctx context.Context) ([]models.ScoreTotal, error) {
	ctx, span := tracer.Start(ctx, "ScoreRepository.Totals")
	defer span.End()

	totals := []models.ScoreTotal{}
	query := `SELECT mode, difficulty, size, x_wins, o_wins, draws FROM score_totals ORDER BY mode, difficulty, size`
	if err := r.db.SelectContext(ctx, &totals, query); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to list scores")
		return nil, fmt.Errorf("failed to list scores: %w", err)
	}
	return totals, nil
}
