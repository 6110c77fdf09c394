package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"ctchen222/nxn-tic-tac-toe/internal/api/models"
	"ctchen222/nxn-tic-tac-toe/internal/bot"
	"ctchen222/nxn-tic-tac-toe/internal/game"

	"github.com/go-redis/redis/v8"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("repository")

var (
	// ErrSessionNotFound is returned when no session exists for an id, including expired ones.
	ErrSessionNotFound = errors.New("session not found")
	// ErrConflict is returned when concurrent writers kept invalidating an update.
	ErrConflict = errors.New("session was modified concurrently")
)

// Hash fields of a stored session.
const (
	FieldBoard      = "board"
	FieldMode       = "mode"
	FieldDifficulty = "difficulty"
	FieldHumanMark  = "human_mark"
	FieldAIMark     = "ai_mark"
	FieldXWins      = "x_wins"
	FieldOWins      = "o_wins"
	FieldDraws      = "draws"
	FieldVersion    = "version"
	FieldCreatedAt  = "created_at"
	FieldUpdatedAt  = "updated_at"
)

const maxUpdateAttempts = 3

//go:generate mockgen -source=session_repository.go -destination=mocks/session_repository.go -package=mocks

// SessionRepository defines the interface for session data operations.
type SessionRepository interface {
	Create(ctx context.Context, s *models.Session) error
	FindByID(ctx context.Context, id string) (*models.Session, error)
	// Update loads the session, lets fn modify it and stores the result atomically.
	// fn may run more than once if another writer gets in between.
	Update(ctx context.Context, id string, fn func(*models.Session) error) (*models.Session, error)
	Delete(ctx context.Context, id string) error
}

type redisSessionRepository struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewSessionRepository creates a new Redis-based SessionRepository. Sessions
// expire ttl after their last write.
func NewSessionRepository(rdb *redis.Client, ttl time.Duration) SessionRepository {
	return &redisSessionRepository{rdb: rdb, ttl: ttl}
}

func sessionKey(id string) string {
	return fmt.Sprintf("session:%s", id)
}

// Create stores a new session.
func (r *redisSessionRepository) Create(ctx context.Context, s *models.Session) error {
	ctx, span := tracer.Start(ctx, "SessionRepository.Create", trace.WithAttributes(
		attribute.String("session.id", s.ID),
	))
	defer span.End()

	fields, err := encodeSession(s)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to encode session")
		return err
	}

	key := sessionKey(s.ID)
	pipe := r.rdb.TxPipeline()
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to create session in redis")
		return fmt.Errorf("failed to create session in redis: %w", err)
	}
	return nil
}

// FindByID retrieves a session from Redis.
func (r *redisSessionRepository) FindByID(ctx context.Context, id string) (*models.Session, error) {
	ctx, span := tracer.Start(ctx, "SessionRepository.FindByID", trace.WithAttributes(
		attribute.String("session.id", id),
	))
	defer span.End()

	data, err := r.rdb.HGetAll(ctx, sessionKey(id)).Result()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to get session from redis")
		return nil, fmt.Errorf("failed to get session from redis: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrSessionNotFound
	}
	return decodeSession(id, data)
}

// Update applies fn to the stored session inside a WATCH transaction, bumping
// its version and refreshing its TTL.
func (r *redisSessionRepository) Update(ctx context.Context, id string, fn func(*models.Session) error) (*models.Session, error) {
	ctx, span := tracer.Start(ctx, "SessionRepository.Update", trace.WithAttributes(
		attribute.String("session.id", id),
	))
	defer span.End()

	key := sessionKey(id)
	var updated *models.Session

	txf := func(tx *redis.Tx) error {
		data, err := tx.HGetAll(ctx, key).Result()
		if err != nil {
			return err
		}
		if len(data) == 0 {
			return ErrSessionNotFound
		}
		s, err := decodeSession(id, data)
		if err != nil {
			return err
		}

		if err := fn(s); err != nil {
			return err
		}
		s.Version++
		s.UpdatedAt = time.Now().UTC()

		fields, err := encodeSession(s)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, fields)
			pipe.Expire(ctx, key, r.ttl)
			return nil
		})
		if err == nil {
			updated = s
		}
		return err
	}

	for attempt := 1; attempt <= maxUpdateAttempts; attempt++ {
		err := r.rdb.Watch(ctx, txf, key)
		if err == nil {
			span.SetAttributes(attribute.Int64("session.version", updated.Version))
			return updated, nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "Failed to update session")
			return nil, err
		}
		span.AddEvent("watch conflict", trace.WithAttributes(attribute.Int("attempt", attempt)))
	}

	span.RecordError(ErrConflict)
	span.SetStatus(codes.Error, "Too many concurrent updates")
	return nil, ErrConflict
}

// Delete removes a session.
func (r *redisSessionRepository) Delete(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "SessionRepository.Delete", trace.WithAttributes(
		attribute.String("session.id", id),
	))
	defer span.End()

	n, err := r.rdb.Del(ctx, sessionKey(id)).Result()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to delete session")
		return fmt.Errorf("failed to delete session from redis: %w", err)
	}
	if n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func encodeSession(s *models.Session) (map[string]any, error) {
	boardJSON, err := json.Marshal(s.Board.Cells)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal board: %w", err)
	}
	return map[string]any{
		FieldBoard:      boardJSON,
		FieldMode:       string(s.Mode),
		FieldDifficulty: string(s.Difficulty),
		FieldHumanMark:  string(s.HumanMark),
		FieldAIMark:     string(s.AIMark),
		FieldXWins:      s.Score.XWins,
		FieldOWins:      s.Score.OWins,
		FieldDraws:      s.Score.Draws,
		FieldVersion:    s.Version,
		FieldCreatedAt:  s.CreatedAt.Format(time.RFC3339Nano),
		FieldUpdatedAt:  s.UpdatedAt.Format(time.RFC3339Nano),
	}, nil
}

func decodeSession(id string, data map[string]string) (*models.Session, error) {
	var cells []game.PlayerMark
	if err := json.Unmarshal([]byte(data[FieldBoard]), &cells); err != nil {
		return nil, fmt.Errorf("failed to unmarshal board: %w", err)
	}
	board, err := game.BoardFromCells(cells)
	if err != nil {
		return nil, fmt.Errorf("stored board for session %s: %w", id, err)
	}

	s := &models.Session{
		ID:         id,
		Mode:       models.Mode(data[FieldMode]),
		Difficulty: bot.Difficulty(data[FieldDifficulty]),
		HumanMark:  game.PlayerMark(data[FieldHumanMark]),
		AIMark:     game.PlayerMark(data[FieldAIMark]),
		Board:      board,
	}

	ints := []struct {
		field string
		dst   *int
	}{
		{FieldXWins, &s.Score.XWins},
		{FieldOWins, &s.Score.OWins},
		{FieldDraws, &s.Score.Draws},
	}
	for _, f := range ints {
		if *f.dst, err = atoi(data[f.field]); err != nil {
			return nil, fmt.Errorf("field %s: %w", f.field, err)
		}
	}
	if s.Version, err = strconv.ParseInt(data[FieldVersion], 10, 64); err != nil {
		return nil, fmt.Errorf("field %s: %w", FieldVersion, err)
	}
	if s.CreatedAt, err = time.Parse(time.RFC3339Nano, data[FieldCreatedAt]); err != nil {
		return nil, fmt.Errorf("field %s: %w", FieldCreatedAt, err)
	}
	if s.UpdatedAt, err = time.Parse(time.RFC3339Nano, data[FieldUpdatedAt]); err != nil {
		return nil, fmt.Errorf("field %s: %w", FieldUpdatedAt, err)
	}
	return s, nil
}

func atoi(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}
