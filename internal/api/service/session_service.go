package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"ctchen222/nxn-tic-tac-toe/internal/api/models"
	apirepository "ctchen222/nxn-tic-tac-toe/internal/api/repository"
	"ctchen222/nxn-tic-tac-toe/internal/bot"
	"ctchen222/nxn-tic-tac-toe/internal/events"
	"ctchen222/nxn-tic-tac-toe/internal/game"
	"ctchen222/nxn-tic-tac-toe/internal/repository"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	tracer = otel.Tracer("service.session")
	meter  = otel.Meter("service.session")
)

//go:generate mockgen -source=session_service.go -destination=mocks/session_service.go -package=mocks

// SessionService defines the interface for session business logic.
type SessionService interface {
	Create(ctx context.Context, req *models.CreateSessionRequest) (*models.CreateSessionResponse, error)
	Get(ctx context.Context, id string) (*models.SessionView, error)
	Move(ctx context.Context, id string, index int) (*models.SessionView, error)
	MoveAt(ctx context.Context, id string, row, col int) (*models.SessionView, error)
	Reset(ctx context.Context, id string, req *models.ResetRequest) (*models.SessionView, error)
	Hint(ctx context.Context, id string, req *models.HintRequest) (*models.HintResponse, error)
	Delete(ctx context.Context, id string) error
	Stats(ctx context.Context) ([]models.ScoreTotal, error)
}

// TokenIssuer signs access tokens for new sessions.
type TokenIssuer interface {
	Issue(sessionID string) (string, error)
}

// Config wires a SessionService.
type Config struct {
	Sessions   repository.SessionRepository
	Scores     apirepository.ScoreRepository
	Publisher  events.Publisher
	Tokens     TokenIssuer
	Calculator bot.MoveCalculator
	// ThinkDelay is how long the automated side pauses before answering.
	ThinkDelay time.Duration
}

type sessionService struct {
	Config
	gamesFinished metric.Int64Counter
}

// NewSessionService creates a new SessionService.
func NewSessionService(cfg Config) SessionService {
	s := &sessionService{Config: cfg}
	var err error
	s.gamesFinished, err = meter.Int64Counter("session.games.finished",
		metric.WithDescription("Games that reached a win or a draw"))
	if err != nil {
		slog.Warn("failed to create session.games.finished counter", "error", err)
	}
	return s
}

// Create starts a session. When the automated side plays X it opens immediately.
func (s *sessionService) Create(ctx context.Context, req *models.CreateSessionRequest) (*models.CreateSessionResponse, error) {
	ctx, span := tracer.Start(ctx, "SessionService.Create", trace.WithAttributes(
		attribute.Int("board.size", req.Size),
		attribute.String("game.mode", req.Mode),
		attribute.String("bot.difficulty", req.Difficulty),
	))
	defer span.End()

	sess, err := newSession(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Invalid session request")
		return nil, err
	}
	span.SetAttributes(attribute.String("session.id", sess.ID))

	aiMove, err := s.playAI(ctx, sess, s.ThinkDelay)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Automated opening failed")
		return nil, err
	}

	if err := s.Sessions.Create(ctx, sess); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to store session")
		return nil, err
	}
	token, err := s.Tokens.Issue(sess.ID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to issue token")
		return nil, err
	}

	slog.InfoContext(ctx, "Session created", "session.id", sess.ID, "game.mode", sess.Mode, "board.size", sess.Board.Size, "human.mark", sess.HumanMark)
	return &models.CreateSessionResponse{Session: sess.View(aiMove), Token: token}, nil
}

func newSession(req *models.CreateSessionRequest) (*models.Session, error) {
	board, err := game.NewBoard(req.Size)
	if err != nil {
		return nil, err
	}

	mode := models.Mode(req.Mode)
	switch mode {
	case "":
		mode = models.ModeBot
	case models.ModeBot, models.ModeLocal:
	default:
		return nil, fmt.Errorf("%w: unknown mode %q", game.ErrInvalidConfiguration, req.Mode)
	}

	var difficulty bot.Difficulty
	switch {
	case req.Difficulty != "":
		if difficulty, err = bot.ParseDifficulty(req.Difficulty); err != nil {
			return nil, err
		}
	case mode == models.ModeBot:
		difficulty = bot.Medium
	}

	human := game.PlayerX
	if req.HumanMark != "" {
		human = game.PlayerMark(req.HumanMark)
		if game.Opponent(human) == game.None {
			return nil, fmt.Errorf("%w: unknown mark %q", game.ErrInvalidConfiguration, req.HumanMark)
		}
	}
	ai := game.None
	if mode == models.ModeBot {
		ai = game.Opponent(human)
	}

	now := time.Now().UTC()
	return &models.Session{
		ID:         uuid.New().String(),
		Mode:       mode,
		Difficulty: difficulty,
		HumanMark:  human,
		AIMark:     ai,
		Board:      board,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// Get returns the current state of a session.
func (s *sessionService) Get(ctx context.Context, id string) (*models.SessionView, error) {
	ctx, span := tracer.Start(ctx, "SessionService.Get", trace.WithAttributes(
		attribute.String("session.id", id),
	))
	defer span.End()

	sess, err := s.Sessions.FindByID(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to load session")
		return nil, err
	}
	view := sess.View(nil)
	return &view, nil
}

// Move plays index for the side to move. In bot mode the automated side
// answers within the same call.
func (s *sessionService) Move(ctx context.Context, id string, index int) (*models.SessionView, error) {
	ctx, span := tracer.Start(ctx, "SessionService.Move", trace.WithAttributes(
		attribute.String("session.id", id),
		attribute.Int("move.index", index),
	))
	defer span.End()

	view, err := s.move(ctx, id, func(*game.Board) (int, error) { return index, nil })
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Move rejected")
		return nil, err
	}
	return view, nil
}

// MoveAt is Move addressed by row and column. The coordinates are resolved
// against the board the move is applied to, so a concurrent resize cannot
// redirect them to another cell.
func (s *sessionService) MoveAt(ctx context.Context, id string, row, col int) (*models.SessionView, error) {
	ctx, span := tracer.Start(ctx, "SessionService.MoveAt", trace.WithAttributes(
		attribute.String("session.id", id),
		attribute.Int("move.row", row),
		attribute.Int("move.col", col),
	))
	defer span.End()

	view, err := s.move(ctx, id, func(b *game.Board) (int, error) { return b.CellAt(row, col) })
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Move rejected")
		return nil, err
	}
	return view, nil
}

func (s *sessionService) move(ctx context.Context, id string, resolve func(*game.Board) (int, error)) (*models.SessionView, error) {
	if err := s.pause(ctx, id, func(sess *models.Session) bool {
		return sess.Mode == models.ModeBot && !sess.Outcome().Terminal()
	}); err != nil {
		return nil, err
	}

	var (
		aiMove   *int
		finished *game.Outcome
	)
	sess, err := s.Sessions.Update(ctx, id, func(sess *models.Session) error {
		aiMove, finished = nil, nil

		index, err := resolve(sess.Board)
		if err != nil {
			return err
		}
		mover := game.NextTurn(sess.Board)
		if sess.Mode == models.ModeBot && mover != sess.HumanMark && !sess.Outcome().Terminal() {
			return fmt.Errorf("%w: it is %s's turn", game.ErrIllegalMove, mover)
		}
		next, err := game.ApplyMove(sess.Board, index, mover)
		if err != nil {
			return err
		}
		sess.Board = next
		if o := sess.Outcome(); o.Terminal() {
			finished = &o
			sess.Score.Add(o)
			return nil
		}

		if aiMove, err = s.playAI(ctx, sess, 0); err != nil {
			return err
		}
		if o := sess.Outcome(); o.Terminal() {
			finished = &o
			sess.Score.Add(o)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if finished != nil {
		s.recordFinished(ctx, sess, *finished)
	}
	view := sess.View(aiMove)
	s.publish(ctx, view)
	return &view, nil
}

// pause waits out the thinking delay before an update in which the automated
// side is expected to answer. The delay stays outside the WATCH transaction.
func (s *sessionService) pause(ctx context.Context, id string, answers func(*models.Session) bool) error {
	if s.ThinkDelay <= 0 {
		return nil
	}
	sess, err := s.Sessions.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if !answers(sess) {
		return nil
	}
	return bot.NewPlayer(s.Calculator, sess.AIMark, sess.Difficulty, s.ThinkDelay).Think(ctx)
}

// Reset starts a new board in the session, optionally with a new size. The
// score is kept; an unfinished game is discarded without being counted.
func (s *sessionService) Reset(ctx context.Context, id string, req *models.ResetRequest) (*models.SessionView, error) {
	ctx, span := tracer.Start(ctx, "SessionService.Reset", trace.WithAttributes(
		attribute.String("session.id", id),
		attribute.Int("board.size", req.Size),
	))
	defer span.End()

	if err := s.pause(ctx, id, func(sess *models.Session) bool {
		return sess.Mode == models.ModeBot && sess.AIMark == game.PlayerX
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Reset failed")
		return nil, err
	}

	var aiMove *int
	sess, err := s.Sessions.Update(ctx, id, func(sess *models.Session) error {
		size := req.Size
		if size == 0 {
			size = sess.Board.Size
		}
		board, err := game.NewBoard(size)
		if err != nil {
			return err
		}
		sess.Board = board
		aiMove, err = s.playAI(ctx, sess, 0)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Reset failed")
		return nil, err
	}

	slog.InfoContext(ctx, "Session reset", "session.id", id, "board.size", sess.Board.Size)
	view := sess.View(aiMove)
	s.publish(ctx, view)
	return &view, nil
}

// Hint suggests a move for the side to move without playing it.
func (s *sessionService) Hint(ctx context.Context, id string, req *models.HintRequest) (*models.HintResponse, error) {
	ctx, span := tracer.Start(ctx, "SessionService.Hint", trace.WithAttributes(
		attribute.String("session.id", id),
	))
	defer span.End()

	sess, err := s.Sessions.FindByID(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to load session")
		return nil, err
	}

	difficulty := sess.Difficulty
	if req.Difficulty != "" {
		if difficulty, err = bot.ParseDifficulty(req.Difficulty); err != nil {
			return nil, err
		}
	}
	if difficulty == "" {
		difficulty = bot.Hard
	}

	side := game.NextTurn(sess.Board)
	index, ok, err := s.Calculator.SelectMove(ctx, sess.Board, difficulty, side, game.Opponent(side))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Hint failed")
		return nil, err
	}
	hint := &models.HintResponse{Index: index, OK: ok}
	if ok {
		hint.Row, hint.Col = sess.Board.Position(index)
	}
	return hint, nil
}

// Delete removes a session and tells any open stream.
func (s *sessionService) Delete(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "SessionService.Delete", trace.WithAttributes(
		attribute.String("session.id", id),
	))
	defer span.End()

	if err := s.Sessions.Delete(ctx, id); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to delete session")
		return err
	}
	if err := s.Publisher.SessionDeleted(ctx, id); err != nil {
		slog.WarnContext(ctx, "Failed to publish session deletion", "session.id", id, "error", err)
	}
	slog.InfoContext(ctx, "Session deleted", "session.id", id)
	return nil
}

// Stats lists the aggregate results of every finished game.
func (s *sessionService) Stats(ctx context.Context) ([]models.ScoreTotal, error) {
	ctx, span := tracer.Start(ctx, "SessionService.Stats")
	defer span.End()
	return s.Scores.Totals(ctx)
}

// playAI lets the automated side move if it is its turn. It returns the cell
// played, or nil when it did not move. Inside an Update the delay must be 0.
func (s *sessionService) playAI(ctx context.Context, sess *models.Session, delay time.Duration) (*int, error) {
	if !sess.AITurn() {
		return nil, nil
	}
	player := bot.NewPlayer(s.Calculator, sess.AIMark, sess.Difficulty, delay)
	index, ok, err := player.NextMove(ctx, sess.Board)
	if err != nil {
		return nil, fmt.Errorf("automated move: %w", err)
	}
	if !ok {
		return nil, nil
	}
	next, err := game.ApplyMove(sess.Board, index, sess.AIMark)
	if err != nil {
		return nil, fmt.Errorf("automated move: %w", err)
	}
	sess.Board = next
	slog.DebugContext(ctx, "Bot moved", "session.id", sess.ID, "bot.id", player.ID, "move.index", index)
	return &index, nil
}

func (s *sessionService) recordFinished(ctx context.Context, sess *models.Session, o game.Outcome) {
	if s.gamesFinished != nil {
		s.gamesFinished.Add(ctx, 1, metric.WithAttributes(
			attribute.String("game.mode", string(sess.Mode)),
			attribute.String("game.status", string(o.Status)),
			attribute.Int("board.size", sess.Board.Size),
		))
	}
	if err := s.Scores.Record(ctx, sess.Mode, string(sess.Difficulty), sess.Board.Size, o); err != nil {
		slog.WarnContext(ctx, "Failed to record score", "session.id", sess.ID, "error", err)
	}
	slog.InfoContext(ctx, "Game finished", "session.id", sess.ID, "game.status", o.Status, "game.winner", o.Winner)
}

func (s *sessionService) publish(ctx context.Context, view models.SessionView) {
	if err := s.Publisher.SessionUpdated(ctx, view); err != nil {
		slog.WarnContext(ctx, "Failed to publish session update", "session.id", view.ID, "error", err)
	}
}
