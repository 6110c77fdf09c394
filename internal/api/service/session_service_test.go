package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"ctchen222/nxn-tic-tac-toe/internal/api/models"
	scoremocks "ctchen222/nxn-tic-tac-toe/internal/api/repository/mocks"
	"ctchen222/nxn-tic-tac-toe/internal/bot"
	eventmocks "ctchen222/nxn-tic-tac-toe/internal/events/mocks"
	"ctchen222/nxn-tic-tac-toe/internal/game"
	"ctchen222/nxn-tic-tac-toe/internal/repository"
	"ctchen222/nxn-tic-tac-toe/internal/repository/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type fakeTokens struct{}

func (fakeTokens) Issue(id string) (string, error) { return "token-" + id, nil }

type fixture struct {
	svc       SessionService
	sessions  *mocks.MockSessionRepository
	scores    *scoremocks.MockScoreRepository
	publisher *eventmocks.MockPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	f := &fixture{
		sessions:  mocks.NewMockSessionRepository(ctrl),
		scores:    scoremocks.NewMockScoreRepository(ctrl),
		publisher: eventmocks.NewMockPublisher(ctrl),
	}
	f.svc = NewSessionService(Config{
		Sessions:   f.sessions,
		Scores:     f.scores,
		Publisher:  f.publisher,
		Tokens:     fakeTokens{},
		Calculator: bot.NewSearcher(bot.WithRandom(func(int) int { return 0 })),
	})
	return f
}

// stored is a session already in the repository; Update runs fn against it.
func (f *fixture) stored(sess *models.Session) {
	f.sessions.EXPECT().Update(gomock.Any(), sess.ID, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ string, fn func(*models.Session) error) (*models.Session, error) {
			cp := *sess
			cp.Board = sess.Board.Clone()
			if err := fn(&cp); err != nil {
				return nil, err
			}
			*sess = cp
			return sess, nil
		}).AnyTimes()
	f.sessions.EXPECT().FindByID(gomock.Any(), sess.ID).Return(sess, nil).AnyTimes()
}

func parseBoard(t *testing.T, s string) *game.Board {
	t.Helper()
	cells := make([]game.PlayerMark, len(s))
	for i, ch := range s {
		switch ch {
		case 'X':
			cells[i] = game.PlayerX
		case 'O':
			cells[i] = game.PlayerO
		}
	}
	b, err := game.BoardFromCells(cells)
	require.NoError(t, err)
	return b
}

func botSession(t *testing.T, board string, difficulty bot.Difficulty) *models.Session {
	return &models.Session{
		ID:         "s1",
		Mode:       models.ModeBot,
		Difficulty: difficulty,
		HumanMark:  game.PlayerX,
		AIMark:     game.PlayerO,
		Board:      parseBoard(t, board),
	}
}

func TestCreate(t *testing.T) {
	t.Run("Defaults to bot mode with the human as X", func(t *testing.T) {
		f := newFixture(t)
		f.sessions.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, s *models.Session) error {
			assert.Equal(t, models.ModeBot, s.Mode)
			assert.Equal(t, bot.Medium, s.Difficulty)
			assert.Equal(t, game.PlayerO, s.AIMark)
			return nil
		})

		resp, err := f.svc.Create(context.Background(), &models.CreateSessionRequest{Size: 4})
		require.NoError(t, err)
		assert.Equal(t, "token-"+resp.Session.ID, resp.Token)
		assert.Equal(t, 4, resp.Session.Size)
		assert.Equal(t, game.PlayerX, resp.Session.Next)
		assert.Nil(t, resp.Session.AIMove)
	})

	t.Run("Automated side opens when it plays X", func(t *testing.T) {
		f := newFixture(t)
		f.sessions.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)

		resp, err := f.svc.Create(context.Background(), &models.CreateSessionRequest{Size: 3, Difficulty: "hard", HumanMark: "O"})
		require.NoError(t, err)
		require.NotNil(t, resp.Session.AIMove)
		assert.Equal(t, 0, *resp.Session.AIMove)
		assert.Equal(t, game.PlayerX, resp.Session.Board[0][0])
		assert.Equal(t, game.PlayerO, resp.Session.Next)
	})

	t.Run("Local mode has no automated side", func(t *testing.T) {
		f := newFixture(t)
		f.sessions.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)

		resp, err := f.svc.Create(context.Background(), &models.CreateSessionRequest{Size: 3, Mode: "local", HumanMark: "O"})
		require.NoError(t, err)
		assert.Equal(t, game.None, resp.Session.AIMark)
		assert.Nil(t, resp.Session.AIMove)
	})

	t.Run("Invalid requests", func(t *testing.T) {
		f := newFixture(t)
		for _, req := range []*models.CreateSessionRequest{
			{Size: 6},
			{Size: 3, Difficulty: "impossible"},
			{Size: 3, Mode: "online"},
			{Size: 3, HumanMark: "Z"},
		} {
			_, err := f.svc.Create(context.Background(), req)
			assert.ErrorIs(t, err, game.ErrInvalidConfiguration, "request %+v", req)
		}
	})
}

func TestMove(t *testing.T) {
	t.Run("Automated side answers", func(t *testing.T) {
		f := newFixture(t)
		sess := botSession(t, "_________", bot.Medium)
		f.stored(sess)
		f.publisher.EXPECT().SessionUpdated(gomock.Any(), gomock.Any()).Return(nil)

		view, err := f.svc.Move(context.Background(), "s1", 0)
		require.NoError(t, err)
		require.NotNil(t, view.AIMove)
		assert.Equal(t, 4, *view.AIMove)
		assert.Equal(t, game.PlayerX, view.Next)
		assert.Equal(t, game.InProgress, view.Status)
	})

	t.Run("Human win is tallied once", func(t *testing.T) {
		f := newFixture(t)
		sess := botSession(t, "XX_OO____", bot.Easy)
		f.stored(sess)
		f.publisher.EXPECT().SessionUpdated(gomock.Any(), gomock.Any()).Return(nil)
		f.scores.EXPECT().Record(gomock.Any(), models.ModeBot, "easy", 3, game.Outcome{Status: game.Win, Winner: game.PlayerX}).Return(nil).Times(1)

		view, err := f.svc.Move(context.Background(), "s1", 2)
		require.NoError(t, err)
		assert.Equal(t, game.Win, view.Status)
		assert.Equal(t, game.PlayerX, view.Winner)
		assert.Nil(t, view.AIMove)
		assert.Equal(t, models.Score{XWins: 1}, view.Score)
		assert.Equal(t, game.None, view.Next)

		_, err = f.svc.Move(context.Background(), "s1", 5)
		assert.ErrorIs(t, err, game.ErrIllegalMove)
		assert.Equal(t, models.Score{XWins: 1}, sess.Score)
	})

	t.Run("Automated win is tallied", func(t *testing.T) {
		f := newFixture(t)
		sess := botSession(t, "X__OO_X__", bot.Medium)
		f.stored(sess)
		f.publisher.EXPECT().SessionUpdated(gomock.Any(), gomock.Any()).Return(nil)
		f.scores.EXPECT().Record(gomock.Any(), models.ModeBot, "medium", 3, game.Outcome{Status: game.Win, Winner: game.PlayerO}).Return(nil)

		view, err := f.svc.Move(context.Background(), "s1", 8)
		require.NoError(t, err)
		require.NotNil(t, view.AIMove)
		assert.Equal(t, 5, *view.AIMove)
		assert.Equal(t, game.PlayerO, view.Winner)
		assert.Equal(t, models.Score{OWins: 1}, view.Score)
	})

	t.Run("Illegal moves leave the session unchanged", func(t *testing.T) {
		f := newFixture(t)
		sess := botSession(t, "X___O____", bot.Hard)
		f.stored(sess)

		for _, idx := range []int{-1, 0, 4, 9} {
			_, err := f.svc.Move(context.Background(), "s1", idx)
			assert.ErrorIs(t, err, game.ErrIllegalMove, "index %d", idx)
		}
		assert.True(t, parseBoard(t, "X___O____").Equal(sess.Board))
	})

	t.Run("Local mode alternates sides", func(t *testing.T) {
		f := newFixture(t)
		sess := &models.Session{ID: "s1", Mode: models.ModeLocal, HumanMark: game.PlayerX, Board: parseBoard(t, "_________")}
		f.stored(sess)
		f.publisher.EXPECT().SessionUpdated(gomock.Any(), gomock.Any()).Return(nil).Times(2)

		view, err := f.svc.Move(context.Background(), "s1", 0)
		require.NoError(t, err)
		assert.Equal(t, game.PlayerO, view.Next)
		view, err = f.svc.Move(context.Background(), "s1", 1)
		require.NoError(t, err)
		assert.Equal(t, game.PlayerO, view.Board[0][1])
		assert.Equal(t, game.PlayerX, view.Next)
	})

	t.Run("Unknown session", func(t *testing.T) {
		f := newFixture(t)
		f.sessions.EXPECT().Update(gomock.Any(), "nope", gomock.Any()).Return(nil, repository.ErrSessionNotFound)
		_, err := f.svc.Move(context.Background(), "nope", 0)
		assert.ErrorIs(t, err, repository.ErrSessionNotFound)
	})

	t.Run("Publish and score failures do not fail the move", func(t *testing.T) {
		f := newFixture(t)
		sess := botSession(t, "XX_OO____", bot.Easy)
		f.stored(sess)
		f.publisher.EXPECT().SessionUpdated(gomock.Any(), gomock.Any()).Return(errors.New("redis down"))
		f.scores.EXPECT().Record(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("disk full"))

		view, err := f.svc.Move(context.Background(), "s1", 2)
		require.NoError(t, err)
		assert.Equal(t, game.Win, view.Status)
	})
}

func TestReset(t *testing.T) {
	t.Run("Keeps the score and changes size", func(t *testing.T) {
		f := newFixture(t)
		sess := botSession(t, "XXXOO____", bot.Easy)
		sess.Score = models.Score{XWins: 3, Draws: 1}
		f.stored(sess)
		f.publisher.EXPECT().SessionUpdated(gomock.Any(), gomock.Any()).Return(nil)

		view, err := f.svc.Reset(context.Background(), "s1", &models.ResetRequest{Size: 5})
		require.NoError(t, err)
		assert.Equal(t, 5, view.Size)
		assert.Len(t, view.Board, 5)
		assert.Equal(t, models.Score{XWins: 3, Draws: 1}, view.Score)
		assert.Equal(t, game.InProgress, view.Status)
	})

	t.Run("Automated X opens the new game", func(t *testing.T) {
		f := newFixture(t)
		sess := botSession(t, "OOOXX_X__", bot.Medium)
		sess.HumanMark, sess.AIMark = game.PlayerO, game.PlayerX
		f.stored(sess)
		f.publisher.EXPECT().SessionUpdated(gomock.Any(), gomock.Any()).Return(nil)

		view, err := f.svc.Reset(context.Background(), "s1", &models.ResetRequest{})
		require.NoError(t, err)
		require.NotNil(t, view.AIMove)
		assert.Equal(t, 4, *view.AIMove)
		assert.Equal(t, game.PlayerO, view.Next)
	})
}

func TestHint(t *testing.T) {
	f := newFixture(t)
	sess := botSession(t, "OO_XX____", bot.Easy)
	f.stored(sess)

	hint, err := f.svc.Hint(context.Background(), "s1", &models.HintRequest{Difficulty: "hard"})
	require.NoError(t, err)
	assert.Equal(t, models.HintResponse{Index: 5, Row: 1, Col: 2, OK: true}, *hint)
	assert.True(t, parseBoard(t, "OO_XX____").Equal(sess.Board), "hint must not play")

	_, err = f.svc.Hint(context.Background(), "s1", &models.HintRequest{Difficulty: "godlike"})
	assert.ErrorIs(t, err, game.ErrInvalidConfiguration)
}

func TestHint_FullBoard(t *testing.T) {
	f := newFixture(t)
	f.stored(botSession(t, "XOXOXOOXO", bot.Hard))

	hint, err := f.svc.Hint(context.Background(), "s1", &models.HintRequest{})
	require.NoError(t, err)
	assert.False(t, hint.OK)
}

func TestDeleteAndStats(t *testing.T) {
	f := newFixture(t)
	f.sessions.EXPECT().Delete(gomock.Any(), "s1").Return(nil)
	f.publisher.EXPECT().SessionDeleted(gomock.Any(), "s1").Return(nil)
	require.NoError(t, f.svc.Delete(context.Background(), "s1"))

	f.sessions.EXPECT().Delete(gomock.Any(), "s2").Return(repository.ErrSessionNotFound)
	assert.ErrorIs(t, f.svc.Delete(context.Background(), "s2"), repository.ErrSessionNotFound)

	totals := []models.ScoreTotal{{Mode: models.ModeBot, Difficulty: "hard", Size: 3, Draws: 7}}
	f.scores.EXPECT().Totals(gomock.Any()).Return(totals, nil)
	got, err := f.svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, totals, got)
}

func newDelayedService(t *testing.T, delay time.Duration) (SessionService, *mocks.MockSessionRepository, *eventmocks.MockPublisher) {
	t.Helper()
	ctrl := gomock.NewController(t)
	sessions := mocks.NewMockSessionRepository(ctrl)
	publisher := eventmocks.NewMockPublisher(ctrl)
	svc := NewSessionService(Config{
		Sessions:   sessions,
		Scores:     scoremocks.NewMockScoreRepository(ctrl),
		Publisher:  publisher,
		Tokens:     fakeTokens{},
		Calculator: bot.NewSearcher(),
		ThinkDelay: delay,
	})
	return svc, sessions, publisher
}

func TestMove_ThinkDelayHonoursCancellation(t *testing.T) {
	svc, sessions, _ := newDelayedService(t, time.Hour)
	sess := botSession(t, "_________", bot.Easy)
	sessions.EXPECT().FindByID(gomock.Any(), "s1").Return(sess, nil)
	sessions.EXPECT().Update(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := svc.Move(ctx, "s1", 0)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMove_ThinkDelayOutsideUpdate(t *testing.T) {
	const delay = 30 * time.Millisecond
	svc, sessions, publisher := newDelayedService(t, delay)
	sess := botSession(t, "_________", bot.Hard)

	start := time.Now()
	var inUpdate time.Duration
	sessions.EXPECT().FindByID(gomock.Any(), "s1").Return(sess, nil)
	sessions.EXPECT().Update(gomock.Any(), "s1", gomock.Any()).DoAndReturn(
		func(_ context.Context, _ string, fn func(*models.Session) error) (*models.Session, error) {
			entered := time.Now()
			assert.GreaterOrEqual(t, entered.Sub(start), delay, "pause must finish before the transaction starts")
			err := fn(sess)
			inUpdate = time.Since(entered)
			return sess, err
		})
	publisher.EXPECT().SessionUpdated(gomock.Any(), gomock.Any()).Return(nil)

	view, err := svc.Move(context.Background(), "s1", 0)
	require.NoError(t, err)
	require.NotNil(t, view.AIMove)
	assert.Less(t, inUpdate, delay, "no pause inside the transaction")
}

func TestMove_ThinkDelaySkippedInLocalMode(t *testing.T) {
	svc, sessions, publisher := newDelayedService(t, time.Hour)
	sess := &models.Session{ID: "s1", Mode: models.ModeLocal, HumanMark: game.PlayerX, Board: parseBoard(t, "_________")}
	sessions.EXPECT().FindByID(gomock.Any(), "s1").Return(sess, nil)
	sessions.EXPECT().Update(gomock.Any(), "s1", gomock.Any()).DoAndReturn(
		func(_ context.Context, _ string, fn func(*models.Session) error) (*models.Session, error) {
			return sess, fn(sess)
		})
	publisher.EXPECT().SessionUpdated(gomock.Any(), gomock.Any()).Return(nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := svc.Move(ctx, "s1", 4)
	require.NoError(t, err)
}

func TestMoveAt(t *testing.T) {
	t.Run("Resolves row and col against the stored board", func(t *testing.T) {
		f := newFixture(t)
		sess := &models.Session{ID: "s1", Mode: models.ModeLocal, HumanMark: game.PlayerX, Board: parseBoard(t, "________________")}
		f.stored(sess)
		f.publisher.EXPECT().SessionUpdated(gomock.Any(), gomock.Any()).Return(nil)

		view, err := f.svc.MoveAt(context.Background(), "s1", 1, 2)
		require.NoError(t, err)
		assert.Equal(t, game.PlayerX, view.Board[1][2])
		assert.Equal(t, game.PlayerX, sess.Board.Cells[6])
	})

	t.Run("Coordinates off the board are illegal", func(t *testing.T) {
		f := newFixture(t)
		sess := botSession(t, "_________", bot.Hard)
		f.stored(sess)

		for _, pos := range [][2]int{{0, 4}, {3, 0}, {-1, 0}, {0, -1}} {
			_, err := f.svc.MoveAt(context.Background(), "s1", pos[0], pos[1])
			assert.ErrorIs(t, err, game.ErrIllegalMove, "position %v", pos)
		}
		assert.True(t, parseBoard(t, "_________").Equal(sess.Board), "no cell may be played")
	})
}
