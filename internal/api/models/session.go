package models

import (
	"time"

	"ctchen222/nxn-tic-tac-toe/internal/bot"
	"ctchen222/nxn-tic-tac-toe/internal/game"
)

// Mode is who plays the second side of a session.
type Mode string

const (
	// ModeBot pits the human against the automated player.
	ModeBot Mode = "bot"
	// ModeLocal is hot-seat play: both sides are entered by humans.
	ModeLocal Mode = "local"
)

// Score is the running tally of finished games in a session.
type Score struct {
	XWins int `json:"x_wins"`
	OWins int `json:"o_wins"`
	Draws int `json:"draws"`
}

// Add counts one finished game.
func (s *Score) Add(o game.Outcome) {
	switch {
	case o.Status == game.Draw:
		s.Draws++
	case o.Winner == game.PlayerX:
		s.XWins++
	case o.Winner == game.PlayerO:
		s.OWins++
	}
}

// Session is one game table: the board, who plays which side, and the score so far.
type Session struct {
	ID         string
	Mode       Mode
	Difficulty bot.Difficulty
	HumanMark  game.PlayerMark
	AIMark     game.PlayerMark
	Board      *game.Board
	Score      Score
	Version    int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Outcome is the state of the current board.
func (s *Session) Outcome() game.Outcome {
	return game.OutcomeOf(s.Board)
}

// AITurn reports whether the automated side should move now.
func (s *Session) AITurn() bool {
	return s.Mode == ModeBot && !s.Outcome().Terminal() && game.NextTurn(s.Board) == s.AIMark
}

// CreateSessionRequest defines the structure for starting a new session.
type CreateSessionRequest struct {
	Size       int    `json:"size" binding:"required,oneof=3 4 5"`
	Mode       string `json:"mode" binding:"omitempty,oneof=bot local"`
	Difficulty string `json:"difficulty" binding:"omitempty,oneof=easy medium hard"`
	HumanMark  string `json:"human_mark" binding:"omitempty,oneof=X O"`
}

// MoveRequest places the side-to-move's mark on a row-major cell index.
type MoveRequest struct {
	Index *int `json:"index" binding:"required"`
}

// ResetRequest starts a new game in the same session, optionally on a different size.
type ResetRequest struct {
	Size int `json:"size" binding:"omitempty,oneof=3 4 5"`
}

// HintRequest asks for a suggested move for the side to move.
type HintRequest struct {
	Difficulty string `json:"difficulty" binding:"omitempty,oneof=easy medium hard"`
}

// SessionView is the wire shape of a session.
type SessionView struct {
	ID         string              `json:"id"`
	Mode       Mode                `json:"mode"`
	Difficulty bot.Difficulty      `json:"difficulty,omitempty"`
	HumanMark  game.PlayerMark     `json:"human_mark"`
	AIMark     game.PlayerMark     `json:"ai_mark,omitempty"`
	Size       int                 `json:"size"`
	Board      [][]game.PlayerMark `json:"board"`
	Next       game.PlayerMark     `json:"next,omitempty"`
	Status     game.Status         `json:"status"`
	Winner     game.PlayerMark     `json:"winner,omitempty"`
	Score      Score               `json:"score"`
	AIMove     *int                `json:"ai_move,omitempty"`
	UpdatedAt  time.Time           `json:"updated_at"`
}

// View renders the session for clients. aiMove is the cell the automated side
// just played, or nil.
func (s *Session) View(aiMove *int) SessionView {
	o := s.Outcome()
	v := SessionView{
		ID:         s.ID,
		Mode:       s.Mode,
		Difficulty: s.Difficulty,
		HumanMark:  s.HumanMark,
		AIMark:     s.AIMark,
		Size:       s.Board.Size,
		Board:      s.Board.Rows(),
		Status:     o.Status,
		Winner:     o.Winner,
		Score:      s.Score,
		AIMove:     aiMove,
		UpdatedAt:  s.UpdatedAt,
	}
	if !o.Terminal() {
		v.Next = game.NextTurn(s.Board)
	}
	return v
}

// CreateSessionResponse carries the new session and the token that grants access to it.
type CreateSessionResponse struct {
	Session SessionView `json:"session"`
	Token   string      `json:"token"`
}

// HintResponse is a suggested move. OK is false when the board has no empty cell.
type HintResponse struct {
	Index int  `json:"index"`
	Row   int  `json:"row"`
	Col   int  `json:"col"`
	OK    bool `json:"ok"`
}

// ScoreTotal is an aggregate row of finished games for one configuration.
type ScoreTotal struct {
	Mode       Mode   `db:"mode" json:"mode"`
	Difficulty string `db:"difficulty" json:"difficulty"`
	Size       int    `db:"size" json:"size"`
	XWins      int    `db:"x_wins" json:"x_wins"`
	OWins      int    `db:"o_wins" json:"o_wins"`
	Draws      int    `db:"draws" json:"draws"`
}
