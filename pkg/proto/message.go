package proto

import "ctchen222/nxn-tic-tac-toe/internal/api/models"

// Client message types.
const (
	TypeMove  = "move"
	TypeReset = "reset"
	TypeHint  = "hint"
)

// Server message types.
const (
	TypeState   = "state"
	TypeUpdate  = "update"
	TypeDeleted = "deleted"
	TypeError   = "error"
)

// ClientToServerMessage represents a message from the client to the server.
// Position is either [index] or [row, col].
type ClientToServerMessage struct {
	Type       string `json:"type" validate:"required,oneof=move reset hint"`
	Position   []int  `json:"position,omitempty" validate:"required_if=Type move,omitempty,min=1,max=2,dive,gte=0"`
	Size       int    `json:"size,omitempty" validate:"omitempty,oneof=3 4 5"`
	Difficulty string `json:"difficulty,omitempty" validate:"omitempty,oneof=easy medium hard"`
}

// Coordinates reports the [row, col] form of Position. ok is false for the
// single index form. Range checks belong to the board the move lands on.
func (m *ClientToServerMessage) Coordinates() (row, col int, ok bool) {
	if len(m.Position) != 2 {
		return 0, 0, false
	}
	return m.Position[0], m.Position[1], true
}

// ServerToClientMessage represents a message from the server to the client.
type ServerToClientMessage struct {
	Type    string               `json:"type" validate:"required"`
	Reason  string               `json:"reason,omitempty"`
	Session *models.SessionView  `json:"session,omitempty"`
	Hint    *models.HintResponse `json:"hint,omitempty"`
}
