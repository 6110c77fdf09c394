package controller

import (
	"errors"
	"log/slog"
	"net/http"

	"ctchen222/nxn-tic-tac-toe/internal/api/auth"
	"ctchen222/nxn-tic-tac-toe/internal/api/models"
	"ctchen222/nxn-tic-tac-toe/internal/api/response"
	"ctchen222/nxn-tic-tac-toe/internal/api/service"
	"ctchen222/nxn-tic-tac-toe/internal/game"
	"ctchen222/nxn-tic-tac-toe/internal/repository"

	"github.com/gin-gonic/gin"
)

// SessionController handles session-related HTTP requests.
type SessionController struct {
	sessionService service.SessionService
}

// NewSessionController creates a new SessionController.
func NewSessionController(sessionService service.SessionService) *SessionController {
	return &SessionController{
		sessionService: sessionService,
	}
}

// Create handles the session creation endpoint.
func (sc *SessionController) Create(c *gin.Context) {
	var req models.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := sc.sessionService.Create(c.Request.Context(), &req)
	if err != nil {
		writeError(c, err)
		return
	}

	response.CreatedResponse(c, resp)
}

// Get returns the current state of a session.
func (sc *SessionController) Get(c *gin.Context) {
	view, err := sc.sessionService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.SuccessResponse(c, view)
}

// Move plays a cell for the side to move.
func (sc *SessionController) Move(c *gin.Context) {
	var req models.MoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	view, err := sc.sessionService.Move(c.Request.Context(), c.Param("id"), *req.Index)
	if err != nil {
		writeError(c, err)
		return
	}
	response.SuccessResponse(c, view)
}

// Reset starts a new game in the session. The body is optional.
func (sc *SessionController) Reset(c *gin.Context) {
	var req models.ResetRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.ErrorResponse(c, http.StatusBadRequest, err.Error())
			return
		}
	}

	view, err := sc.sessionService.Reset(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		writeError(c, err)
		return
	}
	response.SuccessResponse(c, view)
}

// Hint suggests a move without playing it. The body is optional.
func (sc *SessionController) Hint(c *gin.Context) {
	var req models.HintRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.ErrorResponse(c, http.StatusBadRequest, err.Error())
			return
		}
	}

	hint, err := sc.sessionService.Hint(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		writeError(c, err)
		return
	}
	response.SuccessResponse(c, hint)
}

// Delete removes a session.
func (sc *SessionController) Delete(c *gin.Context) {
	if err := sc.sessionService.Delete(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	response.SuccessResponse(c, gin.H{"message": "Session deleted"})
}

// Stats lists the aggregate results of finished games.
func (sc *SessionController) Stats(c *gin.Context) {
	totals, err := sc.sessionService.Stats(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	response.SuccessResponse(c, gin.H{"list": totals})
}

// StatusFor maps a domain error to its HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, game.ErrIllegalMove):
		return http.StatusConflict
	case errors.Is(err, game.ErrInvalidConfiguration):
		return http.StatusBadRequest
	case errors.Is(err, repository.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, repository.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

func writeError(c *gin.Context, err error) {
	code := StatusFor(err)
	if code == http.StatusInternalServerError {
		slog.ErrorContext(c.Request.Context(), "Request failed", "http.path", c.FullPath(), "error", err)
		response.ErrorResponse(c, code, "internal server error")
		return
	}
	response.ErrorResponse(c, code, err.Error())
}
