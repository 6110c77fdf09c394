package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"ctchen222/nxn-tic-tac-toe/internal/api/controller"
	"ctchen222/nxn-tic-tac-toe/internal/api/models"
	"ctchen222/nxn-tic-tac-toe/internal/api/response"
	"ctchen222/nxn-tic-tac-toe/internal/events"
	"ctchen222/nxn-tic-tac-toe/internal/validator"
	"ctchen222/nxn-tic-tac-toe/pkg/proto"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	heartbeatInterval = 10 * time.Second
	pongWait          = 3 * heartbeatInterval
	writeWait         = 5 * time.Second
	maxMessageSize    = 1024
)

// Feed is a live stream of one session's events.
type Feed interface {
	Events() <-chan events.Event
	Close() error
}

// Subscriber opens event feeds for sessions.
type Subscriber interface {
	Subscribe(ctx context.Context, sessionID string) (Feed, error)
}

// BusSubscriber adapts an events.Bus to Subscriber.
type BusSubscriber struct {
	Bus *events.Bus
}

func (b BusSubscriber) Subscribe(ctx context.Context, sessionID string) (Feed, error) {
	return b.Bus.Subscribe(ctx, sessionID)
}

// handleWebSocket upgrades an authorized request and streams the session until
// either side goes away. Moves and resets from the client go through the
// session service; their results come back over the feed like everyone else's.
func (s *Server) handleWebSocket(c *gin.Context) {
	sessionID := c.Query("session")
	ctx, span := tracer.Start(c.Request.Context(), "server.handleWebSocket", trace.WithAttributes(
		attribute.String("session.id", sessionID),
	))
	defer span.End()

	if err := s.tokens.VerifyFor(c.Query("token"), sessionID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Unauthorized stream")
		response.ErrorResponse(c, http.StatusUnauthorized, err.Error())
		return
	}
	view, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Session lookup failed")
		response.ErrorResponse(c, controller.StatusFor(err), err.Error())
		return
	}

	// The stream outlives the request span.
	streamCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	defer cancel()

	feed, err := s.subscriber.Subscribe(streamCtx, sessionID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to subscribe")
		response.ErrorResponse(c, http.StatusInternalServerError, "failed to subscribe to session")
		return
	}
	defer feed.Close()

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.WarnContext(ctx, "Failed to upgrade connection", "session.id", sessionID, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to upgrade connection")
		return
	}
	defer conn.Close()
	slog.InfoContext(ctx, "Stream opened", "session.id", sessionID)

	out := make(chan *proto.ServerToClientMessage, 8)
	out <- &proto.ServerToClientMessage{Type: proto.TypeState, Session: view}

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.writePump(streamCtx, conn, feed, out)
		cancel()
		// Give the peer a moment to answer the close frame, then unblock the reader.
		_ = conn.SetReadDeadline(time.Now().Add(writeWait))
	}()

	s.readPump(streamCtx, conn, sessionID, out)
	cancel()
	<-done
	slog.InfoContext(ctx, "Stream closed", "session.id", sessionID)
}

// writePump is the only writer on conn. It forwards replies, feed events and heartbeats.
func (s *Server) writePump(ctx context.Context, conn *websocket.Conn, feed Feed, out <-chan *proto.ServerToClientMessage) {
	pingTicker := time.NewTicker(heartbeatInterval)
	defer pingTicker.Stop()

	write := func(msg *proto.ServerToClientMessage) error {
		data, err := json.Marshal(msg)
		if err != nil {
			return err
		}
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteMessage(websocket.TextMessage, data)
	}

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		case msg := <-out:
			if err := write(msg); err != nil {
				slog.WarnContext(ctx, "Failed to write to stream", "error", err)
				return
			}
		case evt, ok := <-feed.Events():
			if !ok {
				return
			}
			msg, closing := eventMessage(evt)
			if msg == nil {
				continue
			}
			if err := write(msg); err != nil {
				slog.WarnContext(ctx, "Failed to write to stream", "error", err)
				return
			}
			if closing {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session deleted"), time.Now().Add(writeWait))
				return
			}
		case <-pingTicker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				slog.WarnContext(ctx, "Failed to send ping, assuming disconnect", "error", err)
				return
			}
		}
	}
}

// eventMessage converts a feed event for the client. closing is true when the
// stream should end after the message.
func eventMessage(evt events.Event) (msg *proto.ServerToClientMessage, closing bool) {
	switch evt.Type {
	case events.TypeSessionUpdated:
		var payload events.SessionUpdatedPayload
		if err := json.Unmarshal(evt.Payload, &payload); err != nil {
			return nil, false
		}
		return &proto.ServerToClientMessage{Type: proto.TypeUpdate, Session: &payload.Session}, false
	case events.TypeSessionDeleted:
		return &proto.ServerToClientMessage{Type: proto.TypeDeleted}, true
	}
	return nil, false
}

// readPump handles client messages until the connection fails or ctx ends.
func (s *Server) readPump(ctx context.Context, conn *websocket.Conn, sessionID string, out chan<- *proto.ServerToClientMessage) {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.WarnContext(ctx, "Stream connection error", "session.id", sessionID, "error", err)
			}
			return
		}

		reply := s.handleMessage(ctx, sessionID, raw)
		if reply == nil {
			continue
		}
		select {
		case out <- reply:
		case <-ctx.Done():
			return
		}
	}
}

// handleMessage dispatches one client message. It returns a direct reply, or
// nil when the result is delivered through the feed.
func (s *Server) handleMessage(ctx context.Context, sessionID string, raw []byte) *proto.ServerToClientMessage {
	ctx, span := tracer.Start(ctx, "server.handleMessage", trace.WithAttributes(
		attribute.String("session.id", sessionID),
	))
	defer span.End()

	var message proto.ClientToServerMessage
	if err := json.Unmarshal(raw, &message); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Error unmarshalling message")
		return &proto.ServerToClientMessage{Type: proto.TypeError, Reason: "malformed message"}
	}
	if err := validator.GetValidator().Struct(message); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Invalid message format")
		return &proto.ServerToClientMessage{Type: proto.TypeError, Reason: err.Error()}
	}
	span.SetAttributes(attribute.String("message.type", message.Type))

	var err error
	switch message.Type {
	case proto.TypeMove:
		if row, col, ok := message.Coordinates(); ok {
			_, err = s.sessions.MoveAt(ctx, sessionID, row, col)
		} else {
			_, err = s.sessions.Move(ctx, sessionID, message.Position[0])
		}
	case proto.TypeReset:
		_, err = s.sessions.Reset(ctx, sessionID, &models.ResetRequest{Size: message.Size})
	case proto.TypeHint:
		var hint *models.HintResponse
		if hint, err = s.sessions.Hint(ctx, sessionID, &models.HintRequest{Difficulty: message.Difficulty}); err == nil {
			return &proto.ServerToClientMessage{Type: proto.TypeHint, Hint: hint}
		}
	}
	if err != nil {
		slog.WarnContext(ctx, "Stream request rejected", "session.id", sessionID, "message.type", message.Type, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Request rejected")
		return errorMessage(err)
	}
	return nil
}

func errorMessage(err error) *proto.ServerToClientMessage {
	reason := err.Error()
	if controller.StatusFor(err) == http.StatusInternalServerError && !errors.Is(err, context.Canceled) {
		reason = "internal server error"
	}
	return &proto.ServerToClientMessage{Type: proto.TypeError, Reason: reason}
}
