package server

import (
	"context"
	"net/http"

	"ctchen222/nxn-tic-tac-toe/internal/api/auth"
	"ctchen222/nxn-tic-tac-toe/internal/api/controller"
	"ctchen222/nxn-tic-tac-toe/internal/api/service"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("server")

// HealthChecker reports whether a backing store is reachable.
type HealthChecker func(ctx context.Context) error

type Server struct {
	sessions   service.SessionService
	controller *controller.SessionController
	tokens     *auth.Tokens
	subscriber Subscriber
	health     map[string]HealthChecker
	upgrader   websocket.Upgrader
	engine     *gin.Engine
}

func NewServer(sessions service.SessionService, tokens *auth.Tokens, subscriber Subscriber, health map[string]HealthChecker) *Server {
	s := &Server{
		sessions:   sessions,
		controller: controller.NewSessionController(sessions),
		tokens:     tokens,
		subscriber: subscriber,
		health:     health,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
	s.engine = s.routes()
	return s
}

// Engine returns the HTTP handler serving the API and the session stream.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", s.handleHealth)
	r.GET("/ws", s.handleWebSocket)

	api := r.Group("/api")
	api.POST("/sessions", s.controller.Create)
	api.GET("/stats", s.controller.Stats)

	session := api.Group("/sessions/:id", s.tokens.RequireSession())
	session.GET("", s.controller.Get)
	session.DELETE("", s.controller.Delete)
	session.POST("/moves", s.controller.Move)
	session.POST("/reset", s.controller.Reset)
	session.POST("/hint", s.controller.Hint)

	return r
}

func (s *Server) handleHealth(c *gin.Context) {
	status := http.StatusOK
	checks := make(map[string]string, len(s.health))
	for name, check := range s.health {
		if err := check(c.Request.Context()); err != nil {
			status = http.StatusServiceUnavailable
			checks[name] = err.Error()
			continue
		}
		checks[name] = "ok"
	}
	c.JSON(status, gin.H{"status": http.StatusText(status), "checks": checks})
}
