// Package api serves the HTTP and websocket surface of courierd.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/matheus3301/courier/internal/auth"
	"github.com/matheus3301/courier/internal/chat"
	"github.com/matheus3301/courier/internal/delivery"
	"github.com/matheus3301/courier/internal/presence"
	"github.com/matheus3301/courier/internal/status"
	"github.com/matheus3301/courier/internal/ws"
	"go.uber.org/zap"
)

// Deps are the collaborators the router needs.
type Deps struct {
	Auth       *auth.Service
	Chat       *chat.Service
	Registry   *presence.Registry
	Dispatcher *delivery.Dispatcher
	Machine    *status.Machine
	Limiter    *Limiter
	Metrics    http.Handler // optional
	MediaDir   string       // served at /media when set
	Heartbeat  ws.Heartbeat
	MaxUpload  int64
	Logger     *zap.Logger
}

type server struct {
	Deps
	upgrader websocket.Upgrader
}

// NewRouter builds the gin engine.
func NewRouter(d Deps) *gin.Engine {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	s := &server{
		Deps: d,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(d.Logger))

	r.GET("/healthz", s.health)
	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(d.Metrics))
	}
	if d.MediaDir != "" {
		r.Static("/media", d.MediaDir)
	}

	apiGroup := r.Group("/api", s.requireServing)

	authGroup := apiGroup.Group("/auth")
	authGroup.POST("/signup", s.rateLimit(clientIPKey), s.signup)
	authGroup.POST("/login", s.rateLimit(clientIPKey), s.login)
	authGroup.GET("/check", s.requireUser, s.check)
	authGroup.PUT("/update-profile", s.requireUser, s.rateLimit(userKey), s.limitBody, s.updateProfile)

	msgGroup := apiGroup.Group("/messages", s.requireUser, s.rateLimit(userKey), s.limitBody)
	msgGroup.GET("/users", s.listPeers)
	msgGroup.GET("/:id", s.conversation)
	msgGroup.POST("/send/:id", s.sendMessage)
	msgGroup.PUT("/mark/:id", s.markSeen)

	r.GET("/ws", s.requireServing, s.connect)
	return r
}

func (s *server) health(c *gin.Context) {
	state := s.Machine.Current()
	code := http.StatusOK
	if !s.Machine.Serving() {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{"status": string(state)})
}
