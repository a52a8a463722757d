package api

import (
	"github.com/gin-gonic/gin"
	"github.com/matheus3301/courier/internal/ws"
	"go.uber.org/zap"
)

// connect upgrades an authenticated request and keeps the user present
// until the socket goes away.
func (s *server) connect(c *gin.Context) {
	u, err := s.Auth.Authenticate(c.Request.Context(), bearerToken(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.Logger.Debug("websocket upgrade failed", zap.String("user_id", u.ID), zap.Error(err))
		return
	}

	client := ws.NewClient(u.ID, conn, s.Heartbeat, s.Logger)
	s.Registry.Register(u.ID, client)
	s.Dispatcher.BroadcastOnline(s.Registry)

	client.Run()

	if s.Registry.Unregister(u.ID, client) {
		s.Dispatcher.BroadcastOnline(s.Registry)
	}
}
