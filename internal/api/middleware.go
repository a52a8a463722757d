package api

import (
	"encoding/base64"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/matheus3301/courier/internal/store"
	"go.uber.org/zap"
)

const userContextKey = "courier.user"

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}

// requireServing rejects traffic while the daemon is booting or stopping.
func (s *server) requireServing(c *gin.Context) {
	if !s.Machine.Serving() {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
			"success": false,
			"message": "Service " + strings.ToLower(string(s.Machine.Current())),
		})
		return
	}
	c.Next()
}

// requireUser resolves the bearer token (header or ?token=) to a user.
func (s *server) requireUser(c *gin.Context) {
	u, err := s.Auth.Authenticate(c.Request.Context(), bearerToken(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Set(userContextKey, u)
	c.Next()
}

func currentUser(c *gin.Context) *store.User {
	return c.MustGet(userContextKey).(*store.User)
}

func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if scheme, tok, ok := strings.Cut(h, " "); ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(tok)
	}
	if tok := c.GetHeader("token"); tok != "" {
		return tok
	}
	return c.Query("token")
}

func clientIPKey(c *gin.Context) string {
	return "ip:" + c.ClientIP()
}

func userKey(c *gin.Context) string {
	return "user:" + currentUser(c).ID
}

func (s *server) rateLimit(key func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.Limiter != nil && !s.Limiter.Allow(key(c)) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"success": false, "message": "Too many requests"})
			return
		}
		c.Next()
	}
}

// bodySlack covers the JSON or multipart framing around an image.
const bodySlack = 64 << 10

// limitBody caps request bodies at what a MaxUpload image needs once base64
// encoded, so oversized payloads fail while being read.
func (s *server) limitBody(c *gin.Context) {
	if s.MaxUpload > 0 {
		limit := int64(base64.StdEncoding.EncodedLen(int(s.MaxUpload))) + bodySlack
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
	}
	c.Next()
}
