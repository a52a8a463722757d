package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/matheus3301/courier/internal/apperr"
	"go.uber.org/zap"
)

func httpStatus(kind apperr.Kind) int {
	switch kind {
	case apperr.Validation:
		return http.StatusBadRequest
	case apperr.NotFound:
		return http.StatusNotFound
	case apperr.Forbidden:
		return http.StatusForbidden
	case apperr.Upload:
		return http.StatusBadGateway
	case apperr.Conflict:
		return http.StatusConflict
	case apperr.Unauthorized:
		return http.StatusUnauthorized
	case apperr.TooLarge:
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err as {success:false, message}. Unclassified errors are
// logged and reported as a generic server error.
func (s *server) fail(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.Internal {
		s.Logger.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
	}
	c.AbortWithStatusJSON(httpStatus(kind), gin.H{"success": false, "message": apperr.Message(err)})
}

// badRequest classifies a body that failed to bind. Bodies cut off by
// limitBody are reported as too large instead of malformed.
func badRequest(err error, msg string) error {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return apperr.Wrap(apperr.TooLarge, "Request too large", err)
	}
	return apperr.Wrap(apperr.Validation, msg, err)
}
