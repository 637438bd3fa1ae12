package middleware

import (
	"net/http"

	"workchat/internal/transport/httpdto"
	apperrors "workchat/pkg/errors"
	"workchat/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorHandler turns the last error attached with c.Error into the JSON
// error envelope. Handlers that already wrote a response are left alone.
func ErrorHandler(l *logger.Logger) gin.HandlerFunc {
	l = logger.OrNop(l)
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		status := apperrors.HTTPStatus(err)
		log := l.WithContext(c.Request.Context())
		if status >= http.StatusInternalServerError {
			log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		} else {
			log.Debug("request rejected", zap.String("path", c.FullPath()), zap.Int("status", status), zap.Error(err))
		}

		if c.Writer.Written() {
			return
		}
		message := err.Error()
		if status >= http.StatusInternalServerError {
			message = "internal error"
		}
		c.JSON(status, httpdto.NewErrorResponse(message, apperrors.Code(err)))
	}
}
