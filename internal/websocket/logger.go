package websocket

import (
	"github.com/google/uuid"
	"go.uber.org/zap"

	"workchat/pkg/logger"
)

// connLogger provides structured logging for socket lifecycle events
type connLogger struct {
	logger *zap.Logger
}

func newConnLogger(l *logger.Logger) *connLogger {
	return &connLogger{
		logger: logger.OrNop(l).Logger.With(zap.String("component", "websocket")),
	}
}

func (l *connLogger) fields(event string, userID uuid.UUID, clientID string, extra []zap.Field) []zap.Field {
	return append([]zap.Field{
		zap.String("event", event),
		zap.String("user_id", userID.String()),
		zap.String("client_id", clientID),
	}, extra...)
}

func (l *connLogger) Info(event string, userID uuid.UUID, clientID string, fields ...zap.Field) {
	l.logger.Info("websocket_event", l.fields(event, userID, clientID, fields)...)
}

func (l *connLogger) Warn(event string, userID uuid.UUID, clientID string, err error, fields ...zap.Field) {
	l.logger.Warn("websocket_warning", l.fields(event, userID, clientID, append(fields, zap.Error(err)))...)
}
