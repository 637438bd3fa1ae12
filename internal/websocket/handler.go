package websocket

import (
	"context"
	"net/http"
	"time"

	"workchat/internal/domain/user"
	"workchat/internal/events"
	"workchat/internal/transport/httpdto"
	"workchat/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// PrincipalResolver turns a connect token into a principal; bad tokens
// resolve to user.Anonymous.
type PrincipalResolver interface {
	PrincipalFromToken(ctx context.Context, token string) user.Principal
}

// ConnectionTracker records socket presence.
type ConnectionTracker interface {
	TrackConnection(ctx context.Context, userID, conversationID uuid.UUID, clientID string) error
	RemoveConnection(ctx context.Context, userID uuid.UUID, clientID string) (int64, error)
	Refresh(ctx context.Context, userID, conversationID uuid.UUID, clientID string) error
}

type Handler struct {
	tokens   PrincipalResolver
	authz    *Authorizer
	presence ConnectionTracker
	hub      *Hub
	log      *connLogger
	upgrader websocket.Upgrader
}

func NewHandler(tokens PrincipalResolver, authz *Authorizer, presence ConnectionTracker, hub *Hub, l *logger.Logger) *Handler {
	return &Handler{
		tokens:   tokens,
		authz:    authz,
		presence: presence,
		hub:      hub,
		log:      newConnLogger(l),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Connect upgrades GET /ws/chat/:conversationId?token=...
//
// Every well-formed request is upgraded. Only an authenticated active
// participant joins the conversation group and is recorded as present;
// any other socket stays connected but receives nothing.
func (h *Handler) Connect(c *gin.Context) {
	conversationID, err := uuid.Parse(c.Param("conversationId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid conversation id", "VALIDATION_ERROR"))
		return
	}

	principal := h.tokens.PrincipalFromToken(c.Request.Context(), c.Query("token"))

	joined := false
	if !principal.IsAnonymous() {
		joined, err = h.authz.CanJoin(c.Request.Context(), principal, conversationID)
		if err != nil {
			h.log.Warn("authorize", principal.UserID, "", err, zap.String("conversation_id", conversationID.String()))
			joined = false
		}
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	client := NewClient(conn, principal.UserID)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h.hub.Register(client)
	if joined {
		h.hub.Subscribe(client, events.ConversationChannel(conversationID))
		if err := h.presence.TrackConnection(ctx, principal.UserID, conversationID, client.ID); err != nil {
			h.log.Warn("presence_track", principal.UserID, client.ID, err)
		}
	}
	h.log.Info("connected", principal.UserID, client.ID,
		zap.String("conversation_id", conversationID.String()),
		zap.Bool("joined", joined))

	go client.WriteLoop(ctx)

	heartbeat := func() {
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		if !joined {
			return
		}
		if err := h.presence.Refresh(ctx, principal.UserID, conversationID, client.ID); err != nil {
			h.log.Warn("presence_refresh", principal.UserID, client.ID, err)
		}
	}

	conn.SetPongHandler(func(string) error {
		heartbeat()
		return nil
	})
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))

	// inbound frames carry no commands; any frame counts as a heartbeat
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
		heartbeat()
	}

	h.hub.Unregister(client)
	if joined {
		cleanupCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		if _, err := h.presence.RemoveConnection(cleanupCtx, principal.UserID, client.ID); err != nil {
			h.log.Warn("presence_remove", principal.UserID, client.ID, err)
		}
		done()
	}
	h.log.Info("disconnected", principal.UserID, client.ID)
}
