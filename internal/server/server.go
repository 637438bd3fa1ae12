package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"workchat/config"
	"workchat/internal/handler"
	"workchat/internal/middleware"
	"workchat/internal/transport/httpdto"
	"workchat/internal/websocket"
	"workchat/pkg/logger"

	"github.com/gin-gonic/gin"
)

type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	config     *config.Config
	logger     *logger.Logger
}

var (
	ReleaseMode = "release"
	DebugMode   = "debug"
	TestMode    = "test"
)

type Handlers struct {
	Conversation *handler.ConversationHandler
	Invitation   *handler.InvitationHandler
	Message      *handler.MessageHandler
	Upload       *handler.UploadHandler
	WebSocket    *websocket.Handler
}

// Dependencies are the cross-cutting pieces the router needs besides handlers.
type Dependencies struct {
	Auth    middleware.Authenticator
	Limiter middleware.MessageLimiter
	// Health reports whether backing stores are reachable.
	Health func(ctx context.Context) error
}

func New(cfg *config.Config, l *logger.Logger) *Server {
	if cfg.AppMode == ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	} else if cfg.AppMode == TestMode {
		gin.SetMode(gin.TestMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%s", cfg.AppPort),
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
		},
		engine: engine,
		config: cfg,
		logger: logger.OrNop(l),
	}
}

// Engine exposes the router, mainly for tests.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) SetupRoutes(handlers *Handlers, deps Dependencies) {
	s.engine.Use(middleware.RequestIDMiddleware())
	s.engine.Use(middleware.CORSMiddleware(s.config.CORSAllowedOrigins))
	s.engine.Use(middleware.LoggingMiddleware(s.logger))
	s.engine.Use(middleware.ErrorHandler(s.logger))

	s.engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"message": "pong"}))
	})

	s.engine.GET("/health", func(c *gin.Context) {
		if deps.Health != nil {
			if err := deps.Health(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, httpdto.NewErrorResponse(err.Error(), "UNHEALTHY"))
				return
			}
		}
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"status": "healthy"}))
	})

	// The socket authenticates through its token query parameter.
	s.engine.GET("/ws/chat/:conversationId", handlers.WebSocket.Connect)

	v1 := s.engine.Group("/v1", middleware.AuthMiddleware(deps.Auth))

	conversations := v1.Group("/conversations")
	{
		conversations.GET("", handlers.Conversation.List)
		conversations.POST("", handlers.Conversation.Create)
		conversations.GET("/:id", handlers.Conversation.Get)
		conversations.PATCH("/:id", handlers.Conversation.Update)
		conversations.POST("/:id/leave", handlers.Conversation.Leave)
		conversations.POST("/:id/participants", handlers.Conversation.AddParticipant)
		conversations.DELETE("/:id/participants/:userId", handlers.Conversation.RemoveParticipant)

		conversations.POST("/:id/invitations", handlers.Invitation.Invite)
		conversations.PATCH("/:id/invitation", handlers.Invitation.Respond)

		conversations.GET("/:id/messages", handlers.Message.List)
		conversations.POST("/:id/messages", middleware.MessageRateLimitMiddleware(deps.Limiter, s.logger), handlers.Message.Create)
		conversations.PATCH("/:id/messages/:messageId", handlers.Message.Edit)
		conversations.DELETE("/:id/messages/:messageId", handlers.Message.Delete)
		conversations.GET("/:id/unread", handlers.Message.UnreadCount)
	}

	v1.POST("/uploads", handlers.Upload.Presign)
}

func (s *Server) Start() error {
	go func() {
		s.logger.Infof("Starting the server on port %s...", s.config.AppPort)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Errorf("Error in starting the server: %s", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	s.logger.Infof("Server is running on :%s", s.config.AppPort)

	<-quit

	s.logger.Infof("Quitting signal received.. Shutting down after 5 seconds")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Infof("Error in the graceful shutdown of the server: %s", err)
		return err
	}

	s.logger.Infof("Server stopped gracefully")
	return nil
}
