package main

import (
	"context"
	"log"

	"workchat/config"
	"workchat/internal/audit"
	"workchat/internal/events"
	"workchat/internal/handler"
	"workchat/internal/kafka"
	"workchat/internal/middleware"
	"workchat/internal/presence"
	"workchat/internal/redis"
	"workchat/internal/repository"
	"workchat/internal/repository/memory"
	"workchat/internal/server"
	"workchat/internal/services"
	"workchat/internal/storage"
	"workchat/internal/transport/httpdto"
	"workchat/internal/websocket"
	"workchat/pkg/database"
	"workchat/pkg/logger"

	"go.uber.org/zap"
)

func main() {
	cfg := config.LoadConfig()

	l := logger.New(cfg.LogMode)
	logger.SetGlobalLogger(l)
	defer l.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	httpdto.RegisterValidators()

	var (
		store  repository.Store
		health func(context.Context) error
	)
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		l.Warnf("Using the in-memory store; data is lost on restart")
		store = memory.NewStore()
	default:
		db, err := database.Connect(cfg)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer database.Close()
		if err := repository.InitSchema(db); err != nil {
			log.Fatalf("Failed to apply schema: %v", err)
		}
		store = repository.NewGormStore(db)
		health = database.HealthCheck
	}

	hub := websocket.NewHub()
	go hub.Run(ctx)

	var (
		presenceStore presence.Store
		broadcaster   events.Broadcaster
		limiter       middleware.MessageLimiter
	)
	if cfg.RedisHost != "" {
		rdb := redis.NewClient(redis.Config{
			Host:     cfg.RedisHost,
			Port:     cfg.RedisPort,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()
		if err := redis.Ping(ctx, rdb); err != nil {
			l.Logger.Warn("redis unreachable at startup, presence treated as offline until it recovers", zap.Error(err))
		}

		presenceStore = redis.NewPresenceStore(rdb, cfg.PresenceTTL)
		broadcaster = events.NewPubSubBroadcaster(redis.NewPublisher(rdb))
		limiter = redis.NewRateLimiter(rdb, redis.RateLimitConfig{
			MessageLimit:  cfg.MessageLimit,
			MessageWindow: cfg.MessageWindow,
		})
		go websocket.NewRedisBridge(redis.NewSubscriber(rdb), hub, l).Run(ctx)
	} else {
		l.Warnf("REDIS_HOST is empty; running single node with in-process presence")
		presenceStore = presence.NewMemory(cfg.PresenceTTL)
		broadcaster = websocket.NewHubBroadcaster(hub)
	}

	var sink audit.Sink = audit.NewLogSink(l)
	if len(cfg.KafkaBrokers) > 0 {
		producer, err := kafka.NewAuditProducer(cfg.KafkaBrokers, cfg.KafkaAuditTopic, "workchat-"+cfg.NodeID, l)
		if err != nil {
			l.Logger.Warn("kafka unavailable, audit events go to the log", zap.Error(err))
		} else {
			defer producer.Close()
			sink = producer
		}
	}

	var presigner services.Presigner
	if cfg.S3Bucket != "" {
		s3Client, err := storage.NewClient(ctx, storage.S3Config{
			Region:     cfg.S3Region,
			Bucket:     cfg.S3Bucket,
			AccessKey:  cfg.S3AccessKey,
			SecretKey:  cfg.S3SecretKey,
			Endpoint:   cfg.S3Endpoint,
			PublicBase: cfg.S3PublicBase,
			PresignTTL: cfg.S3PresignTTL,
		})
		if err != nil {
			l.Logger.Warn("s3 client not configured, uploads disabled", zap.Error(err))
		} else {
			presigner = s3Client
		}
	}

	authService := services.NewAuthService(store.Users(), cfg.JWTSecret)
	reader := presence.NewSafe(presenceStore, l)
	dispatcher := services.NewDispatcher(services.NewReadTracker(store.Reads()), reader, broadcaster, l)

	conversationService := services.NewConversationService(store, sink, l)
	invitationService := services.NewInvitationService(store, sink)
	messageService := services.NewMessageService(store, dispatcher, reader, sink, l)
	uploadService := services.NewUploadService(presigner)

	srv := server.New(cfg, l)
	srv.SetupRoutes(&server.Handlers{
		Conversation: handler.NewConversationHandler(conversationService),
		Invitation:   handler.NewInvitationHandler(invitationService),
		Message:      handler.NewMessageHandler(messageService),
		Upload:       handler.NewUploadHandler(uploadService),
		WebSocket:    websocket.NewHandler(authService, websocket.NewAuthorizer(store), presenceStore, hub, l),
	}, server.Dependencies{
		Auth:    authService,
		Limiter: limiter,
		Health:  health,
	})

	if err := srv.Start(); err != nil {
		l.Errorf("Server stopped with error: %v", err)
	}
}
