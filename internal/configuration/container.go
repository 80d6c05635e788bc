package configuration

import (
	"Promo/internal/db"
	"Promo/internal/handler"
	"Promo/internal/hub"
	"Promo/internal/model"
	"Promo/internal/repo"
	"Promo/internal/service"
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type Container struct {
	MessageHandler handler.MessageHandler
	MonitorHandler handler.MonitorHandler
	SeenHandler    handler.SeenHandler
	Hub            *hub.Hub
	Config         Config
	Logger         *zap.Logger

	// private - for cleanup
	mongoClient *mongo.Database
}

func BuildContainer(ctx context.Context, config *Config) (*Container, error) {
	logger, err := NewLogger(config.Log)
	if err != nil {
		return nil, err
	}

	logger.Info("config loaded",
		zap.String("database", config.ChatDatabase.Database),
		zap.Int("app_port", config.Server.AppPort),
		zap.Int("socket_port", config.Server.SocketPort),
	)

	con, err := db.OpenConnection(ctx, config.ChatDatabase.Uri, config.ChatDatabase.Database)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}

	messages := db.NewRepository[model.Message](con, config.ChatDatabase.MessagesCollection)
	users := db.NewRepository[model.User](con, config.ChatDatabase.UsersCollection)

	messageRepo := repo.NewMessageRepository(messages, logger)
	userRepo := repo.NewUserRepository(users, logger)
	messageService := service.NewMessageService(messageRepo, userRepo, logger)

	h := hub.NewHub(config.HubOptions(), messageRepo, userRepo, logger.Named("hub"))

	return &Container{
		MessageHandler: handler.NewMessageHandler(messageService),
		MonitorHandler: handler.NewMonitorHandler(h),
		SeenHandler:    handler.NewSeenHandler(h),
		Hub:            h,
		Config:         *config,
		Logger:         logger,
		mongoClient:    con,
	}, nil
}

// NewLogger builds a production logger unless development is set.
func NewLogger(cfg LogConfig) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("log level %q: %w", cfg.Level, err)
	}

	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = level
	return zc.Build()
}

// Close gracefully shuts down all connections
func (c *Container) Close() error {
	// Stop the hub first (closes all WebSocket connections)
	if c.Hub != nil {
		c.Hub.Stop()
	}

	if c.Logger != nil {
		_ = c.Logger.Sync()
	}

	if c.mongoClient != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.mongoClient.Client().Disconnect(ctx); err != nil {
			return fmt.Errorf("failed to close MongoDB connection: %w", err)
		}
	}

	return nil
}
