// Command api runs the collaborative board backend: the board management
// REST API and the realtime WebSocket endpoint in one process.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"boardsync-backend/application/ports"
	"boardsync-backend/infrastructure/messaging/eventbridge"
	ddb "boardsync-backend/infrastructure/persistence/dynamodb"
	"boardsync-backend/infrastructure/persistence/memory"
	"boardsync-backend/infrastructure/persistence/resilience"
	"boardsync-backend/interfaces/http/rest"
	ws "boardsync-backend/interfaces/websocket"
	"boardsync-backend/internal/config"
	"boardsync-backend/pkg/auth"
	"boardsync-backend/pkg/observability"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger, err := buildLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Server exited with error", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx := context.Background()

	store, err := buildStore(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("build store: %w", err)
	}
	publisher, err := buildPublisher(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("build publisher: %w", err)
	}

	holder, watcher, err := buildDynamicConfig(cfg, logger)
	if err != nil {
		return fmt.Errorf("dynamic config: %w", err)
	}
	if watcher != nil {
		go watcher.Run()
		defer watcher.Stop()
	}

	secret := cfg.JWTSecret
	if secret == "" {
		logger.Warn("JWT_SECRET not set, using development secret")
		secret = "dev-secret-do-not-use-in-production"
	}
	jwtService := auth.NewJWTService(secret, cfg.JWTIssuer, cfg.TokenTTL)

	metrics := observability.NewCollector("boardsync")

	registry := ws.NewRegistry(jwtService, logger)
	rooms := ws.NewRoomManager(metrics, logger)
	router := ws.NewRouter(registry, rooms, store, publisher, holder, metrics, logger)
	wsServer := ws.NewServer(router, registry, holder, metrics, nil, logger)

	restRouter := rest.NewRouter(cfg, store, jwtService, wsServer.HandleWebSocket, metrics.Handler(), logger)

	httpServer := &http.Server{
		Addr:              cfg.ServerAddress,
		Handler:           restRouter.Setup(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Starting server",
			zap.String("address", cfg.ServerAddress),
			zap.String("environment", cfg.Environment),
			zap.String("persistence", cfg.PersistenceDriver),
		)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return err
	case sig := <-stop:
		logger.Info("Shutting down", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP server shutdown error", zap.Error(err))
	}
	wsServer.Shutdown()

	logger.Info("Server stopped")
	return nil
}

func buildLogger(cfg *config.Config) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.IsDevelopment() {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err == nil {
		zapCfg.Level = zap.NewAtomicLevelAt(level)
	}
	return zapCfg.Build()
}

func buildStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (ports.Store, error) {
	switch cfg.PersistenceDriver {
	case "dynamodb":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		store := ddb.NewStore(awsdynamodb.NewFromConfig(awsCfg), cfg.DynamoDBTable, logger)
		return resilience.NewBreakerStore(store, logger), nil
	default:
		return memory.NewStore(), nil
	}
}

func buildPublisher(ctx context.Context, cfg *config.Config, logger *zap.Logger) (ports.EventPublisher, error) {
	if !cfg.PublishEvents {
		return eventbridge.NoopPublisher{}, nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return eventbridge.NewPublisher(awseventbridge.NewFromConfig(awsCfg), cfg.EventBusName, logger), nil
}

func buildDynamicConfig(cfg *config.Config, logger *zap.Logger) (*config.DynamicHolder, *config.Watcher, error) {
	if cfg.DynamicConfigPath == "" {
		return config.NewDynamicHolder(nil), nil, nil
	}

	dynamicCfg, err := config.LoadDynamicConfig(cfg.DynamicConfigPath)
	if err != nil {
		return nil, nil, err
	}
	holder := config.NewDynamicHolder(dynamicCfg)

	watcher, err := config.NewWatcher(cfg.DynamicConfigPath, holder, logger)
	if err != nil {
		return nil, nil, err
	}
	return holder, watcher, nil
}
