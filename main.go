package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/example/vision-infer/internal/auth"
	"github.com/example/vision-infer/internal/callback"
	"github.com/example/vision-infer/internal/config"
	"github.com/example/vision-infer/internal/handlers"
	"github.com/example/vision-infer/internal/imageloader"
	"github.com/example/vision-infer/internal/logging"
	"github.com/example/vision-infer/internal/model"
	"github.com/example/vision-infer/internal/repository"
	"github.com/example/vision-infer/internal/store"
	"github.com/example/vision-infer/internal/usecase"
)

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfg := config.FromEnv()

	logger, err := logging.NewLogger()
	if err != nil {
		panic(err)
	}
	defer logger.Sync() //nolint:errcheck

	predictor, err := model.NewONNXPredictor(model.ONNXConfig{
		ModelPath:    cfg.ModelPath,
		MetadataPath: cfg.MetadataPath,
		Device:       cfg.Device,
		Conf:         cfg.Conf,
		IoU:          cfg.IoU,
		ImageSize:    cfg.ImageSize,
	})
	if err != nil {
		logger.Fatal("failed to load model", zap.Error(err), zap.String("model_path", cfg.ModelPath))
	}
	defer predictor.Close()

	fetchClient := &http.Client{Timeout: cfg.HTTPTimeout}
	loader := imageloader.New(fetchClient, initS3(ctx, cfg, logger))

	postClient := &http.Client{Timeout: cfg.PostTimeout}
	dispatcher := callback.New(postClient, cfg.SharedSecret, cfg.CallbackMaxRetry, logger)

	var repo usecase.LogRepository
	if cfg.DatabaseDSN != "" {
		repo = initRepository(ctx, cfg.DatabaseDSN, logger)
	}

	svc := usecase.NewService(loader, predictor, dispatcher, repo, logger, cfg.MaxInflight)
	runner := usecase.NewRunner(logger)
	callbackStore := initStore(ctx, cfg, logger)

	r := gin.Default()
	authMiddleware := auth.Middleware(cfg.InboundToken, cfg.InboundJWTSecret)
	handlers.RegisterRoutes(r, svc, runner, callbackStore, cfg.SharedSecret, authMiddleware, logger)

	server := &http.Server{
		Addr:    cfg.Addr,
		Handler: r,
	}

	logger.Info("inference API listening",
		zap.String("addr", cfg.Addr),
		zap.String("device", cfg.Device),
		zap.Int64("max_inflight", cfg.MaxInflight))
	if err := serveHTTPServer(server, cfg.ShutdownTimeout, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}

	drainCtx, drainCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer drainCancel()
	if err := runner.Wait(drainCtx); err != nil {
		logger.Warn("background tasks did not drain before shutdown", zap.Error(err))
	}
}

func initS3(ctx context.Context, cfg config.Config, logger *zap.Logger) imageloader.ObjectFetcher {
	if !cfg.S3Enabled {
		return nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		logger.Warn("object storage unavailable, s3:// sources will fail", zap.Error(err))
		return nil
	}
	return s3.NewFromConfig(awsCfg)
}

func initRepository(ctx context.Context, dsn string, logger *zap.Logger) *repository.InferenceRepository {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("failed to access db handle", zap.Error(err))
	}
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.PingContext(ctx); err != nil {
		logger.Fatal("database ping failed", zap.Error(err))
	}

	repo := repository.NewInferenceRepository(db, logger)
	if err := repo.AutoMigrate(ctx); err != nil {
		logger.Fatal("auto migrate failed", zap.Error(err))
	}
	return repo
}

func initStore(ctx context.Context, cfg config.Config, logger *zap.Logger) store.Store {
	if cfg.RedisAddr == "" {
		return store.NewMemoryStore()
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Fatal("redis connection failed", zap.Error(err))
	}
	return store.NewRedisStore(client)
}

func serveHTTPServer(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger) error {
	return serveHTTPServerWithOptions(server, shutdownTimeout, logger, nil, nil)
}

func serveHTTPServerWithOptions(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger, listener net.Listener, signalCh <-chan os.Signal) error {
	errCh := make(chan error, 1)
	go func() {
		var err error
		if listener != nil {
			err = server.Serve(listener)
		} else {
			err = server.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	var (
		sigCh       <-chan os.Signal
		stopSignals func()
	)

	if signalCh != nil {
		sigCh = signalCh
		stopSignals = func() {}
	} else {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		sigCh = ch
		stopSignals = func() {
			signal.Stop(ch)
		}
	}
	defer stopSignals()

	select {
	case err := <-errCh:
		return err
	case sig, ok := <-sigCh:
		if !ok {
			return <-errCh
		}
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return <-errCh
	}
}
