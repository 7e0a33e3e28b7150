package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"smrms-be/config"
	"smrms-be/controllers"
	"smrms-be/metrics"
	"smrms-be/queue"
	"smrms-be/repository"
	"smrms-be/routes"
	"smrms-be/services"
	"smrms-be/storage"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	envLoaded := config.LoadDotEnv()
	cfg := config.Load()

	logger, err := config.NewLogger(cfg.LogLevel, cfg.LogFormat, "smrms-be")
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	if !envLoaded {
		logger.Info("No .env file found")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore := openStore(ctx, cfg, logger)
	defer closeStore()

	m := metrics.New()
	backend, err := openBackend(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to configure storage", zap.String("driver", cfg.StorageDriver), zap.Error(err))
	}
	uploads := storage.NewGuard(backend, cfg.StorageTimeout, logger, m)

	var events queue.Publisher = queue.Nop{}
	if cfg.KafkaBroker != "" {
		producer := queue.NewProducer(cfg.KafkaBroker, cfg.KafkaTopic, logger)
		defer func() {
			if err := producer.Close(); err != nil {
				logger.Warn("kafka producer close failed", zap.Error(err))
			}
		}()
		events = producer
	}

	var rdb *redis.Client
	statsLoc, _ := cfg.StatsLocation() // checked by Validate
	statsOpts := []services.StatsOption{services.WithLocation(statsLoc)}
	if cfg.RedisAddr != "" {
		rdb, err = config.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			// The limiter and stats cache are optional; run without them.
			logger.Warn("redis unavailable, running without rate limit and stats cache", zap.Error(err))
			rdb = nil
		} else {
			defer rdb.Close()
			statsOpts = append(statsOpts, services.WithStatsCache(services.NewRedisStatsCache(rdb, logger), cfg.StatsCacheTTL))
		}
	}

	identity := services.NewIdentityService(store, uploads, storage.NewFetcher(cfg.StorageTimeout), services.IdentityConfig{
		DefaultStaffPassword: cfg.DefaultStaffPassword,
		DefaultDepartment:    cfg.DefaultStudentDepartment,
	}, logger)
	issues := services.NewIssueService(store, uploads, events, m, logger)
	actors := services.NewActorService(store, events, m, logger)
	buildings := services.NewBuildingService(store, uploads, logger)
	stats := services.NewStatsService(store, logger, statsOpts...)

	router := routes.NewRouter(routes.Deps{
		Auth: controllers.NewAuthController(identity, controllers.AuthConfig{
			Secret:       cfg.JWTSecret,
			TokenTTL:     cfg.TokenTTL,
			Production:   cfg.IsProduction(),
			CookieDomain: cfg.CookieDomain,
		}, logger),
		Issues:           controllers.NewIssueController(issues, logger),
		Buildings:        controllers.NewBuildingController(buildings, logger),
		Users:            controllers.NewUserController(identity, actors, logger),
		Stats:            controllers.NewStatsController(stats, logger),
		JWTSecret:        cfg.JWTSecret,
		ServiceToken:     cfg.ServiceAuthToken,
		CORSOrigins:      cfg.CORSOrigins,
		Redis:            rdb,
		IssueLimitPrefix: cfg.IssueLimitPrefix,
		IssueDailyLimit:  cfg.IssueDailyLimit,
		Metrics:          m,
		Log:              logger,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}
	go func() {
		logger.Info("server listening", zap.String("addr", cfg.HTTPAddr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

// openStore connects to MongoDB when a URI is configured and falls back to
// the in-memory store otherwise. Validate already refused that in production.
func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (repository.Store, func()) {
	if cfg.MongoURI == "" {
		logger.Warn("MONGODB_URI not set, using in-memory store")
		return repository.NewMemoryStore(), func() {}
	}

	client, db, err := config.ConnectDB(ctx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		logger.Fatal("Failed to connect to MongoDB", zap.Error(err))
	}
	logger.Info("MongoDB connection established successfully", zap.String("database", cfg.MongoDatabase))

	store := repository.NewMongoStore(client, db, logger)
	if err := store.EnsureIndexes(ctx); err != nil {
		logger.Fatal("failed to ensure indexes", zap.Error(err))
	}
	return store, func() {
		dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Disconnect(dctx); err != nil {
			logger.Warn("mongo disconnect failed", zap.Error(err))
		}
	}
}

func openBackend(ctx context.Context, cfg config.Config) (storage.Backend, error) {
	switch cfg.StorageDriver {
	case "s3":
		return storage.NewS3Backend(ctx, storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			PathStyle:       cfg.S3PathStyle,
			PublicBaseURL:   cfg.S3PublicBaseURL,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
		})
	case "supabase":
		return storage.NewSupabaseBackend(cfg.SupabaseURL, cfg.SupabaseBucket, cfg.SupabaseServiceKey, cfg.StorageTimeout), nil
	default:
		return storage.NewMemoryBackend(), nil
	}
}
