package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fortify/cache"
	"fortify/config"
	"fortify/core/auth"
	"fortify/core/catalog"
	"fortify/core/dashboard"
	"fortify/core/routine"
	"fortify/core/sessionlog"
	"fortify/core/tempo"
	"fortify/db"
	"fortify/events"
	"fortify/logger"
	"fortify/repository"
	"fortify/storage"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

// Dependencies are the long-lived handles shared by every request. Only DB and Config are required.
type Dependencies struct {
	Config    *config.Config
	DB        *gorm.DB
	Redis     *redis.Client
	Publisher events.Publisher
	Exports   *storage.ExportStore
}

// NewAPIHandler 创建新的API处理器
func NewAPIHandler(deps Dependencies) *APIHandler {
	cfg := deps.Config

	users := repository.NewGormUserRepository(deps.DB)
	rudiments := repository.NewGormRudimentRepository(deps.DB)
	sessions := repository.NewGormSessionRepository(deps.DB)
	routines := repository.NewGormRoutineRepository(deps.DB)

	statsCache := cache.NewStatsCache(deps.Redis, cfg.StatsCacheTTL)
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL)
	engine := tempo.NewEngine(rudiments, sessions, cfg.TempoMaxSuggestion)

	var archive sessionlog.ArchiveStore
	if deps.Exports != nil {
		archive = deps.Exports
	}

	var dashCache dashboard.StatsCache
	var invalidator sessionlog.StatsInvalidator
	if statsCache.Enabled() {
		dashCache = statsCache
		invalidator = statsCache
	}

	return &APIHandler{
		auth:      auth.NewService(users, tokens),
		tokens:    tokens,
		catalog:   catalog.NewService(rudiments),
		sessions:  sessionlog.NewService(sessions, rudiments, invalidator, deps.Publisher, archive),
		tempo:     engine,
		routines:  routine.NewService(routines, rudiments, engine),
		dashboard: dashboard.NewService(sessions, dashCache),
		cfg:       cfg,
		archiving: archive != nil,
	}
}

// NewRouter registers every route on a gorilla/mux router and wraps it in the shared middleware.
func NewRouter(h *APIHandler) http.Handler {
	router := mux.NewRouter()
	router.Use(metricsMiddleware)
	router.NotFoundHandler = http.HandlerFunc(h.notFoundHandler)

	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()

	// 用户认证相关的API端点
	api.HandleFunc("/auth/signup", h.RateLimit(h.cfg.AuthRateLimit, h.cfg.AuthRateBurst, h.SignupHandler)).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", h.RateLimit(h.cfg.AuthRateLimit, h.cfg.AuthRateBurst, h.LoginHandler)).Methods(http.MethodPost)
	api.HandleFunc("/auth/me", h.AuthMiddleware(h.GetUserProfileHandler)).Methods(http.MethodGet)

	api.HandleFunc("/rudiments", h.AuthMiddleware(h.ListRudimentsHandler)).Methods(http.MethodGet)
	api.HandleFunc("/rudiments", h.AuthMiddleware(h.CreateRudimentHandler)).Methods(http.MethodPost)
	api.HandleFunc("/rudiments/{id:[0-9]+}", h.AuthMiddleware(h.DeleteRudimentHandler)).Methods(http.MethodDelete)
	api.HandleFunc("/rudiments/{id:[0-9]+}/suggested-tempo", h.AuthMiddleware(h.SuggestedTempoHandler)).Methods(http.MethodGet)

	api.HandleFunc("/sessions", h.AuthMiddleware(h.LogSessionHandler)).Methods(http.MethodPost)
	api.HandleFunc("/sessions", h.AuthMiddleware(h.ListSessionsHandler)).Methods(http.MethodGet)
	api.HandleFunc("/sessions/export", h.AuthMiddleware(h.ExportSessionsHandler)).Methods(http.MethodGet)
	if h.archiving {
		api.HandleFunc("/sessions/export/archive", h.AuthMiddleware(h.ArchiveExportHandler)).Methods(http.MethodPost)
	}
	api.HandleFunc("/sessions/history", h.AuthMiddleware(h.HistoryHandler)).Methods(http.MethodGet)

	api.HandleFunc("/dashboard/stats", h.AuthMiddleware(h.DashboardStatsHandler)).Methods(http.MethodGet)

	api.HandleFunc("/routines", h.AuthMiddleware(h.CreateRoutineHandler)).Methods(http.MethodPost)
	api.HandleFunc("/routines", h.AuthMiddleware(h.ListRoutinesHandler)).Methods(http.MethodGet)
	api.HandleFunc("/routines/{id:[0-9]+}", h.AuthMiddleware(h.GetRoutineHandler)).Methods(http.MethodGet)
	api.HandleFunc("/routines/{id:[0-9]+}", h.AuthMiddleware(h.UpdateRoutineHandler)).Methods(http.MethodPut)
	api.HandleFunc("/routines/{id:[0-9]+}", h.AuthMiddleware(h.DeleteRoutineHandler)).Methods(http.MethodDelete)
	api.HandleFunc("/routines/{id:[0-9]+}/resolve", h.AuthMiddleware(h.ResolveRoutineHandler)).Methods(http.MethodGet)

	return requestLogMiddleware(corsMiddleware(router))
}

// Open connects every backing service named in cfg. The returned cleanup releases them in reverse order.
func Open(ctx context.Context, cfg *config.Config) (Dependencies, func(), error) {
	deps := Dependencies{Config: cfg, Publisher: events.Nop{}}
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	gdb, err := db.Open(cfg)
	if err != nil {
		return deps, cleanup, err
	}
	deps.DB = gdb
	closers = append(closers, func() { _ = db.Close(gdb) })

	if err := db.Migrate(gdb); err != nil {
		return deps, cleanup, err
	}
	created, err := catalog.NewService(repository.NewGormRudimentRepository(gdb)).SeedStandard(ctx)
	if err != nil {
		return deps, cleanup, fmt.Errorf("failed to seed standard rudiments: %w", err)
	}
	logger.Info("Standard rudiments ready", logger.Int("created", created))

	rdb, err := db.ConnectRedis(cfg)
	if err != nil {
		// The dashboard works without its cache.
		logger.Warn("Redis unavailable, dashboard cache disabled", logger.ErrorField(err))
	} else if rdb != nil {
		deps.Redis = rdb
		closers = append(closers, func() { _ = rdb.Close() })
		logger.Info("Successfully connected to Redis")
	}

	if len(cfg.KafkaBrokers) > 0 {
		publisher := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		deps.Publisher = publisher
		closers = append(closers, func() { _ = publisher.Close() })
		logger.Info("Kafka publisher ready", logger.String("topic", cfg.KafkaTopic))
	}

	exports, err := storage.NewExportStore(cfg)
	if err != nil {
		return deps, cleanup, err
	}
	if exports != nil {
		bucketCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := exports.EnsureBucket(bucketCtx)
		cancel()
		if err != nil {
			logger.Warn("MinIO unavailable, export archive disabled", logger.ErrorField(err))
		} else {
			deps.Exports = exports
			logger.Info("Export archive ready", logger.String("bucket", exports.Bucket()))
		}
	}

	return deps, cleanup, nil
}

// Start initializes and starts the HTTP server, then blocks until SIGINT/SIGTERM.
func Start(cfg *config.Config) error {
	ctx := context.Background()
	deps, cleanup, err := Open(ctx, cfg)
	defer cleanup()
	if err != nil {
		return err
	}

	// 设置服务器超时
	server := &http.Server{
		Addr:         cfg.HTTPAddress,
		Handler:      NewRouter(NewAPIHandler(deps)),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// 创建一个通道来接收操作系统信号
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Server starting", logger.String("address", cfg.HTTPAddress))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-stop:
	}
	logger.Info("Shutting down server...")

	// 创建一个5秒超时的上下文
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// 优雅关闭服务器
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("Server stopped")
	return nil
}
