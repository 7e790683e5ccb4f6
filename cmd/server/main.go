package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sportshub/internal/core/domain"
	"sportshub/internal/core/ports"
	"sportshub/internal/core/realtime"
	"sportshub/internal/core/services"
	httphandlers "sportshub/internal/handlers/http"
	"sportshub/internal/infrastructure/adapters/footballdata"
	"sportshub/internal/infrastructure/distributed"
	"sportshub/internal/infrastructure/jobs"
	"sportshub/internal/infrastructure/middleware"
	"sportshub/internal/infrastructure/monitoring"
	repositories "sportshub/internal/infrastructure/repositories"
	wsignal "sportshub/internal/infrastructure/signal"
	"sportshub/pkg/cache"
	"sportshub/pkg/config"
	lockpkg "sportshub/pkg/distributed"
	"sportshub/pkg/logger"
	"sportshub/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func loadConfig() (*config.Config, error) {
	if path := os.Getenv("SPORTSHUB_CONFIG"); path != "" {
		return config.Load(path)
	}

	// Try multiple config paths
	configPaths := []string{
		"configs/config.yaml",
		"/etc/sportshub/config.yaml",
		"config.yaml",
	}
	var lastErr error
	for _, path := range configPaths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		cfg, err := config.Load(path)
		if err == nil {
			return cfg, nil
		}
		lastErr = err
	}
	if lastErr != nil {
		return nil, lastErr
	}
	// No file anywhere: defaults plus environment.
	return config.Load(configPaths[0])
}

func instanceID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "sportshub"
	}
	return fmt.Sprintf("%s-%s", host, uuid.NewString()[:8])
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	zapLogger, err := logger.New(cfg.Logging.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = zapLogger.Sync() }()
	log := zapLogger.Sugar()

	if err := run(cfg, zapLogger, log); err != nil {
		log.Fatalw("Server failed", "error", err)
	}
	log.Info("SportsHub server stopped")
}

func run(cfg *config.Config, zapLogger *zap.Logger, log *zap.SugaredLogger) error {
	clock := clockwork.NewRealClock()
	id := instanceID()
	log = log.With("instance_id", id)

	tp, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: "sportshub-server",
		JaegerURL:   cfg.Tracing.JaegerURL,
		Environment: cfg.Tracing.Environment,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("failed to init tracing: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Warnw("Error shutting down tracer", "error", err)
		}
	}()

	repoFactory := repositories.NewRepositoryFactory(cfg, clock, log)
	defer func() {
		if err := repoFactory.Close(); err != nil {
			log.Errorw("Error closing repository factory", "error", err)
		}
	}()
	redisClient := repoFactory.RedisClient()

	// Realtime core
	collector := monitoring.NewPrometheusCollector(prometheus.DefaultRegisterer)
	wsServer := wsignal.NewWebSocketServer(wsignal.ConfigFrom(cfg), log)
	broadcaster := realtime.NewBroadcaster(wsServer, log, realtime.WithMetrics(collector))
	relay := realtime.NewRelay(wsServer, log, realtime.WithMetrics(collector))
	wsServer.Attach(broadcaster, relay)
	wsServer.SetMetrics(collector)

	var (
		delivery ports.GameEventPublisher
		notifier ports.SessionNotifier
		cluster  *distributed.ClusterFanout
	)
	local := realtime.NewFanout(broadcaster, relay)
	delivery, notifier = local, local
	if cfg.EventBus.Enabled && redisClient != nil {
		bus := distributed.NewEventBus(redisClient, cfg.EventBus.Channel, id, log)
		cluster = distributed.NewClusterFanout(local, bus, log)
		delivery, notifier = cluster, cluster
	}

	// Services
	authService := services.NewAuthService(
		cfg.Auth.JWTSecret,
		cfg.Auth.AccessTokenTTL,
		cfg.Auth.RefreshTokenTTL,
		clock,
	)
	wsServer.SetAuthenticator(func(token string) (domain.UserID, error) {
		claims, err := authService.ValidateToken(token)
		if err != nil {
			return "", err
		}
		return claims.UserID, nil
	})

	gameCache := cache.NewWithClock(cfg.Sports.CacheTTL, clock)
	defer gameCache.Stop()
	gameService := services.NewCachedGameService(
		services.NewGameService(repoFactory.CreateGameRepository(), clock),
		gameCache,
		cfg.Sports.CacheTTL,
	)

	screenShareService := services.NewScreenShareService(
		repoFactory.CreateScreenShareRepository(),
		notifier,
		services.ScreenShareConfig{
			DefaultMaxViewers:    cfg.ScreenShare.DefaultMaxViewers,
			MaxViewersPerSession: cfg.ScreenShare.MaxViewersPerSession,
			SessionTimeout:       cfg.ScreenShare.SessionTimeout,
			ICEServers:           cfg.WebRTCICEServers(),
		},
		clock,
		log,
	)
	wsServer.SetPresence(screenShareService)

	adapterCfg := footballdata.DefaultConfig()
	adapterCfg.APIKey = cfg.Sports.FootballData.APIKey
	adapterCfg.BaseURL = cfg.Sports.FootballData.BaseURL
	adapterCfg.CompetitionID = cfg.Sports.FootballData.CompetitionID
	adapterCfg.Timeout = cfg.Sports.FootballData.Timeout
	adapter := footballdata.New(adapterCfg, clock, log)
	if adapter.MockMode() {
		log.Warn("No football-data API key configured, serving mock fixtures")
	}

	var locks *lockpkg.LockManager
	if redisClient != nil {
		locks = lockpkg.NewLockManager(redisClient, "sportshub:lock:")
	}

	dailyHour, dailyMinute, err := config.ParseClock(cfg.Sports.DailyFetchTime)
	if err != nil {
		return err
	}
	var poller *jobs.Poller
	if cfg.Sports.PollerEnabled {
		poller = jobs.NewPoller(adapter, gameService, delivery, jobs.PollerConfig{
			SportID:      cfg.Sports.SportID,
			LiveInterval: cfg.Sports.LivePollInterval,
			DailyHour:    dailyHour,
			DailyMinute:  dailyMinute,
		}, clock, log).WithObserver(collector)
		if locks != nil {
			poller.WithLocks(locks)
		}
	}

	sweeper := jobs.NewSessionSweeper(screenShareService, cfg.ScreenShare.CleanupInterval, clock, log)
	if locks != nil {
		sweeper.WithLocks(locks)
	}

	// Health
	health := monitoring.NewHealthChecker(clock)
	if redisClient != nil {
		health.AddRedisCheck(redisClient, 2*time.Second)
	}
	if db := repoFactory.DB(); db != nil {
		health.AddDatabaseCheck(db, 2*time.Second)
	}
	health.AddAdapterCheck(adapter, 5*time.Second)

	// HTTP
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(
		middleware.RecoveryMiddleware(log),
		middleware.CORSMiddleware(cfg.Server.AllowedOrigins),
		middleware.TracingMiddleware(),
		middleware.RequestLoggerMiddleware(logger.NewContextLogger(zapLogger), collector),
		middleware.ErrorHandlerMiddleware(log),
		middleware.NewHTTPRateLimitMiddleware(cfg),
	)

	requireAuth := middleware.AuthMiddleware(authService)
	optionalAuth := middleware.OptionalAuthMiddleware(authService)

	var trigger httphandlers.PollTrigger
	if poller != nil {
		trigger = poller
	}
	httphandlers.NewAuthHandler(authService).SetupRoutes(router)
	httphandlers.NewGameHandler(gameService, trigger).SetupRoutes(router, requireAuth)
	httphandlers.NewScreenShareHandler(screenShareService, relay).SetupRoutes(router, requireAuth, optionalAuth)

	systemHandler := httphandlers.NewSystemHandler(health, wsServer, log)
	var registry *distributed.InstanceRegistry
	if redisClient != nil {
		registry = distributed.NewInstanceRegistry(redisClient, id, "server", 30*time.Second, log)
		systemHandler.WithCluster(registry)
	}
	if cfg.Monitoring.PrometheusEnabled {
		systemHandler.WithMetrics(promhttp.Handler())
	}
	systemHandler.SetupRoutes(router, cfg.Monitoring.MetricsPath)
	router.GET("/ws", gin.WrapF(wsServer.HandleWebSocket))

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Infow("Starting SportsHub server", "address", cfg.Server.Address)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if cluster != nil {
		g.Go(func() error { return cluster.Run(gctx) })
	}
	if registry != nil {
		g.Go(func() error {
			registry.Heartbeat(gctx, 10*time.Second, func() distributed.InstanceStats {
				stats := wsServer.Stats()
				return distributed.InstanceStats{
					Connections: stats.Connections,
					Topics:      stats.Topics,
					Rooms:       stats.Rooms,
				}
			})
			return nil
		})
	}

	if poller != nil {
		poller.Start(gctx)
	}
	sweeper.Start(gctx)

	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down SportsHub server...")

		if poller != nil {
			poller.Stop()
		}
		sweeper.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := wsServer.Shutdown(shutdownCtx); err != nil {
			log.Warnw("Error closing realtime connections", "error", err)
		}
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Errorw("Error during server shutdown", "error", err)
			if closeErr := srv.Close(); closeErr != nil {
				log.Errorw("Error force closing server", "error", closeErr)
			}
			return err
		}
		log.Info("Server shutdown gracefully")
		return nil
	})

	return g.Wait()
}
