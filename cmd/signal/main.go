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
	"sportshub/internal/core/realtime"
	"sportshub/internal/core/services"
	httphandlers "sportshub/internal/handlers/http"
	"sportshub/internal/infrastructure/distributed"
	"sportshub/internal/infrastructure/middleware"
	"sportshub/internal/infrastructure/monitoring"
	redisrepo "sportshub/internal/infrastructure/repositories/redis"
	wsignal "sportshub/internal/infrastructure/signal"
	"sportshub/pkg/config"
	"sportshub/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// The signal node only terminates WebSockets. Game events and session
// notices reach it over the event bus from the API servers; it has no
// store, so viewer presence is left to the servers' REST leave calls.

func loadConfig() (*config.Config, error) {
	if path := os.Getenv("SPORTSHUB_CONFIG"); path != "" {
		return config.Load(path)
	}
	for _, path := range []string{"configs/config.yaml", "/etc/sportshub/config.yaml", "config.yaml"} {
		if _, err := os.Stat(path); err == nil {
			return config.Load(path)
		}
	}
	return config.Load("config.yaml")
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

	if err := run(cfg, log); err != nil {
		log.Fatalw("Signal node failed", "error", err)
	}
	log.Info("SportsHub signal node stopped")
}

func run(cfg *config.Config, log *zap.SugaredLogger) error {
	if !cfg.Redis.Enabled || !cfg.EventBus.Enabled {
		return errors.New("signal node requires redis.enabled and event_bus.enabled")
	}

	clock := clockwork.NewRealClock()
	host, _ := os.Hostname()
	id := fmt.Sprintf("signal-%s-%s", host, uuid.NewString()[:8])
	log = log.With("instance_id", id)

	redisClient, err := redisrepo.NewRedisClient(
		cfg.Redis.Address,
		cfg.Redis.Password,
		cfg.Redis.DB,
		cfg.Redis.PoolSize,
		log,
	)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer redisClient.Close()

	collector := monitoring.NewPrometheusCollector(prometheus.DefaultRegisterer)
	wsServer := wsignal.NewWebSocketServer(wsignal.ConfigFrom(cfg), log)
	broadcaster := realtime.NewBroadcaster(wsServer, log, realtime.WithMetrics(collector))
	relay := realtime.NewRelay(wsServer, log, realtime.WithMetrics(collector))
	wsServer.Attach(broadcaster, relay)
	wsServer.SetMetrics(collector)

	authService := services.NewAuthService(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL, cfg.Auth.RefreshTokenTTL, clock)
	wsServer.SetAuthenticator(func(token string) (domain.UserID, error) {
		claims, err := authService.ValidateToken(token)
		if err != nil {
			return "", err
		}
		return claims.UserID, nil
	})

	bus := distributed.NewEventBus(redisClient, cfg.EventBus.Channel, id, log)
	cluster := distributed.NewClusterFanout(realtime.NewFanout(broadcaster, relay), bus, log)
	registry := distributed.NewInstanceRegistry(redisClient, id, "signal", 30*time.Second, log)

	health := monitoring.NewHealthChecker(clock)
	health.AddRedisCheck(redisClient, 2*time.Second)

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(
		middleware.RecoveryMiddleware(log),
		middleware.ErrorHandlerMiddleware(log),
	)

	systemHandler := httphandlers.NewSystemHandler(health, wsServer, log).WithCluster(registry)
	if cfg.Monitoring.PrometheusEnabled {
		systemHandler.WithMetrics(promhttp.Handler())
	}
	systemHandler.SetupRoutes(router, cfg.Monitoring.MetricsPath)
	router.GET("/ws", gin.WrapF(wsServer.HandleWebSocket))

	srv := &http.Server{
		Addr:    cfg.Signal.Address,
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Infow("Starting SportsHub signal node", "address", cfg.Signal.Address)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error { return cluster.Run(gctx) })
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
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down signal node...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Signal.ShutdownTimeout)
		defer cancel()
		if err := wsServer.Shutdown(shutdownCtx); err != nil {
			log.Warnw("Error closing realtime connections", "error", err)
		}
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
