package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/venue-occupancy-map/internal/config"
	"github.com/iliyamo/venue-occupancy-map/internal/dashboard"
	"github.com/iliyamo/venue-occupancy-map/internal/database"
	"github.com/iliyamo/venue-occupancy-map/internal/handler"
	"github.com/iliyamo/venue-occupancy-map/internal/logger"
	"github.com/iliyamo/venue-occupancy-map/internal/middleware"
	"github.com/iliyamo/venue-occupancy-map/internal/model"
	"github.com/iliyamo/venue-occupancy-map/internal/queue"
	"github.com/iliyamo/venue-occupancy-map/internal/repository"
	"github.com/iliyamo/venue-occupancy-map/internal/router"
	"github.com/iliyamo/venue-occupancy-map/internal/service"
	"github.com/iliyamo/venue-occupancy-map/internal/session"
	"github.com/iliyamo/venue-occupancy-map/internal/settings"
)

func main() {
	cfg := config.Load() // Load environment config
	lg := logger.Must(cfg.Env)
	defer func() { _ = lg.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		lg.Fatal("database connection failed", zap.Error(err))
	}
	defer func() { _ = db.Close() }()
	if err := database.Migrate(ctx, db); err != nil {
		lg.Fatal("migration failed", zap.Error(err))
	}

	// Redis is optional; without it responses are not cached or rate limited.
	rdb, err := config.NewRedisClient(ctx)
	if err != nil {
		lg.Warn("redis unavailable, cache and rate limit disabled", zap.Error(err))
	} else {
		defer func() { _ = rdb.Close() }()
	}

	areas := repository.NewAreaRepo(db)
	thresholds := repository.NewThresholdRepo(db)
	snapshots := repository.NewSnapshotRepo(db)
	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)

	if cfg.AdminEmail != "" && cfg.AdminPassword != "" {
		created, err := users.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword, cfg.AdminName, cfg.BcryptCost)
		if err != nil {
			lg.Fatal("seeding admin failed", zap.Error(err))
		}
		if created {
			lg.Info("admin account created", zap.String("email", cfg.AdminEmail))
		}
	}

	board := dashboard.NewBoard(areas, lg, cfg.Map.FetchTimeout)
	board.OnSelect(func(a model.AreaStatus) {
		lg.Debug("area selected", zap.Uint64("area_id", a.ID), zap.Int("visitors", a.Visitors))
	})
	board.Start(ctx, cfg.Map.RefreshInterval)

	var events service.EventPublisher = service.Nop{}
	if cfg.Queue.Enabled {
		events = service.NewAMQPPublisher(cfg.Queue.URL, cfg.Queue.AreaEventsKey, lg)
		consumer := queue.NewVisitorConsumer(cfg.Queue.URL, cfg.Queue.VisitorQueue, snapshots, board, lg)
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				lg.Error("visitor consumer stopped", zap.Error(err))
			}
		}()
	}

	cacheCfg := config.LoadCacheConfig()
	admin := handler.NewAdminHandler(areas, thresholds, snapshots,
		settings.RepoWriter{Areas: areas, Thresholds: thresholds}, board, events, lg)
	if rdb != nil {
		admin.Purge = purger(rdb, cacheCfg.Prefix)
	}

	e := echo.New() // Create Echo instance
	e.HideBanner = true
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(lg))
	e.Use(echomw.Recover())

	limited := []echo.MiddlewareFunc{middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, lg)}
	cached := []echo.MiddlewareFunc{middleware.NewRedisCache(cacheCfg, rdb, lg)}

	router.RegisterRoutes(e, handler.Ready(db))
	router.RegisterAuth(e, handler.NewAuthHandler(session.NewManager(users, tokens, session.Config{
		Secret:         cfg.JWTSecret,
		AccessTTLMin:   cfg.AccessTTLMin,
		RefreshTTLDays: cfg.RefreshTTLDays,
	})), cfg.JWTSecret)
	router.RegisterPublic(e, handler.NewMapHandler(board, thresholds, cfg.Map), limited, cached)
	router.RegisterAdmin(e, admin, cfg.JWTSecret)

	addr := ":" + cfg.Port // Address string with port
	go func() {
		lg.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Fatal("server failed", zap.Error(err)) // Log and exit if server fails
		}
	}()

	<-ctx.Done()
	lg.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		lg.Error("shutdown failed", zap.Error(err))
	}
}

// purger drops every cached public response.
func purger(rdb *redis.Client, prefix string) func(context.Context) error {
	return func(ctx context.Context) error {
		_, err := middleware.PurgeCache(ctx, rdb, prefix)
		return err
	}
}
