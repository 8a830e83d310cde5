package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"eventease/internal/auth"
	"eventease/internal/config"
	"eventease/internal/database"
	"eventease/internal/handlers"
	"eventease/internal/services"
	"eventease/internal/store"
	"eventease/internal/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	shutdownTimeout     = 10 * time.Second
	scanShutdownTimeout = time.Minute
)

// components is everything the commands share
type components struct {
	users     *store.UserDirectory
	reminders *services.ReminderService
	scheduler *services.ReminderScheduler
	redis     *redis.Client
}

func (c components) Close() {
	if c.redis != nil {
		_ = c.redis.Close()
	}
}

func newComponents(ctx context.Context, cfg config.Config, db *gorm.DB, log *zap.Logger, reg prometheus.Registerer, now func() time.Time) (components, error) {
	loc, err := cfg.Location()
	if err != nil {
		return components{}, err
	}

	reminderStore := store.NewReminderStore(db)
	eventStore := store.NewEventStore(db)
	users := store.NewUserDirectory(db)

	notifier := services.NewNotifier(services.EmailConfig{
		APIKey:        cfg.SendGridAPIKey,
		FromEmail:     cfg.SendGridFromEmail,
		FromName:      cfg.SendGridFromName,
		RatePerSecond: cfg.SendGridRatePerSecond,
		Location:      loc,
	}, log.Named("email"))

	scanner := services.NewReminderScanner(reminderStore, users, notifier, log.Named("scanner"),
		services.WithConcurrency(cfg.ReminderConcurrency),
		services.WithSendTimeout(cfg.ReminderSendTimeout),
		services.WithMetrics(services.NewScanMetrics(reg)),
		services.WithClock(now),
	)

	var comps components
	var opts []services.SchedulerOption
	if cfg.RedisAddr != "" {
		client, err := services.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return components{}, err
		}
		comps.redis = client
		opts = append(opts, services.WithScanLock(services.NewRedisScanLock(client, cfg.ScanLockTTL, log)))
		log.Info("Using Redis scan lock", zap.String("addr", cfg.RedisAddr))
	}

	scheduler, err := services.NewReminderScheduler(scanner, cfg.ReminderSchedule, log, opts...)
	if err != nil {
		comps.Close()
		return components{}, err
	}

	comps.scheduler = scheduler
	comps.users = users
	comps.reminders = services.NewReminderService(eventStore, reminderStore, loc, log.Named("reminders"))
	return comps, nil
}

func serve(parent context.Context, cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg, log)
	if err != nil {
		return err
	}
	defer closeDB(db, log)

	comps, err := newComponents(ctx, cfg, db, log, prometheus.DefaultRegisterer, time.Now)
	if err != nil {
		return err
	}
	defer comps.Close()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(utils.Recovery(log), utils.RequestLogger(log), cors.New(corsConfig(cfg)))
	if err := router.SetTrustedProxies([]string{"127.0.0.1"}); err != nil {
		return fmt.Errorf("failed to set trusted proxies: %w", err)
	}
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	tokens := auth.NewTokenManager(cfg.JWTSecret, 0)
	handlers.New(comps.reminders, comps.users, comps.scheduler, log.Named("http")).RegisterRoutes(router, tokens)

	if err := comps.scheduler.Start(ctx); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("port", cfg.AppPort), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("Shutting down")
	case runErr = <-serverErr:
		if runErr != nil {
			log.Error("Server failed", zap.Error(runErr))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown failed", zap.Error(err))
	}

	select {
	case <-comps.scheduler.Stop().Done():
		log.Info("Reminder scheduler stopped")
	case <-time.After(scanShutdownTimeout):
		log.Warn("Reminder scan still running at shutdown")
	}

	return runErr
}

func scanOnce(ctx context.Context, cfg config.Config, log *zap.Logger, now func() time.Time) error {
	db, err := database.Open(cfg, log)
	if err != nil {
		return err
	}
	defer closeDB(db, log)

	comps, err := newComponents(ctx, cfg, db, log, prometheus.NewRegistry(), now)
	if err != nil {
		return err
	}
	defer comps.Close()

	results, err := comps.scheduler.Trigger(ctx)
	for _, r := range results {
		log.Info("Milestone scanned",
			zap.Stringer("milestone", r.Milestone),
			zap.Int("due", r.Due),
			zap.Int("sent", r.Sent),
			zap.Int("failed", r.Failed),
			zap.Int("skipped", r.Skipped),
		)
	}
	return err
}

func corsConfig(cfg config.Config) cors.Config {
	c := cors.Config{
		AllowMethods:  []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Authorization", "Content-Type"},
		ExposeHeaders: []string{"Content-Length", "Content-Disposition"},
		MaxAge:        12 * time.Hour,
	}

	origins := cfg.AllowedOrigins()
	if len(origins) == 0 || slices.Contains(origins, "*") {
		c.AllowAllOrigins = true
		return c
	}
	c.AllowOrigins = origins
	c.AllowCredentials = true
	return c
}

func closeDB(db *gorm.DB, log *zap.Logger) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	if err := sqlDB.Close(); err != nil {
		log.Warn("Failed to close database", zap.Error(err))
	}
}
