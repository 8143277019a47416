package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"voiceagents/internal/audit"
	"voiceagents/internal/auth"
	"voiceagents/internal/calls"
	"voiceagents/internal/campaigns"
	"voiceagents/internal/config"
	"voiceagents/internal/contacts"
	"voiceagents/internal/engine"
	"voiceagents/internal/events"
	"voiceagents/internal/httpapi"
	"voiceagents/internal/reporting"
	"voiceagents/internal/telephony"
	"voiceagents/pkg/logger"
	"voiceagents/pkg/utils"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// .env is optional; real environment variables take precedence.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load .env", "err", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	sentryOn, err := utils.InitSentry(cfg.App.SentryDSN, cfg.App.Env)
	if err != nil {
		log.Warn("sentry disabled", "err", err)
	}
	if sentryOn {
		defer utils.FlushSentry(2 * time.Second)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	var locker engine.Locker = engine.NoopLocker{}
	if cfg.Engine.Lock == "redis" {
		rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr(), Password: cfg.Redis.Password})
		if err != nil {
			log.Error("redis init failed", "err", err)
			os.Exit(1)
		}
		defer func(rdb *redis.Client) { _ = rdb.Close() }(rdb)
		locker = engine.NewRedisLocker(rdb, cfg.Engine.LeaseTTL)
	}

	var publisher events.Publisher = events.Noop{}
	if cfg.Events.RabbitMQURL != "" {
		amqpPub, err := events.NewAMQPPublisher(cfg.Events.RabbitMQURL, cfg.Events.Exchange)
		if err != nil {
			log.Error("rabbitmq init failed", "err", err)
			os.Exit(1)
		}
		defer amqpPub.Close()
		publisher = amqpPub
	} else {
		log.Info("RABBITMQ_URL not set, lifecycle events disabled")
	}

	lk := telephony.NewLiveKit(cfg.LiveKit)
	trunks := telephony.NewPostgresTrunks(db)

	// Repositories and services
	auditSvc := audit.NewService(audit.NewPostgresRepo(db))
	resolver := contacts.NewResolver(contacts.NewPostgresStore(db))
	campaignSvc := campaigns.NewService(campaigns.NewPostgresRepo(db), resolver, auditSvc, publisher, logger.Component(log, "campaigns"))
	callRepo := calls.NewPostgresRepo(db)
	callSvc := calls.NewService(callRepo, campaignSvc, auditSvc, publisher, logger.Component(log, "calls"))
	reportSvc := reporting.NewService(callRepo, cfg.Location())
	manual := engine.NewManualCaller(calls.NewPostgresManualRepo(db), trunks, lk, lk, auditSvc, cfg.LiveKit.AgentName, logger.Component(log, "manual_calls"))

	var wg sync.WaitGroup
	if cfg.Engine.Enabled {
		engineLog := logger.Component(log, "campaign_engine")
		if cfg.Engine.Lock == "none" {
			engineLog.Warn("ENGINE_LOCK=none: run a single engine instance only")
		}
		executor := engine.NewExecutor(callRepo, lk, lk, publisher, cfg.LiveKit.AgentName, engineLog)
		scheduler := engine.NewScheduler(campaignSvc, resolver, callRepo, trunks, executor, locker, engine.Options{
			PollInterval: cfg.Engine.PollInterval,
			CallDelay:    cfg.Engine.CallDelay,
			Location:     cfg.Location(),
		}, engineLog)

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := scheduler.Run(rootCtx); err != nil && !errors.Is(err, context.Canceled) {
				engineLog.Error("campaign engine stopped", "err", err)
				utils.CaptureError(err, map[string]string{"component": "campaign_engine"})
			}
		}()
	} else {
		log.Info("campaign engine disabled")
	}

	h := httpapi.Handlers{
		Audit:     auditSvc,
		Campaigns: campaignSvc,
		Calls:     callSvc,
		Reporting: reportSvc,
		Manual:    manual,
	}
	healthy := func() error { return utils.HealthCheck(rootCtx, db, 2*time.Second) }
	r := newRouter(h, auth.RequireAccessToken(authManager), cfg.App.CORSAllowedOrigins, log, healthy)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
	wg.Wait()
	log.Info("shutdown complete")
}
