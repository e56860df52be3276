package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/havenloop/dispatch-api/internal/config"
	"github.com/havenloop/dispatch-api/internal/handler"
	contactHandler "github.com/havenloop/dispatch-api/internal/handler/contact"
	escalationHandler "github.com/havenloop/dispatch-api/internal/handler/escalation"
	notificationHandler "github.com/havenloop/dispatch-api/internal/handler/notification"
	preferenceHandler "github.com/havenloop/dispatch-api/internal/handler/preference"
	"github.com/havenloop/dispatch-api/internal/middleware"
	"github.com/havenloop/dispatch-api/internal/model"
	"github.com/havenloop/dispatch-api/internal/ratelimit"
	"github.com/havenloop/dispatch-api/internal/repository/postgres"
	"github.com/havenloop/dispatch-api/internal/router"
	"github.com/havenloop/dispatch-api/internal/sender"
	dispatchService "github.com/havenloop/dispatch-api/internal/service/dispatch"
	escalationService "github.com/havenloop/dispatch-api/internal/service/escalation"
	"github.com/havenloop/dispatch-api/pkg/logger"
	"github.com/havenloop/dispatch-api/pkg/messaging"
	redisbroker "github.com/havenloop/dispatch-api/pkg/messaging/redis"
	"github.com/havenloop/dispatch-api/pkg/metrics"
	"github.com/havenloop/dispatch-api/pkg/worker"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.NewLogger(nil)
	appMetrics := metrics.NewMetrics("dispatch", "core")

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to parse redis url")
	}
	redisOpts.MaxRetries = cfg.Redis.MaxRetries
	redisOpts.PoolSize = cfg.Redis.PoolSize
	redisOpts.MinIdleConns = cfg.Redis.MinIdleConns
	redisClient := redis.NewClient(redisOpts)
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()

	// Repositories
	base := postgres.NewBaseRepository(db)
	prefRepo := postgres.NewPreferenceRepository(base)
	contactRepo := postgres.NewContactRepository(base)
	outcomeRepo := postgres.NewOutcomeRepository(base)
	summaryRepo := postgres.NewSummaryRepository(base)
	requestRepo := postgres.NewRequestRepository(base)

	// Channel senders, mode fixed at startup
	zl := log.Logger
	broker := redisbroker.NewRedisBrokerWithClient(redisClient, &zl)
	senders, err := buildSenders(cfg, broker)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build channel senders")
	}

	// Core services
	limiter := ratelimit.NewLimiter(redisClient, appLogger, appMetrics)
	idemStore := dispatchService.NewIdempotencyStore(redisClient, cfg.Dispatch.IdempotencyTTL)
	dispatcher := dispatchService.NewService(
		prefRepo, outcomeRepo, limiter, senders, idemStore,
		dispatchService.Config{
			MaxRetries:  cfg.Dispatch.MaxRetries,
			BackoffBase: cfg.Dispatch.BackoffBase,
			SendTimeout: cfg.Dispatch.SendTimeout,
		},
		appLogger, appMetrics,
	)
	escalator := escalationService.NewService(
		contactRepo, summaryRepo, dispatcher,
		escalationService.Config{
			Workers:      cfg.Escalation.Workers,
			GatewayRate:  cfg.Escalation.GatewayRate,
			GatewayBurst: cfg.Escalation.GatewayBurst,
		},
		appLogger, appMetrics,
	)

	// Scheduled delivery
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Scheduler.Enabled {
		scheduler := worker.NewScheduler(requestRepo, dispatcher, worker.SchedulerConfig{
			BatchSize:    cfg.Scheduler.BatchSize,
			PollInterval: cfg.Scheduler.PollInterval,
		}, appLogger, appMetrics)
		go scheduler.Start(ctx)
	}

	// HTTP surface
	r := router.New(
		handler.NewHealthHandler(db, redisClient),
		router.Config{
			RateLimit:  rate.Limit(cfg.RateLimit.HTTPRate),
			RateBurst:  cfg.RateLimit.HTTPBurst,
			CORSConfig: middleware.DefaultCORSConfig(),
			Timeout:    middleware.TimeoutConfig{Duration: time.Duration(cfg.Server.TimeoutSeconds) * time.Second},
		},
		notificationHandler.NewHandler(dispatcher, requestRepo, outcomeRepo),
		escalationHandler.NewHandler(escalator, summaryRepo),
		preferenceHandler.NewHandler(prefRepo),
		contactHandler.NewHandler(contactRepo),
	)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r.Engine(),
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("starting dispatch server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}

func buildSenders(cfg *config.Config, broker messaging.Broker) (sender.Registry, error) {
	var email sender.Sender
	if cfg.SMTP.Mode == string(sender.ModeLive) {
		email = sender.NewEmailSender(cfg.SMTP)
	} else {
		email = sender.NewSimulated(model.ChannelEmail)
	}

	var sms sender.Sender
	if cfg.SNS.Mode == string(sender.ModeLive) {
		live, err := sender.NewSMSSender(context.Background(), cfg.SNS)
		if err != nil {
			return nil, err
		}
		sms = live
	} else {
		sms = sender.NewSimulated(model.ChannelSMS)
	}

	inApp := sender.NewInAppSender(broker)

	return sender.NewRegistry(email, sms, inApp), nil
}
