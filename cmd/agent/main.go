package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/helmdeck/notify-agent/api/routes"
	"github.com/helmdeck/notify-agent/internal/center"
	"github.com/helmdeck/notify-agent/internal/conn"
	"github.com/helmdeck/notify-agent/internal/inbox"
	"github.com/helmdeck/notify-agent/internal/prefs"
	"github.com/helmdeck/notify-agent/internal/sched"
	"github.com/helmdeck/notify-agent/internal/stream"
	"github.com/helmdeck/notify-agent/pkg/auth"
	"github.com/helmdeck/notify-agent/pkg/config"
	"github.com/helmdeck/notify-agent/pkg/logger"
	"github.com/helmdeck/notify-agent/pkg/metrics"
	"github.com/helmdeck/notify-agent/pkg/models"
	"github.com/helmdeck/notify-agent/pkg/redis"
)

const shutdownTimeout = 10 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "notify-agent"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "notify-agent",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	sessionID := cfg.Session.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	promRegistry := prometheus.NewRegistry()
	connMetrics := metrics.NewConnMetrics(promRegistry)
	inboxMetrics := metrics.NewInboxMetrics(promRegistry)
	jobMetrics := metrics.NewJobMetrics(promRegistry)

	var transport conn.Transport
	var header http.Header
	if cfg.Push.IsRedis() {
		redisClient, err := redis.New(context.Background(), cfg.Redis)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
		transport, err = conn.NewRedisTransport(redisClient, sessionID)
		if err != nil {
			logg.Error(context.Background(), "failed to create redis transport", err)
			os.Exit(1)
		}
	} else {
		token, err := auth.MintSessionToken(cfg.Session, time.Now(), auth.SessionTokenPayload{
			UserID:    cfg.Session.UserID,
			SessionID: sessionID,
		})
		if err != nil {
			logg.Error(context.Background(), "failed to mint session token", err)
			os.Exit(1)
		}
		header = http.Header{}
		header.Set("Authorization", "Bearer "+token)
		transport = conn.NewWebsocketTransport(cfg.Push)
	}

	hub := stream.NewHub()

	inboxLog := inbox.NewLog(inbox.Params{
		Capacity: cfg.Inbox.Capacity,
		Metrics:  inboxMetrics,
	})

	fetcher, err := prefs.NewHTTPClient(cfg.Prefs)
	if err != nil {
		logg.Error(context.Background(), "failed to create preference client", err)
		os.Exit(1)
	}
	store, err := prefs.NewStore(prefs.StoreParams{
		UserID:  cfg.Session.UserID,
		Fetcher: fetcher,
		Logger:  logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create preference store", err)
		os.Exit(1)
	}

	// The frame handler closes over svc, assigned before Connect starts
	// the run loop.
	var svc center.Service
	manager, err := conn.NewManager(conn.ManagerParams{
		Endpoint:  cfg.Push.Endpoint,
		Transport: transport,
		Handler: conn.FrameHandlerFunc(func(ctx context.Context, n models.Notification) {
			svc.HandleFrame(ctx, n)
		}),
		Header:        header,
		RetryInterval: cfg.Push.RetryInterval,
		Logger:        logg,
		Metrics:       connMetrics,
		OnStateChange: func(state conn.State) {
			hub.Publish(stream.Event{
				Kind:    stream.KindConnectionStatus,
				Payload: map[string]string{"state": string(state)},
			})
		},
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create connection manager", err)
		os.Exit(1)
	}

	alerter, err := center.NewLogAlerter(logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create alerter", err)
		os.Exit(1)
	}

	svc, err = center.NewService(center.Params{
		Log:     inboxLog,
		Store:   store,
		Sender:  manager,
		Alerter: alerter,
		Hub:     hub,
		Metrics: inboxMetrics,
		Logger:  logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create notification center", err)
		os.Exit(1)
	}

	expiryJob, err := center.NewExpiryJob(svc, cfg.Inbox.ExpireTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create expiry job", err)
		os.Exit(1)
	}
	scheduler, err := sched.NewService(sched.ServiceParams{
		Logger:   logg,
		Registry: sched.NewRegistry(expiryJob),
		Metrics:  jobMetrics,
		Interval: cfg.Inbox.SweepInterval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create scheduler", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	addr := ":" + cfg.App.Port
	ctx = logg.WithFields(ctx, map[string]any{
		"env":        cfg.App.Env,
		"addr":       addr,
		"endpoint":   cfg.Push.Endpoint,
		"session_id": sessionID,
	})

	// Prime the preference cache. Failures log inside the store and
	// defaults stay active until a later load succeeds.
	go func() {
		_, _ = store.Load(ctx)
	}()

	if err := manager.Connect(ctx); err != nil {
		logg.Error(ctx, "failed to start connection manager", err)
		os.Exit(1)
	}

	schedErr := make(chan error, 1)
	go func() {
		schedErr <- scheduler.Run(ctx)
	}()

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, svc, hub, promRegistry),
	}
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.ListenAndServe()
	}()

	logg.Info(ctx, "starting notify agent")

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case err := <-schedErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			logg.Error(ctx, "scheduler stopped unexpectedly", err)
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if err := server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	if err := manager.Close(); err != nil {
		errs = append(errs, err)
	}
	hub.Close()
	store.Close()

	if err := multierr.Combine(errs...); err != nil {
		logg.Error(ctx, "shutdown finished with errors", err)
		os.Exit(1)
	}
	logg.Info(ctx, "notify agent shutting down gracefully")
}
