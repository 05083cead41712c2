package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"oneoftools/internal/app"
	"oneoftools/internal/handlers"
	"oneoftools/internal/middleware"
	"oneoftools/internal/routes"
	"oneoftools/internal/stream"
	"oneoftools/pkg/config"
	"oneoftools/schedule"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}
	config.InitLogger(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := stream.NewHub(cfg.App.AllowedOrigins)
	defer hub.Close()

	a, err := app.New(ctx, cfg, app.Options{Broadcaster: hub})
	if err != nil {
		logrus.Fatalf("Failed to initialize: %v", err)
	}
	defer a.Close()
	logrus.Infof("Services initialized (%s)", a)

	// activities recorded by workers reach local subscribers through redis
	if a.Redis != nil && a.AMQP != nil {
		go func() {
			if err := stream.Relay(ctx, a.Redis, stream.ActivityChannel, hub); err != nil {
				logrus.Errorf("Activity relay stopped: %v", err)
			}
		}()
	}

	limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		RequestsPerSecond: cfg.App.ReadRateLimit,
		Burst:             cfg.App.ReadRateBurst,
	})
	sweeper, err := schedule.NewCron(map[string]func(){
		"0 */10 * * * *": func() {
			if n := limiter.Sweep(30 * time.Minute); n > 0 {
				logrus.Debugf("Evicted %d idle rate limiters", n)
			}
		},
	})
	if err != nil {
		logrus.Fatalf("Failed to schedule limiter sweep: %v", err)
	}
	sweeper.Start()
	defer sweeper.Stop()

	boutique := handlers.NewBoutiqueHandler(handlers.BoutiqueDeps{
		Dispatcher:  a.Dispatcher,
		Processor:   a.Processor,
		Collections: a.Collections,
		Store:       a.Store,
		Resolver:    a.Resolver,
		Floor:       a.Floor,
		Cacher:      a.Cacher,
		Hub:         hub,
	})
	health := handlers.NewHealthHandler(a.RPCEndpoints(), 5*time.Second)

	r := routes.SetupRouter(boutique, health, routes.Options{
		AllowedOrigins: cfg.App.AllowedOrigins,
		AdminSecret:    cfg.Helius.AuthorizationSecret,
		ReadLimiter:    limiter,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logrus.Infof("API listening on :%s", cfg.App.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	logrus.Info("Shutting down API")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("Graceful shutdown failed: %v", err)
	}
}
