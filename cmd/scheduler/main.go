package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"oneoftools/internal/app"
	"oneoftools/pkg/config"
	"oneoftools/schedule"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		logrus.Fatalf("> Failed to load config: %v", err)
	}
	config.InitLogger(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, app.Options{})
	if err != nil {
		logrus.Fatalf("> Failed to initialize: %v", err)
	}
	defer a.Close()

	sweep := schedule.NewFloorSweep(a.Collections, a.Scheduler)
	c, err := schedule.NewCron(map[string]func(){cfg.Schedule.FloorRefresh: sweep.Job()})
	if err != nil {
		logrus.Fatalf("> Failed to add cron job: %v", err)
	}

	logrus.Infof("> Floor sweep scheduled with %q (%s)", cfg.Schedule.FloorRefresh, a)
	c.Start()

	<-ctx.Done()
	<-c.Stop().Done()
	logrus.Info("> Scheduler stopped")
}
