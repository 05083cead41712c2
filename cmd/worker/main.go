package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"oneoftools/internal/app"
	"oneoftools/internal/services"
	"oneoftools/pkg/config"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}
	config.InitLogger(cfg.Logging)

	if !cfg.RabbitMQ.Enabled() {
		logrus.Fatal("RabbitMQ is not configured (RABBITMQ_HOST), nothing to consume")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, app.Options{PublishActivities: true})
	if err != nil {
		logrus.Fatalf("Failed to initialize: %v", err)
	}
	defer a.Close()

	processor := a.Processor
	handler := func(ctx context.Context, body []byte) error {
		var task services.Task
		if err := json.Unmarshal(body, &task); err != nil {
			return fmt.Errorf("%w: task body: %v", services.ErrMalformedPayload, err)
		}
		outcome, err := processor.HandleTask(ctx, &task)
		if err != nil {
			return err
		}
		logrus.WithFields(logrus.Fields{"task": task.Name, "kind": task.Kind, "outcome": outcome}).Info("Task done")
		return nil
	}

	opts := config.ConsumerOptions{
		MaxRetries: cfg.RabbitMQ.MaxRetries,
		RetryDelay: time.Second,
		Retryable:  func(err error) bool { return !services.IsPermanent(err) },
	}

	var wg sync.WaitGroup
	for _, queue := range []string{cfg.RabbitMQ.TaskQueue, cfg.RabbitMQ.FloorQueue} {
		consumer, err := config.NewConsumer(a.AMQP, queue, opts)
		if err != nil {
			logrus.Fatalf("Failed to create consumer for %s: %v", queue, err)
		}
		defer consumer.Close()

		wg.Add(1)
		go func(queue string, consumer *config.Consumer) {
			defer wg.Done()
			if err := consumer.Consume(ctx, handler); err != nil {
				logrus.Errorf("Consumer for %s stopped: %v", queue, err)
				stop()
			}
		}(queue, consumer)
	}

	logrus.Info("Boutique worker started, waiting for tasks...")
	wg.Wait()
	logrus.Info("Boutique worker stopped")
}
