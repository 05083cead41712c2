package config

import (
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// DialRabbitMQ connects to the broker, retrying while it comes up
func DialRabbitMQ(cfg RabbitMQConfig) (*amqp.Connection, error) {
	maxRetries := cfg.DialRetries
	if maxRetries <= 0 {
		maxRetries = 1
	}

	var conn *amqp.Connection
	var err error

	for i := 0; i < maxRetries; i++ {
		conn, err = amqp.Dial(cfg.URL())
		if err == nil {
			logrus.Infof("Successfully connected to RabbitMQ at %s", cfg.Host)
			return conn, nil
		}

		if i < maxRetries-1 {
			logrus.Warnf("Failed to connect to RabbitMQ (attempt %d/%d): %v. Retrying in %v...", i+1, maxRetries, err, cfg.DialDelay)
			time.Sleep(cfg.DialDelay)
		}
	}

	return nil, fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", maxRetries, err)
}

// DeclareQueue declares a durable queue so publishers and consumers agree on its shape
func DeclareQueue(ch *amqp.Channel, queueName string) (amqp.Queue, error) {
	return ch.QueueDeclare(
		queueName,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,   // args
	)
}

// DeleteQueue deletes a RabbitMQ queue by name
func DeleteQueue(conn *amqp.Connection, queueName string) error {
	if conn == nil {
		return fmt.Errorf("RabbitMQ connection not initialized")
	}

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	if _, err := ch.QueueDelete(queueName, false, false, false); err != nil {
		return fmt.Errorf("failed to delete queue %s: %w", queueName, err)
	}

	logrus.Infof("Successfully deleted RabbitMQ queue: %s", queueName)
	return nil
}

// PurgeQueue removes all messages from a queue without deleting the queue itself
func PurgeQueue(conn *amqp.Connection, queueName string) (int, error) {
	if conn == nil {
		return 0, fmt.Errorf("RabbitMQ connection not initialized")
	}

	ch, err := conn.Channel()
	if err != nil {
		return 0, fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	purged, err := ch.QueuePurge(queueName, false)
	if err != nil {
		return 0, fmt.Errorf("failed to purge queue %s: %w", queueName, err)
	}

	logrus.Infof("Successfully purged %d message(s) from RabbitMQ queue: %s", purged, queueName)
	return purged, nil
}
