package config

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// AttemptHeader counts how many times a message has been handed to a handler
const AttemptHeader = "x-attempt"

// Consumer consumes a single durable queue with manual acks and bounded retries
type Consumer struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	queue      string
	maxRetries int
	retryDelay time.Duration
	// retryable decides whether a failed message should be tried again
	retryable func(error) bool
}

// ConsumerOptions tunes retry behaviour
type ConsumerOptions struct {
	MaxRetries int
	RetryDelay time.Duration
	Retryable  func(error) bool
}

func NewConsumer(conn *amqp.Connection, queueName string, opts ConsumerOptions) (*Consumer, error) {
	if conn == nil {
		return nil, fmt.Errorf("RabbitMQ connection not initialized")
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}

	q, err := DeclareQueue(ch, queueName)
	if err != nil {
		return nil, err
	}

	if err := ch.Qos(1, 0, false); err != nil {
		return nil, fmt.Errorf("failed to set qos: %w", err)
	}

	retryable := opts.Retryable
	if retryable == nil {
		retryable = func(error) bool { return true }
	}

	return &Consumer{
		conn:       conn,
		channel:    ch,
		queue:      q.Name,
		maxRetries: opts.MaxRetries,
		retryDelay: opts.RetryDelay,
		retryable:  retryable,
	}, nil
}

// Consume blocks handling deliveries until ctx is cancelled or the channel closes
func (c *Consumer) Consume(ctx context.Context, handler func(ctx context.Context, body []byte) error) error {
	msgs, err := c.channel.Consume(
		c.queue,
		"",    // consumer
		false, // autoAck
		false, // exclusive
		false, // noLocal
		false, // noWait
		nil,   // args
	)
	if err != nil {
		return err
	}

	logrus.Infof("Consumer is running on queue: %s", c.queue)

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return fmt.Errorf("delivery channel for %s closed", c.queue)
			}
			c.handle(ctx, msg, handler)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg amqp.Delivery, handler func(ctx context.Context, body []byte) error) {
	err := handler(ctx, msg.Body)
	if err == nil {
		msg.Ack(false)
		return
	}

	attempt := attemptOf(msg.Headers)
	fields := logrus.Fields{"queue": c.queue, "message_id": msg.MessageId, "attempt": attempt + 1}

	if !c.retryable(err) {
		logrus.WithFields(fields).Errorf("Dropping message after permanent failure: %v", err)
		msg.Ack(false)
		return
	}
	if attempt+1 >= c.maxRetries {
		logrus.WithFields(fields).Errorf("Dropping message after %d attempts: %v", attempt+1, err)
		msg.Ack(false)
		return
	}

	logrus.WithFields(fields).Warnf("Handle msg failed, scheduling retry: %v", err)
	if c.retryDelay > 0 {
		time.Sleep(c.retryDelay * time.Duration(attempt+1))
	}

	headers := amqp.Table{}
	for k, v := range msg.Headers {
		headers[k] = v
	}
	headers[AttemptHeader] = int32(attempt + 1)

	err = c.channel.PublishWithContext(ctx, "", c.queue, false, false, amqp.Publishing{
		ContentType:  msg.ContentType,
		MessageId:    msg.MessageId,
		Headers:      headers,
		Body:         msg.Body,
		DeliveryMode: amqp.Persistent,
	})
	if err != nil {
		logrus.WithFields(fields).Errorf("Failed to republish message, requeueing: %v", err)
		msg.Nack(false, true)
		return
	}
	msg.Ack(false)
}

func attemptOf(headers amqp.Table) int {
	switch v := headers[AttemptHeader].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	}
	return 0
}

func (c *Consumer) Close() error {
	if err := c.channel.Close(); err != nil {
		return err
	}
	return nil
}
