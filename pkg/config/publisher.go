package config

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// Publisher represents a RabbitMQ publisher
type Publisher struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	mu       sync.Mutex
	declared map[string]bool
}

// NewPublisher creates a new RabbitMQ publisher on its own channel
func NewPublisher(conn *amqp.Connection) (*Publisher, error) {
	if conn == nil {
		return nil, fmt.Errorf("RabbitMQ connection not initialized")
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	return &Publisher{
		conn:     conn,
		channel:  ch,
		declared: make(map[string]bool),
	}, nil
}

// Publish marshals message to JSON and publishes it as a persistent message.
// messageID is carried as the AMQP message id; headers may be nil.
func (p *Publisher) Publish(ctx context.Context, queueName, messageID string, headers amqp.Table, message interface{}) error {
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	return p.PublishRaw(ctx, queueName, messageID, headers, body)
}

// PublishRaw publishes an already encoded JSON body
func (p *Publisher) PublishRaw(ctx context.Context, queueName, messageID string, headers amqp.Table, body []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.declared[queueName] {
		if _, err := DeclareQueue(p.channel, queueName); err != nil {
			return fmt.Errorf("failed to declare queue: %w", err)
		}
		p.declared[queueName] = true
	}

	err := p.channel.PublishWithContext(
		ctx,
		"",        // exchange
		queueName, // routing key
		false,     // mandatory
		false,     // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			MessageId:    messageID,
			Headers:      headers,
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	logrus.WithFields(logrus.Fields{"queue": queueName, "message_id": messageID}).Debug("Published message")
	return nil
}

// Close closes the publisher channel
func (p *Publisher) Close() error {
	if p.channel != nil {
		return p.channel.Close()
	}
	return nil
}
