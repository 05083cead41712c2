package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"oneoftools/internal/models"
)

// ActivityChannel is the redis channel workers publish recorded activities on
const ActivityChannel = "boutique:activity"

type relayed struct {
	Slug  string           `json:"slug"`
	Event *models.NFTEvent `json:"event"`
}

// RedisPublisher hands recorded activities to the api processes through redis pub/sub
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

func NewRedisPublisher(client *redis.Client, channel string) *RedisPublisher {
	return &RedisPublisher{client: client, channel: channel}
}

// Broadcast publishes the activity. Failures only cost live subscribers a frame and are logged.
func (p *RedisPublisher) Broadcast(slug string, event *models.NFTEvent) {
	payload, err := encodeRelayed(slug, event)
	if err != nil {
		logrus.Errorf("failed to marshal activity: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		logrus.WithField("slug", slug).Warnf("Failed to publish activity: %v", err)
	}
}

func encodeRelayed(slug string, event *models.NFTEvent) ([]byte, error) {
	return json.Marshal(relayed{Slug: slug, Event: event})
}

// forward decodes a relayed payload into the hub
func forward(hub *Hub, payload string) error {
	var msg relayed
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		return fmt.Errorf("decode relayed activity: %w", err)
	}
	if msg.Slug == "" || msg.Event == nil {
		return errors.New("relayed activity without slug or event")
	}
	hub.Broadcast(msg.Slug, msg.Event)
	return nil
}

// Relay subscribes to channel and pushes every activity into hub until ctx is done
func Relay(ctx context.Context, client *redis.Client, channel string, hub *Hub) error {
	sub := client.Subscribe(ctx, channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", channel, err)
	}
	logrus.Infof("Relaying activities from redis channel %s", channel)

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			if err := forward(hub, msg.Payload); err != nil {
				logrus.Warn(err)
			}
		}
	}
}
