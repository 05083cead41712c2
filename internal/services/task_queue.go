package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// TaskKind selects the handler of a queued task
type TaskKind string

const (
	TaskKindNFTEvent     TaskKind = "nft-event"
	TaskKindFloorRefresh TaskKind = "floor-refresh"
)

// Task is the message body carried by the task queues
type Task struct {
	Name string   `json:"name,omitempty"`
	Kind TaskKind `json:"kind"`
	// Payload is the base64 encoded enhanced transaction for nft-event tasks
	Payload       string `json:"payload,omitempty"`
	Slug          string `json:"slug,omitempty"`
	Authorization string `json:"authorization"`
}

// TaskQueue accepts tasks for asynchronous processing
type TaskQueue interface {
	Enqueue(ctx context.Context, task *Task) error
}

// FloorScheduler queues a floor recalculation for a collection
type FloorScheduler interface {
	ScheduleFloorRefresh(ctx context.Context, slug string) error
}

// MessagePublisher is the slice of config.Publisher the queue needs
type MessagePublisher interface {
	Publish(ctx context.Context, queueName, messageID string, headers amqp.Table, message interface{}) error
}

// NameClaimer remembers task names so a name is enqueued at most once
type NameClaimer interface {
	Claim(ctx context.Context, name string) (bool, error)
	Release(ctx context.Context, name string) error
}

// RedisNameClaimer claims task names with SET NX and a TTL
type RedisNameClaimer struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisNameClaimer(client *redis.Client, ttl time.Duration) *RedisNameClaimer {
	return &RedisNameClaimer{client: client, ttl: ttl}
}

func taskKey(name string) string {
	return "task:" + name
}

func (c *RedisNameClaimer) Claim(ctx context.Context, name string) (bool, error) {
	return c.client.SetNX(ctx, taskKey(name), time.Now().Unix(), c.ttl).Result()
}

func (c *RedisNameClaimer) Release(ctx context.Context, name string) error {
	return c.client.Del(ctx, taskKey(name)).Err()
}

// AMQPTaskQueue publishes tasks to durable RabbitMQ queues
type AMQPTaskQueue struct {
	publisher  MessagePublisher
	names      NameClaimer
	taskQueue  string
	floorQueue string
	secret     string
}

func NewAMQPTaskQueue(publisher MessagePublisher, names NameClaimer, taskQueue, floorQueue, secret string) *AMQPTaskQueue {
	return &AMQPTaskQueue{
		publisher:  publisher,
		names:      names,
		taskQueue:  taskQueue,
		floorQueue: floorQueue,
		secret:     secret,
	}
}

// Enqueue publishes task. A named task whose name was already claimed yields ErrTaskExists.
func (q *AMQPTaskQueue) Enqueue(ctx context.Context, task *Task) error {
	if task.Name != "" && q.names != nil {
		claimed, err := q.names.Claim(ctx, task.Name)
		if err != nil {
			return fmt.Errorf("claim task name %s: %w", task.Name, err)
		}
		if !claimed {
			return fmt.Errorf("%w: %s", ErrTaskExists, task.Name)
		}
	}

	queue := q.taskQueue
	if task.Kind == TaskKindFloorRefresh {
		queue = q.floorQueue
	}

	if err := q.publisher.Publish(ctx, queue, task.Name, nil, task); err != nil {
		if task.Name != "" && q.names != nil {
			if releaseErr := q.names.Release(ctx, task.Name); releaseErr != nil {
				logrus.WithField("task", task.Name).Warnf("Failed to release task name: %v", releaseErr)
			}
		}
		return err
	}
	return nil
}

// ScheduleFloorRefresh queues an unnamed floor-refresh task
func (q *AMQPTaskQueue) ScheduleFloorRefresh(ctx context.Context, slug string) error {
	return q.Enqueue(ctx, &Task{Kind: TaskKindFloorRefresh, Slug: slug, Authorization: q.secret})
}

// IsDuplicateTask reports whether err means the task had already been enqueued
func IsDuplicateTask(err error) bool {
	return errors.Is(err, ErrTaskExists)
}

// TaskHandler runs a dequeued task
type TaskHandler interface {
	HandleTask(ctx context.Context, task *Task) (Outcome, error)
}

// InlineTaskQueue runs tasks in the calling goroutine. It stands in for the broker in
// single-process deployments; name dedup still applies when a NameClaimer is set.
type InlineTaskQueue struct {
	handler TaskHandler
	names   NameClaimer
	secret  string
}

func NewInlineTaskQueue(names NameClaimer, secret string) *InlineTaskQueue {
	return &InlineTaskQueue{names: names, secret: secret}
}

// Attach sets the handler. The processor usually depends on the queue as its floor
// scheduler, so the two are wired after construction.
func (q *InlineTaskQueue) Attach(handler TaskHandler) {
	q.handler = handler
}

func (q *InlineTaskQueue) Enqueue(ctx context.Context, task *Task) error {
	if q.handler == nil {
		return errors.New("inline task queue has no handler attached")
	}
	if task.Name != "" && q.names != nil {
		claimed, err := q.names.Claim(ctx, task.Name)
		if err != nil {
			return fmt.Errorf("claim task name %s: %w", task.Name, err)
		}
		if !claimed {
			return fmt.Errorf("%w: %s", ErrTaskExists, task.Name)
		}
	}

	outcome, err := q.handler.HandleTask(ctx, task)
	if err != nil {
		if task.Name != "" && q.names != nil && !IsPermanent(err) {
			if releaseErr := q.names.Release(ctx, task.Name); releaseErr != nil {
				logrus.WithField("task", task.Name).Warnf("Failed to release task name: %v", releaseErr)
			}
		}
		return err
	}
	logrus.WithFields(logrus.Fields{"task": task.Name, "kind": task.Kind, "outcome": outcome}).Debug("Ran inline task")
	return nil
}

func (q *InlineTaskQueue) ScheduleFloorRefresh(ctx context.Context, slug string) error {
	return q.Enqueue(ctx, &Task{Kind: TaskKindFloorRefresh, Slug: slug, Authorization: q.secret})
}
