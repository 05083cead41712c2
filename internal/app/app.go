package app

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go/rpc"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"oneoftools/internal/services"
	"oneoftools/internal/stream"
	"oneoftools/pkg/config"
	"oneoftools/pkg/helius"
	"oneoftools/pkg/solana"
)

// App holds the long lived clients and the services built on them
type App struct {
	Config *config.Config

	DB        *gorm.DB
	Redis     *redis.Client
	AMQP      *amqp.Connection
	Publisher *config.Publisher
	Helius    *helius.Client
	Metaplex  *solana.MetaplexClient

	Collections *services.CollectionService
	Store       *services.EventStore
	Resolver    *services.Resolver
	Aggregator  *services.Aggregator
	Floor       *services.FloorRecalculator
	Processor   *services.Processor
	Dispatcher  *services.Dispatcher
	Cacher      *services.NFTCacher
	Queue       services.TaskQueue
	Scheduler   services.FloorScheduler
}

// Options customises what New wires
type Options struct {
	// Broadcaster receives every newly recorded activity, may be nil
	Broadcaster services.Broadcaster
	// PublishActivities sends recorded activities to redis for the api relay when no
	// Broadcaster is set
	PublishActivities bool
	// SkipBroker forces inline task execution even when a broker is configured
	SkipBroker bool
}

// New connects to the database, redis and the broker and wires the ingestion services.
// Without a broker tasks run inline in the calling process.
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	a := &App{Config: cfg}

	db, err := config.OpenDB(cfg.Database)
	if err != nil {
		return nil, err
	}
	a.DB = db
	if cfg.Database.AutoMigrate {
		if err := config.AutoMigrate(db); err != nil {
			a.Close()
			return nil, err
		}
	}

	var names services.NameClaimer
	var cache services.MetadataCache
	if cfg.Redis.Addr != "" {
		client, err := config.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Redis = client
		names = services.NewRedisNameClaimer(client, cfg.Redis.TaskNameTTL)
		cache = services.NewRedisMetadataCache(client)
	} else {
		logrus.Warn("Redis not configured, task names are not deduplicated")
	}

	a.Helius = helius.NewClient(cfg.Helius.APIKey,
		helius.WithBaseURL(cfg.Helius.BaseURL),
		helius.WithRPCURL(cfg.Helius.RPCURL),
	)
	a.Metaplex = solana.NewMetaplexClient(rpc.New(cfg.Solana.RPCURL))

	secret := cfg.Helius.AuthorizationSecret
	a.Collections = services.NewCollectionService(db)
	a.Store = services.NewEventStore(db)
	a.Resolver = services.NewResolver(db, a.Metaplex)
	a.Aggregator = services.NewAggregator(db, a.Store)
	a.Floor = services.NewFloorRecalculator(db, a.Helius, cfg.Helius.ListingsLimit)

	var inline *services.InlineTaskQueue
	if cfg.RabbitMQ.Enabled() && !opts.SkipBroker {
		conn, err := config.DialRabbitMQ(cfg.RabbitMQ)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.AMQP = conn
		publisher, err := config.NewPublisher(conn)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Publisher = publisher
		queue := services.NewAMQPTaskQueue(publisher, names, cfg.RabbitMQ.TaskQueue, cfg.RabbitMQ.FloorQueue, secret)
		a.Queue = queue
		a.Scheduler = queue
	} else {
		logrus.Warn("RabbitMQ not configured, tasks run inline")
		inline = services.NewInlineTaskQueue(names, secret)
		a.Queue = inline
		a.Scheduler = inline
	}

	broadcaster := opts.Broadcaster
	if broadcaster == nil && opts.PublishActivities && a.Redis != nil {
		broadcaster = stream.NewRedisPublisher(a.Redis, stream.ActivityChannel)
	}

	a.Processor = services.NewProcessor(services.ProcessorDeps{
		Resolver:    a.Resolver,
		Store:       a.Store,
		Aggregator:  a.Aggregator,
		Floor:       a.Floor,
		Scheduler:   a.Scheduler,
		Broadcaster: broadcaster,
		Secret:      secret,
	})
	if inline != nil {
		inline.Attach(a.Processor)
	}

	a.Dispatcher = services.NewDispatcher(a.Queue, secret)
	a.Cacher = services.NewNFTCacher(services.NFTCacherDeps{
		DB:        db,
		Resolver:  a.Resolver,
		Store:     a.Store,
		Metadata:  a.Metaplex,
		Cache:     cache,
		CacheTTL:  cfg.Redis.MetadataTTL,
		Events:    a.Helius,
		Processor: a.Processor,
	})

	return a, nil
}

// Close releases every client New opened
func (a *App) Close() {
	if a.Publisher != nil {
		if err := a.Publisher.Close(); err != nil {
			logrus.Warnf("Failed to close publisher: %v", err)
		}
	}
	if a.AMQP != nil {
		if err := a.AMQP.Close(); err != nil {
			logrus.Warnf("Failed to close RabbitMQ connection: %v", err)
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			logrus.Warnf("Failed to close redis: %v", err)
		}
	}
	if a.DB != nil {
		config.CloseDB(a.DB)
	}
}

// RPCEndpoints lists the nodes the health probe checks
func (a *App) RPCEndpoints() []solana.RPCEndpoint {
	endpoints := []solana.RPCEndpoint{{Name: "solana", URL: a.Config.Solana.RPCURL}}
	if a.Config.Helius.APIKey != "" {
		endpoints = append(endpoints, solana.RPCEndpoint{Name: "helius", URL: a.Helius.RPCURL()})
	}
	return endpoints
}

// String describes the queue mode for startup logs
func (a *App) String() string {
	if a.AMQP != nil {
		return fmt.Sprintf("broker=%s tasks=%s floor=%s", a.Config.RabbitMQ.Host, a.Config.RabbitMQ.TaskQueue, a.Config.RabbitMQ.FloorQueue)
	}
	return "broker=inline"
}
