package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"oneoftools/internal/models"
	"oneoftools/pkg/helius"
	"oneoftools/pkg/solana"
)

const maxBackfillPages = 5

// NFTEventsSource searches historical NFT events
type NFTEventsSource interface {
	SearchNFTEvents(ctx context.Context, req helius.NFTEventsRequest) (*helius.NFTEventsResponse, error)
}

// MetadataCache stores serialized metadata for fast reads
type MetadataCache interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// RedisMetadataCache writes metadata to redis
type RedisMetadataCache struct {
	client *redis.Client
}

func NewRedisMetadataCache(client *redis.Client) *RedisMetadataCache {
	return &RedisMetadataCache{client: client}
}

func (c *RedisMetadataCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

// CacheResult reports what caching a mint did
type CacheResult struct {
	Mint       string                    `json:"mint"`
	Slug       string                    `json:"slug,omitempty"`
	Tracked    bool                      `json:"tracked"`
	Ignored    bool                      `json:"ignored"`
	Migrated   int                       `json:"migrated"`
	Backfilled int                       `json:"backfilled"`
	Metadata   *models.NFTMetadataRecord `json:"metadata,omitempty"`
}

// NFTCacher onboards a single mint: registration, metadata cache, migration and history backfill
type NFTCacher struct {
	db        *gorm.DB
	resolver  *Resolver
	store     *EventStore
	metadata  MetadataFetcher
	cache     MetadataCache
	cacheTTL  time.Duration
	events    NFTEventsSource
	processor *Processor
}

// NFTCacherDeps groups the collaborators of an NFTCacher. Cache, Events and Processor may be nil.
type NFTCacherDeps struct {
	DB        *gorm.DB
	Resolver  *Resolver
	Store     *EventStore
	Metadata  MetadataFetcher
	Cache     MetadataCache
	CacheTTL  time.Duration
	Events    NFTEventsSource
	Processor *Processor
}

func NewNFTCacher(deps NFTCacherDeps) *NFTCacher {
	return &NFTCacher{
		db:        deps.DB,
		resolver:  deps.Resolver,
		store:     deps.Store,
		metadata:  deps.Metadata,
		cache:     deps.Cache,
		cacheTTL:  deps.CacheTTL,
		events:    deps.Events,
		processor: deps.Processor,
	}
}

// CacheNFT resolves mint, pulls its unmonitored history into the tracked log when it is tracked,
// stores its metadata and optionally backfills historical events
func (c *NFTCacher) CacheNFT(ctx context.Context, mint string) (*CacheResult, error) {
	result := &CacheResult{Mint: mint}

	resolution, err := c.resolver.Resolve(ctx, mint)
	if err != nil {
		return nil, err
	}
	if resolution.ShouldIgnore {
		result.Ignored = true
		return result, nil
	}

	meta := resolution.Metadata
	if meta == nil {
		if meta, err = c.metadata.FetchMetadata(ctx, mint); err != nil {
			return nil, fmt.Errorf("fetch metadata %s: %w", mint, err)
		}
	}

	if resolution.Tracked() {
		result.Tracked = true
		result.Slug = resolution.Entry.CollectionSlug
		if result.Migrated, err = c.store.MigrateUntrackedEventsToTracked(ctx, mint); err != nil {
			return nil, err
		}
	}

	record, err := c.saveMetadata(ctx, meta, result.Slug)
	if err != nil {
		return nil, err
	}
	result.Metadata = record

	if result.Tracked && c.events != nil && c.processor != nil {
		if result.Backfilled, err = c.backfill(ctx, mint); err != nil {
			return nil, err
		}
	}

	logrus.WithFields(logrus.Fields{
		"mint":       mint,
		"slug":       result.Slug,
		"migrated":   result.Migrated,
		"backfilled": result.Backfilled,
	}).Info("Cached nft")
	return result, nil
}

func (c *NFTCacher) saveMetadata(ctx context.Context, meta *solana.NFTMetadata, slug string) (*models.NFTMetadataRecord, error) {
	record := models.NFTMetadataRecord{
		Mint:                 meta.Mint,
		Name:                 meta.Name,
		Symbol:               meta.Symbol,
		URI:                  meta.URI,
		IsOriginal:           meta.IsOriginal,
		CollectionAddress:    meta.VerifiedCollectionAddress,
		FirstVerifiedCreator: meta.FirstVerifiedCreator,
		CollectionSlug:       slug,
	}
	if err := c.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "mint"}},
		UpdateAll: true,
	}).Create(&record).Error; err != nil {
		return nil, fmt.Errorf("save metadata %s: %w", meta.Mint, err)
	}

	if c.cache != nil {
		body, err := json.Marshal(record)
		if err == nil {
			err = c.cache.Set(ctx, "nft:"+meta.Mint, body, c.cacheTTL)
		}
		if err != nil {
			logrus.WithField("mint", meta.Mint).Warnf("Failed to cache metadata: %v", err)
		}
	}
	return &record, nil
}

func (c *NFTCacher) backfill(ctx context.Context, mint string) (int, error) {
	req := helius.NFTEventsRequest{Query: helius.NFTEventsQuery{Accounts: []string{mint}}}

	var events []helius.NFTEvent
	for page := 0; page < maxBackfillPages; page++ {
		resp, err := c.events.SearchNFTEvents(ctx, req)
		if err != nil {
			logrus.WithField("mint", mint).Warnf("History backfill stopped: %v", err)
			break
		}
		events = append(events, resp.Result...)
		if resp.PaginationToken == "" {
			break
		}
		req.Options.PaginationToken = resp.PaginationToken
	}

	return c.processor.Backfill(ctx, events)
}
