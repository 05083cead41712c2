package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"oneoftools/internal/models"
	"oneoftools/pkg/helius"
	"oneoftools/pkg/solana"
)

const testSecret = "webhook-secret"

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&models.Collection{},
		&models.CollectionNFT{},
		&models.NFTEvent{},
		&models.UnmonitoredNFTEvent{},
		&models.NFTMetadataRecord{},
	))
	return db
}

func seedCollection(t *testing.T, db *gorm.DB, c models.Collection, mints ...string) *models.Collection {
	t.Helper()
	if c.Name == "" {
		c.Name = c.Slug
	}
	c.MintAddresses = models.StringList(mints)
	require.NoError(t, db.Create(&c).Error)
	for _, mint := range mints {
		require.NoError(t, db.Create(&models.CollectionNFT{Mint: mint, CollectionSlug: c.Slug}).Error)
	}
	return &c
}

func loadCollection(t *testing.T, db *gorm.DB, slug string) *models.Collection {
	t.Helper()
	var c models.Collection
	require.NoError(t, db.Where("slug = ?", slug).First(&c).Error)
	return &c
}

func countRows(t *testing.T, db *gorm.DB, model interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(model).Count(&n).Error)
	return n
}

func activity(signature, mint string, eventType models.NFTEventType, sol float64, ts time.Time) *models.NFTActivity {
	return &models.NFTActivity{
		Signature: signature,
		Type:      eventType,
		Source:    "MAGIC_EDEN",
		Timestamp: ts.Unix(),
		Amount:    int64(sol * 1e9),
		Buyer:     "Buyer",
		Seller:    "Seller",
		Mint:      mint,
		Name:      "Name " + mint,
	}
}

func nftTx(signature, mint string, eventType models.NFTEventType, lamports int64, ts int64) helius.EnhancedTransaction {
	return helius.EnhancedTransaction{
		Signature: signature,
		Type:      string(eventType),
		Source:    "MAGIC_EDEN",
		Timestamp: ts,
		Events: helius.TransactionEvents{NFT: &helius.NFTEvent{
			Type:      string(eventType),
			Source:    "MAGIC_EDEN",
			Amount:    lamports,
			Buyer:     "Buyer",
			Seller:    "Seller",
			Signature: signature,
			Timestamp: ts,
			NFTs:      []helius.NFTToken{{Mint: mint, Name: "Name " + mint}},
		}},
	}
}

type fakeMetadata struct {
	mu     sync.Mutex
	byMint map[string]*solana.NFTMetadata
	calls  int
	err    error
}

func newFakeMetadata(entries ...*solana.NFTMetadata) *fakeMetadata {
	f := &fakeMetadata{byMint: map[string]*solana.NFTMetadata{}}
	for _, e := range entries {
		f.byMint[e.Mint] = e
	}
	return f
}

func (f *fakeMetadata) FetchMetadata(_ context.Context, mint string) (*solana.NFTMetadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if meta, ok := f.byMint[mint]; ok {
		return meta, nil
	}
	return &solana.NFTMetadata{Mint: mint, Name: "unknown", IsOriginal: true}, nil
}

type fakeListings struct {
	resp     *helius.ActiveListingsResponse
	err      error
	requests []helius.ActiveListingsRequest
}

func (f *fakeListings) GetActiveListings(_ context.Context, req helius.ActiveListingsRequest) (*helius.ActiveListingsResponse, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	if f.resp == nil {
		return &helius.ActiveListingsResponse{}, nil
	}
	return f.resp, nil
}

type fakeQueue struct {
	mu    sync.Mutex
	tasks []*Task
	names map[string]bool
	fail  map[string]error
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{names: map[string]bool{}, fail: map[string]error{}}
}

func (q *fakeQueue) Enqueue(_ context.Context, task *Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if err, ok := q.fail[task.Name]; ok {
		return err
	}
	if task.Name != "" {
		if q.names[task.Name] {
			return fmt.Errorf("%w: %s", ErrTaskExists, task.Name)
		}
		q.names[task.Name] = true
	}
	q.tasks = append(q.tasks, task)
	return nil
}

type fakeScheduler struct {
	slugs []string
	err   error
}

func (f *fakeScheduler) ScheduleFloorRefresh(_ context.Context, slug string) error {
	f.slugs = append(f.slugs, slug)
	return f.err
}

type fakeBroadcaster struct {
	events []*models.NFTEvent
}

func (f *fakeBroadcaster) Broadcast(_ string, event *models.NFTEvent) {
	f.events = append(f.events, event)
}

type fakeClaimer struct {
	claimed  map[string]bool
	released []string
}

func (f *fakeClaimer) Claim(_ context.Context, name string) (bool, error) {
	if f.claimed[name] {
		return false, nil
	}
	f.claimed[name] = true
	return true, nil
}

func (f *fakeClaimer) Release(_ context.Context, name string) error {
	delete(f.claimed, name)
	f.released = append(f.released, name)
	return nil
}

type published struct {
	queue     string
	messageID string
	message   interface{}
}

type fakePublisher struct {
	messages []published
	err      error
}

func (f *fakePublisher) Publish(_ context.Context, queueName, messageID string, _ amqp.Table, message interface{}) error {
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, published{queue: queueName, messageID: messageID, message: message})
	return nil
}

var errBoom = errors.New("boom")
