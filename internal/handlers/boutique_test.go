package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"oneoftools/internal/handlers"
	"oneoftools/internal/models"
	"oneoftools/internal/routes"
	"oneoftools/internal/services"
	"oneoftools/internal/stream"
	"oneoftools/pkg/helius"
	"oneoftools/pkg/solana"
)

const (
	secret = "webhook-secret"

	mintA = "metaqbxxUerdq28cj1RbAWkYQm3ybzjb6a8bt518x1s"
	mintB = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
	// collection address used by the seeded collection
	collectionAddress = "So11111111111111111111111111111111111111112"
)

type queue struct {
	mu    sync.Mutex
	tasks []*services.Task
}

func (q *queue) Enqueue(_ context.Context, task *services.Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, t := range q.tasks {
		if t.Name == task.Name {
			return fmt.Errorf("%w: %s", services.ErrTaskExists, task.Name)
		}
	}
	q.tasks = append(q.tasks, task)
	return nil
}

func (q *queue) size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

type listings struct {
	resp *helius.ActiveListingsResponse
	err  error
}

func (l *listings) GetActiveListings(context.Context, helius.ActiveListingsRequest) (*helius.ActiveListingsResponse, error) {
	if l.err != nil {
		return nil, l.err
	}
	if l.resp == nil {
		return &helius.ActiveListingsResponse{}, nil
	}
	return l.resp, nil
}

type metadata struct{}

func (metadata) FetchMetadata(_ context.Context, mint string) (*solana.NFTMetadata, error) {
	return &solana.NFTMetadata{Mint: mint, Name: "Piece", IsOriginal: true}, nil
}

type env struct {
	db       *gorm.DB
	queue    *queue
	listings *listings
	router   *gin.Engine
}

func setup(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)

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

	e := &env{db: db, queue: &queue{}, listings: &listings{}}

	store := services.NewEventStore(db)
	resolver := services.NewResolver(db, metadata{})
	floor := services.NewFloorRecalculator(db, e.listings, 100)
	processor := services.NewProcessor(services.ProcessorDeps{
		Resolver:   resolver,
		Store:      store,
		Aggregator: services.NewAggregator(db, store),
		Floor:      floor,
		Secret:     secret,
	})
	hub := stream.NewHub(nil)
	t.Cleanup(hub.Close)

	boutique := handlers.NewBoutiqueHandler(handlers.BoutiqueDeps{
		Dispatcher:  services.NewDispatcher(e.queue, secret),
		Processor:   processor,
		Collections: services.NewCollectionService(db),
		Store:       store,
		Resolver:    resolver,
		Floor:       floor,
		Cacher: services.NewNFTCacher(services.NFTCacherDeps{
			DB:       db,
			Resolver: resolver,
			Store:    store,
			Metadata: metadata{},
		}),
		Hub: hub,
	})
	health := handlers.NewHealthHandler(nil, time.Second)
	e.router = routes.SetupRouter(boutique, health, routes.Options{AdminSecret: secret})
	return e
}

func (e *env) seed(t *testing.T, c models.Collection, mints ...string) {
	t.Helper()
	if c.Name == "" {
		c.Name = c.Slug
	}
	c.MintAddresses = models.StringList(mints)
	require.NoError(t, e.db.Create(&c).Error)
	for _, mint := range mints {
		require.NoError(t, e.db.Create(&models.CollectionNFT{Mint: mint, CollectionSlug: c.Slug}).Error)
	}
}

func (e *env) do(t *testing.T, method, path, auth string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case []byte:
		reader = bytes.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var out map[string]interface{}
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &out)
	}
	return w, out
}

func (e *env) count(t *testing.T, model interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(model).Count(&n).Error)
	return n
}

func saleTx(signature, mint string, lamports int64) helius.EnhancedTransaction {
	ts := time.Now().Add(-time.Hour).Unix()
	return helius.EnhancedTransaction{
		Signature: signature,
		Type:      string(models.NFTEventSale),
		Source:    "TENSOR",
		Timestamp: ts,
		Events: helius.TransactionEvents{NFT: &helius.NFTEvent{
			Type:      string(models.NFTEventSale),
			Source:    "TENSOR",
			Amount:    lamports,
			Buyer:     "Buyer",
			Seller:    "Seller",
			Signature: signature,
			Timestamp: ts,
			NFTs:      []helius.NFTToken{{Mint: mint, Name: "Piece"}},
		}},
	}
}

func TestWebhookRejectsBadAuthorization(t *testing.T) {
	e := setup(t)
	e.seed(t, models.Collection{Slug: "mono", Approved: true, CollectionAddress: collectionAddress}, mintA)
	before := e.count(t, &models.Collection{})

	for _, auth := range []string{"", "wrong"} {
		w, body := e.do(t, http.MethodPost, "/api/collections/boutique/webhook", auth,
			[]helius.EnhancedTransaction{saleTx("sig-1", mintA, 1_000_000_000)})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, false, body["success"])
	}

	assert.Zero(t, e.queue.size())
	assert.Zero(t, e.count(t, &models.NFTEvent{}))
	assert.Zero(t, e.count(t, &models.UnmonitoredNFTEvent{}))
	assert.Equal(t, before, e.count(t, &models.Collection{}))
	assert.Zero(t, loadVolume(t, e.db, "mono"))
}

func loadVolume(t *testing.T, db *gorm.DB, slug string) float64 {
	t.Helper()
	var c models.Collection
	require.NoError(t, db.Where("slug = ?", slug).First(&c).Error)
	return c.TotalVolume
}

func TestWebhookDispatchesBatch(t *testing.T) {
	e := setup(t)

	noNFT := helius.EnhancedTransaction{Signature: "sig-transfer", Type: "TRANSFER"}
	batch := []helius.EnhancedTransaction{saleTx("sig-1", mintA, 1), noNFT, saleTx("sig-2", mintB, 2)}

	w, body := e.do(t, http.MethodPost, "/api/collections/boutique/webhook", secret, batch)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["success"])
	assert.EqualValues(t, 2, body["enqueued"])
	assert.EqualValues(t, 1, body["skipped"])
	assert.Equal(t, 2, e.queue.size())

	w, body = e.do(t, http.MethodPost, "/api/collections/boutique/webhook", secret, batch)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 0, body["enqueued"])
	assert.EqualValues(t, 2, body["duplicates"])
	assert.Equal(t, 2, e.queue.size())
}

func TestWebhookMalformedBody(t *testing.T) {
	e := setup(t)

	w, _ := e.do(t, http.MethodPost, "/api/collections/boutique/webhook", secret, []byte(`{"signature":"x"}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, e.queue.size())
}

func TestHandleTaskRecordsSale(t *testing.T) {
	e := setup(t)
	e.seed(t, models.Collection{Slug: "mono", Approved: true, CollectionAddress: collectionAddress}, mintA)

	w, body := e.do(t, http.MethodPost, "/api/collections/boutique/webhook/handle-task", secret, saleTx("sig-1", mintA, 2_500_000_000))
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, string(services.OutcomeRecorded), body["outcome"])

	// redelivery is idempotent
	w, _ = e.do(t, http.MethodPost, "/api/collections/boutique/webhook/handle-task", secret, saleTx("sig-1", mintA, 2_500_000_000))
	require.Equal(t, http.StatusCreated, w.Code)

	assert.EqualValues(t, 1, e.count(t, &models.NFTEvent{}))
	assert.InDelta(t, 2.5, loadVolume(t, e.db, "mono"), 1e-9)

	w, body = e.do(t, http.MethodGet, "/api/collections/boutique/mono", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	collection := body["collection"].(map[string]interface{})
	assert.InDelta(t, 2.5, collection["day_volume"], 1e-9)
	assert.NotNil(t, collection["ath_sale"])
}

func TestHandleTaskOutcomes(t *testing.T) {
	e := setup(t)

	w, _ := e.do(t, http.MethodPost, "/api/collections/boutique/webhook/handle-task", "nope", saleTx("sig-1", mintA, 1))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = e.do(t, http.MethodPost, "/api/collections/boutique/webhook/handle-task", secret, []byte(`[]`))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, body := e.do(t, http.MethodPost, "/api/collections/boutique/webhook/handle-task", secret,
		helius.EnhancedTransaction{Signature: "sig-plain", Type: "TRANSFER"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, string(services.OutcomeSkippedMissingNFT), body["outcome"])

	w, body = e.do(t, http.MethodPost, "/api/collections/boutique/webhook/handle-task", secret, saleTx("sig-2", mintB, 1))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, string(services.OutcomeUntracked), body["outcome"])
	assert.EqualValues(t, 1, e.count(t, &models.UnmonitoredNFTEvent{}))
}

func TestCollectionLifecycle(t *testing.T) {
	e := setup(t)

	submission := map[string]interface{}{
		"slug":               "quiet-pieces",
		"name":               "Quiet Pieces",
		"collection_address": collectionAddress,
	}
	w, body := e.do(t, http.MethodPost, "/api/collections/boutique", "", submission)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, false, body["collection"].(map[string]interface{})["approved"])

	w, _ = e.do(t, http.MethodPost, "/api/collections/boutique", "", submission)
	assert.Equal(t, http.StatusConflict, w.Code)

	w, _ = e.do(t, http.MethodPost, "/api/collections/boutique", "", map[string]interface{}{"slug": "x", "name": "bad"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, body = e.do(t, http.MethodGet, "/api/collections/boutique", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, body["collections"])

	w, _ = e.do(t, http.MethodPost, "/api/collections/boutique/quiet-pieces/approve", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = e.do(t, http.MethodPost, "/api/collections/boutique/quiet-pieces/approve", secret, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, body = e.do(t, http.MethodGet, "/api/collections/boutique", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["collections"], 1)

	w, _ = e.do(t, http.MethodGet, "/api/collections/boutique/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListEventsFilters(t *testing.T) {
	e := setup(t)
	e.seed(t, models.Collection{Slug: "mono", Approved: true, CollectionAddress: collectionAddress}, mintA)

	now := time.Now().Unix()
	for i, typ := range []models.NFTEventType{models.NFTEventSale, models.NFTEventListing, models.NFTEventSale} {
		event := models.NFTEvent{
			NFTActivity: models.NFTActivity{
				Signature: fmt.Sprintf("sig-%d", i),
				Type:      typ,
				Timestamp: now - int64(i*60),
				Mint:      mintA,
			},
			CollectionSlug: "mono",
		}
		require.NoError(t, e.db.Create(&event).Error)
	}

	w, body := e.do(t, http.MethodGet, "/api/collections/boutique/mono/events?type=nft_sale", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["events"], 2)

	w, body = e.do(t, http.MethodGet, "/api/collections/boutique/mono/events?limit=1", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	events := body["events"].([]interface{})
	require.Len(t, events, 1)
	assert.Equal(t, "sig-0", events[0].(map[string]interface{})["signature"])

	w, body = e.do(t, http.MethodGet, fmt.Sprintf("/api/collections/boutique/mono/events?before=%d", now), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["events"], 2)

	w, _ = e.do(t, http.MethodGet, "/api/collections/boutique/mono/events?limit=abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = e.do(t, http.MethodGet, "/api/collections/boutique/missing/events", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAddMintMigratesUntrackedHistory(t *testing.T) {
	e := setup(t)
	e.seed(t, models.Collection{Slug: "mono", Approved: true, CollectionAddress: collectionAddress})
	e.seed(t, models.Collection{Slug: "other", Approved: true, FirstVerifiedCreator: collectionAddress}, mintB)

	w, _ := e.do(t, http.MethodPost, "/api/collections/boutique/webhook/handle-task", secret, saleTx("sig-early", mintA, 1))
	require.Equal(t, http.StatusOK, w.Code)
	require.EqualValues(t, 1, e.count(t, &models.UnmonitoredNFTEvent{}))

	w, _ = e.do(t, http.MethodPost, "/api/collections/boutique/mono/add-mint", "", map[string]string{"mint": mintA})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = e.do(t, http.MethodPost, "/api/collections/boutique/mono/add-mint", secret, map[string]string{"mint": "not-a-key"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, body := e.do(t, http.MethodPost, "/api/collections/boutique/mono/add-mint", secret, map[string]string{"mint": mintA})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["created"])
	assert.EqualValues(t, 1, body["migrated"])
	assert.Zero(t, e.count(t, &models.UnmonitoredNFTEvent{}))
	assert.EqualValues(t, 1, e.count(t, &models.NFTEvent{}))

	w, body = e.do(t, http.MethodPost, "/api/collections/boutique/mono/add-mint", secret, map[string]string{"mint": mintA})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, body["created"])

	w, _ = e.do(t, http.MethodPost, "/api/collections/boutique/mono/add-mint", secret, map[string]string{"mint": mintB})
	assert.Equal(t, http.StatusConflict, w.Code)

	w, _ = e.do(t, http.MethodPost, "/api/collections/boutique/missing/add-mint", secret, map[string]string{"mint": mintA})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRefreshFloorStatuses(t *testing.T) {
	e := setup(t)
	e.seed(t, models.Collection{Slug: "mono", Approved: true, CollectionAddress: collectionAddress}, mintA)
	e.seed(t, models.Collection{Slug: "bare", Approved: true})

	e.listings.resp = &helius.ActiveListingsResponse{Result: []helius.ListedNFT{
		{Mint: mintA, ActiveListings: []helius.Listing{{Amount: 3_000_000_000, Marketplace: "TENSOR", Seller: "Seller"}}},
		{Mint: mintB, ActiveListings: []helius.Listing{{Amount: 1_000_000_000, Marketplace: "TENSOR", Seller: "Seller"}}},
	}}
	w, body := e.do(t, http.MethodPost, "/api/collections/boutique/mono/refresh-floor", secret, nil)
	require.Equal(t, http.StatusOK, w.Code)
	floor := body["floor"].(map[string]interface{})
	assert.Equal(t, mintA, floor["mint"])

	w, _ = e.do(t, http.MethodPost, "/api/collections/boutique/bare/refresh-floor", secret, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	e.listings.err = errors.New("upstream down")
	w, _ = e.do(t, http.MethodPost, "/api/collections/boutique/mono/refresh-floor", secret, nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)

	w, _ = e.do(t, http.MethodPost, "/api/collections/boutique/missing/refresh-floor", secret, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCacheNFT(t *testing.T) {
	e := setup(t)
	e.seed(t, models.Collection{Slug: "mono", Approved: true, CollectionAddress: collectionAddress}, mintA)

	w, _ := e.do(t, http.MethodPost, "/api/nfts/"+mintA+"/cache", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = e.do(t, http.MethodPost, "/api/nfts/bogus/cache", secret, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, body := e.do(t, http.MethodPost, "/api/nfts/"+mintA+"/cache", secret, nil)
	require.Equal(t, http.StatusOK, w.Code)
	result := body["result"].(map[string]interface{})
	assert.Equal(t, true, result["tracked"])
	assert.Equal(t, "mono", result["slug"])
	assert.EqualValues(t, 1, e.count(t, &models.NFTMetadataRecord{}))
}

func TestHealth(t *testing.T) {
	e := setup(t)

	w, _ := e.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, body := e.do(t, http.MethodGet, "/health/rpc", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["success"])
}
