package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/gin-gonic/gin"

	"oneoftools/internal/middleware"
	"oneoftools/internal/models"
	"oneoftools/internal/services"
	"oneoftools/internal/stream"
)

// BoutiqueHandler serves the boutique collection API
type BoutiqueHandler struct {
	dispatcher  *services.Dispatcher
	processor   *services.Processor
	collections *services.CollectionService
	store       *services.EventStore
	resolver    *services.Resolver
	floor       *services.FloorRecalculator
	cacher      *services.NFTCacher
	hub         *stream.Hub
}

// BoutiqueDeps groups the collaborators of a BoutiqueHandler
type BoutiqueDeps struct {
	Dispatcher  *services.Dispatcher
	Processor   *services.Processor
	Collections *services.CollectionService
	Store       *services.EventStore
	Resolver    *services.Resolver
	Floor       *services.FloorRecalculator
	Cacher      *services.NFTCacher
	Hub         *stream.Hub
}

func NewBoutiqueHandler(deps BoutiqueDeps) *BoutiqueHandler {
	return &BoutiqueHandler{
		dispatcher:  deps.Dispatcher,
		processor:   deps.Processor,
		collections: deps.Collections,
		store:       deps.Store,
		resolver:    deps.Resolver,
		floor:       deps.Floor,
		cacher:      deps.Cacher,
		hub:         deps.Hub,
	}
}

func fail(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"success": false, "message": message})
}

// failWith maps service errors onto status codes. Unknown errors are logged and answered generically.
func failWith(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrUnauthorized):
		fail(c, http.StatusUnauthorized, "Unauthorized")
	case errors.Is(err, services.ErrMalformedPayload), errors.Is(err, services.ErrInvalidCollection):
		fail(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrCollectionNotFound), errors.Is(err, services.ErrMintNotTracked):
		fail(c, http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrCollectionExists), errors.Is(err, services.ErrMintClaimed):
		fail(c, http.StatusConflict, err.Error())
	case errors.Is(err, services.ErrNoCollectionFilter):
		fail(c, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, services.ErrListingsUnavailable):
		fail(c, http.StatusBadGateway, "Active listings are unavailable, try again later")
	default:
		middleware.Logger(c).WithField("path", c.FullPath()).Errorf("Request failed: %v", err)
		fail(c, http.StatusInternalServerError, "Internal error")
	}
}

// Webhook receives a batch of enhanced transactions and enqueues one task per NFT transaction
func (h *BoutiqueHandler) Webhook(c *gin.Context) {
	if err := h.dispatcher.Authorize(c.GetHeader("Authorization")); err != nil {
		middleware.Logger(c).Warn("Rejected webhook with invalid authorization")
		failWith(c, err)
		return
	}

	body, err := c.GetRawData()
	if err != nil {
		fail(c, http.StatusBadRequest, "Failed to read body")
		return
	}
	txs, err := services.DecodeTransactions(body)
	if err != nil {
		failWith(c, err)
		return
	}

	report, err := h.dispatcher.Dispatch(c.Request.Context(), c.GetHeader("Authorization"), txs)
	if err != nil {
		failWith(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    len(report.Failed) == 0,
		"enqueued":   report.Enqueued,
		"duplicates": report.Duplicates,
		"skipped":    report.Skipped,
		"failed":     report.Failed,
	})
}

// HandleTask processes a single enhanced transaction synchronously
func (h *BoutiqueHandler) HandleTask(c *gin.Context) {
	if err := h.processor.Authorize(c.GetHeader("Authorization")); err != nil {
		failWith(c, err)
		return
	}

	body, err := c.GetRawData()
	if err != nil {
		fail(c, http.StatusBadRequest, "Failed to read body")
		return
	}
	tx, err := services.DecodeTransaction(body)
	if err != nil {
		failWith(c, err)
		return
	}

	outcome, err := h.processor.HandleTransaction(c.Request.Context(), tx)
	if err != nil {
		middleware.Logger(c).WithField("signature", tx.Signature).Errorf("Task failed: %v", err)
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}

	status := http.StatusOK
	if outcome == services.OutcomeRecorded {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"success": true, "outcome": outcome})
}

// ListCollections returns every approved collection
func (h *BoutiqueHandler) ListCollections(c *gin.Context) {
	collections, err := h.collections.ListApproved(c.Request.Context())
	if err != nil {
		failWith(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "collections": collections})
}

// SubmitCollection stores an unapproved collection
func (h *BoutiqueHandler) SubmitCollection(c *gin.Context) {
	var submission services.CollectionSubmission
	if err := c.ShouldBindJSON(&submission); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	collection, err := h.collections.Submit(c.Request.Context(), submission)
	if err != nil {
		failWith(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "collection": collection})
}

// GetCollection returns a collection with its stats
func (h *BoutiqueHandler) GetCollection(c *gin.Context) {
	collection, err := h.collections.Get(c.Request.Context(), c.Param("slug"))
	if err != nil {
		failWith(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "collection": collection})
}

// ListEvents returns the tracked activity log of a collection.
// Query: type (comma separated), before (unix seconds), limit.
func (h *BoutiqueHandler) ListEvents(c *gin.Context) {
	slug := c.Param("slug")
	if _, err := h.collections.Get(c.Request.Context(), slug); err != nil {
		failWith(c, err)
		return
	}

	var filter services.EventFilter
	if types := c.Query("type"); types != "" {
		for _, t := range strings.Split(types, ",") {
			if t = strings.TrimSpace(t); t != "" {
				filter.Types = append(filter.Types, models.NFTEventType(strings.ToUpper(t)))
			}
		}
	}
	if before := c.Query("before"); before != "" {
		v, err := strconv.ParseInt(before, 10, 64)
		if err != nil {
			fail(c, http.StatusBadRequest, "Invalid before")
			return
		}
		filter.Before = v
	}
	if limit := c.Query("limit"); limit != "" {
		v, err := strconv.Atoi(limit)
		if err != nil || v <= 0 {
			fail(c, http.StatusBadRequest, "Invalid limit")
			return
		}
		filter.Limit = v
	}

	events, err := h.store.ListEvents(c.Request.Context(), slug, filter)
	if err != nil {
		failWith(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "events": events})
}

// Stream upgrades to a websocket that receives every activity recorded for the collection
func (h *BoutiqueHandler) Stream(c *gin.Context) {
	slug := c.Param("slug")
	if _, err := h.collections.Get(c.Request.Context(), slug); err != nil {
		failWith(c, err)
		return
	}
	if err := h.hub.Serve(c.Writer, c.Request, slug); err != nil {
		middleware.Logger(c).WithField("slug", slug).Debugf("websocket upgrade failed: %v", err)
	}
}

// AddMintRequest is the body of the add-mint route
type AddMintRequest struct {
	Mint string `json:"mint" binding:"required"`
}

// AddMint registers a mint under the collection and moves its unmonitored history over
func (h *BoutiqueHandler) AddMint(c *gin.Context) {
	var req AddMintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := solana.PublicKeyFromBase58(req.Mint); err != nil {
		fail(c, http.StatusBadRequest, "Invalid mint address")
		return
	}

	ctx := c.Request.Context()
	slug := c.Param("slug")
	_, created, err := h.resolver.Register(ctx, slug, req.Mint)
	if err != nil {
		failWith(c, err)
		return
	}
	migrated, err := h.store.MigrateUntrackedEventsToTracked(ctx, req.Mint)
	if err != nil {
		failWith(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "created": created, "migrated": migrated})
}

// Approve starts monitoring a submitted collection
func (h *BoutiqueHandler) Approve(c *gin.Context) {
	collection, err := h.collections.Approve(c.Request.Context(), c.Param("slug"))
	if err != nil {
		failWith(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "collection": collection})
}

// RefreshFloor recalculates the floor synchronously
func (h *BoutiqueHandler) RefreshFloor(c *gin.Context) {
	floor, err := h.floor.Recalculate(c.Request.Context(), c.Param("slug"))
	if err != nil {
		failWith(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "floor": floor})
}

// CacheNFT onboards a single mint
func (h *BoutiqueHandler) CacheNFT(c *gin.Context) {
	mint := c.Param("mintAddress")
	if _, err := solana.PublicKeyFromBase58(mint); err != nil {
		fail(c, http.StatusBadRequest, "Invalid mint address")
		return
	}

	result, err := h.cacher.CacheNFT(c.Request.Context(), mint)
	if err != nil {
		failWith(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "result": result})
}
