package routes

import (
	"github.com/gin-gonic/gin"

	"oneoftools/internal/handlers"
	"oneoftools/internal/middleware"
)

// SetupBoutiqueRoutes sets up the webhook, read and operator routes of boutique collections.
// Webhook routes check the Helius authorization header themselves.
func SetupBoutiqueRoutes(r *gin.Engine, h *handlers.BoutiqueHandler, opts Options) {
	boutique := r.Group("/api/collections/boutique")
	{
		boutique.POST("/webhook", h.Webhook)
		boutique.POST("/webhook/handle-task", h.HandleTask)
	}

	reads := boutique.Group("")
	if opts.ReadLimiter != nil {
		reads.Use(opts.ReadLimiter.Middleware())
	}
	{
		reads.GET("", h.ListCollections)
		reads.POST("", h.SubmitCollection)
		reads.GET("/:slug", h.GetCollection)
		reads.GET("/:slug/events", h.ListEvents)
		reads.GET("/:slug/stream", h.Stream)
	}

	admin := boutique.Group("/:slug", middleware.SharedSecret(opts.AdminSecret))
	{
		admin.POST("/add-mint", h.AddMint)
		admin.POST("/approve", h.Approve)
		admin.POST("/refresh-floor", h.RefreshFloor)
	}
}

// SetupNFTRoutes sets up per-mint operator routes
func SetupNFTRoutes(r *gin.Engine, h *handlers.BoutiqueHandler, opts Options) {
	nfts := r.Group("/api/nfts", middleware.SharedSecret(opts.AdminSecret))
	{
		nfts.POST("/:mintAddress/cache", h.CacheNFT)
	}
}
