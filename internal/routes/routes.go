package routes

import (
	"github.com/gin-gonic/gin"

	"oneoftools/internal/handlers"
	"oneoftools/internal/middleware"
)

// Options configures the router
type Options struct {
	AllowedOrigins []string
	// AdminSecret gates the operator routes
	AdminSecret string
	ReadLimiter *middleware.RateLimiter
}

// SetupRouter initializes and returns the Gin router with all routes configured
func SetupRouter(boutique *handlers.BoutiqueHandler, health *handlers.HealthHandler, opts Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.CORS(opts.AllowedOrigins))

	SetupHealthRoutes(r, health)
	SetupBoutiqueRoutes(r, boutique, opts)
	SetupNFTRoutes(r, boutique, opts)

	return r
}
