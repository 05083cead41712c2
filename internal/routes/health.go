package routes

import (
	"github.com/gin-gonic/gin"

	"oneoftools/internal/handlers"
)

// SetupHealthRoutes sets up liveness and RPC health probes
func SetupHealthRoutes(r *gin.Engine, h *handlers.HealthHandler) {
	r.Any("/health", h.Live)
	r.GET("/health/rpc", h.RPC)
}
