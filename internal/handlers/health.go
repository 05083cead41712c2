package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"oneoftools/pkg/solana"
)

// HealthHandler reports liveness and upstream RPC health
type HealthHandler struct {
	endpoints []solana.RPCEndpoint
	timeout   time.Duration
}

func NewHealthHandler(endpoints []solana.RPCEndpoint, timeout time.Duration) *HealthHandler {
	return &HealthHandler{endpoints: endpoints, timeout: timeout}
}

func (h *HealthHandler) Live(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

// RPC probes every configured node; any unhealthy node answers 503
func (h *HealthHandler) RPC(c *gin.Context) {
	results := solana.CheckRPCList(c.Request.Context(), h.endpoints, h.timeout)

	healthy := true
	for _, r := range results {
		if !r.OK {
			healthy = false
		}
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"success": healthy, "results": results})
}
