package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/johnconna/pyforce-evaluation-v2/internal/domain"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	ledger domain.FetchLedger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(ledger domain.FetchLedger) *HealthHandler {
	return &HealthHandler{ledger: ledger}
}

// HealthResponse represents a health check response
type HealthResponse struct {
	Status string `json:"status"`
	Ledger struct {
		Reachable bool  `json:"reachable"`
		Runs      int64 `json:"runs"`
	} `json:"ledger"`
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	response := HealthResponse{Status: "ok"}
	if stats, err := h.ledger.GetStats(); err == nil {
		response.Ledger.Reachable = true
		response.Ledger.Runs = stats.Runs
	}

	c.JSON(http.StatusOK, response)
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(c *gin.Context) {
	if _, err := h.ledger.GetStats(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": "ledger unreachable",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
