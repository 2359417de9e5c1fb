package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/johnconna/pyforce-evaluation-v2/internal/domain"
	"go.uber.org/zap"
)

// ResultHandler handles fetch-ledger HTTP requests
type ResultHandler struct {
	ledger domain.FetchLedger
	logger *zap.Logger
}

// NewResultHandler creates a new result handler
func NewResultHandler(ledger domain.FetchLedger, logger *zap.Logger) *ResultHandler {
	return &ResultHandler{ledger: ledger, logger: logger}
}

// ListResults handles GET /api/v1/results
func (h *ResultHandler) ListResults(c *gin.Context) {
	status := domain.FetchStatus(c.Query("status"))
	if status == "" {
		status = domain.StatusFailed
	}
	switch status {
	case domain.StatusSuccess, domain.StatusSkipped, domain.StatusFailed:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status: " + string(status)})
		return
	}

	records, err := h.ledger.FindByStatus(status)
	if err != nil {
		h.logger.Error("Failed to list records", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, records)
}

// GetStats handles GET /api/v1/results/stats
func (h *ResultHandler) GetStats(c *gin.Context) {
	stats, err := h.ledger.GetStats()
	if err != nil {
		h.logger.Error("Failed to get stats", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// ListRuns handles GET /api/v1/runs
func (h *ResultHandler) ListRuns(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = parsed
	}

	runs, err := h.ledger.ListRuns(limit)
	if err != nil {
		h.logger.Error("Failed to list runs", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, runs)
}

// GetRunResults handles GET /api/v1/runs/:id/results
func (h *ResultHandler) GetRunResults(c *gin.Context) {
	records, err := h.ledger.FindByRun(c.Param("id"))
	if err != nil {
		h.logger.Error("Failed to get run results", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, records)
}
