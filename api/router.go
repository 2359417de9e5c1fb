package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/johnconna/pyforce-evaluation-v2/api/handlers"
	"github.com/johnconna/pyforce-evaluation-v2/api/middleware"
	"github.com/johnconna/pyforce-evaluation-v2/internal/domain"
)

// SetupRouter sets up the read-only HTTP API over the fetch ledger
func SetupRouter(ledger domain.FetchLedger, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Middleware
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Recovery(logger))

	// Health endpoints
	healthHandler := handlers.NewHealthHandler(ledger)
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		resultHandler := handlers.NewResultHandler(ledger, logger)
		v1.GET("/results", resultHandler.ListResults)
		v1.GET("/results/stats", resultHandler.GetStats)
		v1.GET("/runs", resultHandler.ListRuns)
		v1.GET("/runs/:id/results", resultHandler.GetRunResults)
	}

	return router
}
