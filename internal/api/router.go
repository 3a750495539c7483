// Package api exposes the published tables, analytics and refresh controls
// over HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cefbursatil/TransportContractAnalyzer/internal/api/middleware"
	"github.com/cefbursatil/TransportContractAnalyzer/internal/catalog"
	"github.com/cefbursatil/TransportContractAnalyzer/internal/config"
	"github.com/cefbursatil/TransportContractAnalyzer/internal/filter"
	"github.com/cefbursatil/TransportContractAnalyzer/internal/models"
	"github.com/cefbursatil/TransportContractAnalyzer/internal/refresh"
)

// Refresher is the part of refresh.Scheduler the API drives.
type Refresher interface {
	ForceRefresh(ctx context.Context) bool
	Status() refresh.Status
	SetNotificationRecipients(recipients []string)
	Recipients() []string
}

// SearchStore reads and replaces the persisted search configuration.
type SearchStore interface {
	Current() config.SearchConfig
	Save(cfg config.SearchConfig) (config.SearchConfig, error)
}

// RunLister returns recent refresh cycles, newest first.
type RunLister interface {
	RecentRuns(ctx context.Context, limit int) ([]models.RefreshRun, error)
}

// Deps are the collaborators behind the routes. Runs is optional.
type Deps struct {
	Catalog   *catalog.Catalog
	Refresher Refresher
	Search    SearchStore
	Runs      RunLister
	Logger    *slog.Logger
}

// NewRouter builds the gin engine with middleware and every route.
func NewRouter(deps Deps) *gin.Engine {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	h := &Handler{
		catalog:   deps.Catalog,
		refresher: deps.Refresher,
		search:    deps.Search,
		runs:      deps.Runs,
		filter:    filter.NewEngine(deps.Logger),
		logger:    deps.Logger,
	}

	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery(deps.Logger))
	router.Use(middleware.RequestLogger(deps.Logger))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})

	api := router.Group("/api")
	{
		api.GET("/contracts/:dataset", h.ListContracts)
		api.GET("/contracts/:dataset/analytics", h.Analytics)
		api.GET("/status", h.Status)
		api.POST("/refresh", h.Refresh)
		api.GET("/notifications/recipients", h.GetRecipients)
		api.PUT("/notifications/recipients", h.SetRecipients)
		api.GET("/config/search", h.GetSearch)
		api.PUT("/config/search", h.SaveSearch)
	}
	return router
}
