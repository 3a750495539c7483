package api

import (
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cefbursatil/TransportContractAnalyzer/internal/analytics"
	"github.com/cefbursatil/TransportContractAnalyzer/internal/catalog"
	"github.com/cefbursatil/TransportContractAnalyzer/internal/config"
	"github.com/cefbursatil/TransportContractAnalyzer/internal/filter"
	"github.com/cefbursatil/TransportContractAnalyzer/internal/logger"
	"github.com/cefbursatil/TransportContractAnalyzer/internal/models"
)

const (
	defaultLimit = 100
	maxLimit     = 5000
	recentRuns   = 10
)

type Handler struct {
	catalog   *catalog.Catalog
	refresher Refresher
	search    SearchStore
	runs      RunLister
	filter    *filter.Engine
	logger    *slog.Logger
}

type contractsResponse struct {
	Dataset   models.DatasetTag `json:"dataset"`
	Total     int               `json:"total"`
	Offset    int               `json:"offset"`
	Limit     int               `json:"limit"`
	UpdatedAt *time.Time        `json:"updated_at,omitempty"`
	Contracts models.Table      `json:"contracts"`
}

// table resolves the dataset parameter and applies the query filters. It
// writes the error response itself and reports false on failure.
func (h *Handler) table(c *gin.Context) (models.DatasetTag, models.Table, time.Time, bool) {
	tag, err := models.ParseDatasetTag(c.Param("dataset"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return "", nil, time.Time{}, false
	}
	table, publishedAt := h.catalog.Get(tag)
	spec := filter.ParseQuery(c.Request.URL.Query())
	return tag, h.filter.Apply(table, spec), publishedAt, true
}

// ListContracts handles GET /api/contracts/:dataset.
func (h *Handler) ListContracts(c *gin.Context) {
	tag, table, publishedAt, ok := h.table(c)
	if !ok {
		return
	}

	offset, err := queryInt(c, "offset", 0)
	if err != nil || offset < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "offset must be a non-negative integer"})
		return
	}
	limit, err := queryInt(c, "limit", defaultLimit)
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
		return
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	sorted := sortTable(table, c.Query("sort"))
	page := models.Table{}
	if offset < len(sorted) {
		end := min(offset+limit, len(sorted))
		page = sorted[offset:end]
	}

	resp := contractsResponse{
		Dataset:   tag,
		Total:     len(sorted),
		Offset:    offset,
		Limit:     limit,
		Contracts: page,
	}
	if !publishedAt.IsZero() {
		resp.UpdatedAt = &publishedAt
	}
	c.JSON(http.StatusOK, resp)
}

// Analytics handles GET /api/contracts/:dataset/analytics.
func (h *Handler) Analytics(c *gin.Context) {
	tag, table, _, ok := h.table(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"dataset":   tag,
		"analytics": analytics.Summarize(table),
	})
}

// Status handles GET /api/status.
func (h *Handler) Status(c *gin.Context) {
	resp := gin.H{
		"scheduler": h.refresher.Status(),
		"datasets":  h.catalog.Stats(),
	}
	if h.runs != nil {
		runs, err := h.runs.RecentRuns(c.Request.Context(), recentRuns)
		if err != nil {
			logger.FromContext(c.Request.Context(), h.logger).Warn("failed to list recent runs", "error", err)
		} else {
			resp["recent_runs"] = runs
		}
	}
	c.JSON(http.StatusOK, resp)
}

// Refresh handles POST /api/refresh. It blocks until the cycle finishes.
func (h *Handler) Refresh(c *gin.Context) {
	ok := h.refresher.ForceRefresh(c.Request.Context())
	status := h.refresher.Status()

	code := http.StatusOK
	switch {
	case ok:
	case status.LastRun != nil && status.LastRun.Status == models.RunSkipped:
		code = http.StatusConflict
	default:
		code = http.StatusInternalServerError
	}
	c.JSON(code, gin.H{
		"success":  ok,
		"last_run": status.LastRun,
	})
}

type recipientsRequest struct {
	Recipients []string `json:"recipients" binding:"required"`
}

// GetRecipients handles GET /api/notifications/recipients.
func (h *Handler) GetRecipients(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"recipients": h.refresher.Recipients()})
}

// SetRecipients handles PUT /api/notifications/recipients.
func (h *Handler) SetRecipients(c *gin.Context) {
	var req recipientsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	h.refresher.SetNotificationRecipients(req.Recipients)
	c.JSON(http.StatusOK, gin.H{"recipients": h.refresher.Recipients()})
}

// GetSearch handles GET /api/config/search.
func (h *Handler) GetSearch(c *gin.Context) {
	c.JSON(http.StatusOK, h.search.Current())
}

// SaveSearch handles PUT /api/config/search.
func (h *Handler) SaveSearch(c *gin.Context) {
	var cfg config.SearchConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	saved, err := h.search.Save(cfg)
	if err != nil {
		logger.FromContext(c.Request.Context(), h.logger).Error("failed to save search config", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save search config"})
		return
	}
	c.JSON(http.StatusOK, saved)
}

var errBadInt = errors.New("not an integer")

func queryInt(c *gin.Context, key string, def int) (int, error) {
	raw, ok := c.GetQuery(key)
	if !ok || raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errBadInt
	}
	return n, nil
}

// sortTable orders rows newest first by signing date, or by contract value
// or publication date when asked.
func sortTable(table models.Table, key string) models.Table {
	switch key {
	case models.ColContractValue:
		out := table.Clone()
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].ContractValue > out[j].ContractValue
		})
		return out
	case models.ColPublicationDate:
		out := table.Clone()
		sort.SliceStable(out, func(i, j int) bool {
			a, b := out[i].PublicationDate, out[j].PublicationDate
			switch {
			case a == nil:
				return false
			case b == nil:
				return true
			default:
				return a.After(*b)
			}
		})
		return out
	default:
		return table.SortedBySigningDate()
	}
}
