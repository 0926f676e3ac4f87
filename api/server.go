// Package api serves the merged opportunity dataset over HTTP.
package api

import (
	"errors"
	"net/http"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pevans/oppfeed/dataset"
	"github.com/pevans/oppfeed/opportunity"
)

// Pagination bounds for the list endpoint.
const (
	DefaultLimit = 50
	MaxLimit     = 1000
)

// APIServer serves the latest dataset. The dataset is read from disk on
// every request so a merge becomes visible without a restart.
type APIServer struct {
	layout  dataset.Layout
	metrics *Metrics
}

// NewAPIServer creates a server over the dataset in layout.
func NewAPIServer(layout dataset.Layout) *APIServer {
	return &APIServer{
		layout:  layout,
		metrics: NewMetrics(),
	}
}

// SetupRouter configures the Gin router with all API routes.
func (s *APIServer) SetupRouter() *gin.Engine {
	router := gin.Default()

	// Add CORS middleware
	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusOK)
			return
		}

		c.Next()
	})
	router.Use(s.metrics.Middleware())

	router.GET("/healthz", s.HandleHealth)
	router.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	api := router.Group("/api/v1/opportunities")
	api.GET("", s.HandleListOpportunities)
	api.GET("/:id", s.HandleGetOpportunity)

	return router
}

// ListOpportunitiesResponse is the body of GET /api/v1/opportunities.
type ListOpportunitiesResponse struct {
	Opportunities []opportunity.Opportunity `json:"opportunities"`
	Total         int                       `json:"total"`
	Limit         int                       `json:"limit"`
	Offset        int                       `json:"offset"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error code and message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(c *gin.Context, status int, code, message string) {
	c.JSON(status, ErrorResponse{Error: ErrorDetail{Code: code, Message: message}})
}

// loadDataset reads the latest dataset. A dataset that has never been
// merged is empty.
func (s *APIServer) loadDataset() ([]opportunity.Opportunity, error) {
	records, err := dataset.ReadJSON(s.layout.LatestJSON())
	if errors.Is(err, os.ErrNotExist) {
		records = []opportunity.Opportunity{}
		err = nil
	}
	if err != nil {
		return nil, err
	}

	s.metrics.datasetRecords.Set(float64(len(records)))
	return records, nil
}

// HandleHealth handles GET /healthz.
func (s *APIServer) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// HandleListOpportunities handles GET /api/v1/opportunities. Records keep
// the dataset order, newest first.
func (s *APIServer) HandleListOpportunities(c *gin.Context) {
	records, err := s.loadDataset()
	if err != nil {
		writeError(c, http.StatusInternalServerError, "internal_error", "Failed to read dataset: "+err.Error())
		return
	}

	filter := listFilter{
		source: c.Query("source"),
		tag:    c.Query("tag"),
		query:  strings.ToLower(strings.TrimSpace(c.Query("q"))),
	}

	if since := c.Query("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			writeError(c, http.StatusBadRequest, "invalid_parameter", "Invalid since parameter: must be RFC 3339 format")
			return
		}
		filter.since = &t
	}

	if until := c.Query("until"); until != "" {
		t, err := time.Parse(time.RFC3339, until)
		if err != nil {
			writeError(c, http.StatusBadRequest, "invalid_parameter", "Invalid until parameter: must be RFC 3339 format")
			return
		}
		filter.until = &t
	}

	limit := DefaultLimit
	if limitParam := c.Query("limit"); limitParam != "" {
		parsed, err := strconv.Atoi(limitParam)
		if err != nil || parsed < 1 {
			writeError(c, http.StatusBadRequest, "invalid_parameter", "Invalid limit parameter")
			return
		}
		limit = min(parsed, MaxLimit)
	}

	offset := 0
	if offsetParam := c.Query("offset"); offsetParam != "" {
		parsed, err := strconv.Atoi(offsetParam)
		if err != nil || parsed < 0 {
			writeError(c, http.StatusBadRequest, "invalid_parameter", "Invalid offset parameter")
			return
		}
		offset = parsed
	}

	matched := filter.apply(records)

	c.JSON(http.StatusOK, ListOpportunitiesResponse{
		Opportunities: paginate(matched, offset, limit),
		Total:         len(matched),
		Limit:         limit,
		Offset:        offset,
	})
}

// HandleGetOpportunity handles GET /api/v1/opportunities/:id.
func (s *APIServer) HandleGetOpportunity(c *gin.Context) {
	id := c.Param("id")

	records, err := s.loadDataset()
	if err != nil {
		writeError(c, http.StatusInternalServerError, "internal_error", "Failed to read dataset: "+err.Error())
		return
	}

	i := slices.IndexFunc(records, func(rec opportunity.Opportunity) bool { return rec.ID == id })
	if i < 0 {
		writeError(c, http.StatusNotFound, "not_found", "Opportunity with ID "+id+" not found")
		return
	}

	c.JSON(http.StatusOK, records[i])
}

type listFilter struct {
	source string
	tag    string
	query  string
	since  *time.Time
	until  *time.Time
}

// apply keeps the records matching every set criterion. Undated records
// never match a date bound.
func (f listFilter) apply(records []opportunity.Opportunity) []opportunity.Opportunity {
	filtered := []opportunity.Opportunity{}
	for _, rec := range records {
		if f.matches(rec) {
			filtered = append(filtered, rec)
		}
	}
	return filtered
}

func (f listFilter) matches(rec opportunity.Opportunity) bool {
	if f.source != "" && rec.Source != f.source {
		return false
	}
	if f.tag != "" && !rec.HasTag(f.tag) {
		return false
	}

	if f.since != nil || f.until != nil {
		published, ok := rec.Published()
		if !ok {
			return false
		}
		if f.since != nil && published.Before(*f.since) {
			return false
		}
		if f.until != nil && published.After(*f.until) {
			return false
		}
	}

	if f.query != "" {
		text := strings.ToLower(rec.Title)
		if rec.Summary != nil {
			text += "\n" + strings.ToLower(*rec.Summary)
		}
		if !strings.Contains(text, f.query) {
			return false
		}
	}

	return true
}

// paginate returns a slice of records for the given offset and limit.
func paginate(records []opportunity.Opportunity, offset, limit int) []opportunity.Opportunity {
	if offset >= len(records) {
		return []opportunity.Opportunity{}
	}

	end := min(offset+limit, len(records))

	return records[offset:end]
}
