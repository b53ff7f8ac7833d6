package routes

import (
	"net/http"
	"time"

	"github.com/scilab-ai/scilab/backend/internal/server/middleware"
	"github.com/scilab-ai/scilab/backend/pkg/logger"

	"github.com/labstack/echo/v4"
)

func HealthHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "scilab-ai",
	})
}

// StatusHandler reports graph statistics. Store failures are reported in
// the body with status 200.
func StatusHandler(c echo.Context) error {
	type statusResponse struct {
		Status           string `json:"status"`
		PendingDocuments int    `json:"pending_documents"`
		TripletCount     int    `json:"triplet_count"`
		CommunityCount   int    `json:"community_count"`
		HasData          bool   `json:"has_data"`
	}
	type statusError struct {
		Status string `json:"status"`
		Error  string `json:"error"`
	}

	app := c.(*middleware.AppContext).App
	triplets, err := app.Store.CountTriplets(c.Request().Context())
	if err != nil {
		logger.Error("[Server] Failed to count triplets", "err", err)
		return c.JSON(http.StatusOK, statusError{Status: "error", Error: err.Error()})
	}

	return c.JSON(http.StatusOK, statusResponse{
		Status:           "ready",
		PendingDocuments: app.Pipeline.Registry().Pending(),
		TripletCount:     triplets,
		CommunityCount:   app.Store.Stats().Communities,
		HasData:          triplets > 0,
	})
}

// RebuildCommunitiesHandler reclusters the graph and regenerates every
// summary. Concurrent calls share one build.
func RebuildCommunitiesHandler(c echo.Context) error {
	type rebuildResponse struct {
		Status         string    `json:"status"`
		CommunityCount int       `json:"communityCount"`
		EntityCount    int       `json:"entityCount"`
		BuiltAt        time.Time `json:"builtAt"`
	}

	app := c.(*middleware.AppContext).App
	if err := app.Store.BuildCommunities(c.Request().Context()); err != nil {
		logger.Error("[Server] Community rebuild failed", "err", err)
		return detail(c, http.StatusInternalServerError, "Community rebuild failed: "+err.Error())
	}

	stats := app.Store.Stats()
	return c.JSON(http.StatusOK, rebuildResponse{
		Status:         "success",
		CommunityCount: stats.Communities,
		EntityCount:    stats.Entities,
		BuiltAt:        stats.BuiltAt,
	})
}

func MetricsHandler(c echo.Context) error {
	app := c.(*middleware.AppContext).App
	if app.Metrics == nil {
		return detail(c, http.StatusNotFound, "Metrics are disabled")
	}
	app.Metrics.Handler().ServeHTTP(c.Response(), c.Request())
	return nil
}
