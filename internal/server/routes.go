package server

import (
	"github.com/scilab-ai/scilab/backend/internal/server/middleware"
	"github.com/scilab-ai/scilab/backend/internal/server/routes"

	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", routes.HealthHandler)
	e.GET("/metrics", routes.MetricsHandler)

	auth := middleware.AuthMiddleware
	admin := middleware.RequireAdmin

	// Paper routes
	e.POST("/papers/parse", routes.ParsePaperHandler, auth)
	e.POST("/papers/auto-tag", routes.AutoTagHandler, auth)

	// Graph RAG routes
	e.POST("/pdf", routes.UploadPDFHandler, auth)
	e.POST("/ingest", routes.IngestHandler, auth)
	e.POST("/chat", routes.ChatHandler, auth)
	e.GET("/status", routes.StatusHandler, auth)
	e.POST("/communities/rebuild", routes.RebuildCommunitiesHandler, auth, admin)

	// System routes
	e.GET("/system/db", routes.DBStatusHandler, auth)
	e.GET("/system/info/:key", routes.GetSystemInfoHandler, auth)
	e.PUT("/system/info", routes.PutSystemInfoHandler, auth, admin)
}
