package routes

import (
	"errors"
	"net/http"

	"github.com/scilab-ai/scilab/backend/internal/server/middleware"
	"github.com/scilab-ai/scilab/backend/internal/system"
	"github.com/scilab-ai/scilab/backend/pkg/logger"

	"github.com/labstack/echo/v4"
)

// DBStatusHandler checks the system database, or the graph store when no
// system database is configured.
func DBStatusHandler(c echo.Context) error {
	type dbStatusResponse struct {
		Status string `json:"status"`
	}

	app := c.(*middleware.AppContext).App
	ctx := c.Request().Context()

	var err error
	if app.System != nil {
		err = app.System.Ping(ctx)
	} else {
		err = app.Store.Ping(ctx)
	}
	if err != nil {
		return detail(c, http.StatusServiceUnavailable, "Database connection failed")
	}

	return c.JSON(http.StatusOK, dbStatusResponse{Status: "ok"})
}

func GetSystemInfoHandler(c echo.Context) error {
	app := c.(*middleware.AppContext).App
	if app.System == nil {
		return detail(c, http.StatusServiceUnavailable, "System database is not configured")
	}

	info, err := app.System.GetInfo(c.Request().Context(), c.Param("key"))
	if errors.Is(err, system.ErrNotFound) {
		return detail(c, http.StatusNotFound, "System info not found")
	}
	if err != nil {
		logger.Error("[Server] Failed to read system info", "key", c.Param("key"), "err", err)
		return detail(c, http.StatusInternalServerError, "Internal server error")
	}

	return c.JSON(http.StatusOK, info)
}

func PutSystemInfoHandler(c echo.Context) error {
	type systemInfoBody struct {
		Key   string  `json:"key" validate:"required,max=255"`
		Value *string `json:"value"`
	}

	data := new(systemInfoBody)
	if err := c.Bind(data); err != nil {
		return detail(c, http.StatusBadRequest, "Invalid request body")
	}
	if err := c.Validate(data); err != nil {
		return detail(c, http.StatusBadRequest, "Invalid request body")
	}

	app := c.(*middleware.AppContext).App
	if app.System == nil {
		return detail(c, http.StatusServiceUnavailable, "System database is not configured")
	}

	info, err := app.System.UpsertInfo(c.Request().Context(), data.Key, data.Value)
	if err != nil {
		logger.Error("[Server] Failed to write system info", "key", data.Key, "err", err)
		return detail(c, http.StatusInternalServerError, "Internal server error")
	}

	return c.JSON(http.StatusOK, info)
}
