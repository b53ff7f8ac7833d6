package middleware

import (
	"github.com/scilab-ai/scilab/backend/internal/bootstrap"
	"github.com/scilab-ai/scilab/backend/internal/metrics"
	"github.com/scilab-ai/scilab/backend/internal/queue"
	"github.com/scilab-ai/scilab/backend/internal/system"
	"github.com/scilab-ai/scilab/backend/pkg/loader"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/labstack/echo/v4"
)

// AppUser is the authenticated caller.
type AppUser struct {
	Subject string
	Role    string
}

type App struct {
	*bootstrap.Components

	Parser  loader.DocumentParser
	System  *system.Store
	Metrics *metrics.Metrics

	// Queue and S3 are nil when async ingest is not configured.
	Queue    queue.Channel
	S3       *s3.Client
	S3Bucket string

	// Key is nil when AUTH_URL is not set.
	Key    *keyfunc.Keyfunc
	APIKey string
}

// AsyncIngest reports whether ingest jobs can be handed to the worker.
func (a *App) AsyncIngest() bool {
	return a.Queue != nil && a.S3 != nil
}

// AuthEnabled reports whether requests need a bearer token.
func (a *App) AuthEnabled() bool {
	return a.Key != nil || a.APIKey != ""
}

type AppContext struct {
	echo.Context
	App  *App
	User *AppUser
}

func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cc := &AppContext{c, app, nil}
			return next(cc)
		}
	}
}
