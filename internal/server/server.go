package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/scilab-ai/scilab/backend/internal/bootstrap"
	"github.com/scilab-ai/scilab/backend/internal/config"
	"github.com/scilab-ai/scilab/backend/internal/metrics"
	"github.com/scilab-ai/scilab/backend/internal/queue"
	mid "github.com/scilab-ai/scilab/backend/internal/server/middleware"
	"github.com/scilab-ai/scilab/backend/internal/storage"
	"github.com/scilab-ai/scilab/backend/internal/system"
	"github.com/scilab-ai/scilab/backend/pkg/community"
	"github.com/scilab-ai/scilab/backend/pkg/loader/pdf"
	"github.com/scilab-ai/scilab/backend/pkg/logger"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rabbitmq/amqp091-go"
)

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i any) error {
	if err := cv.validator.Struct(i); err != nil {
		return err
	}
	return nil
}

// New returns an echo instance serving app.
func New(app *mid.App, bodyLimit string) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = &CustomValidator{validator: validator.New()}

	e.Use(mid.AppContextMiddleware(app))
	e.Use(middleware.CORS())
	e.Use(middleware.RequestLogger())
	e.Use(middleware.Recover())
	if bodyLimit != "" {
		e.Use(middleware.BodyLimit(bodyLimit))
	}

	RegisterRoutes(e)
	return e
}

func Init(cfg config.Config) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	components, err := bootstrap.Build(ctx, bootstrap.Params{Config: cfg, Metrics: m})
	if err != nil {
		logger.Fatal("Failed to initialize graph components", "err", err)
	}
	defer components.Close()

	app := &mid.App{
		Components: components,
		Parser:     pdf.NewParser(),
		Metrics:    m,
		APIKey:     cfg.Server.APIKey,
	}

	if cfg.SystemDatabaseURL != "" {
		sys, err := system.Open(cfg.SystemDatabaseURL)
		if err != nil {
			logger.Fatal("Failed to open system database", "url", system.Redact(cfg.SystemDatabaseURL), "err", err)
		}
		defer sys.Close()
		if cfg.Graph.MigrationsEnabled {
			if err := sys.Migrate(); err != nil {
				logger.Fatal("Failed to migrate system database", "err", err)
			}
		}
		app.System = sys
	}

	if cfg.Server.AuthURL != "" {
		jwksUrl := cfg.Server.AuthURL + "/jwks"
		k, err := keyfunc.NewDefault([]string{jwksUrl})
		if err != nil {
			logger.Fatal("Failed to load jwks keys", "err", err)
		}
		app.Key = &k
	}

	if cfg.RabbitMQ.Enabled() && cfg.S3.Enabled() {
		que, err := queue.Init(ctx, cfg.RabbitMQ)
		if err != nil {
			logger.Fatal("Failed to initialize queue", "err", err)
		}
		defer que.Close()

		ch, err := que.Channel()
		if err != nil {
			logger.Fatal("Failed to open channel", "err", err)
		}
		if err := queue.SetupQueues(ch, queue.Queues); err != nil {
			logger.Fatal("Failed to set up queues", "err", err)
		}

		subCh, err := que.Channel()
		if err != nil {
			logger.Fatal("Failed to open subscription channel", "err", err)
		}
		updates, err := queue.SubscribeTopic(subCh, queue.TopicGraphUpdated)
		if err != nil {
			logger.Fatal("Failed to subscribe to graph updates", "err", err)
		}
		go watchGraphUpdates(ctx, updates, components.Store)

		s3Client, err := storage.NewS3Client(ctx, cfg.S3)
		if err != nil {
			logger.Fatal("Failed to initialize s3 client", "err", err)
		}

		app.Queue = ch
		app.S3 = s3Client
		app.S3Bucket = cfg.S3.Bucket
	}

	e := New(app, cfg.Server.BodyLimit)

	go func() {
		port := cfg.Server.Port
		if port == "" {
			port = "8080"
		}
		logger.Info("Starting server", "port", port, "auth", app.AuthEnabled(), "async_ingest", app.AsyncIngest())
		if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed shutting down server", "err", err)
		}
	}()

	<-ctx.Done()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Error("Failed to shutdown server", "err", err)
	}
}

// watchGraphUpdates rebuilds the local community snapshot whenever a
// worker reports a changed graph.
func watchGraphUpdates(ctx context.Context, updates <-chan amqp091.Delivery, st *community.Store) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-updates:
			if !ok {
				logger.Warn("[Queue] Graph update subscription closed")
				return
			}
			logger.Info("[Queue] Graph updated by worker, rebuilding communities", "body", string(msg.Body))
			if err := st.BuildCommunities(ctx); err != nil {
				logger.Error("[Queue] Community rebuild failed", "err", err)
			}
		}
	}
}
