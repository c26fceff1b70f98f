package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/graphweave/graphrag/internal/app"
	"github.com/graphweave/graphrag/internal/queue"
	mid "github.com/graphweave/graphrag/internal/server/middleware"
	"github.com/graphweave/graphrag/internal/util"
	"github.com/graphweave/graphrag/pkg/logger"

	"github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
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

// New returns an echo instance serving the API for a.
func New(a *mid.App) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = &CustomValidator{validator: validator.New()}

	e.Use(mid.AppContextMiddleware(a))
	e.Use(middleware.CORS())
	e.Use(middleware.RequestLogger())
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("1M"))

	RegisterRoutes(e)
	return e
}

// Init wires the server from the environment and blocks until SIGINT or
// SIGTERM.
func Init() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, graph, err := app.OpenStore(ctx, true)
	if err != nil {
		logger.Fatal("Failed to open database", "err", err)
	}
	defer pool.Close()

	aiClient, err := app.NewAIClient()
	if err != nil {
		logger.Fatal("Failed to create AI client", "err", err)
	}

	a := &mid.App{
		Graph:        graph,
		Engine:       app.NewQueryEngine(graph, aiClient),
		APIKey:       util.GetEnv("API_KEY"),
		JWTSecret:    []byte(util.GetEnv("JWT_SECRET")),
		AuthDisabled: util.GetEnvBool("AUTH_DISABLED", false),
	}
	if a.AuthDisabled {
		logger.Warn("Authentication is disabled")
	} else if a.APIKey == "" && len(a.JWTSecret) == 0 {
		logger.Warn("Neither API_KEY nor JWT_SECRET is set, every API request will be rejected")
	}

	if util.GetEnvBool("QUEUE_ENABLED", true) {
		conn, err := queue.Dial(ctx, queue.URLFromEnv(), 15)
		if err != nil {
			logger.Fatal("Failed to connect to RabbitMQ", "err", err)
		}
		defer conn.Close()
		ch, err := conn.Channel()
		if err != nil {
			logger.Fatal("Failed to open channel", "err", err)
		}
		defer ch.Close()
		if err := queue.SetupQueues(ch, []string{queue.IndexQueue}); err != nil {
			logger.Fatal("Failed to declare queues", "err", err)
		}
		a.Queue = ch
	}

	e := New(a)

	go func() {
		port := util.GetEnvString("PORT", "8080")
		logger.Info("Starting server", "port", port)
		if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed shutting down server", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shutdown server", "err", err)
	}
}
