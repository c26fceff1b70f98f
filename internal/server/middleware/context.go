package middleware

import (
	"context"

	"github.com/graphweave/graphrag/internal/queue"
	"github.com/graphweave/graphrag/pkg/common"
	"github.com/graphweave/graphrag/pkg/query"

	"github.com/labstack/echo/v4"
)

type AppUser struct {
	UserID      string
	Role        string
	Permissions []string
}

// GraphReader is the read side of the graph store the API serves from.
type GraphReader interface {
	query.GraphReader
	Communities(ctx context.Context) ([]common.Community, error)
}

type App struct {
	Graph  GraphReader
	Engine *query.Engine
	// Queue is nil when the server runs without a broker; index requests
	// are then refused.
	Queue queue.Publisher

	APIKey       string
	JWTSecret    []byte
	AuthDisabled bool
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
