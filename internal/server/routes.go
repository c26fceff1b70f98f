package server

import (
	"github.com/graphweave/graphrag/internal/server/middleware"
	"github.com/graphweave/graphrag/internal/server/routes"

	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(200, "OK")
	})

	apiRoutes := e.Group("/api", middleware.AuthMiddleware)

	// Query routes
	apiRoutes.POST("/query/global", routes.PostGlobalQueryHandler, middleware.RequirePermission(middleware.PermissionQuery))
	apiRoutes.POST("/query/local", routes.PostLocalQueryHandler, middleware.RequirePermission(middleware.PermissionQuery))

	// Graph routes
	apiRoutes.GET("/communities", routes.GetCommunitiesHandler, middleware.RequirePermission(middleware.PermissionRead))
	apiRoutes.GET("/entities/:name", routes.GetEntityHandler, middleware.RequirePermission(middleware.PermissionRead))

	// Index routes
	apiRoutes.POST("/index", routes.PostIndexHandler, middleware.RequirePermission(middleware.PermissionIndex))
}
