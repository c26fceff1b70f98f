package routes

import (
	"errors"
	"net/http"

	"github.com/graphweave/graphrag/internal/server/middleware"
	"github.com/graphweave/graphrag/pkg/common"
	"github.com/graphweave/graphrag/pkg/logger"
	"github.com/graphweave/graphrag/pkg/store"

	"github.com/labstack/echo/v4"
)

func GetCommunitiesHandler(c echo.Context) error {
	graph := c.(*middleware.AppContext).App.Graph

	communities, err := graph.Communities(c.Request().Context())
	if err != nil {
		logger.Error("[Server] Failed to list communities", "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}
	if communities == nil {
		communities = []common.Community{}
	}

	return c.JSON(http.StatusOK, communities)
}

func GetEntityHandler(c echo.Context) error {
	type getEntityParams struct {
		Name string `param:"name" validate:"required"`
	}

	params := new(getEntityParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request params"})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request params"})
	}

	graph := c.(*middleware.AppContext).App.Graph
	ctx := c.Request().Context()

	entity, err := graph.NodeByName(ctx, params.Name)
	if errors.Is(err, store.ErrNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Entity not found"})
	}
	if err != nil {
		logger.Error("[Server] Failed to load entity", "entity", params.Name, "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}

	neighbors, err := graph.EdgesTouching(ctx, entity.ID)
	if err != nil {
		logger.Error("[Server] Failed to load relationships", "entity", params.Name, "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}
	if neighbors == nil {
		neighbors = []common.Neighbor{}
	}

	return c.JSON(http.StatusOK, map[string]any{
		"entity":        entity,
		"relationships": neighbors,
	})
}
