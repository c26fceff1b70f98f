package routes

import (
	"net/http"
	"strings"

	"github.com/graphweave/graphrag/internal/server/middleware"
	"github.com/graphweave/graphrag/pkg/query"

	"github.com/labstack/echo/v4"
)

type queryResponse struct {
	Answer  string                   `json:"answer"`
	Context query.QueryTraceSnapshot `json:"context"`
}

func PostGlobalQueryHandler(c echo.Context) error {
	type globalQueryBody struct {
		Question string `json:"question" validate:"required"`
	}

	data := new(globalQueryBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	data.Question = strings.TrimSpace(data.Question)
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	engine := c.(*middleware.AppContext).App.Engine
	trace := query.NewQueryTrace()
	answer := engine.GlobalQuery(c.Request().Context(), data.Question, query.WithTracer(trace))

	return c.JSON(http.StatusOK, queryResponse{Answer: answer, Context: trace.Snapshot()})
}

func PostLocalQueryHandler(c echo.Context) error {
	type localQueryBody struct {
		Question string `json:"question" validate:"required"`
		Entity   string `json:"entity" validate:"required"`
	}

	data := new(localQueryBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	data.Question = strings.TrimSpace(data.Question)
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	engine := c.(*middleware.AppContext).App.Engine
	trace := query.NewQueryTrace()
	// Entity names are matched exactly, so the name is not trimmed.
	answer := engine.LocalQuery(c.Request().Context(), data.Question, data.Entity, query.WithTracer(trace))

	return c.JSON(http.StatusOK, queryResponse{Answer: answer, Context: trace.Snapshot()})
}
