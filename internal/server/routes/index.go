package routes

import (
	"net/http"

	"github.com/graphweave/graphrag/internal/queue"
	"github.com/graphweave/graphrag/internal/server/middleware"
	"github.com/graphweave/graphrag/pkg/logger"

	"github.com/labstack/echo/v4"
)

// PostIndexHandler queues an indexing run. The worker picks up every
// pending document, so the request carries no document list.
func PostIndexHandler(c echo.Context) error {
	type indexBody struct {
		Reason string `json:"reason" validate:"max=200"`
	}

	data := new(indexBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	cc := c.(*middleware.AppContext)
	if cc.App.Queue == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "Index queue not configured"})
	}

	req := queue.NewIndexRequest(data.Reason)
	if err := queue.PublishIndexRequest(c.Request().Context(), cc.App.Queue, req); err != nil {
		logger.Error("[Server] Failed to queue index request", "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to queue index request"})
	}
	logger.Info("[Server] Index run requested", "request_id", req.RequestID, "user", cc.User.UserID)

	return c.JSON(http.StatusAccepted, req)
}
