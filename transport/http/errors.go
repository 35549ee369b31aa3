package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/layer-3/hoopgate/core"
	"github.com/layer-3/hoopgate/internal/logger"
)

// writeError maps gate errors to a status and a client-safe message.
// Anything unrecognized is logged and reported with fallback.
func writeError(c *gin.Context, err error, fallback string) {
	statusCode := http.StatusInternalServerError
	errorMsg := fallback

	switch {
	case errors.Is(err, core.ErrLinkNotFound):
		statusCode = http.StatusNotFound
		errorMsg = "Link not found"
	case errors.Is(err, core.ErrNotFound), errors.Is(err, core.ErrAlreadyConsumed):
		statusCode = http.StatusForbidden
		errorMsg = "Request expired"
	case errors.Is(err, core.ErrHandshakeFailed):
		statusCode = http.StatusForbidden
		errorMsg = "Handshake failed"
	case errors.Is(err, core.ErrAbnormalBehavior):
		statusCode = http.StatusForbidden
		errorMsg = "Abnormal behavior"
	case errors.Is(err, core.ErrSessionExpired):
		statusCode = http.StatusNotFound
		errorMsg = "Session expired"
	case errors.Is(err, core.ErrPrerequisiteMissing):
		statusCode = http.StatusForbidden
		errorMsg = "Step 1 required"
	default:
		logger.From(c.Request.Context()).Error("request failed", zap.Error(err))
	}

	c.JSON(statusCode, gin.H{"error": errorMsg})
}
