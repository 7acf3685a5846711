package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/openclaw/openclaw/internal/apperrors"
	"github.com/openclaw/openclaw/internal/logger"
)

// respondError maps err to the status-code policy from §6: typed
// AppErrors resolve via apperrors.HTTPStatus; everything else is a 500
// and gets logged, since it represents a bug rather than an expected
// domain condition.
func respondError(c *gin.Context, log *logger.Logger, err error) {
	if kind, ok := apperrors.KindOf(err); ok {
		status := apperrors.HTTPStatus(kind)
		c.JSON(status, gin.H{"error": err.Error(), "kind": string(kind)})
		return
	}
	log.Error("unhandled request error", zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}
