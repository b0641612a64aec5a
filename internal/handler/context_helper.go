package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sis-api/internal/middleware"
	"github.com/noah-isme/sis-api/internal/models"
	appErrors "github.com/noah-isme/sis-api/pkg/errors"
	"github.com/noah-isme/sis-api/pkg/response"
)

// identityFromContext returns the caller or writes 401 and returns nil.
func identityFromContext(c *gin.Context) *models.Identity {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return nil
	}
	return identity
}

func invalidPayload(c *gin.Context, message string) {
	response.Error(c, appErrors.Clone(appErrors.ErrValidation, message))
}
