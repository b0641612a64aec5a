package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sis-api/internal/policy"
	appErrors "github.com/noah-isme/sis-api/pkg/errors"
	"github.com/noah-isme/sis-api/pkg/response"
)

// RequirePolicy rejects callers whose role is not granted action. Services repeat the
// check; the middleware only saves a round trip for obvious denials.
func RequirePolicy(action policy.Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := CurrentIdentity(c)
		if !ok {
			response.Abort(c, appErrors.ErrUnauthorized)
			return
		}
		if err := policy.Authorize(identity, action); err != nil {
			response.Abort(c, err)
			return
		}
		c.Next()
	}
}
