package exports

import (
	"context"
	"net/http"

	"leadgen_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// KeyStore resolves and touches export API keys.
type KeyStore interface {
	GetAPIKeyByHash(ctx context.Context, keyHash string) (APIKey, error)
	TouchAPIKey(ctx context.Context, keyID uuid.UUID)
}

const exportKeyIDKey = "exportKeyID"

// APIKeyAuthMiddleware validates export API keys for export endpoints.
func APIKeyAuthMiddleware(keys KeyStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		plaintext := c.GetHeader("X-Export-API-Key")
		if plaintext == "" {
			httpkit.Error(c, http.StatusUnauthorized, "missing export API key", nil)
			c.Abort()
			return
		}

		key, err := keys.GetAPIKeyByHash(c.Request.Context(), HashKey(plaintext))
		if err != nil {
			httpkit.Error(c, http.StatusUnauthorized, "invalid export API key", nil)
			c.Abort()
			return
		}

		keys.TouchAPIKey(c.Request.Context(), key.ID)
		c.Set(exportKeyIDKey, key.ID)
		c.Next()
	}
}
