package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/benjarmc/portal-pji-project-sub000/internal/infrastructure/observability/logging"
	"github.com/benjarmc/portal-pji-project-sub000/internal/infrastructure/security"
)

const storageKeyContextKey = "storageKey"

// SessionConfig configures the browser session cookie.
type SessionConfig struct {
	CookieName string
	Secret     string
	Secure     bool
	TTL        time.Duration
}

// BrowserSession resolves the storage key of the browser from its signed
// cookie, minting a new key and cookie when there is none or it does not
// verify. The cookie is re-issued on every request so it lives as long as
// the wizard state does.
func BrowserSession(cfg SessionConfig, logger *logging.ChanneledLogger) gin.HandlerFunc {
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	return func(c *gin.Context) {
		key := ""
		if raw, err := c.Cookie(cfg.CookieName); err == nil && raw != "" {
			parsed, perr := security.ParseBrowserToken(raw, cfg.Secret)
			if perr == nil {
				key = parsed
			} else {
				logger.HTTP().Debug("Discarding invalid session cookie", "path", c.Request.URL.Path)
			}
		}
		if key == "" {
			key = security.GenerateStorageKey()
		}

		token, err := security.IssueBrowserToken(key, cfg.Secret, cfg.TTL)
		if err != nil {
			logger.HTTP().Error("Failed to issue session cookie", "error", err.Error())
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "session unavailable"})
			return
		}
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(cfg.CookieName, token, int(cfg.TTL.Seconds()), "/", "", cfg.Secure, true)

		c.Set(storageKeyContextKey, key)
		c.Next()
	}
}

// StorageKey returns the storage key resolved by BrowserSession.
func StorageKey(c *gin.Context) string {
	return c.GetString(storageKeyContextKey)
}
