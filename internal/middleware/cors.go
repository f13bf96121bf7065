package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// CORS allows the configured origins. An origin pattern may hold one '*',
// e.g. https://*.onrender.com.
func CORS(allowedOrigins []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && OriginAllowed(origin, allowedOrigins) {
			h := c.Writer.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, X-Requested-With, X-Request-ID")
			h.Set("Access-Control-Expose-Headers", "X-Request-ID, X-Detected-Objects")
			h.Add("Vary", "Origin")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// OriginAllowed matches origin against the configured patterns.
func OriginAllowed(origin string, patterns []string) bool {
	for _, p := range patterns {
		if p == "*" || p == origin {
			return true
		}
		prefix, suffix, ok := strings.Cut(p, "*")
		if !ok {
			continue
		}
		if len(origin) <= len(prefix)+len(suffix) ||
			!strings.HasPrefix(origin, prefix) || !strings.HasSuffix(origin, suffix) {
			continue
		}
		// the wildcard covers subdomain labels only
		if middle := origin[len(prefix) : len(origin)-len(suffix)]; !strings.ContainsAny(middle, "/:") {
			return true
		}
	}
	return false
}
