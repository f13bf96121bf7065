package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// AuthCookie holds the admin session token.
const AuthCookie = "authenticated"

// AuthToken derives the cookie value for an admin password.
func AuthToken(password string) string {
	sum := sha256.Sum256([]byte("objectvision-admin:" + password))
	return hex.EncodeToString(sum[:])
}

// ValidToken reports whether token was issued for password.
func ValidToken(token, password string) bool {
	want := AuthToken(password)
	return subtle.ConstantTimeCompare([]byte(token), []byte(want)) == 1
}

// AuthMiddleware admits requests carrying the admin cookie. With no password
// configured the protected routes do not exist.
func AuthMiddleware(password string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if password == "" {
			c.AbortWithStatus(http.StatusNotFound)
			return
		}

		cookie, err := c.Cookie(AuthCookie)
		if err != nil || !ValidToken(cookie, password) {
			// API and AJAX callers get a status, browsers go to the login page
			if c.GetHeader("X-Requested-With") == "XMLHttpRequest" ||
				strings.Contains(c.GetHeader("Accept"), "application/json") ||
				c.Request.Method != http.MethodGet {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Unauthorized"})
				return
			}
			c.Redirect(http.StatusSeeOther, "/")
			c.Abort()
			return
		}
		c.Next()
	}
}
