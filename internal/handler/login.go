package handler

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"objectvision/internal/config"
	"objectvision/internal/logger"
	"objectvision/internal/middleware"
)

const authCookieMaxAge = 30 * 24 * 3600

// LoginHandler handles POST /auth/login by validating the admin password and
// issuing an auth cookie.
func LoginHandler(cfg config.AuthConfig, logger *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.AdminPassword == "" {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Admin login is disabled"})
			return
		}

		password := c.PostForm("password")
		if subtle.ConstantTimeCompare([]byte(password), []byte(cfg.AdminPassword)) != 1 {
			logger.Warning("Failed admin login from %s", c.ClientIP())
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Invalid password"})
			return
		}

		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(middleware.AuthCookie, middleware.AuthToken(cfg.AdminPassword), authCookieMaxAge, "/", "", false, true)
		logger.Info("Admin logged in from %s", c.ClientIP())
		c.Redirect(http.StatusSeeOther, "/")
	}
}

// LogoutHandler clears the auth cookie.
func LogoutHandler(c *gin.Context) {
	c.SetCookie(middleware.AuthCookie, "", -1, "/", "", false, true)
	c.Redirect(http.StatusSeeOther, "/")
}
