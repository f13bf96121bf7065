package handler

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"objectvision/internal/logger"
)

var logFiles = map[string]string{
	"info":    logger.InfoFile,
	"warning": logger.WarningFile,
	"error":   logger.ErrorFile,
}

// ShowLogsHandler serves /logs/:level as text/plain.
func ShowLogsHandler(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		filename, ok := logFiles[c.Param("level")]
		if !ok {
			c.String(http.StatusNotFound, "Unknown log level: "+c.Param("level"))
			return
		}
		serveLogFile(c, log.Directory(), filename)
	}
}

// serveLogFile sets headers and serves a log file if it exists.
func serveLogFile(c *gin.Context, logDir, filename string) {
	filePath := filepath.Join(logDir, filename)

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		c.String(http.StatusNotFound, "Log file not found: "+filename)
		return
	}

	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.Header("Cache-Control", "no-cache")
	c.File(filePath)
}

// ClearLogsHandler truncates /logs/:level/clear via the logger.
func ClearLogsHandler(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		filename, ok := logFiles[c.Param("level")]
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Unknown log level"})
			return
		}
		if err := log.CleanLogs(filename); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "message": filename + " cleared"})
	}
}
