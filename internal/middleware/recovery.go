package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/clinicore/clinic-api/pkg/logger"
)

// Recovery converts panics into 500 responses with a stack trace in the log.
func Recovery(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error(fmt.Errorf("panic: %v", r), "request panic recovered",
					"request_id", c.GetString(ContextRequestID),
					"method", c.Request.Method,
					"path", c.Request.URL.Path,
					"stack", string(debug.Stack()),
				)

				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"success":    false,
					"message":    "Internal server error",
					"request_id": c.GetString(ContextRequestID),
				})
			}
		}()
		c.Next()
	}
}
