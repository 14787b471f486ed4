package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/clinicore/clinic-api/pkg/httputil"
	"github.com/clinicore/clinic-api/pkg/logger"
)

// ErrorHandler maps errors attached via c.Error to the response taxonomy.
// Handlers that already wrote a response are left alone.
func ErrorHandler(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		for _, e := range c.Errors {
			log.Error(e.Err, "request error",
				"request_id", c.GetString(ContextRequestID),
				"path", c.Request.URL.Path,
				"method", c.Request.Method,
			)
		}

		if c.Writer.Written() {
			return
		}
		httputil.RespondWithError(c, c.Errors.Last().Err)
	}
}
