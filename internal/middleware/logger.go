package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/clinicore/clinic-api/pkg/logger"
)

// RequestLogger logs one line per request. Bodies are never logged; requests
// in this system routinely carry patient data.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path = path + "?" + raw
		}

		c.Next()

		status := c.Writer.Status()
		fields := []interface{}{
			"request_id", c.GetString(ContextRequestID),
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		}
		if clinicID := c.GetHeader(HeaderClinicID); clinicID != "" {
			fields = append(fields, "clinic_id", clinicID)
		}

		msg := "request completed"
		switch {
		case status >= 500:
			var err error
			if last := c.Errors.Last(); last != nil {
				err = last.Err
			}
			log.Error(err, msg, fields...)
		case status >= 400:
			log.Warn(msg, fields...)
		default:
			log.Info(msg, fields...)
		}
	}
}
