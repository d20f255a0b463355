package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/annel0/mmo-region/internal/logging"
)

// RequestIDHeader заголовок с идентификатором запроса
const RequestIDHeader = "X-Request-ID"

// RequestLogger снабжает каждый HTTP-запрос идентификатором и пишет краткие логи.
// Идентификатор берётся из заголовка, затем из trace-ID OpenTelemetry, иначе uuid.
type RequestLogger struct {
	log *logging.Logger
}

func NewRequestLogger() *RequestLogger {
	return &RequestLogger{log: logging.GetComponentLogger("http")}
}

func (rl *RequestLogger) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			if sc := trace.SpanFromContext(c.Request.Context()).SpanContext(); sc.IsValid() {
				requestID = sc.TraceID().String()
			} else {
				requestID = uuid.NewString()
			}
		}
		c.Set("request_id", requestID)
		c.Header(RequestIDHeader, requestID)

		start := time.Now()
		method := c.Request.Method
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		c.Next()

		rl.log.Debug("[HTTP] %s %s %d %s ip=%s id=%s",
			method, path, c.Writer.Status(), time.Since(start), c.ClientIP(), requestID)
	}
}
