package logger

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// GinMiddleware logs one line per request and plants a request-scoped
// logger in both the gin context and the request's context.Context, so
// downstream code sees the same request_id the access log carries.
func GinMiddleware(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		requestID := c.GetString("request_id")
		reqLog := log.With(
			zap.String("request_id", requestID),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
		)
		c.Set("logger", reqLog)

		ctx, _ := WithRequestID(c.Request.Context(), reqLog, requestID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.Int("bytes_out", c.Writer.Size()),
		}
		if query != "" {
			fields = append(fields, zap.String("query", query))
		}
		// The actor middleware runs later in the chain, so the resolved
		// staff member is only available here, after c.Next().
		if actor, ok := c.Get("actor_id"); ok {
			if id, ok := actor.(uuid.UUID); ok {
				fields = append(fields, zap.String("actor_id", id.String()))
			}
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.Strings("errors", c.Errors.Errors()))
		}

		// Trace correlation when the tracing middleware is active.
		completionLog := WithTraceContext(c.Request.Context(), reqLog)

		switch {
		case status >= http.StatusInternalServerError:
			completionLog.Error("request completed", fields...)
		case status >= http.StatusBadRequest:
			completionLog.Warn("request completed", fields...)
		default:
			completionLog.Info("request completed", fields...)
		}
	}
}

// Recovery converts a handler panic into a 500 and an error log instead of
// a dead connection.
func Recovery(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("handler panicked",
					zap.String("request_id", c.GetString("request_id")),
					zap.String("method", c.Request.Method),
					zap.String("path", c.Request.URL.Path),
					zap.Any("panic", r),
					zap.Stack("stacktrace"),
				)
				c.AbortWithStatus(http.StatusInternalServerError)
			}
		}()
		c.Next()
	}
}

// FromGin returns the request-scoped logger planted by GinMiddleware, or a
// no-op logger when the middleware is not installed (tests, health checks).
func FromGin(c *gin.Context) *zap.Logger {
	if v, ok := c.Get("logger"); ok {
		if l, ok := v.(*zap.Logger); ok {
			return l
		}
	}
	return zap.NewNop()
}
