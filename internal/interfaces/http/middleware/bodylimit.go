package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fleetlease/backend/internal/interfaces/http/dto"
)

// BodyLimit caps request body size. Ledger payloads are small; anything
// near the limit is a client bug, not a bigger invoice.
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, dto.NewErrorResponseWithRequestID(
				"REQUEST_TOO_LARGE",
				"Request body exceeds maximum allowed size",
				getRequestIDFromContext(c),
			))
			return
		}

		// Chunked requests carry no Content-Length; cap those while reading.
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
