package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDHeader carries the request id in and out of the service.
const RequestIDHeader = "X-Request-ID"

// RequestID honors an inbound X-Request-ID or mints one, stores it in the
// gin context for the logger, and echoes it on the response so the CRM
// frontend can quote it in support tickets.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set("request_id", requestID)
		c.Writer.Header().Set(RequestIDHeader, requestID)
		c.Next()
	}
}

// CORSConfig holds the CORS policy. An empty AllowOrigins list rejects all
// cross-origin requests until the deployment configures its frontends.
type CORSConfig struct {
	AllowOrigins     []string
	AllowMethods     []string
	AllowHeaders     []string
	ExposeHeaders    []string
	AllowCredentials bool
	MaxAge           time.Duration
}

// CORSWithConfig applies the given CORS policy. Preflight OPTIONS requests
// are always answered with 204 so browsers never see a 404 route miss.
func CORSWithConfig(cfg CORSConfig) gin.HandlerFunc {
	allowMethods := strings.Join(cfg.AllowMethods, ", ")
	allowHeaders := strings.Join(cfg.AllowHeaders, ", ")
	exposeHeaders := strings.Join(cfg.ExposeHeaders, ", ")
	maxAge := ""
	if cfg.MaxAge > 0 {
		maxAge = strconv.Itoa(int(cfg.MaxAge.Seconds()))
	}
	wildcard := false
	for _, o := range cfg.AllowOrigins {
		if o == "*" {
			wildcard = true
		}
	}

	resolveOrigin := func(origin string) string {
		if wildcard {
			return "*"
		}
		for _, o := range cfg.AllowOrigins {
			if o == origin {
				return origin
			}
		}
		return ""
	}

	apply := func(c *gin.Context, allowed string) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", allowed)
		// Credentials with a wildcard origin is rejected by browsers,
		// so only pair it with an explicit origin.
		if cfg.AllowCredentials && allowed != "*" {
			h.Set("Access-Control-Allow-Credentials", "true")
		}
		h.Set("Access-Control-Allow-Methods", allowMethods)
		h.Set("Access-Control-Allow-Headers", allowHeaders)
		if exposeHeaders != "" {
			h.Set("Access-Control-Expose-Headers", exposeHeaders)
		}
		if maxAge != "" {
			h.Set("Access-Control-Max-Age", maxAge)
		}
	}

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		if c.Request.Method == http.MethodOptions {
			if allowed := resolveOrigin(origin); allowed != "" {
				apply(c, allowed)
			}
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		if origin != "" {
			if allowed := resolveOrigin(origin); allowed != "" {
				apply(c, allowed)
			}
		}
		c.Next()
	}
}

// Secure sets the response headers every billing API response carries. The
// API serves JSON only, so the CSP locks everything to 'none'.
func Secure() gin.HandlerFunc {
	const csp = "default-src 'none'; frame-ancestors 'none'; base-uri 'none'"
	const permissions = "accelerometer=(), camera=(), geolocation=(), microphone=(), payment=(), usb=()"

	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Content-Security-Policy", csp)
		h.Set("Permissions-Policy", permissions)
		c.Next()
	}
}
