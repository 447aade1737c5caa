package http

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/agentpolicylayer/apl-go/telemetry"
)

const requestIDHeader = "X-Request-ID"
const requestIDContextKey = "request_id"

// requestID assigns a fresh request ID to every inbound request that
// doesn't already carry one, stores it in the gin context, and echoes it
// back on the response header. Placed innermost, after recovery and CORS;
// recovery reads the stored ID when it handles a panic.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDContextKey, id)
		c.Writer.Header().Set(requestIDHeader, id)
		c.Next()
	}
}

// cors permits any origin and echoes the request ID header back, matching
// a policy server meant to be called from arbitrary agent runtimes rather
// than a single trusted browser origin.
func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+requestIDHeader)
		c.Writer.Header().Set("Access-Control-Max-Age", "86400")
		c.Writer.Header().Set("Access-Control-Expose-Headers", requestIDHeader)
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// recovery maps a panic during request handling to a JSON error body: a
// json.SyntaxError-shaped panic becomes 400, everything else becomes 500.
// Both carry the request's ID so a caller can correlate server logs. The
// recovered value is logged through logger before the response is written,
// so a panicking handler leaves a trace even though the client only sees
// "internal error".
func recovery(logger telemetry.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				requestID := c.GetString(requestIDContextKey)
				logger.Error(c.Request.Context(), "panic recovered in http transport",
					"panic", fmt.Sprint(r), "request_id", requestID, "path", c.Request.URL.Path)

				status := http.StatusInternalServerError
				if _, ok := r.(*json.SyntaxError); ok {
					status = http.StatusBadRequest
				}
				c.JSON(status, gin.H{
					"error":      "internal error",
					"request_id": requestID,
				})
				c.Abort()
			}
		}()
		c.Next()
	}
}
