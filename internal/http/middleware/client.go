// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file resolves the client identity that admission control, the edge
// limiter and idempotent replay are keyed by. The service has no accounts, so
// a client is the remote IP as seen by Gin (honoring its trusted proxy setup).
package middleware

import "github.com/gin-gonic/gin"

// clientIDKey is the Gin context key under which the client identity is stored.
const clientIDKey = "clientID"

// ClientID stores the caller's identity in the Gin context. Place it before
// anything that calls ClientIDFrom.
func ClientID() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(clientIDKey, c.ClientIP())
		c.Next()
	}
}

// ClientIDFrom returns the identity stored by ClientID, or the remote IP when
// the middleware was not installed.
func ClientIDFrom(c *gin.Context) string {
	if v, ok := c.Get(clientIDKey); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return c.ClientIP()
}
