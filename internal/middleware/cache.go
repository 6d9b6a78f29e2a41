package middleware

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
)

// CacheControl lets clients and proxies reuse public responses for maxAge.
func CacheControl(maxAge time.Duration) gin.HandlerFunc {
	header := fmt.Sprintf("public, max-age=%d", int(maxAge.Seconds()))
	return func(c *gin.Context) {
		c.Header("Cache-Control", header)
		c.Next()
	}
}
