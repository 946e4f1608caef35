package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/minutes-backend/internal/observability"
)

// Metrics records request counts and latency per route. A nil m disables it.
func Metrics(m *observability.Metrics) gin.HandlerFunc {
	if m == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		start := time.Now()
		m.ApiInflightInc()
		defer m.ApiInflightDec()

		c.Next()

		// FullPath keeps label cardinality bounded by the route table.
		m.ObserveAPI(c.Request.Method, c.FullPath(), strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}
