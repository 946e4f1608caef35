package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/minutes-backend/internal/platform/ctxutil"
)

const (
	headerTraceID   = "X-Trace-Id"
	headerRequestID = "X-Request-Id"
)

// AttachTraceContext stamps every request with a request id and a trace id.
// An active otel span wins over the inbound trace header.
func AttachTraceContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		reqID := strings.TrimSpace(c.GetHeader(headerRequestID))
		if reqID == "" {
			reqID = uuid.NewString()
		}
		var traceID string
		span := trace.SpanFromContext(ctx)
		if sc := span.SpanContext(); sc.HasTraceID() {
			traceID = sc.TraceID().String()
			span.SetAttributes(attribute.String("http.request_id", reqID))
		}
		if traceID == "" {
			traceID = strings.TrimSpace(c.GetHeader(headerTraceID))
		}
		if traceID == "" {
			traceID = uuid.NewString()
		}
		c.Request = c.Request.WithContext(ctxutil.WithTraceData(ctx, &ctxutil.TraceData{
			TraceID:   traceID,
			RequestID: reqID,
		}))
		c.Writer.Header().Set(headerTraceID, traceID)
		c.Writer.Header().Set(headerRequestID, reqID)
		c.Next()
	}
}
