package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/minutes-backend/internal/http/handlers"
	httpMW "github.com/yungbote/minutes-backend/internal/http/middleware"
	"github.com/yungbote/minutes-backend/internal/observability"
	"github.com/yungbote/minutes-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log         *logger.Logger
	Metrics     *observability.Metrics
	ServiceName string
	CORSOrigins string

	MeetingHandler *httpH.MeetingHandler
	EventsHandler  *httpH.EventsHandler
	HealthHandler  *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	log := cfg.Log
	if log == nil {
		log = logger.Nop()
	}
	service := cfg.ServiceName
	if service == "" {
		service = "minutes-backend"
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(service))
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapF(cfg.Metrics.WriteHTTP))
	}

	api := r.Group("/api")
	{
		if cfg.EventsHandler != nil {
			api.GET("/meetings/events", cfg.EventsHandler.Stream)
		}

		// Meetings
		if h := cfg.MeetingHandler; h != nil {
			api.POST("/meetings/process", h.Process)
			api.POST("/meetings", h.Import)
			api.GET("/meetings", h.List)
			api.GET("/meetings/stats", h.Stats)
			api.GET("/meetings/:id", h.Get)
			api.GET("/meetings/:id/export", h.Export)
			api.PATCH("/meetings/:id/speakers", h.RenameSpeaker)
			api.DELETE("/meetings/:id", h.Delete)
		}
	}

	return r
}
