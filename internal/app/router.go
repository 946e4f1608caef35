package app

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/minutes-backend/internal/data/db"
	httpapi "github.com/yungbote/minutes-backend/internal/http"
	httpH "github.com/yungbote/minutes-backend/internal/http/handlers"
	"github.com/yungbote/minutes-backend/internal/observability"
	"github.com/yungbote/minutes-backend/internal/platform/logger"
	"github.com/yungbote/minutes-backend/internal/realtime/sse"
)

func wireRouter(log *logger.Logger, cfg Config, metrics *observability.Metrics, dbSvc *db.Service, svcs Services, hub *sse.Hub) *gin.Engine {
	log.Info("Wiring router...")
	if cfg.LogMode == "prod" || cfg.LogMode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	var pinger httpH.Pinger
	if sqlDB, err := dbSvc.DB().DB(); err == nil {
		pinger = sqlDB
	}
	return httpapi.NewRouter(httpapi.RouterConfig{
		Log:            log,
		Metrics:        metrics,
		ServiceName:    "minutes-backend",
		CORSOrigins:    cfg.CORSOrigins,
		MeetingHandler: httpH.NewMeetingHandler(log, svcs.Usecases, svcs.Store),
		EventsHandler:  httpH.NewEventsHandler(log, hub),
		HealthHandler:  httpH.NewHealthHandler(pinger),
	})
}
