package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/minutes-backend/internal/data/repos"
	"github.com/yungbote/minutes-backend/internal/modules/minutes"
	"github.com/yungbote/minutes-backend/internal/modules/minutes/steps"
	"github.com/yungbote/minutes-backend/internal/platform/logger"
	"github.com/yungbote/minutes-backend/internal/services"
)

type Services struct {
	Store    services.MeetingStore
	Usecases minutes.Usecases
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, clients Clients) Services {
	log.Info("Wiring services...")
	store := services.NewMeetingStore(log, repos.NewMeetingRepo(db, log), clients.Bus)
	return Services{
		Store: store,
		Usecases: minutes.New(minutes.UsecasesDeps{
			Log:              log,
			Extractor:        steps.NewExtractor(log, clients.LLM, cfg.Pipeline.Extraction),
			Store:            store,
			ScoreWorkers:     cfg.Pipeline.ScoreWorkers,
			BatchConcurrency: cfg.Pipeline.BatchConcurrency,
		}),
	}
}
