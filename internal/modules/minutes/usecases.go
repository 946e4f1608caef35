package minutes

import (
	"context"

	"github.com/yungbote/minutes-backend/internal/domain/meetings"
	"github.com/yungbote/minutes-backend/internal/modules/minutes/pipeline"
	"github.com/yungbote/minutes-backend/internal/modules/minutes/steps"
	"github.com/yungbote/minutes-backend/internal/platform/logger"
	"github.com/yungbote/minutes-backend/internal/services"
)

type UsecasesDeps struct {
	Log       *logger.Logger
	Extractor *steps.Extractor
	Store     services.MeetingStore

	ScoreWorkers     int
	BatchConcurrency int
}

type Usecases struct {
	deps UsecasesDeps
	pipe *pipeline.Pipeline
}

func New(deps UsecasesDeps) Usecases {
	return Usecases{
		deps: deps,
		pipe: pipeline.New(deps.Log, deps.Extractor, deps.Store, deps.ScoreWorkers),
	}
}

type (
	ProcessInput = pipeline.Input
	BatchResult  = pipeline.Result
)

func (u Usecases) ProcessMeeting(ctx context.Context, in ProcessInput) (*meetings.Meeting, error) {
	return u.pipe.Process(ctx, in)
}

func (u Usecases) ProcessBatch(ctx context.Context, inputs []ProcessInput) []BatchResult {
	return u.pipe.RunBatch(ctx, inputs, u.deps.BatchConcurrency)
}

// ImportMeeting stores an already finalized meeting without running the
// extraction stages.
func (u Usecases) ImportMeeting(ctx context.Context, m *meetings.Meeting) (string, error) {
	return u.deps.Store.SaveMeeting(ctx, m)
}
