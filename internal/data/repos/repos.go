package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/minutes-backend/internal/data/repos/meetings"
	"github.com/yungbote/minutes-backend/internal/platform/logger"
)

type MeetingRepo = meetings.MeetingRepo
type MeetingSearchQuery = meetings.SearchQuery
type MeetingStats = meetings.Stats

func NewMeetingRepo(db *gorm.DB, baseLog *logger.Logger) MeetingRepo {
	return meetings.NewMeetingRepo(db, baseLog)
}
