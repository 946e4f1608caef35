package testutil

import (
	"time"

	"github.com/google/uuid"

	types "github.com/yungbote/minutes-backend/internal/domain/meetings"
	"github.com/yungbote/minutes-backend/internal/pkg/pointers"
)

// WeeklySync returns a fully populated meeting with a fresh id.
func WeeklySync(date time.Time) *types.Meeting {
	now := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	return &types.Meeting{
		ID:           uuid.NewString(),
		Title:        "Weekly Team Sync - Feb 2026",
		Date:         date.UTC(),
		Participants: []string{"John Smith", "Sarah Johnson", "Bob Wilson"},
		Agenda:       "Sprint progress; Q1 planning",
		Transcript: []types.TranscriptSegment{
			{Start: 0, End: 4.5, Text: "Good morning everyone, let's get started.", Speaker: "John Smith", Confidence: 0.95, ConfidenceSource: types.ConfidenceFromModel},
			{Start: 4.5, End: 9.25, Text: "The API integration is about eighty percent done.", Speaker: "Sarah Johnson", Confidence: 0.72, ConfidenceSource: types.ConfidenceFromHeuristic},
			{Start: 9.25, End: 12, Text: "I can take the database migration.", Speaker: "Bob Wilson", Confidence: 0.41, ConfidenceSource: types.ConfidenceFromModel},
		},
		Minutes: &types.MeetingMinutes{
			Summary:   []string{"API integration is 80% complete", "Database migration needs an owner"},
			Decisions: []string{"Bob owns the database migration"},
			ActionItems: []types.ActionItem{
				{Owner: "Bob Wilson", Task: "Complete database migration", DueDate: pointers.String("2026-02-20"), Confidence: 0.9, Status: types.ActionItemStatusOpen},
				{Owner: "Sarah Johnson", Task: "Finish API integration", Confidence: 1, Status: types.ActionItemStatusOpen},
			},
			Risks: []string{"Migration may slip past the sprint"},
		},
		ReviewWarnings: []string{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// SprintPlanning returns a second, distinct meeting with a fresh id.
func SprintPlanning(date time.Time) *types.Meeting {
	m := WeeklySync(date)
	m.Title = "Sprint Planning"
	m.Participants = []string{"Alice Chen", "David Park"}
	m.Agenda = "Backlog grooming"
	m.Minutes = nil
	m.NeedsReview = true
	m.ReviewWarnings = []string{"minutes: extraction fell back to transcript excerpt"}
	return m
}
