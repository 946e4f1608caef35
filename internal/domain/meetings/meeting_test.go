package meetings

import (
	"errors"
	"testing"
	"time"

	apperrors "github.com/yungbote/minutes-backend/internal/pkg/errors"
)

func validMeeting() *Meeting {
	return &Meeting{
		Title:        "Weekly Team Sync",
		Date:         time.Date(2026, 2, 3, 10, 0, 0, 0, time.UTC),
		Participants: []string{"John Smith", "Sarah Johnson"},
		Transcript: []TranscriptSegment{
			{Start: 0, End: 2, Text: "hi", Speaker: "SPK1", Confidence: 0.9},
			{Start: 2, End: 4, Text: "hello", Speaker: "SPK2", Confidence: 0.4},
		},
	}
}

func TestValidateAcceptsWellFormedMeeting(t *testing.T) {
	if err := validMeeting().Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(m *Meeting){
		"empty title":        func(m *Meeting) { m.Title = " " },
		"zero date":          func(m *Meeting) { m.Date = time.Time{} },
		"empty participant":  func(m *Meeting) { m.Participants = append(m.Participants, "") },
		"reversed interval":  func(m *Meeting) { m.Transcript[0].End = -1 },
		"non-monotonic":      func(m *Meeting) { m.Transcript[1].Start = 0; m.Transcript[0].Start = 1 },
		"empty text":         func(m *Meeting) { m.Transcript[1].Text = "" },
		"confidence too big": func(m *Meeting) { m.Transcript[0].Confidence = 1.2 },
		"ownerless action": func(m *Meeting) {
			mm := EmptyMinutes()
			mm.ActionItems = []ActionItem{{Task: "x"}}
			m.Minutes = &mm
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			m := validMeeting()
			mutate(m)
			err := m.Validate()
			if !errors.Is(err, apperrors.ErrInvalidArgument) {
				t.Fatalf("expected invalid argument, got %v", err)
			}
		})
	}
}

func TestSpeakersFirstAppearanceOrder(t *testing.T) {
	m := validMeeting()
	m.Transcript = append(m.Transcript, TranscriptSegment{Start: 5, End: 6, Text: "again", Speaker: "SPK1"})
	got := m.Speakers()
	if len(got) != 2 || got[0] != "SPK1" || got[1] != "SPK2" {
		t.Fatalf("Speakers=%v", got)
	}
}

func TestNormalizeFillsLists(t *testing.T) {
	var mm MeetingMinutes
	mm.Normalize()
	if mm.Summary == nil || mm.Decisions == nil || mm.ActionItems == nil || mm.Risks == nil {
		t.Fatalf("Normalize left nil list: %+v", mm)
	}
}
