package meetings

import (
	"strings"
	"time"

	apperrors "github.com/yungbote/minutes-backend/internal/pkg/errors"
)

// UnknownSpeaker labels segments aligned against an empty diarization.
const UnknownSpeaker = "Unknown"

// MaxSummaryBullets caps the summary list of a MeetingMinutes.
const MaxSummaryBullets = 8

const ActionItemStatusOpen = "Open"

type ConfidenceSource string

const (
	ConfidenceFromModel     ConfidenceSource = "model"
	ConfidenceFromHeuristic ConfidenceSource = "heuristic"
)

// ASRSegment is a raw recognizer span. Confidence is nil when the recognizer
// did not report one.
type ASRSegment struct {
	Start      float64  `json:"start"`
	End        float64  `json:"end"`
	Text       string   `json:"text"`
	Confidence *float64 `json:"confidence,omitempty"`
}

func (s ASRSegment) Duration() float64 { return s.End - s.Start }

// DiarizationTurn is a raw "who spoke when" interval. Turns may arrive
// unsorted and overlapping.
type DiarizationTurn struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Speaker string  `json:"speaker"`
}

type TranscriptSegment struct {
	Start            float64          `json:"start"`
	End              float64          `json:"end"`
	Text             string           `json:"text"`
	Speaker          string           `json:"speaker"`
	Confidence       float64          `json:"confidence"`
	ConfidenceSource ConfidenceSource `json:"confidence_source,omitempty"`
}

func (s TranscriptSegment) Duration() float64 { return s.End - s.Start }

type ActionItem struct {
	Owner string `json:"owner"`
	Task  string `json:"task"`
	// DueDate is a YYYY-MM-DD date or nil.
	DueDate    *string `json:"due_date"`
	Confidence float64 `json:"confidence"`
	Status     string  `json:"status"`
}

type MeetingMinutes struct {
	Summary     []string     `json:"summary"`
	Decisions   []string     `json:"decisions"`
	ActionItems []ActionItem `json:"action_items"`
	Risks       []string     `json:"risks"`
}

// EmptyMinutes returns minutes with every list non-nil.
func EmptyMinutes() MeetingMinutes {
	return MeetingMinutes{
		Summary:     []string{},
		Decisions:   []string{},
		ActionItems: []ActionItem{},
		Risks:       []string{},
	}
}

// Normalize replaces nil lists with empty ones.
func (m *MeetingMinutes) Normalize() {
	if m.Summary == nil {
		m.Summary = []string{}
	}
	if m.Decisions == nil {
		m.Decisions = []string{}
	}
	if m.ActionItems == nil {
		m.ActionItems = []ActionItem{}
	}
	if m.Risks == nil {
		m.Risks = []string{}
	}
}

type Meeting struct {
	ID           string              `json:"id"`
	Title        string              `json:"title"`
	Date         time.Time           `json:"date"`
	Participants []string            `json:"participants"`
	Agenda       string              `json:"agenda"`
	Transcript   []TranscriptSegment `json:"transcript"`
	Minutes      *MeetingMinutes     `json:"minutes,omitempty"`

	// NeedsReview is set when minutes came from the extraction fallback.
	NeedsReview    bool     `json:"needs_review"`
	ReviewWarnings []string `json:"review_warnings"`
	AudioURI       string   `json:"audio_uri,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Speakers returns the distinct speaker labels in order of first appearance.
func (m *Meeting) Speakers() []string {
	seen := map[string]bool{}
	out := []string{}
	for _, seg := range m.Transcript {
		if seen[seg.Speaker] {
			continue
		}
		seen[seg.Speaker] = true
		out = append(out, seg.Speaker)
	}
	return out
}

// Validate checks the record invariants that persistence relies on.
func (m *Meeting) Validate() error {
	if m == nil {
		return apperrors.NewInputError("meeting", -1, "nil meeting")
	}
	if strings.TrimSpace(m.Title) == "" {
		return apperrors.NewInputError("title", -1, "title is required")
	}
	if m.Date.IsZero() {
		return apperrors.NewInputError("date", -1, "date is required")
	}
	for i, p := range m.Participants {
		if strings.TrimSpace(p) == "" {
			return apperrors.NewInputError("participants", i, "empty participant name")
		}
	}
	prev := 0.0
	for i, seg := range m.Transcript {
		if seg.Start < 0 || seg.End < seg.Start {
			return apperrors.NewInputError("transcript", i, "bad interval [%.3f, %.3f]", seg.Start, seg.End)
		}
		if seg.Start < prev {
			return apperrors.NewInputError("transcript", i, "start %.3f precedes previous start %.3f", seg.Start, prev)
		}
		prev = seg.Start
		if strings.TrimSpace(seg.Text) == "" {
			return apperrors.NewInputError("transcript", i, "empty text")
		}
		if seg.Confidence < 0 || seg.Confidence > 1 {
			return apperrors.NewInputError("transcript", i, "confidence %.3f outside [0,1]", seg.Confidence)
		}
	}
	if m.Minutes != nil {
		for i, item := range m.Minutes.ActionItems {
			if strings.TrimSpace(item.Owner) == "" || strings.TrimSpace(item.Task) == "" {
				return apperrors.NewInputError("minutes.action_items", i, "owner and task are required")
			}
		}
	}
	return nil
}
