// Package interchange reads and writes the portable meeting document used
// for imports, exports and seed data.
package interchange

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/yungbote/minutes-backend/internal/domain/meetings"
	apperrors "github.com/yungbote/minutes-backend/internal/pkg/errors"
)

// Fields tagged omitempty are optional on import; absent values get the
// defaults a freshly extracted meeting would carry.
type Segment struct {
	Start            float64 `json:"start"`
	End              float64 `json:"end"`
	Text             string  `json:"text"`
	Speaker          string  `json:"speaker"`
	Confidence       float64 `json:"confidence"`
	ConfidenceSource string  `json:"confidence_source,omitempty"`
}

type ActionItem struct {
	Owner      string   `json:"owner"`
	Task       string   `json:"task"`
	DueDate    *string  `json:"due_date"`
	Confidence *float64 `json:"confidence,omitempty"`
	Status     string   `json:"status,omitempty"`
}

type Minutes struct {
	Summary     []string     `json:"summary"`
	Decisions   []string     `json:"decisions"`
	ActionItems []ActionItem `json:"action_items"`
	Risks       []string     `json:"risks"`
}

type Document struct {
	Title          string    `json:"title"`
	Date           string    `json:"date"`
	Participants   []string  `json:"participants"`
	Agenda         string    `json:"agenda"`
	Transcript     []Segment `json:"transcript"`
	Minutes        *Minutes  `json:"minutes,omitempty"`
	NeedsReview    bool      `json:"needs_review,omitempty"`
	ReviewWarnings []string  `json:"review_warnings,omitempty"`
	AudioURI       string    `json:"audio_uri,omitempty"`
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseDate accepts RFC 3339 and the zone-less ISO forms; zone-less values
// are read as UTC.
func ParseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, apperrors.NewInputError("date", -1, "%q is not an ISO-8601 timestamp", raw)
}

func FormatDate(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// ToMeeting converts d to an unsaved meeting. A segment without a
// confidence_source is treated as model-scored; an action item without
// confidence or status is read as certain and open.
func (d Document) ToMeeting() (*meetings.Meeting, error) {
	date, err := ParseDate(d.Date)
	if err != nil {
		return nil, err
	}
	m := &meetings.Meeting{
		Title:          d.Title,
		Date:           date,
		Participants:   append([]string{}, d.Participants...),
		Agenda:         d.Agenda,
		Transcript:     make([]meetings.TranscriptSegment, 0, len(d.Transcript)),
		NeedsReview:    d.NeedsReview,
		ReviewWarnings: append([]string{}, d.ReviewWarnings...),
		AudioURI:       d.AudioURI,
	}
	for i, s := range d.Transcript {
		src := meetings.ConfidenceFromModel
		switch meetings.ConfidenceSource(s.ConfidenceSource) {
		case "":
		case meetings.ConfidenceFromModel, meetings.ConfidenceFromHeuristic:
			src = meetings.ConfidenceSource(s.ConfidenceSource)
		default:
			return nil, apperrors.NewInputError("transcript", i, "unknown confidence_source %q", s.ConfidenceSource)
		}
		m.Transcript = append(m.Transcript, meetings.TranscriptSegment{
			Start:            s.Start,
			End:              s.End,
			Text:             s.Text,
			Speaker:          s.Speaker,
			Confidence:       s.Confidence,
			ConfidenceSource: src,
		})
	}
	if d.Minutes != nil {
		mm := meetings.EmptyMinutes()
		mm.Summary = append(mm.Summary, d.Minutes.Summary...)
		mm.Decisions = append(mm.Decisions, d.Minutes.Decisions...)
		mm.Risks = append(mm.Risks, d.Minutes.Risks...)
		for i, a := range d.Minutes.ActionItems {
			item := meetings.ActionItem{
				Owner:      a.Owner,
				Task:       a.Task,
				DueDate:    a.DueDate,
				Confidence: 1,
				Status:     meetings.ActionItemStatusOpen,
			}
			if a.Confidence != nil {
				if *a.Confidence < 0 || *a.Confidence > 1 {
					return nil, apperrors.NewInputError("minutes.action_items", i, "confidence %.3f outside [0,1]", *a.Confidence)
				}
				item.Confidence = *a.Confidence
			}
			if strings.TrimSpace(a.Status) != "" {
				item.Status = a.Status
			}
			mm.ActionItems = append(mm.ActionItems, item)
		}
		m.Minutes = &mm
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

func FromMeeting(m *meetings.Meeting) Document {
	d := Document{
		Title:        m.Title,
		Date:         FormatDate(m.Date),
		Participants: append([]string{}, m.Participants...),
		Agenda:       m.Agenda,
		Transcript:   make([]Segment, 0, len(m.Transcript)),
		NeedsReview:  m.NeedsReview,
		AudioURI:     m.AudioURI,
	}
	if len(m.ReviewWarnings) > 0 {
		d.ReviewWarnings = append([]string{}, m.ReviewWarnings...)
	}
	for _, s := range m.Transcript {
		d.Transcript = append(d.Transcript, Segment{
			Start:            s.Start,
			End:              s.End,
			Text:             s.Text,
			Speaker:          s.Speaker,
			Confidence:       s.Confidence,
			ConfidenceSource: string(s.ConfidenceSource),
		})
	}
	if m.Minutes != nil {
		mm := &Minutes{
			Summary:     append([]string{}, m.Minutes.Summary...),
			Decisions:   append([]string{}, m.Minutes.Decisions...),
			ActionItems: make([]ActionItem, 0, len(m.Minutes.ActionItems)),
			Risks:       append([]string{}, m.Minutes.Risks...),
		}
		for _, a := range m.Minutes.ActionItems {
			conf := a.Confidence
			mm.ActionItems = append(mm.ActionItems, ActionItem{
				Owner:      a.Owner,
				Task:       a.Task,
				DueDate:    a.DueDate,
				Confidence: &conf,
				Status:     a.Status,
			})
		}
		d.Minutes = mm
	}
	return d
}

// Decode reads one document, or a JSON array of documents.
func Decode(r io.Reader) ([]Document, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "[") {
		var docs []Document
		if err := json.Unmarshal(raw, &docs); err != nil {
			return nil, apperrors.NewInputError("document", -1, "invalid JSON: %v", err)
		}
		return docs, nil
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, apperrors.NewInputError("document", -1, "invalid JSON: %v", err)
	}
	return []Document{doc}, nil
}

func Encode(w io.Writer, d Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(d); err != nil {
		return fmt.Errorf("encode meeting document: %w", err)
	}
	return nil
}
