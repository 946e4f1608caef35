package meetings

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// MeetingRecord is the metadata row. Minutes and review warnings are JSON
// columns; transcript and participants live in child tables.
type MeetingRecord struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Title       string         `gorm:"type:text;not null" json:"title"`
	TitleLower  string         `gorm:"type:text;not null;index" json:"-"`
	Date        time.Time      `gorm:"not null;index" json:"date"`
	Agenda      string         `gorm:"type:text;not null" json:"agenda"`
	Minutes     datatypes.JSON `gorm:"type:jsonb" json:"minutes,omitempty"`
	NeedsReview bool           `gorm:"not null;index" json:"needs_review"`
	Warnings    datatypes.JSON `gorm:"type:jsonb" json:"review_warnings,omitempty"`
	AudioURI    string         `gorm:"type:text;not null" json:"audio_uri"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (MeetingRecord) TableName() string { return "meeting" }

type ParticipantRecord struct {
	MeetingID uuid.UUID `gorm:"type:uuid;primaryKey" json:"meeting_id"`
	Position  int       `gorm:"primaryKey" json:"position"`
	Name      string    `gorm:"type:text;not null" json:"name"`
	NameLower string    `gorm:"type:text;not null;index" json:"-"`
}

func (ParticipantRecord) TableName() string { return "meeting_participant" }

type SegmentRecord struct {
	MeetingID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"meeting_id"`
	Seq              int       `gorm:"primaryKey" json:"seq"`
	StartSec         float64   `gorm:"not null" json:"start_sec"`
	EndSec           float64   `gorm:"not null" json:"end_sec"`
	Text             string    `gorm:"type:text;not null" json:"text"`
	Speaker          string    `gorm:"type:text;not null;index" json:"speaker"`
	Confidence       float64   `gorm:"not null" json:"confidence"`
	ConfidenceSource string    `gorm:"type:text;not null" json:"confidence_source"`
}

func (SegmentRecord) TableName() string { return "meeting_segment" }

// Models lists every table owned by the meetings store, in migration order.
func Models() []any {
	return []any{&MeetingRecord{}, &ParticipantRecord{}, &SegmentRecord{}}
}
