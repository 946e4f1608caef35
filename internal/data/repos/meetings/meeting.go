package meetings

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/minutes-backend/internal/domain/meetings"
	apperrors "github.com/yungbote/minutes-backend/internal/pkg/errors"
	"github.com/yungbote/minutes-backend/internal/platform/dbctx"
	"github.com/yungbote/minutes-backend/internal/platform/logger"
)

type SearchQuery struct {
	// Text matches title or any participant, case-insensitively. Empty
	// matches everything.
	Text   string
	Limit  int
	Offset int
}

type Stats struct {
	Total      int64      `json:"total_meetings"`
	NeedReview int64      `json:"needs_review"`
	LatestDate *time.Time `json:"latest_date,omitempty"`
}

// MeetingRepo persists a meeting as one metadata row plus ordered
// participant and segment rows. Every write replaces all three parts in a
// single transaction.
type MeetingRepo interface {
	Put(dbc dbctx.Context, m *types.Meeting) error
	Get(dbc dbctx.Context, id uuid.UUID) (*types.Meeting, error)
	Delete(dbc dbctx.Context, id uuid.UUID) error
	Search(dbc dbctx.Context, q SearchQuery) ([]*types.Meeting, error)
	Stats(dbc dbctx.Context) (Stats, error)
}

type meetingRepo struct {
	db     *gorm.DB
	log    *logger.Logger
	readTx []*sql.TxOptions
}

func NewMeetingRepo(db *gorm.DB, log *logger.Logger) MeetingRepo {
	return &meetingRepo{
		db:     db,
		log:    log.With("repo", "MeetingRepo"),
		readTx: readTxOptions(db),
	}
}

// readTxOptions pins the row, participant and segment selects of a read to
// one postgres snapshot. sqlite runs on a single connection and needs none.
func readTxOptions(db *gorm.DB) []*sql.TxOptions {
	if db == nil || db.Dialector == nil || db.Dialector.Name() != "postgres" {
		return nil
	}
	return []*sql.TxOptions{{Isolation: sql.LevelRepeatableRead, ReadOnly: true}}
}

func (r *meetingRepo) Put(dbc dbctx.Context, m *types.Meeting) error {
	if m == nil {
		return fmt.Errorf("nil meeting")
	}
	id, err := uuid.Parse(m.ID)
	if err != nil {
		return fmt.Errorf("meeting id %q: %w", m.ID, err)
	}
	rec, parts, segs, err := toRows(id, m)
	if err != nil {
		return err
	}
	return dbc.Conn(r.db).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).Create(rec).Error; err != nil {
			return fmt.Errorf("upsert meeting row: %w", err)
		}
		if err := tx.Where("meeting_id = ?", id).Delete(&types.ParticipantRecord{}).Error; err != nil {
			return fmt.Errorf("clear participants: %w", err)
		}
		if err := tx.Where("meeting_id = ?", id).Delete(&types.SegmentRecord{}).Error; err != nil {
			return fmt.Errorf("clear segments: %w", err)
		}
		if len(parts) > 0 {
			if err := tx.CreateInBatches(&parts, 200).Error; err != nil {
				return fmt.Errorf("insert participants: %w", err)
			}
		}
		if len(segs) > 0 {
			if err := tx.CreateInBatches(&segs, 200).Error; err != nil {
				return fmt.Errorf("insert segments: %w", err)
			}
		}
		return nil
	})
}

func (r *meetingRepo) Get(dbc dbctx.Context, id uuid.UUID) (*types.Meeting, error) {
	if id == uuid.Nil {
		return nil, apperrors.ErrNotFound
	}
	var out *types.Meeting
	err := dbc.Conn(r.db).Transaction(func(tx *gorm.DB) error {
		var rec types.MeetingRecord
		if err := tx.Where("id = ?", id).First(&rec).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrNotFound
			}
			return err
		}
		loaded, err := r.hydrate(tx, []types.MeetingRecord{rec})
		if err != nil {
			return err
		}
		out = loaded[0]
		return nil
	}, r.readTx...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *meetingRepo) Delete(dbc dbctx.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return apperrors.ErrNotFound
	}
	return dbc.Conn(r.db).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ?", id).Delete(&types.MeetingRecord{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperrors.ErrNotFound
		}
		if err := tx.Where("meeting_id = ?", id).Delete(&types.ParticipantRecord{}).Error; err != nil {
			return err
		}
		return tx.Where("meeting_id = ?", id).Delete(&types.SegmentRecord{}).Error
	})
}

func (r *meetingRepo) Search(dbc dbctx.Context, q SearchQuery) ([]*types.Meeting, error) {
	var out []*types.Meeting
	err := dbc.Conn(r.db).Transaction(func(tx *gorm.DB) error {
		query := tx.Model(&types.MeetingRecord{})
		if term := strings.ToLower(strings.TrimSpace(q.Text)); term != "" {
			like := "%" + escapeLike(term) + "%"
			sub := tx.Model(&types.ParticipantRecord{}).
				Select("meeting_id").
				Where("name_lower LIKE ? ESCAPE '\\'", like)
			query = query.Where("title_lower LIKE ? ESCAPE '\\' OR id IN (?)", like, sub)
		}
		query = query.Order("date DESC").Order("id ASC")
		if q.Limit > 0 {
			query = query.Limit(q.Limit)
		}
		if q.Offset > 0 {
			query = query.Offset(q.Offset)
		}
		var recs []types.MeetingRecord
		if err := query.Find(&recs).Error; err != nil {
			return err
		}
		loaded, err := r.hydrate(tx, recs)
		if err != nil {
			return err
		}
		out = loaded
		return nil
	}, r.readTx...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *meetingRepo) Stats(dbc dbctx.Context) (Stats, error) {
	var st Stats
	conn := dbc.Conn(r.db)
	if err := conn.Model(&types.MeetingRecord{}).Count(&st.Total).Error; err != nil {
		return st, err
	}
	if err := conn.Model(&types.MeetingRecord{}).Where("needs_review = ?", true).Count(&st.NeedReview).Error; err != nil {
		return st, err
	}
	if st.Total == 0 {
		return st, nil
	}
	var latest types.MeetingRecord
	if err := conn.Select("id", "date").Order("date DESC").First(&latest).Error; err != nil {
		return st, err
	}
	d := latest.Date.UTC()
	st.LatestDate = &d
	return st, nil
}

// hydrate loads child rows for recs and assembles meetings in recs order.
func (r *meetingRepo) hydrate(tx *gorm.DB, recs []types.MeetingRecord) ([]*types.Meeting, error) {
	out := make([]*types.Meeting, 0, len(recs))
	if len(recs) == 0 {
		return out, nil
	}
	ids := make([]uuid.UUID, 0, len(recs))
	byID := make(map[uuid.UUID]*types.Meeting, len(recs))
	for _, rec := range recs {
		m, err := fromRecord(rec)
		if err != nil {
			return nil, err
		}
		ids = append(ids, rec.ID)
		byID[rec.ID] = m
		out = append(out, m)
	}

	var parts []types.ParticipantRecord
	if err := tx.Where("meeting_id IN ?", ids).Order("meeting_id ASC").Order("position ASC").Find(&parts).Error; err != nil {
		return nil, fmt.Errorf("load participants: %w", err)
	}
	for _, p := range parts {
		if m := byID[p.MeetingID]; m != nil {
			m.Participants = append(m.Participants, p.Name)
		}
	}

	var segs []types.SegmentRecord
	if err := tx.Where("meeting_id IN ?", ids).Order("meeting_id ASC").Order("seq ASC").Find(&segs).Error; err != nil {
		return nil, fmt.Errorf("load segments: %w", err)
	}
	for _, s := range segs {
		if m := byID[s.MeetingID]; m != nil {
			m.Transcript = append(m.Transcript, types.TranscriptSegment{
				Start:            s.StartSec,
				End:              s.EndSec,
				Text:             s.Text,
				Speaker:          s.Speaker,
				Confidence:       s.Confidence,
				ConfidenceSource: types.ConfidenceSource(s.ConfidenceSource),
			})
		}
	}
	return out, nil
}

func toRows(id uuid.UUID, m *types.Meeting) (*types.MeetingRecord, []types.ParticipantRecord, []types.SegmentRecord, error) {
	rec := &types.MeetingRecord{
		ID:          id,
		Title:       m.Title,
		TitleLower:  strings.ToLower(m.Title),
		Date:        m.Date.UTC(),
		Agenda:      m.Agenda,
		NeedsReview: m.NeedsReview,
		AudioURI:    m.AudioURI,
		CreatedAt:   m.CreatedAt.UTC(),
		UpdatedAt:   m.UpdatedAt.UTC(),
	}
	if m.Minutes != nil {
		raw, err := json.Marshal(m.Minutes)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("encode minutes: %w", err)
		}
		rec.Minutes = datatypes.JSON(raw)
	}
	warnings := m.ReviewWarnings
	if warnings == nil {
		warnings = []string{}
	}
	raw, err := json.Marshal(warnings)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("encode review warnings: %w", err)
	}
	rec.Warnings = datatypes.JSON(raw)

	parts := make([]types.ParticipantRecord, 0, len(m.Participants))
	for i, p := range m.Participants {
		parts = append(parts, types.ParticipantRecord{MeetingID: id, Position: i, Name: p, NameLower: strings.ToLower(p)})
	}
	segs := make([]types.SegmentRecord, 0, len(m.Transcript))
	for i, s := range m.Transcript {
		segs = append(segs, types.SegmentRecord{
			MeetingID:        id,
			Seq:              i,
			StartSec:         s.Start,
			EndSec:           s.End,
			Text:             s.Text,
			Speaker:          s.Speaker,
			Confidence:       s.Confidence,
			ConfidenceSource: string(s.ConfidenceSource),
		})
	}
	return rec, parts, segs, nil
}

func fromRecord(rec types.MeetingRecord) (*types.Meeting, error) {
	m := &types.Meeting{
		ID:             rec.ID.String(),
		Title:          rec.Title,
		Date:           rec.Date.UTC(),
		Agenda:         rec.Agenda,
		Participants:   []string{},
		Transcript:     []types.TranscriptSegment{},
		NeedsReview:    rec.NeedsReview,
		ReviewWarnings: []string{},
		AudioURI:       rec.AudioURI,
		CreatedAt:      rec.CreatedAt.UTC(),
		UpdatedAt:      rec.UpdatedAt.UTC(),
	}
	if len(rec.Minutes) > 0 && string(rec.Minutes) != "null" {
		var mm types.MeetingMinutes
		if err := json.Unmarshal(rec.Minutes, &mm); err != nil {
			return nil, fmt.Errorf("decode minutes of %s: %w", rec.ID, err)
		}
		mm.Normalize()
		m.Minutes = &mm
	}
	if len(rec.Warnings) > 0 {
		if err := json.Unmarshal(rec.Warnings, &m.ReviewWarnings); err != nil {
			return nil, fmt.Errorf("decode review warnings of %s: %w", rec.ID, err)
		}
		if m.ReviewWarnings == nil {
			m.ReviewWarnings = []string{}
		}
	}
	return m, nil
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "%", "\\%")
	return strings.ReplaceAll(s, "_", "\\_")
}
