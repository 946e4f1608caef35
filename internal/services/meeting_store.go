package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/minutes-backend/internal/data/repos"
	types "github.com/yungbote/minutes-backend/internal/domain/meetings"
	"github.com/yungbote/minutes-backend/internal/observability"
	apperrors "github.com/yungbote/minutes-backend/internal/pkg/errors"
	"github.com/yungbote/minutes-backend/internal/platform/dbctx"
	"github.com/yungbote/minutes-backend/internal/platform/logger"
	"github.com/yungbote/minutes-backend/internal/realtime/bus"
)

type SearchOptions struct {
	Query  string
	Limit  int
	Offset int
}

// MeetingStore is the persistence boundary for finalized meetings. Writes to
// one id are serialized; the last writer's record replaces the previous one
// in full.
type MeetingStore interface {
	// SaveMeeting validates m, assigns an id when unset and persists it.
	// On success m carries the stored id and timestamps.
	SaveMeeting(ctx context.Context, m *types.Meeting) (string, error)
	GetMeeting(ctx context.Context, id string) (*types.Meeting, error)
	Search(ctx context.Context, query string) ([]*types.Meeting, error)
	List(ctx context.Context, opts SearchOptions) ([]*types.Meeting, error)
	DeleteMeeting(ctx context.Context, id string) error
	RenameSpeaker(ctx context.Context, id, from, to string) (*types.Meeting, error)
	Stats(ctx context.Context) (repos.MeetingStats, error)
}

type meetingStore struct {
	log   *logger.Logger
	repo  repos.MeetingRepo
	bus   bus.Bus
	locks *keyedMutex
	now   func() time.Time
}

func NewMeetingStore(baseLog *logger.Logger, repo repos.MeetingRepo, events bus.Bus) MeetingStore {
	if events == nil {
		events = bus.NewMemoryBus()
	}
	return &meetingStore{
		log:   baseLog.With("service", "MeetingStore"),
		repo:  repo,
		bus:   events,
		locks: newKeyedMutex(),
		now:   time.Now,
	}
}

func (s *meetingStore) SaveMeeting(ctx context.Context, m *types.Meeting) (string, error) {
	if err := m.Validate(); err != nil {
		return "", err
	}
	rec := *m
	if strings.TrimSpace(rec.ID) == "" {
		rec.ID = uuid.NewString()
	} else if uid, err := uuid.Parse(rec.ID); err != nil {
		return "", apperrors.NewInputError("id", -1, "meeting id %q is not a uuid", rec.ID)
	} else {
		rec.ID = uid.String()
	}

	unlock := s.locks.Lock(rec.ID)
	defer unlock()

	if err := s.put(ctx, &rec, "save"); err != nil {
		return "", err
	}
	*m = rec
	s.publish(ctx, bus.Event{Type: bus.EventMeetingSaved, MeetingID: rec.ID, Title: rec.Title, NeedsReview: rec.NeedsReview, At: rec.UpdatedAt})
	return rec.ID, nil
}

// put normalizes and writes rec. Caller holds the id lock.
func (s *meetingStore) put(ctx context.Context, rec *types.Meeting, op string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	now := s.now().UTC().Truncate(time.Microsecond)
	normalizeForStorage(rec)

	existing, err := s.repo.Get(dbctx.New(ctx), uuid.MustParse(rec.ID))
	switch {
	case err == nil:
		rec.CreatedAt = existing.CreatedAt
	case errors.Is(err, apperrors.ErrNotFound):
		rec.CreatedAt = now
	default:
		return &apperrors.StorageError{Op: op, ID: rec.ID, Cause: err}
	}
	rec.UpdatedAt = now

	start := time.Now()
	if err := s.repo.Put(dbctx.New(ctx), rec); err != nil {
		observability.Current().ObserveStoreOp(op, "error", time.Since(start))
		s.log.Error("Meeting write failed", "meeting_id", rec.ID, "op", op, "error", err)
		return &apperrors.StorageError{Op: op, ID: rec.ID, Cause: err}
	}
	observability.Current().ObserveStoreOp(op, "ok", time.Since(start))
	s.log.Debug("Meeting stored", "meeting_id", rec.ID, "op", op, "segments", len(rec.Transcript))
	return nil
}

func (s *meetingStore) GetMeeting(ctx context.Context, id string) (*types.Meeting, error) {
	uid, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return nil, apperrors.ErrNotFound
	}
	start := time.Now()
	m, err := s.repo.Get(dbctx.New(ctx), uid)
	observability.Current().ObserveStoreOp("get", statusOf(err), time.Since(start))
	return m, err
}

func (s *meetingStore) Search(ctx context.Context, query string) ([]*types.Meeting, error) {
	return s.List(ctx, SearchOptions{Query: query})
}

func (s *meetingStore) List(ctx context.Context, opts SearchOptions) ([]*types.Meeting, error) {
	if opts.Limit < 0 || opts.Offset < 0 {
		return nil, apperrors.NewInputError("pagination", -1, "limit and offset must be non-negative")
	}
	start := time.Now()
	out, err := s.repo.Search(dbctx.New(ctx), repos.MeetingSearchQuery{Text: opts.Query, Limit: opts.Limit, Offset: opts.Offset})
	observability.Current().ObserveStoreOp("search", statusOf(err), time.Since(start))
	return out, err
}

func (s *meetingStore) DeleteMeeting(ctx context.Context, id string) error {
	uid, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return apperrors.ErrNotFound
	}
	key := uid.String()
	unlock := s.locks.Lock(key)
	defer unlock()

	start := time.Now()
	err = s.repo.Delete(dbctx.New(ctx), uid)
	observability.Current().ObserveStoreOp("delete", statusOf(err), time.Since(start))
	switch {
	case err == nil:
	case errors.Is(err, apperrors.ErrNotFound):
		return err
	default:
		return &apperrors.StorageError{Op: "delete", ID: key, Cause: err}
	}
	s.publish(ctx, bus.Event{Type: bus.EventMeetingDeleted, MeetingID: key, At: s.now().UTC()})
	return nil
}

// RenameSpeaker relabels every transcript segment spoken by from. The
// record is re-saved in full under the id lock.
func (s *meetingStore) RenameSpeaker(ctx context.Context, id, from, to string) (*types.Meeting, error) {
	from, to = strings.TrimSpace(from), strings.TrimSpace(to)
	if from == "" || to == "" {
		return nil, apperrors.NewInputError("speaker", -1, "both from and to labels are required")
	}
	uid, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return nil, apperrors.ErrNotFound
	}
	unlock := s.locks.Lock(uid.String())
	defer unlock()

	m, err := s.repo.Get(dbctx.New(ctx), uid)
	if err != nil {
		return nil, err
	}
	changed := 0
	for i := range m.Transcript {
		if m.Transcript[i].Speaker == from {
			m.Transcript[i].Speaker = to
			changed++
		}
	}
	if changed == 0 {
		return nil, apperrors.NewInputError("speaker", -1, "no segment is labelled %q", from)
	}
	if err := s.put(ctx, m, "rename_speaker"); err != nil {
		return nil, err
	}
	s.log.Info("Speaker renamed", "meeting_id", m.ID, "speaker", from, "new_speaker", to, "segments", changed)
	s.publish(ctx, bus.Event{Type: bus.EventMeetingSaved, MeetingID: m.ID, Title: m.Title, NeedsReview: m.NeedsReview, At: m.UpdatedAt})
	return m, nil
}

func (s *meetingStore) Stats(ctx context.Context) (repos.MeetingStats, error) {
	return s.repo.Stats(dbctx.New(ctx))
}

func (s *meetingStore) publish(ctx context.Context, ev bus.Event) {
	if err := s.bus.Publish(context.WithoutCancel(ctx), ev); err != nil {
		s.log.Warn("Meeting event publish failed", "type", ev.Type, "meeting_id", ev.MeetingID, "error", err)
	}
}

// normalizeForStorage puts m in the exact shape a read returns: UTC times
// at microsecond precision and non-nil lists.
func normalizeForStorage(m *types.Meeting) {
	m.Date = m.Date.UTC().Truncate(time.Microsecond)
	if m.Participants == nil {
		m.Participants = []string{}
	}
	if m.Transcript == nil {
		m.Transcript = []types.TranscriptSegment{}
	}
	if m.ReviewWarnings == nil {
		m.ReviewWarnings = []string{}
	}
	if m.Minutes != nil {
		mm := *m.Minutes
		mm.Normalize()
		m.Minutes = &mm
	}
}

func statusOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, apperrors.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}

// keyedMutex hands out one mutex per key and forgets keys nobody holds.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: map[string]*refMutex{}}
}

func (k *keyedMutex) Lock(key string) (unlock func()) {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &refMutex{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
