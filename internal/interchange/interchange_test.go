package interchange

import (
	"bytes"
	"context"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/yungbote/minutes-backend/internal/data/repos"
	"github.com/yungbote/minutes-backend/internal/data/repos/testutil"
	"github.com/yungbote/minutes-backend/internal/domain/meetings"
	apperrors "github.com/yungbote/minutes-backend/internal/pkg/errors"
	"github.com/yungbote/minutes-backend/internal/services"
)

const weekly = `{
  "title": "Weekly Team Sync",
  "date": "2026-02-03T09:30:00Z",
  "participants": ["John Smith", "Sarah Johnson"],
  "agenda": "Sprint progress",
  "transcript": [
    {"start": 0, "end": 4.5, "text": "Good morning everyone", "speaker": "John Smith", "confidence": 0.95, "confidence_source": "model"},
    {"start": 4.5, "end": 9, "text": "API work is 80% done", "speaker": "Sarah Johnson", "confidence": 0.7, "confidence_source": "heuristic"}
  ],
  "minutes": {
    "summary": ["API integration 80% complete"],
    "decisions": [],
    "action_items": [
      {"owner": "Sarah Johnson", "task": "Finish API integration", "due_date": "2026-02-20", "confidence": 0.8, "status": "Open"},
      {"owner": "John Smith", "task": "Book the retro", "due_date": null, "confidence": 1, "status": "Done"}
    ],
    "risks": ["Timeline is tight"]
  },
  "needs_review": true,
  "review_warnings": ["minutes: extraction fell back to transcript excerpt"]
}`

func TestImportSaveGetExportIsIdentity(t *testing.T) {
	docs, err := Decode(strings.NewReader(weekly))
	if err != nil || len(docs) != 1 {
		t.Fatalf("Decode: %v", err)
	}
	m, err := docs[0].ToMeeting()
	if err != nil {
		t.Fatalf("ToMeeting: %v", err)
	}

	log := testutil.Logger(t)
	store := services.NewMeetingStore(log, repos.NewMeetingRepo(testutil.DB(t), log), nil)
	id, err := store.SaveMeeting(context.Background(), m)
	if err != nil {
		t.Fatalf("SaveMeeting: %v", err)
	}
	got, err := store.GetMeeting(context.Background(), id)
	if err != nil {
		t.Fatalf("GetMeeting: %v", err)
	}

	out := FromMeeting(got)
	if !reflect.DeepEqual(out, docs[0]) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", out, docs[0])
	}

	var buf bytes.Buffer
	if err := Encode(&buf, out); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	again, err := Decode(&buf)
	if err != nil || !reflect.DeepEqual(again[0], docs[0]) {
		t.Fatalf("re-decode mismatch: %v", err)
	}
}

func TestMeetingSurvivesExportImport(t *testing.T) {
	ctx := context.Background()
	log := testutil.Logger(t)
	store := services.NewMeetingStore(log, repos.NewMeetingRepo(testutil.DB(t), log), nil)

	orig := testutil.WeeklySync(time.Date(2026, 2, 3, 9, 30, 0, 0, time.UTC))
	orig.ID = ""
	orig.AudioURI = "gs://meetings/weekly.wav"
	orig.Minutes.ActionItems[1].Status = "Done"
	orig.Minutes.ActionItems[1].Confidence = 0.6
	orig.NeedsReview = true
	orig.ReviewWarnings = []string{"minutes: extraction fell back to transcript excerpt"}
	first, err := store.SaveMeeting(ctx, orig)
	if err != nil {
		t.Fatalf("SaveMeeting: %v", err)
	}
	want, err := store.GetMeeting(ctx, first)
	if err != nil {
		t.Fatalf("GetMeeting: %v", err)
	}

	var buf bytes.Buffer
	if err := Encode(&buf, FromMeeting(want)); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	docs, err := Decode(&buf)
	if err != nil || len(docs) != 1 {
		t.Fatalf("Decode: %v", err)
	}
	imported, err := docs[0].ToMeeting()
	if err != nil {
		t.Fatalf("ToMeeting: %v", err)
	}
	second, err := store.SaveMeeting(ctx, imported)
	if err != nil {
		t.Fatalf("SaveMeeting: %v", err)
	}
	got, err := store.GetMeeting(ctx, second)
	if err != nil {
		t.Fatalf("GetMeeting: %v", err)
	}

	if second == first {
		t.Fatalf("import reused id %s", first)
	}
	got.ID, got.CreatedAt, got.UpdatedAt = want.ID, want.CreatedAt, want.UpdatedAt
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("meeting changed across export/import:\n got %+v\nwant %+v", got, want)
	}
	if got.Transcript[1].ConfidenceSource != meetings.ConfidenceFromHeuristic || !got.NeedsReview {
		t.Fatalf("provenance lost: source=%q needs_review=%v", got.Transcript[1].ConfidenceSource, got.NeedsReview)
	}
}

func TestImportDefaultsAbsentProvenance(t *testing.T) {
	docs, err := Decode(strings.NewReader(`{"title":"x","date":"2026-02-03",
		"transcript":[{"start":0,"end":1,"text":"hi","speaker":"A","confidence":0.5}],
		"minutes":{"action_items":[{"owner":"A","task":"t","due_date":null}]}}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	m, err := docs[0].ToMeeting()
	if err != nil {
		t.Fatalf("ToMeeting: %v", err)
	}
	if m.Transcript[0].ConfidenceSource != meetings.ConfidenceFromModel {
		t.Fatalf("source=%q", m.Transcript[0].ConfidenceSource)
	}
	item := m.Minutes.ActionItems[0]
	if item.Confidence != 1 || item.Status != meetings.ActionItemStatusOpen || m.NeedsReview {
		t.Fatalf("unexpected defaults: item=%+v needs_review=%v", item, m.NeedsReview)
	}

	bad := []string{
		`{"title":"x","date":"2026-02-03","transcript":[{"start":0,"end":1,"text":"hi","speaker":"A","confidence_source":"guess"}]}`,
		`{"title":"x","date":"2026-02-03","minutes":{"action_items":[{"owner":"A","task":"t","confidence":1.5}]}}`,
	}
	for _, raw := range bad {
		docs, err := Decode(strings.NewReader(raw))
		if err != nil {
			t.Fatalf("Decode(%s): %v", raw, err)
		}
		if _, err := docs[0].ToMeeting(); !apperrors.IsInput(err) {
			t.Fatalf("ToMeeting(%s) = %v, want InputError", raw, err)
		}
	}
}

func TestDecodeArrayAndDateForms(t *testing.T) {
	docs, err := Decode(strings.NewReader(`[{"title":"a","date":"2026-02-03"},{"title":"b","date":"2026-02-03 10:00:00"}]`))
	if err != nil || len(docs) != 2 {
		t.Fatalf("Decode: %v", err)
	}
	for _, d := range docs {
		m, err := d.ToMeeting()
		if err != nil {
			t.Fatalf("ToMeeting(%s): %v", d.Title, err)
		}
		if m.Minutes != nil || len(m.Transcript) != 0 {
			t.Fatalf("unexpected content: %+v", m)
		}
	}
}

func TestImportRejectsInvalidDocuments(t *testing.T) {
	bad := []string{
		`{"title":"x","date":"yesterday"}`,
		`{"title":"","date":"2026-02-03"}`,
		`{"title":"x","date":"2026-02-03","transcript":[{"start":3,"end":1,"text":"hi","speaker":"A"}]}`,
		`{"title":"x","date":"2026-02-03","minutes":{"action_items":[{"owner":"","task":"t"}]}}`,
	}
	for _, raw := range bad {
		docs, err := Decode(strings.NewReader(raw))
		if err != nil {
			t.Fatalf("Decode(%s): %v", raw, err)
		}
		if _, err := docs[0].ToMeeting(); !apperrors.IsInput(err) {
			t.Fatalf("ToMeeting(%s) = %v, want InputError", raw, err)
		}
	}
	if _, err := Decode(strings.NewReader(`{not json`)); !apperrors.IsInput(err) {
		t.Fatalf("expected InputError for malformed JSON, got %v", err)
	}
}
