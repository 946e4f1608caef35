package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/yungbote/minutes-backend/internal/data/repos"
	"github.com/yungbote/minutes-backend/internal/data/repos/testutil"
	"github.com/yungbote/minutes-backend/internal/domain/meetings"
	"github.com/yungbote/minutes-backend/internal/modules/minutes/steps"
	apperrors "github.com/yungbote/minutes-backend/internal/pkg/errors"
	"github.com/yungbote/minutes-backend/internal/pkg/pointers"
	"github.com/yungbote/minutes-backend/internal/services"
)

type fakeLLM struct {
	mu    sync.Mutex
	calls int
	reply func(call int, user string) (string, error)
}

func (f *fakeLLM) Complete(ctx context.Context, system, user string) (string, error) {
	f.mu.Lock()
	f.calls++
	n := f.calls
	f.mu.Unlock()
	return f.reply(n, user)
}

func (f *fakeLLM) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

const minutesReply = `{"summary":["Kickoff"],"decisions":[],"action_items":[{"owner":"SPK2","task":"Finish the remaining 20%","due_date":"2026-03-01"}],"risks":[]}`

func setup(t *testing.T, llm steps.LLM) (*Pipeline, services.MeetingStore) {
	t.Helper()
	log := testutil.Logger(t)
	store := services.NewMeetingStore(log, repos.NewMeetingRepo(testutil.DB(t), log), nil)
	policy := steps.DefaultPolicy()
	policy.BaseBackoff = 0
	return New(log, steps.NewExtractor(log, llm, policy), store, 2), store
}

func kickoff() Input {
	return Input{
		Title:        "Kickoff",
		Date:         time.Date(2026, 2, 3, 9, 0, 0, 0, time.UTC),
		Participants: []string{"Alice", "Bob"},
		ASR: []meetings.ASRSegment{
			{Start: 0, End: 5, Text: "Good morning everyone", Confidence: pointers.Float64(0.9)},
			{Start: 5, End: 12, Text: "We've completed 80%"},
		},
		Turns: []meetings.DiarizationTurn{
			{Start: 0, End: 6, Speaker: "SPK1"},
			{Start: 6, End: 15, Speaker: "SPK2"},
		},
	}
}

func TestProcessEndToEnd(t *testing.T) {
	llm := &fakeLLM{reply: func(int, string) (string, error) { return minutesReply, nil }}
	p, store := setup(t, llm)
	ctx := context.Background()

	m, err := p.Process(ctx, kickoff())
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if got := []string{m.Transcript[0].Speaker, m.Transcript[1].Speaker}; got[0] != "SPK1" || got[1] != "SPK2" {
		t.Fatalf("speakers=%v", got)
	}
	if m.Transcript[0].Confidence != 0.9 || m.Transcript[0].ConfidenceSource != meetings.ConfidenceFromModel {
		t.Fatalf("native confidence not used: %+v", m.Transcript[0])
	}
	if m.Transcript[1].ConfidenceSource != meetings.ConfidenceFromHeuristic {
		t.Fatalf("expected heuristic confidence: %+v", m.Transcript[1])
	}
	if m.NeedsReview || m.Minutes == nil || len(m.Minutes.ActionItems) != 1 {
		t.Fatalf("unexpected minutes: %+v", m.Minutes)
	}
	item := m.Minutes.ActionItems[0]
	if item.DueDate == nil || *item.DueDate != "2026-03-01" || item.Status != meetings.ActionItemStatusOpen || item.Confidence != 1 {
		t.Fatalf("action item=%+v", item)
	}

	stored, err := store.GetMeeting(ctx, m.ID)
	if err != nil {
		t.Fatalf("GetMeeting: %v", err)
	}
	if stored.Transcript[1].Speaker != "SPK2" || stored.Minutes.Summary[0] != "Kickoff" {
		t.Fatalf("stored=%+v", stored)
	}
}

func TestProcessFallsBackAndStillSaves(t *testing.T) {
	llm := &fakeLLM{reply: func(int, string) (string, error) { return "I cannot help with that.", nil }}
	p, store := setup(t, llm)

	m, err := p.Process(context.Background(), kickoff())
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if llm.count() != 3 {
		t.Fatalf("expected 1 call + 2 retries, got %d", llm.count())
	}
	if !m.NeedsReview || m.Minutes.Summary[0] != steps.FallbackSummary {
		t.Fatalf("expected fallback minutes, got %+v", m.Minutes)
	}
	stored, err := store.GetMeeting(context.Background(), m.ID)
	if err != nil {
		t.Fatalf("GetMeeting: %v", err)
	}
	if !stored.NeedsReview || len(stored.ReviewWarnings) == 0 {
		t.Fatalf("review state not persisted: %+v", stored)
	}
}

func TestProcessRejectsBadInputBeforeModelCall(t *testing.T) {
	llm := &fakeLLM{reply: func(int, string) (string, error) { return minutesReply, nil }}
	p, store := setup(t, llm)

	in := kickoff()
	in.ASR[1].Start = -1
	if _, err := p.Process(context.Background(), in); !apperrors.IsInput(err) {
		t.Fatalf("expected InputError, got %v", err)
	}
	in = kickoff()
	in.Title = " "
	if _, err := p.Process(context.Background(), in); !apperrors.IsInput(err) {
		t.Fatalf("expected InputError for empty title, got %v", err)
	}
	if llm.count() != 0 {
		t.Fatalf("model called on invalid input")
	}
	all, err := store.Search(context.Background(), "")
	if err != nil || len(all) != 0 {
		t.Fatalf("records stored after failure: %d, %v", len(all), err)
	}
}

func TestProcessCancelledLeavesNoRecord(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	llm := &fakeLLM{reply: func(int, string) (string, error) {
		cancel()
		return "", context.Canceled
	}}
	p, store := setup(t, llm)

	if _, err := p.Process(ctx, kickoff()); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	all, err := store.Search(context.Background(), "")
	if err != nil || len(all) != 0 {
		t.Fatalf("cancelled run stored %d meetings (%v)", len(all), err)
	}
}

func TestStagesRunIndependently(t *testing.T) {
	llm := &fakeLLM{reply: func(int, string) (string, error) { return minutesReply, nil }}
	p, _ := setup(t, llm)
	ctx := context.Background()
	run := NewRun(kickoff())

	if err := p.Extract(ctx, run); !errors.Is(err, ErrStageOrder) {
		t.Fatalf("extract before score: %v", err)
	}
	if err := p.Align(ctx, run); err != nil {
		t.Fatalf("Align: %v", err)
	}
	if run.Transcript[0].Confidence != 0 {
		t.Fatalf("align must not score")
	}
	if err := p.Score(ctx, run); err != nil {
		t.Fatalf("Score: %v", err)
	}
	if err := p.Save(ctx, run); !errors.Is(err, ErrStageOrder) {
		t.Fatalf("save before extract: %v", err)
	}
	if err := p.Extract(ctx, run); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if run.Extraction == nil || run.Meeting != nil {
		t.Fatalf("extract must not persist")
	}
	if err := p.Save(ctx, run); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if run.Meeting == nil || run.Meeting.ID == "" {
		t.Fatalf("save did not set meeting")
	}
}

func TestRunBatchIsolatesFailures(t *testing.T) {
	llm := &fakeLLM{reply: func(int, string) (string, error) { return minutesReply, nil }}
	p, store := setup(t, llm)

	inputs := make([]Input, 5)
	for i := range inputs {
		inputs[i] = kickoff()
		inputs[i].Title = fmt.Sprintf("Meeting %d", i)
	}
	inputs[2].ASR[0].Text = ""

	results := p.RunBatch(context.Background(), inputs, 3)
	for i, r := range results {
		if r.Index != i {
			t.Fatalf("result %d has index %d", i, r.Index)
		}
		if i == 2 {
			if !apperrors.IsInput(r.Err) {
				t.Fatalf("expected input error for item 2, got %v", r.Err)
			}
			continue
		}
		if r.Err != nil || !strings.HasPrefix(r.Meeting.Title, "Meeting ") {
			t.Fatalf("item %d: %v", i, r.Err)
		}
	}
	all, err := store.Search(context.Background(), "meeting")
	if err != nil || len(all) != 4 {
		t.Fatalf("stored %d meetings (%v)", len(all), err)
	}
}
