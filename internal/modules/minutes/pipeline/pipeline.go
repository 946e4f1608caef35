package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/minutes-backend/internal/domain/meetings"
	"github.com/yungbote/minutes-backend/internal/modules/minutes/steps"
	"github.com/yungbote/minutes-backend/internal/observability"
	"github.com/yungbote/minutes-backend/internal/platform/logger"
	"github.com/yungbote/minutes-backend/internal/services"
)

const (
	StageAlign   = "align"
	StageScore   = "score"
	StageExtract = "extract"
	StageSave    = "save"
)

// ErrStageOrder is returned when a stage runs before the stage it consumes.
var ErrStageOrder = errors.New("pipeline stage out of order")

// Input is everything one meeting run starts from.
type Input struct {
	// ID re-processes into an existing record when set.
	ID           string                     `json:"id,omitempty"`
	Title        string                     `json:"title"`
	Date         time.Time                  `json:"date"`
	Participants []string                   `json:"participants"`
	Agenda       string                     `json:"agenda"`
	AudioURI     string                     `json:"audio_uri,omitempty"`
	ASR          []meetings.ASRSegment      `json:"asr"`
	Turns        []meetings.DiarizationTurn `json:"turns"`
}

// Run carries one meeting through align, score, extract and save. Each
// stage reads what the previous one left and may be called on its own.
type Run struct {
	Input Input

	Transcript []meetings.TranscriptSegment
	Extraction *steps.Extraction
	Meeting    *meetings.Meeting

	scored bool
}

func NewRun(in Input) *Run {
	return &Run{Input: in}
}

// Context is what the extractor sees about the meeting.
func (r *Run) Context() steps.MeetingContext {
	return steps.MeetingContext{Title: r.Input.Title, Agenda: r.Input.Agenda, Participants: r.Input.Participants}
}

func (r *Run) candidate() *meetings.Meeting {
	return &meetings.Meeting{
		ID:           strings.TrimSpace(r.Input.ID),
		Title:        strings.TrimSpace(r.Input.Title),
		Date:         r.Input.Date,
		Participants: append([]string{}, r.Input.Participants...),
		Agenda:       r.Input.Agenda,
		Transcript:   r.Transcript,
		AudioURI:     r.Input.AudioURI,
	}
}

type Pipeline struct {
	log          *logger.Logger
	extractor    *steps.Extractor
	store        services.MeetingStore
	scoreWorkers int
}

func New(log *logger.Logger, extractor *steps.Extractor, store services.MeetingStore, scoreWorkers int) *Pipeline {
	if scoreWorkers <= 0 {
		scoreWorkers = 4
	}
	return &Pipeline{
		log:          log.With("module", "minutes_pipeline"),
		extractor:    extractor,
		store:        store,
		scoreWorkers: scoreWorkers,
	}
}

// Process runs all four stages. Nothing is stored unless every stage
// before Save succeeded.
func (p *Pipeline) Process(ctx context.Context, in Input) (*meetings.Meeting, error) {
	run := NewRun(in)
	for _, stage := range []func(context.Context, *Run) error{p.Align, p.Score, p.Extract, p.Save} {
		if err := stage(ctx, run); err != nil {
			return nil, err
		}
	}
	return run.Meeting, nil
}

// Align labels every ASR segment with a speaker and checks the meeting
// metadata, so bad input fails before any model call.
func (p *Pipeline) Align(ctx context.Context, run *Run) error {
	return p.stage(ctx, StageAlign, run, func(ctx context.Context) error {
		out, err := steps.Align(run.Input.ASR, run.Input.Turns)
		if err != nil {
			return err
		}
		run.Transcript = out
		run.scored = false
		return run.candidate().Validate()
	})
}

func (p *Pipeline) Score(ctx context.Context, run *Run) error {
	return p.stage(ctx, StageScore, run, func(ctx context.Context) error {
		if run.Transcript == nil {
			return fmt.Errorf("%w: score needs an aligned transcript", ErrStageOrder)
		}
		natives := make([]*float64, len(run.Input.ASR))
		for i, seg := range run.Input.ASR {
			natives[i] = seg.Confidence
		}
		if err := steps.ScoreTranscript(ctx, run.Transcript, natives, p.scoreWorkers); err != nil {
			return err
		}
		m := observability.Current()
		for _, seg := range run.Transcript {
			m.ObserveSegment(string(steps.BucketOf(seg.Confidence)), string(seg.ConfidenceSource))
		}
		run.scored = true
		return nil
	})
}

func (p *Pipeline) Extract(ctx context.Context, run *Run) error {
	return p.stage(ctx, StageExtract, run, func(ctx context.Context) error {
		if !run.scored {
			return fmt.Errorf("%w: extract needs a scored transcript", ErrStageOrder)
		}
		res, err := p.extractor.Extract(ctx, run.Context(), run.Transcript)
		if err != nil {
			return err
		}
		observability.Current().AddRepairWarnings(len(res.Warnings))
		if res.NeedsReview {
			p.log.Warn("Minutes need review", "title", run.Input.Title, "warnings", len(res.Warnings))
		}
		run.Extraction = &res
		return nil
	})
}

// Save persists the finished record. The extraction must exist, valid or
// fallback.
func (p *Pipeline) Save(ctx context.Context, run *Run) error {
	return p.stage(ctx, StageSave, run, func(ctx context.Context) error {
		if run.Extraction == nil {
			return fmt.Errorf("%w: save needs extracted minutes", ErrStageOrder)
		}
		m := run.candidate()
		minutes := run.Extraction.Minutes
		m.Minutes = &minutes
		m.NeedsReview = run.Extraction.NeedsReview
		m.ReviewWarnings = run.Extraction.WarningStrings()
		if _, err := p.store.SaveMeeting(ctx, m); err != nil {
			return err
		}
		run.Meeting = m
		return nil
	})
}

func (p *Pipeline) stage(ctx context.Context, name string, run *Run, fn func(context.Context) error) error {
	ctx, span := observability.StartSpan(ctx, "minutes."+name,
		attribute.String("meeting.title", run.Input.Title),
		attribute.Int("meeting.asr_segments", len(run.Input.ASR)),
	)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	status := "ok"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.log.Warn("Pipeline stage failed", "stage", name, "title", run.Input.Title, "error", err)
	}
	observability.Current().ObservePipelineStage(name, status, time.Since(start))
	return err
}

// Result is the per-input outcome of RunBatch.
type Result struct {
	Index   int
	Meeting *meetings.Meeting
	Err     error
}

// RunBatch processes independent meetings with at most concurrency runs
// in flight. One failure does not stop the others; results keep input
// order.
func (p *Pipeline) RunBatch(ctx context.Context, inputs []Input, concurrency int) []Result {
	if concurrency <= 0 {
		concurrency = 1
	}
	results := make([]Result, len(inputs))
	var g errgroup.Group
	g.SetLimit(concurrency)
	for i := range inputs {
		g.Go(func() error {
			m, err := p.Process(ctx, inputs[i])
			results[i] = Result{Index: i, Meeting: m, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}
