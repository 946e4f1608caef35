package steps

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/yungbote/minutes-backend/internal/domain/meetings"
	"github.com/yungbote/minutes-backend/internal/observability"
	"github.com/yungbote/minutes-backend/internal/pkg/httpx"
	"github.com/yungbote/minutes-backend/internal/platform/logger"
)

// LLM is the narrow completion surface the extractor needs.
type LLM interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Policy holds the extraction retry and sizing knobs.
type Policy struct {
	// MaxRetries is the number of extra calls after an unparseable or failed
	// reply, per chunk.
	MaxRetries  int           `yaml:"max_retries"`
	CallTimeout time.Duration `yaml:"call_timeout"`
	BaseBackoff time.Duration `yaml:"base_backoff"`
	MaxBackoff  time.Duration `yaml:"max_backoff"`
	// ChunkChars bounds the transcript text sent in one call.
	ChunkChars int `yaml:"chunk_chars"`
	// ExcerptChars bounds the transcript excerpt in fallback minutes.
	ExcerptChars int `yaml:"excerpt_chars"`
}

func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:   2,
		CallTimeout:  90 * time.Second,
		BaseBackoff:  time.Second,
		MaxBackoff:   10 * time.Second,
		ChunkChars:   12000,
		ExcerptChars: 500,
	}
}

func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.CallTimeout <= 0 {
		p.CallTimeout = d.CallTimeout
	}
	if p.BaseBackoff < 0 {
		p.BaseBackoff = 0
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = d.MaxBackoff
	}
	if p.ChunkChars <= 0 {
		p.ChunkChars = d.ChunkChars
	}
	if p.ExcerptChars <= 0 {
		p.ExcerptChars = d.ExcerptChars
	}
	return p
}

// Extraction is the outcome of one Extract call. NeedsReview is set when
// the minutes are the deterministic fallback.
type Extraction struct {
	Minutes     meetings.MeetingMinutes
	Warnings    []FieldWarning
	NeedsReview bool
	Attempts    int
	Chunks      int
}

// WarningStrings flattens warnings for storage.
func (e Extraction) WarningStrings() []string {
	out := make([]string, 0, len(e.Warnings))
	for _, w := range e.Warnings {
		out = append(out, w.String())
	}
	return out
}

const FallbackSummary = "Automatic minutes extraction failed; manual review required."

type Extractor struct {
	log    *logger.Logger
	llm    LLM
	policy Policy
	sleep  func(context.Context, time.Duration) error
}

func NewExtractor(log *logger.Logger, llm LLM, policy Policy) *Extractor {
	return &Extractor{
		log:    log.With("step", "extract_minutes"),
		llm:    llm,
		policy: policy.withDefaults(),
		sleep:  sleepCtx,
	}
}

func (x *Extractor) Policy() Policy { return x.policy }

// Extract produces minutes for an aligned transcript. Exhausted retries
// yield fallback minutes with NeedsReview set; only cancellation of ctx is
// returned as an error.
func (x *Extractor) Extract(ctx context.Context, mc MeetingContext, transcript []meetings.TranscriptSegment) (Extraction, error) {
	res := Extraction{}
	if len(transcript) == 0 {
		res.Minutes = meetings.EmptyMinutes()
		res.Warnings = append(res.Warnings, FieldWarning{Path: "transcript", Message: "empty transcript, nothing to extract"})
		return res, nil
	}
	if x.llm == nil {
		return x.fallback(res, transcript, "no model configured"), nil
	}

	chunks := ChunkTranscript(transcript, x.policy.ChunkChars)
	res.Chunks = len(chunks)

	partials := make([]meetings.MeetingMinutes, 0, len(chunks))
	for i, chunk := range chunks {
		user := chunkUserPrompt(mc, chunk, i+1, len(chunks))
		mm, warns, attempts, err := x.ask(ctx, minutesSystemPrompt, user)
		res.Attempts += attempts
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Extraction{}, ctxErr
			}
			x.log.Warn("Minutes extraction degraded", "chunk", i+1, "chunks", len(chunks), "attempts", attempts, "error", err)
			return x.fallback(res, transcript, err.Error()), nil
		}
		res.Warnings = append(res.Warnings, prefixWarnings(warns, len(chunks), i+1)...)
		partials = append(partials, mm)
	}

	merged := concatMinutes(partials)
	if len(partials) > 1 {
		payload, _ := json.Marshal(merged)
		mm, warns, attempts, err := x.ask(ctx, mergeSystemPrompt, "Partial minutes:\n"+string(payload))
		res.Attempts += attempts
		switch {
		case err == nil:
			merged = mm
			res.Warnings = append(res.Warnings, prefixWarnings(warns, 2, 0)...)
		case ctx.Err() != nil:
			return Extraction{}, ctx.Err()
		default:
			// Concatenated chunk minutes are already valid.
			res.Warnings = append(res.Warnings, FieldWarning{Path: "merge", Message: "merge pass failed, kept concatenated chunk minutes: " + err.Error()})
		}
	}
	if len(merged.Summary) > meetings.MaxSummaryBullets {
		res.Warnings = append(res.Warnings, FieldWarning{Path: "summary", Message: fmt.Sprintf("truncated %d bullets to %d", len(merged.Summary), meetings.MaxSummaryBullets)})
		merged.Summary = merged.Summary[:meetings.MaxSummaryBullets]
	}
	res.Minutes = merged
	return res, nil
}

// ask calls the model until a reply decodes or the retry budget runs out.
func (x *Extractor) ask(ctx context.Context, system, user string) (meetings.MeetingMinutes, []FieldWarning, int, error) {
	prompt := user
	backoff := x.policy.BaseBackoff
	var lastErr error
	attempts := 0
	for attempt := 0; attempt <= x.policy.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return meetings.MeetingMinutes{}, nil, attempts, err
		}
		attempts++
		reply, err := x.call(ctx, system, prompt)
		if err == nil {
			mm, warns, decodeErr := DecodeMinutes(reply)
			if decodeErr == nil {
				return mm, warns, attempts, nil
			}
			lastErr = decodeErr
			observability.Current().ObserveExtractionRetry("unparseable")
			prompt = user + "\n\n" + correctiveInstruction
			x.log.Debug("Model reply unparseable, retrying with corrective instruction", "attempt", attempts)
			continue
		}
		if ctx.Err() != nil {
			return meetings.MeetingMinutes{}, nil, attempts, ctx.Err()
		}
		lastErr = err
		observability.Current().ObserveExtractionRetry("call_failed")
		if !httpx.IsRetryableError(err) {
			x.log.Warn("Model call failed", "attempt", attempts, "error", err)
		}
		if attempt < x.policy.MaxRetries {
			if err := x.sleep(ctx, httpx.JitterSleep(backoff)); err != nil {
				return meetings.MeetingMinutes{}, nil, attempts, err
			}
			backoff = httpx.NextBackoff(backoff, x.policy.MaxBackoff)
		}
	}
	return meetings.MeetingMinutes{}, nil, attempts, fmt.Errorf("after %d attempts: %w", attempts, lastErr)
}

func (x *Extractor) call(ctx context.Context, system, user string) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, x.policy.CallTimeout)
	defer cancel()
	return x.llm.Complete(cctx, system, user)
}

func (x *Extractor) fallback(res Extraction, transcript []meetings.TranscriptSegment, reason string) Extraction {
	res.Minutes = FallbackMinutes(transcript, x.policy.ExcerptChars)
	res.NeedsReview = true
	res.Warnings = append(res.Warnings, FieldWarning{Path: "minutes", Message: "extraction fell back to transcript excerpt: " + reason})
	observability.Current().ObserveExtractionFallback()
	return res
}

// FallbackMinutes builds the deterministic minutes used when extraction
// fails: a review notice and a truncated transcript excerpt.
func FallbackMinutes(transcript []meetings.TranscriptSegment, excerptChars int) meetings.MeetingMinutes {
	mm := meetings.EmptyMinutes()
	mm.Summary = append(mm.Summary, FallbackSummary)
	if excerpt := transcriptExcerpt(transcript, excerptChars); excerpt != "" {
		mm.Summary = append(mm.Summary, "Transcript excerpt: "+excerpt)
	}
	return mm
}

func transcriptExcerpt(transcript []meetings.TranscriptSegment, limit int) string {
	parts := make([]string, 0, len(transcript))
	for _, seg := range transcript {
		if t := strings.TrimSpace(seg.Text); t != "" {
			parts = append(parts, seg.Speaker+": "+t)
		}
	}
	text := strings.Join(parts, " ")
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	return strings.TrimSpace(string(runes[:limit])) + "…"
}

func concatMinutes(parts []meetings.MeetingMinutes) meetings.MeetingMinutes {
	out := meetings.EmptyMinutes()
	for _, p := range parts {
		out.Summary = append(out.Summary, p.Summary...)
		out.Decisions = append(out.Decisions, p.Decisions...)
		out.ActionItems = append(out.ActionItems, p.ActionItems...)
		out.Risks = append(out.Risks, p.Risks...)
	}
	return out
}

func prefixWarnings(warns []FieldWarning, chunks, part int) []FieldWarning {
	if chunks <= 1 || len(warns) == 0 {
		return warns
	}
	label := "merge"
	if part > 0 {
		label = fmt.Sprintf("chunk[%d]", part)
	}
	out := make([]FieldWarning, len(warns))
	for i, w := range warns {
		out[i] = FieldWarning{Path: label + "." + w.Path, Message: w.Message}
	}
	return out
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
