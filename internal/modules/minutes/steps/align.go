package steps

import (
	"math"
	"sort"
	"strings"

	"github.com/yungbote/minutes-backend/internal/domain/meetings"
	apperrors "github.com/yungbote/minutes-backend/internal/pkg/errors"
)

// Align assigns a speaker to every ASR segment by interval overlap against
// the diarization turns. Output has one segment per input in input order;
// text and timing pass through untouched. Confidence is left at zero for
// ScoreTranscript to fill.
func Align(asr []meetings.ASRSegment, turns []meetings.DiarizationTurn) ([]meetings.TranscriptSegment, error) {
	if err := validateASR(asr); err != nil {
		return nil, err
	}
	norm, err := NormalizeTurns(turns)
	if err != nil {
		return nil, err
	}
	out := make([]meetings.TranscriptSegment, len(asr))
	for i, seg := range asr {
		out[i] = meetings.TranscriptSegment{
			Start:   seg.Start,
			End:     seg.End,
			Text:    seg.Text,
			Speaker: pickSpeaker(seg, norm),
		}
	}
	return out, nil
}

// NormalizeTurns sorts turns by start and merges same-speaker turns that
// overlap or touch. Turns of different speakers are never merged.
func NormalizeTurns(turns []meetings.DiarizationTurn) ([]meetings.DiarizationTurn, error) {
	if len(turns) == 0 {
		return nil, nil
	}
	sorted := make([]meetings.DiarizationTurn, 0, len(turns))
	for i, t := range turns {
		if t.Start < 0 || t.End < t.Start || math.IsNaN(t.Start) || math.IsNaN(t.End) {
			return nil, apperrors.NewInputError("diarization", i, "bad interval [%.3f, %.3f]", t.Start, t.End)
		}
		if strings.TrimSpace(t.Speaker) == "" {
			return nil, apperrors.NewInputError("diarization", i, "empty speaker label")
		}
		sorted = append(sorted, t)
	}
	sort.SliceStable(sorted, func(a, b int) bool {
		if sorted[a].Start != sorted[b].Start {
			return sorted[a].Start < sorted[b].Start
		}
		return sorted[a].End < sorted[b].End
	})

	// Merge against the most recent open turn of the same speaker so that
	// A[0,5] B[3,4] A[4,9] still collapses the two A turns.
	out := make([]meetings.DiarizationTurn, 0, len(sorted))
	last := map[string]int{}
	for _, t := range sorted {
		if idx, ok := last[t.Speaker]; ok && t.Start <= out[idx].End {
			if t.End > out[idx].End {
				out[idx].End = t.End
			}
			continue
		}
		last[t.Speaker] = len(out)
		out = append(out, t)
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Start < out[b].Start })
	return out, nil
}

func validateASR(asr []meetings.ASRSegment) error {
	prev := math.Inf(-1)
	for i, seg := range asr {
		if math.IsNaN(seg.Start) || math.IsNaN(seg.End) || seg.Start < 0 || seg.End < seg.Start {
			return apperrors.NewInputError("asr", i, "bad interval [%.3f, %.3f]", seg.Start, seg.End)
		}
		if seg.Start < prev {
			return apperrors.NewInputError("asr", i, "segments not sorted by start")
		}
		prev = seg.Start
		if strings.TrimSpace(seg.Text) == "" {
			return apperrors.NewInputError("asr", i, "empty text")
		}
		if seg.Confidence != nil && (*seg.Confidence < 0 || *seg.Confidence > 1) {
			return apperrors.NewInputError("asr", i, "confidence %.3f outside [0,1]", *seg.Confidence)
		}
	}
	return nil
}

func pickSpeaker(seg meetings.ASRSegment, turns []meetings.DiarizationTurn) string {
	if len(turns) == 0 {
		return meetings.UnknownSpeaker
	}
	dur := seg.Duration()
	if dur == 0 {
		// Point segment: first turn (earliest start) containing it.
		for _, t := range turns {
			if t.Start <= seg.Start && seg.Start <= t.End {
				return t.Speaker
			}
		}
		return nearestSpeaker(seg, turns)
	}

	best := -1
	bestRatio := 0.0
	for i, t := range turns {
		ov := math.Min(seg.End, t.End) - math.Max(seg.Start, t.Start)
		if ov <= 0 {
			continue
		}
		// Turns are sorted by start, so a strict comparison keeps the
		// earliest-starting turn on ties.
		if ratio := ov / dur; ratio > bestRatio {
			best, bestRatio = i, ratio
		}
	}
	if best >= 0 {
		return turns[best].Speaker
	}
	return nearestSpeaker(seg, turns)
}

// nearestSpeaker picks the turn with the smallest boundary distance to seg.
// Ties go to the earlier turn.
func nearestSpeaker(seg meetings.ASRSegment, turns []meetings.DiarizationTurn) string {
	best := 0
	bestDist := math.Inf(1)
	for i, t := range turns {
		var d float64
		switch {
		case t.End <= seg.Start:
			d = seg.Start - t.End
		case t.Start >= seg.End:
			d = t.Start - seg.End
		default:
			d = 0
		}
		if d < bestDist {
			best, bestDist = i, d
		}
	}
	return turns[best].Speaker
}
