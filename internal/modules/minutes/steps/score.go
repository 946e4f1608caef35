package steps

import (
	"context"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/yungbote/minutes-backend/internal/domain/meetings"
	apperrors "github.com/yungbote/minutes-backend/internal/pkg/errors"
)

type Bucket string

const (
	BucketHigh   Bucket = "high"
	BucketMedium Bucket = "medium"
	BucketLow    Bucket = "low"
)

const (
	highThreshold   = 0.8
	mediumThreshold = 0.5
)

// BucketOf maps a confidence to its review bucket: [0.8,1] high,
// [0.5,0.8) medium, everything below low.
func BucketOf(confidence float64) Bucket {
	switch {
	case confidence >= highThreshold:
		return BucketHigh
	case confidence >= mediumThreshold:
		return BucketMedium
	default:
		return BucketLow
	}
}

// Plausible speaking rate in characters per second. Outside the soft band
// the estimate is capped to medium, outside the hard band to low.
const (
	softMinCPS = 5.0
	softMaxCPS = 25.0
	hardMinCPS = 1.5
	hardMaxCPS = 40.0
)

var fillerWords = map[string]bool{"um": true, "uh": true, "er": true, "ah": true, "hmm": true, "erm": true}

// Score returns a confidence for seg. A native value reported by the
// recognizer wins; otherwise a heuristic estimate is produced and flagged.
func Score(seg meetings.TranscriptSegment, native *float64) (float64, meetings.ConfidenceSource, error) {
	if native != nil {
		c := *native
		if c < 0 || c > 1 {
			return 0, "", apperrors.NewInputError("confidence", -1, "native confidence %.3f outside [0,1]", c)
		}
		return c, meetings.ConfidenceFromModel, nil
	}
	return heuristicConfidence(seg), meetings.ConfidenceFromHeuristic, nil
}

func heuristicConfidence(seg meetings.TranscriptSegment) float64 {
	text := strings.TrimSpace(seg.Text)
	dur := seg.Duration()

	score := 0.95
	switch {
	case utf8.RuneCountInString(text) < 5:
		score = 0.6
	case dur < 0.5:
		score = 0.7
	case strings.ContainsAny(text, "[]"):
		score = 0.5
	case hasFiller(text):
		score = 0.8
	}

	if dur > 0 {
		cps := float64(utf8.RuneCountInString(text)) / dur
		switch {
		case cps < hardMinCPS || cps > hardMaxCPS:
			score = min(score, 0.45)
		case cps < softMinCPS || cps > softMaxCPS:
			score = min(score, 0.75)
		}
	}
	return score
}

func hasFiller(text string) bool {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	})
	for _, w := range words {
		if fillerWords[w] {
			return true
		}
	}
	return false
}

// ScoreTranscript fills Confidence and ConfidenceSource on every segment.
// natives is indexed like segs and may be nil or shorter. Segments are
// scored in parallel slices; each writes only its own index.
func ScoreTranscript(ctx context.Context, segs []meetings.TranscriptSegment, natives []*float64, workers int) error {
	if workers <= 0 {
		workers = 1
	}
	const sliceSize = 256
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for lo := 0; lo < len(segs); lo += sliceSize {
		hi := min(lo+sliceSize, len(segs))
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			for i := lo; i < hi; i++ {
				var native *float64
				if i < len(natives) {
					native = natives[i]
				}
				c, src, err := Score(segs[i], native)
				if err != nil {
					return fmt.Errorf("segment %d: %w", i, err)
				}
				segs[i].Confidence = c
				segs[i].ConfidenceSource = src
			}
			return nil
		})
	}
	return g.Wait()
}
