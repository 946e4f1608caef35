package steps

import (
	"errors"
	"reflect"
	"testing"

	"github.com/yungbote/minutes-backend/internal/domain/meetings"
	apperrors "github.com/yungbote/minutes-backend/internal/pkg/errors"
)

func asrSeg(start, end float64, text string) meetings.ASRSegment {
	return meetings.ASRSegment{Start: start, End: end, Text: text}
}

func turn(start, end float64, speaker string) meetings.DiarizationTurn {
	return meetings.DiarizationTurn{Start: start, End: end, Speaker: speaker}
}

func speakersOf(segs []meetings.TranscriptSegment) []string {
	out := make([]string, 0, len(segs))
	for _, s := range segs {
		out = append(out, s.Speaker)
	}
	return out
}

func TestNormalizeTurnsMergesSameSpeaker(t *testing.T) {
	got, err := NormalizeTurns([]meetings.DiarizationTurn{turn(4, 9, "A"), turn(0, 5, "A")})
	if err != nil {
		t.Fatalf("NormalizeTurns: %v", err)
	}
	want := []meetings.DiarizationTurn{turn(0, 9, "A")}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestNormalizeTurnsKeepsDifferentSpeakers(t *testing.T) {
	got, err := NormalizeTurns([]meetings.DiarizationTurn{turn(3, 8, "B"), turn(0, 5, "A"), turn(5, 6, "A")})
	if err != nil {
		t.Fatalf("NormalizeTurns: %v", err)
	}
	want := []meetings.DiarizationTurn{turn(0, 6, "A"), turn(3, 8, "B")}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestAlignGapGoesToNearestTurn(t *testing.T) {
	out, err := Align(
		[]meetings.ASRSegment{asrSeg(6, 8, "in the gap")},
		[]meetings.DiarizationTurn{turn(0, 5, "A"), turn(10, 15, "B")},
	)
	if err != nil {
		t.Fatalf("Align: %v", err)
	}
	if out[0].Speaker != "A" {
		t.Fatalf("speaker=%q want A", out[0].Speaker)
	}
}

func TestAlignBeforeAndAfterAllTurns(t *testing.T) {
	out, err := Align(
		[]meetings.ASRSegment{asrSeg(0, 1, "early"), asrSeg(30, 31, "late")},
		[]meetings.DiarizationTurn{turn(5, 10, "A"), turn(10, 20, "B")},
	)
	if err != nil {
		t.Fatalf("Align: %v", err)
	}
	if got := speakersOf(out); !reflect.DeepEqual(got, []string{"A", "B"}) {
		t.Fatalf("speakers=%v", got)
	}
}

func TestAlignMaxOverlapRatio(t *testing.T) {
	// [2,8] overlaps A by 3s and B by 3s; tie goes to the earlier turn.
	out, err := Align(
		[]meetings.ASRSegment{asrSeg(2, 8, "tie"), asrSeg(4, 10, "mostly B")},
		[]meetings.DiarizationTurn{turn(5, 12, "B"), turn(0, 5, "A")},
	)
	if err != nil {
		t.Fatalf("Align: %v", err)
	}
	if got := speakersOf(out); !reflect.DeepEqual(got, []string{"A", "B"}) {
		t.Fatalf("speakers=%v", got)
	}
}

func TestAlignEmptyDiarizationIsUnknown(t *testing.T) {
	out, err := Align([]meetings.ASRSegment{asrSeg(0, 1, "hi")}, nil)
	if err != nil {
		t.Fatalf("Align: %v", err)
	}
	if out[0].Speaker != meetings.UnknownSpeaker {
		t.Fatalf("speaker=%q", out[0].Speaker)
	}
}

func TestAlignZeroDurationUsesContainment(t *testing.T) {
	out, err := Align(
		[]meetings.ASRSegment{asrSeg(7, 7, "blip"), asrSeg(12, 12, "gap blip")},
		[]meetings.DiarizationTurn{turn(0, 5, "A"), turn(5, 10, "B"), turn(14, 20, "C")},
	)
	if err != nil {
		t.Fatalf("Align: %v", err)
	}
	if got := speakersOf(out); !reflect.DeepEqual(got, []string{"B", "B"}) {
		t.Fatalf("speakers=%v", got)
	}
}

func TestAlignPassesThroughAndIsDeterministic(t *testing.T) {
	asr := []meetings.ASRSegment{asrSeg(0, 2, "hi"), asrSeg(2, 4, "hello")}
	turns := []meetings.DiarizationTurn{turn(2, 4, "SPK2"), turn(0, 2, "SPK1")}
	first, err := Align(asr, turns)
	if err != nil {
		t.Fatalf("Align: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := Align(asr, turns)
		if err != nil {
			t.Fatalf("Align: %v", err)
		}
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("non-deterministic output: %v vs %v", first, again)
		}
	}
	for i, seg := range first {
		if seg.Start != asr[i].Start || seg.End != asr[i].End || seg.Text != asr[i].Text {
			t.Fatalf("segment %d altered: %+v", i, seg)
		}
	}
	if got := speakersOf(first); !reflect.DeepEqual(got, []string{"SPK1", "SPK2"}) {
		t.Fatalf("speakers=%v", got)
	}
}

func TestAlignRejectsMalformedInput(t *testing.T) {
	cases := map[string]struct {
		asr   []meetings.ASRSegment
		turns []meetings.DiarizationTurn
	}{
		"start after end": {asr: []meetings.ASRSegment{asrSeg(5, 2, "x")}},
		"negative start":  {asr: []meetings.ASRSegment{asrSeg(-1, 2, "x")}},
		"empty text":      {asr: []meetings.ASRSegment{asrSeg(0, 2, "  ")}},
		"unsorted asr":    {asr: []meetings.ASRSegment{asrSeg(3, 4, "b"), asrSeg(0, 2, "a")}},
		"bad turn":        {asr: []meetings.ASRSegment{asrSeg(0, 2, "x")}, turns: []meetings.DiarizationTurn{turn(4, 1, "A")}},
		"unlabelled turn": {asr: []meetings.ASRSegment{asrSeg(0, 2, "x")}, turns: []meetings.DiarizationTurn{turn(0, 1, "")}},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Align(tc.asr, tc.turns)
			if !errors.Is(err, apperrors.ErrInvalidArgument) {
				t.Fatalf("expected InputError, got %v", err)
			}
		})
	}
}
