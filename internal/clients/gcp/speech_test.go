package gcp

import (
	"testing"
	"time"

	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/protobuf/types/known/durationpb"
)

func secs(f float64) time.Duration { return time.Duration(f * float64(time.Second)) }

func word(w string, s, e float64, tag int32, c float32) *speechpb.WordInfo {
	return &speechpb.WordInfo{
		Word:       w,
		StartTime:  durationpb.New(secs(s)),
		EndTime:    durationpb.New(secs(e)),
		SpeakerTag: tag,
		Confidence: c,
	}
}

func TestParseRecognitionUsesSpeakerTaggedWords(t *testing.T) {
	resp := &speechpb.LongRunningRecognizeResponse{Results: []*speechpb.SpeechRecognitionResult{
		{Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: "good morning", Words: []*speechpb.WordInfo{
			word("good", 0, 0.5, 0, 0.9), word("morning", 0.5, 1, 0, 0.7),
		}}}},
		{Alternatives: []*speechpb.SpeechRecognitionAlternative{{Words: []*speechpb.WordInfo{
			word("good", 0, 0.5, 1, 0.9),
			word("morning", 0.5, 1, 1, 0.7),
			word("hi", 1.2, 1.5, 2, 0),
			word("later", 12, 12.5, 1, 0.5),
		}}}},
	}}

	out := ParseRecognition(resp, 10)
	if len(out.Segments) != 2 {
		t.Fatalf("segments=%+v", out.Segments)
	}
	first := out.Segments[0]
	if first.Text != "good morning hi" || first.Start != 0 || first.End != 1.5 {
		t.Fatalf("first segment=%+v", first)
	}
	if first.Confidence == nil || *first.Confidence < 0.79 || *first.Confidence > 0.81 {
		t.Fatalf("confidence should average non-zero words: %v", first.Confidence)
	}
	if out.Segments[1].Text != "later" {
		t.Fatalf("second segment=%+v", out.Segments[1])
	}

	want := []string{"SPK1", "SPK2", "SPK1"}
	if len(out.Turns) != len(want) {
		t.Fatalf("turns=%+v", out.Turns)
	}
	for i, turn := range out.Turns {
		if turn.Speaker != want[i] {
			t.Fatalf("turn %d speaker=%q want %q", i, turn.Speaker, want[i])
		}
	}
	if out.Turns[0].End != 1 || out.Turns[2].Start != 12 {
		t.Fatalf("turn bounds=%+v", out.Turns)
	}
}

func TestParseRecognitionWithoutDiarization(t *testing.T) {
	resp := &speechpb.LongRunningRecognizeResponse{Results: []*speechpb.SpeechRecognitionResult{
		{Alternatives: []*speechpb.SpeechRecognitionAlternative{{Words: []*speechpb.WordInfo{word("hello", 0, 1, 0, 0)}}}},
	}}
	out := ParseRecognition(resp, 0)
	if len(out.Segments) != 1 || out.Segments[0].Confidence != nil {
		t.Fatalf("segments=%+v", out.Segments)
	}
	if len(out.Turns) != 0 {
		t.Fatalf("turns should be empty without speaker tags: %+v", out.Turns)
	}
	if ParseRecognition(nil, 10).Segments == nil {
		t.Fatalf("nil response should give empty, non-nil segments")
	}
}

func TestAudioHelpers(t *testing.T) {
	if got := GCSURI("bkt", "/meetings/a.wav"); got != "gs://bkt/meetings/a.wav" {
		t.Fatalf("GCSURI=%q", got)
	}
	if got := AudioContentType("x/REC.MP3"); got != "audio/mpeg" {
		t.Fatalf("content type=%q", got)
	}
	b := &audioBucket{prefix: "audio"}
	if got := b.objectKey("/2026/a.flac"); got != "audio/2026/a.flac" {
		t.Fatalf("objectKey=%q", got)
	}
}
