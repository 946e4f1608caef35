package gcp

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/durationpb"

	"github.com/yungbote/minutes-backend/internal/domain/meetings"
	"github.com/yungbote/minutes-backend/internal/pkg/httpx"
	"github.com/yungbote/minutes-backend/internal/platform/ctxutil"
	"github.com/yungbote/minutes-backend/internal/platform/logger"
)

// Speech turns meeting audio into ASR segments and diarization turns, the
// two inputs of the minutes pipeline.
type Speech interface {
	TranscribeGCS(ctx context.Context, gcsURI string, cfg SpeechConfig) (*SpeechResult, error)
	TranscribeBytes(ctx context.Context, audio []byte, mimeType string, cfg SpeechConfig) (*SpeechResult, error)
	Close() error
}

type SpeechConfig struct {
	LanguageCode string
	Model        string
	UseEnhanced  bool

	MinSpeakerCount int
	MaxSpeakerCount int

	SampleRateHertz   int
	AudioChannelCount int
	Encoding          speechpb.RecognitionConfig_AudioEncoding

	// SegmentWindow bounds one ASR segment in seconds.
	SegmentWindow float64
}

type SpeechResult struct {
	SourceURI string                     `json:"source_uri,omitempty"`
	Segments  []meetings.ASRSegment      `json:"segments"`
	Turns     []meetings.DiarizationTurn `json:"turns"`
}

type speechService struct {
	log        *logger.Logger
	client     *speech.Client
	maxRetries int
}

func NewSpeech(ctx context.Context, log *logger.Logger) (Speech, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	c, err := speech.NewClient(ctx, ClientOptionsFromEnv()...)
	if err != nil {
		return nil, fmt.Errorf("speech client: %w", err)
	}
	return &speechService{
		log:        log.With("service", "gcp.Speech"),
		client:     c,
		maxRetries: 4,
	}, nil
}

func (s *speechService) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

func (s *speechService) TranscribeGCS(ctx context.Context, gcsURI string, cfg SpeechConfig) (*SpeechResult, error) {
	if !strings.HasPrefix(gcsURI, "gs://") {
		return nil, fmt.Errorf("gcsURI must be gs://... got %q", gcsURI)
	}
	ctx, cancel := context.WithTimeout(ctxutil.Default(ctx), 30*time.Minute)
	defer cancel()

	req := &speechpb.LongRunningRecognizeRequest{
		Config: buildRecognitionConfig("", gcsURI, cfg),
		Audio:  &speechpb.RecognitionAudio{AudioSource: &speechpb.RecognitionAudio_Uri{Uri: gcsURI}},
	}
	resp, err := s.recognize(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("speech longrunningrecognize(gcs): %w", err)
	}
	out := ParseRecognition(resp, cfg.SegmentWindow)
	out.SourceURI = gcsURI
	s.log.Info("Audio transcribed", "source", gcsURI, "segments", len(out.Segments), "turns", len(out.Turns))
	return out, nil
}

func (s *speechService) TranscribeBytes(ctx context.Context, audio []byte, mimeType string, cfg SpeechConfig) (*SpeechResult, error) {
	if len(audio) == 0 {
		return &SpeechResult{Segments: []meetings.ASRSegment{}, Turns: []meetings.DiarizationTurn{}}, nil
	}
	ctx, cancel := context.WithTimeout(ctxutil.Default(ctx), 5*time.Minute)
	defer cancel()

	req := &speechpb.LongRunningRecognizeRequest{
		Config: buildRecognitionConfig(mimeType, "", cfg),
		Audio:  &speechpb.RecognitionAudio{AudioSource: &speechpb.RecognitionAudio_Content{Content: audio}},
	}
	resp, err := s.recognize(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("speech longrunningrecognize(bytes): %w", err)
	}
	return ParseRecognition(resp, cfg.SegmentWindow), nil
}

func (s *speechService) recognize(ctx context.Context, req *speechpb.LongRunningRecognizeRequest) (*speechpb.LongRunningRecognizeResponse, error) {
	backoff := 750 * time.Millisecond
	var last error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		op, err := s.client.LongRunningRecognize(ctx, req)
		if err == nil {
			var resp *speechpb.LongRunningRecognizeResponse
			if resp, err = op.Wait(ctx); err == nil {
				return resp, nil
			}
		}
		last = err
		if !retryableStatus(err) || attempt == s.maxRetries {
			break
		}
		s.log.Warn("Speech request retrying", "attempt", attempt+1, "error", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(httpx.JitterSleep(backoff)):
		}
		backoff = httpx.NextBackoff(backoff, 10*time.Second)
	}
	return nil, last
}

func retryableStatus(err error) bool {
	switch status.Code(err) {
	case codes.Unavailable, codes.ResourceExhausted, codes.DeadlineExceeded:
		return true
	default:
		return false
	}
}

func buildRecognitionConfig(mimeType, gcsURI string, cfg SpeechConfig) *speechpb.RecognitionConfig {
	if cfg.LanguageCode == "" {
		cfg.LanguageCode = "en-US"
	}
	enc := cfg.Encoding
	if enc == speechpb.RecognitionConfig_ENCODING_UNSPECIFIED {
		enc = inferEncoding(mimeType, gcsURI)
	}
	return &speechpb.RecognitionConfig{
		LanguageCode:               cfg.LanguageCode,
		Model:                      cfg.Model,
		UseEnhanced:                cfg.UseEnhanced,
		EnableAutomaticPunctuation: true,
		EnableWordTimeOffsets:      true,
		EnableWordConfidence:       true,
		Encoding:                   enc,
		SampleRateHertz:            int32(max(cfg.SampleRateHertz, 0)),
		AudioChannelCount:          int32(max(cfg.AudioChannelCount, 0)),
		DiarizationConfig: &speechpb.SpeakerDiarizationConfig{
			EnableSpeakerDiarization: true,
			MinSpeakerCount:          int32(max(cfg.MinSpeakerCount, 0)),
			MaxSpeakerCount:          int32(max(cfg.MaxSpeakerCount, 0)),
		},
	}
}

func inferEncoding(mimeType, gcsURI string) speechpb.RecognitionConfig_AudioEncoding {
	m := strings.ToLower(strings.TrimSpace(mimeType))
	ext := strings.ToLower(filepath.Ext(gcsURI))
	switch {
	case strings.Contains(m, "wav") || ext == ".wav":
		return speechpb.RecognitionConfig_LINEAR16
	case strings.Contains(m, "flac") || ext == ".flac":
		return speechpb.RecognitionConfig_FLAC
	case strings.Contains(m, "mp3") || ext == ".mp3":
		return speechpb.RecognitionConfig_MP3
	case strings.Contains(m, "ogg") || ext == ".ogg" || ext == ".opus":
		return speechpb.RecognitionConfig_OGG_OPUS
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED
	}
}

type speechWord struct {
	w   string
	s   float64
	e   float64
	spk int32
	c   float32
}

// ParseRecognition splits a recognition response into time-windowed ASR
// segments and per-speaker diarization turns.
//
// With diarization enabled the service repeats every word, speaker tagged,
// in the final result; the tagged words are used when present.
func ParseRecognition(resp *speechpb.LongRunningRecognizeResponse, window float64) *SpeechResult {
	out := &SpeechResult{Segments: []meetings.ASRSegment{}, Turns: []meetings.DiarizationTurn{}}
	if resp == nil {
		return out
	}
	var plain, tagged []speechWord
	for _, r := range resp.GetResults() {
		alts := r.GetAlternatives()
		if len(alts) == 0 {
			continue
		}
		words := make([]speechWord, 0, len(alts[0].GetWords()))
		hasTag := false
		for _, w := range alts[0].GetWords() {
			if strings.TrimSpace(w.GetWord()) == "" {
				continue
			}
			words = append(words, speechWord{
				w:   w.GetWord(),
				s:   durToSec(w.GetStartTime()),
				e:   durToSec(w.GetEndTime()),
				spk: w.GetSpeakerTag(),
				c:   w.GetConfidence(),
			})
			hasTag = hasTag || w.GetSpeakerTag() > 0
		}
		if hasTag {
			tagged = words
		} else {
			plain = append(plain, words...)
		}
	}
	words := plain
	if len(tagged) > 0 {
		words = tagged
	}
	out.Segments = groupByTime(words, window)
	if len(tagged) > 0 {
		out.Turns = groupBySpeaker(tagged)
	}
	return out
}

func groupBySpeaker(words []speechWord) []meetings.DiarizationTurn {
	turns := []meetings.DiarizationTurn{}
	if len(words) == 0 {
		return turns
	}
	cur := meetings.DiarizationTurn{Start: words[0].s, End: words[0].e, Speaker: speakerLabel(words[0].spk)}
	for _, w := range words[1:] {
		label := speakerLabel(w.spk)
		if label != cur.Speaker {
			turns = append(turns, cur)
			cur = meetings.DiarizationTurn{Start: w.s, End: w.e, Speaker: label}
			continue
		}
		cur.End = max(cur.End, w.e)
	}
	return append(turns, cur)
}

func groupByTime(words []speechWord, window float64) []meetings.ASRSegment {
	segs := []meetings.ASRSegment{}
	if len(words) == 0 {
		return segs
	}
	if window <= 0 {
		window = 10
	}

	var buf strings.Builder
	var confSum float64
	var confN int
	start, end := words[0].s, words[0].e

	flush := func() {
		txt := strings.TrimSpace(buf.String())
		if txt == "" {
			return
		}
		seg := meetings.ASRSegment{Start: start, End: end, Text: txt}
		if confN > 0 {
			v := confSum / float64(confN)
			seg.Confidence = &v
		}
		segs = append(segs, seg)
		buf.Reset()
		confSum, confN = 0, 0
	}

	for _, w := range words {
		if w.s-start >= window && buf.Len() > 0 {
			flush()
			start, end = w.s, w.e
		}
		if buf.Len() > 0 {
			buf.WriteString(" ")
		}
		buf.WriteString(w.w)
		end = max(end, w.e)
		if w.c > 0 {
			confSum += float64(w.c)
			confN++
		}
	}
	flush()
	return segs
}

func speakerLabel(tag int32) string {
	if tag <= 0 {
		return meetings.UnknownSpeaker
	}
	return fmt.Sprintf("SPK%d", tag)
}

func durToSec(d *durationpb.Duration) float64 {
	if d == nil {
		return 0
	}
	return float64(d.Seconds) + float64(d.Nanos)/1e9
}
