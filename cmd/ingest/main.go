// Command ingest runs the minutes pipeline for one meeting, or for a batch
// manifest, and stores the results.
//
//	ingest -title "Weekly Sync" -date 2026-02-10T10:00:00Z -asr asr.json -turns turns.json
//	ingest -title "Weekly Sync" -date 2026-02-10 -audio gs://bucket/sync.flac
//	ingest -batch meetings.json
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/yungbote/minutes-backend/internal/app"
	"github.com/yungbote/minutes-backend/internal/clients/gcp"
	"github.com/yungbote/minutes-backend/internal/export"
	"github.com/yungbote/minutes-backend/internal/interchange"
	"github.com/yungbote/minutes-backend/internal/modules/minutes"
	"github.com/yungbote/minutes-backend/internal/platform/shutdown"
)

type options struct {
	id           string
	title        string
	date         string
	participants string
	agenda       string
	asrPath      string
	turnsPath    string
	audio        string
	language     string
	maxSpeakers  int
	batch        string
	markdown     string
}

func main() {
	_ = godotenv.Load()

	var o options
	flag.StringVar(&o.id, "id", "", "meeting id (uuid); generated when empty")
	flag.StringVar(&o.title, "title", "", "meeting title")
	flag.StringVar(&o.date, "date", "", "meeting date, ISO-8601")
	flag.StringVar(&o.participants, "participants", "", "comma-separated participant names")
	flag.StringVar(&o.agenda, "agenda", "", "meeting agenda")
	flag.StringVar(&o.asrPath, "asr", "", "JSON file with ASR segments")
	flag.StringVar(&o.turnsPath, "turns", "", "JSON file with diarization turns")
	flag.StringVar(&o.audio, "audio", "", "audio file or gs:// URI to transcribe instead of -asr/-turns")
	flag.StringVar(&o.language, "language", "en-US", "speech recognition language")
	flag.IntVar(&o.maxSpeakers, "max-speakers", 6, "upper bound for diarization")
	flag.StringVar(&o.batch, "batch", "", "JSON manifest with an array of meetings to process")
	flag.StringVar(&o.markdown, "markdown", "", "write the finished meeting as markdown to this path")
	flag.Parse()

	ctx, stop := shutdown.NotifyContext(context.Background())
	defer stop()

	a, err := app.New(ctx)
	if err != nil {
		fmt.Printf("failed to initialize app: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	if o.batch != "" {
		err = runBatch(ctx, a, o.batch)
	} else {
		err = runOne(ctx, a, o)
	}
	if err != nil {
		a.Log.Error("Ingest failed", "error", err)
		a.Close()
		os.Exit(1)
	}
}

func runOne(ctx context.Context, a *app.App, o options) error {
	date, err := interchange.ParseDate(o.date)
	if err != nil {
		return err
	}
	in := minutes.ProcessInput{
		ID:           o.id,
		Title:        o.title,
		Date:         date,
		Participants: splitList(o.participants),
		Agenda:       o.agenda,
	}

	if o.audio != "" {
		res, err := transcribe(ctx, a, o)
		if err != nil {
			return fmt.Errorf("transcribe %s: %w", o.audio, err)
		}
		in.AudioURI = res.SourceURI
		in.ASR = res.Segments
		in.Turns = res.Turns
	} else {
		if err := readJSON(o.asrPath, &in.ASR); err != nil {
			return fmt.Errorf("read asr: %w", err)
		}
		if o.turnsPath != "" {
			if err := readJSON(o.turnsPath, &in.Turns); err != nil {
				return fmt.Errorf("read turns: %w", err)
			}
		}
	}

	m, err := a.Services.Usecases.ProcessMeeting(ctx, in)
	if err != nil {
		return err
	}
	a.Log.Info("Meeting processed", "meeting_id", m.ID, "segments", len(m.Transcript), "needs_review", m.NeedsReview)
	fmt.Println(m.ID)

	if o.markdown != "" {
		if err := os.WriteFile(o.markdown, []byte(export.RenderMarkdown(m, export.DefaultOptions())), 0o644); err != nil {
			return fmt.Errorf("write markdown: %w", err)
		}
	}
	return nil
}

func runBatch(ctx context.Context, a *app.App, path string) error {
	var inputs []minutes.ProcessInput
	if err := readJSON(path, &inputs); err != nil {
		return fmt.Errorf("read manifest: %w", err)
	}
	results := a.Services.Usecases.ProcessBatch(ctx, inputs)
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			a.Log.Error("Batch item failed", "index", r.Index, "title", inputs[r.Index].Title, "error", r.Err)
			continue
		}
		a.Log.Info("Batch item processed", "index", r.Index, "meeting_id", r.Meeting.ID, "needs_review", r.Meeting.NeedsReview)
		fmt.Println(r.Meeting.ID)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d meetings failed", failed, len(inputs))
	}
	return nil
}

func transcribe(ctx context.Context, a *app.App, o options) (*gcp.SpeechResult, error) {
	speech := a.Clients.Speech
	if speech == nil {
		s, err := gcp.NewSpeech(ctx, a.Log)
		if err != nil {
			return nil, err
		}
		defer s.Close()
		speech = s
	}
	cfg := gcp.SpeechConfig{
		LanguageCode:    o.language,
		MinSpeakerCount: 1,
		MaxSpeakerCount: o.maxSpeakers,
	}
	if strings.HasPrefix(o.audio, "gs://") {
		return speech.TranscribeGCS(ctx, o.audio, cfg)
	}

	if bucket := a.Clients.AudioBucket; bucket != nil {
		f, err := os.Open(o.audio)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		uri, err := bucket.UploadAudio(ctx, filepath.Base(o.audio), f)
		if err != nil {
			return nil, fmt.Errorf("stage audio: %w", err)
		}
		return speech.TranscribeGCS(ctx, uri, cfg)
	}
	raw, err := os.ReadFile(o.audio)
	if err != nil {
		return nil, err
	}
	return speech.TranscribeBytes(ctx, raw, gcp.AudioContentType(o.audio), cfg)
}

func readJSON(path string, out any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
