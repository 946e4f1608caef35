package steps

import (
	"fmt"
	"strings"

	"github.com/yungbote/minutes-backend/internal/domain/meetings"
)

const MinutesSchemaName = "meeting_minutes"

const minutesSystemPrompt = `You are a professional meeting minutes assistant. Analyze the meeting transcript and extract structured information.

Respond with a single JSON object and nothing else:
{
  "summary": ["key outcome or topic", ...],
  "decisions": ["decision", ...],
  "action_items": [
    {"owner": "person name", "task": "clear task description", "due_date": "YYYY-MM-DD or null", "confidence": 0.9}
  ],
  "risks": ["risk, blocker or open question", ...]
}

Guidelines:
- summary: 5-8 bullets max, focused on outcomes.
- decisions: only decisions actually made in the meeting.
- action_items: every item needs an owner and a task. Use the due date only if one was stated. Set confidence by how clearly the item was assigned.
- risks: concerns, blockers and unresolved questions.
- If a section has no content, return an empty list.`

const mergeSystemPrompt = `You are a professional meeting minutes assistant. You are given partial minutes produced from consecutive parts of one meeting.

Merge them into one set of minutes with the same JSON structure:
{"summary": [...], "decisions": [...], "action_items": [{"owner": "...", "task": "...", "due_date": "YYYY-MM-DD or null", "confidence": 0.9}], "risks": [...]}

Remove duplicates, keep every distinct decision and action item, and keep the summary to at most 8 bullets. Respond with the JSON object only.`

const correctiveInstruction = `Your previous reply could not be parsed as the required JSON object. Reply again with ONLY a valid JSON object with the keys "summary", "decisions", "action_items" and "risks". Do not wrap it in markdown and do not add commentary.`

// MinutesSchema is the structured-output schema sent to providers that
// support it. Decoding never trusts that the provider honoured it.
func MinutesSchema() map[string]any {
	str := map[string]any{"type": "string"}
	list := map[string]any{"type": "array", "items": str}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"summary", "decisions", "action_items", "risks"},
		"properties": map[string]any{
			"summary":   list,
			"decisions": list,
			"risks":     list,
			"action_items": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"required":             []string{"owner", "task", "due_date", "confidence"},
					"properties": map[string]any{
						"owner":      str,
						"task":       str,
						"due_date":   map[string]any{"type": []string{"string", "null"}},
						"confidence": map[string]any{"type": "number"},
					},
				},
			},
		},
	}
}

// MeetingContext is the optional header given to the model ahead of the
// transcript.
type MeetingContext struct {
	Title        string
	Agenda       string
	Participants []string
}

func (mc MeetingContext) render() string {
	var parts []string
	if t := strings.TrimSpace(mc.Title); t != "" {
		parts = append(parts, "Title: "+t)
	}
	if len(mc.Participants) > 0 {
		parts = append(parts, "Participants: "+strings.Join(mc.Participants, ", "))
	}
	if a := strings.TrimSpace(mc.Agenda); a != "" {
		parts = append(parts, "Agenda: "+a)
	}
	if len(parts) == 0 {
		return ""
	}
	return "Meeting Context:\n" + strings.Join(parts, "\n") + "\n\n"
}

func chunkUserPrompt(mc MeetingContext, chunk string, part, total int) string {
	var b strings.Builder
	b.WriteString(mc.render())
	if total > 1 {
		fmt.Fprintf(&b, "Meeting Transcript (part %d of %d):\n", part, total)
	} else {
		b.WriteString("Meeting Transcript:\n")
	}
	b.WriteString(chunk)
	return b.String()
}

// FormatTimestamp renders seconds as MM:SS; minutes keep counting past 59.
func FormatTimestamp(sec float64) string {
	if sec < 0 {
		sec = 0
	}
	total := int(sec)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

// FormatTranscript groups consecutive segments of one speaker under a
// "[MM:SS] Speaker:" header.
func FormatTranscript(segs []meetings.TranscriptSegment) string {
	return strings.Join(transcriptBlocks(segs), "\n")
}

func transcriptBlocks(segs []meetings.TranscriptSegment) []string {
	var blocks []string
	var cur strings.Builder
	speaker := ""
	for i, seg := range segs {
		if i == 0 || seg.Speaker != speaker {
			if cur.Len() > 0 {
				blocks = append(blocks, cur.String())
				cur.Reset()
			}
			speaker = seg.Speaker
			fmt.Fprintf(&cur, "[%s] %s:\n", FormatTimestamp(seg.Start), seg.Speaker)
		}
		cur.WriteString("  ")
		cur.WriteString(strings.TrimSpace(seg.Text))
		cur.WriteString("\n")
	}
	if cur.Len() > 0 {
		blocks = append(blocks, cur.String())
	}
	return blocks
}

// ChunkTranscript splits the formatted transcript into pieces of at most
// limit bytes, cutting only between segments. A single segment longer than
// limit becomes its own chunk.
func ChunkTranscript(segs []meetings.TranscriptSegment, limit int) []string {
	if len(segs) == 0 {
		return nil
	}
	if limit <= 0 {
		return []string{FormatTranscript(segs)}
	}
	var chunks []string
	var cur []meetings.TranscriptSegment
	size := 0
	for _, seg := range segs {
		// Header plus indented text; a new chunk always repeats the header.
		line := len(seg.Text) + len(seg.Speaker) + 16
		if len(cur) > 0 && size+line > limit {
			chunks = append(chunks, FormatTranscript(cur))
			cur, size = nil, 0
		}
		cur = append(cur, seg)
		size += line
	}
	if len(cur) > 0 {
		chunks = append(chunks, FormatTranscript(cur))
	}
	return chunks
}
