// Package export renders finalized meetings for people: markdown minutes
// with an optional transcript.
package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/yungbote/minutes-backend/internal/domain/meetings"
)

type Options struct {
	IncludeTranscript    bool
	IncludeTimestamps    bool
	IncludeSpeakerLabels bool
}

func DefaultOptions() Options {
	return Options{IncludeTranscript: true, IncludeTimestamps: true, IncludeSpeakerLabels: true}
}

func RenderMarkdown(m *meetings.Meeting, opts Options) string {
	var b strings.Builder
	title := strings.TrimSpace(m.Title)
	if title == "" {
		title = "Meeting Minutes"
	}
	fmt.Fprintf(&b, "# %s\n\n", escapeLine(title))
	fmt.Fprintf(&b, "- Date: %s\n", m.Date.UTC().Format("January 2, 2006 15:04 MST"))
	fmt.Fprintf(&b, "- Participants: %s\n", orNA(strings.Join(m.Participants, ", ")))
	fmt.Fprintf(&b, "- Agenda: %s\n", orNA(escapeLine(m.Agenda)))
	if m.NeedsReview {
		b.WriteString("\n> **Needs review:** these minutes were generated by the fallback path and must be checked by hand.\n")
	}
	b.WriteString("\n---\n")

	if mm := m.Minutes; mm != nil {
		bulletSection(&b, "Executive Summary", mm.Summary)
		bulletSection(&b, "Key Decisions", mm.Decisions)
		if len(mm.ActionItems) > 0 {
			b.WriteString("\n## Action Items\n\n| Owner | Action | Due Date | Status |\n|---|---|---|---|\n")
			for _, a := range mm.ActionItems {
				due := "TBD"
				if a.DueDate != nil && *a.DueDate != "" {
					due = *a.DueDate
				}
				fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", cell(a.Owner), cell(a.Task), cell(due), cell(a.Status))
			}
		}
		bulletSection(&b, "Risks & Open Questions", mm.Risks)
	}

	if opts.IncludeTranscript && len(m.Transcript) > 0 {
		b.WriteString("\n## Transcript\n")
		current := ""
		for i, seg := range m.Transcript {
			if opts.IncludeSpeakerLabels && (i == 0 || seg.Speaker != current) {
				fmt.Fprintf(&b, "\n**%s**\n\n", escapeLine(seg.Speaker))
				current = seg.Speaker
			} else if i == 0 {
				b.WriteString("\n")
			}
			text := strings.TrimSpace(seg.Text)
			if opts.IncludeTimestamps {
				text = fmt.Sprintf("[%s] %s", secToTS(seg.Start), text)
			}
			b.WriteString(text + "\n\n")
		}
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}

func bulletSection(b *strings.Builder, heading string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "\n## %s\n\n", heading)
	for _, it := range items {
		fmt.Fprintf(b, "- %s\n", escapeLine(it))
	}
}

func secToTS(sec float64) string {
	d := time.Duration(sec*1000) * time.Millisecond
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

func escapeLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func cell(s string) string {
	return strings.ReplaceAll(escapeLine(s), "|", "\\|")
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}
