package export

import (
	"strings"
	"testing"
	"time"

	"github.com/yungbote/minutes-backend/internal/data/repos/testutil"
)

func TestRenderMarkdownSections(t *testing.T) {
	m := testutil.WeeklySync(time.Date(2026, 2, 3, 9, 30, 0, 0, time.UTC))
	m.Minutes.ActionItems[0].Task = "Migrate a|b tables"
	out := RenderMarkdown(m, DefaultOptions())

	for _, want := range []string{
		"# Weekly Team Sync - Feb 2026\n",
		"- Date: February 3, 2026 09:30 UTC\n",
		"- Participants: John Smith, Sarah Johnson, Bob Wilson\n",
		"## Executive Summary\n\n- API integration is 80% complete\n",
		"## Key Decisions\n",
		"| Bob Wilson | Migrate a\\|b tables | 2026-02-20 | Open |\n",
		"| Sarah Johnson | Finish API integration | TBD | Open |\n",
		"## Risks & Open Questions\n",
		"**Sarah Johnson**\n\n[00:04] The API integration is about eighty percent done.\n",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Needs review") {
		t.Fatalf("review banner on a clean meeting")
	}
}

func TestRenderMarkdownOptions(t *testing.T) {
	m := testutil.SprintPlanning(time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC))
	m.Transcript[0].Start = 3725
	out := RenderMarkdown(m, Options{IncludeTranscript: true, IncludeTimestamps: true})
	if !strings.Contains(out, "Needs review") {
		t.Fatalf("expected review banner")
	}
	if strings.Contains(out, "**John Smith**") {
		t.Fatalf("speaker labels should be off")
	}
	if !strings.Contains(out, "[01:02:05] Good morning") {
		t.Fatalf("expected hour timestamp:\n%s", out)
	}
	if strings.Contains(out, "## Executive Summary") {
		t.Fatalf("no minutes section expected")
	}

	short := RenderMarkdown(m, Options{})
	if strings.Contains(short, "## Transcript") {
		t.Fatalf("transcript should be omitted")
	}
}
