package steps

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func warningPaths(ws []FieldWarning) []string {
	out := make([]string, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.Path)
	}
	return out
}

func TestDecodeMissingActionItemsBecomesEmpty(t *testing.T) {
	mm, _, err := DecodeMinutes(`{"summary":["s"],"decisions":["d"],"risks":[]}`)
	if err != nil {
		t.Fatalf("DecodeMinutes: %v", err)
	}
	if mm.ActionItems == nil || len(mm.ActionItems) != 0 {
		t.Fatalf("action_items=%#v want empty non-nil", mm.ActionItems)
	}
	if !reflect.DeepEqual(mm.Summary, []string{"s"}) || !reflect.DeepEqual(mm.Decisions, []string{"d"}) {
		t.Fatalf("unexpected minutes: %+v", mm)
	}
}

func TestDecodeDropsActionItemWithEmptyTask(t *testing.T) {
	mm, warns, err := DecodeMinutes(`{"action_items":[
		{"owner":"Sarah","task":"","due_date":null},
		{"owner":"Bob","task":"Update roadmap","due_date":"2026-02-10"}
	]}`)
	if err != nil {
		t.Fatalf("DecodeMinutes: %v", err)
	}
	if len(mm.ActionItems) != 1 || mm.ActionItems[0].Owner != "Bob" {
		t.Fatalf("action_items=%+v", mm.ActionItems)
	}
	if got := *mm.ActionItems[0].DueDate; got != "2026-02-10" {
		t.Fatalf("due_date=%s", got)
	}
	if len(warns) != 1 || warns[0].Path != "action_items[0]" || !strings.Contains(warns[0].Message, "task") {
		t.Fatalf("warnings=%+v", warns)
	}
}

func TestDecodeRepairsShapes(t *testing.T) {
	raw := "Here you go:\n```json\n" + `{
		"summary": "Only one bullet",
		"decisions": [1, {"x": 1}, "  ", "Ship it"],
		"risks": {"text": "nested"},
		"action_items": {"owner": "Ann", "task": "Write notes", "due_date": "next week", "confidence": 3, "status": "Done"},
		"sentiment": "positive"
	}` + "\n```\nLet me know!"
	mm, warns, err := DecodeMinutes(raw)
	if err != nil {
		t.Fatalf("DecodeMinutes: %v", err)
	}
	if !reflect.DeepEqual(mm.Summary, []string{"Only one bullet"}) {
		t.Fatalf("summary=%v", mm.Summary)
	}
	if !reflect.DeepEqual(mm.Decisions, []string{"1", "Ship it"}) {
		t.Fatalf("decisions=%v", mm.Decisions)
	}
	if len(mm.Risks) != 0 {
		t.Fatalf("risks=%v", mm.Risks)
	}
	if len(mm.ActionItems) != 1 {
		t.Fatalf("action_items=%+v", mm.ActionItems)
	}
	item := mm.ActionItems[0]
	if item.DueDate != nil || item.Confidence != 1 || item.Status != "Done" {
		t.Fatalf("item=%+v", item)
	}
	want := []string{
		"summary",
		"decisions[1]",
		"decisions[2]",
		"action_items",
		"action_items[0].due_date",
		"action_items[0].confidence",
		"risks",
	}
	got := warningPaths(warns)
	for _, w := range want {
		found := false
		for _, g := range got {
			if g == w {
				found = true
			}
		}
		if !found {
			t.Fatalf("missing warning %q in %v", w, got)
		}
	}
}

func TestDecodeWarnsOnEmptyScalar(t *testing.T) {
	mm, warns, err := DecodeMinutes(`{"summary":"","decisions":["  "],"risks":"   ","action_items":[]}`)
	if err != nil {
		t.Fatalf("DecodeMinutes: %v", err)
	}
	if len(mm.Summary) != 0 || len(mm.Decisions) != 0 || len(mm.Risks) != 0 {
		t.Fatalf("unexpected minutes: %+v", mm)
	}
	want := []string{"summary", "decisions[0]", "risks"}
	if got := warningPaths(warns); !reflect.DeepEqual(got, want) {
		t.Fatalf("warning paths=%v want %v", got, want)
	}
}

func TestDecodeCapsSummary(t *testing.T) {
	mm, warns, err := DecodeMinutes(`{"summary":["1","2","3","4","5","6","7","8","9","10"]}`)
	if err != nil {
		t.Fatalf("DecodeMinutes: %v", err)
	}
	if len(mm.Summary) != 8 {
		t.Fatalf("summary len=%d", len(mm.Summary))
	}
	if len(warns) != 1 || warns[0].Path != "summary" {
		t.Fatalf("warnings=%+v", warns)
	}
}

func TestDecodeUnparseable(t *testing.T) {
	for _, raw := range []string{"", "not json at all", "[1,2,3]", "{broken"} {
		if _, _, err := DecodeMinutes(raw); !errors.Is(err, ErrUnparseable) {
			t.Fatalf("DecodeMinutes(%q) err=%v", raw, err)
		}
	}
}

func TestParseDueDate(t *testing.T) {
	cases := map[string]string{
		"2026-03-01":           "2026-03-01",
		"2026-03-01T17:00:00Z": "2026-03-01",
		"03/01/2026":           "2026-03-01",
		"March 1, 2026":        "2026-03-01",
		"Mar 1 2026":           "2026-03-01",
		"1 March 2026":         "2026-03-01",
		"2026/03/01":           "2026-03-01",
	}
	for in, want := range cases {
		got, ok := ParseDueDate(in)
		if !ok || got != want {
			t.Errorf("ParseDueDate(%q)=%q,%v want %q", in, got, ok, want)
		}
	}
	for _, in := range []string{"next Friday", "TBD", "2026-13-45"} {
		if _, ok := ParseDueDate(in); ok {
			t.Errorf("ParseDueDate(%q) should fail", in)
		}
	}
}
