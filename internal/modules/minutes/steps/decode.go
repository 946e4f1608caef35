package steps

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/yungbote/minutes-backend/internal/domain/meetings"
)

// FieldWarning records a repair applied to untrusted model output.
type FieldWarning struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (w FieldWarning) String() string { return w.Path + ": " + w.Message }

// ErrUnparseable means no JSON object could be recovered from a reply.
var ErrUnparseable = errors.New("model reply is not a JSON object")

// ExtractJSONObject recovers the JSON object from a reply that may be
// wrapped in markdown fences or surrounded by prose.
func ExtractJSONObject(raw string) (map[string]any, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, ErrUnparseable
	}
	candidates := []string{s}
	if fenced, ok := stripFence(s); ok {
		candidates = append(candidates, fenced)
	}
	if i, j := strings.Index(s, "{"), strings.LastIndex(s, "}"); i >= 0 && j > i {
		candidates = append(candidates, s[i:j+1])
	}
	for _, c := range candidates {
		var obj map[string]any
		if err := json.Unmarshal([]byte(c), &obj); err == nil && obj != nil {
			return obj, nil
		}
	}
	return nil, ErrUnparseable
}

func stripFence(s string) (string, bool) {
	start := strings.Index(s, "```")
	if start < 0 {
		return "", false
	}
	rest := s[start+3:]
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		// Drop a language tag such as "json".
		if tag := strings.TrimSpace(rest[:nl]); !strings.ContainsAny(tag, "{[") {
			rest = rest[nl+1:]
		}
	}
	end := strings.Index(rest, "```")
	if end < 0 {
		return strings.TrimSpace(rest), true
	}
	return strings.TrimSpace(rest[:end]), true
}

// DecodeMinutes decodes a model reply into MeetingMinutes, repairing what it
// can and recording each repair. Only a reply with no recoverable JSON object
// is an error.
func DecodeMinutes(raw string) (meetings.MeetingMinutes, []FieldWarning, error) {
	obj, err := ExtractJSONObject(raw)
	if err != nil {
		return meetings.MeetingMinutes{}, nil, err
	}
	mm, warns := RepairMinutes(obj)
	return mm, warns, nil
}

// RepairMinutes coerces a decoded object into MeetingMinutes. Unknown keys
// are ignored.
func RepairMinutes(obj map[string]any) (meetings.MeetingMinutes, []FieldWarning) {
	var warns []FieldWarning
	warn := func(path, format string, args ...any) {
		warns = append(warns, FieldWarning{Path: path, Message: fmt.Sprintf(format, args...)})
	}

	mm := meetings.EmptyMinutes()
	mm.Summary = stringList(obj, "summary", warn)
	mm.Decisions = stringList(obj, "decisions", warn)
	mm.Risks = stringList(obj, "risks", warn)
	mm.ActionItems = actionItems(obj, warn)

	if len(mm.Summary) > meetings.MaxSummaryBullets {
		warn("summary", "truncated %d bullets to %d", len(mm.Summary), meetings.MaxSummaryBullets)
		mm.Summary = mm.Summary[:meetings.MaxSummaryBullets]
	}
	return mm, warns
}

type warnFunc func(path, format string, args ...any)

func stringList(obj map[string]any, key string, warn warnFunc) []string {
	out := []string{}
	raw, ok := obj[key]
	if !ok || raw == nil {
		return out
	}
	switch v := raw.(type) {
	case []any:
		for i, el := range v {
			s, ok := scalarString(el)
			path := fmt.Sprintf("%s[%d]", key, i)
			if !ok {
				warn(path, "dropped non-text entry of type %s", typeName(el))
				continue
			}
			if s == "" {
				warn(path, "dropped empty entry")
				continue
			}
			out = append(out, s)
		}
	default:
		s, ok := scalarString(v)
		if !ok {
			warn(key, "dropped value of type %s, expected list", typeName(v))
			return out
		}
		if s == "" {
			warn(key, "dropped empty %s, expected list", typeName(v))
			return out
		}
		warn(key, "coerced %s to a one-element list", typeName(v))
		out = append(out, s)
	}
	return out
}

func actionItems(obj map[string]any, warn warnFunc) []meetings.ActionItem {
	out := []meetings.ActionItem{}
	raw, ok := obj["action_items"]
	if !ok || raw == nil {
		return out
	}
	var list []any
	switch v := raw.(type) {
	case []any:
		list = v
	case map[string]any:
		warn("action_items", "coerced single object to a one-element list")
		list = []any{v}
	default:
		warn("action_items", "dropped value of type %s, expected list", typeName(v))
		return out
	}

	for i, el := range list {
		path := fmt.Sprintf("action_items[%d]", i)
		m, ok := el.(map[string]any)
		if !ok {
			warn(path, "dropped non-object entry of type %s", typeName(el))
			continue
		}
		owner, _ := scalarString(m["owner"])
		task, _ := scalarString(m["task"])
		if owner == "" || task == "" {
			var missing []string
			if owner == "" {
				missing = append(missing, "owner")
			}
			if task == "" {
				missing = append(missing, "task")
			}
			warn(path, "dropped item missing %s", strings.Join(missing, " and "))
			continue
		}
		item := meetings.ActionItem{Owner: owner, Task: task, Confidence: 1.0, Status: meetings.ActionItemStatusOpen}

		switch d := m["due_date"].(type) {
		case nil:
		case string:
			if !isNullish(d) {
				if norm, ok := ParseDueDate(d); ok {
					item.DueDate = &norm
				} else {
					warn(path+".due_date", "unparseable date %q set to null", d)
				}
			}
		default:
			warn(path+".due_date", "non-string date of type %s set to null", typeName(d))
		}

		if c, ok := m["confidence"]; ok && c != nil {
			if f, ok := toFloat(c); ok {
				if f < 0 || f > 1 {
					warn(path+".confidence", "clamped %v into [0,1]", f)
					f = math.Max(0, math.Min(1, f))
				}
				item.Confidence = f
			} else {
				warn(path+".confidence", "ignored non-numeric confidence")
			}
		}
		if s, ok := scalarString(m["status"]); ok && s != "" {
			item.Status = s
		}
		out = append(out, item)
	}
	return out
}

func scalarString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	default:
		return "", false
	}
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, !math.IsNaN(t)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil && !math.IsNaN(f)
	default:
		return 0, false
	}
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "list"
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "bool"
	default:
		return fmt.Sprintf("%T", v)
	}
}
