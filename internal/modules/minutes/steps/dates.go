package steps

import (
	"strings"
	"time"
)

var dueDateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006/01/02",
	"2006.01.02",
	"01/02/2006",
	"1/2/2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"Jan 2 2006",
	"January 2 2006",
	"Mon, Jan 2, 2006",
	"Monday, January 2, 2006",
	"2 Jan 2006",
	"2 January 2006",
	"02-Jan-2006",
}

// ParseDueDate accepts the date spellings models commonly produce and
// normalizes them to YYYY-MM-DD.
func ParseDueDate(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", false
	}
	s = strings.Join(strings.Fields(s), " ")
	for _, layout := range dueDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02"), true
		}
	}
	return "", false
}

// isNullish reports strings models use in place of a null date.
func isNullish(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "null", "none", "n/a", "na", "-":
		return true
	}
	return false
}
