package outputs

import (
	"fmt"
	"strings"
	"time"
)

// Post statuses the store accepts.
var validStatuses = map[string]struct{}{
	"publish": {},
	"draft":   {},
	"pending": {},
	"private": {},
	"future":  {},
}

// statusAliases corrects common AI phrasings to canonical statuses.
var statusAliases = map[string]string{
	"published":      "publish",
	"public":         "publish",
	"live":           "publish",
	"drafted":        "draft",
	"pending review": "pending",
	"review":         "pending",
	"scheduled":      "future",
}

// NormalizeStatus maps a raw status value onto the enumerated status set.
func NormalizeStatus(raw string) (string, error) {
	status := strings.ToLower(strings.TrimSpace(raw))

	if alias, ok := statusAliases[status]; ok {
		status = alias
	}

	if _, ok := validStatuses[status]; !ok {
		return "", fmt.Errorf("invalid post status %q", raw)
	}

	return status, nil
}

// dateLayouts are tried in priority order before the free-text fallback.
var dateLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02",
	"2006/01/02",
	"02.01.2006",
	"02-01-2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
}

// storedDateLayout is the canonical format written to the store.
const storedDateLayout = "2006-01-02 15:04:05"

// NormalizeDate parses a date in any supported format and renders the
// canonical stored form. Unparseable input is a hard failure, never silently
// ignored.
func NormalizeDate(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("empty date value")
	}

	for _, layout := range dateLayouts {
		if parsed, err := time.Parse(layout, trimmed); err == nil {
			return parsed.Format(storedDateLayout), nil
		}
	}

	// Best-effort fallback: some models answer with a leading weekday or a
	// time-only suffix the layouts above miss.
	for _, layout := range []string{
		"Monday, January 2, 2006",
		"Mon, 02 Jan 2006 15:04:05 -0700",
		time.RFC1123,
		time.RFC822,
	} {
		if parsed, err := time.Parse(layout, trimmed); err == nil {
			return parsed.Format(storedDateLayout), nil
		}
	}

	return "", fmt.Errorf("cannot parse date %q", raw)
}
