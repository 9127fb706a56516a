package transformers

import (
	"regexp"
	"strings"
	"time"

	"github.com/oarkflow/convert"
	"github.com/oarkflow/date"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/careflow/ingest/pkg/utils"
)

var titleCaser = cases.Title(language.Und)

// TitleCase trims and title-cases a string value.
func TitleCase(s string) string {
	return titleCaser.String(strings.TrimSpace(s))
}

// dateFormats is evaluated in order; the first successful parse wins. The
// day-first form sits ahead of month-first, so ambiguous values like
// 01/02/2023 resolve as day/month. Locale awareness is out of scope.
var dateFormats = []string{
	"2006-01-02",
	"02/01/2006",
	"01/02/2006",
	"2006/01/02",
}

// ParseDate parses a raw date value against the ordered format list, falling
// back to a permissive generic parse. Unparseable input yields ok=false, never
// an error.
func ParseDate(v any) (time.Time, bool) {
	s := utils.String(v)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	if t, err := date.Parse(s); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// ParseAge coerces a numeric-like value through a float parse and truncates.
// Non-numeric, blank or negative input yields ok=false.
func ParseAge(v any) (int, bool) {
	if utils.IsBlank(v) {
		return 0, false
	}
	f, ok := convert.ToFloat64(v)
	if !ok {
		return 0, false
	}
	n := int(f)
	if n < 0 {
		return 0, false
	}
	return n, true
}

var listSplitter = regexp.MustCompile(`[|,;]`)

// SplitList splits a delimiter-separated text field into trimmed title-cased
// tokens, dropping empties. Blank input yields an empty slice.
func SplitList(v any) []string {
	s := utils.String(v)
	if s == "" {
		return nil
	}
	parts := listSplitter.Split(s, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, TitleCase(p))
	}
	return out
}
