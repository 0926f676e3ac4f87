package normalize

import (
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/pevans/oppfeed/opportunity"
)

var tagPattern = regexp.MustCompile(`<[^>]+>`)

// CleanHTML turns an HTML fragment into plain text: tags become spaces,
// entities are unescaped and whitespace runs collapse to a single space.
// It returns nil when nothing but whitespace remains.
func CleanHTML(s string) *string {
	if s == "" {
		return nil
	}

	text := tagPattern.ReplaceAllString(s, " ")
	text = html.UnescapeString(text)
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return nil
	}

	return &text
}

// TimeParts is a decomposed timestamp. It is always read as UTC.
type TimeParts struct {
	Year   int
	Month  int
	Day    int
	Hour   int
	Minute int
	Second int
}

// PartsOf decomposes t after converting it to UTC.
func PartsOf(t time.Time) *TimeParts {
	t = t.UTC()
	return &TimeParts{
		Year:   t.Year(),
		Month:  int(t.Month()),
		Day:    t.Day(),
		Hour:   t.Hour(),
		Minute: t.Minute(),
		Second: t.Second(),
	}
}

// Time returns the UTC instant, or false if any component is out of range.
// Out-of-range values are rejected rather than normalized.
func (p TimeParts) Time() (time.Time, bool) {
	if p.Year < 1 || p.Year > 9999 {
		return time.Time{}, false
	}

	t := time.Date(p.Year, time.Month(p.Month), p.Day, p.Hour, p.Minute, p.Second, 0, time.UTC)
	if t.Year() != p.Year || int(t.Month()) != p.Month || t.Day() != p.Day ||
		t.Hour() != p.Hour || t.Minute() != p.Minute || t.Second() != p.Second {
		return time.Time{}, false
	}

	return t, true
}

// Timestamp is an entry date as the feed parser delivered it: decomposed
// parts when it could parse the value, otherwise the raw text.
type Timestamp struct {
	Parts *TimeParts
	Text  string
}

// FormatTimestamp renders ts in the wire format. Parts take precedence over
// text. Text without a zone is read as UTC. Anything that cannot be parsed
// yields nil.
func FormatTimestamp(ts *Timestamp) *string {
	if ts == nil {
		return nil
	}

	if ts.Parts != nil {
		t, ok := ts.Parts.Time()
		if !ok {
			return nil
		}
		s := opportunity.FormatTime(t)
		return &s
	}

	text := strings.TrimSpace(ts.Text)
	if text == "" {
		return nil
	}

	t, err := dateparse.ParseIn(text, time.UTC)
	if err != nil {
		return nil
	}

	s := opportunity.FormatTime(t)
	return &s
}
