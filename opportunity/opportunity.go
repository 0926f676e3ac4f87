// Package opportunity defines the canonical record produced by the
// normalizer and consumed by the merger and the API.
package opportunity

import (
	"crypto/sha1"
	"encoding/hex"
	"time"
)

// TimeLayout is the wire format of every timestamp in an Opportunity.
const TimeLayout = "2006-01-02T15:04:05Z"

// Opportunity is one normalized feed item. Field names and order are part of
// the dataset's wire contract.
type Opportunity struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	URL         string   `json:"url"`
	Source      string   `json:"source"`
	SourceURL   string   `json:"source_url"`
	PublishedAt *string  `json:"published_at"`
	Summary     *string  `json:"summary"`
	Tags        []string `json:"tags"`
	Location    *string  `json:"location"`
	Deadline    *string  `json:"deadline"`
	Language    *string  `json:"language"`
	CreatedAt   string   `json:"created_at"`
	UpdatedAt   string   `json:"updated_at"`
}

// NewID returns the deterministic identity of a (source, url) pair: the hex
// SHA-1 digest of "source|url".
func NewID(source, url string) string {
	sum := sha1.Sum([]byte(source + "|" + url))
	return hex.EncodeToString(sum[:])
}

// FormatTime renders t in UTC using TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime parses a wire timestamp.
func ParseTime(s string) (time.Time, error) {
	return time.Parse(TimeLayout, s)
}

// Published returns the parsed publication time, if present and well formed.
func (o Opportunity) Published() (time.Time, bool) {
	if o.PublishedAt == nil {
		return time.Time{}, false
	}
	t, err := ParseTime(*o.PublishedAt)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// HasTag reports whether tag is present (case-sensitive).
func (o Opportunity) HasTag(tag string) bool {
	for _, t := range o.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
