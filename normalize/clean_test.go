package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCleanHTML verifies tag stripping, unescaping and whitespace collapse
func TestCleanHTML(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected *string
	}{
		{"nbsp and nested tags", "<p>Hello&nbsp;<b>World</b></p>", strPtr("Hello World")},
		{"tags become spaces", "one<br>two", strPtr("one two")},
		{"plain text untouched", "Deadline soon", strPtr("Deadline soon")},
		{"entities", "Fish &amp; Chips &lt;3", strPtr("Fish & Chips <3")},
		{"whitespace runs", "  a \n\t b  ", strPtr("a b")},
		{"empty", "", nil},
		{"markup only", "<div><br/></div>", nil},
		{"whitespace only", " \n ", nil},
		{"escaped tags are not stripped", "&lt;b&gt;bold&lt;/b&gt;", strPtr("<b>bold</b>")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CleanHTML(tt.input))
		})
	}
}

// TestFormatTimestamp_Parts verifies decomposed times are read as UTC
func TestFormatTimestamp_Parts(t *testing.T) {
	got := FormatTimestamp(&Timestamp{Parts: &TimeParts{Year: 2024, Month: 1, Day: 2, Hour: 3, Minute: 4, Second: 5}})
	require.NotNil(t, got)
	assert.Equal(t, "2024-01-02T03:04:05Z", *got)
}

// TestFormatTimestamp_InvalidParts verifies out-of-range parts are absent
func TestFormatTimestamp_InvalidParts(t *testing.T) {
	for _, parts := range []TimeParts{
		{Year: 2024, Month: 2, Day: 30},
		{Year: 2024, Month: 0, Day: 1},
		{Year: 2024, Month: 1, Day: 1, Hour: 24},
		{Year: 2024, Month: 1, Day: 1, Second: 60},
		{Year: 0, Month: 1, Day: 1},
	} {
		assert.Nil(t, FormatTimestamp(&Timestamp{Parts: &parts}), "%+v", parts)
	}
}

// TestFormatTimestamp_PartsWinOverText verifies precedence
func TestFormatTimestamp_PartsWinOverText(t *testing.T) {
	got := FormatTimestamp(&Timestamp{
		Parts: &TimeParts{Year: 2024, Month: 5, Day: 5},
		Text:  "2001-01-01 00:00:00",
	})
	require.NotNil(t, got)
	assert.Equal(t, "2024-05-05T00:00:00Z", *got)
}

// TestFormatTimestamp_Text verifies free-text parsing
func TestFormatTimestamp_Text(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected *string
	}{
		{"RFC 1123 with offset", "Mon, 02 Jan 2006 15:04:05 -0700", strPtr("2006-01-02T22:04:05Z")},
		{"ISO with offset", "2024-03-05T10:00:00+02:00", strPtr("2024-03-05T08:00:00Z")},
		{"no zone is UTC", "2024-03-05 10:00:00", strPtr("2024-03-05T10:00:00Z")},
		{"surrounding whitespace", "  2024-03-05 10:00:00\n", strPtr("2024-03-05T10:00:00Z")},
		{"garbage", "not a date at all", nil},
		{"blank", "   ", nil},
		{"empty", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatTimestamp(&Timestamp{Text: tt.input}))
		})
	}
}

// TestFormatTimestamp_Nil verifies a missing timestamp
func TestFormatTimestamp_Nil(t *testing.T) {
	assert.Nil(t, FormatTimestamp(nil))
	assert.Nil(t, FormatTimestamp(&Timestamp{}))
}

// TestPartsOf verifies decomposition converts to UTC first
func TestPartsOf(t *testing.T) {
	loc := time.FixedZone("CET", 60*60)
	parts := PartsOf(time.Date(2024, 1, 1, 0, 30, 0, 0, loc))

	assert.Equal(t, TimeParts{Year: 2023, Month: 12, Day: 31, Hour: 23, Minute: 30}, *parts)
}
