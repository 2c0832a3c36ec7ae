// Package subtitles converts SRT caption tracks into deduplicated transcripts.
//
// Auto-generated caption tracks repeat overlapping text across consecutive
// cues as speech is recognized incrementally. Cleaning collapses those rolling
// repeats into a flat transcript of timestamped lines.
package subtitles

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

// Entry is a single cleaned caption cue.
type Entry struct {
	Timestamp string // HH:MM:SS
	Text      string
}

var (
	blockSplitRe = regexp.MustCompile(`\n\s*\n`)
	timeRe       = regexp.MustCompile(`(\d{2}):(\d{2}):(\d{2})`)
	markupRe     = regexp.MustCompile(`<[^>]+>`)
)

// Clean parses SRT content, deduplicates rolling captions, and renders the
// transcript. When sourceURL is non-empty it is emitted as a header line.
func Clean(content, sourceURL string) string {
	entries := Deduplicate(Parse(content))

	var lines []string
	if sourceURL != "" {
		lines = append(lines, "Source: "+sourceURL, "")
	}
	for _, entry := range entries {
		lines = append(lines, fmt.Sprintf("[%s] %s", entry.Timestamp, entry.Text))
	}
	return strings.Join(lines, "\n")
}

// CleanFile reads an SRT file and returns the cleaned transcript.
func CleanFile(path, sourceURL string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read subtitle file: %w", err)
	}
	return Clean(string(content), sourceURL), nil
}

// Parse splits SRT content into entries. A block is an index line, a
// time-range line, and one or more text lines. Sub-second precision is
// dropped and markup tags are stripped; entries left empty are discarded.
func Parse(content string) []Entry {
	var entries []Entry
	for _, block := range blockSplitRe.Split(strings.TrimSpace(content), -1) {
		lines := strings.Split(strings.TrimSpace(block), "\n")
		if len(lines) < 3 {
			continue
		}
		match := timeRe.FindStringSubmatch(lines[1])
		if match == nil {
			continue
		}
		timestamp := fmt.Sprintf("%s:%s:%s", match[1], match[2], match[3])
		text := strings.Join(lines[2:], " ")
		text = strings.TrimSpace(markupRe.ReplaceAllString(text, ""))
		if text == "" {
			continue
		}
		entries = append(entries, Entry{Timestamp: timestamp, Text: text})
	}
	return entries
}

// Deduplicate collapses rolling captions in a single left-to-right pass.
// Comparison is case-insensitive against only the last accepted entry, so the
// pass is order-sensitive and runs with O(1) state.
func Deduplicate(entries []Entry) []Entry {
	if len(entries) == 0 {
		return nil
	}

	var result []Entry
	lastText := ""
	for _, entry := range entries {
		cleaned := strings.ToLower(strings.TrimSpace(entry.Text))
		switch {
		case cleaned == lastText:
			// Exact repeat.
		case lastText != "" && strings.HasPrefix(cleaned, lastText):
			// The cue grew; extend the accepted entry but keep the timestamp
			// of when the text first appeared.
			result[len(result)-1].Text = entry.Text
			lastText = cleaned
		case lastText != "" && strings.Contains(lastText, cleaned):
			// Truncated repeat: the cue re-emits a fragment of text already
			// covered by the accepted entry.
		default:
			result = append(result, entry)
			lastText = cleaned
		}
	}
	return result
}
