// Package naming derives filesystem-safe folder and file names for job output.
package naming

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// MaxTitleLength bounds the sanitized title used in folder and file names.
const MaxTitleLength = 70

const maxSegmentID = 20

var (
	illegalChars = regexp.MustCompile(`[/\\:*?"<>|]`)
	whitespace   = regexp.MustCompile(`\s+`)

	watchIDRe  = regexp.MustCompile(`(?:watch\?v=|/shorts/|youtu\.be/)([A-Za-z0-9_-]{11})`)
	statusIDRe = regexp.MustCompile(`/status/(\d+)`)
)

// SanitizeTitle strips characters that are illegal on common filesystems and
// collapses runs of whitespace.
func SanitizeTitle(title string) string {
	cleaned := illegalChars.ReplaceAllString(title, "")
	cleaned = whitespace.ReplaceAllString(cleaned, " ")
	return strings.TrimSpace(cleaned)
}

// TruncateTitle shortens a sanitized title to max runes, preferring a word
// boundary when the break would land mid-word past half the limit.
func TruncateTitle(title string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(title)
	if len(runes) <= max {
		return title
	}
	cut := runes[:max]
	// Only backtrack when the cut splits a word and a space exists past the
	// halfway point; otherwise a hard cut loses less content.
	if runes[max] != ' ' {
		if idx := lastSpace(cut); idx > max/2 {
			cut = cut[:idx]
		}
	}
	return strings.TrimSpace(string(cut))
}

func lastSpace(runes []rune) int {
	for i := len(runes) - 1; i >= 0; i-- {
		if runes[i] == ' ' {
			return i
		}
	}
	return -1
}

// Stem returns the base filename stem for a job title.
func Stem(title string) string {
	stem := TruncateTitle(SanitizeTitle(title), MaxTitleLength)
	if stem == "" {
		return "untitled"
	}
	return stem
}

// FolderName builds the output folder name for a job. The source id lives only
// in the folder name so collisions between identically titled jobs stay
// disambiguated without cluttering filenames.
func FolderName(title, sourceID string) string {
	return fmt.Sprintf("%s [%s]", Stem(title), sourceID)
}

// SourceID extracts a short identifier from a media URL. Known URL shapes are
// recognized first; otherwise the last path segment or a query parameter is
// used, and the job id is the final fallback.
func SourceID(rawURL, jobID string) string {
	if m := watchIDRe.FindStringSubmatch(rawURL); m != nil {
		return m[1]
	}
	if m := statusIDRe.FindStringSubmatch(rawURL); m != nil {
		return m[1]
	}

	parsed, err := url.Parse(rawURL)
	if err == nil {
		if segment := lastPathSegment(parsed.Path); segment != "" {
			// Truncate on runes so a multibyte segment never ends mid-character.
			if runes := []rune(segment); len(runes) > maxSegmentID {
				segment = string(runes[:maxSegmentID])
			}
			return segment
		}
		for _, key := range []string{"v", "id"} {
			if value := parsed.Query().Get(key); value != "" {
				return value
			}
		}
	}
	return jobID
}

func lastPathSegment(path string) string {
	segments := strings.Split(path, "/")
	for i := len(segments) - 1; i >= 0; i-- {
		if segment := strings.TrimSpace(segments[i]); segment != "" {
			return segment
		}
	}
	return ""
}
