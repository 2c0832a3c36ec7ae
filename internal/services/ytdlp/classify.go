package ytdlp

import (
	"math"
	"regexp"
	"strconv"
)

// Kind identifies what an output line from the extractor means.
type Kind int

const (
	// KindNone marks lines that carry no event.
	KindNone Kind = iota
	// KindDestination reports the file the extractor is writing.
	KindDestination
	// KindMerge reports the merged container path.
	KindMerge
	// KindProgress reports download progress.
	KindProgress
)

// Event is a classified extractor output line. Path is set for destination
// and merge events; Percent, Speed, and ETA for progress events. Speed and
// ETA may be empty when the matched pattern does not carry them.
type Event struct {
	Kind    Kind
	Path    string
	Percent float64
	Speed   string
	ETA     string
}

var (
	destinationRe = regexp.MustCompile(`\[download\] Destination: (.+)`)
	mergerRe      = regexp.MustCompile(`\[Merger\] Merging formats into "(.+)"`)

	// Progress patterns in priority order: live progress with ETA, the
	// completion summary line, then fragment counters.
	progressRe     = regexp.MustCompile(`\[download\]\s+(\d+\.?\d*)%\s+of\s+\S+\s+at\s+(\S+)\s+ETA\s+(\S+)`)
	progressDoneRe = regexp.MustCompile(`\[download\]\s+(\d+\.?\d*)%\s+of\s+\S+\s+in\s+\S+\s+at\s+(\S+)`)
	fragmentRe     = regexp.MustCompile(`\[download\]\s+Downloading\s+(?:fragment|video)\s+(\d+)\s+of\s+(\d+)`)
)

// Classify maps one extractor output line to an Event. Unrecognized lines
// return a KindNone event; they are not errors.
func Classify(line string) Event {
	if m := destinationRe.FindStringSubmatch(line); m != nil {
		return Event{Kind: KindDestination, Path: m[1]}
	}
	if m := mergerRe.FindStringSubmatch(line); m != nil {
		return Event{Kind: KindMerge, Path: m[1]}
	}
	if m := progressRe.FindStringSubmatch(line); m != nil {
		percent, _ := strconv.ParseFloat(m[1], 64)
		return Event{Kind: KindProgress, Percent: percent, Speed: m[2], ETA: m[3]}
	}
	if m := progressDoneRe.FindStringSubmatch(line); m != nil {
		percent, _ := strconv.ParseFloat(m[1], 64)
		return Event{Kind: KindProgress, Percent: percent, Speed: m[2]}
	}
	if m := fragmentRe.FindStringSubmatch(line); m != nil {
		current, _ := strconv.Atoi(m[1])
		total, _ := strconv.Atoi(m[2])
		if total <= 0 {
			return Event{}
		}
		percent := math.Round(float64(current) / float64(total) * 100)
		return Event{Kind: KindProgress, Percent: percent}
	}
	return Event{}
}
