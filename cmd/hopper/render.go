package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.English)

// formatDuration renders seconds as m:ss or h:mm:ss.
func formatDuration(seconds int64) string {
	if seconds <= 0 {
		return "-"
	}
	d := time.Duration(seconds) * time.Second
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	secs := int(d.Seconds()) % 60
	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, secs)
	}
	return fmt.Sprintf("%d:%02d", minutes, secs)
}

func formatSize(bytes int64) string {
	if bytes <= 0 {
		return "-"
	}
	return humanize.IBytes(uint64(bytes))
}

// formatAge renders an RFC3339 timestamp as a relative time.
func formatAge(stamp string) string {
	if stamp == "" {
		return "-"
	}
	parsed, err := time.Parse(time.RFC3339, stamp)
	if err != nil {
		return stamp
	}
	return humanize.Time(parsed)
}

func formatProgress(status string, percent float64) string {
	switch status {
	case "downloading", "processing":
		return fmt.Sprintf("%.1f%%", percent)
	case "completed":
		return "100%"
	}
	return "-"
}

func statusLabel(status string) string {
	label := titleCaser.String(status)
	if !stdoutIsTerminal() {
		return label
	}
	switch status {
	case "completed":
		return text.FgGreen.Sprint(label)
	case "error":
		return text.FgRed.Sprint(label)
	case "downloading", "processing":
		return text.FgCyan.Sprint(label)
	case "cancelled":
		return text.FgYellow.Sprint(label)
	}
	return label
}

func stdoutIsTerminal() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func truncateTitle(title string, max int) string {
	title = strings.TrimSpace(title)
	if max <= 3 || len(title) <= max {
		return title
	}
	return title[:max-3] + "..."
}
