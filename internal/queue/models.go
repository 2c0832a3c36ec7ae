package queue

import (
	"time"

	"github.com/google/uuid"
)

// NewJobID generates a short job identifier. Eight hex characters keeps ids
// readable in CLI output while staying unique enough for a local queue.
func NewJobID() string {
	return uuid.NewString()[:8]
}

// Status represents the lifecycle of a download job.
type Status string

const (
	StatusQueued      Status = "queued"
	StatusDownloading Status = "downloading"
	StatusProcessing  Status = "processing"
	StatusCompleted   Status = "completed"
	StatusError       Status = "error"
	StatusCancelled   Status = "cancelled"
)

var allStatuses = []Status{
	StatusQueued,
	StatusDownloading,
	StatusProcessing,
	StatusCompleted,
	StatusError,
	StatusCancelled,
}

// ActiveStatuses are the non-terminal states, in lifecycle order.
var ActiveStatuses = []Status{StatusQueued, StatusDownloading, StatusProcessing}

// TerminalStatuses are the states a job never leaves.
var TerminalStatuses = []Status{StatusCompleted, StatusError, StatusCancelled}

// Valid reports whether the status is a known lifecycle state.
func (s Status) Valid() bool {
	for _, known := range allStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Terminal reports whether the status is final.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusError, StatusCancelled:
		return true
	}
	return false
}

// Mode is the requested output shape of a job.
type Mode string

const (
	ModeFull Mode = "full" // video + proxy rendition + subtitles
	ModeText Mode = "text" // subtitles only
	ModeWav  Mode = "wav"  // normalized audio
)

// Valid reports whether the mode is one of the supported output shapes.
func (m Mode) Valid() bool {
	switch m {
	case ModeFull, ModeText, ModeWav:
		return true
	}
	return false
}

// Job represents a download job persisted in SQLite.
type Job struct {
	ID              string
	URL             string
	Title           string
	Channel         string
	Duration        int64 // seconds, 0 when unknown
	Mode            Mode
	Status          Status
	ProgressPercent float64
	Speed           string
	ETA             string
	ErrorMessage    string
	PID             int // 0 when no process is attached
	OutputDir       string
	FileSize        int64
	ThumbnailURL    string
	CreatedAt       time.Time
	StartedAt       *time.Time
	CompletedAt     *time.Time
}

// NewJobParams carries the submission-time fields of a job.
type NewJobParams struct {
	ID           string
	URL          string
	Mode         Mode
	Title        string
	Channel      string
	Duration     int64
	ThumbnailURL string
}

// Update describes a partial mutation of a job row. Nil fields are left
// untouched so concurrent writers never clobber each other's columns.
type Update struct {
	Title           *string
	Channel         *string
	Duration        *int64
	Status          *Status
	ProgressPercent *float64
	Speed           *string
	ETA             *string
	ErrorMessage    *string
	PID             *int
	OutputDir       *string
	FileSize        *int64
	StartedAt       *time.Time
	CompletedAt     *time.Time
}

// Ptr is a convenience for building Update values.
func Ptr[T any](v T) *T { return &v }

// HealthSummary describes aggregated job counts per key lifecycle state.
type HealthSummary struct {
	Total       int
	Queued      int
	Downloading int
	Processing  int
	Completed   int
	Errored     int
	Cancelled   int
}
