package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Submission actions accepted by POST /api/jobs.
const (
	ActionCheck  = "check"
	ActionSubmit = "submit"
)

// Probe result kinds returned by a check action.
const (
	SourceSingle   = "single"
	SourcePlaylist = "playlist"
)

// Job describes a download job in a transport-friendly format.
type Job struct {
	ID              string  `json:"id"`
	URL             string  `json:"url"`
	Title           string  `json:"title"`
	Channel         string  `json:"channel,omitempty"`
	Duration        int64   `json:"duration,omitempty"`
	Mode            string  `json:"mode"`
	Status          string  `json:"status"`
	ProgressPercent float64 `json:"progressPercent"`
	Speed           string  `json:"speed,omitempty"`
	ETA             string  `json:"eta,omitempty"`
	ErrorMessage    string  `json:"errorMessage,omitempty"`
	OutputDir       string  `json:"outputDir,omitempty"`
	FileSize        int64   `json:"fileSize,omitempty"`
	ThumbnailURL    string  `json:"thumbnailUrl,omitempty"`
	CreatedAt       string  `json:"createdAt,omitempty"`
	StartedAt       string  `json:"startedAt,omitempty"`
	CompletedAt     string  `json:"completedAt,omitempty"`
}

// SubmitRequest is the body of POST /api/jobs. Action selects between a
// metadata check and an actual enqueue; NoPlaylist forces single-video
// treatment of playlist URLs.
type SubmitRequest struct {
	URL        string `json:"url"`
	Mode       string `json:"mode"`
	Action     string `json:"action,omitempty"`
	NoPlaylist bool   `json:"noPlaylist,omitempty"`
}

// SourcePreview describes one probed entry of a check response.
type SourcePreview struct {
	Title        string `json:"title"`
	Channel      string `json:"channel,omitempty"`
	Duration     int64  `json:"duration,omitempty"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
}

// CheckResponse is returned for action=check. Single sources populate the
// top-level preview fields; playlists carry a count, combined duration and
// a bounded item preview.
type CheckResponse struct {
	Type          string          `json:"type"`
	Title         string          `json:"title,omitempty"`
	Channel       string          `json:"channel,omitempty"`
	Duration      int64           `json:"duration,omitempty"`
	ThumbnailURL  string          `json:"thumbnailUrl,omitempty"`
	Count         int             `json:"count,omitempty"`
	TotalDuration int64           `json:"totalDuration,omitempty"`
	Items         []SourcePreview `json:"items,omitempty"`
}

// SubmitResponse reports the jobs created by action=submit.
type SubmitResponse struct {
	Queued int      `json:"queued"`
	IDs    []string `json:"ids"`
}

// QueueListResponse wraps the active queue view.
type QueueListResponse struct {
	Jobs []Job `json:"jobs"`
}

// HistoryResponse wraps a page of terminal jobs.
type HistoryResponse struct {
	Jobs   []Job `json:"jobs"`
	Total  int   `json:"total"`
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
}

// JobResponse wraps a single job.
type JobResponse struct {
	Job Job `json:"job"`
}

// CancelResponse reports the outcome of a cancellation request. Cancelled
// is false when the job had already reached a terminal state.
type CancelResponse struct {
	Cancelled bool `json:"cancelled"`
}

// DeleteResponse reports the outcome of a job removal.
type DeleteResponse struct {
	Deleted bool `json:"deleted"`
}

// StoreHealth reports queue persistence availability.
type StoreHealth struct {
	Available bool   `json:"available"`
	LastError string `json:"lastError,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running       bool           `json:"running"`
	PID           int            `json:"pid"`
	QueueDBPath   string         `json:"queueDbPath"`
	LockFilePath  string         `json:"lockFilePath"`
	MaxConcurrent int            `json:"maxConcurrent"`
	Store         StoreHealth    `json:"store"`
	Counts        map[string]int `json:"counts"`
}
