package api

import (
	"hopper/internal/queue"
)

// FromJob converts a queue record to its API representation.
func FromJob(job *queue.Job) Job {
	if job == nil {
		return Job{}
	}

	dto := Job{
		ID:              job.ID,
		URL:             job.URL,
		Title:           job.Title,
		Channel:         job.Channel,
		Duration:        job.Duration,
		Mode:            string(job.Mode),
		Status:          string(job.Status),
		ProgressPercent: job.ProgressPercent,
		Speed:           job.Speed,
		ETA:             job.ETA,
		ErrorMessage:    job.ErrorMessage,
		OutputDir:       job.OutputDir,
		FileSize:        job.FileSize,
		ThumbnailURL:    job.ThumbnailURL,
	}
	if !job.CreatedAt.IsZero() {
		dto.CreatedAt = job.CreatedAt.UTC().Format(dateTimeFormat)
	}
	if job.StartedAt != nil && !job.StartedAt.IsZero() {
		dto.StartedAt = job.StartedAt.UTC().Format(dateTimeFormat)
	}
	if job.CompletedAt != nil && !job.CompletedAt.IsZero() {
		dto.CompletedAt = job.CompletedAt.UTC().Format(dateTimeFormat)
	}
	return dto
}

// FromJobs converts a slice of queue records into API DTOs.
func FromJobs(jobs []*queue.Job) []Job {
	if len(jobs) == 0 {
		return nil
	}
	out := make([]Job, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, FromJob(job))
	}
	return out
}

// MergeStats normalizes a status-keyed count map so every lifecycle state
// appears even when no job occupies it.
func MergeStats(stats map[queue.Status]int) map[string]int {
	merged := make(map[string]int, len(queue.ActiveStatuses)+len(queue.TerminalStatuses))
	for _, status := range queue.ActiveStatuses {
		merged[string(status)] = 0
	}
	for _, status := range queue.TerminalStatuses {
		merged[string(status)] = 0
	}
	for status, count := range stats {
		merged[string(status)] = count
	}
	return merged
}
