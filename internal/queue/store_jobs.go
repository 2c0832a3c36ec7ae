package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const jobColumns = "id, url, title, channel, duration, mode, status, progress_percent, speed, eta, error, pid, output_dir, file_size, thumbnail_url, created_at, started_at, completed_at"

// NewJob inserts a freshly submitted job in the queued state. Unlike the rest
// of the store this does not degrade silently: a submission the caller
// believes succeeded must be durable.
func (s *Store) NewJob(ctx context.Context, params NewJobParams) (*Job, error) {
	if strings.TrimSpace(params.ID) == "" {
		return nil, errors.New("job id required")
	}
	if strings.TrimSpace(params.URL) == "" {
		return nil, errors.New("job url required")
	}
	if !params.Mode.Valid() {
		return nil, fmt.Errorf("invalid mode %q", params.Mode)
	}

	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execRetry(
		ctx,
		`INSERT INTO downloads (
            id, url, title, channel, duration, mode, status,
            progress_percent, thumbnail_url, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		params.ID,
		params.URL,
		nullableString(params.Title),
		nullableString(params.Channel),
		nullableInt64(params.Duration),
		string(params.Mode),
		StatusQueued,
		0.0,
		nullableString(params.ThumbnailURL),
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	if res == nil {
		return nil, ErrUnavailable
	}

	return s.GetByID(ctx, params.ID)
}

// GetByID fetches a job by identifier. A nil job with nil error means the row
// does not exist or the store is degraded.
func (s *Store) GetByID(ctx context.Context, id string) (*Job, error) {
	rows, err := s.queryRows(ctx, `SELECT `+jobColumns+` FROM downloads WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	if rows == nil {
		return nil, nil
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	job, err := scanJob(rows)
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// Update applies a partial mutation to a job row. Nil fields are untouched.
func (s *Store) Update(ctx context.Context, id string, upd Update) error {
	sets := make([]string, 0, 13)
	args := make([]any, 0, 14)

	appendSet := func(column string, value any) {
		sets = append(sets, column+" = ?")
		args = append(args, value)
	}

	if upd.Title != nil {
		appendSet("title", nullableString(*upd.Title))
	}
	if upd.Channel != nil {
		appendSet("channel", nullableString(*upd.Channel))
	}
	if upd.Duration != nil {
		appendSet("duration", nullableInt64(*upd.Duration))
	}
	if upd.Status != nil {
		appendSet("status", string(*upd.Status))
	}
	if upd.ProgressPercent != nil {
		appendSet("progress_percent", *upd.ProgressPercent)
	}
	if upd.Speed != nil {
		appendSet("speed", nullableString(*upd.Speed))
	}
	if upd.ETA != nil {
		appendSet("eta", nullableString(*upd.ETA))
	}
	if upd.ErrorMessage != nil {
		appendSet("error", nullableString(*upd.ErrorMessage))
	}
	if upd.PID != nil {
		if *upd.PID == 0 {
			appendSet("pid", nil)
		} else {
			appendSet("pid", *upd.PID)
		}
	}
	if upd.OutputDir != nil {
		appendSet("output_dir", nullableString(*upd.OutputDir))
	}
	if upd.FileSize != nil {
		appendSet("file_size", *upd.FileSize)
	}
	if upd.StartedAt != nil {
		appendSet("started_at", nullableTime(upd.StartedAt))
	}
	if upd.CompletedAt != nil {
		appendSet("completed_at", nullableTime(upd.CompletedAt))
	}

	if len(sets) == 0 {
		return nil
	}

	args = append(args, id)
	query := `UPDATE downloads SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`
	if _, err := s.execRetry(ctx, query, args...); err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	return nil
}

// ActiveJobs returns queued, downloading, and processing jobs in creation
// order. This is the FIFO queue view.
func (s *Store) ActiveJobs(ctx context.Context) ([]*Job, error) {
	return s.jobsByStatuses(ctx, ActiveStatuses, ` ORDER BY created_at ASC`)
}

// History returns terminal jobs newest-first, paged.
func (s *Store) History(ctx context.Context, limit, offset int) ([]*Job, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	placeholders := makePlaceholders(len(TerminalStatuses))
	args := make([]any, 0, len(TerminalStatuses)+2)
	for _, status := range TerminalStatuses {
		args = append(args, status)
	}
	args = append(args, limit, offset)

	query := `SELECT ` + jobColumns + ` FROM downloads WHERE status IN (` + placeholders + `)
        ORDER BY completed_at DESC, created_at DESC LIMIT ? OFFSET ?`
	rows, err := s.queryRows(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	return collectJobs(rows)
}

// HistoryCount returns the number of terminal jobs.
func (s *Store) HistoryCount(ctx context.Context) (int, error) {
	placeholders := makePlaceholders(len(TerminalStatuses))
	args := make([]any, 0, len(TerminalStatuses))
	for _, status := range TerminalStatuses {
		args = append(args, status)
	}
	rows, err := s.queryRows(ctx, `SELECT COUNT(1) FROM downloads WHERE status IN (`+placeholders+`)`, args...)
	if err != nil {
		return 0, fmt.Errorf("count history: %w", err)
	}
	return scanCount(rows)
}

// CountDownloading returns the concurrency gauge the scheduler admits against.
func (s *Store) CountDownloading(ctx context.Context) (int, error) {
	rows, err := s.queryRows(ctx, `SELECT COUNT(1) FROM downloads WHERE status = ?`, StatusDownloading)
	if err != nil {
		return 0, fmt.Errorf("count downloading: %w", err)
	}
	return scanCount(rows)
}

// NextQueued returns up to limit queued jobs in FIFO order.
func (s *Store) NextQueued(ctx context.Context, limit int) ([]*Job, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.queryRows(
		ctx,
		`SELECT `+jobColumns+` FROM downloads WHERE status = ? ORDER BY created_at ASC LIMIT ?`,
		StatusQueued, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query queued: %w", err)
	}
	return collectJobs(rows)
}

// ClaimQueued flips a job from queued to downloading, returning false when the
// job was already claimed or left the queued state. The flip happens before
// any blocking work so concurrent scheduler passes never start a job twice.
func (s *Store) ClaimQueued(ctx context.Context, id string) (bool, error) {
	now := time.Now().UTC()
	res, err := s.execRetry(
		ctx,
		`UPDATE downloads SET status = ?, started_at = ?, progress_percent = 0 WHERE id = ? AND status = ?`,
		StatusDownloading,
		now.Format(time.RFC3339Nano),
		id,
		StatusQueued,
	)
	if err != nil {
		return false, fmt.Errorf("claim job: %w", err)
	}
	if res == nil {
		return false, nil
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// MarkCancelled moves a non-terminal job to cancelled. Cancelling a job that
// is already terminal is a no-op, reported by the boolean.
func (s *Store) MarkCancelled(ctx context.Context, id string) (bool, error) {
	placeholders := makePlaceholders(len(ActiveStatuses))
	args := make([]any, 0, len(ActiveStatuses)+3)
	args = append(args, StatusCancelled, time.Now().UTC().Format(time.RFC3339Nano), id)
	for _, status := range ActiveStatuses {
		args = append(args, status)
	}

	res, err := s.execRetry(
		ctx,
		`UPDATE downloads SET status = ?, completed_at = ?, speed = NULL, eta = NULL, pid = NULL
         WHERE id = ? AND status IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return false, fmt.Errorf("cancel job: %w", err)
	}
	if res == nil {
		return false, nil
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// Remove deletes a job row by identifier.
func (s *Store) Remove(ctx context.Context, id string) (bool, error) {
	res, err := s.execRetry(ctx, `DELETE FROM downloads WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete job: %w", err)
	}
	if res == nil {
		return false, nil
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// ResetStuckActive returns jobs left in downloading or processing by a
// previous daemon run to the queued state.
func (s *Store) ResetStuckActive(ctx context.Context) (int64, error) {
	res, err := s.execRetry(
		ctx,
		`UPDATE downloads
         SET status = ?, progress_percent = 0, speed = NULL, eta = NULL, pid = NULL, started_at = NULL
         WHERE status IN (?, ?)`,
		StatusQueued,
		StatusDownloading,
		StatusProcessing,
	)
	if err != nil {
		return 0, fmt.Errorf("reset stuck jobs: %w", err)
	}
	if res == nil {
		return 0, nil
	}
	return res.RowsAffected()
}

// ClearTerminal removes completed, errored, and cancelled jobs.
func (s *Store) ClearTerminal(ctx context.Context) (int64, error) {
	placeholders := makePlaceholders(len(TerminalStatuses))
	args := make([]any, 0, len(TerminalStatuses))
	for _, status := range TerminalStatuses {
		args = append(args, status)
	}
	res, err := s.execRetry(ctx, `DELETE FROM downloads WHERE status IN (`+placeholders+`)`, args...)
	if err != nil {
		return 0, fmt.Errorf("clear terminal jobs: %w", err)
	}
	if res == nil {
		return 0, nil
	}
	return res.RowsAffected()
}

// ClearFailed removes errored jobs only.
func (s *Store) ClearFailed(ctx context.Context) (int64, error) {
	res, err := s.execRetry(ctx, `DELETE FROM downloads WHERE status = ?`, StatusError)
	if err != nil {
		return 0, fmt.Errorf("clear failed jobs: %w", err)
	}
	if res == nil {
		return 0, nil
	}
	return res.RowsAffected()
}

// Clear removes all jobs.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.execRetry(ctx, `DELETE FROM downloads`)
	if err != nil {
		return 0, fmt.Errorf("clear jobs: %w", err)
	}
	if res == nil {
		return 0, nil
	}
	return res.RowsAffected()
}

// Stats returns a count of jobs grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.queryRows(ctx, `SELECT status, COUNT(1) FROM downloads GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	stats := make(map[Status]int)
	if rows == nil {
		return stats, nil
	}
	defer rows.Close()
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Health aggregates job state for diagnostic output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	health := HealthSummary{}
	for status, count := range stats {
		health.Total += count
		switch status {
		case StatusQueued:
			health.Queued += count
		case StatusDownloading:
			health.Downloading += count
		case StatusProcessing:
			health.Processing += count
		case StatusCompleted:
			health.Completed += count
		case StatusError:
			health.Errored += count
		case StatusCancelled:
			health.Cancelled += count
		}
	}
	return health, nil
}

func (s *Store) jobsByStatuses(ctx context.Context, statuses []Status, orderClause string) ([]*Job, error) {
	placeholders := makePlaceholders(len(statuses))
	args := make([]any, len(statuses))
	for i, status := range statuses {
		args[i] = status
	}
	query := `SELECT ` + jobColumns + ` FROM downloads WHERE status IN (` + placeholders + `)` + orderClause
	rows, err := s.queryRows(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	return collectJobs(rows)
}

func collectJobs(rows *sql.Rows) ([]*Job, error) {
	if rows == nil {
		return nil, nil
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func scanCount(rows *sql.Rows) (int, error) {
	if rows == nil {
		return 0, nil
	}
	defer rows.Close()
	if !rows.Next() {
		return 0, rows.Err()
	}
	var count int
	if err := rows.Scan(&count); err != nil {
		return 0, err
	}
	return count, rows.Err()
}

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id              string
		url             string
		title           sql.NullString
		channel         sql.NullString
		duration        sql.NullInt64
		modeStr         string
		statusStr       string
		progressPercent sql.NullFloat64
		speed           sql.NullString
		eta             sql.NullString
		errorMessage    sql.NullString
		pid             sql.NullInt64
		outputDir       sql.NullString
		fileSize        sql.NullInt64
		thumbnailURL    sql.NullString
		createdRaw      sql.NullString
		startedRaw      sql.NullString
		completedRaw    sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&url,
		&title,
		&channel,
		&duration,
		&modeStr,
		&statusStr,
		&progressPercent,
		&speed,
		&eta,
		&errorMessage,
		&pid,
		&outputDir,
		&fileSize,
		&thumbnailURL,
		&createdRaw,
		&startedRaw,
		&completedRaw,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:              id,
		URL:             url,
		Title:           title.String,
		Channel:         channel.String,
		Duration:        duration.Int64,
		Mode:            Mode(modeStr),
		Status:          Status(statusStr),
		ProgressPercent: progressPercent.Float64,
		Speed:           speed.String,
		ETA:             eta.String,
		ErrorMessage:    errorMessage.String,
		PID:             int(pid.Int64),
		OutputDir:       outputDir.String,
		FileSize:        fileSize.Int64,
		ThumbnailURL:    thumbnailURL.String,
	}

	if created, err := parseTimeString(createdRaw.String); err == nil {
		job.CreatedAt = created
	}
	if startedRaw.Valid {
		if started, err := parseTimeString(startedRaw.String); err == nil {
			job.StartedAt = &started
		}
	}
	if completedRaw.Valid {
		if completed, err := parseTimeString(completedRaw.String); err == nil {
			job.CompletedAt = &completed
		}
	}
	return job, nil
}
