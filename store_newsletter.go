package ments

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/eringen/ments/newsletter"
)

var (
	_ newsletter.SubscriberSource = (*Store)(nil)
	_ newsletter.LogWriter        = (*Store)(nil)
	_ newsletter.JobStore         = (*Store)(nil)
)

// WriteSendLog appends one row to the newsletter history.
func (s *Store) WriteSendLog(ctx context.Context, entry newsletter.SendLog) error {
	sentAt := entry.SentAt
	if sentAt.IsZero() {
		sentAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO newsletter_logs
		(post_id, title, recipients_count, failed_count, sent_at) VALUES (?, ?, ?, ?, ?)`,
		nullInt(entry.PostID), entry.Title, entry.Sent, entry.Failed, sentAt)
	return err
}

// ListSendLogs returns the most recent send logs, newest first.
func (s *Store) ListSendLogs(ctx context.Context, limit int) ([]SendLog, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, post_id, title, recipients_count, failed_count, sent_at
		FROM newsletter_logs ORDER BY sent_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []SendLog
	for rows.Next() {
		var l SendLog
		var postID sql.NullInt64
		if err := rows.Scan(&l.ID, &postID, &l.Title, &l.RecipientsCount, &l.FailedCount, &l.SentAt); err != nil {
			return nil, err
		}
		if postID.Valid {
			id := postID.Int64
			l.PostID = &id
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// CreateJob persists a queued broadcast.
func (s *Store) CreateJob(ctx context.Context, job newsletter.Job) error {
	payload, err := json.Marshal(job.Message)
	if err != nil {
		return fmt.Errorf("encode job message: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO newsletter_jobs (id, kind, subject, payload, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		job.ID, string(job.Message.Kind), job.Message.Subject, string(payload), string(job.Status), job.CreatedAt)
	return storeErr(err)
}

const jobColumns = `id, payload, status, sent, failed, error, created_at, finished_at`

func scanJob(r rowScanner) (newsletter.Job, error) {
	var job newsletter.Job
	var payload, status string
	var finished sql.NullTime
	if err := r.Scan(&job.ID, &payload, &status, &job.Sent, &job.Failed, &job.Error, &job.CreatedAt, &finished); err != nil {
		return newsletter.Job{}, err
	}
	if err := json.Unmarshal([]byte(payload), &job.Message); err != nil {
		return newsletter.Job{}, fmt.Errorf("decode job %s: %w", job.ID, err)
	}
	job.Status = newsletter.JobStatus(status)
	if finished.Valid {
		t := finished.Time
		job.FinishedAt = &t
	}
	return job, nil
}

// GetJob returns a job by id.
func (s *Store) GetJob(ctx context.Context, id string) (newsletter.Job, error) {
	job, err := scanJob(s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM newsletter_jobs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return newsletter.Job{}, newsletter.ErrJobNotFound
	}
	return job, err
}

// ListQueuedJobs returns queued jobs, oldest first.
func (s *Store) ListQueuedJobs(ctx context.Context) ([]newsletter.Job, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM newsletter_jobs
		WHERE status = 'queued' ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []newsletter.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// MarkJobRunning moves a queued job to running.
func (s *Store) MarkJobRunning(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE newsletter_jobs SET status = 'running'
		WHERE id = ? AND status = 'queued'`, id)
	if err != nil {
		return err
	}
	if err := requireRow(res); err != nil {
		return newsletter.ErrJobNotFound
	}
	return nil
}

// FinishJob records the outcome of a job.
func (s *Store) FinishJob(ctx context.Context, id string, status newsletter.JobStatus, res newsletter.Result, errMsg string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE newsletter_jobs
		SET status = ?, sent = ?, failed = ?, error = ?, finished_at = ? WHERE id = ?`,
		string(status), res.Sent, res.Failed, errMsg, time.Now().UTC(), id)
	return err
}

// FailRunningJobs marks every running job as failed with reason and
// returns how many were changed.
func (s *Store) FailRunningJobs(ctx context.Context, reason string) (int, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE newsletter_jobs
		SET status = 'failed', error = ?, finished_at = ? WHERE status = 'running'`, reason, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}
