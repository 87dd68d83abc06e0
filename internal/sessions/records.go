package sessions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Status is the lifecycle state of a recorded session.
type Status string

const (
	StatusRecording Status = "recording"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	// StatusAbandoned marks sessions whose process exited before completion.
	StatusAbandoned Status = "abandoned"
)

// ErrNotFound is returned when no session has the requested id.
var ErrNotFound = errors.New("session not found")

// Record is one capture session row.
type Record struct {
	ID             string
	Simulation     string
	Format         string
	Status         Status
	OutputPath     string
	Width          int
	Height         int
	FPS            int
	Frames         int
	Dropped        uint64
	Bytes          int64
	ErrorMessage   string
	TranscodedPath string
	StartedAt      time.Time
	FinishedAt     time.Time
}

// Duration returns the wall-clock session length, or zero while recording.
func (r Record) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Begin inserts a session in the recording state.
func (s *Store) Begin(ctx context.Context, rec Record) error {
	if strings.TrimSpace(rec.ID) == "" {
		return errors.New("session id is required")
	}
	if rec.StartedAt.IsZero() {
		rec.StartedAt = time.Now()
	}
	_, err := s.exec(ctx,
		`INSERT INTO capture_sessions (
            id, simulation, format, status, output_path, width, height, fps, started_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Simulation, rec.Format, StatusRecording, rec.OutputPath,
		rec.Width, rec.Height, rec.FPS, formatTime(rec.StartedAt),
	)
	if err != nil {
		return fmt.Errorf("insert session %s: %w", rec.ID, err)
	}
	return nil
}

// Outcome is what is known about a session once its encoder has finished.
type Outcome struct {
	OutputPath string
	Frames     int
	Dropped    uint64
	Bytes      int64
	Err        error
	FinishedAt time.Time
}

// Complete records the outcome of a session. The status becomes failed when
// out.Err is set.
func (s *Store) Complete(ctx context.Context, id string, out Outcome) error {
	status, message := StatusCompleted, ""
	if out.Err != nil {
		status, message = StatusFailed, out.Err.Error()
	}
	if out.FinishedAt.IsZero() {
		out.FinishedAt = time.Now()
	}
	res, err := s.exec(ctx,
		`UPDATE capture_sessions
            SET status = ?, output_path = CASE WHEN ? = '' THEN output_path ELSE ? END,
                frames = ?, dropped = ?, bytes = ?, error_message = ?, finished_at = ?
          WHERE id = ?`,
		status, out.OutputPath, out.OutputPath,
		out.Frames, int64(out.Dropped), out.Bytes, message, formatTime(out.FinishedAt),
		id,
	)
	if err != nil {
		return fmt.Errorf("complete session %s: %w", id, err)
	}
	return requireRow(res, id)
}

// SetTranscoded records the archive copy produced for a session.
func (s *Store) SetTranscoded(ctx context.Context, id, path string) error {
	res, err := s.exec(ctx, `UPDATE capture_sessions SET transcoded_path = ? WHERE id = ?`, path, id)
	if err != nil {
		return fmt.Errorf("update transcoded path %s: %w", id, err)
	}
	return requireRow(res, id)
}

const selectColumns = `id, simulation, format, status, output_path, width, height, fps,
    frames, dropped, bytes, error_message, transcoded_path, started_at, finished_at`

// Get returns the session with id.
func (s *Store) Get(ctx context.Context, id string) (Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM capture_sessions WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return rec, err
}

// List returns the most recent sessions first. A limit of zero lists all.
func (s *Store) List(ctx context.Context, limit int) ([]Record, error) {
	query := `SELECT ` + selectColumns + ` FROM capture_sessions ORDER BY started_at DESC, id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Stats counts sessions by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM capture_sessions GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("session stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
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

// Prune deletes finished sessions that started before cutoff and returns how
// many were removed. Recording sessions are kept.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.exec(ctx,
		`DELETE FROM capture_sessions WHERE status != ? AND started_at < ?`,
		StatusRecording, formatTime(cutoff),
	)
	if err != nil {
		return 0, fmt.Errorf("prune sessions: %w", err)
	}
	return res.RowsAffected()
}

// MarkAbandoned moves sessions stuck in the recording state to abandoned.
func (s *Store) MarkAbandoned(ctx context.Context) (int64, error) {
	res, err := s.exec(ctx,
		`UPDATE capture_sessions SET status = ?, finished_at = ? WHERE status = ?`,
		StatusAbandoned, formatTime(time.Now()), StatusRecording,
	)
	if err != nil {
		return 0, fmt.Errorf("mark abandoned sessions: %w", err)
	}
	return res.RowsAffected()
}

func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func scanRecord(scanner interface{ Scan(dest ...any) error }) (Record, error) {
	var (
		rec      Record
		status   string
		dropped  int64
		started  string
		finished sql.NullString
	)
	if err := scanner.Scan(
		&rec.ID, &rec.Simulation, &rec.Format, &status, &rec.OutputPath,
		&rec.Width, &rec.Height, &rec.FPS, &rec.Frames, &dropped, &rec.Bytes,
		&rec.ErrorMessage, &rec.TranscodedPath, &started, &finished,
	); err != nil {
		return Record{}, err
	}
	rec.Status = Status(status)
	rec.Dropped = uint64(max(dropped, 0))
	rec.StartedAt = parseTime(started)
	if finished.Valid {
		rec.FinishedAt = parseTime(finished.String)
	}
	return rec, nil
}

// Timestamps are stored as fixed-width UTC text so they sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) time.Time {
	t, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}
	}
	return t
}
