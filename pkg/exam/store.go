package exam

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store persists submissions to postgres. Optional: the relay runs without
// one when no DATABASE_URL is configured. Backed by a connection pool so
// concurrent submissions do not share a single connection.
type Store struct {
	pool *pgxpool.Pool
}

// Submission is one persisted solution.
type Submission struct {
	RoomCode    string
	StudentID   string
	StudentName string
	Language    string
	TaskID      string
	Code        string
	SubmittedAt time.Time
}

// OpenStore connects to postgres and ensures the submissions table exists.
func OpenStore(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := &Store{pool: pool}
	if err := s.init(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS submissions (
			id           BIGSERIAL PRIMARY KEY,
			room_code    TEXT NOT NULL,
			student_id   TEXT NOT NULL,
			student_name TEXT NOT NULL,
			language     TEXT NOT NULL,
			task_id      TEXT NOT NULL DEFAULT '',
			code         TEXT NOT NULL,
			submitted_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("failed to create submissions table: %w", err)
	}
	return nil
}

// SaveSubmission writes one submission row. Safe for concurrent use.
func (s *Store) SaveSubmission(ctx context.Context, sub Submission) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO submissions (room_code, student_id, student_name, language, task_id, code)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		sub.RoomCode, sub.StudentID, sub.StudentName, sub.Language, sub.TaskID, sub.Code)
	if err != nil {
		return fmt.Errorf("failed to save submission: %w", err)
	}
	return nil
}

// Submissions returns the submissions for one room, oldest first.
func (s *Store) Submissions(ctx context.Context, roomCode string) ([]Submission, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT room_code, student_id, student_name, language, task_id, code, submitted_at
		FROM submissions WHERE room_code = $1 ORDER BY submitted_at`,
		roomCode)
	if err != nil {
		return nil, fmt.Errorf("failed to query submissions: %w", err)
	}
	defer rows.Close()

	var subs []Submission
	for rows.Next() {
		var sub Submission
		if err := rows.Scan(&sub.RoomCode, &sub.StudentID, &sub.StudentName,
			&sub.Language, &sub.TaskID, &sub.Code, &sub.SubmittedAt); err != nil {
			return nil, fmt.Errorf("failed to scan submission: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}
