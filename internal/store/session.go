package store

import (
	"database/sql"
	"errors"
	"time"
)

// Session is a recognition session. EndedAt is zero while it runs.
type Session struct {
	ID        string    `json:"id"`
	CameraID  int       `json:"cameraId"`
	Dropout   string    `json:"dropout"`
	StartedAt time.Time `json:"startedAt"`
	EndedAt   time.Time `json:"endedAt,omitempty"`
	EndReason string    `json:"endReason,omitempty"`
	Letters   int       `json:"letters"`
}

// Running reports whether the session has not ended.
func (s *Session) Running() bool {
	return s.EndedAt.IsZero()
}

// SessionRepository stores sessions.
type SessionRepository struct {
	db *sql.DB
}

// Sessions returns the session repository for this store.
func (s *Store) Sessions() *SessionRepository {
	return &SessionRepository{db: s.db}
}

// Create inserts a session. StartedAt defaults to now.
func (r *SessionRepository) Create(sess *Session) error {
	if sess.StartedAt.IsZero() {
		sess.StartedAt = time.Now().UTC()
	}
	_, err := r.db.Exec(
		`INSERT INTO sessions (id, camera_id, dropout, started_at) VALUES (?, ?, ?, ?)`,
		sess.ID, sess.CameraID, sess.Dropout, sess.StartedAt,
	)
	return err
}

// End marks a running session finished with reason. Ending an already
// ended session keeps the first reason.
func (r *SessionRepository) End(id, reason string) error {
	result, err := r.db.Exec(
		`UPDATE sessions SET ended_at = ?, end_reason = ? WHERE id = ? AND ended_at IS NULL`,
		time.Now().UTC(), reason, id,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		if _, err := r.GetByID(id); err != nil {
			return err
		}
	}
	return nil
}

// GetByID retrieves a session with its transcript length.
func (r *SessionRepository) GetByID(id string) (*Session, error) {
	row := r.db.QueryRow(sessionSelect+` WHERE s.id = ? GROUP BY s.id`, id)
	sess, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return sess, nil
}

// List returns up to limit sessions, newest first. A limit <= 0 returns all.
func (r *SessionRepository) List(limit int) ([]*Session, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.Query(sessionSelect+` GROUP BY s.id ORDER BY s.started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// Delete removes a session and its transcript.
func (r *SessionRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

const sessionSelect = `SELECT s.id, s.camera_id, s.dropout, s.started_at, s.ended_at, s.end_reason, COUNT(t.id)
	FROM sessions s LEFT JOIN transcript t ON t.session_id = s.id`

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*Session, error) {
	sess := &Session{}
	var ended sql.NullTime
	if err := row.Scan(&sess.ID, &sess.CameraID, &sess.Dropout, &sess.StartedAt, &ended, &sess.EndReason, &sess.Letters); err != nil {
		return nil, err
	}
	if ended.Valid {
		sess.EndedAt = ended.Time
	}
	return sess, nil
}
