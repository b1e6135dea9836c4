package store

import (
	"database/sql"
	"time"
)

// Entry is one announced letter.
type Entry struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"sessionId"`
	Letter    string    `json:"letter"`
	Gesture   string    `json:"gesture,omitempty"`
	SpokenAt  time.Time `json:"spokenAt"`
}

// TranscriptRepository stores announced letters.
type TranscriptRepository struct {
	db *sql.DB
}

// Transcript returns the transcript repository for this store.
func (s *Store) Transcript() *TranscriptRepository {
	return &TranscriptRepository{db: s.db}
}

// Add appends e to its session's transcript and sets e.ID.
func (r *TranscriptRepository) Add(e *Entry) error {
	if e.SpokenAt.IsZero() {
		e.SpokenAt = time.Now().UTC()
	}
	result, err := r.db.Exec(
		`INSERT INTO transcript (session_id, letter, gesture, spoken_at) VALUES (?, ?, ?, ?)`,
		e.SessionID, e.Letter, e.Gesture, e.SpokenAt,
	)
	if err != nil {
		return err
	}
	e.ID, err = result.LastInsertId()
	return err
}

// ListBySession returns the transcript of sessionID in announcement order.
func (r *TranscriptRepository) ListBySession(sessionID string) ([]Entry, error) {
	rows, err := r.db.Query(
		`SELECT id, session_id, letter, gesture, spoken_at FROM transcript
		 WHERE session_id = ? ORDER BY id`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Letter, &e.Gesture, &e.SpokenAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
