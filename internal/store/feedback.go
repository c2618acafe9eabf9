package store

import (
	"context"
	"errors"
	"strings"
	"time"
)

const (
	RatingPositive = "positive"
	RatingNegative = "negative"
)

func IsValidRating(rating string) bool {
	switch strings.TrimSpace(rating) {
	case RatingPositive, RatingNegative:
		return true
	default:
		return false
	}
}

// Feedback is one rating attached to one transcript message. Rows are
// immutable once created; re-rating the same message inserts a new row.
type Feedback struct {
	FeedbackID string `json:"feedback_id"`
	SessionID  string `json:"session_id"`
	MessageID  string `json:"message_id"`
	Rating     string `json:"rating"`
	Comment    string `json:"comment,omitempty"`

	CreatedAtUnixMs int64 `json:"created_at_unix_ms"`
}

func (s *Store) InsertFeedback(ctx context.Context, fb *Feedback) error {
	if s == nil || s.db == nil {
		return errors.New("store not initialized")
	}
	if fb == nil {
		return errors.New("nil feedback")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	fb.SessionID = strings.TrimSpace(fb.SessionID)
	fb.MessageID = strings.TrimSpace(fb.MessageID)
	if fb.SessionID == "" || fb.MessageID == "" {
		return errors.New("missing session_id or message_id")
	}
	if !IsValidRating(fb.Rating) {
		return errors.New("invalid rating")
	}
	if strings.TrimSpace(fb.FeedbackID) == "" {
		id, err := newFeedbackID()
		if err != nil {
			return err
		}
		fb.FeedbackID = id
	}
	if fb.CreatedAtUnixMs == 0 {
		fb.CreatedAtUnixMs = time.Now().UnixMilli()
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO feedback (feedback_id, session_id, message_id, rating, comment, created_at_unix_ms)
VALUES (?, ?, ?, ?, ?, ?)
`, fb.FeedbackID, fb.SessionID, fb.MessageID, strings.TrimSpace(fb.Rating), strings.TrimSpace(fb.Comment), fb.CreatedAtUnixMs)
	return err
}

// ListFeedback returns all feedback for a session ordered by creation time
// ascending (insertion order breaks timestamp ties).
func (s *Store) ListFeedback(ctx context.Context, sessionID string) ([]Feedback, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, errors.New("missing session_id")
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT feedback_id, session_id, message_id, rating, comment, created_at_unix_ms
FROM feedback
WHERE session_id = ?
ORDER BY created_at_unix_ms ASC, id ASC
`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Feedback, 0, 8)
	for rows.Next() {
		var fb Feedback
		if err := rows.Scan(
			&fb.FeedbackID,
			&fb.SessionID,
			&fb.MessageID,
			&fb.Rating,
			&fb.Comment,
			&fb.CreatedAtUnixMs,
		); err != nil {
			return nil, err
		}
		out = append(out, fb)
	}
	return out, rows.Err()
}
