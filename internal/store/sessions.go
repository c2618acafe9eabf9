package store

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	SessionStatusActive    = "active"
	SessionStatusPaused    = "paused"
	SessionStatusCompleted = "completed"
	SessionStatusError     = "error"
)

func IsValidSessionStatus(status string) bool {
	switch strings.TrimSpace(status) {
	case SessionStatusActive, SessionStatusPaused, SessionStatusCompleted, SessionStatusError:
		return true
	default:
		return false
	}
}

type Session struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
	OrgID     string `json:"org_id"`
	Status    string `json:"status"`
	ModelID   string `json:"model_id"`
	Title     string `json:"title"`

	CreatedAtUnixMs int64 `json:"created_at_unix_ms"`
	UpdatedAtUnixMs int64 `json:"updated_at_unix_ms"`
}

type SessionsCursor struct {
	UpdatedAtUnixMs int64
	SessionID       string
}

// EncodeSessionsCursor encodes a cursor as a URL-safe base64 string.
func EncodeSessionsCursor(c SessionsCursor) string {
	if c.UpdatedAtUnixMs <= 0 || strings.TrimSpace(c.SessionID) == "" {
		return ""
	}
	raw := fmt.Sprintf("%d:%s", c.UpdatedAtUnixMs, strings.TrimSpace(c.SessionID))
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func DecodeSessionsCursor(raw string) (SessionsCursor, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return SessionsCursor{}, true
	}
	b, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return SessionsCursor{}, false
	}
	parts := strings.SplitN(string(b), ":", 2)
	if len(parts) != 2 {
		return SessionsCursor{}, false
	}
	ms, err := strconv.ParseInt(strings.TrimSpace(parts[0]), 10, 64)
	if err != nil || ms <= 0 {
		return SessionsCursor{}, false
	}
	id := strings.TrimSpace(parts[1])
	if id == "" {
		return SessionsCursor{}, false
	}
	return SessionsCursor{UpdatedAtUnixMs: ms, SessionID: id}, true
}

func (s *Store) CreateSession(ctx context.Context, sess *Session) error {
	if s == nil || s.db == nil {
		return errors.New("store not initialized")
	}
	if sess == nil {
		return errors.New("nil session")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	sess.SessionID = strings.TrimSpace(sess.SessionID)
	sess.UserID = strings.TrimSpace(sess.UserID)
	sess.OrgID = strings.TrimSpace(sess.OrgID)
	if sess.SessionID == "" || sess.UserID == "" || sess.OrgID == "" {
		return errors.New("missing session_id, user_id or org_id")
	}
	if sess.Status == "" {
		sess.Status = SessionStatusActive
	}
	if !IsValidSessionStatus(sess.Status) {
		return fmt.Errorf("invalid session status %q", sess.Status)
	}
	now := time.Now().UnixMilli()
	if sess.CreatedAtUnixMs == 0 {
		sess.CreatedAtUnixMs = now
	}
	if sess.UpdatedAtUnixMs == 0 {
		sess.UpdatedAtUnixMs = now
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO sessions (session_id, user_id, org_id, status, model_id, title, created_at_unix_ms, updated_at_unix_ms)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`, sess.SessionID, sess.UserID, sess.OrgID, sess.Status, strings.TrimSpace(sess.ModelID), strings.TrimSpace(sess.Title), sess.CreatedAtUnixMs, sess.UpdatedAtUnixMs)
	return err
}

// GetSessionOwned loads a session only when it belongs to the given user
// within the given org. A session owned by anyone else is reported as
// ErrNotFound, never as a permission error.
func (s *Store) GetSessionOwned(ctx context.Context, orgID string, userID string, sessionID string) (*Session, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	orgID = strings.TrimSpace(orgID)
	userID = strings.TrimSpace(userID)
	sessionID = strings.TrimSpace(sessionID)
	if orgID == "" || userID == "" || sessionID == "" {
		return nil, errors.New("invalid request")
	}

	var sess Session
	err := s.db.QueryRowContext(ctx, `
SELECT session_id, user_id, org_id, status, model_id, title, created_at_unix_ms, updated_at_unix_ms
FROM sessions
WHERE org_id = ? AND user_id = ? AND session_id = ?
`, orgID, userID, sessionID).Scan(
		&sess.SessionID,
		&sess.UserID,
		&sess.OrgID,
		&sess.Status,
		&sess.ModelID,
		&sess.Title,
		&sess.CreatedAtUnixMs,
		&sess.UpdatedAtUnixMs,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *Store) ListSessions(ctx context.Context, orgID string, userID string, limit int, cursor SessionsCursor) ([]Session, string, error) {
	if s == nil || s.db == nil {
		return nil, "", errors.New("store not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	orgID = strings.TrimSpace(orgID)
	userID = strings.TrimSpace(userID)
	if orgID == "" || userID == "" {
		return nil, "", errors.New("missing org_id or user_id")
	}
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}

	args := []any{orgID, userID}
	where := ""
	if cursor.UpdatedAtUnixMs > 0 && strings.TrimSpace(cursor.SessionID) != "" {
		where = "AND (updated_at_unix_ms < ? OR (updated_at_unix_ms = ? AND session_id < ?))"
		args = append(args, cursor.UpdatedAtUnixMs, cursor.UpdatedAtUnixMs, strings.TrimSpace(cursor.SessionID))
	}
	args = append(args, limit)

	q := fmt.Sprintf(`
SELECT session_id, user_id, org_id, status, model_id, title, created_at_unix_ms, updated_at_unix_ms
FROM sessions
WHERE org_id = ? AND user_id = ?
%s
ORDER BY updated_at_unix_ms DESC, session_id DESC
LIMIT ?
`, where)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()

	out := make([]Session, 0, limit)
	for rows.Next() {
		var sess Session
		if err := rows.Scan(
			&sess.SessionID,
			&sess.UserID,
			&sess.OrgID,
			&sess.Status,
			&sess.ModelID,
			&sess.Title,
			&sess.CreatedAtUnixMs,
			&sess.UpdatedAtUnixMs,
		); err != nil {
			return nil, "", err
		}
		out = append(out, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}
	if len(out) == 0 {
		return out, "", nil
	}
	last := out[len(out)-1]
	next := EncodeSessionsCursor(SessionsCursor{UpdatedAtUnixMs: last.UpdatedAtUnixMs, SessionID: last.SessionID})
	return out, next, nil
}

func (s *Store) UpdateSessionStatus(ctx context.Context, sessionID string, status string) error {
	if s == nil || s.db == nil {
		return errors.New("store not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return errors.New("missing session_id")
	}
	if !IsValidSessionStatus(status) {
		return fmt.Errorf("invalid session status %q", status)
	}
	res, err := s.db.ExecContext(ctx, `
UPDATE sessions SET status = ?, updated_at_unix_ms = ? WHERE session_id = ?
`, strings.TrimSpace(status), time.Now().UnixMilli(), sessionID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
