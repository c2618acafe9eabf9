package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"
)

type SubAgent struct {
	AgentID   string `json:"agent_id"`
	SessionID string `json:"session_id"`
	OrgID     string `json:"org_id"`
	Status    string `json:"status"`
	AgentType string `json:"agent_type,omitempty"`
	Objective string `json:"objective"`
	Result    string `json:"result,omitempty"`
	ErrorMsg  string `json:"error,omitempty"`

	CreatedAtUnixMs int64 `json:"created_at_unix_ms"`
	UpdatedAtUnixMs int64 `json:"updated_at_unix_ms"`
	EndedAtUnixMs   int64 `json:"ended_at_unix_ms,omitempty"`
}

func (s *Store) CreateSubAgent(ctx context.Context, a *SubAgent) error {
	if s == nil || s.db == nil {
		return errors.New("store not initialized")
	}
	if a == nil {
		return errors.New("nil subagent")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	a.AgentID = strings.TrimSpace(a.AgentID)
	a.SessionID = strings.TrimSpace(a.SessionID)
	a.OrgID = strings.TrimSpace(a.OrgID)
	if a.AgentID == "" || a.SessionID == "" || a.OrgID == "" {
		return errors.New("missing agent_id, session_id or org_id")
	}
	if strings.TrimSpace(a.Status) == "" {
		a.Status = "pending"
	}
	now := time.Now().UnixMilli()
	if a.CreatedAtUnixMs == 0 {
		a.CreatedAtUnixMs = now
	}
	if a.UpdatedAtUnixMs == 0 {
		a.UpdatedAtUnixMs = now
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO subagents (agent_id, session_id, org_id, status, agent_type, objective, result, error, created_at_unix_ms, updated_at_unix_ms, ended_at_unix_ms)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`, a.AgentID, a.SessionID, a.OrgID, strings.TrimSpace(a.Status), strings.TrimSpace(a.AgentType), strings.TrimSpace(a.Objective), a.Result, a.ErrorMsg, a.CreatedAtUnixMs, a.UpdatedAtUnixMs, a.EndedAtUnixMs)
	return err
}

// GetSubAgent loads a sub-agent only when it belongs to the given session.
// A cross-session reference is reported as ErrNotFound.
func (s *Store) GetSubAgent(ctx context.Context, sessionID string, agentID string) (*SubAgent, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	sessionID = strings.TrimSpace(sessionID)
	agentID = strings.TrimSpace(agentID)
	if sessionID == "" || agentID == "" {
		return nil, errors.New("invalid request")
	}

	var a SubAgent
	err := s.db.QueryRowContext(ctx, `
SELECT agent_id, session_id, org_id, status, agent_type, objective, result, error, created_at_unix_ms, updated_at_unix_ms, ended_at_unix_ms
FROM subagents
WHERE session_id = ? AND agent_id = ?
`, sessionID, agentID).Scan(
		&a.AgentID,
		&a.SessionID,
		&a.OrgID,
		&a.Status,
		&a.AgentType,
		&a.Objective,
		&a.Result,
		&a.ErrorMsg,
		&a.CreatedAtUnixMs,
		&a.UpdatedAtUnixMs,
		&a.EndedAtUnixMs,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Store) ListSubAgents(ctx context.Context, sessionID string) ([]SubAgent, error) {
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
SELECT agent_id, session_id, org_id, status, agent_type, objective, result, error, created_at_unix_ms, updated_at_unix_ms, ended_at_unix_ms
FROM subagents
WHERE session_id = ?
ORDER BY created_at_unix_ms ASC, agent_id ASC
`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]SubAgent, 0, 8)
	for rows.Next() {
		var a SubAgent
		if err := rows.Scan(
			&a.AgentID,
			&a.SessionID,
			&a.OrgID,
			&a.Status,
			&a.AgentType,
			&a.Objective,
			&a.Result,
			&a.ErrorMsg,
			&a.CreatedAtUnixMs,
			&a.UpdatedAtUnixMs,
			&a.EndedAtUnixMs,
		); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// TransitionSubAgent applies a compare-and-set status transition: the row
// moves to `to` only if its current status is one of `from`. It reports
// whether the transition was committed. Losing a race to another terminal
// transition is not an error; the caller observes false.
func (s *Store) TransitionSubAgent(ctx context.Context, agentID string, from []string, to string, result string, errMsg string) (bool, error) {
	if s == nil || s.db == nil {
		return false, errors.New("store not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	agentID = strings.TrimSpace(agentID)
	to = strings.TrimSpace(to)
	if agentID == "" || to == "" || len(from) == 0 {
		return false, errors.New("invalid transition")
	}

	placeholders := make([]string, 0, len(from))
	args := []any{to, result, errMsg}
	now := time.Now().UnixMilli()
	args = append(args, now, now, agentID)
	for _, f := range from {
		placeholders = append(placeholders, "?")
		args = append(args, strings.TrimSpace(f))
	}

	q := `
UPDATE subagents
SET status = ?, result = ?, error = ?, updated_at_unix_ms = ?, ended_at_unix_ms = ?
WHERE agent_id = ? AND status IN (` + strings.Join(placeholders, ", ") + `)`

	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MarkSubAgentRunning moves a pending sub-agent to running without touching
// the ended timestamp.
func (s *Store) MarkSubAgentRunning(ctx context.Context, agentID string) (bool, error) {
	if s == nil || s.db == nil {
		return false, errors.New("store not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	agentID = strings.TrimSpace(agentID)
	if agentID == "" {
		return false, errors.New("missing agent_id")
	}
	res, err := s.db.ExecContext(ctx, `
UPDATE subagents SET status = 'running', updated_at_unix_ms = ? WHERE agent_id = ? AND status = 'pending'
`, time.Now().UnixMilli(), agentID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
