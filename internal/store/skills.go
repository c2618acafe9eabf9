package store

import (
	"context"
	"errors"
	"strings"
	"time"
)

// CustomSkill is the persisted row for an organization-scoped authored skill.
// List-shaped fields are stored as JSON columns; the skills package owns the
// typed views over them.
type CustomSkill struct {
	SkillID   string `json:"skill_id"`
	OrgID     string `json:"org_id"`
	SessionID string `json:"session_id"`
	CreatedBy string `json:"created_by"`

	Name        string `json:"name"`
	Description string `json:"description"`
	Content     string `json:"content"`
	Category    string `json:"category"`
	Status      string `json:"status"`
	Version     int    `json:"version"`

	TriggersJSON string `json:"triggers_json"`
	TagsJSON     string `json:"tags_json"`
	ParamsJSON   string `json:"params_json"`

	ExampleInput  string `json:"example_input,omitempty"`
	ExampleOutput string `json:"example_output,omitempty"`

	CreatedAtUnixMs int64 `json:"created_at_unix_ms"`
	UpdatedAtUnixMs int64 `json:"updated_at_unix_ms"`
}

func (s *Store) CreateSkill(ctx context.Context, sk *CustomSkill) error {
	if s == nil || s.db == nil {
		return errors.New("store not initialized")
	}
	if sk == nil {
		return errors.New("nil skill")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	sk.SkillID = strings.TrimSpace(sk.SkillID)
	sk.OrgID = strings.TrimSpace(sk.OrgID)
	sk.SessionID = strings.TrimSpace(sk.SessionID)
	if sk.SkillID == "" || sk.OrgID == "" || sk.SessionID == "" {
		return errors.New("missing skill_id, org_id or session_id")
	}
	if strings.TrimSpace(sk.Name) == "" {
		return errors.New("missing name")
	}
	if sk.Version <= 0 {
		sk.Version = 1
	}
	if strings.TrimSpace(sk.TriggersJSON) == "" {
		sk.TriggersJSON = "[]"
	}
	if strings.TrimSpace(sk.TagsJSON) == "" {
		sk.TagsJSON = "[]"
	}
	if strings.TrimSpace(sk.ParamsJSON) == "" {
		sk.ParamsJSON = "[]"
	}
	now := time.Now().UnixMilli()
	if sk.CreatedAtUnixMs == 0 {
		sk.CreatedAtUnixMs = now
	}
	if sk.UpdatedAtUnixMs == 0 {
		sk.UpdatedAtUnixMs = now
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO skills (
  skill_id, org_id, session_id, created_by,
  name, description, content, category, status, version,
  triggers_json, tags_json, params_json,
  example_input, example_output,
  created_at_unix_ms, updated_at_unix_ms
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		sk.SkillID, sk.OrgID, sk.SessionID, strings.TrimSpace(sk.CreatedBy),
		strings.TrimSpace(sk.Name), strings.TrimSpace(sk.Description), sk.Content, strings.TrimSpace(sk.Category), strings.TrimSpace(sk.Status), sk.Version,
		sk.TriggersJSON, sk.TagsJSON, sk.ParamsJSON,
		sk.ExampleInput, sk.ExampleOutput,
		sk.CreatedAtUnixMs, sk.UpdatedAtUnixMs,
	)
	return err
}

// ListCustomSkills returns org-scoped skills, optionally narrowed to a
// session, a category exact match, and a free-text search over name and
// description. Tag filtering happens above the store because tags are a
// JSON column.
func (s *Store) ListCustomSkills(ctx context.Context, orgID string, sessionID string, category string, search string) ([]CustomSkill, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	orgID = strings.TrimSpace(orgID)
	if orgID == "" {
		return nil, errors.New("missing org_id")
	}

	q := `
SELECT
  skill_id, org_id, session_id, created_by,
  name, description, content, category, status, version,
  triggers_json, tags_json, params_json,
  example_input, example_output,
  created_at_unix_ms, updated_at_unix_ms
FROM skills
WHERE org_id = ?`
	args := []any{orgID}

	if sessionID = strings.TrimSpace(sessionID); sessionID != "" {
		q += ` AND session_id = ?`
		args = append(args, sessionID)
	}
	if category = strings.TrimSpace(category); category != "" {
		q += ` AND category = ?`
		args = append(args, category)
	}
	if search = strings.TrimSpace(search); search != "" {
		q += ` AND (name LIKE ? ESCAPE '\' OR description LIKE ? ESCAPE '\')`
		pat := "%" + escapeLike(search) + "%"
		args = append(args, pat, pat)
	}
	q += `
ORDER BY created_at_unix_ms ASC, skill_id ASC`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]CustomSkill, 0, 16)
	for rows.Next() {
		var sk CustomSkill
		if err := rows.Scan(
			&sk.SkillID,
			&sk.OrgID,
			&sk.SessionID,
			&sk.CreatedBy,
			&sk.Name,
			&sk.Description,
			&sk.Content,
			&sk.Category,
			&sk.Status,
			&sk.Version,
			&sk.TriggersJSON,
			&sk.TagsJSON,
			&sk.ParamsJSON,
			&sk.ExampleInput,
			&sk.ExampleOutput,
			&sk.CreatedAtUnixMs,
			&sk.UpdatedAtUnixMs,
		); err != nil {
			return nil, err
		}
		out = append(out, sk)
	}
	return out, rows.Err()
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
