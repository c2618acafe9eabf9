package skills

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/coworkhq/coworkd/internal/session"
	"github.com/coworkhq/coworkd/internal/store"
)

const (
	maxNameLen        = 100
	maxDescriptionLen = 500
	maxContentLen     = 10000
	maxCategoryLen    = 50
	maxTriggerLen     = 100
	maxTriggers       = 20
	maxTagLen         = 50
	maxTags           = 20
	maxParameters     = 20
)

// Resolver merges the embedded built-in skill catalog with org-scoped custom
// skills from the store and owns custom-skill authoring.
type Resolver struct {
	log *slog.Logger
	st  *store.Store
}

// Options configures a Resolver.
type Options struct {
	Logger *slog.Logger
	Store  *store.Store
}

func NewResolver(opts Options) (*Resolver, error) {
	if opts.Store == nil {
		return nil, errors.New("missing store")
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{log: log, st: opts.Store}, nil
}

// ListBuiltIn returns the embedded catalog, parsed once per process. Callers
// receive copies and may mutate them freely.
func (r *Resolver) ListBuiltIn() ([]Skill, error) {
	cat, err := loadBuiltIn()
	if err != nil {
		return nil, err
	}
	out := make([]Skill, len(cat))
	copy(out, cat)
	return out, nil
}

// ListCustom returns the caller's org-scoped custom skills, optionally
// narrowed to a session and by the given filters.
func (r *Resolver) ListCustom(ctx context.Context, orgID string, sessionID string, f Filters) ([]Skill, error) {
	if r == nil || r.st == nil {
		return nil, errors.New("resolver not initialized")
	}
	rows, err := r.st.ListCustomSkills(ctx, orgID, sessionID, f.Category, f.Search)
	if err != nil {
		return nil, err
	}
	out := make([]Skill, 0, len(rows))
	for _, row := range rows {
		sk := fromRow(row)
		if !matchesFilters(sk, f) {
			continue
		}
		out = append(out, sk)
	}
	return out, nil
}

// List merges built-in and custom skills into one catalog. A custom-skill
// lookup failure degrades to a built-in-only listing; a broken embedded
// catalog is fatal.
func (r *Resolver) List(ctx context.Context, orgID string, sessionID string, f Filters) (Listing, error) {
	builtIn, err := r.ListBuiltIn()
	if err != nil {
		return Listing{}, err
	}
	filtered := make([]Skill, 0, len(builtIn))
	for _, sk := range builtIn {
		if matchesFilters(sk, f) {
			filtered = append(filtered, sk)
		}
	}
	builtIn = filtered

	custom, err := r.ListCustom(ctx, orgID, sessionID, f)
	if err != nil {
		r.log.Warn("custom skill lookup failed, serving built-in catalog only", "err", err, "org_id", orgID)
		custom = []Skill{}
	}

	merged := make([]Skill, 0, len(builtIn)+len(custom))
	merged = append(merged, builtIn...)
	merged = append(merged, custom...)
	return Listing{Skills: merged, BuiltIn: builtIn, Custom: custom}, nil
}

// CreateRequest carries the authoring input for a new custom skill.
type CreateRequest struct {
	SessionID     string      `json:"sessionId"`
	Name          string      `json:"name"`
	Description   string      `json:"description"`
	Content       string      `json:"content"`
	Category      string      `json:"category"`
	Triggers      []string    `json:"triggers"`
	Tags          []string    `json:"tags"`
	Parameters    []Parameter `json:"parameters"`
	ExampleInput  string      `json:"exampleInput"`
	ExampleOutput string      `json:"exampleOutput"`
	Status        string      `json:"status"`
}

// Create validates and persists a custom skill bound to a session the caller
// owns. Sessions outside the caller's scope surface as store.ErrNotFound,
// indistinguishable from sessions that do not exist.
func (r *Resolver) Create(ctx context.Context, p session.Principal, req CreateRequest) (*Skill, error) {
	if r == nil || r.st == nil {
		return nil, errors.New("resolver not initialized")
	}
	req.normalize()

	fields := map[string]string{}
	if req.SessionID == "" {
		fields["sessionId"] = "required"
	}
	if req.Name == "" {
		fields["name"] = "required"
	} else if len([]rune(req.Name)) > maxNameLen {
		fields["name"] = fmt.Sprintf("must be at most %d characters", maxNameLen)
	}
	if len([]rune(req.Description)) > maxDescriptionLen {
		fields["description"] = fmt.Sprintf("must be at most %d characters", maxDescriptionLen)
	}
	if req.Content == "" {
		fields["content"] = "required"
	} else if len([]rune(req.Content)) > maxContentLen {
		fields["content"] = fmt.Sprintf("must be at most %d characters", maxContentLen)
	}
	if len([]rune(req.Category)) > maxCategoryLen {
		fields["category"] = fmt.Sprintf("must be at most %d characters", maxCategoryLen)
	}
	if !IsValidSkillStatus(req.Status) {
		fields["status"] = "must be draft or published"
	}
	if len(req.Triggers) > maxTriggers {
		fields["triggers"] = fmt.Sprintf("at most %d entries", maxTriggers)
	}
	for i, trig := range req.Triggers {
		if len([]rune(trig)) > maxTriggerLen {
			fields[fmt.Sprintf("triggers[%d]", i)] = fmt.Sprintf("must be at most %d characters", maxTriggerLen)
		}
	}
	if len(req.Tags) > maxTags {
		fields["tags"] = fmt.Sprintf("at most %d entries", maxTags)
	}
	for i, tag := range req.Tags {
		if len([]rune(tag)) > maxTagLen {
			fields[fmt.Sprintf("tags[%d]", i)] = fmt.Sprintf("must be at most %d characters", maxTagLen)
		}
	}
	if len(req.Parameters) > maxParameters {
		fields["parameters"] = fmt.Sprintf("at most %d entries", maxParameters)
	}
	for i, param := range req.Parameters {
		if strings.TrimSpace(param.Name) == "" {
			fields[fmt.Sprintf("parameters[%d].name", i)] = "required"
		}
		if !IsValidParameterType(param.Type) {
			fields[fmt.Sprintf("parameters[%d].type", i)] = "must be one of text, textarea, select, number, boolean"
		} else if strings.TrimSpace(param.Type) == "select" && len(param.Options) == 0 {
			fields[fmt.Sprintf("parameters[%d].options", i)] = "required for select parameters"
		}
	}
	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}

	if _, err := r.st.GetSessionOwned(ctx, p.OrgID, p.UserID, req.SessionID); err != nil {
		return nil, err
	}

	skillID, err := store.NewSkillID()
	if err != nil {
		return nil, err
	}
	triggersJSON, err := json.Marshal(req.Triggers)
	if err != nil {
		return nil, err
	}
	tagsJSON, err := json.Marshal(req.Tags)
	if err != nil {
		return nil, err
	}
	paramsJSON, err := json.Marshal(req.Parameters)
	if err != nil {
		return nil, err
	}

	row := &store.CustomSkill{
		SkillID:       skillID,
		OrgID:         p.OrgID,
		SessionID:     req.SessionID,
		CreatedBy:     p.UserID,
		Name:          req.Name,
		Description:   req.Description,
		Content:       req.Content,
		Category:      req.Category,
		Status:        req.Status,
		Version:       1,
		TriggersJSON:  string(triggersJSON),
		TagsJSON:      string(tagsJSON),
		ParamsJSON:    string(paramsJSON),
		ExampleInput:  req.ExampleInput,
		ExampleOutput: req.ExampleOutput,
	}
	if err := r.st.CreateSkill(ctx, row); err != nil {
		return nil, err
	}

	sk := fromRow(*row)
	r.log.Info("custom skill created", "skill_id", sk.ID, "session_id", sk.SessionID, "org_id", p.OrgID)
	return &sk, nil
}

func (req *CreateRequest) normalize() {
	req.SessionID = strings.TrimSpace(req.SessionID)
	req.Name = strings.TrimSpace(req.Name)
	req.Description = strings.TrimSpace(req.Description)
	req.Category = strings.TrimSpace(req.Category)
	if req.Category == "" {
		req.Category = DefaultCategory
	}
	req.Status = strings.TrimSpace(req.Status)
	if req.Status == "" {
		req.Status = StatusDraft
	}
	req.Triggers = trimAll(req.Triggers)
	req.Tags = trimAll(req.Tags)
	req.ExampleInput = strings.TrimSpace(req.ExampleInput)
	req.ExampleOutput = strings.TrimSpace(req.ExampleOutput)
	if req.Triggers == nil {
		req.Triggers = []string{}
	}
	if req.Tags == nil {
		req.Tags = []string{}
	}
	if req.Parameters == nil {
		req.Parameters = []Parameter{}
	}
}

func trimAll(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func fromRow(row store.CustomSkill) Skill {
	sk := Skill{
		ID:            row.SkillID,
		Name:          row.Name,
		Description:   row.Description,
		Category:      row.Category,
		Source:        SourceCustom,
		SessionID:     row.SessionID,
		Content:       row.Content,
		ExampleInput:  row.ExampleInput,
		ExampleOutput: row.ExampleOutput,
		Status:        row.Status,
		Version:       row.Version,
		CreatedBy:     row.CreatedBy,

		CreatedAtUnixMs: row.CreatedAtUnixMs,
		UpdatedAtUnixMs: row.UpdatedAtUnixMs,
	}
	// Best-effort: malformed JSON columns degrade to empty lists.
	_ = json.Unmarshal([]byte(row.TriggersJSON), &sk.Triggers)
	_ = json.Unmarshal([]byte(row.TagsJSON), &sk.Tags)
	_ = json.Unmarshal([]byte(row.ParamsJSON), &sk.Parameters)
	return sk
}
