package skills

import (
	"fmt"
	"sort"
	"strings"
)

const (
	SourceBuiltIn = "built-in"
	SourceCustom  = "custom"

	StatusDraft     = "draft"
	StatusPublished = "published"

	DefaultCategory = "General"
)

// ParameterTypes are the accepted structured-parameter input kinds.
var ParameterTypes = map[string]struct{}{
	"text":     {},
	"textarea": {},
	"select":   {},
	"number":   {},
	"boolean":  {},
}

func IsValidParameterType(t string) bool {
	_, ok := ParameterTypes[strings.TrimSpace(t)]
	return ok
}

func IsValidSkillStatus(status string) bool {
	switch strings.TrimSpace(status) {
	case StatusDraft, StatusPublished:
		return true
	default:
		return false
	}
}

// Parameter is one structured input a custom skill declares.
type Parameter struct {
	Name        string   `json:"name" yaml:"name"`
	Label       string   `json:"label,omitempty" yaml:"label"`
	Type        string   `json:"type" yaml:"type"`
	Description string   `json:"description,omitempty" yaml:"description"`
	Required    bool     `json:"required,omitempty" yaml:"required"`
	Default     any      `json:"default,omitempty" yaml:"default"`
	Options     []string `json:"options,omitempty" yaml:"options"`
}

// Skill is a reusable capability description the agent consults before
// acting. Built-in skills carry only the common fields; custom skills add
// authoring metadata.
type Skill struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Triggers    []string `json:"triggers,omitempty"`
	Category    string   `json:"category,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Source      string   `json:"source"`

	// Custom-skill fields.
	SessionID     string      `json:"session_id,omitempty"`
	Content       string      `json:"content,omitempty"`
	Parameters    []Parameter `json:"parameters,omitempty"`
	ExampleInput  string      `json:"example_input,omitempty"`
	ExampleOutput string      `json:"example_output,omitempty"`
	Status        string      `json:"status,omitempty"`
	Version       int         `json:"version,omitempty"`
	CreatedBy     string      `json:"created_by,omitempty"`

	CreatedAtUnixMs int64 `json:"created_at_unix_ms,omitempty"`
	UpdatedAtUnixMs int64 `json:"updated_at_unix_ms,omitempty"`
}

// Filters narrows a listing. Category is an exact match, Search is a
// case-insensitive substring over name and description, and Tags matches a
// skill whose tag set intersects the requested set.
type Filters struct {
	Category string
	Search   string
	Tags     []string
}

func (f Filters) empty() bool {
	return strings.TrimSpace(f.Category) == "" && strings.TrimSpace(f.Search) == "" && len(f.Tags) == 0
}

// Listing is the merged catalog handed to callers, with each entry tagged by
// provenance so consumers never re-derive it.
type Listing struct {
	Skills  []Skill `json:"skills"`
	BuiltIn []Skill `json:"builtIn"`
	Custom  []Skill `json:"custom"`
}

// ValidationError reports malformed input as a field-path → message map.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Fields) == 0 {
		return "validation failed"
	}
	paths := make([]string, 0, len(e.Fields))
	for p := range e.Fields {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	parts := make([]string, 0, len(paths))
	for _, p := range paths {
		parts = append(parts, fmt.Sprintf("%s: %s", p, e.Fields[p]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func matchesFilters(sk Skill, f Filters) bool {
	if f.empty() {
		return true
	}
	if category := strings.TrimSpace(f.Category); category != "" && sk.Category != category {
		return false
	}
	if search := strings.ToLower(strings.TrimSpace(f.Search)); search != "" {
		if !strings.Contains(strings.ToLower(sk.Name), search) && !strings.Contains(strings.ToLower(sk.Description), search) {
			return false
		}
	}
	if len(f.Tags) > 0 {
		have := make(map[string]struct{}, len(sk.Tags))
		for _, tag := range sk.Tags {
			have[strings.ToLower(strings.TrimSpace(tag))] = struct{}{}
		}
		hit := false
		for _, tag := range f.Tags {
			if _, ok := have[strings.ToLower(strings.TrimSpace(tag))]; ok {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	return true
}
