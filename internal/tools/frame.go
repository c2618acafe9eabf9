package tools

import (
	"fmt"
	"strings"
)

// Call is one tool invocation emitted by the agent: a tool name plus a
// structured input mapping.
type Call struct {
	ToolID string         `json:"tool_id,omitempty"`
	Name   string         `json:"name"`
	Input  map[string]any `json:"input,omitempty"`
}

// Result is what comes back from a tool: output text and an error flag.
type Result struct {
	ToolID  string `json:"tool_id,omitempty"`
	Output  string `json:"output"`
	IsError bool   `json:"is_error,omitempty"`
}

func (c *Call) Normalize() {
	if c == nil {
		return
	}
	c.ToolID = strings.TrimSpace(c.ToolID)
	c.Name = strings.TrimSpace(c.Name)
	if len(c.Input) == 0 {
		c.Input = nil
	}
}

// importantTools are the calls that delegate work, block on the human, or
// report a sub-agent's outcome. They surface expanded in the transcript;
// everything else collapses to a one-line summary.
var importantTools = map[string]struct{}{
	"delegate_task":          {},
	"ask_user":               {},
	"report_subagent_result": {},
	"wait_subagents":         {},
}

// IsImportant reports whether a tool call surfaces expanded by default.
func IsImportant(toolName string) bool {
	_, ok := importantTools[strings.TrimSpace(toolName)]
	return ok
}

// DefaultCollapsed is the presentation default for a tool call in the
// transcript. It has no behavioral effect on execution.
func DefaultCollapsed(toolName string) bool {
	return !IsImportant(toolName)
}

// summaryKeys are probed in order; the first non-empty value becomes the
// collapsed summary.
var summaryKeys = []string{
	"file_path",
	"path",
	"filename",
	"command",
	"query",
	"pattern",
	"url",
}

const summaryMaxRunes = 80

// Summarize extracts the most salient single input field for a collapsed
// tool call. It returns the tool name alone when nothing matches.
func Summarize(c Call) string {
	name := strings.TrimSpace(c.Name)
	for _, key := range summaryKeys {
		v := strings.TrimSpace(anyToString(c.Input[key]))
		if v == "" {
			continue
		}
		return truncateRunes(v, summaryMaxRunes)
	}
	return name
}

func anyToString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case fmt.Stringer:
		return x.String()
	default:
		return ""
	}
}

func truncateRunes(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 1 {
		return string(runes[:max])
	}
	return string(runes[:max-1]) + "…"
}
