package tools

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestIsImportant(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"delegate_task", "ask_user", "report_subagent_result", "wait_subagents"} {
		if !IsImportant(name) {
			t.Fatalf("IsImportant(%q)=false, want true", name)
		}
		if DefaultCollapsed(name) {
			t.Fatalf("DefaultCollapsed(%q)=true, want false", name)
		}
	}
	if IsImportant("read_file") {
		t.Fatalf("IsImportant(read_file)=true, want false")
	}
	if !DefaultCollapsed("read_file") {
		t.Fatalf("DefaultCollapsed(read_file)=false, want true")
	}
}

func TestSummarize_FieldPriority(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		call Call
		want string
	}{
		{
			name: "file path wins over command",
			call: Call{Name: "read_file", Input: map[string]any{"file_path": "cmd/main.go", "command": "cat cmd/main.go"}},
			want: "cmd/main.go",
		},
		{
			name: "command",
			call: Call{Name: "run", Input: map[string]any{"command": "go vet ./..."}},
			want: "go vet ./...",
		},
		{
			name: "query",
			call: Call{Name: "search", Input: map[string]any{"query": "pending question sweep"}},
			want: "pending question sweep",
		},
		{
			name: "pattern",
			call: Call{Name: "grep", Input: map[string]any{"pattern": "Resolve\\("}},
			want: "Resolve\\(",
		},
		{
			name: "url",
			call: Call{Name: "fetch", Input: map[string]any{"url": "https://example.com/doc"}},
			want: "https://example.com/doc",
		},
		{
			name: "fallback to tool name",
			call: Call{Name: "mystery", Input: map[string]any{"other": "x"}},
			want: "mystery",
		},
		{
			name: "non-string salient field is skipped",
			call: Call{Name: "odd", Input: map[string]any{"path": 42, "query": "fallback"}},
			want: "fallback",
		},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := Summarize(tc.call); got != tc.want {
				t.Fatalf("Summarize=%q, want %q", got, tc.want)
			}
		})
	}
}

func TestSummarize_Truncates(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("x", 200)
	got := Summarize(Call{Name: "run", Input: map[string]any{"command": long}})
	if len([]rune(got)) != summaryMaxRunes {
		t.Fatalf("rune len=%d, want %d", len([]rune(got)), summaryMaxRunes)
	}
	if !strings.HasSuffix(got, "…") {
		t.Fatalf("truncated summary %q missing ellipsis", got)
	}
}

func TestRouterDispatch(t *testing.T) {
	t.Parallel()

	r := NewRouter(nil)
	if err := r.Register("echo", func(ctx context.Context, input map[string]any) (map[string]any, error) {
		return map[string]any{"echo": input["msg"]}, nil
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Register("boom", func(ctx context.Context, input map[string]any) (map[string]any, error) {
		return nil, errors.New("it broke")
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	res := r.Dispatch(context.Background(), Call{ToolID: "tool_1", Name: "echo", Input: map[string]any{"msg": "hi"}})
	if res.IsError {
		t.Fatalf("echo errored: %s", res.Output)
	}
	if res.ToolID != "tool_1" {
		t.Fatalf("ToolID=%q, want tool_1", res.ToolID)
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(res.Output), &payload); err != nil {
		t.Fatalf("output not JSON: %v", err)
	}
	if payload["echo"] != "hi" {
		t.Fatalf("payload=%v", payload)
	}

	res = r.Dispatch(context.Background(), Call{Name: "boom"})
	if !res.IsError || res.Output != "it broke" {
		t.Fatalf("boom result=%+v", res)
	}

	res = r.Dispatch(context.Background(), Call{Name: "missing"})
	if !res.IsError || !strings.Contains(res.Output, "unknown tool") {
		t.Fatalf("missing tool result=%+v", res)
	}
}
