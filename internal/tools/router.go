package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
)

// Handler executes one tool call and returns a structured payload that is
// serialized into the Result's output text.
type Handler func(ctx context.Context, input map[string]any) (map[string]any, error)

// Router binds tool names to handlers and normalizes their outcomes into the
// invocation/result framing the transcript records. It is the in-process
// surface an agent loop drives; the loop itself lives outside this module.
type Router struct {
	log *slog.Logger

	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewRouter(log *slog.Logger) *Router {
	if log == nil {
		log = slog.Default()
	}
	return &Router{
		log:      log,
		handlers: map[string]Handler{},
	}
}

// Register binds a handler under a tool name. Re-registering a name replaces
// the previous handler.
func (r *Router) Register(name string, h Handler) error {
	if r == nil {
		return errors.New("nil router")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("missing tool name")
	}
	if h == nil {
		return errors.New("nil handler")
	}
	r.mu.Lock()
	r.handlers[name] = h
	r.mu.Unlock()
	return nil
}

// Names returns the registered tool names, sorted.
func (r *Router) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Dispatch runs the call's handler and frames its outcome as a Result.
// Handler failures become error results, never panics or dropped frames.
func (r *Router) Dispatch(ctx context.Context, call Call) Result {
	call.Normalize()
	res := Result{ToolID: call.ToolID}
	if r == nil {
		res.IsError = true
		res.Output = "tool router unavailable"
		return res
	}
	if call.Name == "" {
		res.IsError = true
		res.Output = "missing tool name"
		return res
	}
	if ctx == nil {
		ctx = context.Background()
	}

	r.mu.RLock()
	h := r.handlers[call.Name]
	r.mu.RUnlock()
	if h == nil {
		res.IsError = true
		res.Output = fmt.Sprintf("unknown tool %q", call.Name)
		return res
	}

	payload, err := h(ctx, call.Input)
	if err != nil {
		res.IsError = true
		res.Output = strings.TrimSpace(err.Error())
		if res.Output == "" {
			res.Output = "tool failed"
		}
		r.log.Debug("tool call failed", "tool", call.Name, "err", err)
		return res
	}
	if payload == nil {
		payload = map[string]any{}
	}
	b, err := json.Marshal(payload)
	if err != nil {
		res.IsError = true
		res.Output = "tool produced an unserializable payload"
		return res
	}
	res.Output = string(b)
	return res
}
