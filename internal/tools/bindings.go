package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/coworkhq/coworkd/internal/orchestrator"
	"github.com/coworkhq/coworkd/internal/rendezvous"
	"github.com/coworkhq/coworkd/internal/store"
)

// BindOptions carries the services the core tool handlers drive.
type BindOptions struct {
	Logger *slog.Logger
	Store  *store.Store

	Orchestrator *orchestrator.Orchestrator
	// Questions is the human-in-the-loop rendezvous ask_user blocks on.
	Questions *rendezvous.Registry
	// Results is the rendezvous a delegated sub-agent blocks on until a
	// report_subagent_result call delivers its outcome.
	Results *rendezvous.Registry

	// WaitPoll bounds how long wait_subagents blocks overall. Zero means
	// 10 minutes.
	WaitTimeout time.Duration
}

const defaultWaitTimeout = 10 * time.Minute

// BindCore registers the coordination tools on the router: delegate_task,
// ask_user, report_subagent_result, and wait_subagents. The agent loop that
// emits the calls lives outside this module; these handlers are its contract
// with the session core.
func BindCore(r *Router, opts BindOptions) error {
	if r == nil {
		return errors.New("nil router")
	}
	if opts.Store == nil || opts.Orchestrator == nil || opts.Questions == nil || opts.Results == nil {
		return errors.New("missing store, orchestrator or rendezvous registries")
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	if opts.WaitTimeout <= 0 {
		opts.WaitTimeout = defaultWaitTimeout
	}
	b := &binder{
		log:         log,
		st:          opts.Store,
		orch:        opts.Orchestrator,
		questions:   opts.Questions,
		results:     opts.Results,
		waitTimeout: opts.WaitTimeout,
	}

	if err := r.Register("delegate_task", b.delegateTask); err != nil {
		return err
	}
	if err := r.Register("ask_user", b.askUser); err != nil {
		return err
	}
	if err := r.Register("report_subagent_result", b.reportSubagentResult); err != nil {
		return err
	}
	return r.Register("wait_subagents", b.waitSubagents)
}

type binder struct {
	log         *slog.Logger
	st          *store.Store
	orch        *orchestrator.Orchestrator
	questions   *rendezvous.Registry
	results     *rendezvous.Registry
	waitTimeout time.Duration
}

// delegateTask spawns a sub-agent whose run blocks until a matching
// report_subagent_result call delivers its outcome.
func (b *binder) delegateTask(ctx context.Context, input map[string]any) (map[string]any, error) {
	orgID := inputString(input, "org_id")
	userID := inputString(input, "user_id")
	sessionID := inputString(input, "session_id")
	objective := inputString(input, "objective")
	if sessionID == "" || orgID == "" || userID == "" {
		return nil, errors.New("missing session context")
	}
	if objective == "" {
		return nil, errors.New("missing objective")
	}

	sess, err := b.st.GetSessionOwned(ctx, orgID, userID, sessionID)
	if err != nil {
		return nil, err
	}

	spec := orchestrator.TaskSpec{
		Objective: objective,
		AgentType: inputString(input, "agent_type"),
	}
	// The run func needs the agent id Spawn assigns; hand it over through a
	// buffered channel so the run goroutine can register its report waiter
	// under the same id the reporter will use.
	idCh := make(chan string, 1)
	row, err := b.orch.Spawn(ctx, sess, spec, func(runCtx context.Context) (string, error) {
		var agentID string
		select {
		case agentID = <-idCh:
		case <-runCtx.Done():
			return "", runCtx.Err()
		}
		w, err := b.results.Register(agentID, rendezvous.Question{Prompt: objective})
		if err != nil {
			return "", err
		}
		answers, err := w.Await(runCtx)
		if err != nil {
			return "", err
		}
		if msg, _ := answers["error"].(string); strings.TrimSpace(msg) != "" {
			return "", errors.New(msg)
		}
		result, _ := answers["result"].(string)
		return result, nil
	})
	if err != nil {
		return nil, err
	}
	idCh <- row.AgentID
	return map[string]any{
		"agent_id": row.AgentID,
		"status":   row.Status,
	}, nil
}

// askUser registers a pending question and blocks until the human answers it
// through the questions endpoint, or until timeout/expiry.
func (b *binder) askUser(ctx context.Context, input map[string]any) (map[string]any, error) {
	questionID := inputString(input, "question_id")
	prompt := inputString(input, "prompt")
	if questionID == "" {
		return nil, errors.New("missing question_id")
	}
	if prompt == "" {
		return nil, errors.New("missing prompt")
	}

	q := rendezvous.Question{Prompt: prompt}
	if opts, ok := input["options"].([]any); ok {
		for _, o := range opts {
			if s := strings.TrimSpace(anyToString(o)); s != "" {
				q.Options = append(q.Options, s)
			}
		}
	}
	if exp, ok := input["expected"].(map[string]any); ok && len(exp) > 0 {
		q.Expected = make(map[string]string, len(exp))
		for k, v := range exp {
			q.Expected[k] = anyToString(v)
		}
	}

	w, err := b.questions.Register(questionID, q)
	if err != nil {
		return nil, err
	}
	answers, err := w.Await(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{"answers": answers}, nil
}

// reportSubagentResult delivers a delegated sub-agent's outcome. delivered is
// false when no run is waiting (already finished, timed out, or unknown id).
func (b *binder) reportSubagentResult(ctx context.Context, input map[string]any) (map[string]any, error) {
	agentID := inputString(input, "agent_id")
	if agentID == "" {
		return nil, errors.New("missing agent_id")
	}
	payload := map[string]any{
		"result": inputString(input, "result"),
	}
	if errMsg := inputString(input, "error"); errMsg != "" {
		payload["error"] = errMsg
	}
	delivered := b.results.Resolve(agentID, payload)
	if !delivered {
		b.log.Debug("sub-agent report had no waiter", "agent_id", agentID)
	}
	return map[string]any{"delivered": delivered}, nil
}

// waitSubagents joins on the listed sub-agents until each reaches a terminal
// state or the wait budget runs out.
func (b *binder) waitSubagents(ctx context.Context, input map[string]any) (map[string]any, error) {
	raw, ok := input["agent_ids"].([]any)
	if !ok || len(raw) == 0 {
		return nil, errors.New("missing agent_ids")
	}
	ids := make([]string, 0, len(raw))
	for _, v := range raw {
		if id := strings.TrimSpace(anyToString(v)); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, errors.New("missing agent_ids")
	}

	waitCtx, cancel := context.WithTimeout(ctx, b.waitTimeout)
	defer cancel()

	statuses := make(map[string]any, len(ids))
	for _, id := range ids {
		done, tracked := b.orch.Done(id)
		if tracked {
			select {
			case <-done:
			case <-waitCtx.Done():
				return nil, fmt.Errorf("wait_subagents: %w", waitCtx.Err())
			}
		}
		if status, ok := b.orch.Status(id); ok {
			statuses[id] = status
		} else {
			statuses[id] = "unknown"
		}
	}
	return map[string]any{"statuses": statuses}, nil
}

func inputString(input map[string]any, key string) string {
	if input == nil {
		return ""
	}
	return strings.TrimSpace(anyToString(input[key]))
}
