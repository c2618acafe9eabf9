package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/coworkhq/coworkd/internal/store"
)

const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusError     = "error"
	StatusCancelled = "cancelled"
)

// IsTerminal reports whether a status can never transition again.
func IsTerminal(status string) bool {
	switch strings.TrimSpace(status) {
	case StatusCompleted, StatusError, StatusCancelled:
		return true
	default:
		return false
	}
}

// nonTerminal is the compare set for every commit into a terminal state.
var nonTerminal = []string{StatusPending, StatusRunning}

// TaskSpec describes one delegated unit of work.
type TaskSpec struct {
	Objective string
	AgentType string
	// Timeout caps the sub-agent's wall time. Zero uses the orchestrator
	// default.
	Timeout time.Duration
}

// RunFunc performs the delegated work. It must honor ctx cancellation; the
// returned string is recorded as the sub-agent's result.
type RunFunc func(ctx context.Context) (string, error)

type entry struct {
	agentID   string
	sessionID string
	cancel    context.CancelFunc
	doneCh    chan struct{}

	mu      sync.Mutex
	status  string
	endedAt time.Time
}

// transition is the single-assignment gate for an entry's terminal state:
// it commits only when the current status is in from.
func (e *entry) transition(to string, from ...string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, f := range from {
		if e.status == f {
			e.status = to
			if IsTerminal(to) {
				e.endedAt = time.Now()
			}
			return true
		}
	}
	return false
}

func (e *entry) statusSnapshot() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

type Options struct {
	Logger *slog.Logger
	Store  *store.Store

	// DefaultTimeout caps a sub-agent run when the TaskSpec does not.
	// Zero means 10 minutes.
	DefaultTimeout time.Duration
	// Retention is how long finished runtime entries stay queryable in
	// memory. Zero means 30 minutes.
	Retention time.Duration
	// JanitorInterval is the pause between retention passes.
	// Zero means 1 minute.
	JanitorInterval time.Duration
	// PersistTimeout bounds each status write to the store.
	// Zero means 5 seconds.
	PersistTimeout time.Duration
}

const (
	defaultRunTimeout      = 10 * time.Minute
	defaultRetention       = 30 * time.Minute
	defaultJanitorInterval = time.Minute
	defaultPersistTimeout  = 5 * time.Second
)

// Orchestrator tracks every sub-agent's run state and enforces the
// pending → running → {completed, error, cancelled} state machine. Status is
// mirrored to the store so unrelated requests can query and cancel agents
// they did not spawn.
type Orchestrator struct {
	log *slog.Logger
	st  *store.Store

	defaultTimeout  time.Duration
	retention       time.Duration
	janitorInterval time.Duration
	persistTO       time.Duration

	mu      sync.Mutex
	entries map[string]*entry
	closed  bool

	stopCh chan struct{}
	doneCh chan struct{}
}

func New(opts Options) (*Orchestrator, error) {
	if opts.Store == nil {
		return nil, errors.New("missing Store")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	o := &Orchestrator{
		log:             logger,
		st:              opts.Store,
		defaultTimeout:  opts.DefaultTimeout,
		retention:       opts.Retention,
		janitorInterval: opts.JanitorInterval,
		persistTO:       opts.PersistTimeout,
		entries:         map[string]*entry{},
		stopCh:          make(chan struct{}),
		doneCh:          make(chan struct{}),
	}
	if o.defaultTimeout <= 0 {
		o.defaultTimeout = defaultRunTimeout
	}
	if o.retention <= 0 {
		o.retention = defaultRetention
	}
	if o.janitorInterval <= 0 {
		o.janitorInterval = defaultJanitorInterval
	}
	if o.persistTO <= 0 {
		o.persistTO = defaultPersistTimeout
	}
	go o.janitorLoop()
	return o, nil
}

// Spawn persists a new sub-agent under the session and starts fn on its own
// goroutine, detached from the spawning request's context.
func (o *Orchestrator) Spawn(ctx context.Context, sess *store.Session, spec TaskSpec, fn RunFunc) (*store.SubAgent, error) {
	if o == nil {
		return nil, errors.New("nil orchestrator")
	}
	if sess == nil {
		return nil, errors.New("nil session")
	}
	if fn == nil {
		return nil, errors.New("nil run func")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	objective := strings.TrimSpace(spec.Objective)
	if objective == "" {
		return nil, errors.New("missing objective")
	}
	timeout := spec.Timeout
	if timeout <= 0 {
		timeout = o.defaultTimeout
	}

	agentID, err := store.NewAgentID()
	if err != nil {
		return nil, err
	}
	row := &store.SubAgent{
		AgentID:   agentID,
		SessionID: sess.SessionID,
		OrgID:     sess.OrgID,
		Status:    StatusPending,
		AgentType: strings.TrimSpace(spec.AgentType),
		Objective: objective,
	}
	if err := o.st.CreateSubAgent(ctx, row); err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithTimeout(context.Background(), timeout)
	e := &entry{
		agentID:   agentID,
		sessionID: sess.SessionID,
		cancel:    cancel,
		doneCh:    make(chan struct{}),
		status:    StatusPending,
	}

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		cancel()
		return nil, errors.New("orchestrator closed")
	}
	o.entries[agentID] = e
	o.mu.Unlock()

	if e.transition(StatusRunning, StatusPending) {
		if _, err := o.st.MarkSubAgentRunning(ctx, agentID); err != nil {
			o.log.Warn("mark sub-agent running failed", "agent_id", agentID, "err", err)
		}
		row.Status = StatusRunning
	}

	o.log.Info("sub-agent spawned", "agent_id", agentID, "session_id", sess.SessionID, "agent_type", row.AgentType)
	go o.runTask(e, runCtx, fn)
	return row, nil
}

func (o *Orchestrator) runTask(e *entry, runCtx context.Context, fn RunFunc) {
	defer close(e.doneCh)
	defer e.cancel()

	result, err := fn(runCtx)
	switch {
	case err == nil:
		o.finish(e, StatusCompleted, result, "")
	case errors.Is(err, context.Canceled):
		o.finish(e, StatusCancelled, "", "sub-agent cancelled")
	case errors.Is(err, context.DeadlineExceeded):
		o.finish(e, StatusError, "", "sub-agent timed out")
	default:
		o.finish(e, StatusError, "", strings.TrimSpace(err.Error()))
	}
}

// finish commits a natural outcome. If cancellation was committed first the
// in-memory CAS loses and the record stays cancelled; the late completion is
// deliberately not recorded.
func (o *Orchestrator) finish(e *entry, to string, result string, errMsg string) {
	if !e.transition(to, StatusPending, StatusRunning) {
		o.log.Debug("sub-agent outcome lost the race", "agent_id", e.agentID, "late_status", to)
		return
	}
	o.persistTransition(e.agentID, to, result, errMsg)
	o.log.Info("sub-agent finished", "agent_id", e.agentID, "status", to)
}

// Cancel moves a pending or running sub-agent to cancelled and stops its
// work. It is idempotent: cancelling an unknown or already-terminal agent
// reports false and changes nothing.
func (o *Orchestrator) Cancel(ctx context.Context, agentID string) bool {
	if o == nil {
		return false
	}
	agentID = strings.TrimSpace(agentID)
	if agentID == "" {
		return false
	}

	o.mu.Lock()
	e := o.entries[agentID]
	o.mu.Unlock()

	if e == nil {
		// No runtime entry (e.g. a row surviving a restart): the store row is
		// the only state left to settle.
		ok, err := o.st.TransitionSubAgent(ctx, agentID, nonTerminal, StatusCancelled, "", "cancelled by user")
		if err != nil {
			o.log.Warn("cancel persist failed", "agent_id", agentID, "err", err)
			return false
		}
		return ok
	}

	if !e.transition(StatusCancelled, StatusPending, StatusRunning) {
		return false
	}
	e.cancel()
	o.persistTransition(agentID, StatusCancelled, "", "cancelled by user")
	o.log.Info("sub-agent cancelled", "agent_id", agentID)
	return true
}

// Status reports the live runtime status when the agent is still tracked in
// memory.
func (o *Orchestrator) Status(agentID string) (string, bool) {
	if o == nil {
		return "", false
	}
	o.mu.Lock()
	e := o.entries[strings.TrimSpace(agentID)]
	o.mu.Unlock()
	if e == nil {
		return "", false
	}
	return e.statusSnapshot(), true
}

// Done exposes the completion channel for a tracked agent. It is primarily
// for callers that need to join on a sub-agent's goroutine.
func (o *Orchestrator) Done(agentID string) (<-chan struct{}, bool) {
	if o == nil {
		return nil, false
	}
	o.mu.Lock()
	e := o.entries[strings.TrimSpace(agentID)]
	o.mu.Unlock()
	if e == nil {
		return nil, false
	}
	return e.doneCh, true
}

// Close cancels every live sub-agent and stops the janitor.
func (o *Orchestrator) Close() {
	if o == nil {
		return
	}
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	entries := make([]*entry, 0, len(o.entries))
	for _, e := range o.entries {
		entries = append(entries, e)
	}
	o.mu.Unlock()

	close(o.stopCh)
	for _, e := range entries {
		if e.transition(StatusCancelled, StatusPending, StatusRunning) {
			e.cancel()
			o.persistTransition(e.agentID, StatusCancelled, "", "cancelled on shutdown")
		}
	}
	<-o.doneCh
}

func (o *Orchestrator) persistTransition(agentID string, to string, result string, errMsg string) {
	pctx, cancel := context.WithTimeout(context.Background(), o.persistTO)
	defer cancel()
	if _, err := o.st.TransitionSubAgent(pctx, agentID, nonTerminal, to, result, errMsg); err != nil {
		o.log.Warn("sub-agent status persist failed", "agent_id", agentID, "status", to, "err", err)
	}
}

func (o *Orchestrator) janitorLoop() {
	defer close(o.doneCh)
	ticker := time.NewTicker(o.janitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-o.stopCh:
			return
		case <-ticker.C:
			o.dropStale()
		}
	}
}

// dropStale forgets terminal runtime entries past the retention window. The
// store row remains the durable record.
func (o *Orchestrator) dropStale() {
	cutoff := time.Now().Add(-o.retention)
	o.mu.Lock()
	defer o.mu.Unlock()
	for id, e := range o.entries {
		e.mu.Lock()
		stale := IsTerminal(e.status) && !e.endedAt.IsZero() && e.endedAt.Before(cutoff)
		e.mu.Unlock()
		if stale {
			delete(o.entries, id)
		}
	}
}
