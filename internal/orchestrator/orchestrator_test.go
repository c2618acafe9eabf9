package orchestrator

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/coworkhq/coworkd/internal/store"
)

func newTestOrchestrator(t *testing.T) (*Orchestrator, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "coworkd.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	o, err := New(Options{Store: st, JanitorInterval: 10 * time.Millisecond, Retention: time.Hour})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(o.Close)
	return o, st
}

func mustSession(t *testing.T, st *store.Store) *store.Session {
	t.Helper()
	id, err := store.NewSessionID()
	if err != nil {
		t.Fatalf("NewSessionID: %v", err)
	}
	sess := &store.Session{SessionID: id, UserID: "user_1", OrgID: "org_a"}
	if err := st.CreateSession(context.Background(), sess); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	return sess
}

func waitDone(t *testing.T, o *Orchestrator, agentID string) {
	t.Helper()
	done, ok := o.Done(agentID)
	if !ok {
		t.Fatalf("Done(%s) not tracked", agentID)
	}
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("sub-agent %s did not finish", agentID)
	}
}

func TestSpawnRunsToCompletion(t *testing.T) {
	t.Parallel()
	o, st := newTestOrchestrator(t)
	sess := mustSession(t, st)

	row, err := o.Spawn(context.Background(), sess, TaskSpec{Objective: "summarize"}, func(ctx context.Context) (string, error) {
		return "all good", nil
	})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	waitDone(t, o, row.AgentID)

	got, err := st.GetSubAgent(context.Background(), sess.SessionID, row.AgentID)
	if err != nil {
		t.Fatalf("GetSubAgent: %v", err)
	}
	if got.Status != StatusCompleted || got.Result != "all good" {
		t.Fatalf("row=%+v, want completed/all good", got)
	}
}

func TestCancelRunningAgent(t *testing.T) {
	t.Parallel()
	o, st := newTestOrchestrator(t)
	sess := mustSession(t, st)

	started := make(chan struct{})
	row, err := o.Spawn(context.Background(), sess, TaskSpec{Objective: "long haul"}, func(ctx context.Context) (string, error) {
		close(started)
		<-ctx.Done()
		return "", ctx.Err()
	})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	<-started

	if !o.Cancel(context.Background(), row.AgentID) {
		t.Fatalf("Cancel returned false for a running agent")
	}
	waitDone(t, o, row.AgentID)

	got, err := st.GetSubAgent(context.Background(), sess.SessionID, row.AgentID)
	if err != nil {
		t.Fatalf("GetSubAgent: %v", err)
	}
	if got.Status != StatusCancelled {
		t.Fatalf("status=%q, want cancelled", got.Status)
	}
	// Second cancel is a no-op reported as false.
	if o.Cancel(context.Background(), row.AgentID) {
		t.Fatalf("second Cancel returned true")
	}
}

func TestCancelCompletedAgentReturnsFalse(t *testing.T) {
	t.Parallel()
	o, st := newTestOrchestrator(t)
	sess := mustSession(t, st)

	row, err := o.Spawn(context.Background(), sess, TaskSpec{Objective: "quick"}, func(ctx context.Context) (string, error) {
		return "done", nil
	})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	waitDone(t, o, row.AgentID)

	if o.Cancel(context.Background(), row.AgentID) {
		t.Fatalf("Cancel returned true for a completed agent")
	}
	got, _ := st.GetSubAgent(context.Background(), sess.SessionID, row.AgentID)
	if got.Status != StatusCompleted {
		t.Fatalf("status=%q, want completed to be preserved", got.Status)
	}
}

func TestCancelUnknownAgentReturnsFalse(t *testing.T) {
	t.Parallel()
	o, _ := newTestOrchestrator(t)
	if o.Cancel(context.Background(), "agent_missing") {
		t.Fatalf("Cancel returned true for an unknown agent")
	}
}

func TestLateCompletionAfterCancelStaysCancelled(t *testing.T) {
	t.Parallel()
	o, st := newTestOrchestrator(t)
	sess := mustSession(t, st)

	release := make(chan struct{})
	started := make(chan struct{})
	row, err := o.Spawn(context.Background(), sess, TaskSpec{Objective: "slow finisher"}, func(ctx context.Context) (string, error) {
		close(started)
		// Ignore cancellation and complete anyway, after the cancel commits.
		<-release
		return "too late", nil
	})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	<-started

	if !o.Cancel(context.Background(), row.AgentID) {
		t.Fatalf("Cancel returned false")
	}
	close(release)
	waitDone(t, o, row.AgentID)

	got, err := st.GetSubAgent(context.Background(), sess.SessionID, row.AgentID)
	if err != nil {
		t.Fatalf("GetSubAgent: %v", err)
	}
	if got.Status != StatusCancelled {
		t.Fatalf("status=%q, want cancelled to win over late completion", got.Status)
	}
	if got.Result != "" {
		t.Fatalf("late result %q was recorded over a cancelled agent", got.Result)
	}
}

func TestRunErrorRecordsErrorStatus(t *testing.T) {
	t.Parallel()
	o, st := newTestOrchestrator(t)
	sess := mustSession(t, st)

	row, err := o.Spawn(context.Background(), sess, TaskSpec{Objective: "doomed"}, func(ctx context.Context) (string, error) {
		return "", errors.New("tool exploded")
	})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	waitDone(t, o, row.AgentID)

	got, _ := st.GetSubAgent(context.Background(), sess.SessionID, row.AgentID)
	if got.Status != StatusError || got.ErrorMsg != "tool exploded" {
		t.Fatalf("row=%+v, want error/tool exploded", got)
	}
}

func TestTimeoutRecordsError(t *testing.T) {
	t.Parallel()
	o, st := newTestOrchestrator(t)
	sess := mustSession(t, st)

	row, err := o.Spawn(context.Background(), sess, TaskSpec{Objective: "stuck", Timeout: 20 * time.Millisecond}, func(ctx context.Context) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	waitDone(t, o, row.AgentID)

	got, _ := st.GetSubAgent(context.Background(), sess.SessionID, row.AgentID)
	if got.Status != StatusError || got.ErrorMsg != "sub-agent timed out" {
		t.Fatalf("row=%+v, want timed-out error", got)
	}
}
