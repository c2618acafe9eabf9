package rendezvous

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"
)

var (
	// ErrTimeout is delivered to a waiter whose question was not answered
	// within the per-registration timeout.
	ErrTimeout = errors.New("question timed out awaiting an answer")
	// ErrExpired is delivered to a waiter whose record was removed by the
	// periodic sweep or by registry shutdown.
	ErrExpired = errors.New("question expired before it was answered")
	// ErrDuplicateID rejects a second registration under an id that still has
	// a live waiter. Overwriting would silently orphan the first waiter.
	ErrDuplicateID = errors.New("question id already registered")
	// ErrClosed rejects registrations after Close.
	ErrClosed = errors.New("question registry closed")
)

// Question is the payload shown to the human while an execution context is
// blocked on their answer.
type Question struct {
	Prompt string `json:"prompt"`
	// Options, when present, constrain the expected answer to a choice.
	Options []string `json:"options,omitempty"`
	// Expected maps answer field names to short hints about their shape.
	Expected map[string]string `json:"expected,omitempty"`

	AskedAtUnixMs int64 `json:"asked_at_unix_ms"`
}

type outcome struct {
	answers map[string]any
	err     error
}

type pending struct {
	id        string
	question  Question
	createdAt time.Time
	timer     *time.Timer
	// ch is buffered so the resolving/expiring side never blocks on a waiter
	// that has already given up.
	ch chan outcome
}

type Options struct {
	Logger *slog.Logger

	// Timeout is the per-registration wait budget. Zero means 5 minutes.
	Timeout time.Duration
	// MaxAge is the sweep-based upper bound on a record's lifetime.
	// Zero means 10 minutes.
	MaxAge time.Duration
	// SweepInterval is the pause between sweep passes. Zero means 5 minutes.
	SweepInterval time.Duration
}

const (
	defaultTimeout       = 5 * time.Minute
	defaultMaxAge        = 10 * time.Minute
	defaultSweepInterval = 5 * time.Minute
)

// Registry is the process-wide rendezvous between the execution context that
// asks a question and the later, unrelated request that answers it.
//
// Every registration reaches exactly one of three outcomes: answered,
// ErrTimeout, or ErrExpired. The record is removed from the map atomically
// with choosing the outcome, so concurrent Resolve calls, the per-record
// timer, and the sweep can never double-deliver.
type Registry struct {
	log *slog.Logger

	timeout       time.Duration
	maxAge        time.Duration
	sweepInterval time.Duration

	mu      sync.Mutex
	pending map[string]*pending
	closed  bool

	stopCh chan struct{}
	doneCh chan struct{}
}

func New(opts Options) *Registry {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		log:           logger,
		timeout:       opts.Timeout,
		maxAge:        opts.MaxAge,
		sweepInterval: opts.SweepInterval,
		pending:       map[string]*pending{},
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
	}
	if r.timeout <= 0 {
		r.timeout = defaultTimeout
	}
	if r.maxAge <= 0 {
		r.maxAge = defaultMaxAge
	}
	if r.sweepInterval <= 0 {
		r.sweepInterval = defaultSweepInterval
	}
	go r.sweepLoop()
	return r
}

// Waiter is the suspended side of a registration. It is consumed by a single
// Await call.
type Waiter struct {
	id string
	r  *Registry
	ch <-chan outcome
}

// Register stores a pending record under the caller-supplied id and returns
// the handle the asking context blocks on. Reusing an id with a live waiter
// is rejected rather than silently overwriting it.
func (r *Registry) Register(questionID string, q Question) (*Waiter, error) {
	if r == nil {
		return nil, errors.New("nil registry")
	}
	questionID = strings.TrimSpace(questionID)
	if questionID == "" {
		return nil, errors.New("missing question id")
	}
	if strings.TrimSpace(q.Prompt) == "" {
		return nil, errors.New("missing question prompt")
	}
	if q.AskedAtUnixMs == 0 {
		q.AskedAtUnixMs = time.Now().UnixMilli()
	}

	p := &pending{
		id:        questionID,
		question:  q,
		createdAt: time.Now(),
		ch:        make(chan outcome, 1),
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrClosed
	}
	if _, exists := r.pending[questionID]; exists {
		r.mu.Unlock()
		return nil, ErrDuplicateID
	}
	r.pending[questionID] = p
	p.timer = time.AfterFunc(r.timeout, func() { r.fail(questionID, ErrTimeout) })
	r.mu.Unlock()

	r.log.Debug("question registered", "question_id", questionID)
	return &Waiter{id: questionID, r: r, ch: p.ch}, nil
}

// Resolve delivers an answer to the waiter registered under the id. It
// reports false when no live record exists (never registered, already
// answered, timed out, or swept) — the sole signal that the answer arrived
// too late. It never errors.
func (r *Registry) Resolve(questionID string, answers map[string]any) bool {
	if r == nil {
		return false
	}
	p := r.take(questionID)
	if p == nil {
		return false
	}
	if answers == nil {
		answers = map[string]any{}
	}
	p.ch <- outcome{answers: answers}
	r.log.Debug("question resolved", "question_id", p.id)
	return true
}

// Peek returns the question payload for display without consuming or
// otherwise affecting the record.
func (r *Registry) Peek(questionID string) (Question, bool) {
	if r == nil {
		return Question{}, false
	}
	questionID = strings.TrimSpace(questionID)
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pending[questionID]
	if !ok {
		return Question{}, false
	}
	q := p.question
	if len(p.question.Options) > 0 {
		q.Options = append([]string(nil), p.question.Options...)
	}
	if len(p.question.Expected) > 0 {
		q.Expected = make(map[string]string, len(p.question.Expected))
		for k, v := range p.question.Expected {
			q.Expected[k] = v
		}
	}
	return q, true
}

// Len reports the number of live pending questions.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Close stops the sweep loop and fails every remaining waiter with
// ErrExpired. Registrations after Close are rejected.
func (r *Registry) Close() {
	if r == nil {
		return
	}
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	ids := make([]string, 0, len(r.pending))
	for id := range r.pending {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	close(r.stopCh)
	<-r.doneCh
	for _, id := range ids {
		r.fail(id, ErrExpired)
	}
}

// take removes and returns the pending record, stopping its timer. Returning
// nil means some other path already chose the record's outcome.
func (r *Registry) take(questionID string) *pending {
	questionID = strings.TrimSpace(questionID)
	if questionID == "" {
		return nil
	}
	r.mu.Lock()
	p, ok := r.pending[questionID]
	if ok {
		delete(r.pending, questionID)
	}
	r.mu.Unlock()
	if !ok {
		return nil
	}
	if p.timer != nil {
		p.timer.Stop()
	}
	return p
}

func (r *Registry) fail(questionID string, cause error) {
	p := r.take(questionID)
	if p == nil {
		return
	}
	p.ch <- outcome{err: cause}
	r.log.Debug("question failed", "question_id", p.id, "cause", cause)
}

func (r *Registry) sweepLoop() {
	defer close(r.doneCh)
	ticker := time.NewTicker(r.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.sweep()
		}
	}
}

// sweep removes records older than MaxAge whose own timer has not fired.
// It is a coarser backstop against clock/scheduler drift; each record's
// timeout normally wins.
func (r *Registry) sweep() {
	cutoff := time.Now().Add(-r.maxAge)
	r.mu.Lock()
	stale := make([]string, 0)
	for id, p := range r.pending {
		if p.createdAt.Before(cutoff) {
			stale = append(stale, id)
		}
	}
	r.mu.Unlock()
	for _, id := range stale {
		r.fail(id, ErrExpired)
	}
	if len(stale) > 0 {
		r.log.Info("swept expired questions", "count", len(stale))
	}
}

// Await suspends until the question is answered, times out, expires, or the
// context is done. It must be called at most once per Waiter.
func (w *Waiter) Await(ctx context.Context) (map[string]any, error) {
	if w == nil {
		return nil, errors.New("nil waiter")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case o := <-w.ch:
		return o.answers, o.err
	case <-ctx.Done():
	}
	// The caller gave up; release the slot. If the record is already gone an
	// outcome has been (or is about to be) delivered — prefer it over the
	// context error, since the answer was committed first.
	if p := w.r.take(w.id); p == nil {
		o := <-w.ch
		return o.answers, o.err
	}
	return nil, ctx.Err()
}

// ID returns the question id this waiter is registered under.
func (w *Waiter) ID() string {
	if w == nil {
		return ""
	}
	return w.id
}
