package monitor

import (
	"sync"
	"time"
)

// speedTracker turns cumulative network byte counters into average
// per-second rates over a sliding window.
type speedTracker struct {
	mu      sync.Mutex
	window  time.Duration
	samples []netSample
}

// netSample is one counter reading; samples are kept newest-last and pruned
// to the window.
type netSample struct {
	recv uint64
	sent uint64
	at   time.Time
}

func newSpeedTracker(window time.Duration) *speedTracker {
	if window <= 0 {
		window = networkSpeedWindow
	}
	return &speedTracker{window: window}
}

func (t *speedTracker) observe(recv, sent uint64, at time.Time) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.samples = append(t.samples, netSample{recv: recv, sent: sent, at: at})
	t.pruneLocked(at)
}

// rates averages the delta between the oldest and newest retained samples.
// Fewer than two samples in the window means no rate yet.
func (t *speedTracker) rates(now time.Time) (recvPerSec, sentPerSec float64) {
	if t == nil {
		return 0, 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pruneLocked(now)
	if len(t.samples) < 2 {
		return 0, 0
	}
	oldest := t.samples[0]
	newest := t.samples[len(t.samples)-1]
	dt := newest.at.Sub(oldest.at).Seconds()
	if dt <= 0 {
		return 0, 0
	}
	// Counters went backwards (interface reset); report nothing until the
	// window refills.
	if newest.recv < oldest.recv || newest.sent < oldest.sent {
		return 0, 0
	}
	recvPerSec = float64(newest.recv-oldest.recv) / dt
	sentPerSec = float64(newest.sent-oldest.sent) / dt
	return recvPerSec, sentPerSec
}

func (t *speedTracker) pruneLocked(now time.Time) {
	cutoff := now.Add(-t.window)
	drop := 0
	for drop < len(t.samples) && t.samples[drop].at.Before(cutoff) {
		drop++
	}
	if drop > 0 {
		t.samples = t.samples[drop:]
	}
}
