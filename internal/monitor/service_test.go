package monitor

import (
	"context"
	"testing"
	"time"
)

func Test_speedTracker_windowedAverage(t *testing.T) {
	tr := newSpeedTracker(6 * time.Second)
	now := time.Now()

	// A sample that fell out of the window must not skew the rate.
	tr.observe(0, 0, now.Add(-10*time.Second))

	// +200 bytes over 2s => 100 B/s each way.
	tr.observe(1000, 500, now.Add(-2*time.Second))
	tr.observe(1200, 700, now)

	recv, sent := tr.rates(now)
	if recv < 99 || recv > 101 {
		t.Fatalf("recv rate = %v, want ~= 100", recv)
	}
	if sent < 99 || sent > 101 {
		t.Fatalf("sent rate = %v, want ~= 100", sent)
	}

	// Repeated reads are stable.
	recv2, sent2 := tr.rates(now)
	if recv2 != recv || sent2 != sent {
		t.Fatalf("rate changed unexpectedly: got (%v,%v) want (%v,%v)", recv2, sent2, recv, sent)
	}
}

func Test_speedTracker_singleSampleAndReset(t *testing.T) {
	now := time.Now()

	tr := newSpeedTracker(6 * time.Second)
	tr.observe(1000, 1000, now)
	if recv, sent := tr.rates(now); recv != 0 || sent != 0 {
		t.Fatalf("one sample yielded rates (%v,%v), want zero", recv, sent)
	}

	// Counters going backwards (interface reset) yield no rate.
	tr2 := newSpeedTracker(6 * time.Second)
	tr2.observe(5000, 5000, now.Add(-1*time.Second))
	tr2.observe(100, 100, now)
	if recv, sent := tr2.rates(now); recv != 0 || sent != 0 {
		t.Fatalf("reset counters yielded rates (%v,%v), want zero", recv, sent)
	}
}

func Test_Status_cachesWithinTTL(t *testing.T) {
	s := NewService(nil)

	first := s.Status(context.Background())
	second := s.Status(context.Background())
	if first.TimestampMs != second.TimestampMs {
		t.Fatalf("snapshot was re-collected within the cache TTL")
	}
	if first.Platform == "" {
		t.Fatalf("platform missing from snapshot")
	}
	if first.Goroutines <= 0 {
		t.Fatalf("goroutines = %d, want > 0", first.Goroutines)
	}
}
