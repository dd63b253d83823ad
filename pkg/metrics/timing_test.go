package metrics

import (
	"sync"
	"testing"
	"time"
)

func TestRecordTracksMinMaxAvg(t *testing.T) {
	m := newTimingMetric("test")
	m.Record(2 * time.Millisecond)
	m.Record(4 * time.Millisecond)
	m.Record(6 * time.Millisecond)

	s := m.Stats()
	if s.Count != 3 {
		t.Fatalf("count = %d, want 3", s.Count)
	}
	if s.MinMs != 2 || s.MaxMs != 6 || s.AvgMs != 4 {
		t.Errorf("min/max/avg = %v/%v/%v, want 2/6/4", s.MinMs, s.MaxMs, s.AvgMs)
	}
}

func TestDisabledRecordsNothing(t *testing.T) {
	SetEnabled(false)
	defer SetEnabled(true)

	m := newTimingMetric("off")
	Timer(m)()
	m.Record(time.Second)
	if m.Count() != 0 {
		t.Errorf("count = %d with metrics disabled", m.Count())
	}
}

func TestConcurrentRecord(t *testing.T) {
	SetEnabled(true)
	m := newTimingMetric("concurrent")
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Record(time.Microsecond)
		}()
	}
	wg.Wait()
	if m.Count() != 50 {
		t.Errorf("count = %d, want 50", m.Count())
	}
}

func TestAllTimingStatsSkipsEmpty(t *testing.T) {
	SetEnabled(true)
	ResetAll()
	defer ResetAll()

	LayoutCompute.Record(time.Millisecond)
	stats := AllTimingStats()
	if len(stats) != 1 || stats[0].Name != "layout_compute" {
		t.Fatalf("stats = %+v, want only layout_compute", stats)
	}
}

func TestTimerWithCallback(t *testing.T) {
	SetEnabled(true)
	m := newTimingMetric("cb")
	var got time.Duration
	TimerWithCallback(m, func(d time.Duration) { got = d })()
	if m.Count() != 1 {
		t.Errorf("count = %d, want 1", m.Count())
	}
	if got < 0 {
		t.Errorf("callback duration = %v", got)
	}
}
