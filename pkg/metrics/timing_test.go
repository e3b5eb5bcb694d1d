package metrics

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestTimingMetric_Record(t *testing.T) {
	SetEnabled(true)
	m := newTimingMetric("test")

	m.Record(2 * time.Millisecond)
	m.Record(4 * time.Millisecond)
	m.Record(6 * time.Millisecond)

	s := m.Stats()
	if s.Count != 3 {
		t.Errorf("count = %d, want 3", s.Count)
	}
	if s.MinMs != 2 || s.MaxMs != 6 || s.AvgMs != 4 {
		t.Errorf("unexpected stats %+v", s)
	}

	m.Reset()
	if m.Count() != 0 {
		t.Errorf("count after reset = %d", m.Count())
	}
}

func TestTimingMetric_ConcurrentRecord(t *testing.T) {
	SetEnabled(true)
	m := newTimingMetric("concurrent")

	var wg sync.WaitGroup
	for i := 1; i <= 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m.Record(time.Duration(i) * time.Microsecond)
		}(i)
	}
	wg.Wait()

	s := m.Stats()
	if s.Count != 50 {
		t.Errorf("count = %d, want 50", s.Count)
	}
	if s.MinMs != 0.001 || s.MaxMs != 0.05 {
		t.Errorf("min/max = %v/%v", s.MinMs, s.MaxMs)
	}
}

func TestDisabledMetricsRecordNothing(t *testing.T) {
	SetEnabled(false)
	defer SetEnabled(true)

	m := newTimingMetric("off")
	Timer(m)()
	m.Record(time.Millisecond)
	if m.Count() != 0 {
		t.Errorf("expected no data while disabled, got %d", m.Count())
	}
}

func TestWriteSummary(t *testing.T) {
	SetEnabled(true)
	ResetAll()
	defer ResetAll()

	var buf bytes.Buffer
	if err := WriteSummary(&buf); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "no metrics recorded") {
		t.Errorf("unexpected empty summary %q", buf.String())
	}

	GatewayAnalyze.Record(3 * time.Millisecond)
	buf.Reset()
	if err := WriteSummary(&buf); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "gateway_analyze") {
		t.Errorf("summary missing metric: %q", buf.String())
	}
}
