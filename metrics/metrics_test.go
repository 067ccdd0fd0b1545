package metrics

import (
	"testing"
	"time"

	"github.com/go-kit/kit/metrics"
	"github.com/google/go-cmp/cmp"
)

type recordingHistogram struct {
	observed []float64
}

func (h *recordingHistogram) With(labelValues ...string) metrics.Histogram { return h }
func (h *recordingHistogram) Observe(value float64)                        { h.observed = append(h.observed, value) }

func Test_measureSince(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		t1   time.Time
		want float64
	}{
		{name: "1.5 seconds", t1: t0.Add(1500 * time.Millisecond), want: 1500},
		{name: "clock went backwards", t1: t0.Add(-time.Second), want: 0},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			h := &recordingHistogram{}
			measureSince(h, t0, c.t1, float64(defaultTimingUnit))
			if diff := cmp.Diff([]float64{c.want}, h.observed); diff != "" {
				t.Fatal(diff)
			}
		})
	}
}

func TestMeasureSince(t *testing.T) {
	h := &recordingHistogram{}
	MeasureSince(h, time.Now().Add(-time.Second))
	if len(h.observed) != 1 || h.observed[0] < 1000 {
		t.Fatalf("want one observation of at least 1000ms, got %v", h.observed)
	}
}

type recordingGauge struct {
	value float64
}

func (g *recordingGauge) With(labelValues ...string) metrics.Gauge { return g }
func (g *recordingGauge) Set(value float64)                        { g.value = value }
func (g *recordingGauge) Add(delta float64)                        { g.value += delta }

type recordingCounter struct {
	value float64
}

func (c *recordingCounter) With(labelValues ...string) metrics.Counter { return c }
func (c *recordingCounter) Add(delta float64)                          { c.value += delta }

func TestConnection_Track(t *testing.T) {
	total := &recordingCounter{}
	active := &recordingGauge{}
	duration := &recordingHistogram{}
	c := Connection{Total: total, Active: active, Duration: duration}

	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := t0
	now := func() time.Time { return clock }

	closeFirst := c.track(now)
	closeSecond := c.track(now)
	if total.value != 2 || active.value != 2 {
		t.Fatalf("want 2 opened and 2 active, got %v and %v", total.value, active.value)
	}

	clock = t0.Add(250 * time.Millisecond)
	closeFirst()
	clock = t0.Add(time.Second)
	closeSecond()

	if active.value != 0 {
		t.Fatalf("want no active connections, got %v", active.value)
	}
	if total.value != 2 {
		t.Fatalf("closing must not change the total, got %v", total.value)
	}
	if diff := cmp.Diff([]float64{250, 1000}, duration.observed); diff != "" {
		t.Fatal(diff)
	}
}
