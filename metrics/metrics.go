package metrics

import (
	"time"

	"github.com/go-kit/kit/metrics"
)

const defaultTimingUnit = time.Millisecond

// MeasureSince observes the milliseconds elapsed since t0 on h.
func MeasureSince(h metrics.Histogram, t0 time.Time) {
	measureSince(h, t0, time.Now(), float64(defaultTimingUnit))
}

func measureSince(h metrics.Histogram, t0, t1 time.Time, unit float64) {
	d := t1.Sub(t0)
	if d < 0 {
		d = 0
	}
	h.Observe(float64(d) / unit)
}

// Connection holds the instruments that follow a connection from upgrade to
// close.
type Connection struct {
	Total    metrics.Counter
	Active   metrics.Gauge
	Duration metrics.Histogram
}

// Track counts a connection as opened and returns the func that marks it
// closed. Typical use is deferred right after the upgrade:
//
//	defer inst.conn.Track()()
func (c Connection) Track() func() {
	return c.track(time.Now)
}

func (c Connection) track(now func() time.Time) func() {
	t0 := now()
	c.Total.Add(1)
	c.Active.Add(1)

	return func() {
		c.Active.Add(-1)
		measureSince(c.Duration, t0, now(), float64(defaultTimingUnit))
	}
}
