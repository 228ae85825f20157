// Package sysclock implements adapt.Clock over the process's monotonic
// clock, the concrete backing for thermit's keepalive timeout (spec.md
// §3 keepAliveMs, §5/§6 sysGetMs).
package sysclock

import "time"

// Clock reports milliseconds elapsed since it was constructed. Go's
// time.Time retains a monotonic reading internally, so time.Since stays
// correct across wall-clock adjustments (NTP steps, DST, ...).
type Clock struct {
	start time.Time
}

// New returns a Clock whose epoch is the call time.
func New() *Clock {
	return &Clock{start: time.Now()}
}

// NowMs returns milliseconds elapsed since New was called.
func (c *Clock) NowMs() uint64 {
	return uint64(time.Since(c.start).Milliseconds())
}
