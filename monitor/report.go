package monitor

import "fmt"

// Trend compares two reports taken at different times, grounded on the
// teacher's printComprehensiveStats summary idiom
// (iperfex-team-burrowctl/server/monitoring.go), generalized into a
// structured comparison rather than a direct stdout print.
type Trend struct {
	ErrorRateDelta float64
	P95Delta       int64 // nanoseconds
	SampleDelta    int
}

// CompareReports returns how report b differs from an earlier report a.
func CompareReports(a, b Report) Trend {
	return Trend{
		ErrorRateDelta: b.ErrorRate - a.ErrorRate,
		P95Delta:       int64(b.P95 - a.P95),
		SampleDelta:    b.SampleCount - a.SampleCount,
	}
}

// Format renders a report as a short human-readable summary line, mirroring
// the density (not the emoji/box-drawing style) of the teacher's periodic
// report print.
func (r Report) Format() string {
	if r.SampleCount == 0 {
		return "monitor: no samples in window"
	}
	return fmt.Sprintf(
		"monitor: samples=%d errors=%d (%.2f%%) slow=%d security=%d p50=%s p95=%s p99=%s",
		r.SampleCount, r.ErrorCount, r.ErrorRate*100, r.SlowCount, r.SecurityCount, r.P50, r.P95, r.P99,
	)
}
