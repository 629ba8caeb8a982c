package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/graphkit/cyphercoord/config"
)

func testConfig() config.MonitorConfig {
	return config.MonitorConfig{
		WindowSize:             time.Hour,
		SlowQueryThreshold:     100 * time.Millisecond,
		ResponseTimeThreshold:  200 * time.Millisecond,
		ErrorRateThreshold:     0.5,
		SecuritySurgeThreshold: 2,
		CleanupInterval:        10 * time.Millisecond,
	}
}

func TestReportComputesErrorRateAndPercentiles(t *testing.T) {
	m := New(testConfig())
	now := time.Now()
	for i, d := range []time.Duration{10 * time.Millisecond, 50 * time.Millisecond, 300 * time.Millisecond} {
		m.Record(Sample{QueryID: "q", Timestamp: now, Duration: d, Err: i == 2})
	}

	report := m.Report()
	if report.SampleCount != 3 {
		t.Fatalf("expected 3 samples, got %d", report.SampleCount)
	}
	if report.ErrorCount != 1 {
		t.Fatalf("expected 1 error, got %d", report.ErrorCount)
	}
	if report.SlowCount != 1 {
		t.Fatalf("expected 1 slow sample, got %d", report.SlowCount)
	}
	if report.P99 != 300*time.Millisecond {
		t.Fatalf("expected p99 to be the slowest sample, got %v", report.P99)
	}
}

func TestEvictsSamplesOutsideWindow(t *testing.T) {
	cfg := testConfig()
	cfg.WindowSize = 10 * time.Millisecond
	m := New(cfg)

	m.Record(Sample{Timestamp: time.Now().Add(-time.Hour), Duration: time.Millisecond})
	time.Sleep(20 * time.Millisecond)
	m.Record(Sample{Timestamp: time.Now(), Duration: time.Millisecond})

	report := m.Report()
	if report.SampleCount != 1 {
		t.Fatalf("expected the stale sample to be evicted, got %d samples", report.SampleCount)
	}
}

func TestEvaluateAlertsTriggersHighErrorRate(t *testing.T) {
	cfg := testConfig()
	report := Report{SampleCount: 10, ErrorCount: 8, ErrorRate: 0.8}
	alerts := evaluateAlerts(cfg, report)
	found := false
	for _, a := range alerts {
		if a.Condition == ConditionHighErrorRate {
			found = true
		}
	}
	if !found {
		t.Fatal("expected a high_error_rate alert")
	}
}

func TestEvaluateAlertsTriggersSecuritySurge(t *testing.T) {
	cfg := testConfig()
	report := Report{SampleCount: 10, SecurityCount: 5}
	alerts := evaluateAlerts(cfg, report)
	found := false
	for _, a := range alerts {
		if a.Condition == ConditionSecurityThreatSurge {
			found = true
		}
	}
	if !found {
		t.Fatal("expected a security_threat_surge alert")
	}
}

func TestMonitorStartFiresAlertHandler(t *testing.T) {
	cfg := testConfig()
	cfg.CleanupInterval = 5 * time.Millisecond
	cfg.ErrorRateThreshold = 0
	m := New(cfg)
	m.Record(Sample{Timestamp: time.Now(), Duration: time.Millisecond, Err: true})

	alerts := make(chan Alert, 4)
	m.OnAlert(func(a Alert) { alerts <- a })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)
	defer m.Stop()

	select {
	case <-alerts:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("expected an alert to fire")
	}
}

func TestCompareReportsComputesDeltas(t *testing.T) {
	a := Report{ErrorRate: 0.1, P95: 10 * time.Millisecond, SampleCount: 5}
	b := Report{ErrorRate: 0.3, P95: 20 * time.Millisecond, SampleCount: 8}
	trend := CompareReports(a, b)
	if trend.SampleDelta != 3 {
		t.Fatalf("expected sample delta of 3, got %d", trend.SampleDelta)
	}
	if trend.ErrorRateDelta <= 0 {
		t.Fatalf("expected a positive error rate delta, got %v", trend.ErrorRateDelta)
	}
}
