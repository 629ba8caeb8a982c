package monitor

import (
	"time"

	"github.com/graphkit/cyphercoord/config"
)

// AlertCondition names one of the three alert conditions spec §4.5 names.
type AlertCondition string

const (
	ConditionHighErrorRate       AlertCondition = "high_error_rate"
	ConditionSlowResponse        AlertCondition = "slow_response"
	ConditionSecurityThreatSurge AlertCondition = "security_threat_surge"
)

// Alert is a single triggered condition, carrying the measurement that
// tripped it.
type Alert struct {
	Condition  AlertCondition
	Message    string
	Value      float64
	Threshold  float64
	DetectedAt time.Time
}

// AlertHandler receives triggered alerts.
type AlertHandler func(Alert)

// evaluateAlerts checks report against cfg's thresholds and returns every
// condition currently triggered.
func evaluateAlerts(cfg config.MonitorConfig, report Report) []Alert {
	if report.SampleCount == 0 {
		return nil
	}
	now := time.Now()
	var alerts []Alert

	if report.ErrorRate > cfg.ErrorRateThreshold {
		alerts = append(alerts, Alert{
			Condition:  ConditionHighErrorRate,
			Message:    "error rate exceeds configured threshold",
			Value:      report.ErrorRate,
			Threshold:  cfg.ErrorRateThreshold,
			DetectedAt: now,
		})
	}

	if report.P95 > cfg.ResponseTimeThreshold {
		alerts = append(alerts, Alert{
			Condition:  ConditionSlowResponse,
			Message:    "p95 response time exceeds configured threshold",
			Value:      float64(report.P95),
			Threshold:  float64(cfg.ResponseTimeThreshold),
			DetectedAt: now,
		})
	}

	if report.SecurityCount > cfg.SecuritySurgeThreshold {
		alerts = append(alerts, Alert{
			Condition:  ConditionSecurityThreatSurge,
			Message:    "security-risk query count exceeds configured threshold within the window",
			Value:      float64(report.SecurityCount),
			Threshold:  float64(cfg.SecuritySurgeThreshold),
			DetectedAt: now,
		})
	}

	return alerts
}
