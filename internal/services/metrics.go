package services

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeSent    = "sent"
	outcomeFailed  = "failed"
	outcomeSkipped = "skipped"
)

// ScanMetrics exposes reminder scan counters. A nil *ScanMetrics is valid and records nothing.
type ScanMetrics struct {
	Notifications *prometheus.CounterVec
	Scans         *prometheus.CounterVec
	ScanDuration  *prometheus.HistogramVec
	LastSuccess   prometheus.Gauge
}

func NewScanMetrics(reg prometheus.Registerer) *ScanMetrics {
	factory := promauto.With(reg)

	return &ScanMetrics{
		Notifications: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eventease",
			Name:      "reminder_notifications_total",
			Help:      "Reminder deliveries by milestone and outcome",
		}, []string{"milestone", "outcome"}),
		Scans: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eventease",
			Name:      "reminder_scans_total",
			Help:      "Milestone scans by result",
		}, []string{"milestone", "result"}),
		ScanDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "eventease",
			Name:      "reminder_scan_duration_seconds",
			Help:      "Time spent scanning one milestone",
			Buckets:   prometheus.DefBuckets,
		}, []string{"milestone"}),
		LastSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "eventease",
			Name:      "reminder_scan_last_success_timestamp_seconds",
			Help:      "Unix time of the last scan that completed without errors",
		}),
	}
}

func (m *ScanMetrics) observeResult(result ScanResult, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	label := result.Milestone.String()

	m.Notifications.WithLabelValues(label, outcomeSent).Add(float64(result.Sent))
	m.Notifications.WithLabelValues(label, outcomeFailed).Add(float64(result.Failed))
	m.Notifications.WithLabelValues(label, outcomeSkipped).Add(float64(result.Skipped))
	m.ScanDuration.WithLabelValues(label).Observe(elapsed.Seconds())

	if err != nil {
		m.Scans.WithLabelValues(label, "error").Inc()
		return
	}
	m.Scans.WithLabelValues(label, "ok").Inc()
}

func (m *ScanMetrics) markSuccess(at time.Time) {
	if m == nil {
		return
	}
	m.LastSuccess.Set(float64(at.Unix()))
}
