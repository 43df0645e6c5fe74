// Package metrics provides Prometheus metrics for the battery monitor.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Evaluations counts evaluations by what triggered them.
var Evaluations = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "battrem",
	Name:      "evaluations_total",
	Help:      "Total battery evaluations.",
}, []string{"trigger"})

// Decisions counts evaluation outcomes.
var Decisions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "battrem",
	Name:      "decisions_total",
	Help:      "Total reminder decisions by kind.",
}, []string{"decision"})

// RemindersScheduled counts reminders handed to the notifier.
var RemindersScheduled = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "battrem",
	Name:      "reminders_scheduled_total",
	Help:      "Total reminders scheduled.",
}, []string{"kind"})

// Errors counts failed operations.
var Errors = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "battrem",
	Name:      "errors_total",
	Help:      "Total errors by operation.",
}, []string{"op"})

// BatteryPercent is the last read charge.
var BatteryPercent = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "battrem",
	Name:      "battery_percent",
	Help:      "Last read battery charge percentage.",
})

// BatteryCharging is 1 while charging.
var BatteryCharging = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "battrem",
	Name:      "battery_charging",
	Help:      "1 if the battery was charging at the last read.",
})

// ReminderActive is 1 while a reminder is scheduled.
var ReminderActive = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "battrem",
	Name:      "reminder_active",
	Help:      "1 if a battery reminder is scheduled.",
})

// BoolToFloat converts b for gauges.
func BoolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
