package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LogsSaved counts reconciled attendance logs by session and outcome (created|replaced).
	LogsSaved = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rollcall",
		Name:      "attendance_logs_saved_total",
		Help:      "Attendance logs written through the reconciler.",
	}, []string{"session", "outcome"})

	// SubmissionsRejected counts submissions refused before any write.
	SubmissionsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rollcall",
		Name:      "attendance_submissions_rejected_total",
		Help:      "Attendance submissions rejected by validation or session lock.",
	}, []string{"reason"})

	// Incidents counts disciplinary transitions (reported|escalated).
	Incidents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rollcall",
		Name:      "incidents_total",
		Help:      "Disciplinary records created or escalated.",
	}, []string{"event"})

	// PINAttempts counts PIN gate checks by area and result.
	PINAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rollcall",
		Name:      "pin_attempts_total",
		Help:      "PIN gate attempts.",
	}, []string{"area", "result"})

	// Summaries counts generated leadership summaries by source (model|calm|empty|fallback).
	Summaries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rollcall",
		Name:      "summaries_total",
		Help:      "Leadership summaries produced.",
	}, []string{"source"})
)
