// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-passkeygate.
//
// go-passkeygate is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package metrics provides Prometheus instrumentation for passkeygate.
// It exposes ceremony outcomes, invitation events, HTTP request metrics,
// store health gauges and process resource gauges.
package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Namespace is the Prometheus namespace for all passkeygate metrics
	Namespace = "passkeygate"

	// Label names
	LabelCeremony   = "ceremony"
	LabelOutcome    = "outcome"
	LabelEvent      = "event"
	LabelStore      = "store"
	LabelMethod     = "method"
	LabelRoute      = "route"
	LabelStatusCode = "status_code"

	// Ceremony names
	CeremonyRegistration   = "registration"
	CeremonyAuthentication = "authentication"

	// Outcomes
	OutcomeSuccess           = "success"
	OutcomeRetry             = "retry"
	OutcomeInvalidInput      = "invalid_input"
	OutcomeChallenge         = "challenge_missing"
	OutcomeInvitationInvalid = "invitation_invalid"
	OutcomeVerification      = "verification_failed"
	OutcomeUnknownCredential = "unknown_credential"
	OutcomeCloneSuspected    = "clone_suspected"
	OutcomeError             = "error"

	// Invitation events
	EventValidated = "validated"
	EventRejected  = "rejected"
	EventIssued    = "issued"
	EventCreated   = "created"
)

var (
	// CeremoniesTotal counts completed ceremonies by kind and outcome.
	CeremoniesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "ceremonies_total",
			Help:      "Total number of passkey ceremonies by kind and outcome",
		},
		[]string{LabelCeremony, LabelOutcome},
	)

	// CeremonyDuration tracks server-side ceremony latency.
	CeremonyDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "ceremony_duration_seconds",
			Help:      "Duration of passkey ceremonies in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{LabelCeremony},
	)

	// InvitationEventsTotal counts invitation lifecycle events.
	InvitationEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "invitation_events_total",
			Help:      "Total number of invitation events by type",
		},
		[]string{LabelEvent},
	)

	// HTTPRequestsTotal counts HTTP requests by method, route pattern and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method, route and status code",
		},
		[]string{LabelMethod, LabelRoute, LabelStatusCode},
	)

	// HTTPRequestDuration tracks HTTP request latency.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{LabelMethod, LabelRoute},
	)

	// HTTPInFlight is the number of requests being served.
	HTTPInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of HTTP requests currently being served",
		},
	)

	// StoreHealthy is 1 when the named backing store answered its last ping.
	StoreHealthy = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "store_healthy",
			Help:      "Health of backing stores (1 = healthy, 0 = unhealthy)",
		},
		[]string{LabelStore},
	)

	// Goroutines tracks the number of goroutines.
	Goroutines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "goroutines",
			Help:      "Number of goroutines",
		},
	)

	// MemoryAllocBytes tracks heap bytes in use.
	MemoryAllocBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "memory_alloc_bytes",
			Help:      "Bytes of allocated heap objects",
		},
	)

	// ServerUptime tracks seconds since the resource collector started.
	ServerUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "server_uptime_seconds",
			Help:      "Server uptime in seconds",
		},
	)
)

var enabled atomic.Bool

func init() {
	enabled.Store(true)
}

// RecordCeremony records the outcome and duration of a ceremony.
func RecordCeremony(ceremony, outcome string, duration float64) {
	if !enabled.Load() {
		return
	}
	CeremoniesTotal.WithLabelValues(ceremony, outcome).Inc()
	CeremonyDuration.WithLabelValues(ceremony).Observe(duration)
}

// RecordInvitationEvent counts an invitation lifecycle event.
func RecordInvitationEvent(event string) {
	if !enabled.Load() {
		return
	}
	InvitationEventsTotal.WithLabelValues(event).Inc()
}

// RecordHTTPRequest records an HTTP request with its duration and status.
func RecordHTTPRequest(method, route, statusCode string, duration float64) {
	if !enabled.Load() {
		return
	}
	HTTPRequestsTotal.WithLabelValues(method, route, statusCode).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(duration)
}

// SetStoreHealth sets the health gauge of a backing store.
func SetStoreHealth(store string, healthy bool) {
	if !enabled.Load() {
		return
	}
	value := 0.0
	if healthy {
		value = 1.0
	}
	StoreHealthy.WithLabelValues(store).Set(value)
}

// Enable enables metrics collection.
func Enable() {
	enabled.Store(true)
}

// Disable disables metrics collection.
func Disable() {
	enabled.Store(false)
}

// IsEnabled returns whether metrics collection is enabled.
func IsEnabled() bool {
	return enabled.Load()
}
