// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics for the gateway.
//
// Metrics are exposed via the /metrics endpoint. Pipeline-internal
// metrics (worker latency, soft failures) live in the workflow engine's
// OpenTelemetry meters; this package covers the HTTP surface.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "bidsight"

const gatewaySubsystem = "gateway"

// GatewayMetrics holds the Prometheus metrics for the analysis API.
type GatewayMetrics struct {
	// AnalysesStartedTotal counts accepted analysis uploads.
	AnalysesStartedTotal prometheus.Counter

	// ReviewDecisionsTotal counts review submissions by action.
	// Labels: action (generate_deck, chat_only)
	ReviewDecisionsTotal *prometheus.CounterVec

	// StreamClientsActive tracks currently connected progress
	// consumers. Labels: transport (sse, websocket)
	StreamClientsActive *prometheus.GaugeVec

	// ChatRequestsTotal counts chat requests by status.
	// Labels: status (success, error)
	ChatRequestsTotal *prometheus.CounterVec

	// ErrorsTotal counts handler errors by endpoint.
	// Labels: endpoint
	ErrorsTotal *prometheus.CounterVec
}

// DefaultMetrics is the singleton instance, initialized by InitMetrics.
var DefaultMetrics *GatewayMetrics

var initOnce sync.Once

// InitMetrics initializes and registers the default metrics instance.
// Safe to call more than once; registration happens on the first call.
func InitMetrics() *GatewayMetrics {
	initOnce.Do(func() {
		DefaultMetrics = &GatewayMetrics{
			AnalysesStartedTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Namespace: metricsNamespace,
					Subsystem: gatewaySubsystem,
					Name:      "analyses_started_total",
					Help:      "Total number of accepted analysis uploads",
				},
			),

			ReviewDecisionsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: metricsNamespace,
					Subsystem: gatewaySubsystem,
					Name:      "review_decisions_total",
					Help:      "Review submissions by action",
				},
				[]string{"action"},
			),

			StreamClientsActive: promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Namespace: metricsNamespace,
					Subsystem: gatewaySubsystem,
					Name:      "stream_clients_active",
					Help:      "Currently connected progress stream consumers",
				},
				[]string{"transport"},
			),

			ChatRequestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: metricsNamespace,
					Subsystem: gatewaySubsystem,
					Name:      "chat_requests_total",
					Help:      "Chat requests by status",
				},
				[]string{"status"},
			),

			ErrorsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: metricsNamespace,
					Subsystem: gatewaySubsystem,
					Name:      "errors_total",
					Help:      "Handler errors by endpoint",
				},
				[]string{"endpoint"},
			),
		}
	})
	return DefaultMetrics
}

// RecordError increments the error counter when metrics are initialized.
func RecordError(endpoint string) {
	if DefaultMetrics != nil {
		DefaultMetrics.ErrorsTotal.WithLabelValues(endpoint).Inc()
	}
}
