/*
 * Copyright 2025 The Promptwire Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder is the metrics surface used by the rest of the server.
// Both the Prometheus and the in-memory implementations satisfy it.
type Recorder interface {
	RecordHTTPRequest(method, path string, statusCode int, duration time.Duration)
	IncHTTPRequestsInFlight()
	DecHTTPRequestsInFlight()
	RecordPromptOperation(operation, status string, duration time.Duration)
	RecordResolution(outcome string)
	SetRegistrySize(count float64)
	RecordStoreError(operation string)
	RecordStoreInconsistency(promptID string)
	RecordError(component, errorCode, errorType string)
}

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Prompt operation metrics
	PromptOperationsTotal   *prometheus.CounterVec
	PromptOperationDuration *prometheus.HistogramVec
	PromptResolutionsTotal  *prometheus.CounterVec
	RegistrySize            prometheus.Gauge
	StoreErrorsTotal        *prometheus.CounterVec
	StoreInconsistencyTotal *prometheus.CounterVec

	// Error metrics
	ErrorsTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	return &Metrics{
		// HTTP metrics
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "promptd_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "promptd_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status_code"},
		),
		HTTPRequestsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "promptd_http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
		),

		// Prompt operation metrics
		PromptOperationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "promptd_prompt_operations_total",
				Help: "Total number of prompt operations",
			},
			[]string{"operation", "status"},
		),
		PromptOperationDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "promptd_prompt_operation_duration_seconds",
				Help:    "Prompt operation duration in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"operation", "status"},
		),
		PromptResolutionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "promptd_prompt_resolutions_total",
				Help: "Total number of prompt ID resolutions by outcome",
			},
			[]string{"outcome"},
		),
		RegistrySize: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "promptd_registry_size",
				Help: "Number of prompt versions currently in the registry",
			},
		),
		StoreErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "promptd_store_errors_total",
				Help: "Total number of store I/O errors",
			},
			[]string{"operation"},
		),
		StoreInconsistencyTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "promptd_store_inconsistencies_total",
				Help: "Total number of registry entries found missing from the store",
			},
			[]string{"prompt_id"},
		),

		// Error metrics
		ErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "promptd_errors_total",
				Help: "Total number of errors",
			},
			[]string{"component", "error_code", "error_type"},
		),
	}
}

// RecordHTTPRequest records HTTP request metrics
func (m *Metrics) RecordHTTPRequest(method, path string, statusCode int, duration time.Duration) {
	statusStr := strconv.Itoa(statusCode)
	m.HTTPRequestsTotal.WithLabelValues(method, path, statusStr).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path, statusStr).Observe(duration.Seconds())
}

// IncHTTPRequestsInFlight increments in-flight HTTP requests
func (m *Metrics) IncHTTPRequestsInFlight() {
	m.HTTPRequestsInFlight.Inc()
}

// DecHTTPRequestsInFlight decrements in-flight HTTP requests
func (m *Metrics) DecHTTPRequestsInFlight() {
	m.HTTPRequestsInFlight.Dec()
}

// RecordPromptOperation records a prompt mutation or read
func (m *Metrics) RecordPromptOperation(operation, status string, duration time.Duration) {
	m.PromptOperationsTotal.WithLabelValues(operation, status).Inc()
	m.PromptOperationDuration.WithLabelValues(operation, status).Observe(duration.Seconds())
}

// RecordResolution records a prompt ID resolution outcome
// (exact, latest, miss)
func (m *Metrics) RecordResolution(outcome string) {
	m.PromptResolutionsTotal.WithLabelValues(outcome).Inc()
}

// SetRegistrySize sets the registry size gauge
func (m *Metrics) SetRegistrySize(count float64) {
	m.RegistrySize.Set(count)
}

// RecordStoreError records a store I/O error
func (m *Metrics) RecordStoreError(operation string) {
	m.StoreErrorsTotal.WithLabelValues(operation).Inc()
}

// RecordStoreInconsistency records a registry entry with no backing store record
func (m *Metrics) RecordStoreInconsistency(promptID string) {
	m.StoreInconsistencyTotal.WithLabelValues(promptID).Inc()
}

// RecordError records error metrics
func (m *Metrics) RecordError(component, errorCode, errorType string) {
	m.ErrorsTotal.WithLabelValues(component, errorCode, errorType).Inc()
}

// Timer provides a convenient way to time operations
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed duration
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// ObserveHistogram observes the elapsed time in a histogram
func (t *Timer) ObserveHistogram(histogram prometheus.Observer) {
	histogram.Observe(t.Duration().Seconds())
}
