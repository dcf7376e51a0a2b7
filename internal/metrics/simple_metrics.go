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
	"encoding/json"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// SimpleMetrics provides a simple in-memory metrics implementation
type SimpleMetrics struct {
	mu sync.RWMutex

	// HTTP metrics
	httpRequests  map[string]int64
	httpDurations map[string][]float64
	httpInFlight  int64

	// Prompt operation metrics
	promptOperations  map[string]int64
	promptDurations   map[string][]float64
	promptResolutions map[string]int64
	registrySize      float64

	// Store metrics
	storeErrors          map[string]int64
	storeInconsistencies map[string]int64

	// Error metrics
	errors map[string]int64

	// Timestamps
	startTime  time.Time
	lastUpdate time.Time
}

// NewSimpleMetrics creates a new simple metrics instance
func NewSimpleMetrics() *SimpleMetrics {
	return &SimpleMetrics{
		httpRequests:         make(map[string]int64),
		httpDurations:        make(map[string][]float64),
		promptOperations:     make(map[string]int64),
		promptDurations:      make(map[string][]float64),
		promptResolutions:    make(map[string]int64),
		storeErrors:          make(map[string]int64),
		storeInconsistencies: make(map[string]int64),
		errors:               make(map[string]int64),
		startTime:            time.Now(),
		lastUpdate:           time.Now(),
	}
}

// RecordHTTPRequest records HTTP request metrics
func (m *SimpleMetrics) RecordHTTPRequest(method, path string, statusCode int, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := method + ":" + path + ":" + strconv.Itoa(statusCode)
	m.httpRequests[key]++
	m.httpDurations[key] = append(m.httpDurations[key], duration.Seconds())
	m.lastUpdate = time.Now()
}

// IncHTTPRequestsInFlight increments in-flight HTTP requests
func (m *SimpleMetrics) IncHTTPRequestsInFlight() {
	atomic.AddInt64(&m.httpInFlight, 1)
}

// DecHTTPRequestsInFlight decrements in-flight HTTP requests
func (m *SimpleMetrics) DecHTTPRequestsInFlight() {
	atomic.AddInt64(&m.httpInFlight, -1)
}

// RecordPromptOperation records a prompt mutation or read
func (m *SimpleMetrics) RecordPromptOperation(operation, status string, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := operation + ":" + status
	m.promptOperations[key]++
	m.promptDurations[key] = append(m.promptDurations[key], duration.Seconds())
	m.lastUpdate = time.Now()
}

// RecordResolution records a prompt ID resolution outcome
func (m *SimpleMetrics) RecordResolution(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.promptResolutions[outcome]++
	m.lastUpdate = time.Now()
}

// SetRegistrySize sets the current registry size
func (m *SimpleMetrics) SetRegistrySize(count float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registrySize = count
	m.lastUpdate = time.Now()
}

// RecordStoreError records a store I/O error
func (m *SimpleMetrics) RecordStoreError(operation string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.storeErrors[operation]++
	m.lastUpdate = time.Now()
}

// RecordStoreInconsistency records a registry entry with no backing store record
func (m *SimpleMetrics) RecordStoreInconsistency(promptID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.storeInconsistencies[promptID]++
	m.lastUpdate = time.Now()
}

// RecordError records error metrics
func (m *SimpleMetrics) RecordError(component, errorCode, errorType string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := component + ":" + errorCode + ":" + errorType
	m.errors[key]++
	m.lastUpdate = time.Now()
}

// ToJSON exports metrics as JSON
func (m *SimpleMetrics) ToJSON() ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	data := map[string]interface{}{
		"timestamp":      m.lastUpdate.Unix(),
		"uptime_seconds": time.Since(m.startTime).Seconds(),
		"http": map[string]interface{}{
			"requests":  m.httpRequests,
			"durations": m.calculateStats(m.httpDurations),
			"in_flight": atomic.LoadInt64(&m.httpInFlight),
		},
		"prompts": map[string]interface{}{
			"operations":    m.promptOperations,
			"durations":     m.calculateStats(m.promptDurations),
			"resolutions":   m.promptResolutions,
			"registry_size": m.registrySize,
		},
		"store": map[string]interface{}{
			"errors":          m.storeErrors,
			"inconsistencies": m.storeInconsistencies,
		},
		"system": map[string]interface{}{
			"memory_usage_bytes": memStats.Alloc,
			"memory_total_bytes": memStats.TotalAlloc,
			"goroutines_active":  runtime.NumGoroutine(),
			"gc_cycles":          memStats.NumGC,
		},
		"errors": m.errors,
	}

	return json.Marshal(data)
}

// calculateStats calculates basic statistics for duration arrays
func (m *SimpleMetrics) calculateStats(data map[string][]float64) map[string]interface{} {
	stats := make(map[string]interface{})

	for key, values := range data {
		if len(values) == 0 {
			continue
		}

		sum := 0.0
		min := values[0]
		max := values[0]

		for _, v := range values {
			sum += v
			if v < min {
				min = v
			}
			if v > max {
				max = v
			}
		}

		avg := sum / float64(len(values))

		stats[key] = map[string]interface{}{
			"count": len(values),
			"sum":   sum,
			"avg":   avg,
			"min":   min,
			"max":   max,
		}
	}

	return stats
}
