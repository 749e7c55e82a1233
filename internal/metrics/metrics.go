package metrics

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// MetricType represents the type of metric
type MetricType string

const (
	Counter MetricType = "counter"
	Timer   MetricType = "timer"
	Gauge   MetricType = "gauge"
)

// Metric represents a single metric with its metadata
type Metric struct {
	Name        string            `json:"name"`
	Type        MetricType        `json:"type"`
	Value       float64           `json:"value"`
	Labels      map[string]string `json:"labels,omitempty"`
	Description string            `json:"description,omitempty"`
	LastUpdate  time.Time         `json:"last_update"`
}

// TimerMetric stores timing information
type TimerMetric struct {
	Count   int64   `json:"count"`
	Sum     float64 `json:"sum_ms"`
	Min     float64 `json:"min_ms"`
	Max     float64 `json:"max_ms"`
	Average float64 `json:"avg_ms"`
	P95     float64 `json:"p95_ms,omitempty"`
	samples []float64
}

// Registry manages all metrics in memory
type Registry struct {
	mu        sync.RWMutex
	counters  map[string]*Metric
	timers    map[string]*TimerMetric
	gauges    map[string]*Metric
	startTime time.Time
}

// NewRegistry creates a new metrics registry
func NewRegistry() *Registry {
	return &Registry{
		counters:  make(map[string]*Metric),
		timers:    make(map[string]*TimerMetric),
		gauges:    make(map[string]*Metric),
		startTime: time.Now(),
	}
}

var globalRegistry = NewRegistry()

// GetRegistry returns the global registry instance
func GetRegistry() *Registry {
	return globalRegistry
}

// IncrementCounter increments a counter metric
func (r *Registry) IncrementCounter(name string, labels map[string]string, description string) {
	r.AddToCounter(name, 1, labels, description)
}

// AddToCounter adds a value to a counter metric
func (r *Registry) AddToCounter(name string, value float64, labels map[string]string, description string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := metricKey(name, labels)
	if counter, exists := r.counters[key]; exists {
		counter.Value += value
		counter.LastUpdate = time.Now()
		return
	}
	r.counters[key] = &Metric{
		Name:        name,
		Type:        Counter,
		Value:       value,
		Labels:      copyLabels(labels),
		Description: description,
		LastUpdate:  time.Now(),
	}
}

// RecordTimer records a timing measurement
func (r *Registry) RecordTimer(name string, duration time.Duration, labels map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := metricKey(name, labels)
	durationMs := float64(duration.Nanoseconds()) / 1e6

	timer, exists := r.timers[key]
	if !exists {
		r.timers[key] = &TimerMetric{
			Count:   1,
			Sum:     durationMs,
			Min:     durationMs,
			Max:     durationMs,
			Average: durationMs,
			samples: []float64{durationMs},
		}
		return
	}

	timer.Count++
	timer.Sum += durationMs
	timer.samples = append(timer.samples, durationMs)

	if durationMs < timer.Min || timer.Min == 0 {
		timer.Min = durationMs
	}
	if durationMs > timer.Max {
		timer.Max = durationMs
	}
	timer.Average = timer.Sum / float64(timer.Count)

	// Keep only the last 1000 samples for percentile calculation
	if len(timer.samples) > 1000 {
		timer.samples = timer.samples[len(timer.samples)-1000:]
	}
	if len(timer.samples) >= 10 {
		timer.P95 = percentile(timer.samples, 0.95)
	}
}

// SetGauge sets a gauge metric value
func (r *Registry) SetGauge(name string, value float64, labels map[string]string, description string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.gauges[metricKey(name, labels)] = &Metric{
		Name:        name,
		Type:        Gauge,
		Value:       value,
		Labels:      copyLabels(labels),
		Description: description,
		LastUpdate:  time.Now(),
	}
}

// GetAllMetrics returns all metrics in a structured format
func (r *Registry) GetAllMetrics() map[string]interface{} {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counters := make(map[string]*Metric, len(r.counters))
	for key, counter := range r.counters {
		counters[key] = counter
	}
	timers := make(map[string]*TimerMetric, len(r.timers))
	for key, timer := range r.timers {
		timers[key] = timer
	}
	gauges := make(map[string]*Metric, len(r.gauges))
	for key, gauge := range r.gauges {
		gauges[key] = gauge
	}

	return map[string]interface{}{
		"counters":  counters,
		"timers":    timers,
		"gauges":    gauges,
		"uptime_ms": time.Since(r.startTime).Milliseconds(),
		"timestamp": time.Now().Unix(),
	}
}

func metricKey(name string, labels map[string]string) string {
	if len(labels) == 0 {
		return name
	}

	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	key := name
	for _, k := range keys {
		key += fmt.Sprintf("_%s:%s", k, labels[k])
	}
	return key
}

func percentile(samples []float64, p float64) float64 {
	if len(samples) == 0 {
		return 0
	}

	sorted := make([]float64, len(samples))
	copy(sorted, samples)
	sort.Float64s(sorted)

	index := int(float64(len(sorted)) * p)
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return sorted[index]
}

func copyLabels(labels map[string]string) map[string]string {
	if labels == nil {
		return nil
	}

	out := make(map[string]string, len(labels))
	for k, v := range labels {
		out[k] = v
	}
	return out
}

// Convenience functions for the global registry

// IncrementCounter increments a counter in the global registry
func IncrementCounter(name string, labels map[string]string, description string) {
	globalRegistry.IncrementCounter(name, labels, description)
}

// AddToCounter adds to a counter in the global registry
func AddToCounter(name string, value float64, labels map[string]string, description string) {
	globalRegistry.AddToCounter(name, value, labels, description)
}

// RecordTimer records timing in the global registry
func RecordTimer(name string, duration time.Duration, labels map[string]string) {
	globalRegistry.RecordTimer(name, duration, labels)
}

// SetGauge sets a gauge in the global registry
func SetGauge(name string, value float64, labels map[string]string, description string) {
	globalRegistry.SetGauge(name, value, labels, description)
}

// GetAllMetrics returns all metrics from the global registry
func GetAllMetrics() map[string]interface{} {
	return globalRegistry.GetAllMetrics()
}
