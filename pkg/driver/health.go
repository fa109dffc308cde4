package driver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"k8s.io/klog/v2"
)

// Status is the JSON body served at /healthz and /api/status.
type Status struct {
	Healthy              bool      `json:"healthy"`
	LastIterationTime    time.Time `json:"lastIterationTime"`
	LastIterationError   string    `json:"lastIterationError,omitempty"`
	IterationsSinceStart int64     `json:"iterationsSinceStart"`
	StartTime            time.Time `json:"startTime"`
	Uptime               string    `json:"uptime"`
}

// Health tracks the driver's iteration outcomes for the health endpoints.
// Because every exported access goes through the mutex, a *Health is safe
// to read from the HTTP handler goroutine while the driver loop writes to
// it from its own goroutine.
type Health struct {
	mu sync.RWMutex

	startTime     time.Time
	lastIteration time.Time
	lastErr       error
	count         int64
}

// NewHealth constructs a Health tracker with its start time set to now.
func NewHealth() *Health {
	return &Health{startTime: time.Now()}
}

// RecordIterationSuccess marks a completed, error-free iteration.
func (h *Health) RecordIterationSuccess() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastIteration = time.Now()
	h.lastErr = nil
	h.count++
}

// RecordIterationError marks a failed iteration. The process stays up;
// SnapshotError is retried next interval per spec §7.
func (h *Health) RecordIterationError(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastIteration = time.Now()
	h.lastErr = err
	h.count++
}

// Snapshot returns the current health status. A driver is considered
// healthy once it has completed at least one iteration and the most recent
// one did not error.
func (h *Health) Snapshot() Status {
	h.mu.RLock()
	defer h.mu.RUnlock()

	healthy := h.count > 0 && h.lastErr == nil
	var errMsg string
	if h.lastErr != nil {
		errMsg = h.lastErr.Error()
	}

	return Status{
		Healthy:              healthy,
		LastIterationTime:    h.lastIteration,
		LastIterationError:   errMsg,
		IterationsSinceStart: h.count,
		StartTime:            h.startTime,
		Uptime:               time.Since(h.startTime).Round(time.Second).String(),
	}
}

// ServeHTTP implements the /healthz endpoint: 200 when healthy, 503
// otherwise, body always the JSON Status.
func (h *Health) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	status := h.Snapshot()

	w.Header().Set("Content-Type", "application/json")
	if status.Healthy {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(status)
}

// StartServer serves /healthz, /metrics (Prometheus) and /api/status on the
// given port. It does not block; it logs and returns if the listener fails.
func (h *Health) StartServer(port int) {
	mux := http.NewServeMux()
	mux.Handle("/healthz", h)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(h.Snapshot())
	})

	addr := fmt.Sprintf(":%d", port)
	klog.InfoS("Starting health server", "address", addr)

	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			klog.ErrorS(err, "Health server failed")
		}
	}()
}
