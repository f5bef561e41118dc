package collector

import (
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/viewtrace/viewtrace/internal"
)

// HealthChecker interface for storage health checking
type HealthChecker interface {
	HealthCheck() error
}

// HealthManager manages the health status of the collector
type HealthManager struct {
	healthy int64 // Use atomic for thread-safe access
}

func NewHealthManager() *HealthManager {
	return &HealthManager{healthy: 0}
}

// UpdateHealthStatus checks storage health and updates metrics
func (h *HealthManager) UpdateHealthStatus(storage HealthChecker) {
	var healthStatus int64 = 1
	if err := storage.HealthCheck(); err != nil {
		healthStatus = 0
	}

	atomic.StoreInt64(&h.healthy, healthStatus)
	HealthMetric.Set(float64(healthStatus))
	ReadyMetric.Set(float64(healthStatus))
}

// StartHealthMonitoring starts a background goroutine to monitor health
func (h *HealthManager) StartHealthMonitoring(storage HealthChecker) {
	h.UpdateHealthStatus(storage)

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		h.UpdateHealthStatus(storage)
	}
}

// HealthHandler returns HTTP handler for health endpoints
func (h *HealthManager) HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Build-Commit", internal.CollectorVersionRevision)

	healthy := atomic.LoadInt64(&h.healthy)
	if healthy == 0 {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprintln(w, `{"status":"unhealthy"}`)
		return
	}

	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, `{"status":"ok"}`)
}

// VersionHandler reports the build version
func VersionHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Build-Commit", internal.CollectorVersionRevision)

	w.WriteHeader(http.StatusOK)
	response := fmt.Sprintf(`{"version":"%s"}`, internal.CollectorVersionRevision)
	if _, err := fmt.Fprintf(w, "%s\n", response); err != nil {
		log.Errorf("version response write error: %v", err)
	}
}
