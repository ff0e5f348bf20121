package service

import (
	"context"
	"time"
)

// HealthStatus is the store reachability report served on /health.
type HealthStatus struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Version  string `json:"version,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Healthy reports whether the store answered the probe.
func (h HealthStatus) Healthy() bool {
	return h.Status == "healthy"
}

type versioner interface {
	Version(ctx context.Context) (string, error)
}

// HealthService probes the store. Check never fails; an unreachable store is
// reported in the returned status.
type HealthService struct {
	store   versioner
	timeout time.Duration
}

func NewHealthService(store versioner, timeout time.Duration) *HealthService {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HealthService{store: store, timeout: timeout}
}

func (s *HealthService) Check(ctx context.Context) HealthStatus {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	version, err := s.store.Version(ctx)
	if err != nil {
		return HealthStatus{
			Status:   "unhealthy",
			Database: "disconnected",
			Error:    err.Error(),
		}
	}
	return HealthStatus{
		Status:   "healthy",
		Database: "connected",
		Version:  version,
	}
}
