package service

import (
	"sync"
	"time"
)

// Status is a lifecycle phase of a managed service.
type Status string

const (
	StatusStopped  Status = "stopped"
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusStopping Status = "stopping"
	StatusError    Status = "error"
)

// ServiceStatus is a concurrency-safe lifecycle record for one service.
// The manager writes transitions; everyone else reads through snapshots
// or the accessor methods.
type ServiceStatus struct {
	mu        sync.RWMutex
	name      string
	status    Status
	startedAt time.Time
	lastErr   error
}

// Snapshot is a point-in-time view of a service, shaped for JSON output
// on the status endpoint.
type Snapshot struct {
	Name   string `json:"name"`
	Status Status `json:"status"`
	Uptime string `json:"uptime,omitempty"`
	Error  string `json:"error,omitempty"`
}

// NewServiceStatus creates a lifecycle record in the stopped state.
func NewServiceStatus(name string) *ServiceStatus {
	return &ServiceStatus{
		name:   name,
		status: StatusStopped,
	}
}

// Name returns the name of the tracked service.
func (ss *ServiceStatus) Name() string {
	return ss.name
}

// SetStatus records a lifecycle transition. Entering the running state
// stamps the start time and clears any previous error.
func (ss *ServiceStatus) SetStatus(status Status) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	ss.status = status
	if status == StatusRunning {
		ss.startedAt = time.Now()
		ss.lastErr = nil
	}
}

// SetError moves the service into the error state and keeps the cause.
func (ss *ServiceStatus) SetError(err error) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	ss.status = StatusError
	ss.lastErr = err
}

// GetStatus returns the current lifecycle phase.
func (ss *ServiceStatus) GetStatus() Status {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	return ss.status
}

// GetError returns the most recent error, or nil.
func (ss *ServiceStatus) GetError() error {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	return ss.lastErr
}

// IsRunning reports whether the service is in the running state.
func (ss *ServiceStatus) IsRunning() bool {
	return ss.GetStatus() == StatusRunning
}

// GetUptime returns how long the service has been running, or zero when
// it is not running.
func (ss *ServiceStatus) GetUptime() time.Duration {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	if ss.status == StatusRunning && !ss.startedAt.IsZero() {
		return time.Since(ss.startedAt)
	}
	return 0
}

// Snapshot returns a consistent view of the record suitable for
// serialization. Uptime is only populated for running services.
func (ss *ServiceStatus) Snapshot() Snapshot {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	snap := Snapshot{Name: ss.name, Status: ss.status}
	if ss.status == StatusRunning && !ss.startedAt.IsZero() {
		snap.Uptime = time.Since(ss.startedAt).Round(time.Second).String()
	}
	if ss.lastErr != nil {
		snap.Error = ss.lastErr.Error()
	}
	return snap
}
