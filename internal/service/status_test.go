package service

import (
	"errors"
	"testing"
)

func TestNewServiceStatus(t *testing.T) {
	status := NewServiceStatus("decode-gateway")

	if status == nil {
		t.Fatal("NewServiceStatus returned nil")
	}
	if status.Name() != "decode-gateway" {
		t.Errorf("Expected name 'decode-gateway', got %s", status.Name())
	}
	if status.GetStatus() != StatusStopped {
		t.Errorf("Expected initial status %s, got %s", StatusStopped, status.GetStatus())
	}
}

func TestServiceStatus_SetStatus(t *testing.T) {
	status := NewServiceStatus("analyzer")

	status.SetStatus(StatusStarting)
	if status.GetStatus() != StatusStarting {
		t.Errorf("Expected status %s, got %s", StatusStarting, status.GetStatus())
	}

	status.SetError(errors.New("probe failed"))
	status.SetStatus(StatusRunning)
	if status.GetStatus() != StatusRunning {
		t.Errorf("Expected status %s, got %s", StatusRunning, status.GetStatus())
	}
	if status.GetError() != nil {
		t.Error("Error should be cleared when the service enters running")
	}
	if status.GetUptime() == 0 {
		t.Error("Uptime should be tracked once the service is running")
	}
}

func TestServiceStatus_SetError(t *testing.T) {
	status := NewServiceStatus("analyzer")

	status.SetError(errors.New("ffprobe not found"))
	if status.GetStatus() != StatusError {
		t.Errorf("Expected status %s, got %s", StatusError, status.GetStatus())
	}
	if status.GetError() == nil || status.GetError().Error() != "ffprobe not found" {
		t.Errorf("Expected recorded error, got %v", status.GetError())
	}
}

func TestServiceStatus_IsRunning(t *testing.T) {
	status := NewServiceStatus("web-server")

	if status.IsRunning() {
		t.Error("Service should not be running initially")
	}
	status.SetStatus(StatusRunning)
	if !status.IsRunning() {
		t.Error("Service should be running")
	}
	status.SetStatus(StatusStopping)
	if status.IsRunning() {
		t.Error("Service should not report running while stopping")
	}
	if status.GetUptime() != 0 {
		t.Error("Uptime should be zero for a service that is not running")
	}
}

func TestServiceStatus_Snapshot(t *testing.T) {
	status := NewServiceStatus("web-server")

	snap := status.Snapshot()
	if snap.Name != "web-server" || snap.Status != StatusStopped {
		t.Errorf("Unexpected snapshot %+v", snap)
	}
	if snap.Uptime != "" {
		t.Errorf("Stopped services should have no uptime, got %q", snap.Uptime)
	}

	status.SetStatus(StatusRunning)
	snap = status.Snapshot()
	if snap.Status != StatusRunning {
		t.Errorf("Expected running snapshot, got %+v", snap)
	}
	if snap.Uptime == "" {
		t.Error("Running services should report an uptime string")
	}

	status.SetError(errors.New("listen tcp: address in use"))
	snap = status.Snapshot()
	if snap.Status != StatusError {
		t.Errorf("Expected error snapshot, got %+v", snap)
	}
	if snap.Error != "listen tcp: address in use" {
		t.Errorf("Expected error message in snapshot, got %q", snap.Error)
	}
}

func TestServiceStatus_ConcurrentAccess(t *testing.T) {
	status := NewServiceStatus("analyzer")

	done := make(chan bool)
	numGoroutines := 10

	for i := 0; i < numGoroutines; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				status.SetStatus(StatusRunning)
				status.GetStatus()
				status.IsRunning()
				status.Snapshot()
				status.SetStatus(StatusStopped)
			}
			done <- true
		}()
	}

	for i := 0; i < numGoroutines; i++ {
		<-done
	}

	if status.GetStatus() == StatusError {
		t.Error("Status should not be in error state after concurrent access")
	}
}
