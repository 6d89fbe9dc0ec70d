package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spectravision/core/internal/logger"
)

func TestNewManager(t *testing.T) {
	mgr := NewManager(logger.NewNopLogger())

	if mgr == nil {
		t.Fatal("NewManager returned nil")
	}
	if mgr.GetServiceCount() != 0 {
		t.Errorf("Expected 0 services, got %d", mgr.GetServiceCount())
	}
	if mgr.GetEventBus() == nil {
		t.Error("Event bus should be initialized")
	}
}

func TestManager_Register(t *testing.T) {
	mgr := NewManager(logger.NewNopLogger())

	mgr.Register(&mockService{name: "analyzer"})

	if mgr.GetServiceCount() != 1 {
		t.Errorf("Expected 1 service, got %d", mgr.GetServiceCount())
	}

	status := mgr.GetServiceStatus("analyzer")
	if status == nil {
		t.Fatal("Service status should be created at registration")
	}
	if status.GetStatus() != StatusStopped {
		t.Errorf("Expected status %s, got %s", StatusStopped, status.GetStatus())
	}
}

func TestManager_Register_WithEvents(t *testing.T) {
	mgr := NewManager(logger.NewNopLogger())

	svc := &mockServiceWithEvents{name: "analyzer"}
	mgr.Register(svc)

	if svc.eventBus == nil {
		t.Error("Event bus should be attached to services that accept one")
	}
}

func TestManager_Start(t *testing.T) {
	mgr := NewManager(logger.NewNopLogger())

	svc := &mockService{name: "analyzer"}
	mgr.Register(svc)

	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if !svc.started {
		t.Error("Service should have been started")
	}

	status := mgr.GetServiceStatus("analyzer")
	if !status.IsRunning() {
		t.Errorf("Expected running service, got %s", status.GetStatus())
	}
}

func TestManager_Start_ServiceError(t *testing.T) {
	mgr := NewManager(logger.NewNopLogger())

	svc := &mockService{
		name:       "decode-gateway",
		startError: errors.New("ffmpeg not found"),
	}
	mgr.Register(svc)

	err := mgr.Start(context.Background())
	if err == nil {
		t.Fatal("Start should fail when a service fails to start")
	}

	status := mgr.GetServiceStatus("decode-gateway")
	if status.GetStatus() != StatusError {
		t.Errorf("Expected status %s, got %s", StatusError, status.GetStatus())
	}
	if status.GetError() == nil {
		t.Error("Failed service should record its error")
	}
}

func TestManager_Shutdown_ReverseOrder(t *testing.T) {
	mgr := NewManager(logger.NewNopLogger())

	var stopOrder []string
	record := func(name string) func() {
		return func() { stopOrder = append(stopOrder, name) }
	}

	mgr.Register(&mockService{name: "analyzer", onStop: record("analyzer")})
	mgr.Register(&mockService{name: "web-server", onStop: record("web-server")})

	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := mgr.Shutdown(shutdownCtx); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	if len(stopOrder) != 2 {
		t.Fatalf("Expected 2 services stopped, got %d", len(stopOrder))
	}
	if stopOrder[0] != "web-server" || stopOrder[1] != "analyzer" {
		t.Errorf("Services should stop in reverse start order, got %v", stopOrder)
	}

	for _, name := range []string{"analyzer", "web-server"} {
		if got := mgr.GetServiceStatus(name).GetStatus(); got != StatusStopped {
			t.Errorf("Service %s should be stopped, got %s", name, got)
		}
	}
}

func TestManager_Shutdown_Timeout(t *testing.T) {
	mgr := NewManager(logger.NewNopLogger())

	mgr.Register(&mockService{name: "web-server", stopDelay: 2 * time.Second})

	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	if err := mgr.Shutdown(shutdownCtx); err == nil {
		t.Error("Shutdown should return an error when the context expires")
	}
}

func TestManager_GetAllStatuses(t *testing.T) {
	mgr := NewManager(logger.NewNopLogger())

	mgr.Register(&mockService{name: "analyzer"})
	mgr.Register(&mockService{name: "web-server"})

	statuses := mgr.GetAllStatuses()
	if len(statuses) != 2 {
		t.Errorf("Expected 2 statuses, got %d", len(statuses))
	}
	if statuses["analyzer"] == nil || statuses["web-server"] == nil {
		t.Error("Statuses should exist for every registered service")
	}
}

type mockService struct {
	name       string
	started    bool
	startError error
	stopDelay  time.Duration
	onStop     func()
}

func (m *mockService) Name() string {
	return m.name
}

func (m *mockService) Start(ctx context.Context) error {
	if m.startError != nil {
		return m.startError
	}
	m.started = true
	return nil
}

func (m *mockService) Stop(ctx context.Context) error {
	if m.stopDelay > 0 {
		time.Sleep(m.stopDelay)
	}
	if m.onStop != nil {
		m.onStop()
	}
	return nil
}

type mockServiceWithEvents struct {
	name     string
	eventBus *EventBus
}

func (m *mockServiceWithEvents) Name() string {
	return m.name
}

func (m *mockServiceWithEvents) Start(ctx context.Context) error {
	return nil
}

func (m *mockServiceWithEvents) Stop(ctx context.Context) error {
	return nil
}

func (m *mockServiceWithEvents) SetEventBus(bus *EventBus) {
	m.eventBus = bus
}
