package service

import (
	"github.com/spectravision/core/internal/logger"
)

// ServiceBase carries the plumbing every analyzer service shares: the
// service name, a logger that tags entries with that name, the shared
// event bus, and a status record. Embed it and implement Start and Stop
// to satisfy the Service interface.
type ServiceBase struct {
	name   string
	log    *logger.Logger
	bus    *EventBus
	status *ServiceStatus
}

// NewServiceBase creates the shared base for a named service.
func NewServiceBase(name string, log *logger.Logger) *ServiceBase {
	return &ServiceBase{
		name:   name,
		log:    log,
		status: NewServiceStatus(name),
	}
}

// Name returns the service name.
func (sb *ServiceBase) Name() string {
	return sb.name
}

// SetEventBus attaches the bus. The manager calls this at registration.
func (sb *ServiceBase) SetEventBus(bus *EventBus) {
	sb.bus = bus
}

// GetEventBus returns the attached event bus, or nil.
func (sb *ServiceBase) GetEventBus() *EventBus {
	return sb.bus
}

// GetStatus returns the lifecycle record for this service.
func (sb *ServiceBase) GetStatus() *ServiceStatus {
	return sb.status
}

// PublishEvent emits an event sourced from this service. Events are
// dropped silently when no bus has been attached, which keeps services
// usable in tests without wiring a manager.
func (sb *ServiceBase) PublishEvent(eventType EventType, data map[string]interface{}) {
	if sb.bus == nil {
		return
	}
	sb.bus.Publish(Event{
		Type:   eventType,
		Source: sb.name,
		Data:   data,
	})
}

func (sb *ServiceBase) tagged(fields []interface{}) []interface{} {
	return append([]interface{}{"service", sb.name}, fields...)
}

// LogInfo logs at info level with the service name attached.
func (sb *ServiceBase) LogInfo(msg string, fields ...interface{}) {
	sb.log.Info(msg, sb.tagged(fields)...)
}

// LogWarn logs at warn level with the service name attached.
func (sb *ServiceBase) LogWarn(msg string, fields ...interface{}) {
	sb.log.Warn(msg, sb.tagged(fields)...)
}

// LogError logs at error level with the service name and error attached.
func (sb *ServiceBase) LogError(msg string, err error, fields ...interface{}) {
	sb.log.Error(msg, sb.tagged(append([]interface{}{"error", err}, fields...))...)
}

// LogDebug logs at debug level with the service name attached.
func (sb *ServiceBase) LogDebug(msg string, fields ...interface{}) {
	sb.log.Debug(msg, sb.tagged(fields)...)
}
