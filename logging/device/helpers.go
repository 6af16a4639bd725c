package device

import (
	"context"

	"snesclient/logging"
)

const (
	// EventAttached is emitted when a device binding succeeds.
	EventAttached logging.EventType = "device.attached"
	// EventDetached is emitted when the device link is torn down.
	EventDetached logging.EventType = "device.detached"
	// EventReadFault is emitted when a memory read fails.
	EventReadFault logging.EventType = "device.read_fault"
	// EventWriteFault is emitted when a memory write fails.
	EventWriteFault logging.EventType = "device.write_fault"
)

// AttachPayload captures the bound device identity.
type AttachPayload struct {
	URI      string `json:"uri"`
	Name     string `json:"name,omitempty"`
	Firmware string `json:"firmware,omitempty"`
}

// Attached publishes an info event after binding to a device.
func Attached(ctx context.Context, pub logging.Publisher, payload AttachPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventAttached,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryDevice,
		Source:   "snes",
		Payload:  payload,
	})
}

// Detached publishes a warning event when the link drops.
func Detached(ctx context.Context, pub logging.Publisher, reason string) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventDetached,
		Severity: logging.SeverityWarn,
		Category: logging.CategoryDevice,
		Source:   "snes",
		Message:  reason,
	})
}

// FaultPayload captures the failed memory operation.
type FaultPayload struct {
	Address uint32 `json:"address"`
	Length  int    `json:"length"`
}

// ReadFault publishes a warning event for a failed read.
func ReadFault(ctx context.Context, pub logging.Publisher, payload FaultPayload, err error) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventReadFault,
		Severity: logging.SeverityWarn,
		Category: logging.CategoryDevice,
		Source:   "snes",
		Payload:  payload,
	}
	if err != nil {
		event.Message = err.Error()
	}
	pub.Publish(ctx, event)
}

// WriteFault publishes a warning event for a failed write.
func WriteFault(ctx context.Context, pub logging.Publisher, payload FaultPayload, err error) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventWriteFault,
		Severity: logging.SeverityWarn,
		Category: logging.CategoryDevice,
		Source:   "snes",
		Payload:  payload,
	}
	if err != nil {
		event.Message = err.Error()
	}
	pub.Publish(ctx, event)
}
