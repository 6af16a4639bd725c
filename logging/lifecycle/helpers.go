package lifecycle

import (
	"context"

	"snesclient/logging"
)

const (
	// EventStartup is emitted once when the client finishes wiring its collaborators.
	EventStartup logging.EventType = "lifecycle.startup"
	// EventShutdown is emitted when the client begins an orderly shutdown.
	EventShutdown logging.EventType = "lifecycle.shutdown"
)

// StartupPayload captures the resolved launch configuration.
type StartupPayload struct {
	Game          string `json:"game"`
	DeviceServer  string `json:"deviceServer"`
	ServerAddress string `json:"serverAddress,omitempty"`
}

// Startup publishes the boot event.
func Startup(ctx context.Context, pub logging.Publisher, payload StartupPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventStartup,
		Severity: logging.SeverityInfo,
		Category: logging.CategorySystem,
		Source:   "app",
		Payload:  payload,
	})
}

// Shutdown publishes the shutdown event.
func Shutdown(ctx context.Context, pub logging.Publisher, reason string) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventShutdown,
		Severity: logging.SeverityInfo,
		Category: logging.CategorySystem,
		Source:   "app",
		Message:  reason,
	})
}
