package network

import (
	"context"

	"snesclient/logging"
)

const (
	// EventConnected is emitted when the coordination socket finishes its handshake.
	EventConnected logging.EventType = "network.connected"
	// EventDisconnected is emitted when the coordination socket closes for any reason.
	EventDisconnected logging.EventType = "network.disconnected"
	// EventAuthRefused is emitted when the server rejects the slot handshake.
	EventAuthRefused logging.EventType = "network.auth_refused"
	// EventReconnectScheduled is emitted when an automatic reconnect attempt is queued.
	EventReconnectScheduled logging.EventType = "network.reconnect_scheduled"
	// EventUnknownCommand is emitted when an inbound frame carries an unrecognized tag.
	EventUnknownCommand logging.EventType = "network.unknown_command"
)

// ConnectPayload captures handshake details.
type ConnectPayload struct {
	Address string `json:"address"`
	Slot    string `json:"slot,omitempty"`
	Game    string `json:"game,omitempty"`
}

// ReconnectPayload captures retry progression details.
type ReconnectPayload struct {
	Attempt int    `json:"attempt"`
	Max     int    `json:"max"`
	DelayMS int64  `json:"delayMs"`
	Address string `json:"address"`
}

// Connected publishes an info event after a successful handshake.
func Connected(ctx context.Context, pub logging.Publisher, payload ConnectPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventConnected,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryNetwork,
		Source:   "coordinator",
		Payload:  payload,
	})
}

// Disconnected publishes a warning event when the socket drops.
func Disconnected(ctx context.Context, pub logging.Publisher, address string, reason string) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventDisconnected,
		Severity: logging.SeverityWarn,
		Category: logging.CategoryNetwork,
		Source:   "coordinator",
		Message:  reason,
		Payload:  ConnectPayload{Address: address},
	})
}

// AuthRefused publishes an error event when the server refuses the slot.
func AuthRefused(ctx context.Context, pub logging.Publisher, payload ConnectPayload, errors []string) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventAuthRefused,
		Severity: logging.SeverityError,
		Category: logging.CategoryNetwork,
		Source:   "coordinator",
		Payload:  payload,
	}
	if len(errors) > 0 {
		event = event.WithExtra("errors", errors)
	}
	pub.Publish(ctx, event)
}

// ReconnectScheduled publishes an info event when a retry is queued.
func ReconnectScheduled(ctx context.Context, pub logging.Publisher, payload ReconnectPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventReconnectScheduled,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryNetwork,
		Source:   "coordinator",
		Payload:  payload,
	})
}

// UnknownCommand publishes a debug event for frames the client ignores.
func UnknownCommand(ctx context.Context, pub logging.Publisher, cmd string) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventUnknownCommand,
		Severity: logging.SeverityDebug,
		Category: logging.CategoryNetwork,
		Source:   "coordinator",
		Message:  cmd,
	})
}
