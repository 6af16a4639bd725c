package sync

import (
	"context"

	"snesclient/logging"
)

const (
	// EventPassSkipped is emitted when a tick fires while the previous pass is still running.
	EventPassSkipped logging.EventType = "sync.pass_skipped"
	// EventItemDelivered is emitted after an item payload lands in game memory.
	EventItemDelivered logging.EventType = "sync.item_delivered"
	// EventChecksReported is emitted when fresh location checks are forwarded upstream.
	EventChecksReported logging.EventType = "sync.checks_reported"
	// EventPassFault is emitted when a pass aborts on a device error.
	EventPassFault logging.EventType = "sync.pass_fault"
)

// DeliveryPayload captures a single delivered item.
type DeliveryPayload struct {
	Index  int    `json:"index"`
	ItemID int64  `json:"itemId"`
	Item   string `json:"item,omitempty"`
	Sender string `json:"sender,omitempty"`
}

// ChecksPayload captures a batch of reported location checks.
type ChecksPayload struct {
	Locations []int64 `json:"locations"`
}

// PassSkipped publishes a debug event for a dropped tick.
func PassSkipped(ctx context.Context, pub logging.Publisher) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventPassSkipped,
		Severity: logging.SeverityDebug,
		Category: logging.CategorySync,
		Source:   "reconcile",
	})
}

// ItemDelivered publishes an info event for a completed delivery.
func ItemDelivered(ctx context.Context, pub logging.Publisher, payload DeliveryPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventItemDelivered,
		Severity: logging.SeverityInfo,
		Category: logging.CategorySync,
		Source:   "reconcile",
		Payload:  payload,
	})
}

// ChecksReported publishes an info event for forwarded checks.
func ChecksReported(ctx context.Context, pub logging.Publisher, payload ChecksPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventChecksReported,
		Severity: logging.SeverityInfo,
		Category: logging.CategorySync,
		Source:   "reconcile",
		Payload:  payload,
	})
}

// PassFault publishes an error event when a pass aborts.
func PassFault(ctx context.Context, pub logging.Publisher, err error) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventPassFault,
		Severity: logging.SeverityError,
		Category: logging.CategorySync,
		Source:   "reconcile",
	}
	if err != nil {
		event.Message = err.Error()
	}
	pub.Publish(ctx, event)
}
