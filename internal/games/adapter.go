// Package games defines the capability surface every supported title
// implements. The reconciliation engine and the coordination socket depend
// only on this surface, never on a concrete title.
package games

import (
	"context"

	"snesclient/internal/datapkg"
	"snesclient/internal/protocol"
	"snesclient/internal/session"
	"snesclient/logging"
	synclog "snesclient/logging/sync"
)

// Memory is the slice of the device link an adapter touches. Addresses are
// flat fxpakpro addresses.
type Memory interface {
	ReadMemory(ctx context.Context, address uint32, length int) ([]byte, error)
	WriteMemory(ctx context.Context, address uint32, data []byte) error
}

// Sender pushes outbound commands onto the coordination socket.
type Sender interface {
	Send(ctx context.Context, commands ...any) error
}

// Runtime bundles the collaborators an adapter works against. The app
// composes one Runtime per process and rebinds its Memory and Sender as
// links come and go.
type Runtime struct {
	Memory   Memory
	Sender   Sender
	Session  *session.Session
	Tables   *datapkg.Tables
	ClientID string
	Log      logging.Publisher

	// ReceivePaused reports whether the player asked item delivery to hold.
	ReceivePaused func() bool
}

// Paused is nil-safe sugar over ReceivePaused.
func (rt *Runtime) Paused() bool {
	return rt.ReceivePaused != nil && rt.ReceivePaused()
}

// Adapter is the per-title capability set.
type Adapter interface {
	GameName() string

	// Authenticate builds the slot handshake, reading the cart identifier
	// from console memory.
	Authenticate(ctx context.Context, slotName, password string) (protocol.Connect, error)

	// RunReconciliationPass executes one polling pass against the title's
	// memory layout. Any returned error aborts the pass and tears down
	// both links.
	RunReconciliationPass(ctx context.Context) error

	// Inbound hooks, named after the dispatch tags. Core session state is
	// already updated when a hook runs; most titles no-op most of these.
	HandleRoomInfo(ctx context.Context, cmd *protocol.RoomInfo)
	HandleConnected(ctx context.Context, cmd *protocol.Connected)
	HandleConnectionRefused(ctx context.Context, cmd *protocol.ConnectionRefused)
	HandleReceivedItems(ctx context.Context, cmd *protocol.ReceivedItems)
	HandleLocationInfo(ctx context.Context, cmd *protocol.LocationInfo)
	HandleRoomUpdate(ctx context.Context, cmd *protocol.RoomUpdate)
	HandlePrint(ctx context.Context, cmd *protocol.Print)
	HandlePrintJSON(ctx context.Context, cmd *protocol.PrintJSON)
	HandleDataPackage(ctx context.Context, cmd *protocol.DataPackage)
	HandleBounced(ctx context.Context, cmd *protocol.Bounced)

	ItemName(id int64) string
	LocationName(id int64) string

	DeathLinkEnabled(ctx context.Context) (bool, error)
	KillLocalPlayer(ctx context.Context) error
	LocalPlayerDead(ctx context.Context) (bool, error)
}

// NopHooks provides no-op inbound hooks for embedding.
type NopHooks struct{}

func (NopHooks) HandleRoomInfo(context.Context, *protocol.RoomInfo)                   {}
func (NopHooks) HandleConnected(context.Context, *protocol.Connected)                 {}
func (NopHooks) HandleConnectionRefused(context.Context, *protocol.ConnectionRefused) {}
func (NopHooks) HandleReceivedItems(context.Context, *protocol.ReceivedItems)         {}
func (NopHooks) HandleLocationInfo(context.Context, *protocol.LocationInfo)           {}
func (NopHooks) HandleRoomUpdate(context.Context, *protocol.RoomUpdate)               {}
func (NopHooks) HandlePrint(context.Context, *protocol.Print)                         {}
func (NopHooks) HandlePrintJSON(context.Context, *protocol.PrintJSON)                 {}
func (NopHooks) HandleDataPackage(context.Context, *protocol.DataPackage)             {}
func (NopHooks) HandleBounced(context.Context, *protocol.Bounced)                     {}

// ReportChecks records location ids in the session and forwards only the
// newly-checked ones upstream as a single batch.
func ReportChecks(ctx context.Context, rt *Runtime, ids []int64) error {
	if rt.Session == nil || len(ids) == 0 {
		return nil
	}
	fresh := rt.Session.MarkChecked(ids)
	if len(fresh) == 0 || rt.Sender == nil {
		return nil
	}
	if err := rt.Sender.Send(ctx, protocol.LocationChecks{
		Cmd:       protocol.CmdLocationChecks,
		Locations: fresh,
	}); err != nil {
		return err
	}
	synclog.ChecksReported(ctx, rt.Log, synclog.ChecksPayload{Locations: fresh})
	return nil
}
