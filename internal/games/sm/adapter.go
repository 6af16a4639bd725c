// Package sm reconciles Super Metroid game memory with a multiworld
// session. Unlike the Zelda adapter there is no breadth scan: the ROM
// records collected locations in its own array and the client drains it.
package sm

import (
	"context"
	"encoding/base64"

	"snesclient/internal/games"
	"snesclient/internal/protocol"
	synclog "snesclient/logging/sync"
)

// GameTitle is the name the adapter registers and authenticates under.
const GameTitle = "Super Metroid"

const clientTag = "Super Nintendo Client"

type adapter struct {
	games.NopHooks
	rt *games.Runtime
}

func init() {
	games.Register(GameTitle, New)
}

func New(rt *games.Runtime) games.Adapter {
	return &adapter{rt: rt}
}

func (a *adapter) GameName() string { return GameTitle }

func (a *adapter) Authenticate(ctx context.Context, slotName, password string) (protocol.Connect, error) {
	tags := []string{clientTag}
	enabled, err := a.DeathLinkEnabled(ctx)
	if err != nil {
		return protocol.Connect{}, err
	}
	if enabled {
		tags = append(tags, protocol.DeathLinkTag)
	}

	romName, err := a.rt.Memory.ReadMemory(ctx, romNameStart, romNameSize)
	if err != nil {
		return protocol.Connect{}, err
	}

	name := slotName
	if name == "" {
		name = base64.StdEncoding.EncodeToString(romName)
	}
	return protocol.Connect{
		Cmd:      protocol.CmdConnect,
		Game:     GameTitle,
		Name:     name,
		UUID:     a.rt.ClientID,
		Tags:     tags,
		Password: password,
		Version:  protocol.ProtocolVersion,
	}, nil
}

func (a *adapter) ItemName(id int64) string {
	if a.rt.Tables == nil {
		return ""
	}
	return a.rt.Tables.ItemName(id)
}

func (a *adapter) LocationName(id int64) string {
	if a.rt.Tables == nil {
		return ""
	}
	return a.rt.Tables.LocationName(id)
}

func (a *adapter) DeathLinkEnabled(ctx context.Context) (bool, error) {
	if enabled, known := a.rt.Session.DeathLink(); known {
		return enabled, nil
	}
	flag, err := a.rt.Memory.ReadMemory(ctx, deathLinkFlagAddr, 1)
	if err != nil {
		return false, err
	}
	enabled := len(flag) == 1 && flag[0] == 1
	a.rt.Session.SetDeathLink(enabled)
	return enabled, nil
}

func (a *adapter) KillLocalPlayer(ctx context.Context) error {
	// Zeroing Samus's energy is enough; the game handles the rest.
	return a.rt.Memory.WriteMemory(ctx, healthAddr, []byte{0x00, 0x00})
}

func (a *adapter) LocalPlayerDead(ctx context.Context) (bool, error) {
	mode, err := a.rt.Memory.ReadMemory(ctx, gameModeAddr, 1)
	if err != nil {
		return false, err
	}
	return len(mode) == 1 && modeIn(mode[0], deathModes), nil
}

func (a *adapter) RunReconciliationPass(ctx context.Context) error {
	mode, err := a.rt.Memory.ReadMemory(ctx, gameModeAddr, 1)
	if err != nil {
		return err
	}
	m := mode[0]
	if modeIn(m, deathModes) {
		return nil
	}
	if modeIn(m, endgameModes) {
		if a.rt.Session.CompleteGame() {
			return a.rt.Sender.Send(ctx, protocol.StatusUpdate{
				Cmd:    protocol.CmdStatusUpdate,
				Status: protocol.StatusGoal,
			})
		}
		return nil
	}

	if err := a.drainCheckArray(ctx); err != nil {
		return err
	}
	if !a.rt.Paused() {
		return a.deliverNext(ctx)
	}
	return nil
}

// drainCheckArray reports every location the ROM collected since the last
// acknowledged index, then advances the index so entries are consumed
// exactly once.
func (a *adapter) drainCheckArray(ctx context.Context) error {
	meta, err := a.rt.Memory.ReadMemory(ctx, recvProgressAddr+checkArrayMetaOffset, 4)
	if err != nil {
		return err
	}
	consumed := int(meta[0]) | int(meta[1])<<8
	length := int(meta[2]) | int(meta[3])<<8
	if consumed >= length {
		return nil
	}

	var ids []int64
	for index := consumed; index < length; index++ {
		entry, err := a.rt.Memory.ReadMemory(ctx, recvProgressAddr+checkArrayOffset+uint32(index)*8, 8)
		if err != nil {
			return err
		}
		// Bytes 0-3 only matter to the ROM's pickup text boxes. The
		// location index lives in bytes 4-5, shifted out of its bitfield.
		itemIndex := (int(entry[4]) | int(entry[5])<<8) >> 3
		ids = append(ids, int64(locationsBaseID+itemIndex))
	}

	if err := games.ReportChecks(ctx, a.rt, ids); err != nil {
		return err
	}
	return a.rt.Memory.WriteMemory(ctx, recvProgressAddr+checkArrayMetaOffset, []byte{
		byte(length), byte(length >> 8),
	})
}

// deliverNext pushes the next queued item into the ROM's delivery array.
// The count is written last so a crash cannot orphan a half-written entry.
func (a *adapter) deliverNext(ctx context.Context) error {
	counts, err := a.rt.Memory.ReadMemory(ctx, recvProgressAddr+deliveryCountOffset, 4)
	if err != nil {
		return err
	}
	delivered := int(counts[2]) | int(counts[3])<<8
	if delivered >= a.rt.Session.ItemCount() {
		return nil
	}
	item, ok := a.rt.Session.ItemAt(delivered)
	if !ok {
		return nil
	}

	itemID := item.Item - itemsBaseID
	playerID := item.Player
	payload := []byte{
		byte(playerID), byte(playerID >> 8),
		byte(itemID), byte(itemID >> 8),
	}
	addr := recvProgressAddr + deliveryQueueOffset + uint32(delivered)*4
	if err := a.rt.Memory.WriteMemory(ctx, addr, payload); err != nil {
		return err
	}

	next := delivered + 1
	if err := a.rt.Memory.WriteMemory(ctx, recvProgressAddr+deliveryCountOffset+2, []byte{
		byte(next), byte(next >> 8),
	}); err != nil {
		return err
	}
	synclog.ItemDelivered(ctx, a.rt.Log, synclog.DeliveryPayload{
		Index:  delivered,
		ItemID: item.Item,
		Item:   a.ItemName(item.Item),
		Sender: a.rt.Session.PlayerAlias(item.Player),
	})
	return nil
}
