// Package alttp reconciles A Link to the Past game memory with a
// multiworld session. The randomized ROM exposes a small mailbox in the
// save mirror that this adapter polls and fills.
package alttp

import (
	"context"
	"encoding/base64"
	"sync"

	"snesclient/internal/games"
	"snesclient/internal/protocol"
	synclog "snesclient/logging/sync"
)

// GameTitle is the name the adapter registers and authenticates under.
const GameTitle = "A Link to the Past"

const clientTag = "Super Nintendo Client"

type location struct {
	name string
	id   int64
	room uint16
	mask uint16
}

type adapter struct {
	games.NopHooks
	rt *games.Runtime

	mu         sync.Mutex
	underworld []location
	byRoom     map[uint16][]location
	overworld  []location
	npc        []location
	misc       []location
}

func init() {
	games.Register(GameTitle, New)
}

func New(rt *games.Runtime) games.Adapter {
	return &adapter{rt: rt, byRoom: make(map[uint16][]location)}
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

// rebuildIndex resolves the static ROM tables against the loaded data
// package. Until the tables arrive the index stays empty and scans no-op.
func (a *adapter) rebuildIndex() {
	if a.rt.Tables == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	a.underworld = a.underworld[:0]
	a.byRoom = make(map[uint16][]location)
	for name, entry := range underworldLocations {
		id, ok := a.rt.Tables.LocationID(name)
		if !ok {
			continue
		}
		loc := location{name: name, id: id, room: entry[0], mask: entry[1]}
		a.underworld = append(a.underworld, loc)
		a.byRoom[loc.room] = append(a.byRoom[loc.room], loc)
	}

	a.overworld = a.overworld[:0]
	for name, screen := range overworldLocations {
		id, ok := a.rt.Tables.LocationID(name)
		if !ok {
			continue
		}
		a.overworld = append(a.overworld, location{name: name, id: id, room: screen})
	}

	a.npc = a.npc[:0]
	for name, bit := range npcLocations {
		id, ok := a.rt.Tables.LocationID(name)
		if !ok {
			continue
		}
		a.npc = append(a.npc, location{name: name, id: id, mask: bit})
	}

	a.misc = a.misc[:0]
	for name, entry := range miscLocations {
		id, ok := a.rt.Tables.LocationID(name)
		if !ok {
			continue
		}
		a.misc = append(a.misc, location{name: name, id: id, room: entry[0], mask: entry[1]})
	}
}

func (a *adapter) HandleRoomInfo(ctx context.Context, cmd *protocol.RoomInfo) {
	a.rebuildIndex()
}

func (a *adapter) HandleDataPackage(ctx context.Context, cmd *protocol.DataPackage) {
	a.rebuildIndex()
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
	if err := a.rt.Memory.WriteMemory(ctx, healthAddr, []byte{0x00}); err != nil {
		return err
	}
	return a.rt.Memory.WriteMemory(ctx, damageAddr, []byte{0x08})
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
	// Outside of gameplay the save mirror holds garbage; deaths are the
	// deathlink tracker's problem, not this pass's.
	if m == 0 || modeIn(m, deathModes) {
		return nil
	}
	if !modeIn(m, ingameModes) && !modeIn(m, endgameModes) {
		return nil
	}

	gameOver, err := a.rt.Memory.ReadMemory(ctx, gameOverAddr, 1)
	if err != nil {
		return err
	}
	if gameOver[0] != 0 || modeIn(m, endgameModes) {
		if a.rt.Session.CompleteGame() {
			return a.rt.Sender.Send(ctx, protocol.StatusUpdate{
				Cmd:    protocol.CmdStatusUpdate,
				Status: protocol.StatusGoal,
			})
		}
		return nil
	}

	// One mailbox read covers the delivered count, the busy flag, the
	// current room and the scout-request slot.
	mailbox, err := a.rt.Memory.ReadMemory(ctx, receivedIndexAddr, 8)
	if err != nil {
		return err
	}
	delivered := int(mailbox[0]) | int(mailbox[1])<<8
	busy := mailbox[2] != 0
	roomID := uint16(mailbox[4]) | uint16(mailbox[5])<<8
	roomData := mailbox[6]
	scoutSlot := int64(mailbox[7])

	if !a.rt.Paused() && delivered < a.rt.Session.ItemCount() && !busy {
		if err := a.deliverNext(ctx, delivered); err != nil {
			return err
		}
	}

	if scoutSlot > 0 {
		if err := a.handleScout(ctx, scoutSlot); err != nil {
			return err
		}
	}

	if isShopRoom(roomID) {
		if err := a.scanShops(ctx); err != nil {
			return err
		}
	}

	// Fast path for the room the player is standing in: its flag word is
	// already in the mailbox, so newly-opened chests report without
	// waiting for the breadth scan below.
	if err := a.reportRoomChecks(ctx, roomID, uint16(roomData)<<4); err != nil {
		return err
	}

	// Breadth scans cover everything else. They must keep running after
	// connect because checks made while offline only surface here.
	if err := a.scanUnderworld(ctx); err != nil {
		return err
	}
	if err := a.scanOverworld(ctx); err != nil {
		return err
	}
	if err := a.scanNPC(ctx); err != nil {
		return err
	}
	return a.scanMisc(ctx)
}

// deliverNext writes item number `delivered` into the mailbox. The count
// is written last so a crash between writes never convinces the ROM that
// a half-written item was granted.
func (a *adapter) deliverNext(ctx context.Context, delivered int) error {
	item, ok := a.rt.Session.ItemAt(delivered)
	if !ok {
		return nil
	}
	if err := a.rt.Memory.WriteMemory(ctx, receivedItemAddr, []byte{byte(item.Item)}); err != nil {
		return err
	}

	// The ROM renders at most 255 sender names; anything above reads as
	// "Archipelago". A self-found item renders as sender zero.
	sender := item.Player
	if sender == a.rt.Session.Slot() {
		sender = 0
	} else if sender > 255 {
		sender = 255
	}
	if err := a.rt.Memory.WriteMemory(ctx, receivedSenderAddr, []byte{byte(sender)}); err != nil {
		return err
	}

	next := delivered + 1
	if err := a.rt.Memory.WriteMemory(ctx, receivedIndexAddr, []byte{byte(next), byte(next >> 8)}); err != nil {
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

func (a *adapter) handleScout(ctx context.Context, scoutSlot int64) error {
	reply, cached := a.rt.Session.ScoutReply(scoutSlot)
	if !cached {
		// Ask once and let the confirmation land asynchronously; a later
		// pass writes the reply.
		return a.rt.Sender.Send(ctx, protocol.LocationScouts{
			Cmd:       protocol.CmdLocationScouts,
			Locations: []int64{scoutSlot},
		})
	}
	if err := a.rt.Memory.WriteMemory(ctx, scoutReplyLocAddr, []byte{byte(scoutSlot)}); err != nil {
		return err
	}
	if err := a.rt.Memory.WriteMemory(ctx, scoutReplyItemAddr, []byte{byte(reply.Item)}); err != nil {
		return err
	}
	return a.rt.Memory.WriteMemory(ctx, scoutReplyPlayAddr, []byte{byte(reply.Player)})
}

// scanShops reads every shop's purchase flags in one request. Multiple
// shops can sell the same item, so each slot is its own location id.
func (a *adapter) scanShops(ctx context.Context) error {
	data, err := a.rt.Memory.ReadMemory(ctx, shopDataAddr, shopScanLength)
	if err != nil {
		return err
	}
	var fresh []int64
	for index, flag := range data {
		id := int64(shopIDBase + index)
		if flag != 0 && !a.rt.Session.IsChecked(id) {
			fresh = append(fresh, id)
		}
	}
	return games.ReportChecks(ctx, a.rt, fresh)
}

func (a *adapter) reportRoomChecks(ctx context.Context, roomID uint16, roomFlags uint16) error {
	a.mu.Lock()
	locs := a.byRoom[roomID]
	a.mu.Unlock()
	var fresh []int64
	for _, loc := range locs {
		if a.rt.Session.IsChecked(loc.id) {
			continue
		}
		if roomFlags&loc.mask != 0 {
			fresh = append(fresh, loc.id)
		}
	}
	return games.ReportChecks(ctx, a.rt, fresh)
}

// scanUnderworld reads the save-mirror words for every room that still has
// an unchecked location, bounded to the narrowest covering range.
func (a *adapter) scanUnderworld(ctx context.Context) error {
	a.mu.Lock()
	var missing []location
	begin, end := uint16(0x129), uint16(0)
	for _, loc := range a.underworld {
		if a.rt.Session.IsChecked(loc.id) {
			continue
		}
		missing = append(missing, loc)
		if loc.room < begin {
			begin = loc.room
		}
		if loc.room+1 > end {
			end = loc.room + 1
		}
	}
	a.mu.Unlock()
	if begin >= end {
		return nil
	}

	data, err := a.rt.Memory.ReadMemory(ctx, savedataStart+uint32(begin)*2, int(end-begin)*2)
	if err != nil {
		return err
	}
	var fresh []int64
	for _, loc := range missing {
		offset := int(loc.room-begin) * 2
		flags := uint16(data[offset]) | uint16(data[offset+1])<<8
		if flags&loc.mask != 0 {
			fresh = append(fresh, loc.id)
		}
	}
	return games.ReportChecks(ctx, a.rt, fresh)
}

func (a *adapter) scanOverworld(ctx context.Context) error {
	a.mu.Lock()
	var missing []location
	begin, end := uint16(0x82), uint16(0)
	for _, loc := range a.overworld {
		if a.rt.Session.IsChecked(loc.id) {
			continue
		}
		missing = append(missing, loc)
		if loc.room < begin {
			begin = loc.room
		}
		if loc.room+1 > end {
			end = loc.room + 1
		}
	}
	a.mu.Unlock()
	if begin >= end {
		return nil
	}

	data, err := a.rt.Memory.ReadMemory(ctx, overworldFlagsAddr+uint32(begin), int(end-begin))
	if err != nil {
		return err
	}
	var fresh []int64
	for _, loc := range missing {
		if data[loc.room-begin]&0x40 != 0 {
			fresh = append(fresh, loc.id)
		}
	}
	return games.ReportChecks(ctx, a.rt, fresh)
}

func (a *adapter) scanNPC(ctx context.Context) error {
	a.mu.Lock()
	var missing []location
	for _, loc := range a.npc {
		if !a.rt.Session.IsChecked(loc.id) {
			missing = append(missing, loc)
		}
	}
	a.mu.Unlock()
	if len(missing) == 0 {
		return nil
	}

	data, err := a.rt.Memory.ReadMemory(ctx, npcFlagsAddr, 2)
	if err != nil {
		return err
	}
	flags := uint16(data[0]) | uint16(data[1])<<8
	var fresh []int64
	for _, loc := range missing {
		if flags&loc.mask != 0 {
			fresh = append(fresh, loc.id)
		}
	}
	return games.ReportChecks(ctx, a.rt, fresh)
}

func (a *adapter) scanMisc(ctx context.Context) error {
	a.mu.Lock()
	var missing []location
	for _, loc := range a.misc {
		if !a.rt.Session.IsChecked(loc.id) {
			missing = append(missing, loc)
		}
	}
	a.mu.Unlock()
	if len(missing) == 0 {
		return nil
	}

	data, err := a.rt.Memory.ReadMemory(ctx, miscFlagsAddr, 4)
	if err != nil {
		return err
	}
	var fresh []int64
	for _, loc := range missing {
		if data[loc.room-0x3C6]&byte(loc.mask) != 0 {
			fresh = append(fresh, loc.id)
		}
	}
	return games.ReportChecks(ctx, a.rt, fresh)
}
