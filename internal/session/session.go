// Package session holds the per-connection game state. A fresh Session
// is created every time the coordination socket opens so a previous
// connection's item queue can never bleed into the new one.
package session

import (
	"sync"

	"snesclient/internal/protocol"
)

// ScoutedItem is the cached server reply for a scouted location.
type ScoutedItem struct {
	Item   int64
	Player int
}

// Session is the mutable state for one coordination-server connection.
// Item and location bookkeeping is monotonic: checked locations are
// never removed and the received-item log is append-only.
type Session struct {
	mu sync.Mutex

	team    int
	slot    int
	players map[int]protocol.NetworkPlayer

	checkedLocations map[int64]struct{}
	missingLocations map[int64]struct{}
	itemsReceived    []protocol.NetworkItem
	scoutedLocations map[int64]ScoutedItem

	gameCompleted bool

	deathLinkKnown   bool
	deathLinkEnabled bool

	room RoomMeta
}

// RoomMeta is the server-reported room configuration, kept for console
// display. RoomUpdate patches individual fields.
type RoomMeta struct {
	Version             protocol.Version
	SeedName            string
	Permissions         protocol.Permissions
	HintCost            int
	HintPoints          int
	LocationCheckPoints int
}

// New returns an empty session.
func New() *Session {
	return &Session{
		players:          make(map[int]protocol.NetworkPlayer),
		checkedLocations: make(map[int64]struct{}),
		missingLocations: make(map[int64]struct{}),
		scoutedLocations: make(map[int64]ScoutedItem),
	}
}

// Reset clears every piece of per-seed state. Called once per transport
// open so nothing from a previous room survives into the next one.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.team = 0
	s.slot = 0
	s.players = make(map[int]protocol.NetworkPlayer)
	s.checkedLocations = make(map[int64]struct{})
	s.missingLocations = make(map[int64]struct{})
	s.itemsReceived = nil
	s.scoutedLocations = make(map[int64]ScoutedItem)
	s.gameCompleted = false
	s.deathLinkKnown = false
	s.deathLinkEnabled = false
	s.room = RoomMeta{}
}

// ApplyRoomInfo records the room configuration announced at connect.
func (s *Session) ApplyRoomInfo(cmd *protocol.RoomInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.room = RoomMeta{
		Version:             cmd.Version,
		SeedName:            cmd.SeedName,
		Permissions:         cmd.Permissions,
		HintCost:            cmd.HintCost,
		LocationCheckPoints: cmd.LocationCheckPoints,
	}
}

// ApplyRoomUpdate patches the fields the update names and leaves the
// rest untouched.
func (s *Session) ApplyRoomUpdate(cmd *protocol.RoomUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cmd.Version != nil {
		s.room.Version = *cmd.Version
	}
	if cmd.HintCost != nil {
		s.room.HintCost = *cmd.HintCost
	}
	if cmd.HintPoints != nil {
		s.room.HintPoints = *cmd.HintPoints
	}
	if cmd.LocationCheckPoints != nil {
		s.room.LocationCheckPoints = *cmd.LocationCheckPoints
	}
}

// Room returns the current room configuration.
func (s *Session) Room() RoomMeta {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.room
}

// ApplyConnected seeds the session from an authentication success. The
// item log is reset because the server will replay the full grant list,
// and a replaced ROM must start from scratch.
func (s *Session) ApplyConnected(cmd *protocol.Connected) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.team = cmd.Team
	s.slot = cmd.Slot
	s.players = make(map[int]protocol.NetworkPlayer, len(cmd.Players))
	for _, player := range cmd.Players {
		s.players[player.Slot] = player
	}

	s.checkedLocations = make(map[int64]struct{}, len(cmd.CheckedLocations))
	for _, id := range cmd.CheckedLocations {
		s.checkedLocations[id] = struct{}{}
	}
	s.missingLocations = make(map[int64]struct{}, len(cmd.MissingLocations))
	for _, id := range cmd.MissingLocations {
		s.missingLocations[id] = struct{}{}
	}

	s.itemsReceived = nil
}

// Team returns the local player's team.
func (s *Session) Team() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.team
}

// Slot returns the local player's slot.
func (s *Session) Slot() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.slot
}

// PlayerAlias returns the display alias for a slot, or the empty string
// when the roster does not know it.
func (s *Session) PlayerAlias(slot int) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if player, ok := s.players[slot]; ok {
		if player.Alias != "" {
			return player.Alias
		}
		return player.Name
	}
	return ""
}

// LocationTotal returns the combined checked+missing location count
// reported at connect time.
func (s *Session) LocationTotal() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.checkedLocations) + len(s.missingLocations)
}

// AddItems appends grants to the received-item log in arrival order.
// Entries matching an existing {item, location, player} triple are
// dropped, except synthetic grants (location <= 0) which always append.
// It returns how many entries were appended.
func (s *Session) AddItems(items []protocol.NetworkItem) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	added := 0
	for _, item := range items {
		if item.Location > 0 && s.hasItemLocked(item) {
			continue
		}
		s.itemsReceived = append(s.itemsReceived, item)
		added++
	}
	return added
}

func (s *Session) hasItemLocked(item protocol.NetworkItem) bool {
	for _, existing := range s.itemsReceived {
		if existing.Item == item.Item && existing.Location == item.Location && existing.Player == item.Player {
			return true
		}
	}
	return false
}

// ItemCount returns the length of the received-item log.
func (s *Session) ItemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.itemsReceived)
}

// ItemAt returns the log entry at the given delivery index.
func (s *Session) ItemAt(index int) (protocol.NetworkItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.itemsReceived) {
		return protocol.NetworkItem{}, false
	}
	return s.itemsReceived[index], true
}

// Items returns a copy of the received-item log.
func (s *Session) Items() []protocol.NetworkItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]protocol.NetworkItem(nil), s.itemsReceived...)
}

// IsChecked reports whether a location has already been checked.
func (s *Session) IsChecked(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.checkedLocations[id]
	return ok
}

// MarkChecked records location checks and returns the ids that were not
// already present, preserving input order. Ids already checked are
// silently absorbed.
func (s *Session) MarkChecked(ids []int64) []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var fresh []int64
	for _, id := range ids {
		if _, ok := s.checkedLocations[id]; ok {
			continue
		}
		s.checkedLocations[id] = struct{}{}
		fresh = append(fresh, id)
	}
	return fresh
}

// CheckedLocations returns a copy of the checked-location set.
func (s *Session) CheckedLocations() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int64, 0, len(s.checkedLocations))
	for id := range s.checkedLocations {
		ids = append(ids, id)
	}
	return ids
}

// ScoutReply returns the cached scout result for a location.
func (s *Session) ScoutReply(location int64) (ScoutedItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	reply, ok := s.scoutedLocations[location]
	return reply, ok
}

// CacheScout stores a scout confirmation. The cache only grows; a
// repeated confirmation for the same location is ignored.
func (s *Session) CacheScout(location int64, reply ScoutedItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.scoutedLocations[location]; ok {
		return
	}
	s.scoutedLocations[location] = reply
}

// CompleteGame flips the completion flag and reports whether this call
// was the transition, so the goal status update is sent exactly once.
func (s *Session) CompleteGame() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gameCompleted {
		return false
	}
	s.gameCompleted = true
	return true
}

// GameCompleted reports whether the goal status has been sent.
func (s *Session) GameCompleted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gameCompleted
}

// DeathLink returns the cached death-synchronization flag. The second
// return is false until SetDeathLink has recorded the console's answer.
func (s *Session) DeathLink() (enabled, known bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deathLinkEnabled, s.deathLinkKnown
}

// SetDeathLink caches the death-synchronization flag for the session.
func (s *Session) SetDeathLink(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deathLinkEnabled = enabled
	s.deathLinkKnown = true
}
