// Package protocol defines the multiworld coordination protocol: every
// message on the socket is a JSON array of command objects, each carrying
// a string `cmd` tag that selects its payload shape.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Command tags understood by this client. Tags outside this set are
// ignored on receipt so newer servers remain compatible.
const (
	CmdRoomInfo          = "RoomInfo"
	CmdConnected         = "Connected"
	CmdConnectionRefused = "ConnectionRefused"
	CmdReceivedItems     = "ReceivedItems"
	CmdLocationInfo      = "LocationInfo"
	CmdRoomUpdate        = "RoomUpdate"
	CmdPrint             = "Print"
	CmdPrintJSON         = "PrintJSON"
	CmdDataPackage       = "DataPackage"
	CmdBounced           = "Bounced"

	CmdConnect        = "Connect"
	CmdSay            = "Say"
	CmdLocationChecks = "LocationChecks"
	CmdLocationScouts = "LocationScouts"
	CmdGetDataPackage = "GetDataPackage"
	CmdSync           = "Sync"
	CmdStatusUpdate   = "StatusUpdate"
	CmdBounce         = "Bounce"
)

// ClientStatus is the value carried by a StatusUpdate command.
type ClientStatus int

const (
	StatusUnknown ClientStatus = 0
	StatusReady   ClientStatus = 10
	StatusPlaying ClientStatus = 20
	StatusGoal    ClientStatus = 30
)

// Version identifies a protocol or software revision.
type Version struct {
	Major int    `json:"major"`
	Minor int    `json:"minor"`
	Build int    `json:"build"`
	Class string `json:"class,omitempty"`
}

// ProtocolVersion is the coordination protocol revision this client speaks.
var ProtocolVersion = Version{Major: 0, Minor: 2, Build: 0, Class: "Version"}

// NetworkItem is an {item, location, player} triple. A Location of zero
// or below marks a synthetic grant with no dedup identity.
type NetworkItem struct {
	Item     int64 `json:"item"`
	Location int64 `json:"location"`
	Player   int   `json:"player"`
}

// NetworkPlayer describes one roster entry from the server.
type NetworkPlayer struct {
	Team  int    `json:"team"`
	Slot  int    `json:"slot"`
	Alias string `json:"alias"`
	Name  string `json:"name"`
}

// Permissions reports the room's forfeit/remaining policy flags.
type Permissions struct {
	Forfeit   int `json:"forfeit"`
	Remaining int `json:"remaining"`
}

// PermissionName renders a permission flag the way the server's room
// settings describe it.
func PermissionName(p int) string {
	switch p {
	case 0:
		return "Disabled"
	case 1:
		return "Enabled"
	case 2:
		return "Goal"
	case 6:
		return "Auto"
	case 7:
		return "Enabled + Auto"
	default:
		return "Unknown"
	}
}

// RoomInfo is sent by the server as soon as the transport opens.
type RoomInfo struct {
	Version             Version     `json:"version"`
	Permissions         Permissions `json:"permissions"`
	HintCost            int         `json:"hint_cost"`
	LocationCheckPoints int         `json:"location_check_points"`
	DataPackageVersion  int         `json:"datapackage_version"`
	SeedName            string      `json:"seed_name,omitempty"`
}

// Connected confirms authentication and seeds the session state.
type Connected struct {
	Team             int             `json:"team"`
	Slot             int             `json:"slot"`
	Players          []NetworkPlayer `json:"players"`
	CheckedLocations []int64         `json:"checked_locations"`
	MissingLocations []int64         `json:"missing_locations"`
}

// ConnectionRefused terminates an authentication attempt. The error tag
// "InvalidPassword" distinguishes a credential problem from other causes.
type ConnectionRefused struct {
	Errors []string `json:"errors"`
}

// HasInvalidPassword reports whether the refusal names a password problem.
func (c *ConnectionRefused) HasInvalidPassword() bool {
	for _, tag := range c.Errors {
		if tag == "InvalidPassword" {
			return true
		}
	}
	return false
}

// ReceivedItems notifies the client of item grants in delivery order.
type ReceivedItems struct {
	Index int           `json:"index"`
	Items []NetworkItem `json:"items"`
}

// LocationInfo confirms scouted locations.
type LocationInfo struct {
	Locations []NetworkItem `json:"locations"`
}

// RoomUpdate carries partial updates to RoomInfo fields; absent fields
// are left untouched, so every field is a pointer.
type RoomUpdate struct {
	Version             *Version `json:"version,omitempty"`
	ForfeitMode         *string  `json:"forfeit_mode,omitempty"`
	RemainingMode       *string  `json:"remaining_mode,omitempty"`
	HintCost            *int     `json:"hint_cost,omitempty"`
	LocationCheckPoints *int     `json:"location_check_points,omitempty"`
	HintPoints          *int     `json:"hint_points,omitempty"`
}

// Print carries a plain text line for the console.
type Print struct {
	Text string `json:"text"`
}

// TextPart is one typed segment of a formatted print. Type is empty for
// literal text, or one of "player_id", "item_id", "location_id".
type TextPart struct {
	Type string `json:"type,omitempty"`
	Text string `json:"text"`
}

// PrintJSON carries a formatted console line as typed segments.
type PrintJSON struct {
	Data []TextPart `json:"data"`
}

// GameData is one title's name-to-id tables inside a data package.
type GameData struct {
	ItemNameToID     map[string]int64 `json:"item_name_to_id"`
	LocationNameToID map[string]int64 `json:"location_name_to_id"`
	Version          int              `json:"version"`
}

// DataPackageContents is the full name/id mapping payload. Version 0
// denotes a custom package that must not be cached.
type DataPackageContents struct {
	Version int                 `json:"version"`
	Games   map[string]GameData `json:"games"`
}

// DataPackage delivers updated name/id tables.
type DataPackage struct {
	Data DataPackageContents `json:"data"`
}

// Bounced is the broadcast envelope: opaque payload plus optional tags.
// The tag "DeathLink" routes the payload to death synchronization.
type Bounced struct {
	Tags  []string        `json:"tags,omitempty"`
	Slots []int           `json:"slots,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// HasTag reports whether the envelope carries the given tag.
func (b *Bounced) HasTag(tag string) bool {
	for _, t := range b.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// DeathLinkTag marks a Bounce envelope as a death broadcast.
const DeathLinkTag = "DeathLink"

// DeathLinkData is the payload of a death broadcast.
type DeathLinkData struct {
	Time   float64 `json:"time"`
	Source string  `json:"source"`
	Cause  string  `json:"cause,omitempty"`
}

// Outbound commands. Each embeds its own cmd tag so a slice of them
// marshals directly into a protocol frame.

// Connect is the authentication handshake built by a game adapter.
type Connect struct {
	Cmd      string   `json:"cmd"`
	Game     string   `json:"game"`
	Name     string   `json:"name"`
	UUID     string   `json:"uuid"`
	Tags     []string `json:"tags"`
	Password string   `json:"password"`
	Version  Version  `json:"version"`
}

// Say sends chat text.
type Say struct {
	Cmd  string `json:"cmd"`
	Text string `json:"text"`
}

// LocationChecks reports newly checked location ids.
type LocationChecks struct {
	Cmd       string  `json:"cmd"`
	Locations []int64 `json:"locations"`
}

// LocationScouts asks the server to identify items at locations without
// claiming them.
type LocationScouts struct {
	Cmd       string  `json:"cmd"`
	Locations []int64 `json:"locations"`
}

// GetDataPackage requests the full name/id tables.
type GetDataPackage struct {
	Cmd string `json:"cmd"`
}

// Sync asks the server to resend the full received-item list.
type Sync struct {
	Cmd string `json:"cmd"`
}

// StatusUpdate reports the client's lifecycle status.
type StatusUpdate struct {
	Cmd    string       `json:"cmd"`
	Status ClientStatus `json:"status"`
}

// Bounce is the outbound broadcast envelope, used for keep-alive and
// death broadcasts.
type Bounce struct {
	Cmd   string   `json:"cmd"`
	Slots []int    `json:"slots,omitempty"`
	Tags  []string `json:"tags,omitempty"`
	Data  any      `json:"data,omitempty"`
}

// Envelope is one undecoded inbound command.
type Envelope struct {
	Cmd string
	Raw json.RawMessage
}

type envelopeProbe struct {
	Cmd string `json:"cmd"`
}

// DecodeBatch splits one inbound frame into its ordered command
// envelopes. The frame must be a JSON array of objects.
func DecodeBatch(data []byte) ([]Envelope, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("decode command batch: %w", err)
	}
	envelopes := make([]Envelope, 0, len(raws))
	for i, raw := range raws {
		var probe envelopeProbe
		if err := json.Unmarshal(raw, &probe); err != nil {
			return nil, fmt.Errorf("decode command %d: %w", i, err)
		}
		envelopes = append(envelopes, Envelope{Cmd: probe.Cmd, Raw: raw})
	}
	return envelopes, nil
}

// EncodeBatch frames outbound commands as a JSON array.
func EncodeBatch(commands ...any) ([]byte, error) {
	data, err := json.Marshal(commands)
	if err != nil {
		return nil, fmt.Errorf("encode command batch: %w", err)
	}
	return data, nil
}
