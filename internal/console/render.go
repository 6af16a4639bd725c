package console

import (
	"strconv"
	"strings"

	"snesclient/internal/protocol"
	"snesclient/internal/session"
)

// NameSource resolves item and location ids to display names. The game
// adapter satisfies this.
type NameSource interface {
	ItemName(id int64) string
	LocationName(id int64) string
}

// RenderParts flattens a formatted print into one line, resolving typed
// segments at render time so late-arriving data packages still apply.
func RenderParts(parts []protocol.TextPart, names NameSource, sess *session.Session) string {
	var b strings.Builder
	for _, part := range parts {
		switch part.Type {
		case "player_id":
			b.WriteString(renderPlayer(part.Text, sess))
		case "item_id":
			b.WriteString(renderID(part.Text, names.ItemName))
		case "location_id":
			b.WriteString(renderID(part.Text, names.LocationName))
		default:
			b.WriteString(part.Text)
		}
	}
	return b.String()
}

func renderPlayer(raw string, sess *session.Session) string {
	slot, err := strconv.Atoi(raw)
	if err != nil || sess == nil {
		return raw
	}
	if alias := sess.PlayerAlias(slot); alias != "" {
		return alias
	}
	return raw
}

func renderID(raw string, lookup func(int64) string) string {
	if lookup == nil {
		return raw
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return raw
	}
	if name := lookup(id); name != "" {
		return name
	}
	return raw
}
