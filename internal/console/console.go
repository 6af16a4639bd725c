// Package console implements the user-facing text surface: output lines,
// formatted-print rendering and the slash-command interpreter.
package console

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"snesclient/internal/protocol"
	"snesclient/internal/session"
)

const historyLimit = 10

// Actions are the operations the interpreter can trigger. Any nil field
// turns its command into a printed error instead of a crash.
type Actions struct {
	Connect     func(ctx context.Context, address string) error
	Send        func(ctx context.Context, commands ...any) error
	RequestSync func(ctx context.Context) error
	TogglePause func() bool
	Names       NameSource
	Session     *session.Session
}

// Console buffers output lines and interprets user input.
type Console struct {
	mu      sync.Mutex
	actions Actions
	out     func(line string)
	history []string
}

func New(actions Actions, out func(line string)) *Console {
	if out == nil {
		out = func(string) {}
	}
	return &Console{actions: actions, out: out}
}

// Append writes one line to the console output.
func (c *Console) Append(line string) {
	c.out(line)
}

// History returns the most recent inputs, newest last.
func (c *Console) History() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.history...)
}

func (c *Console) remember(line string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = append(c.history, line)
	if len(c.history) > historyLimit {
		c.history = c.history[len(c.history)-historyLimit:]
	}
}

// HandleInput runs one line of user input: slash commands are interpreted
// locally, everything else goes upstream as chat.
func (c *Console) HandleInput(ctx context.Context, line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	c.remember(line)

	if !strings.HasPrefix(line, "/") {
		c.say(ctx, line)
		return
	}

	command, rest, _ := strings.Cut(line, " ")
	switch command {
	case "/connect":
		c.connect(ctx, strings.TrimSpace(rest))
	case "/sync":
		c.requestSync(ctx)
	case "/locations":
		c.listLocations()
	case "/room":
		c.printRoom()
	case "/pause":
		c.togglePause()
	case "/help":
		c.printHelp()
	default:
		c.Append(fmt.Sprintf("Unknown command: %s (try /help)", command))
	}
}

func (c *Console) say(ctx context.Context, text string) {
	if c.actions.Send == nil {
		c.Append("Not connected.")
		return
	}
	if err := c.actions.Send(ctx, protocol.Say{Cmd: protocol.CmdSay, Text: text}); err != nil {
		c.Append(fmt.Sprintf("Could not send chat: %v", err))
	}
}

func (c *Console) connect(ctx context.Context, address string) {
	if c.actions.Connect == nil {
		c.Append("Connecting is not available.")
		return
	}
	if err := c.actions.Connect(ctx, address); err != nil {
		c.Append(fmt.Sprintf("Connection failed: %v", err))
	}
}

func (c *Console) requestSync(ctx context.Context) {
	if c.actions.RequestSync == nil {
		c.Append("Not connected.")
		return
	}
	if err := c.actions.RequestSync(ctx); err != nil {
		c.Append(fmt.Sprintf("Sync request failed: %v", err))
	}
}

func (c *Console) listLocations() {
	if c.actions.Session == nil {
		c.Append("No active session.")
		return
	}
	checked := c.actions.Session.CheckedLocations()
	if len(checked) == 0 {
		c.Append("No locations have been checked yet.")
		return
	}
	c.Append("The following locations have been checked:")
	for _, id := range checked {
		name := ""
		if c.actions.Names != nil {
			name = c.actions.Names.LocationName(id)
		}
		if name == "" {
			name = fmt.Sprintf("Location %d", id)
		}
		c.Append(name)
	}
}

func (c *Console) printRoom() {
	if c.actions.Session == nil {
		c.Append("No active session.")
		return
	}
	room := c.actions.Session.Room()
	if room.SeedName == "" {
		c.Append("Not connected to a room yet.")
		return
	}
	c.Append(fmt.Sprintf("Seed: %s (server %d.%d.%d)",
		room.SeedName, room.Version.Major, room.Version.Minor, room.Version.Build))
	c.Append(fmt.Sprintf("Hints cost %d check points; you have %d.",
		room.HintCost, room.HintPoints))
	c.Append(fmt.Sprintf("Forfeit: %s. Remaining: %s.",
		protocol.PermissionName(room.Permissions.Forfeit),
		protocol.PermissionName(room.Permissions.Remaining)))
}

func (c *Console) togglePause() {
	if c.actions.TogglePause == nil {
		c.Append("Pausing is not available.")
		return
	}
	if c.actions.TogglePause() {
		c.Append("Item delivery paused.")
	} else {
		c.Append("Item delivery resumed.")
	}
}

func (c *Console) printHelp() {
	c.Append("/connect <address> - connect to a multiworld server")
	c.Append("/sync - request a full item resync")
	c.Append("/locations - list checked locations")
	c.Append("/room - show the room settings")
	c.Append("/pause - toggle item delivery")
	c.Append("/help - show this message")
	c.Append("Anything else is sent as chat.")
}
