// Package coordinator owns the websocket link to the multiworld server:
// dialing, the command dispatch loop, authentication, and the bounded
// automatic reconnect policy.
package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"snesclient/internal/console"
	"snesclient/internal/datapkg"
	"snesclient/internal/games"
	"snesclient/internal/protocol"
	"snesclient/internal/session"
	"snesclient/logging"
	"snesclient/logging/network"
)

// DefaultPort is appended to a server address given without one.
const DefaultPort = "38281"

// ErrNoDeviceSelected is returned when a connect is attempted before a
// console device is bound.
var ErrNoDeviceSelected = errors.New("coordinator: no device selected")

// ErrNotConnected is returned by Send while the socket is down.
var ErrNotConnected = errors.New("coordinator: not connected")

// State is the socket lifecycle phase.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	// StateRefused is terminal until the user starts a new connect.
	StateRefused
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateRefused:
		return "refused"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Hooks are the outward notifications the socket raises. All fields are
// optional. Hooks run on the read loop goroutine, so they must not block.
type Hooks struct {
	// AuthAccepted fires after the server confirms the slot handshake.
	AuthAccepted func()
	// SocketClosed fires once per transport teardown.
	SocketClosed func(reason string)
	// LinkFault fires when the handshake aborts on a device read. The
	// owner decides how to relink; the socket only suppresses its own
	// retries.
	LinkFault func(err error)
	// DeathLink fires for each inbound death broadcast.
	DeathLink func(data protocol.DeathLinkData)
	// Print receives every rendered console line from the server.
	Print func(line string)
}

// Config carries the socket's tunables.
type Config struct {
	SlotName string
	Password string

	ReconnectDelay       time.Duration
	MaxReconnectAttempts int

	// DeviceBound reports whether a console device is currently attached.
	// Connects are refused and reconnects suppressed while it is false.
	DeviceBound func() bool
}

// Socket is the coordination link. One Socket serves the whole process
// lifetime; Connect may be called repeatedly as servers come and go.
type Socket struct {
	cfg     Config
	adapter games.Adapter
	sess    *session.Session
	tables  *datapkg.Tables
	store   *datapkg.Store
	log     logging.Publisher
	hooks   Hooks

	mu            sync.Mutex
	conn          *websocket.Conn
	state         State
	address       string
	attempts      int
	suppressRetry bool
	retryTimer    *time.Timer
	generation    int

	writeMu sync.Mutex
}

// New builds a socket around an authenticated-command adapter. The store
// may be nil; the data package is then fetched fresh on every connect.
func New(cfg Config, adapter games.Adapter, sess *session.Session, tables *datapkg.Tables, store *datapkg.Store, log logging.Publisher, hooks Hooks) *Socket {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 5 * time.Second
	}
	if cfg.MaxReconnectAttempts <= 0 {
		cfg.MaxReconnectAttempts = 10
	}
	return &Socket{
		cfg:     cfg,
		adapter: adapter,
		sess:    sess,
		tables:  tables,
		store:   store,
		log:     log,
		hooks:   hooks,
	}
}

// State reports the current lifecycle phase.
func (s *Socket) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Address reports the normalized target address, empty when cleared.
func (s *Socket) Address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.address
}

// NormalizeAddress turns user input into a dialable websocket URL target.
// A leading "/connect " is stripped and the default port appended when
// the input names none.
func NormalizeAddress(input string) string {
	addr := strings.TrimSpace(input)
	addr = strings.TrimPrefix(addr, "/connect")
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return ""
	}
	addr = strings.TrimPrefix(addr, "ws://")
	addr = strings.TrimPrefix(addr, "wss://")
	if !strings.Contains(addr, ":") {
		addr += ":" + DefaultPort
	}
	return addr
}

// Connect dials the server at address, replacing any live connection.
// An empty address clears the stored target and stops reconnecting.
// Fails with ErrNoDeviceSelected until a console device is bound.
func (s *Socket) Connect(ctx context.Context, address string) error {
	s.mu.Lock()
	s.cancelRetryLocked()

	addr := NormalizeAddress(address)
	if addr == "" {
		s.address = ""
		s.suppressRetry = true
		conn := s.detachConnLocked()
		s.state = StateDisconnected
		s.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return nil
	}

	if s.cfg.DeviceBound != nil && !s.cfg.DeviceBound() {
		s.mu.Unlock()
		return ErrNoDeviceSelected
	}

	old := s.detachConnLocked()
	s.address = addr
	s.state = StateConnecting
	s.suppressRetry = false
	s.mu.Unlock()

	if old != nil {
		old.Close()
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, "ws://"+addr, nil)
	if err != nil {
		s.mu.Lock()
		s.state = StateDisconnected
		s.scheduleRetryLocked()
		s.mu.Unlock()
		return fmt.Errorf("connect %s: %w", addr, err)
	}

	s.mu.Lock()
	s.conn = conn
	s.generation++
	gen := s.generation
	s.state = StateConnected
	s.mu.Unlock()

	// Nothing from an earlier room may survive the new transport.
	s.sess.Reset()

	network.Connected(ctx, s.log, network.ConnectPayload{
		Address: addr,
		Slot:    s.cfg.SlotName,
		Game:    s.adapter.GameName(),
	})

	go s.readLoop(conn, gen)
	return nil
}

// Disconnect closes the socket and suppresses automatic reconnects until
// the next explicit Connect.
func (s *Socket) Disconnect() {
	s.mu.Lock()
	s.cancelRetryLocked()
	s.suppressRetry = true
	conn := s.detachConnLocked()
	if s.state != StateRefused {
		s.state = StateDisconnected
	}
	s.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}

// Send marshals commands into one frame and writes it. Safe to call from
// any goroutine.
func (s *Socket) Send(ctx context.Context, commands ...any) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	data, err := protocol.EncodeBatch(commands...)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetWriteDeadline(deadline)
	} else {
		conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("send frame: %w", err)
	}
	return nil
}

func (s *Socket) readLoop(conn *websocket.Conn, gen int) {
	ctx := context.Background()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			s.handleClose(ctx, gen, err.Error())
			return
		}
		envelopes, err := protocol.DecodeBatch(data)
		if err != nil {
			s.publishWarn(ctx, "dropping malformed frame", err)
			continue
		}
		for i := range envelopes {
			s.dispatch(ctx, &envelopes[i])
		}
	}
}

// dispatch routes one inbound command. Core session mutation always runs
// before the adapter hook sees the command.
func (s *Socket) dispatch(ctx context.Context, env *protocol.Envelope) {
	switch env.Cmd {
	case protocol.CmdRoomInfo:
		var cmd protocol.RoomInfo
		if !s.decode(ctx, env, &cmd) {
			return
		}
		s.sess.ApplyRoomInfo(&cmd)
		s.handleRoomInfo(ctx, &cmd)
		s.adapter.HandleRoomInfo(ctx, &cmd)

	case protocol.CmdConnected:
		var cmd protocol.Connected
		if !s.decode(ctx, env, &cmd) {
			return
		}
		s.sess.ApplyConnected(&cmd)
		s.mu.Lock()
		s.attempts = 0
		s.mu.Unlock()
		s.adapter.HandleConnected(ctx, &cmd)
		if s.hooks.AuthAccepted != nil {
			s.hooks.AuthAccepted()
		}

	case protocol.CmdConnectionRefused:
		var cmd protocol.ConnectionRefused
		if !s.decode(ctx, env, &cmd) {
			return
		}
		s.mu.Lock()
		s.state = StateRefused
		s.suppressRetry = true
		addr := s.address
		s.mu.Unlock()
		network.AuthRefused(ctx, s.log, network.ConnectPayload{
			Address: addr,
			Slot:    s.cfg.SlotName,
			Game:    s.adapter.GameName(),
		}, cmd.Errors)
		s.adapter.HandleConnectionRefused(ctx, &cmd)
		if s.hooks.Print != nil {
			if cmd.HasInvalidPassword() {
				s.hooks.Print("Connection refused: the room password is wrong.")
			} else {
				s.hooks.Print(fmt.Sprintf("Connection refused: %s", strings.Join(cmd.Errors, ", ")))
			}
		}

	case protocol.CmdReceivedItems:
		var cmd protocol.ReceivedItems
		if !s.decode(ctx, env, &cmd) {
			return
		}
		s.sess.AddItems(cmd.Items)
		s.adapter.HandleReceivedItems(ctx, &cmd)

	case protocol.CmdLocationInfo:
		var cmd protocol.LocationInfo
		if !s.decode(ctx, env, &cmd) {
			return
		}
		for _, loc := range cmd.Locations {
			s.sess.CacheScout(loc.Location, session.ScoutedItem{
				Item:   loc.Item,
				Player: loc.Player,
			})
		}
		s.adapter.HandleLocationInfo(ctx, &cmd)

	case protocol.CmdRoomUpdate:
		var cmd protocol.RoomUpdate
		if !s.decode(ctx, env, &cmd) {
			return
		}
		s.sess.ApplyRoomUpdate(&cmd)
		s.adapter.HandleRoomUpdate(ctx, &cmd)

	case protocol.CmdPrint:
		var cmd protocol.Print
		if !s.decode(ctx, env, &cmd) {
			return
		}
		s.adapter.HandlePrint(ctx, &cmd)
		if s.hooks.Print != nil {
			s.hooks.Print(cmd.Text)
		}

	case protocol.CmdPrintJSON:
		var cmd protocol.PrintJSON
		if !s.decode(ctx, env, &cmd) {
			return
		}
		s.adapter.HandlePrintJSON(ctx, &cmd)
		if s.hooks.Print != nil {
			s.hooks.Print(console.RenderParts(cmd.Data, s.adapter, s.sess))
		}

	case protocol.CmdDataPackage:
		var cmd protocol.DataPackage
		if !s.decode(ctx, env, &cmd) {
			return
		}
		s.tables.Apply(&cmd.Data)
		if s.store != nil && cmd.Data.Version != 0 {
			if err := s.store.SaveDataPackage(&cmd.Data); err != nil {
				s.publishWarn(ctx, "caching data package failed", err)
			}
		}
		s.adapter.HandleDataPackage(ctx, &cmd)

	case protocol.CmdBounced:
		var cmd protocol.Bounced
		if !s.decode(ctx, env, &cmd) {
			return
		}
		if cmd.HasTag(protocol.DeathLinkTag) && s.hooks.DeathLink != nil {
			var data protocol.DeathLinkData
			if err := json.Unmarshal(cmd.Data, &data); err == nil {
				s.hooks.DeathLink(data)
			}
		}
		s.adapter.HandleBounced(ctx, &cmd)

	default:
		network.UnknownCommand(ctx, s.log, env.Cmd)
	}
}

// handleRoomInfo resolves the data package, then authenticates. A cached
// package with a matching nonzero version skips the download.
func (s *Socket) handleRoomInfo(ctx context.Context, cmd *protocol.RoomInfo) {
	needPackage := true
	if s.store != nil && cmd.DataPackageVersion != 0 {
		cached, version, ok, err := s.store.CachedDataPackage()
		if err != nil {
			s.publishWarn(ctx, "reading cached data package failed", err)
		} else if ok && version == cmd.DataPackageVersion {
			s.tables.Apply(cached)
			needPackage = false
		}
	}
	if needPackage {
		if err := s.Send(ctx, protocol.GetDataPackage{Cmd: protocol.CmdGetDataPackage}); err != nil {
			s.publishWarn(ctx, "requesting data package failed", err)
		}
	}

	connect, err := s.adapter.Authenticate(ctx, s.cfg.SlotName, s.cfg.Password)
	if err != nil {
		// Reading the cart identity needs the device link. Treat this
		// as a session fault, not a transport retry.
		s.publishWarn(ctx, "authentication aborted", err)
		s.mu.Lock()
		s.suppressRetry = true
		conn := s.detachConnLocked()
		s.state = StateDisconnected
		s.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		if s.hooks.LinkFault != nil {
			s.hooks.LinkFault(err)
		}
		return
	}
	if err := s.Send(ctx, connect); err != nil {
		s.publishWarn(ctx, "sending handshake failed", err)
	}
}

func (s *Socket) handleClose(ctx context.Context, gen int, reason string) {
	s.mu.Lock()
	if gen != s.generation || s.conn == nil {
		// A newer connect already replaced this transport.
		s.mu.Unlock()
		return
	}
	s.conn = nil
	if s.state != StateRefused {
		s.state = StateDisconnected
	}
	addr := s.address
	s.scheduleRetryLocked()
	s.mu.Unlock()

	network.Disconnected(ctx, s.log, addr, reason)
	if s.hooks.SocketClosed != nil {
		s.hooks.SocketClosed(reason)
	}
}

// scheduleRetryLocked queues the next reconnect attempt. Retries stop
// after a refusal, after the user cleared the address, once the device
// link is gone, and at the attempt cap. Caller holds s.mu.
func (s *Socket) scheduleRetryLocked() {
	if s.suppressRetry || s.address == "" {
		return
	}
	if s.cfg.DeviceBound != nil && !s.cfg.DeviceBound() {
		return
	}
	if s.attempts >= s.cfg.MaxReconnectAttempts {
		if s.hooks.Print != nil {
			go s.hooks.Print("Gave up reconnecting. Use /connect to try again.")
		}
		return
	}
	s.attempts++
	attempt := s.attempts
	addr := s.address
	delay := s.cfg.ReconnectDelay

	network.ReconnectScheduled(context.Background(), s.log, network.ReconnectPayload{
		Attempt: attempt,
		Max:     s.cfg.MaxReconnectAttempts,
		DelayMS: delay.Milliseconds(),
		Address: addr,
	})

	s.cancelRetryLocked()
	s.retryTimer = time.AfterFunc(delay, func() {
		s.retryConnect(addr)
	})
}

func (s *Socket) retryConnect(addr string) {
	s.mu.Lock()
	stale := s.address != addr || s.conn != nil
	s.mu.Unlock()
	if stale {
		return
	}
	if err := s.Connect(context.Background(), addr); err != nil && s.hooks.Print != nil {
		s.hooks.Print(fmt.Sprintf("Reconnect failed: %v", err))
	}
}

func (s *Socket) cancelRetryLocked() {
	if s.retryTimer != nil {
		s.retryTimer.Stop()
		s.retryTimer = nil
	}
}

func (s *Socket) detachConnLocked() *websocket.Conn {
	conn := s.conn
	s.conn = nil
	s.generation++
	return conn
}

func (s *Socket) decode(ctx context.Context, env *protocol.Envelope, dst any) bool {
	if err := json.Unmarshal(env.Raw, dst); err != nil {
		s.publishWarn(ctx, fmt.Sprintf("decoding %s failed", env.Cmd), err)
		return false
	}
	return true
}

func (s *Socket) publishWarn(ctx context.Context, msg string, err error) {
	if s.log == nil {
		return
	}
	s.log.Publish(ctx, logging.Event{
		Type:     "network.fault",
		Severity: logging.SeverityWarn,
		Category: logging.CategoryNetwork,
		Source:   "coordinator",
		Message:  fmt.Sprintf("%s: %v", msg, err),
	})
}
