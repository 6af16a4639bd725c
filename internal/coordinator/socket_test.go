package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"snesclient/internal/datapkg"
	"snesclient/internal/games"
	"snesclient/internal/protocol"
	"snesclient/internal/session"
)

// fakeRoomServer accepts coordination sockets and records every inbound
// frame, tagged by command, so tests can assert on what the client sent.
type fakeRoomServer struct {
	t        *testing.T
	upgrader websocket.Upgrader
	server   *httptest.Server

	mu       sync.Mutex
	conns    []*websocket.Conn
	received []protocol.Envelope
	dials    int32
}

func newFakeRoomServer(t *testing.T) *fakeRoomServer {
	f := &fakeRoomServer{t: t}
	f.server = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeRoomServer) address() string {
	return strings.TrimPrefix(f.server.URL, "http://")
}

func (f *fakeRoomServer) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	atomic.AddInt32(&f.dials, 1)
	f.mu.Lock()
	f.conns = append(f.conns, conn)
	f.mu.Unlock()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		envelopes, err := protocol.DecodeBatch(data)
		if err != nil {
			f.t.Errorf("bad frame from client: %v", err)
			continue
		}
		f.mu.Lock()
		f.received = append(f.received, envelopes...)
		f.mu.Unlock()
	}
}

func (f *fakeRoomServer) dialCount() int {
	return int(atomic.LoadInt32(&f.dials))
}

func (f *fakeRoomServer) send(t *testing.T, commands ...any) {
	t.Helper()
	data, err := protocol.EncodeBatch(commands...)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.conns) == 0 {
		t.Fatalf("no client connected")
	}
	conn := f.conns[len(f.conns)-1]
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func (f *fakeRoomServer) closeClients() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, conn := range f.conns {
		conn.Close()
	}
}

// waitFor polls until the condition holds or two seconds pass.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func (f *fakeRoomServer) commandsSent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.received))
	for i, env := range f.received {
		out[i] = env.Cmd
	}
	return out
}

func (f *fakeRoomServer) sawCommand(cmd string) bool {
	for _, got := range f.commandsSent() {
		if got == cmd {
			return true
		}
	}
	return false
}

type stubAdapter struct {
	games.NopHooks

	mu            sync.Mutex
	authErr       error
	authCalls     int
	receivedHooks []int
	sess          *session.Session
	hookItemCount int
}

func (a *stubAdapter) GameName() string { return "Testgame" }

func (a *stubAdapter) Authenticate(ctx context.Context, slotName, password string) (protocol.Connect, error) {
	a.mu.Lock()
	a.authCalls++
	err := a.authErr
	a.mu.Unlock()
	if err != nil {
		return protocol.Connect{}, err
	}
	return protocol.Connect{
		Cmd:      protocol.CmdConnect,
		Game:     "Testgame",
		Name:     slotName,
		Password: password,
		Version:  protocol.ProtocolVersion,
	}, nil
}

func (a *stubAdapter) HandleReceivedItems(ctx context.Context, cmd *protocol.ReceivedItems) {
	a.mu.Lock()
	defer a.mu.Unlock()
	// Core state must be mutated before this hook runs.
	a.hookItemCount = a.sess.ItemCount()
	a.receivedHooks = append(a.receivedHooks, len(cmd.Items))
}

func (a *stubAdapter) RunReconciliationPass(context.Context) error { return nil }
func (a *stubAdapter) ItemName(int64) string                       { return "" }
func (a *stubAdapter) LocationName(int64) string                   { return "" }
func (a *stubAdapter) DeathLinkEnabled(context.Context) (bool, error) {
	return false, nil
}
func (a *stubAdapter) KillLocalPlayer(context.Context) error         { return nil }
func (a *stubAdapter) LocalPlayerDead(context.Context) (bool, error) { return false, nil }

type socketFixture struct {
	socket  *Socket
	adapter *stubAdapter
	sess    *session.Session
	tables  *datapkg.Tables

	mu     sync.Mutex
	lines  []string
	auths  int
	closed int
	faults []error
	deaths []protocol.DeathLinkData
}

func newSocketFixture(t *testing.T, cfg Config, store *datapkg.Store) *socketFixture {
	t.Helper()
	f := &socketFixture{
		sess:   session.New(),
		tables: datapkg.NewTables(),
	}
	f.adapter = &stubAdapter{sess: f.sess}
	if cfg.SlotName == "" {
		cfg.SlotName = "Player1"
	}
	hooks := Hooks{
		AuthAccepted: func() {
			f.mu.Lock()
			f.auths++
			f.mu.Unlock()
		},
		SocketClosed: func(string) {
			f.mu.Lock()
			f.closed++
			f.mu.Unlock()
		},
		LinkFault: func(err error) {
			f.mu.Lock()
			f.faults = append(f.faults, err)
			f.mu.Unlock()
		},
		DeathLink: func(data protocol.DeathLinkData) {
			f.mu.Lock()
			f.deaths = append(f.deaths, data)
			f.mu.Unlock()
		},
		Print: func(line string) {
			f.mu.Lock()
			f.lines = append(f.lines, line)
			f.mu.Unlock()
		},
	}
	f.socket = New(cfg, f.adapter, f.sess, f.tables, store, nil, hooks)
	t.Cleanup(f.socket.Disconnect)
	return f
}

func (f *socketFixture) authCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.auths
}

func (f *socketFixture) printedLines() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.lines...)
}

// tagged injects the dispatch tag a live server would include; the
// inbound structs on the client side do not carry one themselves.
func tagged(cmd string, v any) map[string]any {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	obj := map[string]any{}
	if err := json.Unmarshal(data, &obj); err != nil {
		panic(err)
	}
	obj["cmd"] = cmd
	return obj
}

func sampleRoomInfo(version int) protocol.RoomInfo {
	return protocol.RoomInfo{
		Version:            protocol.ProtocolVersion,
		DataPackageVersion: version,
		SeedName:           "seed-1",
	}
}

func TestNormalizeAddress(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"example.com", "example.com:38281"},
		{"example.com:12345", "example.com:12345"},
		{"/connect example.com", "example.com:38281"},
		{"ws://example.com:99", "example.com:99"},
		{"  archipelago.gg  ", "archipelago.gg:38281"},
		{"", ""},
		{"/connect", ""},
	}
	for _, tc := range cases {
		if got := NormalizeAddress(tc.in); got != tc.want {
			t.Errorf("NormalizeAddress(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestConnectRequiresDevice(t *testing.T) {
	f := newSocketFixture(t, Config{DeviceBound: func() bool { return false }}, nil)
	err := f.socket.Connect(context.Background(), "localhost:1")
	if err != ErrNoDeviceSelected {
		t.Fatalf("Connect error = %v, want ErrNoDeviceSelected", err)
	}
}

func TestConnectWithEmptyAddressClearsTarget(t *testing.T) {
	f := newSocketFixture(t, Config{}, nil)
	if err := f.socket.Connect(context.Background(), "   "); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if f.socket.State() != StateDisconnected {
		t.Fatalf("state = %v, want disconnected", f.socket.State())
	}
	if f.socket.Address() != "" {
		t.Fatalf("address = %q, want empty", f.socket.Address())
	}
}

func TestRoomInfoTriggersHandshake(t *testing.T) {
	server := newFakeRoomServer(t)
	f := newSocketFixture(t, Config{SlotName: "Alice", Password: "hunter2"}, nil)

	if err := f.socket.Connect(context.Background(), server.address()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	server.send(t, tagged(protocol.CmdRoomInfo, sampleRoomInfo(0)))

	waitFor(t, "handshake", func() bool { return server.sawCommand(protocol.CmdConnect) })
	if !server.sawCommand(protocol.CmdGetDataPackage) {
		t.Fatalf("expected a data package request for an uncacheable room, sent %v", server.commandsSent())
	}

	server.send(t, tagged(protocol.CmdConnected, protocol.Connected{
		Team: 0,
		Slot: 2,
		Players: []protocol.NetworkPlayer{
			{Slot: 2, Name: "Alice"},
		},
	}))
	waitFor(t, "auth accepted", func() bool { return f.authCount() == 1 })
	if f.sess.Slot() != 2 {
		t.Fatalf("session slot = %d, want 2", f.sess.Slot())
	}
}

func TestCachedDataPackageSkipsDownload(t *testing.T) {
	store, err := datapkg.OpenStore(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	defer store.Close()
	cached := &protocol.DataPackageContents{
		Version: 7,
		Games: map[string]protocol.GameData{
			"Testgame": {
				ItemNameToID: map[string]int64{"Sword": 41},
				Version:      7,
			},
		},
	}
	if err := store.SaveDataPackage(cached); err != nil {
		t.Fatalf("SaveDataPackage: %v", err)
	}

	server := newFakeRoomServer(t)
	f := newSocketFixture(t, Config{}, store)
	if err := f.socket.Connect(context.Background(), server.address()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	server.send(t, tagged(protocol.CmdRoomInfo, sampleRoomInfo(7)))

	waitFor(t, "handshake", func() bool { return server.sawCommand(protocol.CmdConnect) })
	if server.sawCommand(protocol.CmdGetDataPackage) {
		t.Fatalf("data package requested despite a matching cache")
	}
	if got := f.tables.ItemName(41); got != "Sword" {
		t.Fatalf("ItemName(41) = %q, want from cache", got)
	}
}

func TestReceivedItemsMutateSessionBeforeHook(t *testing.T) {
	server := newFakeRoomServer(t)
	f := newSocketFixture(t, Config{}, nil)
	if err := f.socket.Connect(context.Background(), server.address()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	server.send(t, tagged(protocol.CmdReceivedItems, protocol.ReceivedItems{
		Index: 0,
		Items: []protocol.NetworkItem{{Item: 41, Location: 1000, Player: 1}},
	}))

	waitFor(t, "item", func() bool { return f.sess.ItemCount() == 1 })
	f.adapter.mu.Lock()
	defer f.adapter.mu.Unlock()
	if f.adapter.hookItemCount != 1 {
		t.Fatalf("hook ran with item count %d, want 1", f.adapter.hookItemCount)
	}
}

func TestScoutRepliesAreCached(t *testing.T) {
	server := newFakeRoomServer(t)
	f := newSocketFixture(t, Config{}, nil)
	if err := f.socket.Connect(context.Background(), server.address()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	server.send(t, tagged(protocol.CmdLocationInfo, protocol.LocationInfo{
		Locations: []protocol.NetworkItem{{Item: 90, Location: 1000, Player: 3}},
	}))

	waitFor(t, "scout cache", func() bool {
		_, ok := f.sess.ScoutReply(1000)
		return ok
	})
	reply, _ := f.sess.ScoutReply(1000)
	if reply.Item != 90 || reply.Player != 3 {
		t.Fatalf("scout reply = %+v", reply)
	}
}

func TestRefusalIsTerminal(t *testing.T) {
	server := newFakeRoomServer(t)
	f := newSocketFixture(t, Config{ReconnectDelay: 10 * time.Millisecond}, nil)
	if err := f.socket.Connect(context.Background(), server.address()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	server.send(t, tagged(protocol.CmdConnectionRefused, protocol.ConnectionRefused{Errors: []string{"InvalidPassword"}}))

	waitFor(t, "refused state", func() bool { return f.socket.State() == StateRefused })
	server.closeClients()

	time.Sleep(50 * time.Millisecond)
	if got := server.dialCount(); got != 1 {
		t.Fatalf("dial count after refusal = %d, want 1 (no reconnect)", got)
	}
	found := false
	for _, line := range f.printedLines() {
		if strings.Contains(line, "password") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a password message, got %v", f.printedLines())
	}
}

func TestReconnectStopsAtAttemptCap(t *testing.T) {
	server := newFakeRoomServer(t)
	f := newSocketFixture(t, Config{
		ReconnectDelay:       5 * time.Millisecond,
		MaxReconnectAttempts: 2,
	}, nil)
	if err := f.socket.Connect(context.Background(), server.address()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	// Drop the transport repeatedly; the client retries twice, then quits.
	for i := 0; i < 3; i++ {
		waitFor(t, "dial", func() bool { return server.dialCount() >= i+1 })
		server.closeClients()
	}

	waitFor(t, "give-up message", func() bool {
		for _, line := range f.printedLines() {
			if strings.Contains(line, "Gave up") {
				return true
			}
		}
		return false
	})
	time.Sleep(30 * time.Millisecond)
	if got := server.dialCount(); got != 3 {
		t.Fatalf("dial count = %d, want 3 (1 manual + 2 retries)", got)
	}
}

func TestManualConnectResetsAfterRefusal(t *testing.T) {
	server := newFakeRoomServer(t)
	f := newSocketFixture(t, Config{}, nil)
	if err := f.socket.Connect(context.Background(), server.address()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	server.send(t, tagged(protocol.CmdConnectionRefused, protocol.ConnectionRefused{Errors: []string{"InvalidSlot"}}))
	waitFor(t, "refused state", func() bool { return f.socket.State() == StateRefused })

	if err := f.socket.Connect(context.Background(), server.address()); err != nil {
		t.Fatalf("second Connect: %v", err)
	}
	if f.socket.State() != StateConnected {
		t.Fatalf("state = %v, want connected", f.socket.State())
	}
}

func TestFreshSessionPerTransport(t *testing.T) {
	server := newFakeRoomServer(t)
	f := newSocketFixture(t, Config{}, nil)
	if err := f.socket.Connect(context.Background(), server.address()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	server.send(t, tagged(protocol.CmdReceivedItems, protocol.ReceivedItems{
		Items: []protocol.NetworkItem{{Item: 1, Location: 5, Player: 1}},
	}))
	waitFor(t, "item", func() bool { return f.sess.ItemCount() == 1 })

	if err := f.socket.Connect(context.Background(), server.address()); err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	if f.sess.ItemCount() != 0 {
		t.Fatalf("item log survived a new transport: count = %d", f.sess.ItemCount())
	}
}

func TestDeathBroadcastReachesHook(t *testing.T) {
	server := newFakeRoomServer(t)
	f := newSocketFixture(t, Config{}, nil)
	if err := f.socket.Connect(context.Background(), server.address()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	payload, _ := json.Marshal(protocol.DeathLinkData{Time: 123, Source: "Bob"})
	server.send(t, tagged(protocol.CmdBounced, protocol.Bounced{
		Tags: []string{protocol.DeathLinkTag},
		Data: payload,
	}))

	waitFor(t, "death hook", func() bool {
		f.mu.Lock()
		defer f.mu.Unlock()
		return len(f.deaths) == 1
	})
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deaths[0].Source != "Bob" {
		t.Fatalf("death source = %q, want Bob", f.deaths[0].Source)
	}
}

func TestUnknownCommandsAreIgnored(t *testing.T) {
	server := newFakeRoomServer(t)
	f := newSocketFixture(t, Config{}, nil)
	if err := f.socket.Connect(context.Background(), server.address()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	server.send(t, map[string]any{"cmd": "FutureCommand", "payload": 1})
	server.send(t, tagged(protocol.CmdPrint, protocol.Print{Text: "still alive"}))

	waitFor(t, "print after unknown", func() bool {
		for _, line := range f.printedLines() {
			if line == "still alive" {
				return true
			}
		}
		return false
	})
}

func TestAuthAbortRaisesLinkFault(t *testing.T) {
	server := newFakeRoomServer(t)
	f := newSocketFixture(t, Config{ReconnectDelay: 10 * time.Millisecond}, nil)
	f.adapter.authErr = errors.New("cart read failed")

	if err := f.socket.Connect(context.Background(), server.address()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	server.send(t, tagged(protocol.CmdRoomInfo, sampleRoomInfo(0)))

	waitFor(t, "link fault", func() bool {
		f.mu.Lock()
		defer f.mu.Unlock()
		return len(f.faults) == 1
	})

	// The socket must not retry on its own; relinking is the owner's job.
	time.Sleep(50 * time.Millisecond)
	if got := server.dialCount(); got != 1 {
		t.Fatalf("dial count after auth abort = %d, want 1", got)
	}
	if f.socket.State() == StateConnected {
		t.Fatalf("socket still reports connected after auth abort")
	}
}

func TestSendWhileDisconnected(t *testing.T) {
	f := newSocketFixture(t, Config{}, nil)
	err := f.socket.Send(context.Background(), protocol.Sync{Cmd: protocol.CmdSync})
	if err != ErrNotConnected {
		t.Fatalf("Send error = %v, want ErrNotConnected", err)
	}
}
