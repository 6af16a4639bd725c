package snes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// fakeDeviceServer implements just enough of the device protocol for the
// client tests: one listed device and a flat byte-addressed memory image.
type fakeDeviceServer struct {
	t        *testing.T
	upgrader websocket.Upgrader
	server   *httptest.Server

	mu       sync.Mutex
	devices  []string
	memory   map[uint32]byte
	attached string
	name     string
}

func newFakeDeviceServer(t *testing.T, devices ...string) *fakeDeviceServer {
	f := &fakeDeviceServer{
		t:       t,
		devices: devices,
		memory:  make(map[uint32]byte),
	}
	f.server = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeDeviceServer) address() string {
	return strings.TrimPrefix(f.server.URL, "http://")
}

func (f *fakeDeviceServer) poke(addr uint32, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, b := range data {
		f.memory[addr+uint32(i)] = b
	}
}

func (f *fakeDeviceServer) peek(addr uint32, length int) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]byte, length)
	for i := range out {
		out[i] = f.memory[addr+uint32(i)]
	}
	return out
}

func (f *fakeDeviceServer) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if kind != websocket.TextMessage {
			continue
		}
		var req wireRequest
		if err := json.Unmarshal(data, &req); err != nil {
			f.t.Errorf("bad request frame: %v", err)
			return
		}
		if err := f.dispatch(conn, req); err != nil {
			return
		}
	}
}

func (f *fakeDeviceServer) dispatch(conn *websocket.Conn, req wireRequest) error {
	switch req.Opcode {
	case "DeviceList":
		return conn.WriteJSON(wireReply{Results: f.devices})
	case "Attach":
		f.mu.Lock()
		f.attached = req.Operands[0]
		f.mu.Unlock()
		return nil
	case "Name":
		f.mu.Lock()
		f.name = req.Operands[0]
		f.mu.Unlock()
		return nil
	case "Info":
		return conn.WriteJSON(wireReply{Results: []string{"1.11.0", "SD2SNES", "rom.sfc"}})
	case "GetAddress":
		addr, err := strconv.ParseUint(req.Operands[0], 16, 32)
		if err != nil {
			return err
		}
		length, err := strconv.ParseUint(req.Operands[1], 16, 32)
		if err != nil {
			return err
		}
		return conn.WriteMessage(websocket.BinaryMessage, f.peek(uint32(addr), int(length)))
	case "PutAddress":
		addr, err := strconv.ParseUint(req.Operands[0], 16, 32)
		if err != nil {
			return err
		}
		kind, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if kind != websocket.BinaryMessage {
			f.t.Errorf("expected binary frame after PutAddress")
			return nil
		}
		f.poke(uint32(addr), data)
		return nil
	default:
		f.t.Errorf("unexpected opcode %q", req.Opcode)
		return nil
	}
}

func dialTestClient(t *testing.T, f *fakeDeviceServer) *Client {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	client, err := Dial(ctx, f.address(), SpaceFxPakPro, MapLoROM)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestClientBindSingleDevice(t *testing.T) {
	f := newFakeDeviceServer(t, "SD2SNES COM3")
	client := dialTestClient(t, f)

	desc, err := client.Bind(context.Background(), "", "snesclient")
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if desc.URI != "SD2SNES COM3" {
		t.Fatalf("unexpected uri %q", desc.URI)
	}
	if desc.Firmware != "1.11.0" || desc.Name != "SD2SNES" {
		t.Fatalf("unexpected descriptor %+v", desc)
	}

	f.mu.Lock()
	attached, name := f.attached, f.name
	f.mu.Unlock()
	if attached != "SD2SNES COM3" {
		t.Fatalf("server saw attach %q", attached)
	}
	if name != "snesclient" {
		t.Fatalf("server saw name %q", name)
	}
}

func TestClientBindAmbiguousAndMissing(t *testing.T) {
	f := newFakeDeviceServer(t, "DeviceA", "DeviceB")
	client := dialTestClient(t, f)

	if _, err := client.Bind(context.Background(), "", ""); err != ErrAmbiguousDevice {
		t.Fatalf("expected ErrAmbiguousDevice, got %v", err)
	}
	if _, err := client.Bind(context.Background(), "DeviceC", ""); err == nil {
		t.Fatalf("expected missing-device error")
	}
	if _, err := client.Bind(context.Background(), "DeviceA", ""); err != nil {
		t.Fatalf("Bind by uri: %v", err)
	}
}

func TestClientReadWriteRoundTrip(t *testing.T) {
	f := newFakeDeviceServer(t, "SD2SNES COM3")
	client := dialTestClient(t, f)
	if _, err := client.Bind(context.Background(), "", ""); err != nil {
		t.Fatalf("Bind: %v", err)
	}

	addr := WRAMStart + 0xF000
	if err := client.WriteMemory(context.Background(), addr, []byte{0x07, 0x2A}); err != nil {
		t.Fatalf("WriteMemory: %v", err)
	}
	got, err := client.ReadMemory(context.Background(), addr, 2)
	if err != nil {
		t.Fatalf("ReadMemory: %v", err)
	}
	if got[0] != 0x07 || got[1] != 0x2A {
		t.Fatalf("read back %v", got)
	}
}

func TestClientRequiresBindBeforeMemoryOps(t *testing.T) {
	f := newFakeDeviceServer(t, "SD2SNES COM3")
	client := dialTestClient(t, f)

	if _, err := client.ReadMemory(context.Background(), WRAMStart, 1); err != ErrNotConfigured {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if err := client.WriteMemory(context.Background(), WRAMStart, []byte{1}); err != ErrNotConfigured {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}
