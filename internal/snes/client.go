package snes

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// DefaultServerAddress is where a local device server normally listens.
const DefaultServerAddress = "localhost:23074"

const defaultOpTimeout = 5 * time.Second

// DeviceDescriptor identifies one attachable device reported by the server.
type DeviceDescriptor struct {
	URI      string
	Name     string
	Firmware string
	ROM      string
}

type wireRequest struct {
	Opcode   string   `json:"Opcode"`
	Space    string   `json:"Space"`
	Flags    []string `json:"Flags,omitempty"`
	Operands []string `json:"Operands,omitempty"`
}

type wireReply struct {
	Results []string `json:"Results"`
}

// Client speaks the usb2snes websocket protocol to a local device server.
// Requests and replies are strictly sequential on the wire, so every
// operation holds the client mutex for its full round trip.
type Client struct {
	mu      sync.Mutex
	conn    *websocket.Conn
	space   AddressSpace
	mapping MemoryMap
	bound   bool
	device  DeviceDescriptor
	timeout time.Duration
}

// Dial opens a websocket session to the device server. The returned client
// has no device bound yet.
func Dial(ctx context.Context, address string, space AddressSpace, mapping MemoryMap) (*Client, error) {
	if address == "" {
		address = DefaultServerAddress
	}
	url := address
	if !strings.HasPrefix(url, "ws://") && !strings.HasPrefix(url, "wss://") {
		url = "ws://" + url
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, linkErr("dial", err)
	}
	return &Client{
		conn:    conn,
		space:   space,
		mapping: mapping,
		timeout: defaultOpTimeout,
	}, nil
}

// ListDevices asks the server for its currently attachable devices.
func (c *Client) ListDevices(ctx context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.listDevicesLocked(ctx)
}

func (c *Client) listDevicesLocked(ctx context.Context) ([]string, error) {
	if c.conn == nil {
		return nil, ErrLinkUnavailable
	}
	if err := c.send(ctx, wireRequest{Opcode: "DeviceList", Space: "SNES"}); err != nil {
		return nil, err
	}
	reply, err := c.readReply(ctx)
	if err != nil {
		return nil, err
	}
	return reply.Results, nil
}

// Bind attaches to the device matching uri. An empty uri binds the sole
// listed device and fails when the list holds zero or several entries.
func (c *Client) Bind(ctx context.Context, uri string, clientName string) (DeviceDescriptor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return DeviceDescriptor{}, ErrLinkUnavailable
	}

	listed, err := c.listDevicesLocked(ctx)
	if err != nil {
		return DeviceDescriptor{}, err
	}
	target, err := selectDevice(listed, uri)
	if err != nil {
		return DeviceDescriptor{}, err
	}

	if err := c.send(ctx, wireRequest{Opcode: "Attach", Space: "SNES", Operands: []string{target}}); err != nil {
		return DeviceDescriptor{}, err
	}
	if clientName != "" {
		if err := c.send(ctx, wireRequest{Opcode: "Name", Space: "SNES", Operands: []string{clientName}}); err != nil {
			return DeviceDescriptor{}, err
		}
	}

	if err := c.send(ctx, wireRequest{Opcode: "Info", Space: "SNES"}); err != nil {
		return DeviceDescriptor{}, err
	}
	info, err := c.readReply(ctx)
	if err != nil {
		return DeviceDescriptor{}, err
	}

	desc := DeviceDescriptor{URI: target}
	if len(info.Results) > 0 {
		desc.Firmware = info.Results[0]
	}
	if len(info.Results) > 1 {
		desc.Name = info.Results[1]
	}
	if len(info.Results) > 2 {
		desc.ROM = info.Results[2]
	}
	c.bound = true
	c.device = desc
	return desc, nil
}

func selectDevice(listed []string, uri string) (string, error) {
	if uri == "" {
		switch len(listed) {
		case 0:
			return "", ErrDeviceNotFound
		case 1:
			return listed[0], nil
		default:
			return "", ErrAmbiguousDevice
		}
	}
	matches := 0
	for _, candidate := range listed {
		if candidate == uri {
			matches++
		}
	}
	switch matches {
	case 0:
		return "", fmt.Errorf("%w: %s", ErrDeviceNotFound, uri)
	case 1:
		return uri, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrAmbiguousDevice, uri)
	}
}

// Device returns the bound device descriptor.
func (c *Client) Device() (DeviceDescriptor, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.device, c.bound
}

// ReadMemory fetches length bytes starting at the flat fxpakpro address.
// The server streams the payload as one or more binary frames.
func (c *Client) ReadMemory(ctx context.Context, flat uint32, length int) ([]byte, error) {
	if length <= 0 {
		return nil, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil, ErrLinkUnavailable
	}
	if !c.bound {
		return nil, ErrNotConfigured
	}
	wire, err := TranslateAddress(flat, c.space, c.mapping)
	if err != nil {
		return nil, err
	}

	req := wireRequest{
		Opcode:   "GetAddress",
		Space:    "SNES",
		Operands: []string{hex24(wire), strconv.FormatInt(int64(length), 16)},
	}
	if err := c.send(ctx, req); err != nil {
		return nil, err
	}

	data := make([]byte, 0, length)
	for len(data) < length {
		kind, chunk, err := c.readFrame(ctx)
		if err != nil {
			return nil, err
		}
		if kind != websocket.BinaryMessage {
			return nil, linkErr("read", fmt.Errorf("unexpected text frame during memory read"))
		}
		data = append(data, chunk...)
	}
	if len(data) > length {
		data = data[:length]
	}
	return data, nil
}

// WriteMemory stores data at the flat fxpakpro address.
func (c *Client) WriteMemory(ctx context.Context, flat uint32, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return ErrLinkUnavailable
	}
	if !c.bound {
		return ErrNotConfigured
	}
	wire, err := TranslateAddress(flat, c.space, c.mapping)
	if err != nil {
		return err
	}

	req := wireRequest{
		Opcode:   "PutAddress",
		Space:    "SNES",
		Operands: []string{hex24(wire), strconv.FormatInt(int64(len(data)), 16)},
	}
	if err := c.send(ctx, req); err != nil {
		return err
	}
	c.conn.SetWriteDeadline(c.deadline(ctx))
	if err := c.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return linkErr("write", err)
	}
	return nil
}

// Close tears down the websocket session. The client is unusable afterwards.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	c.bound = false
	return err
}

func (c *Client) send(ctx context.Context, req wireRequest) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("snes: encode %s: %w", req.Opcode, err)
	}
	c.conn.SetWriteDeadline(c.deadline(ctx))
	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return linkErr(req.Opcode, err)
	}
	return nil
}

func (c *Client) readReply(ctx context.Context) (wireReply, error) {
	kind, data, err := c.readFrame(ctx)
	if err != nil {
		return wireReply{}, err
	}
	if kind != websocket.TextMessage {
		return wireReply{}, linkErr("read", fmt.Errorf("unexpected binary frame"))
	}
	var reply wireReply
	if err := json.Unmarshal(data, &reply); err != nil {
		return wireReply{}, linkErr("read", err)
	}
	return reply, nil
}

func (c *Client) readFrame(ctx context.Context) (int, []byte, error) {
	c.conn.SetReadDeadline(c.deadline(ctx))
	kind, data, err := c.conn.ReadMessage()
	if err != nil {
		return 0, nil, linkErr("read", err)
	}
	return kind, data, nil
}

func (c *Client) deadline(ctx context.Context) time.Time {
	if dl, ok := ctx.Deadline(); ok {
		return dl
	}
	return time.Now().Add(c.timeout)
}

func hex24(addr uint32) string {
	return fmt.Sprintf("%06X", addr)
}
