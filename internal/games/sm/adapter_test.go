package sm

import (
	"context"
	"testing"

	"snesclient/internal/datapkg"
	"snesclient/internal/games"
	"snesclient/internal/protocol"
	"snesclient/internal/session"
)

type write struct {
	addr uint32
	data []byte
}

type fakeMemory struct {
	image  map[uint32]byte
	writes []write
}

func newFakeMemory() *fakeMemory {
	return &fakeMemory{image: make(map[uint32]byte)}
}

func (m *fakeMemory) poke(addr uint32, data ...byte) {
	for i, b := range data {
		m.image[addr+uint32(i)] = b
	}
}

func (m *fakeMemory) ReadMemory(_ context.Context, addr uint32, length int) ([]byte, error) {
	out := make([]byte, length)
	for i := range out {
		out[i] = m.image[addr+uint32(i)]
	}
	return out, nil
}

func (m *fakeMemory) WriteMemory(_ context.Context, addr uint32, data []byte) error {
	m.writes = append(m.writes, write{addr: addr, data: append([]byte(nil), data...)})
	m.poke(addr, data...)
	return nil
}

type fakeSender struct {
	sent []any
}

func (s *fakeSender) Send(_ context.Context, commands ...any) error {
	s.sent = append(s.sent, commands...)
	return nil
}

func newTestAdapter(t *testing.T) (*adapter, *fakeMemory, *fakeSender) {
	t.Helper()
	mem := newFakeMemory()
	sender := &fakeSender{}
	rt := &games.Runtime{
		Memory:   mem,
		Sender:   sender,
		Session:  session.New(),
		Tables:   datapkg.NewTables(),
		ClientID: "5678",
	}
	a := New(rt).(*adapter)
	rt.Session.ApplyConnected(&protocol.Connected{Team: 0, Slot: 1})
	return a, mem, sender
}

func TestEndgameSendsGoalOnce(t *testing.T) {
	a, mem, sender := newTestAdapter(t)
	mem.poke(gameModeAddr, 0x26)

	for i := 0; i < 2; i++ {
		if err := a.RunReconciliationPass(context.Background()); err != nil {
			t.Fatalf("pass %d: %v", i, err)
		}
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected one status update, got %d", len(sender.sent))
	}
	status, ok := sender.sent[0].(protocol.StatusUpdate)
	if !ok || status.Status != protocol.StatusGoal {
		t.Fatalf("unexpected command %+v", sender.sent[0])
	}
}

func TestDeathModeBailsEarly(t *testing.T) {
	a, mem, sender := newTestAdapter(t)
	mem.poke(gameModeAddr, 0x15)
	a.rt.Session.AddItems([]protocol.NetworkItem{{Item: itemsBaseID + 1, Location: 1, Player: 2}})

	if err := a.RunReconciliationPass(context.Background()); err != nil {
		t.Fatalf("pass: %v", err)
	}
	if len(mem.writes) != 0 || len(sender.sent) != 0 {
		t.Fatalf("death mode must not touch memory or the socket")
	}
}

func TestCheckArrayDrainedAndIndexAdvanced(t *testing.T) {
	a, mem, sender := newTestAdapter(t)
	mem.poke(gameModeAddr, 0x08)

	// Two entries consumed of four total; entries hold index<<3 in
	// bytes 4-5.
	mem.poke(recvProgressAddr+checkArrayMetaOffset, 2, 0, 4, 0)
	for i, locIndex := range []int{0, 5, 12, 64} {
		addr := recvProgressAddr + checkArrayOffset + uint32(i)*8
		packed := locIndex << 3
		mem.poke(addr+4, byte(packed), byte(packed>>8))
	}

	if err := a.RunReconciliationPass(context.Background()); err != nil {
		t.Fatalf("pass: %v", err)
	}

	var checks []int64
	for _, cmd := range sender.sent {
		if lc, ok := cmd.(protocol.LocationChecks); ok {
			checks = append(checks, lc.Locations...)
		}
	}
	if len(checks) != 2 || checks[0] != locationsBaseID+12 || checks[1] != locationsBaseID+64 {
		t.Fatalf("expected entries 2 and 3 reported, got %v", checks)
	}

	meta, _ := mem.ReadMemory(context.Background(), recvProgressAddr+checkArrayMetaOffset, 2)
	if int(meta[0])|int(meta[1])<<8 != 4 {
		t.Fatalf("consumed index should advance to 4, got %v", meta)
	}
}

func TestAlreadyCheckedEntriesStillAdvanceIndex(t *testing.T) {
	a, mem, sender := newTestAdapter(t)
	mem.poke(gameModeAddr, 0x08)
	a.rt.Session.MarkChecked([]int64{locationsBaseID + 12})

	mem.poke(recvProgressAddr+checkArrayMetaOffset, 0, 0, 1, 0)
	packed := 12 << 3
	mem.poke(recvProgressAddr+checkArrayOffset+4, byte(packed), byte(packed>>8))

	if err := a.RunReconciliationPass(context.Background()); err != nil {
		t.Fatalf("pass: %v", err)
	}
	for _, cmd := range sender.sent {
		if _, ok := cmd.(protocol.LocationChecks); ok {
			t.Fatalf("known check must not be re-reported")
		}
	}
	meta, _ := mem.ReadMemory(context.Background(), recvProgressAddr+checkArrayMetaOffset, 2)
	if int(meta[0])|int(meta[1])<<8 != 1 {
		t.Fatalf("index must advance even when nothing was reported")
	}
}

func TestDeliveryPayloadThenCount(t *testing.T) {
	a, mem, _ := newTestAdapter(t)
	mem.poke(gameModeAddr, 0x08)
	a.rt.Session.AddItems([]protocol.NetworkItem{{Item: itemsBaseID + 7, Location: 100, Player: 3}})

	if err := a.RunReconciliationPass(context.Background()); err != nil {
		t.Fatalf("pass: %v", err)
	}

	if len(mem.writes) != 2 {
		t.Fatalf("expected payload then count, got %v", mem.writes)
	}
	payload := mem.writes[0]
	if payload.addr != recvProgressAddr {
		t.Fatalf("first delivery lands at the queue head, got %#x", payload.addr)
	}
	if payload.data[0] != 3 || payload.data[1] != 0 || payload.data[2] != 7 || payload.data[3] != 0 {
		t.Fatalf("unexpected payload %v", payload.data)
	}
	count := mem.writes[1]
	if count.addr != recvProgressAddr+deliveryCountOffset+2 || count.data[0] != 1 {
		t.Fatalf("count must be written last with value 1, got %+v", count)
	}
}

func TestDeliveryRespectsExistingCount(t *testing.T) {
	a, mem, _ := newTestAdapter(t)
	mem.poke(gameModeAddr, 0x08)
	mem.poke(recvProgressAddr+deliveryCountOffset+2, 1, 0)
	a.rt.Session.AddItems([]protocol.NetworkItem{
		{Item: itemsBaseID + 7, Location: 100, Player: 3},
		{Item: itemsBaseID + 9, Location: 101, Player: 4},
	})

	if err := a.RunReconciliationPass(context.Background()); err != nil {
		t.Fatalf("pass: %v", err)
	}
	payload := mem.writes[0]
	if payload.addr != recvProgressAddr+4 {
		t.Fatalf("second delivery lands at queue slot 1, got %#x", payload.addr)
	}
	if payload.data[2] != 9 {
		t.Fatalf("expected second item delivered, got %v", payload.data)
	}
}

func TestPauseBlocksDeliveryButNotChecks(t *testing.T) {
	a, mem, sender := newTestAdapter(t)
	a.rt.ReceivePaused = func() bool { return true }
	mem.poke(gameModeAddr, 0x08)
	a.rt.Session.AddItems([]protocol.NetworkItem{{Item: itemsBaseID + 7, Location: 100, Player: 3}})

	mem.poke(recvProgressAddr+checkArrayMetaOffset, 0, 0, 1, 0)
	packed := 5 << 3
	mem.poke(recvProgressAddr+checkArrayOffset+4, byte(packed), byte(packed>>8))

	if err := a.RunReconciliationPass(context.Background()); err != nil {
		t.Fatalf("pass: %v", err)
	}
	reported := false
	for _, cmd := range sender.sent {
		if _, ok := cmd.(protocol.LocationChecks); ok {
			reported = true
		}
	}
	if !reported {
		t.Fatalf("pause must not stop check reporting")
	}
	for _, w := range mem.writes {
		if w.addr == recvProgressAddr {
			t.Fatalf("pause must block item delivery")
		}
	}
}

func TestKillLocalPlayerZeroesEnergy(t *testing.T) {
	a, mem, _ := newTestAdapter(t)
	if err := a.KillLocalPlayer(context.Background()); err != nil {
		t.Fatalf("KillLocalPlayer: %v", err)
	}
	if len(mem.writes) != 1 || mem.writes[0].addr != healthAddr {
		t.Fatalf("expected one energy write, got %v", mem.writes)
	}
	if mem.writes[0].data[0] != 0 || mem.writes[0].data[1] != 0 {
		t.Fatalf("energy must be zeroed, got %v", mem.writes[0].data)
	}
}

func TestLocalPlayerDeadTracksMode(t *testing.T) {
	a, mem, _ := newTestAdapter(t)
	for _, mode := range deathModes {
		mem.poke(gameModeAddr, mode)
		dead, err := a.LocalPlayerDead(context.Background())
		if err != nil || !dead {
			t.Fatalf("mode %#x should read as dead (%v, %v)", mode, dead, err)
		}
	}
	mem.poke(gameModeAddr, 0x08)
	dead, err := a.LocalPlayerDead(context.Background())
	if err != nil || dead {
		t.Fatalf("gameplay mode should not read as dead")
	}
}
