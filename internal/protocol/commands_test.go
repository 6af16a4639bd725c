package protocol

import (
	"encoding/json"
	"testing"
)

func TestDecodeBatchPreservesOrder(t *testing.T) {
	frame := []byte(`[{"cmd":"RoomInfo","hint_cost":10},{"cmd":"Print","text":"hello"},{"cmd":"FutureThing","x":1}]`)

	envelopes, err := DecodeBatch(frame)
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	if len(envelopes) != 3 {
		t.Fatalf("expected 3 envelopes, got %d", len(envelopes))
	}

	want := []string{CmdRoomInfo, CmdPrint, "FutureThing"}
	for i, tag := range want {
		if envelopes[i].Cmd != tag {
			t.Fatalf("envelope %d: expected cmd %q, got %q", i, tag, envelopes[i].Cmd)
		}
	}

	var print Print
	if err := json.Unmarshal(envelopes[1].Raw, &print); err != nil {
		t.Fatalf("unexpected payload error: %v", err)
	}
	if print.Text != "hello" {
		t.Fatalf("expected print text %q, got %q", "hello", print.Text)
	}
}

func TestDecodeBatchRejectsNonArray(t *testing.T) {
	if _, err := DecodeBatch([]byte(`{"cmd":"RoomInfo"}`)); err == nil {
		t.Fatal("expected error for non-array frame")
	}
}

func TestEncodeBatchFramesCommands(t *testing.T) {
	data, err := EncodeBatch(LocationChecks{Cmd: CmdLocationChecks, Locations: []int64{1, 2, 3}})
	if err != nil {
		t.Fatalf("unexpected encode error: %v", err)
	}

	envelopes, err := DecodeBatch(data)
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	if len(envelopes) != 1 || envelopes[0].Cmd != CmdLocationChecks {
		t.Fatalf("unexpected envelopes: %+v", envelopes)
	}
}

func TestRoomUpdatePartialFields(t *testing.T) {
	var update RoomUpdate
	if err := json.Unmarshal([]byte(`{"cmd":"RoomUpdate","hint_cost":25}`), &update); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if update.HintCost == nil || *update.HintCost != 25 {
		t.Fatalf("expected hint_cost 25, got %+v", update.HintCost)
	}
	if update.Version != nil || update.ForfeitMode != nil {
		t.Fatal("absent fields must stay nil")
	}
}

func TestConnectionRefusedPasswordDetection(t *testing.T) {
	refused := ConnectionRefused{Errors: []string{"InvalidSlot", "InvalidPassword"}}
	if !refused.HasInvalidPassword() {
		t.Fatal("expected InvalidPassword to be detected")
	}
	refused = ConnectionRefused{Errors: []string{"InvalidSlot"}}
	if refused.HasInvalidPassword() {
		t.Fatal("did not expect InvalidPassword")
	}
}

func TestBouncedTagMatching(t *testing.T) {
	bounced := Bounced{Tags: []string{"DeathLink"}}
	if !bounced.HasTag(DeathLinkTag) {
		t.Fatal("expected DeathLink tag match")
	}
	if (&Bounced{}).HasTag(DeathLinkTag) {
		t.Fatal("empty envelope must not match")
	}
}
