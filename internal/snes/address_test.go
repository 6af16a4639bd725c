package snes

import "testing"

func TestTranslateAddressFxPakProPassthrough(t *testing.T) {
	got, err := TranslateAddress(WRAMStart+0xF36D, SpaceFxPakPro, MapLoROM)
	if err != nil {
		t.Fatalf("TranslateAddress: %v", err)
	}
	if got != WRAMStart+0xF36D {
		t.Fatalf("expected passthrough, got %#x", got)
	}
}

func TestTranslateAddressBus(t *testing.T) {
	cases := []struct {
		name    string
		flat    uint32
		mapping MemoryMap
		want    uint32
	}{
		{"wram start", WRAMStart, MapLoROM, 0x7E0000},
		{"wram upper bank", WRAMStart + 0x1F36D, MapLoROM, 0x7FF36D},
		{"lorom rom first bank", ROMStart + 0x7FC0, MapLoROM, 0x80FFC0},
		{"lorom rom second bank", ROMStart + 0x8000, MapLoROM, 0x818000},
		{"hirom rom", ROMStart + 0x123456, MapHiROM, 0xD23456},
		{"exhirom low half", ROMStart + 0x123456, MapExHiROM, 0xD23456},
		{"exhirom high half", ROMStart + 0x410000, MapExHiROM, 0x410000},
		{"lorom sram", SRAMStart + 0x100, MapLoROM, 0x700100},
		{"lorom sram second bank", SRAMStart + 0x8000, MapLoROM, 0x710000},
		{"hirom sram", SRAMStart + 0x2000, MapHiROM, 0xA16000},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := TranslateAddress(tc.flat, SpaceBus, tc.mapping)
			if err != nil {
				t.Fatalf("TranslateAddress(%#x): %v", tc.flat, err)
			}
			if got != tc.want {
				t.Fatalf("TranslateAddress(%#x) = %#x, want %#x", tc.flat, got, tc.want)
			}
		})
	}
}

func TestTranslateAddressRejectsOutOfRange(t *testing.T) {
	if _, err := TranslateAddress(0xF70000, SpaceBus, MapLoROM); err == nil {
		t.Fatalf("expected error above wram range")
	}
	if _, err := TranslateAddress(ROMStart+0x400000, SpaceBus, MapLoROM); err == nil {
		t.Fatalf("expected error for rom past lorom capacity")
	}
}

func TestParseAddressSpaceAndMemoryMap(t *testing.T) {
	if s, err := ParseAddressSpace("fxpakpro"); err != nil || s != SpaceFxPakPro {
		t.Fatalf("ParseAddressSpace(fxpakpro) = %v, %v", s, err)
	}
	if s, err := ParseAddressSpace("bus"); err != nil || s != SpaceBus {
		t.Fatalf("ParseAddressSpace(bus) = %v, %v", s, err)
	}
	if _, err := ParseAddressSpace("banana"); err == nil {
		t.Fatalf("expected error for unknown space")
	}
	if m, err := ParseMemoryMap("exhirom"); err != nil || m != MapExHiROM {
		t.Fatalf("ParseMemoryMap(exhirom) = %v, %v", m, err)
	}
	if _, err := ParseMemoryMap("bsx"); err == nil {
		t.Fatalf("expected error for unsupported map")
	}
}
