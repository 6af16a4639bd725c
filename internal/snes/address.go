package snes

import "fmt"

// AddressSpace selects how flat client addresses map onto the wire protocol.
type AddressSpace int

const (
	// SpaceFxPakPro lays ROM, SRAM and WRAM out linearly the way the FX Pak
	// Pro firmware exposes them. Client code always computes addresses in
	// this space.
	SpaceFxPakPro AddressSpace = iota
	// SpaceBus addresses the SNES A-bus directly. Flat addresses are
	// translated per the cartridge memory map before hitting the wire.
	SpaceBus
)

// MemoryMap identifies the cartridge wiring used for bus translation.
type MemoryMap int

const (
	MapLoROM MemoryMap = iota
	MapHiROM
	MapExHiROM
)

// Flat-space segment origins. Game code computes every address from these.
const (
	ROMStart  uint32 = 0x000000
	SRAMStart uint32 = 0xE00000
	WRAMStart uint32 = 0xF50000
)

const (
	flatROMEnd  = 0xE00000
	flatSRAMEnd = 0xF50000
	flatWRAMEnd = 0xF70000
)

func ParseAddressSpace(name string) (AddressSpace, error) {
	switch name {
	case "fxpakpro", "":
		return SpaceFxPakPro, nil
	case "bus", "snesabus":
		return SpaceBus, nil
	default:
		return 0, fmt.Errorf("snes: unknown address space %q", name)
	}
}

func ParseMemoryMap(name string) (MemoryMap, error) {
	switch name {
	case "lorom", "":
		return MapLoROM, nil
	case "hirom":
		return MapHiROM, nil
	case "exhirom":
		return MapExHiROM, nil
	default:
		return 0, fmt.Errorf("snes: unknown memory map %q", name)
	}
}

func (s AddressSpace) String() string {
	switch s {
	case SpaceFxPakPro:
		return "fxpakpro"
	case SpaceBus:
		return "bus"
	default:
		return "unknown"
	}
}

func (m MemoryMap) String() string {
	switch m {
	case MapLoROM:
		return "lorom"
	case MapHiROM:
		return "hirom"
	case MapExHiROM:
		return "exhirom"
	default:
		return "unknown"
	}
}

// TranslateAddress converts a flat fxpakpro address into the configured space.
// In fxpakpro space the address passes through untouched. In bus space the
// flat segment (ROM, SRAM or WRAM) is mapped per the cartridge memory map.
func TranslateAddress(flat uint32, space AddressSpace, mapping MemoryMap) (uint32, error) {
	if space == SpaceFxPakPro {
		return flat, nil
	}
	switch {
	case flat < flatROMEnd:
		return romToBus(flat, mapping)
	case flat < flatSRAMEnd:
		return sramToBus(flat-SRAMStart, mapping)
	case flat < flatWRAMEnd:
		return 0x7E0000 + (flat - WRAMStart), nil
	default:
		return 0, fmt.Errorf("snes: flat address %#x outside addressable range", flat)
	}
}

func romToBus(offset uint32, mapping MemoryMap) (uint32, error) {
	switch mapping {
	case MapLoROM:
		if offset >= 0x400000 {
			return 0, fmt.Errorf("snes: rom offset %#x exceeds lorom capacity", offset)
		}
		bank := 0x80 + offset/0x8000
		return bank<<16 | (0x8000 + offset%0x8000), nil
	case MapHiROM:
		if offset >= 0x400000 {
			return 0, fmt.Errorf("snes: rom offset %#x exceeds hirom capacity", offset)
		}
		bank := 0xC0 + offset/0x10000
		return bank<<16 | offset%0x10000, nil
	case MapExHiROM:
		if offset < 0x400000 {
			bank := 0xC0 + offset/0x10000
			return bank<<16 | offset%0x10000, nil
		}
		if offset >= 0x7E0000 {
			return 0, fmt.Errorf("snes: rom offset %#x exceeds exhirom capacity", offset)
		}
		bank := 0x40 + (offset-0x400000)/0x10000
		return bank<<16 | offset%0x10000, nil
	default:
		return 0, fmt.Errorf("snes: unknown memory map %d", mapping)
	}
}

func sramToBus(offset uint32, mapping MemoryMap) (uint32, error) {
	switch mapping {
	case MapLoROM:
		bank := 0x70 + offset/0x8000
		if bank > 0x7D {
			return 0, fmt.Errorf("snes: sram offset %#x exceeds lorom sram range", offset)
		}
		return bank<<16 | offset%0x8000, nil
	case MapHiROM, MapExHiROM:
		bank := 0xA0 + offset/0x2000
		if bank > 0xBF {
			return 0, fmt.Errorf("snes: sram offset %#x exceeds hirom sram range", offset)
		}
		return bank<<16 | (0x6000 + offset%0x2000), nil
	default:
		return 0, fmt.Errorf("snes: unknown memory map %d", mapping)
	}
}
