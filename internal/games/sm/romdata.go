package sm

import "snesclient/internal/snes"

// The randomized ROM keeps its multiworld state in cartridge SRAM: an
// array of collected locations the client drains, and a delivery queue
// the client fills.
const (
	gameModeAddr = snes.WRAMStart + 0x0998
	healthAddr   = snes.WRAMStart + 0x09C2

	romNameStart = snes.ROMStart + 0x1C4F00
	romNameSize  = 0x15

	deathLinkFlagAddr = snes.ROMStart + 0x277F04

	recvProgressAddr = snes.SRAMStart + 0x2000

	// Offsets within the progress block.
	deliveryQueueOffset  = 0x000 // 4-byte entries, one per delivered item
	deliveryCountOffset  = 0x600 // count at +2, little endian
	checkArrayMetaOffset = 0x680 // consumed index then length, both 2 bytes
	checkArrayOffset     = 0x700 // 8-byte entries

	locationsBaseID = 82000
	itemsBaseID     = 83000
)

// Game-mode bytes at WRAM+0x0998.
var (
	endgameModes = []byte{0x26, 0x27}
	deathModes   = []byte{0x15, 0x17, 0x18, 0x19, 0x1A}
)

func modeIn(mode byte, set []byte) bool {
	for _, m := range set {
		if m == mode {
			return true
		}
	}
	return false
}
