package alttp

import "snesclient/internal/snes"

// Save-file mirror inside WRAM plus the patch-defined mailbox the
// randomized ROM polls for multiworld traffic.
const (
	savedataStart = snes.WRAMStart + 0xF000

	gameModeAddr = snes.WRAMStart + 0x10
	gameOverAddr = savedataStart + 0x443

	healthAddr = snes.WRAMStart + 0xF36D
	damageAddr = snes.WRAMStart + 0x0373

	romNameStart = snes.SRAMStart + 0x2000
	romNameSize  = 0x15

	deathLinkFlagAddr = romNameStart + 0x15

	// The delivered-item index survives client restarts because the ROM
	// owns it. Two bytes, little endian.
	receivedIndexAddr  = savedataStart + 0x4D0
	receivedItemAddr   = savedataStart + 0x4D2
	receivedSenderAddr = savedataStart + 0x4D3
	roomIDAddr         = savedataStart + 0x4D4
	roomDataAddr       = savedataStart + 0x4D6
	scoutSlotAddr      = savedataStart + 0x4D7
	scoutReplyLocAddr  = savedataStart + 0x4D8
	scoutReplyItemAddr = savedataStart + 0x4D9
	scoutReplyPlayAddr = savedataStart + 0x4DA

	shopDataAddr = savedataStart + 0x302
	shopIDBase   = 0x400000

	overworldFlagsAddr = savedataStart + 0x280
	npcFlagsAddr       = savedataStart + 0x410
	miscFlagsAddr      = savedataStart + 0x3C6
)

// Game-mode bytes at WRAM+0x10.
var (
	ingameModes  = []byte{0x07, 0x09, 0x0B}
	endgameModes = []byte{0x19, 0x1A}
	deathModes   = []byte{0x12}
)

func modeIn(mode byte, set []byte) bool {
	for _, m := range set {
		if m == mode {
			return true
		}
	}
	return false
}

// Shop rooms in SRAM-offset order. Each shop holds three purchasable
// slots; the trailing five bytes cover the capacity-upgrade counters.
var shopRooms = []uint16{
	0x0112, // Cave Shop (Dark Death Mountain)
	0x0110, // Red Shield Shop
	0x010F, // Dark Lake Hylia Shop
	0x010F, // Dark World Lumberjack Shop
	0x010F, // Village of Outcasts Shop
	0x010F, // Dark World Potion Shop
	0x00FF, // Light World Death Mountain Shop
	0x011F, // Kakariko Shop
	0x0112, // Cave Shop (Lake Hylia)
	0x0109, // Potion Shop
	0x0115, // Capacity Upgrade
}

var shopScanLength = len(shopRooms)*3 + 5

func isShopRoom(roomID uint16) bool {
	for _, id := range shopRooms {
		if id == roomID {
			return true
		}
	}
	return false
}

// underworldLocations maps location name to {room id, bitmask} within the
// per-room chest/key word of the save mirror.
var underworldLocations = map[string][2]uint16{
	"Blind's Hideout - Top":                         {0x11D, 0x10},
	"Blind's Hideout - Left":                        {0x11D, 0x20},
	"Blind's Hideout - Right":                       {0x11D, 0x40},
	"Blind's Hideout - Far Left":                    {0x11D, 0x80},
	"Blind's Hideout - Far Right":                   {0x11D, 0x100},
	"Secret Passage":                                {0x55, 0x10},
	"Waterfall Fairy - Left":                        {0x114, 0x10},
	"Waterfall Fairy - Right":                       {0x114, 0x20},
	"King's Tomb":                                   {0x113, 0x10},
	"Floodgate Chest":                               {0x10B, 0x10},
	"Link's House":                                  {0x104, 0x10},
	"Kakariko Tavern":                               {0x103, 0x10},
	"Chicken House":                                 {0x108, 0x10},
	"Aginah's Cave":                                 {0x10A, 0x10},
	"Sahasrahla's Hut - Left":                       {0x105, 0x10},
	"Sahasrahla's Hut - Middle":                     {0x105, 0x20},
	"Sahasrahla's Hut - Right":                      {0x105, 0x40},
	"Kakariko Well - Top":                           {0x2F, 0x10},
	"Kakariko Well - Left":                          {0x2F, 0x20},
	"Kakariko Well - Middle":                        {0x2F, 0x40},
	"Kakariko Well - Right":                         {0x2F, 0x80},
	"Kakariko Well - Bottom":                        {0x2F, 0x100},
	"Lost Woods Hideout":                            {0xE1, 0x200},
	"Lumberjack Tree":                               {0xE2, 0x200},
	"Cave 45":                                       {0x11B, 0x400},
	"Graveyard Cave":                                {0x11B, 0x200},
	"Checkerboard Cave":                             {0x126, 0x200},
	"Mini Moldorm Cave - Far Left":                  {0x123, 0x10},
	"Mini Moldorm Cave - Left":                      {0x123, 0x20},
	"Mini Moldorm Cave - Right":                     {0x123, 0x40},
	"Mini Moldorm Cave - Far Right":                 {0x123, 0x80},
	"Mini Moldorm Cave - Generous Guy":              {0x123, 0x400},
	"Ice Rod Cave":                                  {0x120, 0x10},
	"Bonk Rock Cave":                                {0x124, 0x10},
	"Desert Palace - Big Chest":                     {0x73, 0x10},
	"Desert Palace - Torch":                         {0x73, 0x400},
	"Desert Palace - Map Chest":                     {0x74, 0x10},
	"Desert Palace - Compass Chest":                 {0x85, 0x10},
	"Desert Palace - Big Key Chest":                 {0x75, 0x10},
	"Desert Palace - Desert Tiles 1 Pot Key":        {0x63, 0x400},
	"Desert Palace - Beamos Hall Pot Key":           {0x53, 0x400},
	"Desert Palace - Desert Tiles 2 Pot Key":        {0x43, 0x400},
	"Desert Palace - Boss":                          {0x33, 0x800},
	"Eastern Palace - Compass Chest":                {0xA8, 0x10},
	"Eastern Palace - Big Chest":                    {0xA9, 0x10},
	"Eastern Palace - Dark Square Pot Key":          {0xBA, 0x400},
	"Eastern Palace - Dark Eyegore Key Drop":        {0x99, 0x400},
	"Eastern Palace - Cannonball Chest":             {0xB9, 0x10},
	"Eastern Palace - Big Key Chest":                {0xB8, 0x10},
	"Eastern Palace - Map Chest":                    {0xAA, 0x10},
	"Eastern Palace - Boss":                         {0xC8, 0x800},
	"Hyrule Castle - Boomerang Chest":               {0x71, 0x10},
	"Hyrule Castle - Boomerang Guard Key Drop":      {0x71, 0x400},
	"Hyrule Castle - Map Chest":                     {0x72, 0x10},
	"Hyrule Castle - Map Guard Key Drop":            {0x72, 0x400},
	"Hyrule Castle - Zelda's Chest":                 {0x80, 0x10},
	"Hyrule Castle - Big Key Drop":                  {0x80, 0x400},
	"Sewers - Dark Cross":                           {0x32, 0x10},
	"Hyrule Castle - Key Rat Key Drop":              {0x21, 0x400},
	"Sewers - Secret Room - Left":                   {0x11, 0x10},
	"Sewers - Secret Room - Middle":                 {0x11, 0x20},
	"Sewers - Secret Room - Right":                  {0x11, 0x40},
	"Sanctuary":                                     {0x12, 0x10},
	"Castle Tower - Room 03":                        {0xE0, 0x10},
	"Castle Tower - Dark Maze":                      {0xD0, 0x10},
	"Castle Tower - Dark Archer Key Drop":           {0xC0, 0x400},
	"Castle Tower - Circle of Pots Key Drop":        {0xB0, 0x400},
	"Spectacle Rock Cave":                           {0xEA, 0x400},
	"Paradox Cave Lower - Far Left":                 {0xEF, 0x10},
	"Paradox Cave Lower - Left":                     {0xEF, 0x20},
	"Paradox Cave Lower - Right":                    {0xEF, 0x40},
	"Paradox Cave Lower - Far Right":                {0xEF, 0x80},
	"Paradox Cave Lower - Middle":                   {0xEF, 0x100},
	"Paradox Cave Upper - Left":                     {0xFF, 0x10},
	"Paradox Cave Upper - Right":                    {0xFF, 0x20},
	"Spiral Cave":                                   {0xFE, 0x10},
	"Tower of Hera - Basement Cage":                 {0x87, 0x400},
	"Tower of Hera - Map Chest":                     {0x77, 0x10},
	"Tower of Hera - Big Key Chest":                 {0x87, 0x10},
	"Tower of Hera - Compass Chest":                 {0x27, 0x20},
	"Tower of Hera - Big Chest":                     {0x27, 0x10},
	"Tower of Hera - Boss":                          {0x07, 0x800},
	"Hype Cave - Top":                               {0x11E, 0x10},
	"Hype Cave - Middle Right":                      {0x11E, 0x20},
	"Hype Cave - Middle Left":                       {0x11E, 0x40},
	"Hype Cave - Bottom":                            {0x11E, 0x80},
	"Hype Cave - Generous Guy":                      {0x11E, 0x400},
	"Peg Cave":                                      {0x127, 0x400},
	"Pyramid Fairy - Left":                          {0x116, 0x10},
	"Pyramid Fairy - Right":                         {0x116, 0x20},
	"Brewery":                                       {0x106, 0x10},
	"C-Shaped House":                                {0x11C, 0x10},
	"Chest Game":                                    {0x106, 0x400},
	"Mire Shed - Left":                              {0x10D, 0x10},
	"Mire Shed - Right":                             {0x10D, 0x20},
	"Superbunny Cave - Top":                         {0xF8, 0x10},
	"Superbunny Cave - Bottom":                      {0xF8, 0x20},
	"Spike Cave":                                    {0x117, 0x10},
	"Hookshot Cave - Top Right":                     {0x3C, 0x10},
	"Hookshot Cave - Top Left":                      {0x3C, 0x20},
	"Hookshot Cave - Bottom Right":                  {0x3C, 0x80},
	"Hookshot Cave - Bottom Left":                   {0x3C, 0x40},
	"Mimic Cave":                                    {0x10C, 0x10},
	"Swamp Palace - Entrance":                       {0x28, 0x10},
	"Swamp Palace - Map Chest":                      {0x37, 0x10},
	"Swamp Palace - Pot Row Pot Key":                {0x38, 0x400},
	"Swamp Palace - Trench 1 Pot Key":               {0x37, 0x400},
	"Swamp Palace - Hookshot Pot Key":               {0x36, 0x400},
	"Swamp Palace - Big Chest":                      {0x36, 0x10},
	"Swamp Palace - Compass Chest":                  {0x46, 0x10},
	"Swamp Palace - Trench 2 Pot Key":               {0x35, 0x400},
	"Swamp Palace - Big Key Chest":                  {0x35, 0x10},
	"Swamp Palace - West Chest":                     {0x34, 0x10},
	"Swamp Palace - Flooded Room - Left":            {0x76, 0x10},
	"Swamp Palace - Flooded Room - Right":           {0x76, 0x20},
	"Swamp Palace - Waterfall Room":                 {0x66, 0x10},
	"Swamp Palace - Waterway Pot Key":               {0x16, 0x400},
	"Swamp Palace - Boss":                           {0x06, 0x800},
	"Thieves' Town - Big Key Chest":                 {0xDB, 0x20},
	"Thieves' Town - Map Chest":                     {0xDB, 0x10},
	"Thieves' Town - Compass Chest":                 {0xDC, 0x10},
	"Thieves' Town - Ambush Chest":                  {0xCB, 0x10},
	"Thieves' Town - Hallway Pot Key":               {0xBC, 0x400},
	"Thieves' Town - Spike Switch Pot Key":          {0xAB, 0x400},
	"Thieves' Town - Attic":                         {0x65, 0x10},
	"Thieves' Town - Big Chest":                     {0x44, 0x10},
	"Thieves' Town - Blind's Cell":                  {0x45, 0x10},
	"Thieves' Town - Boss":                          {0xAC, 0x800},
	"Skull Woods - Compass Chest":                   {0x67, 0x10},
	"Skull Woods - Map Chest":                       {0x58, 0x20},
	"Skull Woods - Big Chest":                       {0x58, 0x10},
	"Skull Woods - Pot Prison":                      {0x57, 0x20},
	"Skull Woods - Pinball Room":                    {0x68, 0x10},
	"Skull Woods - Big Key Chest":                   {0x57, 0x10},
	"Skull Woods - West Lobby Pot Key":              {0x56, 0x400},
	"Skull Woods - Bridge Room":                     {0x59, 0x10},
	"Skull Woods - Spike Corner Key Drop":           {0x39, 0x400},
	"Skull Woods - Boss":                            {0x29, 0x800},
	"Ice Palace - Jelly Key Drop":                   {0x0E, 0x400},
	"Ice Palace - Compass Chest":                    {0x2E, 0x10},
	"Ice Palace - Conveyor Key Drop":                {0x3E, 0x400},
	"Ice Palace - Freezor Chest":                    {0x7E, 0x10},
	"Ice Palace - Big Chest":                        {0x9E, 0x10},
	"Ice Palace - Iced T Room":                      {0xAE, 0x10},
	"Ice Palace - Many Pots Pot Key":                {0x9F, 0x400},
	"Ice Palace - Spike Room":                       {0x5F, 0x10},
	"Ice Palace - Big Key Chest":                    {0x1F, 0x10},
	"Ice Palace - Hammer Block Key Drop":            {0x3F, 0x400},
	"Ice Palace - Map Chest":                        {0x3F, 0x10},
	"Ice Palace - Boss":                             {0xDE, 0x800},
	"Misery Mire - Big Chest":                       {0xC3, 0x10},
	"Misery Mire - Map Chest":                       {0xC3, 0x20},
	"Misery Mire - Main Lobby":                      {0xC2, 0x10},
	"Misery Mire - Bridge Chest":                    {0xA2, 0x10},
	"Misery Mire - Spikes Pot Key":                  {0xB3, 0x400},
	"Misery Mire - Spike Chest":                     {0xB3, 0x10},
	"Misery Mire - Fishbone Pot Key":                {0xA1, 0x400},
	"Misery Mire - Conveyor Crystal Key Drop":       {0xC1, 0x400},
	"Misery Mire - Compass Chest":                   {0xC1, 0x10},
	"Misery Mire - Big Key Chest":                   {0xD1, 0x10},
	"Misery Mire - Boss":                            {0x90, 0x800},
	"Turtle Rock - Compass Chest":                   {0xD6, 0x10},
	"Turtle Rock - Roller Room - Left":              {0xB7, 0x10},
	"Turtle Rock - Roller Room - Right":             {0xB7, 0x20},
	"Turtle Rock - Pokey 1 Key Drop":                {0xB6, 0x400},
	"Turtle Rock - Chain Chomps":                    {0xB6, 0x10},
	"Turtle Rock - Pokey 2 Key Drop":                {0x13, 0x400},
	"Turtle Rock - Big Key Chest":                   {0x14, 0x10},
	"Turtle Rock - Big Chest":                       {0x24, 0x10},
	"Turtle Rock - Crystaroller Room":               {0x04, 0x10},
	"Turtle Rock - Eye Bridge - Bottom Left":        {0xD5, 0x80},
	"Turtle Rock - Eye Bridge - Bottom Right":       {0xD5, 0x40},
	"Turtle Rock - Eye Bridge - Top Left":           {0xD5, 0x20},
	"Turtle Rock - Eye Bridge - Top Right":          {0xD5, 0x10},
	"Turtle Rock - Boss":                            {0xA4, 0x800},
	"Palace of Darkness - Shooter Room":             {0x09, 0x10},
	"Palace of Darkness - The Arena - Bridge":       {0x2A, 0x20},
	"Palace of Darkness - Stalfos Basement":         {0x0A, 0x10},
	"Palace of Darkness - Big Key Chest":            {0x3A, 0x10},
	"Palace of Darkness - The Arena - Ledge":        {0x2A, 0x10},
	"Palace of Darkness - Map Chest":                {0x2B, 0x10},
	"Palace of Darkness - Compass Chest":            {0x1A, 0x20},
	"Palace of Darkness - Dark Basement - Left":     {0x6A, 0x10},
	"Palace of Darkness - Dark Basement - Right":    {0x6A, 0x20},
	"Palace of Darkness - Dark Maze - Top":          {0x19, 0x10},
	"Palace of Darkness - Dark Maze - Bottom":       {0x19, 0x20},
	"Palace of Darkness - Big Chest":                {0x1A, 0x10},
	"Palace of Darkness - Harmless Hellway":         {0x1A, 0x40},
	"Palace of Darkness - Boss":                     {0x5A, 0x800},
	"Ganons Tower - Conveyor Cross Pot Key":         {0x8B, 0x400},
	"Ganons Tower - Bob's Torch":                    {0x8C, 0x400},
	"Ganons Tower - Hope Room - Left":               {0x8C, 0x20},
	"Ganons Tower - Hope Room - Right":              {0x8C, 0x40},
	"Ganons Tower - Tile Room":                      {0x8D, 0x10},
	"Ganons Tower - Compass Room - Top Left":        {0x9D, 0x10},
	"Ganons Tower - Compass Room - Top Right":       {0x9D, 0x20},
	"Ganons Tower - Compass Room - Bottom Left":     {0x9D, 0x40},
	"Ganons Tower - Compass Room - Bottom Right":    {0x9D, 0x80},
	"Ganons Tower - Conveyor Star Pits Pot Key":     {0x7B, 0x400},
	"Ganons Tower - DMs Room - Top Left":            {0x7B, 0x10},
	"Ganons Tower - DMs Room - Top Right":           {0x7B, 0x20},
	"Ganons Tower - DMs Room - Bottom Left":         {0x7B, 0x40},
	"Ganons Tower - DMs Room - Bottom Right":        {0x7B, 0x80},
	"Ganons Tower - Map Chest":                      {0x8B, 0x10},
	"Ganons Tower - Double Switch Pot Key":          {0x9B, 0x400},
	"Ganons Tower - Firesnake Room":                 {0x7D, 0x10},
	"Ganons Tower - Randomizer Room - Top Left":     {0x7C, 0x10},
	"Ganons Tower - Randomizer Room - Top Right":    {0x7C, 0x20},
	"Ganons Tower - Randomizer Room - Bottom Left":  {0x7C, 0x40},
	"Ganons Tower - Randomizer Room - Bottom Right": {0x7C, 0x80},
	"Ganons Tower - Bob's Chest":                    {0x8C, 0x80},
	"Ganons Tower - Big Chest":                      {0x8C, 0x10},
	"Ganons Tower - Big Key Room - Left":            {0x1C, 0x20},
	"Ganons Tower - Big Key Room - Right":           {0x1C, 0x40},
	"Ganons Tower - Big Key Chest":                  {0x1C, 0x10},
	"Ganons Tower - Mini Helmasaur Room - Left":     {0x3D, 0x10},
	"Ganons Tower - Mini Helmasaur Room - Right":    {0x3D, 0x20},
	"Ganons Tower - Mini Helmasaur Key Drop":        {0x3D, 0x400},
	"Ganons Tower - Pre-Moldorm Chest":              {0x3D, 0x40},
	"Ganons Tower - Validation Chest":               {0x4D, 0x10},
}

// overworldLocations maps location name to its overworld screen id. The
// checked flag is bit 0x40 of the per-screen byte.
var overworldLocations = map[string]uint16{
	"Flute Spot":            0x2A,
	"Sunken Treasure":       0x3B,
	"Zora's Ledge":          0x81,
	"Lake Hylia Island":     0x35,
	"Maze Race":             0x28,
	"Desert Ledge":          0x30,
	"Master Sword Pedestal": 0x80,
	"Spectacle Rock":        0x03,
	"Pyramid":               0x5B,
	"Digging Game":          0x68,
	"Bumper Cave Ledge":     0x4A,
	"Floating Island":       0x05,
}

// npcLocations maps location name to its bit in the 16-bit NPC flag word.
var npcLocations = map[string]uint16{
	"Mushroom":      0x1000,
	"King Zora":     0x0002,
	"Sahasrahla":    0x0010,
	"Blacksmith":    0x0400,
	"Magic Bat":     0x8000,
	"Sick Kid":      0x0004,
	"Library":       0x0080,
	"Potion Shop":   0x2000,
	"Old Man":       0x0001,
	"Ether Tablet":  0x0100,
	"Catfish":       0x0020,
	"Stumpy":        0x0008,
	"Bombos Tablet": 0x0200,
}

// miscLocations maps location name to {flag byte address offset, bitmask}.
var miscLocations = map[string][2]uint16{
	"Bottle Merchant": {0x3C9, 0x02},
	"Purple Chest":    {0x3C9, 0x10},
	"Link's Uncle":    {0x3C6, 0x01},
	"Hobo":            {0x3C9, 0x01},
}
