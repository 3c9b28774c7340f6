// Package layout defines the binary contract of the telemetry region shared
// between the producer and the consumer.
//
// The region is a single packed, little-endian block. Nothing in it carries a
// version, so the offsets computed here are ABI: changing any field order or
// width requires rebuilding both processes.
//
// All access goes through explicit offset-based encode and decode routines;
// no Go struct is ever overlaid on the shared bytes.
package layout

import (
	"encoding/binary"
	"fmt"
)

const (
	// RegionSize is the fixed size of the backing object.
	RegionSize = 1 << 20

	// DefaultName is the well-known object name the producer creates.
	DefaultName = "apex_dma_shared"

	// MaxPlayers is the capacity of the player array.
	MaxPlayers = 100
	// MaxSpectators is the capacity of the spectator array.
	MaxSpectators = 100

	// NameSize is the width of a spectator name buffer.
	NameSize = 64

	// SettingsSize is the packed size of the settings block.
	SettingsSize = 8 + 4*4 + 9*4
	// PlayerSize is the packed size of one player record.
	PlayerSize = 4*4 + 3*4 + 4 + 2
	// SpectatorSize is the packed size of one spectator record.
	SpectatorSize = NameSize
)

// ByteOrder is the byte order of every multi-byte field in the region.
var ByteOrder = binary.LittleEndian

// WordSize is the width in bytes of the platform-word counters
// (player_count and spectator_list_count).
//
// The producer declares them as size_t, so their width follows whatever the
// producer was compiled for. It is never taken from the consumer's host.
type WordSize int

const (
	Word32 WordSize = 4
	Word64 WordSize = 8
)

// Layout holds every offset of the region for a given counter width.
type Layout struct {
	word WordSize

	magicOff          int
	baseOff           int
	spectatorsOff     int
	alliedOff         int
	playerCountOff    int
	spectatorCountOff int

	headerSize       int
	settingsOffset   int
	playersOffset    int
	spectatorsOffset int
	size             int
}

// Default is the layout the x86_64 producer uses.
var Default = MustNew(Word64)

// New computes the layout for counters of the given width.
func New(w WordSize) (Layout, error) {
	if w != Word32 && w != Word64 {
		return Layout{}, fmt.Errorf("layout: unsupported counter width %d", w)
	}
	l := Layout{word: w}
	l.magicOff = 0
	l.baseOff = l.magicOff + 4
	l.spectatorsOff = l.baseOff + 8
	l.alliedOff = l.spectatorsOff + 4
	l.playerCountOff = l.alliedOff + 4
	l.spectatorCountOff = l.playerCountOff + int(w)
	l.headerSize = l.spectatorCountOff + int(w)

	l.settingsOffset = l.headerSize
	l.playersOffset = l.settingsOffset + SettingsSize
	l.spectatorsOffset = l.playersOffset + MaxPlayers*PlayerSize
	l.size = l.spectatorsOffset + MaxSpectators*SpectatorSize
	return l, nil
}

// MustNew is like New but panics on an unsupported width.
func MustNew(w WordSize) Layout {
	l, err := New(w)
	if err != nil {
		panic(err)
	}
	return l
}

// IsZero reports whether l was never initialised with New.
func (l Layout) IsZero() bool { return l.word == 0 }

// WordSize returns the counter width.
func (l Layout) WordSize() WordSize { return l.word }

// HeaderSize returns the size of the header in bytes.
func (l Layout) HeaderSize() int { return l.headerSize }

// SettingsOffset returns the first byte of the settings block.
func (l Layout) SettingsOffset() int { return l.settingsOffset }

// PlayersOffset returns the first byte of the player array.
func (l Layout) PlayersOffset() int { return l.playersOffset }

// SpectatorsOffset returns the first byte of the spectator array.
func (l Layout) SpectatorsOffset() int { return l.spectatorsOffset }

// Size returns the number of bytes the data structures occupy at the start
// of the region. It is always smaller than RegionSize.
func (l Layout) Size() int { return l.size }

// PlayerOffset returns the offset of the i-th player record.
func (l Layout) PlayerOffset(i int) (int, error) {
	if i < 0 || i >= MaxPlayers {
		return 0, fmt.Errorf("layout: player index %d out of range", i)
	}
	return l.playersOffset + i*PlayerSize, nil
}

// SpectatorOffset returns the offset of the i-th spectator record.
func (l Layout) SpectatorOffset(i int) (int, error) {
	if i < 0 || i >= MaxSpectators {
		return 0, fmt.Errorf("layout: spectator index %d out of range", i)
	}
	return l.spectatorsOffset + i*SpectatorSize, nil
}

// Field describes one entry of the offset table.
type Field struct {
	Name   string
	Offset int
	Width  int
}

// Fields returns the offset table of the header, the settings block and the
// two arrays, in region order.
func (l Layout) Fields() []Field {
	so := l.settingsOffset
	fields := []Field{
		{"magic", l.magicOff, 4},
		{"base_address", l.baseOff, 8},
		{"spectator_count", l.spectatorsOff, 4},
		{"allied_spectator_count", l.alliedOff, 4},
		{"player_count", l.playerCountOff, int(l.word)},
		{"spectator_list_count", l.spectatorCountOff, int(l.word)},
	}
	for i, name := range flagNames {
		fields = append(fields, Field{"settings." + name, so + i, 1})
	}
	for i, name := range tuningNames {
		fields = append(fields, Field{"settings." + name, so + offTuning + 4*i, 4})
	}
	for i, name := range glowNames {
		fields = append(fields, Field{"settings." + name, so + offGlow + 4*i, 4})
	}
	fields = append(fields,
		Field{"players", l.playersOffset, MaxPlayers * PlayerSize},
		Field{"spectators_list", l.spectatorsOffset, MaxSpectators * SpectatorSize},
	)
	return fields
}

// offsets inside the settings block
const (
	offTuning = 8
	offGlow   = offTuning + 4*4
)

var flagNames = [8]string{
	"aim_enabled", "esp_enabled", "player_glow_enabled", "aim_no_recoil",
	"aiming", "shooting", "firing_range", "onevone",
}

var tuningNames = [4]string{"max_dist", "smooth", "max_fov", "bone"}

var glowNames = [9]string{
	"glow_r", "glow_g", "glow_b",
	"glow_r_visible", "glow_g_visible", "glow_b_visible",
	"glow_r_knocked", "glow_g_knocked", "glow_b_knocked",
}
