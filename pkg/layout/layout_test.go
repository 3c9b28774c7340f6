package layout

import (
	"errors"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLayoutMatchesProducerOffsets(t *testing.T) {
	l := Default
	assert.Equal(t, Word64, l.WordSize())
	assert.Equal(t, 36, l.HeaderSize())
	assert.Equal(t, 36, l.SettingsOffset())
	assert.Equal(t, 96, l.PlayersOffset())
	assert.Equal(t, 3496, l.SpectatorsOffset())
	assert.Equal(t, 9896, l.Size())
	assert.Less(t, l.Size(), RegionSize)

	assert.Equal(t, 60, SettingsSize)
	assert.Equal(t, 34, PlayerSize)
	assert.Equal(t, 64, SpectatorSize)
}

func TestWord32LayoutShiftsEverythingAfterCounters(t *testing.T) {
	l, err := New(Word32)
	require.NoError(t, err)
	assert.Equal(t, 28, l.SettingsOffset())
	assert.Equal(t, 88, l.PlayersOffset())
	assert.Equal(t, 3488, l.SpectatorsOffset())
	assert.Equal(t, 9888, l.Size())
}

func TestNewRejectsUnknownWidth(t *testing.T) {
	_, err := New(WordSize(2))
	assert.Error(t, err)
	assert.Panics(t, func() { MustNew(WordSize(16)) })
	assert.True(t, Layout{}.IsZero())
	assert.False(t, Default.IsZero())
}

func TestRecordOffsetsAreBounded(t *testing.T) {
	off, err := Default.PlayerOffset(99)
	require.NoError(t, err)
	assert.Equal(t, 96+99*34, off)
	_, err = Default.PlayerOffset(100)
	assert.Error(t, err)
	_, err = Default.PlayerOffset(-1)
	assert.Error(t, err)

	off, err = Default.SpectatorOffset(0)
	require.NoError(t, err)
	assert.Equal(t, 3496, off)
	_, err = Default.SpectatorOffset(MaxSpectators)
	assert.Error(t, err)
}

func TestFieldsTable(t *testing.T) {
	byName := map[string]Field{}
	for _, f := range Default.Fields() {
		byName[f.Name] = f
	}
	cases := map[string]int{
		"magic":                        0,
		"base_address":                 4,
		"allied_spectator_count":       16,
		"player_count":                 20,
		"spectator_list_count":         28,
		"settings.aim_enabled":         36,
		"settings.player_glow_enabled": 38,
		"settings.onevone":             43,
		"settings.max_dist":            44,
		"settings.smooth":              48,
		"settings.max_fov":             52,
		"settings.bone":                56,
		"settings.glow_r":              60,
		"settings.glow_r_visible":      72,
		"settings.glow_b_knocked":      92,
		"players":                      96,
		"spectators_list":              3496,
	}
	for name, off := range cases {
		f, ok := byName[name]
		if assert.True(t, ok, name) {
			assert.Equal(t, off, f.Offset, name)
		}
	}
	assert.Equal(t, 8, byName["player_count"].Width)
}

func TestSettingsRoundTripStaysInsideBlock(t *testing.T) {
	buf := make([]byte, SettingsSize+8)
	for i := range buf {
		buf[i] = 0xEE
	}
	want := DefaultSettings()
	want.AimEnabled = true
	want.OneVOne = true
	want.Bone = -1
	want.GlowKnocked = Color{R: 0.25, G: 0.5, B: 0.75}

	require.NoError(t, EncodeSettings(buf, want))
	got, err := DecodeSettings(buf)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	for i := SettingsSize; i < len(buf); i++ {
		assert.Equal(t, byte(0xEE), buf[i], "byte %d past the block was modified", i)
	}
	assert.Equal(t, []byte{1, 0, 0, 1, 0, 0, 0, 1}, buf[:8])
}

func TestSettingsNonzeroByteIsTrue(t *testing.T) {
	buf := make([]byte, SettingsSize)
	buf[2] = 0x7F
	s, err := DecodeSettings(buf)
	require.NoError(t, err)
	assert.True(t, s.PlayerGlowEnabled)
	assert.False(t, s.AimEnabled)
}

func TestPlayerRecordBytes(t *testing.T) {
	buf := make([]byte, PlayerSize)
	p := Player{HeadX: 1.5, Health: 100, Shield: 50, Team: 7, Distance: 12, Visible: true}
	require.NoError(t, EncodePlayer(buf, p))
	assert.Equal(t, byte(100), buf[16])
	assert.Equal(t, byte(7), buf[24])
	assert.Equal(t, byte(1), buf[32])
	assert.Equal(t, byte(0), buf[33])

	got, err := DecodePlayer(buf)
	require.NoError(t, err)
	assert.Equal(t, p, got)

	_, err = DecodePlayer(buf[:PlayerSize-1])
	assert.True(t, errors.Is(err, ErrShortBuffer))
}

func TestSpectatorNameUpToFirstNUL(t *testing.T) {
	buf := make([]byte, SpectatorSize)
	copy(buf, "watcher\x00garbage")
	s, err := DecodeSpectator(buf)
	require.NoError(t, err)
	assert.Equal(t, "watcher", s.Name)

	long := strings.Repeat("x", 100)
	require.NoError(t, EncodeSpectator(buf, Spectator{Name: long}))
	assert.Equal(t, byte(0), buf[NameSize-1])
	s, err = DecodeSpectator(buf)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("x", NameSize-1), s.Name)

	require.NoError(t, EncodeSpectator(buf, Spectator{Name: "ab"}))
	assert.Equal(t, make([]byte, NameSize-2), buf[2:])
}

func TestSpectatorNameWithoutNULUsesWholeBuffer(t *testing.T) {
	buf := []byte(strings.Repeat("n", SpectatorSize))
	s, err := DecodeSpectator(buf)
	require.NoError(t, err)
	assert.Len(t, s.Name, NameSize)
}

func TestDecodeWholeRegion(t *testing.T) {
	region := make([]byte, RegionSize)
	want := &Snapshot{
		Header: Header{
			Magic:              Sentinel,
			BaseAddress:        0x1000,
			SpectatorCount:     2,
			PlayerCount:        3,
			SpectatorListCount: 1,
		},
		Settings: DefaultSettings(),
	}
	want.Players[0] = Player{Health: 100, Team: 1}
	want.Players[2] = Player{Health: 10, Knocked: true}
	want.Players[99] = Player{Health: 1}
	want.Spectators[0] = Spectator{Name: "viewer"}
	require.NoError(t, Default.Encode(region, want))

	got, err := Default.Decode(region)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.True(t, got.Valid())
	assert.Len(t, got.LivePlayers(), 3)
	assert.Len(t, got.LiveSpectators(), 1)
	assert.True(t, got.CountsInRange())
}

func TestEncodePlacesRecordsAtBoundedOffsets(t *testing.T) {
	l := MustNew(Word32)
	region := make([]byte, l.Size())
	snap := &Snapshot{}
	snap.Players[MaxPlayers-1] = Player{Health: 42, Team: 7}
	snap.Spectators[MaxSpectators-1] = Spectator{Name: "last"}
	require.NoError(t, l.Encode(region, snap))

	off, err := l.PlayerOffset(MaxPlayers - 1)
	require.NoError(t, err)
	p, err := DecodePlayer(region[off:])
	require.NoError(t, err)
	assert.Equal(t, snap.Players[MaxPlayers-1], p)

	off, err = l.SpectatorOffset(MaxSpectators - 1)
	require.NoError(t, err)
	assert.Equal(t, l.Size(), off+SpectatorSize)
	sp, err := DecodeSpectator(region[off:])
	require.NoError(t, err)
	assert.Equal(t, "last", sp.Name)
}

func TestDecodeShortRegion(t *testing.T) {
	_, err := Default.Decode(make([]byte, Default.Size()-1))
	assert.True(t, errors.Is(err, ErrShortBuffer))
	_, err = Default.DecodeHeader(make([]byte, 10))
	assert.True(t, errors.Is(err, ErrShortBuffer))
}

func TestOutOfRangeCountsAreClamped(t *testing.T) {
	region := make([]byte, Default.Size())
	require.NoError(t, Default.EncodeHeader(region, Header{
		Magic:              Sentinel,
		BaseAddress:        1,
		PlayerCount:        150,
		SpectatorListCount: ^uint64(0),
	}))
	s, err := Default.Decode(region)
	require.NoError(t, err)
	assert.Equal(t, uint64(150), s.Header.PlayerCount)
	assert.Len(t, s.LivePlayers(), MaxPlayers)
	assert.Len(t, s.LiveSpectators(), MaxSpectators)
	assert.False(t, s.CountsInRange())
}

func TestWord32RejectsWideCounters(t *testing.T) {
	l := MustNew(Word32)
	buf := make([]byte, l.HeaderSize())
	err := l.EncodeHeader(buf, Header{PlayerCount: 1 << 40})
	assert.Error(t, err)

	require.NoError(t, l.EncodeHeader(buf, Header{PlayerCount: 5, SpectatorListCount: 6}))
	h, err := l.DecodeHeader(buf)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), h.PlayerCount)
	assert.Equal(t, uint64(6), h.SpectatorListCount)
}

func TestValidityGate(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for i := 0; i < 1000; i++ {
		h := Header{
			Magic:              r.Uint32(),
			BaseAddress:        r.Uint64(),
			SpectatorCount:     r.Int31(),
			PlayerCount:        r.Uint64(),
			SpectatorListCount: r.Uint64(),
		}
		if h.Magic == Sentinel {
			continue
		}
		assert.False(t, IsValid(h))
	}

	h := Header{Magic: Sentinel}
	assert.False(t, IsValid(h))
	h.PlayerCount = 5
	assert.False(t, IsValid(h))

	for i := 0; i < 1000; i++ {
		h := Header{Magic: Sentinel, BaseAddress: r.Uint64() | 1, PlayerCount: r.Uint64()}
		assert.True(t, IsValid(h))
	}

	var nilSnap *Snapshot
	assert.False(t, nilSnap.Valid())
}
