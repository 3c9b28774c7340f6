package layout

import (
	"bytes"
	"errors"
	"fmt"
	"math"
)

// ErrShortBuffer is returned when a buffer is smaller than the structure
// being encoded or decoded.
var ErrShortBuffer = errors.New("layout: buffer too short")

func shortBuffer(what string, want, got int) error {
	return fmt.Errorf("%w: %s needs %d bytes, have %d", ErrShortBuffer, what, want, got)
}

// Decode decodes the full data span from b, which must hold at least Size
// bytes starting at the region origin.
func (l Layout) Decode(b []byte) (*Snapshot, error) {
	if len(b) < l.size {
		return nil, shortBuffer("region", l.size, len(b))
	}
	s := &Snapshot{}
	var err error
	if s.Header, err = l.DecodeHeader(b); err != nil {
		return nil, err
	}
	if s.Settings, err = DecodeSettings(b[l.settingsOffset:]); err != nil {
		return nil, err
	}
	for i := range s.Players {
		off, err := l.PlayerOffset(i)
		if err != nil {
			return nil, err
		}
		if s.Players[i], err = DecodePlayer(b[off:]); err != nil {
			return nil, err
		}
	}
	for i := range s.Spectators {
		off, err := l.SpectatorOffset(i)
		if err != nil {
			return nil, err
		}
		if s.Spectators[i], err = DecodeSpectator(b[off:]); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Encode writes every field of s into b. Only producers and tests need it;
// the consumer writes the settings block alone.
func (l Layout) Encode(b []byte, s *Snapshot) error {
	if len(b) < l.size {
		return shortBuffer("region", l.size, len(b))
	}
	if err := l.EncodeHeader(b, s.Header); err != nil {
		return err
	}
	if err := EncodeSettings(b[l.settingsOffset:], s.Settings); err != nil {
		return err
	}
	for i, p := range s.Players {
		off, err := l.PlayerOffset(i)
		if err != nil {
			return err
		}
		if err := EncodePlayer(b[off:], p); err != nil {
			return err
		}
	}
	for i, sp := range s.Spectators {
		off, err := l.SpectatorOffset(i)
		if err != nil {
			return err
		}
		if err := EncodeSpectator(b[off:], sp); err != nil {
			return err
		}
	}
	return nil
}

// DecodeHeader decodes the header from the start of b.
func (l Layout) DecodeHeader(b []byte) (Header, error) {
	if len(b) < l.headerSize {
		return Header{}, shortBuffer("header", l.headerSize, len(b))
	}
	return Header{
		Magic:                ByteOrder.Uint32(b[l.magicOff:]),
		BaseAddress:          ByteOrder.Uint64(b[l.baseOff:]),
		SpectatorCount:       int32(ByteOrder.Uint32(b[l.spectatorsOff:])),
		AlliedSpectatorCount: int32(ByteOrder.Uint32(b[l.alliedOff:])),
		PlayerCount:          l.getWord(b[l.playerCountOff:]),
		SpectatorListCount:   l.getWord(b[l.spectatorCountOff:]),
	}, nil
}

// EncodeHeader writes h into the start of b. Counters wider than the layout
// word are rejected rather than truncated.
func (l Layout) EncodeHeader(b []byte, h Header) error {
	if len(b) < l.headerSize {
		return shortBuffer("header", l.headerSize, len(b))
	}
	if l.word == Word32 && (h.PlayerCount > math.MaxUint32 || h.SpectatorListCount > math.MaxUint32) {
		return fmt.Errorf("layout: counter does not fit in %d bytes", l.word)
	}
	ByteOrder.PutUint32(b[l.magicOff:], h.Magic)
	ByteOrder.PutUint64(b[l.baseOff:], h.BaseAddress)
	ByteOrder.PutUint32(b[l.spectatorsOff:], uint32(h.SpectatorCount))
	ByteOrder.PutUint32(b[l.alliedOff:], uint32(h.AlliedSpectatorCount))
	l.putWord(b[l.playerCountOff:], h.PlayerCount)
	l.putWord(b[l.spectatorCountOff:], h.SpectatorListCount)
	return nil
}

func (l Layout) getWord(b []byte) uint64 {
	if l.word == Word32 {
		return uint64(ByteOrder.Uint32(b))
	}
	return ByteOrder.Uint64(b)
}

func (l Layout) putWord(b []byte, v uint64) {
	if l.word == Word32 {
		ByteOrder.PutUint32(b, uint32(v))
		return
	}
	ByteOrder.PutUint64(b, v)
}

// DecodeSettings decodes a settings block from the start of b.
func DecodeSettings(b []byte) (Settings, error) {
	if len(b) < SettingsSize {
		return Settings{}, shortBuffer("settings", SettingsSize, len(b))
	}
	return Settings{
		AimEnabled:        b[0] != 0,
		ESPEnabled:        b[1] != 0,
		PlayerGlowEnabled: b[2] != 0,
		AimNoRecoil:       b[3] != 0,
		Aiming:            b[4] != 0,
		Shooting:          b[5] != 0,
		FiringRange:       b[6] != 0,
		OneVOne:           b[7] != 0,

		MaxDistance: getFloat(b[offTuning:]),
		Smooth:      getFloat(b[offTuning+4:]),
		MaxFOV:      getFloat(b[offTuning+8:]),
		Bone:        int32(ByteOrder.Uint32(b[offTuning+12:])),

		GlowNotVisible: getColor(b[offGlow:]),
		GlowVisible:    getColor(b[offGlow+12:]),
		GlowKnocked:    getColor(b[offGlow+24:]),
	}, nil
}

// EncodeSettings writes s into the first SettingsSize bytes of b and
// touches nothing past them.
func EncodeSettings(b []byte, s Settings) error {
	if len(b) < SettingsSize {
		return shortBuffer("settings", SettingsSize, len(b))
	}
	flags := [8]bool{
		s.AimEnabled, s.ESPEnabled, s.PlayerGlowEnabled, s.AimNoRecoil,
		s.Aiming, s.Shooting, s.FiringRange, s.OneVOne,
	}
	for i, f := range flags {
		b[i] = boolByte(f)
	}
	putFloat(b[offTuning:], s.MaxDistance)
	putFloat(b[offTuning+4:], s.Smooth)
	putFloat(b[offTuning+8:], s.MaxFOV)
	ByteOrder.PutUint32(b[offTuning+12:], uint32(s.Bone))
	putColor(b[offGlow:], s.GlowNotVisible)
	putColor(b[offGlow+12:], s.GlowVisible)
	putColor(b[offGlow+24:], s.GlowKnocked)
	return nil
}

// DecodePlayer decodes one player record from the start of b.
func DecodePlayer(b []byte) (Player, error) {
	if len(b) < PlayerSize {
		return Player{}, shortBuffer("player", PlayerSize, len(b))
	}
	return Player{
		HeadX:    getFloat(b[0:]),
		HeadY:    getFloat(b[4:]),
		OriginX:  getFloat(b[8:]),
		OriginY:  getFloat(b[12:]),
		Health:   int32(ByteOrder.Uint32(b[16:])),
		Shield:   int32(ByteOrder.Uint32(b[20:])),
		Team:     int32(ByteOrder.Uint32(b[24:])),
		Distance: getFloat(b[28:]),
		Visible:  b[32] != 0,
		Knocked:  b[33] != 0,
	}, nil
}

// EncodePlayer writes p into the first PlayerSize bytes of b.
func EncodePlayer(b []byte, p Player) error {
	if len(b) < PlayerSize {
		return shortBuffer("player", PlayerSize, len(b))
	}
	putFloat(b[0:], p.HeadX)
	putFloat(b[4:], p.HeadY)
	putFloat(b[8:], p.OriginX)
	putFloat(b[12:], p.OriginY)
	ByteOrder.PutUint32(b[16:], uint32(p.Health))
	ByteOrder.PutUint32(b[20:], uint32(p.Shield))
	ByteOrder.PutUint32(b[24:], uint32(p.Team))
	putFloat(b[28:], p.Distance)
	b[32] = boolByte(p.Visible)
	b[33] = boolByte(p.Knocked)
	return nil
}

// DecodeSpectator decodes one name buffer; the name ends at the first NUL.
func DecodeSpectator(b []byte) (Spectator, error) {
	if len(b) < SpectatorSize {
		return Spectator{}, shortBuffer("spectator", SpectatorSize, len(b))
	}
	name := b[:NameSize]
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	return Spectator{Name: string(name)}, nil
}

// EncodeSpectator writes the name NUL-padded. Names are cut to NameSize-1
// bytes so the buffer always ends in NUL.
func EncodeSpectator(b []byte, s Spectator) error {
	if len(b) < SpectatorSize {
		return shortBuffer("spectator", SpectatorSize, len(b))
	}
	buf := b[:NameSize]
	n := copy(buf[:NameSize-1], s.Name)
	clear(buf[n:])
	return nil
}

func getFloat(b []byte) float32 { return math.Float32frombits(ByteOrder.Uint32(b)) }

func putFloat(b []byte, v float32) { ByteOrder.PutUint32(b, math.Float32bits(v)) }

func getColor(b []byte) Color {
	return Color{R: getFloat(b[0:]), G: getFloat(b[4:]), B: getFloat(b[8:])}
}

func putColor(b []byte, c Color) {
	putFloat(b[0:], c.R)
	putFloat(b[4:], c.G)
	putFloat(b[8:], c.B)
}

func boolByte(v bool) byte {
	if v {
		return 1
	}
	return 0
}
