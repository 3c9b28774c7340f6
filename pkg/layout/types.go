package layout

// Header is the producer-owned prefix of the region.
type Header struct {
	Magic                uint32 `json:"magic"`
	BaseAddress          uint64 `json:"base_address"`
	SpectatorCount       int32  `json:"spectator_count"`
	AlliedSpectatorCount int32  `json:"allied_spectator_count"`
	// PlayerCount and SpectatorListCount are kept exactly as decoded, even
	// when they exceed the array capacity. Use the Live* accessors of
	// Snapshot to iterate.
	PlayerCount        uint64 `json:"player_count"`
	SpectatorListCount uint64 `json:"spectator_list_count"`
}

// Color is an RGB triple, each channel in [0,1].
type Color struct {
	R float32 `json:"r" koanf:"r"`
	G float32 `json:"g" koanf:"g"`
	B float32 `json:"b" koanf:"b"`
}

// Settings is the consumer-owned block read by the producer.
type Settings struct {
	AimEnabled        bool `json:"aim_enabled" koanf:"aim_enabled"`
	ESPEnabled        bool `json:"esp_enabled" koanf:"esp_enabled"`
	PlayerGlowEnabled bool `json:"player_glow_enabled" koanf:"player_glow_enabled"`
	AimNoRecoil       bool `json:"aim_no_recoil" koanf:"aim_no_recoil"`
	Aiming            bool `json:"aiming" koanf:"aiming"`
	Shooting          bool `json:"shooting" koanf:"shooting"`
	FiringRange       bool `json:"firing_range" koanf:"firing_range"`
	OneVOne           bool `json:"onevone" koanf:"onevone"`

	MaxDistance float32 `json:"max_dist" koanf:"max_dist"`
	Smooth      float32 `json:"smooth" koanf:"smooth"`
	MaxFOV      float32 `json:"max_fov" koanf:"max_fov"`
	Bone        int32   `json:"bone" koanf:"bone"`

	GlowNotVisible Color `json:"glow" koanf:"glow"`
	GlowVisible    Color `json:"glow_visible" koanf:"glow_visible"`
	GlowKnocked    Color `json:"glow_knocked" koanf:"glow_knocked"`
}

// DefaultSettings returns the values the consumer starts from before any
// user change.
func DefaultSettings() Settings {
	return Settings{
		AimNoRecoil:    true,
		MaxDistance:    200.0 * 40.0,
		Smooth:         10.0,
		MaxFOV:         5.0,
		Bone:           2,
		GlowNotVisible: Color{R: 1},
		GlowVisible:    Color{G: 1},
		GlowKnocked:    Color{B: 1},
	}
}

// Player is one record of the player array.
type Player struct {
	HeadX    float32 `json:"head_x"`
	HeadY    float32 `json:"head_y"`
	OriginX  float32 `json:"origin_x"`
	OriginY  float32 `json:"origin_y"`
	Health   int32   `json:"health"`
	Shield   int32   `json:"shield"`
	Team     int32   `json:"team_num"`
	Distance float32 `json:"distance"`
	Visible  bool    `json:"is_visible"`
	Knocked  bool    `json:"is_knocked"`
}

// Spectator is one record of the spectator array.
type Spectator struct {
	Name string `json:"name"`
}

// Snapshot is an owned, decoded copy of the whole data span. It holds no
// reference into the mapping.
type Snapshot struct {
	Header     Header                   `json:"header"`
	Settings   Settings                 `json:"settings"`
	Players    [MaxPlayers]Player       `json:"-"`
	Spectators [MaxSpectators]Spectator `json:"-"`
}

// Valid applies the validity gate to the snapshot header.
func (s *Snapshot) Valid() bool {
	return s != nil && IsValid(s.Header)
}

// LivePlayers returns the records selected by PlayerCount, clamped to the
// array capacity.
func (s *Snapshot) LivePlayers() []Player {
	return s.Players[:clampCount(s.Header.PlayerCount, MaxPlayers)]
}

// LiveSpectators returns the records selected by SpectatorListCount, clamped
// to the array capacity.
func (s *Snapshot) LiveSpectators() []Spectator {
	return s.Spectators[:clampCount(s.Header.SpectatorListCount, MaxSpectators)]
}

// CountsInRange reports whether both counters fit their arrays. A false
// result means the snapshot was torn or the region is corrupt.
func (s *Snapshot) CountsInRange() bool {
	return s.Header.PlayerCount <= MaxPlayers && s.Header.SpectatorListCount <= MaxSpectators
}

func clampCount(n uint64, max int) int {
	if n > uint64(max) {
		return max
	}
	return int(n)
}
