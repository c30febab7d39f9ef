package noise

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VoidMesh/worldsim/internal/config"
	"github.com/VoidMesh/worldsim/services/biome"
)

func testFieldConfig() *config.Config {
	cfg := config.Default()
	cfg.Terrain.HeightmapResolution = 8
	return cfg
}

func newTestField(t *testing.T, cfg *config.Config, opts ...biome.Option) *Field {
	t.Helper()
	catalog, err := biome.NewCatalog(biome.NewDefaultLoggerWrapper(), opts...)
	require.NoError(t, err)
	return NewField(cfg, catalog)
}

func TestField_HeightAt_Determinism(t *testing.T) {
	cfg := testFieldConfig()
	first := newTestField(t, cfg)
	second := newTestField(t, cfg)

	coords := [][2]float64{
		{0, 0},
		{50, 50},
		{-1234.5, 678.9},
		{99999, -99999},
	}
	for _, c := range coords {
		h1 := first.HeightAt(c[0], c[1])
		h2 := first.HeightAt(c[0], c[1])
		h3 := second.HeightAt(c[0], c[1])
		assert.Equal(t, h1, h2, "repeated query at (%v,%v) must be bit-identical", c[0], c[1])
		assert.Equal(t, h1, h3, "fresh field at (%v,%v) must be bit-identical", c[0], c[1])
	}
}

func TestField_HeightAt_WithinBounds(t *testing.T) {
	cfg := testFieldConfig()
	field := newTestField(t, cfg)
	ceiling := cfg.Terrain.BaseLevel + cfg.Terrain.MaxHeight*cfg.Terrain.HeightAmplifier

	for x := -500.0; x <= 500.0; x += 73.0 {
		for z := -500.0; z <= 500.0; z += 73.0 {
			h := field.HeightAt(x, z)
			require.False(t, math.IsNaN(h) || math.IsInf(h, 0), "height must be finite at (%v,%v)", x, z)
			assert.GreaterOrEqual(t, h, cfg.Terrain.BaseLevel, "terrain never goes below the base level")
			assert.LessOrEqual(t, h, ceiling)
		}
	}
}

func TestField_HeightAt_ExtremeCoordinatesStayFinite(t *testing.T) {
	field := newTestField(t, testFieldConfig())

	h := field.HeightAt(1e9, -1e9)
	assert.False(t, math.IsNaN(h) || math.IsInf(h, 0))
	assert.GreaterOrEqual(t, h, testFieldConfig().Terrain.BaseLevel)
}

func TestField_BiomeIDAt_TownSafeZone(t *testing.T) {
	cfg := testFieldConfig()
	field := newTestField(t, cfg)

	// (0,0) is a configured town site.
	assert.Equal(t, biome.SafeZoneID, field.BiomeIDAt(0, 0))

	// Within the safe radius (1.5 tiles) the safe zone still wins.
	assert.Equal(t, biome.SafeZoneID, field.BiomeIDAt(1, 1))

	def := field.BiomeAt(0, 0)
	assert.Equal(t, biome.DifficultySafe, def.Difficulty)
	assert.Empty(t, def.Mobs)
}

func TestField_BiomeIDAt_DistanceBands(t *testing.T) {
	cfg := testFieldConfig()
	field := newTestField(t, cfg)

	// Far beyond the mid band and away from every town: hard tier, unless
	// the lake override fires.
	def := field.BiomeAt(500, 500)
	if def.ID != biome.LakeID {
		assert.Equal(t, biome.DifficultyHard, def.Difficulty,
			"far tiles must select hard biomes, got %q", def.ID)
	}

	// Near the origin but outside town safe radii: easy tier or lake.
	def = field.BiomeAt(4, -4)
	if def.ID != biome.LakeID {
		assert.Equal(t, biome.DifficultyEasy, def.Difficulty,
			"near-origin tiles must select easy biomes, got %q", def.ID)
	}
}

func TestField_BiomeIDAt_LakeOverride(t *testing.T) {
	cfg := testFieldConfig()
	// A generous threshold makes the lake override fire almost everywhere.
	cfg.Noise.LakeThreshold = 0.95
	field := newTestField(t, cfg)

	assert.Equal(t, biome.LakeID, field.BiomeIDAt(50, 50),
		"sufficiently negative biome noise must override the band logic")

	// Town safe zones take precedence over the lake override.
	assert.Equal(t, biome.SafeZoneID, field.BiomeIDAt(0, 0))
}

func TestField_Walkable_LakeAlwaysImpassable(t *testing.T) {
	cfg := testFieldConfig()
	cfg.Noise.LakeThreshold = 0.95
	field := newTestField(t, cfg)

	// Tile (50,50) is lake under this threshold; its center must be
	// impassable even where the terrain is locally above water level.
	center := (50.0 + 0.5) * cfg.Terrain.TileSize
	assert.False(t, field.Walkable(center, center))
}

func TestField_Walkable_WaterIsImpassable(t *testing.T) {
	cfg := testFieldConfig()

	// Raise every biome's water level far above the height ceiling so all
	// terrain is submerged.
	defs := biome.DefaultDefinitions()
	for i := range defs {
		defs[i].WaterLevel = 1000.0
	}
	field := newTestField(t, cfg, biome.WithDefinitions(defs))

	for x := -300.0; x <= 300.0; x += 111.0 {
		assert.False(t, field.Walkable(x, x), "terrain below water level is never walkable")
		assert.True(t, field.Underwater(x, x))
	}
}

func TestField_SlopeAt_FiniteAndNonNegative(t *testing.T) {
	field := newTestField(t, testFieldConfig())

	for x := -200.0; x <= 200.0; x += 53.0 {
		s := field.SlopeAt(x, -x)
		require.False(t, math.IsNaN(s) || math.IsInf(s, 0))
		assert.GreaterOrEqual(t, s, 0.0)
	}
}

func TestField_NearestTown(t *testing.T) {
	cfg := testFieldConfig()
	field := newTestField(t, cfg)

	town, dist := field.NearestTown(0, 0)
	assert.Equal(t, int32(0), town.TileX)
	assert.Equal(t, int32(0), town.TileZ)
	assert.Equal(t, 0.0, dist)

	town, dist = field.NearestTown(13, -9)
	assert.Equal(t, int32(12), town.TileX)
	assert.Equal(t, 1.0, dist)
}
