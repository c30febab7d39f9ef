package noise

import (
	"math"

	"github.com/VoidMesh/worldsim/internal/config"
	"github.com/VoidMesh/worldsim/services/biome"
)

// Field maps world coordinates to height, biome, slope and walkability. It is
// pure: every result is a function of (seed, config) only, so queries are
// reproducible across processes and never depend on tile residency.
type Field struct {
	cfg       *config.Config
	catalog   *biome.Catalog
	heightGen GeneratorInterface
	biomeGen  GeneratorInterface
	// maxAmplitude normalizes the octave sum back into [-1,1].
	maxAmplitude float64
}

// NewField creates a height/biome field for the configured world seed.
func NewField(cfg *config.Config, catalog *biome.Catalog) *Field {
	maxAmp := 0.0
	amp := 1.0
	for i := 0; i < cfg.Noise.Octaves; i++ {
		maxAmp += amp
		amp *= cfg.Noise.Persistence
	}

	return &Field{
		cfg:          cfg,
		catalog:      catalog,
		heightGen:    NewGenerator(cfg.Seed),
		biomeGen:     NewBiomeGenerator(cfg.Seed),
		maxAmplitude: maxAmp,
	}
}

// TileCoord converts a world coordinate to its containing tile coordinate.
func (f *Field) TileCoord(v float64) int32 {
	return int32(math.Floor(v / f.cfg.Terrain.TileSize))
}

// octaveNoise sums octaves of perlin noise at geometrically increasing
// frequency and decreasing amplitude, normalized to [-1,1].
func (f *Field) octaveNoise(x, z float64) float64 {
	frequency := 1.0 / f.cfg.Noise.HeightScale
	amplitude := 1.0
	sum := 0.0
	for i := 0; i < f.cfg.Noise.Octaves; i++ {
		sum += f.heightGen.GetNoise(x*frequency, z*frequency) * amplitude
		frequency *= f.cfg.Noise.Lacunarity
		amplitude *= f.cfg.Noise.Persistence
	}
	if f.maxAmplitude == 0 {
		return 0
	}
	return sum / f.maxAmplitude
}

// HeightAt returns the world-space terrain height at (x,z). The raw octave
// noise is shaped by the containing tile's biome (multiplier, height band)
// and the global height constants. Non-finite intermediates collapse to the
// base level rather than propagating.
func (f *Field) HeightAt(x, z float64) float64 {
	def := f.BiomeAt(f.TileCoord(x), f.TileCoord(z))

	raw := f.octaveNoise(x, z) * def.HeightMultiplier
	if math.IsNaN(raw) || math.IsInf(raw, 0) {
		return f.cfg.Terrain.BaseLevel
	}

	// Remap [-1,1] into the biome's normalized [min,max] band.
	normalized := (raw + 1.0) / 2.0
	if normalized < 0 {
		normalized = 0
	} else if normalized > 1 {
		normalized = 1
	}
	banded := def.HeightMin + normalized*(def.HeightMax-def.HeightMin)

	height := f.cfg.Terrain.BaseLevel + banded*f.cfg.Terrain.MaxHeight*f.cfg.Terrain.HeightAmplifier
	if math.IsNaN(height) || math.IsInf(height, 0) || height < f.cfg.Terrain.BaseLevel {
		return f.cfg.Terrain.BaseLevel
	}
	return height
}

// BiomeIDAt selects the biome id for a tile coordinate. Selection precedence:
// town safe zones, then the lake noise override, then distance-banded
// difficulty. The thresholds are tunable policy; the precedence is not.
func (f *Field) BiomeIDAt(tileX, tileZ int32) string {
	if f.nearestTownDistance(tileX, tileZ) <= f.cfg.Towns.SafeRadius {
		return biome.SafeZoneID
	}

	// Independent biome channel, sampled at the tile center for stability
	// across every world coordinate inside the tile.
	centerX := (float64(tileX) + 0.5) * f.cfg.Terrain.TileSize
	centerZ := (float64(tileZ) + 0.5) * f.cfg.Terrain.TileSize
	n := f.biomeGen.GetNoise(centerX/f.cfg.Noise.BiomeScale, centerZ/f.cfg.Noise.BiomeScale)
	if math.IsNaN(n) || math.IsInf(n, 0) {
		n = 0
	}

	if n < f.cfg.Noise.LakeThreshold {
		return biome.LakeID
	}

	originDist := math.Hypot(float64(tileX), float64(tileZ))
	var tier int
	switch {
	case originDist <= f.cfg.Noise.EasyBandRadius:
		tier = biome.DifficultyEasy
	case originDist <= f.cfg.Noise.MidBandRadius:
		tier = biome.DifficultyMid
	default:
		tier = biome.DifficultyHard
	}

	candidates := f.catalog.ByDifficulty(tier)
	if len(candidates) == 0 {
		return biome.SafeZoneID
	}

	// Spread the remaining noise range across the tier's biomes.
	normalized := (n + 1.0) / 2.0
	idx := int(normalized * float64(len(candidates)))
	if idx >= len(candidates) {
		idx = len(candidates) - 1
	}
	if idx < 0 {
		idx = 0
	}
	return candidates[idx]
}

// BiomeAt resolves the full definition for a tile coordinate. Ids produced by
// BiomeIDAt always exist in the validated catalog.
func (f *Field) BiomeAt(tileX, tileZ int32) *biome.Definition {
	return f.catalog.MustLookup(f.BiomeIDAt(tileX, tileZ))
}

// SlopeAt samples height at +-delta along both axes and returns the maximum
// of the four directional gradients.
func (f *Field) SlopeAt(x, z float64) float64 {
	delta := f.cfg.Terrain.TileSize / float64(f.cfg.Terrain.HeightmapResolution)
	center := f.HeightAt(x, z)

	maxGradient := 0.0
	for _, offset := range [4][2]float64{{delta, 0}, {-delta, 0}, {0, delta}, {0, -delta}} {
		h := f.HeightAt(x+offset[0], z+offset[1])
		gradient := math.Abs(h-center) / delta
		if gradient > maxGradient {
			maxGradient = gradient
		}
	}
	if math.IsNaN(maxGradient) || math.IsInf(maxGradient, 0) {
		return 0
	}
	return maxGradient
}

// Walkable reports whether (x,z) can be stood on. Water is always impassable,
// as is terrain steeper than the biome's max slope. The lake biome is
// impassable unconditionally, even where locally above water level.
func (f *Field) Walkable(x, z float64) bool {
	def := f.BiomeAt(f.TileCoord(x), f.TileCoord(z))
	if def.ID == biome.LakeID {
		return false
	}

	h := f.HeightAt(x, z)
	if math.IsNaN(h) || math.IsInf(h, 0) {
		// Numeric degeneracy: assume not walkable rather than propagate.
		return false
	}
	if h < def.WaterLevel {
		return false
	}
	return f.SlopeAt(x, z) <= def.MaxSlope
}

// Underwater reports whether the terrain at (x,z) lies below the containing
// biome's water level.
func (f *Field) Underwater(x, z float64) bool {
	def := f.BiomeAt(f.TileCoord(x), f.TileCoord(z))
	return f.HeightAt(x, z) < def.WaterLevel
}

// nearestTownDistance returns the Euclidean tile distance to the closest
// configured town.
func (f *Field) nearestTownDistance(tileX, tileZ int32) float64 {
	nearest := math.MaxFloat64
	for _, town := range f.cfg.Towns.Sites {
		d := math.Hypot(float64(tileX-town.TileX), float64(tileZ-town.TileZ))
		if d < nearest {
			nearest = d
		}
	}
	return nearest
}

// NearestTown returns the closest configured town site to a tile coordinate
// and its Euclidean tile distance.
func (f *Field) NearestTown(tileX, tileZ int32) (config.TownSite, float64) {
	var nearest config.TownSite
	nearestDist := math.MaxFloat64
	for _, town := range f.cfg.Towns.Sites {
		d := math.Hypot(float64(tileX-town.TileX), float64(tileZ-town.TileZ))
		if d < nearestDist {
			nearest = town
			nearestDist = d
		}
	}
	return nearest, nearestDist
}
