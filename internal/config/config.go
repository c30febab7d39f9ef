package config

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// TownSite is a fixed town location in tile coordinates. Towns are read-only
// inputs to biome selection, road generation and spawn filtering.
type TownSite struct {
	TileX int32  `yaml:"tile_x"`
	TileZ int32  `yaml:"tile_z"`
	Name  string `yaml:"name"`
}

// NoiseConfig tunes the octave-summed height field.
type NoiseConfig struct {
	Octaves     int     `yaml:"octaves"`
	Lacunarity  float64 `yaml:"lacunarity"`
	Persistence float64 `yaml:"persistence"`
	// HeightScale is the world-unit wavelength of the lowest height octave.
	HeightScale float64 `yaml:"height_scale"`
	// BiomeScale is the wavelength of the independent biome-selection noise.
	BiomeScale float64 `yaml:"biome_scale"`
	// LakeThreshold: biome noise below this value selects the lake biome
	// regardless of distance band.
	LakeThreshold float64 `yaml:"lake_threshold"`
	// Band edges (tile distance from world origin) for difficulty selection.
	EasyBandRadius float64 `yaml:"easy_band_radius"`
	MidBandRadius  float64 `yaml:"mid_band_radius"`
}

// TerrainConfig tunes world-space height shaping shared by every biome.
type TerrainConfig struct {
	TileSize            float64 `yaml:"tile_size"`
	HeightmapResolution int     `yaml:"heightmap_resolution"`
	MaxHeight           float64 `yaml:"max_height"`
	HeightAmplifier     float64 `yaml:"height_amplifier"`
	// BaseLevel is the terrain floor; heightAt never returns less than this.
	BaseLevel float64 `yaml:"base_level"`
}

// LifecycleConfig tunes the chunk lifecycle manager.
type LifecycleConfig struct {
	TickInterval time.Duration `yaml:"tick_interval"`
	// CoreRadius is the square radius of the simulated footprint (1 → 3x3).
	CoreRadius int32 `yaml:"core_radius"`
	// RingRadius is the square radius of the loaded footprint (2 → 5x5).
	RingRadius        int32 `yaml:"ring_radius"`
	GenerationWorkers int   `yaml:"generation_workers"`
}

// PersistConfig tunes the persistence scheduler.
type PersistConfig struct {
	Interval     time.Duration `yaml:"interval"`
	MaxRetries   int           `yaml:"max_retries"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`
}

// AuditConfig tunes the bounding-box auditor.
type AuditConfig struct {
	Interval time.Duration `yaml:"interval"`
	// ExtentTolerance is the allowed relative deviation of a tile's horizontal
	// geometry extent from the nominal tile size.
	ExtentTolerance float64 `yaml:"extent_tolerance"`
	// WorldBoundTiles bounds tile coordinates on both axes.
	WorldBoundTiles int32 `yaml:"world_bound_tiles"`
}

// TownConfig tunes town influence over biomes, roads and spawning.
type TownConfig struct {
	Sites []TownSite `yaml:"sites"`
	// SafeRadius is the tile distance within which the safe-zone biome wins.
	SafeRadius float64 `yaml:"safe_radius"`
	// RoadBandRadius is the tile distance within which a tile gets a road
	// segment toward its nearest town.
	RoadBandRadius float64 `yaml:"road_band_radius"`
	// SpawnExclusionRadius is the world-unit distance from a town center
	// inside which no mob spawn candidates are produced.
	SpawnExclusionRadius float64 `yaml:"spawn_exclusion_radius"`
	// RoadSpawnDistance is the minimum world-unit distance between a spawn
	// candidate and any road segment.
	RoadSpawnDistance float64 `yaml:"road_spawn_distance"`
}

// Config is the immutable world configuration assembled at startup and passed
// by reference to every service. Nothing mutates it after Load.
type Config struct {
	WorldID   string          `yaml:"world_id"`
	WorldName string          `yaml:"world_name"`
	Seed      int64           `yaml:"seed"`
	Terrain   TerrainConfig   `yaml:"terrain"`
	Noise     NoiseConfig     `yaml:"noise"`
	Towns     TownConfig      `yaml:"towns"`
	Lifecycle LifecycleConfig `yaml:"lifecycle"`
	Persist   PersistConfig   `yaml:"persist"`
	Audit     AuditConfig     `yaml:"audit"`
}

// Default returns the compiled-in world configuration.
func Default() *Config {
	return &Config{
		WorldName: "voidmesh",
		Seed:      1337,
		Terrain: TerrainConfig{
			TileSize:            100.0,
			HeightmapResolution: 32,
			MaxHeight:           60.0,
			HeightAmplifier:     1.0,
			BaseLevel:           2.0,
		},
		Noise: NoiseConfig{
			Octaves:        4,
			Lacunarity:     2.0,
			Persistence:    0.5,
			HeightScale:    250.0,
			BiomeScale:     600.0,
			LakeThreshold:  -0.55,
			EasyBandRadius: 6.0,
			MidBandRadius:  14.0,
		},
		Towns: TownConfig{
			Sites: []TownSite{
				{TileX: 0, TileZ: 0, Name: "Haven"},
				{TileX: 12, TileZ: -9, Name: "Duskwall"},
				{TileX: -15, TileZ: 11, Name: "Greyford"},
			},
			SafeRadius:           1.5,
			RoadBandRadius:       8.0,
			SpawnExclusionRadius: 150.0,
			RoadSpawnDistance:    8.0,
		},
		Lifecycle: LifecycleConfig{
			TickInterval:      time.Second,
			CoreRadius:        1,
			RingRadius:        2,
			GenerationWorkers: 4,
		},
		Persist: PersistConfig{
			Interval:     15 * time.Minute,
			MaxRetries:   3,
			RetryBackoff: 500 * time.Millisecond,
		},
		Audit: AuditConfig{
			Interval:        30 * time.Second,
			ExtentTolerance: 0.10,
			WorldBoundTiles: 1000,
		},
	}
}

// Load builds the world configuration: compiled defaults, overridden by the
// YAML file named in WORLD_CONFIG when present, then validated.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("WORLD_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read world config %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse world config %q: %w", path, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints and fills generated fields.
func (c *Config) Validate() error {
	if c.WorldID == "" {
		c.WorldID = uuid.NewString()
	} else if _, err := uuid.Parse(c.WorldID); err != nil {
		return fmt.Errorf("world_id must be a UUID: %w", err)
	}
	if c.Terrain.TileSize <= 0 {
		return fmt.Errorf("terrain.tile_size must be positive, got %v", c.Terrain.TileSize)
	}
	if c.Terrain.HeightmapResolution < 2 {
		return fmt.Errorf("terrain.heightmap_resolution must be at least 2, got %d", c.Terrain.HeightmapResolution)
	}
	if c.Noise.Octaves < 1 {
		return fmt.Errorf("noise.octaves must be at least 1, got %d", c.Noise.Octaves)
	}
	if c.Noise.Lacunarity <= 1 {
		return fmt.Errorf("noise.lacunarity must be greater than 1, got %v", c.Noise.Lacunarity)
	}
	if c.Noise.Persistence <= 0 || c.Noise.Persistence >= 1 {
		return fmt.Errorf("noise.persistence must be in (0,1), got %v", c.Noise.Persistence)
	}
	if c.Lifecycle.CoreRadius < 0 || c.Lifecycle.RingRadius < c.Lifecycle.CoreRadius {
		return fmt.Errorf("lifecycle radii invalid: core=%d ring=%d", c.Lifecycle.CoreRadius, c.Lifecycle.RingRadius)
	}
	if c.Lifecycle.GenerationWorkers < 1 {
		return fmt.Errorf("lifecycle.generation_workers must be at least 1, got %d", c.Lifecycle.GenerationWorkers)
	}
	if len(c.Towns.Sites) == 0 {
		return fmt.Errorf("towns.sites must not be empty")
	}
	if c.Persist.MaxRetries < 1 {
		return fmt.Errorf("persist.max_retries must be at least 1, got %d", c.Persist.MaxRetries)
	}
	return nil
}
