package tile

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/VoidMesh/worldsim/internal/config"
	"github.com/VoidMesh/worldsim/services/biome"
	"github.com/VoidMesh/worldsim/services/noise"
)

const (
	// ForestDensityFactor scales tree counts from biome density weights.
	ForestDensityFactor = 24
	// HerbDensityFactor / RockDensityFactor / FishDensityFactor scale their
	// respective counts.
	HerbDensityFactor = 12
	RockDensityFactor = 10
	FishDensityFactor = 10
	// OreAttempts / GemAttempts: ore and gems are low-probability singles,
	// rolled independently this many times per tile.
	OreAttempts = 3
	GemAttempts = 2
	// PlacementAttemptsPerNode bounds rejection sampling per wanted node.
	PlacementAttemptsPerNode = 3

	RoadWidth = 3.0
)

// resourceHealth is the starting health pool per resource type.
var resourceHealth = map[biome.ResourceType]int32{
	biome.ResourceTree: 100,
	biome.ResourceOre:  150,
	biome.ResourceHerb: 40,
	biome.ResourceFish: 30,
	biome.ResourceRock: 120,
	biome.ResourceGem:  200,
}

// resourceChannels fixes per-type placement order and rng channels so tile
// content is stable across runs.
var resourceChannels = []biome.ResourceType{
	biome.ResourceTree,
	biome.ResourceOre,
	biome.ResourceHerb,
	biome.ResourceFish,
	biome.ResourceRock,
	biome.ResourceGem,
}

// Service generates tiles and owns the shared tile map. Generation is
// idempotent per key: re-requesting an existing key returns the cached
// instance and never re-invokes the rendering or physics collaborators.
type Service struct {
	cfg      *config.Config
	catalog  *biome.Catalog
	field    *noise.Field
	renderer RendererInterface
	physics  PhysicsInterface
	// rehydrator restores persisted resource/road state before procedural
	// placement is attempted. Optional.
	rehydrator RehydratorInterface
	// authoritative enables collision cooking; clients skip it.
	authoritative bool
	logger        LoggerInterface

	mu    sync.RWMutex
	tiles map[Key]*Tile
	// generating tracks in-flight builds so concurrent requests for one key
	// wait instead of double-building (which would leak handles).
	generating map[Key]chan struct{}
}

// NewService creates a tile generator with dependency injection.
func NewService(
	cfg *config.Config,
	catalog *biome.Catalog,
	field *noise.Field,
	renderer RendererInterface,
	physics PhysicsInterface,
	rehydrator RehydratorInterface,
	authoritative bool,
	logger LoggerInterface,
) *Service {
	logger.Debug("Creating new tile service",
		"tile_size", cfg.Terrain.TileSize,
		"heightmap_resolution", cfg.Terrain.HeightmapResolution,
		"authoritative", authoritative)

	return &Service{
		cfg:           cfg,
		catalog:       catalog,
		field:         field,
		renderer:      renderer,
		physics:       physics,
		rehydrator:    rehydrator,
		authoritative: authoritative,
		logger:        logger,
		tiles:         make(map[Key]*Tile),
		generating:    make(map[Key]chan struct{}),
	}
}

// Get returns the resident tile for a key, if any.
func (s *Service) Get(key Key) (*Tile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tiles[key]
	return t, ok
}

// Loaded returns a snapshot slice of every resident tile.
func (s *Service) Loaded() []*Tile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tiles := make([]*Tile, 0, len(s.tiles))
	for _, t := range s.tiles {
		tiles = append(tiles, t)
	}
	return tiles
}

// LoadedCount reports how many tiles are resident.
func (s *Service) LoadedCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tiles)
}

// GetOrCreate returns the tile for a key, generating it on first reference.
// The tile is inserted into the map only after generation fully completes, so
// concurrent readers never observe a half-constructed tile.
func (s *Service) GetOrCreate(ctx context.Context, key Key) (*Tile, error) {
	s.mu.Lock()
	if t, ok := s.tiles[key]; ok {
		s.mu.Unlock()
		return t, nil
	}
	if inflight, ok := s.generating[key]; ok {
		s.mu.Unlock()
		select {
		case <-inflight:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		s.mu.RLock()
		t, ok := s.tiles[key]
		s.mu.RUnlock()
		if !ok {
			return nil, fmt.Errorf("generation for tile %s did not complete", key)
		}
		return t, nil
	}
	inflight := make(chan struct{})
	s.generating[key] = inflight
	s.mu.Unlock()

	t, err := s.build(ctx, key)

	s.mu.Lock()
	delete(s.generating, key)
	if err == nil {
		s.tiles[key] = t
	}
	close(inflight)
	s.mu.Unlock()

	if err != nil {
		return nil, fmt.Errorf("failed to generate tile %s: %w", key, err)
	}
	return t, nil
}

// Evict releases the tile's collaborator handles and removes it from the
// tile map. The caller is responsible for persisting dirty state first.
func (s *Service) Evict(key Key) {
	s.mu.Lock()
	t, ok := s.tiles[key]
	if ok {
		delete(s.tiles, key)
	}
	s.mu.Unlock()
	if !ok {
		return
	}
	t.releaseHandles(s.renderer, s.physics)
	s.logger.Debug("Evicted tile", "tile_x", key.X, "tile_z", key.Z)
}

// build assembles a complete tile: height grid, color weights, roads,
// resources and collaborator handles.
func (s *Service) build(ctx context.Context, key Key) (*Tile, error) {
	start := time.Now()
	biomeID := s.field.BiomeIDAt(key.X, key.Z)
	def, err := s.catalog.Lookup(biomeID)
	if err != nil {
		return nil, err
	}

	heights, colors := s.sampleHeightGrid(key)

	t := &Tile{
		Key:          key,
		BiomeID:      biomeID,
		Heights:      heights,
		ColorWeights: colors,
		lastActive:   time.Now(),
	}

	restored := s.tryRehydrate(ctx, key)
	if restored != nil {
		t.BiomeID = restored.BiomeID
		t.Resources = restored.Resources
		t.Roads = restored.Roads
	} else {
		if road, ok := s.computeRoad(key, def); ok {
			t.Roads = append(t.Roads, road)
		}
		t.Resources = s.placeResources(key, def)
	}

	geometry, err := s.renderer.BuildTileGeometry(heights, colors)
	if err != nil {
		return nil, fmt.Errorf("renderer failed to build geometry: %w", err)
	}
	if geometry != nil {
		s.renderer.Attach(geometry,
			float64(key.X)*s.cfg.Terrain.TileSize,
			float64(key.Z)*s.cfg.Terrain.TileSize)
	}
	t.geometry = geometry

	if s.authoritative {
		collision, err := s.physics.CookCollision(heights)
		if err != nil {
			// Generation failure path: the geometry handle must not leak.
			if geometry != nil {
				s.renderer.Release(geometry)
			}
			return nil, fmt.Errorf("physics failed to cook collision: %w", err)
		}
		t.collision = collision
	}

	t.generated = true

	s.logger.Debug("Tile generation completed",
		"tile_x", key.X,
		"tile_z", key.Z,
		"biome", t.BiomeID,
		"resources", len(t.Resources),
		"roads", len(t.Roads),
		"rehydrated", restored != nil,
		"duration", time.Since(start))
	return t, nil
}

// tryRehydrate asks the rehydration source for persisted state. Errors are
// logged and treated as a miss; procedural placement remains the fallback.
func (s *Service) tryRehydrate(ctx context.Context, key Key) *RestoredTile {
	if s.rehydrator == nil {
		return nil
	}
	restored, found, err := s.rehydrator.Rehydrate(ctx, key.X, key.Z)
	if err != nil {
		s.logger.Warn("Rehydration failed, falling back to procedural placement",
			"tile_x", key.X, "tile_z", key.Z, "error", err)
		return nil
	}
	if !found {
		return nil
	}
	return restored
}

// sampleHeightGrid samples the resolution x resolution height grid across the
// tile and derives the decorative per-vertex color weight from height.
func (s *Service) sampleHeightGrid(key Key) ([]float64, []float64) {
	res := s.cfg.Terrain.HeightmapResolution
	step := s.cfg.Terrain.TileSize / float64(res-1)
	originX := float64(key.X) * s.cfg.Terrain.TileSize
	originZ := float64(key.Z) * s.cfg.Terrain.TileSize
	heightSpan := s.cfg.Terrain.MaxHeight * s.cfg.Terrain.HeightAmplifier

	heights := make([]float64, res*res)
	colors := make([]float64, res*res)
	for row := 0; row < res; row++ {
		for col := 0; col < res; col++ {
			h := s.field.HeightAt(originX+float64(col)*step, originZ+float64(row)*step)
			idx := row*res + col
			heights[idx] = h

			w := 0.0
			if heightSpan > 0 {
				w = (h - s.cfg.Terrain.BaseLevel) / heightSpan
			}
			if w < 0 {
				w = 0
			} else if w > 1 {
				w = 1
			}
			colors[idx] = w
		}
	}
	return heights, colors
}

// computeRoad emits the single road segment for tiles within the road band of
// a town, oriented along the vector toward the nearest town center.
func (s *Service) computeRoad(key Key, def *biome.Definition) (RoadSegment, bool) {
	return ComputeRoad(s.cfg, s.field, key, def)
}

// ComputeRoad deterministically derives a tile's road segment from the tile
// coordinate and the fixed town sites. It is pure, so spawn filtering can
// evaluate road proximity without requiring the tile to be resident.
func ComputeRoad(cfg *config.Config, field *noise.Field, key Key, def *biome.Definition) (RoadSegment, bool) {
	if def.ID == biome.LakeID {
		return RoadSegment{}, false
	}
	town, dist := field.NearestTown(key.X, key.Z)
	if dist > cfg.Towns.RoadBandRadius {
		return RoadSegment{}, false
	}

	half := cfg.Terrain.TileSize / 2
	dirX := float64(town.TileX-key.X)*cfg.Terrain.TileSize + half
	dirZ := float64(town.TileZ-key.Z)*cfg.Terrain.TileSize + half
	length := math.Hypot(dirX-half, dirZ-half)
	if length == 0 {
		// The town tile itself gets a short plaza stub along +X.
		dirX, dirZ, length = half+1, half, 1
	}
	ux := (dirX - half) / length
	uz := (dirZ - half) / length

	clamp := func(v float64) float64 {
		if v < 0 {
			return 0
		}
		if v > cfg.Terrain.TileSize {
			return cfg.Terrain.TileSize
		}
		return v
	}

	surface := "dirt"
	if dist <= cfg.Towns.SafeRadius {
		surface = "cobblestone"
	}

	return RoadSegment{
		StartX:    clamp(half - ux*half),
		StartZ:    clamp(half - uz*half),
		EndX:      clamp(half + ux*half),
		EndZ:      clamp(half + uz*half),
		Width:     RoadWidth,
		Surface:   surface,
		Condition: 1.0 - (dist/cfg.Towns.RoadBandRadius)*0.4,
	}, true
}

// placeResources rolls the tile's resource nodes from the biome's density
// weights. Land resources are rejected on unwalkable points; fish must land
// underwater. Placement is deterministic per (seed, key, type).
func (s *Service) placeResources(key Key, def *biome.Definition) []*ResourceNode {
	var nodes []*ResourceNode
	originX := float64(key.X) * s.cfg.Terrain.TileSize
	originZ := float64(key.Z) * s.cfg.Terrain.TileSize

	for channel, resourceType := range resourceChannels {
		density, ok := def.Resources[resourceType]
		if !ok || density <= 0 {
			continue
		}
		rng := rand.New(rand.NewSource(s.tileSeed(key, int64(channel))))

		wanted := 0
		switch resourceType {
		case biome.ResourceTree:
			wanted = int(density * ForestDensityFactor)
		case biome.ResourceHerb:
			wanted = int(density * HerbDensityFactor)
		case biome.ResourceRock:
			wanted = int(density * RockDensityFactor)
		case biome.ResourceFish:
			wanted = int(density * FishDensityFactor)
		case biome.ResourceOre:
			for i := 0; i < OreAttempts; i++ {
				if rng.Float64() < density {
					wanted++
				}
			}
		case biome.ResourceGem:
			for i := 0; i < GemAttempts; i++ {
				if rng.Float64() < density {
					wanted++
				}
			}
		}
		if wanted == 0 {
			continue
		}

		placed := 0
		maxAttempts := wanted * PlacementAttemptsPerNode
		for attempt := 0; attempt < maxAttempts && placed < wanted; attempt++ {
			localX := rng.Float64() * s.cfg.Terrain.TileSize
			localZ := rng.Float64() * s.cfg.Terrain.TileSize
			worldX := originX + localX
			worldZ := originZ + localZ

			if resourceType == biome.ResourceFish {
				// Fish only spawn where the terrain is locally underwater.
				if !s.field.Underwater(worldX, worldZ) {
					continue
				}
			} else if !s.field.Walkable(worldX, worldZ) {
				continue
			}

			health := resourceHealth[resourceType]
			nodes = append(nodes, &ResourceNode{
				ID:          nodeID(key, resourceType, placed),
				Type:        resourceType,
				LocalX:      localX,
				LocalZ:      localZ,
				Health:      health,
				MaxHealth:   health,
				Harvestable: true,
			})
			placed++
		}
	}
	return nodes
}

// tileSeed derives the deterministic per-tile, per-channel rng seed.
func (s *Service) tileSeed(key Key, channel int64) int64 {
	return s.cfg.Seed ^ (int64(key.X) * 73856093) ^ (int64(key.Z) * 19349663) ^ (channel * 83492791)
}
