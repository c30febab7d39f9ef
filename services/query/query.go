package query

import (
	"math"
	"math/rand"
	"sync"

	"github.com/VoidMesh/worldsim/internal/config"
	"github.com/VoidMesh/worldsim/services/biome"
	"github.com/VoidMesh/worldsim/services/noise"
	"github.com/VoidMesh/worldsim/services/tile"
)

// SpawnAttemptsFactor bounds spawn-candidate sampling at factor * maxCount
// attempts. Under-filling is a valid outcome, not an error.
const SpawnAttemptsFactor = 3

// RandomGeneratorInterface defines the interface for random number generation.
type RandomGeneratorInterface interface {
	Float64() float64
}

// RandomGenerator implements RandomGeneratorInterface using math/rand. The
// mutex makes it safe for concurrent gameplay callers; rand.Rand itself is
// not.
type RandomGenerator struct {
	mu   sync.Mutex
	rand *rand.Rand
}

// NewRandomGenerator creates a new random generator with the given seed.
func NewRandomGenerator(seed int64) RandomGeneratorInterface {
	return &RandomGenerator{rand: rand.New(rand.NewSource(seed))}
}

func (r *RandomGenerator) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float64()
}

// SpawnPoint is a validated mob spawn candidate in world coordinates.
type SpawnPoint struct {
	X float64
	Y float64
	Z float64
}

// Service is the read-only spatial query facade exposed to gameplay
// collaborators: movement, pathfinding point checks and mob spawning. Height,
// biome, slope and walkability queries are pure functions of world
// coordinates; tile residency is never a precondition.
type Service struct {
	cfg   *config.Config
	field *noise.Field
	tiles *tile.Service
	rnd   RandomGeneratorInterface
}

// NewService creates a spatial query service.
func NewService(cfg *config.Config, field *noise.Field, tiles *tile.Service, rnd RandomGeneratorInterface) *Service {
	return &Service{cfg: cfg, field: field, tiles: tiles, rnd: rnd}
}

// HeightAt returns terrain height at a world coordinate.
func (s *Service) HeightAt(x, z float64) float64 {
	return s.field.HeightAt(x, z)
}

// BiomeAt returns the biome definition for a tile coordinate.
func (s *Service) BiomeAt(tileX, tileZ int32) *biome.Definition {
	return s.field.BiomeAt(tileX, tileZ)
}

// SlopeAt returns the maximum directional gradient at a world coordinate.
func (s *Service) SlopeAt(x, z float64) float64 {
	return s.field.SlopeAt(x, z)
}

// Walkable reports whether a world coordinate can be stood on.
func (s *Service) Walkable(x, z float64) bool {
	return s.field.Walkable(x, z)
}

// SpawnCandidatesForTile samples up to maxCount valid mob spawn points inside
// a tile. Safe-zone biomes and biomes without mob types yield no candidates.
// Every returned point is walkable, above water, at least the configured
// distance from any road segment and outside every town's exclusion radius.
func (s *Service) SpawnCandidatesForTile(tileX, tileZ int32, maxCount int) []SpawnPoint {
	if maxCount <= 0 {
		return nil
	}
	def := s.field.BiomeAt(tileX, tileZ)
	if def.Difficulty == biome.DifficultySafe || len(def.Mobs) == 0 {
		return nil
	}

	roads := s.tileRoads(tileX, tileZ, def)
	originX := float64(tileX) * s.cfg.Terrain.TileSize
	originZ := float64(tileZ) * s.cfg.Terrain.TileSize

	var candidates []SpawnPoint
	attempts := maxCount * SpawnAttemptsFactor
	for i := 0; i < attempts && len(candidates) < maxCount; i++ {
		localX := s.rnd.Float64() * s.cfg.Terrain.TileSize
		localZ := s.rnd.Float64() * s.cfg.Terrain.TileSize
		worldX := originX + localX
		worldZ := originZ + localZ

		if !s.field.Walkable(worldX, worldZ) {
			continue
		}
		if s.field.Underwater(worldX, worldZ) {
			continue
		}
		if s.nearRoad(localX, localZ, roads) {
			continue
		}
		if s.nearTown(worldX, worldZ) {
			continue
		}

		candidates = append(candidates, SpawnPoint{
			X: worldX,
			Y: s.field.HeightAt(worldX, worldZ),
			Z: worldZ,
		})
	}
	return candidates
}

// tileRoads returns the tile's road segments: live state when the tile is
// resident, otherwise the deterministic derivation.
func (s *Service) tileRoads(tileX, tileZ int32, def *biome.Definition) []tile.RoadSegment {
	if t, ok := s.tiles.Get(tile.Key{X: tileX, Z: tileZ}); ok {
		return t.View().Roads
	}
	if road, ok := tile.ComputeRoad(s.cfg, s.field, tile.Key{X: tileX, Z: tileZ}, def); ok {
		return []tile.RoadSegment{road}
	}
	return nil
}

// nearRoad reports whether a tile-local point is within the road spawn
// exclusion distance of any road segment.
func (s *Service) nearRoad(localX, localZ float64, roads []tile.RoadSegment) bool {
	for _, road := range roads {
		if pointSegmentDistance(localX, localZ, road.StartX, road.StartZ, road.EndX, road.EndZ) < s.cfg.Towns.RoadSpawnDistance {
			return true
		}
	}
	return false
}

// nearTown reports whether a world point is inside any town's spawn
// exclusion radius.
func (s *Service) nearTown(worldX, worldZ float64) bool {
	half := s.cfg.Terrain.TileSize / 2
	for _, town := range s.cfg.Towns.Sites {
		centerX := float64(town.TileX)*s.cfg.Terrain.TileSize + half
		centerZ := float64(town.TileZ)*s.cfg.Terrain.TileSize + half
		if math.Hypot(worldX-centerX, worldZ-centerZ) < s.cfg.Towns.SpawnExclusionRadius {
			return true
		}
	}
	return false
}

// pointSegmentDistance returns the distance from point p to segment ab.
func pointSegmentDistance(px, pz, ax, az, bx, bz float64) float64 {
	abx, abz := bx-ax, bz-az
	apx, apz := px-ax, pz-az
	lenSq := abx*abx + abz*abz
	if lenSq == 0 {
		return math.Hypot(apx, apz)
	}
	t := (apx*abx + apz*abz) / lenSq
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	return math.Hypot(px-(ax+t*abx), pz-(az+t*abz))
}
