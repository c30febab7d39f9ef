package tile

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/VoidMesh/worldsim/services/biome"
)

// Key identifies a tile by its integer tile coordinates.
type Key struct {
	X int32
	Z int32
}

func (k Key) String() string {
	return fmt.Sprintf("(%d,%d)", k.X, k.Z)
}

// GeometryHandle is an opaque reference returned by the rendering
// collaborator. A nil handle means no geometry was built.
type GeometryHandle any

// CollisionHandle is an opaque reference returned by the physics
// collaborator. Nil is permitted when physics is uninitialized, e.g. on
// non-authoritative clients.
type CollisionHandle any

// ResourceNode is a harvestable node placed during tile generation. Node ids
// are derived from the tile key, type and index, so regeneration of the same
// tile yields the same ids.
type ResourceNode struct {
	ID   string             `json:"id"`
	Type biome.ResourceType `json:"type"`
	// LocalX/LocalZ are tile-local offsets in world units, in [0,tileSize).
	LocalX      float64 `json:"local_x"`
	LocalZ      float64 `json:"local_z"`
	Health      int32   `json:"health"`
	MaxHealth   int32   `json:"max_health"`
	Harvestable bool    `json:"harvestable"`
	// RespawnRemaining counts down only while the owning tile is simulated.
	RespawnRemaining time.Duration `json:"respawn_remaining,omitempty"`
}

// RoadSegment is a deterministic road crossing a tile toward its nearest
// town. Read-only after generation.
type RoadSegment struct {
	StartX    float64 `json:"start_x"`
	StartZ    float64 `json:"start_z"`
	EndX      float64 `json:"end_x"`
	EndZ      float64 `json:"end_z"`
	Width     float64 `json:"width"`
	Surface   string  `json:"surface"`
	Condition float64 `json:"condition"`
}

// Tile is the mutable per-key world region. At most one instance exists per
// key; the Service map is the only owner. Field mutation goes through the
// tile mutex so lifecycle ticking, persistence and gameplay mutation can
// overlap safely.
type Tile struct {
	mu sync.RWMutex

	Key     Key
	BiomeID string
	// Heights is the resolution x resolution sample grid, row-major.
	Heights []float64
	// ColorWeights carries one decorative material weight per height sample;
	// consumed by the rendering collaborator only.
	ColorWeights []float64
	Resources    []*ResourceNode
	Roads        []RoadSegment

	generated bool
	dirty     bool
	// mutationGen counts dirty-marking mutations, so a save can tell whether
	// the tile changed after its snapshot was taken.
	mutationGen uint64
	simulated   bool
	residents   int32
	lastActive  time.Time

	geometry  GeometryHandle
	collision CollisionHandle
	// released guards exactly-once handle release across eviction paths.
	released bool
}

// Generated reports whether generation fully completed for this tile.
func (t *Tile) Generated() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.generated
}

// Dirty reports whether the tile has mutations not yet persisted.
func (t *Tile) Dirty() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.dirty
}

// MarkDirty flags the tile as needing a save.
func (t *Tile) MarkDirty() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.markDirtyLocked()
}

// markDirtyLocked flags the tile as needing a save. Callers hold t.mu.
func (t *Tile) markDirtyLocked() {
	t.dirty = true
	t.mutationGen++
}

// ClearDirtyIf resets the needs-save flag only when no mutation landed after
// the snapshot identified by gen was taken. It reports whether it cleared; a
// false result means the tile carries unsaved mutations and must stay dirty.
func (t *Tile) ClearDirtyIf(gen uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.mutationGen != gen {
		return false
	}
	t.dirty = false
	return true
}

// Simulated reports whether the tile is actively simulated.
func (t *Tile) Simulated() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.simulated
}

// SetSimulated flips the simulated sub-state. It never affects residency.
func (t *Tile) SetSimulated(simulated bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.simulated = simulated
	if simulated {
		t.lastActive = time.Now()
	}
}

// Residents returns the diagnostic resident-player count.
func (t *Tile) Residents() int32 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.residents
}

// AddResident increments the diagnostic resident-player count.
func (t *Tile) AddResident() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.residents++
	t.lastActive = time.Now()
}

// RemoveResident decrements the diagnostic resident-player count, never below
// zero.
func (t *Tile) RemoveResident() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.residents > 0 {
		t.residents--
	}
}

// LastActive returns the last time a player entered or the tile simulated.
func (t *Tile) LastActive() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.lastActive
}

// Geometry returns the opaque render handle (nil when none was built).
func (t *Tile) Geometry() GeometryHandle {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.geometry
}

// Collision returns the opaque collision handle (nil on non-authoritative
// roles).
func (t *Tile) Collision() CollisionHandle {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.collision
}

// View is a consistent read-only copy of a tile's persistable state.
// MutationGen identifies the mutation state the copy was taken at, for use
// with ClearDirtyIf.
type View struct {
	Key         Key
	BiomeID     string
	Heights     []float64
	Resources   []ResourceNode
	Roads       []RoadSegment
	Residents   int32
	Simulated   bool
	Dirty       bool
	MutationGen uint64
}

// View copies the tile's persistable state under the tile lock. Heights are
// shared (immutable after generation); resources and roads are copied.
func (t *Tile) View() View {
	t.mu.RLock()
	defer t.mu.RUnlock()
	resources := make([]ResourceNode, len(t.Resources))
	for i, node := range t.Resources {
		resources[i] = *node
	}
	roads := make([]RoadSegment, len(t.Roads))
	copy(roads, t.Roads)
	return View{
		Key:         t.Key,
		BiomeID:     t.BiomeID,
		Heights:     t.Heights,
		Resources:   resources,
		Roads:       roads,
		Residents:   t.residents,
		Simulated:   t.simulated,
		Dirty:       t.dirty,
		MutationGen: t.mutationGen,
	}
}

// releaseHandles hands both opaque handles back to their collaborators.
// Safe to call more than once; only the first call releases.
func (t *Tile) releaseHandles(renderer RendererInterface, physics PhysicsInterface) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.released {
		return
	}
	t.released = true
	if t.geometry != nil && renderer != nil {
		renderer.Release(t.geometry)
		t.geometry = nil
	}
	if t.collision != nil && physics != nil {
		physics.Release(t.collision)
		t.collision = nil
	}
}

// nodeID derives a stable resource node id from the tile key, resource type
// and placement index.
func nodeID(key Key, resourceType biome.ResourceType, index int) string {
	h := md5.Sum([]byte(fmt.Sprintf("%d:%d:%s:%d", key.X, key.Z, resourceType, index)))
	return hex.EncodeToString(h[:8])
}
