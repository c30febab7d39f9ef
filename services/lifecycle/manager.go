package lifecycle

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/VoidMesh/worldsim/internal/config"
	"github.com/VoidMesh/worldsim/internal/logging"
	"github.com/VoidMesh/worldsim/services/tile"
)

// Manager drives the per-tile state machine Unloaded -> Loaded -> Simulated
// -> Loaded -> Unloaded from player footprints. Simulated is a sub-state of
// Loaded: a tile is never simulated without being resident.
//
// Each tick the union of all players' core footprints (3x3 around the player)
// becomes the required-simulated set and the union of core+ring footprints
// (5x5) becomes the required-loaded set. Tiles outside every player's loaded
// footprint are evicted, saving dirty state first.
type Manager struct {
	cfg     *config.Config
	tiles   *tile.Service
	saver   TileSaverInterface
	players PlayerSourceInterface
	// coreCounts mirrors the per-tile resident-player counts applied last
	// tick, so counts can be diffed instead of rebuilt.
	coreCounts map[tile.Key]int32
}

// NewManager creates a chunk lifecycle manager.
func NewManager(cfg *config.Config, tiles *tile.Service, saver TileSaverInterface, players PlayerSourceInterface) *Manager {
	logging.GetLogger().Debug("Creating chunk lifecycle manager",
		"core_radius", cfg.Lifecycle.CoreRadius,
		"ring_radius", cfg.Lifecycle.RingRadius,
		"tick_interval", cfg.Lifecycle.TickInterval)
	return &Manager{
		cfg:        cfg,
		tiles:      tiles,
		saver:      saver,
		players:    players,
		coreCounts: make(map[tile.Key]int32),
	}
}

// playerTile computes the tile coordinate containing a player position.
func (m *Manager) playerTile(p PlayerPosition) tile.Key {
	return tile.Key{
		X: int32(math.Floor(p.X / m.cfg.Terrain.TileSize)),
		Z: int32(math.Floor(p.Z / m.cfg.Terrain.TileSize)),
	}
}

// footprints accumulates one player's core and loaded sets into the shared
// maps and counts core membership.
func (m *Manager) footprints(center tile.Key, simulated, loaded map[tile.Key]struct{}, counts map[tile.Key]int32) {
	core := m.cfg.Lifecycle.CoreRadius
	ring := m.cfg.Lifecycle.RingRadius
	for dx := -ring; dx <= ring; dx++ {
		for dz := -ring; dz <= ring; dz++ {
			key := tile.Key{X: center.X + dx, Z: center.Z + dz}
			loaded[key] = struct{}{}
			if dx >= -core && dx <= core && dz >= -core && dz <= core {
				simulated[key] = struct{}{}
				counts[key]++
			}
		}
	}
}

// Tick runs one lifecycle pass: compute required sets, generate missing
// tiles, flip simulated flags, update resident counts, evict unneeded tiles.
func (m *Manager) Tick(ctx context.Context) {
	start := time.Now()
	players := m.players.Players()

	requiredSimulated := make(map[tile.Key]struct{})
	requiredLoaded := make(map[tile.Key]struct{})
	counts := make(map[tile.Key]int32)
	for _, p := range players {
		m.footprints(m.playerTile(p), requiredSimulated, requiredLoaded, counts)
	}

	m.ensureLoaded(ctx, requiredLoaded)

	// Flip simulated flags. Only tiles fetched from the map are flipped, so
	// a tile can never be simulated while absent from the map.
	for _, t := range m.tiles.Loaded() {
		_, wantSimulated := requiredSimulated[t.Key]
		if t.Simulated() != wantSimulated {
			t.SetSimulated(wantSimulated)
		}
	}

	m.applyResidentCounts(counts)
	m.evictUnneeded(ctx, requiredLoaded)

	if len(players) > 0 {
		logging.WithDuration("lifecycle_tick", time.Since(start)).Debug("Lifecycle tick completed",
			"players", len(players),
			"loaded_tiles", m.tiles.LoadedCount(),
			"simulated_tiles", len(requiredSimulated))
	}
}

// ensureLoaded generates every required tile not yet resident, using a
// bounded worker pool. An in-flight generation whose player has already moved
// away still finishes and inserts its tile; idempotent generation makes that
// safe, and aborting would leak collaborator handles.
func (m *Manager) ensureLoaded(ctx context.Context, required map[tile.Key]struct{}) {
	var missing []tile.Key
	for key := range required {
		if _, ok := m.tiles.Get(key); !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) == 0 {
		return
	}

	workerCount := m.cfg.Lifecycle.GenerationWorkers
	if len(missing) < workerCount {
		workerCount = len(missing)
	}

	keyChan := make(chan tile.Key, len(missing))
	for _, key := range missing {
		keyChan <- key
	}
	close(keyChan)

	var wg sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for key := range keyChan {
				if _, err := m.tiles.GetOrCreate(ctx, key); err != nil {
					logging.WithTileCoords(key.X, key.Z).Error("Tile generation failed", "error", err)
				}
			}
		}()
	}
	wg.Wait()
}

// applyResidentCounts diffs the new per-tile core membership counts against
// the previous tick and applies the delta. Only counts actually applied are
// recorded: a tile missing from the map (its generation failed this tick)
// keeps a zero baseline so the full count applies once it appears. The counts
// are diagnostics; they never drive eviction.
func (m *Manager) applyResidentCounts(counts map[tile.Key]int32) {
	applied := make(map[tile.Key]int32, len(counts))
	for key, count := range counts {
		t, ok := m.tiles.Get(key)
		if !ok {
			continue
		}
		previous := m.coreCounts[key]
		for ; previous < count; previous++ {
			t.AddResident()
		}
		for ; previous > count; previous-- {
			t.RemoveResident()
		}
		applied[key] = count
	}
	for key, previous := range m.coreCounts {
		if _, stillCounted := counts[key]; stillCounted {
			continue
		}
		if t, ok := m.tiles.Get(key); ok {
			for ; previous > 0; previous-- {
				t.RemoveResident()
			}
		}
	}
	m.coreCounts = applied
}

// evictUnneeded unloads every resident tile no player's loaded footprint
// covers. Dirty tiles are saved synchronously first; if the save fails the
// eviction is deferred to a later tick rather than losing the mutations.
func (m *Manager) evictUnneeded(ctx context.Context, requiredLoaded map[tile.Key]struct{}) {
	for _, t := range m.tiles.Loaded() {
		if _, needed := requiredLoaded[t.Key]; needed {
			continue
		}
		if t.Dirty() {
			if err := m.saver.SaveTile(ctx, t); err != nil {
				logging.WithTileCoords(t.Key.X, t.Key.Z).Error("Deferring eviction: failed to save dirty tile", "error", err)
				continue
			}
		}
		m.tiles.Evict(t.Key)
	}
}
