package persist

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VoidMesh/worldsim/internal/config"
	"github.com/VoidMesh/worldsim/services/biome"
	"github.com/VoidMesh/worldsim/services/noise"
	"github.com/VoidMesh/worldsim/services/tile"
)

// mockLogger satisfies the biome and tile logger interfaces.
type mockLogger struct{}

func (mockLogger) Debug(msg string, keysAndValues ...interface{}) {}
func (mockLogger) Info(msg string, keysAndValues ...interface{})  {}
func (mockLogger) Warn(msg string, keysAndValues ...interface{})  {}
func (mockLogger) Error(msg string, keysAndValues ...interface{}) {}

// mockSaver records snapshots and fails a configurable number of leading
// attempts per tile.
type mockSaver struct {
	mu        sync.Mutex
	snapshots []*Snapshot
	failFirst map[tile.Key]int
	attempts  map[tile.Key]int
	// onSave runs before the attempt is counted, so tests can interleave a
	// gameplay mutation with an in-flight save.
	onSave func(snapshot *Snapshot)
}

func newMockSaver() *mockSaver {
	return &mockSaver{failFirst: make(map[tile.Key]int), attempts: make(map[tile.Key]int)}
}

func (m *mockSaver) SaveTile(ctx context.Context, snapshot *Snapshot) error {
	if m.onSave != nil {
		m.onSave(snapshot)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := tile.Key{X: snapshot.TileX, Z: snapshot.TileZ}
	m.attempts[key]++
	if m.attempts[key] <= m.failFirst[key] {
		return errors.New("transient save failure")
	}
	m.snapshots = append(m.snapshots, snapshot)
	return nil
}

func (m *mockSaver) saved() []*Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Snapshot, len(m.snapshots))
	copy(out, m.snapshots)
	return out
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Seed = 555
	cfg.Terrain.HeightmapResolution = 4
	cfg.Persist.RetryBackoff = time.Millisecond
	return cfg
}

func newTileService(t *testing.T, cfg *config.Config) *tile.Service {
	t.Helper()
	catalog, err := biome.NewCatalog(mockLogger{})
	require.NoError(t, err)
	field := noise.NewField(cfg, catalog)
	return tile.NewService(cfg, catalog, field, tile.NopRenderer{}, tile.NopPhysics{}, nil, true, mockLogger{})
}

func loadTiles(t *testing.T, tiles *tile.Service, keys ...tile.Key) {
	t.Helper()
	for _, key := range keys {
		_, err := tiles.GetOrCreate(context.Background(), key)
		require.NoError(t, err)
	}
}

func TestFlush_SavesEveryResidentTile(t *testing.T) {
	cfg := testConfig()
	tiles := newTileService(t, cfg)
	keys := []tile.Key{{X: 0, Z: 0}, {X: 1, Z: 0}, {X: 0, Z: 1}}
	loadTiles(t, tiles, keys...)

	saver := newMockSaver()
	scheduler := NewScheduler(cfg, tiles, saver)

	require.NoError(t, scheduler.Flush(context.Background()))

	saved := saver.saved()
	assert.Len(t, saved, len(keys), "a full pass serializes every resident tile, dirty or not")
	for _, snapshot := range saved {
		assert.Equal(t, SnapshotFormatVersion, snapshot.FormatVersion)
		assert.Equal(t, cfg.WorldID, snapshot.WorldID)
		assert.NotEmpty(t, snapshot.BiomeID)
		assert.NotEmpty(t, snapshot.Heights)
		assert.False(t, snapshot.SavedAt.IsZero())
	}
}

func TestFlush_IncrementsVersionOnlyOnFullSuccess(t *testing.T) {
	cfg := testConfig()
	cfg.Persist.MaxRetries = 1
	tiles := newTileService(t, cfg)
	loadTiles(t, tiles, tile.Key{X: 0, Z: 0}, tile.Key{X: 1, Z: 1})

	saver := newMockSaver()
	scheduler := NewScheduler(cfg, tiles, saver)
	require.Equal(t, uint64(0), scheduler.Version())

	// One tile fails all its attempts: the pass errors, version holds.
	saver.failFirst[tile.Key{X: 1, Z: 1}] = 99
	assert.Error(t, scheduler.Flush(context.Background()))
	assert.Equal(t, uint64(0), scheduler.Version(), "partial passes never advance the world version")

	// Recovered backend: next pass succeeds and the version advances once.
	saver.failFirst[tile.Key{X: 1, Z: 1}] = 0
	require.NoError(t, scheduler.Flush(context.Background()))
	assert.Equal(t, uint64(1), scheduler.Version())
}

func TestFlush_ClearsDirtyFlags(t *testing.T) {
	cfg := testConfig()
	tiles := newTileService(t, cfg)
	key := tile.Key{X: 2, Z: 3}
	loadTiles(t, tiles, key)

	dirtyTile, _ := tiles.Get(key)
	dirtyTile.MarkDirty()

	scheduler := NewScheduler(cfg, tiles, newMockSaver())
	require.NoError(t, scheduler.Flush(context.Background()))
	assert.False(t, dirtyTile.Dirty())
}

func TestSaveTile_RetriesTransientFailures(t *testing.T) {
	cfg := testConfig()
	cfg.Persist.MaxRetries = 3
	tiles := newTileService(t, cfg)
	key := tile.Key{X: 4, Z: 4}
	loadTiles(t, tiles, key)

	saver := newMockSaver()
	saver.failFirst[key] = 2 // fails twice, succeeds on the third attempt

	scheduler := NewScheduler(cfg, tiles, saver)
	target, _ := tiles.Get(key)
	target.MarkDirty()

	require.NoError(t, scheduler.SaveTile(context.Background(), target))
	assert.Equal(t, 3, saver.attempts[key])
	assert.False(t, target.Dirty(), "dirty clears only after the save lands")
}

func TestSaveTile_MutationDuringSaveStaysDirty(t *testing.T) {
	cfg := testConfig()
	tiles := newTileService(t, cfg)
	key := tile.Key{X: 6, Z: 1}
	loadTiles(t, tiles, key)

	target, _ := tiles.Get(key)
	target.Resources = append(target.Resources, &tile.ResourceNode{
		ID:          "vein",
		Type:        biome.ResourceOre,
		Health:      150,
		MaxHealth:   150,
		Harvestable: true,
	})
	target.MarkDirty()

	// A harvest lands while the save contract is running: the snapshot on the
	// wire predates it, so the tile must stay dirty.
	saver := newMockSaver()
	saver.onSave = func(*Snapshot) {
		_, err := tiles.HarvestResource(key, "vein", 25)
		require.NoError(t, err)
	}
	scheduler := NewScheduler(cfg, tiles, saver)

	require.NoError(t, scheduler.SaveTile(context.Background(), target))
	assert.True(t, target.Dirty(), "a mutation during the save must keep the tile dirty")

	// A quiet follow-up save carries the harvest and clears the flag.
	saver.onSave = nil
	require.NoError(t, scheduler.SaveTile(context.Background(), target))
	assert.False(t, target.Dirty())

	saved := saver.saved()
	require.Len(t, saved, 2)
	last := saved[1].Resources[len(saved[1].Resources)-1]
	assert.Equal(t, int32(125), last.Health, "the second snapshot includes the harvest")
}

func TestSaveTile_ExhaustedRetriesFail(t *testing.T) {
	cfg := testConfig()
	cfg.Persist.MaxRetries = 2
	tiles := newTileService(t, cfg)
	key := tile.Key{X: 5, Z: 5}
	loadTiles(t, tiles, key)

	saver := newMockSaver()
	saver.failFirst[key] = 99

	scheduler := NewScheduler(cfg, tiles, saver)
	target, _ := tiles.Get(key)
	target.MarkDirty()

	err := scheduler.SaveTile(context.Background(), target)
	require.Error(t, err)
	assert.Equal(t, 2, saver.attempts[key])
	assert.True(t, target.Dirty(), "a failed save leaves the tile dirty")
}

func TestMaybeRun_RespectsInterval(t *testing.T) {
	cfg := testConfig()
	cfg.Persist.Interval = time.Hour
	tiles := newTileService(t, cfg)
	loadTiles(t, tiles, tile.Key{X: 0, Z: 0})

	saver := newMockSaver()
	scheduler := NewScheduler(cfg, tiles, saver)

	// Freshly constructed: the interval has not elapsed.
	scheduler.MaybeRun(context.Background())
	assert.Empty(t, saver.saved())

	// Backdate the last run to force the pass.
	scheduler.mu.Lock()
	scheduler.lastRun = time.Now().Add(-2 * time.Hour)
	scheduler.mu.Unlock()

	scheduler.MaybeRun(context.Background())
	assert.Len(t, saver.saved(), 1)
}
