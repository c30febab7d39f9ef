package world

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VoidMesh/worldsim/internal/config"
	"github.com/VoidMesh/worldsim/services/lifecycle"
	"github.com/VoidMesh/worldsim/services/tile"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Seed = 1234
	cfg.Terrain.HeightmapResolution = 4
	cfg.Lifecycle.TickInterval = 10 * time.Millisecond
	cfg.Audit.Interval = 20 * time.Millisecond
	return cfg
}

func TestNew_DefaultsToNopCollaborators(t *testing.T) {
	w, err := New(testConfig(), Options{})
	require.NoError(t, err)
	require.NotNil(t, w)

	assert.NotNil(t, w.Queries())
	assert.NotNil(t, w.Tiles())
	assert.Equal(t, uint64(0), w.Version())
	assert.Equal(t, uint64(0), w.AuditDeviations())
}

func TestStep_LoadsPlayerFootprint(t *testing.T) {
	players := lifecycle.NewStaticPlayerSource()
	players.Move("p1", 0, 0, 0)

	w, err := New(testConfig(), Options{Players: players, Authoritative: true})
	require.NoError(t, err)

	w.Step(context.Background())
	assert.Equal(t, 25, w.Tiles().LoadedCount())

	core, ok := w.Tiles().Get(tile.Key{X: 0, Z: 0})
	require.True(t, ok)
	assert.True(t, core.Simulated())
}

func TestShutdown_FlushesAndAdvancesVersion(t *testing.T) {
	players := lifecycle.NewStaticPlayerSource()
	players.Move("p1", 0, 0, 0)

	w, err := New(testConfig(), Options{Players: players})
	require.NoError(t, err)
	w.Step(context.Background())

	require.NoError(t, w.Shutdown(context.Background()))
	assert.Equal(t, uint64(1), w.Version())
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	w, err := New(testConfig(), Options{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}

func TestQueries_ServeWithoutResidency(t *testing.T) {
	w, err := New(testConfig(), Options{})
	require.NoError(t, err)

	// No tiles are loaded; spatial queries still answer.
	require.Equal(t, 0, w.Tiles().LoadedCount())
	h := w.Queries().HeightAt(12345, -6789)
	assert.GreaterOrEqual(t, h, testConfig().Terrain.BaseLevel)
	assert.NotNil(t, w.Queries().BiomeAt(123, -67))
	assert.Equal(t, 0, w.Tiles().LoadedCount(), "pure queries never load tiles")
}
