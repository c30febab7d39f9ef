package persist

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/VoidMesh/worldsim/internal/config"
	"github.com/VoidMesh/worldsim/internal/logging"
	"github.com/VoidMesh/worldsim/services/tile"
)

// Scheduler drives periodic and forced serialization of resident tiles
// through the save contract, and performs the synchronous pre-eviction save
// for dirty tiles.
type Scheduler struct {
	cfg   *config.Config
	tiles *tile.Service
	saver SaverInterface

	// version is the monotonic world-state version, incremented after each
	// fully successful pass.
	version atomic.Uint64

	mu      sync.Mutex
	lastRun time.Time
}

// NewScheduler creates a persistence scheduler.
func NewScheduler(cfg *config.Config, tiles *tile.Service, saver SaverInterface) *Scheduler {
	return &Scheduler{
		cfg:     cfg,
		tiles:   tiles,
		saver:   saver,
		lastRun: time.Now(),
	}
}

// Version returns the current world-state version.
func (s *Scheduler) Version() uint64 {
	return s.version.Load()
}

// MaybeRun is the periodic entry point: it runs a full pass when the
// configured interval has elapsed since the last one.
func (s *Scheduler) MaybeRun(ctx context.Context) {
	s.mu.Lock()
	due := time.Since(s.lastRun) >= s.cfg.Persist.Interval
	s.mu.Unlock()
	if !due {
		return
	}
	if err := s.Flush(ctx); err != nil {
		logging.GetLogger().Error("Periodic persistence pass failed", "error", err)
	}
}

// Flush is the forced entry point: it serializes every resident tile (not
// just dirty ones; a full snapshot simplifies recovery), then increments the
// world-state version. Dirty flags clear per tile as each save succeeds.
func (s *Scheduler) Flush(ctx context.Context) error {
	start := time.Now()
	tiles := s.tiles.Loaded()

	var failed int
	for _, t := range tiles {
		if err := s.saveWithRetry(ctx, t); err != nil {
			logging.WithTileCoords(t.Key.X, t.Key.Z).Error("Failed to persist tile", "error", err)
			failed++
		}
	}

	s.mu.Lock()
	s.lastRun = time.Now()
	s.mu.Unlock()

	if failed > 0 {
		return fmt.Errorf("persistence pass failed for %d of %d tiles", failed, len(tiles))
	}

	version := s.version.Add(1)
	logging.WithDuration("persistence_pass", time.Since(start)).Info("Persistence pass completed",
		"tiles_saved", len(tiles),
		"world_version", version)
	return nil
}

// SaveTile saves a single tile synchronously with bounded retry. The chunk
// lifecycle manager calls this before evicting a dirty tile; eviction must
// not proceed when it fails.
func (s *Scheduler) SaveTile(ctx context.Context, t *tile.Tile) error {
	return s.saveWithRetry(ctx, t)
}

// saveWithRetry builds a snapshot and calls the save contract, retrying with
// linear backoff up to the configured attempt budget. The dirty flag clears
// only after a successful save, and only when no mutation landed after the
// snapshot was taken; a tile mutated mid-save stays dirty so the next pass
// captures the newer state.
func (s *Scheduler) saveWithRetry(ctx context.Context, t *tile.Tile) error {
	view := t.View()
	snapshot := s.buildSnapshot(view)

	var lastErr error
	for attempt := 1; attempt <= s.cfg.Persist.MaxRetries; attempt++ {
		if err := s.saver.SaveTile(ctx, snapshot); err != nil {
			lastErr = err
			logging.WithTileCoords(t.Key.X, t.Key.Z).Warn("Save attempt failed",
				"attempt", attempt,
				"max_retries", s.cfg.Persist.MaxRetries,
				"error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.cfg.Persist.RetryBackoff * time.Duration(attempt)):
			}
			continue
		}
		if !t.ClearDirtyIf(view.MutationGen) {
			logging.WithTileCoords(t.Key.X, t.Key.Z).Debug("Tile mutated during save, keeping dirty flag")
		}
		return nil
	}
	return fmt.Errorf("save failed after %d attempts: %w", s.cfg.Persist.MaxRetries, lastErr)
}

// buildSnapshot converts a consistent tile view into a snapshot record.
func (s *Scheduler) buildSnapshot(view tile.View) *Snapshot {
	return &Snapshot{
		FormatVersion: SnapshotFormatVersion,
		WorldID:       s.cfg.WorldID,
		WorldVersion:  s.version.Load(),
		TileX:         view.Key.X,
		TileZ:         view.Key.Z,
		BiomeID:       view.BiomeID,
		Heights:       view.Heights,
		Resources:     view.Resources,
		Roads:         view.Roads,
		Residents:     view.Residents,
		Simulated:     view.Simulated,
		SavedAt:       time.Now().UTC(),
	}
}
