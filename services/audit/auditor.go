package audit

import (
	"math"
	"sync/atomic"
	"time"

	"github.com/VoidMesh/worldsim/internal/config"
	"github.com/VoidMesh/worldsim/internal/logging"
	"github.com/VoidMesh/worldsim/services/tile"
)

// Auditor periodically checks geometry consistency across resident tiles: the
// horizontal extent of each tile's height grid against the nominal tile size,
// vertical bounds against the configured height range, and tile coordinates
// against the world bounds. It detects generation defects and records them
// for observability; it never auto-corrects.
type Auditor struct {
	cfg   *config.Config
	tiles *tile.Service

	checksRun  atomic.Uint64
	deviations atomic.Uint64
}

// NewAuditor creates a bounding-box auditor.
func NewAuditor(cfg *config.Config, tiles *tile.Service) *Auditor {
	return &Auditor{cfg: cfg, tiles: tiles}
}

// ChecksRun returns how many audit passes have completed.
func (a *Auditor) ChecksRun() uint64 {
	return a.checksRun.Load()
}

// Deviations returns the cumulative count of detected deviations.
func (a *Auditor) Deviations() uint64 {
	return a.deviations.Load()
}

// Check runs one audit pass over every resident tile.
func (a *Auditor) Check() {
	start := time.Now()
	checked := 0
	found := uint64(0)

	for _, t := range a.tiles.Loaded() {
		checked++
		found += a.auditTile(t)
	}

	a.checksRun.Add(1)
	a.deviations.Add(found)
	if found > 0 {
		logging.GetLogger().Warn("Bounding-box audit found deviations",
			"tiles_checked", checked,
			"deviations", found,
			"duration", time.Since(start))
	}
}

// auditTile validates one tile's geometry bounds and returns the number of
// deviations recorded.
func (a *Auditor) auditTile(t *tile.Tile) uint64 {
	logger := logging.WithTileCoords(t.Key.X, t.Key.Z)
	view := t.View()
	var found uint64

	// World bounds.
	bound := a.cfg.Audit.WorldBoundTiles
	if t.Key.X < -bound || t.Key.X > bound || t.Key.Z < -bound || t.Key.Z > bound {
		logger.Warn("Tile outside configured world bounds", "bound_tiles", bound)
		found++
	}

	// Horizontal extent derived from the actual sample grid.
	res := a.cfg.Terrain.HeightmapResolution
	gridSide := int(math.Round(math.Sqrt(float64(len(view.Heights)))))
	if gridSide*gridSide != len(view.Heights) || gridSide < 2 {
		logger.Warn("Tile height grid is not square", "samples", len(view.Heights))
		return found + 1
	}
	step := a.cfg.Terrain.TileSize / float64(res-1)
	extent := float64(gridSide-1) * step
	tolerance := a.cfg.Terrain.TileSize * a.cfg.Audit.ExtentTolerance
	if math.Abs(extent-a.cfg.Terrain.TileSize) > tolerance {
		logger.Warn("Tile horizontal extent deviates from tile size",
			"extent", extent,
			"expected", a.cfg.Terrain.TileSize,
			"tolerance", tolerance)
		found++
	}

	// Vertical bounds.
	minHeight, maxHeight := math.MaxFloat64, -math.MaxFloat64
	for _, h := range view.Heights {
		if math.IsNaN(h) || math.IsInf(h, 0) {
			logger.Warn("Tile height grid contains non-finite sample")
			return found + 1
		}
		minHeight = math.Min(minHeight, h)
		maxHeight = math.Max(maxHeight, h)
	}
	ceiling := a.cfg.Terrain.BaseLevel + a.cfg.Terrain.MaxHeight*a.cfg.Terrain.HeightAmplifier
	if minHeight < a.cfg.Terrain.BaseLevel || maxHeight > ceiling {
		logger.Warn("Tile vertical bounds outside expected range",
			"min_height", minHeight,
			"max_height", maxHeight,
			"floor", a.cfg.Terrain.BaseLevel,
			"ceiling", ceiling)
		found++
	}

	return found
}
