package world

import (
	"context"
	"fmt"
	"time"

	"github.com/VoidMesh/worldsim/internal/config"
	"github.com/VoidMesh/worldsim/internal/logging"
	"github.com/VoidMesh/worldsim/services/audit"
	"github.com/VoidMesh/worldsim/services/biome"
	"github.com/VoidMesh/worldsim/services/lifecycle"
	"github.com/VoidMesh/worldsim/services/noise"
	"github.com/VoidMesh/worldsim/services/persist"
	"github.com/VoidMesh/worldsim/services/query"
	"github.com/VoidMesh/worldsim/services/tile"
)

// persistCheckInterval is how often the run loop asks the scheduler whether a
// periodic pass is due. The pass cadence itself comes from config.
const persistCheckInterval = time.Minute

// Options carries the external collaborators for a world instance. Zero
// values fall back to no-op collaborators, which is the correct behavior for
// tests and non-authoritative roles.
type Options struct {
	Renderer   tile.RendererInterface
	Physics    tile.PhysicsInterface
	Saver      persist.SaverInterface
	Rehydrator tile.RehydratorInterface
	Players    lifecycle.PlayerSourceInterface
	// Authoritative enables collision cooking on generated tiles.
	Authoritative bool
}

// World is one simulated world instance: the shared tile map plus the
// periodic tasks that mutate it (lifecycle ticking, persistence, auditing).
// All periodic tasks run on a single goroutine inside Run.
type World struct {
	cfg       *config.Config
	catalog   *biome.Catalog
	field     *noise.Field
	tiles     *tile.Service
	manager   *lifecycle.Manager
	scheduler *persist.Scheduler
	auditor   *audit.Auditor
	queries   *query.Service
}

// New wires a world instance from configuration and collaborators.
func New(cfg *config.Config, opts Options) (*World, error) {
	if opts.Renderer == nil {
		opts.Renderer = tile.NopRenderer{}
	}
	if opts.Physics == nil {
		opts.Physics = tile.NopPhysics{}
	}
	if opts.Saver == nil {
		opts.Saver = persist.LogSaver{}
	}
	if opts.Players == nil {
		opts.Players = lifecycle.NewStaticPlayerSource()
	}

	catalog, err := biome.NewCatalog(biome.NewDefaultLoggerWrapper())
	if err != nil {
		return nil, fmt.Errorf("failed to build biome catalog: %w", err)
	}

	field := noise.NewField(cfg, catalog)
	tiles := tile.NewService(cfg, catalog, field, opts.Renderer, opts.Physics,
		opts.Rehydrator, opts.Authoritative, tile.NewDefaultLoggerWrapper())
	scheduler := persist.NewScheduler(cfg, tiles, opts.Saver)
	manager := lifecycle.NewManager(cfg, tiles, scheduler, opts.Players)
	auditor := audit.NewAuditor(cfg, tiles)
	queries := query.NewService(cfg, field, tiles, query.NewRandomGenerator(cfg.Seed))

	logging.WithWorldID(cfg.WorldID).Info("World constructed",
		"world_name", cfg.WorldName,
		"seed", cfg.Seed,
		"biomes", catalog.Len(),
		"towns", len(cfg.Towns.Sites),
		"authoritative", opts.Authoritative)

	return &World{
		cfg:       cfg,
		catalog:   catalog,
		field:     field,
		tiles:     tiles,
		manager:   manager,
		scheduler: scheduler,
		auditor:   auditor,
		queries:   queries,
	}, nil
}

// Queries exposes the spatial query facade to gameplay collaborators.
func (w *World) Queries() *query.Service {
	return w.queries
}

// Tiles exposes the tile service for gameplay resource mutation hooks.
func (w *World) Tiles() *tile.Service {
	return w.tiles
}

// Version returns the current world-state version.
func (w *World) Version() uint64 {
	return w.scheduler.Version()
}

// AuditDeviations returns the cumulative bounding-box deviation count.
func (w *World) AuditDeviations() uint64 {
	return w.auditor.Deviations()
}

// Step advances the world by one lifecycle tick. Exposed for deterministic
// tests; Run drives it on the configured cadence.
func (w *World) Step(ctx context.Context) {
	w.manager.Tick(ctx)
	w.tiles.RespawnTick(w.cfg.Lifecycle.TickInterval)
}

// Run drives the periodic tasks until the context is canceled. Lifecycle
// ticking, the persistence cadence check and auditing all run on this one
// goroutine against the shared tile map.
func (w *World) Run(ctx context.Context) error {
	lifecycleTicker := time.NewTicker(w.cfg.Lifecycle.TickInterval)
	defer lifecycleTicker.Stop()
	auditTicker := time.NewTicker(w.cfg.Audit.Interval)
	defer auditTicker.Stop()
	persistTicker := time.NewTicker(persistCheckInterval)
	defer persistTicker.Stop()

	logging.WithWorldID(w.cfg.WorldID).Info("World loop started",
		"tick_interval", w.cfg.Lifecycle.TickInterval,
		"persist_interval", w.cfg.Persist.Interval,
		"audit_interval", w.cfg.Audit.Interval)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-lifecycleTicker.C:
			w.Step(ctx)
		case <-persistTicker.C:
			w.scheduler.MaybeRun(ctx)
		case <-auditTicker.C:
			w.auditor.Check()
		}
	}
}

// Shutdown forces a final full persistence pass so no dirty state outlives
// the process.
func (w *World) Shutdown(ctx context.Context) error {
	logging.WithWorldID(w.cfg.WorldID).Info("World shutting down, flushing tiles",
		"loaded_tiles", w.tiles.LoadedCount())
	if err := w.scheduler.Flush(ctx); err != nil {
		return fmt.Errorf("final persistence pass failed: %w", err)
	}
	return nil
}
