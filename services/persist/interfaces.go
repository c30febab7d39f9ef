package persist

import (
	"context"

	"github.com/VoidMesh/worldsim/internal/logging"
)

// SaverInterface is the external save contract. Implementations may be
// slow (database, object storage); callers treat failures as retryable and
// never silently drop them.
type SaverInterface interface {
	SaveTile(ctx context.Context, snapshot *Snapshot) error
}

// LogSaver is a save contract for worlds running without a database: it logs
// each snapshot instead of storing it. Durability is explicitly opt-out in
// that mode.
type LogSaver struct{}

func (LogSaver) SaveTile(ctx context.Context, snapshot *Snapshot) error {
	logging.WithTileCoords(snapshot.TileX, snapshot.TileZ).Info("Snapshot discarded (no persistence backend configured)",
		"world_version", snapshot.WorldVersion,
		"resources", len(snapshot.Resources))
	return nil
}
