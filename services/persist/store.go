package persist

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/VoidMesh/worldsim/services/tile"
)

// DBInterface abstracts the pgx pool operations the store needs, so tests
// can substitute pgxmock.
type DBInterface interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const createTileSnapshotsTable = `
CREATE TABLE IF NOT EXISTS tile_snapshots (
	world_id      UUID        NOT NULL,
	tile_x        INTEGER     NOT NULL,
	tile_z        INTEGER     NOT NULL,
	world_version BIGINT      NOT NULL,
	payload       BYTEA       NOT NULL,
	saved_at      TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (world_id, tile_x, tile_z)
)`

const upsertTileSnapshot = `
INSERT INTO tile_snapshots (world_id, tile_x, tile_z, world_version, payload, saved_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (world_id, tile_x, tile_z)
DO UPDATE SET world_version = EXCLUDED.world_version,
              payload       = EXCLUDED.payload,
              saved_at      = EXCLUDED.saved_at`

const selectTileSnapshot = `
SELECT payload FROM tile_snapshots
WHERE world_id = $1 AND tile_x = $2 AND tile_z = $3`

// Store persists tile snapshots to Postgres. It implements both the save
// contract and the tile rehydration source.
type Store struct {
	db      DBInterface
	codec   *Codec
	worldID string
}

// NewStore creates a Postgres-backed snapshot store.
func NewStore(db DBInterface, worldID string) (*Store, error) {
	codec, err := NewCodec()
	if err != nil {
		return nil, err
	}
	return &Store{db: db, codec: codec, worldID: worldID}, nil
}

// EnsureSchema creates the snapshot table when it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, createTileSnapshotsTable); err != nil {
		return fmt.Errorf("failed to ensure tile_snapshots schema: %w", err)
	}
	return nil
}

// SaveTile upserts one tile snapshot.
func (s *Store) SaveTile(ctx context.Context, snapshot *Snapshot) error {
	payload, err := s.codec.Encode(snapshot)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, upsertTileSnapshot,
		snapshot.WorldID,
		snapshot.TileX,
		snapshot.TileZ,
		snapshot.WorldVersion,
		payload,
		snapshot.SavedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save tile snapshot (%d,%d): %w", snapshot.TileX, snapshot.TileZ, err)
	}
	return nil
}

// Rehydrate loads a previously-persisted tile's resource and road state.
// A missing row is a miss, not an error.
func (s *Store) Rehydrate(ctx context.Context, tileX, tileZ int32) (*tile.RestoredTile, bool, error) {
	var payload []byte
	err := s.db.QueryRow(ctx, selectTileSnapshot, s.worldID, tileX, tileZ).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load tile snapshot (%d,%d): %w", tileX, tileZ, err)
	}

	snapshot, err := s.codec.Decode(payload)
	if err != nil {
		return nil, false, err
	}

	resources := make([]*tile.ResourceNode, len(snapshot.Resources))
	for i := range snapshot.Resources {
		node := snapshot.Resources[i]
		resources[i] = &node
	}
	return &tile.RestoredTile{
		BiomeID:   snapshot.BiomeID,
		Resources: resources,
		Roads:     snapshot.Roads,
	}, true, nil
}
