package persist

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/VoidMesh/worldsim/services/tile"
)

// SnapshotFormatVersion identifies the payload encoding, bumped on breaking
// payload changes.
const SnapshotFormatVersion = 1

// Snapshot is the point-in-time per-tile record handed to the save contract.
// It is a write-only artifact from the scheduler's point of view; only the
// rehydration path reads payloads back.
type Snapshot struct {
	FormatVersion int    `json:"format_version"`
	WorldID       string `json:"world_id"`
	// WorldVersion is the monotonic world-state version current at save time.
	WorldVersion uint64              `json:"world_version"`
	TileX        int32               `json:"tile_x"`
	TileZ        int32               `json:"tile_z"`
	BiomeID      string              `json:"biome_id"`
	Heights      []float64           `json:"heights"`
	Resources    []tile.ResourceNode `json:"resources"`
	Roads        []tile.RoadSegment  `json:"roads"`
	Residents    int32               `json:"residents"`
	Simulated    bool                `json:"simulated"`
	SavedAt      time.Time           `json:"saved_at"`
}

// Codec serializes snapshots to a zstd-compressed JSON document for storage.
type Codec struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewCodec creates the snapshot codec.
func NewCodec() (*Codec, error) {
	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	return &Codec{encoder: encoder, decoder: decoder}, nil
}

// Encode marshals and compresses a snapshot payload.
func (c *Codec) Encode(snapshot *Snapshot) ([]byte, error) {
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize snapshot: %w", err)
	}
	return c.encoder.EncodeAll(raw, nil), nil
}

// Decode decompresses and unmarshals a snapshot payload.
func (c *Codec) Decode(payload []byte) (*Snapshot, error) {
	raw, err := c.decoder.DecodeAll(payload, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress snapshot: %w", err)
	}
	var snapshot Snapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to deserialize snapshot: %w", err)
	}
	return &snapshot, nil
}
