package lifecycle

import (
	"context"

	"github.com/VoidMesh/worldsim/services/tile"
)

// PlayerPosition is a connected player's current world position.
type PlayerPosition struct {
	ID string
	X  float64
	Y  float64
	Z  float64
}

// PlayerSourceInterface is the read-only player-position collaborator. The
// manager iterates it once per tick.
type PlayerSourceInterface interface {
	Players() []PlayerPosition
}

// TileSaverInterface is the slice of the persistence scheduler the manager
// needs: the synchronous pre-eviction save for dirty tiles.
type TileSaverInterface interface {
	SaveTile(ctx context.Context, t *tile.Tile) error
}

// StaticPlayerSource is a fixed in-memory player source for tests and tools.
type StaticPlayerSource struct {
	positions []PlayerPosition
}

// NewStaticPlayerSource creates a player source with the given positions.
func NewStaticPlayerSource(positions ...PlayerPosition) *StaticPlayerSource {
	return &StaticPlayerSource{positions: positions}
}

// Players returns the current positions.
func (s *StaticPlayerSource) Players() []PlayerPosition {
	out := make([]PlayerPosition, len(s.positions))
	copy(out, s.positions)
	return out
}

// Move updates or adds a player's position.
func (s *StaticPlayerSource) Move(id string, x, y, z float64) {
	for i := range s.positions {
		if s.positions[i].ID == id {
			s.positions[i].X, s.positions[i].Y, s.positions[i].Z = x, y, z
			return
		}
	}
	s.positions = append(s.positions, PlayerPosition{ID: id, X: x, Y: y, Z: z})
}

// Remove drops a player from the source.
func (s *StaticPlayerSource) Remove(id string) {
	for i := range s.positions {
		if s.positions[i].ID == id {
			s.positions = append(s.positions[:i], s.positions[i+1:]...)
			return
		}
	}
}
