package tile

import (
	"context"

	"github.com/VoidMesh/worldsim/internal/logging"
)

// RendererInterface is the external rendering collaborator. Geometry and
// material construction are out of scope for the simulation; the service only
// holds the returned opaque handle and releases it exactly once on eviction.
type RendererInterface interface {
	BuildTileGeometry(heights []float64, colorWeights []float64) (GeometryHandle, error)
	Attach(handle GeometryHandle, worldX, worldZ float64)
	Release(handle GeometryHandle)
}

// PhysicsInterface is the external physics collaborator. CookCollision may
// return a nil handle when physics is uninitialized (non-authoritative
// clients); Release is only called for non-nil handles.
type PhysicsInterface interface {
	CookCollision(heights []float64) (CollisionHandle, error)
	Release(handle CollisionHandle)
}

// RestoredTile is previously-persisted tile state offered by a rehydration
// source. Heights are not included: the height grid is deterministic and is
// always regenerated from the field.
type RestoredTile struct {
	BiomeID   string
	Resources []*ResourceNode
	Roads     []RoadSegment
}

// RehydratorInterface lets generation restore persisted resource and road
// state instead of re-rolling it. The second return reports whether a
// snapshot existed for the key.
type RehydratorInterface interface {
	Rehydrate(ctx context.Context, tileX, tileZ int32) (*RestoredTile, bool, error)
}

// LoggerInterface abstracts logging operations for dependency injection.
type LoggerInterface interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// DefaultLoggerWrapper wraps the internal logging package.
type DefaultLoggerWrapper struct{}

// NewDefaultLoggerWrapper creates a new default logger wrapper.
func NewDefaultLoggerWrapper() LoggerInterface {
	return &DefaultLoggerWrapper{}
}

func (l *DefaultLoggerWrapper) Debug(msg string, keysAndValues ...interface{}) {
	logging.GetLogger().Debug(msg, keysAndValues...)
}

func (l *DefaultLoggerWrapper) Info(msg string, keysAndValues ...interface{}) {
	logging.GetLogger().Info(msg, keysAndValues...)
}

func (l *DefaultLoggerWrapper) Warn(msg string, keysAndValues ...interface{}) {
	logging.GetLogger().Warn(msg, keysAndValues...)
}

func (l *DefaultLoggerWrapper) Error(msg string, keysAndValues ...interface{}) {
	logging.GetLogger().Error(msg, keysAndValues...)
}

// NopRenderer is a rendering collaborator that builds nothing. Used by tests
// and headless tools.
type NopRenderer struct{}

func (NopRenderer) BuildTileGeometry(heights []float64, colorWeights []float64) (GeometryHandle, error) {
	return nil, nil
}

func (NopRenderer) Attach(handle GeometryHandle, worldX, worldZ float64) {}

func (NopRenderer) Release(handle GeometryHandle) {}

// NopPhysics is a physics collaborator that cooks nothing, matching the
// uninitialized-physics case on non-authoritative clients.
type NopPhysics struct{}

func (NopPhysics) CookCollision(heights []float64) (CollisionHandle, error) {
	return nil, nil
}

func (NopPhysics) Release(handle CollisionHandle) {}
