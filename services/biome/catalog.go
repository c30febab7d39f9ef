package biome

import (
	"fmt"

	"github.com/VoidMesh/worldsim/internal/logging"
)

// ResourceType identifies a harvestable resource family.
type ResourceType string

const (
	ResourceTree ResourceType = "tree"
	ResourceOre  ResourceType = "ore"
	ResourceHerb ResourceType = "herb"
	ResourceFish ResourceType = "fish"
	ResourceRock ResourceType = "rock"
	ResourceGem  ResourceType = "gem"
)

// Difficulty tiers. Tier 0 is reserved for town safe zones.
const (
	DifficultySafe = 0
	DifficultyEasy = 1
	DifficultyMid  = 2
	DifficultyHard = 3
)

// Definition is an immutable biome description loaded at startup. Every biome
// id referenced by generation or town configuration must resolve to one of
// these; an unknown id is a configuration error.
type Definition struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
	// Difficulty tier in [0,3]; 0 means safe zone.
	Difficulty int `yaml:"difficulty"`
	// HeightMultiplier scales the raw noise before range remapping.
	HeightMultiplier float64 `yaml:"height_multiplier"`
	// HeightMin/HeightMax is the normalized [0,1] band this biome occupies.
	HeightMin float64 `yaml:"height_min"`
	HeightMax float64 `yaml:"height_max"`
	// WaterLevel is the world-space height below which terrain is submerged.
	WaterLevel float64 `yaml:"water_level"`
	// MaxSlope is the steepest walkable gradient.
	MaxSlope float64 `yaml:"max_slope"`
	// Resources maps each supported resource type to a density weight in [0,1].
	Resources map[ResourceType]float64 `yaml:"resources"`
	// Mobs lists the mob archetypes eligible to spawn here.
	Mobs []string `yaml:"mobs"`
	// BaseColor is a rendering hint, not used by simulation logic.
	BaseColor string `yaml:"base_color"`
}

// Reserved biome ids with special selection rules.
const (
	SafeZoneID = "township"
	LakeID     = "lake"
)

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

// Catalog holds the validated biome table. It is immutable after construction
// and shared by reference across every service.
type Catalog struct {
	defs   map[string]*Definition
	logger LoggerInterface
	// fallbackOnUnknown substitutes the safe-zone biome for unknown ids
	// instead of failing. Test harnesses only; every fallback is logged as a
	// data-integrity warning.
	fallbackOnUnknown bool
}

// Option configures catalog construction.
type Option func(*Catalog)

// WithDefinitions replaces the compiled-in biome table.
func WithDefinitions(defs []Definition) Option {
	return func(c *Catalog) {
		c.defs = make(map[string]*Definition, len(defs))
		for i := range defs {
			d := defs[i]
			c.defs[d.ID] = &d
		}
	}
}

// WithFallbackOnUnknown enables the test-only unknown-id fallback.
func WithFallbackOnUnknown() Option {
	return func(c *Catalog) {
		c.fallbackOnUnknown = true
	}
}

// NewCatalog builds and validates the biome table.
func NewCatalog(logger LoggerInterface, opts ...Option) (*Catalog, error) {
	c := &Catalog{logger: logger}
	defaults := DefaultDefinitions()
	WithDefinitions(defaults)(c)

	for _, opt := range opts {
		opt(c)
	}

	if err := c.validate(); err != nil {
		return nil, err
	}

	logger.Debug("Biome catalog constructed", "biome_count", len(c.defs))
	return c, nil
}

// validate enforces the table invariants: reserved ids present, ordered
// height bands, safe zone with difficulty 0 and no mobs.
func (c *Catalog) validate() error {
	safe, ok := c.defs[SafeZoneID]
	if !ok {
		return fmt.Errorf("biome table is missing the reserved safe-zone biome %q", SafeZoneID)
	}
	if safe.Difficulty != DifficultySafe {
		return fmt.Errorf("safe-zone biome %q must have difficulty %d, got %d", SafeZoneID, DifficultySafe, safe.Difficulty)
	}
	if len(safe.Mobs) != 0 {
		return fmt.Errorf("safe-zone biome %q must not list mob types", SafeZoneID)
	}
	if _, ok := c.defs[LakeID]; !ok {
		return fmt.Errorf("biome table is missing the reserved lake biome %q", LakeID)
	}

	for id, d := range c.defs {
		if d.ID != id {
			return fmt.Errorf("biome %q has mismatched id field %q", id, d.ID)
		}
		if d.Difficulty < DifficultySafe || d.Difficulty > DifficultyHard {
			return fmt.Errorf("biome %q difficulty %d out of range [0,3]", id, d.Difficulty)
		}
		if d.HeightMin < 0 || d.HeightMax > 1 || d.HeightMin >= d.HeightMax {
			return fmt.Errorf("biome %q height range [%v,%v] must be an ordered subset of [0,1]", id, d.HeightMin, d.HeightMax)
		}
		if d.MaxSlope <= 0 {
			return fmt.Errorf("biome %q max_slope must be positive, got %v", id, d.MaxSlope)
		}
		for rt, weight := range d.Resources {
			if weight < 0 || weight > 1 {
				return fmt.Errorf("biome %q resource %q density %v out of range [0,1]", id, rt, weight)
			}
		}
	}
	return nil
}

// Lookup resolves a biome id. Unknown ids are a configuration error unless
// the test-only fallback is enabled, in which case the safe-zone biome is
// substituted with a data-integrity warning.
func (c *Catalog) Lookup(id string) (*Definition, error) {
	if d, ok := c.defs[id]; ok {
		return d, nil
	}
	if c.fallbackOnUnknown {
		c.logger.Warn("Unknown biome id, substituting safe-zone biome (data integrity)", "biome_id", id)
		return c.defs[SafeZoneID], nil
	}
	return nil, fmt.Errorf("unknown biome id %q", id)
}

// MustLookup resolves a biome id that has already been validated. It is used
// on the sampling hot path where ids only come from the catalog itself.
func (c *Catalog) MustLookup(id string) *Definition {
	d, err := c.Lookup(id)
	if err != nil {
		panic(err)
	}
	return d
}

// Safe returns the reserved safe-zone definition.
func (c *Catalog) Safe() *Definition {
	return c.defs[SafeZoneID]
}

// Lake returns the reserved lake definition.
func (c *Catalog) Lake() *Definition {
	return c.defs[LakeID]
}

// ByDifficulty returns the ids of every non-reserved biome at the given tier,
// in stable order.
func (c *Catalog) ByDifficulty(tier int) []string {
	var ids []string
	for _, d := range DefaultOrder {
		def, ok := c.defs[d]
		if !ok {
			continue
		}
		if def.ID == SafeZoneID || def.ID == LakeID {
			continue
		}
		if def.Difficulty == tier {
			ids = append(ids, def.ID)
		}
	}
	return ids
}

// Len reports the number of definitions in the table.
func (c *Catalog) Len() int {
	return len(c.defs)
}
