package biome

// DefaultOrder fixes iteration order for deterministic band selection.
var DefaultOrder = []string{
	"plains",
	"forest",
	"hills",
	"swamp",
	"highlands",
	"badlands",
	LakeID,
	SafeZoneID,
}

// DefaultDefinitions returns the compiled-in biome table. The YAML world
// config may replace it wholesale; either way the table is validated before
// use.
func DefaultDefinitions() []Definition {
	return []Definition{
		{
			ID:               "plains",
			Name:             "Plains",
			Difficulty:       DifficultyEasy,
			HeightMultiplier: 0.6,
			HeightMin:        0.25,
			HeightMax:        0.45,
			WaterLevel:       5.0,
			MaxSlope:         0.9,
			Resources: map[ResourceType]float64{
				ResourceTree: 0.15,
				ResourceHerb: 0.30,
				ResourceRock: 0.10,
			},
			Mobs:      []string{"boar", "wolf"},
			BaseColor: "#7CFC00",
		},
		{
			ID:               "forest",
			Name:             "Forest",
			Difficulty:       DifficultyEasy,
			HeightMultiplier: 0.8,
			HeightMin:        0.30,
			HeightMax:        0.55,
			WaterLevel:       5.0,
			MaxSlope:         1.0,
			Resources: map[ResourceType]float64{
				ResourceTree: 0.85,
				ResourceHerb: 0.25,
				ResourceOre:  0.05,
			},
			Mobs:      []string{"wolf", "bear", "bandit"},
			BaseColor: "#228B22",
		},
		{
			ID:               "hills",
			Name:             "Rolling Hills",
			Difficulty:       DifficultyMid,
			HeightMultiplier: 1.1,
			HeightMin:        0.40,
			HeightMax:        0.70,
			WaterLevel:       5.0,
			MaxSlope:         1.3,
			Resources: map[ResourceType]float64{
				ResourceTree: 0.30,
				ResourceOre:  0.20,
				ResourceRock: 0.35,
			},
			Mobs:      []string{"bandit", "troll"},
			BaseColor: "#8FBC8F",
		},
		{
			ID:               "swamp",
			Name:             "Mirewater Swamp",
			Difficulty:       DifficultyMid,
			HeightMultiplier: 0.4,
			HeightMin:        0.10,
			HeightMax:        0.30,
			WaterLevel:       7.5,
			MaxSlope:         0.8,
			Resources: map[ResourceType]float64{
				ResourceHerb: 0.55,
				ResourceFish: 0.40,
				ResourceTree: 0.20,
			},
			Mobs:      []string{"leech", "bog_shambler"},
			BaseColor: "#556B2F",
		},
		{
			ID:               "highlands",
			Name:             "Highlands",
			Difficulty:       DifficultyHard,
			HeightMultiplier: 1.6,
			HeightMin:        0.55,
			HeightMax:        0.95,
			WaterLevel:       4.0,
			MaxSlope:         1.8,
			Resources: map[ResourceType]float64{
				ResourceOre:  0.45,
				ResourceRock: 0.50,
				ResourceGem:  0.08,
			},
			Mobs:      []string{"troll", "wyvern"},
			BaseColor: "#A9A9A9",
		},
		{
			ID:               "badlands",
			Name:             "Badlands",
			Difficulty:       DifficultyHard,
			HeightMultiplier: 1.2,
			HeightMin:        0.35,
			HeightMax:        0.75,
			WaterLevel:       2.5,
			MaxSlope:         1.5,
			Resources: map[ResourceType]float64{
				ResourceOre:  0.30,
				ResourceGem:  0.12,
				ResourceRock: 0.40,
			},
			Mobs:      []string{"raider", "dust_wraith", "wyvern"},
			BaseColor: "#CD853F",
		},
		{
			ID:               LakeID,
			Name:             "Lake",
			Difficulty:       DifficultyEasy,
			HeightMultiplier: 0.3,
			HeightMin:        0.02,
			HeightMax:        0.18,
			WaterLevel:       12.0,
			MaxSlope:         0.6,
			Resources: map[ResourceType]float64{
				ResourceFish: 0.75,
			},
			Mobs:      []string{},
			BaseColor: "#1E90FF",
		},
		{
			ID:               SafeZoneID,
			Name:             "Township",
			Difficulty:       DifficultySafe,
			HeightMultiplier: 0.5,
			HeightMin:        0.30,
			HeightMax:        0.40,
			WaterLevel:       5.0,
			MaxSlope:         1.0,
			Resources: map[ResourceType]float64{
				// Decorative only; towns never yield harvest or spawn mobs.
				ResourceTree: 0.05,
			},
			Mobs:      []string{},
			BaseColor: "#DEB887",
		},
	}
}
