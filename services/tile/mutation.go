package tile

import (
	"fmt"
	"time"
)

// respawnDelay is how long a depleted node stays unharvestable while its tile
// is simulated.
const respawnDelay = 2 * time.Minute

// HarvestResource applies harvest damage to a node and marks the tile dirty.
// Depleting a node makes it unharvestable and arms its respawn timer; the
// timer only ticks while the tile is simulated.
func (s *Service) HarvestResource(key Key, nodeID string, damage int32) (*ResourceNode, error) {
	t, ok := s.Get(key)
	if !ok {
		return nil, fmt.Errorf("tile %s is not loaded", key)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for _, node := range t.Resources {
		if node.ID != nodeID {
			continue
		}
		if !node.Harvestable {
			return nil, fmt.Errorf("resource node %s is not harvestable", nodeID)
		}
		node.Health -= damage
		if node.Health <= 0 {
			node.Health = 0
			node.Harvestable = false
			node.RespawnRemaining = respawnDelay
		}
		t.markDirtyLocked()
		return node, nil
	}
	return nil, fmt.Errorf("resource node %s not found in tile %s", nodeID, key)
}

// RespawnTick advances respawn timers on every simulated tile by the elapsed
// interval. Paused tiles keep their remaining time untouched.
func (s *Service) RespawnTick(elapsed time.Duration) {
	for _, t := range s.Loaded() {
		t.mu.Lock()
		if !t.simulated {
			t.mu.Unlock()
			continue
		}
		for _, node := range t.Resources {
			if node.Harvestable || node.RespawnRemaining <= 0 {
				continue
			}
			node.RespawnRemaining -= elapsed
			if node.RespawnRemaining <= 0 {
				node.RespawnRemaining = 0
				node.Health = node.MaxHealth
				node.Harvestable = true
				t.markDirtyLocked()
			}
		}
		t.mu.Unlock()
	}
}
