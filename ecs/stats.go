package ecs

import "sort"

// StorageStats is a snapshot of storage occupancy.
type StorageStats struct {
	ArchetypeCount     int
	TotalEntityCount   int
	SingletonCount     int
	ArchetypeBreakdown []ArchetypeStats
	SingletonTypes     []string
}

// ArchetypeStats describes one non-empty archetype.
type ArchetypeStats struct {
	ID             uint32
	ComponentTypes []string
	EntityCount    int
}

// CollectStats walks all archetypes and singletons. Empty archetypes are
// not counted.
func (s *Storage) CollectStats() StorageStats {
	stats := StorageStats{
		SingletonCount: len(s.singletons),
	}

	for _, archetype := range s.archetypes {
		count := archetype.Len()
		if count == 0 {
			continue
		}
		names := make([]string, len(archetype.types))
		for i, t := range archetype.types {
			names[i] = t.String()
		}
		stats.ArchetypeBreakdown = append(stats.ArchetypeBreakdown, ArchetypeStats{
			ID:             archetype.id,
			ComponentTypes: names,
			EntityCount:    count,
		})
		stats.TotalEntityCount += count
	}
	stats.ArchetypeCount = len(stats.ArchetypeBreakdown)

	sort.Slice(stats.ArchetypeBreakdown, func(i, j int) bool {
		return stats.ArchetypeBreakdown[i].ID < stats.ArchetypeBreakdown[j].ID
	})

	for t := range s.singletons {
		stats.SingletonTypes = append(stats.SingletonTypes, t.String())
	}
	sort.Strings(stats.SingletonTypes)

	return stats
}
