package agents

import "sort"

const MaxMemories = 20

// Memory records an object use.
type Memory struct {
	Tick       uint64  `json:"tick"`
	Content    string  `json:"content"`
	Importance float32 `json:"importance"` // 0.0–1.0
}

// AddMemory appends a memory to the agent's stream. When full, drops the
// lowest-importance memory to make room.
func AddMemory(a *Agent, tick uint64, content string, importance float32) {
	m := Memory{Tick: tick, Content: content, Importance: importance}

	if len(a.Memories) < MaxMemories {
		a.Memories = append(a.Memories, m)
		return
	}

	minIdx := 0
	for i := 1; i < len(a.Memories); i++ {
		if a.Memories[i].Importance < a.Memories[minIdx].Importance {
			minIdx = i
		}
	}
	if m.Importance >= a.Memories[minIdx].Importance {
		a.Memories = append(a.Memories[:minIdx], a.Memories[minIdx+1:]...)
		a.Memories = append(a.Memories, m)
	}
}

// RecentMemories returns the most recent N memories ordered by tick descending.
func RecentMemories(a *Agent, count int) []Memory {
	if len(a.Memories) == 0 || count <= 0 {
		return nil
	}

	sorted := make([]Memory, len(a.Memories))
	copy(sorted, a.Memories)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Tick > sorted[j].Tick
	})

	if count > len(sorted) {
		count = len(sorted)
	}
	return sorted[:count]
}
