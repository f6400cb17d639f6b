package analysis

import "sort"

var priorityRank = map[Priority]int{
	PriorityCritical: 0,
	PriorityHigh:     1,
	PriorityMedium:   2,
	PriorityLow:      3,
}

var categoryRank = map[Category]int{
	CategoryMistake:    0,
	CategoryTransition: 1,
	CategoryCheckpoint: 2,
	CategoryStrategic:  3,
}

// SelectTop returns the max most valuable candidate positions, ordered
// front-loaded by importance: explicit priority first, then category
// weight, then move number ascending. The sort is stable so equally
// ranked positions keep their input order. The selected slice stays in
// importance order; callers that need game order must re-sequence with
// SortGameOrder before mistake detection.
func SelectTop(positions []Position, max int) []Position {
	out := append([]Position(nil), positions...)
	sort.SliceStable(out, func(i, j int) bool {
		pi, pj := rankPriority(out[i].Priority), rankPriority(out[j].Priority)
		if pi != pj {
			return pi < pj
		}
		ci, cj := rankCategory(out[i].Category), rankCategory(out[j].Category)
		if ci != cj {
			return ci < cj
		}
		return out[i].MoveNumber < out[j].MoveNumber
	})
	if max >= 0 && max < len(out) {
		out = out[:max]
	}
	return out
}

// SortGameOrder restores original game sequence (by game, then half-move)
// so mistake detection sees adjacent half-moves.
func SortGameOrder(enriched []Enriched) {
	sort.SliceStable(enriched, func(i, j int) bool {
		if enriched[i].Position.GameID != enriched[j].Position.GameID {
			return enriched[i].Position.GameID < enriched[j].Position.GameID
		}
		return enriched[i].Position.Ply < enriched[j].Position.Ply
	})
}

func rankPriority(p Priority) int {
	if r, ok := priorityRank[p]; ok {
		return r
	}
	return len(priorityRank) // untagged sorts after explicit priorities
}

func rankCategory(c Category) int {
	if r, ok := categoryRank[c]; ok {
		return r
	}
	return len(categoryRank)
}
