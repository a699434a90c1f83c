package domain

import "sort"

// SortTasks orders tasks by position, falling back to id so that gaps and
// duplicates left behind by deletions still produce a stable board order.
func SortTasks(tasks []Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		if tasks[i].Position != tasks[j].Position {
			return tasks[i].Position < tasks[j].Position
		}
		return tasks[i].ID < tasks[j].ID
	})
}

// Reposition moves target to the desired index within tasks and reassigns
// positions as a dense 0..N-1 sequence. The relative order of all other
// tasks is preserved; the index is clamped into the valid range.
func Reposition(tasks []Task, target Task, index int) []Task {
	rest := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		if t.ID != target.ID {
			rest = append(rest, t)
		}
	}
	if index < 0 {
		index = 0
	}
	if index > len(rest) {
		index = len(rest)
	}

	ordered := make([]Task, 0, len(rest)+1)
	ordered = append(ordered, rest[:index]...)
	ordered = append(ordered, target)
	ordered = append(ordered, rest[index:]...)
	for i := range ordered {
		ordered[i].Position = i
	}
	return ordered
}
