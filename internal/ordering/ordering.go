// Package ordering ranks tasks by due date and priority. It never touches
// persisted state.
package ordering

import (
	"slices"

	"github.com/Raivel16/gestor-tareas/internal/domain"
)

// Compare orders a before b when it is due earlier, when it is the only
// one of the two with a due date, or, with equal or absent dates, when its
// priority is higher.
func Compare(a, b domain.Task) int {
	switch {
	case a.DueDate != nil && b.DueDate != nil:
		if c := a.DueDate.Compare(*b.DueDate); c != 0 {
			return c
		}
	case a.DueDate != nil:
		return -1
	case b.DueDate != nil:
		return 1
	}
	return b.Priority.Weight() - a.Priority.Weight()
}

// Sort returns a copy of tasks sorted with Compare. Ties keep their input order.
func Sort(tasks []domain.Task) []domain.Task {
	out := slices.Clone(tasks)
	slices.SortStableFunc(out, Compare)
	return out
}

// Rank returns the task ids in Compare order.
func Rank(tasks []domain.Task) []int64 {
	sorted := Sort(tasks)
	ids := make([]int64, len(sorted))
	for i, t := range sorted {
		ids[i] = t.ID
	}
	return ids
}
