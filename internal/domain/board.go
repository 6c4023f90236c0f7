package domain

import "slices"

// DistinctBoards returns the non-empty board names in first-seen order.
func DistinctBoards(tasks []Task) []string {
	out := make([]string, 0, 4)
	seen := map[string]struct{}{}
	for _, task := range tasks {
		if task.Board == "" {
			continue
		}
		if _, ok := seen[task.Board]; ok {
			continue
		}
		seen[task.Board] = struct{}{}
		out = append(out, task.Board)
	}
	return out
}

// FilterByBoard returns the tasks on one board, preserving stored order.
func FilterByBoard(tasks []Task, board string) []Task {
	out := make([]Task, 0, len(tasks))
	if board == "" {
		return out
	}
	for _, task := range tasks {
		if task.Board == board {
			out = append(out, task)
		}
	}
	return out
}

// PartitionByStatus groups one board's tasks under the known statuses.
// Tasks whose status is not in statuses are returned separately.
func PartitionByStatus(tasks []Task, board string, statuses []Status) (map[Status][]Task, []Task) {
	byStatus := make(map[Status][]Task, len(statuses))
	for _, status := range statuses {
		byStatus[status] = []Task{}
	}
	var orphans []Task
	for _, task := range FilterByBoard(tasks, board) {
		if !slices.Contains(statuses, task.Status) {
			orphans = append(orphans, task)
			continue
		}
		byStatus[task.Status] = append(byStatus[task.Status], task)
	}
	return byStatus, orphans
}

// MaxTaskID returns the highest id in tasks, or zero.
func MaxTaskID(tasks []Task) int {
	maxID := 0
	for _, task := range tasks {
		if task.ID > maxID {
			maxID = task.ID
		}
	}
	return maxID
}
