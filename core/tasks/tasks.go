package tasks

import "sort"

type Task struct {
	ID        int    `json:"id"`
	Title     string `json:"title"`
	Subject   string `json:"subject,omitempty"`
	DueDate   string `json:"dueDate"` // YYYY-MM-DD
	Priority  string `json:"priority"`
	Completed bool   `json:"completed"`
}

// Board holds the academic and personal tasks shown to students.
type Board struct {
	Academic []Task `json:"academic"`
	Personal []Task `json:"personal"`
}

// EmptyBoard returns a board with no tasks, lists included.
func EmptyBoard() Board {
	return Board{Academic: []Task{}, Personal: []Task{}}
}

// Normalize replaces missing lists with empty ones.
func (b Board) Normalize() Board {
	if b.Academic == nil {
		b.Academic = []Task{}
	}
	if b.Personal == nil {
		b.Personal = []Task{}
	}
	return b
}

// Pending returns a copy of the board without completed tasks, earliest due first.
func (b Board) Pending() Board {
	return Board{Academic: pending(b.Academic), Personal: pending(b.Personal)}
}

func pending(tasks []Task) []Task {
	res := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		if !t.Completed {
			res = append(res, t)
		}
	}
	sort.SliceStable(res, func(i, j int) bool { return res[i].DueDate < res[j].DueDate })
	return res
}
