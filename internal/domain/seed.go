package domain

// InitialTasks returns the task set written on first run.
func InitialTasks() []Task {
	return []Task{
		{
			ID:          1,
			Title:       "Launch Epic Career",
			Description: "Create a killer resume and **polish** the portfolio.",
			Status:      StatusTodo,
			Board:       "Launch Career",
		},
		{
			ID:          2,
			Title:       "Conquer React",
			Description: "Dive into hooks and finish the kanban exercise.",
			Status:      StatusTodo,
			Board:       "Launch Career",
		},
		{
			ID:          3,
			Title:       "Understand Databases",
			Description: "Work through indexing and normalization.",
			Status:      StatusDoing,
			Board:       "Launch Career",
		},
		{
			ID:          4,
			Title:       "Crush Frameworks",
			Description: "Ship one small project per framework.",
			Status:      StatusDone,
			Board:       "Launch Career",
		},
		{
			ID:          5,
			Title:       "Sketch the Q3 roadmap",
			Description: "- collect requests\n- rank by impact",
			Status:      StatusTodo,
			Board:       "Roadmap",
		},
		{
			ID:          6,
			Title:       "Publish release notes",
			Description: "",
			Status:      StatusDone,
			Board:       "Roadmap",
		},
	}
}
