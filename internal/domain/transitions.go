package domain

// taskTransitions is the directed graph of §4.1. Any (from, to) pair not
// present here fails with invalid_transition (I4).
var taskTransitions = map[TaskStatus][]TaskStatus{
	TaskStatusTodo:       {TaskStatusInProgress, TaskStatusCancelled},
	TaskStatusInProgress: {TaskStatusInReview, TaskStatusTodo, TaskStatusCancelled},
	TaskStatusInReview:   {TaskStatusInApproval, TaskStatusInProgress, TaskStatusCancelled},
	TaskStatusInApproval: {TaskStatusMerging, TaskStatusInProgress, TaskStatusCancelled},
	TaskStatusMerging:    {TaskStatusDone, TaskStatusInProgress},
	TaskStatusDone:       {},
	TaskStatusCancelled:  {},
}

// CanTransition reports whether the (from, to) pair is in the graph.
func CanTransition(from, to TaskStatus) bool {
	for _, candidate := range taskTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}
