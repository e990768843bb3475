package constants

// TaskStatus is the lifecycle state of a batch task.
type TaskStatus string

// Stable values (persisted and reported as-is).
const (
	TaskPending    TaskStatus = "pending"
	TaskProcessing TaskStatus = "processing"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
)

// AllTaskStatuses in lifecycle order.
var AllTaskStatuses = []TaskStatus{TaskPending, TaskProcessing, TaskCompleted, TaskFailed}

func (s TaskStatus) IsTerminal() bool {
	return s == TaskCompleted || s == TaskFailed
}

// CanTransition reports whether s -> next is allowed.
// Pending may go to Processing or straight to Failed (cancellation);
// Processing may only finish; terminal states never change.
func (s TaskStatus) CanTransition(next TaskStatus) bool {
	switch s {
	case TaskPending:
		return next == TaskProcessing || next == TaskFailed
	case TaskProcessing:
		return next == TaskCompleted || next == TaskFailed
	default:
		return false
	}
}
