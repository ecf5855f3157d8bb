package domain

import "time"

// TaskStatus is the lifecycle state of a posted job.
type TaskStatus string

const (
	TaskOpen    TaskStatus = "open"
	TaskAwarded TaskStatus = "awarded"
	TaskClosed  TaskStatus = "closed"
)

func ValidTaskStatus(s TaskStatus) bool {
	switch s {
	case TaskOpen, TaskAwarded, TaskClosed:
		return true
	default:
		return false
	}
}

// CanAdvanceTo reports whether next strictly advances the task machine.
// The only legal moves are open→awarded and awarded→closed; a task never
// regresses and never skips the award step.
func (s TaskStatus) CanAdvanceTo(next TaskStatus) bool {
	switch s {
	case TaskOpen:
		return next == TaskAwarded
	case TaskAwarded:
		return next == TaskClosed
	default:
		return false
	}
}

// Task represents a job posted by a homeowner seeking bids.
type Task struct {
	ID          string     `json:"id"`
	OwnerID     string     `json:"owner_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Location    string     `json:"location"`
	BudgetMin   *float64   `json:"budget_min,omitempty"`
	BudgetMax   *float64   `json:"budget_max,omitempty"`
	Status      TaskStatus `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (t *Task) IsOpen() bool {
	return t != nil && t.Status == TaskOpen
}

func (t *Task) IsOwnedBy(userID string) bool {
	return t != nil && userID != "" && t.OwnerID == userID
}
