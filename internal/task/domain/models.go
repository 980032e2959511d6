package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusInProgress TaskStatus = "in_progress"
	StatusCompleted  TaskStatus = "completed"
)

// taskTransitions holds the legal status edges. Completed is terminal.
var taskTransitions = map[TaskStatus][]TaskStatus{
	StatusPending:    {StatusInProgress, StatusCompleted},
	StatusInProgress: {StatusCompleted},
	StatusCompleted:  {},
}

func CanTransition(from, to TaskStatus) bool {
	for _, allowed := range taskTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

func ValidStatus(s TaskStatus) bool {
	_, ok := taskTransitions[s]
	return ok
}

type TaskType string

const (
	TypeCleaning    TaskType = "cleaning"
	TypeMaintenance TaskType = "maintenance"
	TypeInspection  TaskType = "inspection"
	TypeGeneral     TaskType = "general"
)

type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
	PriorityUrgent TaskPriority = "urgent"
)

type Task struct {
	ID            snowflake.ID  `json:"id,string" gorm:"primaryKey"`
	TenantID      snowflake.ID  `json:"tenant_id,string" gorm:"index:idx_tasks_tenant"`
	PropertyID    snowflake.ID  `json:"property_id,string" gorm:"index:idx_tasks_tenant"`
	RoomID        *snowflake.ID `json:"room_id,string,omitempty" gorm:"index"`
	ReservationID *snowflake.ID `json:"reservation_id,string,omitempty" gorm:"index"`
	Type          TaskType      `json:"type" gorm:"size:32"`
	Title         string        `json:"title" gorm:"size:255"`
	Description   string        `json:"description"`
	Priority      TaskPriority  `json:"priority" gorm:"size:16;default:medium"`
	Status        TaskStatus    `json:"status" gorm:"size:16;default:pending;index"`
	AssignedTo    string        `json:"assigned_to,omitempty" gorm:"size:128"`
	CreatedBy     string        `json:"created_by" gorm:"size:128"`
	DueAt         *time.Time    `json:"due_at,omitempty"`
	CompletedAt   *time.Time    `json:"completed_at,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

func (Task) TableName() string { return "tasks" }
