package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrNotFound          = errors.New("task_not_found")
	ErrInvalidTransition = errors.New("invalid_transition")
	ErrUnknownStatus     = errors.New("unknown_status")
	ErrMissingTitle      = errors.New("missing_title")
)

type CreateTaskRequest struct {
	RoomID        *snowflake.ID
	ReservationID *snowflake.ID
	Type          TaskType
	Title         string
	Description   string
	Priority      TaskPriority
	AssignedTo    string
	DueAt         *time.Time
}

type ListTasksRequest struct {
	Status *TaskStatus
	RoomID *snowflake.ID
}

type Service interface {
	Create(ctx context.Context, req CreateTaskRequest) (Task, error)
	GetByID(ctx context.Context, id snowflake.ID) (Task, error)
	List(ctx context.Context, req ListTasksRequest) ([]Task, error)
	ChangeStatus(ctx context.Context, id snowflake.ID, target TaskStatus) (Task, error)
}
