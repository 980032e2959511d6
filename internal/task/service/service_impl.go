package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/posadahq/posada/internal/clock"
	taskdomain "github.com/posadahq/posada/internal/task/domain"
	"github.com/posadahq/posada/pkg/db/option"
	"github.com/posadahq/posada/pkg/repository"
	"github.com/posadahq/posada/pkg/tenantctx"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock

	taskrepo repository.Repository[taskdomain.Task]
}

func NewService(p ServiceParam) taskdomain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("task.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		taskrepo: repository.ProvideStore[taskdomain.Task](p.DB),
	}
}

func (s *Service) Create(ctx context.Context, req taskdomain.CreateTaskRequest) (taskdomain.Task, error) {
	scope, ok := tenantctx.ScopeFromContext(ctx)
	if !ok || scope.TenantID == 0 || scope.PropertyID == 0 {
		return taskdomain.Task{}, taskdomain.ErrNotFound
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		return taskdomain.Task{}, taskdomain.ErrMissingTitle
	}

	taskType := req.Type
	if taskType == "" {
		taskType = taskdomain.TypeGeneral
	}
	priority := req.Priority
	if priority == "" {
		priority = taskdomain.PriorityMedium
	}

	now := s.clock.Now()
	task := taskdomain.Task{
		ID:            s.genID.Generate(),
		TenantID:      scope.TenantID,
		PropertyID:    scope.PropertyID,
		RoomID:        req.RoomID,
		ReservationID: req.ReservationID,
		Type:          taskType,
		Title:         title,
		Description:   strings.TrimSpace(req.Description),
		Priority:      priority,
		Status:        taskdomain.StatusPending,
		AssignedTo:    strings.TrimSpace(req.AssignedTo),
		CreatedBy:     tenantctx.Actor(ctx),
		DueAt:         req.DueAt,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.taskrepo.Create(ctx, &task); err != nil {
		return taskdomain.Task{}, err
	}
	return task, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (taskdomain.Task, error) {
	scope, ok := tenantctx.ScopeFromContext(ctx)
	if !ok || scope.TenantID == 0 {
		return taskdomain.Task{}, taskdomain.ErrNotFound
	}
	task, err := s.taskrepo.FindOne(ctx, &taskdomain.Task{ID: id, TenantID: scope.TenantID})
	if err != nil {
		return taskdomain.Task{}, err
	}
	if task == nil {
		return taskdomain.Task{}, taskdomain.ErrNotFound
	}
	return *task, nil
}

func (s *Service) List(ctx context.Context, req taskdomain.ListTasksRequest) ([]taskdomain.Task, error) {
	scope, ok := tenantctx.ScopeFromContext(ctx)
	if !ok || scope.TenantID == 0 || scope.PropertyID == 0 {
		return nil, taskdomain.ErrNotFound
	}

	filter := &taskdomain.Task{TenantID: scope.TenantID, PropertyID: scope.PropertyID}
	if req.Status != nil {
		filter.Status = *req.Status
	}
	if req.RoomID != nil {
		filter.RoomID = req.RoomID
	}

	items, err := s.taskrepo.Find(ctx, filter,
		option.WithSortBy(option.QuerySortBy{Allow: map[string]bool{"created_at": true, "due_at": true}}),
	)
	if err != nil {
		return nil, err
	}
	tasks := make([]taskdomain.Task, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		tasks = append(tasks, *item)
	}
	return tasks, nil
}

func (s *Service) ChangeStatus(ctx context.Context, id snowflake.ID, target taskdomain.TaskStatus) (taskdomain.Task, error) {
	if !taskdomain.ValidStatus(target) {
		return taskdomain.Task{}, taskdomain.ErrUnknownStatus
	}
	scope, ok := tenantctx.ScopeFromContext(ctx)
	if !ok || scope.TenantID == 0 {
		return taskdomain.Task{}, taskdomain.ErrNotFound
	}

	var updated taskdomain.Task
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		query := `SELECT * FROM tasks WHERE id = ? AND tenant_id = ?`
		if tx.Dialector.Name() != "sqlite" {
			query += ` FOR UPDATE`
		}
		var task taskdomain.Task
		if err := tx.WithContext(ctx).Raw(query, id, scope.TenantID).Scan(&task).Error; err != nil {
			return err
		}
		if task.ID == 0 {
			return taskdomain.ErrNotFound
		}
		if !taskdomain.CanTransition(task.Status, target) {
			return taskdomain.ErrInvalidTransition
		}

		now := s.clock.Now()
		task.Status = target
		task.UpdatedAt = now
		if target == taskdomain.StatusCompleted {
			task.CompletedAt = &now
		}
		if err := tx.WithContext(ctx).Save(&task).Error; err != nil {
			return err
		}
		updated = task
		return nil
	})
	if err != nil {
		return taskdomain.Task{}, err
	}
	return updated, nil
}
