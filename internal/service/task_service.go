package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Raivel16/gestor-tareas/internal/cache"
	"github.com/Raivel16/gestor-tareas/internal/domain"
	"github.com/Raivel16/gestor-tareas/internal/logger"
	"github.com/Raivel16/gestor-tareas/internal/repository"
	"github.com/Raivel16/gestor-tareas/internal/storage"
)

type taskStore interface {
	List(ctx context.Context, ownerID int64) ([]domain.Task, error)
	ListColumn(ctx context.Context, ownerID int64, column domain.Column) ([]domain.Task, error)
	Get(ctx context.Context, ownerID, id int64) (*domain.Task, error)
	Create(ctx context.Context, t *domain.Task) error
	Update(ctx context.Context, t *domain.Task) error
	SetImage(ctx context.Context, ownerID, id int64, ref *string) error
	Delete(ctx context.Context, ownerID, id int64) error
	Move(ctx context.Context, ownerID, id int64, column domain.Column) (int, error)
	Reorder(ctx context.Context, ownerID int64, column domain.Column, ids []int64) error
}

// ImageUpload is a raw file received with a create or update.
type ImageUpload struct {
	Data        []byte
	ContentType string
	Filename    string
}

// TaskService owns every task mutation. All calls are scoped by owner.
type TaskService struct {
	tasks  taskStore
	images storage.Store
	board  *cache.BoardCache
	audit  *AuditService
}

func NewTaskService(tasks taskStore, images storage.Store, board *cache.BoardCache, audit *AuditService) *TaskService {
	return &TaskService{tasks: tasks, images: images, board: board, audit: audit}
}

// List returns the owner's whole board, served from the cache when warm.
func (s *TaskService) List(ctx context.Context, ownerID int64) ([]domain.Task, error) {
	if tasks, ok := s.board.Get(ctx, ownerID); ok {
		return tasks, nil
	}

	gen := s.board.Generation(ctx, ownerID)
	tasks, err := s.tasks.List(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	if tasks == nil {
		tasks = []domain.Task{}
	}
	s.board.Set(ctx, ownerID, gen, tasks)
	return tasks, nil
}

// Create appends a task to column (todo when unknown) and stores its image.
// A failed image save removes the freshly inserted row.
func (s *TaskService) Create(ctx context.Context, ownerID int64, in domain.TaskInput, column domain.Column, img *ImageUpload) (*domain.Task, error) {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, fromValidation(err)
	}
	if err := s.validateImage(img); err != nil {
		return nil, err
	}
	if !column.Valid() {
		column = domain.ColumnTodo
	}

	task := &domain.Task{
		UserID:      ownerID,
		Title:       in.Title,
		Description: in.Description,
		DueDate:     in.DueDate,
		Priority:    in.Priority,
		Tag:         in.Tag,
		Column:      column,
	}
	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}

	if img != nil {
		ref, err := s.images.Save(ctx, ownerID, task.ID, img.Data, img.ContentType, img.Filename)
		if err == nil {
			err = s.tasks.SetImage(ctx, ownerID, task.ID, &ref)
		}
		if err != nil {
			if delErr := s.tasks.Delete(ctx, ownerID, task.ID); delErr != nil {
				logger.WithContext(ctx).Errorw("failed to remove task after image error", "task_id", task.ID, "error", delErr)
			}
			return nil, imageError(err)
		}
		task.ImageRef = &ref
	}

	s.board.Invalidate(ctx, ownerID)
	s.audit.LogTask(ctx, ownerID, domain.AuditActionTaskCreate, task.ID, map[string]interface{}{
		"column":   string(task.Column),
		"position": task.Position,
	})
	return task, nil
}

// Update rewrites the editable fields. A new image replaces the old one;
// keepImage=false without a new image drops the stored one.
func (s *TaskService) Update(ctx context.Context, ownerID, id int64, in domain.TaskInput, img *ImageUpload, keepImage bool) (*domain.Task, error) {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, fromValidation(err)
	}
	if err := s.validateImage(img); err != nil {
		return nil, err
	}

	task, err := s.get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	task.Title = in.Title
	task.Description = in.Description
	task.DueDate = in.DueDate
	task.Priority = in.Priority
	task.Tag = in.Tag

	oldRef := task.ImageRef
	var newRef *string
	switch {
	case img != nil:
		ref, err := s.images.Save(ctx, ownerID, task.ID, img.Data, img.ContentType, img.Filename)
		if err != nil {
			return nil, imageError(err)
		}
		newRef = &ref
		task.ImageRef = newRef
	case !keepImage:
		task.ImageRef = nil
	}

	if err := s.tasks.Update(ctx, task); err != nil {
		// the row still points at oldRef, so only a new object is removed
		if newRef != nil && !sameRef(oldRef, newRef) {
			s.releaseImage(ctx, newRef)
		}
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("update task: %w", err)
	}
	if oldRef != nil && !sameRef(oldRef, task.ImageRef) {
		s.releaseImage(ctx, oldRef)
	}

	s.board.Invalidate(ctx, ownerID)
	s.audit.LogTask(ctx, ownerID, domain.AuditActionTaskUpdate, task.ID, nil)
	return task, nil
}

// Delete removes the task and releases its image.
func (s *TaskService) Delete(ctx context.Context, ownerID, id int64) error {
	task, err := s.get(ctx, ownerID, id)
	if err != nil {
		return err
	}

	if err := s.tasks.Delete(ctx, ownerID, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrTaskNotFound
		}
		return fmt.Errorf("delete task: %w", err)
	}
	s.releaseImage(ctx, task.ImageRef)

	s.board.Invalidate(ctx, ownerID)
	s.audit.LogTask(ctx, ownerID, domain.AuditActionTaskDelete, id, nil)
	return nil
}

// Move sends the task to the end of column and returns its new position.
func (s *TaskService) Move(ctx context.Context, ownerID, id int64, column string) (int, error) {
	target := domain.Column(column)
	if !target.Valid() {
		return 0, invalid("invalid column")
	}

	position, err := s.tasks.Move(ctx, ownerID, id, target)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, ErrTaskNotFound
		}
		return 0, fmt.Errorf("move task: %w", err)
	}

	s.board.Invalidate(ctx, ownerID)
	s.audit.LogTask(ctx, ownerID, domain.AuditActionTaskMove, id, map[string]interface{}{
		"column":   column,
		"position": position,
	})
	return position, nil
}

// Reorder writes 1-based positions for ids inside column in one transaction.
// Ids the owner does not have in that column are ignored.
func (s *TaskService) Reorder(ctx context.Context, ownerID int64, column string, ids []int64) error {
	target := domain.Column(column)
	if !target.Valid() {
		return invalid("invalid column")
	}
	if len(ids) == 0 {
		return invalid("order must not be empty")
	}

	if err := s.tasks.Reorder(ctx, ownerID, target, ids); err != nil {
		return fmt.Errorf("reorder tasks: %w", err)
	}

	s.board.Invalidate(ctx, ownerID)
	s.audit.Log(ctx, ownerID, domain.AuditActionTaskReorder, domain.AuditCategoryTask, map[string]interface{}{
		"column": column,
		"order":  ids,
	})
	return nil
}

// ImageURL resolves a stored reference to a public URL.
func (s *TaskService) ImageURL(ref *string) *string {
	if ref == nil || s.images == nil {
		return nil
	}
	u := s.images.URL(*ref)
	return &u
}

func (s *TaskService) get(ctx context.Context, ownerID, id int64) (*domain.Task, error) {
	task, err := s.tasks.Get(ctx, ownerID, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("get task: %w", err)
	}
	return task, nil
}

func (s *TaskService) validateImage(img *ImageUpload) error {
	if img == nil {
		return nil
	}
	if s.images == nil {
		return invalid("image uploads are disabled")
	}
	_, err := s.images.Validate(img.Data, img.ContentType, img.Filename)
	return imageError(err)
}

func (s *TaskService) releaseImage(ctx context.Context, ref *string) {
	if ref == nil || s.images == nil {
		return
	}
	if err := s.images.Delete(ctx, *ref); err != nil {
		logger.WithContext(ctx).Warnw("failed to delete image", "ref", *ref, "error", err)
	}
}

func sameRef(a, b *string) bool {
	return a != nil && b != nil && *a == *b
}

func imageError(err error) error {
	var bad *storage.InvalidImageError
	if errors.As(err, &bad) {
		return invalid(bad.Message)
	}
	return err
}
