package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Raivel16/gestor-tareas/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const taskColumns = `id, user_id, title, description, due_date, priority, tag, board_column, position, image_ref, created_at`

// TaskRepository stores tasks. Every statement is scoped by user_id.
type TaskRepository struct {
	db DB
}

func NewTaskRepository(db DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// List returns the owner's board: todo, inprogress, done; position
// ascending inside a column, newest first on equal positions, then id.
func (r *TaskRepository) List(ctx context.Context, ownerID int64) ([]domain.Task, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+taskColumns+`
		 FROM tasks
		 WHERE user_id = $1
		 ORDER BY CASE board_column WHEN 'todo' THEN 0 WHEN 'inprogress' THEN 1 ELSE 2 END,
		          position ASC, created_at DESC, id DESC`,
		ownerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTasks(rows)
}

// ListColumn returns one column of the owner's board in position order.
func (r *TaskRepository) ListColumn(ctx context.Context, ownerID int64, column domain.Column) ([]domain.Task, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+taskColumns+`
		 FROM tasks
		 WHERE user_id = $1 AND board_column = $2
		 ORDER BY position ASC, created_at DESC, id DESC`,
		ownerID, string(column),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTasks(rows)
}

func (r *TaskRepository) Get(ctx context.Context, ownerID, id int64) (*domain.Task, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = $1 AND user_id = $2`,
		id, ownerID,
	)
	t, err := scanTask(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

// Create inserts t at the end of its column and fills ID, Position and CreatedAt.
func (r *TaskRepository) Create(ctx context.Context, t *domain.Task) error {
	var position int32
	err := r.db.QueryRow(ctx,
		`INSERT INTO tasks (user_id, title, description, due_date, priority, tag, board_column, position)
		 VALUES ($1, $2, $3, $4, $5, $6, $7,
		         (SELECT COALESCE(MAX(position), 0) + 1 FROM tasks WHERE user_id = $1 AND board_column = $7))
		 RETURNING id, position, created_at`,
		t.UserID, t.Title, t.Description, dateArg(t.DueDate), string(t.Priority), t.Tag, string(t.Column),
	).Scan(&t.ID, &position, &t.CreatedAt)
	if err != nil {
		return err
	}
	t.Position = int(position)
	return nil
}

// Update writes the editable fields and the image reference.
func (r *TaskRepository) Update(ctx context.Context, t *domain.Task) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE tasks
		 SET title = $1, description = $2, due_date = $3, priority = $4, tag = $5, image_ref = $6
		 WHERE id = $7 AND user_id = $8`,
		t.Title, t.Description, dateArg(t.DueDate), string(t.Priority), t.Tag, t.ImageRef, t.ID, t.UserID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *TaskRepository) SetImage(ctx context.Context, ownerID, id int64, ref *string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE tasks SET image_ref = $1 WHERE id = $2 AND user_id = $3`,
		ref, id, ownerID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *TaskRepository) Delete(ctx context.Context, ownerID, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM tasks WHERE id = $1 AND user_id = $2`, id, ownerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Move puts the task at the end of column (max position + 1, or 1 when
// the column is empty) and returns the new position. The ownership check
// and the position computation happen in the same statement.
func (r *TaskRepository) Move(ctx context.Context, ownerID, id int64, column domain.Column) (int, error) {
	var position int32
	err := r.db.QueryRow(ctx,
		`UPDATE tasks
		 SET board_column = $1,
		     position = (SELECT COALESCE(MAX(position), 0) + 1 FROM tasks WHERE user_id = $2 AND board_column = $1)
		 WHERE id = $3 AND user_id = $2
		 RETURNING position`,
		string(column), ownerID, id,
	).Scan(&position)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	return int(position), nil
}

// Reorder sets each listed task's position to its 1-based index in ids,
// all in one transaction. Ids that are not the owner's or not in column
// match no row and are skipped.
func (r *TaskRepository) Reorder(ctx context.Context, ownerID int64, column domain.Column, ids []int64) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin reorder: %w", err)
	}

	for i, id := range ids {
		if _, err := tx.Exec(ctx,
			`UPDATE tasks SET position = $1 WHERE id = $2 AND user_id = $3 AND board_column = $4`,
			i+1, id, ownerID, string(column),
		); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("reorder task %d: %w", id, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit reorder: %w", err)
	}
	return nil
}

func dateArg(d *time.Time) any {
	if d == nil {
		return nil
	}
	return pgtype.Date{Time: *d, Valid: true}
}

func scanTask(row pgx.Row) (domain.Task, error) {
	var (
		t        domain.Task
		due      pgtype.Date
		image    pgtype.Text
		priority string
		column   string
		position int32
	)
	if err := row.Scan(&t.ID, &t.UserID, &t.Title, &t.Description, &due, &priority, &t.Tag, &column, &position, &image, &t.CreatedAt); err != nil {
		return t, err
	}

	t.Priority = domain.Priority(priority)
	t.Column = domain.Column(column)
	t.Position = int(position)
	if due.Valid {
		d := due.Time
		t.DueDate = &d
	}
	if image.Valid {
		ref := image.String
		t.ImageRef = &ref
	}
	return t, nil
}

func scanTasks(rows pgx.Rows) ([]domain.Task, error) {
	var res []domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}
