package domain

import (
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Column is one of the three fixed board stages.
type Column string

const (
	ColumnTodo       Column = "todo"
	ColumnInProgress Column = "inprogress"
	ColumnDone       Column = "done"
)

// Columns lists the board stages in display order.
var Columns = []Column{ColumnTodo, ColumnInProgress, ColumnDone}

func (c Column) Valid() bool {
	switch c {
	case ColumnTodo, ColumnInProgress, ColumnDone:
		return true
	}
	return false
}

// ParseColumn returns ColumnTodo for anything unknown.
func ParseColumn(s string) Column {
	c := Column(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return ColumnTodo
	}
	return c
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Weight ranks priorities for ordering: high=3, medium=2, low=1, anything else 0.
func (p Priority) Weight() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	}
	return 0
}

// ParsePriority returns PriorityMedium for anything unknown.
func ParsePriority(s string) Priority {
	p := Priority(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return PriorityMedium
	}
	return p
}

// DateLayout is the wire and storage format of due dates.
const DateLayout = "2006-01-02"

type Task struct {
	ID          int64      `db:"id"`
	UserID      int64      `db:"user_id"`
	Title       string     `db:"title"`
	Description string     `db:"description"`
	DueDate     *time.Time `db:"due_date"`
	Priority    Priority   `db:"priority"`
	Tag         string     `db:"tag"`
	Column      Column     `db:"board_column"`
	Position    int        `db:"position"`
	ImageRef    *string    `db:"image_ref"`
	CreatedAt   time.Time  `db:"created_at"`
}

// TaskInput carries the editable fields of a task.
type TaskInput struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	DueDate     *time.Time `json:"due_date"`
	Priority    Priority   `json:"priority"`
	Tag         string     `json:"tag"`
}

// Normalize trims text fields and applies the priority default.
func (in *TaskInput) Normalize() {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Tag = strings.TrimSpace(in.Tag)
	if !in.Priority.Valid() {
		in.Priority = PriorityMedium
	}
}

func (in TaskInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Title, validation.Required.Error("title is required"), validation.RuneLength(1, 255)),
		validation.Field(&in.Tag, validation.RuneLength(0, 100)),
	)
}

// ParseDate accepts an empty string (no date) or YYYY-MM-DD.
func ParseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
