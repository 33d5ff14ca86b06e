package service

import (
	"context"
	"errors"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/Raivel16/gestor-tareas/internal/domain"
	"github.com/Raivel16/gestor-tareas/internal/repository"
	"github.com/Raivel16/gestor-tareas/internal/storage"
)

// memTasks is an owner-scoped in-memory task store.
type memTasks struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]*domain.Task
	calls  []string

	updateErr error
	onList    func()
}

func newMemTasks(seed ...domain.Task) *memTasks {
	m := &memTasks{rows: map[int64]*domain.Task{}}
	for _, t := range seed {
		t := t
		m.rows[t.ID] = &t
		if t.ID > m.nextID {
			m.nextID = t.ID
		}
	}
	return m
}

func (m *memTasks) owned(ownerID, id int64) (*domain.Task, bool) {
	t, ok := m.rows[id]
	if !ok || t.UserID != ownerID {
		return nil, false
	}
	return t, true
}

func (m *memTasks) List(ctx context.Context, ownerID int64) ([]domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "List")
	if m.onList != nil {
		m.onList()
	}
	var out []domain.Task
	for _, c := range domain.Columns {
		out = append(out, m.column(ownerID, c)...)
	}
	return out, nil
}

func (m *memTasks) ListColumn(ctx context.Context, ownerID int64, column domain.Column) ([]domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.column(ownerID, column), nil
}

func (m *memTasks) column(ownerID int64, column domain.Column) []domain.Task {
	var out []domain.Task
	for _, t := range m.rows {
		if t.UserID == ownerID && t.Column == column {
			out = append(out, *t)
		}
	}
	slices.SortFunc(out, func(a, b domain.Task) int {
		if a.Position != b.Position {
			return a.Position - b.Position
		}
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out
}

func (m *memTasks) nextPosition(ownerID int64, column domain.Column) int {
	highest := 0
	for _, t := range m.rows {
		if t.UserID == ownerID && t.Column == column && t.Position > highest {
			highest = t.Position
		}
	}
	return highest + 1
}

func (m *memTasks) Get(ctx context.Context, ownerID, id int64) (*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.owned(ownerID, id)
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memTasks) Create(ctx context.Context, t *domain.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	t.ID = m.nextID
	t.Position = m.nextPosition(t.UserID, t.Column)
	t.CreatedAt = time.Now()
	cp := *t
	m.rows[t.ID] = &cp
	return nil
}

func (m *memTasks) Update(ctx context.Context, t *domain.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	cur, ok := m.owned(t.UserID, t.ID)
	if !ok {
		return repository.ErrNotFound
	}
	cur.Title, cur.Description, cur.DueDate, cur.Priority, cur.Tag, cur.ImageRef = t.Title, t.Description, t.DueDate, t.Priority, t.Tag, t.ImageRef
	return nil
}

func (m *memTasks) SetImage(ctx context.Context, ownerID, id int64, ref *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.owned(ownerID, id)
	if !ok {
		return repository.ErrNotFound
	}
	cur.ImageRef = ref
	return nil
}

func (m *memTasks) Delete(ctx context.Context, ownerID, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.owned(ownerID, id); !ok {
		return repository.ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

func (m *memTasks) Move(ctx context.Context, ownerID, id int64, column domain.Column) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.owned(ownerID, id)
	if !ok {
		return 0, repository.ErrNotFound
	}
	pos := m.nextPosition(ownerID, column)
	cur.Column, cur.Position = column, pos
	return pos, nil
}

func (m *memTasks) Reorder(ctx context.Context, ownerID int64, column domain.Column, ids []int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, id := range ids {
		if cur, ok := m.owned(ownerID, id); ok && cur.Column == column {
			cur.Position = i + 1
		}
	}
	return nil
}

func (m *memTasks) row(id int64) (domain.Task, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.rows[id]
	if !ok {
		return domain.Task{}, false
	}
	return *t, true
}

// memImages validates like the real stores and keeps files in a map.
type memImages struct {
	files   map[string][]byte
	saveErr error
	deleted []string
}

func newMemImages() *memImages {
	return &memImages{files: map[string][]byte{}}
}

func (m *memImages) Validate(data []byte, declaredMIME, filename string) (storage.Image, error) {
	return storage.ValidateImage(data, declaredMIME, filename, 5*1024*1024)
}

func (m *memImages) Save(ctx context.Context, ownerID, taskID int64, data []byte, declaredMIME, filename string) (string, error) {
	img, err := m.Validate(data, declaredMIME, filename)
	if err != nil {
		return "", err
	}
	if m.saveErr != nil {
		return "", m.saveErr
	}
	ref := "uploads/" + itoa(ownerID) + "/" + itoa(taskID) + "/image." + img.Ext
	m.files[ref] = data
	return ref, nil
}

func (m *memImages) Delete(ctx context.Context, ref string) error {
	m.deleted = append(m.deleted, ref)
	delete(m.files, ref)
	return nil
}

func (m *memImages) URL(ref string) string {
	return "http://localhost:8080/" + ref
}

// memAudit records audit entries.
type memAudit struct {
	mu      sync.Mutex
	entries []*domain.AuditLog
	failing bool
}

func (m *memAudit) Create(ctx context.Context, log *domain.AuditLog) error {
	if m.failing {
		return errors.New("audit table missing")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, log)
	return nil
}

func (m *memAudit) ListByUser(ctx context.Context, userID int64, limit int) ([]*domain.AuditLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.AuditLog
	for i := len(m.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if m.entries[i].UserID == userID {
			out = append(out, m.entries[i])
		}
	}
	return out, nil
}

func (m *memAudit) actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.entries))
	for i, e := range m.entries {
		out[i] = e.Action
	}
	return out
}

// stubCompleter returns a canned reply.
type stubCompleter struct {
	reply  string
	err    error
	prompt string
}

func (s *stubCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	s.prompt = prompt
	return s.reply, s.err
}

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 32)...)

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
