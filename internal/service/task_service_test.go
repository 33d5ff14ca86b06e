package service

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/Raivel16/gestor-tareas/internal/cache"
	"github.com/Raivel16/gestor-tareas/internal/domain"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
)

func newBoardCache(t *testing.T) (*cache.BoardCache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return cache.NewBoardCache(client, time.Minute), mr
}

func TestCreateAppliesDefaults(t *testing.T) {
	store := newMemTasks()
	audit := &memAudit{}
	s := NewTaskService(store, newMemImages(), nil, NewAuditService(audit))
	ctx := context.Background()

	task, err := s.Create(ctx, 7, domain.TaskInput{Title: "  Essay  ", Priority: "urgent", Tag: " LIT "}, "backlog", nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if task.Title != "Essay" || task.Tag != "LIT" || task.Priority != domain.PriorityMedium || task.Column != domain.ColumnTodo {
		t.Fatalf("defaults not applied: %+v", task)
	}
	if task.Position != 1 {
		t.Fatalf("position = %d, want 1", task.Position)
	}

	second, err := s.Create(ctx, 7, domain.TaskInput{Title: "Lab"}, domain.ColumnTodo, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if second.Position != 2 {
		t.Fatalf("position = %d, want 2", second.Position)
	}
	if got := audit.actions(); !slices.Equal(got, []string{domain.AuditActionTaskCreate, domain.AuditActionTaskCreate}) {
		t.Fatalf("audit = %v", got)
	}
}

func TestCreateRequiresTitle(t *testing.T) {
	store := newMemTasks()
	s := NewTaskService(store, newMemImages(), nil, nil)

	_, err := s.Create(context.Background(), 7, domain.TaskInput{Title: "   "}, domain.ColumnTodo, nil)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if !strings.Contains(verr.Message, "title is required") {
		t.Fatalf("message = %q", verr.Message)
	}
	if len(store.rows) != 0 {
		t.Fatal("nothing should be stored")
	}
}

func TestCreateWithImage(t *testing.T) {
	store := newMemTasks()
	images := newMemImages()
	s := NewTaskService(store, images, nil, nil)

	task, err := s.Create(context.Background(), 7, domain.TaskInput{Title: "Poster"}, domain.ColumnTodo,
		&ImageUpload{Data: pngBytes, ContentType: "image/png", Filename: "poster.png"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	want := "uploads/7/1/image.png"
	if task.ImageRef == nil || *task.ImageRef != want {
		t.Fatalf("image ref = %v", task.ImageRef)
	}
	if row, _ := store.row(task.ID); row.ImageRef == nil || *row.ImageRef != want {
		t.Fatal("image ref not persisted")
	}
	if url := s.ImageURL(task.ImageRef); url == nil || *url != "http://localhost:8080/"+want {
		t.Fatalf("url = %v", url)
	}
}

func TestCreateRejectsBadImageBeforeInsert(t *testing.T) {
	store := newMemTasks()
	s := NewTaskService(store, newMemImages(), nil, nil)

	_, err := s.Create(context.Background(), 7, domain.TaskInput{Title: "Poster"}, domain.ColumnTodo,
		&ImageUpload{Data: []byte("%PDF-1.4 not an image"), ContentType: "application/pdf", Filename: "poster.pdf"})
	var verr *ValidationError
	if !errors.As(err, &verr) || !strings.Contains(verr.Message, "file type not allowed") {
		t.Fatalf("expected file type error, got %v", err)
	}
	if len(store.rows) != 0 {
		t.Fatal("row must not be written for an invalid image")
	}
}

func TestCreateRemovesRowWhenImageSaveFails(t *testing.T) {
	store := newMemTasks()
	images := newMemImages()
	images.saveErr = errors.New("disk full")
	s := NewTaskService(store, images, nil, nil)

	_, err := s.Create(context.Background(), 7, domain.TaskInput{Title: "Poster"}, domain.ColumnTodo,
		&ImageUpload{Data: pngBytes, ContentType: "image/png", Filename: "a.png"})
	if err == nil {
		t.Fatal("expected error")
	}
	if len(store.rows) != 0 {
		t.Fatal("row should have been removed")
	}
}

func TestUpdateReplacesAndDropsImage(t *testing.T) {
	ref := "uploads/7/1/image.gif"
	store := newMemTasks(domain.Task{ID: 1, UserID: 7, Title: "Old", Priority: domain.PriorityLow, Column: domain.ColumnTodo, Position: 1, ImageRef: &ref})
	images := newMemImages()
	images.files[ref] = []byte("GIF89a")
	s := NewTaskService(store, images, nil, nil)
	ctx := context.Background()

	task, err := s.Update(ctx, 7, 1, domain.TaskInput{Title: "New", Priority: domain.PriorityHigh, DueDate: date("2024-06-01")},
		&ImageUpload{Data: pngBytes, ContentType: "image/png", Filename: "b.png"}, true)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if task.Title != "New" || task.Priority != domain.PriorityHigh || task.DueDate == nil {
		t.Fatalf("fields not updated: %+v", task)
	}
	if task.ImageRef == nil || *task.ImageRef != "uploads/7/1/image.png" {
		t.Fatalf("image ref = %v", task.ImageRef)
	}
	if !slices.Contains(images.deleted, ref) {
		t.Fatal("old image should be deleted")
	}

	task, err = s.Update(ctx, 7, 1, domain.TaskInput{Title: "New"}, nil, false)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if task.ImageRef != nil {
		t.Fatal("image should be dropped")
	}
	if row, _ := store.row(1); row.ImageRef != nil {
		t.Fatal("dropped image ref not persisted")
	}
	if len(images.files) != 0 {
		t.Fatalf("files left: %v", images.files)
	}
}

func TestUpdateFailureKeepsOldImage(t *testing.T) {
	ref := "uploads/7/1/image.gif"
	store := newMemTasks(domain.Task{ID: 1, UserID: 7, Title: "Old", Column: domain.ColumnTodo, Position: 1, ImageRef: &ref})
	store.updateErr = errors.New("connection reset")
	images := newMemImages()
	images.files[ref] = []byte("GIF89a")
	s := NewTaskService(store, images, nil, nil)
	ctx := context.Background()

	if _, err := s.Update(ctx, 7, 1, domain.TaskInput{Title: "New"},
		&ImageUpload{Data: pngBytes, ContentType: "image/png", Filename: "b.png"}, true); err == nil {
		t.Fatal("expected update error")
	}
	if _, ok := images.files[ref]; !ok || slices.Contains(images.deleted, ref) {
		t.Fatalf("old image must survive a failed update, deleted = %v", images.deleted)
	}
	if _, ok := images.files["uploads/7/1/image.png"]; ok {
		t.Fatal("new image should be removed when the row was not updated")
	}

	if _, err := s.Update(ctx, 7, 1, domain.TaskInput{Title: "New"}, nil, false); err == nil {
		t.Fatal("expected update error")
	}
	if _, ok := images.files[ref]; !ok {
		t.Fatal("dropping the image must wait for the row update")
	}
	if row, _ := store.row(1); row.ImageRef == nil || *row.ImageRef != ref {
		t.Fatalf("row image ref = %v", row.ImageRef)
	}
}

func TestUpdateKeepsImageByDefault(t *testing.T) {
	ref := "uploads/7/1/image.gif"
	store := newMemTasks(domain.Task{ID: 1, UserID: 7, Title: "Old", Column: domain.ColumnTodo, Position: 1, ImageRef: &ref})
	s := NewTaskService(store, newMemImages(), nil, nil)

	task, err := s.Update(context.Background(), 7, 1, domain.TaskInput{Title: "Renamed"}, nil, true)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if task.ImageRef == nil || *task.ImageRef != ref {
		t.Fatalf("image ref = %v", task.ImageRef)
	}
}

func TestUpdateOtherOwnersTaskIsNotFound(t *testing.T) {
	store := newMemTasks(domain.Task{ID: 1, UserID: 8, Title: "Theirs", Column: domain.ColumnTodo, Position: 1})
	s := NewTaskService(store, newMemImages(), nil, nil)

	if _, err := s.Update(context.Background(), 7, 1, domain.TaskInput{Title: "Mine now"}, nil, true); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
	if row, _ := store.row(1); row.Title != "Theirs" {
		t.Fatal("other owner's task was modified")
	}
}

func TestDeleteReleasesImage(t *testing.T) {
	ref := "uploads/7/1/image.png"
	store := newMemTasks(domain.Task{ID: 1, UserID: 7, Title: "A", Column: domain.ColumnTodo, Position: 1, ImageRef: &ref})
	images := newMemImages()
	s := NewTaskService(store, images, nil, nil)

	if err := s.Delete(context.Background(), 7, 1); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok := store.row(1); ok {
		t.Fatal("row still present")
	}
	if !slices.Equal(images.deleted, []string{ref}) {
		t.Fatalf("deleted = %v", images.deleted)
	}
	if err := s.Delete(context.Background(), 7, 1); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("second delete: expected ErrTaskNotFound, got %v", err)
	}
}

func TestMoveAppendsToTargetColumn(t *testing.T) {
	store := newMemTasks(
		domain.Task{ID: 1, UserID: 7, Title: "A", Column: domain.ColumnDone, Position: 1},
		domain.Task{ID: 2, UserID: 7, Title: "B", Column: domain.ColumnDone, Position: 2},
		domain.Task{ID: 3, UserID: 7, Title: "C", Column: domain.ColumnTodo, Position: 1},
	)
	s := NewTaskService(store, nil, nil, nil)

	pos, err := s.Move(context.Background(), 7, 3, "done")
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if pos != 3 {
		t.Fatalf("position = %d, want 3", pos)
	}

	pos, err = s.Move(context.Background(), 7, 1, "inprogress")
	if err != nil || pos != 1 {
		t.Fatalf("move into empty column: pos=%d err=%v", pos, err)
	}
}

func TestMoveValidation(t *testing.T) {
	store := newMemTasks(domain.Task{ID: 1, UserID: 8, Title: "Theirs", Column: domain.ColumnTodo, Position: 1})
	s := NewTaskService(store, nil, nil, nil)

	var verr *ValidationError
	if _, err := s.Move(context.Background(), 7, 1, "archive"); !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if _, err := s.Move(context.Background(), 7, 1, "done"); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
}

func TestReorderWritesPermutation(t *testing.T) {
	store := newMemTasks(
		domain.Task{ID: 1, UserID: 7, Title: "A", Column: domain.ColumnTodo, Position: 1},
		domain.Task{ID: 2, UserID: 7, Title: "B", Column: domain.ColumnTodo, Position: 2},
		domain.Task{ID: 3, UserID: 7, Title: "C", Column: domain.ColumnTodo, Position: 3},
		domain.Task{ID: 4, UserID: 8, Title: "Theirs", Column: domain.ColumnTodo, Position: 5},
	)
	s := NewTaskService(store, nil, nil, nil)

	if err := s.Reorder(context.Background(), 7, "todo", []int64{3, 1, 2, 4}); err != nil {
		t.Fatalf("reorder: %v", err)
	}
	want := map[int64]int{3: 1, 1: 2, 2: 3, 4: 5}
	for id, pos := range want {
		if row, _ := store.row(id); row.Position != pos {
			t.Errorf("task %d position = %d, want %d", id, row.Position, pos)
		}
	}
}

func TestReorderValidation(t *testing.T) {
	s := NewTaskService(newMemTasks(), nil, nil, nil)
	var verr *ValidationError

	if err := s.Reorder(context.Background(), 7, "todo", nil); !errors.As(err, &verr) {
		t.Fatalf("empty order: expected ValidationError, got %v", err)
	}
	if err := s.Reorder(context.Background(), 7, "later", []int64{1}); !errors.As(err, &verr) {
		t.Fatalf("bad column: expected ValidationError, got %v", err)
	}
}

func TestListUsesCacheAndMutationsInvalidate(t *testing.T) {
	store := newMemTasks(domain.Task{ID: 1, UserID: 7, Title: "A", Column: domain.ColumnTodo, Position: 1})
	board, mr := newBoardCache(t)
	s := NewTaskService(store, nil, board, nil)
	ctx := context.Background()

	first, err := s.List(ctx, 7)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	second, err := s.List(ctx, 7)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(first) != 1 || len(second) != 1 || first[0].ID != second[0].ID {
		t.Fatalf("lists differ: %v vs %v", first, second)
	}
	if n := slices.Index(store.calls, "List"); n != 0 || len(store.calls) != 1 {
		t.Fatalf("expected one store read, got %v", store.calls)
	}
	if !mr.Exists("board:7") {
		t.Fatal("board not cached")
	}

	if _, err := s.Move(ctx, 7, 1, "done"); err != nil {
		t.Fatalf("move: %v", err)
	}
	if mr.Exists("board:7") {
		t.Fatal("move should invalidate the board cache")
	}

	after, err := s.List(ctx, 7)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if after[0].Column != domain.ColumnDone {
		t.Fatalf("stale board after move: %+v", after[0])
	}
}

func TestListDoesNotCacheBoardRacingAWrite(t *testing.T) {
	store := newMemTasks(domain.Task{ID: 1, UserID: 7, Title: "A", Column: domain.ColumnTodo, Position: 1})
	board, mr := newBoardCache(t)
	s := NewTaskService(store, nil, board, nil)
	ctx := context.Background()

	store.onList = func() {
		store.onList = nil
		board.Invalidate(ctx, 7)
	}
	if _, err := s.List(ctx, 7); err != nil {
		t.Fatalf("list: %v", err)
	}
	if mr.Exists("board:7") {
		t.Fatal("board read before a concurrent write must not be cached")
	}

	if _, err := s.List(ctx, 7); err != nil {
		t.Fatalf("list: %v", err)
	}
	if !mr.Exists("board:7") {
		t.Fatal("quiet listing should be cached")
	}
}

func TestListEmptyBoardIsNotNil(t *testing.T) {
	s := NewTaskService(newMemTasks(), nil, nil, nil)
	tasks, err := s.List(context.Background(), 7)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if tasks == nil {
		t.Fatal("expected empty slice")
	}
}

func TestAuditFailureDoesNotFailMutation(t *testing.T) {
	s := NewTaskService(newMemTasks(), nil, nil, NewAuditService(&memAudit{failing: true}))
	if _, err := s.Create(context.Background(), 7, domain.TaskInput{Title: "A"}, domain.ColumnTodo, nil); err != nil {
		t.Fatalf("create: %v", err)
	}
}
