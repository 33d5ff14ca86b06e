package cache

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/Raivel16/gestor-tareas/internal/domain"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
)

func newTestCache(t *testing.T, ttl time.Duration) (*BoardCache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewBoardCache(client, ttl), mr
}

func TestBoardCacheMissThenHit(t *testing.T) {
	c, mr := newTestCache(t, time.Minute)
	ctx := context.Background()

	if _, ok := c.Get(ctx, 7); ok {
		t.Fatal("expected miss on empty cache")
	}

	due := time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC)
	board := []domain.Task{
		{ID: 1, UserID: 7, Title: "Essay", DueDate: &due, Priority: domain.PriorityHigh, Column: domain.ColumnTodo, Position: 1},
		{ID: 2, UserID: 7, Title: "Lab", Priority: domain.PriorityLow, Column: domain.ColumnDone, Position: 1},
	}
	c.Set(ctx, 7, c.Generation(ctx, 7), board)

	got, ok := c.Get(ctx, 7)
	if !ok {
		t.Fatal("expected hit")
	}
	if !reflect.DeepEqual(got, board) {
		t.Fatalf("unexpected board: %#v", got)
	}
	if ttl := mr.TTL(boardKey(7)); ttl <= 0 || ttl > time.Minute {
		t.Fatalf("unexpected TTL: %v", ttl)
	}
}

func TestBoardCacheIsPerOwner(t *testing.T) {
	c, _ := newTestCache(t, time.Minute)
	ctx := context.Background()

	c.Set(ctx, 7, c.Generation(ctx, 7), []domain.Task{{ID: 1, UserID: 7}})
	if _, ok := c.Get(ctx, 8); ok {
		t.Fatal("owner 8 must not see owner 7's board")
	}
}

func TestBoardCacheInvalidate(t *testing.T) {
	c, mr := newTestCache(t, time.Minute)
	ctx := context.Background()

	c.Set(ctx, 7, c.Generation(ctx, 7), []domain.Task{{ID: 1}})
	c.Invalidate(ctx, 7)

	if mr.Exists(boardKey(7)) {
		t.Fatal("expected key to be removed")
	}
	if _, ok := c.Get(ctx, 7); ok {
		t.Fatal("expected miss after invalidate")
	}
}

func TestBoardCacheCorruptEntryIsDropped(t *testing.T) {
	c, mr := newTestCache(t, time.Minute)
	if err := mr.Set(boardKey(7), "not json"); err != nil {
		t.Fatal(err)
	}

	if _, ok := c.Get(context.Background(), 7); ok {
		t.Fatal("expected miss on corrupt entry")
	}
	if mr.Exists(boardKey(7)) {
		t.Fatal("expected corrupt entry to be deleted")
	}
}

func TestBoardCacheExpires(t *testing.T) {
	c, mr := newTestCache(t, time.Second)
	ctx := context.Background()

	c.Set(ctx, 7, c.Generation(ctx, 7), []domain.Task{{ID: 1}})
	mr.FastForward(2 * time.Second)

	if _, ok := c.Get(ctx, 7); ok {
		t.Fatal("expected entry to expire")
	}
}

func TestBoardCacheDisabled(t *testing.T) {
	ctx := context.Background()
	for name, c := range map[string]*BoardCache{
		"nil cache":  nil,
		"nil client": NewBoardCache(nil, time.Minute),
	} {
		c.Set(ctx, 7, c.Generation(ctx, 7), []domain.Task{{ID: 1}})
		c.Invalidate(ctx, 7)
		if _, ok := c.Get(ctx, 7); ok {
			t.Errorf("%s: expected miss", name)
		}
	}

	zeroTTL, mr := newTestCache(t, 0)
	zeroTTL.Set(ctx, 7, 0, []domain.Task{{ID: 1}})
	if mr.Exists(boardKey(7)) {
		t.Fatal("zero TTL must not store")
	}
}

func TestBoardCacheSkipsBoardLoadedBeforeInvalidate(t *testing.T) {
	c, mr := newTestCache(t, time.Minute)
	ctx := context.Background()

	gen := c.Generation(ctx, 7)
	stale := []domain.Task{{ID: 1, Column: domain.ColumnTodo}}

	// a write lands between loading the board and caching it
	c.Invalidate(ctx, 7)
	c.Set(ctx, 7, gen, stale)

	if mr.Exists(boardKey(7)) {
		t.Fatal("board loaded before the write must not be cached")
	}

	fresh := []domain.Task{{ID: 1, Column: domain.ColumnDone}}
	c.Set(ctx, 7, c.Generation(ctx, 7), fresh)
	got, ok := c.Get(ctx, 7)
	if !ok || got[0].Column != domain.ColumnDone {
		t.Fatalf("expected fresh board, got %v %v", got, ok)
	}
}

func TestBoardCacheGenerationUnavailable(t *testing.T) {
	c, mr := newTestCache(t, time.Minute)
	ctx := context.Background()

	mr.SetError("LOADING")
	gen := c.Generation(ctx, 7)
	mr.SetError("")

	if gen != NoGeneration {
		t.Fatalf("expected NoGeneration, got %d", gen)
	}
	c.Set(ctx, 7, gen, []domain.Task{{ID: 1}})
	if mr.Exists(boardKey(7)) {
		t.Fatal("unknown generation must not cache")
	}
}
