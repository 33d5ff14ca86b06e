package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/Raivel16/gestor-tareas/internal/domain"

	redis "github.com/redis/go-redis/v9"
)

// NoGeneration makes Set a no-op.
const NoGeneration int64 = -1

var errStaleBoard = errors.New("board changed while loading")

// BoardCache keeps a short-lived copy of each owner's board in Redis.
// A nil client or a zero TTL turns every call into a no-op, and Redis
// errors are treated as misses so reads fall through to Postgres.
//
// Each owner also has a generation counter bumped by Invalidate. A reader
// takes the generation before loading the board and Set only stores the
// board if no write happened in between, so a listing that raced a
// mutation is never cached.
type BoardCache struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewBoardCache(client *redis.Client, ttl time.Duration) *BoardCache {
	if ttl < 0 {
		ttl = 0
	}
	return &BoardCache{redis: client, ttl: ttl}
}

func (c *BoardCache) enabled() bool {
	return c != nil && c.redis != nil && c.ttl > 0
}

// Get returns the cached board and whether it was present.
func (c *BoardCache) Get(ctx context.Context, ownerID int64) ([]domain.Task, bool) {
	if !c.enabled() {
		return nil, false
	}
	key := boardKey(ownerID)
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			_ = c.redis.Del(ctx, key).Err()
		}
		return nil, false
	}
	var tasks []domain.Task
	if err := json.Unmarshal(data, &tasks); err != nil {
		_ = c.redis.Del(ctx, key).Err()
		return nil, false
	}
	return tasks, true
}

// Generation returns the owner's current board generation, or
// NoGeneration when it cannot be read. Take it before loading the board.
func (c *BoardCache) Generation(ctx context.Context, ownerID int64) int64 {
	if !c.enabled() {
		return NoGeneration
	}
	gen, err := c.redis.Get(ctx, generationKey(ownerID)).Int64()
	switch {
	case errors.Is(err, redis.Nil):
		return 0
	case err != nil:
		return NoGeneration
	}
	return gen
}

// Set stores tasks as the owner's board if the generation is still gen.
func (c *BoardCache) Set(ctx context.Context, ownerID, gen int64, tasks []domain.Task) {
	if !c.enabled() || gen == NoGeneration {
		return
	}
	if tasks == nil {
		tasks = []domain.Task{}
	}
	data, err := json.Marshal(tasks)
	if err != nil {
		return
	}

	genKey := generationKey(ownerID)
	_ = c.redis.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, genKey).Int64()
		if errors.Is(err, redis.Nil) {
			cur, err = 0, nil
		}
		if err != nil {
			return err
		}
		if cur != gen {
			return errStaleBoard
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, boardKey(ownerID), data, c.ttl)
			return nil
		})
		return err
	}, genKey)
}

// Invalidate drops the owner's cached board and bumps its generation.
// Call after every write.
func (c *BoardCache) Invalidate(ctx context.Context, ownerID int64) {
	if c == nil || c.redis == nil {
		return
	}
	_, _ = c.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, generationKey(ownerID))
		pipe.Del(ctx, boardKey(ownerID))
		return nil
	})
}

func boardKey(ownerID int64) string {
	return "board:" + strconv.FormatInt(ownerID, 10)
}

func generationKey(ownerID int64) string {
	return boardKey(ownerID) + ":gen"
}
