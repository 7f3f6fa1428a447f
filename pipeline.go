package leaderboard

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// PipelineBatch queues a sequence of store commands and flushes them as one
// round trip, mirroring the teacher's UpdateEntries/RebuildFromSnapshot use
// of redis.Pipeliner.
type PipelineBatch struct {
	pipe redis.Pipeliner
	txn  bool
}

// newPipelineBatch starts a batch. When atomic is true it uses a MULTI/EXEC
// transaction pipeline (TxPipeline); otherwise commands are merely batched
// for round-trip efficiency with no atomicity guarantee across them.
func newPipelineBatch(client redis.UniversalClient, atomic bool) *PipelineBatch {
	if atomic {
		return &PipelineBatch{pipe: client.TxPipeline(), txn: true}
	}
	return &PipelineBatch{pipe: client.Pipeline(), txn: false}
}

// ZAdd queues a single-member ZADD.
func (b *PipelineBatch) ZAdd(ctx context.Context, key string, member string, score float64) {
	b.pipe.ZAdd(ctx, key, redis.Z{Score: score, Member: member})
}

// ZIncrBy queues a ZINCRBY and returns the pending float command so the
// caller can read the post-increment score after Exec.
func (b *PipelineBatch) ZIncrBy(ctx context.Context, key string, delta float64, member string) *redis.FloatCmd {
	return b.pipe.ZIncrBy(ctx, key, delta, member)
}

// ZRem queues removal of one or more members.
func (b *PipelineBatch) ZRem(ctx context.Context, key string, members ...any) {
	b.pipe.ZRem(ctx, key, members...)
}

// Del queues deletion of one or more keys.
func (b *PipelineBatch) Del(ctx context.Context, keys ...string) {
	b.pipe.Del(ctx, keys...)
}

// Exec flushes every queued command in one round trip, wrapping a transport
// failure as ErrConnectionFailure per spec.md §7.
func (b *PipelineBatch) Exec(ctx context.Context) ([]redis.Cmder, error) {
	cmds, err := b.pipe.Exec(ctx)
	if err != nil && err != redis.Nil {
		return cmds, wrapErr(CodeConnectionFailure, "leaderboard: pipeline exec failed", err)
	}
	return cmds, nil
}
