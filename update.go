package leaderboard

import (
	"context"
	"strconv"

	"github.com/alem-hub/leaderboard/pkg/logger"
	"github.com/alem-hub/leaderboard/pkg/retry"
)

// Update applies entries as a single pipelined round trip (per spec.md
// §4.1's numbered update algorithm), wrapped in a retry loop that retries
// only connection-class failures with the package's 1s/2s/4s backoff
// schedule. The pipeline is not a MULTI/EXEC transaction, and the limitTopN
// cardinality read is a separate command issued before it. If ctx is done
// while a connection failure is being retried, Update fails with
// ErrInterrupted. override, if non-nil, replaces the leaderboard's
// configured UpdatePolicy for this call only.
func (lb *Leaderboard) Update(ctx context.Context, entries []EntryUpdate, override *UpdatePolicy) *Future[[]Entry] {
	for _, e := range entries {
		if e.ID == "" {
			return resolvedFuture[[]Entry](nil, ErrEmptyID)
		}
	}
	return newFuture(func() ([]Entry, error) {
		if len(entries) == 0 {
			return []Entry{}, nil
		}
		policy := lb.opts.UpdatePolicy
		if override != nil {
			policy = *override
		}

		retrier := retry.LeaderboardUpdateRetrier()
		var result []Entry
		err := retrier.Do(ctx, func(ctx context.Context) error {
			r, err := lb.updateOnce(ctx, entries, policy)
			if err != nil {
				if IsConnectionFailure(err) {
					return retry.Retryable(err)
				}
				return retry.Permanent(err)
			}
			result = r
			return nil
		})
		if err != nil && ctx.Err() != nil && IsConnectionFailure(err) {
			return nil, wrapErr(CodeInterrupted, "leaderboard: update retry interrupted", ErrInterrupted)
		}
		return result, err
	})
}

// updateOnce performs one (non-retried) pass of the update algorithm.
func (lb *Leaderboard) updateOnce(ctx context.Context, entries []EntryUpdate, policy UpdatePolicy) ([]Entry, error) {
	var cardinality int64
	if lb.opts.LimitTopN > 0 {
		err := lb.session.Guard(ctx, func(ctx context.Context) error {
			c, err := lb.client().ZCard(ctx, lb.key).Result()
			if err != nil {
				return err
			}
			cardinality = c
			return nil
		})
		if err != nil {
			return nil, wrapErr(CodeConnectionFailure, "leaderboard: cardinality read failed", err)
		}
	}

	batch := newPipelineBatch(lb.client(), false)

	type pending struct {
		id       string
		kind     UpdatePolicy
		literal  any   // REPLACE: the decoded value itself
		floatCmd interface{ Result() (float64, error) }
		strCmd   interface{ Result() (any, error) }
	}
	plans := make([]pending, len(entries))

	for i, e := range entries {
		delta, err := encodeScore(lb.typ, e.Value)
		if err != nil {
			return nil, err
		}
		switch policy {
		case Replace:
			batch.ZAdd(ctx, lb.key, e.ID, delta)
			plans[i] = pending{id: e.ID, kind: Replace, literal: e.Value}
		case Aggregate:
			cmd := batch.ZIncrBy(ctx, lb.key, delta, e.ID)
			plans[i] = pending{id: e.ID, kind: Aggregate, floatCmd: cmd}
		case Best:
			cmd := lb.session.Scripts().RunOn(ctx, batch.pipe, "best", lb.key,
				strconv.FormatFloat(delta, 'f', -1, 64), e.ID, lb.opts.SortPolicy.scriptDirection())
			plans[i] = pending{id: e.ID, kind: Best, strCmd: cmd}
		}
	}

	if lb.opts.LimitTopN > 0 {
		projected := cardinality + int64(len(entries))
		if projected > int64(lb.opts.LimitTopN) {
			dif := projected - int64(lb.opts.LimitTopN)
			if lb.opts.SortPolicy == HighToLow {
				batch.pipe.ZRemRangeByRank(ctx, lb.key, 0, dif-1)
			} else {
				batch.pipe.ZRemRangeByRank(ctx, lb.key, int64(lb.opts.LimitTopN), -1)
			}
		}
	}

	if err := lb.session.Guard(ctx, func(ctx context.Context) error {
		_, err := batch.Exec(ctx)
		return err
	}); err != nil {
		return nil, wrapErr(CodeConnectionFailure, "leaderboard: pipeline dispatch failed", err)
	}

	results := make([]Entry, len(entries))
	for i, p := range plans {
		var raw float64
		switch p.kind {
		case Replace:
			raw, _ = encodeScore(lb.typ, p.literal)
		case Aggregate:
			v, err := p.floatCmd.Result()
			if err != nil {
				return nil, wrapErr(CodeProtocolError, "leaderboard: aggregate result non-numeric", ErrProtocolError)
			}
			raw = v
		case Best:
			v, err := p.strCmd.Result()
			if err != nil {
				return nil, wrapErr(CodeProtocolError, "leaderboard: best script result non-numeric", ErrProtocolError)
			}
			f, ferr := toFloat64(v)
			if ferr != nil {
				return nil, wrapErr(CodeProtocolError, "leaderboard: best script result non-numeric", ErrProtocolError)
			}
			raw = f
		}
		score, err := decodeScore(lb.typ, raw)
		if err != nil {
			return nil, err
		}
		results[i] = Entry{ID: p.id, Score: score, Rank: 0}
	}

	lb.log.Debug("update applied", logger.Int("entries", len(entries)), logger.String("policy", policy.String()))
	return results, nil
}

// UpdateOne is Update([]EntryUpdate{{id, value}}, override).first.
func (lb *Leaderboard) UpdateOne(ctx context.Context, id string, value any, override *UpdatePolicy) *Future[Entry] {
	if id == "" {
		return resolvedFuture(Entry{}, ErrEmptyID)
	}
	inner := lb.Update(ctx, []EntryUpdate{{ID: id, Value: value}}, override)
	return newFuture(func() (Entry, error) {
		results, err := inner.Wait()
		if err != nil {
			return Entry{}, err
		}
		if len(results) == 0 {
			return Entry{}, nil
		}
		return results[0], nil
	})
}

// Compact atomically trims the key down to at most n members via the
// keeptop script, avoiding the read-then-trim race of Update's own trim.
// keeptop always removes the lowest-scored members, whatever the sort
// policy: under HighToLow that matches Update's trim, under LowToHigh it
// removes the best-ranked members instead of the worst.
func (lb *Leaderboard) Compact(ctx context.Context, n int64) *Future[int64] {
	return newFuture(func() (int64, error) {
		var reply any
		err := lb.session.Guard(ctx, func(ctx context.Context) error {
			v, err := lb.scripts().Run(ctx, "keeptop", lb.key, strconv.FormatInt(n, 10)).Result()
			if err != nil {
				return err
			}
			reply = v
			return nil
		})
		if err != nil {
			return 0, wrapErr(CodeConnectionFailure, "leaderboard: keeptop script failed", err)
		}
		v, ierr := toInt64(reply)
		if ierr != nil {
			return 0, wrapErr(CodeProtocolError, "leaderboard: keeptop script returned non-numeric", ErrProtocolError)
		}
		return v, nil
	})
}

// ExportStream returns a lazy, non-restartable iterator over the leaderboard
// in batches of batchSize, starting at rank 1. It stops as soon as a fetched
// batch is smaller than batchSize.
func (lb *Leaderboard) ExportStream(ctx context.Context, batchSize int64) *EntryStream {
	if batchSize <= 0 {
		batchSize = 1
	}
	return &EntryStream{lb: lb, ctx: ctx, batchSize: batchSize, cursor: 1}
}

// EntryStream is the iterator ExportStream returns.
type EntryStream struct {
	lb        *Leaderboard
	ctx       context.Context
	batchSize int64
	cursor    int64
	done      bool
}

// Next fetches the next batch. It returns an empty, non-nil slice and
// ok=false once the stream is exhausted.
func (s *EntryStream) Next() ([]Entry, bool, error) {
	if s.done {
		return nil, false, nil
	}
	batch, err := s.lb.listBlocking(s.ctx, s.cursor, s.cursor+s.batchSize-1)
	if err != nil {
		return nil, false, err
	}
	s.cursor += s.batchSize
	if int64(len(batch)) < s.batchSize {
		s.done = true
	}
	if len(batch) == 0 {
		return nil, false, nil
	}
	return batch, true, nil
}
