package leaderboard

import (
	"context"
	"errors"
	"math"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/alem-hub/leaderboard/internal/store"
	"github.com/alem-hub/leaderboard/pkg/logger"
)

// Leaderboard is a single ranked set of identified members, each scored by a
// value of a declared numeric type, layered on one store key.
type Leaderboard struct {
	session *store.Session
	key     string
	typ     NumericType
	opts    LeaderboardOptions
	log     *logger.Logger
}

// New constructs a Leaderboard bound to key on the given session.
func New(session *store.Session, key string, typ NumericType, opts LeaderboardOptions) *Leaderboard {
	return &Leaderboard{
		session: session,
		key:     key,
		typ:     typ,
		opts:    opts,
		log:     logger.Default().With(logger.Component("leaderboard"), logger.LeaderboardKey(key)),
	}
}

// Key returns the store key this leaderboard is bound to.
func (lb *Leaderboard) Key() string { return lb.key }

func (lb *Leaderboard) client() redis.UniversalClient { return lb.session.Client() }
func (lb *Leaderboard) scripts() *store.ScriptHost     { return lb.session.Scripts() }

// Rank returns id's 1-based rank under the current sort policy, or
// (0, false) if id is absent. Single command, no pipeline.
func (lb *Leaderboard) Rank(ctx context.Context, id string) *Future[RankResult] {
	if id == "" {
		return resolvedFuture(RankResult{}, ErrEmptyID)
	}
	return newFuture(func() (RankResult, error) {
		r, ok, err := lb.rawRank(ctx, id)
		if err != nil {
			return RankResult{}, err
		}
		return RankResult{Rank: r, Found: ok}, nil
	})
}

// RankResult is the outcome of Rank: Found is false when the member is absent.
type RankResult struct {
	Rank  int64
	Found bool
}

func (lb *Leaderboard) rawRank(ctx context.Context, id string) (int64, bool, error) {
	var r int64
	var found bool
	err := lb.session.Guard(ctx, func(ctx context.Context) error {
		var cmd *redis.IntCmd
		if lb.opts.SortPolicy == HighToLow {
			cmd = lb.client().ZRevRank(ctx, lb.key, id)
		} else {
			cmd = lb.client().ZRank(ctx, lb.key, id)
		}
		res, err := cmd.Result()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		r, found = res+1, true
		return nil
	})
	if err != nil {
		return 0, false, wrapErr(CodeConnectionFailure, "leaderboard: rank query failed", err)
	}
	return r, found, nil
}

// Find returns id's combined (score, rank), or (Entry{}, false) if absent.
// If the score lookup is absent, no rank call is issued.
func (lb *Leaderboard) Find(ctx context.Context, id string) *Future[FindResult] {
	if id == "" {
		return resolvedFuture(FindResult{}, ErrEmptyID)
	}
	return newFuture(func() (FindResult, error) {
		var raw float64
		var absent bool
		err := lb.session.Guard(ctx, func(ctx context.Context) error {
			v, err := lb.client().ZScore(ctx, lb.key, id).Result()
			if errors.Is(err, redis.Nil) {
				absent = true
				return nil
			}
			if err != nil {
				return err
			}
			raw = v
			return nil
		})
		if err != nil {
			return FindResult{}, wrapErr(CodeConnectionFailure, "leaderboard: score query failed", err)
		}
		if absent {
			return FindResult{}, nil
		}
		score, err := decodeScore(lb.typ, raw)
		if err != nil {
			return FindResult{}, err
		}
		rank, _, err := lb.rawRank(ctx, id)
		if err != nil {
			return FindResult{}, err
		}
		return FindResult{Entry: Entry{ID: id, Score: score, Rank: rank}, Found: true}, nil
	})
}

// FindResult is the outcome of Find.
type FindResult struct {
	Entry Entry
	Found bool
}

// At returns the entry at 1-based rank, or (Entry{}, false) if out of range.
// For rank <= 0 returns absent without any I/O.
func (lb *Leaderboard) At(ctx context.Context, rank int64) *Future[FindResult] {
	if rank <= 0 {
		return resolvedFuture(FindResult{}, nil)
	}
	return newFuture(func() (FindResult, error) {
		entries, err := lb.listBlocking(ctx, rank, rank)
		if err != nil {
			return FindResult{}, err
		}
		if len(entries) == 0 {
			return FindResult{}, nil
		}
		return FindResult{Entry: entries[0], Found: true}, nil
	})
}

// List returns entries ranked [lower, upper], 1-based inclusive, clamped to
// >= 1.
func (lb *Leaderboard) List(ctx context.Context, lower, upper int64) *Future[[]Entry] {
	return newFuture(func() ([]Entry, error) {
		return lb.listBlocking(ctx, lower, upper)
	})
}

func (lb *Leaderboard) listBlocking(ctx context.Context, lower, upper int64) ([]Entry, error) {
	if lower < 1 {
		lower = 1
	}
	if upper < 1 {
		upper = 1
	}
	start, stop := lower-1, upper-1

	var zs []redis.Z
	err := lb.session.Guard(ctx, func(ctx context.Context) error {
		var err error
		if lb.opts.SortPolicy == HighToLow {
			zs, err = lb.client().ZRevRangeWithScores(ctx, lb.key, start, stop).Result()
		} else {
			zs, err = lb.client().ZRangeWithScores(ctx, lb.key, start, stop).Result()
		}
		return err
	})
	if err != nil {
		return nil, wrapErr(CodeConnectionFailure, "leaderboard: range query failed", err)
	}

	entries := make([]Entry, len(zs))
	for i, z := range zs {
		score, derr := decodeScore(lb.typ, z.Score)
		if derr != nil {
			return nil, derr
		}
		entries[i] = Entry{ID: z.Member.(string), Score: score, Rank: lower + int64(i)}
	}
	return entries, nil
}

// Top is equivalent to List(1, n).
func (lb *Leaderboard) Top(ctx context.Context, n int64) *Future[[]Entry] {
	return lb.List(ctx, 1, n)
}

// Bottom returns the n worst-ranked entries, worst first.
func (lb *Leaderboard) Bottom(ctx context.Context, n int64) *Future[[]Entry] {
	return newFuture(func() ([]Entry, error) {
		if n <= 0 {
			return []Entry{}, nil
		}
		var zs []redis.Z
		var card int64
		err := lb.session.Guard(ctx, func(ctx context.Context) error {
			var err error
			if lb.opts.SortPolicy == HighToLow {
				zs, err = lb.client().ZRangeWithScores(ctx, lb.key, 0, n-1).Result()
			} else {
				zs, err = lb.client().ZRevRangeWithScores(ctx, lb.key, 0, n-1).Result()
			}
			if err != nil {
				return err
			}
			if len(zs) == 0 {
				return nil
			}
			card, err = lb.client().ZCard(ctx, lb.key).Result()
			return err
		})
		if err != nil {
			return nil, wrapErr(CodeConnectionFailure, "leaderboard: bottom query failed", err)
		}
		if len(zs) == 0 {
			return []Entry{}, nil
		}

		// zs is already worst-first: index 0 is the single worst member
		// (lowest score under HIGH_TO_LOW, highest under LOW_TO_HIGH), and
		// rank number increases as score worsens, so rank(i) = card - i.
		entries := make([]Entry, len(zs))
		for i, z := range zs {
			score, derr := decodeScore(lb.typ, z.Score)
			if derr != nil {
				return nil, derr
			}
			entries[i] = Entry{ID: z.Member.(string), Score: score, Rank: card - int64(i)}
		}
		return entries, nil
	})
}

// Count returns the key's cardinality.
func (lb *Leaderboard) Count(ctx context.Context) *Future[int64] {
	return newFuture(func() (int64, error) {
		var c int64
		err := lb.session.Guard(ctx, func(ctx context.Context) error {
			v, err := lb.client().ZCard(ctx, lb.key).Result()
			if err != nil {
				return err
			}
			c = v
			return nil
		})
		if err != nil {
			return 0, wrapErr(CodeConnectionFailure, "leaderboard: count query failed", err)
		}
		return c, nil
	})
}

// Remove deletes the given ids. Removing absent ids is a no-op.
func (lb *Leaderboard) Remove(ctx context.Context, ids ...string) *Future[struct{}] {
	return newFuture(func() (struct{}, error) {
		if len(ids) == 0 {
			return struct{}{}, nil
		}
		members := make([]any, len(ids))
		for i, id := range ids {
			members[i] = id
		}
		err := lb.session.Guard(ctx, func(ctx context.Context) error {
			return lb.client().ZRem(ctx, lb.key, members...).Err()
		})
		if err != nil {
			return struct{}{}, wrapErr(CodeConnectionFailure, "leaderboard: remove failed", err)
		}
		return struct{}{}, nil
	})
}

// Clear deletes the entire key.
func (lb *Leaderboard) Clear(ctx context.Context) *Future[struct{}] {
	return newFuture(func() (struct{}, error) {
		err := lb.session.Guard(ctx, func(ctx context.Context) error {
			return lb.client().Del(ctx, lb.key).Err()
		})
		if err != nil {
			return struct{}{}, wrapErr(CodeConnectionFailure, "leaderboard: clear failed", err)
		}
		return struct{}{}, nil
	})
}

// ListByScore returns members in [min, max] via the rangescore script.
func (lb *Leaderboard) ListByScore(ctx context.Context, min, max float64) *Future[[]Entry] {
	return newFuture(func() ([]Entry, error) {
		baseRank, flat, err := lb.runRangeScript(ctx, "rangescore",
			strconv.FormatFloat(min, 'f', -1, 64),
			strconv.FormatFloat(max, 'f', -1, 64),
			lb.opts.SortPolicy.scriptDirection())
		if err != nil {
			return nil, err
		}
		return lb.decodeFlatEntries(baseRank, flat)
	})
}

// Around returns the window of entries around id per spec.md's symmetric-
// window semantics, via the around script.
func (lb *Leaderboard) Around(ctx context.Context, id string, distance int64, fillBorders bool) *Future[[]Entry] {
	if id == "" {
		return resolvedFuture[[]Entry](nil, ErrEmptyID)
	}
	return newFuture(func() ([]Entry, error) {
		baseRank, flat, err := lb.runRangeScript(ctx, "around",
			id, strconv.FormatInt(distance, 10), strconv.FormatBool(fillBorders),
			lb.opts.SortPolicy.scriptDirection())
		if err != nil {
			return nil, err
		}
		return lb.decodeFlatEntries(baseRank, flat)
	})
}

// runRangeScript invokes a script that replies {baseRank, flat...} and
// returns baseRank (-1 for empty) plus the flat [id, score, ...] slice.
func (lb *Leaderboard) runRangeScript(ctx context.Context, name string, args ...any) (int64, []any, error) {
	var reply any
	err := lb.session.Guard(ctx, func(ctx context.Context) error {
		v, err := lb.scripts().Run(ctx, name, lb.key, args...).Result()
		if err != nil {
			return err
		}
		reply = v
		return nil
	})
	if err != nil {
		return 0, nil, wrapErr(CodeConnectionFailure, "leaderboard: "+name+" script failed", err)
	}
	top, ok := reply.([]any)
	if !ok || len(top) != 2 {
		return 0, nil, wrapErr(CodeProtocolError, "leaderboard: "+name+" script returned unexpected shape", ErrProtocolError)
	}
	baseRank, err := toInt64(top[0])
	if err != nil {
		return 0, nil, wrapErr(CodeProtocolError, "leaderboard: "+name+" script returned non-numeric rank", ErrProtocolError)
	}
	flat, ok := top[1].([]any)
	if !ok {
		return 0, nil, wrapErr(CodeProtocolError, "leaderboard: "+name+" script returned unexpected list", ErrProtocolError)
	}
	return baseRank, flat, nil
}

// decodeFlatEntries turns a [id, score, id, score, ...] reply plus its
// 0-based baseRank into 1-based ranked Entries.
func (lb *Leaderboard) decodeFlatEntries(baseRank int64, flat []any) ([]Entry, error) {
	if baseRank < 0 || len(flat) == 0 {
		return []Entry{}, nil
	}
	entries := make([]Entry, 0, len(flat)/2)
	for i := 0; i+1 < len(flat); i += 2 {
		id, ok := flat[i].(string)
		if !ok {
			return nil, wrapErr(CodeProtocolError, "leaderboard: script returned non-string member", ErrProtocolError)
		}
		rawScore, err := toFloat64(flat[i+1])
		if err != nil {
			return nil, wrapErr(CodeProtocolError, "leaderboard: script returned non-numeric score", ErrProtocolError)
		}
		score, err := decodeScore(lb.typ, rawScore)
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{ID: id, Score: score, Rank: baseRank + int64(i)/2 + 1})
	}
	return entries, nil
}

func toInt64(v any) (int64, error) {
	switch t := v.(type) {
	case int64:
		return t, nil
	case string:
		return strconv.ParseInt(t, 10, 64)
	case float64:
		// go-redis decodes a Lua script's numeric replies (e.g. the
		// rangescore/around baseRank) as float64 when the reply traverses
		// the RESP2 double/bulk-string path rather than :<integer>.
		return int64(math.RoundToEven(t)), nil
	default:
		return 0, errors.New("not numeric")
	}
}

func toFloat64(v any) (float64, error) {
	switch t := v.(type) {
	case string:
		return strconv.ParseFloat(t, 64)
	case int64:
		return float64(t), nil
	case float64:
		return t, nil
	default:
		return 0, errors.New("not numeric")
	}
}
