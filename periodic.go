package leaderboard

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/alem-hub/leaderboard/internal/store"
	"github.com/alem-hub/leaderboard/pkg/logger"
)

// periodicCacheSize bounds the number of live Leaderboard instances a
// PeriodicLeaderboard keeps warm, per SPEC_FULL.md §9's cache-eviction
// decision.
const periodicCacheSize = 100

// PeriodicLeaderboard wraps Leaderboard with a keying layer that dispatches
// to one leaderboard instance per time cycle under a common base key.
type PeriodicLeaderboard struct {
	session *store.Session
	baseKey string
	typ     NumericType
	opts    PeriodicOptions
	cycle   CycleFunc

	mu    sync.Mutex
	cache *lru.Cache[string, *Leaderboard]

	log *logger.Logger
}

// NewPeriodic constructs a PeriodicLeaderboard bound to baseKey. Returns
// ErrInvalidCycle if opts.Cycle names neither a known tag nor a function.
func NewPeriodic(session *store.Session, baseKey string, typ NumericType, opts PeriodicOptions) (*PeriodicLeaderboard, error) {
	cycleFn, err := opts.Cycle.resolve()
	if err != nil {
		return nil, err
	}
	cache, err := lru.New[string, *Leaderboard](periodicCacheSize)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: constructing instance cache: %w", err)
	}
	return &PeriodicLeaderboard{
		session: session,
		baseKey: baseKey,
		typ:     typ,
		opts:    opts,
		cycle:   cycleFn,
		cache:   cache,
		log:     logger.Default().With(logger.Component("periodic_leaderboard"), logger.LeaderboardKey(baseKey)),
	}, nil
}

// GetKey resolves t's cycle key under the configured cycle function.
func (p *PeriodicLeaderboard) GetKey(t time.Time) string {
	return p.cycle(t)
}

// GetKeyNow is GetKey(now).
func (p *PeriodicLeaderboard) GetKeyNow() string {
	return p.GetKey(p.opts.clock()())
}

// qualifiedKey returns "{baseKey}:{cycleKey}".
func (p *PeriodicLeaderboard) qualifiedKey(cycleKey string) string {
	return p.baseKey + ":" + cycleKey
}

// GetLeaderboard returns the Leaderboard instance for cycleKey, constructing
// and caching it on a first access. Two calls with the same cycleKey while
// the entry is still cached return the identical instance.
func (p *PeriodicLeaderboard) GetLeaderboard(cycleKey string) *Leaderboard {
	p.mu.Lock()
	defer p.mu.Unlock()

	if lb, ok := p.cache.Get(cycleKey); ok {
		return lb
	}
	lb := New(p.session, p.qualifiedKey(cycleKey), p.typ, p.opts.LeaderboardOptions)
	evicted := p.cache.Add(cycleKey, lb)
	if evicted {
		p.log.Debug("periodic cache evicted an entry", logger.CycleKey(cycleKey))
	}
	return lb
}

// GetLeaderboardAt composes GetKey and GetLeaderboard for an explicit time.
func (p *PeriodicLeaderboard) GetLeaderboardAt(t time.Time) *Leaderboard {
	return p.GetLeaderboard(p.GetKey(t))
}

// GetLeaderboardNow composes GetKeyNow and GetLeaderboard.
func (p *PeriodicLeaderboard) GetLeaderboardNow() *Leaderboard {
	return p.GetLeaderboard(p.GetKeyNow())
}

// GetExistingKeys scans the store's keyspace for every qualified key under
// this base key and returns the set of cycle keys found, via an incremental
// SCAN with pattern "{baseKey}:*" and batch size 100.
func (p *PeriodicLeaderboard) GetExistingKeys(ctx context.Context) *Future[[]string] {
	return newFuture(func() ([]string, error) {
		pattern := p.baseKey + ":*"
		prefix := p.baseKey + ":"

		seen := make(map[string]struct{})
		var cursor uint64
		for {
			var keys []string
			var next uint64
			err := p.session.Guard(ctx, func(ctx context.Context) error {
				k, n, err := p.session.Client().Scan(ctx, cursor, pattern, 100).Result()
				if err != nil {
					return err
				}
				keys, next = k, n
				return nil
			})
			if err != nil {
				return nil, wrapErr(CodeConnectionFailure, "leaderboard: existing-keys scan failed", err)
			}
			for _, k := range keys {
				seen[strings.TrimPrefix(k, prefix)] = struct{}{}
			}
			cursor = next
			if cursor == 0 {
				break
			}
		}

		out := make([]string, 0, len(seen))
		for k := range seen {
			out = append(out, k)
		}
		return out, nil
	})
}
