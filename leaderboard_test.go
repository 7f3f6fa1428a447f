package leaderboard_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	lb "github.com/alem-hub/leaderboard"
	"github.com/alem-hub/leaderboard/internal/store"
)

func newTestSession(t *testing.T) *store.Session {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	st, err := store.OpenWithClient(context.Background(), client)
	require.NoError(t, err)
	return store.NewSession(st)
}

func TestLeaderboard_UpdateOneThenFind(t *testing.T) {
	ctx := context.Background()
	session := newTestSession(t)
	board := lb.New(session, "test:board", lb.TypeInt64, lb.DefaultLeaderboardOptions())

	entry, err := board.UpdateOne(ctx, "alice", int64(100), nil).Wait()
	require.NoError(t, err)
	assert.Equal(t, "alice", entry.ID)
	assert.Equal(t, int64(100), entry.Score)

	found, err := board.Find(ctx, "alice").Wait()
	require.NoError(t, err)
	assert.True(t, found.Found)
	assert.Equal(t, int64(100), found.Entry.Score)
	assert.Equal(t, int64(1), found.Entry.Rank)
}

func TestLeaderboard_FindAbsentMemberReturnsNotFound(t *testing.T) {
	ctx := context.Background()
	session := newTestSession(t)
	board := lb.New(session, "test:board", lb.TypeInt64, lb.DefaultLeaderboardOptions())

	found, err := board.Find(ctx, "ghost").Wait()
	require.NoError(t, err)
	assert.False(t, found.Found)
}

func TestLeaderboard_RankOrdersHighToLowByDefault(t *testing.T) {
	ctx := context.Background()
	session := newTestSession(t)
	board := lb.New(session, "test:board", lb.TypeInt64, lb.DefaultLeaderboardOptions())

	_, err := board.Update(ctx, []lb.EntryUpdate{
		{ID: "alice", Value: int64(100)},
		{ID: "bob", Value: int64(300)},
		{ID: "carol", Value: int64(200)},
	}, nil).Wait()
	require.NoError(t, err)

	bobRank, err := board.Rank(ctx, "bob").Wait()
	require.NoError(t, err)
	assert.Equal(t, int64(1), bobRank.Rank)

	top, err := board.Top(ctx, 3).Wait()
	require.NoError(t, err)
	require.Len(t, top, 3)
	assert.Equal(t, "bob", top[0].ID)
	assert.Equal(t, "carol", top[1].ID)
	assert.Equal(t, "alice", top[2].ID)
}

func TestLeaderboard_AtRankZeroOrNegativeReturnsAbsentWithoutIO(t *testing.T) {
	ctx := context.Background()
	session := newTestSession(t)
	board := lb.New(session, "test:board", lb.TypeInt64, lb.DefaultLeaderboardOptions())

	found, err := board.At(ctx, 0).Wait()
	require.NoError(t, err)
	assert.False(t, found.Found)

	found, err = board.At(ctx, -5).Wait()
	require.NoError(t, err)
	assert.False(t, found.Found)
}

func TestLeaderboard_UpdateAggregatePolicyAddsToCurrentScore(t *testing.T) {
	ctx := context.Background()
	session := newTestSession(t)
	opts := lb.DefaultLeaderboardOptions().WithUpdatePolicy(lb.Aggregate)
	board := lb.New(session, "test:board", lb.TypeInt64, opts)

	_, err := board.UpdateOne(ctx, "alice", int64(10), nil).Wait()
	require.NoError(t, err)
	entry, err := board.UpdateOne(ctx, "alice", int64(5), nil).Wait()
	require.NoError(t, err)
	assert.Equal(t, int64(15), entry.Score)
}

func TestLeaderboard_UpdateBestPolicyKeepsHigherUnderHighToLow(t *testing.T) {
	ctx := context.Background()
	session := newTestSession(t)
	opts := lb.DefaultLeaderboardOptions().WithUpdatePolicy(lb.Best)
	board := lb.New(session, "test:board", lb.TypeInt64, opts)

	entry, err := board.UpdateOne(ctx, "alice", int64(100), nil).Wait()
	require.NoError(t, err)
	assert.Equal(t, int64(100), entry.Score)

	entry, err = board.UpdateOne(ctx, "alice", int64(50), nil).Wait()
	require.NoError(t, err)
	assert.Equal(t, int64(100), entry.Score, "a worse value must not overwrite the stored best")

	entry, err = board.UpdateOne(ctx, "alice", int64(150), nil).Wait()
	require.NoError(t, err)
	assert.Equal(t, int64(150), entry.Score, "a strictly better value must overwrite")
}

func TestLeaderboard_UpdateRespectsLimitTopN(t *testing.T) {
	ctx := context.Background()
	session := newTestSession(t)
	opts := lb.DefaultLeaderboardOptions().WithLimitTopN(2)
	board := lb.New(session, "test:board", lb.TypeInt64, opts)

	_, err := board.Update(ctx, []lb.EntryUpdate{
		{ID: "alice", Value: int64(10)},
		{ID: "bob", Value: int64(30)},
		{ID: "carol", Value: int64(20)},
	}, nil).Wait()
	require.NoError(t, err)

	count, err := board.Count(ctx).Wait()
	require.NoError(t, err)
	assert.LessOrEqual(t, count, int64(2))

	top, err := board.Top(ctx, 10).Wait()
	require.NoError(t, err)
	for _, e := range top {
		assert.NotEqual(t, "alice", e.ID, "the lowest-scoring member should have been trimmed")
	}
}

func TestLeaderboard_RemoveIsNoOpForAbsentMembers(t *testing.T) {
	ctx := context.Background()
	session := newTestSession(t)
	board := lb.New(session, "test:board", lb.TypeInt64, lb.DefaultLeaderboardOptions())

	_, err := board.Remove(ctx, "nobody").Wait()
	assert.NoError(t, err)
}

func TestLeaderboard_ClearDeletesEverything(t *testing.T) {
	ctx := context.Background()
	session := newTestSession(t)
	board := lb.New(session, "test:board", lb.TypeInt64, lb.DefaultLeaderboardOptions())

	_, err := board.UpdateOne(ctx, "alice", int64(1), nil).Wait()
	require.NoError(t, err)
	_, err = board.Clear(ctx).Wait()
	require.NoError(t, err)

	count, err := board.Count(ctx).Wait()
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestLeaderboard_ListByScoreReturnsRankedWindow(t *testing.T) {
	ctx := context.Background()
	session := newTestSession(t)
	board := lb.New(session, "test:board", lb.TypeInt64, lb.DefaultLeaderboardOptions())

	_, err := board.Update(ctx, []lb.EntryUpdate{
		{ID: "a", Value: int64(10)},
		{ID: "b", Value: int64(20)},
		{ID: "c", Value: int64(30)},
		{ID: "d", Value: int64(40)},
	}, nil).Wait()
	require.NoError(t, err)

	entries, err := board.ListByScore(ctx, 20, 30).Wait()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	// Overall ranking by descending score is d(40)=1, c(30)=2, b(20)=3, a(10)=4.
	assert.Equal(t, "c", entries[0].ID)
	assert.Equal(t, "b", entries[1].ID)
	assert.Equal(t, int64(2), entries[0].Rank)
	assert.Equal(t, int64(3), entries[1].Rank)
}

func TestLeaderboard_AroundWindowIsSymmetricWhenClippedAtBorder(t *testing.T) {
	ctx := context.Background()
	session := newTestSession(t)
	board := lb.New(session, "test:board", lb.TypeInt64, lb.DefaultLeaderboardOptions())

	updates := make([]lb.EntryUpdate, 5)
	for i := 0; i < 5; i++ {
		updates[i] = lb.EntryUpdate{ID: string(rune('a' + i)), Value: int64((i + 1) * 10)}
	}
	_, err := board.Update(ctx, updates, nil).Wait()
	require.NoError(t, err)

	// "e" (score 50) is the top-ranked (rank 1, 0-based rank 0). With
	// distance=2 and fillBorders=false the window should extend on the low
	// side to preserve length 2*distance+1 = 5, i.e. ranks [0,4] -> all 5.
	entries, err := board.Around(ctx, "e", 2, false).Wait()
	require.NoError(t, err)
	assert.Len(t, entries, 5)
}

func TestLeaderboard_AroundAbsentMemberReturnsEmpty(t *testing.T) {
	ctx := context.Background()
	session := newTestSession(t)
	board := lb.New(session, "test:board", lb.TypeInt64, lb.DefaultLeaderboardOptions())

	entries, err := board.Around(ctx, "ghost", 2, true).Wait()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLeaderboard_BottomReturnsWorstFirst(t *testing.T) {
	ctx := context.Background()
	session := newTestSession(t)
	board := lb.New(session, "test:board", lb.TypeInt64, lb.DefaultLeaderboardOptions())

	_, err := board.Update(ctx, []lb.EntryUpdate{
		{ID: "a", Value: int64(10)},
		{ID: "b", Value: int64(20)},
		{ID: "c", Value: int64(30)},
	}, nil).Wait()
	require.NoError(t, err)

	bottom, err := board.Bottom(ctx, 2).Wait()
	require.NoError(t, err)
	require.Len(t, bottom, 2)
	assert.Equal(t, "a", bottom[0].ID)
	assert.Equal(t, "b", bottom[1].ID)
	assert.Equal(t, int64(3), bottom[0].Rank)
	assert.Equal(t, int64(2), bottom[1].Rank)
}

func TestLeaderboard_ExportStreamTerminatesOnShortBatch(t *testing.T) {
	ctx := context.Background()
	session := newTestSession(t)
	board := lb.New(session, "test:board", lb.TypeInt64, lb.DefaultLeaderboardOptions())

	updates := make([]lb.EntryUpdate, 5)
	for i := 0; i < 5; i++ {
		updates[i] = lb.EntryUpdate{ID: string(rune('a' + i)), Value: int64(i)}
	}
	_, err := board.Update(ctx, updates, nil).Wait()
	require.NoError(t, err)

	stream := board.ExportStream(ctx, 2)
	var total int
	for {
		batch, ok, err := stream.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		total += len(batch)
	}
	assert.Equal(t, 5, total)
}

func TestLeaderboard_CompactTrimsToN(t *testing.T) {
	ctx := context.Background()
	session := newTestSession(t)
	board := lb.New(session, "test:board", lb.TypeInt64, lb.DefaultLeaderboardOptions())

	_, err := board.Update(ctx, []lb.EntryUpdate{
		{ID: "a", Value: int64(10)},
		{ID: "b", Value: int64(20)},
		{ID: "c", Value: int64(30)},
	}, nil).Wait()
	require.NoError(t, err)

	_, err = board.Compact(ctx, 1).Wait()
	require.NoError(t, err)

	count, err := board.Count(ctx).Wait()
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestLeaderboard_EmptyIDFailsWithoutIO(t *testing.T) {
	ctx := context.Background()
	session := newTestSession(t)
	board := lb.New(session, "test:board", lb.TypeInt64, lb.DefaultLeaderboardOptions())

	_, err := board.UpdateOne(ctx, "", int64(1), nil).Wait()
	assert.ErrorIs(t, err, lb.ErrEmptyID)
}
