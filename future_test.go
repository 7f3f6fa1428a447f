package leaderboard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFuture_WaitReturnsResolvedValue(t *testing.T) {
	f := newFuture(func() (int, error) { return 7, nil })
	v, err := f.Wait()
	assert.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestFuture_WaitPropagatesError(t *testing.T) {
	sentinel := errors.New("boom")
	f := newFuture(func() (int, error) { return 0, sentinel })
	_, err := f.Wait()
	assert.ErrorIs(t, err, sentinel)
}

func TestResolvedFuture_IsImmediatelyDone(t *testing.T) {
	f := resolvedFuture(42, nil)
	select {
	case <-f.Done():
	default:
		t.Fatal("resolvedFuture should be immediately done")
	}
	v, err := f.Wait()
	assert.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestFuture_GetReturnsContextErrorOnCancellation(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	f := newFuture(func() (int, error) {
		<-block
		return 1, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.Get(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFuture_GetReturnsValueWhenResolvedBeforeCancellation(t *testing.T) {
	f := newFuture(func() (int, error) {
		time.Sleep(time.Millisecond)
		return 9, nil
	})
	v, err := f.Get(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 9, v)
}
