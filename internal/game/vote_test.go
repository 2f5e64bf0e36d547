package game

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scythe504/hotseat-backend/internal"
)

func TestSubmitVote_DuplicateKeepsFirstScore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	code, callers := f.activeSession(t, "Alice", "Carl")
	round := f.startRound(t, code, "Alice")

	f.vote(t, callers["Carl"], round.ID, 8)

	score, dup, err := f.m.SubmitVote(ctx, callers["Carl"], round.ID, 2)
	require.NoError(t, err)
	assert.True(t, dup)
	assert.Equal(t, 8, score)

	votes, err := f.store.Votes(ctx, round.ID)
	require.NoError(t, err)
	assert.Len(t, votes, 1)

	ended := f.expire(t)
	assert.Equal(t, 1, ended.VotesCount)
	assert.Equal(t, 8.0, ended.Average)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Votes.WithLabelValues("duplicate")))
}

func TestSubmitVote_DoesNotBroadcast(t *testing.T) {
	f := newFixture(t)
	code, callers := f.activeSession(t, "Alice", "Carl")
	round := f.startRound(t, code, "Alice")
	before := len(f.rec.types())

	f.vote(t, callers["Carl"], round.ID, 5)
	assert.Len(t, f.rec.types(), before)
}

func TestSubmitVote_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	code, callers := f.activeSession(t, "Alice", "Carl")
	round := f.startRound(t, code, "Alice")

	otherCode, others := f.activeSession(t, "Eve")
	require.NotEqual(t, code, otherCode)

	tests := []struct {
		name    string
		caller  internal.Caller
		roundID uuid.UUID
		score   int
		want    error
	}{
		{"no bound participant", internal.Caller{}, round.ID, 5, internal.ErrUnauthenticated},
		{"score below range", callers["Carl"], round.ID, 0, internal.ErrInvalidScore},
		{"score above range", callers["Carl"], round.ID, 11, internal.ErrInvalidScore},
		{"unknown round", callers["Carl"], uuid.New(), 5, internal.ErrRoundNotFound},
		{"round of another session", others["Eve"], round.ID, 5, internal.ErrRoundNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := f.m.SubmitVote(ctx, tt.caller, tt.roundID, tt.score)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	votes, err := f.store.Votes(ctx, round.ID)
	require.NoError(t, err)
	assert.Empty(t, votes)
}

func TestSubmitVote_AfterRoundEnded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	code, callers := f.activeSession(t, "Alice", "Carl", "Dana")
	round := f.startRound(t, code, "Alice")
	f.vote(t, callers["Carl"], round.ID, 6)
	f.expire(t)

	_, _, err := f.m.SubmitVote(ctx, callers["Dana"], round.ID, 9)
	assert.ErrorIs(t, err, internal.ErrRoundClosed)

	// a retransmit of an accepted vote still gets its score back
	score, dup, err := f.m.SubmitVote(ctx, callers["Carl"], round.ID, 6)
	require.NoError(t, err)
	assert.True(t, dup)
	assert.Equal(t, 6, score)

	result, err := f.m.ApplyDeduction(ctx, round.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, result.VotesCount)
}

func TestSubmitVote_PersistenceFailureRecordsNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	code, callers := f.activeSession(t, "Alice", "Carl")
	round := f.startRound(t, code, "Alice")

	f.store.failOn("CreateVote", errors.New("connection reset"))
	_, _, err := f.m.SubmitVote(ctx, callers["Carl"], round.ID, 7)
	require.Error(t, err)
	assert.False(t, internal.IsCommandError(err))

	f.store.failOn("CreateVote", nil)
	f.vote(t, callers["Carl"], round.ID, 7)
}

func TestSubmitVote_ConcurrentDuplicatesCountOnce(t *testing.T) {
	f := newFixture(t)
	code, callers := f.activeSession(t, "Alice", "Carl")
	round := f.startRound(t, code, "Alice")

	const attempts = 10
	var wg sync.WaitGroup
	var mu sync.Mutex
	fresh := 0
	for i := range attempts {
		wg.Add(1)
		go func(score int) {
			defer wg.Done()
			_, dup, err := f.m.SubmitVote(context.Background(), callers["Carl"], round.ID, score)
			assert.NoError(t, err)
			if !dup {
				mu.Lock()
				fresh++
				mu.Unlock()
			}
		}(i%10 + 1)
	}
	wg.Wait()

	assert.Equal(t, 1, fresh)
	assert.Equal(t, 1, f.expire(t).VotesCount)
}
