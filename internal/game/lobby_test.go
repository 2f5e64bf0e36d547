package game

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scythe504/hotseat-backend/internal"
)

func TestCreateSession(t *testing.T) {
	f := newFixture(t, WithCodeGenerator(func() string { return "DEMO01" }))

	s, err := f.m.CreateSession(context.Background(), "  Demo night ")
	require.NoError(t, err)
	assert.Equal(t, "DEMO01", s.Code)
	assert.Equal(t, "Demo night", s.Title)
	assert.Equal(t, internal.StatusLobby, s.Status)
	assert.Equal(t, epoch, s.CreatedAt)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.SessionsCreated))

	stored, err := f.store.SessionByCode(context.Background(), "DEMO01")
	require.NoError(t, err)
	assert.Equal(t, s.ID, stored.ID)
}

func TestCreateSession_RequiresTitle(t *testing.T) {
	f := newFixture(t)

	_, err := f.m.CreateSession(context.Background(), "   ")
	assert.ErrorIs(t, err, internal.ErrInvalidCommand)
}

func TestCreateSession_RetriesCodeCollision(t *testing.T) {
	codes := []string{"AAAAAA", "AAAAAA", "BBBBBB"}
	next := 0
	f := newFixture(t, WithCodeGenerator(func() string {
		code := codes[next]
		next++
		return code
	}))

	first, err := f.m.CreateSession(context.Background(), "One")
	require.NoError(t, err)
	second, err := f.m.CreateSession(context.Background(), "Two")
	require.NoError(t, err)

	assert.Equal(t, "AAAAAA", first.Code)
	assert.Equal(t, "BBBBBB", second.Code)
}

func TestCreateSession_GivesUpAfterRepeatedCollisions(t *testing.T) {
	f := newFixture(t, WithCodeGenerator(func() string { return "SAME00" }))

	_, err := f.m.CreateSession(context.Background(), "One")
	require.NoError(t, err)
	_, err = f.m.CreateSession(context.Background(), "Two")
	require.Error(t, err)
	assert.False(t, internal.IsCommandError(err))
}

func TestJoin_IsIdempotentPerName(t *testing.T) {
	f := newFixture(t)
	code := f.createSession(t)

	alice, state, err := f.m.Join(context.Background(), code, "Alice")
	require.NoError(t, err)
	assert.Equal(t, 1, state.AttendeesCount)

	again, state, err := f.m.Join(context.Background(), code, " Alice ")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, again.ID)
	assert.Equal(t, 1, state.AttendeesCount)

	_, state, err = f.m.Join(context.Background(), code, "Bob")
	require.NoError(t, err)
	assert.Equal(t, 2, state.AttendeesCount)
	require.Len(t, state.Participants, 2)
	assert.Equal(t, "Alice", state.Participants[0].Name)
	assert.Equal(t, "Bob", state.Participants[1].Name)

	// every join, including the rejoin, refreshes the whole channel
	assert.Equal(t, 3, f.rec.count(internal.EvtSessionState))
	assert.Equal(t, internal.StatusLobby, f.rec.lastState(t).Status)
}

func TestJoin_NamesAreCaseSensitive(t *testing.T) {
	f := newFixture(t)
	code := f.createSession(t)

	a := f.join(t, code, "alice")
	b := f.join(t, code, "Alice")
	assert.NotEqual(t, a.ParticipantID, b.ParticipantID)
}

func TestJoin_Errors(t *testing.T) {
	f := newFixture(t)
	code := f.createSession(t)

	_, _, err := f.m.Join(context.Background(), "NOPE00", "Alice")
	assert.ErrorIs(t, err, internal.ErrSessionNotFound)

	_, _, err = f.m.Join(context.Background(), code, "   ")
	assert.ErrorIs(t, err, internal.ErrInvalidCommand)
	assert.Equal(t, 0, f.rec.count(internal.EvtSessionState))
}

func TestWatch(t *testing.T) {
	f := newFixture(t)
	code := f.createSession(t)
	f.join(t, code, "Alice")

	state, err := f.m.Watch(context.Background(), code)
	require.NoError(t, err)
	assert.Equal(t, 1, state.AttendeesCount)
	assert.Equal(t, internal.StatusLobby, state.Status)
	assert.NotNil(t, state.Queue)

	_, err = f.m.Watch(context.Background(), "NOPE00")
	assert.ErrorIs(t, err, internal.ErrSessionNotFound)
}

func TestStartSession_RequiresAttendees(t *testing.T) {
	f := newFixture(t)
	code := f.createSession(t)

	err := f.m.StartSession(context.Background(), code)
	require.ErrorIs(t, err, internal.ErrInvalidTransition)
	assert.Contains(t, err.Error(), "no attendees")

	f.join(t, code, "Alice")
	require.NoError(t, f.m.StartSession(context.Background(), code))
	assert.Equal(t, internal.StatusActive, f.rec.lastState(t).Status)

	err = f.m.StartSession(context.Background(), code)
	assert.ErrorIs(t, err, internal.ErrInvalidTransition)
}

func TestStartSession_UnknownCode(t *testing.T) {
	f := newFixture(t)
	assert.ErrorIs(t, f.m.StartSession(context.Background(), "NOPE00"), internal.ErrSessionNotFound)
}

func TestStartSession_PersistenceFailureLeavesLobby(t *testing.T) {
	f := newFixture(t)
	code := f.createSession(t)
	f.join(t, code, "Alice")
	statesBefore := f.rec.count(internal.EvtSessionState)

	f.store.failOn("UpdateSessionStatus", errors.New("connection reset"))
	err := f.m.StartSession(context.Background(), code)
	require.Error(t, err)
	assert.False(t, internal.IsCommandError(err))

	snap, err := f.m.Snapshot(context.Background(), code)
	require.NoError(t, err)
	assert.Equal(t, internal.StatusLobby, snap.Status)
	assert.Equal(t, statesBefore, f.rec.count(internal.EvtSessionState))

	f.store.failOn("UpdateSessionStatus", nil)
	require.NoError(t, f.m.StartSession(context.Background(), code))
}

func TestQueue(t *testing.T) {
	f := newFixture(t)
	code := f.createSession(t)
	ctx := context.Background()

	require.NoError(t, f.m.QueueAdd(ctx, code, "Alice"))
	require.NoError(t, f.m.QueueAdd(ctx, code, "Bob"))
	require.NoError(t, f.m.QueueAdd(ctx, code, "Alice"))
	assert.Equal(t, []string{"Alice", "Bob"}, f.rec.lastState(t).Queue)
	assert.Equal(t, 2, f.rec.count(internal.EvtSessionState))

	require.NoError(t, f.m.QueueRemove(ctx, code, "Alice"))
	assert.Equal(t, []string{"Bob"}, f.rec.lastState(t).Queue)

	require.NoError(t, f.m.QueueRemove(ctx, code, "Nobody"))
	assert.Equal(t, 3, f.rec.count(internal.EvtSessionState))

	assert.ErrorIs(t, f.m.QueueAdd(ctx, code, " "), internal.ErrInvalidCommand)
	assert.ErrorIs(t, f.m.QueueAdd(ctx, "NOPE00", "Carl"), internal.ErrSessionNotFound)
}

func TestQueue_StartRoundTakesNameOffQueue(t *testing.T) {
	f := newFixture(t)
	code, _ := f.activeSession(t, "Alice", "Bob")
	ctx := context.Background()
	require.NoError(t, f.m.QueueAdd(ctx, code, "Alice"))
	require.NoError(t, f.m.QueueAdd(ctx, code, "Bob"))

	f.startRound(t, code, "Alice")

	types := f.rec.types()
	require.GreaterOrEqual(t, len(types), 2)
	assert.Equal(t, internal.EvtRoundStarted, types[len(types)-2])
	assert.Equal(t, internal.EvtSessionState, types[len(types)-1])
	assert.Equal(t, []string{"Bob"}, f.rec.lastState(t).Queue)
}
