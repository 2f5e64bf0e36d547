package game

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/scythe504/hotseat-backend/internal"
	"github.com/scythe504/hotseat-backend/internal/metrics"
	"github.com/scythe504/hotseat-backend/internal/store"
)

var epoch = time.Date(2024, 3, 1, 18, 0, 0, 0, time.UTC)

type recorded struct {
	code string
	msg  internal.Message[any]
}

// recorder is a Broadcaster that keeps every event in emission order.
type recorder struct {
	mu   sync.Mutex
	msgs []recorded
}

func (r *recorder) Broadcast(code string, msg internal.Message[any]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, recorded{code: code, msg: msg})
}

func (r *recorder) ofType(kind string) []internal.Message[any] {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []internal.Message[any]
	for _, m := range r.msgs {
		if m.msg.Type == kind {
			out = append(out, m.msg)
		}
	}
	return out
}

func (r *recorder) count(kind string) int {
	return len(r.ofType(kind))
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.msgs))
	for _, m := range r.msgs {
		out = append(out, m.msg.Type)
	}
	return out
}

func (r *recorder) lastEnded(t *testing.T) internal.RoundEndedData {
	t.Helper()
	ended := r.ofType(internal.EvtRoundEnded)
	require.NotEmpty(t, ended)
	data, ok := ended[len(ended)-1].Data.(internal.RoundEndedData)
	require.True(t, ok)
	return data
}

func (r *recorder) lastState(t *testing.T) internal.SessionStateData {
	t.Helper()
	states := r.ofType(internal.EvtSessionState)
	require.NotEmpty(t, states)
	data, ok := states[len(states)-1].Data.(internal.SessionStateData)
	require.True(t, ok)
	return data
}

// flakyStore fails selected operations on demand.
type flakyStore struct {
	*store.MemoryStore

	mu   sync.Mutex
	fail map[string]error
}

func newFlakyStore() *flakyStore {
	return &flakyStore{MemoryStore: store.NewMemoryStore(), fail: make(map[string]error)}
}

func (f *flakyStore) failOn(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.fail, op)
		return
	}
	f.fail[op] = err
}

func (f *flakyStore) err(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fail[op]
}

func (f *flakyStore) UpdateSessionStatus(ctx context.Context, id uuid.UUID, status internal.SessionStatus) error {
	if err := f.err("UpdateSessionStatus"); err != nil {
		return err
	}
	return f.MemoryStore.UpdateSessionStatus(ctx, id, status)
}

func (f *flakyStore) CreateRound(ctx context.Context, r internal.Round) error {
	if err := f.err("CreateRound"); err != nil {
		return err
	}
	return f.MemoryStore.CreateRound(ctx, r)
}

func (f *flakyStore) EndRound(ctx context.Context, id uuid.UUID) error {
	if err := f.err("EndRound"); err != nil {
		return err
	}
	return f.MemoryStore.EndRound(ctx, id)
}

func (f *flakyStore) CreateVote(ctx context.Context, v internal.Vote) (internal.Vote, bool, error) {
	if err := f.err("CreateVote"); err != nil {
		return internal.Vote{}, false, err
	}
	return f.MemoryStore.CreateVote(ctx, v)
}

type fixture struct {
	m       *Manager
	clock   *clockwork.FakeClock
	store   *flakyStore
	rec     *recorder
	metrics *metrics.EngineMetrics
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		clock:   clockwork.NewFakeClockAt(epoch),
		store:   newFlakyStore(),
		rec:     &recorder{},
		metrics: metrics.NewEngineMetrics(prometheus.NewRegistry()),
	}
	opts = append([]Option{WithClock(f.clock), WithMetrics(f.metrics)}, opts...)
	f.m = NewManager(f.store, f.rec, opts...)
	t.Cleanup(f.m.Close)
	return f
}

func (f *fixture) createSession(t *testing.T) string {
	t.Helper()
	s, err := f.m.CreateSession(context.Background(), "Demo")
	require.NoError(t, err)
	return s.Code
}

func (f *fixture) join(t *testing.T, code, name string) internal.Caller {
	t.Helper()
	p, _, err := f.m.Join(context.Background(), code, name)
	require.NoError(t, err)
	return internal.Caller{SessionCode: code, ParticipantID: p.ID, Name: p.Name}
}

// activeSession creates a session, joins names and starts it.
func (f *fixture) activeSession(t *testing.T, names ...string) (string, map[string]internal.Caller) {
	t.Helper()
	code := f.createSession(t)
	callers := make(map[string]internal.Caller, len(names))
	for _, name := range names {
		callers[name] = f.join(t, code, name)
	}
	require.NoError(t, f.m.StartSession(context.Background(), code))
	return code, callers
}

func (f *fixture) startRound(t *testing.T, code, name string) internal.Round {
	t.Helper()
	round, err := f.m.StartRound(context.Background(), code, name)
	require.NoError(t, err)
	return round
}

func (f *fixture) vote(t *testing.T, caller internal.Caller, roundID uuid.UUID, score int) {
	t.Helper()
	got, dup, err := f.m.SubmitVote(context.Background(), caller, roundID, score)
	require.NoError(t, err)
	require.False(t, dup)
	require.Equal(t, score, got)
}

// step advances the fake clock by one tick interval and waits until the
// resulting round:tick has been broadcast. It returns that tick's payload.
func (f *fixture) step(t *testing.T) internal.RoundTickData {
	t.Helper()
	before := f.rec.count(internal.EvtRoundTick)
	f.clock.Advance(internal.TickInterval)
	require.Eventually(t, func() bool {
		return f.rec.count(internal.EvtRoundTick) > before
	}, 2*time.Second, time.Millisecond, "no tick after advancing the clock")

	ticks := f.rec.ofType(internal.EvtRoundTick)
	data, ok := ticks[len(ticks)-1].Data.(internal.RoundTickData)
	require.True(t, ok)
	return data
}

// expire steps the clock until the running round reports zero time left and
// its round:ended has been broadcast.
func (f *fixture) expire(t *testing.T) internal.RoundEndedData {
	t.Helper()
	endedBefore := f.rec.count(internal.EvtRoundEnded)
	for i := 0; i <= int(internal.RoundDuration/internal.TickInterval); i++ {
		if f.step(t).MsRemaining == 0 {
			require.Eventually(t, func() bool {
				return f.rec.count(internal.EvtRoundEnded) > endedBefore
			}, 2*time.Second, time.Millisecond, "round did not end at zero")
			return f.rec.lastEnded(t)
		}
	}
	t.Fatal("round never reached zero")
	return internal.RoundEndedData{}
}
