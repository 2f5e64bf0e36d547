package game

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/scythe504/hotseat-backend/internal"
)

// persistTimeout bounds store writes issued from the round timer, which has
// no caller context.
const persistTimeout = 5 * time.Second

// session is the engine of one session. Every field below mu is guarded by it;
// store writes, state changes and broadcasts for a session all happen while
// holding mu, so events leave in the order they were produced.
type session struct {
	m  *Manager
	wg sync.WaitGroup

	mu           sync.Mutex
	info         internal.Session
	participants []internal.Participant
	rounds       []internal.Round
	ledger       *Ledger
	queue        []string
	timer        *roundTimer
	closed       bool
}

func newSession(m *Manager, info internal.Session) *session {
	return &session{
		m:            m,
		info:         info,
		participants: make([]internal.Participant, 0),
		rounds:       make([]internal.Round, 0),
		ledger:       NewLedger(),
		queue:        make([]string, 0),
	}
}

func (s *session) broadcast(kind string, data any) {
	s.m.broadcaster.Broadcast(s.info.Code, internal.NewMessage(kind, data))
}

func (s *session) stateData() internal.SessionStateData {
	return internal.SessionStateData{
		Status:         s.info.Status,
		AttendeesCount: len(s.participants),
		Participants:   internal.ParticipantViews(s.participants),
		Queue:          append([]string{}, s.queue...),
	}
}

func (s *session) broadcastState() {
	s.broadcast(internal.EvtSessionState, s.stateData())
}

func (s *session) participantByName(name string) (internal.Participant, bool) {
	for _, p := range s.participants {
		if p.Name == name {
			return p, true
		}
	}
	return internal.Participant{}, false
}

func (s *session) round(id uuid.UUID) *internal.Round {
	for i := range s.rounds {
		if s.rounds[i].ID == id {
			return &s.rounds[i]
		}
	}
	return nil
}

// runningRound returns the open round, if any.
func (s *session) runningRound() *internal.Round {
	for i := len(s.rounds) - 1; i >= 0; i-- {
		if s.rounds[i].IsRunning() {
			return &s.rounds[i]
		}
	}
	return nil
}

func (s *session) result(round internal.Round) internal.RoundResult {
	return ComputeRoundResult(round, s.ledger.Scores(round.ID))
}

func (s *session) armTimer(roundID uuid.UUID) {
	s.timer = startRoundTimer(s.m.clock, &s.wg, roundID, s.tick)
	s.m.metrics.RunningRounds.Inc()
}

func (s *session) stopTimer() {
	if s.timer == nil {
		return
	}
	s.timer.stop()
	s.timer = nil
	s.m.metrics.RunningRounds.Dec()
}

// resume re-arms the timer of a round that was RUNNING when the session was
// loaded. An overdue round closes on its first tick.
func (s *session) resume() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.timer != nil {
		return
	}
	if round := s.runningRound(); round != nil {
		log.Info().
			Str("session_code", s.info.Code).
			Str("round_id", round.ID.String()).
			Dur("remaining", round.Remaining(s.m.clock.Now())).
			Msg("[resume] re-arming round timer")
		s.armTimer(round.ID)
	}
}

// tick runs on the timer goroutine once per second while a round is open.
func (s *session) tick(roundID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	round := s.round(roundID)
	if round == nil || !round.IsRunning() {
		return
	}

	remaining := round.Remaining(s.m.clock.Now())
	s.broadcast(internal.EvtRoundTick, internal.RoundTickData{MsRemaining: remaining.Milliseconds()})
	if remaining > 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if err := s.m.store.EndRound(ctx, roundID); err != nil {
		s.m.metrics.PersistenceErrors.WithLabelValues("end_round").Inc()
		log.Error().Err(err).
			Str("session_code", s.info.Code).
			Str("round_id", roundID.String()).
			Msg("[tick] failed to end round, retrying on next tick")
		return
	}

	round.Status = internal.RoundEnded
	s.stopTimer()
	result := s.result(*round)
	s.m.metrics.RoundsEnded.Inc()

	log.Info().
		Str("session_code", s.info.Code).
		Str("round_id", roundID.String()).
		Int("votes", result.VotesCount).
		Float64("average", result.Average).
		Msg("[tick] round ended")
	s.broadcast(internal.EvtRoundEnded, result.Wire())
}

// teardown stops the round timer and waits for its goroutine to exit.
func (s *session) teardown() {
	s.mu.Lock()
	s.closed = true
	s.stopTimer()
	s.mu.Unlock()

	s.wg.Wait()
}

func (s *session) snapshot() internal.SessionSnapshot {
	return internal.SessionSnapshot{
		ID:             s.info.ID,
		Code:           s.info.Code,
		Title:          s.info.Title,
		Status:         s.info.Status,
		AttendeesCount: len(s.participants),
		Participants:   slices.Clone(s.participants),
		Rounds:         slices.Clone(s.rounds),
		Queue:          append([]string{}, s.queue...),
	}
}
