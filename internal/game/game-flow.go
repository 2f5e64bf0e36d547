package game

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/scythe504/hotseat-backend/internal"
	"github.com/scythe504/hotseat-backend/internal/store"
)

// =============================================================================
// GAME FLOW: ROUNDS, DEDUCTIONS & FINISH
// =============================================================================

// StartRound opens a 30 second voting window for participantName. The name
// is free text and need not be on the roster.
func (m *Manager) StartRound(ctx context.Context, code, participantName string) (internal.Round, error) {
	participantName = internal.NormalizeName(participantName)
	if participantName == "" {
		return internal.Round{}, fmt.Errorf("%w: participant name is required", internal.ErrInvalidCommand)
	}

	s, err := m.lookup(ctx, code)
	if err != nil {
		return internal.Round{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return internal.Round{}, ErrClosed
	}

	if s.info.Status != internal.StatusActive {
		return internal.Round{}, fmt.Errorf("%w: cannot start a round while the session is %s", internal.ErrInvalidTransition, s.info.Status)
	}
	if s.runningRound() != nil {
		return internal.Round{}, internal.ErrRoundAlreadyRunning
	}

	now := m.clock.Now()
	round := internal.Round{
		ID:              uuid.New(),
		SessionID:       s.info.ID,
		ParticipantName: participantName,
		StartsAt:        now,
		EndsAt:          now.Add(internal.RoundDuration),
		Status:          internal.RoundRunning,
		Deduction:       0,
	}
	if err := m.store.CreateRound(ctx, round); err != nil {
		m.metrics.PersistenceErrors.WithLabelValues("create_round").Inc()
		return internal.Round{}, fmt.Errorf("start round in %s: %w", code, err)
	}

	s.rounds = append(s.rounds, round)
	m.indexRound(round.ID, code)
	queue, queueChanged := removeFromQueue(s.queue, participantName)
	s.queue = queue
	m.metrics.RoundsStarted.Inc()

	log.Info().
		Str("session_code", code).
		Str("round_id", round.ID.String()).
		Str("participant_name", participantName).
		Time("ends_at", round.EndsAt).
		Msg("[StartRound] round started")

	s.broadcast(internal.EvtRoundStarted, internal.RoundStartedData{
		RoundID:         round.ID,
		ParticipantName: participantName,
		EndsAt:          round.EndsAt,
	})
	if queueChanged {
		s.broadcastState()
	}
	s.armTimer(round.ID)
	return round, nil
}

// ApplyDeduction sets a round's deduction, clamped to [0,10], and broadcasts
// the recomputed aggregate. It is accepted whatever the round's status.
func (m *Manager) ApplyDeduction(ctx context.Context, roundID uuid.UUID, deduction float64) (internal.RoundResult, error) {
	s, err := m.sessionForRound(ctx, roundID)
	if err != nil {
		return internal.RoundResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return internal.RoundResult{}, ErrClosed
	}

	round := s.round(roundID)
	if round == nil {
		return internal.RoundResult{}, internal.ErrRoundNotFound
	}

	clamped := internal.ClampDeduction(deduction)
	if err := m.store.UpdateRoundDeduction(ctx, roundID, clamped); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return internal.RoundResult{}, internal.ErrRoundNotFound
		}
		m.metrics.PersistenceErrors.WithLabelValues("update_round_deduction").Inc()
		return internal.RoundResult{}, fmt.Errorf("apply deduction to %s: %w", roundID, err)
	}
	round.Deduction = clamped
	m.metrics.Deductions.Inc()

	result := s.result(*round)
	log.Info().
		Str("session_code", s.info.Code).
		Str("round_id", roundID.String()).
		Float64("requested", deduction).
		Float64("deduction", clamped).
		Msg("[ApplyDeduction] deduction applied")
	s.broadcast(internal.EvtRoundEnded, result.Wire())
	return result, nil
}

// FinishSession computes the final scoreboard of an ACTIVE session and marks
// it FINISHED. It is rejected while a round is still running.
func (m *Manager) FinishSession(ctx context.Context, code string) (internal.FinalResults, error) {
	s, err := m.lookup(ctx, code)
	if err != nil {
		return internal.FinalResults{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return internal.FinalResults{}, ErrClosed
	}

	if !s.info.Status.CanAdvanceTo(internal.StatusFinished) {
		return internal.FinalResults{}, fmt.Errorf("%w: cannot finish a session that is %s", internal.ErrInvalidTransition, s.info.Status)
	}
	if s.runningRound() != nil {
		return internal.FinalResults{}, fmt.Errorf("%w: a round is still running", internal.ErrInvalidTransition)
	}

	rows := wireRows(ComputeScoreboard(s.participants, s.rounds, s.ledger))

	if err := m.store.UpdateSessionStatus(ctx, s.info.ID, internal.StatusFinished); err != nil {
		m.metrics.PersistenceErrors.WithLabelValues("update_session_status").Inc()
		return internal.FinalResults{}, fmt.Errorf("finish session %s: %w", code, err)
	}
	s.info.Status = internal.StatusFinished
	s.queue = s.queue[:0]
	m.metrics.SessionTransitions.WithLabelValues(string(internal.StatusFinished)).Inc()

	log.Info().Str("session_code", code).Int("rows", len(rows)).Msg("[FinishSession] session finished")
	s.broadcast(internal.EvtScoreboardFinal, internal.ScoreboardData{Rows: rows})

	return internal.FinalResults{
		Rows:        rows,
		RedirectURL: m.resultsPath + code,
	}, nil
}

// =============================================================================
// READ MODELS
// =============================================================================

// Snapshot returns the session summary with its roster in join order and its
// rounds in start order.
func (m *Manager) Snapshot(ctx context.Context, code string) (internal.SessionSnapshot, error) {
	s, err := m.lookup(ctx, code)
	if err != nil {
		return internal.SessionSnapshot{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot(), nil
}

// Scoreboard computes the board from the rounds ended so far, for a session
// in any status.
func (m *Manager) Scoreboard(ctx context.Context, code string) ([]internal.ScoreboardRow, error) {
	s, err := m.lookup(ctx, code)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return wireRows(ComputeScoreboard(s.participants, s.rounds, s.ledger)), nil
}
