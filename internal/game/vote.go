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
// VOTE HANDLING
// =============================================================================

// SubmitVote records caller's score for roundID. A participant who already
// voted gets the original score back with duplicate set and nothing is
// written. Votes are only admitted while the round is running; the round
// timer closes it under the same lock, so a vote is either counted in the
// round:ended aggregate or rejected.
func (m *Manager) SubmitVote(ctx context.Context, caller internal.Caller, roundID uuid.UUID, score int) (recorded int, duplicate bool, err error) {
	if !caller.Authenticated() {
		m.metrics.Votes.WithLabelValues("rejected").Inc()
		return 0, false, internal.ErrUnauthenticated
	}
	if !internal.ValidScore(score) {
		m.metrics.Votes.WithLabelValues("rejected").Inc()
		return 0, false, internal.ErrInvalidScore
	}

	s, err := m.sessionForRound(ctx, roundID)
	if err != nil {
		return 0, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, false, ErrClosed
	}

	round := s.round(roundID)
	if round == nil || s.info.Code != caller.SessionCode {
		return 0, false, internal.ErrRoundNotFound
	}

	if existing, ok := s.ledger.Lookup(roundID, caller.ParticipantID); ok {
		m.metrics.Votes.WithLabelValues("duplicate").Inc()
		log.Debug().
			Str("round_id", roundID.String()).
			Str("participant_id", caller.ParticipantID.String()).
			Msg("[SubmitVote] vote already recorded")
		return existing, true, nil
	}

	if !round.IsRunning() {
		m.metrics.Votes.WithLabelValues("rejected").Inc()
		return 0, false, internal.ErrRoundClosed
	}

	stored, created, err := m.store.CreateVote(ctx, internal.Vote{
		ID:            uuid.New(),
		RoundID:       roundID,
		ParticipantID: caller.ParticipantID,
		Score:         score,
		CreatedAt:     m.clock.Now(),
	})
	if errors.Is(err, store.ErrNotFound) {
		return 0, false, internal.ErrRoundNotFound
	}
	if err != nil {
		m.metrics.PersistenceErrors.WithLabelValues("create_vote").Inc()
		return 0, false, fmt.Errorf("submit vote for %s: %w", roundID, err)
	}

	s.ledger.Record(roundID, caller.ParticipantID, stored.Score)
	if !created {
		m.metrics.Votes.WithLabelValues("duplicate").Inc()
		return stored.Score, true, nil
	}

	m.metrics.Votes.WithLabelValues("accepted").Inc()
	log.Debug().
		Str("session_code", s.info.Code).
		Str("round_id", roundID.String()).
		Str("participant_id", caller.ParticipantID.String()).
		Int("score", score).
		Int("votes", s.ledger.Count(roundID)).
		Msg("[SubmitVote] vote recorded")
	return stored.Score, false, nil
}
