package game

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/scythe504/hotseat-backend/internal"
	"github.com/scythe504/hotseat-backend/internal/store"
)

// =============================================================================
// LOBBY: ROSTER, WATCHERS & QUEUE
// =============================================================================

// Join attaches name to the session roster. A name that already joined gets
// its existing participant back. The refreshed roster is broadcast to the
// whole session either way.
func (m *Manager) Join(ctx context.Context, code, name string) (internal.Participant, internal.SessionStateData, error) {
	name = internal.NormalizeName(name)
	if name == "" {
		return internal.Participant{}, internal.SessionStateData{}, fmt.Errorf("%w: participant name is required", internal.ErrInvalidCommand)
	}

	s, err := m.lookup(ctx, code)
	if err != nil {
		return internal.Participant{}, internal.SessionStateData{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return internal.Participant{}, internal.SessionStateData{}, ErrClosed
	}

	p, ok := s.participantByName(name)
	if !ok {
		p, err = m.store.CreateParticipant(ctx, internal.Participant{
			ID:        uuid.New(),
			SessionID: s.info.ID,
			Name:      name,
			JoinedAt:  m.clock.Now(),
		})
		if errors.Is(err, store.ErrNotFound) {
			return internal.Participant{}, internal.SessionStateData{}, internal.ErrSessionNotFound
		}
		if err != nil {
			m.metrics.PersistenceErrors.WithLabelValues("create_participant").Inc()
			return internal.Participant{}, internal.SessionStateData{}, fmt.Errorf("join %s: %w", code, err)
		}
		if !slices.ContainsFunc(s.participants, func(existing internal.Participant) bool { return existing.ID == p.ID }) {
			s.participants = append(s.participants, p)
		}
		log.Info().
			Str("session_code", code).
			Str("participant_id", p.ID.String()).
			Str("name", name).
			Int("attendees", len(s.participants)).
			Msg("[Join] participant joined")
	} else {
		log.Debug().Str("session_code", code).Str("name", name).Msg("[Join] participant rejoined")
	}

	state := s.stateData()
	s.broadcast(internal.EvtSessionState, state)
	return p, state, nil
}

// Watch returns the current session state for an observer that does not
// join the roster.
func (m *Manager) Watch(ctx context.Context, code string) (internal.SessionStateData, error) {
	s, err := m.lookup(ctx, code)
	if err != nil {
		return internal.SessionStateData{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateData(), nil
}

// StartSession moves a LOBBY session with at least one attendee to ACTIVE.
func (m *Manager) StartSession(ctx context.Context, code string) error {
	s, err := m.lookup(ctx, code)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	if !s.info.Status.CanAdvanceTo(internal.StatusActive) {
		return fmt.Errorf("%w: cannot start a session that is %s", internal.ErrInvalidTransition, s.info.Status)
	}
	if len(s.participants) == 0 {
		return fmt.Errorf("%w: cannot start: no attendees", internal.ErrInvalidTransition)
	}

	if err := m.store.UpdateSessionStatus(ctx, s.info.ID, internal.StatusActive); err != nil {
		m.metrics.PersistenceErrors.WithLabelValues("update_session_status").Inc()
		return fmt.Errorf("start session %s: %w", code, err)
	}
	s.info.Status = internal.StatusActive
	m.metrics.SessionTransitions.WithLabelValues(string(internal.StatusActive)).Inc()

	log.Info().Str("session_code", code).Int("attendees", len(s.participants)).Msg("[StartSession] session active")
	s.broadcastState()
	return nil
}

// QueueAdd appends name to the host's queue of upcoming participants. Adding
// a queued name again is a no-op.
func (m *Manager) QueueAdd(ctx context.Context, code, name string) error {
	return m.editQueue(ctx, code, name, func(queue []string, name string) ([]string, bool) {
		if slices.Contains(queue, name) {
			return queue, false
		}
		return append(queue, name), true
	})
}

func (m *Manager) QueueRemove(ctx context.Context, code, name string) error {
	return m.editQueue(ctx, code, name, removeFromQueue)
}

func removeFromQueue(queue []string, name string) ([]string, bool) {
	i := slices.Index(queue, name)
	if i < 0 {
		return queue, false
	}
	return slices.Delete(queue, i, i+1), true
}

func (m *Manager) editQueue(ctx context.Context, code, name string, edit func([]string, string) ([]string, bool)) error {
	name = internal.NormalizeName(name)
	if name == "" {
		return fmt.Errorf("%w: participant name is required", internal.ErrInvalidCommand)
	}

	s, err := m.lookup(ctx, code)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.info.Status == internal.StatusFinished {
		return fmt.Errorf("%w: session is finished", internal.ErrInvalidTransition)
	}

	queue, changed := edit(s.queue, name)
	if !changed {
		return nil
	}
	s.queue = queue
	log.Debug().Str("session_code", code).Strs("queue", queue).Msg("[editQueue] queue updated")
	s.broadcastState()
	return nil
}
