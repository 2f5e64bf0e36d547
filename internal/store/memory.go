package store

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/scythe504/hotseat-backend/internal"
)

type participantKey struct {
	SessionID uuid.UUID
	Name      string
}

type voteKey struct {
	RoundID       uuid.UUID
	ParticipantID uuid.UUID
}

// MemoryStore keeps sessions, participants, rounds and votes in process
// memory. It is the default store when no database is configured and the
// store used by the engine tests.
type MemoryStore struct {
	mu sync.RWMutex

	sessions       map[uuid.UUID]internal.Session
	sessionsByCode map[string]uuid.UUID
	participants   map[uuid.UUID][]internal.Participant
	participantIdx map[participantKey]internal.Participant
	rounds         map[uuid.UUID]internal.Round
	roundOrder     map[uuid.UUID][]uuid.UUID
	votes          map[uuid.UUID][]internal.Vote
	voteIdx        map[voteKey]internal.Vote
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions:       make(map[uuid.UUID]internal.Session),
		sessionsByCode: make(map[string]uuid.UUID),
		participants:   make(map[uuid.UUID][]internal.Participant),
		participantIdx: make(map[participantKey]internal.Participant),
		rounds:         make(map[uuid.UUID]internal.Round),
		roundOrder:     make(map[uuid.UUID][]uuid.UUID),
		votes:          make(map[uuid.UUID][]internal.Vote),
		voteIdx:        make(map[voteKey]internal.Vote),
	}
}

func (s *MemoryStore) CreateSession(_ context.Context, session internal.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessionsByCode[session.Code]; exists {
		return ErrConflict
	}
	if _, exists := s.sessions[session.ID]; exists {
		return ErrConflict
	}
	s.sessions[session.ID] = session
	s.sessionsByCode[session.Code] = session.ID
	return nil
}

func (s *MemoryStore) SessionByCode(_ context.Context, code string) (internal.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.sessionsByCode[code]
	if !ok {
		return internal.Session{}, ErrNotFound
	}
	return s.sessions[id], nil
}

func (s *MemoryStore) SessionByID(_ context.Context, id uuid.UUID) (internal.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok {
		return internal.Session{}, ErrNotFound
	}
	return session, nil
}

func (s *MemoryStore) UpdateSessionStatus(_ context.Context, id uuid.UUID, status internal.SessionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return ErrNotFound
	}
	session.Status = status
	s.sessions[id] = session
	return nil
}

func (s *MemoryStore) ParticipantByName(_ context.Context, sessionID uuid.UUID, name string) (internal.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.participantIdx[participantKey{SessionID: sessionID, Name: name}]
	if !ok {
		return internal.Participant{}, ErrNotFound
	}
	return p, nil
}

// CreateParticipant returns the existing participant when the name is already
// taken within the session.
func (s *MemoryStore) CreateParticipant(_ context.Context, p internal.Participant) (internal.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[p.SessionID]; !ok {
		return internal.Participant{}, ErrNotFound
	}
	key := participantKey{SessionID: p.SessionID, Name: p.Name}
	if existing, ok := s.participantIdx[key]; ok {
		return existing, nil
	}
	s.participantIdx[key] = p
	s.participants[p.SessionID] = append(s.participants[p.SessionID], p)
	return p, nil
}

func (s *MemoryStore) Participants(_ context.Context, sessionID uuid.UUID) ([]internal.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Clone(s.participants[sessionID]), nil
}

func (s *MemoryStore) CreateRound(_ context.Context, round internal.Round) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[round.SessionID]; !ok {
		return ErrNotFound
	}
	if _, exists := s.rounds[round.ID]; exists {
		return ErrConflict
	}
	s.rounds[round.ID] = round
	s.roundOrder[round.SessionID] = append(s.roundOrder[round.SessionID], round.ID)
	return nil
}

func (s *MemoryStore) Round(_ context.Context, id uuid.UUID) (internal.Round, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	round, ok := s.rounds[id]
	if !ok {
		return internal.Round{}, ErrNotFound
	}
	return round, nil
}

// Rounds returns the session's rounds ordered by start time.
func (s *MemoryStore) Rounds(_ context.Context, sessionID uuid.UUID) ([]internal.Round, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.roundOrder[sessionID]
	rounds := make([]internal.Round, 0, len(ids))
	for _, id := range ids {
		rounds = append(rounds, s.rounds[id])
	}
	slices.SortStableFunc(rounds, func(a, b internal.Round) int {
		return a.StartsAt.Compare(b.StartsAt)
	})
	return rounds, nil
}

func (s *MemoryStore) EndRound(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	round, ok := s.rounds[id]
	if !ok {
		return ErrNotFound
	}
	round.Status = internal.RoundEnded
	s.rounds[id] = round
	return nil
}

func (s *MemoryStore) UpdateRoundDeduction(_ context.Context, id uuid.UUID, deduction float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	round, ok := s.rounds[id]
	if !ok {
		return ErrNotFound
	}
	round.Deduction = deduction
	s.rounds[id] = round
	return nil
}

// CreateVote stores the vote unless one already exists for the same round and
// participant, in which case the stored vote is returned with created=false.
func (s *MemoryStore) CreateVote(_ context.Context, vote internal.Vote) (internal.Vote, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rounds[vote.RoundID]; !ok {
		return internal.Vote{}, false, ErrNotFound
	}
	key := voteKey{RoundID: vote.RoundID, ParticipantID: vote.ParticipantID}
	if existing, ok := s.voteIdx[key]; ok {
		return existing, false, nil
	}
	s.voteIdx[key] = vote
	s.votes[vote.RoundID] = append(s.votes[vote.RoundID], vote)
	return vote, true, nil
}

func (s *MemoryStore) Votes(_ context.Context, roundID uuid.UUID) ([]internal.Vote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Clone(s.votes[roundID]), nil
}
