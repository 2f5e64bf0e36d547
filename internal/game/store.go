package game

import (
	"context"

	"github.com/google/uuid"
	"github.com/scythe504/hotseat-backend/internal"
)

// Store is the system of record for sessions, participants, rounds and votes.
// Implementations return store.ErrNotFound for missing rows and must be safe
// for concurrent use.
type Store interface {
	CreateSession(ctx context.Context, s internal.Session) error
	SessionByCode(ctx context.Context, code string) (internal.Session, error)
	SessionByID(ctx context.Context, id uuid.UUID) (internal.Session, error)
	UpdateSessionStatus(ctx context.Context, id uuid.UUID, status internal.SessionStatus) error

	ParticipantByName(ctx context.Context, sessionID uuid.UUID, name string) (internal.Participant, error)
	CreateParticipant(ctx context.Context, p internal.Participant) (internal.Participant, error)
	Participants(ctx context.Context, sessionID uuid.UUID) ([]internal.Participant, error)

	CreateRound(ctx context.Context, r internal.Round) error
	Round(ctx context.Context, id uuid.UUID) (internal.Round, error)
	Rounds(ctx context.Context, sessionID uuid.UUID) ([]internal.Round, error)
	EndRound(ctx context.Context, id uuid.UUID) error
	UpdateRoundDeduction(ctx context.Context, id uuid.UUID, deduction float64) error

	CreateVote(ctx context.Context, v internal.Vote) (internal.Vote, bool, error)
	Votes(ctx context.Context, roundID uuid.UUID) ([]internal.Vote, error)
}

// Broadcaster fans an event out to every member of a session channel.
// Broadcast is called with the session lock held and must not block on
// slow receivers.
type Broadcaster interface {
	Broadcast(sessionCode string, msg internal.Message[any])
}
