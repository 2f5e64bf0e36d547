package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/scythe504/hotseat-backend/internal"
	"github.com/scythe504/hotseat-backend/internal/store"
)

// Repo is the Postgres backed session store.
type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

func expectOneRow(tag pgconn.CommandTag) error {
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// =============================================================================
// SESSIONS
// =============================================================================

const sessionColumns = `id, code, title, status, created_at`

func scanSession(row pgx.Row) (internal.Session, error) {
	var s internal.Session
	var status string
	if err := row.Scan(&s.ID, &s.Code, &s.Title, &status, &s.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return internal.Session{}, store.ErrNotFound
		}
		return internal.Session{}, err
	}
	s.Status = internal.SessionStatus(status)
	return s, nil
}

func (r *Repo) CreateSession(ctx context.Context, s internal.Session) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO sessions (id, code, title, status, created_at) VALUES ($1, $2, $3, $4, $5)`,
		s.ID, s.Code, s.Title, string(s.Status), s.CreatedAt)
	if isUniqueViolation(err) {
		return store.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

func (r *Repo) SessionByCode(ctx context.Context, code string) (internal.Session, error) {
	s, err := scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE code = $1`, code))
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return s, fmt.Errorf("failed to get session by code: %w", err)
	}
	return s, err
}

func (r *Repo) SessionByID(ctx context.Context, id uuid.UUID) (internal.Session, error) {
	s, err := scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id))
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return s, fmt.Errorf("failed to get session by id: %w", err)
	}
	return s, err
}

func (r *Repo) UpdateSessionStatus(ctx context.Context, id uuid.UUID, status internal.SessionStatus) error {
	tag, err := r.pool.Exec(ctx, `UPDATE sessions SET status = $2 WHERE id = $1`, id, string(status))
	if err != nil {
		return fmt.Errorf("failed to update session status: %w", err)
	}
	return expectOneRow(tag)
}

// =============================================================================
// PARTICIPANTS
// =============================================================================

func scanParticipant(row pgx.Row) (internal.Participant, error) {
	var p internal.Participant
	if err := row.Scan(&p.ID, &p.SessionID, &p.Name, &p.JoinedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return internal.Participant{}, store.ErrNotFound
		}
		return internal.Participant{}, err
	}
	return p, nil
}

func (r *Repo) ParticipantByName(ctx context.Context, sessionID uuid.UUID, name string) (internal.Participant, error) {
	p, err := scanParticipant(r.pool.QueryRow(ctx,
		`SELECT id, session_id, name, joined_at FROM participants WHERE session_id = $1 AND name = $2`,
		sessionID, name))
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return p, fmt.Errorf("failed to get participant: %w", err)
	}
	return p, err
}

// CreateParticipant inserts p, or returns the row already holding the name.
func (r *Repo) CreateParticipant(ctx context.Context, p internal.Participant) (internal.Participant, error) {
	created, err := scanParticipant(r.pool.QueryRow(ctx,
		`INSERT INTO participants (id, session_id, name, joined_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (session_id, name) DO NOTHING
		 RETURNING id, session_id, name, joined_at`,
		p.ID, p.SessionID, p.Name, p.JoinedAt))
	switch {
	case err == nil:
		return created, nil
	case errors.Is(err, store.ErrNotFound):
		return r.ParticipantByName(ctx, p.SessionID, p.Name)
	case isForeignKeyViolation(err):
		return internal.Participant{}, store.ErrNotFound
	default:
		return internal.Participant{}, fmt.Errorf("failed to insert participant: %w", err)
	}
}

func (r *Repo) Participants(ctx context.Context, sessionID uuid.UUID) ([]internal.Participant, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, session_id, name, joined_at FROM participants
		 WHERE session_id = $1 ORDER BY joined_at, id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	defer rows.Close()

	participants := make([]internal.Participant, 0)
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		participants = append(participants, p)
	}
	return participants, rows.Err()
}

// =============================================================================
// ROUNDS
// =============================================================================

const roundColumns = `id, session_id, participant_name, starts_at, ends_at, status, deduction`

func scanRound(row pgx.Row) (internal.Round, error) {
	var rd internal.Round
	var status string
	if err := row.Scan(&rd.ID, &rd.SessionID, &rd.ParticipantName, &rd.StartsAt, &rd.EndsAt, &status, &rd.Deduction); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return internal.Round{}, store.ErrNotFound
		}
		return internal.Round{}, err
	}
	rd.Status = internal.RoundStatus(status)
	return rd, nil
}

func (r *Repo) CreateRound(ctx context.Context, rd internal.Round) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO rounds (`+roundColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rd.ID, rd.SessionID, rd.ParticipantName, rd.StartsAt, rd.EndsAt, string(rd.Status), rd.Deduction)
	switch {
	case err == nil:
		return nil
	case isUniqueViolation(err):
		return store.ErrConflict
	case isForeignKeyViolation(err):
		return store.ErrNotFound
	default:
		return fmt.Errorf("failed to insert round: %w", err)
	}
}

func (r *Repo) Round(ctx context.Context, id uuid.UUID) (internal.Round, error) {
	rd, err := scanRound(r.pool.QueryRow(ctx, `SELECT `+roundColumns+` FROM rounds WHERE id = $1`, id))
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return rd, fmt.Errorf("failed to get round: %w", err)
	}
	return rd, err
}

func (r *Repo) Rounds(ctx context.Context, sessionID uuid.UUID) ([]internal.Round, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+roundColumns+` FROM rounds WHERE session_id = $1 ORDER BY starts_at, id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rounds: %w", err)
	}
	defer rows.Close()

	rounds := make([]internal.Round, 0)
	for rows.Next() {
		rd, err := scanRound(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan round: %w", err)
		}
		rounds = append(rounds, rd)
	}
	return rounds, rows.Err()
}

func (r *Repo) EndRound(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `UPDATE rounds SET status = 'ENDED' WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to end round: %w", err)
	}
	return expectOneRow(tag)
}

func (r *Repo) UpdateRoundDeduction(ctx context.Context, id uuid.UUID, deduction float64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE rounds SET deduction = $2 WHERE id = $1`, id, deduction)
	if err != nil {
		return fmt.Errorf("failed to update round deduction: %w", err)
	}
	return expectOneRow(tag)
}

// =============================================================================
// VOTES
// =============================================================================

func scanVote(row pgx.Row) (internal.Vote, error) {
	var v internal.Vote
	if err := row.Scan(&v.ID, &v.RoundID, &v.ParticipantID, &v.Score, &v.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return internal.Vote{}, store.ErrNotFound
		}
		return internal.Vote{}, err
	}
	return v, nil
}

// CreateVote inserts the vote unless (round, participant) already voted; the
// stored vote is returned either way.
func (r *Repo) CreateVote(ctx context.Context, v internal.Vote) (internal.Vote, bool, error) {
	created, err := scanVote(r.pool.QueryRow(ctx,
		`INSERT INTO votes (id, round_id, participant_id, score, created_at) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (round_id, participant_id) DO NOTHING
		 RETURNING id, round_id, participant_id, score, created_at`,
		v.ID, v.RoundID, v.ParticipantID, v.Score, v.CreatedAt))
	switch {
	case err == nil:
		return created, true, nil
	case isForeignKeyViolation(err):
		return internal.Vote{}, false, store.ErrNotFound
	case !errors.Is(err, store.ErrNotFound):
		return internal.Vote{}, false, fmt.Errorf("failed to insert vote: %w", err)
	}

	existing, err := scanVote(r.pool.QueryRow(ctx,
		`SELECT id, round_id, participant_id, score, created_at FROM votes
		 WHERE round_id = $1 AND participant_id = $2`, v.RoundID, v.ParticipantID))
	if err != nil {
		return internal.Vote{}, false, fmt.Errorf("failed to read existing vote: %w", err)
	}
	return existing, false, nil
}

func (r *Repo) Votes(ctx context.Context, roundID uuid.UUID) ([]internal.Vote, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, round_id, participant_id, score, created_at FROM votes
		 WHERE round_id = $1 ORDER BY created_at, id`, roundID)
	if err != nil {
		return nil, fmt.Errorf("failed to list votes: %w", err)
	}
	defer rows.Close()

	votes := make([]internal.Vote, 0)
	for rows.Next() {
		v, err := scanVote(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan vote: %w", err)
		}
		votes = append(votes, v)
	}
	return votes, rows.Err()
}
