package internal

import (
	"time"

	"github.com/google/uuid"
)

const (
	RoundDuration = 30 * time.Second
	TickInterval  = 1 * time.Second
	MinScore      = 1
	MaxScore      = 10
	MinDeduction  = 0.0
	MaxDeduction  = 10.0
)

type SessionStatus string

const (
	StatusLobby    SessionStatus = "LOBBY"
	StatusActive   SessionStatus = "ACTIVE"
	StatusFinished SessionStatus = "FINISHED"
)

// rank orders statuses so transitions can be checked as forward-only.
func (s SessionStatus) rank() int {
	switch s {
	case StatusLobby:
		return 0
	case StatusActive:
		return 1
	case StatusFinished:
		return 2
	}
	return -1
}

// CanAdvanceTo reports whether next is exactly one step forward from s.
func (s SessionStatus) CanAdvanceTo(next SessionStatus) bool {
	return s.rank() >= 0 && next.rank() == s.rank()+1
}

type RoundStatus string

const (
	RoundRunning RoundStatus = "RUNNING"
	RoundEnded   RoundStatus = "ENDED"
)

type Session struct {
	ID        uuid.UUID     `json:"id"`
	Code      string        `json:"code"`
	Title     string        `json:"title"`
	Status    SessionStatus `json:"status"`
	CreatedAt time.Time     `json:"createdAt"`
}

type Participant struct {
	ID        uuid.UUID `json:"id"`
	SessionID uuid.UUID `json:"-"`
	Name      string    `json:"name"`
	JoinedAt  time.Time `json:"joinedAt"`
}

type Round struct {
	ID              uuid.UUID   `json:"id"`
	SessionID       uuid.UUID   `json:"sessionId"`
	ParticipantName string      `json:"participantName"`
	StartsAt        time.Time   `json:"startsAt"`
	EndsAt          time.Time   `json:"endsAt"`
	Status          RoundStatus `json:"status"`
	Deduction       float64     `json:"deduction"`
}

func (r *Round) IsRunning() bool {
	return r.Status == RoundRunning
}

// Remaining is the time left in the voting window at now, floored at zero.
func (r *Round) Remaining(now time.Time) time.Duration {
	return max(r.EndsAt.Sub(now), 0)
}

type Vote struct {
	ID            uuid.UUID `json:"id"`
	RoundID       uuid.UUID `json:"roundId"`
	ParticipantID uuid.UUID `json:"participantId"`
	Score         int       `json:"score"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Caller is the identity bound to a connection once it has joined a session.
// The zero value is an unauthenticated caller.
type Caller struct {
	SessionCode   string
	ParticipantID uuid.UUID
	Name          string
}

func (c Caller) Authenticated() bool {
	return c.ParticipantID != uuid.Nil
}

// RoundResult is the aggregate of a single round, full precision.
type RoundResult struct {
	RoundID             uuid.UUID
	Average             float64
	VotesCount          int
	Deduction           float64
	TotalAfterDeduction float64
}

type ScoreboardRow struct {
	ParticipantName     string  `json:"participantName"`
	Average             float64 `json:"average"`
	Deduction           float64 `json:"deduction"`
	TotalAfterDeduction float64 `json:"totalAfterDeduction"`
	RoundCount          int     `json:"roundCount"`
}

type FinalResults struct {
	Rows        []ScoreboardRow `json:"rows"`
	RedirectURL string          `json:"redirectUrl"`
}

// SessionSnapshot is the read model served to the HTTP layer.
type SessionSnapshot struct {
	ID             uuid.UUID     `json:"id"`
	Code           string        `json:"code"`
	Title          string        `json:"title"`
	Status         SessionStatus `json:"status"`
	AttendeesCount int           `json:"attendeesCount"`
	Participants   []Participant `json:"participants"`
	Rounds         []Round       `json:"rounds"`
	Queue          []string      `json:"queue"`
}

type Response struct {
	StatusCode    int   `json:"status_code"`
	RespStartTime int64 `json:"resp_time_start_ms"`
	RespEndTime   int64 `json:"resp_time_end_ms"`
	NetRespTime   int64 `json:"net_resp_time_ms"`
	Data          any   `json:"data"`
}
