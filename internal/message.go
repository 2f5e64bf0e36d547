package internal

import (
	"time"

	"github.com/google/uuid"
)

type Message[T any] struct {
	Type string `json:"type"`
	Data T      `json:"data"`
}

// Commands accepted from a connection.
const (
	CmdJoin          = "join"
	CmdAttendeeJoin  = "attendee:join"
	CmdWatch         = "host:watch"
	CmdStartSession  = "host:startSession"
	CmdStartRound    = "host:startRound"
	CmdSubmitVote    = "vote:submit"
	CmdApplyDeduct   = "host:applyDeduction"
	CmdFinishSession = "host:finishSession"
	CmdQueueAdd      = "host:queueAdd"
	CmdQueueRemove   = "host:queueRemove"
)

// Events broadcast to a session channel.
const (
	EvtSessionState    = "session:state"
	EvtRoundStarted    = "round:started"
	EvtRoundTick       = "round:tick"
	EvtRoundEnded      = "round:ended"
	EvtScoreboardFinal = "scoreboard:final"
)

// Events targeted at a single connection.
const (
	EvtVoteRecorded = "vote:recorded"
	EvtError        = "error"
	EvtRedirect     = "redirect"
)

type JoinCommand struct {
	SessionCode     string `json:"sessionCode"`
	ParticipantName string `json:"participantName"`
}

type SessionCommand struct {
	SessionCode string `json:"sessionCode"`
}

type StartRoundCommand struct {
	SessionCode     string `json:"sessionCode"`
	ParticipantName string `json:"participantName"`
}

type QueueCommand struct {
	SessionCode     string `json:"sessionCode"`
	ParticipantName string `json:"participantName"`
}

type VoteCommand struct {
	RoundID uuid.UUID `json:"roundId"`
	Score   int       `json:"score"`
}

type DeductionCommand struct {
	RoundID   uuid.UUID `json:"roundId"`
	Deduction float64   `json:"deduction"`
}

type ParticipantView struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	JoinedAt time.Time `json:"joinedAt"`
}

type SessionStateData struct {
	Status         SessionStatus     `json:"status"`
	AttendeesCount int               `json:"attendeesCount"`
	Participants   []ParticipantView `json:"participants"`
	Queue          []string          `json:"queue"`
}

type RoundStartedData struct {
	RoundID         uuid.UUID `json:"roundId"`
	ParticipantName string    `json:"participantName"`
	EndsAt          time.Time `json:"endsAt"`
}

type RoundTickData struct {
	MsRemaining int64 `json:"msRemaining"`
}

type RoundEndedData struct {
	RoundID             uuid.UUID `json:"roundId"`
	Average             float64   `json:"average"`
	VotesCount          int       `json:"votesCount"`
	Deduction           float64   `json:"deduction"`
	TotalAfterDeduction float64   `json:"totalAfterDeduction"`
}

type ScoreboardData struct {
	Rows []ScoreboardRow `json:"rows"`
}

type VoteRecordedData struct {
	Score   int    `json:"score"`
	Message string `json:"message,omitempty"`
}

type ErrorData struct {
	Message string `json:"message"`
}

type RedirectData struct {
	URL string `json:"url"`
}

// NewMessage wraps data in an untyped envelope for the broadcast path.
func NewMessage(kind string, data any) Message[any] {
	return Message[any]{Type: kind, Data: data}
}
