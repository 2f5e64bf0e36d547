package internal

import "errors"

// Command-level errors. Their messages are forwarded verbatim to the
// originating connection.
var (
	ErrSessionNotFound     = errors.New("session not found")
	ErrRoundNotFound       = errors.New("round not found")
	ErrInvalidTransition   = errors.New("invalid transition")
	ErrRoundAlreadyRunning = errors.New("a round is already running")
	ErrUnauthenticated     = errors.New("not authenticated")
	ErrInvalidScore        = errors.New("score must be between 1 and 10")
	ErrRoundClosed         = errors.New("voting is closed for this round")
	ErrInvalidCommand      = errors.New("invalid command")
)

var commandErrors = []error{
	ErrSessionNotFound,
	ErrRoundNotFound,
	ErrInvalidTransition,
	ErrRoundAlreadyRunning,
	ErrUnauthenticated,
	ErrInvalidScore,
	ErrRoundClosed,
	ErrInvalidCommand,
}

// IsCommandError reports whether err belongs to the command taxonomy rather
// than being an infrastructure failure.
func IsCommandError(err error) bool {
	for _, target := range commandErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
