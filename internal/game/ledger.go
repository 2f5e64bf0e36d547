package game

import "github.com/google/uuid"

// Ledger holds at most one score per (round, participant). It is not safe for
// concurrent use; the owning session serializes access.
type Ledger struct {
	votes map[uuid.UUID]map[uuid.UUID]int
}

func NewLedger() *Ledger {
	return &Ledger{votes: make(map[uuid.UUID]map[uuid.UUID]int)}
}

func (l *Ledger) Lookup(roundID, participantID uuid.UUID) (int, bool) {
	score, ok := l.votes[roundID][participantID]
	return score, ok
}

// Record stores score unless the participant already voted in the round.
// It reports whether the ledger changed.
func (l *Ledger) Record(roundID, participantID uuid.UUID, score int) bool {
	byVoter, ok := l.votes[roundID]
	if !ok {
		byVoter = make(map[uuid.UUID]int)
		l.votes[roundID] = byVoter
	}
	if _, exists := byVoter[participantID]; exists {
		return false
	}
	byVoter[participantID] = score
	return true
}

func (l *Ledger) Scores(roundID uuid.UUID) []int {
	byVoter := l.votes[roundID]
	scores := make([]int, 0, len(byVoter))
	for _, score := range byVoter {
		scores = append(scores, score)
	}
	return scores
}

func (l *Ledger) Count(roundID uuid.UUID) int {
	return len(l.votes[roundID])
}
