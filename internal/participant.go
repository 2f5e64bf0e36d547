package internal

import "strings"

// NormalizeName trims surrounding whitespace from a display name. Names are
// otherwise compared exactly, including case.
func NormalizeName(name string) string {
	return strings.TrimSpace(name)
}

func (p Participant) View() ParticipantView {
	return ParticipantView{
		ID:       p.ID,
		Name:     p.Name,
		JoinedAt: p.JoinedAt,
	}
}

func ParticipantViews(ps []Participant) []ParticipantView {
	views := make([]ParticipantView, 0, len(ps))
	for _, p := range ps {
		views = append(views, p.View())
	}
	return views
}
