package game

import (
	"math"
	"slices"

	"github.com/scythe504/hotseat-backend/internal"
)

// ComputeRoundResult aggregates a round's scores at full precision. A round
// without votes averages 0.
func ComputeRoundResult(round internal.Round, scores []int) internal.RoundResult {
	average := 0.0
	if len(scores) > 0 {
		sum := 0
		for _, s := range scores {
			sum += s
		}
		average = float64(sum) / float64(len(scores))
	}

	return internal.RoundResult{
		RoundID:             round.ID,
		Average:             average,
		VotesCount:          len(scores),
		Deduction:           round.Deduction,
		TotalAfterDeduction: math.Max(0, average-round.Deduction),
	}
}

// ComputeScoreboard builds one row per participant from the ended rounds whose
// subject name equals the participant's name. Every matched round counts
// towards roundCount and the deduction mean; rounds without votes add 0 to
// the average and total. Rows are sorted by total descending, ties keep
// participant order.
func ComputeScoreboard(participants []internal.Participant, rounds []internal.Round, ledger *Ledger) []internal.ScoreboardRow {
	rows := make([]internal.ScoreboardRow, 0, len(participants))

	for _, p := range participants {
		row := internal.ScoreboardRow{ParticipantName: p.Name}
		var sumAverage, sumDeduction, sumTotal float64

		for _, round := range rounds {
			if round.Status != internal.RoundEnded || round.ParticipantName != p.Name {
				continue
			}
			row.RoundCount++
			sumDeduction += round.Deduction

			result := ComputeRoundResult(round, ledger.Scores(round.ID))
			if result.VotesCount > 0 {
				sumAverage += result.Average
				sumTotal += result.TotalAfterDeduction
			}
		}

		if row.RoundCount > 0 {
			n := float64(row.RoundCount)
			row.Average = sumAverage / n
			row.Deduction = sumDeduction / n
			row.TotalAfterDeduction = sumTotal / n
		}
		rows = append(rows, row)
	}

	slices.SortStableFunc(rows, func(a, b internal.ScoreboardRow) int {
		switch {
		case a.TotalAfterDeduction > b.TotalAfterDeduction:
			return -1
		case a.TotalAfterDeduction < b.TotalAfterDeduction:
			return 1
		}
		return 0
	})
	return rows
}

func wireRows(rows []internal.ScoreboardRow) []internal.ScoreboardRow {
	out := make([]internal.ScoreboardRow, len(rows))
	for i, r := range rows {
		out[i] = r.Wire()
	}
	return out
}
