package internal

// Wire converts a full precision aggregate into the round:ended payload.
func (r RoundResult) Wire() RoundEndedData {
	return RoundEndedData{
		RoundID:             r.RoundID,
		Average:             Round2(r.Average),
		VotesCount:          r.VotesCount,
		Deduction:           r.Deduction,
		TotalAfterDeduction: Round2(r.TotalAfterDeduction),
	}
}

// Wire rounds every figure of the row to two decimals.
func (r ScoreboardRow) Wire() ScoreboardRow {
	r.Average = Round2(r.Average)
	r.Deduction = Round2(r.Deduction)
	r.TotalAfterDeduction = Round2(r.TotalAfterDeduction)
	return r
}
