package result

import "github.com/gokatarajesh/cyberhoot/internal/quiz"

const (
	highScoreThreshold = 300
	speedDemonSeconds  = 120
)

var (
	HighScorer      = quiz.Achievement{Code: "high_scorer", Icon: "🏆", Title: "High Scorer", Description: "Earned over 300 points"}
	SpeedDemon      = quiz.Achievement{Code: "speed_demon", Icon: "⚡", Title: "Speed Demon", Description: "Completed the quiz in under 2 minutes"}
	Champion        = quiz.Achievement{Code: "champion", Icon: "👑", Title: "Champion", Description: "Finished in first place"}
	ChallengeSeeker = quiz.Achievement{Code: "challenge_seeker", Icon: "🔥", Title: "Challenge Seeker", Description: "Completed a hard difficulty quiz (9x points)"}
	SkilledPlayer   = quiz.Achievement{Code: "skilled_player", Icon: "🎯", Title: "Skilled Player", Description: "Completed a medium difficulty quiz (5x points)"}
	Beginner        = quiz.Achievement{Code: "beginner", Icon: "🌟", Title: "Beginner", Description: "Completed an easy difficulty quiz (3x points)"}
	CyberScholar    = quiz.Achievement{Code: "cyber_scholar", Icon: "🎓", Title: "Cyber Scholar", Description: "Completed a cybersecurity quiz"}
)

// DefaultRules returns the achievement rules in display order.
func DefaultRules() []Rule {
	return []Rule{highScorer, speedDemon, champion, difficultyBadge}
}

func highScorer(r quiz.Result, _ Context) (quiz.Achievement, bool) {
	return HighScorer, r.TotalScore > highScoreThreshold
}

func speedDemon(r quiz.Result, _ Context) (quiz.Achievement, bool) {
	if r.StartedAt.IsZero() || r.CompletedAt.IsZero() {
		return quiz.Achievement{}, false
	}
	return SpeedDemon, r.ElapsedSeconds < speedDemonSeconds
}

func champion(_ quiz.Result, rc Context) (quiz.Achievement, bool) {
	return Champion, rc.Multiplayer && rc.Rank == 1
}

func difficultyBadge(r quiz.Result, _ Context) (quiz.Achievement, bool) {
	switch r.Difficulty {
	case quiz.DifficultyHard:
		return ChallengeSeeker, true
	case quiz.DifficultyMedium:
		return SkilledPlayer, true
	case quiz.DifficultyEasy:
		return Beginner, true
	}
	return quiz.Achievement{}, false
}
