package leaderboard

import ws "github.com/gokatarajesh/cyberhoot/pkg/http/ws"

func toWSEntries(entries []Entry) []ws.LeaderboardEntry {
	result := make([]ws.LeaderboardEntry, len(entries))
	for i, e := range entries {
		result[i] = ws.LeaderboardEntry{
			Rank:        i + 1,
			Participant: e.Participant,
			Score:       e.Score,
			Wins:        e.Wins,
			Games:       e.Games,
			Accuracy:    e.Accuracy,
		}
	}
	return result
}

func isValidWindow(window string) bool {
	switch window {
	case WindowDaily, WindowWeekly, WindowMonthly, WindowAllTime:
		return true
	default:
		return false
	}
}
