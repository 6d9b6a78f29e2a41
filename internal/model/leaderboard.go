package model

import (
	"time"

	"github.com/google/uuid"
)

// Timeframe bounds the completion timestamps considered by the leaderboard.
type Timeframe string

const (
	TimeframeWeek  Timeframe = "week"
	TimeframeMonth Timeframe = "month"
	TimeframeYear  Timeframe = "year"
	TimeframeAll   Timeframe = "all"
)

// Since returns the lower bound for completed_at, or nil when unbounded.
// Month and year are calendar offsets, not fixed durations.
func (t Timeframe) Since(now time.Time) (*time.Time, bool) {
	var since time.Time
	switch t {
	case TimeframeWeek:
		since = now.AddDate(0, 0, -7)
	case TimeframeMonth:
		since = now.AddDate(0, -1, 0)
	case TimeframeYear:
		since = now.AddDate(-1, 0, 0)
	case TimeframeAll, "":
		return nil, true
	default:
		return nil, false
	}
	return &since, true
}

// LeaderboardQuery holds the leaderboard filters.
type LeaderboardQuery struct {
	Category  string `form:"category" binding:"omitempty,quiz_category"`
	Timeframe string `form:"timeframe" binding:"omitempty,oneof=week month year all"`
}

// LeaderboardEntry is one ranked user standing.
type LeaderboardEntry struct {
	Rank         int       `json:"rank"`
	UserID       uuid.UUID `json:"user_id"`
	TotalScore   int       `json:"total_score"`
	TotalQuizzes int       `json:"total_quizzes"`
	AverageScore float64   `json:"average_score"`
	User         User      `json:"user"`
}
