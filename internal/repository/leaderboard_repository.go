package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/quizcraft/quizcraft-backend/internal/model"
)

// LeaderboardRepository aggregates completed attempts into user standings.
type LeaderboardRepository struct {
	pool *pgxpool.Pool
}

// NewLeaderboardRepository creates a new LeaderboardRepository.
func NewLeaderboardRepository(pool *pgxpool.Pool) *LeaderboardRepository {
	return &LeaderboardRepository{pool: pool}
}

// Top returns up to limit users ordered by summed score, ties broken by user id.
// An empty category means every category; a nil since means all time.
// Attempts on deleted quizzes only count toward the unfiltered board.
func (r *LeaderboardRepository) Top(ctx context.Context, category string, since *time.Time, limit int) ([]model.LeaderboardEntry, error) {
	query := `
		SELECT a.user_id,
		       SUM(a.score)::int AS total_score,
		       COUNT(*)::int AS total_quizzes,
		       AVG(a.score)::float8 AS average_score,
		       u.username, u.display_name, u.avatar_url,
		       u.quizzes_created, u.quizzes_taken, u.total_score, u.created_at
		FROM quiz_attempts a
		JOIN users u ON u.id = a.user_id
		WHERE a.completed`
	args := []any{}
	argIdx := 1

	if category != "" {
		query += fmt.Sprintf(` AND a.quiz_id IN (SELECT id FROM quizzes WHERE category = $%d)`, argIdx)
		args = append(args, category)
		argIdx++
	}
	if since != nil {
		query += fmt.Sprintf(` AND a.completed_at >= $%d`, argIdx)
		args = append(args, *since)
		argIdx++
	}

	query += fmt.Sprintf(`
		GROUP BY a.user_id, u.username, u.display_name, u.avatar_url,
		         u.quizzes_created, u.quizzes_taken, u.total_score, u.created_at
		ORDER BY SUM(a.score) DESC, a.user_id ASC
		LIMIT $%d`, argIdx)
	args = append(args, limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query leaderboard: %w", err)
	}
	defer rows.Close()

	entries := []model.LeaderboardEntry{}
	for rows.Next() {
		var e model.LeaderboardEntry
		if err := rows.Scan(
			&e.UserID, &e.TotalScore, &e.TotalQuizzes, &e.AverageScore,
			&e.User.Username, &e.User.DisplayName, &e.User.AvatarURL,
			&e.User.QuizzesCreated, &e.User.QuizzesTaken, &e.User.TotalScore, &e.User.CreatedAt,
		); err != nil {
			return nil, err
		}
		e.User.ID = e.UserID
		e.Rank = len(entries) + 1
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
